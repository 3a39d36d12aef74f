// Package normalize turns raw match-v5 payloads into the rows the store
// persists for one tracked player.
package normalize

import (
	"sort"
	"strconv"
	"time"

	"summoner-insights/internal/fault"
	"summoner-insights/internal/riot"
	"summoner-insights/internal/storage"
)

const (
	maxItems = 7

	// Before patch 11.20 gameDuration was reported in milliseconds and
	// gameEndTimestamp did not exist. No game lasts ten hours.
	legacyDurationThreshold = 10 * 60 * 60
)

// Normalize extracts the tracked player's match row, per-minute snapshots
// and timeline events. The result depends only on its inputs.
func Normalize(playerID string, match *riot.MatchResponse, timeline *riot.TimelineResponse) (*storage.NormalizedMatch, error) {
	if match == nil {
		return nil, fault.Malformed("match payload is empty")
	}
	matchID := match.Metadata.MatchID
	if matchID == "" {
		return nil, fault.Malformed("match payload has no matchId")
	}
	if timeline != nil && timeline.Metadata.MatchID != "" && timeline.Metadata.MatchID != matchID {
		return nil, fault.Malformed("timeline %s does not belong to match %s", timeline.Metadata.MatchID, matchID)
	}

	participant := findParticipant(match.Info.Participants, playerID)
	if participant == nil {
		return nil, fault.Malformed("player %s is not a participant of %s", playerID, matchID)
	}

	out := &storage.NormalizedMatch{Match: buildMatch(matchID, &match.Info, participant)}

	if timeline != nil {
		pid := timelineParticipantID(timeline, participant, playerID)
		if pid > 0 {
			out.Snapshots = buildSnapshots(matchID, timeline.Info.Frames, pid)
			out.Events = buildEvents(matchID, timeline.Info.Frames, pid)
		}
	}

	return out, nil
}

func findParticipant(participants []riot.MatchParticipant, playerID string) *riot.MatchParticipant {
	for i := range participants {
		if participants[i].PUUID == playerID {
			return &participants[i]
		}
	}
	return nil
}

func buildMatch(matchID string, info *riot.MatchInfo, p *riot.MatchParticipant) storage.Match {
	role := p.TeamPosition
	if role == "" {
		role = p.IndividualPosition
	}

	playedAtMillis := int64Or(info.GameCreation, int64Or(info.GameStartTimestamp, 0))

	duration := int64Or(info.GameDuration, 0)
	if info.GameEndTimestamp == nil && duration > legacyDurationThreshold {
		duration /= 1000
	}
	if duration < 0 {
		duration = 0
	}

	items := make([]int, 0, maxItems)
	for _, slot := range p.ItemSlots() {
		if id := intOr(slot, 0); id > 0 && len(items) < maxItems {
			items = append(items, id)
		}
	}

	return storage.Match{
		MatchID:             matchID,
		Champion:            p.ChampionName,
		Role:                role,
		Win:                 p.Win != nil && *p.Win,
		GameDurationSeconds: int(duration),
		Kills:               nonNegative(p.Kills),
		Deaths:              nonNegative(p.Deaths),
		Assists:             nonNegative(p.Assists),
		CS:                  nonNegative(p.TotalMinionsKilled) + nonNegative(p.NeutralMinionsKilled),
		GoldEarned:          nonNegative(p.GoldEarned),
		VisionScore:         nonNegative(p.VisionScore),
		Items:               items,
		PlayedAt:            time.UnixMilli(playedAtMillis).UTC(),
		GameMode:            info.GameMode,
		QueueID:             intOr(info.QueueID, 0),
		GameVersion:         info.GameVersion,
		DamageDealt:         nonNegative(p.TotalDamageDealtToChampions),
		DamageTaken:         nonNegative(p.TotalDamageTaken),
	}
}

// timelineParticipantID prefers the timeline's own puuid mapping and falls
// back to the id from the match detail.
func timelineParticipantID(timeline *riot.TimelineResponse, p *riot.MatchParticipant, playerID string) int {
	for _, tp := range timeline.Info.Participants {
		if tp.PUUID == playerID {
			return tp.ParticipantID
		}
	}
	return intOr(p.ParticipantID, 0)
}

func buildSnapshots(matchID string, frames []riot.TimelineFrame, pid int) []storage.TimelineSnapshot {
	key := strconv.Itoa(pid)

	byMinute := make(map[int]storage.TimelineSnapshot)
	for _, frame := range frames {
		pf, ok := frame.ParticipantFrames[key]
		if !ok || frame.Timestamp < 0 {
			continue
		}
		snap := storage.TimelineSnapshot{
			MatchID: matchID,
			Minute:  int(frame.Timestamp / 60000),
			CS:      nonNegative(pf.MinionsKilled) + nonNegative(pf.JungleMinionsKilled),
			Gold:    nonNegative(pf.TotalGold),
			XP:      nonNegative(pf.XP),
			Level:   nonNegative(pf.Level),
		}
		if pf.Position != nil {
			snap.PositionX, snap.PositionY = pf.Position.X, pf.Position.Y
		}
		// frames arrive in order, so a later frame in the same minute wins
		byMinute[snap.Minute] = snap
	}

	snapshots := make([]storage.TimelineSnapshot, 0, len(byMinute))
	for _, s := range byMinute {
		snapshots = append(snapshots, s)
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Minute < snapshots[j].Minute })

	for i := 1; i < len(snapshots); i++ {
		prev, cur := &snapshots[i-1], &snapshots[i]
		cur.CS = max(cur.CS, prev.CS)
		cur.Gold = max(cur.Gold, prev.Gold)
		cur.XP = max(cur.XP, prev.XP)
	}
	return snapshots
}

func buildEvents(matchID string, frames []riot.TimelineFrame, pid int) []storage.TimelineEvent {
	var events []storage.TimelineEvent
	for _, frame := range frames {
		for i := range frame.Events {
			ev, ok := classify(&frame.Events[i], pid)
			if !ok {
				continue
			}
			ev.MatchID = matchID
			events = append(events, ev)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].TimestampSeconds < events[j].TimestampSeconds
	})
	for i := range events {
		events[i].Seq = i
	}
	return events
}

// classify maps a raw event onto the recognized set from the point of view
// of participant pid. Events not involving pid are dropped.
func classify(e *riot.TimelineEvent, pid int) (storage.TimelineEvent, bool) {
	ev := storage.TimelineEvent{TimestampSeconds: int(max(e.Timestamp, 0) / 1000)}
	withPosition := false

	switch e.Type {
	case "CHAMPION_KILL":
		switch {
		case e.KillerID == pid:
			ev.Type = storage.EventKill
			ev.Metadata = map[string]any{"victim_id": e.VictimID, "assists": len(e.AssistingParticipantIDs)}
			if e.Bounty > 0 {
				ev.Metadata["bounty"] = e.Bounty
			}
		case e.VictimID == pid:
			ev.Type = storage.EventDeath
			ev.Metadata = map[string]any{"killer_id": e.KillerID, "assists": len(e.AssistingParticipantIDs)}
		case e.Assisted(pid):
			ev.Type = storage.EventAssist
			ev.Metadata = map[string]any{"killer_id": e.KillerID, "victim_id": e.VictimID}
		default:
			return ev, false
		}
		withPosition = true

	case "ELITE_MONSTER_KILL", "BUILDING_KILL", "TURRET_PLATE_DESTROYED":
		var involvement string
		switch {
		case e.KillerID == pid:
			involvement = "killer"
		case e.Assisted(pid):
			involvement = "assist"
		default:
			return ev, false
		}
		ev.Type = storage.EventObjective
		ev.Metadata = map[string]any{"objective": e.Type, "involvement": involvement}
		setIfPresent(ev.Metadata, "monster_type", e.MonsterType)
		setIfPresent(ev.Metadata, "monster_sub_type", e.MonsterSubType)
		setIfPresent(ev.Metadata, "building_type", e.BuildingType)
		setIfPresent(ev.Metadata, "tower_type", e.TowerType)
		setIfPresent(ev.Metadata, "lane", e.LaneType)
		withPosition = true

	case "ITEM_PURCHASED":
		if e.ParticipantID != pid {
			return ev, false
		}
		ev.Type = storage.EventItemPurchase
		ev.Metadata = map[string]any{"item_id": e.ItemID, "completed_item": riot.IsCompletedItem(e.ItemID)}

	case "ITEM_SOLD":
		if e.ParticipantID != pid {
			return ev, false
		}
		ev.Type = storage.EventItemSell
		ev.Metadata = map[string]any{"item_id": e.ItemID}

	case "WARD_PLACED":
		if e.CreatorID != pid {
			return ev, false
		}
		ev.Type = storage.EventWardPlaced
		ev.Metadata = map[string]any{}
		setIfPresent(ev.Metadata, "ward_type", e.WardType)

	default:
		return ev, false
	}

	if withPosition && e.Position != nil {
		x, y := e.Position.X, e.Position.Y
		ev.LocationX, ev.LocationY = &x, &y
	}
	return ev, true
}

func setIfPresent(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func int64Or(p *int64, def int64) int64 {
	if p == nil {
		return def
	}
	return *p
}

func nonNegative(p *int) int {
	return max(intOr(p, 0), 0)
}
