package storage

import (
	"strings"
	"time"
)

// EventType is the closed set of timeline events the pipeline records.
// Values read back from a store that this build does not know about decode
// to EventOther.
type EventType string

const (
	EventKill         EventType = "kill"
	EventDeath        EventType = "death"
	EventAssist       EventType = "assist"
	EventObjective    EventType = "objective"
	EventItemPurchase EventType = "item_purchase"
	EventItemSell     EventType = "item_sell"
	EventWardPlaced   EventType = "ward_placed"
	EventOther        EventType = "other"
)

var knownEventTypes = map[EventType]bool{
	EventKill: true, EventDeath: true, EventAssist: true, EventObjective: true,
	EventItemPurchase: true, EventItemSell: true, EventWardPlaced: true,
}

// ParseEventType maps a stored value onto the closed set.
func ParseEventType(s string) EventType {
	t := EventType(strings.ToLower(s))
	if knownEventTypes[t] {
		return t
	}
	return EventOther
}

// Match is one game from the tracked player's point of view.
type Match struct {
	MatchID             string    `json:"match_id"`
	Champion            string    `json:"champion"`
	Role                string    `json:"role"`
	Win                 bool      `json:"win"`
	GameDurationSeconds int       `json:"game_duration_seconds"`
	Kills               int       `json:"kills"`
	Deaths              int       `json:"deaths"`
	Assists             int       `json:"assists"`
	CS                  int       `json:"cs"`
	GoldEarned          int       `json:"gold_earned"`
	VisionScore         int       `json:"vision_score"`
	Items               []int     `json:"items"`
	PlayedAt            time.Time `json:"played_at"`
	GameMode            string    `json:"game_mode,omitempty"`
	QueueID             int       `json:"queue_id,omitempty"`
	GameVersion         string    `json:"game_version,omitempty"`
	DamageDealt         int       `json:"damage_dealt"`
	DamageTaken         int       `json:"damage_taken"`
}

// KDA is (kills + assists) / max(deaths, 1).
func (m *Match) KDA() float64 {
	d := m.Deaths
	if d < 1 {
		d = 1
	}
	return float64(m.Kills+m.Assists) / float64(d)
}

// CSPerMinute returns cs / (duration / 60) and false for zero-length games.
func (m *Match) CSPerMinute() (float64, bool) {
	if m.GameDurationSeconds <= 0 {
		return 0, false
	}
	return float64(m.CS) / (float64(m.GameDurationSeconds) / 60), true
}

// TimelineSnapshot is the tracked player's state at a whole minute.
type TimelineSnapshot struct {
	MatchID   string `json:"match_id"`
	Minute    int    `json:"minute"`
	CS        int    `json:"cs"`
	Gold      int    `json:"gold"`
	XP        int    `json:"xp"`
	Level     int    `json:"level"`
	PositionX int    `json:"position_x"`
	PositionY int    `json:"position_y"`
}

// TimelineEvent is a discrete in-game occurrence involving the tracked player.
// Seq is the event's position within its match.
type TimelineEvent struct {
	MatchID          string         `json:"match_id"`
	Seq              int            `json:"seq"`
	TimestampSeconds int            `json:"timestamp_seconds"`
	Type             EventType      `json:"event_type"`
	LocationX        *int           `json:"location_x"`
	LocationY        *int           `json:"location_y"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// NormalizedMatch is everything written for one match in a single upsert.
type NormalizedMatch struct {
	Match     Match
	Snapshots []TimelineSnapshot
	Events    []TimelineEvent
}

// Window is a consistent read of the most recent matches and, on request,
// their events and snapshots.
type Window struct {
	Matches   []Match
	Events    []TimelineEvent
	Snapshots []TimelineSnapshot
}

// WindowOptions selects what Window reads alongside the matches.
// Limit <= 0 reads every stored match.
type WindowOptions struct {
	Limit      int
	EventTypes []EventType
	Snapshots  bool
}

// MatchTimeline is a single match with its full timeline.
type MatchTimeline struct {
	Match     Match
	Snapshots []TimelineSnapshot
	Events    []TimelineEvent
}

// Counts reports table sizes.
type Counts struct {
	Matches   int `json:"matches"`
	Snapshots int `json:"snapshots"`
	Events    int `json:"events"`
}
