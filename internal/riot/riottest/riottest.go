// Package riottest builds match-v5 payloads and serves them from a fake
// Riot API for tests.
package riottest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"summoner-insights/internal/riot"
)

// MatchSpec describes one game of the tracked player.
type MatchSpec struct {
	ID              string
	PUUID           string
	ParticipantID   int // defaults to 3
	Champion        string
	Role            string
	Win             bool
	Kills           int
	Deaths          int
	Assists         int
	CS              int
	Gold            int
	Vision          int
	Items           []int
	DurationSeconds int64
	CreatedAt       time.Time
	DeathSeconds    []int64 // timestamps of deaths in the timeline
	Minutes         int     // number of per-minute frames, defaults to duration/60
}

func (s MatchSpec) pid() int {
	if s.ParticipantID == 0 {
		return 3
	}
	return s.ParticipantID
}

func ptr[T any](v T) *T { return &v }

// Match builds the match detail payload for spec. The tracked player is
// padded with nine other participants and is not first in the list.
func Match(s MatchSpec) *riot.MatchResponse {
	created := s.CreatedAt.UnixMilli()
	end := created + s.DurationSeconds*1000

	var participants []riot.MatchParticipant
	for i := 1; i <= 10; i++ {
		p := riot.MatchParticipant{
			ParticipantID: ptr(i),
			PUUID:         fmt.Sprintf("other-%d", i),
			ChampionName:  "Annie",
			TeamPosition:  "MIDDLE",
			Win:           ptr(i > 5),
			Kills:         ptr(1),
			Deaths:        ptr(1),
			Assists:       ptr(1),
		}
		if i == s.pid() {
			p = riot.MatchParticipant{
				ParticipantID:        ptr(i),
				PUUID:                s.PUUID,
				ChampionName:         s.Champion,
				TeamPosition:         s.Role,
				Win:                  ptr(s.Win),
				Kills:                ptr(s.Kills),
				Deaths:               ptr(s.Deaths),
				Assists:              ptr(s.Assists),
				TotalMinionsKilled:   ptr(s.CS),
				NeutralMinionsKilled: ptr(0),
				GoldEarned:           ptr(s.Gold),
				VisionScore:          ptr(s.Vision),
			}
			slots := []**int{&p.Item0, &p.Item1, &p.Item2, &p.Item3, &p.Item4, &p.Item5, &p.Item6}
			for j, item := range s.Items {
				if j < len(slots) {
					*slots[j] = ptr(item)
				}
			}
		}
		participants = append(participants, p)
	}

	return &riot.MatchResponse{
		Metadata: riot.MatchMetadata{DataVersion: "2", MatchID: s.ID},
		Info: riot.MatchInfo{
			GameCreation:     ptr(created),
			GameEndTimestamp: ptr(end),
			GameDuration:     ptr(s.DurationSeconds),
			GameMode:         "CLASSIC",
			GameVersion:      "14.10.1",
			QueueID:          ptr(420),
			Participants:     participants,
		},
	}
}

// Timeline builds a timeline with one frame per minute in which the tracked
// player gains 8 cs, 400 gold and 500 xp, plus one death per DeathSeconds.
func Timeline(s MatchSpec) *riot.TimelineResponse {
	minutes := s.Minutes
	if minutes == 0 {
		minutes = int(s.DurationSeconds / 60)
	}
	pid := s.pid()
	key := strconv.Itoa(pid)

	frames := make([]riot.TimelineFrame, 0, minutes+1)
	for m := 0; m <= minutes; m++ {
		frames = append(frames, riot.TimelineFrame{
			Timestamp: int64(m) * 60000,
			ParticipantFrames: map[string]riot.ParticipantFrame{
				key: {
					ParticipantID:       pid,
					Level:               ptr(1 + m/2),
					MinionsKilled:       ptr(8 * m),
					JungleMinionsKilled: ptr(0),
					TotalGold:           ptr(500 + 400*m),
					XP:                  ptr(500 * m),
					Position:            &riot.Position{X: 1000 + 100*m, Y: 1000 + 100*m},
				},
			},
		})
	}

	for i, ds := range s.DeathSeconds {
		ms := ds * 1000
		idx := min(int(ms/60000)+1, len(frames)-1)
		frames[idx].Events = append(frames[idx].Events, riot.TimelineEvent{
			Type:      "CHAMPION_KILL",
			Timestamp: ms,
			KillerID:  pid%10 + 1,
			VictimID:  pid,
			Position:  &riot.Position{X: 5000 + i, Y: 5000},
		})
	}
	if len(frames) > 1 {
		frames[1].Events = append(frames[1].Events, riot.TimelineEvent{
			Type: "ITEM_PURCHASED", Timestamp: 5000, ParticipantID: pid, ItemID: 1055,
		})
	}

	var tps []riot.TimelineParticipant
	for i := 1; i <= 10; i++ {
		puuid := fmt.Sprintf("other-%d", i)
		if i == pid {
			puuid = s.PUUID
		}
		tps = append(tps, riot.TimelineParticipant{ParticipantID: i, PUUID: puuid})
	}

	return &riot.TimelineResponse{
		Metadata: riot.TimelineMetadata{DataVersion: "2", MatchID: s.ID},
		Info:     riot.TimelineInfo{FrameInterval: 60000, Frames: frames, Participants: tps},
	}
}

// Server is a fake Riot API backed by in-memory match specs.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	players   map[string]string // "name#tag" -> puuid
	matches   map[string]MatchSpec
	failures  map[string]int  // match id -> status returned by the detail endpoint
	malformed map[string]bool // match id -> detail omits the tracked player
	calls     map[string]int  // request path -> count
}

// NewServer starts a fake Riot API. Close it when done.
func NewServer() *Server {
	s := &Server{
		players:   make(map[string]string),
		matches:   make(map[string]MatchSpec),
		failures:  make(map[string]int),
		malformed: make(map[string]bool),
		calls:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /riot/account/v1/accounts/by-riot-id/{name}/{tag}", s.handleAccount)
	mux.HandleFunc("GET /lol/match/v5/matches/by-puuid/{puuid}/ids", s.handleIDs)
	mux.HandleFunc("GET /lol/match/v5/matches/{id}", s.handleMatch)
	mux.HandleFunc("GET /lol/match/v5/matches/{id}/timeline", s.handleTimeline)
	mux.HandleFunc("GET /lol/status/v4/platform-data", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, riot.PlatformStatus{ID: "NA1", Name: "North America"})
	})

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	return s
}

func (s *Server) AddPlayer(name, tag, puuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[name+"#"+tag] = puuid
}

func (s *Server) AddMatch(spec MatchSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[spec.ID] = spec
}

// FailMatch makes the detail endpoint for id answer with status.
func (s *Server) FailMatch(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = status
}

// MalformMatch makes the detail for id omit the tracked player.
func (s *Server) MalformMatch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformed[id] = true
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	name, tag := r.PathValue("name"), r.PathValue("tag")
	s.mu.Lock()
	puuid, ok := s.players[name+"#"+tag]
	s.mu.Unlock()
	if !ok {
		writeStatus(w, http.StatusNotFound, "Data not found - No results found for player with riot id "+name+"#"+tag)
		return
	}
	writeJSON(w, riot.AccountResponse{PUUID: puuid, GameName: name, TagLine: tag})
}

func (s *Server) handleIDs(w http.ResponseWriter, r *http.Request) {
	puuid := r.PathValue("puuid")
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count < 0 || count > 100 {
		writeStatus(w, http.StatusBadRequest, "Bad request - count")
		return
	}

	s.mu.Lock()
	var specs []MatchSpec
	for _, m := range s.matches {
		if m.PUUID == puuid {
			specs = append(specs, m)
		}
	}
	s.mu.Unlock()

	sort.Slice(specs, func(i, j int) bool {
		if !specs[i].CreatedAt.Equal(specs[j].CreatedAt) {
			return specs[i].CreatedAt.After(specs[j].CreatedAt)
		}
		return specs[i].ID > specs[j].ID
	})

	ids := make([]string, 0, count)
	for i := 0; i < len(specs) && i < count; i++ {
		ids = append(ids, specs[i].ID)
	}
	writeJSON(w, ids)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	spec, ok := s.matches[id]
	status := s.failures[id]
	malformed := s.malformed[id]
	s.mu.Unlock()

	switch {
	case status != 0:
		writeStatus(w, status, http.StatusText(status))
	case !ok:
		writeStatus(w, http.StatusNotFound, "Data not found - match file not found")
	case malformed:
		spec.PUUID = "someone-else"
		writeJSON(w, Match(spec))
	default:
		writeJSON(w, Match(spec))
	}
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	spec, ok := s.matches[id]
	s.mu.Unlock()
	if !ok {
		writeStatus(w, http.StatusNotFound, "Data not found - match file not found")
		return
	}
	writeJSON(w, Timeline(spec))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": map[string]any{"message": message, "status_code": status},
	})
}
