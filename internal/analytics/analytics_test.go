package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"testing"
	"time"

	"summoner-insights/internal/fault"
	"summoner-insights/internal/storage"
)

var start = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// memReader serves windows from memory with the same ordering and limit
// rules as the real stores.
type memReader struct {
	matches   []storage.Match
	events    []storage.TimelineEvent
	snapshots []storage.TimelineSnapshot
	lastOpts  storage.WindowOptions
}

func (r *memReader) Window(_ context.Context, opts storage.WindowOptions) (*storage.Window, error) {
	r.lastOpts = opts
	matches := append([]storage.Match(nil), r.matches...)
	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].PlayedAt.Equal(matches[j].PlayedAt) {
			return matches[i].PlayedAt.After(matches[j].PlayedAt)
		}
		return matches[i].MatchID > matches[j].MatchID
	})
	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	in := map[string]bool{}
	for _, m := range matches {
		in[m.MatchID] = true
	}

	w := &storage.Window{Matches: matches}
	wanted := map[storage.EventType]bool{}
	for _, t := range opts.EventTypes {
		wanted[t] = true
	}
	for _, e := range r.events {
		if in[e.MatchID] && wanted[e.Type] {
			w.Events = append(w.Events, e)
		}
	}
	if opts.Snapshots {
		for _, s := range r.snapshots {
			if in[s.MatchID] {
				w.Snapshots = append(w.Snapshots, s)
			}
		}
	}
	return w, nil
}

func (r *memReader) MatchTimeline(_ context.Context, id string) (*storage.MatchTimeline, error) {
	for _, m := range r.matches {
		if m.MatchID == id {
			mt := &storage.MatchTimeline{Match: m}
			for _, s := range r.snapshots {
				if s.MatchID == id {
					mt.Snapshots = append(mt.Snapshots, s)
				}
			}
			for _, e := range r.events {
				if e.MatchID == id {
					mt.Events = append(mt.Events, e)
				}
			}
			return mt, nil
		}
	}
	return nil, fault.NotFound("match %s is not stored", id)
}

// add appends a match played i hours after start.
func (r *memReader) add(i int, champion string, win bool, cs int) storage.Match {
	m := storage.Match{
		MatchID:             fmt.Sprintf("NA1_%d", 1000+i),
		Champion:            champion,
		Role:                "MIDDLE",
		Win:                 win,
		GameDurationSeconds: 1800,
		Kills:               4,
		Deaths:              2,
		Assists:             6,
		CS:                  cs,
		VisionScore:         20,
		Items:               []int{},
		PlayedAt:            start.Add(time.Duration(i) * time.Hour),
	}
	r.matches = append(r.matches, m)
	return m
}

func (r *memReader) death(matchID string, seconds int, x, y *int) {
	r.events = append(r.events, storage.TimelineEvent{
		MatchID: matchID, Seq: len(r.events), TimestampSeconds: seconds,
		Type: storage.EventDeath, LocationX: x, LocationY: y,
	})
}

func intp(v int) *int { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEmptyWindowIsInsufficientData(t *testing.T) {
	e := New(&memReader{}, Config{})
	ctx := context.Background()

	checks := map[string]func() error{
		"recent":    func() error { _, err := e.RecentMatches(ctx, 10); return err },
		"trends":    func() error { _, err := e.PerformanceTrends(ctx, 10); return err },
		"champions": func() error { _, err := e.ChampionPerformance(ctx, 10, ""); return err },
		"deaths":    func() error { _, err := e.DeathPatterns(ctx, 10); return err },
		"farming":   func() error { _, err := e.FarmingAnalysis(ctx, 10); return err },
	}
	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			if err := call(); !fault.Is(err, fault.KindInsufficientData) {
				t.Errorf("expected insufficient_data, got %v", err)
			}
		})
	}
}

func TestRecentMatches(t *testing.T) {
	r := &memReader{}
	for i := 0; i < 4; i++ {
		r.add(i, "Ahri", true, 200)
	}
	r.matches[3].Kills, r.matches[3].Deaths, r.matches[3].Assists = 10, 2, 5
	r.matches[2].GameDurationSeconds = 0

	got, err := New(r, Config{}).RecentMatches(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	if got[0].MatchID != "NA1_1003" || got[2].MatchID != "NA1_1001" {
		t.Errorf("unexpected order %s..%s", got[0].MatchID, got[2].MatchID)
	}
	if !near(got[0].KDA, 7.5) {
		t.Errorf("KDA = %v, want 7.5", got[0].KDA)
	}
	if got[1].CSPerMinute != nil {
		t.Errorf("zero-length game should have no cs/min, got %v", *got[1].CSPerMinute)
	}
	if got[0].CSPerMinute == nil || !near(*got[0].CSPerMinute, 200.0/30) {
		t.Errorf("cs/min = %v", got[0].CSPerMinute)
	}
}

func TestPerformanceTrends(t *testing.T) {
	tests := []struct {
		name      string
		wins      []bool // oldest first
		tolerance float64
		trend     Trend
		recent    float64
		previous  float64
	}{
		{"improving", []bool{false, false, true, true}, 0, TrendImproving, 100, 0},
		{"declining", []bool{true, true, false, true}, 0, TrendDeclining, 50, 100},
		{"stable", []bool{true, false, false, true}, 0, TrendStable, 50, 50},
		{"within tolerance", []bool{false, false, true, true}, 100, TrendStable, 100, 0},
		{"odd count drops oldest", []bool{true, false, false, true, true}, 0, TrendImproving, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &memReader{}
			for i, w := range tt.wins {
				r.add(i, "Ahri", w, 150)
			}
			pt, err := New(r, Config{TrendTolerance: tt.tolerance}).PerformanceTrends(context.Background(), 20)
			if err != nil {
				t.Fatal(err)
			}
			if pt.Trend != tt.trend {
				t.Errorf("trend = %s, want %s", pt.Trend, tt.trend)
			}
			if !near(pt.RecentWinRate, tt.recent) || !near(pt.PreviousWinRate, tt.previous) {
				t.Errorf("win rates = %v / %v, want %v / %v", pt.RecentWinRate, pt.PreviousWinRate, tt.recent, tt.previous)
			}
			if pt.RecentCount != len(tt.wins)/2 || pt.PreviousCount != len(tt.wins)/2 {
				t.Errorf("split = %d/%d", pt.RecentCount, pt.PreviousCount)
			}
			if pt.Overall.Games != len(tt.wins) {
				t.Errorf("overall games = %d", pt.Overall.Games)
			}
		})
	}
}

func TestPerformanceTrends_SingleMatch(t *testing.T) {
	r := &memReader{}
	r.add(0, "Ahri", true, 150)
	if _, err := New(r, Config{}).PerformanceTrends(context.Background(), 10); !fault.Is(err, fault.KindInsufficientData) {
		t.Errorf("expected insufficient_data, got %v", err)
	}
}

func TestPerformanceTrends_Overall(t *testing.T) {
	r := &memReader{}
	r.add(0, "Ahri", true, 100)
	r.add(1, "Zed", false, 200)

	pt, err := New(r, Config{}).PerformanceTrends(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	o := pt.Overall
	if o.Wins != 1 || !near(o.WinRate, 50) || !near(o.AvgCS, 150) || !near(o.AvgKDA, 5) || !near(o.AvgDurationMinutes, 30) {
		t.Errorf("unexpected overall %+v", o)
	}
	if pt.DistinctChampions != 2 {
		t.Errorf("distinct champions = %d", pt.DistinctChampions)
	}
}

func TestChampionPerformance(t *testing.T) {
	r := &memReader{}
	r.add(0, "Zed", true, 150)
	r.add(1, "Ahri", false, 150)
	r.add(2, "Ahri", true, 150)
	r.add(3, "Lux", true, 150)
	r.add(4, "Ahri", true, 150)
	r.add(5, "Annie", true, 150)
	e := New(r, Config{})
	ctx := context.Background()

	cp, err := e.ChampionPerformance(ctx, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Ahri", "Annie", "Lux", "Zed"}
	if len(cp.Champions) != len(want) {
		t.Fatalf("got %d champions", len(cp.Champions))
	}
	for i, c := range cp.Champions {
		if c.Champion != want[i] {
			t.Errorf("position %d = %s, want %s", i, c.Champion, want[i])
		}
	}
	ahri := cp.Champions[0]
	if ahri.Games != 3 || ahri.Wins != 2 || !near(ahri.WinRate, 200.0/3) {
		t.Errorf("unexpected Ahri stats %+v", ahri)
	}

	filtered, err := e.ChampionPerformance(ctx, 0, "aHRi")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered.Champions) != 1 || filtered.Champions[0].Champion != "Ahri" {
		t.Errorf("filter returned %+v", filtered.Champions)
	}

	// the two most recent games exclude Zed
	if _, err := e.ChampionPerformance(ctx, 2, "Zed"); !fault.Is(err, fault.KindInsufficientData) {
		t.Errorf("expected insufficient_data, got %v", err)
	}
	if r.lastOpts.Limit != 2 {
		t.Errorf("window limit = %d", r.lastOpts.Limit)
	}
}

func TestDeathPatterns(t *testing.T) {
	r := &memReader{}
	older := r.add(0, "Ahri", true, 150)
	newer := r.add(1, "Ahri", false, 150)

	r.death(older.MatchID, 0, intp(5000), intp(5000))    // early, river
	r.death(older.MatchID, 899, intp(2000), intp(9000))  // early, jungle
	r.death(older.MatchID, 900, nil, nil)                // mid, unknown
	r.death(newer.MatchID, 1499, intp(10000), intp(4000)) // mid, river edge
	r.death(newer.MatchID, 1500, intp(10001), intp(5000)) // late, side
	r.death(newer.MatchID, 2400, intp(7000), intp(7000))  // late, river

	dp, err := New(r, Config{}).DeathPatterns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if dp.TotalDeaths != 6 || dp.MatchesAnalyzed != 2 {
		t.Fatalf("total %d over %d matches", dp.TotalDeaths, dp.MatchesAnalyzed)
	}

	wantCounts := []int{2, 2, 2}
	for i, b := range dp.Buckets {
		if b.Count != wantCounts[i] {
			t.Errorf("%s bucket = %d, want %d", b.Phase, b.Count, wantCounts[i])
		}
		if !near(b.Percentage, 100.0/3) {
			t.Errorf("%s percentage = %v", b.Phase, b.Percentage)
		}
	}
	if dp.Buckets[2].To != nil {
		t.Error("late bucket should be open ended")
	}

	if dp.Zones != (DeathZones{RiverMid: 3, JungleSide: 2, Unknown: 1}) {
		t.Errorf("zones = %+v", dp.Zones)
	}

	if len(dp.RecentDeaths) != 5 {
		t.Fatalf("expected 5 recent deaths, got %d", len(dp.RecentDeaths))
	}
	first := dp.RecentDeaths[0]
	if first.MatchID != newer.MatchID || first.TimestampSeconds != 2400 || first.Minute != 40 {
		t.Errorf("most recent death = %+v", first)
	}
	if last := dp.RecentDeaths[4]; last.TimestampSeconds != 899 {
		t.Errorf("fifth death = %+v", last)
	}

	if len(r.lastOpts.EventTypes) != 1 || r.lastOpts.EventTypes[0] != storage.EventDeath {
		t.Errorf("window should only read deaths, got %v", r.lastOpts.EventTypes)
	}
}

func TestDeathPatterns_NoDeaths(t *testing.T) {
	r := &memReader{}
	r.add(0, "Ahri", true, 150)

	dp, err := New(r, Config{}).DeathPatterns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if dp.TotalDeaths != 0 || len(dp.RecentDeaths) != 0 {
		t.Errorf("unexpected %+v", dp)
	}
	for _, b := range dp.Buckets {
		if b.Percentage != 0 {
			t.Errorf("%s percentage = %v", b.Phase, b.Percentage)
		}
	}
}

func TestFarmingAnalysis(t *testing.T) {
	r := &memReader{}
	r.add(0, "Ahri", true, 160)
	r.add(1, "Ahri", true, 170)
	r.add(2, "Zed", false, 140)
	r.add(3, "Zed", false, 150)

	fa, err := New(r, Config{}).FarmingAnalysis(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if fa.Wins == nil || fa.Losses == nil || fa.CSDifference == nil {
		t.Fatalf("missing subsets %+v", fa)
	}
	if !near(fa.Wins.AvgCS, 165) || !near(fa.Losses.AvgCS, 145) || !near(*fa.CSDifference, 20) {
		t.Errorf("wins %v, losses %v, diff %v", fa.Wins.AvgCS, fa.Losses.AvgCS, *fa.CSDifference)
	}
	if !near(fa.Overall.AvgCS, 155) || fa.TotalCS != 620 {
		t.Errorf("overall %v, total %d", fa.Overall.AvgCS, fa.TotalCS)
	}
	if fa.Wins.AvgCSPerMin == nil || !near(*fa.Wins.AvgCSPerMin, 5.5) {
		t.Errorf("wins cs/min = %v", fa.Wins.AvgCSPerMin)
	}
	if len(fa.ByChampion) != 2 || fa.ByChampion[0].Champion != "Ahri" || !near(fa.ByChampion[1].AvgCS, 145) {
		t.Errorf("by champion = %+v", fa.ByChampion)
	}
}

func TestFarmingAnalysis_OnlyWins(t *testing.T) {
	r := &memReader{}
	r.add(0, "Ahri", true, 160)
	r.matches[0].GameDurationSeconds = 0

	fa, err := New(r, Config{}).FarmingAnalysis(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if fa.Losses != nil || fa.CSDifference != nil {
		t.Errorf("losses should be null, got %+v / %v", fa.Losses, fa.CSDifference)
	}
	if fa.Overall.AvgCSPerMin != nil {
		t.Errorf("zero-length games should leave cs/min null, got %v", *fa.Overall.AvgCSPerMin)
	}
}

func TestFarmingAnalysis_Progression(t *testing.T) {
	r := &memReader{}
	a := r.add(0, "Ahri", true, 160)
	b := r.add(1, "Ahri", true, 160)
	for m := 0; m <= 12; m++ {
		r.snapshots = append(r.snapshots,
			storage.TimelineSnapshot{MatchID: a.MatchID, Minute: m, CS: 6 * m},
			storage.TimelineSnapshot{MatchID: b.MatchID, Minute: m, CS: 8 * m},
		)
	}

	fa, err := New(r, Config{}).FarmingAnalysis(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if !r.lastOpts.Snapshots {
		t.Error("farming should read snapshots")
	}

	want := []ProgressionPoint{
		{Minute: 0, AvgCS: 0, CSPerMinute: 0, Samples: 2},
		{Minute: 5, AvgCS: 35, CSPerMinute: 7, Samples: 2},
		{Minute: 10, AvgCS: 70, CSPerMinute: 7, Samples: 2},
	}
	if len(fa.Progression) != len(want) {
		t.Fatalf("progression = %+v", fa.Progression)
	}
	for i, p := range fa.Progression {
		if p.Minute != want[i].Minute || !near(p.AvgCS, want[i].AvgCS) ||
			!near(p.CSPerMinute, want[i].CSPerMinute) || p.Samples != want[i].Samples {
			t.Errorf("point %d = %+v, want %+v", i, p, want[i])
		}
	}
}

func TestMatchTimeline(t *testing.T) {
	r := &memReader{}
	m := r.add(0, "Ahri", true, 160)
	for minute := 0; minute <= 2; minute++ {
		r.snapshots = append(r.snapshots, storage.TimelineSnapshot{
			MatchID: m.MatchID, Minute: minute, CS: 7 * minute, Gold: 500 + 350*minute, XP: 400 * minute,
		})
	}
	r.death(m.MatchID, 90, intp(1), intp(1))
	e := New(r, Config{})

	mt, err := e.MatchTimeline(context.Background(), m.MatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(mt.Deltas) != 2 {
		t.Fatalf("deltas = %+v", mt.Deltas)
	}
	if d := mt.Deltas[1]; d.Minute != 2 || d.CS != 7 || d.Gold != 350 || d.XP != 400 {
		t.Errorf("delta = %+v", d)
	}
	if len(mt.Events) != 1 || !near(mt.Match.KDA, 5) {
		t.Errorf("unexpected timeline %+v", mt)
	}

	if _, err := e.MatchTimeline(context.Background(), "NA1_1"); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}
