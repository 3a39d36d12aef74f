// Package analytics derives coaching reports from persisted matches. Every
// report reads through one Window and is recomputed on each call.
package analytics

import (
	"context"
	"sort"
	"strings"

	"summoner-insights/internal/fault"
	"summoner-insights/internal/storage"
)

// Game phase boundaries in seconds.
const (
	EarlyGameEnd = 15 * 60
	MidGameEnd   = 25 * 60

	// Map band treated as river/mid lane for death locations.
	riverBandMin = 4000
	riverBandMax = 10000

	progressionStep   = 5 // minutes between CS progression samples
	recentDeathsShown = 5
)

// Reader is the slice of the store the engine needs.
type Reader interface {
	Window(ctx context.Context, opts storage.WindowOptions) (*storage.Window, error)
	MatchTimeline(ctx context.Context, matchID string) (*storage.MatchTimeline, error)
}

type Config struct {
	// TrendTolerance is the win-rate gap in percentage points that must be
	// exceeded before a trend is called improving or declining.
	TrendTolerance float64
}

type Engine struct {
	store Reader
	cfg   Config
}

func New(store Reader, cfg Config) *Engine {
	if cfg.TrendTolerance < 0 {
		cfg.TrendTolerance = 0
	}
	return &Engine{store: store, cfg: cfg}
}

func (e *Engine) window(ctx context.Context, opts storage.WindowOptions) (*storage.Window, error) {
	w, err := e.store.Window(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(w.Matches) == 0 {
		return nil, fault.InsufficientData("no matches stored yet, run a sync first")
	}
	return w, nil
}

// MatchSummary is a stored match with its derived per-game ratios.
type MatchSummary struct {
	storage.Match
	KDA         float64  `json:"kda"`
	CSPerMinute *float64 `json:"cs_per_minute"`
}

func summarize(m storage.Match) MatchSummary {
	s := MatchSummary{Match: m, KDA: m.KDA()}
	if v, ok := m.CSPerMinute(); ok {
		s.CSPerMinute = &v
	}
	return s
}

// RecentMatches returns the limit most recent matches, newest first.
func (e *Engine) RecentMatches(ctx context.Context, limit int) ([]MatchSummary, error) {
	w, err := e.window(ctx, storage.WindowOptions{Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]MatchSummary, len(w.Matches))
	for i, m := range w.Matches {
		out[i] = summarize(m)
	}
	return out, nil
}

type Trend string

const (
	TrendImproving Trend = "Improving"
	TrendDeclining Trend = "Declining"
	TrendStable    Trend = "Stable"
)

type OverallStats struct {
	Games              int     `json:"games"`
	Wins               int     `json:"wins"`
	WinRate            float64 `json:"win_rate"`
	AvgKDA             float64 `json:"avg_kda"`
	AvgCS              float64 `json:"avg_cs"`
	AvgVision          float64 `json:"avg_vision_score"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}

type PerformanceTrends struct {
	MatchesAnalyzed   int          `json:"matches_analyzed"`
	RecentCount       int          `json:"recent_count"`
	PreviousCount     int          `json:"previous_count"`
	RecentWinRate     float64      `json:"recent_win_rate"`
	PreviousWinRate   float64      `json:"previous_win_rate"`
	Trend             Trend        `json:"trend"`
	Tolerance         float64      `json:"tolerance"`
	DistinctChampions int          `json:"distinct_champions"`
	Overall           OverallStats `json:"overall"`
}

// PerformanceTrends compares the win rate of the newer half of the last
// limit matches against the older half. With an odd count the oldest match
// only counts toward the overall figures.
func (e *Engine) PerformanceTrends(ctx context.Context, limit int) (*PerformanceTrends, error) {
	w, err := e.window(ctx, storage.WindowOptions{Limit: limit})
	if err != nil {
		return nil, err
	}
	n := len(w.Matches)
	if n < 2 {
		return nil, fault.InsufficientData("trend analysis needs at least 2 matches, found %d", n)
	}

	k := n / 2
	recent, previous := w.Matches[:k], w.Matches[k:2*k]

	pt := &PerformanceTrends{
		MatchesAnalyzed: n,
		RecentCount:     len(recent),
		PreviousCount:   len(previous),
		RecentWinRate:   winRate(recent),
		PreviousWinRate: winRate(previous),
		Tolerance:       e.cfg.TrendTolerance,
		Overall:         overall(w.Matches),
	}

	switch diff := pt.RecentWinRate - pt.PreviousWinRate; {
	case diff > e.cfg.TrendTolerance:
		pt.Trend = TrendImproving
	case -diff > e.cfg.TrendTolerance:
		pt.Trend = TrendDeclining
	default:
		pt.Trend = TrendStable
	}

	champions := make(map[string]bool)
	for _, m := range w.Matches {
		champions[m.Champion] = true
	}
	pt.DistinctChampions = len(champions)

	return pt, nil
}

func winRate(matches []storage.Match) float64 {
	if len(matches) == 0 {
		return 0
	}
	wins := 0
	for _, m := range matches {
		if m.Win {
			wins++
		}
	}
	return float64(wins) / float64(len(matches)) * 100
}

func overall(matches []storage.Match) OverallStats {
	o := OverallStats{Games: len(matches)}
	if o.Games == 0 {
		return o
	}
	var kda, cs, vision, duration float64
	for _, m := range matches {
		if m.Win {
			o.Wins++
		}
		kda += m.KDA()
		cs += float64(m.CS)
		vision += float64(m.VisionScore)
		duration += float64(m.GameDurationSeconds)
	}
	g := float64(o.Games)
	o.WinRate = float64(o.Wins) / g * 100
	o.AvgKDA = kda / g
	o.AvgCS = cs / g
	o.AvgVision = vision / g
	o.AvgDurationMinutes = duration / g / 60
	return o
}

type ChampionStats struct {
	Champion  string  `json:"champion"`
	Games     int     `json:"games"`
	Wins      int     `json:"wins"`
	WinRate   float64 `json:"win_rate"`
	AvgKDA    float64 `json:"avg_kda"`
	AvgCS     float64 `json:"avg_cs"`
	AvgVision float64 `json:"avg_vision_score"`
}

type ChampionPerformance struct {
	MatchesAnalyzed int             `json:"matches_analyzed"`
	Champions       []ChampionStats `json:"champions"`
}

// ChampionPerformance groups the last limit matches (all when limit <= 0) by
// champion, optionally keeping only one champion. Sorted by games then win
// rate, both descending.
func (e *Engine) ChampionPerformance(ctx context.Context, limit int, champion string) (*ChampionPerformance, error) {
	w, err := e.window(ctx, storage.WindowOptions{Limit: limit})
	if err != nil {
		return nil, err
	}

	type acc struct {
		stats           ChampionStats
		kda, cs, vision float64
	}
	byChampion := make(map[string]*acc)
	for _, m := range w.Matches {
		if champion != "" && !strings.EqualFold(m.Champion, champion) {
			continue
		}
		a, ok := byChampion[m.Champion]
		if !ok {
			a = &acc{stats: ChampionStats{Champion: m.Champion}}
			byChampion[m.Champion] = a
		}
		a.stats.Games++
		if m.Win {
			a.stats.Wins++
		}
		a.kda += m.KDA()
		a.cs += float64(m.CS)
		a.vision += float64(m.VisionScore)
	}

	if len(byChampion) == 0 {
		return nil, fault.InsufficientData("no games on %s in the last %d matches", champion, len(w.Matches))
	}

	cp := &ChampionPerformance{MatchesAnalyzed: len(w.Matches)}
	for _, a := range byChampion {
		g := float64(a.stats.Games)
		a.stats.WinRate = float64(a.stats.Wins) / g * 100
		a.stats.AvgKDA = a.kda / g
		a.stats.AvgCS = a.cs / g
		a.stats.AvgVision = a.vision / g
		cp.Champions = append(cp.Champions, a.stats)
	}

	sort.Slice(cp.Champions, func(i, j int) bool {
		ci, cj := cp.Champions[i], cp.Champions[j]
		if ci.Games != cj.Games {
			return ci.Games > cj.Games
		}
		if ci.WinRate != cj.WinRate {
			return ci.WinRate > cj.WinRate
		}
		return ci.Champion < cj.Champion
	})
	return cp, nil
}

type DeathBucket struct {
	Phase      string  `json:"phase"`
	From       int     `json:"from_seconds"`
	To         *int    `json:"to_seconds"` // exclusive; null for the open-ended late bucket
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type DeathZones struct {
	RiverMid   int `json:"river_mid"`
	JungleSide int `json:"jungle_side"`
	Unknown    int `json:"unknown"`
}

type DeathEvent struct {
	MatchID          string `json:"match_id"`
	TimestampSeconds int    `json:"timestamp_seconds"`
	Minute           int    `json:"minute"`
	X                *int   `json:"x"`
	Y                *int   `json:"y"`
}

type DeathPatterns struct {
	MatchesAnalyzed int           `json:"matches_analyzed"`
	TotalDeaths     int           `json:"total_deaths"`
	Buckets         []DeathBucket `json:"buckets"`
	Zones           DeathZones    `json:"zones"`
	RecentDeaths    []DeathEvent  `json:"recent_deaths"`
}

// DeathPatterns buckets the tracked player's deaths in the last limit
// matches by game phase: early [0,15m), mid [15m,25m), late [25m,∞).
func (e *Engine) DeathPatterns(ctx context.Context, limit int) (*DeathPatterns, error) {
	w, err := e.window(ctx, storage.WindowOptions{Limit: limit, EventTypes: []storage.EventType{storage.EventDeath}})
	if err != nil {
		return nil, err
	}

	early, mid := EarlyGameEnd, MidGameEnd
	dp := &DeathPatterns{
		MatchesAnalyzed: len(w.Matches),
		Buckets: []DeathBucket{
			{Phase: "early", From: 0, To: &early},
			{Phase: "mid", From: EarlyGameEnd, To: &mid},
			{Phase: "late", From: MidGameEnd},
		},
		RecentDeaths: []DeathEvent{},
	}

	rank := make(map[string]int, len(w.Matches)) // 0 = newest
	for i, m := range w.Matches {
		rank[m.MatchID] = i
	}

	var deaths []storage.TimelineEvent
	for _, ev := range w.Events {
		if ev.Type != storage.EventDeath {
			continue
		}
		if _, ok := rank[ev.MatchID]; !ok {
			continue
		}
		deaths = append(deaths, ev)

		switch {
		case ev.TimestampSeconds < EarlyGameEnd:
			dp.Buckets[0].Count++
		case ev.TimestampSeconds < MidGameEnd:
			dp.Buckets[1].Count++
		default:
			dp.Buckets[2].Count++
		}

		switch {
		case ev.LocationX == nil || ev.LocationY == nil:
			dp.Zones.Unknown++
		case inRiverBand(*ev.LocationX) && inRiverBand(*ev.LocationY):
			dp.Zones.RiverMid++
		default:
			dp.Zones.JungleSide++
		}
	}

	dp.TotalDeaths = len(deaths)
	if dp.TotalDeaths > 0 {
		for i := range dp.Buckets {
			dp.Buckets[i].Percentage = float64(dp.Buckets[i].Count) / float64(dp.TotalDeaths) * 100
		}
	}

	// newest match first, latest death first within a match
	sort.SliceStable(deaths, func(i, j int) bool {
		ri, rj := rank[deaths[i].MatchID], rank[deaths[j].MatchID]
		if ri != rj {
			return ri < rj
		}
		return deaths[i].TimestampSeconds > deaths[j].TimestampSeconds
	})
	for i := 0; i < len(deaths) && i < recentDeathsShown; i++ {
		d := deaths[i]
		dp.RecentDeaths = append(dp.RecentDeaths, DeathEvent{
			MatchID:          d.MatchID,
			TimestampSeconds: d.TimestampSeconds,
			Minute:           d.TimestampSeconds / 60,
			X:                d.LocationX,
			Y:                d.LocationY,
		})
	}

	return dp, nil
}

func inRiverBand(v int) bool {
	return v >= riverBandMin && v <= riverBandMax
}

type FarmingSubset struct {
	Games       int      `json:"games"`
	AvgCS       float64  `json:"avg_cs"`
	AvgCSPerMin *float64 `json:"avg_cs_per_min"`
}

type ChampionCS struct {
	Champion string  `json:"champion"`
	Games    int     `json:"games"`
	AvgCS    float64 `json:"avg_cs"`
}

type ProgressionPoint struct {
	Minute      int     `json:"minute"`
	AvgCS       float64 `json:"avg_cs"`
	CSPerMinute float64 `json:"cs_per_minute"` // rate since the previous point
	Samples     int     `json:"samples"`
}

type FarmingAnalysis struct {
	MatchesAnalyzed int                `json:"matches_analyzed"`
	TotalCS         int                `json:"total_cs"`
	Overall         FarmingSubset      `json:"overall"`
	Wins            *FarmingSubset     `json:"wins"`
	Losses          *FarmingSubset     `json:"losses"`
	CSDifference    *float64           `json:"cs_difference"` // wins minus losses
	ByChampion      []ChampionCS       `json:"by_champion"`
	Progression     []ProgressionPoint `json:"progression"`
}

// FarmingAnalysis reports CS efficiency over the last limit matches, split
// by outcome, with an averaged CS curve sampled every five minutes.
func (e *Engine) FarmingAnalysis(ctx context.Context, limit int) (*FarmingAnalysis, error) {
	w, err := e.window(ctx, storage.WindowOptions{Limit: limit, Snapshots: true})
	if err != nil {
		return nil, err
	}

	var wins, losses []storage.Match
	for _, m := range w.Matches {
		if m.Win {
			wins = append(wins, m)
		} else {
			losses = append(losses, m)
		}
	}

	fa := &FarmingAnalysis{
		MatchesAnalyzed: len(w.Matches),
		Overall:         *farmingSubset(w.Matches),
		Wins:            farmingSubset(wins),
		Losses:          farmingSubset(losses),
		ByChampion:      csByChampion(w.Matches),
		Progression:     progression(w.Snapshots),
	}
	for _, m := range w.Matches {
		fa.TotalCS += m.CS
	}
	if fa.Wins != nil && fa.Losses != nil {
		diff := fa.Wins.AvgCS - fa.Losses.AvgCS
		fa.CSDifference = &diff
	}
	return fa, nil
}

// farmingSubset returns nil for an empty subset.
func farmingSubset(matches []storage.Match) *FarmingSubset {
	if len(matches) == 0 {
		return nil
	}
	fs := &FarmingSubset{Games: len(matches)}

	var total, perMinTotal float64
	perMinGames := 0
	for _, m := range matches {
		total += float64(m.CS)
		if v, ok := m.CSPerMinute(); ok {
			perMinTotal += v
			perMinGames++
		}
	}
	fs.AvgCS = total / float64(len(matches))
	if perMinGames > 0 {
		avg := perMinTotal / float64(perMinGames)
		fs.AvgCSPerMin = &avg
	}
	return fs
}

func csByChampion(matches []storage.Match) []ChampionCS {
	index := make(map[string]int)
	var out []ChampionCS
	for _, m := range matches {
		i, ok := index[m.Champion]
		if !ok {
			i = len(out)
			index[m.Champion] = i
			out = append(out, ChampionCS{Champion: m.Champion})
		}
		out[i].Games++
		out[i].AvgCS += float64(m.CS)
	}
	for i := range out {
		out[i].AvgCS /= float64(out[i].Games)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Games != out[j].Games {
			return out[i].Games > out[j].Games
		}
		return out[i].Champion < out[j].Champion
	})
	return out
}

func progression(snapshots []storage.TimelineSnapshot) []ProgressionPoint {
	type acc struct {
		total   float64
		samples int
	}
	byMinute := make(map[int]*acc)
	for _, s := range snapshots {
		if s.Minute%progressionStep != 0 {
			continue
		}
		a, ok := byMinute[s.Minute]
		if !ok {
			a = &acc{}
			byMinute[s.Minute] = a
		}
		a.total += float64(s.CS)
		a.samples++
	}

	minutes := make([]int, 0, len(byMinute))
	for m := range byMinute {
		minutes = append(minutes, m)
	}
	sort.Ints(minutes)

	points := make([]ProgressionPoint, 0, len(minutes))
	prevMinute, prevCS := 0, 0.0
	for _, m := range minutes {
		a := byMinute[m]
		p := ProgressionPoint{Minute: m, AvgCS: a.total / float64(a.samples), Samples: a.samples}
		if m > prevMinute {
			p.CSPerMinute = (p.AvgCS - prevCS) / float64(m-prevMinute)
		}
		prevMinute, prevCS = m, p.AvgCS
		points = append(points, p)
	}
	return points
}

type MinuteDelta struct {
	Minute int `json:"minute"`
	CS     int `json:"cs"`
	Gold   int `json:"gold"`
	XP     int `json:"xp"`
}

type MatchTimeline struct {
	Match     MatchSummary               `json:"match"`
	Snapshots []storage.TimelineSnapshot `json:"snapshots"`
	Events    []storage.TimelineEvent    `json:"events"`
	Deltas    []MinuteDelta              `json:"deltas"`
}

// MatchTimeline returns a stored match with its snapshots by minute, its
// events by time, and the per-minute gains between consecutive snapshots.
func (e *Engine) MatchTimeline(ctx context.Context, matchID string) (*MatchTimeline, error) {
	mt, err := e.store.MatchTimeline(ctx, matchID)
	if err != nil {
		return nil, err
	}

	out := &MatchTimeline{
		Match:     summarize(mt.Match),
		Snapshots: mt.Snapshots,
		Events:    mt.Events,
		Deltas:    []MinuteDelta{},
	}
	if out.Snapshots == nil {
		out.Snapshots = []storage.TimelineSnapshot{}
	}
	if out.Events == nil {
		out.Events = []storage.TimelineEvent{}
	}
	for i := 1; i < len(mt.Snapshots); i++ {
		prev, cur := mt.Snapshots[i-1], mt.Snapshots[i]
		out.Deltas = append(out.Deltas, MinuteDelta{
			Minute: cur.Minute,
			CS:     cur.CS - prev.CS,
			Gold:   cur.Gold - prev.Gold,
			XP:     cur.XP - prev.XP,
		})
	}
	return out, nil
}
