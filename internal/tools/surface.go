package tools

import (
	"context"
	"fmt"
	"strings"

	"summoner-insights/internal/analytics"
)

// Tool names are part of the external contract.
const (
	ToolRecentMatches       = "get_recent_matches"
	ToolPerformanceTrends   = "get_performance_trends"
	ToolChampionPerformance = "get_champion_performance"
	ToolDeathPatterns       = "analyze_death_patterns"
	ToolFarmingAnalysis     = "get_farming_analysis"
	ToolMatchTimeline       = "get_match_timeline"
)

// Reports is the analytics engine as seen by the tools.
type Reports interface {
	RecentMatches(ctx context.Context, limit int) ([]analytics.MatchSummary, error)
	PerformanceTrends(ctx context.Context, limit int) (*analytics.PerformanceTrends, error)
	ChampionPerformance(ctx context.Context, limit int, champion string) (*analytics.ChampionPerformance, error)
	DeathPatterns(ctx context.Context, limit int) (*analytics.DeathPatterns, error)
	FarmingAnalysis(ctx context.Context, limit int) (*analytics.FarmingAnalysis, error)
	MatchTimeline(ctx context.Context, matchID string) (*analytics.MatchTimeline, error)
}

// Register adds the six insight tools to h.
func Register(h *Host, r Reports) error {
	tools := []Tool{
		{
			Name:        ToolRecentMatches,
			Description: "Get the player's most recent matches with KDA, CS and items",
			Params:      []Param{limitParam("Number of recent matches to return")},
			Handler: func(ctx context.Context, a Args) (string, any, error) {
				matches, err := r.RecentMatches(ctx, a.Int("limit"))
				if err != nil {
					return "", nil, err
				}
				return recentSummary(matches), matches, nil
			},
		},
		{
			Name:        ToolPerformanceTrends,
			Description: "Compare win rate of the newer half of recent matches against the older half",
			Params:      []Param{limitParam("Number of recent matches to analyze")},
			Handler: func(ctx context.Context, a Args) (string, any, error) {
				pt, err := r.PerformanceTrends(ctx, a.Int("limit"))
				if err != nil {
					return "", nil, err
				}
				return fmt.Sprintf("%s: %.1f%% win rate over the last %d games vs %.1f%% over the %d before",
					pt.Trend, pt.RecentWinRate, pt.RecentCount, pt.PreviousWinRate, pt.PreviousCount), pt, nil
			},
		},
		{
			Name:        ToolChampionPerformance,
			Description: "Per-champion games, win rate, KDA, CS and vision",
			Params: []Param{
				historyParam("Number of recent matches to include; all stored matches when omitted"),
				{Name: "champion", Type: TypeString, Description: "Only report this champion (case-insensitive)"},
			},
			Handler: func(ctx context.Context, a Args) (string, any, error) {
				cp, err := r.ChampionPerformance(ctx, a.Int("limit"), a.String("champion"))
				if err != nil {
					return "", nil, err
				}
				top := cp.Champions[0]
				return fmt.Sprintf("%d champions over %d matches; most played %s (%d games, %.1f%% win rate, %.2f KDA)",
					len(cp.Champions), cp.MatchesAnalyzed, top.Champion, top.Games, top.WinRate, top.AvgKDA), cp, nil
			},
		},
		{
			Name:        ToolDeathPatterns,
			Description: "When and where the player dies: early/mid/late game buckets and map zones",
			Params:      []Param{limitParam("Number of recent matches to analyze")},
			Handler: func(ctx context.Context, a Args) (string, any, error) {
				dp, err := r.DeathPatterns(ctx, a.Int("limit"))
				if err != nil {
					return "", nil, err
				}
				return deathSummary(dp), dp, nil
			},
		},
		{
			Name:        ToolFarmingAnalysis,
			Description: "CS efficiency overall, in wins and in losses, with a 5-minute CS curve",
			Params:      []Param{limitParam("Number of recent matches to analyze")},
			Handler: func(ctx context.Context, a Args) (string, any, error) {
				fa, err := r.FarmingAnalysis(ctx, a.Int("limit"))
				if err != nil {
					return "", nil, err
				}
				return farmingSummary(fa), fa, nil
			},
		},
		{
			Name:        ToolMatchTimeline,
			Description: "Minute-by-minute CS, gold and XP plus the events of one stored match",
			Params: []Param{{
				Name:        "match_id",
				Type:        TypeString,
				Description: "Match id such as NA1_5012345678",
				Required:    true,
				Pattern:     MatchIDPattern,
			}},
			Handler: func(ctx context.Context, a Args) (string, any, error) {
				mt, err := r.MatchTimeline(ctx, strings.ToUpper(a.String("match_id")))
				if err != nil {
					return "", nil, err
				}
				m := mt.Match
				return fmt.Sprintf("%s: %s %s, %d/%d/%d, %d minutes tracked, %d events",
					m.MatchID, m.Champion, outcome(m.Win), m.Kills, m.Deaths, m.Assists,
					len(mt.Snapshots), len(mt.Events)), mt, nil
			},
		},
	}

	for _, t := range tools {
		if err := h.AddTool(t); err != nil {
			return err
		}
	}
	return nil
}

func outcome(win bool) string {
	if win {
		return "win"
	}
	return "loss"
}

func recentSummary(matches []analytics.MatchSummary) string {
	wins := 0
	var kda float64
	for _, m := range matches {
		if m.Win {
			wins++
		}
		kda += m.KDA
	}
	return fmt.Sprintf("Last %d matches: %dW-%dL, average KDA %.2f",
		len(matches), wins, len(matches)-wins, kda/float64(len(matches)))
}

func deathSummary(dp *analytics.DeathPatterns) string {
	if dp.TotalDeaths == 0 {
		return fmt.Sprintf("No deaths recorded over %d matches", dp.MatchesAnalyzed)
	}
	parts := make([]string, len(dp.Buckets))
	for i, b := range dp.Buckets {
		parts[i] = fmt.Sprintf("%.1f%% %s", b.Percentage, b.Phase)
	}
	return fmt.Sprintf("%d deaths over %d matches (%.1f per game): %s",
		dp.TotalDeaths, dp.MatchesAnalyzed, float64(dp.TotalDeaths)/float64(dp.MatchesAnalyzed),
		strings.Join(parts, ", "))
}

func farmingSummary(fa *analytics.FarmingAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Average %.1f CS over %d matches", fa.Overall.AvgCS, fa.MatchesAnalyzed)
	if fa.Overall.AvgCSPerMin != nil {
		fmt.Fprintf(&b, " (%.2f CS/min)", *fa.Overall.AvgCSPerMin)
	}
	if fa.CSDifference != nil {
		fmt.Fprintf(&b, "; wins average %+.1f CS compared to losses", *fa.CSDifference)
	}
	return b.String()
}
