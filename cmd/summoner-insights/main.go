// Command summoner-insights ingests a player's League of Legends match
// history and serves coaching reports over MCP or HTTP.
//
// Usage:
//
//	summoner-insights sync --count 20
//	summoner-insights watch
//	summoner-insights serve mcp
//	summoner-insights serve http
//	summoner-insights report get_performance_trends limit=20
//	summoner-insights validate-key
//	summoner-insights delete-match NA1_5012345678
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"summoner-insights/internal/analytics"
	"summoner-insights/internal/collector"
	"summoner-insights/internal/config"
	"summoner-insights/internal/db"
	"summoner-insights/internal/metrics"
	"summoner-insights/internal/riot"
	"summoner-insights/internal/tools"
)

var version = "dev"

var envPaths = []string{".env", "../.env", "../../.env"}

func main() {
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	var configPath string
	root := &cobra.Command{
		Use:           "summoner-insights",
		Short:         "League of Legends match history insights",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SUMMONER_INSIGHTS_CONFIG"), "Path to a YAML config file")

	root.AddCommand(syncCmd(&configPath))
	root.AddCommand(watchCmd(&configPath))
	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(reportCmd(&configPath))
	root.AddCommand(validateKeyCmd(&configPath))
	root.AddCommand(deleteMatchCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// newApp loads configuration and builds the stderr logger. stdout is kept
// free for command output and the MCP transport.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return &app{cfg: cfg, logger: logger, metrics: metrics.New()}, nil
}

// run handles config loading, signal handling and the store lifecycle.
func run(configPath string, fn func(ctx context.Context, a *app, store db.Store) error) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	ctx, stop := collector.SignalContext(context.Background(), a.logger)
	defer stop()

	store, err := db.Open(ctx, db.Config{
		Driver:    a.cfg.Database.Driver,
		URL:       a.cfg.Database.URL,
		AuthToken: a.cfg.Database.AuthToken,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("closing store", "error", err)
		}
	}()

	return fn(ctx, a, store)
}

func (a *app) riotClient() (*riot.Client, error) {
	if err := a.cfg.RequireRiot(); err != nil {
		return nil, err
	}
	opts := []riot.ClientOption{
		riot.WithRateLimits(a.cfg.Riot.RatePerSecond, a.cfg.Riot.RatePer2Minutes),
		riot.WithMetrics(a.metrics),
		riot.WithLogger(a.logger),
	}
	if q := a.cfg.Riot.Queue; q > 0 {
		opts = append(opts, riot.WithQueue(q))
	}
	return riot.NewClient(a.cfg.Riot.APIKey, a.cfg.Riot.Region, opts...)
}

// toolHost registers every insight tool against an engine reading store.
func (a *app) toolHost(store db.Store) (*tools.Host, error) {
	engine := analytics.New(store, analytics.Config{TrendTolerance: a.cfg.Analytics.TrendTolerance})
	host := tools.NewHost(tools.WithMetrics(a.metrics), tools.WithLogger(a.logger))
	if err := tools.Register(host, engine); err != nil {
		return nil, err
	}
	return host, nil
}

// playerFlags selects the tracked player. Without flags the configured
// RIOT_USERNAME and RIOT_TAGLINE are resolved.
type playerFlags struct {
	riotID string
	puuid  string
}

func (p *playerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.riotID, "riot-id", "", "Riot ID of the player, e.g. 'Player#NA1'")
	cmd.Flags().StringVar(&p.puuid, "puuid", "", "PUUID of the player (skips the account lookup)")
}

func (p *playerFlags) resolve(ctx context.Context, a *app, client *riot.Client) (string, error) {
	if p.puuid != "" {
		return p.puuid, nil
	}

	name, tag := a.cfg.Riot.Username, a.cfg.Riot.Tagline
	if p.riotID != "" {
		var err error
		if name, tag, err = riot.ParseRiotID(p.riotID); err != nil {
			return "", err
		}
	} else if err := a.cfg.RequirePlayer(); err != nil {
		return "", err
	}

	puuid, err := client.ResolvePlayer(ctx, name, tag, a.cfg.Riot.Region)
	if err != nil {
		return "", err
	}
	a.logger.Info("player resolved", "riot_id", name+"#"+tag, "puuid", puuid)
	return puuid, nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(b))
	return err
}
