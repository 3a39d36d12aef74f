package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"summoner-insights/internal/api"
	"summoner-insights/internal/collector"
	"summoner-insights/internal/db"
	"summoner-insights/internal/discord"
	"summoner-insights/internal/mcpserver"
	"summoner-insights/internal/riot"
	"summoner-insights/internal/storage"
	"summoner-insights/internal/tools"
)

// --------------------------------------------------------------------------
// sync / watch
// --------------------------------------------------------------------------

// newSyncer wires the archive when ARCHIVE_DIR is set. The returned rotator
// may be nil; callers close it when it is not.
func newSyncer(a *app, client *riot.Client, store db.Store) (*collector.Syncer, *storage.FileRotator, error) {
	opts := []collector.SyncerOption{
		collector.WithSyncMetrics(a.metrics),
		collector.WithSyncLogger(a.logger),
	}

	var rotator *storage.FileRotator
	if dir := a.cfg.Sync.ArchiveDir; dir != "" {
		var err error
		rotator, err = storage.NewFileRotator(dir, storage.WithRotatorLogger(a.logger))
		if err != nil {
			return nil, nil, fmt.Errorf("open archive: %w", err)
		}
		opts = append(opts, collector.WithArchive(rotator))
	}
	return collector.NewSyncer(client, store, opts...), rotator, nil
}

func syncCmd(configPath *string) *cobra.Command {
	var player playerFlags
	var count int
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Ingest the player's most recent matches once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath, func(ctx context.Context, a *app, store db.Store) error {
				client, err := a.riotClient()
				if err != nil {
					return err
				}
				puuid, err := player.resolve(ctx, a, client)
				if err != nil {
					return err
				}
				syncer, rotator, err := newSyncer(a, client, store)
				if err != nil {
					return err
				}
				if rotator != nil {
					defer rotator.Close()
				}

				if count == 0 {
					count = a.cfg.Sync.Count
				}
				report, err := syncer.Sync(ctx, puuid, count)
				if report != nil {
					if perr := printJSON(report); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	player.register(cmd)
	cmd.Flags().IntVar(&count, "count", 0, "Number of recent matches to check (default SYNC_COUNT)")
	return cmd
}

func watchCmd(configPath *string) *cobra.Command {
	var player playerFlags
	var count int
	var interval time.Duration
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath, func(ctx context.Context, a *app, store db.Store) error {
				client, err := a.riotClient()
				if err != nil {
					return err
				}
				puuid, err := player.resolve(ctx, a, client)
				if err != nil {
					return err
				}
				syncer, rotator, err := newSyncer(a, client, store)
				if err != nil {
					return err
				}

				if count == 0 {
					count = a.cfg.Sync.Count
				}
				if interval == 0 {
					interval = a.cfg.Sync.WatchInterval
				}

				opts := []collector.WatcherOption{collector.WithWatcherLogger(a.logger)}
				if url := a.cfg.DiscordWebhookURL; url != "" {
					opts = append(opts, collector.WithNotifier(discord.NewWebhookClient(url, a.logger)))
				}
				if rotator != nil {
					defer rotator.Close()
					opts = append(opts, collector.WithCompactor(rotator))
				}

				if metricsAddr != "" {
					mux := http.NewServeMux()
					mux.Handle("/metrics", a.metrics.Handler())
					srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
					go func() {
						if err := api.Serve(ctx, srv, a.logger); err != nil {
							a.logger.Error("metrics server stopped", "error", err)
						}
					}()
				}

				return collector.NewWatcher(syncer, puuid, count, interval, opts...).Run(ctx)
			})
		},
	}
	player.register(cmd)
	cmd.Flags().IntVar(&count, "count", 0, "Number of recent matches to check per run (default SYNC_COUNT)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between runs (default WATCH_INTERVAL)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. ':9090'")
	return cmd
}

// --------------------------------------------------------------------------
// serve
// --------------------------------------------------------------------------

func serveCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the insight tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath, func(ctx context.Context, a *app, store db.Store) error {
				host, err := a.toolHost(store)
				if err != nil {
					return err
				}
				a.logger.Info("mcp server starting", "tools", len(host.Tools()))
				return mcpserver.ServeStdio(ctx, mcpserver.New(host, version), os.Stdin, os.Stdout, a.logger)
			})
		},
	})

	var addr string
	httpCmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the tools as a JSON HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*configPath, func(ctx context.Context, a *app, store db.Store) error {
				host, err := a.toolHost(store)
				if err != nil {
					return err
				}
				if addr == "" {
					addr = a.cfg.HTTP.Addr
				}
				router := api.NewRouter(host, store, a.metrics, api.Config{
					CORSAllowOrigins:  a.cfg.HTTP.CORSAllowOrigins,
					RateLimitRequests: a.cfg.HTTP.RateLimitRequests,
					RateLimitWindow:   a.cfg.HTTP.RateLimitWindow,
				}, a.logger)
				srv := &http.Server{
					Addr:              addr,
					Handler:           router,
					ReadHeaderTimeout: 10 * time.Second,
				}
				return api.Serve(ctx, srv, a.logger)
			})
		},
	}
	httpCmd.Flags().StringVar(&addr, "addr", "", "Listen address (default HTTP_ADDR)")
	cmd.AddCommand(httpCmd)
	return cmd
}

// --------------------------------------------------------------------------
// report / validate-key / delete-match
// --------------------------------------------------------------------------

func reportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "report <tool> [name=value ...]",
		Short: "Run one insight tool against the local store and print its JSON",
		Example: "  summoner-insights report get_champion_performance limit=30 champion=Jinx\n" +
			"  summoner-insights report get_match_timeline match_id=NA1_5012345678",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseToolArgs(args[1:])
			if err != nil {
				return err
			}
			return run(*configPath, func(ctx context.Context, a *app, store db.Store) error {
				host, err := a.toolHost(store)
				if err != nil {
					return err
				}
				resp := host.Call(ctx, args[0], raw)
				if err := printJSON(resp); err != nil {
					return err
				}
				if !resp.OK {
					return fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
				}
				return nil
			})
		},
	}
}

// parseToolArgs turns name=value pairs into raw tool arguments. Values stay
// strings; the tool host converts numeric strings for integer parameters.
func parseToolArgs(pairs []string) (map[string]any, error) {
	raw := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("argument %q is not name=value", p)
		}
		raw[name] = value
	}
	return raw, nil
}

func validateKeyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-key",
		Short: "Check that RIOT_API_KEY is accepted by Riot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			if err := a.cfg.RequireRiot(); err != nil {
				return err
			}
			ctx, stop := collector.SignalContext(context.Background(), a.logger)
			defer stop()

			validator := riot.NewKeyValidator(riot.WithPlatform(a.cfg.Riot.Region))
			check, err := validator.Check(ctx, a.cfg.Riot.APIKey)
			masked := riot.MaskAPIKey(a.cfg.Riot.APIKey)
			if err != nil {
				return fmt.Errorf("could not validate %s: %w", masked, err)
			}
			if err := printJSON(check); err != nil {
				return err
			}
			if !check.Valid {
				return fmt.Errorf("key %s was rejected by %s (status %d)", masked, check.Platform, check.Status)
			}
			a.logger.Info("key accepted", "key", masked, "platform", check.Platform, "latency", check.Latency)
			return nil
		},
	}
}

func deleteMatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-match <match_id>",
		Short: "Remove a stored match with its snapshots and events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.ToUpper(strings.TrimSpace(args[0]))
			if !tools.MatchIDPattern.MatchString(id) {
				return fmt.Errorf("%q is not a match id like NA1_5012345678", args[0])
			}
			return run(*configPath, func(ctx context.Context, a *app, store db.Store) error {
				deleted, err := store.DeleteMatch(ctx, id)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("match %s is not stored", id)
				}
				a.logger.Info("match deleted", "match_id", id)
				return nil
			})
		},
	}
}
