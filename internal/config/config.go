// Package config loads settings from defaults, an optional YAML file and
// the environment, in that order of precedence (environment wins).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Riot struct {
	APIKey          string `yaml:"api_key"`
	Username        string `yaml:"username"`
	Tagline         string `yaml:"tagline"`
	Region          string `yaml:"region"`
	RatePerSecond   int    `yaml:"rate_per_second"`
	RatePer2Minutes int    `yaml:"rate_per_2min"`
	Queue           int    `yaml:"queue"` // 0 lists every queue; 420 is ranked solo
}

type Database struct {
	Driver    string `yaml:"driver"` // sqlite, libsql or postgres
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth_token"`
}

type Sync struct {
	Count         int           `yaml:"count"`
	WatchInterval time.Duration `yaml:"watch_interval"`
	ArchiveDir    string        `yaml:"archive_dir"`
}

type HTTP struct {
	Addr              string        `yaml:"addr"`
	CORSAllowOrigins  []string      `yaml:"cors_allow_origins"`
	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
}

type Analytics struct {
	TrendTolerance float64 `yaml:"trend_tolerance"`
}

type Config struct {
	Riot              Riot      `yaml:"riot"`
	Database          Database  `yaml:"database"`
	Sync              Sync      `yaml:"sync"`
	HTTP              HTTP      `yaml:"http"`
	Analytics         Analytics `yaml:"analytics"`
	DiscordWebhookURL string    `yaml:"discord_webhook_url"`
	LogLevel          string    `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Riot: Riot{
			Region:          "na1",
			RatePerSecond:   15,
			RatePer2Minutes: 90,
		},
		Database: Database{
			Driver: "sqlite",
			URL:    "summoner_insights.db",
		},
		Sync: Sync{
			Count:         20,
			WatchInterval: 10 * time.Minute,
		},
		HTTP: HTTP{
			Addr:              ":8080",
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	c.applyEnv()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	// RIOT-DEV-KEY is the legacy name found in older .env files.
	c.Riot.APIKey = envOr("RIOT_API_KEY", envOr("RIOT-DEV-KEY", c.Riot.APIKey))
	c.Riot.Username = envOr("RIOT_USERNAME", c.Riot.Username)
	c.Riot.Tagline = envOr("RIOT_TAGLINE", c.Riot.Tagline)
	c.Riot.Region = strings.ToLower(envOr("RIOT_REGION", c.Riot.Region))
	c.Riot.RatePerSecond = envInt("RIOT_RATE_PER_SECOND", c.Riot.RatePerSecond)
	c.Riot.RatePer2Minutes = envInt("RIOT_RATE_PER_2MIN", c.Riot.RatePer2Minutes)
	c.Riot.Queue = envInt("RIOT_QUEUE", c.Riot.Queue)

	c.Database.Driver = strings.ToLower(envOr("DATABASE_DRIVER", c.Database.Driver))
	c.Database.URL = envOr("DATABASE_URL", c.Database.URL)
	c.Database.AuthToken = envOr("TURSO_AUTH_TOKEN", c.Database.AuthToken)

	c.Sync.Count = envInt("SYNC_COUNT", c.Sync.Count)
	c.Sync.WatchInterval = envDuration("WATCH_INTERVAL", c.Sync.WatchInterval)
	c.Sync.ArchiveDir = envOr("ARCHIVE_DIR", c.Sync.ArchiveDir)

	c.HTTP.Addr = envOr("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.CORSAllowOrigins = envList("CORS_ALLOW_ORIGINS", c.HTTP.CORSAllowOrigins)
	c.HTTP.RateLimitRequests = envInt("HTTP_RATE_LIMIT_REQUESTS", c.HTTP.RateLimitRequests)
	c.HTTP.RateLimitWindow = envDuration("HTTP_RATE_LIMIT_WINDOW", c.HTTP.RateLimitWindow)

	c.Analytics.TrendTolerance = envFloat("TREND_TOLERANCE", c.Analytics.TrendTolerance)
	c.DiscordWebhookURL = envOr("DISCORD_WEBHOOK_URL", c.DiscordWebhookURL)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
}

func (c *Config) validate() error {
	if c.Riot.RatePerSecond <= 0 || c.Riot.RatePer2Minutes <= 0 {
		return fmt.Errorf("riot rate limits must be positive")
	}
	if c.Riot.Queue < 0 {
		return fmt.Errorf("riot queue must not be negative, got %d", c.Riot.Queue)
	}
	if c.Sync.Count <= 0 {
		return fmt.Errorf("sync count must be positive, got %d", c.Sync.Count)
	}
	if c.Sync.WatchInterval < time.Minute {
		return fmt.Errorf("watch interval must be at least 1m, got %s", c.Sync.WatchInterval)
	}
	if c.Analytics.TrendTolerance < 0 {
		return fmt.Errorf("trend tolerance must not be negative")
	}
	switch c.Database.Driver {
	case "sqlite", "libsql", "postgres", "pgx":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}

// RequireRiot reports the settings a command that talks to Riot is missing.
func (c *Config) RequireRiot() error {
	if c.Riot.APIKey == "" {
		return fmt.Errorf("RIOT_API_KEY is not set")
	}
	return nil
}

// RequirePlayer reports whether the tracked player is configured.
func (c *Config) RequirePlayer() error {
	if c.Riot.Username == "" || c.Riot.Tagline == "" {
		return fmt.Errorf("RIOT_USERNAME and RIOT_TAGLINE must be set")
	}
	return nil
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
