// Package db persists normalized matches and serves the windowed reads the
// analytics engine needs. SQLite (modernc), Turso (libsql) and Postgres
// (pgx) share one Store contract.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"summoner-insights/internal/storage"
)

// Store is the persistence boundary of the pipeline. Every method runs in a
// single transaction.
type Store interface {
	// UpsertMatch writes a match with its snapshots and events. An existing
	// match_id makes the call a no-op and returns false.
	UpsertMatch(ctx context.Context, nm *storage.NormalizedMatch) (bool, error)
	ExistingMatchIDs(ctx context.Context, ids []string) (map[string]bool, error)
	Window(ctx context.Context, opts storage.WindowOptions) (*storage.Window, error)
	// MatchTimeline returns a fault.NotFound error for unknown ids.
	MatchTimeline(ctx context.Context, matchID string) (*storage.MatchTimeline, error)
	DeleteMatch(ctx context.Context, matchID string) (bool, error)
	Counts(ctx context.Context) (storage.Counts, error)
	Close() error
}

const (
	DriverSQLite   = "sqlite"
	DriverLibSQL   = "libsql"
	DriverPostgres = "postgres"
)

// Config selects and locates a backend.
type Config struct {
	Driver    string
	URL       string // file path, libsql:// url or postgres:// url
	AuthToken string // Turso only
}

// Open connects to the configured backend and creates the schema.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		return NewSQLiteStore(ctx, cfg.URL)
	case DriverLibSQL:
		return NewLibSQLStore(ctx, cfg.URL, cfg.AuthToken)
	case DriverPostgres, "pgx":
		return NewPostgresStore(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

const matchColumns = `match_id, champion, role, win, game_duration_seconds, kills, deaths, assists,
	cs, gold_earned, vision_score, items, played_at_ms, game_mode, queue_id, game_version,
	damage_dealt, damage_taken`

const snapshotColumns = `match_id, minute, cs, gold, xp, level, position_x, position_y`

const eventColumns = `match_id, seq, timestamp_seconds, event_type, location_x, location_y, metadata`

// scanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (storage.Match, error) {
	var (
		m        storage.Match
		items    string
		playedAt int64
	)
	err := row.Scan(&m.MatchID, &m.Champion, &m.Role, &m.Win, &m.GameDurationSeconds,
		&m.Kills, &m.Deaths, &m.Assists, &m.CS, &m.GoldEarned, &m.VisionScore, &items,
		&playedAt, &m.GameMode, &m.QueueID, &m.GameVersion, &m.DamageDealt, &m.DamageTaken)
	if err != nil {
		return m, err
	}
	m.PlayedAt = time.UnixMilli(playedAt).UTC()
	if err := json.Unmarshal([]byte(items), &m.Items); err != nil {
		return m, fmt.Errorf("decode items of %s: %w", m.MatchID, err)
	}
	if m.Items == nil {
		m.Items = []int{}
	}
	return m, nil
}

func scanSnapshot(row scanner) (storage.TimelineSnapshot, error) {
	var s storage.TimelineSnapshot
	err := row.Scan(&s.MatchID, &s.Minute, &s.CS, &s.Gold, &s.XP, &s.Level, &s.PositionX, &s.PositionY)
	return s, err
}

func scanEvent(row scanner) (storage.TimelineEvent, error) {
	var (
		e         storage.TimelineEvent
		eventType string
		x, y      sql.NullInt64
		meta      string
	)
	if err := row.Scan(&e.MatchID, &e.Seq, &e.TimestampSeconds, &eventType, &x, &y, &meta); err != nil {
		return e, err
	}
	e.Type = storage.ParseEventType(eventType)
	if x.Valid && y.Valid {
		lx, ly := int(x.Int64), int(y.Int64)
		e.LocationX, e.LocationY = &lx, &ly
	}
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return e, fmt.Errorf("decode metadata of %s/%d: %w", e.MatchID, e.Seq, err)
		}
	}
	if e.Type == storage.EventOther && eventType != string(storage.EventOther) {
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
		}
		e.Metadata["raw_type"] = eventType
	}
	return e, nil
}

// matchArgs returns the insert arguments in matchColumns order.
func matchArgs(m *storage.Match) ([]any, error) {
	items := m.Items
	if items == nil {
		items = []int{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return []any{m.MatchID, m.Champion, m.Role, m.Win, m.GameDurationSeconds,
		m.Kills, m.Deaths, m.Assists, m.CS, m.GoldEarned, m.VisionScore, string(itemsJSON),
		m.PlayedAt.UnixMilli(), m.GameMode, m.QueueID, m.GameVersion, m.DamageDealt, m.DamageTaken}, nil
}

func snapshotArgs(s *storage.TimelineSnapshot) []any {
	return []any{s.MatchID, s.Minute, s.CS, s.Gold, s.XP, s.Level, s.PositionX, s.PositionY}
}

func eventArgs(e *storage.TimelineEvent) ([]any, error) {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	var x, y any
	if e.LocationX != nil && e.LocationY != nil {
		x, y = *e.LocationX, *e.LocationY
	}
	return []any{e.MatchID, e.Seq, e.TimestampSeconds, string(e.Type), x, y, string(metaJSON)}, nil
}

func eventTypeStrings(types []storage.EventType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// splitStatements breaks an embedded schema into single statements for
// drivers that reject multi-statement Exec.
func splitStatements(schema string) []string {
	var stmts []string
	for _, s := range strings.Split(schema, ";") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
