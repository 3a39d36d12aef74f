package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"summoner-insights/internal/fault"
	"summoner-insights/internal/storage"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLStore implements Store on database/sql for SQLite dialects: a local
// file through modernc.org/sqlite or a Turso database through libsql.
type SQLStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a local SQLite database file.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		path = "summoner_insights.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewLibSQLStore connects to a Turso (libsql) database.
func NewLibSQLStore(ctx context.Context, url, authToken string) (*SQLStore, error) {
	if url == "" {
		return nil, fmt.Errorf("libsql driver needs a database url")
	}
	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Turso: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping Turso: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) createTables(ctx context.Context) error {
	for _, stmt := range splitStatements(sqliteSchema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) UpsertMatch(ctx context.Context, nm *storage.NormalizedMatch) (bool, error) {
	args, err := matchArgs(&nm.Match)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO matches (`+matchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id) DO NOTHING`, args...)
	if err != nil {
		return false, fmt.Errorf("insert match %s: %w", nm.Match.MatchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	snapStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO timeline_snapshots (`+snapshotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id, minute) DO NOTHING`)
	if err != nil {
		return false, err
	}
	defer snapStmt.Close()

	for i := range nm.Snapshots {
		if _, err := snapStmt.ExecContext(ctx, snapshotArgs(&nm.Snapshots[i])...); err != nil {
			return false, fmt.Errorf("insert snapshot %d: %w", nm.Snapshots[i].Minute, err)
		}
	}

	eventStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO timeline_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id, seq) DO NOTHING`)
	if err != nil {
		return false, err
	}
	defer eventStmt.Close()

	for i := range nm.Events {
		args, err := eventArgs(&nm.Events[i])
		if err != nil {
			return false, err
		}
		if _, err := eventStmt.ExecContext(ctx, args...); err != nil {
			return false, fmt.Errorf("insert event %d: %w", nm.Events[i].Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLStore) ExistingMatchIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	const batchSize = 200
	existing := make(map[string]bool)

	for i := 0; i < len(ids); i += batchSize {
		batch := ids[i:min(i+batchSize, len(ids))]
		args := make([]any, len(batch))
		for j, id := range batch {
			args[j] = id
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT match_id FROM matches WHERE match_id IN (`+placeholders(len(batch))+`)`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			existing[id] = true
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return existing, nil
}

func (s *SQLStore) Window(ctx context.Context, opts storage.WindowOptions) (*storage.Window, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	w := &storage.Window{}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY played_at_ms DESC, match_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		w.Matches = append(w.Matches, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	const windowIDs = `SELECT match_id FROM matches ORDER BY played_at_ms DESC, match_id DESC LIMIT ?`

	if len(opts.EventTypes) > 0 && len(w.Matches) > 0 {
		args := []any{limit}
		for _, t := range eventTypeStrings(opts.EventTypes) {
			args = append(args, t)
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT `+eventColumns+` FROM timeline_events
			WHERE match_id IN (`+windowIDs+`) AND event_type IN (`+placeholders(len(opts.EventTypes))+`)
			ORDER BY match_id, timestamp_seconds, seq`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			w.Events = append(w.Events, e)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}

	if opts.Snapshots && len(w.Matches) > 0 {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+snapshotColumns+` FROM timeline_snapshots
			WHERE match_id IN (`+windowIDs+`)
			ORDER BY match_id, minute`, limit)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			snap, err := scanSnapshot(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			w.Snapshots = append(w.Snapshots, snap)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}

	return w, tx.Commit()
}

func (s *SQLStore) MatchTimeline(ctx context.Context, matchID string) (*storage.MatchTimeline, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := scanMatch(tx.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE match_id = ?`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("match %s is not stored", matchID)
	}
	if err != nil {
		return nil, err
	}
	mt := &storage.MatchTimeline{Match: m}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM timeline_snapshots WHERE match_id = ? ORDER BY minute`, matchID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		mt.Snapshots = append(mt.Snapshots, snap)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM timeline_events WHERE match_id = ? ORDER BY timestamp_seconds, seq`, matchID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		mt.Events = append(mt.Events, e)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	return mt, tx.Commit()
}

// DeleteMatch removes a match and, in the same transaction, its timeline rows.
func (s *SQLStore) DeleteMatch(ctx context.Context, matchID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	for _, table := range []string{"timeline_events", "timeline_snapshots"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE match_id = ?", table), matchID); err != nil {
			return false, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE match_id = ?`, matchID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

func (s *SQLStore) Counts(ctx context.Context) (storage.Counts, error) {
	var c storage.Counts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM matches),
		(SELECT COUNT(*) FROM timeline_snapshots),
		(SELECT COUNT(*) FROM timeline_events)`).Scan(&c.Matches, &c.Snapshots, &c.Events)
	return c, err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
