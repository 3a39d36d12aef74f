package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"summoner-insights/internal/fault"
	"summoner-insights/internal/storage"
)

//go:embed schema_postgres.sql
var postgresSchema string

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and the schema.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("postgres driver needs DATABASE_URL")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertMatch(ctx context.Context, nm *storage.NormalizedMatch) (bool, error) {
	args, err := matchArgs(&nm.Match)
	if err != nil {
		return false, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (match_id) DO NOTHING
	`, args...)
	if err != nil {
		return false, fmt.Errorf("insert match %s: %w", nm.Match.MatchID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	batch := &pgx.Batch{}
	for i := range nm.Snapshots {
		batch.Queue(`INSERT INTO timeline_snapshots (`+snapshotColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (match_id, minute) DO NOTHING`, snapshotArgs(&nm.Snapshots[i])...)
	}
	for i := range nm.Events {
		args, err := eventArgs(&nm.Events[i])
		if err != nil {
			return false, err
		}
		batch.Queue(`INSERT INTO timeline_events (`+eventColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (match_id, seq) DO NOTHING`, args...)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return false, fmt.Errorf("insert timeline of %s: %w", nm.Match.MatchID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) ExistingMatchIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(ids) == 0 {
		return existing, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT match_id FROM matches WHERE match_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

func (s *PostgresStore) Window(ctx context.Context, opts storage.WindowOptions) (*storage.Window, error) {
	// NULL means no limit
	var limit any
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w := &storage.Window{}

	rows, err := tx.Query(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY played_at_ms DESC, match_id DESC LIMIT $1`, limit)
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
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const windowIDs = `SELECT match_id FROM matches ORDER BY played_at_ms DESC, match_id DESC LIMIT $1`

	if len(opts.EventTypes) > 0 && len(w.Matches) > 0 {
		rows, err := tx.Query(ctx,
			`SELECT `+eventColumns+` FROM timeline_events
			WHERE match_id IN (`+windowIDs+`) AND event_type = ANY($2)
			ORDER BY match_id, timestamp_seconds, seq`, limit, eventTypeStrings(opts.EventTypes))
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
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	if opts.Snapshots && len(w.Matches) > 0 {
		rows, err := tx.Query(ctx,
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
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	return w, tx.Commit(ctx)
}

func (s *PostgresStore) MatchTimeline(ctx context.Context, matchID string) (*storage.MatchTimeline, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	m, err := scanMatch(tx.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE match_id = $1`, matchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("match %s is not stored", matchID)
	}
	if err != nil {
		return nil, err
	}
	mt := &storage.MatchTimeline{Match: m}

	rows, err := tx.Query(ctx,
		`SELECT `+snapshotColumns+` FROM timeline_snapshots WHERE match_id = $1 ORDER BY minute`, matchID)
	if err != nil {
		return nil, err
	}
	mt.Snapshots, err = collect(rows, scanSnapshot)
	if err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx,
		`SELECT `+eventColumns+` FROM timeline_events WHERE match_id = $1 ORDER BY timestamp_seconds, seq`, matchID)
	if err != nil {
		return nil, err
	}
	mt.Events, err = collect(rows, scanEvent)
	if err != nil {
		return nil, err
	}

	return mt, tx.Commit(ctx)
}

func (s *PostgresStore) DeleteMatch(ctx context.Context, matchID string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"timeline_events", "timeline_snapshots"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE match_id = $1", table), matchID); err != nil {
			return false, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM matches WHERE match_id = $1`, matchID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, tx.Commit(ctx)
}

func (s *PostgresStore) Counts(ctx context.Context) (storage.Counts, error) {
	var c storage.Counts
	err := s.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM matches),
		(SELECT COUNT(*) FROM timeline_snapshots),
		(SELECT COUNT(*) FROM timeline_events)`).Scan(&c.Matches, &c.Snapshots, &c.Events)
	return c, err
}

func collect[T any](rows pgx.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
