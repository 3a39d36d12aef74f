// Package collector pulls the tracked player's recent matches from Riot,
// normalizes them and writes them to the store, once (Syncer) or on an
// interval (Watcher).
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"

	"summoner-insights/internal/fault"
	"summoner-insights/internal/metrics"
	"summoner-insights/internal/normalize"
	"summoner-insights/internal/riot"
	"summoner-insights/internal/storage"
)

const (
	// Capacity of the malformed-id filter; a player rarely has more than a
	// handful of broken payloads.
	rejectedFilterSize = 10000
	rejectedFilterFP   = 0.001
)

// DataSource is the part of the Riot client a sync needs.
type DataSource interface {
	ListRecentMatchIDs(ctx context.Context, puuid string, limit int) ([]string, error)
	GetMatchDetail(ctx context.Context, matchID string) (*riot.MatchResponse, error)
	GetTimelineDetail(ctx context.Context, matchID string) (*riot.TimelineResponse, error)
	MaxPageSize() int
}

// Store is the part of the match store a sync writes to.
type Store interface {
	ExistingMatchIDs(ctx context.Context, ids []string) (map[string]bool, error)
	UpsertMatch(ctx context.Context, nm *storage.NormalizedMatch) (bool, error)
}

// Archiver keeps the raw payloads of fetched matches.
type Archiver interface {
	Append(record storage.RawRecord) error
}

// Failure is one match that could not be ingested.
type Failure struct {
	MatchID string     `json:"match_id"`
	Kind    fault.Kind `json:"kind"`
	Message string     `json:"message"`
}

// SyncReport describes one sync run.
type SyncReport struct {
	RunID     string        `json:"run_id"`
	PlayerID  string        `json:"player_id"`
	Listed    []string      `json:"listed"`
	Skipped   []string      `json:"skipped"`
	Ingested  []string      `json:"ingested"`
	Failed    []Failure     `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

type Syncer struct {
	source   DataSource
	store    Store
	archive  Archiver
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	rejected *bloom.BloomFilter
	mu       sync.Mutex // guards rejected
}

type SyncerOption func(*Syncer)

// WithArchive appends every fetched detail/timeline pair to a, before it is
// normalized.
func WithArchive(a Archiver) SyncerOption {
	return func(s *Syncer) { s.archive = a }
}

func WithSyncMetrics(m *metrics.Metrics) SyncerOption {
	return func(s *Syncer) { s.metrics = m }
}

func WithSyncLogger(l *slog.Logger) SyncerOption {
	return func(s *Syncer) { s.logger = l }
}

func NewSyncer(source DataSource, store Store, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		source:   source,
		store:    store,
		now:      time.Now,
		rejected: bloom.NewWithEstimates(rejectedFilterSize, rejectedFilterFP),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "sync")
	return s
}

// Sync ingests up to limit of the player's most recent matches. Matches
// already stored are skipped; a failing match is recorded and the next one
// is processed. Listing and existence-check failures abort the run. When ctx
// is cancelled between matches the partial report is returned with ctx's
// error.
func (s *Syncer) Sync(ctx context.Context, playerID string, limit int) (*SyncReport, error) {
	if playerID == "" {
		return nil, fault.Validation("player id is required")
	}
	if limit <= 0 {
		return nil, fault.Validation("limit must be positive, got %d", limit)
	}
	if pageMax := s.source.MaxPageSize(); pageMax > 0 && limit > pageMax {
		limit = pageMax
	}

	start := s.now()
	report := &SyncReport{
		RunID:     uuid.NewString(),
		PlayerID:  playerID,
		Listed:    []string{},
		Skipped:   []string{},
		Ingested:  []string{},
		Failed:    []Failure{},
		StartedAt: start,
	}
	log := s.logger.With("run_id", report.RunID)
	defer func() {
		report.Duration = s.now().Sub(start)
		s.metrics.SyncFinished(report.Duration)
	}()

	ids, err := s.source.ListRecentMatchIDs(ctx, playerID, limit)
	if err != nil {
		return nil, err
	}
	report.Listed = append(report.Listed, ids...)

	existing, err := s.store.ExistingMatchIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, id := range ids {
		if existing[id] || s.wasRejected(id) {
			report.Skipped = append(report.Skipped, id)
			continue
		}
		pending = append(pending, id)
	}
	s.metrics.MatchSkipped(len(report.Skipped))
	log.Info("sync started", "listed", len(ids), "skipped", len(report.Skipped), "pending", len(pending))

	// Cancellation is only observed between matches; a match that has
	// started is fetched, normalized and stored on a detached context.
	work := context.WithoutCancel(ctx)
	for i, id := range pending {
		if err := ctx.Err(); err != nil {
			log.Warn("sync interrupted", "ingested", len(report.Ingested), "remaining", len(pending)-i)
			return report, err
		}

		inserted, err := s.ingest(work, playerID, id)
		if err != nil {
			kind := fault.KindOf(err)
			report.Failed = append(report.Failed, Failure{MatchID: id, Kind: kind, Message: fault.Message(err)})
			s.metrics.MatchFailed(string(kind))
			if kind == fault.KindMalformedPayload {
				s.reject(id)
			}
			log.Warn("match failed", "match_id", id, "kind", kind, "error", err)
			continue
		}
		if !inserted {
			// stored concurrently since the existence check
			report.Skipped = append(report.Skipped, id)
			s.metrics.MatchSkipped(1)
			continue
		}
		report.Ingested = append(report.Ingested, id)
		s.metrics.MatchIngested()
		log.Debug("match ingested", "match_id", id)
	}

	log.Info("sync finished",
		"ingested", len(report.Ingested),
		"failed", len(report.Failed),
		"duration", s.now().Sub(start).Round(time.Millisecond))
	return report, nil
}

func (s *Syncer) ingest(ctx context.Context, playerID, matchID string) (bool, error) {
	match, err := s.source.GetMatchDetail(ctx, matchID)
	if err != nil {
		return false, err
	}
	timeline, err := s.source.GetTimelineDetail(ctx, matchID)
	if err != nil {
		return false, err
	}

	if s.archive != nil {
		rec := storage.RawRecord{MatchID: matchID, PlayerID: playerID, FetchedAt: s.now(), Match: match, Timeline: timeline}
		if err := s.archive.Append(rec); err != nil {
			s.logger.Warn("archive append failed", "match_id", matchID, "error", err)
		}
	}

	nm, err := normalize.Normalize(playerID, match, timeline)
	if err != nil {
		return false, err
	}
	return s.store.UpsertMatch(ctx, nm)
}

func (s *Syncer) wasRejected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected.TestString(id)
}

func (s *Syncer) reject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected.AddString(id)
}

// ResetRejected forgets previously rejected ids, e.g. after a normalizer
// upgrade.
func (s *Syncer) ResetRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected.ClearAll()
}
