package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner is anything that can run a sync; *Syncer in production.
type Runner interface {
	Sync(ctx context.Context, playerID string, limit int) (*SyncReport, error)
}

// Notifier is told about runs worth a human's attention.
type Notifier interface {
	NotifySync(ctx context.Context, report *SyncReport) error
	NotifySyncError(ctx context.Context, playerID string, err error) error
}

// Compactor moves closed archive files to cold storage.
type Compactor interface {
	Compact() (int, error)
}

// WatcherStats summarizes a watch session.
type WatcherStats struct {
	Runs            int
	FailedRuns      int
	MatchesIngested int
	MatchFailures   int
	StartedAt       time.Time
	LastRunAt       time.Time
}

// Watcher runs a sync immediately and then on every interval until its
// context is cancelled.
type Watcher struct {
	runner    Runner
	notifier  Notifier
	compactor Compactor
	playerID  string
	limit     int
	interval  time.Duration
	logger    *slog.Logger

	mu    sync.Mutex
	stats WatcherStats
}

type WatcherOption func(*Watcher)

func WithNotifier(n Notifier) WatcherOption {
	return func(w *Watcher) { w.notifier = n }
}

// WithCompactor compacts the raw archive after every run.
func WithCompactor(c Compactor) WatcherOption {
	return func(w *Watcher) { w.compactor = c }
}

func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

func NewWatcher(runner Runner, playerID string, limit int, interval time.Duration, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		runner:   runner,
		playerID: playerID,
		limit:    limit,
		interval: interval,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("component", "watch")
	return w
}

// Run blocks until ctx is cancelled. A failed run is logged and reported
// through the notifier; the next tick tries again.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.stats.StartedAt = time.Now()
	w.mu.Unlock()

	w.logger.Info("watching", "player_id", w.playerID, "interval", w.interval, "limit", w.limit)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)

		select {
		case <-ctx.Done():
			stats := w.Stats()
			w.logger.Info("watch stopped",
				"runs", stats.Runs,
				"ingested", stats.MatchesIngested,
				"uptime", time.Since(stats.StartedAt).Round(time.Second))
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	report, err := w.runner.Sync(ctx, w.playerID, w.limit)
	if ctx.Err() != nil {
		// shutting down; partial work is already stored
		w.record(report, nil)
		return
	}
	w.record(report, err)

	if err != nil {
		w.logger.Error("sync failed", "error", err)
		if w.notifier != nil {
			if nerr := w.notifier.NotifySyncError(ctx, w.playerID, err); nerr != nil {
				w.logger.Warn("notification failed", "error", nerr)
			}
		}
		return
	}

	if w.notifier != nil && (len(report.Ingested) > 0 || len(report.Failed) > 0) {
		if nerr := w.notifier.NotifySync(ctx, report); nerr != nil {
			w.logger.Warn("notification failed", "error", nerr)
		}
	}

	if w.compactor != nil {
		n, cerr := w.compactor.Compact()
		if cerr != nil {
			w.logger.Warn("archive compaction failed", "error", cerr)
		} else if n > 0 {
			w.logger.Info("archive compacted", "files", n)
		}
	}
}

func (w *Watcher) record(report *SyncReport, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Runs++
	w.stats.LastRunAt = time.Now()
	if err != nil {
		w.stats.FailedRuns++
	}
	if report != nil {
		w.stats.MatchesIngested += len(report.Ingested)
		w.stats.MatchFailures += len(report.Failed)
	}
}

func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
