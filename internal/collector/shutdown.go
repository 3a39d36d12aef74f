package collector

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalContext returns a context that is cancelled on the first SIGINT or
// SIGTERM so a sync in flight stops between matches. A second signal exits
// immediately. stop releases the signal handler; call it when the command
// returns.
func SignalContext(parent context.Context, logger *slog.Logger) (ctx context.Context, stop context.CancelFunc) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "signal")

	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	released := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("signal received, finishing current match", "signal", sig.String())
			cancel()
		case <-released:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("second signal received, exiting", "signal", sig.String())
			os.Exit(1)
		case <-released:
		}
	}()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(released)
		})
		cancel()
	}
	return ctx, stop
}
