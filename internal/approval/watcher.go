package approval

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Watcher polls pending trackers in the background until none are pending or
// its context is cancelled.
type Watcher struct {
	trackers []*Tracker
	interval time.Duration
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewWatcher paces receipt polls to at most rps requests per second.
func NewWatcher(interval time.Duration, rps float64, logger *zap.Logger, trackers ...*Tracker) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	if rps <= 0 {
		rps = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		trackers: trackers,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		logger:   logger,
	}
}

// Start runs the watcher in a goroutine. The returned channel closes when it
// stops. Callers may stop caring without waiting on it.
func (w *Watcher) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return done
}

// Run blocks until every tracker has left Pending or ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if w.poll(ctx) == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) poll(ctx context.Context) int {
	pending := 0
	for _, tracker := range w.trackers {
		if tracker.State() != Pending {
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return 0
		}
		state, err := tracker.Observe(ctx)
		if err != nil {
			w.logger.Warn("approval poll failed", zap.String("token", tracker.Token().Hex()), zap.Error(err))
		}
		if state == Pending {
			pending++
		} else {
			w.logger.Info("approval settled", zap.String("token", tracker.Token().Hex()), zap.Stringer("state", state))
		}
	}
	return pending
}
