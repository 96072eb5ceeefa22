package sweeper

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Runner is the sweep operation the sweeper drives on each tick.
type Runner interface {
	SweepNoShows(ctx context.Context, grace time.Duration) (int64, error)
}

// Sweeper periodically times out stale bookings and check-ins. Runs are
// single-flight: a tick that finds the previous sweep still executing is a
// no-op, so overlapping runs cannot double-process.
type Sweeper struct {
	runner   Runner
	interval time.Duration
	grace    time.Duration
	log      *zap.Logger
	running  atomic.Bool
}

// New creates a sweeper with the given cadence and grace window.
func New(runner Runner, interval, grace time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{
		runner:   runner,
		interval: interval,
		grace:    grace,
		log:      log,
	}
}

// Run executes sweeps on the configured interval until the context is
// cancelled. An immediate sweep runs at startup.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("no-show sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("grace", s.grace),
	)

	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("no-show sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single guarded sweep. Returns false when a sweep was
// already in flight and this call did nothing.
func (s *Sweeper) SweepOnce(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	defer s.running.Store(false)

	updated, err := s.runner.SweepNoShows(ctx, s.grace)
	if err != nil {
		s.log.Error("no-show sweep failed", zap.Error(err))
		return true
	}
	if updated > 0 {
		s.log.Info("no-show sweep complete", zap.Int64("updated", updated))
	}
	return true
}
