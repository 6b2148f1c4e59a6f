// Package service contains long-lived background services for the API backend.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/drichman1-maker/coin-agg/internal/metrics"
)

// DraftSweeper deletes expired drafts in bulk. Sweeps are idempotent: a
// row is only ever deleted once, and re-running a sweep is harmless.
type DraftSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Reaper periodically removes expired drafts from the record store. It is
// started once at process startup, runs until its context is cancelled, and
// never terminates itself on sweep failure; repeated failures only slow it
// down.
type Reaper struct {
	sweeper      DraftSweeper
	interval     time.Duration
	backoff      time.Duration
	maxFailures  int
	sweepTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewReaper creates a new cleanup reaper.
func NewReaper(
	sweeper DraftSweeper,
	interval time.Duration,
	backoff time.Duration,
	maxFailures int,
	sweepTimeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Reaper {
	if interval <= 0 {
		interval = time.Hour
	}
	if backoff <= 0 {
		backoff = 5 * time.Minute
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if sweepTimeout <= 0 {
		sweepTimeout = 2 * time.Second
	}
	return &Reaper{
		sweeper:      sweeper,
		interval:     interval,
		backoff:      backoff,
		maxFailures:  maxFailures,
		sweepTimeout: sweepTimeout,
		metrics:      m,
		logger:       logger,
	}
}

// Run executes the reaper loop until ctx is cancelled. Cancellation is
// checked at the top of every iteration and interrupts the sleep promptly.
func (r *Reaper) Run(ctx context.Context) error {
	r.logger.Info("cleanup reaper started",
		zap.Duration("interval", r.interval),
		zap.Duration("backoff", r.backoff),
		zap.Int("max_failures", r.maxFailures))

	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("cleanup reaper stopped")
			return ctx.Err()
		default:
		}

		if err := r.sweep(ctx); err != nil {
			consecutiveFailures++
			r.metrics.RecordCleanupSweep("failure", 0)
			r.logger.Error("cleanup sweep failed",
				zap.Int("consecutive_failures", consecutiveFailures),
				zap.Int("max_failures", r.maxFailures),
				zap.Error(err))

			if consecutiveFailures >= r.maxFailures {
				// Placeholder for external paging integration.
				r.logger.Error("CRITICAL: cleanup failed repeatedly, entering extended backoff",
					zap.Int("consecutive_failures", consecutiveFailures))
				consecutiveFailures = 0
				if !r.sleep(ctx, r.backoff) {
					r.logger.Info("cleanup reaper stopped")
					return ctx.Err()
				}
				continue
			}
		} else {
			consecutiveFailures = 0
		}

		if !r.sleep(ctx, r.interval) {
			r.logger.Info("cleanup reaper stopped")
			return ctx.Err()
		}
	}
}

// sweep performs one expiry pass with a bounded timeout so a stalled store
// cannot wedge the loop.
func (r *Reaper) sweep(ctx context.Context) error {
	sweepCtx, cancel := context.WithTimeout(ctx, r.sweepTimeout)
	defer cancel()

	deleted, err := r.sweeper.DeleteExpired(sweepCtx, time.Now().UTC())
	if err != nil {
		return err
	}

	r.metrics.RecordCleanupSweep("success", deleted)
	if deleted > 0 {
		r.logger.Info("deleted expired drafts", zap.Int64("count", deleted))
	}
	return nil
}

// sleep waits for d or until ctx is cancelled, reporting false on cancellation.
func (r *Reaper) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
