package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"etofusion/internal/types"
)

// Runner triggers the sweep in-process on a fixed interval.
type Runner struct {
	scheduler *gocron.Scheduler
	sweep     *SweepService
	interval  time.Duration
	timeout   time.Duration
	clock     types.Clock
	logger    *slog.Logger
}

// NewRunner creates a Runner. Each run is bounded by the sweep's lock TTL.
func NewRunner(sweep *SweepService, interval time.Duration, clock types.Clock, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = time.Hour
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		scheduler: gocron.NewScheduler(time.UTC),
		sweep:     sweep,
		interval:  interval,
		timeout:   sweep.lockTTL,
		clock:     clock,
		logger:    logger,
	}
}

// Start schedules the sweep and starts the scheduler without blocking.
func (r *Runner) Start() error {
	r.scheduler.SingletonModeAll()
	if _, err := r.scheduler.Every(r.interval).Do(r.RunOnce); err != nil {
		return fmt.Errorf("scheduling cache sweep: %w", err)
	}
	r.scheduler.StartAsync()
	r.logger.Info("cache sweep scheduled", "interval", r.interval.String())
	return nil
}

// RunOnce performs a single sweep.
func (r *Runner) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.sweep.PurgeExpired(ctx, r.clock.Now()); err != nil {
		r.logger.Error("cache sweep failed", "error", err)
	}
}

// Stop stops the scheduler.
func (r *Runner) Stop() {
	r.scheduler.Stop()
}
