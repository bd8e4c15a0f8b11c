package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultLockTTL covers one sweep with margin.
const DefaultLockTTL = 15 * time.Minute

// ExpiredPurger deletes cache entries expired at now.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// JobLocker abstracts the distributed lock acquisition.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
}

// JobHistorian abstracts the job history recording.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// SweepService runs the expiry sweep at most once per hour across all
// workers and records each run in job history.
type SweepService struct {
	purger   ExpiredPurger
	locks    JobLocker
	history  JobHistorian
	workerID string
	lockTTL  time.Duration
	logger   *slog.Logger
}

// NewSweepService creates a SweepService. history may be nil.
func NewSweepService(purger ExpiredPurger, locks JobLocker, history JobHistorian, workerID string, lockTTL time.Duration, logger *slog.Logger) *SweepService {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepService{
		purger:   purger,
		locks:    locks,
		history:  history,
		workerID: workerID,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

// LockID returns the lock key for the sweep window containing now.
func LockID(now time.Time) string {
	return fmt.Sprintf("%s:%s", TaskCacheSweep, now.UTC().Truncate(time.Hour).Format("2006-01-02T15"))
}

// PurgeExpired deletes expired entries unless another worker already swept
// this hour, in which case it returns 0 and no error.
func (s *SweepService) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	lockID := LockID(now)
	acquired, err := s.locks.Acquire(ctx, lockID, s.workerID, s.lockTTL)
	if err != nil {
		return 0, fmt.Errorf("acquiring job lock %s: %w", lockID, err)
	}
	if !acquired {
		s.logger.InfoContext(ctx, "job lock not acquired, another worker is sweeping", "lock_id", lockID)
		return 0, nil
	}

	var jobID int64
	if s.history != nil {
		jobID, err = s.history.Start(ctx, string(TaskCacheSweep))
		if err != nil {
			// History is best effort.
			s.logger.ErrorContext(ctx, "failed to start job history", "error", err)
			jobID = 0
		}
	}

	n, sweepErr := s.purger.PurgeExpired(ctx, now)

	status := "success"
	if sweepErr != nil {
		status = "failed"
	}
	if jobID != 0 {
		if err := s.history.Finish(ctx, jobID, status, n, sweepErr); err != nil {
			s.logger.ErrorContext(ctx, "failed to finish job history", "job_id", jobID, "error", err)
		}
	}

	if sweepErr != nil {
		return n, fmt.Errorf("purging expired cache entries: %w", sweepErr)
	}
	s.logger.InfoContext(ctx, "cache sweep complete", "lock_id", lockID, "deleted", n)
	return n, nil
}
