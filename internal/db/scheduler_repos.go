package db

import (
	"context"
	"time"

	"etofusion/internal/types"
)

// JobLockRepository provides cross-process locking via the job_locks table,
// so overlapping sweeps (gocron in every replica plus the scheduled Lambda)
// run at most once per window.
type JobLockRepository struct {
	db    DBTX
	clock types.Clock
}

// NewJobLockRepository creates a new JobLockRepository.
func NewJobLockRepository(db DBTX) *JobLockRepository {
	return &JobLockRepository{db: db, clock: types.RealClock{}}
}

// Acquire inserts the lock row, or reclaims it if the previous holder's lock
// has expired. Returns false when another worker holds an unexpired lock.
// lockID is conventionally "task:hour", e.g. "cache_sweep:2026-02-06T03".
//
// Timestamps are computed in Go: "15m0s" is not a valid PostgreSQL interval.
func (r *JobLockRepository) Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error) {
	now := r.clock.Now().UTC()
	expiresAt := now.Add(ttl)

	tag, err := r.db.Exec(ctx,
		`INSERT INTO job_locks (id, worker_id, locked_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		   SET worker_id = EXCLUDED.worker_id,
		       locked_at = EXCLUDED.locked_at,
		       expires_at = EXCLUDED.expires_at
		   WHERE job_locks.expires_at < $3`,
		lockID,
		workerID,
		now,
		expiresAt,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire job lock", err)
	}

	// 0 rows: the conflict WHERE rejected the update.
	return tag.RowsAffected() > 0, nil
}

// maxJobErrorLen bounds the error text stored per run.
const maxJobErrorLen = 1024

// JobHistoryRepository records sweep runs in job_history.
type JobHistoryRepository struct {
	db    DBTX
	clock types.Clock
}

func NewJobHistoryRepository(db DBTX) *JobHistoryRepository {
	return &JobHistoryRepository{db: db, clock: types.RealClock{}}
}

// Start inserts a 'running' row and returns its ID.
func (r *JobHistoryRepository) Start(ctx context.Context, jobType string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO job_history (job_type, started_at, status)
		 VALUES ($1, $2, 'running')
		 RETURNING id`,
		jobType,
		r.clock.Now(),
	).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to start job history entry", err)
	}
	return id, nil
}

// Finish closes the row with status ('success' or 'failed'), the number of
// entries deleted and the truncated error text, if any.
func (r *JobHistoryRepository) Finish(ctx context.Context, id int64, status string, items int, jobErr error) error {
	var errMsg *string
	if jobErr != nil {
		msg := jobErr.Error()
		if len(msg) > maxJobErrorLen {
			msg = msg[:maxJobErrorLen]
		}
		errMsg = &msg
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE job_history
		 SET finished_at = $5, status = $2, items_count = $3, error = $4
		 WHERE id = $1`,
		id,
		status,
		items,
		errMsg,
		r.clock.Now(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish job history entry", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "job history entry not found", nil)
	}
	return nil
}
