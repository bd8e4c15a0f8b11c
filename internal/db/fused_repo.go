package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"etofusion/internal/types"
)

// FusedRecordRepository is the durable cache tier, backed by the
// fused_daily_cache table:
//
//	location_fp  TEXT, day DATE, variable_set TEXT,
//	record JSONB, stored_at TIMESTAMPTZ, expires_at TIMESTAMPTZ,
//	PRIMARY KEY (location_fp, day, variable_set)
type FusedRecordRepository struct {
	db DBTX
}

// NewFusedRecordRepository creates a new FusedRecordRepository.
func NewFusedRecordRepository(db DBTX) *FusedRecordRepository {
	return &FusedRecordRepository{db: db}
}

// Get returns the stored entry for key. Expired rows are returned as found;
// the caller decides whether they are servable.
func (r *FusedRecordRepository) Get(ctx context.Context, key types.CacheKey) (types.CacheEntry, bool, error) {
	entry := types.CacheEntry{Key: key}
	err := r.db.QueryRow(ctx,
		`SELECT record, stored_at, expires_at
		 FROM fused_daily_cache
		 WHERE location_fp = $1 AND day = $2 AND variable_set = $3`,
		key.Fingerprint,
		key.Date,
		key.VariableSet,
	).Scan(&entry.Record, &entry.StoredAt, &entry.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.CacheEntry{}, false, nil
	}
	if err != nil {
		return types.CacheEntry{}, false, types.NewAppError(types.ErrCodeInternalDB, "failed to read fused record", err)
	}
	return entry, true, nil
}

// Upsert writes the entry; concurrent writers of the same key resolve to the
// last one.
func (r *FusedRecordRepository) Upsert(ctx context.Context, entry types.CacheEntry) error {
	payload, err := entry.Record.Value()
	if err != nil {
		return types.NewAppError(types.ErrCodeCachePersistence, "failed to encode fused record", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO fused_daily_cache
		 (location_fp, day, variable_set, record, stored_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (location_fp, day, variable_set) DO UPDATE SET
		   record = EXCLUDED.record,
		   stored_at = EXCLUDED.stored_at,
		   expires_at = EXCLUDED.expires_at`,
		entry.Key.Fingerprint,
		entry.Key.Date,
		entry.Key.VariableSet,
		payload,
		entry.StoredAt,
		entry.ExpiresAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert fused record", err)
	}
	return nil
}

// Delete removes a single key. Deleting an absent key is not an error.
func (r *FusedRecordRepository) Delete(ctx context.Context, key types.CacheKey) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM fused_daily_cache
		 WHERE location_fp = $1 AND day = $2 AND variable_set = $3`,
		key.Fingerprint,
		key.Date,
		key.VariableSet,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete fused record", err)
	}
	return nil
}

// DeleteLocation removes every day and variable set cached for a fingerprint.
func (r *FusedRecordRepository) DeleteLocation(ctx context.Context, fingerprint string) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM fused_daily_cache WHERE location_fp = $1`,
		fingerprint,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete location from fused cache", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteExpired removes rows whose expires_at is at or before now.
func (r *FusedRecordRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM fused_daily_cache WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge expired fused records", err)
	}
	return int(tag.RowsAffected()), nil
}
