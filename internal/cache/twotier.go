// Package cache composes a volatile and a durable tier into a read-through,
// write-through cache of fused daily records.
package cache

import (
	"context"
	"log/slog"
	"time"

	"etofusion/internal/types"
)

// DefaultDurableWindow is how long a durable entry stays servable.
const DefaultDurableWindow = 24 * time.Hour

// VolatileTier is a fast, loss-tolerant store. Failures are never fatal.
type VolatileTier interface {
	Get(ctx context.Context, key types.CacheKey) (types.CacheEntry, bool, error)
	Set(ctx context.Context, entry types.CacheEntry) error
	Delete(ctx context.Context, key types.CacheKey) error
	DeletePrefix(ctx context.Context, fingerprint string) (int, error)
}

// DurableTier survives restarts. Upserts are idempotent per key.
type DurableTier interface {
	Get(ctx context.Context, key types.CacheKey) (types.CacheEntry, bool, error)
	Upsert(ctx context.Context, entry types.CacheEntry) error
	Delete(ctx context.Context, key types.CacheKey) error
	DeleteLocation(ctx context.Context, fingerprint string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// TwoTier fronts a DurableTier with a VolatileTier.
type TwoTier struct {
	volatile VolatileTier
	durable  DurableTier
	window   time.Duration
	clock    types.Clock
	logger   *slog.Logger
}

// NewTwoTier composes the tiers. window <= 0 selects DefaultDurableWindow.
func NewTwoTier(volatile VolatileTier, durable DurableTier, window time.Duration, clock types.Clock, logger *slog.Logger) *TwoTier {
	if window <= 0 {
		window = DefaultDurableWindow
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TwoTier{
		volatile: volatile,
		durable:  durable,
		window:   window,
		clock:    clock,
		logger:   logger,
	}
}

// Get returns the cached record for key. ok is false on a miss. An error is
// returned only when the durable tier cannot be read.
func (c *TwoTier) Get(ctx context.Context, key types.CacheKey) (types.FusedDailyRecord, bool, error) {
	now := c.clock.Now()

	entry, ok, err := c.volatile.Get(ctx, key)
	if err != nil {
		c.transient(ctx, "volatile read failed", key, err)
	} else if ok && !entry.Expired(now) {
		return entry.Record, true, nil
	}

	entry, ok, err = c.durable.Get(ctx, key)
	if err != nil {
		return types.FusedDailyRecord{}, false, err
	}
	if !ok || entry.Expired(now) || now.Sub(entry.StoredAt) >= c.window {
		return types.FusedDailyRecord{}, false, nil
	}

	if err := c.volatile.Set(ctx, entry); err != nil {
		c.transient(ctx, "volatile backfill failed", key, err)
	}
	return entry.Record, true, nil
}

// Put writes through: durable first, then volatile. The durable row stays
// servable for the durability window; ttl bounds only the volatile entry
// (ttl <= 0 means the window). A durable failure is returned as an
// internal_cache_persistence error and leaves the volatile tier untouched.
func (c *TwoTier) Put(ctx context.Context, key types.CacheKey, record types.FusedDailyRecord, ttl time.Duration) error {
	if ttl <= 0 || ttl > c.window {
		ttl = c.window
	}
	now := c.clock.Now()
	durable := types.CacheEntry{
		Key:       key,
		Record:    record,
		StoredAt:  now,
		ExpiresAt: now.Add(c.window),
	}

	if err := c.durable.Upsert(ctx, durable); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeCachePersistence,
			"failed to persist fused record", err,
			map[string]any{"key": key.String()})
	}

	volatile := durable
	volatile.ExpiresAt = now.Add(ttl)
	if err := c.volatile.Set(ctx, volatile); err != nil {
		c.transient(ctx, "volatile write failed", key, err)
	}
	return nil
}

// Invalidate removes key from both tiers.
func (c *TwoTier) Invalidate(ctx context.Context, key types.CacheKey) error {
	err := c.durable.Delete(ctx, key)
	if verr := c.volatile.Delete(ctx, key); verr != nil {
		c.transient(ctx, "volatile delete failed", key, verr)
	}
	return err
}

// InvalidateLocation removes every entry for a location fingerprint.
func (c *TwoTier) InvalidateLocation(ctx context.Context, fingerprint string) error {
	n, err := c.durable.DeleteLocation(ctx, fingerprint)
	if err != nil {
		return err
	}
	if _, verr := c.volatile.DeletePrefix(ctx, fingerprint); verr != nil {
		c.logger.WarnContext(ctx, "volatile location purge failed",
			"code", types.ErrCodeCacheTransient, "fingerprint", fingerprint, "error", verr)
	}
	c.logger.InfoContext(ctx, "invalidated location", "fingerprint", fingerprint, "durable_rows", n)
	return nil
}

// PurgeExpired deletes durable entries whose durability window has passed
// at now. Volatile entries expire on their own.
func (c *TwoTier) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	return c.durable.DeleteExpired(ctx, now)
}

func (c *TwoTier) transient(ctx context.Context, msg string, key types.CacheKey, err error) {
	c.logger.WarnContext(ctx, msg,
		"code", types.ErrCodeCacheTransient, "key", key.String(), "error", err)
}
