package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"etofusion/internal/types"
)

// MemoryTier is a bounded in-process VolatileTier. The LRU drops entries
// older than maxTTL; shorter per-entry expiries are enforced on read.
type MemoryTier struct {
	lru   *expirable.LRU[string, types.CacheEntry]
	clock types.Clock
}

// NewMemoryTier creates a MemoryTier holding at most size entries.
func NewMemoryTier(size int, maxTTL time.Duration, clock types.Clock) *MemoryTier {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryTier{
		lru:   expirable.NewLRU[string, types.CacheEntry](size, nil, maxTTL),
		clock: clock,
	}
}

func (m *MemoryTier) Get(_ context.Context, key types.CacheKey) (types.CacheEntry, bool, error) {
	k := key.String()
	entry, ok := m.lru.Get(k)
	if !ok {
		return types.CacheEntry{}, false, nil
	}
	if entry.Expired(m.clock.Now()) {
		m.lru.Remove(k)
		return types.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

func (m *MemoryTier) Set(_ context.Context, entry types.CacheEntry) error {
	m.lru.Add(entry.Key.String(), entry)
	return nil
}

func (m *MemoryTier) Delete(_ context.Context, key types.CacheKey) error {
	m.lru.Remove(key.String())
	return nil
}

// DeletePrefix removes every entry for a location fingerprint.
func (m *MemoryTier) DeletePrefix(_ context.Context, fingerprint string) (int, error) {
	prefix := fingerprint + "|"
	n := 0
	for _, k := range m.lru.Keys() {
		if strings.HasPrefix(k, prefix) && m.lru.Remove(k) {
			n++
		}
	}
	return n, nil
}

// Len reports the number of live entries.
func (m *MemoryTier) Len() int { return m.lru.Len() }
