package proximity

import (
	"context"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"etofusion/internal/types"
)

// CandidateIndex finds reference cities and stations near a point. limit
// applies per candidate kind. Results are roughly nearest first; the
// resolver re-ranks them exactly.
type CandidateIndex interface {
	Candidates(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]types.Candidate, error)
}

// kmPerDegreeLat is the shortest meridian degree (at the equator), so the
// latitude band below never excludes a point inside the radius.
const kmPerDegreeLat = 110.57

// radiusSlack covers the sphere/ellipsoid gap (< 0.6%) when prefiltering with
// haversine.
const radiusSlack = 1.01

// MemoryIndex is a latitude-sorted in-memory CandidateIndex.
type MemoryIndex struct {
	byLat []types.Candidate
}

// NewMemoryIndex builds an index over cands.
func NewMemoryIndex(cands []types.Candidate) *MemoryIndex {
	byLat := append([]types.Candidate(nil), cands...)
	sort.Slice(byLat, func(i, j int) bool {
		if byLat[i].Lat != byLat[j].Lat {
			return byLat[i].Lat < byLat[j].Lat
		}
		return byLat[i].ID < byLat[j].ID
	})
	return &MemoryIndex{byLat: byLat}
}

// Len returns the number of indexed candidates.
func (m *MemoryIndex) Len() int { return len(m.byLat) }

// Candidates scans the latitude band around p and keeps points within the
// radius, nearest first, at most limit of each kind.
func (m *MemoryIndex) Candidates(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	band := radiusKm * radiusSlack / kmPerDegreeLat
	lo := sort.Search(len(m.byLat), func(i int) bool { return m.byLat[i].Lat >= p.Lat-band })

	type hit struct {
		c types.Candidate
		d float64
	}
	var hits []hit
	for i := lo; i < len(m.byLat) && m.byLat[i].Lat <= p.Lat+band; i++ {
		c := m.byLat[i]
		if d := HaversineKm(p, c.Point()); d <= radiusKm*radiusSlack {
			hits = append(hits, hit{c: c, d: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].d != hits[j].d {
			return hits[i].d < hits[j].d
		}
		return hits[i].c.ID < hits[j].c.ID
	})
	out := make([]types.Candidate, 0, len(hits))
	perKind := make(map[types.CandidateKind]int, 2)
	for _, h := range hits {
		if limit > 0 && perKind[h.c.Kind] >= limit {
			continue
		}
		perKind[h.c.Kind]++
		out = append(out, h.c)
	}
	return out, nil
}

// CachedIndex memoizes another index per (fingerprint, radius, limit). The
// reference tables only change through offline ingestion, so entries never
// go stale within a process lifetime.
type CachedIndex struct {
	next  CandidateIndex
	cache *lru.Cache[string, []types.Candidate]
}

// NewCachedIndex wraps next with an LRU of the given size.
func NewCachedIndex(next CandidateIndex, size int) (*CachedIndex, error) {
	c, err := lru.New[string, []types.Candidate](size)
	if err != nil {
		return nil, fmt.Errorf("creating candidate cache: %w", err)
	}
	return &CachedIndex{next: next, cache: c}, nil
}

// Candidates serves from the LRU or delegates and stores the result.
func (c *CachedIndex) Candidates(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]types.Candidate, error) {
	key := fmt.Sprintf("%s|%g|%d", p.Fingerprint(), radiusKm, limit)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.next.Candidates(ctx, p, radiusKm, limit)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	return v, nil
}
