// Package proximity links a query point to nearby reference cities and
// weather stations, with inverse-distance weights and a confidence that
// decays with distance and with missing data coverage.
package proximity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"etofusion/internal/types"
)

// DefaultScaleKm is the distance at which confidence falls to 1/e.
const DefaultScaleKm = 50.0

// minDistanceKm bounds the inverse-distance weight for co-located points.
const minDistanceKm = 0.1

// overfetch asks the index for extra candidates so exact re-ranking can
// reorder near-ties before truncation.
const overfetch = 2

// Resolver computes ProximityLinks. Stateless after construction; safe for
// concurrent use.
type Resolver struct {
	index   CandidateIndex
	scaleKm float64
	logger  *slog.Logger
}

// NewResolver creates a Resolver over index. scaleKm <= 0 selects
// DefaultScaleKm.
func NewResolver(index CandidateIndex, scaleKm float64, logger *slog.Logger) *Resolver {
	if scaleKm <= 0 {
		scaleKm = DefaultScaleKm
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{index: index, scaleKm: scaleKm, logger: logger}
}

// Nearest returns up to maxResults links per candidate kind within radiusKm
// of p, ordered by ascending distance with ties broken by reference ID. When nothing lies
// within the radius it returns types.ErrNoReferenceData.
func (r *Resolver) Nearest(ctx context.Context, p types.Point, radiusKm float64, maxResults int) ([]types.ProximityLink, error) {
	return r.NearestForRange(ctx, p, radiusKm, maxResults, time.Time{}, time.Time{})
}

// NearestForRange is Nearest with coverage-aware confidence: a station whose
// availability window covers only part of [start, end] has its confidence
// scaled by that fraction, and stations with no coverage are dropped. Zero
// start or end disables the coverage check.
func (r *Resolver) NearestForRange(ctx context.Context, p types.Point, radiusKm float64, maxResults int, start, end time.Time) ([]types.ProximityLink, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !(radiusKm > 0) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidParameter, fmt.Sprintf("radius must be positive, got %g", radiusKm), nil)
	}
	if maxResults <= 0 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidParameter, fmt.Sprintf("maxResults must be positive, got %d", maxResults), nil)
	}

	cands, err := r.index.Candidates(ctx, p, radiusKm, maxResults*overfetch)
	if err != nil {
		return nil, fmt.Errorf("querying candidate index: %w", err)
	}

	queryID := p.Fingerprint()
	links := make([]types.ProximityLink, 0, len(cands))
	for _, c := range cands {
		d := DistanceKm(p, c.Point())
		if d > radiusKm {
			continue
		}
		overlap := coverage(c, start, end)
		if overlap == 0 {
			continue
		}
		links = append(links, types.ProximityLink{
			QueryID:     queryID,
			ReferenceID: c.ID,
			Kind:        c.Kind,
			DistanceKm:  d,
			Weight:      1 / math.Max(d, minDistanceKm),
			Confidence:  overlap * math.Exp(-d/r.scaleKm),
		})
	}

	if len(links) == 0 {
		r.logger.DebugContext(ctx, "no reference data within radius",
			"query_id", queryID, "radius_km", radiusKm, "candidates", len(cands))
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNoReferenceData,
			fmt.Sprintf("no reference location within %g km", radiusKm), nil,
			map[string]any{"radius_km": radiusKm})
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].DistanceKm != links[j].DistanceKm {
			return links[i].DistanceKm < links[j].DistanceKm
		}
		return links[i].ReferenceID < links[j].ReferenceID
	})
	return limitPerKind(links, maxResults), nil
}

// limitPerKind keeps the first n links of each candidate kind, in order.
// Stations never carry normals, so a dense station network must not push
// reference cities out of the result.
func limitPerKind(links []types.ProximityLink, n int) []types.ProximityLink {
	kept := make(map[types.CandidateKind]int, 2)
	out := links[:0]
	for _, l := range links {
		if kept[l.Kind] >= n {
			continue
		}
		kept[l.Kind]++
		out = append(out, l)
	}
	return out
}

// coverage is the fraction of days in [start, end] inside the candidate's
// availability window.
func coverage(c types.Candidate, start, end time.Time) float64 {
	if start.IsZero() || end.IsZero() || (c.AvailableFrom.IsZero() && c.AvailableTo.IsZero()) {
		return 1
	}
	start, end = types.TruncateDay(start), types.TruncateDay(end)
	if end.Before(start) {
		return 1
	}
	lo, hi := start, end
	if !c.AvailableFrom.IsZero() && types.TruncateDay(c.AvailableFrom).After(lo) {
		lo = types.TruncateDay(c.AvailableFrom)
	}
	if !c.AvailableTo.IsZero() && types.TruncateDay(c.AvailableTo).Before(hi) {
		hi = types.TruncateDay(c.AvailableTo)
	}
	if hi.Before(lo) {
		return 0
	}
	total := end.Sub(start).Hours()/24 + 1
	covered := hi.Sub(lo).Hours()/24 + 1
	return covered / total
}
