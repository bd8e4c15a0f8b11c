// Package fusion turns per-source daily measurements into one fused record
// per day. Fuse is the pure ensemble estimator; Service orchestrates cache
// lookup, source fan-out, classification, fusion and cache population for a
// (location, date range) request.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"etofusion/internal/sources"
	"etofusion/internal/types"
)

// Request states, logged under the "state" attribute.
const (
	StateCacheCheck  = "cache_check"
	StateSourceFetch = "source_fetch"
	StateClassify    = "classify"
	StateFuse        = "fuse"
	StatePersist     = "persist"
	StateDone        = "done"
	StateFailed      = "failed"
)

// Defaults applied by NewService for zero Options fields.
const (
	DefaultSourceTimeout = 10 * time.Second
	DefaultResultTTL     = 24 * time.Hour
	DefaultFinishTimeout = 5 * time.Second
	DefaultRadiusKm      = 200.0
	DefaultMaxResults    = 5
)

// ProximityResolver links a point to nearby reference locations.
type ProximityResolver interface {
	NearestForRange(ctx context.Context, p types.Point, radiusKm float64, maxResults int, start, end time.Time) ([]types.ProximityLink, error)
}

// MeasurementClassifier labels and weights one measurement.
type MeasurementClassifier interface {
	Classify(m types.SourceMeasurement, links []types.ProximityLink) types.ClassifiedMeasurement
}

// RecordCache is the subset of cache.TwoTier the service uses.
type RecordCache interface {
	Get(ctx context.Context, key types.CacheKey) (types.FusedDailyRecord, bool, error)
	Put(ctx context.Context, key types.CacheKey, record types.FusedDailyRecord, ttl time.Duration) error
	InvalidateLocation(ctx context.Context, fingerprint string) error
}

// Options tunes the orchestrator.
type Options struct {
	RadiusKm   float64
	MaxResults int
	// MaxParallelFetch caps concurrent adapter calls; 0 means one per adapter.
	MaxParallelFetch int
	SourceTimeout    time.Duration
	ResultTTL        time.Duration
	// FinishTimeout bounds classification and persistence once the fan-out
	// is over. That work outlives the caller's deadline.
	FinishTimeout time.Duration
}

// Service is the fusion orchestrator. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	resolver   ProximityResolver
	classifier MeasurementClassifier
	cache      RecordCache
	adapters   []sources.Adapter
	opts       Options
	clock      types.Clock
	logger     *slog.Logger
}

// NewService creates the orchestrator.
func NewService(
	resolver ProximityResolver,
	classifier MeasurementClassifier,
	cache RecordCache,
	adapters []sources.Adapter,
	opts Options,
	clock types.Clock,
	logger *slog.Logger,
) *Service {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = DefaultResultTTL
	}
	if opts.FinishTimeout <= 0 {
		opts.FinishTimeout = DefaultFinishTimeout
	}
	if opts.RadiusKm <= 0 {
		opts.RadiusKm = DefaultRadiusKm
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver:   resolver,
		classifier: classifier,
		cache:      cache,
		adapters:   adapters,
		opts:       opts,
		clock:      clock,
		logger:     logger,
	}
}

// fetchOutcome is one adapter's contribution to a request.
type fetchOutcome struct {
	measurements []types.SourceMeasurement
	err          error
}

// GetFusedSeries returns one DayResult per day in [start, end], in order.
// Failures of a source or a day are reported per day; the call itself fails
// only on invalid input, or when every adapter and every cache read failed.
func (s *Service) GetFusedSeries(ctx context.Context, loc types.Point, start, end time.Time, vars []types.Variable) ([]types.DayResult, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if err := types.ValidateDateRange(start, end); err != nil {
		return nil, err
	}
	for _, v := range vars {
		if _, ok := types.VariableUnits[v]; !ok {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidVariable, fmt.Sprintf("unsupported variable: %q", v), nil)
		}
	}
	vars = types.NormalizeVariables(vars)

	logger := s.logger.With("location", loc.Fingerprint(), "variables", types.VariableSetKey(vars))
	days := types.DaysInRange(start, end)
	results := make([]types.DayResult, len(days))

	// Cache check.
	logger.DebugContext(ctx, "request state", "state", StateCacheCheck, "days", len(days))
	var missed []int
	cacheErrs := 0
	for i, day := range days {
		results[i] = types.DayResult{Date: day}
		rec, ok, err := s.cache.Get(ctx, types.NewCacheKey(loc, day, vars))
		if err != nil {
			cacheErrs++
			logger.WarnContext(ctx, "cache read failed", "date", day.Format(types.DateLayout), "error", err)
		}
		if ok {
			results[i].Status = types.DayStatusCached
			results[i].Record = &rec
			continue
		}
		missed = append(missed, i)
	}
	if len(missed) == 0 {
		logger.DebugContext(ctx, "request state", "state", StateDone, "cached", len(days))
		return results, nil
	}

	// Source fetch over the span covering every missed day.
	spanStart, spanEnd := days[missed[0]], days[missed[len(missed)-1]]
	logger.DebugContext(ctx, "request state", "state", StateSourceFetch,
		"span_start", spanStart.Format(types.DateLayout), "span_end", spanEnd.Format(types.DateLayout),
		"adapters", len(s.adapters))
	outcomes := s.fetchAll(ctx, loc, spanStart, spanEnd)

	adapterErrs := 0
	byDay := make(map[string][]types.SourceMeasurement)
	for i, o := range outcomes {
		if o.err != nil {
			adapterErrs++
			logger.WarnContext(ctx, "source fetch failed", "source", s.adapters[i].Name(), "error", o.err)
			continue
		}
		for _, m := range o.measurements {
			if !m.HasAnyValue(vars) {
				continue
			}
			k := types.TruncateDay(m.Date).Format(types.DateLayout)
			byDay[k] = append(byDay[k], m)
		}
	}

	if len(s.adapters) > 0 && adapterErrs == len(s.adapters) && cacheErrs == len(days) {
		logger.ErrorContext(ctx, "request state", "state", StateFailed, "reason", "all sources and cache reads failed")
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "all sources and the durable cache are unavailable", nil)
	}

	// Results already fetched are used even if the caller's deadline passed
	// during the fan-out.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FinishTimeout)
	defer cancel()

	// Classify against the nearest references. Without any, measurements
	// are classified unweighted.
	var links []types.ProximityLink
	if len(byDay) > 0 {
		logger.DebugContext(fctx, "request state", "state", StateClassify, "days_with_data", len(byDay))
		var err error
		links, err = s.resolver.NearestForRange(fctx, loc, s.opts.RadiusKm, s.opts.MaxResults, spanStart, spanEnd)
		switch {
		case errors.Is(err, types.ErrNoReferenceData):
			logger.DebugContext(fctx, "no reference data, classifying unweighted", "radius_km", s.opts.RadiusKm)
		case err != nil:
			logger.WarnContext(fctx, "proximity lookup failed, classifying unweighted", "error", err)
		}
	}

	for _, i := range missed {
		day := days[i]
		ms := byDay[day.Format(types.DateLayout)]
		if len(ms) == 0 {
			results[i].Status = types.DayStatusMissing
			results[i].MissingReason = types.QualityInsufficientSources
			continue
		}

		cms := make([]types.ClassifiedMeasurement, len(ms))
		for j, m := range ms {
			cms[j] = s.classifier.Classify(m, links)
		}

		rec, err := Fuse(day, cms, vars)
		if err != nil {
			results[i].Status = types.DayStatusMissing
			results[i].MissingReason = types.QualityInsufficientSources
			continue
		}
		rec.ComputedAt = s.clock.Now()

		if err := s.cache.Put(fctx, types.NewCacheKey(loc, day, vars), rec, s.opts.ResultTTL); err != nil {
			logger.ErrorContext(fctx, "request state", "state", StatePersist,
				"date", day.Format(types.DateLayout), "error", err)
			results[i].Status = types.DayStatusFailed
			results[i].Err = err
			continue
		}
		results[i].Status = types.DayStatusFused
		results[i].Record = &rec
	}

	logger.DebugContext(ctx, "request state", "state", StateDone,
		"cached", len(days)-len(missed), "computed", len(missed), "failed_sources", adapterErrs)
	return results, nil
}

// fetchAll calls every adapter concurrently, each under its own timeout.
// Failures are returned per adapter and never cancel the others.
func (s *Service) fetchAll(ctx context.Context, loc types.Point, start, end time.Time) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(s.adapters))
	if len(s.adapters) == 0 {
		return outcomes
	}

	limit := len(s.adapters)
	if s.opts.MaxParallelFetch > 0 && s.opts.MaxParallelFetch < limit {
		limit = s.opts.MaxParallelFetch
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, a := range s.adapters {
		i, a := i, a
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, s.opts.SourceTimeout)
			defer cancel()
			ms, err := a.Fetch(actx, loc.Lat, loc.Lon, start, end)
			outcomes[i] = fetchOutcome{measurements: ms, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// InvalidateLocation drops every cached day for loc.
func (s *Service) InvalidateLocation(ctx context.Context, loc types.Point) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	return s.cache.InvalidateLocation(ctx, loc.Fingerprint())
}
