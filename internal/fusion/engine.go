package fusion

import (
	"math"
	"sort"
	"time"

	"etofusion/internal/types"
)

type sample struct {
	source string
	x      float64
	w      float64
}

// Fuse combines one day's classified measurements into a FusedDailyRecord.
// Each variable is the weighted mean of the finite values reported for it,
// with the weighted standard deviation as its uncertainty. Variables nobody
// reported are left out of Values. ComputedAt is left for the caller.
//
// Fuse is a static estimator: nothing carries over between days.
func Fuse(date time.Time, cms []types.ClassifiedMeasurement, vars []types.Variable) (types.FusedDailyRecord, error) {
	if len(cms) == 0 {
		return types.FusedDailyRecord{}, types.ErrInsufficientData
	}
	vars = types.NormalizeVariables(vars)

	values := make(map[types.Variable]types.FusedValue, len(vars))
	contributors := make(map[string]struct{})
	flagged := false

	for _, v := range vars {
		samples := make([]sample, 0, len(cms))
		for _, cm := range cms {
			x := cm.Measurement.Value(v)
			if math.IsNaN(x) || math.IsInf(x, 0) || !(cm.Weight > 0) {
				continue
			}
			samples = append(samples, sample{source: cm.Measurement.Source, x: x, w: cm.Weight})
			contributors[cm.Measurement.Source] = struct{}{}
			if cm.Label != types.ClassNormal {
				flagged = true
			}
		}
		if len(samples) == 0 {
			continue
		}
		values[v] = fuseSamples(samples)
	}

	if len(values) == 0 {
		return types.FusedDailyRecord{}, types.ErrInsufficientData
	}

	sources := make([]string, 0, len(contributors))
	for s := range contributors {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	quality := types.QualityGood
	if flagged || len(sources) < 2 {
		quality = types.QualityDegraded
	}

	return types.FusedDailyRecord{
		Date:        types.TruncateDay(date),
		Values:      values,
		SourceCount: len(sources),
		Sources:     sources,
		Quality:     quality,
	}, nil
}

// fuseSamples sorts before summing so the floating-point result does not
// depend on input order.
func fuseSamples(s []sample) types.FusedValue {
	sort.Slice(s, func(i, j int) bool {
		if s[i].source != s[j].source {
			return s[i].source < s[j].source
		}
		if s[i].x != s[j].x {
			return s[i].x < s[j].x
		}
		return s[i].w < s[j].w
	})

	var sumW, sumWX float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range s {
		sumW += p.w
		sumWX += p.w * p.x
		lo = math.Min(lo, p.x)
		hi = math.Max(hi, p.x)
	}
	// Clamp away rounding drift outside the input range.
	mean := math.Min(math.Max(sumWX/sumW, lo), hi)

	var sumSq float64
	for _, p := range s {
		d := p.x - mean
		sumSq += p.w * d * d
	}

	return types.FusedValue{
		Value:       mean,
		Uncertainty: math.Sqrt(sumSq / sumW),
		Sources:     len(s),
	}
}
