// Package anomaly labels source measurements against monthly climate normals
// and turns the label into a fusion weight.
package anomaly

import (
	"math"

	"etofusion/internal/types"
)

// Base weights per classification label.
const (
	WeightNormal  = 1.0
	WeightExtreme = 0.7
	WeightOutlier = 0.1

	// MinWeight keeps every source in the ensemble.
	MinWeight = 0.05
)

// NormalsLookup is the read side of the normals store.
type NormalsLookup interface {
	Lookup(refID string, month int, period string) (types.MonthlyClimateNormal, bool)
}

// Classifier is pure: the same measurement and links always yield the same
// result. Safe for concurrent use.
type Classifier struct {
	normals NormalsLookup
	period  string
}

// NewClassifier creates a Classifier reading baselines for period.
func NewClassifier(normals NormalsLookup, period string) *Classifier {
	return &Classifier{normals: normals, period: period}
}

// Classify labels m using the nearest linked reference that has normals for
// m's month. Without such a reference the measurement is normal with weight 1.
func (c *Classifier) Classify(m types.SourceMeasurement, links []types.ProximityLink) types.ClassifiedMeasurement {
	link, normal, ok := c.baseline(m, links)
	if !ok {
		return types.ClassifiedMeasurement{Measurement: m, Label: types.ClassNormal, Weight: WeightNormal}
	}

	label := types.ClassNormal
	if !math.IsNaN(m.ETo) {
		label = Band(m.ETo, normal.ETo.Percentiles)
	}
	return types.ClassifiedMeasurement{
		Measurement: m,
		Label:       label,
		Weight:      FinalWeight(label, link.Confidence),
		ReferenceID: link.ReferenceID,
	}
}

// ClassifyAll classifies a day's measurements against the same links.
func (c *Classifier) ClassifyAll(ms []types.SourceMeasurement, links []types.ProximityLink) []types.ClassifiedMeasurement {
	out := make([]types.ClassifiedMeasurement, len(ms))
	for i, m := range ms {
		out[i] = c.Classify(m, links)
	}
	return out
}

func (c *Classifier) baseline(m types.SourceMeasurement, links []types.ProximityLink) (types.ProximityLink, types.MonthlyClimateNormal, bool) {
	if c.normals == nil || m.Date.IsZero() {
		return types.ProximityLink{}, types.MonthlyClimateNormal{}, false
	}
	month := int(m.Date.Month())

	var (
		best   types.ProximityLink
		normal types.MonthlyClimateNormal
		found  bool
	)
	for _, l := range links {
		if found && (l.DistanceKm > best.DistanceKm ||
			(l.DistanceKm == best.DistanceKm && l.ReferenceID >= best.ReferenceID)) {
			continue
		}
		n, ok := c.normals.Lookup(l.ReferenceID, month, c.period)
		if !ok {
			continue
		}
		best, normal, found = l, n, true
	}
	return best, normal, found
}

// Band places v on the percentile ladder: at or beyond P01/P99 is an outlier,
// strictly between P01 and P05 (or P95 and P99) is extreme.
func Band(v float64, p types.PercentileLadder) types.Classification {
	switch {
	case v <= p.P01 || v >= p.P99:
		return types.ClassOutlier
	case v < p.P05 || v > p.P95:
		return types.ClassExtreme
	default:
		return types.ClassNormal
	}
}

// BaseWeight returns the label's weight before proximity scaling.
func BaseWeight(label types.Classification) float64 {
	switch label {
	case types.ClassOutlier:
		return WeightOutlier
	case types.ClassExtreme:
		return WeightExtreme
	default:
		return WeightNormal
	}
}

// FinalWeight scales the base weight by proximity confidence, floored at
// MinWeight.
func FinalWeight(label types.Classification, confidence float64) float64 {
	if math.IsNaN(confidence) {
		confidence = 0
	}
	return math.Max(BaseWeight(label)*confidence, MinWeight)
}
