package anomaly

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etofusion/internal/proximity"
	"etofusion/internal/types"
)

const period = "1991-2020"

// ladder for a January ETo baseline around 5 mm/day.
var janETo = types.PercentileLadder{
	P01: 2.0, P05: 3.0, P10: 3.5, P25: 4.2,
	P75: 5.8, P90: 6.5, P95: 7.0, P99: 8.0,
}

type fakeNormals map[string]types.MonthlyClimateNormal

func (f fakeNormals) Lookup(refID string, month int, p string) (types.MonthlyClimateNormal, bool) {
	n, ok := f[refID]
	if !ok || n.Month != month || n.Period != p {
		return types.MonthlyClimateNormal{}, false
	}
	return n, true
}

func newTestClassifier() *Classifier {
	return NewClassifier(fakeNormals{
		"brasilia": {
			ReferenceID: "brasilia", Period: period, Month: 1,
			ETo: types.VariableNormal{Mean: 5, Median: 5, Percentiles: janETo},
		},
	}, period)
}

func measurement(eto float64) types.SourceMeasurement {
	m := types.NewSourceMeasurement("open_meteo", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	m.ETo = eto
	return m
}

var links = []types.ProximityLink{
	{ReferenceID: "goiania", DistanceKm: 5, Confidence: 0.95},
	{ReferenceID: "brasilia", DistanceKm: 10, Confidence: 0.8},
}

func TestClassify_Bands(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name   string
		eto    float64
		label  types.Classification
		weight float64
	}{
		{"median", 5.0, types.ClassNormal, 0.8},
		{"at p05", 3.0, types.ClassNormal, 0.8},
		{"at p95", 7.0, types.ClassNormal, 0.8},
		{"low extreme", 2.5, types.ClassExtreme, 0.7 * 0.8},
		{"high extreme", 7.5, types.ClassExtreme, 0.7 * 0.8},
		{"at p01", 2.0, types.ClassOutlier, 0.1 * 0.8},
		{"at p99", 8.0, types.ClassOutlier, 0.1 * 0.8},
		{"far beyond", 12.0, types.ClassOutlier, 0.1 * 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(measurement(tt.eto), links)
			assert.Equal(t, tt.label, got.Label)
			assert.InDelta(t, tt.weight, got.Weight, 1e-12)
			// goiania is nearer but has no normals.
			assert.Equal(t, "brasilia", got.ReferenceID)
		})
	}
}

func TestClassify_NoBaselineFallsBack(t *testing.T) {
	c := newTestClassifier()

	got := c.Classify(measurement(12.0), nil)
	assert.Equal(t, types.ClassNormal, got.Label)
	assert.Equal(t, 1.0, got.Weight)
	assert.Empty(t, got.ReferenceID)

	// Normals exist for January only.
	m := measurement(12.0)
	m.Date = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	got = c.Classify(m, links)
	assert.Equal(t, types.ClassNormal, got.Label)
	assert.Equal(t, 1.0, got.Weight)
}

func TestClassify_MissingEToIsNormal(t *testing.T) {
	got := newTestClassifier().Classify(measurement(math.NaN()), links)
	assert.Equal(t, types.ClassNormal, got.Label)
	assert.InDelta(t, 0.8, got.Weight, 1e-12)
}

func TestClassify_WeightFloor(t *testing.T) {
	far := []types.ProximityLink{{ReferenceID: "brasilia", DistanceKm: 190, Confidence: 0.02}}
	got := newTestClassifier().Classify(measurement(12.0), far)
	assert.Equal(t, types.ClassOutlier, got.Label)
	assert.Equal(t, MinWeight, got.Weight)
}

func TestClassify_Deterministic(t *testing.T) {
	c := newTestClassifier()
	m := measurement(7.7)
	assert.Equal(t, c.Classify(m, links), c.Classify(m, links))
}

func TestClassify_Monotonic(t *testing.T) {
	c := newTestClassifier()
	median := 5.0

	for _, dir := range []float64{-1, 1} {
		prev := 0
		for step := 0; step <= 200; step++ {
			v := median + dir*float64(step)*0.05
			got := c.Classify(measurement(v), links)
			sev := got.Label.Severity()
			assert.GreaterOrEqual(t, sev, prev, "severity dropped at %v", v)
			prev = sev
		}
		assert.Equal(t, types.ClassOutlier.Severity(), prev)
	}
}

func TestClassifyAll(t *testing.T) {
	out := newTestClassifier().ClassifyAll([]types.SourceMeasurement{measurement(5), measurement(12)}, links)
	assert.Len(t, out, 2)
	assert.Equal(t, types.ClassNormal, out[0].Label)
	assert.Equal(t, types.ClassOutlier, out[1].Label)
}

func TestFinalWeight_Bounds(t *testing.T) {
	for _, label := range []types.Classification{types.ClassNormal, types.ClassExtreme, types.ClassOutlier} {
		for _, conf := range []float64{0, 0.3, 1, math.NaN()} {
			w := FinalWeight(label, conf)
			assert.GreaterOrEqual(t, w, MinWeight)
			assert.LessOrEqual(t, w, 1.0)
		}
	}
}

func TestClassify_CityBehindDenseStations(t *testing.T) {
	cands := []types.Candidate{
		{ID: "brasilia", Kind: types.CandidateCity, Lat: -15.663, Lon: -47.93},
	}
	for i, id := range []string{"S1", "S2", "S3", "S4", "S5"} {
		cands = append(cands, types.Candidate{
			ID: id, Kind: types.CandidateStation, Lat: -15.78 + float64(i+1)*0.001, Lon: -47.93,
		})
	}
	resolver := proximity.NewResolver(proximity.NewMemoryIndex(cands), 50, nil)
	got, err := resolver.Nearest(context.Background(), types.Point{Lat: -15.78, Lon: -47.93}, 200, 5)
	require.NoError(t, err)

	c := newTestClassifier()
	high := c.Classify(measurement(12.0), got)
	assert.Equal(t, types.ClassOutlier, high.Label)
	assert.Equal(t, "brasilia", high.ReferenceID)
	assert.Less(t, high.Weight, 0.1)

	normal := c.Classify(measurement(5.0), got)
	assert.Equal(t, types.ClassNormal, normal.Label)
	assert.Greater(t, normal.Weight, high.Weight)
}
