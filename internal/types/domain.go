package types

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar-date format used in cache keys and APIs.
const DateLayout = "2006-01-02"

// Point is a WGS-84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks coordinate bounds.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return NewAppError(ErrCodeValidationInvalidLat, fmt.Sprintf("latitude %f out of range [-90, 90]", p.Lat), nil)
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return NewAppError(ErrCodeValidationInvalidLon, fmt.Sprintf("longitude %f out of range [-180, 180]", p.Lon), nil)
	}
	return nil
}

// Fingerprint returns the location component of a cache key. Coordinates are
// rounded to 4 decimals (about 11 m), so nearby requests share entries.
func (p Point) Fingerprint() string {
	return fmt.Sprintf("%.4f,%.4f", roundTo(p.Lat, 4), roundTo(p.Lon, 4))
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	r := math.Round(v*scale) / scale
	if r == 0 {
		// Avoid "-0.0000" and "0.0000" producing different fingerprints.
		return 0
	}
	return r
}

// ReferenceLocation is a studied city with precomputed climate normals.
// Created by offline ingestion; never mutated by the engine.
type ReferenceLocation struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Country    string  `json:"country"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	ElevationM float64 `json:"elevation_m"`
}

// Point returns the location's coordinate.
func (r ReferenceLocation) Point() Point { return Point{Lat: r.Lat, Lon: r.Lon} }

// WeatherStation is an observing station used only for proximity resolution.
// A zero AvailableTo means the station is still reporting.
type WeatherStation struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	Source        string    `json:"source"`
	AvailableFrom time.Time `json:"available_from"`
	AvailableTo   time.Time `json:"available_to,omitempty"`
}

// Point returns the station's coordinate.
func (s WeatherStation) Point() Point { return Point{Lat: s.Lat, Lon: s.Lon} }

// PercentileLadder holds the stored percentiles of a monthly distribution.
type PercentileLadder struct {
	P01 float64 `json:"p01"`
	P05 float64 `json:"p05"`
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Values returns the ladder in ascending percentile order.
func (l PercentileLadder) Values() []float64 {
	return []float64{l.P01, l.P05, l.P10, l.P25, l.P75, l.P90, l.P95, l.P99}
}

// Validate enforces that the ladder is finite and non-decreasing.
func (l PercentileLadder) Validate() error {
	vals := l.Values()
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("percentile %d is not finite", i)
		}
		if i > 0 && v < vals[i-1] {
			return fmt.Errorf("percentiles decrease at index %d (%g < %g)", i, v, vals[i-1])
		}
	}
	return nil
}

// VariableNormal is the monthly statistical baseline for one variable.
type VariableNormal struct {
	Mean        float64          `json:"mean"`
	Median      float64          `json:"median"`
	StdDev      float64          `json:"std_dev"`
	Percentiles PercentileLadder `json:"percentiles"`
	Min         float64          `json:"min"`
	Max         float64          `json:"max"`
	SampleCount int              `json:"sample_count"`
}

// Validate checks the baseline invariants.
func (n VariableNormal) Validate() error {
	if n.SampleCount < 0 {
		return fmt.Errorf("sample count %d is negative", n.SampleCount)
	}
	return n.Percentiles.Validate()
}

// MonthlyClimateNormal is keyed by (ReferenceID, Period, Month).
type MonthlyClimateNormal struct {
	ReferenceID   string         `json:"reference_id"`
	Period        string         `json:"period"`
	Month         int            `json:"month"`
	ETo           VariableNormal `json:"eto"`
	Precipitation VariableNormal `json:"precipitation"`
}

// Validate rejects rows that would break classification.
func (m MonthlyClimateNormal) Validate() error {
	if m.ReferenceID == "" {
		return NewAppError(ErrCodeValidationInvalidNormal, "reference id is required", nil)
	}
	if m.Month < 1 || m.Month > 12 {
		return NewAppError(ErrCodeValidationInvalidNormal, fmt.Sprintf("month %d out of range [1, 12]", m.Month), nil)
	}
	if err := m.ETo.Validate(); err != nil {
		return NewAppError(ErrCodeValidationInvalidNormal,
			fmt.Sprintf("eto normal for %s/%s/%02d: %v", m.ReferenceID, m.Period, m.Month, err), err)
	}
	if err := m.Precipitation.Validate(); err != nil {
		return NewAppError(ErrCodeValidationInvalidNormal,
			fmt.Sprintf("precipitation normal for %s/%s/%02d: %v", m.ReferenceID, m.Period, m.Month, err), err)
	}
	return nil
}

// ProximityLink ties a query point to a reference location or station.
type ProximityLink struct {
	QueryID     string        `json:"query_id"`
	ReferenceID string        `json:"reference_id"`
	Kind        CandidateKind `json:"kind"`
	DistanceKm  float64       `json:"distance_km"`
	Weight      float64       `json:"weight"`
	Confidence  float64       `json:"confidence"`
}

// SourceMeasurement is one provider's daily reading. Fields a provider does not
// supply are NaN.
type SourceMeasurement struct {
	Source        string    `json:"source"`
	Date          time.Time `json:"date"`
	TempMax       float64   `json:"temp_max"`
	TempMin       float64   `json:"temp_min"`
	TempMean      float64   `json:"temp_mean"`
	Precipitation float64   `json:"precipitation"`
	WindSpeed     float64   `json:"wind_speed"`
	Radiation     float64   `json:"radiation"`
	Humidity      float64   `json:"humidity"`
	ETo           float64   `json:"eto"`
}

// NewSourceMeasurement returns a measurement with every numeric field unset.
func NewSourceMeasurement(source string, date time.Time) SourceMeasurement {
	nan := math.NaN()
	return SourceMeasurement{
		Source:        source,
		Date:          TruncateDay(date),
		TempMax:       nan,
		TempMin:       nan,
		TempMean:      nan,
		Precipitation: nan,
		WindSpeed:     nan,
		Radiation:     nan,
		Humidity:      nan,
		ETo:           nan,
	}
}

// Value returns the measurement's value for v, or NaN when unknown.
func (m SourceMeasurement) Value(v Variable) float64 {
	switch v {
	case VarETo:
		return m.ETo
	case VarPrecipitation:
		return m.Precipitation
	case VarTempMax:
		return m.TempMax
	case VarTempMin:
		return m.TempMin
	case VarTempMean:
		return m.TempMean
	case VarWindSpeed:
		return m.WindSpeed
	case VarRadiation:
		return m.Radiation
	case VarHumidity:
		return m.Humidity
	default:
		return math.NaN()
	}
}

// HasAnyValue reports whether at least one field of vars is finite.
func (m SourceMeasurement) HasAnyValue(vars []Variable) bool {
	for _, v := range vars {
		x := m.Value(v)
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			return true
		}
	}
	return false
}

// ClassifiedMeasurement is a measurement with its anomaly label and weight.
// ReferenceID is empty when no baseline was available.
type ClassifiedMeasurement struct {
	Measurement SourceMeasurement `json:"measurement"`
	Label       Classification    `json:"label"`
	Weight      float64           `json:"weight"`
	ReferenceID string            `json:"reference_id,omitempty"`
}

// FusedValue is the consensus value of one variable on one day.
type FusedValue struct {
	Value       float64 `json:"value"`
	Uncertainty float64 `json:"uncertainty"`
	Sources     int     `json:"sources"`
}

// FusedDailyRecord is the unit the cache stores and callers consume. It is
// never mutated after creation.
type FusedDailyRecord struct {
	Date        time.Time               `json:"date"`
	Values      map[Variable]FusedValue `json:"values"`
	SourceCount int                     `json:"source_count"`
	Sources     []string                `json:"sources"`
	Quality     Quality                 `json:"quality"`
	ComputedAt  time.Time               `json:"computed_at"`
}

// Lookup returns the fused value of v if it was computed.
func (r FusedDailyRecord) Lookup(v Variable) (FusedValue, bool) {
	fv, ok := r.Values[v]
	return fv, ok
}

// ETo returns the fused ETo in mm/day, or NaN when it was not computed.
func (r FusedDailyRecord) ETo() float64 {
	if fv, ok := r.Values[VarETo]; ok {
		return fv.Value
	}
	return math.NaN()
}

// Precipitation returns the fused precipitation, or NaN when not computed.
func (r FusedDailyRecord) Precipitation() float64 {
	if fv, ok := r.Values[VarPrecipitation]; ok {
		return fv.Value
	}
	return math.NaN()
}

// DayResult is one entry of a fused series: a record, or an explicit marker
// for a day that could not be produced.
type DayResult struct {
	Date          time.Time         `json:"date"`
	Status        DayStatus         `json:"status"`
	Record        *FusedDailyRecord `json:"record,omitempty"`
	MissingReason Quality           `json:"missing_reason,omitempty"`
	Err           error             `json:"-"`
}

// TruncateDay normalizes t to midnight UTC of its calendar date.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysInRange returns every calendar day in [start, end], both inclusive.
func DaysInRange(start, end time.Time) []time.Time {
	start, end = TruncateDay(start), TruncateDay(end)
	if end.Before(start) {
		return nil
	}
	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// CacheKey identifies one cached fused day.
type CacheKey struct {
	Fingerprint string    `json:"fingerprint"`
	Date        time.Time `json:"date"`
	VariableSet string    `json:"variable_set"`
}

// NewCacheKey builds the canonical key for a point, day and variable set.
func NewCacheKey(p Point, date time.Time, vars []Variable) CacheKey {
	return CacheKey{
		Fingerprint: p.Fingerprint(),
		Date:        TruncateDay(date),
		VariableSet: VariableSetKey(vars),
	}
}

// String renders the key as "fingerprint|date|vars". The fingerprint prefix
// lets a location be invalidated by prefix.
func (k CacheKey) String() string {
	return k.Fingerprint + "|" + k.Date.Format(DateLayout) + "|" + k.VariableSet
}

// CacheEntry is a stored record with its lifetime.
type CacheEntry struct {
	Key       CacheKey         `json:"key"`
	Record    FusedDailyRecord `json:"record"`
	StoredAt  time.Time        `json:"stored_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Expired reports whether the entry is no longer servable at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CandidateKind distinguishes reference cities from observing stations.
type CandidateKind string

const (
	CandidateCity    CandidateKind = "city"
	CandidateStation CandidateKind = "station"
)

// Candidate is a geo-indexed point the proximity resolver can link to. Zero
// availability bounds mean unbounded.
type Candidate struct {
	ID            string        `json:"id"`
	Kind          CandidateKind `json:"kind"`
	Lat           float64       `json:"lat"`
	Lon           float64       `json:"lon"`
	AvailableFrom time.Time     `json:"available_from,omitempty"`
	AvailableTo   time.Time     `json:"available_to,omitempty"`
}

// Point returns the candidate's coordinate.
func (c Candidate) Point() Point { return Point{Lat: c.Lat, Lon: c.Lon} }
