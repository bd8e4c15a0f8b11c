package types

import (
	"math"
	"testing"
	"time"
)

func TestPointValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		code ErrorCode
	}{
		{"valid", Point{Lat: -15.78, Lon: -47.93}, ""},
		{"poles and antimeridian", Point{Lat: 90, Lon: -180}, ""},
		{"lat too high", Point{Lat: 90.01, Lon: 0}, ErrCodeValidationInvalidLat},
		{"lat NaN", Point{Lat: math.NaN(), Lon: 0}, ErrCodeValidationInvalidLat},
		{"lon too low", Point{Lat: 0, Lon: -180.5}, ErrCodeValidationInvalidLon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !IsCode(err, tt.code) {
				t.Errorf("error = %v, want code %q", err, tt.code)
			}
		})
	}
}

func TestPointFingerprint(t *testing.T) {
	a := Point{Lat: -15.780001, Lon: -47.929999}
	b := Point{Lat: -15.78, Lon: -47.93}
	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("fingerprints differ: %q vs %q", a.Fingerprint(), b.Fingerprint())
	}
	if got := b.Fingerprint(); got != "-15.7800,-47.9300" {
		t.Errorf("Fingerprint() = %q", got)
	}
	if got := (Point{Lat: -0.00001, Lon: 0.00001}).Fingerprint(); got != "0.0000,0.0000" {
		t.Errorf("negative zero fingerprint = %q", got)
	}
}

func TestPercentileLadderValidate(t *testing.T) {
	ok := PercentileLadder{P01: 2, P05: 2.5, P10: 3, P25: 3.5, P75: 4.5, P90: 5, P95: 5.5, P99: 6}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid ladder rejected: %v", err)
	}

	flat := PercentileLadder{}
	if err := flat.Validate(); err != nil {
		t.Errorf("flat ladder should be accepted: %v", err)
	}

	bad := ok
	bad.P90 = 4.0
	if err := bad.Validate(); err == nil {
		t.Error("decreasing ladder should be rejected")
	}

	inf := ok
	inf.P99 = math.Inf(1)
	if err := inf.Validate(); err == nil {
		t.Error("infinite percentile should be rejected")
	}
}

func TestMonthlyClimateNormalValidate(t *testing.T) {
	n := MonthlyClimateNormal{ReferenceID: "brasilia", Period: "1991-2020", Month: 1}
	if err := n.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n.Month = 13
	if !IsCode(n.Validate(), ErrCodeValidationInvalidNormal) {
		t.Error("month 13 should be invalid")
	}

	n.Month = 6
	n.ETo.Percentiles.P05 = -1
	n.ETo.Percentiles.P01 = 1
	if !IsCode(n.Validate(), ErrCodeValidationInvalidNormal) {
		t.Error("non-monotone eto ladder should be invalid")
	}
}

func TestSourceMeasurementValue(t *testing.T) {
	m := NewSourceMeasurement("open_meteo", time.Date(2024, 3, 5, 17, 30, 0, 0, time.UTC))
	if !m.Date.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date not truncated: %v", m.Date)
	}
	for _, v := range AllVariables {
		if !math.IsNaN(m.Value(v)) {
			t.Errorf("%s should start NaN", v)
		}
	}
	if m.HasAnyValue(AllVariables) {
		t.Error("HasAnyValue should be false for an empty measurement")
	}

	m.ETo = 5.1
	if m.Value(VarETo) != 5.1 {
		t.Errorf("Value(eto) = %v", m.Value(VarETo))
	}
	if !m.HasAnyValue([]Variable{VarETo}) {
		t.Error("HasAnyValue should be true once eto is set")
	}
	if m.HasAnyValue([]Variable{VarPrecipitation}) {
		t.Error("HasAnyValue should only consider requested variables")
	}
}

func TestDaysInRange(t *testing.T) {
	start := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)

	days := DaysInRange(start, end)
	if len(days) != 4 {
		t.Fatalf("len = %d, want 4 (leap year)", len(days))
	}
	if days[2].Format(DateLayout) != "2024-02-29" {
		t.Errorf("days[2] = %s", days[2].Format(DateLayout))
	}
	if DaysInRange(end, start) != nil {
		t.Error("reversed range should be nil")
	}
	if n := len(DaysInRange(start, start)); n != 1 {
		t.Errorf("single-day range len = %d", n)
	}
}

func TestNormalizeVariables(t *testing.T) {
	got := NormalizeVariables([]Variable{VarPrecipitation, VarETo, VarPrecipitation})
	if len(got) != 2 || got[0] != VarETo || got[1] != VarPrecipitation {
		t.Errorf("NormalizeVariables = %v", got)
	}
	if key := VariableSetKey(nil); key != "eto+precipitation" {
		t.Errorf("default key = %q", key)
	}
	if VariableSetKey([]Variable{VarTempMax, VarETo}) != VariableSetKey([]Variable{VarETo, VarTempMax}) {
		t.Error("key must not depend on order")
	}
}

func TestClassificationSeverity(t *testing.T) {
	if !(ClassNormal.Severity() < ClassExtreme.Severity() && ClassExtreme.Severity() < ClassOutlier.Severity()) {
		t.Error("severity must order normal < extreme < outlier")
	}
}
