package types

import (
	"fmt"
	"sort"
	"strings"
)

// Variable identifies a daily climate variable handled by the fusion engine.
type Variable string

const (
	VarETo           Variable = "eto"
	VarPrecipitation Variable = "precipitation"
	VarTempMax       Variable = "temp_max"
	VarTempMin       Variable = "temp_min"
	VarTempMean      Variable = "temp_mean"
	VarWindSpeed     Variable = "wind_speed"
	VarRadiation     Variable = "radiation"
	VarHumidity      Variable = "humidity"
)

// AllVariables lists every supported variable in canonical order.
var AllVariables = []Variable{
	VarETo,
	VarPrecipitation,
	VarTempMax,
	VarTempMin,
	VarTempMean,
	VarWindSpeed,
	VarRadiation,
	VarHumidity,
}

// DefaultVariables is used when a caller does not request a variable set.
var DefaultVariables = []Variable{VarETo, VarPrecipitation}

// VariableUnits documents the unit each variable is fused in.
var VariableUnits = map[Variable]string{
	VarETo:           "mm/day",
	VarPrecipitation: "mm/day",
	VarTempMax:       "degC",
	VarTempMin:       "degC",
	VarTempMean:      "degC",
	VarWindSpeed:     "m/s",
	VarRadiation:     "MJ/m2/day",
	VarHumidity:      "percent",
}

// ParseVariable validates a variable name.
func ParseVariable(s string) (Variable, error) {
	v := Variable(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := VariableUnits[v]; !ok {
		return "", NewAppError(ErrCodeValidationInvalidVariable, fmt.Sprintf("unsupported variable: %q", s), nil)
	}
	return v, nil
}

// NormalizeVariables returns a sorted, de-duplicated copy of vars. An empty
// input yields DefaultVariables.
func NormalizeVariables(vars []Variable) []Variable {
	if len(vars) == 0 {
		vars = DefaultVariables
	}
	seen := make(map[Variable]struct{}, len(vars))
	out := make([]Variable, 0, len(vars))
	for _, v := range vars {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// VariableSetKey renders a variable set as its canonical cache-key form.
func VariableSetKey(vars []Variable) string {
	norm := NormalizeVariables(vars)
	parts := make([]string, len(norm))
	for i, v := range norm {
		parts[i] = string(v)
	}
	return strings.Join(parts, "+")
}

// Classification is the anomaly label assigned to a single source measurement.
type Classification string

const (
	ClassNormal  Classification = "normal"
	ClassExtreme Classification = "extreme"
	ClassOutlier Classification = "outlier"
)

// Severity orders classifications: normal < extreme < outlier.
func (c Classification) Severity() int {
	switch c {
	case ClassExtreme:
		return 1
	case ClassOutlier:
		return 2
	default:
		return 0
	}
}

// Quality flags a fused daily record.
type Quality string

const (
	QualityGood                Quality = "good"
	QualityDegraded            Quality = "degraded"
	QualityInsufficientSources Quality = "insufficient_sources"
)

// DayStatus describes how a day in a requested range was resolved.
type DayStatus string

const (
	DayStatusCached  DayStatus = "cached"
	DayStatusFused   DayStatus = "fused"
	DayStatusMissing DayStatus = "missing"
	DayStatusFailed  DayStatus = "failed"
)
