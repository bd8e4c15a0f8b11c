package types

import (
	"fmt"
	"time"
)

// Validation constraint constants.
const (
	MinLat = -90.0
	MaxLat = 90.0
	MinLon = -180.0
	MaxLon = 180.0

	// MaxRangeDays bounds a single series request.
	MaxRangeDays = 366
)

// ValidateDateRange checks that [start, end] is ordered and within MaxRangeDays.
func ValidateDateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return NewAppError(ErrCodeValidationMissingField, "start and end dates are required", nil)
	}
	start, end = TruncateDay(start), TruncateDay(end)
	if end.Before(start) {
		return NewAppError(ErrCodeValidationDateRange,
			fmt.Sprintf("end %s is before start %s", end.Format(DateLayout), start.Format(DateLayout)), nil)
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > MaxRangeDays {
		return NewAppErrorWithDetails(ErrCodeValidationDateRange,
			fmt.Sprintf("range of %d days exceeds maximum of %d", days, MaxRangeDays), nil,
			map[string]any{"days": days, "max_days": MaxRangeDays})
	}
	return nil
}

// ValidateVariables parses raw variable names, failing on the first unknown one.
func ValidateVariables(raw []string) ([]Variable, error) {
	out := make([]Variable, 0, len(raw))
	for _, s := range raw {
		v, err := ParseVariable(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return NormalizeVariables(out), nil
}
