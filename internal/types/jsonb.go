package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// Compile-time interface assertions.
// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*FusedDailyRecord)(nil)
	_ driver.Valuer = FusedDailyRecord{}
	_ sql.Scanner   = (*VariableNormal)(nil)
	_ driver.Valuer = VariableNormal{}
)

// scanJSONB is a generic helper that scans a JSONB database value into a Go pointer.
// It handles nil values, []byte, and string representations from different database drivers.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// valueJSONB is a generic helper that converts a Go value to a JSONB-compatible driver.Value.
func valueJSONB(v interface{}) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// ---------------------------------------------------------------------------
// FusedDailyRecord
// ---------------------------------------------------------------------------

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (r *FusedDailyRecord) Scan(value interface{}) error {
	return scanJSONB(r, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
// JSON has no encoding for NaN or Inf, so such records are rejected here rather
// than stored lossy.
func (r FusedDailyRecord) Value() (driver.Value, error) {
	for v, fv := range r.Values {
		if !isFinite(fv.Value) || !isFinite(fv.Uncertainty) {
			return nil, fmt.Errorf("jsonb: fused %s is not finite", v)
		}
	}
	return valueJSONB(r)
}

// ---------------------------------------------------------------------------
// VariableNormal
// ---------------------------------------------------------------------------

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (n *VariableNormal) Scan(value interface{}) error {
	return scanJSONB(n, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (n VariableNormal) Value() (driver.Value, error) {
	return valueJSONB(n)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
