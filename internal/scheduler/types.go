// Package scheduler runs the periodic cache expiry sweep, either in-process
// on a gocron schedule or from a scheduled Lambda invocation.
package scheduler

import "time"

// TaskType identifies a scheduled task in an EventBridge payload.
type TaskType string

const (
	TaskCacheSweep TaskType = "cache_sweep"
)

// MaintenancePayload is the JSON payload EventBridge sends to the sweeper
// Lambda:
//
//	{
//	  "task": "cache_sweep",
//	  "reference_time": "2026-02-06T03:00:00Z"  // optional
//	}
type MaintenancePayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides "now" for manual runs. Nil means time.Now().UTC().
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}
