// Package sources fetches daily weather measurements from external providers.
// Every outbound call goes through BaseClient, which applies circuit
// breaking, bounded retries with backoff, and maps failures to SourceError.
package sources

import (
	"context"
	"fmt"
	"time"

	"etofusion/internal/types"
)

// Source names used in measurements and config.
const (
	SourceOpenMeteo = "open_meteo"
	SourceNASAPower = "nasa_power"
)

// Adapter fetches daily measurements for a point over an inclusive date range.
// Days the provider has no data for are simply absent from the result.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64, start, end time.Time) ([]types.SourceMeasurement, error)
}

// Kind classifies a source failure.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindRateLimited     Kind = "rate_limited"
	KindInvalidResponse Kind = "invalid_response"
	KindUnavailable     Kind = "unavailable"
)

// SourceError is returned by adapters and BaseClient.
type SourceError struct {
	Source string
	Kind   Kind
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Code maps the kind onto the upstream_source_* error codes.
func (e *SourceError) Code() types.ErrorCode {
	switch e.Kind {
	case KindTimeout:
		return types.ErrCodeUpstreamSourceTimeout
	case KindRateLimited:
		return types.ErrCodeUpstreamSourceRateLimited
	case KindInvalidResponse:
		return types.ErrCodeUpstreamSourceInvalid
	default:
		return types.ErrCodeUpstreamSourceUnavailable
	}
}

// Is lets types.IsCode and errors.Is match a SourceError by its code.
func (e *SourceError) Is(target error) bool {
	t, ok := target.(*types.AppError)
	return ok && t.Code == e.Code()
}

func newSourceError(source string, kind Kind, err error) *SourceError {
	return &SourceError{Source: source, Kind: kind, Err: err}
}
