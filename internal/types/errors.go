package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Callers compare codes, never messages.
const (
	// Validation (400). Produced by the request layer before the engine runs.
	ErrCodeValidationInvalidLat       ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon       ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationDateRange        ErrorCode = "validation_invalid_date_range"
	ErrCodeValidationMissingField     ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidVariable  ErrorCode = "validation_invalid_variable"
	ErrCodeValidationInvalidNormal    ErrorCode = "validation_invalid_climate_normal"
	ErrCodeValidationInvalidParameter ErrorCode = "validation_invalid_parameter"

	// Degradation signals. Never fatal to a whole request.
	ErrCodeNoReferenceData  ErrorCode = "no_reference_data"
	ErrCodeInsufficientData ErrorCode = "insufficient_data"

	// Per-source failures (502).
	ErrCodeUpstreamSourceTimeout     ErrorCode = "upstream_source_timeout"
	ErrCodeUpstreamSourceRateLimited ErrorCode = "upstream_source_rate_limited"
	ErrCodeUpstreamSourceInvalid     ErrorCode = "upstream_source_invalid_response"
	ErrCodeUpstreamSourceUnavailable ErrorCode = "upstream_source_unavailable"
	ErrCodeUpstreamUnavailable       ErrorCode = "upstream_unavailable"

	// Cache tiers.
	ErrCodeCachePersistence ErrorCode = "internal_cache_persistence"
	ErrCodeCacheTransient   ErrorCode = "cache_transient"

	// Internal (500).
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeInternalSnapshot   ErrorCode = "internal_snapshot_corruption"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case c == ErrCodeNoReferenceData, c == ErrCodeInsufficientData:
		return http.StatusNotFound // 404
	case c == ErrCodeUpstreamSourceRateLimited:
		return http.StatusTooManyRequests // 429
	case c == ErrCodeUpstreamSourceTimeout:
		return http.StatusGatewayTimeout // 504
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case c == ErrCodeCacheTransient:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the engine.
// Components return AppErrors at their boundaries so the orchestrator can decide
// per error code whether a failure is isolated or fatal for its step.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError carrying the same code. This lets
// the package-level sentinels below match any AppError with their code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// Sentinels for errors.Is checks. Match any AppError with the same code.
var (
	// ErrNoReferenceData signals that no reference location lies within the
	// requested radius. Callers degrade to unweighted classification.
	ErrNoReferenceData = &AppError{Code: ErrCodeNoReferenceData, Message: "no reference data within radius"}

	// ErrInsufficientData signals an empty measurement set for a day.
	ErrInsufficientData = &AppError{Code: ErrCodeInsufficientData, Message: "no measurements to fuse"}

	// ErrCachePersistence signals a failed durable-tier write.
	ErrCachePersistence = &AppError{Code: ErrCodeCachePersistence, Message: "durable cache write failed"}
)

// IsCode reports whether err is (or wraps) an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, &AppError{Code: code})
}
