package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationInvalidLat,
		Message: "Latitude must be between -90 and 90",
	}

	expected := "validation_invalid_latitude: Latitude must be between -90 and 90"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection refused")
	appErr := NewAppError(ErrCodeInternalDB, "failed to read fused record", underlying)

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() = %v, want %v", appErr.Unwrap(), underlying)
	}
	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	appErr := NewAppError(ErrCodeUpstreamSourceTimeout, "open_meteo timed out", nil)
	wrapped := fmt.Errorf("fetch failed: %w", appErr)

	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should extract *AppError")
	}
	if target.Code != ErrCodeUpstreamSourceTimeout {
		t.Errorf("Code = %q, want %q", target.Code, ErrCodeUpstreamSourceTimeout)
	}
}

func TestSentinelsMatchByCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{"no reference data", NewAppError(ErrCodeNoReferenceData, "nothing within 200 km", nil), ErrNoReferenceData, true},
		{"insufficient data", NewAppError(ErrCodeInsufficientData, "empty", nil), ErrInsufficientData, true},
		{"cache persistence wrapped", fmt.Errorf("put: %w", NewAppError(ErrCodeCachePersistence, "x", nil)), ErrCachePersistence, true},
		{"different code", NewAppError(ErrCodeInternalDB, "x", nil), ErrNoReferenceData, false},
		{"plain error", errors.New("boom"), ErrInsufficientData, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.sentinel); got != tt.want {
				t.Errorf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewAppError(ErrCodeUpstreamSourceRateLimited, "429", nil))
	if !IsCode(err, ErrCodeUpstreamSourceRateLimited) {
		t.Error("IsCode should match wrapped code")
	}
	if IsCode(err, ErrCodeUpstreamSourceTimeout) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(nil, ErrCodeInternalDB) {
		t.Error("IsCode(nil) should be false")
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidLat, http.StatusBadRequest},
		{ErrCodeValidationDateRange, http.StatusBadRequest},
		{ErrCodeValidationInvalidVariable, http.StatusBadRequest},
		{ErrCodeNoReferenceData, http.StatusNotFound},
		{ErrCodeInsufficientData, http.StatusNotFound},
		{ErrCodeUpstreamSourceRateLimited, http.StatusTooManyRequests},
		{ErrCodeUpstreamSourceTimeout, http.StatusGatewayTimeout},
		{ErrCodeUpstreamSourceInvalid, http.StatusBadGateway},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeCacheTransient, http.StatusServiceUnavailable},
		{ErrCodeCachePersistence, http.StatusInternalServerError},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	orig := NewAppErrorWithDetails(ErrCodeValidationDateRange, "too long", nil, map[string]any{"days": 400})
	cp := orig.WithDetails(map[string]any{"max_days": 366})

	if _, ok := orig.Details["max_days"]; ok {
		t.Error("original details were mutated")
	}
	if cp.Details["days"] != 400 || cp.Details["max_days"] != 366 {
		t.Errorf("merged details = %v", cp.Details)
	}
	if cp.Code != orig.Code {
		t.Errorf("Code = %q, want %q", cp.Code, orig.Code)
	}
}
