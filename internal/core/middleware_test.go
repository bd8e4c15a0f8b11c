package core

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etofusion/internal/config"
	"etofusion/internal/types"
)

func newTestServer(buf *bytes.Buffer, register func(chi.Router)) *Server {
	logger := slog.New(slog.NewJSONHandler(buf, nil))
	s := NewServer(config.ServerConfig{
		RequestTimeout:     time.Second,
		CorsAllowedOrigins: []string{"https://app.example.com"},
	}, config.BuildInfo{Version: "1.2.3"}, logger)
	if register != nil {
		s.V1RouteRegistrars = append(s.V1RouteRegistrars, register)
	}
	s.MountRoutes()
	return s
}

func TestRequestID_GeneratedAndPropagated(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	s := newTestServer(&buf, func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			seen = types.GetRequestID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	req.Header.Set("X-Request-Id", "caller-supplied")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "caller-supplied", seen)
	assert.Contains(t, buf.String(), `"request_id":"caller-supplied"`)
}

func TestRecoverer(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(&buf, func(r chi.Router) {
		r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), detail.Code)
	assert.NotEmpty(t, detail.RequestID)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestContextTimeout(t *testing.T) {
	var buf bytes.Buffer
	var deadline time.Time
	s := newTestServer(&buf, func(r chi.Router) {
		r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
			deadline, _ = r.Context().Deadline()
			w.WriteHeader(http.StatusOK)
		})
	})

	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/slow", nil))
	require.False(t, deadline.IsZero())
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestCORS(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(&buf, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/eto/series", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/eto/series", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeadersAndNotFound(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(&buf, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
	assert.Contains(t, buf.String(), `"status":404`)
}

func TestHandleHealth(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(&buf, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"1.2.3"}`, rec.Body.String())

	s.HealthProbes = []HealthProbe{
		ProbeFunc{ProbeName: "database", Fn: func(context.Context) error { return nil }},
		ProbeFunc{ProbeName: "normals", Fn: func(context.Context) error { return assert.AnError }},
		ProbeFunc{ProbeName: "panicky", Fn: func(context.Context) error { panic("x") }},
	}
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":{"status":"healthy"}`)
	assert.Contains(t, rec.Body.String(), "probe panicked")
}

func TestHandleHealth_ProbeTimeout(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(&buf, nil)
	s.HealthProbes = []HealthProbe{
		ProbeFunc{ProbeName: "stuck", Fn: func(ctx context.Context) error {
			time.Sleep(healthCheckTimeout + 500*time.Millisecond)
			return nil
		}},
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "timed out")
}

func TestHandleVersion(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(&buf, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.JSONEq(t, `{"version":"1.2.3","commit":"","build_time":""}`, rec.Body.String())
}
