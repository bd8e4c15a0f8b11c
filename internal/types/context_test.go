package types

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithRequestID_GetRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-abc")
	if got := GetRequestID(ctx); got != "req-abc" {
		t.Errorf("GetRequestID = %q, want %q", got, "req-abc")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("empty context returned %q", got)
	}
}

func TestWithLogger_LoggerFromContext(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if got := LoggerFromContext(context.Background(), fallback); got != fallback {
		t.Error("expected fallback logger on empty context")
	}
	if got := LoggerFromContext(context.Background(), nil); got != slog.Default() {
		t.Error("expected slog.Default() without fallback")
	}

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil)).With("request_id", "req-1")
	ctx := WithLogger(context.Background(), l)
	LoggerFromContext(ctx, fallback).Info("hello")
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Errorf("log output = %q", buf.String())
	}
}
