// Package main is the entry point of the cache sweeper Lambda.
//
// An EventBridge rule invokes it with a MaintenancePayload. The handler runs
// the expiry sweep, which takes the hourly job lock and records job history,
// and reports how many durable entries were deleted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"etofusion/internal/cache"
	"etofusion/internal/config"
	"etofusion/internal/db"
	"etofusion/internal/scheduler"
	"etofusion/internal/types"
)

// Sweeper runs one expiry sweep.
type Sweeper interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Handler holds the dependencies of the Lambda handler.
type Handler struct {
	Sweep  Sweeper
	Clock  types.Clock
	Logger *slog.Logger
}

// Handle runs the task named in payload at its reference time, or now.
func (h *Handler) Handle(ctx context.Context, payload scheduler.MaintenancePayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := h.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	now := clock.Now()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	logger.InfoContext(ctx, "sweeper invoked",
		"task", string(payload.Task),
		"reference_time", now.Format(time.RFC3339),
	)

	switch payload.Task {
	case scheduler.TaskCacheSweep:
	case "":
		return "", fmt.Errorf("empty task type in maintenance payload")
	default:
		return "", fmt.Errorf("unknown task type: %s", payload.Task)
	}

	n, err := h.Sweep.PurgeExpired(ctx, now)
	if err != nil {
		logger.ErrorContext(ctx, "cache sweep failed", "error", err)
		return "", fmt.Errorf("task %s failed: %w", payload.Task, err)
	}
	return fmt.Sprintf("task %s complete: %d items processed", payload.Task, n), nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("sweeper initializing (cold start)")

	provider := config.NewSSMProvider(os.Getenv("AWS_REGION"))
	if err := config.ResolveSecrets(provider); err != nil {
		logger.Error("failed to resolve SSM secrets", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := db.Open(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	clock := types.RealClock{}
	// The Lambda has no volatile tier of its own; each API instance ages its
	// memory entries out on read.
	records := cache.NewTwoTier(
		cache.NewMemoryTier(1, cfg.Cache.VolatileMaxTTL, clock),
		db.NewFusedRecordRepository(pool),
		cfg.Cache.DurableWindow,
		clock,
		logger,
	)

	workerID := uuid.NewString()
	handler := &Handler{
		Sweep: scheduler.NewSweepService(
			records,
			db.NewJobLockRepository(pool),
			db.NewJobHistoryRepository(pool),
			workerID,
			cfg.Sweep.LockTTL,
			logger,
		),
		Clock:  clock,
		Logger: logger,
	}

	logger.Info("sweeper initialized", "worker_id", workerID)
	lambda.Start(handler.Handle)
}
