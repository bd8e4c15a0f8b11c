// Package main implements the job-runner CLI for invoking maintenance tasks
// directly, bypassing the Lambda shim. It is meant for local development and
// manual runs.
//
// Usage:
//
//	go run ./cmd/tools/job-runner --task=cache_sweep
//	go run ./cmd/tools/job-runner --task=cache_sweep --reference-time=2026-01-15T02:00:00Z
//	go run ./cmd/tools/job-runner --dry-run --task=cache_sweep
//	go run ./cmd/tools/job-runner --list
//
// DATABASE_URL is read from the environment or a .env file. The sweep takes
// the same hourly job lock as the scheduled runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"etofusion/internal/cache"
	"etofusion/internal/db"
	"etofusion/internal/scheduler"
	"etofusion/internal/types"
)

var validTasks = map[scheduler.TaskType]string{
	scheduler.TaskCacheSweep: "Delete durable cache entries whose expires_at has passed",
}

func main() {
	taskFlag := flag.String("task", "", "Task type to execute (e.g., cache_sweep)")
	refTimeFlag := flag.String("reference-time", "", "Override reference time (RFC3339)")
	listFlag := flag.Bool("list", false, "List all available task types and exit")
	dryRunFlag := flag.Bool("dry-run", false, "Print the JSON payload without executing")
	flag.Parse()

	if *listFlag {
		printAvailableTasks()
		return
	}

	taskType := scheduler.TaskType(*taskFlag)
	if _, ok := validTasks[taskType]; !ok {
		fmt.Fprintf(os.Stderr, "error: unknown task type %q\n\n", *taskFlag)
		printAvailableTasks()
		os.Exit(1)
	}

	var refTime *time.Time
	if *refTimeFlag != "" {
		t, err := time.Parse(time.RFC3339, *refTimeFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid --reference-time %q: %v\n", *refTimeFlag, err)
			os.Exit(1)
		}
		refTime = &t
	}
	payload := scheduler.MaintenancePayload{Task: taskType, ReferenceTime: refTime}

	if *dryRunFlag {
		out, _ := json.MarshalIndent(payload, "", "  ")
		fmt.Println(string(out))
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	n, err := runSweep(ctx, payload, logger)
	if err != nil {
		logger.Error("task execution failed", "task", string(payload.Task), "error", err)
		os.Exit(1)
	}
	logger.Info("task execution succeeded", "task", string(payload.Task), "deleted", n)
}

func runSweep(ctx context.Context, payload scheduler.MaintenancePayload, logger *slog.Logger) (int, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return 0, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return 0, fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return 0, fmt.Errorf("pinging database: %w", err)
	}

	now := time.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	clock := types.FixedClock{T: now}
	records := cache.NewTwoTier(
		cache.NewMemoryTier(1, time.Hour, clock),
		db.NewFusedRecordRepository(pool),
		cache.DefaultDurableWindow,
		clock,
		logger,
	)
	sweep := scheduler.NewSweepService(
		records,
		db.NewJobLockRepository(pool),
		db.NewJobHistoryRepository(pool),
		"job-runner-"+uuid.NewString(),
		scheduler.DefaultLockTTL,
		logger,
	)
	return sweep.PurgeExpired(ctx, now)
}

func printAvailableTasks() {
	names := make([]string, 0, len(validTasks))
	for t := range validTasks {
		names = append(names, string(t))
	}
	sort.Strings(names)
	fmt.Println("Available tasks:")
	for _, n := range names {
		fmt.Printf("  %-20s %s\n", n, validTasks[scheduler.TaskType(n)])
	}
}
