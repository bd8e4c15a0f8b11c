// Package main is the entry point of the ETo fusion API server.
//
// It loads configuration, builds the normals store and the reference index,
// wires the source adapters, the two-tier cache and the fusion service behind
// the HTTP chassis, and runs the expiry sweep on a gocron schedule. SIGINT and
// SIGTERM trigger a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"etofusion/internal/anomaly"
	"etofusion/internal/api/handlers"
	"etofusion/internal/cache"
	"etofusion/internal/config"
	"etofusion/internal/core"
	"etofusion/internal/db"
	"etofusion/internal/fusion"
	"etofusion/internal/scheduler"
	"etofusion/internal/sources"
	"etofusion/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var provider config.SecretProvider = config.NewEnvVarProvider()
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("etofusion starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer pool.Close()

	app, err := buildApp(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}

	if cfg.Sweep.Enabled {
		if err := app.runner.Start(); err != nil {
			return err
		}
		defer app.runner.Stop()
	}

	return serve(ctx, app.server, cfg.Server, logger)
}

type application struct {
	server *core.Server
	runner *scheduler.Runner
}

func buildApp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*application, error) {
	clock := types.RealClock{}

	store, err := loadNormals(ctx, cfg, pool, logger)
	if err != nil {
		return nil, err
	}
	if !store.HasPeriod(cfg.Fusion.NormalsPeriod) {
		logger.Warn("normals store has no rows for the configured period; classification will be unweighted",
			"period", cfg.Fusion.NormalsPeriod)
	}

	resolver, err := buildResolver(cfg.Proximity, store, pool, logger)
	if err != nil {
		return nil, err
	}

	adapters, err := sources.NewAdapters(cfg.Sources, logger)
	if err != nil {
		return nil, fmt.Errorf("building source adapters: %w", err)
	}

	fusedRepo := db.NewFusedRecordRepository(pool)
	records := cache.NewTwoTier(
		cache.NewMemoryTier(cfg.Cache.VolatileSize, cfg.Cache.VolatileMaxTTL, clock),
		fusedRepo,
		cfg.Cache.DurableWindow,
		clock,
		logger,
	)

	svc := fusion.NewService(
		resolver,
		anomaly.NewClassifier(store, cfg.Fusion.NormalsPeriod),
		records,
		adapters,
		fusion.Options{
			RadiusKm:         cfg.Proximity.RadiusKm,
			MaxResults:       cfg.Proximity.MaxResults,
			MaxParallelFetch: cfg.Fusion.MaxParallelFetch,
			SourceTimeout:    cfg.Fusion.SourceTimeout,
			ResultTTL:        cfg.Fusion.ResultTTL,
			FinishTimeout:    cfg.Fusion.FinishTimeout,
		},
		clock,
		logger,
	)

	srv := core.NewServer(cfg.Server, cfg.Build, logger)
	etoHandler := handlers.NewEToHandler(svc, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Route("/eto", etoHandler.RegisterRoutes)
	})
	srv.HealthProbes = []core.HealthProbe{
		core.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
		core.ProbeFunc{ProbeName: "normals", Fn: func(context.Context) error {
			if store.Len() == 0 {
				return errors.New("normals store is empty")
			}
			return nil
		}},
	}
	srv.MountRoutes()

	sweep := scheduler.NewSweepService(
		records,
		db.NewJobLockRepository(pool),
		db.NewJobHistoryRepository(pool),
		"etofusion-"+uuid.NewString(),
		cfg.Sweep.LockTTL,
		logger,
	)

	return &application{
		server: srv,
		runner: scheduler.NewRunner(sweep, cfg.Sweep.Interval, clock, logger),
	}, nil
}

func serve(ctx context.Context, srv *core.Server, cfg config.ServerConfig, logger *slog.Logger) error {
	httpServer := srv.HTTPServer()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
