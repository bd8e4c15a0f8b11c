// Package main implements normals-pack, which exports the reference
// locations, stations and monthly normals of one period from Postgres into
// the zstd snapshot the server loads at startup.
//
// Usage:
//
//	go run ./cmd/tools/normals-pack --period=1991-2020 --out=data/normals.json.zst
//	go run ./cmd/tools/normals-pack --period=1991-2020 --s3-bucket=my-bucket --s3-key=normals/latest.json.zst
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"etofusion/internal/db"
	"etofusion/internal/normals"
)

func main() {
	period := flag.String("period", "1991-2020", "Climatological period to export")
	out := flag.String("out", "", "Write the snapshot to this file")
	bucket := flag.String("s3-bucket", "", "Upload the snapshot to this bucket")
	key := flag.String("s3-key", "normals/latest.json.zst", "Object key for --s3-bucket")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if *out == "" && *bucket == "" {
		fmt.Fprintln(os.Stderr, "error: one of --out or --s3-bucket is required")
		os.Exit(1)
	}
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *period, *out, *bucket, *key, logger); err != nil {
		logger.Error("normals export failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, period, out, bucket, key string, logger *slog.Logger) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()

	snap, err := normals.LoadDB(ctx, db.NewReferenceRepository(pool), db.NewNormalsRepository(pool), period)
	if err != nil {
		return err
	}
	// Building the store validates every row before anything is written.
	if _, err := snap.Store(); err != nil {
		return err
	}

	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		if err := normals.WriteSnapshot(f, snap); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", out, err)
		}
		logger.Info("snapshot written", "path", out, "normals", len(snap.Normals))
	}

	if bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("loading aws config: %w", err)
		}
		client := normals.NewSDKClient(s3.NewFromConfig(awsCfg))
		if err := normals.PublishS3(ctx, client, bucket, key, snap); err != nil {
			return err
		}
		logger.Info("snapshot uploaded", "bucket", bucket, "key", key, "normals", len(snap.Normals))
	}
	return nil
}
