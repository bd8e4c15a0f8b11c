package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"etofusion/internal/config"
	"etofusion/internal/db"
	"etofusion/internal/normals"
	"etofusion/internal/proximity"
)

// indexCacheSize bounds the memoized candidate queries.
const indexCacheSize = 4096

// loadNormals builds the read-only normals store from the configured source.
func loadNormals(ctx context.Context, cfg *config.Config, dbtx db.DBTX, logger *slog.Logger) (*normals.Store, error) {
	var (
		snap *normals.Snapshot
		err  error
	)
	switch cfg.Normals.Source {
	case "s3":
		client, cerr := newS3Client(ctx, cfg.AWS)
		if cerr != nil {
			return nil, cerr
		}
		snap, err = normals.LoadS3(ctx, normals.NewSDKClient(client), cfg.Normals.S3Bucket, cfg.Normals.S3Key)
	case "db":
		snap, err = normals.LoadDB(ctx, db.NewReferenceRepository(dbtx), db.NewNormalsRepository(dbtx), cfg.Fusion.NormalsPeriod)
	default:
		snap, err = normals.LoadFile(cfg.Normals.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading normals from %s: %w", cfg.Normals.Source, err)
	}

	store, err := snap.Store()
	if err != nil {
		return nil, fmt.Errorf("building normals store: %w", err)
	}
	logger.Info("normals loaded",
		"source", cfg.Normals.Source,
		"version", snap.Version,
		"references", len(store.References()),
		"stations", len(store.Stations()),
		"normals", store.Len(),
	)
	return store, nil
}

// buildResolver picks the candidate index: the in-memory scan over the
// loaded store, or the PostGIS query. Both are memoized.
func buildResolver(cfg config.ProximityConfig, store *normals.Store, dbtx db.DBTX, logger *slog.Logger) (*proximity.Resolver, error) {
	var index proximity.CandidateIndex
	switch cfg.Index {
	case "postgis":
		index = db.NewReferenceRepository(dbtx)
	default:
		index = proximity.NewMemoryIndex(store.Candidates())
	}
	cached, err := proximity.NewCachedIndex(index, indexCacheSize)
	if err != nil {
		return nil, fmt.Errorf("building candidate index: %w", err)
	}
	return proximity.NewResolver(cached, cfg.ScaleKm, logger), nil
}

func newS3Client(ctx context.Context, cfg config.AWSConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	}), nil
}
