// Package config defines the process configuration for the ETo fusion service.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"etofusion/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Components receive only the
// section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"etofusion"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server    ServerConfig
	Database  DatabaseConfig
	AWS       AWSConfig
	Fusion    FusionConfig
	Cache     CacheConfig
	Proximity ProximityConfig
	Normals   NormalsConfig
	Sources   SourcesConfig
	Sweep     SweepConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	ReadTimeout        time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout       time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout    time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"20s"`
	RequestTimeout     time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"45s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2" validate:"min=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds regional settings shared by the S3 and SSM clients.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// FusionConfig tunes the orchestrator.
type FusionConfig struct {
	MaxParallelFetch int           `envconfig:"FUSION_MAX_PARALLEL_FETCH" default:"0" validate:"min=0"`
	SourceTimeout    time.Duration `envconfig:"SOURCE_TIMEOUT" default:"10s"`
	ResultTTL        time.Duration `envconfig:"FUSION_RESULT_TTL" default:"24h"`
	FinishTimeout    time.Duration `envconfig:"FUSION_FINISH_TIMEOUT" default:"5s"`
	NormalsPeriod    string        `envconfig:"NORMALS_PERIOD" default:"1991-2020"`
}

// CacheConfig tunes both cache tiers.
type CacheConfig struct {
	VolatileSize   int           `envconfig:"CACHE_VOLATILE_SIZE" default:"10000" validate:"min=1"`
	VolatileMaxTTL time.Duration `envconfig:"CACHE_VOLATILE_MAX_TTL" default:"6h"`
	DurableWindow  time.Duration `envconfig:"CACHE_DURABLE_WINDOW" default:"24h"`
}

// ProximityConfig tunes the proximity resolver.
type ProximityConfig struct {
	RadiusKm   float64 `envconfig:"PROXIMITY_RADIUS_KM" default:"200" validate:"gt=0"`
	MaxResults int     `envconfig:"PROXIMITY_MAX_RESULTS" default:"5" validate:"min=1"`
	ScaleKm    float64 `envconfig:"PROXIMITY_SCALE_KM" default:"50" validate:"gt=0"`
	// Index selects the candidate index: "memory" (from the normals snapshot)
	// or "postgis".
	Index string `envconfig:"PROXIMITY_INDEX" default:"memory" validate:"oneof=memory postgis"`
}

// NormalsConfig selects where the climate normals snapshot is loaded from.
type NormalsConfig struct {
	Source   string `envconfig:"NORMALS_SOURCE" default:"file" validate:"oneof=file s3 db"`
	Path     string `envconfig:"NORMALS_PATH" default:"data/normals.json.zst"`
	S3Bucket string `envconfig:"NORMALS_S3_BUCKET" validate:"required_if=Source s3"`
	S3Key    string `envconfig:"NORMALS_S3_KEY" default:"normals/latest.json.zst"`
}

// SourcesConfig configures the upstream data providers.
type SourcesConfig struct {
	Enabled          []string      `envconfig:"SOURCES_ENABLED" default:"open_meteo,nasa_power" validate:"min=1,dive,oneof=open_meteo nasa_power"`
	OpenMeteoURL     string        `envconfig:"OPEN_METEO_URL" default:"https://archive-api.open-meteo.com/v1/archive" validate:"url"`
	NASAPowerURL     string        `envconfig:"NASA_POWER_URL" default:"https://power.larc.nasa.gov/api/temporal/daily/point" validate:"url"`
	UserAgent        string        `envconfig:"SOURCES_USER_AGENT" default:"etofusion/1.0"`
	RequestTimeout   time.Duration `envconfig:"SOURCES_REQUEST_TIMEOUT" default:"8s"`
	MaxRetries       int           `envconfig:"SOURCES_MAX_RETRIES" default:"2" validate:"min=0"`
	BreakerThreshold uint32        `envconfig:"SOURCES_BREAKER_THRESHOLD" default:"5"`
	BreakerTimeout   time.Duration `envconfig:"SOURCES_BREAKER_TIMEOUT" default:"30s"`
}

// SweepConfig schedules the cache expiry sweep.
type SweepConfig struct {
	Enabled  bool          `envconfig:"SWEEP_ENABLED" default:"true"`
	Interval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"SWEEP_LOCK_TTL" default:"15m"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
