package sources

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"etofusion/internal/config"
)

// NewAdapters builds the enabled adapters, each with its own BaseClient and
// breaker.
func NewAdapters(cfg config.SourcesConfig, logger *slog.Logger, opts ...BaseClientOption) ([]Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries
	breaker := BreakerSettings{Threshold: cfg.BreakerThreshold, Timeout: cfg.BreakerTimeout}

	newClient := func(name string) *BaseClient {
		httpClient := &http.Client{Timeout: cfg.RequestTimeout}
		if cfg.RequestTimeout <= 0 {
			httpClient.Timeout = 8 * time.Second
		}
		return NewBaseClient(name, httpClient, breaker, policy, cfg.UserAgent, opts...)
	}

	adapters := make([]Adapter, 0, len(cfg.Enabled))
	seen := make(map[string]bool, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case SourceOpenMeteo:
			adapters = append(adapters, NewOpenMeteo(newClient(name), cfg.OpenMeteoURL, logger))
		case SourceNASAPower:
			adapters = append(adapters, NewNASAPower(newClient(name), cfg.NASAPowerURL, logger))
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}

	logger.Info("initialized source adapters", "count", len(adapters), "enabled", cfg.Enabled)
	return adapters, nil
}
