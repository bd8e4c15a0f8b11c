package config

import "context"

// SecretProvider resolves secret values by key. SSM in deployed environments,
// plain environment variables locally.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every key it could
	// resolve. Missing keys are omitted rather than reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
