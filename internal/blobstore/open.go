package blobstore

import (
	"fmt"

	"podsearch/internal/config"
	"podsearch/internal/services"
)

// NewFromConfig builds the configured store backend.
func NewFromConfig(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", services.ErrConfiguration)
	}
	switch cfg.Storage.Backend {
	case config.StorageLocal:
		return NewLocal(cfg.Storage.Root)
	case config.StorageSupabase:
		return NewSupabase(cfg.Storage.URL, cfg.Storage.APIKey, cfg.Storage.Bucket)
	default:
		return nil, fmt.Errorf("%w: unsupported storage backend %q", services.ErrConfiguration, cfg.Storage.Backend)
	}
}
