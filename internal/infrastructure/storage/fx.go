package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// Module provides the configured storage backend for fx DI
var Module = fx.Module("storage",
	fx.Provide(NewBackendFx),
)

// NewBackendFx selects the enabled backend from config. Config validation
// guarantees exactly one is enabled.
func NewBackendFx(
	lc fx.Lifecycle,
	cfg *config.StorageConfig,
	logger zerolog.Logger,
) (domain.StorageBackend, error) {
	switch {
	case cfg.S3.Enabled:
		backend, err := NewS3Backend(&cfg.S3, logger)
		if err != nil {
			return nil, err
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				logger.Info().Msg("initializing S3/MinIO storage backend...")
				if err := backend.EnsureBucket(ctx); err != nil {
					return err
				}
				logger.Info().Msg("S3/MinIO storage backend initialized successfully")
				return nil
			},
		})

		return backend, nil

	case cfg.Local.Enabled:
		return NewLocalBackend(&cfg.Local, logger)

	default:
		return nil, fmt.Errorf("no storage backend enabled")
	}
}
