package media

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
	"github.com/internationalcrisis/tgbridge/internal/infrastructure/metrics"
)

// Module provides the media relocator for fx DI
var Module = fx.Module("media",
	fx.Provide(NewRelocatorFx),
)

// NewRelocatorFx creates the media relocator for fx DI
func NewRelocatorFx(
	downloader domain.MediaDownloader,
	backend domain.StorageBackend,
	storageCfg *config.StorageConfig,
	bridgeCfg *config.BridgeConfig,
	logger zerolog.Logger,
	m *metrics.Metrics,
) (domain.MediaRelocator, error) {
	return NewRelocator(downloader, backend, storageCfg, bridgeCfg, logger, m)
}
