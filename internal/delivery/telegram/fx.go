package telegram

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
	infratelegram "github.com/internationalcrisis/tgbridge/internal/infrastructure/telegram"
	"github.com/internationalcrisis/tgbridge/internal/usecase"
)

// Module provides the Telegram update handler for fx DI
var Module = fx.Module("telegram-handler",
	fx.Provide(NewUpdateHandlerFx),
	fx.Invoke(func(*UpdateHandler) {}),
)

// NewUpdateHandlerFx creates the update handler and registers it on the
// client's dispatcher before the connection starts
func NewUpdateHandlerFx(
	lc fx.Lifecycle,
	bridge *usecase.BridgeUseCase,
	watchRepo domain.WatchRepository,
	bridgeCfg *config.BridgeConfig,
	client *infratelegram.Client,
	logger zerolog.Logger,
) *UpdateHandler {
	handler := NewUpdateHandler(bridge, watchRepo, bridgeCfg, logger)
	handler.Register(client.Dispatcher())

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			handler.FlushAlbumBuffer()
			return nil
		},
	})

	return handler
}
