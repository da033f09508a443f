package telegram

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// Module provides the Telegram MTProto client for fx DI
var Module = fx.Module("telegram",
	fx.Provide(NewClientFx),
	fx.Provide(provideOriginLookup),
	fx.Provide(provideMediaDownloader),
)

// NewClientFx creates the MTProto client with lifecycle hooks for fx DI.
// Update handlers must be registered on the dispatcher before OnStart runs,
// which fx guarantees because registration happens in constructors.
func NewClientFx(
	lc fx.Lifecycle,
	telegramCfg *config.TelegramConfig,
	logger zerolog.Logger,
) (*Client, error) {
	client, err := NewClient(telegramCfg, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Connect(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	return client, nil
}

func provideOriginLookup(client *Client) domain.OriginLookup {
	return client
}

func provideMediaDownloader(client *Client) domain.MediaDownloader {
	return client
}
