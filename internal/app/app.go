package app

import (
	"go.uber.org/fx"

	"github.com/internationalcrisis/tgbridge/config"
	deliveryhttp "github.com/internationalcrisis/tgbridge/internal/delivery/http"
	deliverytelegram "github.com/internationalcrisis/tgbridge/internal/delivery/telegram"
	"github.com/internationalcrisis/tgbridge/internal/infrastructure/database"
	infrahttp "github.com/internationalcrisis/tgbridge/internal/infrastructure/http"
	"github.com/internationalcrisis/tgbridge/internal/infrastructure/logger"
	"github.com/internationalcrisis/tgbridge/internal/infrastructure/metrics"
	"github.com/internationalcrisis/tgbridge/internal/infrastructure/storage"
	infratelegram "github.com/internationalcrisis/tgbridge/internal/infrastructure/telegram"
	"github.com/internationalcrisis/tgbridge/internal/media"
	"github.com/internationalcrisis/tgbridge/internal/repository/postgres"
	"github.com/internationalcrisis/tgbridge/internal/usecase"
	"github.com/internationalcrisis/tgbridge/internal/webhook"
)

// CreateApp creates the fx application with all dependencies
func CreateApp() fx.Option {
	return fx.Options(
		fx.Provide(config.Out),
		fx.Provide(logger.NewLogger),
		fx.Provide(metrics.GetDefaultMetrics),
		fx.Provide(webhook.NewClient),
		database.Module,
		postgres.Module,
		storage.Module,
		infratelegram.Module,
		media.Module,
		usecase.Module,
		deliverytelegram.Module,
		infrahttp.Module,
		deliveryhttp.Module,
	)
}
