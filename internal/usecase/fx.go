package usecase

import (
	"go.uber.org/fx"

	"github.com/internationalcrisis/tgbridge/internal/translator"
)

// Module provides the bridge use case for fx DI
var Module = fx.Module("usecase",
	fx.Provide(translator.New),
	fx.Provide(NewBridgeUseCase),
)
