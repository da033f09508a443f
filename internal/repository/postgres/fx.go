package postgres

import (
	"go.uber.org/fx"
)

// Module provides the postgres repositories for fx DI
var Module = fx.Module("repositories",
	fx.Provide(NewWatchRepository),
	fx.Provide(NewLedgerRepository),
	fx.Provide(NewAdminRepository),
)
