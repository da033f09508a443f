package http

import (
	"go.uber.org/fx"

	"github.com/internationalcrisis/tgbridge/internal/infrastructure/http/server"
)

// Module provides the admin API handlers for fx DI
var Module = fx.Module("admin-api",
	fx.Provide(NewAdminHandler),
	fx.Provide(NewRouter),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *Router, srv *server.Server) {
	r.RegisterRoutes(srv.Router)
}
