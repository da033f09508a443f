package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
)

// Router registers the admin API routes
type Router struct {
	handler *AdminHandler
	logger  zerolog.Logger
}

// NewRouter creates a new admin router
func NewRouter(handler *AdminHandler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		logger:  logger,
	}
}

// RegisterRoutes registers admin routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.GET("/health", r.handler.Health)

	api := rt.Group("/api/v1")

	api.POST("/webhooks", r.handler.CreateWebhook)
	api.GET("/webhooks", r.handler.ListWebhooks)
	api.DELETE("/webhooks/{id}", r.handler.DeleteWebhook)
	api.POST("/webhooks/{id}/channels", r.handler.AddChannelToWebhook)
	api.DELETE("/webhooks/{id}/channels/{channel_id}", r.handler.RemoveChannelFromWebhook)
	api.POST("/webhooks/{id}/watchgroups", r.handler.AddWatchgroupToWebhook)
	api.DELETE("/webhooks/{id}/watchgroups/{watchgroup_id}", r.handler.RemoveWatchgroupFromWebhook)

	api.POST("/watchgroups", r.handler.CreateWatchgroup)
	api.GET("/watchgroups", r.handler.ListWatchgroups)
	api.POST("/watchgroups/{id}/channels", r.handler.AddChannelToWatchgroup)

	api.GET("/channels", r.handler.ListChannels)
	api.PATCH("/channels/{id}", r.handler.SetChannelRegistered)

	r.logger.Info().Msg("admin API routes registered")
}
