package http

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/internationalcrisis/tgbridge/internal/domain"
	"github.com/internationalcrisis/tgbridge/pkg/httputil"
)

// AdminHandler serves the routing administration API: webhooks, watchgroups
// and channel registration
type AdminHandler struct {
	repo   domain.AdminRepository
	logger zerolog.Logger
}

// NewAdminHandler creates a new admin API handler
func NewAdminHandler(repo domain.AdminRepository, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		repo:   repo,
		logger: logger.With().Str("component", "admin_api").Logger(),
	}
}

type createWebhookRequest struct {
	URL      string `json:"url"`
	ServerID int64  `json:"server_id"`
}

type webhookResponse struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	ServerID int64  `json:"server_id"`
	Active   bool   `json:"active"`
}

type createWatchgroupRequest struct {
	Name string `json:"name"`
}

type watchgroupResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Members  int64  `json:"members"`
	Watchers int64  `json:"watchers"`
}

type channelResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Registered   bool    `json:"registered"`
	WatchgroupID *string `json:"watchgroup_id,omitempty"`
}

type addChannelRequest struct {
	ChannelID int64 `json:"channel_id"`
}

type addWatchgroupRequest struct {
	WatchgroupID string `json:"watchgroup_id"`
}

type setRegisteredRequest struct {
	Registered bool `json:"registered"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles the health check request
func (h *AdminHandler) Health(ctx *fasthttp.RequestCtx) {
	httputil.WriteResponse(ctx, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// CreateWebhook handles POST /api/v1/webhooks
func (h *AdminHandler) CreateWebhook(ctx *fasthttp.RequestCtx) {
	var req createWebhookRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		httputil.WriteErrorResponse(ctx, "invalid request body", fasthttp.StatusBadRequest)
		return
	}
	if req.URL == "" {
		httputil.WriteErrorResponse(ctx, "url is required", fasthttp.StatusBadRequest)
		return
	}

	webhook, err := h.repo.CreateWebhook(ctx, req.URL, req.ServerID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			httputil.WriteErrorResponse(ctx, "webhook already exists", fasthttp.StatusConflict)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create webhook")
		httputil.WriteError(ctx, err, fasthttp.StatusInternalServerError)
		return
	}

	h.logger.Info().Str("webhook_id", webhook.ID).Msg("webhook created")
	httputil.WriteResponseWithStatus(ctx, toWebhookResponse(webhook), fasthttp.StatusCreated)
}

// ListWebhooks handles GET /api/v1/webhooks
func (h *AdminHandler) ListWebhooks(ctx *fasthttp.RequestCtx) {
	webhooks, err := h.repo.ListWebhooks(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list webhooks")
		httputil.WriteError(ctx, err, fasthttp.StatusInternalServerError)
		return
	}

	resp := make([]webhookResponse, 0, len(webhooks))
	for i := range webhooks {
		resp = append(resp, toWebhookResponse(&webhooks[i]))
	}
	httputil.WriteResponse(ctx, resp)
}

// DeleteWebhook handles DELETE /api/v1/webhooks/{id}
func (h *AdminHandler) DeleteWebhook(ctx *fasthttp.RequestCtx) {
	id, ok := ctx.UserValue("id").(string)
	if !ok || id == "" {
		httputil.WriteErrorResponse(ctx, "webhook id is required", fasthttp.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteWebhook(ctx, id); err != nil {
		if errors.Is(err, domain.ErrWebhookNotFound) {
			httputil.WriteErrorResponse(ctx, "webhook not found", fasthttp.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("webhook_id", id).Msg("failed to delete webhook")
		httputil.WriteError(ctx, err, fasthttp.StatusInternalServerError)
		return
	}

	h.logger.Info().Str("webhook_id", id).Msg("webhook deleted")
	httputil.WriteResponse(ctx, nil)
}

// AddChannelToWebhook handles POST /api/v1/webhooks/{id}/channels
func (h *AdminHandler) AddChannelToWebhook(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	var req addChannelRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.ChannelID == 0 {
		httputil.WriteErrorResponse(ctx, "channel_id is required", fasthttp.StatusBadRequest)
		return
	}

	if err := h.repo.AddChannelToWebhook(ctx, id, req.ChannelID); err != nil {
		h.writeMembershipError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, nil)
}

// RemoveChannelFromWebhook handles DELETE /api/v1/webhooks/{id}/channels/{channel_id}
func (h *AdminHandler) RemoveChannelFromWebhook(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	channelID, err := channelIDParam(ctx)
	if err != nil {
		httputil.WriteErrorResponse(ctx, "invalid channel id", fasthttp.StatusBadRequest)
		return
	}

	if err := h.repo.RemoveChannelFromWebhook(ctx, id, channelID); err != nil {
		h.writeMembershipError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, nil)
}

// AddWatchgroupToWebhook handles POST /api/v1/webhooks/{id}/watchgroups
func (h *AdminHandler) AddWatchgroupToWebhook(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	var req addWatchgroupRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.WatchgroupID == "" {
		httputil.WriteErrorResponse(ctx, "watchgroup_id is required", fasthttp.StatusBadRequest)
		return
	}

	if err := h.repo.AddWatchgroupToWebhook(ctx, id, req.WatchgroupID); err != nil {
		h.writeMembershipError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, nil)
}

// RemoveWatchgroupFromWebhook handles DELETE /api/v1/webhooks/{id}/watchgroups/{watchgroup_id}
func (h *AdminHandler) RemoveWatchgroupFromWebhook(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)
	watchgroupID, _ := ctx.UserValue("watchgroup_id").(string)

	if err := h.repo.RemoveWatchgroupFromWebhook(ctx, id, watchgroupID); err != nil {
		h.writeMembershipError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, nil)
}

// CreateWatchgroup handles POST /api/v1/watchgroups
func (h *AdminHandler) CreateWatchgroup(ctx *fasthttp.RequestCtx) {
	var req createWatchgroupRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Name == "" {
		httputil.WriteErrorResponse(ctx, "name is required", fasthttp.StatusBadRequest)
		return
	}

	group, err := h.repo.CreateWatchgroup(ctx, req.Name)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			httputil.WriteErrorResponse(ctx, "watchgroup already exists", fasthttp.StatusConflict)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create watchgroup")
		httputil.WriteError(ctx, err, fasthttp.StatusInternalServerError)
		return
	}

	h.logger.Info().Str("watchgroup_id", group.ID).Str("name", group.Name).Msg("watchgroup created")
	httputil.WriteResponseWithStatus(ctx, watchgroupResponse{ID: group.ID, Name: group.Name}, fasthttp.StatusCreated)
}

// ListWatchgroups handles GET /api/v1/watchgroups. Member and watcher
// counts are computed on demand, never cached.
func (h *AdminHandler) ListWatchgroups(ctx *fasthttp.RequestCtx) {
	groups, err := h.repo.ListWatchgroups(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list watchgroups")
		httputil.WriteError(ctx, err, fasthttp.StatusInternalServerError)
		return
	}

	resp := make([]watchgroupResponse, 0, len(groups))
	for _, group := range groups {
		members, err := h.repo.CountWatchgroupMembers(ctx, group.ID)
		if err != nil {
			httputil.WriteError(ctx, err, fasthttp.StatusInternalServerError)
			return
		}
		watchers, err := h.repo.CountWatchgroupWatchers(ctx, group.ID)
		if err != nil {
			httputil.WriteError(ctx, err, fasthttp.StatusInternalServerError)
			return
		}
		resp = append(resp, watchgroupResponse{
			ID:       group.ID,
			Name:     group.Name,
			Members:  members,
			Watchers: watchers,
		})
	}

	httputil.WriteResponse(ctx, resp)
}

// AddChannelToWatchgroup handles POST /api/v1/watchgroups/{id}/channels
func (h *AdminHandler) AddChannelToWatchgroup(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	var req addChannelRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.ChannelID == 0 {
		httputil.WriteErrorResponse(ctx, "channel_id is required", fasthttp.StatusBadRequest)
		return
	}

	if err := h.repo.AddChannelToWatchgroup(ctx, id, req.ChannelID); err != nil {
		h.writeMembershipError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, nil)
}

// ListChannels handles GET /api/v1/channels
func (h *AdminHandler) ListChannels(ctx *fasthttp.RequestCtx) {
	channels, err := h.repo.ListChannels(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list channels")
		httputil.WriteError(ctx, err, fasthttp.StatusInternalServerError)
		return
	}

	resp := make([]channelResponse, 0, len(channels))
	for _, ch := range channels {
		resp = append(resp, channelResponse{
			ID:           ch.ID,
			Name:         ch.Name,
			Registered:   ch.Registered,
			WatchgroupID: ch.WatchgroupID,
		})
	}

	httputil.WriteResponse(ctx, resp)
}

// SetChannelRegistered handles PATCH /api/v1/channels/{id}
func (h *AdminHandler) SetChannelRegistered(ctx *fasthttp.RequestCtx) {
	channelID, err := channelIDParam(ctx)
	if err != nil {
		httputil.WriteErrorResponse(ctx, "invalid channel id", fasthttp.StatusBadRequest)
		return
	}

	var req setRegisteredRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		httputil.WriteErrorResponse(ctx, "invalid request body", fasthttp.StatusBadRequest)
		return
	}

	if err := h.repo.SetChannelRegistered(ctx, channelID, req.Registered); err != nil {
		if errors.Is(err, domain.ErrChannelNotFound) {
			httputil.WriteErrorResponse(ctx, "channel not found", fasthttp.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Int64("channel_id", channelID).Msg("failed to update channel registration")
		httputil.WriteError(ctx, err, fasthttp.StatusInternalServerError)
		return
	}

	h.logger.Info().Int64("channel_id", channelID).Bool("registered", req.Registered).Msg("channel registration updated")
	httputil.WriteResponse(ctx, nil)
}

func (h *AdminHandler) writeMembershipError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, domain.ErrWebhookNotFound):
		httputil.WriteErrorResponse(ctx, "webhook not found", fasthttp.StatusNotFound)
	case errors.Is(err, domain.ErrWatchgroupNotFound):
		httputil.WriteErrorResponse(ctx, "watchgroup not found", fasthttp.StatusNotFound)
	case errors.Is(err, domain.ErrChannelNotFound):
		httputil.WriteErrorResponse(ctx, "channel not found", fasthttp.StatusNotFound)
	default:
		h.logger.Error().Err(err).Msg("membership update failed")
		httputil.WriteError(ctx, err, fasthttp.StatusInternalServerError)
	}
}

func toWebhookResponse(w *domain.Webhook) webhookResponse {
	return webhookResponse{
		ID:       w.ID,
		URL:      w.URL,
		ServerID: w.ServerID,
		Active:   w.Active,
	}
}

func channelIDParam(ctx *fasthttp.RequestCtx) (int64, error) {
	raw, ok := ctx.UserValue("channel_id").(string)
	if !ok {
		raw, ok = ctx.UserValue("id").(string)
		if !ok {
			return 0, errors.New("missing channel id")
		}
	}
	return strconv.ParseInt(raw, 10, 64)
}
