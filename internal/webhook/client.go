package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// Client delivers composed messages to webhook endpoints. The wait query
// parameter makes the sink confirm the send and return the created message,
// so the returned identifier can be recorded in the ledger.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

type sendResponse struct {
	ID string `json:"id"`
}

// NewClient creates a webhook sender
func NewClient(cfg *config.BridgeConfig, logger zerolog.Logger) domain.WebhookSender {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.WebhookTimeout,
		},
		logger: logger.With().Str("component", "webhook_client").Logger(),
	}
}

// Send posts the message to the webhook URL and returns the sink-assigned
// message identifier
func (c *Client) Send(ctx context.Context, url string, params domain.SendParams) (string, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"?wait=true", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("webhook rejected the message")
		return "", fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode webhook response: %w", err)
	}

	return result.ID, nil
}
