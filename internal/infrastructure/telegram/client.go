package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// Client wraps a gotd MTProto client. It listens for channel updates through
// an update dispatcher and serves origin lookups and media downloads for the
// delivery pipeline.
type Client struct {
	// Telegram client instance
	client     *telegram.Client
	dispatcher tg.UpdateDispatcher

	// API credentials
	apiID   int
	apiHash string
	phone   string

	// Connection state
	connected     bool
	disconnecting bool
	mu            sync.RWMutex
	cancelFunc    context.CancelFunc
	runDone       chan struct{} // Signals when client.Run() completes

	// Logger
	logger zerolog.Logger

	// API client for making requests
	api *tg.Client

	// Rate limiter for API calls
	rateLimiter *rate.Limiter
}

// NewClient creates a new MTProto client instance
func NewClient(cfg *config.TelegramConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.APIID == 0 {
		return nil, fmt.Errorf("APIID is required")
	}
	if cfg.APIHash == "" {
		return nil, fmt.Errorf("APIHash is required")
	}
	if cfg.SessionFile == "" {
		return nil, fmt.Errorf("SessionFile is required")
	}

	c := &Client{
		apiID:       cfg.APIID,
		apiHash:     cfg.APIHash,
		phone:       cfg.Phone,
		dispatcher:  tg.NewUpdateDispatcher(),
		logger:      logger.With().Str("component", "mtproto_client").Logger(),
		connected:   false,
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 10), // 10 requests per second
	}

	c.client = telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
		UpdateHandler:  c.dispatcher,
	})

	return c, nil
}

// Dispatcher returns the update dispatcher. Register handlers before
// calling Connect.
func (c *Client) Dispatcher() *tg.UpdateDispatcher {
	return &c.dispatcher
}

// Connect connects to Telegram using MTProto.
// The caller should provide a context with timeout to prevent indefinite
// hanging. If no stored session exists the user is prompted on the console
// for the verification code sent via Telegram.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		c.logger.Debug().Msg("already connected")
		return nil
	}
	if c.disconnecting {
		c.mu.Unlock()
		return fmt.Errorf("disconnect in progress, cannot connect")
	}
	// Keep the lock to prevent concurrent connection attempts
	defer c.mu.Unlock()

	c.logger.Info().Msg("connecting to Telegram")

	// Create cancellable context for client lifecycle
	clientCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancelFunc = cancel

	// Channel to signal when connection is ready
	readyChan := make(chan struct{})
	errChan := make(chan error, 1)
	started := make(chan struct{})
	c.runDone = make(chan struct{})

	// Start the client in a goroutine
	go func() {
		defer close(c.runDone) // Signal when Run() completes
		close(started)
		err := c.client.Run(clientCtx, func(ctx context.Context) error {
			// Get API client
			c.api = c.client.API()

			// Check authorization status
			status, err := c.client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to check auth status: %w", err)
			}

			if !status.Authorized {
				c.logger.Info().Msg("not authorized, starting authentication")
				if err := c.authenticate(ctx); err != nil {
					c.logger.Error().Err(err).Msg("authentication failed")
					return err
				}
			} else {
				c.logger.Info().Msg("session restored from storage")
			}

			// Set connected state
			c.connected = true
			c.logger.Info().Msg("successfully connected to Telegram")

			// Signal that connection is ready
			close(readyChan)

			// Keep connection alive
			<-ctx.Done()
			return ctx.Err()
		})
		// Always send error to channel, even if nil
		select {
		case errChan <- err:
		default:
		}
	}()

	// Ensure goroutine has started
	<-started

	// Wait for connection to be fully ready or error
	select {
	case <-readyChan:
		return nil
	case err := <-errChan:
		// Cancel to clean up goroutine
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		// Cancel to clean up goroutine
		cancel()
		return ctx.Err()
	}
}

// Disconnect disconnects from Telegram with graceful shutdown.
// The session is saved by the underlying gotd client before shutdown.
// Multiple calls are safe and return nil if already disconnected.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()

	if c.disconnecting {
		c.mu.Unlock()
		c.logger.Debug().Msg("disconnect already in progress")
		return nil
	}

	if !c.connected {
		c.mu.Unlock()
		c.logger.Debug().Msg("already disconnected")
		return nil
	}

	c.logger.Info().Msg("disconnecting from Telegram")

	c.disconnecting = true
	cancelFunc := c.cancelFunc
	runDone := c.runDone
	c.mu.Unlock()

	if cancelFunc != nil {
		cancelFunc()

		// Wait for client.Run() goroutine to actually finish
		if runDone != nil {
			select {
			case <-runDone:
				c.logger.Debug().Msg("client stopped gracefully")
			case <-ctx.Done():
				c.logger.Warn().Msg("disconnect timeout reached while waiting for client shutdown")
			}
		}
	}

	c.mu.Lock()
	c.api = nil
	c.connected = false
	c.cancelFunc = nil
	c.runDone = nil
	c.disconnecting = false
	c.mu.Unlock()

	c.logger.Info().Msg("successfully disconnected from Telegram")
	return nil
}

// IsConnected checks if client is connected to Telegram
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) apiClient() (*tg.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.api == nil {
		return nil, fmt.Errorf("not connected to Telegram")
	}
	return c.api, nil
}

// LookupForwardOrigin resolves a forward header into a concrete origin by
// asking Telegram for the referenced user or channel
func (c *Client) LookupForwardOrigin(ctx context.Context, header *domain.ForwardHeader) (*domain.ForwardOrigin, error) {
	if header == nil {
		return nil, nil
	}

	// Hidden accounts carry only a display name
	if header.FromUserID == 0 && header.FromChannelID == 0 {
		return &domain.ForwardOrigin{
			Kind: domain.OriginHidden,
			Name: header.FromName,
		}, nil
	}

	api, err := c.apiClient()
	if err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	if header.FromUserID != 0 {
		return c.lookupUserOrigin(ctx, api, header)
	}
	return c.lookupChannelOrigin(ctx, api, header)
}

func (c *Client) lookupUserOrigin(ctx context.Context, api *tg.Client, header *domain.ForwardHeader) (*domain.ForwardOrigin, error) {
	users, err := api.UsersGetUsers(ctx, []tg.InputUserClass{
		&tg.InputUser{UserID: header.FromUserID, AccessHash: header.FromUserAccess},
	})
	if err != nil {
		c.logger.Error().Err(err).Int64("user_id", header.FromUserID).Msg("failed to look up forward origin user")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			return &domain.ForwardOrigin{
				Kind:      domain.OriginUser,
				FirstName: user.FirstName,
				LastName:  user.LastName,
				Username:  user.Username,
			}, nil
		}
	}

	return nil, fmt.Errorf("forward origin user %d not found", header.FromUserID)
}

func (c *Client) lookupChannelOrigin(ctx context.Context, api *tg.Client, header *domain.ForwardHeader) (*domain.ForwardOrigin, error) {
	chats, err := api.ChannelsGetChannels(ctx, []tg.InputChannelClass{
		&tg.InputChannel{ChannelID: header.FromChannelID, AccessHash: header.FromChannelAccess},
	})
	if err != nil {
		c.logger.Error().Err(err).Int64("channel_id", header.FromChannelID).Msg("failed to look up forward origin channel")
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	for _, chat := range chats.GetChats() {
		if channel, ok := chat.(*tg.Channel); ok {
			return &domain.ForwardOrigin{
				Kind:       domain.OriginChannel,
				Title:      channel.Title,
				Handle:     channel.Username,
				PostAuthor: header.PostAuthor,
			}, nil
		}
	}

	return nil, fmt.Errorf("forward origin channel %d not found", header.FromChannelID)
}

// DownloadToPath streams the file behind the opaque location to path in
// chunks
func (c *Client) DownloadToPath(ctx context.Context, location any, path string) error {
	loc, ok := location.(tg.InputFileLocationClass)
	if !ok {
		return fmt.Errorf("unsupported file location type %T", location)
	}

	api, err := c.apiClient()
	if err != nil {
		return err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	c.logger.Debug().Str("path", path).Msg("downloading file from Telegram")

	_, err = downloader.NewDownloader().Download(api, loc).ToPath(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}

	return nil
}

var (
	_ domain.OriginLookup    = (*Client)(nil)
	_ domain.MediaDownloader = (*Client)(nil)
)
