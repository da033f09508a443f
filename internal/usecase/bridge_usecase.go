package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
	"github.com/internationalcrisis/tgbridge/internal/infrastructure/metrics"
	"github.com/internationalcrisis/tgbridge/internal/translator"
)

// systemChannelID is Telegram's service notification account. Its messages
// are never relayed.
const systemChannelID = 777000

// BridgeUseCase drives a message event through the full pipeline: ledger
// registration, destination resolution, media relocation, text translation
// and fan-out delivery.
type BridgeUseCase struct {
	watchRepo  domain.WatchRepository
	ledger     domain.LedgerRepository
	relocator  domain.MediaRelocator
	translator *translator.Translator
	origins    domain.OriginLookup
	sender     domain.WebhookSender

	eventTimeout    time.Duration
	sendConcurrency int

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewBridgeUseCase creates the delivery pipeline use case
func NewBridgeUseCase(
	watchRepo domain.WatchRepository,
	ledger domain.LedgerRepository,
	relocator domain.MediaRelocator,
	tr *translator.Translator,
	origins domain.OriginLookup,
	sender domain.WebhookSender,
	cfg *config.BridgeConfig,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *BridgeUseCase {
	return &BridgeUseCase{
		watchRepo:       watchRepo,
		ledger:          ledger,
		relocator:       relocator,
		translator:      tr,
		origins:         origins,
		sender:          sender,
		eventTimeout:    cfg.EventTimeout,
		sendConcurrency: cfg.SendConcurrency,
		logger:          logger.With().Str("component", "bridge").Logger(),
		metrics:         m,
	}
}

// ProcessMessage relays a single (non-album) message event. Album members
// must go through ProcessAlbum; passing one here returns ErrGroupedMessage.
func (u *BridgeUseCase) ProcessMessage(ctx context.Context, msg *domain.Message) error {
	if msg.GroupedID != 0 {
		return domain.ErrGroupedMessage
	}
	return u.process(ctx, msg, nil)
}

// ProcessAlbum relays a buffered album as one logical message. The member
// with the lowest message ID leads: it keys the ledger entry and carries the
// text, while media is gathered from every member.
func (u *BridgeUseCase) ProcessAlbum(ctx context.Context, msgs []*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	lead := msgs[0]
	for _, m := range msgs[1:] {
		if m.MessageID < lead.MessageID {
			lead = m
		}
	}

	// Split by message ID, not pointer: the caption merge below replaces
	// the lead value and must not push the original lead into extra.
	var extra []*domain.Message
	for _, m := range msgs {
		if m.MessageID != lead.MessageID {
			extra = append(extra, m)
		}
	}

	// The caption may sit on any member
	if lead.Text == "" {
		for _, m := range msgs {
			if m.Text != "" {
				lead = mergeLeadText(lead, m)
				break
			}
		}
	}

	return u.process(ctx, lead, extra)
}

// mergeLeadText keeps the lead's identity but adopts the captioned member's
// text and annotations
func mergeLeadText(lead, captioned *domain.Message) *domain.Message {
	merged := *lead
	merged.Text = captioned.Text
	merged.Annotations = captioned.Annotations
	return &merged
}

// process runs the pipeline for a message plus optional extra album members
func (u *BridgeUseCase) process(ctx context.Context, msg *domain.Message, extra []*domain.Message) error {
	if msg.ChannelID == systemChannelID {
		u.logger.Debug().Int("message_id", msg.MessageID).Msg("discarding system channel message")
		u.metrics.RecordEventSkipped("system_channel")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, u.eventTimeout)
	defer cancel()

	log := u.logger.With().
		Int64("channel_id", msg.ChannelID).
		Int("message_id", msg.MessageID).
		Logger()

	source, wasNew, err := u.ledger.EnsureSourceMessage(ctx, msg.ChannelID, msg.MessageID)
	if err != nil {
		u.metrics.RecordEventError()
		return fmt.Errorf("failed to register source message: %w", err)
	}
	if !wasNew {
		log.Warn().Msg("source message seen before, re-checking deliveries")
		u.metrics.RecordRedelivery()
	}

	destinations, err := u.watchRepo.ResolveDestinations(ctx, msg.ChannelID)
	if err != nil {
		u.metrics.RecordEventError()
		return fmt.Errorf("failed to resolve destinations: %w", err)
	}
	if len(destinations) == 0 {
		log.Debug().Msg("no destinations watch this channel")
		u.metrics.RecordEventSkipped("no_destinations")
		return nil
	}

	params := u.compose(ctx, msg, extra, log)

	if err := u.fanOut(ctx, source, destinations, params, log); err != nil {
		u.metrics.RecordEventError()
		return err
	}

	u.metrics.RecordEventProcessed()
	return nil
}

// compose builds the webhook payload: relocated media, translated text and
// forward attribution, shared across all destinations. Composition never
// fails the event; missing avatar, media or attribution just leave their
// section out.
func (u *BridgeUseCase) compose(ctx context.Context, msg *domain.Message, extra []*domain.Message, log zerolog.Logger) domain.SendParams {
	avatarURL, err := u.relocator.RelocateChatAvatar(ctx, msg.Chat)
	if err != nil {
		log.Warn().Err(err).Msg("failed to relocate chat avatar, delivering without it")
		avatarURL = ""
	}

	var mediaURLs []string
	for _, m := range append([]*domain.Message{msg}, extra...) {
		url, err := u.relocator.RelocateMessageMedia(ctx, m)
		if err != nil {
			// Media loss degrades the event, never drops it: the text still
			// goes out, only this attachment's URL is missing.
			if !errors.Is(err, domain.ErrMediaTooLarge) {
				log.Warn().Err(err).
					Int("message_id", m.MessageID).
					Msg("failed to relocate media, delivering without it")
			}
			continue
		}
		if url != "" {
			mediaURLs = append(mediaURLs, url)
		}
	}

	attribution := ""
	if msg.Forward != nil {
		origin, err := u.origins.LookupForwardOrigin(ctx, msg.Forward)
		if err != nil {
			log.Warn().Err(err).Msg("failed to look up forward origin")
			attribution = translator.AttributionLookupFailed
		} else {
			attribution = translator.FormatAttribution(origin)
		}
	}

	body := u.translator.Translate(msg.Text, msg.Annotations)
	content := translator.Compose(attribution, body, mediaURLs)

	username := msg.Chat.Title
	if username == "" {
		username = fmt.Sprintf("Channel %d", msg.ChannelID)
	}

	return domain.SendParams{
		Content:   content,
		Username:  username,
		AvatarURL: avatarURL,
	}
}

// fanOut delivers the payload to every destination with bounded concurrency.
// Destinations already in the ledger are skipped, so redeliveries only reach
// webhooks that missed the message. Destinations fail independently: the
// group deliberately does not derive a cancelling context, so one failure
// never aborts a sibling's in-flight send.
func (u *BridgeUseCase) fanOut(ctx context.Context, source *domain.SourceMessage, destinations []domain.Webhook, params domain.SendParams, log zerolog.Logger) error {
	var g errgroup.Group
	g.SetLimit(u.sendConcurrency)

	for _, dest := range destinations {
		g.Go(func() error {
			return u.deliverOne(ctx, source, dest, params, log)
		})
	}

	return g.Wait()
}

func (u *BridgeUseCase) deliverOne(ctx context.Context, source *domain.SourceMessage, dest domain.Webhook, params domain.SendParams, log zerolog.Logger) error {
	log = log.With().Str("webhook_id", dest.ID).Logger()

	delivered, err := u.ledger.HasDelivered(ctx, source.ID, dest.ID)
	if err != nil {
		return fmt.Errorf("failed to check delivery ledger: %w", err)
	}
	if delivered {
		log.Debug().Msg("already delivered, skipping")
		u.metrics.RecordDeliverySkipped()
		return nil
	}

	start := time.Now()
	resultID, err := u.sender.Send(ctx, dest.URL, params)
	if err != nil {
		log.Error().Err(err).Msg("webhook delivery failed")
		u.metrics.RecordDeliveryError("send_failed")
		return fmt.Errorf("failed to deliver to webhook %s: %w", dest.ID, err)
	}

	if err := u.ledger.RecordDelivery(ctx, source.ID, dest.ID, resultID); err != nil {
		if errors.Is(err, domain.ErrAlreadyDelivered) {
			// A concurrent redelivery won the race; the message reached the
			// destination either way.
			log.Debug().Msg("delivery recorded concurrently")
			u.metrics.RecordDeliverySkipped()
			return nil
		}
		// The message is out but the ledger has no row: the one case where a
		// later redelivery can duplicate it.
		log.Error().Err(err).
			Str("result_message_id", resultID).
			Msg("delivery sent but not recorded, duplicate possible on redelivery")
		u.metrics.RecordLedgerRecordError()
		return fmt.Errorf("failed to record delivery: %w", err)
	}

	u.metrics.RecordDelivery(time.Since(start).Seconds())
	log.Info().
		Str("result_message_id", resultID).
		Msg("message delivered")

	return nil
}
