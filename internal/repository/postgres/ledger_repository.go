package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// ledgerRepository implements domain.LedgerRepository. The uniqueness
// constraints on source_messages and deliveries are the sole concurrency
// guard: two racing writers of the same row see exactly one insert succeed
// and one duplicate-key error.
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new delivery ledger repository
func NewLedgerRepository(db *gorm.DB) domain.LedgerRepository {
	return &ledgerRepository{db: db}
}

// EnsureSourceMessage gets or creates the row for (channel, message)
func (r *ledgerRepository) EnsureSourceMessage(ctx context.Context, channelID int64, messageID int) (*domain.SourceMessage, bool, error) {
	msg := &domain.SourceMessage{
		ChannelID: channelID,
		MessageID: messageID,
	}

	result := r.db.WithContext(ctx).Create(msg)
	if result.Error == nil {
		return msg, true, nil
	}

	if !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return nil, false, fmt.Errorf("failed to create source message: %w", result.Error)
	}

	// Lost the insert race or the message was seen before; fetch the
	// existing row so deliveries attach to it.
	var existing domain.SourceMessage
	if err := r.db.WithContext(ctx).
		Where("channel_id = ? AND message_id = ?", channelID, messageID).
		First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load existing source message: %w", err)
	}

	return &existing, false, nil
}

// HasDelivered checks if a delivery row exists for the pair
func (r *ledgerRepository) HasDelivered(ctx context.Context, sourceMessageID uint, webhookID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Delivery{}).
		Where("source_message_id = ? AND webhook_id = ?", sourceMessageID, webhookID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check delivery status: %w", err)
	}

	return count > 0, nil
}

// RecordDelivery appends a delivery row. A duplicate-key violation is
// surfaced as domain.ErrAlreadyDelivered so a racing second recorder can
// detect-and-skip instead of double-inserting.
func (r *ledgerRepository) RecordDelivery(ctx context.Context, sourceMessageID uint, webhookID, resultMessageID string) error {
	delivery := &domain.Delivery{
		SourceMessageID: sourceMessageID,
		WebhookID:       webhookID,
		ResultMessageID: resultMessageID,
	}

	result := r.db.WithContext(ctx).Create(delivery)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyDelivered
		}
		return fmt.Errorf("failed to record delivery: %w", result.Error)
	}

	return nil
}
