package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// watchRepository implements domain.WatchRepository
type watchRepository struct {
	db *gorm.DB
}

// NewWatchRepository creates a new PostgreSQL watch graph repository
func NewWatchRepository(db *gorm.DB) domain.WatchRepository {
	return &watchRepository{db: db}
}

// ResolveDestinations returns the active webhooks interested in the channel.
// Unknown or unregistered channels resolve to an empty set: unrecognized
// sources deliver to nobody.
func (r *watchRepository) ResolveDestinations(ctx context.Context, channelID int64) ([]domain.Webhook, error) {
	var channel domain.Channel
	if err := r.db.WithContext(ctx).First(&channel, channelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []domain.Webhook{}, nil
		}
		return nil, fmt.Errorf("failed to load channel %d: %w", channelID, err)
	}

	if !channel.Registered {
		return []domain.Webhook{}, nil
	}

	var direct []domain.Webhook
	if err := r.db.WithContext(ctx).
		Joins("JOIN webhook_channels ON webhook_channels.webhook_id = webhooks.id").
		Where("webhook_channels.channel_id = ? AND webhooks.active", channelID).
		Find(&direct).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve direct watches for channel %d: %w", channelID, err)
	}

	var grouped []domain.Webhook
	if channel.WatchgroupID != nil {
		if err := r.db.WithContext(ctx).
			Joins("JOIN webhook_watchgroups ON webhook_watchgroups.webhook_id = webhooks.id").
			Where("webhook_watchgroups.watchgroup_id = ? AND webhooks.active", *channel.WatchgroupID).
			Find(&grouped).Error; err != nil {
			return nil, fmt.Errorf("failed to resolve group watches for channel %d: %w", channelID, err)
		}
	}

	seen := make(map[string]struct{}, len(direct)+len(grouped))
	result := make([]domain.Webhook, 0, len(direct)+len(grouped))
	for _, wh := range direct {
		if _, ok := seen[wh.ID]; ok {
			continue
		}
		seen[wh.ID] = struct{}{}
		result = append(result, wh)
	}
	for _, wh := range grouped {
		if _, ok := seen[wh.ID]; ok {
			continue
		}
		seen[wh.ID] = struct{}{}
		result = append(result, wh)
	}

	return result, nil
}

// GetChannel retrieves a channel row
func (r *watchRepository) GetChannel(ctx context.Context, id int64) (*domain.Channel, error) {
	var channel domain.Channel
	if err := r.db.WithContext(ctx).First(&channel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get channel %d: %w", id, err)
	}
	return &channel, nil
}

// EnsureChannel creates the channel row on first observation and refreshes
// the stored display name when it diverges. New channels start registered;
// deregistration is an explicit administrative action, and the conflict
// clause never touches the flag on existing rows.
func (r *watchRepository) EnsureChannel(ctx context.Context, id int64, name string) error {
	channel := &domain.Channel{
		ID:         id,
		Name:       name,
		Registered: true,
	}

	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}
	if name == "" {
		// Never wipe a stored name with an empty observation
		conflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}
	}

	result := r.db.WithContext(ctx).
		Clauses(conflict).
		Create(channel)
	if result.Error != nil {
		return fmt.Errorf("failed to ensure channel %d: %w", id, result.Error)
	}

	return nil
}
