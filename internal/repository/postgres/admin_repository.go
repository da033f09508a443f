package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// adminRepository implements domain.AdminRepository. It is the only writer
// of webhook/watchgroup/membership state; the bridge pipeline reads it
// through the watch repository.
type adminRepository struct {
	db *gorm.DB
}

// NewAdminRepository creates a new administrative repository
func NewAdminRepository(db *gorm.DB) domain.AdminRepository {
	return &adminRepository{db: db}
}

// CreateWebhook registers a new delivery destination
func (r *adminRepository) CreateWebhook(ctx context.Context, url string, serverID int64) (*domain.Webhook, error) {
	webhook := &domain.Webhook{
		ID:       uuid.NewString(),
		URL:      url,
		ServerID: serverID,
		Active:   true,
	}

	if err := r.db.WithContext(ctx).Create(webhook).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	return webhook, nil
}

// ListWebhooks returns all webhooks
func (r *adminRepository) ListWebhooks(ctx context.Context) ([]domain.Webhook, error) {
	var webhooks []domain.Webhook
	if err := r.db.WithContext(ctx).Find(&webhooks).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return webhooks, nil
}

// DeleteWebhook removes a webhook and cascades its membership links
func (r *adminRepository) DeleteWebhook(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var webhook domain.Webhook
		if err := tx.First(&webhook, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrWebhookNotFound
			}
			return fmt.Errorf("failed to load webhook: %w", err)
		}

		if err := tx.Model(&webhook).Association("Watched").Clear(); err != nil {
			return fmt.Errorf("failed to clear channel memberships: %w", err)
		}
		if err := tx.Model(&webhook).Association("Watchgroups").Clear(); err != nil {
			return fmt.Errorf("failed to clear watchgroup memberships: %w", err)
		}

		if err := tx.Delete(&webhook).Error; err != nil {
			return fmt.Errorf("failed to delete webhook: %w", err)
		}

		return nil
	})
}

// CreateWatchgroup creates a named channel collection
func (r *adminRepository) CreateWatchgroup(ctx context.Context, name string) (*domain.Watchgroup, error) {
	group := &domain.Watchgroup{
		ID:   uuid.NewString(),
		Name: name,
	}

	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create watchgroup: %w", err)
	}

	return group, nil
}

// ListWatchgroups returns all watchgroups
func (r *adminRepository) ListWatchgroups(ctx context.Context) ([]domain.Watchgroup, error) {
	var groups []domain.Watchgroup
	if err := r.db.WithContext(ctx).Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to list watchgroups: %w", err)
	}
	return groups, nil
}

// AddChannelToWebhook grants a direct watch
func (r *adminRepository) AddChannelToWebhook(ctx context.Context, webhookID string, channelID int64) error {
	webhook, err := r.getWebhook(ctx, webhookID)
	if err != nil {
		return err
	}

	channel, err := r.getChannel(ctx, channelID)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Model(webhook).Association("Watched").Append(channel); err != nil {
		return fmt.Errorf("failed to add channel to webhook: %w", err)
	}

	return nil
}

// RemoveChannelFromWebhook revokes a direct watch
func (r *adminRepository) RemoveChannelFromWebhook(ctx context.Context, webhookID string, channelID int64) error {
	webhook, err := r.getWebhook(ctx, webhookID)
	if err != nil {
		return err
	}

	channel, err := r.getChannel(ctx, channelID)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Model(webhook).Association("Watched").Delete(channel); err != nil {
		return fmt.Errorf("failed to remove channel from webhook: %w", err)
	}

	return nil
}

// AddWatchgroupToWebhook grants a group watch
func (r *adminRepository) AddWatchgroupToWebhook(ctx context.Context, webhookID, watchgroupID string) error {
	webhook, err := r.getWebhook(ctx, webhookID)
	if err != nil {
		return err
	}

	group, err := r.getWatchgroup(ctx, watchgroupID)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Model(webhook).Association("Watchgroups").Append(group); err != nil {
		return fmt.Errorf("failed to add watchgroup to webhook: %w", err)
	}

	return nil
}

// RemoveWatchgroupFromWebhook revokes a group watch
func (r *adminRepository) RemoveWatchgroupFromWebhook(ctx context.Context, webhookID, watchgroupID string) error {
	webhook, err := r.getWebhook(ctx, webhookID)
	if err != nil {
		return err
	}

	group, err := r.getWatchgroup(ctx, watchgroupID)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Model(webhook).Association("Watchgroups").Delete(group); err != nil {
		return fmt.Errorf("failed to remove watchgroup from webhook: %w", err)
	}

	return nil
}

// AddChannelToWatchgroup moves a channel into a group. A channel belongs to
// at most one group, so this reassigns any previous membership.
func (r *adminRepository) AddChannelToWatchgroup(ctx context.Context, watchgroupID string, channelID int64) error {
	if _, err := r.getWatchgroup(ctx, watchgroupID); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("id = ?", channelID).
		Update("watchgroup_id", watchgroupID)
	if result.Error != nil {
		return fmt.Errorf("failed to add channel to watchgroup: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrChannelNotFound
	}

	return nil
}

// ListChannels returns all observed channels
func (r *adminRepository) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	var channels []domain.Channel
	if err := r.db.WithContext(ctx).Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

// SetChannelRegistered flips the registration gate. Channels are never hard
// deleted; deregistering stops resolution immediately.
func (r *adminRepository) SetChannelRegistered(ctx context.Context, channelID int64, registered bool) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("id = ?", channelID).
		Update("registered", registered)
	if result.Error != nil {
		return fmt.Errorf("failed to update channel registration: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrChannelNotFound
	}

	return nil
}

// CountWatchgroupMembers returns the number of channels in a group,
// computed on demand
func (r *adminRepository) CountWatchgroupMembers(ctx context.Context, watchgroupID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("watchgroup_id = ?", watchgroupID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count watchgroup members: %w", err)
	}
	return count, nil
}

// CountWatchgroupWatchers returns the number of webhooks watching a group,
// computed on demand
func (r *adminRepository) CountWatchgroupWatchers(ctx context.Context, watchgroupID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Table("webhook_watchgroups").
		Where("watchgroup_id = ?", watchgroupID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count watchgroup watchers: %w", err)
	}
	return count, nil
}

func (r *adminRepository) getWebhook(ctx context.Context, id string) (*domain.Webhook, error) {
	var webhook domain.Webhook
	if err := r.db.WithContext(ctx).First(&webhook, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return &webhook, nil
}

func (r *adminRepository) getWatchgroup(ctx context.Context, id string) (*domain.Watchgroup, error) {
	var group domain.Watchgroup
	if err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrWatchgroupNotFound
		}
		return nil, fmt.Errorf("failed to get watchgroup: %w", err)
	}
	return &group, nil
}

func (r *adminRepository) getChannel(ctx context.Context, id int64) (*domain.Channel, error) {
	var channel domain.Channel
	if err := r.db.WithContext(ctx).First(&channel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &channel, nil
}
