package domain

import (
	"time"
)

// Channel is a monitored Telegram channel. Rows are created the first time
// traffic from the channel is observed and are never hard-deleted; taking a
// channel out of service flips Registered. Channels start registered:
// deregistration is the explicit administrative off-switch, and a channel
// nobody watches relays nothing either way.
type Channel struct {
	ID           int64     `gorm:"primaryKey"`
	Name         string    `gorm:"size:128"`
	Registered   bool      `gorm:"not null;default:true"`
	WatchgroupID *string   `gorm:"size:36;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for Channel
func (Channel) TableName() string {
	return "channels"
}

// Webhook is an outbound delivery destination. Its watch set is the union of
// explicitly watched channels and the channels of its watched watchgroups.
type Webhook struct {
	ID       string `gorm:"primaryKey;size:36"`
	URL      string `gorm:"size:256;not null;uniqueIndex"`
	ServerID int64  `gorm:"not null"`
	Active   bool   `gorm:"not null;default:true"`

	Watched     []Channel    `gorm:"many2many:webhook_channels"`
	Watchgroups []Watchgroup `gorm:"many2many:webhook_watchgroups"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for Webhook
func (Webhook) TableName() string {
	return "webhooks"
}

// Watchgroup is a named collection of channels granting bulk watch
// membership. Groups are flat: a group cannot contain another group.
type Watchgroup struct {
	ID   string `gorm:"primaryKey;size:36"`
	Name string `gorm:"size:128;not null;uniqueIndex"`

	Channels []Channel `gorm:"foreignKey:WatchgroupID"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for Watchgroup
func (Watchgroup) TableName() string {
	return "watchgroups"
}

// SourceMessage records one inbound message, independent of how many
// destinations it is delivered to. At most one row exists per
// (channel_id, message_id); rows are never deleted.
type SourceMessage struct {
	ID        uint      `gorm:"primaryKey"`
	ChannelID int64     `gorm:"not null;index:idx_channel_message,unique"`
	MessageID int       `gorm:"not null;index:idx_channel_message,unique"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for SourceMessage
func (SourceMessage) TableName() string {
	return "source_messages"
}

// Delivery records one confirmed send of a source message to one webhook.
// The unique index on (source_message_id, webhook_id) is the exactly-once
// contract: a second insert for the same pair fails and must be treated as
// detect-and-skip, never as a duplicate row.
type Delivery struct {
	ID              uint      `gorm:"primaryKey"`
	SourceMessageID uint      `gorm:"not null;index:idx_message_webhook,unique"`
	WebhookID       string    `gorm:"size:36;not null;index:idx_message_webhook,unique"`
	ResultMessageID string    `gorm:"size:64;not null"`
	DeliveredAt     time.Time `gorm:"autoCreateTime"`

	SourceMessage SourceMessage `gorm:"foreignKey:SourceMessageID"`
}

// TableName returns the table name for Delivery
func (Delivery) TableName() string {
	return "deliveries"
}
