package domain

import "context"

// WatchRepository is the read side of the watch graph. All writes to
// webhook/watchgroup membership belong to AdminRepository; the bridge
// pipeline only resolves.
type WatchRepository interface {
	// ResolveDestinations returns the active webhooks interested in the
	// channel: the union of direct watches and watches on the channel's
	// group, deduplicated. Unknown or unregistered channels resolve to an
	// empty set, never an error.
	ResolveDestinations(ctx context.Context, channelID int64) ([]Webhook, error)

	// GetChannel retrieves a channel row
	GetChannel(ctx context.Context, id int64) (*Channel, error)

	// EnsureChannel creates the channel on first observation (unregistered)
	// and refreshes the stored name when the observed one diverges
	EnsureChannel(ctx context.Context, id int64, name string) error
}

// LedgerRepository is the durable record of delivery outcomes. The
// dispatcher is its sole writer.
type LedgerRepository interface {
	// EnsureSourceMessage gets or creates the row for (channel, message).
	// wasNew=false signals a possible redelivery from the event source.
	EnsureSourceMessage(ctx context.Context, channelID int64, messageID int) (*SourceMessage, bool, error)

	// HasDelivered reports whether a delivery row exists for the pair
	HasDelivered(ctx context.Context, sourceMessageID uint, webhookID string) (bool, error)

	// RecordDelivery appends a delivery row. Must be called only after the
	// sink confirmed the send. Returns ErrAlreadyDelivered when the row
	// already exists.
	RecordDelivery(ctx context.Context, sourceMessageID uint, webhookID, resultMessageID string) error
}

// AdminRepository owns all writes to webhook/watchgroup/channel routing
// state. The bridge pipeline never calls it.
type AdminRepository interface {
	CreateWebhook(ctx context.Context, url string, serverID int64) (*Webhook, error)
	ListWebhooks(ctx context.Context) ([]Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error

	CreateWatchgroup(ctx context.Context, name string) (*Watchgroup, error)
	ListWatchgroups(ctx context.Context) ([]Watchgroup, error)

	AddChannelToWebhook(ctx context.Context, webhookID string, channelID int64) error
	RemoveChannelFromWebhook(ctx context.Context, webhookID string, channelID int64) error
	AddWatchgroupToWebhook(ctx context.Context, webhookID, watchgroupID string) error
	RemoveWatchgroupFromWebhook(ctx context.Context, webhookID, watchgroupID string) error
	AddChannelToWatchgroup(ctx context.Context, watchgroupID string, channelID int64) error

	ListChannels(ctx context.Context) ([]Channel, error)
	SetChannelRegistered(ctx context.Context, channelID int64, registered bool) error

	CountWatchgroupMembers(ctx context.Context, watchgroupID string) (int64, error)
	CountWatchgroupWatchers(ctx context.Context, watchgroupID string) (int64, error)
}

// OriginLookup resolves forward metadata into a concrete origin. A lookup
// failure degrades to a fixed diagnostic attribution line, never a dropped
// message.
type OriginLookup interface {
	LookupForwardOrigin(ctx context.Context, header *ForwardHeader) (*ForwardOrigin, error)
}

// MediaDownloader streams source-platform files to local paths in chunks.
type MediaDownloader interface {
	// DownloadToPath streams the file behind the opaque location to path
	DownloadToPath(ctx context.Context, location any, path string) error
}

// StorageBackend moves relocated files to durable, publicly fetchable
// storage. Exactly one backend is enabled per process.
type StorageBackend interface {
	// Put stores the local file under key and returns its public URL.
	// Backends tolerate redelivery: storing an already-present key is a
	// no-op that returns the same URL.
	Put(ctx context.Context, localPath, key string) (string, error)

	// Exists reports whether an object is already stored under key
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns the public URL an object stored under key is served from
	URL(key string) string

	// Delete removes a local cache copy once relocation completed. A
	// missing file is not an error: a concurrent relocation of the same
	// file may have removed it first.
	Delete(localPath string) error
}

// MediaRelocator moves message attachments and chat avatars from the source
// platform into the configured storage backend.
type MediaRelocator interface {
	// RelocateMessageMedia relocates the message attachment, returning its
	// public URL or "" when the message has nothing to relocate
	RelocateMessageMedia(ctx context.Context, msg *Message) (string, error)

	// RelocateChatAvatar relocates the chat avatar, returning its public
	// URL or "" when the chat has no photo
	RelocateChatAvatar(ctx context.Context, chat ChatInfo) (string, error)
}

// WebhookSender delivers a composed message to one destination sink and
// returns the sink-assigned message identifier.
type WebhookSender interface {
	Send(ctx context.Context, url string, params SendParams) (string, error)
}
