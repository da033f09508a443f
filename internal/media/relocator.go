package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
	"github.com/internationalcrisis/tgbridge/internal/infrastructure/metrics"
)

// Relocator downloads source-platform files into a local cache and moves
// them to the configured storage backend. Download concurrency is bounded
// process-wide.
type Relocator struct {
	downloader  domain.MediaDownloader
	backend     domain.StorageBackend
	cacheDir    string
	maxFileSize int64
	sem         *semaphore.Weighted
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// NewRelocator creates a media relocator
func NewRelocator(
	downloader domain.MediaDownloader,
	backend domain.StorageBackend,
	storageCfg *config.StorageConfig,
	bridgeCfg *config.BridgeConfig,
	logger zerolog.Logger,
	m *metrics.Metrics,
) (*Relocator, error) {
	if err := os.MkdirAll(storageCfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Relocator{
		downloader:  downloader,
		backend:     backend,
		cacheDir:    storageCfg.CacheDir,
		maxFileSize: bridgeCfg.MaxFileSize,
		sem:         semaphore.NewWeighted(int64(bridgeCfg.MaxConcurrentDownloads)),
		logger:      logger.With().Str("component", "media_relocator").Logger(),
		metrics:     m,
	}, nil
}

// RelocateMessageMedia relocates the message attachment and returns its
// public URL. Messages without a relocatable attachment return "".
// Attachments over the size limit return ErrMediaTooLarge so the caller can
// deliver the message without its media.
func (r *Relocator) RelocateMessageMedia(ctx context.Context, msg *domain.Message) (string, error) {
	if msg.Media == nil || msg.Media.Location == nil {
		return "", nil
	}

	if msg.Media.PreviewOnly {
		r.logger.Debug().
			Int64("channel_id", msg.ChannelID).
			Int("message_id", msg.MessageID).
			Msg("skipping preview-only media")
		r.metrics.RecordMediaSkipped("preview_only")
		return "", nil
	}

	if r.maxFileSize > 0 && msg.Media.Size > r.maxFileSize {
		r.logger.Warn().
			Int64("channel_id", msg.ChannelID).
			Int("message_id", msg.MessageID).
			Int64("size", msg.Media.Size).
			Int64("limit", r.maxFileSize).
			Msg("media exceeds size limit, delivering without it")
		r.metrics.RecordMediaSkipped("too_large")
		return "", domain.ErrMediaTooLarge
	}

	key := fmt.Sprintf("%d-%d%s", msg.ChannelID, msg.MessageID, normalizeExt(msg.Media.Ext))

	url, err := r.relocate(ctx, msg.Media.Location, key)
	if err != nil {
		r.metrics.RecordMediaError()
		return "", err
	}

	return url, nil
}

// RelocateChatAvatar relocates the chat avatar and returns its public URL.
// Chats without a photo return "". Avatars are keyed by channel only, so an
// already stored avatar is reused without a download.
func (r *Relocator) RelocateChatAvatar(ctx context.Context, chat domain.ChatInfo) (string, error) {
	if !chat.HasPhoto || chat.PhotoLocation == nil {
		return "", nil
	}

	key := fmt.Sprintf("%d.jpg", chat.ID)

	exists, err := r.backend.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		return r.backend.URL(key), nil
	}

	url, err := r.relocate(ctx, chat.PhotoLocation, key)
	if err != nil {
		r.metrics.RecordMediaError()
		return "", err
	}

	r.metrics.RecordAvatarRelocated()
	return url, nil
}

// relocate downloads the file into the cache, uploads it to the backend and
// removes the cache copy
func (r *Relocator) relocate(ctx context.Context, location any, key string) (string, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("download slot wait cancelled: %w", err)
	}
	defer r.sem.Release(1)

	cachePath := filepath.Join(r.cacheDir, key)

	start := time.Now()
	if err := r.downloader.DownloadToPath(ctx, location, cachePath); err != nil {
		return "", fmt.Errorf("failed to download media: %w", err)
	}

	url, err := r.backend.Put(ctx, cachePath, key)
	if err != nil {
		return "", fmt.Errorf("failed to store media: %w", err)
	}

	if err := r.backend.Delete(cachePath); err != nil {
		r.logger.Warn().Err(err).Str("path", cachePath).Msg("failed to remove cache file")
	}

	r.metrics.RecordMediaRelocated(time.Since(start).Seconds())

	r.logger.Debug().
		Str("key", key).
		Str("url", url).
		Msg("relocated media to storage")

	return url, nil
}

// normalizeExt lowercases the extension and collapses JPEG variants so one
// attachment always maps to one storage key
func normalizeExt(ext string) string {
	if ext == "" {
		return ".bin"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ext = strings.ToLower(ext)

	switch ext {
	case ".jpe", ".jpeg", ".jfif":
		return ".jpg"
	}
	return ext
}

var _ domain.MediaRelocator = (*Relocator)(nil)
