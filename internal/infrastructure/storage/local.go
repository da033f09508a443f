package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// LocalBackend stores relocated media in a directory served by an external
// static file server
type LocalBackend struct {
	filePath  string
	urlPrefix string
	logger    zerolog.Logger
}

// NewLocalBackend creates a local filesystem storage backend
func NewLocalBackend(cfg *config.LocalStorageConfig, logger zerolog.Logger) (*LocalBackend, error) {
	if err := os.MkdirAll(cfg.FilePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalBackend{
		filePath:  cfg.FilePath,
		urlPrefix: strings.TrimSuffix(cfg.URLPrefix, "/"),
		logger:    logger.With().Str("component", "local_storage").Logger(),
	}, nil
}

// Put copies the local file into the served directory under key and returns
// its public URL. An already stored key is left untouched.
func (b *LocalBackend) Put(ctx context.Context, localPath, key string) (string, error) {
	dst := filepath.Join(b.filePath, key)

	if _, err := os.Stat(dst); err == nil {
		b.logger.Debug().Str("key", key).Msg("file already stored, skipping copy")
		return b.URL(key), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to stat stored file: %w", err)
	}

	if err := copyFile(localPath, dst); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}

	publicURL := b.URL(key)
	b.logger.Debug().
		Str("key", key).
		Str("url", publicURL).
		Msg("stored media locally")

	return publicURL, nil
}

// Exists reports whether a file is already stored under key
func (b *LocalBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(b.filePath, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat stored file: %w", err)
	}
	return true, nil
}

// URL returns the public URL a file stored under key is served from
func (b *LocalBackend) URL(key string) string {
	return fmt.Sprintf("%s/%s", b.urlPrefix, key)
}

// Delete removes a local cache copy once relocation completed
func (b *LocalBackend) Delete(localPath string) error {
	return removeCacheFile(localPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// removeCacheFile deletes a cache file, tolerating a concurrent relocation
// of the same file having removed it first
func removeCacheFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}

var _ domain.StorageBackend = (*LocalBackend)(nil)
