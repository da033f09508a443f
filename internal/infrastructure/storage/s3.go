package storage

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// S3Backend stores relocated media in an S3-compatible bucket
type S3Backend struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    zerolog.Logger
}

// NewS3Backend creates a new S3/MinIO storage backend
func NewS3Backend(cfg *config.S3StorageConfig, logger zerolog.Logger) (*S3Backend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &S3Backend{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:    logger.With().Str("component", "s3_storage").Logger(),
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist and sets a public
// read policy
func (b *S3Backend) EnsureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		b.logger.Info().Str("bucket", b.bucket).Msg("created S3 bucket")

		policy := fmt.Sprintf(`{
			"Version": "2012-10-17",
			"Statement": [
				{
					"Effect": "Allow",
					"Principal": {"AWS": ["*"]},
					"Action": ["s3:GetObject"],
					"Resource": ["arn:aws:s3:::%s/*"]
				}
			]
		}`, b.bucket)

		err = b.client.SetBucketPolicy(ctx, b.bucket, policy)
		if err != nil {
			b.logger.Warn().Err(err).Msg("failed to set public bucket policy, files may not be publicly accessible")
		} else {
			b.logger.Info().Str("bucket", b.bucket).Msg("set public read policy on bucket")
		}
	}

	return nil
}

// Put uploads the local file under key and returns its public URL. An
// already stored key is left untouched so redelivered messages do not
// re-upload.
func (b *S3Backend) Put(ctx context.Context, localPath, key string) (string, error) {
	exists, err := b.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		b.logger.Debug().Str("key", key).Msg("object already stored, skipping upload")
		return b.URL(key), nil
	}

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = b.client.FPutObject(ctx, b.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload media to S3: %w", err)
	}

	publicURL := b.URL(key)
	b.logger.Debug().
		Str("key", key).
		Str("url", publicURL).
		Msg("uploaded media to S3")

	return publicURL, nil
}

// Exists reports whether an object is already stored under key
func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

// URL returns the public URL an object stored under key is served from
func (b *S3Backend) URL(key string) string {
	return fmt.Sprintf("%s/%s/%s", b.publicURL, b.bucket, key)
}

// Delete removes a local cache copy once relocation completed
func (b *S3Backend) Delete(localPath string) error {
	return removeCacheFile(localPath)
}

var _ domain.StorageBackend = (*S3Backend)(nil)
