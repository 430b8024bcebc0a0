// Package imagestore превращает имена файлов изображений предметов в URL MinIO.
// Сами байты загружаются мимо API.
package imagestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/findme/internal/logger"
)

type Config struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	// PresignTTL > 0 и пустой PublicEndpoint — отдаются presigned GET-ссылки.
	PresignTTL time.Duration
}

type MinIO struct {
	client         *minio.Client
	bucket         string
	publicEndpoint string
	presignTTL     time.Duration
}

// New создаёт клиента без сетевых вызовов; бакет проверяет EnsureBucket.
func New(cfg Config) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	public := strings.TrimSuffix(strings.Trim(strings.TrimSpace(cfg.PublicEndpoint), `"'`), "/")
	if public == "" && cfg.PresignTTL <= 0 {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint
	}
	return &MinIO{client: client, bucket: cfg.Bucket, publicEndpoint: public, presignTTL: cfg.PresignTTL}, nil
}

// EnsureBucket создаёт бакет, если его нет.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("minio bucket exists %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("minio make bucket %s: %w", m.bucket, err)
	}
	logger.Logger().Info().Str("bucket", m.bucket).Msg("minio: bucket created")
	return nil
}

// ImageURL возвращает ссылку на объект. Уже абсолютные URL возвращаются как есть.
func (m *MinIO) ImageURL(ctx context.Context, name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" || strings.Contains(name, "://") {
		return name
	}
	if m.publicEndpoint != "" {
		if !strings.Contains(m.publicEndpoint, "://") {
			return fmt.Sprintf("https://%s/%s/%s", m.publicEndpoint, m.bucket, name)
		}
		return fmt.Sprintf("%s/%s/%s", m.publicEndpoint, m.bucket, name)
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, name, m.presignTTL, nil)
	if err != nil {
		logger.Errorf("minio: presign %s: %v", name, err)
		return ""
	}
	return u.String()
}

func (m *MinIO) HealthCheck(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("minio health: %w", err)
	}
	if !exists {
		return fmt.Errorf("minio: bucket %s does not exist", m.bucket)
	}
	return nil
}
