package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultPresignTTL is the validity of presigned retrieval URLs.
const DefaultPresignTTL = 7 * 24 * time.Hour

// MinioConfig holds the configuration for MinIO storage.
type MinioConfig struct {
	Endpoint   string // host:port, or a URL whose scheme overrides Secure
	AccessKey  string
	SecretKey  string
	Secure     bool
	Region     string
	PresignTTL time.Duration
}

// MinioStorage implements ObjectStore on a MinIO server.
// Retrieval URLs are presigned GET URLs.
type MinioStorage struct {
	client     *minio.Client
	region     string
	presignTTL time.Duration
}

// NewMinioStorage creates a new MinioStorage instance.
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	endpoint, secure := splitEndpoint(cfg.Endpoint, cfg.Secure)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}

	return &MinioStorage{
		client:     client,
		region:     cfg.Region,
		presignTTL: ttl,
	}, nil
}

// splitEndpoint strips a URL scheme from endpoint. An explicit scheme
// decides whether TLS is used.
func splitEndpoint(endpoint string, secure bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	default:
		return endpoint, secure
	}
}

// Name returns "minio".
func (s *MinioStorage) Name() string {
	return "minio"
}

// Download writes the object at bucket/key into dst.
func (s *MinioStorage) Download(ctx context.Context, bucket, key, dst string) error {
	if err := s.client.FGetObject(ctx, bucket, key, dst, minio.GetObjectOptions{}); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("get object from minio: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("stat downloaded object: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(dst)
		return ErrEmptyObject
	}
	return nil
}

// Upload stores the local file src at bucket/key.
func (s *MinioStorage) Upload(ctx context.Context, src, bucket, key, contentType string) error {
	_, err := s.client.FPutObject(ctx, bucket, key, src, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload to minio: %w", err)
	}
	return nil
}

// RetrievalURL returns a presigned GET URL for bucket/key valid for the
// configured presign TTL.
func (s *MinioStorage) RetrievalURL(ctx context.Context, bucket, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign minio object: %w", err)
	}
	return u.String(), nil
}

// EnsureBucket creates bucket when it does not exist yet.
func (s *MinioStorage) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}
