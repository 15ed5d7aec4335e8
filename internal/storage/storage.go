// Package storage provides scratch directories for request processing and
// object storage adapters for MinIO and AWS S3.
// It defines the ObjectStore interface (port) used by the fetcher and the
// publisher, and implementations backed by minio-go and aws-sdk-go-v2.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ContentTypeMP4 is the content type of published merge outputs.
const ContentTypeMP4 = "video/mp4"

var (
	// ErrNoPublisher is returned when neither MinIO nor AWS S3 is configured.
	ErrNoPublisher = errors.New("storage: no object storage backend configured for publishing")
	// ErrEmptyObject is returned when a downloaded object has no content.
	ErrEmptyObject = errors.New("storage: object is empty")
)

// ObjectStore defines the operations the service needs from an
// S3-compatible object storage backend.
type ObjectStore interface {
	// Name identifies the backend in logs ("minio" or "s3").
	Name() string

	// Download writes the object at bucket/key to the local file dst.
	Download(ctx context.Context, bucket, key, dst string) error

	// Upload stores the local file src at bucket/key with the given content type.
	Upload(ctx context.Context, src, bucket, key, contentType string) error

	// RetrievalURL returns a URL a client can use to fetch bucket/key.
	RetrievalURL(ctx context.Context, bucket, key string) (string, error)
}

// BucketEnsurer is implemented by backends that can create missing buckets.
type BucketEnsurer interface {
	EnsureBucket(ctx context.Context, bucket string) error
}

// Backends groups the configured object storage backends.
// A nil field means the backend is not configured.
type Backends struct {
	Minio ObjectStore
	S3    ObjectStore
}

// Publishing returns the backend used for publishing merge outputs.
// MinIO is preferred when configured, then AWS S3.
func (b Backends) Publishing() (ObjectStore, error) {
	if b.Minio != nil {
		return b.Minio, nil
	}
	if b.S3 != nil {
		return b.S3, nil
	}
	return nil, ErrNoPublisher
}

// PublishError reports a failed upload or URL generation for a merge output.
type PublishError struct {
	Object string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Object, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
