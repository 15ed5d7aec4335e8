package storage

import (
	"context"
	"log/slog"
	"time"
)

// Publisher uploads merge outputs to the target bucket and returns a
// retrievable URL for them.
type Publisher struct {
	store  ObjectStore
	bucket string
	logger *slog.Logger
}

// NewPublisher creates a Publisher writing to bucket on store.
func NewPublisher(store ObjectStore, bucket string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, bucket: bucket, logger: logger}
}

// Backend returns the name of the backend outputs are published to.
func (p *Publisher) Backend() string {
	return p.store.Name()
}

// Publish uploads localPath as objectName with content type video/mp4.
// Errors are returned as *PublishError.
func (p *Publisher) Publish(ctx context.Context, localPath, objectName string) (string, error) {
	start := time.Now()

	if err := p.store.Upload(ctx, localPath, p.bucket, objectName, ContentTypeMP4); err != nil {
		return "", &PublishError{Object: objectName, Err: err}
	}

	url, err := p.store.RetrievalURL(ctx, p.bucket, objectName)
	if err != nil {
		return "", &PublishError{Object: objectName, Err: err}
	}

	p.logger.Info("published merge output",
		slog.String("backend", p.store.Name()),
		slog.String("bucket", p.bucket),
		slog.String("object", objectName),
		slog.Duration("duration", time.Since(start)),
	)

	return url, nil
}

// EnsureBucket creates the target bucket when the backend supports it.
// Backends without bucket management are left untouched.
func (p *Publisher) EnsureBucket(ctx context.Context) error {
	ensurer, ok := p.store.(BucketEnsurer)
	if !ok {
		return nil
	}
	return ensurer.EnsureBucket(ctx, p.bucket)
}
