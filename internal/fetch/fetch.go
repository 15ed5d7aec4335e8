// Package fetch downloads source videos into local scratch files, either
// from object storage (MinIO or AWS S3) or over plain HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/maauso/video-merger-api/internal/storage"
)

// DefaultTimeout bounds a single HTTP download.
const DefaultTimeout = 10 * time.Minute

// copyBufferSize is the chunk size used when streaming HTTP bodies to disk.
const copyBufferSize = 32 << 10

var (
	// ErrInvalidURL is returned when the source is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("fetch: invalid source URL")
	// ErrBackendNotConfigured is returned for object storage URLs whose backend has no client.
	ErrBackendNotConfigured = errors.New("fetch: object storage backend not configured")
	// ErrEmptyDownload is returned when the downloaded file has no content.
	ErrEmptyDownload = errors.New("fetch: downloaded file is empty")
	// ErrUnexpectedStatus is returned when the HTTP source answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("fetch: unexpected status")
	// ErrMissingObjectKey is returned when an object storage URL has no bucket or key.
	ErrMissingObjectKey = errors.New("fetch: object storage URL has no bucket or key")
)

// DownloadError reports a failed fetch of one source URL.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Kind classifies how a source URL is fetched.
type Kind string

const (
	// KindHTTP is a plain HTTP(S) download.
	KindHTTP Kind = "http"
	// KindS3 is an AWS S3 object.
	KindS3 Kind = "s3"
	// KindMinio is an object on the configured MinIO endpoint.
	KindMinio Kind = "minio"
)

// Location is a classified source URL.
type Location struct {
	Kind   Kind
	Bucket string
	Key    string
}

// Fetcher downloads source videos to local files.
type Fetcher struct {
	backends   storage.Backends
	minioHost  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client for plain downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithMinioHost sets the hostname that identifies MinIO URLs.
func WithMinioHost(host string) Option {
	return func(f *Fetcher) {
		f.minioHost = strings.ToLower(host)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Fetcher using the given object storage backends.
func New(backends storage.Backends, opts ...Option) *Fetcher {
	f := &Fetcher{
		backends:   backends,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Classify decides how sourceURL is fetched. Hosts ending in amazonaws.com
// are AWS S3 (path style or virtual-hosted style); the configured MinIO host
// is MinIO (path style); anything else is plain HTTP.
func (f *Fetcher) Classify(sourceURL string) (Location, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Location{}, ErrInvalidURL
	}

	host := strings.ToLower(u.Hostname())
	path := strings.TrimPrefix(u.Path, "/")

	switch {
	case host == "amazonaws.com" || strings.HasSuffix(host, ".amazonaws.com"):
		loc := Location{Kind: KindS3}
		if bucket, ok := virtualHostedBucket(host); ok {
			loc.Bucket, loc.Key = bucket, path
		} else {
			loc.Bucket, loc.Key, _ = strings.Cut(path, "/")
		}
		if loc.Bucket == "" || loc.Key == "" {
			return Location{}, ErrMissingObjectKey
		}
		return loc, nil

	case f.minioHost != "" && host == f.minioHost:
		loc := Location{Kind: KindMinio}
		loc.Bucket, loc.Key, _ = strings.Cut(path, "/")
		if loc.Bucket == "" || loc.Key == "" {
			return Location{}, ErrMissingObjectKey
		}
		return loc, nil

	default:
		return Location{Kind: KindHTTP}, nil
	}
}

// virtualHostedBucket extracts the bucket from a
// <bucket>.s3.<region>.amazonaws.com or <bucket>.s3.amazonaws.com host.
func virtualHostedBucket(host string) (string, bool) {
	idx := strings.Index(host, ".s3.")
	if idx <= 0 {
		idx = strings.Index(host, ".s3-")
	}
	if idx <= 0 {
		return "", false
	}
	return host[:idx], true
}

// Fetch downloads sourceURL to dst and returns dst. On failure no file is
// left at dst and the error is a *DownloadError.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL, dst string) (string, error) {
	start := time.Now()

	if err := f.fetch(ctx, sourceURL, dst); err != nil {
		_ = os.Remove(dst)
		f.logger.Error("download failed",
			slog.String("url", sourceURL),
			slog.String("error", err.Error()),
		)
		return "", &DownloadError{URL: sourceURL, Err: err}
	}

	info, err := os.Stat(dst)
	if err != nil {
		return "", &DownloadError{URL: sourceURL, Err: err}
	}
	if info.Size() == 0 {
		_ = os.Remove(dst)
		return "", &DownloadError{URL: sourceURL, Err: ErrEmptyDownload}
	}

	f.logger.Info("downloaded source video",
		slog.String("url", sourceURL),
		slog.Int64("bytes", info.Size()),
		slog.Duration("duration", time.Since(start)),
	)

	return dst, nil
}

func (f *Fetcher) fetch(ctx context.Context, sourceURL, dst string) error {
	loc, err := f.Classify(sourceURL)
	if err != nil {
		return err
	}

	switch loc.Kind {
	case KindS3:
		if f.backends.S3 == nil {
			return fmt.Errorf("%w: s3", ErrBackendNotConfigured)
		}
		return f.backends.S3.Download(ctx, loc.Bucket, loc.Key, dst)
	case KindMinio:
		if f.backends.Minio == nil {
			return fmt.Errorf("%w: minio", ErrBackendNotConfigured)
		}
		return f.backends.Minio.Download(ctx, loc.Bucket, loc.Key, dst)
	default:
		return f.download(ctx, sourceURL, dst)
	}
}

// download streams an HTTP body to dst.
func (f *Fetcher) download(ctx context.Context, sourceURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	out, err := os.Create(dst) // #nosec G304 - dst is inside a scratch directory we created
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}

	_, err = io.CopyBuffer(out, resp.Body, make([]byte, copyBufferSize))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}
