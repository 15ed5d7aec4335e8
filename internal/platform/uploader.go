// Package platform pushes finished videos to a video-hosting platform over
// its resumable upload protocol, with OAuth credentials managed locally.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
)

// DefaultWatchURL is prefixed to a video id to build its playback URL.
const DefaultWatchURL = "https://youtube.com/watch?v="

// ContentTypeMP4 is the content type declared for uploaded files.
const ContentTypeMP4 = "video/mp4"

// TokenProvider supplies a valid OAuth token for the platform.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Result is the outcome of one upload. It is never nil and never carries a
// Go error; failures are described by ErrorClass and Message.
type Result struct {
	Success    bool
	VideoID    string
	VideoURL   string
	Status     string
	Message    string
	ErrorClass ErrorClass
	RetryCount int
	State      State
}

// Uploader drives the resumable upload state machine.
type Uploader struct {
	transport   Transport
	credentials TokenProvider
	chunkSize   int64
	maxRetries  int
	baseBackoff time.Duration
	watchURL    string
	logger      *slog.Logger
}

// UploaderOption is a function that configures an Uploader.
type UploaderOption func(*Uploader)

// WithChunkSize sets the bytes per request. Zero sends the whole file at once.
func WithChunkSize(n int64) UploaderOption {
	return func(u *Uploader) {
		if n >= 0 {
			u.chunkSize = n
		}
	}
}

// WithMaxRetries sets the transient failure budget.
func WithMaxRetries(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		u.baseBackoff = d
	}
}

// WithWatchURL sets the prefix of playback URLs.
func WithWatchURL(prefix string) UploaderOption {
	return func(u *Uploader) {
		if prefix != "" {
			u.watchURL = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) UploaderOption {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// NewUploader creates an Uploader.
func NewUploader(transport Transport, credentials TokenProvider, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		transport:   transport,
		credentials: credentials,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: time.Second,
		watchURL:    DefaultWatchURL,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload sends the file at path with md and returns the outcome.
func (u *Uploader) Upload(ctx context.Context, path string, md Metadata) (res Result) {
	attempt := NewAttempt(u.maxRetries)

	defer func() {
		if r := recover(); r != nil {
			u.logger.Error("upload panicked", slog.Any("panic", r))
			res = u.failure(attempt, ClassUpload, fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	md = md.WithDefaults()
	if err := md.Validate(); err != nil {
		return u.failure(attempt, ClassValidation, err)
	}

	f, err := os.Open(path) // #nosec G304 - path is inside a scratch directory we created
	if err != nil {
		return u.failure(attempt, ClassProcessing, fmt.Errorf("open video: %w", err))
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return u.failure(attempt, ClassProcessing, fmt.Errorf("stat video: %w", err))
	}
	if info.Size() == 0 {
		return u.failure(attempt, ClassProcessing, errors.New("video file is empty"))
	}

	tok, err := u.credentials.Token(ctx)
	if err != nil {
		return u.failure(attempt, ClassAuthentication, err)
	}

	if err := attempt.Start(info.Size()); err != nil {
		return u.failure(attempt, ClassUpload, err)
	}

	u.logger.Info("starting platform upload",
		slog.String("title", md.Title),
		slog.Int64("bytes", attempt.Total),
	)

	backoff := u.baseBackoff
	for {
		status, err := u.step(ctx, tok, f, attempt, md)
		if err == nil && status.Done {
			_ = attempt.Succeed()
			return u.success(attempt, status.VideoID)
		}
		if err == nil {
			err = attempt.Advance(status.NextOffset)
			if err == nil {
				u.logger.Info("upload progress",
					slog.Int("percent", int(attempt.Progress()*100)),
				)
				continue
			}
			err = &retryableError{err: err}
		}

		if !isRetryable(err) {
			return u.failure(attempt, classify(err), err)
		}

		if attempt.RecordRetry(err) {
			return u.failure(attempt, ClassUpload,
				fmt.Errorf("upload failed after %d retries: %w", attempt.RetryCount, err))
		}

		u.logger.Warn("retriable upload error",
			slog.Int("retry", attempt.RetryCount),
			slog.Int("max_retries", attempt.MaxRetries),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return u.failure(attempt, ClassUpload, fmt.Errorf("upload cancelled: %w", ctx.Err()))
		case <-time.After(backoff):
			backoff *= 2 // Exponential backoff
		}

		if attempt.SessionURL == "" {
			continue
		}
		status, err = u.transport.QueryStatus(ctx, tok, attempt.SessionURL, attempt.Total)
		switch {
		case err == nil && status.Done:
			_ = attempt.Succeed()
			return u.success(attempt, status.VideoID)
		case err == nil:
			attempt.Resync(status.NextOffset)
		case !isRetryable(err):
			return u.failure(attempt, classify(err), err)
		}
	}
}

// step opens the session if needed and sends the next chunk.
func (u *Uploader) step(ctx context.Context, tok *oauth2.Token, f io.ReaderAt, attempt *Attempt, md Metadata) (ChunkStatus, error) {
	if attempt.SessionURL == "" {
		sessionURL, err := u.transport.Initiate(ctx, tok, md, attempt.Total, ContentTypeMP4)
		if err != nil {
			return ChunkStatus{}, err
		}
		attempt.SessionURL = sessionURL
	}

	// Every byte is acknowledged but the session has not finished; a
	// zero-length chunk has no valid Content-Range, so ask for status.
	if attempt.Cursor >= attempt.Total {
		return u.transport.QueryStatus(ctx, tok, attempt.SessionURL, attempt.Total)
	}

	length := attempt.Total - attempt.Cursor
	if u.chunkSize > 0 && length > u.chunkSize {
		length = u.chunkSize
	}

	return u.transport.UploadChunk(ctx, tok, attempt.SessionURL, Chunk{
		Data:   io.NewSectionReader(f, attempt.Cursor, length),
		Offset: attempt.Cursor,
		Length: length,
		Total:  attempt.Total,
	})
}

func (u *Uploader) success(attempt *Attempt, videoID string) Result {
	videoURL := u.watchURL + videoID
	u.logger.Info("video uploaded",
		slog.String("video_id", videoID),
		slog.String("video_url", videoURL),
		slog.Int("retries", attempt.RetryCount),
	)
	return Result{
		Success:    true,
		VideoID:    videoID,
		VideoURL:   videoURL,
		Status:     "uploaded",
		Message:    "Video uploaded successfully",
		RetryCount: attempt.RetryCount,
		State:      attempt.State,
	}
}

func (u *Uploader) failure(attempt *Attempt, class ErrorClass, err error) Result {
	if attempt.State != StateFailed {
		_ = attempt.Fail(err)
	}
	u.logger.Error("platform upload failed",
		slog.String("class", string(class)),
		slog.Int("retries", attempt.RetryCount),
		slog.String("error", err.Error()),
	)
	return Result{
		Success:    false,
		Status:     "failed",
		Message:    err.Error(),
		ErrorClass: class,
		RetryCount: attempt.RetryCount,
		State:      attempt.State,
	}
}
