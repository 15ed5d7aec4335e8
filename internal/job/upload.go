package job

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maauso/video-merger-api/internal/job/id"
	"github.com/maauso/video-merger-api/internal/notify"
	"github.com/maauso/video-merger-api/internal/platform"
)

// Uploader pushes a local video to the video platform.
type Uploader interface {
	Upload(ctx context.Context, path string, md platform.Metadata) platform.Result
}

// CallbackSender delivers the post-upload callback.
type CallbackSender interface {
	Send(ctx context.Context, url string, payload notify.Callback) error
}

// UploadInput contains the input parameters for a platform upload.
type UploadInput struct {
	VideoURL    string
	Metadata    platform.Metadata
	CallbackURL string
}

// UploadOutput is the upload result plus request bookkeeping.
type UploadOutput struct {
	platform.Result
	JobID          string
	ProcessingTime time.Duration
}

// UploadService fetches one video and pushes it to the platform.
type UploadService struct {
	scratch   ScratchSpace
	fetcher   Fetcher
	uploader  Uploader
	callbacks CallbackSender
	events    notify.Publisher
	logger    *slog.Logger
}

// NewUploadService creates a new UploadService. A nil callbacks sender skips
// callbacks; a nil events publisher discards events.
func NewUploadService(
	scratch ScratchSpace,
	fetcher Fetcher,
	uploader Uploader,
	callbacks CallbackSender,
	events notify.Publisher,
	logger *slog.Logger,
) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = notify.NopPublisher{}
	}
	return &UploadService{
		scratch:   scratch,
		fetcher:   fetcher,
		uploader:  uploader,
		callbacks: callbacks,
		events:    events,
		logger:    logger,
	}
}

// Upload validates metadata, fetches the video and uploads it. It never
// returns an error; failures are described by the embedded Result. Metadata
// is validated before anything is downloaded.
func (s *UploadService) Upload(ctx context.Context, in UploadInput) UploadOutput {
	start := time.Now()
	out := UploadOutput{JobID: id.Generate()}
	logger := s.logger.With(slog.String("job_id", out.JobID))

	md := in.Metadata.WithDefaults()
	if err := md.Validate(); err != nil {
		out.Result = failedResult(platform.ClassValidation, err.Error())
		out.ProcessingTime = time.Since(start)
		logger.Warn("upload rejected", slog.String("error", err.Error()))
		return out
	}

	out.Result = s.fetchAndUpload(ctx, in.VideoURL, md, logger)
	out.ProcessingTime = time.Since(start)

	ev := notify.Event{
		JobID:                 out.JobID,
		OccurredAt:            time.Now(),
		ProcessingTimeSeconds: out.ProcessingTime.Seconds(),
	}
	if out.Success {
		ev.Type = notify.EventUploadCompleted
		ev.VideoID = out.VideoID
		ev.URL = out.VideoURL
		s.sendCallback(ctx, in.CallbackURL, md.Title, out, logger)
	} else {
		ev.Type = notify.EventUploadFailed
		ev.Error = fmt.Sprintf("%s: %s", out.ErrorClass, out.Message)
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		logger.Warn("failed to publish job event",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}

	return out
}

func (s *UploadService) fetchAndUpload(ctx context.Context, videoURL string, md platform.Metadata, logger *slog.Logger) platform.Result {
	dir, err := s.scratch.NewScratchDir(ctx, "platform_upload")
	if err != nil {
		return failedResult(platform.ClassProcessing, fmt.Sprintf("create scratch dir: %v", err))
	}
	defer func() {
		if err := s.scratch.RemoveScratchDir(dir); err != nil {
			logger.Warn("failed to remove scratch dir",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
		}
	}()

	path, err := s.fetcher.Fetch(ctx, videoURL, filepath.Join(dir, "upload.mp4"))
	if err != nil {
		logger.Error("failed to download video for upload", slog.String("error", err.Error()))
		return failedResult(platform.ClassProcessing, fmt.Sprintf("failed to download video: %v", err))
	}

	return s.uploader.Upload(ctx, path, md)
}

// sendCallback posts the success callback. Failures are logged only.
func (s *UploadService) sendCallback(ctx context.Context, url, title string, out UploadOutput, logger *slog.Logger) {
	if url == "" || s.callbacks == nil {
		return
	}
	err := s.callbacks.Send(ctx, url, notify.Callback{
		VideoID:               out.VideoID,
		VideoURL:              out.VideoURL,
		Status:                out.Status,
		ProcessingTimeSeconds: out.ProcessingTime.Seconds(),
		Title:                 title,
	})
	if err != nil {
		logger.Warn("callback failed",
			slog.String("callback_url", url),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("callback delivered", slog.String("callback_url", url))
}

func failedResult(class platform.ErrorClass, msg string) platform.Result {
	return platform.Result{
		Status:     "failed",
		Message:    msg,
		ErrorClass: class,
		State:      platform.StateFailed,
	}
}
