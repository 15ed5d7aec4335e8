package job

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maauso/video-merger-api/internal/media"
	"github.com/maauso/video-merger-api/internal/notify"
)

// Fetcher downloads a source URL to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL, dst string) (string, error)
}

// Normalizer reconciles clips to the first clip's frame rate and size.
type Normalizer interface {
	Normalize(ctx context.Context, clips []*media.ClipRef) ([]*media.ClipRef, []media.Degradation, error)
	Target(ctx context.Context, clips []*media.ClipRef) (media.Target, error)
}

// Publisher uploads a finished video and returns its retrieval URL.
type Publisher interface {
	Publish(ctx context.Context, localPath, objectName string) (string, error)
}

// ScratchSpace hands out per-request working directories.
type ScratchSpace interface {
	NewScratchDir(ctx context.Context, prefix string) (string, error)
	RemoveScratchDir(dir string) error
}

// MergeInput contains the input parameters for a merge.
type MergeInput struct {
	// VideoURLs are the clips to merge, in output order.
	VideoURLs []string
	// OutputFilename is the optional object name of the result.
	OutputFilename string
}

// MergeOutput contains the result of a merge.
type MergeOutput struct {
	JobID          string
	VideoURL       string
	Filename       string
	ProcessingTime time.Duration
	Warnings       []string
}

// MergeService runs fetch, normalize, concatenate and publish for one
// request, strictly in that order.
type MergeService struct {
	scratch      ScratchSpace
	fetcher      Fetcher
	normalizer   Normalizer
	concatenator media.Concatenator
	publisher    Publisher
	events       notify.Publisher
	logger       *slog.Logger
}

// NewMergeService creates a new MergeService. A nil events publisher
// discards events.
func NewMergeService(
	scratch ScratchSpace,
	fetcher Fetcher,
	normalizer Normalizer,
	concatenator media.Concatenator,
	publisher Publisher,
	events notify.Publisher,
	logger *slog.Logger,
) *MergeService {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = notify.NopPublisher{}
	}
	return &MergeService{
		scratch:      scratch,
		fetcher:      fetcher,
		normalizer:   normalizer,
		concatenator: concatenator,
		publisher:    publisher,
		events:       events,
		logger:       logger,
	}
}

// Merge runs the whole pipeline. Errors from the fetch step are
// *fetch.DownloadError, from concatenation *media.MergeError and from
// publishing *storage.PublishError. The scratch directory is removed on
// every exit path.
func (s *MergeService) Merge(ctx context.Context, in MergeInput) (*MergeOutput, error) {
	job, err := NewMergeJob(in.VideoURLs, in.OutputFilename)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With(slog.String("job_id", job.ID))
	logger.Info("starting video merge",
		slog.Int("videos", len(job.SourceURLs)),
		slog.String("filename", job.OutputFilename),
	)

	dir, err := s.scratch.NewScratchDir(ctx, "video_merge")
	if err != nil {
		return nil, s.fail(ctx, job, logger, fmt.Errorf("create scratch dir: %w", err))
	}
	defer func() {
		if err := s.scratch.RemoveScratchDir(dir); err != nil {
			logger.Warn("failed to remove scratch dir",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
		}
	}()

	if err := s.run(ctx, job, dir, logger); err != nil {
		return nil, s.fail(ctx, job, logger, err)
	}

	out := &MergeOutput{
		JobID:          job.ID,
		VideoURL:       job.VideoURL,
		Filename:       job.OutputFilename,
		ProcessingTime: job.Elapsed(),
		Warnings:       job.Warnings(),
	}

	logger.Info("video merge completed",
		slog.String("url", out.VideoURL),
		slog.Duration("elapsed", out.ProcessingTime),
		slog.Int("warnings", len(out.Warnings)),
	)
	s.publishEvent(ctx, logger, notify.Event{
		Type:                  notify.EventMergeCompleted,
		JobID:                 job.ID,
		OccurredAt:            time.Now(),
		Filename:              out.Filename,
		URL:                   out.VideoURL,
		Clips:                 len(job.SourceURLs),
		Warnings:              out.Warnings,
		ProcessingTimeSeconds: out.ProcessingTime.Seconds(),
	})

	return out, nil
}

func (s *MergeService) run(ctx context.Context, job *MergeJob, dir string, logger *slog.Logger) error {
	if err := job.TransitionTo(StageFetching); err != nil {
		return err
	}
	clips := make([]*media.ClipRef, 0, len(job.SourceURLs))
	for i, u := range job.SourceURLs {
		dst := filepath.Join(dir, fmt.Sprintf("video_%d.mp4", i))
		path, err := s.fetcher.Fetch(ctx, u, dst)
		if err != nil {
			return err
		}
		clips = append(clips, media.NewClipRef(path))
		logger.Info("downloaded video",
			slog.Int("index", i+1),
			slog.Int("total", len(job.SourceURLs)),
		)
	}
	job.SetClips(clips)

	if err := job.TransitionTo(StageNormalizing); err != nil {
		return err
	}
	normalized, degradations, err := s.normalizer.Normalize(ctx, clips)
	if err != nil {
		return err
	}
	target, err := s.normalizer.Target(ctx, normalized)
	if err != nil {
		return err
	}
	job.SetNormalized(normalized, target, degradations)

	if err := job.TransitionTo(StageConcatenating); err != nil {
		return err
	}
	output := filepath.Join(dir, job.OutputFilename)
	job.SetOutputPath(output)
	if err := s.concatenator.Concatenate(ctx, normalized, target, output); err != nil {
		return err
	}

	if err := job.TransitionTo(StagePublishing); err != nil {
		return err
	}
	videoURL, err := s.publisher.Publish(ctx, output, job.OutputFilename)
	if err != nil {
		return err
	}

	return job.Complete(videoURL)
}

// fail marks job as failed, emits the failure event and returns err.
func (s *MergeService) fail(ctx context.Context, job *MergeJob, logger *slog.Logger, err error) error {
	stage := job.GetStage()
	if failErr := job.Fail(err.Error()); failErr != nil {
		logger.Warn("failed to mark job failed", slog.String("error", failErr.Error()))
	}
	logger.Error("video merge failed",
		slog.String("stage", string(stage)),
		slog.String("error", err.Error()),
	)
	s.publishEvent(ctx, logger, notify.Event{
		Type:                  notify.EventMergeFailed,
		JobID:                 job.ID,
		OccurredAt:            time.Now(),
		Filename:              job.OutputFilename,
		Clips:                 len(job.SourceURLs),
		Error:                 err.Error(),
		ProcessingTimeSeconds: job.Elapsed().Seconds(),
	})
	return err
}

func (s *MergeService) publishEvent(ctx context.Context, logger *slog.Logger, ev notify.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		logger.Warn("failed to publish job event",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}
