// Package job provides the MergeJob aggregate and the services that run
// merge and platform-upload requests end to end.
package job

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/maauso/video-merger-api/internal/job/id"
	"github.com/maauso/video-merger-api/internal/media"
)

// MinSources is the fewest source URLs a merge accepts.
const MinSources = 2

// Stage represents the current step of a MergeJob.
type Stage string

const (
	// StagePending indicates the job was created and nothing ran yet.
	StagePending Stage = "PENDING"
	// StageFetching indicates source clips are being downloaded.
	StageFetching Stage = "FETCHING"
	// StageNormalizing indicates clips are being reconciled to the target.
	StageNormalizing Stage = "NORMALIZING"
	// StageConcatenating indicates the output is being encoded.
	StageConcatenating Stage = "CONCATENATING"
	// StagePublishing indicates the output is being uploaded to object storage.
	StagePublishing Stage = "PUBLISHING"
	// StageCompleted indicates the merged video is published.
	StageCompleted Stage = "COMPLETED"
	// StageFailed indicates the job aborted.
	StageFailed Stage = "FAILED"
)

// Static errors for merge jobs.
var (
	// ErrInvalidTransition is returned when an invalid stage transition is attempted.
	ErrInvalidTransition = errors.New("invalid stage transition")
	// ErrTooFewSources is returned when fewer than MinSources URLs are given.
	ErrTooFewSources = fmt.Errorf("at least %d videos are required for merging", MinSources)
	// ErrInvalidFilename is returned when an output filename has no usable name.
	ErrInvalidFilename = errors.New("invalid output filename")
)

// validTransitions defines which stage transitions are allowed.
// Stages only move forward; any non-terminal stage may fail.
var validTransitions = map[Stage][]Stage{
	StagePending:       {StageFetching, StageFailed},
	StageFetching:      {StageNormalizing, StageFailed},
	StageNormalizing:   {StageConcatenating, StageFailed},
	StageConcatenating: {StagePublishing, StageFailed},
	StagePublishing:    {StageCompleted, StageFailed},
	StageCompleted:     {},
	StageFailed:        {},
}

// canTransition checks if a transition from one stage to another is valid.
func canTransition(from, to Stage) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// MergeJob is one request-scoped merge: ordered sources in, one published
// MP4 out.
type MergeJob struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// SourceURLs are the clips to merge, in output order.
	SourceURLs []string
	// Clips are the downloaded clips, in the same order as SourceURLs.
	Clips []*media.ClipRef
	// OutputFilename is the object name of the merged video.
	OutputFilename string
	// OutputPath is the local path of the merged video.
	OutputPath string
	// Target is the frame rate and size every clip is reconciled to.
	Target media.Target
	// Stage is the current step.
	Stage Stage
	// Degradations lists clips that could not be normalized.
	Degradations []media.Degradation
	// VideoURL is the retrieval URL of the published video.
	VideoURL string
	// Error contains the error message if the job failed.
	Error string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewMergeJob creates a PENDING job. An empty filename is replaced by a
// generated one.
func NewMergeJob(sourceURLs []string, filename string) (*MergeJob, error) {
	if len(sourceURLs) < MinSources {
		return nil, ErrTooFewSources
	}

	if filename == "" {
		filename = id.MergedFilename(time.Now())
	} else {
		var err error
		if filename, err = SanitizeFilename(filename); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	return &MergeJob{
		ID:             id.Generate(),
		SourceURLs:     append([]string(nil), sourceURLs...),
		OutputFilename: filename,
		Stage:          StagePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// SanitizeFilename strips directories from name and ensures an .mp4 suffix.
func SanitizeFilename(name string) (string, error) {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." || name == "" {
		return "", ErrInvalidFilename
	}
	if !strings.HasSuffix(strings.ToLower(name), ".mp4") {
		name += ".mp4"
	}
	return name, nil
}

// TransitionTo attempts to move the job to the given stage.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *MergeJob) TransitionTo(stage Stage) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Stage, stage) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Stage, stage)
	}

	j.Stage = stage
	j.UpdatedAt = time.Now()

	switch stage {
	case StageFetching:
		j.StartedAt = j.UpdatedAt
	case StageCompleted, StageFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Complete records the published URL and moves the job to COMPLETED.
func (j *MergeJob) Complete(videoURL string) error {
	if err := j.TransitionTo(StageCompleted); err != nil {
		return err
	}
	j.mu.Lock()
	j.VideoURL = videoURL
	j.mu.Unlock()
	return nil
}

// Fail moves the job to FAILED with an error message.
func (j *MergeJob) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StageFailed)
}

// SetClips records the downloaded clips.
func (j *MergeJob) SetClips(clips []*media.ClipRef) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Clips = clips
	j.UpdatedAt = time.Now()
}

// SetNormalized records the normalized clips, the target and any degradations.
func (j *MergeJob) SetNormalized(clips []*media.ClipRef, target media.Target, degradations []media.Degradation) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Clips = clips
	j.Target = target
	j.Degradations = degradations
	j.UpdatedAt = time.Now()
}

// SetOutputPath records where the merged video is written.
func (j *MergeJob) SetOutputPath(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = path
	j.UpdatedAt = time.Now()
}

// GetStage returns the current stage (thread-safe).
func (j *MergeJob) GetStage() Stage {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Stage
}

// IsTerminal returns true if the job is COMPLETED or FAILED.
func (j *MergeJob) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Stage == StageCompleted || j.Stage == StageFailed
}

// Warnings returns the degradations formatted for API responses.
func (j *MergeJob) Warnings() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.Degradations) == 0 {
		return nil
	}
	out := make([]string, len(j.Degradations))
	for i, d := range j.Degradations {
		out[i] = d.Warning()
	}
	return out
}

// Elapsed returns the time from creation to completion, or to now for a
// job still running.
func (j *MergeJob) Elapsed() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.CompletedAt.IsZero() {
		return time.Since(j.CreatedAt)
	}
	return j.CompletedAt.Sub(j.CreatedAt)
}
