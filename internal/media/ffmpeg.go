package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Static errors for media operations.
var (
	// ErrEmptyOutput is returned when ffmpeg exits cleanly but writes nothing.
	ErrEmptyOutput = errors.New("media: output file is empty")
	// ErrInvalidTarget is returned when the target has no size or frame rate.
	ErrInvalidTarget = errors.New("media: invalid normalization target")
)

const (
	audioSampleRate = 44100
	audioLayout     = "stereo"
)

// FFmpegProcessor implements Concatenator using the ffmpeg CLI.
// Encodes are bounded by a process-wide semaphore.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	prober     Prober
	encodes    chan struct{}
	logger     *slog.Logger
}

// ProcessorOption configures an FFmpegProcessor.
type ProcessorOption func(*FFmpegProcessor)

// WithProber sets the prober used for clips with no cached info.
func WithProber(p Prober) ProcessorOption {
	return func(fp *FFmpegProcessor) {
		fp.prober = p
	}
}

// WithMaxConcurrentEncodes bounds the number of simultaneous encodes.
func WithMaxConcurrentEncodes(n int) ProcessorOption {
	return func(fp *FFmpegProcessor) {
		if n > 0 {
			fp.encodes = make(chan struct{}, n)
		}
	}
}

// WithProcessorLogger sets the logger.
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(fp *FFmpegProcessor) {
		if l != nil {
			fp.logger = l
		}
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string, opts ...ProcessorOption) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	p := &FFmpegProcessor{
		ffmpegPath: ffmpegPath,
		prober:     NewGoffmpegProber(),
		encodes:    make(chan struct{}, 2),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MergeError reports a failed concatenation.
type MergeError struct {
	Output string
	Err    error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge into %s: %v", e.Output, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// Concatenate joins clips in order into output, re-encoding every input onto
// the target canvas and frame rate. Clips without audio contribute silence
// for their duration. On failure the partial output is removed and the
// error is a *MergeError.
func (p *FFmpegProcessor) Concatenate(ctx context.Context, clips []*ClipRef, target Target, output string) error {
	if len(clips) == 0 {
		return &MergeError{Output: output, Err: ErrNoClips}
	}
	if target.Width <= 0 || target.Height <= 0 || target.FrameRateExpr == "" {
		return &MergeError{Output: output, Err: ErrInvalidTarget}
	}

	infos := make([]ClipInfo, len(clips))
	for i, clip := range clips {
		info, ok := clip.Info()
		if !ok {
			var err error
			info, err = p.prober.Probe(ctx, clip.Path)
			if err != nil {
				return &MergeError{Output: output, Err: err}
			}
			clip.SetInfo(info)
		}
		infos[i] = info
	}

	if err := p.acquire(ctx); err != nil {
		return &MergeError{Output: output, Err: err}
	}
	defer p.release()

	start := time.Now()
	args := concatArgs(clips, infos, target, output)
	if err := p.runFFmpeg(ctx, args); err != nil {
		_ = os.Remove(output)
		return &MergeError{Output: output, Err: err}
	}

	stat, err := os.Stat(output)
	if err != nil {
		return &MergeError{Output: output, Err: err}
	}
	if stat.Size() == 0 {
		_ = os.Remove(output)
		return &MergeError{Output: output, Err: ErrEmptyOutput}
	}

	p.logger.Info("concatenated clips",
		slog.Int("clips", len(clips)),
		slog.String("target", target.String()),
		slog.Int64("bytes", stat.Size()),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// concatArgs builds the ffmpeg arguments for a concat filter graph. Each
// input is letterboxed onto the target canvas with square pixels and
// resampled to the target rate before concatenation.
func concatArgs(clips []*ClipRef, infos []ClipInfo, target Target, output string) []string {
	args := []string{"-y"}
	for _, clip := range clips {
		args = append(args, "-i", clip.Path)
	}

	var graph strings.Builder
	var pairs strings.Builder
	for i, info := range infos {
		fmt.Fprintf(&graph,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1,fps=%s,format=yuv420p[v%d];",
			i, target.Width, target.Height, target.Width, target.Height, target.FrameRateExpr, i,
		)
		if info.HasAudio {
			fmt.Fprintf(&graph,
				"[%d:a]aformat=sample_rates=%d:channel_layouts=%s[a%d];",
				i, audioSampleRate, audioLayout, i,
			)
		} else {
			fmt.Fprintf(&graph,
				"anullsrc=channel_layout=%s:sample_rate=%d,atrim=duration=%s[a%d];",
				audioLayout, audioSampleRate, strconv.FormatFloat(info.Duration, 'f', 3, 64), i,
			)
		}
		fmt.Fprintf(&pairs, "[v%d][a%d]", i, i)
	}
	fmt.Fprintf(&graph, "%sconcat=n=%d:v=1:a=1[outv][outa]", pairs.String(), len(clips))

	args = append(args,
		"-filter_complex", graph.String(),
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", "libx264", // Video codec
		"-preset", "fast", // Encoding speed preset
		"-crf", "23", // Quality (lower = better, 23 is default)
		"-pix_fmt", "yuv420p",
		"-c:a", "aac", // Audio codec
		"-b:a", "128k", // Audio bitrate
		"-movflags", "+faststart",
		output,
	)
	return args
}

func (p *FFmpegProcessor) acquire(ctx context.Context) error {
	select {
	case p.encodes <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for encode slot: %w", ctx.Err())
	}
}

func (p *FFmpegProcessor) release() {
	<-p.encodes
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
