package media

import (
	"context"
	"fmt"
	"os"

	"github.com/xfrr/goffmpeg/transcoder"
)

// Resampler re-encodes a clip to a target frame rate and frame size.
type Resampler interface {
	Resample(ctx context.Context, src string, target Target, dst string) error
}

// GoffmpegResampler implements Resampler with goffmpeg. Binaries are
// resolved from PATH.
type GoffmpegResampler struct{}

// NewGoffmpegResampler creates a resampler.
func NewGoffmpegResampler() *GoffmpegResampler {
	return &GoffmpegResampler{}
}

// resampleFilter scales to the target canvas, preserving aspect ratio with
// black padding, and resamples frames to the target rate.
func resampleFilter(target Target) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1,fps=%s",
		target.Width, target.Height, target.Width, target.Height, target.FrameRateExpr,
	)
}

// Resample writes src converted to target into dst. A partial dst is
// removed on failure.
func (r *GoffmpegResampler) Resample(ctx context.Context, src string, target Target, dst string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("resample cancelled: %w", err)
	}

	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(src, dst); err != nil {
		return fmt.Errorf("initialize transcoder: %w", err)
	}

	trans.MediaFile().SetVideoCodec("libx264")
	trans.MediaFile().SetVideoFilter(resampleFilter(target))
	trans.MediaFile().SetAudioCodec("aac")

	if err := <-trans.Run(false); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("resample %s: %w", src, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("stat resampled output: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(dst)
		return fmt.Errorf("resample %s: %w", src, ErrEmptyOutput)
	}
	return nil
}
