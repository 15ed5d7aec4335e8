package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cast"
	gmedia "github.com/xfrr/goffmpeg/media"
	"github.com/xfrr/goffmpeg/transcoder"
)

var (
	// ErrProbe is returned when a clip's properties cannot be read.
	ErrProbe = errors.New("media: probe failed")
	// ErrNoVideoStream is returned when a file has no video stream.
	ErrNoVideoStream = errors.New("media: no video stream")
)

// Prober reads the properties of a video file.
type Prober interface {
	Probe(ctx context.Context, path string) (ClipInfo, error)
}

// GoffmpegProber implements Prober with goffmpeg, which shells out to
// ffprobe. goffmpeg resolves ffmpeg and ffprobe from PATH.
type GoffmpegProber struct{}

// NewGoffmpegProber creates a prober.
func NewGoffmpegProber() *GoffmpegProber {
	return &GoffmpegProber{}
}

// Probe reads duration, frame rate, frame size and audio presence of path.
func (p *GoffmpegProber) Probe(ctx context.Context, path string) (ClipInfo, error) {
	if err := ctx.Err(); err != nil {
		return ClipInfo{}, fmt.Errorf("%w: %w", ErrProbe, err)
	}

	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(path, ""); err != nil {
		return ClipInfo{}, fmt.Errorf("%w: %s: %w", ErrProbe, path, err)
	}

	info, err := clipInfoFromMetadata(trans.MediaFile().Metadata())
	if err != nil {
		return ClipInfo{}, fmt.Errorf("%w: %s: %w", ErrProbe, path, err)
	}
	return info, nil
}

// clipInfoFromMetadata maps ffprobe output to ClipInfo, using the first
// video stream.
func clipInfoFromMetadata(md gmedia.Metadata) (ClipInfo, error) {
	var info ClipInfo
	foundVideo := false

	for _, stream := range md.Streams {
		switch stream.CodecType {
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.FrameRateExpr = stream.AvgFrameRate
			rate, err := ParseFrameRate(stream.AvgFrameRate)
			if err != nil {
				return ClipInfo{}, err
			}
			info.FrameRate = rate
		case "audio":
			info.HasAudio = true
		}
	}

	if !foundVideo || info.Width <= 0 || info.Height <= 0 {
		return ClipInfo{}, ErrNoVideoStream
	}

	duration, err := cast.ToFloat64E(md.Format.Duration)
	if err != nil {
		return ClipInfo{}, fmt.Errorf("parse duration %q: %w", md.Format.Duration, err)
	}
	info.Duration = duration

	return info, nil
}
