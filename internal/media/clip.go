package media

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// FrameRateTolerance is the largest frame rate difference, in frames per
// second, treated as a match.
const FrameRateTolerance = 0.1

// ErrInvalidFrameRate is returned when a frame rate string cannot be parsed.
var ErrInvalidFrameRate = errors.New("media: invalid frame rate")

// ClipInfo holds the probed properties of a video file.
type ClipInfo struct {
	Duration      float64 // seconds
	FrameRate     float64 // frames per second
	FrameRateExpr string  // ffmpeg rational, e.g. "30000/1001"
	Width         int
	Height        int
	HasAudio      bool
}

// ClipRef is a local video file owned by one merge invocation.
// Its ClipInfo is populated lazily on first probe.
type ClipRef struct {
	Path string
	info *ClipInfo
}

// NewClipRef creates a ClipRef for path with no probed info.
func NewClipRef(path string) *ClipRef {
	return &ClipRef{Path: path}
}

// Info returns the cached probe result, if any.
func (c *ClipRef) Info() (ClipInfo, bool) {
	if c.info == nil {
		return ClipInfo{}, false
	}
	return *c.info, true
}

// SetInfo caches a probe result.
func (c *ClipRef) SetInfo(info ClipInfo) {
	c.info = &info
}

// Target is the frame rate and frame size every clip is reconciled to.
type Target struct {
	FrameRate     float64
	FrameRateExpr string
	Width         int
	Height        int
}

// TargetFrom derives a Target from the first clip's info.
func TargetFrom(info ClipInfo) Target {
	expr := info.FrameRateExpr
	if expr == "" {
		expr = strconv.FormatFloat(info.FrameRate, 'f', -1, 64)
	}
	return Target{
		FrameRate:     info.FrameRate,
		FrameRateExpr: expr,
		Width:         info.Width,
		Height:        info.Height,
	}
}

// String formats the target as WxH@fps.
func (t Target) String() string {
	return fmt.Sprintf("%dx%d@%s", t.Width, t.Height, t.FrameRateExpr)
}

// SizeMatches reports whether info has the target frame size.
func (t Target) SizeMatches(info ClipInfo) bool {
	return info.Width == t.Width && info.Height == t.Height
}

// FrameRateMatches reports whether info is within FrameRateTolerance of the
// target frame rate.
func (t Target) FrameRateMatches(info ClipInfo) bool {
	return math.Abs(info.FrameRate-t.FrameRate) <= FrameRateTolerance
}

// ParseFrameRate parses an ffprobe frame rate such as "30000/1001" or "25".
func ParseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	num, den, isRatio := strings.Cut(s, "/")

	n, err := cast.ToFloat64E(num)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
	}
	if !isRatio {
		if n <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
		}
		return n, nil
	}

	d, err := cast.ToFloat64E(den)
	if err != nil || d == 0 || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrameRate, s)
	}
	return n / d, nil
}
