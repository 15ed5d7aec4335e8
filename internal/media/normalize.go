package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
)

// ErrNoClips is returned when an operation receives no clips.
var ErrNoClips = errors.New("media: no clips provided")

// Degradation records a clip that could not be reconciled to the target and
// is passed through unchanged.
type Degradation struct {
	Index  int    `json:"index"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Warning formats the degradation for API responses.
func (d Degradation) Warning() string {
	return fmt.Sprintf("clip %d was not normalized: %s", d.Index, d.Reason)
}

// Normalizer reconciles every clip's frame rate and frame size against the
// first clip.
type Normalizer struct {
	prober    Prober
	resampler Resampler
	logger    *slog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(prober Prober, resampler Resampler, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{prober: prober, resampler: resampler, logger: logger}
}

// Probe returns the clip's info, probing and caching it on first use.
func (n *Normalizer) Probe(ctx context.Context, clip *ClipRef) (ClipInfo, error) {
	if info, ok := clip.Info(); ok {
		return info, nil
	}
	info, err := n.prober.Probe(ctx, clip.Path)
	if err != nil {
		if errors.Is(err, ErrProbe) {
			return ClipInfo{}, err
		}
		return ClipInfo{}, fmt.Errorf("%w: %s: %w", ErrProbe, clip.Path, err)
	}
	clip.SetInfo(info)
	return info, nil
}

// Target probes the first clip and derives the normalization target.
func (n *Normalizer) Target(ctx context.Context, clips []*ClipRef) (Target, error) {
	if len(clips) == 0 {
		return Target{}, ErrNoClips
	}
	info, err := n.Probe(ctx, clips[0])
	if err != nil {
		return Target{}, err
	}
	return TargetFrom(info), nil
}

// Normalize returns clips in the same order with every mismatching clip
// replaced by a resampled copy. Matching clips are returned as the same
// *ClipRef. A clip whose resample fails is kept as is and reported as a
// Degradation. Probe failures are fatal.
func (n *Normalizer) Normalize(ctx context.Context, clips []*ClipRef) ([]*ClipRef, []Degradation, error) {
	target, err := n.Target(ctx, clips)
	if err != nil {
		return nil, nil, err
	}

	out := make([]*ClipRef, len(clips))
	var degradations []Degradation

	for i, clip := range clips {
		info, err := n.Probe(ctx, clip)
		if err != nil {
			return nil, nil, err
		}

		if target.SizeMatches(info) && target.FrameRateMatches(info) {
			out[i] = clip
			continue
		}

		n.logger.Info("resampling clip",
			slog.Int("index", i),
			slog.String("from", fmt.Sprintf("%dx%d@%.3f", info.Width, info.Height, info.FrameRate)),
			slog.String("to", target.String()),
		)

		dst := filepath.Join(filepath.Dir(clip.Path), fmt.Sprintf("normalized_%d.mp4", i))
		if err := n.resampler.Resample(ctx, clip.Path, target, dst); err != nil {
			d := Degradation{Index: i, Path: clip.Path, Reason: err.Error()}
			n.logger.Warn("clip normalization failed, using original",
				slog.Int("index", d.Index),
				slog.String("path", d.Path),
				slog.String("error", d.Reason),
			)
			degradations = append(degradations, d)
			out[i] = clip
			continue
		}

		resampled := NewClipRef(dst)
		resampled.SetInfo(ClipInfo{
			Duration:      info.Duration,
			FrameRate:     target.FrameRate,
			FrameRateExpr: target.FrameRateExpr,
			Width:         target.Width,
			Height:        target.Height,
			HasAudio:      info.HasAudio,
		})
		out[i] = resampled
	}

	return out, degradations, nil
}
