package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber returns fixed infos by path.
type fakeProber struct {
	infos map[string]ClipInfo
	err   error
	calls int
}

func (p *fakeProber) Probe(_ context.Context, path string) (ClipInfo, error) {
	p.calls++
	if p.err != nil {
		return ClipInfo{}, p.err
	}
	info, ok := p.infos[path]
	if !ok {
		return ClipInfo{}, errors.New("unknown clip")
	}
	return info, nil
}

// fakeResampler writes a marker file or fails for configured sources.
type fakeResampler struct {
	fail  map[string]error
	calls []string
}

func (r *fakeResampler) Resample(_ context.Context, src string, _ Target, dst string) error {
	r.calls = append(r.calls, src)
	if err := r.fail[src]; err != nil {
		return err
	}
	return os.WriteFile(dst, []byte("resampled"), 0o600)
}

func hd30(duration float64) ClipInfo {
	return ClipInfo{Duration: duration, FrameRate: 30, FrameRateExpr: "30/1", Width: 1280, Height: 720, HasAudio: true}
}

func TestNormalizer_Normalize(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, b, c := filepath.Join(dir, "video_0.mp4"), filepath.Join(dir, "video_1.mp4"), filepath.Join(dir, "video_2.mp4")

	t.Run("matching clips pass through unchanged", func(t *testing.T) {
		prober := &fakeProber{infos: map[string]ClipInfo{a: hd30(2), b: hd30(3)}}
		resampler := &fakeResampler{}
		n := NewNormalizer(prober, resampler, nil)

		clips := []*ClipRef{NewClipRef(a), NewClipRef(b)}
		out, degradations, err := n.Normalize(ctx, clips)
		require.NoError(t, err)

		require.Len(t, out, 2)
		assert.Same(t, clips[0], out[0])
		assert.Same(t, clips[1], out[1])
		assert.Empty(t, degradations)
		assert.Empty(t, resampler.calls)
	})

	t.Run("mismatching clips are resampled in order", func(t *testing.T) {
		fhd := ClipInfo{Duration: 4, FrameRate: 30, FrameRateExpr: "30/1", Width: 1920, Height: 1080}
		pal := ClipInfo{Duration: 5, FrameRate: 25, FrameRateExpr: "25/1", Width: 1280, Height: 720, HasAudio: true}
		prober := &fakeProber{infos: map[string]ClipInfo{a: hd30(2), b: fhd, c: pal}}
		resampler := &fakeResampler{}
		n := NewNormalizer(prober, resampler, nil)

		clips := []*ClipRef{NewClipRef(a), NewClipRef(b), NewClipRef(c)}
		out, degradations, err := n.Normalize(ctx, clips)
		require.NoError(t, err)

		require.Len(t, out, 3)
		assert.Same(t, clips[0], out[0])
		assert.Equal(t, []string{b, c}, resampler.calls)
		assert.Equal(t, filepath.Join(dir, "normalized_1.mp4"), out[1].Path)
		assert.Equal(t, filepath.Join(dir, "normalized_2.mp4"), out[2].Path)
		assert.Empty(t, degradations)

		info, ok := out[1].Info()
		require.True(t, ok)
		assert.Equal(t, 1280, info.Width)
		assert.Equal(t, 720, info.Height)
		assert.Equal(t, float64(4), info.Duration)
		assert.False(t, info.HasAudio)
	})

	t.Run("normalizing twice is a no-op", func(t *testing.T) {
		pal := ClipInfo{Duration: 5, FrameRate: 25, FrameRateExpr: "25/1", Width: 1280, Height: 720}
		prober := &fakeProber{infos: map[string]ClipInfo{a: hd30(2), b: pal}}
		resampler := &fakeResampler{}
		n := NewNormalizer(prober, resampler, nil)

		first, _, err := n.Normalize(ctx, []*ClipRef{NewClipRef(a), NewClipRef(b)})
		require.NoError(t, err)
		require.Len(t, resampler.calls, 1)

		second, degradations, err := n.Normalize(ctx, first)
		require.NoError(t, err)
		assert.Len(t, resampler.calls, 1)
		assert.Empty(t, degradations)
		assert.Same(t, first[0], second[0])
		assert.Same(t, first[1], second[1])
	})

	t.Run("frame rate within tolerance is not resampled", func(t *testing.T) {
		ntsc := hd30(3)
		ntsc.FrameRate = 29.97
		ntsc.FrameRateExpr = "30000/1001"
		prober := &fakeProber{infos: map[string]ClipInfo{a: hd30(2), b: ntsc}}
		resampler := &fakeResampler{}
		n := NewNormalizer(prober, resampler, nil)

		clips := []*ClipRef{NewClipRef(a), NewClipRef(b)}
		out, _, err := n.Normalize(ctx, clips)
		require.NoError(t, err)
		assert.Same(t, clips[1], out[1])
		assert.Empty(t, resampler.calls)
	})

	t.Run("resample failure degrades to original clip", func(t *testing.T) {
		fhd := ClipInfo{Duration: 4, FrameRate: 30, FrameRateExpr: "30/1", Width: 1920, Height: 1080}
		prober := &fakeProber{infos: map[string]ClipInfo{a: hd30(2), b: fhd}}
		resampler := &fakeResampler{fail: map[string]error{b: errors.New("encoder crashed")}}
		n := NewNormalizer(prober, resampler, nil)

		clips := []*ClipRef{NewClipRef(a), NewClipRef(b)}
		out, degradations, err := n.Normalize(ctx, clips)
		require.NoError(t, err)

		assert.Same(t, clips[1], out[1])
		require.Len(t, degradations, 1)
		assert.Equal(t, 1, degradations[0].Index)
		assert.Equal(t, b, degradations[0].Path)
		assert.Contains(t, degradations[0].Reason, "encoder crashed")
		assert.Contains(t, degradations[0].Warning(), "clip 1")
	})

	t.Run("probe failure is fatal", func(t *testing.T) {
		prober := &fakeProber{err: errors.New("moov atom not found")}
		n := NewNormalizer(prober, &fakeResampler{}, nil)

		_, _, err := n.Normalize(ctx, []*ClipRef{NewClipRef(a), NewClipRef(b)})
		assert.ErrorIs(t, err, ErrProbe)
	})

	t.Run("empty input", func(t *testing.T) {
		n := NewNormalizer(&fakeProber{}, &fakeResampler{}, nil)

		_, _, err := n.Normalize(ctx, nil)
		assert.ErrorIs(t, err, ErrNoClips)
	})
}

func TestNormalizer_ProbeIsCached(t *testing.T) {
	prober := &fakeProber{infos: map[string]ClipInfo{"/a.mp4": hd30(1)}}
	n := NewNormalizer(prober, &fakeResampler{}, nil)
	clip := NewClipRef("/a.mp4")

	_, err := n.Probe(context.Background(), clip)
	require.NoError(t, err)
	_, err = n.Probe(context.Background(), clip)
	require.NoError(t, err)

	assert.Equal(t, 1, prober.calls)
}
