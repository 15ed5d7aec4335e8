// Package media probes, normalizes and concatenates video clips.
// Decoding and encoding are delegated to the ffmpeg and ffprobe binaries.
package media

import "context"

// Concatenator joins clips into a single MP4.
type Concatenator interface {
	// Concatenate joins clips in order into output, reconciling each clip to
	// target. The partial output is removed on failure.
	Concatenate(ctx context.Context, clips []*ClipRef, target Target, output string) error
}
