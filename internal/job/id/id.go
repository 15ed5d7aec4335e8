// Package id provides identifiers for jobs and their output files.
package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique job ID.
// Format: job-<timestamp>-<random>
// Example: job-1701432000-a1b2c3d4
func Generate() string {
	return fmt.Sprintf("job-%d-%s", time.Now().Unix(), shortHex())
}

// MergedFilename returns the default object name for a merged video.
// Format: merged_video_<8 hex>_<unix seconds>.mp4
func MergedFilename(now time.Time) string {
	return fmt.Sprintf("merged_video_%s_%d.mp4", shortHex(), now.Unix())
}

// shortHex returns the first 8 hex characters of a random UUID.
func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
