package id

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	id := Generate()

	// Check format
	if !strings.HasPrefix(id, "job-") {
		t.Errorf("expected ID to start with 'job-', got %s", id)
	}

	// Check uniqueness
	id2 := Generate()
	if id == id2 {
		t.Error("expected different IDs for consecutive calls")
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestMergedFilename(t *testing.T) {
	now := time.Unix(1701432000, 0)
	name := MergedFilename(now)

	pattern := regexp.MustCompile(`^merged_video_[0-9a-f]{8}_1701432000\.mp4$`)
	if !pattern.MatchString(name) {
		t.Errorf("unexpected filename %q", name)
	}
	if name == MergedFilename(now) {
		t.Error("expected different filenames for the same second")
	}
}
