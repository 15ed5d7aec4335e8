package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage manages per-request scratch directories under a root
// directory on local disk.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The tempDir parameter specifies the root for scratch directories.
// If tempDir is empty, a "video-merger" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "video-merger")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir}, nil
}

// TempDir returns the root scratch directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// NewScratchDir creates a uniquely named directory for one request.
// The caller must release it with RemoveScratchDir.
func (s *LocalStorage) NewScratchDir(ctx context.Context, prefix string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dir, err := os.MkdirTemp(s.tempDir, prefix+"_*")
	if err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	return dir, nil
}

// RemoveScratchDir removes a scratch directory and everything in it.
// Missing directories are not an error.
func (s *LocalStorage) RemoveScratchDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove scratch directory %s: %w", dir, err)
	}
	return nil
}
