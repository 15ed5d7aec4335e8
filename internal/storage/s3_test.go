package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3Storage(t *testing.T, endpoint string) *S3Storage {
	t.Helper()
	storage, err := NewS3Storage(context.Background(), S3Config{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	require.NoError(t, err)
	return storage
}

func TestS3Storage_Upload_MockServer(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	src := filepath.Join(t.TempDir(), "merged.mp4")
	require.NoError(t, os.WriteFile(src, []byte("test content"), 0o600))

	storage := newTestS3Storage(t, server.URL)
	err := storage.Upload(context.Background(), src, "test-bucket", "merged.mp4", ContentTypeMP4)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/test-bucket/merged.mp4", gotPath)
	assert.Equal(t, ContentTypeMP4, gotContentType)
	assert.Contains(t, string(gotBody), "test content")
}

func TestS3Storage_Download_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/source-bucket/clips/a.mp4" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("video bytes"))
	}))
	defer server.Close()

	storage := newTestS3Storage(t, server.URL)
	dst := filepath.Join(t.TempDir(), "a.mp4")

	require.NoError(t, storage.Download(context.Background(), "source-bucket", "clips/a.mp4", dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(data))
}

func TestS3Storage_Download_Missing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	storage := newTestS3Storage(t, server.URL)
	dst := filepath.Join(t.TempDir(), "missing.mp4")

	err := storage.Download(context.Background(), "source-bucket", "missing.mp4", dst)
	require.Error(t, err)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestS3Storage_RetrievalURL(t *testing.T) {
	ctx := context.Background()

	t.Run("public AWS URL", func(t *testing.T) {
		storage := newTestS3Storage(t, "")
		url, err := storage.RetrievalURL(ctx, "merged-videos", "out.mp4")
		require.NoError(t, err)
		assert.Equal(t, "https://merged-videos.s3.us-east-1.amazonaws.com/out.mp4", url)
	})

	t.Run("custom endpoint", func(t *testing.T) {
		storage := newTestS3Storage(t, "http://localhost:4566/")
		url, err := storage.RetrievalURL(ctx, "merged-videos", "out.mp4")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:4566/merged-videos/out.mp4", url)
	})
}

func TestS3Storage_Name(t *testing.T) {
	assert.Equal(t, "s3", newTestS3Storage(t, "").Name())
}
