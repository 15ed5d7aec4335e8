package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/video-merger-api/internal/storage"
)

// fakeStore records downloads and writes fixed content.
type fakeStore struct {
	name    string
	content []byte
	err     error
	calls   []string
}

func (s *fakeStore) Name() string { return s.name }

func (s *fakeStore) Download(_ context.Context, bucket, key, dst string) error {
	s.calls = append(s.calls, bucket+"/"+key)
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(dst, s.content, 0o600)
}

func (s *fakeStore) Upload(context.Context, string, string, string, string) error {
	return nil
}

func (s *fakeStore) RetrievalURL(context.Context, string, string) (string, error) {
	return "", nil
}

func TestFetcher_Classify(t *testing.T) {
	f := New(storage.Backends{}, WithMinioHost("minio.local"))

	tests := []struct {
		name    string
		url     string
		want    Location
		wantErr error
	}{
		{
			name: "aws path style",
			url:  "https://s3.us-east-1.amazonaws.com/videos/clips/a.mp4",
			want: Location{Kind: KindS3, Bucket: "videos", Key: "clips/a.mp4"},
		},
		{
			name: "aws virtual hosted style",
			url:  "https://videos.s3.eu-west-1.amazonaws.com/clips/a.mp4",
			want: Location{Kind: KindS3, Bucket: "videos", Key: "clips/a.mp4"},
		},
		{
			name: "aws legacy global host",
			url:  "https://videos.s3.amazonaws.com/a.mp4",
			want: Location{Kind: KindS3, Bucket: "videos", Key: "a.mp4"},
		},
		{
			name: "minio path style",
			url:  "http://minio.local:9000/source-videos/a.mp4",
			want: Location{Kind: KindMinio, Bucket: "source-videos", Key: "a.mp4"},
		},
		{
			name: "plain http",
			url:  "https://cdn.example.com/a.mp4",
			want: Location{Kind: KindHTTP},
		},
		{
			name: "lookalike aws domain",
			url:  "https://videos.s3.evilamazonaws.com/clips/a.mp4",
			want: Location{Kind: KindHTTP},
		},
		{
			name:    "relative url",
			url:     "/a.mp4",
			wantErr: ErrInvalidURL,
		},
		{
			name:    "unsupported scheme",
			url:     "ftp://example.com/a.mp4",
			wantErr: ErrInvalidURL,
		},
		{
			name:    "aws url without key",
			url:     "https://s3.us-east-1.amazonaws.com/videos",
			wantErr: ErrMissingObjectKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Classify(tt.url)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetcher_Classify_NoMinioHost(t *testing.T) {
	f := New(storage.Backends{})

	loc, err := f.Classify("http://minio.local:9000/source-videos/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, KindHTTP, loc.Kind)
}

func TestFetcher_Fetch_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.mp4":
			_, _ = w.Write([]byte("video content"))
		case "/empty.mp4":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := New(storage.Backends{})
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "video_0.mp4")

		path, err := f.Fetch(ctx, server.URL+"/ok.mp4", dst)
		require.NoError(t, err)
		assert.Equal(t, dst, path)

		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "video content", string(data))
	})

	t.Run("not found leaves no file", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "video_1.mp4")

		_, err := f.Fetch(ctx, server.URL+"/missing.mp4", dst)

		var dlErr *DownloadError
		require.ErrorAs(t, err, &dlErr)
		assert.Equal(t, server.URL+"/missing.mp4", dlErr.URL)
		assert.ErrorIs(t, err, ErrUnexpectedStatus)

		_, statErr := os.Stat(dst)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("empty body leaves no file", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "video_2.mp4")

		_, err := f.Fetch(ctx, server.URL+"/empty.mp4", dst)
		assert.ErrorIs(t, err, ErrEmptyDownload)

		_, statErr := os.Stat(dst)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestFetcher_Fetch_ObjectStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("minio backend", func(t *testing.T) {
		minio := &fakeStore{name: "minio", content: []byte("from minio")}
		f := New(storage.Backends{Minio: minio}, WithMinioHost("minio.local"))
		dst := filepath.Join(t.TempDir(), "video_0.mp4")

		_, err := f.Fetch(ctx, "http://minio.local:9000/source-videos/a.mp4", dst)
		require.NoError(t, err)
		assert.Equal(t, []string{"source-videos/a.mp4"}, minio.calls)
	})

	t.Run("s3 backend", func(t *testing.T) {
		s3 := &fakeStore{name: "s3", content: []byte("from s3")}
		f := New(storage.Backends{S3: s3})
		dst := filepath.Join(t.TempDir(), "video_0.mp4")

		_, err := f.Fetch(ctx, "https://videos.s3.us-east-1.amazonaws.com/a.mp4", dst)
		require.NoError(t, err)
		assert.Equal(t, []string{"videos/a.mp4"}, s3.calls)
	})

	t.Run("unconfigured backend", func(t *testing.T) {
		f := New(storage.Backends{})
		dst := filepath.Join(t.TempDir(), "video_0.mp4")

		_, err := f.Fetch(ctx, "https://videos.s3.us-east-1.amazonaws.com/a.mp4", dst)
		assert.ErrorIs(t, err, ErrBackendNotConfigured)
	})

	t.Run("backend failure", func(t *testing.T) {
		backendErr := errors.New("access denied")
		s3 := &fakeStore{name: "s3", err: backendErr}
		f := New(storage.Backends{S3: s3})
		dst := filepath.Join(t.TempDir(), "video_0.mp4")

		_, err := f.Fetch(ctx, "https://videos.s3.us-east-1.amazonaws.com/a.mp4", dst)

		var dlErr *DownloadError
		require.ErrorAs(t, err, &dlErr)
		assert.ErrorIs(t, err, backendErr)
	})
}

func TestFetcher_Fetch_InvalidURL(t *testing.T) {
	f := New(storage.Backends{})

	_, err := f.Fetch(context.Background(), "not a url", filepath.Join(t.TempDir(), "x.mp4"))
	assert.ErrorIs(t, err, ErrInvalidURL)
}
