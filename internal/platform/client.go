package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultUploadURL is the resumable upload endpoint for videos.
const DefaultUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos"

// statusResumeIncomplete is the status the platform returns for an
// acknowledged but incomplete session.
const statusResumeIncomplete = 308

// Chunk is one byte range of the file being uploaded.
type Chunk struct {
	Data   io.Reader
	Offset int64
	Length int64
	Total  int64
}

// ChunkStatus is the platform's view of a session after a request.
type ChunkStatus struct {
	Done       bool
	NextOffset int64
	VideoID    string
}

// Transport speaks the resumable upload protocol.
type Transport interface {
	// Initiate opens a session for total bytes of contentType and returns its URL.
	Initiate(ctx context.Context, tok *oauth2.Token, md Metadata, total int64, contentType string) (string, error)

	// UploadChunk sends one chunk to the session.
	UploadChunk(ctx context.Context, tok *oauth2.Token, sessionURL string, chunk Chunk) (ChunkStatus, error)

	// QueryStatus asks how many bytes of the session the platform holds.
	QueryStatus(ctx context.Context, tok *oauth2.Token, sessionURL string, total int64) (ChunkStatus, error)
}

// HTTPTransport is the HTTP implementation of Transport.
type HTTPTransport struct {
	uploadURL  string
	httpClient *http.Client
}

// TransportOption is a function that configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		t.httpClient = c
	}
}

// WithUploadURL sets a custom upload endpoint.
func WithUploadURL(u string) TransportOption {
	return func(t *HTTPTransport) {
		if u != "" {
			t.uploadURL = u
		}
	}
}

// NewHTTPTransport creates a new resumable upload transport.
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		uploadURL:  DefaultUploadURL,
		httpClient: &http.Client{Timeout: 30 * time.Minute},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Initiate opens a resumable session with the video's metadata.
func (t *HTTPTransport) Initiate(ctx context.Context, tok *oauth2.Token, md Metadata, total int64, contentType string) (string, error) {
	body, err := json.Marshal(md.resource())
	if err != nil {
		return "", fmt.Errorf("platform: marshal metadata: %w", err)
	}

	u, err := url.Parse(t.uploadURL)
	if err != nil {
		return "", fmt.Errorf("platform: parse upload URL: %w", err)
	}
	q := u.Query()
	q.Set("uploadType", "resumable")
	q.Set("part", "snippet,status")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("platform: create request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(total, 10))
	req.Header.Set("X-Upload-Content-Type", contentType)

	resp, err := t.do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apiError(resp)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", ErrNoSessionURL
	}
	return location, nil
}

// UploadChunk sends chunk with a Content-Range header.
func (t *HTTPTransport) UploadChunk(ctx context.Context, tok *oauth2.Token, sessionURL string, chunk Chunk) (ChunkStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, chunk.Data)
	if err != nil {
		return ChunkStatus{}, fmt.Errorf("platform: create request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.ContentLength = chunk.Length
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", chunk.Offset, chunk.Offset+chunk.Length-1, chunk.Total))

	return t.sessionRequest(req)
}

// QueryStatus sends an empty PUT with "Content-Range: bytes */total".
func (t *HTTPTransport) QueryStatus(ctx context.Context, tok *oauth2.Token, sessionURL string, total int64) (ChunkStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, http.NoBody)
	if err != nil {
		return ChunkStatus{}, fmt.Errorf("platform: create request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.ContentLength = 0
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", total))

	return t.sessionRequest(req)
}

// sessionRequest interprets a response to a request against an open session.
func (t *HTTPTransport) sessionRequest(req *http.Request) (ChunkStatus, error) {
	resp, err := t.do(req)
	if err != nil {
		return ChunkStatus{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == statusResumeIncomplete:
		next, err := nextOffset(resp.Header.Get("Range"))
		if err != nil {
			return ChunkStatus{}, err
		}
		return ChunkStatus{NextOffset: next}, nil

	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var video struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
			return ChunkStatus{}, fmt.Errorf("platform: decode response: %w", err)
		}
		if video.ID == "" {
			return ChunkStatus{}, ErrNoVideoID
		}
		return ChunkStatus{Done: true, VideoID: video.ID}, nil

	default:
		return ChunkStatus{}, apiError(resp)
	}
}

// do sends req. Transport failures are retryable.
func (t *HTTPTransport) do(req *http.Request) (*http.Response, error) {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, fmt.Errorf("platform: request cancelled: %w", req.Context().Err())
		}
		return nil, &retryableError{err: fmt.Errorf("platform: request failed: %w", err)}
	}
	return resp, nil
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// nextOffset parses a "bytes=0-N" Range header into N+1. A missing header
// means no bytes have been received.
func nextOffset(header string) (int64, error) {
	if header == "" {
		return 0, nil
	}
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}
	_, end, ok := strings.Cut(strings.TrimPrefix(header, prefix), "-")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}
	last, err := strconv.ParseInt(strings.TrimSpace(end), 10, 64)
	if err != nil || last < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}
	return last + 1, nil
}
