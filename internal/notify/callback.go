package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultCallbackTimeout bounds one callback POST.
const DefaultCallbackTimeout = 30 * time.Second

// ErrCallbackStatus is returned when the callback endpoint answers non-2xx.
var ErrCallbackStatus = errors.New("notify: callback returned non-2xx status")

// Callback is the body POSTed after a successful platform upload.
type Callback struct {
	VideoID               string  `json:"video_id"`
	VideoURL              string  `json:"video_url"`
	Status                string  `json:"status"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	Title                 string  `json:"title"`
}

// CallbackClient posts Callback payloads.
type CallbackClient struct {
	httpClient *http.Client
}

// CallbackOption is a function that configures a CallbackClient.
type CallbackOption func(*CallbackClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) CallbackOption {
	return func(cc *CallbackClient) {
		cc.httpClient = c
	}
}

// NewCallbackClient creates a CallbackClient with a 30 second timeout.
func NewCallbackClient(opts ...CallbackOption) *CallbackClient {
	c := &CallbackClient{
		httpClient: &http.Client{Timeout: DefaultCallbackTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send POSTs payload as JSON to url.
func (c *CallbackClient) Send(ctx context.Context, url string, payload Callback) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal callback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: callback request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrCallbackStatus, resp.StatusCode)
	}
	return nil
}
