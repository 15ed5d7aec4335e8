// Package notify tells the outside world about finished jobs: an optional
// HTTP callback per upload request and job events on a message queue.
package notify

import (
	"context"
	"time"
)

// EventType names a job event.
type EventType string

// Job event types.
const (
	EventMergeCompleted  EventType = "merge.completed"
	EventMergeFailed     EventType = "merge.failed"
	EventUploadCompleted EventType = "upload.completed"
	EventUploadFailed    EventType = "upload.failed"
)

// Event describes a finished merge or upload.
type Event struct {
	Type                  EventType `json:"type"`
	JobID                 string    `json:"job_id"`
	OccurredAt            time.Time `json:"occurred_at"`
	Filename              string    `json:"filename,omitempty"`
	URL                   string    `json:"url,omitempty"`
	VideoID               string    `json:"video_id,omitempty"`
	Clips                 int       `json:"clips,omitempty"`
	Warnings              []string  `json:"warnings,omitempty"`
	Error                 string    `json:"error,omitempty"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
}

// Publisher delivers job events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }
