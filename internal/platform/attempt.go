package platform

import (
	"errors"
	"time"
)

// State is the lifecycle state of one resumable upload session.
type State string

const (
	// StateNotStarted indicates no request has been sent yet.
	StateNotStarted State = "NOT_STARTED"
	// StateInProgress indicates the session is open and chunks are being sent.
	StateInProgress State = "IN_PROGRESS"
	// StateSucceeded indicates the platform returned a video id.
	StateSucceeded State = "SUCCEEDED"
	// StateFailed indicates the session ended without a video id.
	StateFailed State = "FAILED"
)

// DefaultMaxRetries bounds transient failures per upload.
const DefaultMaxRetries = 3

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// IN_PROGRESS is re-entered as chunks are sent.
var validTransitions = map[State][]State{
	StateNotStarted: {StateInProgress, StateFailed},
	StateInProgress: {StateInProgress, StateSucceeded, StateFailed},
	StateSucceeded:  {},
	StateFailed:     {},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Attempt tracks one resumable upload session.
// It is owned by a single Upload call and is not safe for concurrent use.
type Attempt struct {
	State       State
	SessionURL  string
	Cursor      int64 // next byte to send
	Total       int64
	RetryCount  int
	MaxRetries  int
	LastError   error
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewAttempt creates an attempt in NOT_STARTED with the given retry budget.
func NewAttempt(maxRetries int) *Attempt {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Attempt{State: StateNotStarted, MaxRetries: maxRetries}
}

func (a *Attempt) transitionTo(state State) error {
	if !canTransition(a.State, state) {
		return ErrInvalidTransition
	}
	a.State = state
	switch state {
	case StateInProgress:
		if a.StartedAt.IsZero() {
			a.StartedAt = time.Now()
		}
	case StateSucceeded, StateFailed:
		a.CompletedAt = time.Now()
	}
	return nil
}

// Start opens the attempt for a file of total bytes.
func (a *Attempt) Start(total int64) error {
	if err := a.transitionTo(StateInProgress); err != nil {
		return err
	}
	a.Total = total
	return nil
}

// Advance moves the cursor to offset. A cursor that does not move forward
// returns ErrNoProgress.
func (a *Attempt) Advance(offset int64) error {
	if err := a.transitionTo(StateInProgress); err != nil {
		return err
	}
	if offset <= a.Cursor {
		return ErrNoProgress
	}
	a.Cursor = offset
	return nil
}

// Resync sets the cursor to the offset reported by the platform, which may
// be behind the local cursor.
func (a *Attempt) Resync(offset int64) {
	if a.State == StateInProgress && offset >= 0 && offset <= a.Total {
		a.Cursor = offset
	}
}

// RecordRetry counts a transient failure and reports whether the retry
// budget is exhausted.
func (a *Attempt) RecordRetry(err error) bool {
	a.LastError = err
	if a.RetryCount < a.MaxRetries {
		a.RetryCount++
	}
	return a.RetryCount >= a.MaxRetries
}

// Succeed marks the attempt as completed.
func (a *Attempt) Succeed() error {
	if err := a.transitionTo(StateSucceeded); err != nil {
		return err
	}
	a.Cursor = a.Total
	return nil
}

// Fail marks the attempt as failed with err.
func (a *Attempt) Fail(err error) error {
	a.LastError = err
	return a.transitionTo(StateFailed)
}

// Progress returns the fraction of bytes acknowledged, 0..1.
func (a *Attempt) Progress() float64 {
	if a.Total <= 0 {
		return 0
	}
	return float64(a.Cursor) / float64(a.Total)
}
