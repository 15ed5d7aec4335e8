package platform

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass classifies a failed upload for API responses.
type ErrorClass string

const (
	// ClassValidation is a metadata precondition failure; nothing was sent.
	ClassValidation ErrorClass = "validation_error"
	// ClassAuthentication is a missing, rejected or unobtainable credential.
	ClassAuthentication ErrorClass = "authentication_error"
	// ClassPlatformAPI is a non-retriable rejection by the platform.
	ClassPlatformAPI ErrorClass = "platform_api_error"
	// ClassUpload is a transfer failure, including an exhausted retry budget.
	ClassUpload ErrorClass = "upload_error"
	// ClassProcessing is a local failure before or around the transfer.
	ClassProcessing ErrorClass = "processing_error"
)

// Static errors for upload operations.
var (
	// ErrNoSessionURL is returned when the session initiation response has no Location.
	ErrNoSessionURL = errors.New("platform: no upload session URL returned")
	// ErrNoVideoID is returned when a completed upload response carries no video id.
	ErrNoVideoID = errors.New("platform: upload completed without a video id")
	// ErrNoProgress is returned when the platform acknowledges a chunk without advancing.
	ErrNoProgress = errors.New("platform: upload made no progress")
	// ErrInvalidRange is returned when a Range header cannot be parsed.
	ErrInvalidRange = errors.New("platform: invalid range header")
)

// APIError is a non-2xx, non-308 response from the upload endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform: status %d: %s", e.StatusCode, e.Body)
}

// Retriable reports whether the status is a transient server error.
func (e *APIError) Retriable() bool {
	switch e.StatusCode {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retriable()
}

// classify maps a non-retriable transfer error to an ErrorClass.
func classify(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return ClassAuthentication
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return ClassPlatformAPI
		}
	}
	return ClassUpload
}
