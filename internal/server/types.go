// Package server provides the HTTP server for the Video Merger API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// MergeRequest is the HTTP request body for merging videos.
type MergeRequest struct {
	// VideoURLs are the clips to merge, in output order.
	VideoURLs []string `json:"video_urls" validate:"required,min=2,dive,required,http_url"`
	// OutputFilename is the optional object name of the merged video.
	OutputFilename string `json:"output_filename" validate:"max=255"`
}

// MergeResponse is the HTTP response after a successful merge.
type MergeResponse struct {
	// MergedVideoURL is the retrieval URL of the published video.
	MergedVideoURL string `json:"merged_video_url"`
	// Filename is the object name of the published video.
	Filename string `json:"filename"`
	// ProcessingTimeSeconds is the wall time of the whole merge.
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	// Warnings lists clips that were merged without normalization.
	Warnings []string `json:"warnings,omitempty"`
}

// UploadRequest is the HTTP request body for pushing a video to the platform.
type UploadRequest struct {
	VideoURL      string   `json:"video_url" validate:"required,http_url"`
	Title         string   `json:"title" validate:"required,max=100"`
	Description   string   `json:"description" validate:"max=5000"`
	Tags          []string `json:"tags" validate:"tagslen=500"`
	CategoryID    string   `json:"categoryId" validate:"omitempty,numeric"`
	PrivacyStatus string   `json:"privacyStatus" validate:"omitempty,oneof=public unlisted private"`
	CallbackURL   string   `json:"callback_url" validate:"omitempty,http_url"`
}

// UploadResponse is the HTTP response of a platform upload. Upload failures
// are reported with Success false and a 200 status.
type UploadResponse struct {
	Success  bool   `json:"success"`
	VideoID  string `json:"video_id,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	// Error is the error class of a failed upload.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Detail is the human-readable error message.
	Detail string `json:"detail"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// RootResponse is the HTTP response for the root endpoint.
type RootResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Timestamp is the current server time in RFC 3339.
	Timestamp string `json:"timestamp"`
}
