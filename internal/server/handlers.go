package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/video-merger-api/internal/fetch"
	"github.com/maauso/video-merger-api/internal/job"
	"github.com/maauso/video-merger-api/internal/media"
	"github.com/maauso/video-merger-api/internal/platform"
	"github.com/maauso/video-merger-api/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Merger runs a merge request.
type Merger interface {
	Merge(ctx context.Context, in job.MergeInput) (*job.MergeOutput, error)
}

// PlatformUploader runs a platform upload request.
type PlatformUploader interface {
	Upload(ctx context.Context, in job.UploadInput) job.UploadOutput
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	merger    Merger
	uploader  PlatformUploader
	validator *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(merger Merger, uploader PlatformUploader, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		merger:    merger,
		uploader:  uploader,
		validator: newValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

// Root handles GET / requests.
func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{Message: "Video Merger API is running"})
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// MergeVideos handles POST /merge-videos requests. The merge runs to
// completion even if the client disconnects.
func (h *Handlers) MergeVideos(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.merger.Merge(context.WithoutCancel(r.Context()), job.MergeInput{
		VideoURLs:      req.VideoURLs,
		OutputFilename: req.OutputFilename,
	})
	if err != nil {
		h.writeMergeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MergeResponse{
		MergedVideoURL:        out.VideoURL,
		Filename:              out.Filename,
		ProcessingTimeSeconds: out.ProcessingTime.Seconds(),
		Warnings:              out.Warnings,
	})
}

// UploadToPlatform handles POST /upload/platform requests. Metadata
// validation failures are 400; every other outcome is a 200 with a
// success flag.
func (h *Handlers) UploadToPlatform(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !h.decode(w, r, &req) {
		return
	}

	out := h.uploader.Upload(context.WithoutCancel(r.Context()), job.UploadInput{
		VideoURL: req.VideoURL,
		Metadata: platform.Metadata{
			Title:         req.Title,
			Description:   req.Description,
			Tags:          req.Tags,
			CategoryID:    req.CategoryID,
			PrivacyStatus: req.PrivacyStatus,
		},
		CallbackURL: req.CallbackURL,
	})

	if out.ErrorClass == platform.ClassValidation {
		writeError(w, http.StatusBadRequest, out.Message, "VALIDATION_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success:  out.Success,
		VideoID:  out.VideoID,
		VideoURL: out.VideoURL,
		Status:   out.Status,
		Message:  out.Message,
		Error:    string(out.ErrorClass),
	})
}

// decode reads and validates a JSON body into dst, writing a 400 on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, validationDetail(err), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) writeMergeError(w http.ResponseWriter, err error) {
	var (
		dlErr    *fetch.DownloadError
		mergeErr *media.MergeError
		pubErr   *storage.PublishError
	)

	switch {
	case errors.Is(err, job.ErrTooFewSources), errors.Is(err, job.ErrInvalidFilename):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.As(err, &dlErr):
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Failed to download video from %s: %v", dlErr.URL, dlErr.Err), "DOWNLOAD_FAILED")
	case errors.As(err, &mergeErr):
		writeError(w, http.StatusInternalServerError, "Failed to merge videos: "+err.Error(), "MERGE_FAILED")
	case errors.As(err, &pubErr):
		writeError(w, http.StatusInternalServerError, "Failed to upload merged video: "+err.Error(), "PUBLISH_FAILED")
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error(), "INTERNAL_ERROR")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, detail, code string) {
	writeJSON(w, status, ErrorResponse{
		Detail: detail,
		Code:   code,
	})
}
