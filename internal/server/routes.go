package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// Keys verifies the X-API-Key header on protected routes.
	Keys KeyVerifier
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing. Merge and upload
// routes require an API key; without cfg.Keys they reject every request.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	keys := cfg.Keys
	if keys == nil {
		keys = denyAll{}
	}
	protected := APIKeyMiddleware(keys, logger)

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("POST /merge-videos", protected(http.HandlerFunc(h.MergeVideos)))
	mux.Handle("POST /upload/platform", protected(http.HandlerFunc(h.UploadToPlatform)))
	mux.Handle("POST /upload/youtube", protected(http.HandlerFunc(h.UploadToPlatform)))

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}

// denyAll rejects every key.
type denyAll struct{}

func (denyAll) Verify(string) bool { return false }
