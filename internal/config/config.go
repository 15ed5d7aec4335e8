// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidAuthMode is returned when PLATFORM_AUTH_MODE is not a known mode.
	ErrInvalidAuthMode = errors.New("config: PLATFORM_AUTH_MODE must be one of auto, browser, device, manual")
	// ErrInvalidChunkSize is returned when PLATFORM_CHUNK_SIZE is not a multiple of 256 KiB.
	ErrInvalidChunkSize = errors.New("config: PLATFORM_CHUNK_SIZE must be 0 or a positive multiple of 262144")
	// ErrInvalidEncodeLimit is returned when MAX_CONCURRENT_ENCODES is not positive.
	ErrInvalidEncodeLimit = errors.New("config: MAX_CONCURRENT_ENCODES must be positive")
)

// chunkAlignment is the granularity required by resumable upload endpoints.
const chunkAlignment = 256 << 10

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8000" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// API key settings
	APIKey     string `env:"API_KEY" json:"-"`      // Masked in JSON
	APIKeySalt string `env:"API_KEY_SALT" json:"-"` // Masked in JSON

	// Scratch storage
	TempDir string `env:"TEMP_DIR, default=/tmp/video-merger" json:"temp_dir"`

	// MinIO settings
	MinioEndpoint  string `env:"MINIO_ENDPOINT" json:"minio_endpoint,omitempty"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY" json:"-"` // Masked in JSON
	MinioSecretKey string `env:"MINIO_SECRET_KEY" json:"-"` // Masked in JSON
	MinioSecure    bool   `env:"MINIO_SECURE, default=false" json:"minio_secure"`
	MinioRegion    string `env:"MINIO_REGION, default=us-east-1" json:"minio_region"`

	// Bucket settings
	SourceBucket string        `env:"SOURCE_BUCKET, default=source-videos" json:"source_bucket"`
	TargetBucket string        `env:"TARGET_BUCKET, default=merged-videos" json:"target_bucket"`
	PresignTTL   time.Duration `env:"PRESIGN_TTL, default=168h" json:"presign_ttl"`

	// Optional AWS S3 settings
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	AWSRegion          string `env:"AWS_REGION, default=us-east-1" json:"aws_region"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`

	// Processing settings. FFmpegPath is used by the concat encoder only;
	// probing and resampling resolve ffmpeg and ffprobe from PATH.
	FetchTimeout         time.Duration `env:"FETCH_TIMEOUT, default=10m" json:"fetch_timeout"`
	FFmpegPath           string        `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	MaxConcurrentEncodes int           `env:"MAX_CONCURRENT_ENCODES, default=2" json:"max_concurrent_encodes"`

	// Video platform settings
	PlatformClientSecretsFile string `env:"PLATFORM_CLIENT_SECRETS_FILE, default=client_secrets.json" json:"platform_client_secrets_file"`
	PlatformTokenFile         string `env:"PLATFORM_TOKEN_FILE, default=token.json" json:"platform_token_file"`
	PlatformAuthMode          string `env:"PLATFORM_AUTH_MODE, default=auto" json:"platform_auth_mode"`
	PlatformUploadURL         string `env:"PLATFORM_UPLOAD_URL, default=https://www.googleapis.com/upload/youtube/v3/videos" json:"platform_upload_url"`
	PlatformWatchURL          string `env:"PLATFORM_WATCH_URL, default=https://youtube.com/watch?v=" json:"platform_watch_url"`
	PlatformChunkSize         int64  `env:"PLATFORM_CHUNK_SIZE, default=0" json:"platform_chunk_size"`

	// Optional job event settings
	AMQPURL   string `env:"AMQP_URL" json:"-"` // Masked in JSON, may carry credentials
	AMQPQueue string `env:"AMQP_QUEUE, default=video_jobs" json:"amqp_queue"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// MinioEnabled returns true if a MinIO endpoint and credentials are provided.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

// AWSEnabled returns true if static AWS credentials are provided.
func (c *Config) AWSEnabled() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
}

// AMQPEnabled returns true if job events should be published to RabbitMQ.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// MinioHost returns the hostname part of MINIO_ENDPOINT without the port.
// MINIO_ENDPOINT may be given as "host:port" or as a full URL.
func (c *Config) MinioHost() string {
	if c.MinioEndpoint == "" {
		return ""
	}
	endpoint := c.MinioEndpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Load reads an optional .env file and then configuration from environment
// variables using go-envconfig.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are consistent.
func (c *Config) Validate() error {
	switch strings.ToLower(c.PlatformAuthMode) {
	case "auto", "browser", "device", "manual":
	default:
		return ErrInvalidAuthMode
	}
	if c.PlatformChunkSize < 0 || c.PlatformChunkSize%chunkAlignment != 0 {
		return ErrInvalidChunkSize
	}
	if c.MaxConcurrentEncodes <= 0 {
		return ErrInvalidEncodeLimit
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, MinioEndpoint: %s, SourceBucket: %s, TargetBucket: %s, AWSRegion: %s, S3Endpoint: %s, MaxConcurrentEncodes: %d, PlatformAuthMode: %s, AMQPEnabled: %t, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.MinioEndpoint,
		c.SourceBucket,
		c.TargetBucket,
		c.AWSRegion,
		c.S3Endpoint,
		c.MaxConcurrentEncodes,
		c.PlatformAuthMode,
		c.AMQPEnabled(),
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
