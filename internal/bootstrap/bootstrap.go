// Package bootstrap provides dependency initialization for the Video Merger API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/maauso/video-merger-api/internal/apikey"
	"github.com/maauso/video-merger-api/internal/config"
	"github.com/maauso/video-merger-api/internal/fetch"
	"github.com/maauso/video-merger-api/internal/job"
	"github.com/maauso/video-merger-api/internal/media"
	"github.com/maauso/video-merger-api/internal/notify"
	"github.com/maauso/video-merger-api/internal/platform"
	"github.com/maauso/video-merger-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	MergeService  *job.MergeService
	UploadService *job.UploadService
	Keys          *apikey.Verifier
	Events        notify.Publisher
}

// Close releases long-lived connections.
func (d *Dependencies) Close() error {
	if d.Events == nil {
		return nil
	}
	return d.Events.Close()
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize scratch storage
	scratch, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	// Initialize object storage backends
	backends, err := initBackends(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := backends.Publishing()
	if err != nil {
		return nil, fmt.Errorf("select publishing backend: %w", err)
	}
	publisher := storage.NewPublisher(store, cfg.TargetBucket, logger)
	if err := publisher.EnsureBucket(ctx); err != nil {
		logger.Warn("failed to ensure target bucket",
			slog.String("bucket", cfg.TargetBucket),
			slog.String("error", err.Error()),
		)
	}
	logger.Info("publishing configured",
		slog.String("backend", publisher.Backend()),
		slog.String("bucket", cfg.TargetBucket),
	)

	// Initialize fetcher
	fetcher := fetch.New(backends,
		fetch.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout}),
		fetch.WithMinioHost(cfg.MinioHost()),
		fetch.WithLogger(logger),
	)

	// Initialize media pipeline
	prober := media.NewGoffmpegProber()
	resampler := media.NewGoffmpegResampler()
	normalizer := media.NewNormalizer(prober, resampler, logger)
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath,
		media.WithProber(prober),
		media.WithMaxConcurrentEncodes(cfg.MaxConcurrentEncodes),
		media.WithProcessorLogger(logger),
	)

	// Initialize platform uploader
	uploader, err := initUploader(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize notifications
	events := initEvents(cfg, logger)
	callbacks := notify.NewCallbackClient()

	keys, err := initKeys(cfg, logger)
	if err != nil {
		_ = events.Close()
		return nil, err
	}

	return &Dependencies{
		MergeService:  job.NewMergeService(scratch, fetcher, normalizer, processor, publisher, events, logger),
		UploadService: job.NewUploadService(scratch, fetcher, uploader, callbacks, events, logger),
		Keys:          keys,
		Events:        events,
	}, nil
}

// initBackends creates the object storage backends that are configured.
func initBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Backends, error) {
	var backends storage.Backends

	if cfg.MinioEnabled() {
		minioStore, err := storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:   cfg.MinioEndpoint,
			AccessKey:  cfg.MinioAccessKey,
			SecretKey:  cfg.MinioSecretKey,
			Secure:     cfg.MinioSecure,
			Region:     cfg.MinioRegion,
			PresignTTL: cfg.PresignTTL,
		})
		if err != nil {
			return backends, fmt.Errorf("create MinIO storage: %w", err)
		}
		backends.Minio = minioStore
		logger.Info("MinIO storage configured",
			slog.String("endpoint", cfg.MinioEndpoint),
			slog.Bool("secure", cfg.MinioSecure),
		)
	}

	if cfg.AWSEnabled() || cfg.S3Endpoint != "" {
		s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return backends, fmt.Errorf("create S3 storage: %w", err)
		}
		backends.S3 = s3Store
		logger.Info("S3 storage configured",
			slog.String("region", cfg.AWSRegion),
			slog.String("endpoint", cfg.S3Endpoint),
		)
	}

	return backends, nil
}

// initUploader wires the credential manager and resumable transport. Missing
// client secrets are not fatal: a stored valid token still works.
func initUploader(cfg *config.Config, logger *slog.Logger) (*platform.Uploader, error) {
	oauthCfg, err := platform.LoadOAuthConfig(cfg.PlatformClientSecretsFile)
	if err != nil {
		logger.Warn("platform client secrets unavailable",
			slog.String("file", cfg.PlatformClientSecretsFile),
			slog.String("error", err.Error()),
		)
	}

	strategies, err := platform.SelectStrategies(cfg.PlatformAuthMode, platform.DetectCapabilities(), os.Stdin, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("select auth strategies: %w", err)
	}

	credentials := platform.NewCredentialManager(oauthCfg,
		platform.NewTokenFile(cfg.PlatformTokenFile),
		platform.WithStrategies(strategies...),
		platform.WithCredentialLogger(logger),
	)

	transport := platform.NewHTTPTransport(platform.WithUploadURL(cfg.PlatformUploadURL))

	return platform.NewUploader(transport, credentials,
		platform.WithChunkSize(cfg.PlatformChunkSize),
		platform.WithWatchURL(cfg.PlatformWatchURL),
		platform.WithLogger(logger),
	), nil
}

// initEvents returns the AMQP publisher when configured. A broker that is
// unreachable at startup downgrades to discarding events.
func initEvents(cfg *config.Config, logger *slog.Logger) notify.Publisher {
	if !cfg.AMQPEnabled() {
		return notify.NopPublisher{}
	}
	pub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Warn("job events disabled",
			slog.String("queue", cfg.AMQPQueue),
			slog.String("error", err.Error()),
		)
		return notify.NopPublisher{}
	}
	logger.Info("job events configured", slog.String("queue", cfg.AMQPQueue))
	return pub
}

// initKeys builds the API key verifier, generating a key and salt when they
// are not configured.
func initKeys(cfg *config.Config, logger *slog.Logger) (*apikey.Verifier, error) {
	salt := cfg.APIKeySalt
	if salt == "" {
		var err error
		if salt, err = apikey.GenerateSalt(); err != nil {
			return nil, fmt.Errorf("generate API key salt: %w", err)
		}
		logger.Warn("API_KEY_SALT not set, using a random salt for this process")
	}

	key := cfg.APIKey
	if key == "" {
		var err error
		if key, err = apikey.Generate(); err != nil {
			return nil, fmt.Errorf("generate API key: %w", err)
		}
		logger.Warn("API_KEY not set, generated a temporary key; set API_KEY to keep it across restarts",
			slog.String("api_key", key),
		)
	}

	keys, err := apikey.NewVerifier(key, salt)
	if err != nil {
		return nil, fmt.Errorf("create API key verifier: %w", err)
	}
	return keys, nil
}
