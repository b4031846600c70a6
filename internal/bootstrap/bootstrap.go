// Package bootstrap provides dependency initialization for the video
// pipeline API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/faunalens/faunalens-api/internal/config"
	"github.com/faunalens/faunalens-api/internal/job"
	"github.com/faunalens/faunalens-api/internal/media"
	"github.com/faunalens/faunalens-api/internal/pipeline"
	"github.com/faunalens/faunalens-api/internal/progress"
	"github.com/faunalens/faunalens-api/internal/speech"
	"github.com/faunalens/faunalens-api/internal/storage"
	"github.com/faunalens/faunalens-api/internal/vision"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Store        job.Store
	Files        storage.Storage
	Orchestrator *pipeline.Orchestrator
	Hub          *progress.Hub

	closers []func() error
}

// Close releases resources held by the dependencies.
func (d *Dependencies) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	files, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Files = files

	store, err := initStore(cfg, logger, deps)
	if err != nil {
		return nil, err
	}
	deps.Store = store

	recognizer, err := speech.NewHTTPRecognizer(cfg.SpeechEndpoint, speech.WithAPIKey(cfg.InferenceKey))
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	detector, err := vision.NewHTTPDetector(cfg.VisionEndpoint, vision.WithAPIKey(cfg.InferenceKey))
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}

	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath)

	languageDetector := speech.NewDetector(recognizer, processor, cfg.CandidateLanguages, logger)
	transcriber := speech.NewTranscriber(recognizer, processor, processor, cfg.ChunkSec, logger)
	scanner := vision.NewScanner(processor, detector, cfg.FrameSamples, cfg.MinConfidence, logger)

	deps.Hub = progress.NewHub()
	deps.Orchestrator = pipeline.New(
		store,
		files,
		processor,
		languageDetector,
		transcriber,
		scanner,
		deps.Hub,
		pipeline.Options{
			DownscaleWidth:   cfg.DownscaleWidth,
			DownscaleHeight:  cfg.DownscaleHeight,
			DownscaleTimeout: time.Duration(cfg.DownscaleTimeoutSec) * time.Second,
			AudioTimeout:     time.Duration(cfg.AudioTimeoutSec) * time.Second,
			DefaultLanguage:  cfg.DefaultLanguage,
		},
		logger,
	)

	return deps, nil
}

// initStorage creates the appropriate file storage backend based on
// configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.DataDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 artifact delivery configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("data_dir", cfg.DataDir),
	)
	return localStore, nil
}

// initStore creates the job store backend selected by configuration.
func initStore(cfg *config.Config, logger *slog.Logger, deps *Dependencies) (job.Store, error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "memory":
		logger.Info("using in-memory job store")
		return job.NewMemoryStore(), nil
	case "json":
		dir := filepath.Join(cfg.DataDir, "jobs")
		store, err := job.NewJSONStore(dir)
		if err != nil {
			return nil, fmt.Errorf("create JSON job store: %w", err)
		}
		logger.Info("using JSON job store", slog.String("dir", dir))
		return store, nil
	case "sqlite":
		dbPath := filepath.Join(cfg.DataDir, "jobs.db")
		store, err := job.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("create SQLite job store: %w", err)
		}
		deps.closers = append(deps.closers, store.Close)
		logger.Info("using SQLite job store", slog.String("path", dbPath))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
