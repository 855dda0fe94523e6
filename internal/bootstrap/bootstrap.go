// Package bootstrap provides dependency initialization for the talking-head API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mvidal/talkinghead-api/internal/config"
	"github.com/mvidal/talkinghead-api/internal/elevenlabs"
	"github.com/mvidal/talkinghead-api/internal/heygen"
	"github.com/mvidal/talkinghead-api/internal/pipeline"
	"github.com/mvidal/talkinghead-api/internal/poll"
	"github.com/mvidal/talkinghead-api/internal/run"
	"github.com/mvidal/talkinghead-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	RunService *run.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize HeyGen client
	avatarClient, err := heygen.NewClient(cfg.HeyGenAPIKey)
	if err != nil {
		return nil, fmt.Errorf("create HeyGen client: %w", err)
	}

	// Initialize ElevenLabs client when the text-to-speech branch is enabled.
	// Without it, runs must supply pre-recorded audio.
	var speech pipeline.Synthesizer
	if cfg.TTSEnabled() {
		ttsClient, err := elevenlabs.NewClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModelID)
		if err != nil {
			return nil, fmt.Errorf("create ElevenLabs client: %w", err)
		}
		speech = ttsClient
		logger.Info("text-to-speech enabled",
			slog.String("voice_id", cfg.ElevenLabsVoiceID),
			slog.String("model_id", cfg.ElevenLabsModelID),
		)
	} else {
		logger.Info("text-to-speech disabled, runs must supply audio")
	}

	// Initialize run repository
	repo := run.NewMemoryRepository()

	pollOpts := poll.Options{
		Interval:    time.Duration(cfg.PollIntervalSec) * time.Second,
		MaxAttempts: cfg.PollMaxAttempts,
		Logger:      logger,
	}

	// Each run gets its own orchestrator so the progress callback can
	// target that run's record.
	execute := func(ctx context.Context, in pipeline.Input, progress pipeline.ProgressFunc) (string, error) {
		orchestrator := pipeline.New(avatarClient, speech, logger,
			pipeline.WithProgress(progress),
			pipeline.WithAvatarPollOptions(pollOpts),
			pipeline.WithVideoPollInterval(time.Duration(cfg.PollIntervalSec)*time.Second),
			pipeline.WithDimensions(cfg.VideoWidth, cfg.VideoHeight),
		)
		return orchestrator.Run(ctx, in)
	}

	svc := run.NewService(
		repo,
		execute,
		logger,
		run.WithPublisher(store, avatarClient),
	)

	return &Dependencies{
		RunService: svc,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(cfg.WorkDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("work_dir", cfg.WorkDir),
	)
	return localStore, nil
}
