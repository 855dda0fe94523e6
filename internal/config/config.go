// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrHeyGenAPIKeyRequired is returned when HEYGEN_API_KEY is not set.
	ErrHeyGenAPIKeyRequired = errors.New("config: HEYGEN_API_KEY is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// HeyGen settings
	HeyGenAPIKey string `env:"HEYGEN_API_KEY, required" json:"-"` // Masked in JSON

	// ElevenLabs settings. The API key is optional: without it the
	// text-to-speech branch is disabled and callers must supply audio.
	ElevenLabsAPIKey  string `env:"ELEVENLABS_API_KEY" json:"-"` // Masked in JSON
	ElevenLabsVoiceID string `env:"ELEVENLABS_VOICE_ID, default=cgSgspJ2msm6clMCkdW9" json:"elevenlabs_voice_id"`
	ElevenLabsModelID string `env:"ELEVENLABS_MODEL_ID, default=eleven_multilingual_v2" json:"elevenlabs_model_id"`

	// Polling settings for remote avatar and video jobs
	PollIntervalSec int `env:"POLL_INTERVAL_SEC, default=5" json:"poll_interval_sec"`
	PollMaxAttempts int `env:"POLL_MAX_ATTEMPTS, default=60" json:"poll_max_attempts"`

	// Video output settings
	VideoWidth  int `env:"VIDEO_WIDTH, default=720" json:"video_width"`
	VideoHeight int `env:"VIDEO_HEIGHT, default=1280" json:"video_height"`

	// Storage settings
	WorkDir string `env:"WORK_DIR, default=/tmp/talkinghead" json:"work_dir"`

	// Optional S3 settings for republishing rendered videos
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// TTSEnabled returns true if the text-to-speech branch is available.
func (c *Config) TTSEnabled() bool {
	return c.ElevenLabsAPIKey != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "HEYGEN_API_KEY") {
			return nil, ErrHeyGenAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.HeyGenAPIKey == "" {
		return ErrHeyGenAPIKeyRequired
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
		"Config{Port: %d, VoiceID: %s, ModelID: %s, PollIntervalSec: %d, PollMaxAttempts: %d, VideoWidth: %d, VideoHeight: %d, WorkDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.ElevenLabsVoiceID,
		c.ElevenLabsModelID,
		c.PollIntervalSec,
		c.PollMaxAttempts,
		c.VideoWidth,
		c.VideoHeight,
		c.WorkDir,
		c.S3Bucket,
		c.S3Region,
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
