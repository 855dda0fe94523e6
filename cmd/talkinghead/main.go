// Package main provides a one-shot CLI that renders a talking-head video
// from a portrait photo and either a script or a pre-recorded audio file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mvidal/talkinghead-api/internal/config"
	"github.com/mvidal/talkinghead-api/internal/elevenlabs"
	"github.com/mvidal/talkinghead-api/internal/heygen"
	"github.com/mvidal/talkinghead-api/internal/pipeline"
	"github.com/mvidal/talkinghead-api/internal/poll"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win either way
	_ = godotenv.Load()

	var (
		imagePath  = flag.String("image", "", "path to the portrait photo (required)")
		scriptText = flag.String("script", "", "text to synthesize into speech")
		audioPath  = flag.String("audio", "", "path to pre-recorded speech audio")
		outPath    = flag.String("out", "", "write the rendered video to this path instead of printing its URL")
	)
	flag.Parse()

	if *imagePath == "" {
		flag.Usage()
		return fmt.Errorf("-image is required")
	}
	if (*scriptText == "") == (*audioPath == "") {
		return fmt.Errorf("exactly one of -script or -audio is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	in := pipeline.Input{
		ImageName:  filepath.Base(*imagePath),
		ScriptText: *scriptText,
	}
	if in.ImageData, err = os.ReadFile(*imagePath); err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	if *audioPath != "" {
		if in.AudioData, err = os.ReadFile(*audioPath); err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		in.AudioName = filepath.Base(*audioPath)
	}

	avatarClient, err := heygen.NewClient(cfg.HeyGenAPIKey)
	if err != nil {
		return fmt.Errorf("create HeyGen client: %w", err)
	}

	var speech pipeline.Synthesizer
	if cfg.TTSEnabled() {
		ttsClient, err := elevenlabs.NewClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModelID)
		if err != nil {
			return fmt.Errorf("create ElevenLabs client: %w", err)
		}
		speech = ttsClient
	}

	orchestrator := pipeline.New(avatarClient, speech, logger,
		pipeline.WithProgress(func(percent int, message string) {
			fmt.Printf("[%3d%%] %s\n", percent, message)
		}),
		pipeline.WithAvatarPollOptions(poll.Options{
			Interval:    time.Duration(cfg.PollIntervalSec) * time.Second,
			MaxAttempts: cfg.PollMaxAttempts,
			Logger:      logger,
		}),
		pipeline.WithVideoPollInterval(time.Duration(cfg.PollIntervalSec)*time.Second),
		pipeline.WithDimensions(cfg.VideoWidth, cfg.VideoHeight),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	videoURL, err := orchestrator.Run(ctx, in)
	if err != nil {
		return err
	}

	if *outPath != "" {
		if err := avatarClient.DownloadVideo(ctx, videoURL, *outPath); err != nil {
			return fmt.Errorf("download video: %w", err)
		}
		fmt.Printf("video saved to %s\n", *outPath)
		return nil
	}

	fmt.Println(videoURL)
	return nil
}
