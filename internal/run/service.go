package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mvidal/talkinghead-api/internal/pipeline"
	"github.com/mvidal/talkinghead-api/internal/storage"
)

// PipelineFunc executes one pipeline run, reporting progress checkpoints
// through the given callback and returning the rendered video's URL.
type PipelineFunc func(ctx context.Context, in pipeline.Input, progress pipeline.ProgressFunc) (string, error)

// VideoFetcher downloads a rendered video to a local path.
// heygen.Client satisfies it.
type VideoFetcher interface {
	DownloadVideo(ctx context.Context, videoURL, destPath string) error
}

// Service drives pipeline runs for asynchronous callers: it owns run
// bookkeeping (create, status lookups, progress updates) around the
// pipeline execution itself.
type Service struct {
	repo    Repository
	execute PipelineFunc
	logger  *slog.Logger
	store   storage.Store
	fetcher VideoFetcher
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPublisher enables republishing of rendered videos: the result is
// downloaded through fetcher into the store's workspace and pushed to the
// store's publish target, replacing the provider's expiring URL.
func WithPublisher(store storage.Store, fetcher VideoFetcher) ServiceOption {
	return func(s *Service) {
		s.store = store
		s.fetcher = fetcher
	}
}

// NewService creates a run Service.
func NewService(repo Repository, execute PipelineFunc, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:    repo,
		execute: execute,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create accepts a new run in queued state.
func (s *Service) Create(ctx context.Context) (*Run, error) {
	r := New()

	s.logger.Info("run accepted", slog.String("run_id", r.ID))

	if err := s.repo.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	return r, nil
}

// Get retrieves a run by ID.
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns all runs.
func (s *Service) List(ctx context.Context) ([]*Run, error) {
	return s.repo.List(ctx)
}

// Execute drives the pipeline for an accepted run, streaming progress
// into the repository. When publish is set and a publisher is configured,
// the rendered video is republished and the run records the new URL.
// The run ends completed or failed; the pipeline's failure message is
// recorded verbatim.
func (s *Service) Execute(ctx context.Context, runID string, in pipeline.Input, publish bool) error {
	r, err := s.repo.FindByID(ctx, runID)
	if err != nil {
		return err
	}

	if err := r.Start(); err != nil {
		return fmt.Errorf("start run %s: %w", runID, err)
	}
	if err := s.repo.Save(ctx, r); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	progress := func(percent int, message string) {
		r.SetProgress(percent, message)
		if err := s.repo.Save(ctx, r); err != nil {
			s.logger.Warn("failed to save progress",
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
			)
		}
	}

	resultURL, err := s.execute(ctx, in, progress)
	if err != nil {
		s.logger.Error("run failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		_ = r.Fail(err.Error())
		if saveErr := s.repo.Save(ctx, r); saveErr != nil {
			s.logger.Error("failed to save failed run",
				slog.String("run_id", runID),
				slog.String("error", saveErr.Error()),
			)
		}
		return err
	}

	if publish {
		resultURL = s.publishResult(ctx, runID, resultURL)
	}

	_ = r.Complete(resultURL)
	if err := s.repo.Save(ctx, r); err != nil {
		return fmt.Errorf("save completed run: %w", err)
	}

	s.logger.Info("run completed",
		slog.String("run_id", runID),
		slog.String("result_url", resultURL),
	)
	return nil
}

// publishResult downloads the rendered video and republishes it to owned
// storage. Publishing is best-effort: on any failure the provider's URL
// is kept and the run still completes.
func (s *Service) publishResult(ctx context.Context, runID, videoURL string) string {
	if s.store == nil || s.fetcher == nil {
		return videoURL
	}

	name := runID + ".mp4"
	local := s.store.WorkspacePath(name)

	if err := s.fetcher.DownloadVideo(ctx, videoURL, local); err != nil {
		s.logger.Warn("failed to download rendered video, keeping provider URL",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		return videoURL
	}

	f, err := s.store.OpenArtifact(ctx, local)
	if err != nil {
		s.logger.Warn("failed to open downloaded video, keeping provider URL",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		return videoURL
	}
	defer func() { _ = f.Close() }()

	published, err := s.store.Publish(ctx, name, f)

	if cleanupErr := s.store.RemoveArtifacts(ctx, []string{local}); cleanupErr != nil {
		s.logger.Warn("failed to clean up workspace artifact",
			slog.String("run_id", runID),
			slog.String("error", cleanupErr.Error()),
		)
	}

	if err != nil {
		if !errors.Is(err, storage.ErrPublishNotConfigured) {
			s.logger.Warn("failed to publish rendered video, keeping provider URL",
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
			)
		}
		return videoURL
	}

	s.logger.Info("rendered video republished",
		slog.String("run_id", runID),
		slog.String("url", published),
	)
	return published
}
