package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrPublishNotConfigured is returned when Publish is called on a store
// without a publish target.
var ErrPublishNotConfigured = errors.New("storage: no publish target configured")

// Compile-time check that LocalStore implements Store.
var _ Store = (*LocalStore)(nil)

// LocalStore implements Store on local disk. It manages a workspace
// directory for downloaded videos and does not support publishing unless
// wrapped by S3Store.
type LocalStore struct {
	workDir string
}

// NewLocalStore creates a LocalStore rooted at workDir, creating the
// directory if needed. An empty workDir defaults to a subdirectory of the
// system temp dir.
func NewLocalStore(workDir string) (*LocalStore, error) {
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "talkinghead")
	}

	if err := os.MkdirAll(workDir, 0750); err != nil {
		return nil, fmt.Errorf("create workspace directory: %w", err)
	}

	return &LocalStore{workDir: workDir}, nil
}

// WorkDir returns the workspace directory path.
func (s *LocalStore) WorkDir() string {
	return s.workDir
}

// WorkspacePath returns the workspace path for a named artifact.
// Only the base of name is used, so callers cannot escape the workspace.
func (s *LocalStore) WorkspacePath(name string) string {
	return filepath.Join(s.workDir, filepath.Base(name))
}

// OpenArtifact opens a workspace file for reading.
func (s *LocalStore) OpenArtifact(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

// RemoveArtifacts deletes workspace files, continuing past individual
// failures and returning the first error encountered.
func (s *LocalStore) RemoveArtifacts(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove artifact %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Publish is not supported by LocalStore.
func (s *LocalStore) Publish(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrPublishNotConfigured
}
