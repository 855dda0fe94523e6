// Package storage handles rendered-video artifacts: a local workspace for
// downloaded results and an optional publish step that republishes a video
// to owned storage instead of relying on the provider's expiring URL.
package storage

import (
	"context"
	"io"
)

// Store is the port for artifact handling. LocalStore covers the
// workspace operations; S3Store adds a real Publish.
type Store interface {
	// WorkspacePath returns the path under the store's workspace where a
	// named artifact should be written.
	WorkspacePath(name string) string

	// OpenArtifact opens a previously written artifact for reading.
	// The caller closes the returned ReadCloser.
	OpenArtifact(ctx context.Context, path string) (io.ReadCloser, error)

	// RemoveArtifacts deletes workspace files, continuing past individual
	// failures and returning the first error encountered.
	RemoveArtifacts(ctx context.Context, paths []string) error

	// Publish uploads an artifact to owned storage and returns its public
	// URL. Returns ErrPublishNotConfigured when no publish target exists.
	Publish(ctx context.Context, key string, data io.Reader) (url string, err error)
}
