package run

import (
	"context"
	"errors"
)

// ErrRunNotFound is returned when a run cannot be found by ID.
var ErrRunNotFound = errors.New("run not found")

// Repository defines the interface for run persistence.
type Repository interface {
	// Save persists a run. An existing run with the same ID is replaced.
	Save(ctx context.Context, r *Run) error

	// FindByID retrieves a run by its unique identifier.
	// Returns ErrRunNotFound if the run does not exist.
	FindByID(ctx context.Context, id string) (*Run, error)

	// List returns all runs.
	List(ctx context.Context) ([]*Run, error)

	// Delete removes a run.
	// Returns ErrRunNotFound if the run does not exist.
	Delete(ctx context.Context, id string) error
}
