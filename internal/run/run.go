// Package run provides the PipelineRun aggregate for tracking one
// end-to-end talking-head generation, the repository port for looking
// runs up, and the service that drives the pipeline for async callers.
package run

import (
	"errors"
	"sync"
	"time"

	"github.com/mvidal/talkinghead-api/internal/run/id"
)

// Status represents the current state of a Run.
type Status string

const (
	// StatusQueued indicates the run was accepted but not yet started.
	StatusQueued Status = "queued"
	// StatusProcessing indicates the pipeline is executing.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the run finished with a result URL.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the run aborted with an error.
	StatusFailed Status = "failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("run: invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Run represents one pipeline execution. It is ephemeral: runs live in
// memory for the lifetime of the process only.
type Run struct {
	mu sync.RWMutex

	// ID is the unique identifier for this run.
	ID string
	// Status is the run's current state.
	Status Status
	// Stage is a human-readable description of the current pipeline stage.
	Stage string
	// Progress is the percentage of completion (0-100), a UX estimate.
	Progress int
	// Error contains the failure message if the run failed.
	Error string
	// ResultURL is the rendered video's location once completed.
	ResultURL string
	// CreatedAt is when the run was accepted.
	CreatedAt time.Time
	// UpdatedAt is when the run was last updated.
	UpdatedAt time.Time
	// StartedAt is when pipeline execution started.
	StartedAt time.Time
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// New creates a Run with a generated ID in queued state.
func New() *Run {
	now := time.Now()
	return &Run{
		ID:        id.Generate(),
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID creates a Run with the given ID, for tests.
func NewWithID(runID string) *Run {
	now := time.Now()
	return &Run{
		ID:        runID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the run status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Run) TransitionTo(status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.Status, status) {
		return ErrInvalidTransition
	}

	r.Status = status
	r.UpdatedAt = time.Now()

	switch status {
	case StatusProcessing:
		r.StartedAt = r.UpdatedAt
	case StatusCompleted, StatusFailed:
		r.CompletedAt = r.UpdatedAt
	}

	return nil
}

// Start transitions the run from queued to processing.
func (r *Run) Start() error {
	return r.TransitionTo(StatusProcessing)
}

// Complete records the result URL and transitions the run to completed.
func (r *Run) Complete(resultURL string) error {
	r.mu.Lock()
	r.ResultURL = resultURL
	r.mu.Unlock()
	return r.TransitionTo(StatusCompleted)
}

// Fail records the error message and transitions the run to failed.
func (r *Run) Fail(errMsg string) error {
	r.mu.Lock()
	r.Error = errMsg
	r.mu.Unlock()
	return r.TransitionTo(StatusFailed)
}

// SetProgress records a progress checkpoint and the stage it belongs to.
// Progress is clamped to 0-100 and never moves backward within a run.
func (r *Run) SetProgress(percent int, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent >= r.Progress {
		r.Progress = percent
	}
	if stage != "" {
		r.Stage = stage
	}
	r.UpdatedAt = time.Now()
}

// SetResultURL replaces the recorded result location, e.g. after the
// rendered video has been republished to owned storage.
func (r *Run) SetResultURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResultURL = url
	r.UpdatedAt = time.Now()
}

// GetStatus returns the current run status (thread-safe).
func (r *Run) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// IsTerminal returns true if the run is in a terminal state.
func (r *Run) IsTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Clone creates a deep copy of the run for safe reads.
func (r *Run) Clone() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return &Run{
		ID:          r.ID,
		Status:      r.Status,
		Stage:       r.Stage,
		Progress:    r.Progress,
		Error:       r.Error,
		ResultURL:   r.ResultURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}
