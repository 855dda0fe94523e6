// Package poll provides a generic primitive for waiting on asynchronous
// remote jobs. It repeatedly fetches a resource's status until a terminal
// state is observed or the attempt budget runs out.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Default polling policy for avatar-readiness checks.
const (
	// DefaultInterval is the pause between status checks.
	DefaultInterval = 5 * time.Second
	// DefaultMaxAttempts bounds a poll to roughly five minutes.
	DefaultMaxAttempts = 60
)

// Static errors for polling outcomes.
var (
	// ErrTimeout is returned when the attempt budget is exhausted
	// without the job reaching a terminal status.
	ErrTimeout = errors.New("poll: gave up waiting for terminal status")
	// ErrJobFailed is returned when the remote job reports a failure status.
	ErrJobFailed = errors.New("poll: remote job failed")
)

// Options configures a polling loop.
type Options struct {
	// Interval is the pause between attempts. Zero means DefaultInterval.
	Interval time.Duration
	// MaxAttempts caps the number of status checks. Zero means no ceiling;
	// unbounded polls run until a terminal status or context cancellation.
	MaxAttempts int
	// TolerateErrors makes per-attempt fetch errors non-fatal: they are
	// logged and the loop keeps polling. Used only for the video-render
	// status check, where transient network blips must not abort the run.
	TolerateErrors bool
	// Logger receives retry warnings when TolerateErrors is set.
	Logger *slog.Logger
}

// DefaultOptions returns the standard bounded polling policy.
func DefaultOptions() Options {
	return Options{
		Interval:    DefaultInterval,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Until polls fetch until isSuccess or isFailure holds for the reported
// status. On success the payload of the final attempt is returned. On a
// failure status the payload is returned alongside an error wrapping
// ErrJobFailed so callers can inspect it for diagnostics. When the attempt
// budget is exhausted, the error wraps ErrTimeout.
//
// The sleep between attempts is context-aware: cancelling ctx aborts the
// poll with the context's error.
func Until[T any](
	ctx context.Context,
	opts Options,
	fetch func(ctx context.Context) (status string, payload T, err error),
	isSuccess func(status string) bool,
	isFailure func(status string) bool,
) (T, error) {
	var zero T

	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for attempt := 1; opts.MaxAttempts == 0 || attempt <= opts.MaxAttempts; attempt++ {
		status, payload, err := fetch(ctx)
		switch {
		case err != nil:
			if !opts.TolerateErrors {
				return zero, err
			}
			logger.Warn("status check failed, will retry",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		case isSuccess(status):
			return payload, nil
		case isFailure(status):
			return payload, fmt.Errorf("%w: status %q", ErrJobFailed, status)
		}

		if err := wait(ctx, opts.Interval); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w after %d attempts", ErrTimeout, opts.MaxAttempts)
}

// wait sleeps for d, returning early if the context is cancelled.
func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("poll: wait interrupted: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}
