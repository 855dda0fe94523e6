package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scripted returns a fetch func that replays the given statuses in order.
// Fetch calls beyond the script fail the test.
func scripted(t *testing.T, statuses []string, calls *int) func(context.Context) (string, string, error) {
	t.Helper()
	return func(context.Context) (string, string, error) {
		if *calls >= len(statuses) {
			t.Fatalf("fetch called %d times, script has %d entries", *calls+1, len(statuses))
		}
		status := statuses[*calls]
		*calls++
		return status, "payload-" + status, nil
	}
}

func isCompleted(s string) bool { return s == "completed" }
func isFailed(s string) bool    { return s == "failed" }

func fastOptions(maxAttempts int) Options {
	return Options{Interval: time.Millisecond, MaxAttempts: maxAttempts}
}

func TestUntil_SuccessOnThirdAttempt(t *testing.T) {
	calls := 0
	fetch := scripted(t, []string{"pending", "pending", "completed"}, &calls)

	payload, err := Until(context.Background(), fastOptions(10), fetch, isCompleted, isFailed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != "payload-completed" {
		t.Errorf("payload = %q, want %q", payload, "payload-completed")
	}
	if calls != 3 {
		t.Errorf("fetch called %d times, want 3", calls)
	}
}

func TestUntil_TimeoutAfterExactlyMaxAttempts(t *testing.T) {
	const maxAttempts = 5
	statuses := make([]string, maxAttempts)
	for i := range statuses {
		statuses[i] = "pending"
	}
	calls := 0
	fetch := scripted(t, statuses, &calls)

	_, err := Until(context.Background(), fastOptions(maxAttempts), fetch, isCompleted, isFailed)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if calls != maxAttempts {
		t.Errorf("fetch called %d times, want %d", calls, maxAttempts)
	}
}

func TestUntil_FailureStopsImmediately(t *testing.T) {
	calls := 0
	fetch := scripted(t, []string{"pending", "failed"}, &calls)

	payload, err := Until(context.Background(), fastOptions(10), fetch, isCompleted, isFailed)
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times, want 2", calls)
	}
	// The failing attempt's payload is kept for diagnostics.
	if payload != "payload-failed" {
		t.Errorf("payload = %q, want %q", payload, "payload-failed")
	}
}

func TestUntil_FetchErrorPropagatesByDefault(t *testing.T) {
	fetchErr := errors.New("connection reset")
	calls := 0
	fetch := func(context.Context) (string, string, error) {
		calls++
		return "", "", fetchErr
	}

	_, err := Until(context.Background(), fastOptions(10), fetch, isCompleted, isFailed)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestUntil_TolerateErrorsRetries(t *testing.T) {
	calls := 0
	fetch := func(context.Context) (string, string, error) {
		calls++
		switch calls {
		case 1, 2:
			return "", "", errors.New("network blip")
		default:
			return "completed", "done", nil
		}
	}

	opts := fastOptions(10)
	opts.TolerateErrors = true
	payload, err := Until(context.Background(), opts, fetch, isCompleted, isFailed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != "done" {
		t.Errorf("payload = %q, want %q", payload, "done")
	}
	if calls != 3 {
		t.Errorf("fetch called %d times, want 3", calls)
	}
}

func TestUntil_UnboundedStopsOnTerminal(t *testing.T) {
	calls := 0
	fetch := func(context.Context) (string, string, error) {
		calls++
		if calls < 70 {
			return "processing", "", nil
		}
		return "completed", "done", nil
	}

	opts := Options{Interval: time.Microsecond, MaxAttempts: 0}
	payload, err := Until(context.Background(), opts, fetch, isCompleted, isFailed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != "done" {
		t.Errorf("payload = %q, want %q", payload, "done")
	}
	if calls != 70 {
		t.Errorf("fetch called %d times, want 70", calls)
	}
}

func TestUntil_ContextCancellationAbortsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(context.Context) (string, string, error) {
		cancel()
		return "pending", "", nil
	}

	opts := Options{Interval: time.Minute, MaxAttempts: 10}
	_, err := Until(ctx, opts, fetch, isCompleted, isFailed)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Interval != DefaultInterval {
		t.Errorf("Interval = %v, want %v", opts.Interval, DefaultInterval)
	}
	if opts.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", opts.MaxAttempts, DefaultMaxAttempts)
	}
	if opts.TolerateErrors {
		t.Error("TolerateErrors should default to false")
	}
}
