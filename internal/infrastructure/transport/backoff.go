package transport

import (
	"context"
	"time"
)

// RetryLinear calls fn up to attempts times, sleeping attempt*base
// between tries, and returns the first success or the last error. It
// compensates for read-after-write lag in the backend; it is a workaround
// for an external consistency gap, not a correctness guarantee. The sleep
// is context-cancellable so abandoned retries never leak a timer.
func RetryLinear[T any](ctx context.Context, attempts int, base time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, time.Duration(attempt)*base); err != nil {
				return zero, err
			}
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

// Poll calls fn until it reports a match or the attempt budget is
// exhausted. The budget is mandatory; a poll can never block forever.
// When the budget runs out without a match it returns found=false and a
// nil error.
func Poll[T any](ctx context.Context, attempts int, interval time.Duration, fn func(ctx context.Context) (T, bool, error)) (T, bool, error) {
	var zero T

	for attempt := 1; attempt <= attempts; attempt++ {
		result, found, err := fn(ctx)
		if err == nil && found {
			return result, true, nil
		}
		// Individual poll errors are absorbed; the budget keeps counting
		if attempt < attempts {
			if err := sleep(ctx, interval); err != nil {
				return zero, false, err
			}
		}
	}
	return zero, false, nil
}

// sleep waits for d or until ctx is done, whichever comes first
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
