// Package retry provides a small reusable retry policy with pluggable
// backoff, applied uniformly to transient network operations.
package retry

import (
	"context"
	"errors"
	"time"
)

// Backoff maps a zero-based attempt number to the delay before the next
// attempt. It is only consulted between attempts, never after the last.
type Backoff func(attempt int) time.Duration

// Exponential returns a backoff of base * 2^attempt.
// With base of one second this reproduces the classic 1s, 2s, 4s ladder.
func Exponential(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base << attempt
	}
}

// Policy bundles the maximum number of attempts with a backoff function.
//
// Design decision: the policy is a value, not an interface, because the
// two knobs (attempt count, delay curve) fully describe every retry loop
// in this codebase. Callers that need per-error retry decisions can wrap
// their operation and return Permanent errors.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Backoff computes the wait between attempts. Nil means no wait.
	Backoff Backoff
}

// permanentError marks an error that should not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do stops retrying and returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op up to p.MaxAttempts times, waiting p.Backoff between
// attempts. It returns nil on the first success, the wrapped error for a
// Permanent failure, or the last error after exhaustion. Context
// cancellation interrupts both the operation (via ctx) and the backoff
// wait, returning ctx.Err().
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		if p.Backoff != nil {
			if err := sleep(ctx, p.Backoff(attempt)); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
