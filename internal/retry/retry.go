// Package retry holds the one backoff implementation shared by every
// reconnect and replay site in the module.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"tableorder/internal/apperr"
)

// maxDelay caps exponential growth so late attempts don't wait forever.
const maxDelay = 30 * time.Second

// Backoff returns the exponential delay for the given zero-based attempt,
// capped at maxDelay. No jitter is applied; callers that need it add their own.
func Backoff(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}

// WithBackoff runs op up to maxAttempts times with exponential backoff and
// random jitter between attempts. An error classified non-retryable aborts
// immediately without consuming further attempts.
func WithBackoff(ctx context.Context, op func(context.Context) error, maxAttempts int, base time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !apperr.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}
		if err := sleep(ctx, jitter(Backoff(attempt, base))); err != nil {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
}

// WithCondition is like WithBackoff but keyed on a caller-supplied predicate
// instead of the static taxonomy, with linear rather than exponential delays.
func WithCondition(ctx context.Context, op func(context.Context) error, retryable func(error) bool, maxAttempts int, base time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}
		if err := sleep(ctx, base*time.Duration(attempt+1)); err != nil {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
}

// jitter adds up to 25% randomness so synchronized clients spread out.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + rand.N(d/4)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
