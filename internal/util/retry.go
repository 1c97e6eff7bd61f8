package util

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backoff is an exponential retry schedule: Base, 2*Base, 4*Base, ...
// capped at Max when Max is positive.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff suits interactive lookups that must give up quickly.
var DefaultBackoff = Backoff{Base: 200 * time.Millisecond, Max: 2 * time.Second}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The retry loop stops and
// returns err unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// RetryWithBackoff calls fn up to maxRetries+1 times on DefaultBackoff.
func RetryWithBackoff(ctx context.Context, maxRetries int, fn func(attempt int) error) error {
	return DefaultBackoff.Retry(ctx, maxRetries, fn)
}

// Retry calls fn up to maxRetries+1 times, sleeping between attempts.
// fn receives the current attempt number (0-indexed) and returns nil on
// success. If the context is cancelled, Retry returns the context error.
func (b Backoff) Retry(ctx context.Context, maxRetries int, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		// Don't wait after the last attempt
		if attempt == maxRetries {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.delay(attempt)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt && d > 0; i++ {
		if b.Max > 0 && d >= b.Max {
			break
		}
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
