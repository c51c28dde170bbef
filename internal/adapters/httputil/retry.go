// Package httputil provides the retry policy shared by the registry client and the tarball fetcher.
package httputil

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryableError marks a transient failure, such as a transport error or a
// 5xx response, that Policy.Do should attempt again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so that Policy.Do retries it. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// StatusRetryable reports whether an HTTP status indicates a transient fault.
func StatusRetryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Policy bounds how a network operation is retried.
type Policy struct {
	// Attempts is the total number of tries. Values below 1 mean a single try.
	Attempts int

	// Backoff is the delay before the second try; it doubles after every failure.
	Backoff time.Duration

	// AttemptTimeout bounds each try. Zero disables the per-attempt deadline.
	AttemptTimeout time.Duration
}

// DefaultPolicy is three attempts starting at 200ms with a 30s deadline per attempt.
var DefaultPolicy = Policy{Attempts: 3, Backoff: 200 * time.Millisecond, AttemptTimeout: 30 * time.Second}

// Do runs fn until it succeeds, returns a non retryable error, or the
// attempts are exhausted. The error of the last attempt is returned with the
// RetryableError marker removed. Cancellation of ctx stops waiting between
// attempts and returns ctx.Err().
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Backoff
	var lastErr error

	for i := range attempts {
		err := p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			break
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}

	var re *RetryableError
	if errors.As(lastErr, &re) {
		return re.Err
	}
	return lastErr
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}
