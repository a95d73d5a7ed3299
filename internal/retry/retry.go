// Package retry runs operations under a bounded retry policy with
// exponential backoff.
//
// The policy is independent of the operation it wraps:
//
//	err := retry.Do(ctx, policy, func() error {
//	    return store.WriteRow(ctx, sheet, row, cells)
//	})
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialInterval is the delay before the second attempt.
	InitialInterval time.Duration

	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration

	// Multiplier grows the delay after each failed attempt.
	Multiplier float64

	// Jitter randomizes each delay by +/- this fraction (0 disables it).
	Jitter float64

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool

	// OnRetry is called before sleeping for the next attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns sensible defaults for remote sheet calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
		Multiplier:      2,
		Jitter:          0.2,
	}
}

// Validate checks the policy for values backoff cannot work with.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1 (got %d)", p.MaxAttempts)
	}
	if p.InitialInterval < 0 || p.MaxInterval < 0 {
		return fmt.Errorf("backoff intervals must not be negative")
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1 (got %g)", p.Multiplier)
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("jitter must be between 0 and 1 (got %g)", p.Jitter)
	}
	return nil
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.RandomizationFactor = p.Jitter
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Reset()
	return b
}

// Value runs op until it succeeds, returns a non-retryable error, the
// attempts are exhausted, or ctx is done. The last error is returned.
func Value[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		v, err := op()
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			p.OnRetry(attempt, err, wait)
		}))
	}

	v, err := backoff.Retry(ctx, wrapped, opts...)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return v, err
}

// Do is Value for operations without a result.
func Do(ctx context.Context, p Policy, op func() error) error {
	_, err := Value(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}
