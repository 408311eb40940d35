// Package poll provides a bounded, fixed-interval wait-until-condition
// primitive used for readiness checks on externally provisioned resources
// (load balancers, pods, cluster add-ons).
//
// Unlike a backoff-based retry helper, the interval here is deliberately
// constant: provisioning runs are operator-observed and a steady feedback
// cadence is easier to follow than adaptive delays.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Predicate reports whether the awaited condition holds. Returning an error
// counts as "not yet satisfied" and the predicate is retried, unless the
// error is marked fatal via Fatal().
type Predicate func(ctx context.Context) (bool, error)

// Config holds polling configuration.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// Option is a functional option for polling configuration.
type Option func(*Config)

// WithInterval sets the delay between attempts.
func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		c.Interval = d
	}
}

// WithMaxAttempts sets the attempt bound.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		c.MaxAttempts = n
	}
}

// Result describes the outcome of a Wait call.
type Result struct {
	// Satisfied is true if the predicate returned true within the bound.
	Satisfied bool

	// Cancelled is true if the caller's context was cancelled before the
	// condition was observed. Cancellation is cooperative: it is checked
	// between attempts, never mid-predicate.
	Cancelled bool

	// Attempts is the number of predicate invocations performed.
	Attempts int
}

// Wait polls the predicate at a fixed interval until it is satisfied, the
// attempt bound is reached, or ctx is cancelled.
//
// Predicate errors are treated as "not yet satisfied" and retried. Errors
// wrapped with Fatal() abort immediately and are returned to the caller.
// Exhausting the bound is not an error; callers inspect Result.Satisfied.
func Wait(ctx context.Context, pred Predicate, opts ...Option) (Result, error) {
	cfg := &Config{
		Interval:    5 * time.Second,
		MaxAttempts: 60,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	res := Result{}
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res, nil
		}

		res.Attempts = attempt
		ok, err := pred(ctx)
		if err != nil && IsFatal(err) {
			return res, fmt.Errorf("condition check failed fatally after %d attempts: %w", attempt, err)
		}
		if ok {
			res.Satisfied = true
			return res, nil
		}

		if attempt < cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				res.Cancelled = true
				return res, nil
			case <-time.After(cfg.Interval):
			}
		}
	}

	return res, nil
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal. A poll loop that observes a fatal error
// aborts immediately instead of completing its remaining attempts; used for
// conditions that can never recover, such as revoked credentials.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
