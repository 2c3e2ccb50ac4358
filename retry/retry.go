// Package retry re-runs operations that failed with transient exchange
// errors, using exponential backoff. Any other error stops the schedule
// immediately and comes back unchanged.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/quantfetch/perpdata/errors"
)

type options struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	maxRetries      uint64
	hasMaxRetries   bool
}

// Option tunes the backoff schedule.
type Option func(*options)

// WithInitialInterval sets the first wait between attempts.
func WithInitialInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.initialInterval = d
		}
	}
}

// WithMaxInterval caps the wait between attempts.
func WithMaxInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxInterval = d
		}
	}
}

// WithMaxElapsedTime bounds the total time spent retrying.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxElapsedTime = d
		}
	}
}

// WithMaxRetries bounds the retries after the first attempt.
func WithMaxRetries(n uint64) Option {
	return func(o *options) {
		o.maxRetries = n
		o.hasMaxRetries = true
	}
}

// DoValue runs fn until it succeeds, it fails with a non-transient error,
// the context ends, or the schedule is exhausted.
func DoValue[T any](ctx context.Context, fn func() (T, error), opts ...Option) (T, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	policy := backoff.NewExponentialBackOff()
	if o.initialInterval > 0 {
		policy.InitialInterval = o.initialInterval
	}
	if o.maxInterval > 0 {
		policy.MaxInterval = o.maxInterval
	}
	if o.maxElapsedTime > 0 {
		policy.MaxElapsedTime = o.maxElapsedTime
	}

	var schedule backoff.BackOff = backoff.WithContext(policy, ctx)
	if o.hasMaxRetries {
		schedule = backoff.WithMaxRetries(schedule, o.maxRetries)
	}

	return backoff.RetryWithData(func() (T, error) {
		value, err := fn()
		if err != nil && !errors.IsTransient(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}, schedule)
}

// Do runs fn with the same policy as DoValue.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	_, err := DoValue(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	}, opts...)
	return err
}
