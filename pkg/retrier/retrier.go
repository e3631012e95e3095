// Package retrier retries transient failures with exponential backoff and jitter.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultBaseInterval = 1 * time.Second
	defaultMaxInterval  = 30 * time.Second
	defaultFactor       = 2.0
	defaultMaxRetries   = 5
	defaultJitter       = 0.1
)

// Retrier implements exponential backoff with jitter.
type Retrier struct {
	baseInterval time.Duration
	maxInterval  time.Duration
	factor       float64
	maxRetries   int
	jitter       float64
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithInitialInterval sets the first retry interval.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) { r.baseInterval = d }
}

// WithMaxInterval caps the retry interval.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) { r.maxInterval = d }
}

// WithMaxRetries sets how many retries follow the initial attempt.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) { r.maxRetries = n }
}

// New creates a Retrier with defaults and optional overrides.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		baseInterval: defaultBaseInterval,
		maxInterval:  defaultMaxInterval,
		factor:       defaultFactor,
		maxRetries:   defaultMaxRetries,
		jitter:       defaultJitter,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Do runs fn until it succeeds, retries are exhausted, or ctx is done.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	interval := r.baseInterval

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			sleep := withJitter(interval, r.jitter)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}

			interval = time.Duration(float64(interval) * r.factor)
			if interval > r.maxInterval {
				interval = r.maxInterval
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}
	}

	return err
}

// DoWithData runs fn with retries and returns its value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T

	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})

	return result, err
}

func withJitter(interval time.Duration, jitter float64) time.Duration {
	delta := (rand.Float64()*2 - 1) * jitter * float64(interval)

	sleep := time.Duration(float64(interval) + delta)
	if sleep < 0 {
		sleep = 0
	}

	return sleep
}
