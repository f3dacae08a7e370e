package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/usnistgov/labbench-sub000/stop"
)

// Config configures attempt-bounded retry.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Backoff is the exponential backoff multiplier.
	// Default: 2.0
	Backoff float64

	// Jitter adds up to 25% randomness to each delay.
	Jitter bool

	// RetryIf determines whether an error should trigger a retry.
	// Default: all non-nil errors. Cancellation is never retried,
	// regardless of RetryIf.
	RetryIf func(err error) bool

	// OnRetry is called before each retry wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retrier retries an operation a bounded number of times.
type Retrier struct {
	config Config
}

// New creates an attempt-bounded retrier.
func New(config Config) *Retrier {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Backoff <= 0 {
		config.Backoff = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}

	return &Retrier{config: config}
}

// Execute runs the operation until it succeeds, fails the RetryIf check,
// or exhausts MaxAttempts. The last error is returned on exhaustion.
func (r *Retrier) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err, r.config.RetryIf) {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := backoffDelay(attempt, r.config.InitialDelay, r.config.MaxDelay, r.config.Backoff, r.config.Jitter)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// Wrap decorates a value-returning callable, so the retried form can be
// dispatched like any other task.
func (r *Retrier) Wrap(fn func(context.Context) (any, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		var value any
		err := r.Execute(ctx, func(ctx context.Context) error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			value = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		return value, nil
	}
}

// Config returns the configuration after defaults were applied.
func (r *Retrier) Config() Config {
	return r.config
}

// OnErrors builds a RetryIf that retries only errors matching one of the
// targets via errors.Is.
func OnErrors(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// retryable applies the cancellation carve-out ahead of the configured
// predicate. A stop request or context cancellation must propagate to the
// caller, not burn attempts.
func retryable(err error, retryIf func(error) bool) bool {
	if errors.Is(err, stop.ErrEndedByMaster) || errors.Is(err, context.Canceled) {
		return false
	}
	return retryIf(err)
}

// backoffDelay computes the wait before the retry following attempt.
func backoffDelay(attempt int, initial, maxDelay time.Duration, multiplier float64, jitter bool) time.Duration {
	delay := time.Duration(float64(initial) * math.Pow(multiplier, float64(attempt-1)))

	// Cap at max delay
	if delay > maxDelay {
		delay = maxDelay
	}

	// Add up to 25% jitter if enabled
	if jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}

	return delay
}
