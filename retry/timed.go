package retry

import (
	"context"
	"time"
)

// TimedConfig configures wall-clock-bounded retry.
type TimedConfig struct {
	// Timeout is the total retry budget, measured from the first attempt.
	// Default: 30s
	Timeout time.Duration

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

// TimedRetrier retries an operation until a wall-clock budget elapses.
type TimedRetrier struct {
	config TimedConfig
}

// NewTimed creates a time-bounded retrier.
func NewTimed(config TimedConfig) *TimedRetrier {
	// Apply defaults
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
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

	return &TimedRetrier{config: config}
}

// Execute runs the operation until it succeeds or the budget elapses.
// The budget is spent by waiting, never by returning early: when the
// next backoff delay would overrun the deadline, the wait is clamped to
// the remainder and one final attempt runs at the deadline. The last
// error surfaces only once the budget has elapsed.
func (t *TimedRetrier) Execute(ctx context.Context, op func(context.Context) error) error {
	deadline := time.Now().Add(t.config.Timeout)
	var lastErr error

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err, t.config.RetryIf) {
			return err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		delay := backoffDelay(attempt, t.config.InitialDelay, t.config.MaxDelay, t.config.Backoff, t.config.Jitter)
		if delay > remaining {
			delay = remaining
		}
		if t.config.OnRetry != nil {
			t.config.OnRetry(attempt, err, delay)
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
func (t *TimedRetrier) Wrap(fn func(context.Context) (any, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		var value any
		err := t.Execute(ctx, func(ctx context.Context) error {
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
func (t *TimedRetrier) Config() TimedConfig {
	return t.config
}
