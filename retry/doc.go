// Package retry provides bounded retry decorators for task operations.
//
// This package implements the two retry bounds used around instrument and
// measurement operations: a fixed attempt count and a wall-clock budget.
// Both apply exponential backoff between attempts.
//
// # Bounds
//
// The package provides two retriers:
//
//   - Retrier: retries a failing operation up to MaxAttempts times
//     (including the initial attempt), then returns the last error.
//
//   - TimedRetrier: retries a failing operation until a wall-clock budget
//     elapses. The last wait is clamped to the remaining budget, so the
//     final attempt runs at the deadline and the last error surfaces only
//     once the budget is spent.
//
// # Cancellation
//
// A stop request (stop.ErrEndedByMaster) or context cancellation is never
// retried, regardless of RetryIf. Cooperative cancellation must reach the
// runner; burning attempts against it would hold a stopped run open.
//
// # Usage
//
// Retriers wrap plain operations via Execute, or decorate value-returning
// callables via Wrap so the result can be dispatched directly:
//
//	r := retry.New(retry.Config{
//	    MaxAttempts:  5,
//	    InitialDelay: 50 * time.Millisecond,
//	    MaxDelay:     time.Second,
//	    RetryIf:      retry.OnErrors(errBusTimeout),
//	})
//
//	res, err := run.Concurrently(ctx, run.Options{},
//	    run.Named("fetch", r.Wrap(fetchTrace)),
//	)
package retry
