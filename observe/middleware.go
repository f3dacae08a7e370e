package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature for task execution functions.
// This is the standard function signature that Middleware wraps; the runner
// adapts each dispatched task to it before execution.
type ExecuteFunc func(ctx context.Context, meta TaskMeta) (any, error)

// Middleware wraps task execution with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from wrapped function are recorded and propagated unchanged.
//   - Ownership: Return values are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps an ExecuteFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta TaskMeta) (any, error) {
		// Start span
		ctx, span := m.tracer.StartSpan(ctx, meta)

		// Record start time
		start := time.Now()

		// Execute the function
		result, err := fn(ctx, meta)

		// Calculate duration
		duration := time.Since(start)

		// End span (records error status if err != nil)
		m.tracer.EndSpan(span, err)

		// Record metrics
		m.metrics.RecordExecution(ctx, meta, duration, err)

		// Log the execution
		taskLogger := m.logger.WithTask(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			taskLogger.Error(ctx, "task failed", fields...)
		} else {
			taskLogger.Info(ctx, "task completed", fields...)
		}

		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
// This is a convenience function for common use cases.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	tracer := newTracer(obs.Tracer())

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(tracer, metrics, obs.Logger()), nil
}

// NopMiddleware returns a Middleware whose components all discard their
// input. The runner installs it when no Observer is configured so that the
// instrumentation path is identical either way.
func NopMiddleware() *Middleware {
	return NewMiddleware(newNoopTracer(), &noopMetrics{}, &noopLogger{})
}

// MiddlewareWithLogger returns a Middleware that logs task completion
// through logger but records no spans or metrics. Runners use it when they
// are configured with a Logger and no Observer.
func MiddlewareWithLogger(logger Logger) *Middleware {
	if logger == nil {
		return NopMiddleware()
	}
	return NewMiddleware(newNoopTracer(), &noopMetrics{}, logger)
}
