package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// TaskMeta contains metadata about a dispatched task for telemetry purposes.
type TaskMeta struct {
	RunID string // Identifier of the orchestration run that owns the task (optional)
	Label string // Run label, typically the call site of the dispatch (optional)
	Task  string // Task name within the run (required)
	Mode  string // Dispatch mode: "concurrent", "sequential" or "context" (optional)
}

// SpanName returns the deterministic span name for this task.
// Format: task.exec.<label>.<task> or task.exec.<task>
func (m TaskMeta) SpanName() string {
	if m.Label != "" {
		return "task.exec." + m.Label + "." + m.Task
	}
	return "task.exec." + m.Task
}

// Path returns the label-qualified task identifier.
// Format: <label>.<task> or just <task> when the run is unlabeled.
func (m TaskMeta) Path() string {
	if m.Label != "" {
		return m.Label + "." + m.Task
	}
	return m.Task
}

// Validate reports whether the metadata is usable for telemetry.
func (m TaskMeta) Validate() error {
	if m.Task == "" {
		return ErrMissingTaskName
	}
	return nil
}

// Tracer wraps OpenTelemetry tracing with task-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan must honor cancellation/deadlines and return ctx.Err() when canceled.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for task execution.
	StartSpan(ctx context.Context, meta TaskMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with task metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta TaskMeta) (context.Context, trace.Span) {
	spanName := meta.SpanName()

	// Build attributes
	attrs := []attribute.KeyValue{
		attribute.String("task.path", meta.Path()),
		attribute.String("task.name", meta.Task),
		attribute.Bool("task.error", false), // Will be updated in EndSpan if error
	}

	// Add run context if present
	if meta.Label != "" {
		attrs = append(attrs, attribute.String("run.label", meta.Label))
	}
	if meta.RunID != "" {
		attrs = append(attrs, attribute.String("run.id", meta.RunID))
	}
	if meta.Mode != "" {
		attrs = append(attrs, attribute.String("task.mode", meta.Mode))
	}

	ctx, span := t.tracer.Start(ctx, spanName,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("task.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta TaskMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
