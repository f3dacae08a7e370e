package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTaskMeta_SpanNameWithLabel verifies span name includes the run label.
func TestTaskMeta_SpanNameWithLabel(t *testing.T) {
	meta := TaskMeta{
		Label: "bench_setup",
		Task:  "connect_vna",
	}

	expected := "task.exec.bench_setup.connect_vna"
	if got := meta.SpanName(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

// TestTaskMeta_SpanNameWithoutLabel verifies span name for an unlabeled run.
func TestTaskMeta_SpanNameWithoutLabel(t *testing.T) {
	meta := TaskMeta{
		Label: "",
		Task:  "read_power",
	}

	expected := "task.exec.read_power"
	if got := meta.SpanName(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

// TestTaskMeta_Path verifies path generation with and without a label.
func TestTaskMeta_Path(t *testing.T) {
	tests := []struct {
		name     string
		meta     TaskMeta
		expected string
	}{
		{
			name:     "with label",
			meta:     TaskMeta{Label: "sweep", Task: "set_frequency"},
			expected: "sweep.set_frequency",
		},
		{
			name:     "without label",
			meta:     TaskMeta{Label: "", Task: "read_trace"},
			expected: "read_trace",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.meta.Path(); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

// TestTracer_SpanAttributes verifies all attributes are present on span.
func TestTracer_SpanAttributes(t *testing.T) {
	// Set up in-memory span recorder
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := TaskMeta{
		RunID: "01J8ZJ2M7Q0000000000000000",
		Label: "sweep",
		Task:  "set_frequency",
		Mode:  "concurrent",
	}

	ctx, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)
	_ = ctx // Suppress unused warning

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]

	// Verify span name
	if s.Name() != "task.exec.sweep.set_frequency" {
		t.Errorf("expected span name 'task.exec.sweep.set_frequency', got %q", s.Name())
	}

	// Verify attributes
	attrs := s.Attributes()
	attrMap := make(map[string]attribute.Value)
	for _, a := range attrs {
		attrMap[string(a.Key)] = a.Value
	}

	// Required attributes
	if v, ok := attrMap["task.path"]; !ok || v.AsString() != "sweep.set_frequency" {
		t.Errorf("expected task.path='sweep.set_frequency', got %v", v)
	}
	if v, ok := attrMap["task.name"]; !ok || v.AsString() != "set_frequency" {
		t.Errorf("expected task.name='set_frequency', got %v", v)
	}
	if v, ok := attrMap["task.error"]; !ok || v.AsBool() != false {
		t.Errorf("expected task.error=false, got %v", v)
	}

	// Run context attributes
	if v, ok := attrMap["run.label"]; !ok || v.AsString() != "sweep" {
		t.Errorf("expected run.label='sweep', got %v", v)
	}
	if v, ok := attrMap["run.id"]; !ok || v.AsString() != "01J8ZJ2M7Q0000000000000000" {
		t.Errorf("expected run.id='01J8ZJ2M7Q0000000000000000', got %v", v)
	}
	if v, ok := attrMap["task.mode"]; !ok || v.AsString() != "concurrent" {
		t.Errorf("expected task.mode='concurrent', got %v", v)
	}
}

// TestTracer_SpanAttributesMinimal verifies only required attributes when minimal meta.
func TestTracer_SpanAttributesMinimal(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := TaskMeta{
		Task: "read_trace",
	}

	ctx, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)
	_ = ctx

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]
	attrs := s.Attributes()
	attrMap := make(map[string]attribute.Value)
	for _, a := range attrs {
		attrMap[string(a.Key)] = a.Value
	}

	// Required attributes should be present
	if _, ok := attrMap["task.path"]; !ok {
		t.Error("expected task.path attribute")
	}
	if _, ok := attrMap["task.name"]; !ok {
		t.Error("expected task.name attribute")
	}
	if _, ok := attrMap["task.error"]; !ok {
		t.Error("expected task.error attribute")
	}

	// Run context attributes should NOT be present when empty
	if v, ok := attrMap["run.label"]; ok && v.AsString() != "" {
		t.Errorf("expected no run.label, got %v", v)
	}
	if v, ok := attrMap["run.id"]; ok && v.AsString() != "" {
		t.Errorf("expected no run.id, got %v", v)
	}
	if v, ok := attrMap["task.mode"]; ok && v.AsString() != "" {
		t.Errorf("expected no task.mode, got %v", v)
	}
}

// TestTracer_ContextPropagation verifies parent span is propagated.
func TestTracer_ContextPropagation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := TaskMeta{Task: "child_task"}

	// Create parent span
	parentCtx, parentSpan := tracer.Start(context.Background(), "parent")

	// Create child span through our tracer
	childCtx, childSpan := tr.StartSpan(parentCtx, meta)
	tr.EndSpan(childSpan, nil)
	parentSpan.End()
	_ = childCtx

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	// Find the child span (the one with task.exec prefix)
	var child sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == "task.exec.child_task" {
			child = s
			break
		}
	}
	if child == nil {
		t.Fatal("child span not found")
	}

	// Verify parent-child relationship
	if child.Parent().TraceID() != parentSpan.SpanContext().TraceID() {
		t.Error("child span should have same trace ID as parent")
	}
	if !child.Parent().SpanID().IsValid() {
		t.Error("child span should have valid parent span ID")
	}
}

// TestTracer_ErrorRecording verifies error sets span status and attribute.
func TestTracer_ErrorRecording(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := &tracerImpl{tracer: tracer}
	meta := TaskMeta{Task: "failing_task"}

	ctx, span := tr.StartSpan(context.Background(), meta)
	testErr := errors.New("execution failed")
	tr.EndSpan(span, testErr)
	_ = ctx

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]

	// Verify error status
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status().Code)
	}

	// Verify task.error attribute
	attrs := s.Attributes()
	var taskError bool
	for _, a := range attrs {
		if string(a.Key) == "task.error" {
			taskError = a.Value.AsBool()
			break
		}
	}
	if !taskError {
		t.Error("expected task.error=true")
	}
}
