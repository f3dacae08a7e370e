package run

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/usnistgov/labbench-sub000/stop"
)

// Sentinel errors for dispatch configuration. All of them surface
// synchronously, before any task goroutine starts.
var (
	// ErrMixedInputs is returned when one dispatch receives both callables
	// and managers.
	ErrMixedInputs = errors.New("run: callables and managers mixed in one dispatch")

	// ErrAmbiguousInput is returned when an input satisfies both the
	// callable and the manager form; the classifier refuses to guess.
	ErrAmbiguousInput = errors.New("run: input is both callable and manager")

	// ErrUnsupportedInput is returned for inputs that are neither
	// callables, managers, nor result maps.
	ErrUnsupportedInput = errors.New("run: unsupported input")

	// ErrNilInput is returned when an input, or a Call target, is nil.
	ErrNilInput = errors.New("run: nil input")

	// ErrDuplicateName is returned when two explicit task names collide.
	ErrDuplicateName = errors.New("run: duplicate task name")

	// ErrKeyConflict is returned (inside a *MasterError) when folding
	// results would write the same key twice.
	ErrKeyConflict = errors.New("run: result key conflict")

	// ErrNoConcurrency is returned when a target that reports
	// SupportsConcurrency() == false is dispatched concurrently alongside
	// other tasks.
	ErrNoConcurrency = errors.New("run: target does not support concurrency")
)

// TaskError records one task's failure. Err is the error the task
// returned (or the recovered panic); errors.Is and errors.As look through
// to it. Stack holds the goroutine stack captured when the task panicked,
// and is nil for ordinary error returns.
type TaskError struct {
	Task  string
	Err   error
	Stack []byte
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// AggregateError collects two or more task failures from one dispatch,
// keyed by task name. Unwrap exposes every failure, so errors.Is matches
// any of the underlying errors.
type AggregateError struct {
	Failures map[string]*TaskError
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("%d tasks failed: %s", len(e.Failures), strings.Join(e.names(), ", "))
}

// Unwrap returns the individual failures in task-name order.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, name := range e.names() {
		errs = append(errs, e.Failures[name])
	}
	return errs
}

func (e *AggregateError) names() []string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MasterError marks an orchestrator-level failure: the parent context was
// cancelled, a stop was requested on the runner's signal, or folding the
// results hit a key conflict. It always wins over task failures.
type MasterError struct {
	Err error
}

func (e *MasterError) Error() string {
	return fmt.Sprintf("run ended by master: %v", e.Err)
}

func (e *MasterError) Unwrap() error { return e.Err }

// isCancellation reports whether a task outcome is an intentional unwind
// rather than a failure. Deadline expiry is a real failure.
func isCancellation(err error) bool {
	return errors.Is(err, stop.ErrEndedByMaster) || errors.Is(err, context.Canceled)
}
