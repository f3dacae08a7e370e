package run

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/panics"

	"github.com/usnistgov/labbench-sub000/observe"
)

// Scope holds a set of entered Managers and unwinds them in strict
// reverse completion order. The unwind always runs on the calling
// goroutine, and every Exit is attempted even when an earlier one fails.
//
// Contract:
//   - Concurrency: safe for concurrent use; entry recording and close
//     state share one mutex.
//   - Errors: CloseWith returns the single exit failure as *TaskError, or
//     several as *AggregateError, after all exits ran.
//   - Idempotency: the first Close or CloseWith wins; later calls return
//     nil without touching the managers.
type Scope struct {
	runner *Runner
	id     string
	label  string

	mu      sync.Mutex
	entered []enteredManager
	result  Result
	closed  bool
}

type enteredManager struct {
	name string
	mgr  Manager
}

// Enter runs every manager's Enter (concurrently unless opts.Sequential)
// and returns the entered Scope. When any entry fails, the managers that
// did enter are unwound in reverse, exit-time errors are logged as
// secondary, and the entry failure is returned.
func (r *Runner) Enter(ctx context.Context, opts Options, inputs ...any) (*Scope, error) {
	if opts.Label == "" {
		opts.Label = callSite(2)
	}
	set, err := buildTaskSet(inputs)
	if err != nil {
		return nil, err
	}
	if err := set.requireManagers(); err != nil {
		return nil, err
	}

	rn := r.newRun(opts, "context")
	sc := &Scope{runner: r, id: rn.id, label: rn.label}
	for _, t := range set.tasks {
		t.fn = sc.enterFunc(t.name, t.mgr)
	}

	var res Result
	if opts.Sequential {
		res, err = rn.sequential(ctx, set)
	} else {
		res, err = rn.concurrent(ctx, set)
	}
	if err != nil {
		sc.unwind(ctx, err)
		return nil, err
	}
	sc.result = res
	return sc, nil
}

// enterFunc adapts one manager's Enter to a task body. Completion order
// is recorded under the scope's mutex, because concurrent entries settle
// in whatever order they finish.
func (sc *Scope) enterFunc(name string, mgr Manager) Func {
	return func(ctx context.Context) (any, error) {
		if err := mgr.Enter(ctx); err != nil {
			return nil, err
		}
		sc.mu.Lock()
		sc.entered = append(sc.entered, enteredManager{name: name, mgr: mgr})
		sc.mu.Unlock()
		return mgr, nil
	}
}

// Result maps each task name to its entered Manager.
func (sc *Scope) Result() Result {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.result
}

// Close unwinds the scope normally: every Exit receives a nil cause.
func (sc *Scope) Close(ctx context.Context) error {
	return sc.CloseWith(ctx, nil)
}

// CloseWith unwinds the scope because of cause, passing it to every Exit
// so managers can distinguish failure teardown from a normal close.
func (sc *Scope) CloseWith(ctx context.Context, cause error) error {
	failures := sc.unwind(ctx, cause)
	switch len(failures) {
	case 0:
		return nil
	case 1:
		return failures[0]
	}
	agg := &AggregateError{Failures: make(map[string]*TaskError, len(failures))}
	for _, f := range failures {
		agg.Failures[f.Task] = f
	}
	return agg
}

// unwind exits the entered managers in reverse completion order,
// attempting every Exit and logging each failure. It runs at most once.
func (sc *Scope) unwind(ctx context.Context, cause error) []*TaskError {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return nil
	}
	sc.closed = true
	entered := make([]enteredManager, len(sc.entered))
	copy(entered, sc.entered)
	sc.mu.Unlock()

	var failures []*TaskError
	for i := len(entered) - 1; i >= 0; i-- {
		e := entered[i]
		err, stack := exitManager(ctx, e.mgr, cause)
		if err == nil {
			continue
		}
		fail := &TaskError{Task: e.name, Err: err, Stack: stack}
		failures = append(failures, fail)
		sc.reportExitFailure(ctx, fail)
	}
	return failures
}

// exitManager runs one Exit with panic capture, mirroring how task
// bodies are executed.
func exitManager(ctx context.Context, mgr Manager, cause error) (err error, stack []byte) {
	rec := panics.Try(func() {
		err = mgr.Exit(ctx, cause)
	})
	if rec != nil {
		return rec.AsError(), rec.Stack
	}
	return err, nil
}

func (sc *Scope) reportExitFailure(ctx context.Context, fail *TaskError) {
	fields := []observe.Field{
		{Key: "run.id", Value: sc.id},
		{Key: "run.label", Value: sc.label},
		{Key: "task", Value: fail.Task},
		{Key: "error", Value: fail.Err.Error()},
	}
	if len(fail.Stack) > 0 {
		fields = append(fields, observe.Field{Key: "stack", Value: string(fail.Stack)})
	}
	sc.runner.logger.Error(ctx, "exit failed", fields...)
}
