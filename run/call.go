package run

import (
	"context"
	"reflect"
	"runtime"
	"strings"
)

// Func is the unit of dispatch: a task body that runs under the context
// the runner provides. The context carries the runner's stop signal, so
// task bodies pause with stop.Sleep (or run.Sleep) instead of time.Sleep
// and end promptly when a stop is requested.
//
// Contract:
//   - Context: honor cancellation; return ctx.Err() or
//     stop.ErrEndedByMaster when told to end.
//   - Errors: a returned error marks the task failed; it never interrupts
//     sibling tasks.
//   - Panics: recovered by the runner and recorded as the task's failure
//     together with the goroutine stack.
type Func func(ctx context.Context) (any, error)

// Manager is a resource with paired setup and teardown, composed by
// Enter. Exit receives the error that forced the unwind, or nil on a
// normal close, and runs even when an earlier manager's Exit failed.
type Manager interface {
	Enter(ctx context.Context) error
	Exit(ctx context.Context, cause error) error
}

// ConcurrencySupporter is implemented by targets that constrain how they
// may be dispatched. A target reporting false rejects any concurrent run
// of two or more tasks before dispatch; sequential execution remains
// allowed.
type ConcurrencySupporter interface {
	SupportsConcurrency() bool
}

// Call binds a dispatch target to a name. Targets are task functions or
// Managers; the zero name defers to derivation at dispatch time.
type Call struct {
	name     string
	explicit bool
	target   any
}

// Do wraps a task function in a Call. The name stays derived until
// Rename overrides it.
func Do(fn Func) *Call {
	return &Call{target: fn}
}

// Named wraps a task function or Manager under an explicit name.
// Explicit names must be unique within one dispatch.
func Named(name string, target any) *Call {
	return &Call{name: name, explicit: true, target: target}
}

// Rename overrides the Call's name and returns the same Call for
// chaining.
func (c *Call) Rename(name string) *Call {
	c.name = name
	c.explicit = true
	return c
}

// Name returns the explicit name, or the name dispatch would derive from
// the target.
func (c *Call) Name() string {
	if c.name != "" {
		return c.name
	}
	return deriveName(c.target)
}

func deriveName(target any) string {
	if m, ok := target.(Manager); ok {
		if _, isFunc := asFunc(target); !isFunc {
			return managerName(m)
		}
	}
	if reflect.ValueOf(target).Kind() == reflect.Func {
		return funcName(target)
	}
	return "task"
}

// funcName derives a task name from the function's declared identifier:
// the runtime symbol with module path and package qualifier trimmed.
// Closures keep their compiler-assigned name (e.g. setup.func1); method
// values drop the -fm suffix.
func funcName(fn any) string {
	pc := reflect.ValueOf(fn).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "func"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// managerName derives a task name from the manager's dynamic type,
// pointers dereferenced.
func managerName(m Manager) string {
	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
