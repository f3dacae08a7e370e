package run

import (
	"context"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/panics"

	"github.com/usnistgov/labbench-sub000/observe"
	"github.com/usnistgov/labbench-sub000/stop"
)

// DefaultPollInterval bounds how long the concurrent monitor waits
// between liveness checks when no task has reported.
const DefaultPollInterval = time.Second

// Options tunes one dispatch. The zero value is the default behavior.
type Options struct {
	// Catch suppresses task failures: they are logged, their names are
	// absent from the Result, and the dispatch succeeds. Master failures
	// are never suppressed.
	Catch bool

	// KeepNil includes nil task results in the Result (default: omitted).
	KeepNil bool

	// NoFlatten stores map-valued results under the task name instead of
	// merging their entries into the top level.
	NoFlatten bool

	// ReportImmediately logs task failures as they occur instead of just
	// before the dispatch returns its error.
	ReportImmediately bool

	// Label names the dispatch in logs and spans. Defaults to the call
	// site (file.go:line).
	Label string

	// Limit caps how many tasks run simultaneously. 0 means one goroutine
	// per task, unbounded.
	Limit int

	// Sequential is honored by Enter only: enter managers in input order
	// on the calling goroutine instead of concurrently.
	Sequential bool
}

// RunnerConfig configures a Runner. Zero fields take defaults.
type RunnerConfig struct {
	// Signal is the stop signal scoping this runner's dispatches.
	// Default: stop.Shared().
	Signal *stop.Signal

	// Observer wires tracing, metrics, and logging around every task.
	Observer observe.Observer

	// Logger receives the runner's own reports (task failures, liveness).
	// Default: the Observer's logger, or a no-op logger.
	Logger observe.Logger

	// PollInterval paces the concurrent monitor's liveness logging.
	// Default: DefaultPollInterval.
	PollInterval time.Duration
}

// Runner is an orchestration domain: a stop signal plus the telemetry
// wrapped around every task it dispatches. Runners are safe for
// concurrent use; each dispatch carries its own state.
type Runner struct {
	signal *stop.Signal
	logger observe.Logger
	mw     *observe.Middleware
	poll   time.Duration
}

// NewRunner builds a Runner from cfg. It fails only when the Observer
// cannot be turned into task middleware.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	signal := cfg.Signal
	if signal == nil {
		signal = stop.Shared()
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	var (
		mw     *observe.Middleware
		logger observe.Logger
	)
	switch {
	case cfg.Observer != nil:
		m, err := observe.MiddlewareFromObserver(cfg.Observer)
		if err != nil {
			return nil, err
		}
		mw = m
		logger = cfg.Observer.Logger()
	case cfg.Logger != nil:
		mw = observe.MiddlewareWithLogger(cfg.Logger)
	default:
		mw = observe.NopMiddleware()
	}
	if cfg.Logger != nil {
		logger = cfg.Logger
	}
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &Runner{signal: signal, logger: logger, mw: mw, poll: poll}, nil
}

var defaultRunner = &Runner{
	signal: stop.Shared(),
	logger: observe.NopLogger(),
	mw:     observe.NopMiddleware(),
	poll:   DefaultPollInterval,
}

// Default returns the Runner behind the package-level entry points. It is
// bound to stop.Shared() and carries no telemetry.
func Default() *Runner { return defaultRunner }

// Concurrently dispatches the inputs on the default Runner, one goroutine
// per task.
func Concurrently(ctx context.Context, opts Options, inputs ...any) (Result, error) {
	if opts.Label == "" {
		opts.Label = callSite(2)
	}
	return defaultRunner.Concurrently(ctx, opts, inputs...)
}

// Sequentially dispatches the inputs on the default Runner, in input
// order on the calling goroutine.
func Sequentially(ctx context.Context, opts Options, inputs ...any) (Result, error) {
	if opts.Label == "" {
		opts.Label = callSite(2)
	}
	return defaultRunner.Sequentially(ctx, opts, inputs...)
}

// Enter composes the managers on the default Runner and returns the
// entered Scope.
func Enter(ctx context.Context, opts Options, inputs ...any) (*Scope, error) {
	if opts.Label == "" {
		opts.Label = callSite(2)
	}
	return defaultRunner.Enter(ctx, opts, inputs...)
}

// Sleep pauses the calling task until d elapses, a stop is requested on
// the signal in ctx, or ctx is cancelled. Task bodies use it in place of
// time.Sleep so a stop interrupts them immediately.
func Sleep(ctx context.Context, d time.Duration) error {
	return stop.Sleep(ctx, d)
}

// Concurrently executes a set of callables at once and folds their
// results. See the package documentation for the failure policy.
func (r *Runner) Concurrently(ctx context.Context, opts Options, inputs ...any) (Result, error) {
	if opts.Label == "" {
		opts.Label = callSite(2)
	}
	set, err := buildTaskSet(inputs)
	if err != nil {
		return nil, err
	}
	if err := set.requireCallables(); err != nil {
		return nil, err
	}
	return r.newRun(opts, "concurrent").concurrent(ctx, set)
}

// Sequentially executes a set of callables in input order on the calling
// goroutine. The first failure ends the sequence unless Catch is set.
func (r *Runner) Sequentially(ctx context.Context, opts Options, inputs ...any) (Result, error) {
	if opts.Label == "" {
		opts.Label = callSite(2)
	}
	set, err := buildTaskSet(inputs)
	if err != nil {
		return nil, err
	}
	if err := set.requireCallables(); err != nil {
		return nil, err
	}
	return r.newRun(opts, "sequential").sequential(ctx, set)
}

// Signal returns the stop signal scoping this runner's dispatches.
func (r *Runner) Signal() *stop.Signal { return r.signal }

// callSite names the dispatch after its caller.
func callSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "run"
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// runState is one dispatch in flight: the options, the run identity that
// tags every log line and span, and the runner it executes under.
type runState struct {
	runner *Runner
	opts   Options
	id     string
	label  string
	mode   string
}

func (r *Runner) newRun(opts Options, mode string) *runState {
	return &runState{
		runner: r,
		opts:   opts,
		id:     ulid.Make().String(),
		label:  opts.Label,
		mode:   mode,
	}
}

// outcome is one task's report: its value or error, plus the goroutine
// stack when the error was a recovered panic.
type outcome struct {
	task  *task
	value any
	err   error
	stack []byte
}

// execute runs one task through the runner's middleware with panic
// capture. A recovered panic becomes the task's error and keeps the
// goroutine stack.
func (rn *runState) execute(ctx context.Context, t *task) outcome {
	out := outcome{task: t}
	meta := observe.TaskMeta{RunID: rn.id, Label: rn.label, Task: t.name, Mode: rn.mode}
	exec := rn.runner.mw.Wrap(func(ctx context.Context, _ observe.TaskMeta) (any, error) {
		var (
			value any
			err   error
		)
		rec := panics.Try(func() {
			value, err = t.fn(ctx)
		})
		if rec != nil {
			out.stack = rec.Stack
			return nil, rec.AsError()
		}
		return value, err
	})
	out.value, out.err = exec(ctx, meta)
	return out
}

// reportFailure logs one task failure with its stack when present.
// Cancellation outcomes are never reported.
func (rn *runState) reportFailure(ctx context.Context, out outcome) {
	fields := []observe.Field{
		{Key: "run.id", Value: rn.id},
		{Key: "run.label", Value: rn.label},
		{Key: "task", Value: out.task.name},
		{Key: "error", Value: out.err.Error()},
	}
	if len(out.stack) > 0 {
		fields = append(fields, observe.Field{Key: "stack", Value: string(out.stack)})
	}
	rn.runner.logger.Error(ctx, "task failure", fields...)
}

func taskErrorFor(out outcome) *TaskError {
	return &TaskError{Task: out.task.name, Err: out.err, Stack: out.stack}
}
