// Package run dispatches named tasks concurrently or sequentially and
// composes resource managers into scopes with deterministic teardown.
//
// The package is the orchestration core of labbench: measurement
// procedures hand it a set of task functions (or managers for instruments
// and data stores), and it executes them, folds their results into a
// single map, and reduces their failures to one error with a strict
// precedence.
//
// # Tasks and Calls
//
// A task is any value of type Func. Tasks are passed directly to the
// entry points, or wrapped in a Call when they need an explicit name:
//
//	res, err := run.Concurrently(ctx, run.Options{},
//	    acquireSpectrum,
//	    run.Named("settle", waitForThermalSettle),
//	)
//
// Unnamed tasks derive their name from the function identifier. Derived
// names that collide are disambiguated with _0, _1, ... suffixes in input
// order; explicit names that collide are a configuration error. Passing
// the same function twice executes it once, under the first entry's name.
//
// Plain map[string]any (or Result) inputs are transparent: their entries
// merge straight into the returned Result, which lets one dispatch feed
// the next.
//
// # Runners
//
// The package-level entry points delegate to a default Runner bound to
// the process-wide stop.Shared() signal. Construct a Runner to isolate an
// orchestration domain, bound its concurrency, or wire telemetry:
//
//	r, err := run.NewRunner(run.RunnerConfig{
//	    Signal:   stop.New(),
//	    Observer: obs,
//	})
//
// Every dispatched task executes inside an observability middleware, so
// each gets a span, metrics, and a completion log keyed by task name, run
// label, and a per-invocation run ID.
//
// # Failure policy
//
// A failing task never interrupts its siblings: the failure is collected
// while the rest of the set finishes. Master failures (the parent context
// cancelled, or a stop requested on the runner's signal) take precedence
// over everything, request a stop so every task is told to end, and
// surface as *MasterError after all workers have unwound. Otherwise a
// single task failure is re-raised as *TaskError (errors.Is still matches
// the original), and two or more fold into an *AggregateError keyed by
// task name. Tasks that end because a stop was requested are treated as
// cancelled, not failed.
//
// # Scopes
//
// Enter composes Manager values the way a stack of context managers
// composes: all Enter methods run (concurrently by default), and the
// returned Scope unwinds them in strict reverse completion order, on the
// calling goroutine, every Exit attempted even when an earlier one fails:
//
//	sc, err := run.Enter(ctx, run.Options{}, vna, powerMeter)
//	if err != nil {
//	    return err
//	}
//	defer sc.Close(ctx)
package run
