package run

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/usnistgov/labbench-sub000/observe"
	"github.com/usnistgov/labbench-sub000/stop"
)

// concurrent dispatches every task on its own goroutine and monitors the
// run from the calling goroutine. The monitor never abandons a worker: a
// master failure requests a stop and cancels the run context, then keeps
// draining until every worker has reported.
func (rn *runState) concurrent(ctx context.Context, set *taskSet) (Result, error) {
	if len(set.tasks) >= 2 {
		if name, ok := set.refusesConcurrency(); ok {
			return nil, fmt.Errorf("%w: %q", ErrNoConcurrency, name)
		}
	}

	signal := rn.runner.signal
	defer signal.ClearIfIdle()

	if err := ctx.Err(); err != nil {
		return nil, &MasterError{Err: err}
	}
	if signal.Requested() {
		return nil, &MasterError{Err: stop.ErrEndedByMaster}
	}

	runCtx, cancel := context.WithCancel(stop.With(ctx, signal))
	defer cancel()

	var sem *semaphore.Weighted
	if rn.opts.Limit > 0 {
		sem = semaphore.NewWeighted(int64(rn.opts.Limit))
	}

	done := make(chan outcome, len(set.tasks))
	for _, t := range set.tasks {
		signal.Track()
		go func() {
			if sem != nil {
				if err := sem.Acquire(runCtx, 1); err != nil {
					signal.Untrack()
					done <- outcome{task: t, err: err}
					return
				}
				defer sem.Release(1)
			}
			out := rn.execute(runCtx, t)
			signal.Untrack()
			done <- out
		}()
	}

	var (
		outcomes   = make([]outcome, 0, len(set.tasks))
		pending    = make(map[string]struct{}, len(set.tasks))
		masterErr  error
		parentDone = ctx.Done()
		sigDone    = signal.Done()
	)
	for _, t := range set.tasks {
		pending[t.name] = struct{}{}
	}
	ticker := time.NewTicker(rn.runner.poll)
	defer ticker.Stop()

	for len(pending) > 0 {
		select {
		case out := <-done:
			delete(pending, out.task.name)
			outcomes = append(outcomes, out)
			if rn.opts.ReportImmediately && out.err != nil && !isCancellation(out.err) {
				rn.reportFailure(ctx, out)
			}
		case <-parentDone:
			parentDone = nil
			if masterErr == nil {
				masterErr = ctx.Err()
				signal.Request()
				cancel()
			}
		case <-sigDone:
			sigDone = nil
			if masterErr == nil {
				masterErr = stop.ErrEndedByMaster
				cancel()
			}
		case <-ticker.C:
			rn.logWaiting(ctx, pending)
		}
	}

	return rn.total(ctx, set, outcomes, masterErr)
}

func (rn *runState) logWaiting(ctx context.Context, pending map[string]struct{}) {
	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)
	rn.runner.logger.Info(ctx, "still waiting on tasks",
		observe.Field{Key: "run.id", Value: rn.id},
		observe.Field{Key: "run.label", Value: rn.label},
		observe.Field{Key: "count", Value: len(names)},
		observe.Field{Key: "tasks", Value: strings.Join(names, ", ")},
	)
}

// total reduces a finished run to its Result or error. Master failures
// win over everything; otherwise one real task failure re-raises as
// *TaskError, several fold into an *AggregateError, and cancellations
// only count when nothing else went wrong.
func (rn *runState) total(ctx context.Context, set *taskSet, outcomes []outcome, masterErr error) (Result, error) {
	var (
		real      []outcome
		cancelled int
	)
	for _, out := range outcomes {
		if out.err == nil {
			continue
		}
		if isCancellation(out.err) {
			cancelled++
			continue
		}
		real = append(real, out)
	}

	if !rn.opts.ReportImmediately {
		for _, out := range real {
			rn.reportFailure(ctx, out)
		}
	}

	if masterErr != nil {
		return nil, &MasterError{Err: masterErr}
	}

	switch {
	case len(real) == 0 && cancelled > 0:
		return nil, &MasterError{Err: stop.ErrEndedByMaster}
	case len(real) > 0 && !rn.opts.Catch:
		if len(real) == 1 {
			return nil, taskErrorFor(real[0])
		}
		agg := &AggregateError{Failures: make(map[string]*TaskError, len(real))}
		for _, out := range real {
			agg.Failures[out.task.name] = taskErrorFor(out)
		}
		return nil, agg
	}

	return rn.fold(set, outcomes)
}
