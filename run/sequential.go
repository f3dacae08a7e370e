package run

import (
	"context"

	"github.com/usnistgov/labbench-sub000/stop"
)

// sequential executes the tasks in input order on the calling goroutine.
// The context and the stop signal are checked between tasks, so a pending
// stop prevents every remaining task; the first failure ends the sequence
// unless Catch is set.
func (rn *runState) sequential(ctx context.Context, set *taskSet) (Result, error) {
	signal := rn.runner.signal
	defer signal.ClearIfIdle()

	taskCtx := stop.With(ctx, signal)
	outcomes := make([]outcome, 0, len(set.tasks))
	for _, t := range set.tasks {
		if err := ctx.Err(); err != nil {
			return nil, &MasterError{Err: err}
		}
		if signal.Requested() {
			return nil, &MasterError{Err: stop.ErrEndedByMaster}
		}

		signal.Track()
		out := rn.execute(taskCtx, t)
		signal.Untrack()

		if out.err != nil {
			if isCancellation(out.err) {
				if err := ctx.Err(); err != nil {
					return nil, &MasterError{Err: err}
				}
				return nil, &MasterError{Err: stop.ErrEndedByMaster}
			}
			rn.reportFailure(ctx, out)
			if !rn.opts.Catch {
				return nil, taskErrorFor(out)
			}
			continue
		}
		outcomes = append(outcomes, out)
	}
	return rn.fold(set, outcomes)
}
