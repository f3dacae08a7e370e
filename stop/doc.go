// Package stop provides the cooperative cancellation primitive shared by
// the task runners: a Signal carrying a stop request plus outstanding-task
// accounting, and an interruptible Sleep that observes the signal, the
// context, or the timer, whichever fires first.
//
// A stop request never terminates anything by force. Long-running task
// bodies opt in by sleeping with stop.Sleep (or selecting on Signal.Done)
// instead of time.Sleep; the request surfaces as ErrEndedByMaster, which
// callers must let propagate.
package stop
