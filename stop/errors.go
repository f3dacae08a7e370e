package stop

import "errors"

// ErrEndedByMaster is returned from Sleep (and surfaced by task bodies)
// when a stop request ends the wait early. It marks an intentional,
// orchestrator-driven unwind rather than a task fault: runners exclude it
// from failure reports, and retry wrappers refuse to retry it.
var ErrEndedByMaster = errors.New("stop: ended by master")
