// Package sandbox provides a single-goroutine affinity proxy for objects
// that must only ever be touched from one dedicated goroutine.
//
// Some instrument libraries bind session state to the OS thread or
// goroutine that created it. A Sandbox builds such an object on a
// dedicated home goroutine and routes every subsequent access through a
// request/reply exchange with that goroutine, so no caller ever touches
// the protected object directly.
//
// # Protocol
//
// New spawns the home goroutine, runs the factory on it, and waits for
// readiness. Each public operation (Get, Set, Call, Do) is one round
// trip: the request carries the operation, target, name, and arguments;
// the home goroutine performs the access by reflection and posts the
// result on a single-slot reply channel. Stop terminates the loop;
// pending and later callers receive ErrStopped.
//
// # Recursive wrapping
//
// A returned value can itself belong to the single-goroutine subsystem.
// The ShouldWrap predicate decides per value: when it reports true, the
// value is handed back as a child Sandbox sharing the same home
// goroutine, so the wrapped subsystem's entire call surface stays on one
// goroutine. Values the predicate rejects pass through unwrapped.
//
// # Usage
//
//	sb, err := sandbox.New(ctx, sandbox.Config{
//	    Name:    "dmm",
//	    Factory: func(ctx context.Context) (any, error) { return openSession() },
//	    ShouldWrap: func(v any) bool {
//	        _, ok := v.(*session.Handle)
//	        return ok
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer sb.Stop(ctx)
//
//	v, err := sb.Call(ctx, "Read", "MEAS:VOLT:DC?")
package sandbox
