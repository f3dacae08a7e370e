package sandbox

import "errors"

// Sentinel errors for sandbox operations.
var (
	// ErrNilFactory is returned by New when no factory is configured.
	ErrNilFactory = errors.New("sandbox: factory is nil")

	// ErrStopped is returned when the home goroutine has terminated.
	ErrStopped = errors.New("sandbox: stopped")

	// ErrNoField is returned when the named field does not exist.
	ErrNoField = errors.New("sandbox: no such field")

	// ErrNoMethod is returned when the named method does not exist.
	ErrNoMethod = errors.New("sandbox: no such method")

	// ErrNotSettable is returned when a field cannot be assigned.
	ErrNotSettable = errors.New("sandbox: field not settable")

	// ErrBadArity is returned when a call's arguments do not match the
	// method signature.
	ErrBadArity = errors.New("sandbox: wrong argument count")
)
