package stop

import (
	"context"
	"sync"
	"time"
)

// Signal is a cooperative stop flag scoped to one orchestration domain
// (one Runner, or the whole process via Shared). Requesting a stop closes
// a broadcast channel that every blocked Sleep observes immediately.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Clearing: a requested stop is re-armed only once the outstanding-task
//     count reaches zero, so one run cannot clear a stop that another run's
//     tasks are still unwinding from.
type Signal struct {
	mu          sync.Mutex
	requested   bool
	ch          chan struct{}
	outstanding int
}

// New creates an un-requested Signal.
func New() *Signal {
	return &Signal{ch: make(chan struct{})}
}

var shared = New()

// Shared returns the process-wide default Signal. The package-level run
// entry points are bound to it; construct runners with their own Signal
// to isolate independent orchestration domains.
func Shared() *Signal {
	return shared
}

// Request asks every task in this signal's domain to end at its next
// checkpoint. Idempotent.
func (s *Signal) Request() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requested {
		return
	}
	s.requested = true
	close(s.ch)
}

// Requested reports whether a stop is currently requested.
func (s *Signal) Requested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// Done returns a channel that is closed while a stop is requested.
// The channel is replaced when the signal is cleared; callers should
// re-fetch it per wait rather than cache it.
func (s *Signal) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Track records one more outstanding task. Runners call it once per task
// before dispatch and pair it with Untrack when the task reports back.
func (s *Signal) Track() {
	s.mu.Lock()
	s.outstanding++
	s.mu.Unlock()
}

// Untrack records the completion of one outstanding task.
func (s *Signal) Untrack() {
	s.mu.Lock()
	if s.outstanding > 0 {
		s.outstanding--
	}
	s.mu.Unlock()
}

// Outstanding returns the number of tasks currently tracked.
func (s *Signal) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding
}

// ClearIfIdle re-arms the signal, but only when no task is outstanding.
// It reports whether the signal was cleared.
func (s *Signal) ClearIfIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.requested || s.outstanding > 0 {
		return false
	}
	s.requested = false
	s.ch = make(chan struct{})
	return true
}

// Sleep waits for d, returning nil once it elapses. It returns
// ErrEndedByMaster the instant a stop is requested on this signal, or
// ctx.Err() if the context is cancelled first.
func (s *Signal) Sleep(ctx context.Context, d time.Duration) error {
	done := s.Done()
	select {
	case <-done:
		return ErrEndedByMaster
	default:
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-done:
		return ErrEndedByMaster
	case <-ctx.Done():
		return ctx.Err()
	}
}
