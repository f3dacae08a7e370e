package observe

import (
	"context"
	"sync"
	"time"
)

// Stopwatch times a stretch of work and logs the elapsed wall time once when
// stopped. Typical use brackets an instrument connect or a measurement sweep:
//
//	sw := observe.NewStopwatch(log, "connect instruments")
//	defer sw.Stop(ctx)
//
// Contract:
// - Concurrency: safe for concurrent use; only the first Stop logs.
// - Errors: logging is best-effort and must not panic.
type Stopwatch struct {
	logger Logger
	desc   string
	start  time.Time

	mu      sync.Mutex
	stopped bool
	elapsed time.Duration
}

// NewStopwatch starts a stopwatch that logs through the given logger.
// A nil logger is replaced with NopLogger; timing still works.
func NewStopwatch(logger Logger, desc string) *Stopwatch {
	if logger == nil {
		logger = NopLogger()
	}
	return &Stopwatch{
		logger: logger,
		desc:   desc,
		start:  time.Now(),
	}
}

// Elapsed returns the wall time since the stopwatch started, or the frozen
// duration after Stop.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return s.elapsed
	}
	return time.Since(s.start)
}

// Stop freezes the stopwatch, logs the elapsed time at info level, and
// returns the duration. Subsequent calls return the frozen duration without
// logging again.
func (s *Stopwatch) Stop(ctx context.Context) time.Duration {
	s.mu.Lock()
	if s.stopped {
		d := s.elapsed
		s.mu.Unlock()
		return d
	}
	s.stopped = true
	s.elapsed = time.Since(s.start)
	d := s.elapsed
	s.mu.Unlock()

	s.logger.Info(ctx, s.desc+" finished",
		Field{Key: "duration_ms", Value: float64(d.Milliseconds())},
	)
	return d
}
