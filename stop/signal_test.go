package stop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSignal_RequestIdempotent(t *testing.T) {
	s := New()

	if s.Requested() {
		t.Fatal("new signal should not be requested")
	}

	s.Request()
	s.Request() // second call must not panic on the closed channel

	if !s.Requested() {
		t.Error("Requested() = false after Request()")
	}

	select {
	case <-s.Done():
	default:
		t.Error("Done() not closed after Request()")
	}
}

func TestSignal_SleepCompletes(t *testing.T) {
	s := New()

	start := time.Now()
	if err := s.Sleep(context.Background(), 30*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Sleep returned after %v, want >= 30ms", elapsed)
	}
}

func TestSignal_SleepInterrupted(t *testing.T) {
	s := New()

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Request()
	}()

	start := time.Now()
	err := s.Sleep(context.Background(), time.Second)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrEndedByMaster) {
		t.Fatalf("Sleep() error = %v, want ErrEndedByMaster", err)
	}
	if elapsed >= time.Second {
		t.Errorf("Sleep did not observe the request early (took %v)", elapsed)
	}
}

func TestSignal_SleepAlreadyRequested(t *testing.T) {
	s := New()
	s.Request()

	start := time.Now()
	err := s.Sleep(context.Background(), time.Second)

	if !errors.Is(err, ErrEndedByMaster) {
		t.Fatalf("Sleep() error = %v, want ErrEndedByMaster", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Sleep should return immediately when a stop is pending")
	}
}

func TestSignal_SleepContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := s.Sleep(ctx, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() error = %v, want context.Canceled", err)
	}
}

func TestSignal_ClearGatedOnOutstanding(t *testing.T) {
	s := New()

	s.Track()
	s.Request()

	if s.ClearIfIdle() {
		t.Error("ClearIfIdle() cleared with a task outstanding")
	}
	if !s.Requested() {
		t.Error("signal lost its request without being cleared")
	}

	s.Untrack()

	if !s.ClearIfIdle() {
		t.Error("ClearIfIdle() = false with no tasks outstanding")
	}
	if s.Requested() {
		t.Error("Requested() = true after clear")
	}

	// A fresh request must use the re-armed channel.
	s.Request()
	select {
	case <-s.Done():
	default:
		t.Error("Done() not closed after re-request")
	}
}

func TestSignal_ClearIfIdleWithoutRequest(t *testing.T) {
	s := New()
	if s.ClearIfIdle() {
		t.Error("ClearIfIdle() = true on an un-requested signal")
	}
}

func TestSignal_UntrackFloor(t *testing.T) {
	s := New()
	s.Untrack() // must not underflow
	if got := s.Outstanding(); got != 0 {
		t.Errorf("Outstanding() = %d, want 0", got)
	}
}

func TestFromContext_Fallback(t *testing.T) {
	if got := FromContext(context.Background()); got != Shared() {
		t.Error("FromContext without a signal should return Shared()")
	}

	s := New()
	ctx := With(context.Background(), s)
	if got := FromContext(ctx); got != s {
		t.Error("FromContext did not return the attached signal")
	}
}

func TestSleep_UsesContextSignal(t *testing.T) {
	s := New()
	ctx := With(context.Background(), s)

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Request()
	}()

	err := Sleep(ctx, time.Second)
	if !errors.Is(err, ErrEndedByMaster) {
		t.Fatalf("Sleep() error = %v, want ErrEndedByMaster", err)
	}
}
