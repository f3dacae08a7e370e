package run

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/usnistgov/labbench-sub000/stop"
)

// findLogEntry scans JSON log lines for the first entry with the given
// msg.
func findLogEntry(t *testing.T, buf *bytes.Buffer, msg string) map[string]any {
	t.Helper()
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", scanner.Text(), err)
		}
		if entry["msg"] == msg {
			return entry
		}
	}
	return nil
}

func TestNewRunner_Defaults(t *testing.T) {
	r, err := NewRunner(RunnerConfig{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if r.signal != stop.Shared() {
		t.Error("default signal should be stop.Shared()")
	}
	if r.poll != DefaultPollInterval {
		t.Errorf("poll = %v, want %v", r.poll, DefaultPollInterval)
	}
	if r.logger == nil || r.mw == nil {
		t.Error("logger and middleware should never be nil")
	}
}

func TestNewRunner_CustomSignal(t *testing.T) {
	sig := stop.New()
	r, err := NewRunner(RunnerConfig{Signal: sig, PollInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if r.Signal() != sig {
		t.Error("Signal() should return the configured signal")
	}
	if r.poll != 10*time.Millisecond {
		t.Errorf("poll = %v, want 10ms", r.poll)
	}
}

func TestDefault_BoundToSharedSignal(t *testing.T) {
	if Default().Signal() != stop.Shared() {
		t.Error("the default runner must be bound to stop.Shared()")
	}
}

func TestCallSite_Format(t *testing.T) {
	got := callSite(1)
	if !strings.HasPrefix(got, "runner_test.go:") {
		t.Errorf("callSite = %q, want runner_test.go:<line>", got)
	}
}

func TestSleep_Passthrough(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 10ms", elapsed)
	}
}

func TestSleep_InterruptedByStop(t *testing.T) {
	sig := stop.New()
	sig.Request()
	ctx := stop.With(context.Background(), sig)
	if err := Sleep(ctx, time.Second); err != stop.ErrEndedByMaster {
		t.Errorf("Sleep = %v, want ErrEndedByMaster", err)
	}
}
