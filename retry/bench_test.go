package retry

import (
	"context"
	"testing"
	"time"
)

// BenchmarkRetrier_NoRetries measures retry overhead on immediate success.
func BenchmarkRetrier_NoRetries(b *testing.B) {
	r := New(Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

// BenchmarkTimedRetrier_NoRetries measures the time-bounded happy path.
func BenchmarkTimedRetrier_NoRetries(b *testing.B) {
	r := NewTimed(TimedConfig{
		Timeout:      time.Second,
		InitialDelay: 100 * time.Millisecond,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

// BenchmarkBackoffDelay measures delay computation.
func BenchmarkBackoffDelay(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = backoffDelay(5, 100*time.Millisecond, 30*time.Second, 2.0, true)
	}
}
