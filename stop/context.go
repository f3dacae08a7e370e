package stop

import (
	"context"
	"time"
)

type ctxKey struct{}

// With returns a context carrying s. Runners attach their signal to every
// task context so task bodies can call the package-level Sleep without
// knowing which runner invoked them.
func With(ctx context.Context, s *Signal) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the Signal carried by ctx, or Shared when none is.
func FromContext(ctx context.Context) *Signal {
	if s, ok := ctx.Value(ctxKey{}).(*Signal); ok && s != nil {
		return s
	}
	return shared
}

// Sleep is the checkpoint task bodies call instead of time.Sleep. It
// resolves the signal from ctx (falling back to Shared) and waits on it.
func Sleep(ctx context.Context, d time.Duration) error {
	return FromContext(ctx).Sleep(ctx, d)
}
