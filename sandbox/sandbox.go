package sandbox

import (
	"context"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"

	"github.com/usnistgov/labbench-sub000/observe"
)

// State represents the sandbox lifecycle state.
type State int32

const (
	// StateStarting means the factory has not finished yet.
	StateStarting State = iota
	// StateReady means the home goroutine is serving requests.
	StateReady
	// StateStopped means the home goroutine has terminated.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config configures a sandbox.
type Config struct {
	// Name identifies the sandbox in logs.
	// Default: "sandbox"
	Name string

	// Factory builds the protected object. It runs on the home goroutine,
	// never on the caller's. Required.
	Factory func(ctx context.Context) (any, error)

	// ShouldWrap decides, per returned value, whether that value belongs
	// to the single-goroutine subsystem and must be wrapped in a child
	// sandbox sharing this home goroutine.
	// Default: nothing is wrapped.
	ShouldWrap func(v any) bool

	// Logger receives lifecycle events.
	// Default: no logging.
	Logger observe.Logger
}

type opKind int

const (
	opGet opKind = iota
	opSet
	opCall
	opDo
	opStop
)

// request is one round trip to the home goroutine. target carries the
// protected object so child sandboxes can share the loop.
type request struct {
	op     opKind
	target any
	name   string
	args   []any
	fn     func(obj any) (any, error)
	reply  chan response
}

type response struct {
	value any
	err   error
}

// core owns the home goroutine. Every Sandbox handle wrapping a value
// from the same subsystem shares one core.
type core struct {
	name     string
	requests chan request
	stopped  chan struct{}
	state    atomic.Int32
	wrap     func(any) bool
	logger   observe.Logger
}

// Sandbox proxies one protected object. All access routes through the
// home goroutine; the zero value is not usable, construct with New.
//
// Contract:
//   - Concurrency: safe for concurrent use; requests are served one at a
//     time in arrival order.
//   - Lifecycle: the ctx given to New bounds construction only. The home
//     goroutine runs until Stop, which affects every handle sharing it.
//   - Errors: operations after Stop return ErrStopped.
type Sandbox struct {
	core *core
	obj  any
}

type factoryResult struct {
	obj any
	err error
}

// New spawns the home goroutine, runs the factory on it, and waits for
// readiness. A factory error or panic fails construction and terminates
// the goroutine.
func New(ctx context.Context, config Config) (*Sandbox, error) {
	if config.Factory == nil {
		return nil, ErrNilFactory
	}
	if config.Name == "" {
		config.Name = "sandbox"
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	c := &core{
		name:     config.Name,
		requests: make(chan request),
		stopped:  make(chan struct{}),
		wrap:     config.ShouldWrap,
		logger:   config.Logger,
	}
	c.state.Store(int32(StateStarting))

	ready := make(chan factoryResult, 1)
	go c.loop(ctx, config.Factory, ready)

	select {
	case r := <-ready:
		if r.err != nil {
			return nil, r.err
		}
		return &Sandbox{core: c, obj: r.obj}, nil
	case <-ctx.Done():
		// The loop may still be running the factory. Reap it once the
		// factory settles so the goroutine does not outlive the caller.
		go func() {
			if r := <-ready; r.err == nil {
				_, _ = c.roundTrip(context.Background(), request{op: opStop})
			}
		}()
		return nil, ctx.Err()
	}
}

// loop is the home goroutine: it builds the protected object, then serves
// requests one at a time until told to stop.
func (c *core) loop(ctx context.Context, factory func(context.Context) (any, error), ready chan<- factoryResult) {
	defer close(c.stopped)

	obj, err := runFactory(ctx, factory)
	if err != nil {
		c.state.Store(int32(StateStopped))
		c.logger.Warn(ctx, "sandbox factory failed",
			observe.Field{Key: "sandbox", Value: c.name},
			observe.Field{Key: "error", Value: err.Error()})
		ready <- factoryResult{err: err}
		return
	}
	c.state.Store(int32(StateReady))
	c.logger.Debug(ctx, "sandbox ready",
		observe.Field{Key: "sandbox", Value: c.name})
	ready <- factoryResult{obj: obj}

	for req := range c.requests {
		if req.op == opStop {
			c.state.Store(int32(StateStopped))
			req.reply <- response{}
			break
		}
		req.reply <- c.handle(req)
	}

	c.logger.Debug(ctx, "sandbox stopped",
		observe.Field{Key: "sandbox", Value: c.name})
}

// runFactory executes the factory with panic capture, so a panicking
// constructor fails New instead of crashing the goroutine.
func runFactory(ctx context.Context, factory func(context.Context) (any, error)) (obj any, err error) {
	rec := panics.Try(func() {
		obj, err = factory(ctx)
	})
	if rec != nil {
		return nil, rec.AsError()
	}
	return obj, err
}

// handle performs one request against its target. Panic capture keeps a
// misbehaving access from killing the loop.
func (c *core) handle(req request) response {
	var resp response
	rec := panics.Try(func() {
		resp = dispatch(req)
	})
	if rec != nil {
		return response{err: rec.AsError()}
	}
	return resp
}

func dispatch(req request) response {
	switch req.op {
	case opGet:
		v, err := getField(req.target, req.name)
		return response{value: v, err: err}
	case opSet:
		return response{err: setField(req.target, req.name, req.args[0])}
	case opCall:
		vals, err := callMethod(req.target, req.name, req.args)
		return response{value: vals, err: err}
	case opDo:
		v, err := req.fn(req.target)
		return response{value: v, err: err}
	}
	return response{}
}

// roundTrip sends one request and waits for its reply. The request
// channel is unbuffered, so a successful send means the loop accepted the
// request and will reply exactly once.
func (c *core) roundTrip(ctx context.Context, req request) (any, error) {
	if State(c.state.Load()) == StateStopped {
		return nil, ErrStopped
	}
	req.reply = make(chan response, 1)

	select {
	case c.requests <- req:
	case <-c.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp.value, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get reads the named exported field of the protected object.
func (s *Sandbox) Get(ctx context.Context, field string) (any, error) {
	v, err := s.core.roundTrip(ctx, request{op: opGet, target: s.obj, name: field})
	if err != nil {
		return nil, err
	}
	return s.wrapValue(v), nil
}

// Set assigns the named exported field of the protected object. The
// object must have been built as a pointer for its fields to be settable.
func (s *Sandbox) Set(ctx context.Context, field string, value any) error {
	_, err := s.core.roundTrip(ctx, request{
		op:     opSet,
		target: s.obj,
		name:   field,
		args:   []any{s.unwrap(value)},
	})
	return err
}

// Call invokes the named method with args. A trailing error return is
// split off and returned as the error; one remaining value is returned
// directly and several come back as []any, each wrapped per ShouldWrap.
// Child sandbox arguments sharing this home goroutine are unwrapped to
// their protected objects.
func (s *Sandbox) Call(ctx context.Context, method string, args ...any) (any, error) {
	sent := make([]any, len(args))
	for i, a := range args {
		sent[i] = s.unwrap(a)
	}

	raw, err := s.core.roundTrip(ctx, request{op: opCall, target: s.obj, name: method, args: sent})
	if err != nil {
		return nil, err
	}
	vals, _ := raw.([]any)
	switch len(vals) {
	case 0:
		return nil, nil
	case 1:
		return s.wrapValue(vals[0]), nil
	default:
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = s.wrapValue(v)
		}
		return out, nil
	}
}

// Do runs fn against the protected object on the home goroutine. It is
// the typed escape hatch for access the reflection surface cannot
// express; fn must not leak the object to another goroutine.
func (s *Sandbox) Do(ctx context.Context, fn func(obj any) (any, error)) (any, error) {
	v, err := s.core.roundTrip(ctx, request{op: opDo, target: s.obj, fn: fn})
	if err != nil {
		return nil, err
	}
	return s.wrapValue(v), nil
}

// Stop terminates the home goroutine. It is idempotent; stopping an
// already-stopped sandbox returns nil. Every handle sharing the home
// goroutine stops with it.
func (s *Sandbox) Stop(ctx context.Context) error {
	if s.State() == StateStopped {
		return nil
	}
	_, err := s.core.roundTrip(ctx, request{op: opStop})
	if err == ErrStopped {
		return nil
	}
	return err
}

// State reports the lifecycle state of the home goroutine.
func (s *Sandbox) State() State {
	return State(s.core.state.Load())
}

// Name returns the configured sandbox name.
func (s *Sandbox) Name() string {
	return s.core.name
}

// wrapValue applies the ShouldWrap predicate, handing subsystem values
// back as child sandboxes on the same home goroutine.
func (s *Sandbox) wrapValue(v any) any {
	if v != nil && s.core.wrap != nil && s.core.wrap(v) {
		return &Sandbox{core: s.core, obj: v}
	}
	return v
}

// unwrap substitutes a child sandbox argument with its protected object,
// so wrapped values can be passed back into calls.
func (s *Sandbox) unwrap(v any) any {
	if sb, ok := v.(*Sandbox); ok && sb.core == s.core {
		return sb.obj
	}
	return v
}
