package run

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"unsafe"
)

type setKind int

const (
	kindNone setKind = iota
	kindCallable
	kindManager
)

// task is one resolved dispatch entry. Exactly one of fn and mgr is set
// at classification time; Enter later installs an fn that drives mgr.
type task struct {
	name     string
	explicit bool
	fn       Func
	mgr      Manager
	origin   any
}

// taskSet is the classified form of one dispatch's inputs: uniform tasks
// (all callables or all managers) plus transparent result maps.
type taskSet struct {
	kind  setKind
	tasks []*task
	maps  []map[string]any
}

var funcType = reflect.TypeOf(Func(nil))

// asFunc matches the callable forms: Func itself, the equivalent unnamed
// signature, and defined function types sharing that underlying
// signature.
func asFunc(v any) (Func, bool) {
	switch f := v.(type) {
	case Func:
		return f, true
	case func(context.Context) (any, error):
		return f, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func && rv.Type().ConvertibleTo(funcType) {
		return rv.Convert(funcType).Interface().(Func), true
	}
	return nil, false
}

// buildTaskSet classifies every input, collapses duplicate targets, and
// resolves names. All configuration errors surface here, before any
// goroutine starts.
func buildTaskSet(inputs []any) (*taskSet, error) {
	set := &taskSet{}
	for i, in := range inputs {
		if err := set.add(i, in); err != nil {
			return nil, err
		}
	}
	set.dedup()
	if err := set.resolveNames(); err != nil {
		return nil, err
	}
	return set, nil
}

func (ts *taskSet) add(i int, in any) error {
	if in == nil {
		return fmt.Errorf("%w: input %d", ErrNilInput, i)
	}
	switch v := in.(type) {
	case *Call:
		if v == nil {
			return fmt.Errorf("%w: input %d", ErrNilInput, i)
		}
		return ts.addTarget(i, v.target, v.name, v.explicit)
	case Result:
		ts.maps = append(ts.maps, v)
		return nil
	case map[string]any:
		ts.maps = append(ts.maps, v)
		return nil
	}
	return ts.addTarget(i, in, "", false)
}

func (ts *taskSet) addTarget(i int, target any, name string, explicit bool) error {
	if target == nil {
		return fmt.Errorf("%w: input %d", ErrNilInput, i)
	}
	fn, isFunc := asFunc(target)
	mgr, isMgr := target.(Manager)
	switch {
	case isFunc && isMgr:
		return fmt.Errorf("%w: %T", ErrAmbiguousInput, target)
	case isFunc:
		if fn == nil {
			return fmt.Errorf("%w: input %d", ErrNilInput, i)
		}
		if err := ts.setKind(kindCallable); err != nil {
			return err
		}
		if name == "" {
			name = funcName(target)
		}
		ts.tasks = append(ts.tasks, &task{name: name, explicit: explicit, fn: fn, origin: target})
	case isMgr:
		if err := ts.setKind(kindManager); err != nil {
			return err
		}
		if name == "" {
			name = managerName(mgr)
		}
		ts.tasks = append(ts.tasks, &task{name: name, explicit: explicit, mgr: mgr, origin: target})
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedInput, target)
	}
	return nil
}

func (ts *taskSet) setKind(k setKind) error {
	if ts.kind == kindNone {
		ts.kind = k
		return nil
	}
	if ts.kind != k {
		return ErrMixedInputs
	}
	return nil
}

// dedup collapses entries whose targets are identical, keeping the first.
// Identity is the target value itself: the same function passed twice is
// one task, while distinct closures from one factory stay distinct even
// though they share compiled code. Value-typed managers never collapse.
func (ts *taskSet) dedup() {
	if len(ts.tasks) < 2 {
		return
	}
	seen := make(map[uintptr]bool, len(ts.tasks))
	kept := ts.tasks[:0]
	for _, t := range ts.tasks {
		if key, ok := t.identity(); ok {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		kept = append(kept, t)
	}
	ts.tasks = kept
}

func (t *task) identity() (uintptr, bool) {
	switch reflect.ValueOf(t.origin).Kind() {
	case reflect.Func, reflect.Pointer, reflect.Chan, reflect.Map, reflect.UnsafePointer:
		return dataWord(t.origin), true
	}
	return 0, false
}

// dataWord returns the interface's data pointer. Pointer-shaped targets
// (managers, channels) store the pointer itself there; functions store the
// address of their closure object, which distinguishes two closures built
// by the same factory where the shared code pointer cannot.
func dataWord(v any) uintptr {
	return uintptr((*[2]unsafe.Pointer)(unsafe.Pointer(&v))[1])
}

// resolveNames reserves explicit names first (collisions are an error),
// then settles derived names: a derived name kept by exactly one task
// stays bare, while colliding groups take _0, _1, ... suffixes in input
// order, skipping names already taken.
func (ts *taskSet) resolveNames() error {
	taken := make(map[string]bool, len(ts.tasks))
	for _, t := range ts.tasks {
		if !t.explicit {
			continue
		}
		if taken[t.name] {
			return fmt.Errorf("%w: %q", ErrDuplicateName, t.name)
		}
		taken[t.name] = true
	}

	groups := make(map[string][]*task)
	var order []string
	for _, t := range ts.tasks {
		if t.explicit {
			continue
		}
		if _, ok := groups[t.name]; !ok {
			order = append(order, t.name)
		}
		groups[t.name] = append(groups[t.name], t)
	}

	for _, base := range order {
		group := groups[base]
		if len(group) == 1 && !taken[base] {
			taken[base] = true
			continue
		}
		next := 0
		for _, t := range group {
			for {
				candidate := base + "_" + strconv.Itoa(next)
				next++
				if !taken[candidate] {
					t.name = candidate
					taken[candidate] = true
					break
				}
			}
		}
	}
	return nil
}

// refusesConcurrency returns the first target that opts out of concurrent
// dispatch.
func (ts *taskSet) refusesConcurrency() (string, bool) {
	for _, t := range ts.tasks {
		if cs, ok := t.origin.(ConcurrencySupporter); ok && !cs.SupportsConcurrency() {
			return t.name, true
		}
	}
	return "", false
}

func (ts *taskSet) requireCallables() error {
	if ts.kind == kindManager {
		return fmt.Errorf("%w: managers must be composed with Enter", ErrUnsupportedInput)
	}
	return nil
}

func (ts *taskSet) requireManagers() error {
	if ts.kind == kindCallable {
		return fmt.Errorf("%w: callables must be dispatched with Concurrently or Sequentially", ErrUnsupportedInput)
	}
	if len(ts.maps) > 0 {
		return fmt.Errorf("%w: map inputs cannot enter a scope", ErrUnsupportedInput)
	}
	return nil
}
