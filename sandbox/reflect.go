package sandbox

import (
	"fmt"
	"reflect"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// getField reads the named exported struct field, pointers dereferenced.
func getField(target any, name string) (any, error) {
	v := reflect.ValueOf(target)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: %s on nil %T", ErrNoField, name, target)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s on %T", ErrNoField, name, target)
	}
	f := v.FieldByName(name)
	if !f.IsValid() || !f.CanInterface() {
		return nil, fmt.Errorf("%w: %T.%s", ErrNoField, target, name)
	}
	return f.Interface(), nil
}

// setField assigns the named exported struct field. The protected object
// must be a pointer for its fields to be addressable.
func setField(target any, name string, value any) error {
	v := reflect.ValueOf(target)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return fmt.Errorf("%w: %s on nil %T", ErrNoField, name, target)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s on %T", ErrNoField, name, target)
	}
	f := v.FieldByName(name)
	if !f.IsValid() {
		return fmt.Errorf("%w: %T.%s", ErrNoField, target, name)
	}
	if !f.CanSet() {
		return fmt.Errorf("%w: %T.%s", ErrNotSettable, target, name)
	}
	in, err := coerce(value, f.Type())
	if err != nil {
		return fmt.Errorf("%w: %T.%s: %v", ErrNotSettable, target, name, err)
	}
	f.Set(in)
	return nil
}

// callMethod invokes the named method with args, splitting a trailing
// error return off the result values.
func callMethod(target any, name string, args []any) ([]any, error) {
	m := reflect.ValueOf(target).MethodByName(name)
	if !m.IsValid() {
		return nil, fmt.Errorf("%w: %T.%s", ErrNoMethod, target, name)
	}
	t := m.Type()

	in, err := buildArgs(t, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %T.%s: %v", ErrBadArity, target, name, err)
	}

	outs := m.Call(in)

	// A trailing error return becomes the operation's error.
	if n := len(outs); n > 0 && t.Out(n-1).Implements(errType) {
		if e, _ := outs[n-1].Interface().(error); e != nil {
			return nil, e
		}
		outs = outs[:n-1]
	}

	vals := make([]any, len(outs))
	for i, o := range outs {
		vals[i] = o.Interface()
	}
	return vals, nil
}

func buildArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("have %d args, want at least %d", len(args), fixed)
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("have %d args, want %d", len(args), fixed)
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if t.IsVariadic() && i >= fixed {
			pt = t.In(fixed).Elem()
		} else {
			pt = t.In(i)
		}
		v, err := coerce(a, pt)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %v", i, err)
		}
		in[i] = v
	}
	return in, nil
}

// coerce adapts one caller-supplied value to the parameter or field type,
// allowing the implicit conversions a direct Go call would (untyped-style
// numeric widening comes through as a convertible concrete type).
func coerce(value any, to reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch to.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map,
			reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
			return reflect.Zero(to), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", to)
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(to) {
		return v, nil
	}
	if v.Type().ConvertibleTo(to) {
		return v.Convert(to), nil
	}
	return reflect.Value{}, fmt.Errorf("%T is not assignable to %s", value, to)
}
