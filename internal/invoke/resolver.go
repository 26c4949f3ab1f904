package invoke

import "reflect"

// Callback is the two-channel (error, value) completion function a caller may
// pass as the trailing argument of a dual-mode API.
type Callback func(err error, value any)

// Listener receives event emissions; it is the value-only counterpart of Callback.
type Listener func(value any)

// ModeKind tells how the caller wants the result delivered
type ModeKind int

const (
	ModePromise ModeKind = iota
	ModeCallback
)

func (k ModeKind) String() string {
	switch k {
	case ModePromise:
		return "promise"
	case ModeCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// DeliveryMode is a tagged union: Callback is set only when Kind is ModeCallback.
type DeliveryMode struct {
	Kind     ModeKind
	Callback Callback
}

// Resolve classifies an invocation by its trailing argument.
//
// A callable trailing argument selects callback delivery and is stripped from
// the returned parameters; anything else (including no arguments at all)
// selects promise delivery with every argument kept as a parameter.
func Resolve(args []any) (DeliveryMode, []any) {
	if n := len(args); n > 0 {
		if cb, ok := AsCallback(args[n-1]); ok {
			return DeliveryMode{Kind: ModeCallback, Callback: cb}, args[:n-1]
		}
	}
	return DeliveryMode{Kind: ModePromise}, args
}

// AsCallback converts any non-nil function into a Callback.
// Value-only listeners are accepted too and simply never see the error;
// other signatures are adapted through reflection (see adapt).
func AsCallback(v any) (Callback, bool) {
	switch fn := v.(type) {
	case Callback:
		return fn, fn != nil
	case func(error, any):
		return Callback(fn), fn != nil
	case Listener:
		if fn == nil {
			return nil, false
		}
		return func(_ error, value any) { fn(value) }, true
	case func(any):
		if fn == nil {
			return nil, false
		}
		return func(_ error, value any) { fn(value) }, true
	default:
		return adapt(v)
	}
}

// AsListener converts any non-nil function into a value-only Listener.
// Two-channel callbacks receive a nil error for every emission.
func AsListener(v any) (Listener, bool) {
	switch fn := v.(type) {
	case Listener:
		return fn, fn != nil
	case func(any):
		return Listener(fn), fn != nil
	case Callback:
		if fn == nil {
			return nil, false
		}
		return func(value any) { fn(nil, value) }, true
	case func(error, any):
		if fn == nil {
			return nil, false
		}
		return func(value any) { fn(nil, value) }, true
	default:
		cb, ok := adapt(v)
		if !ok {
			return nil, false
		}
		return func(value any) { cb(nil, value) }, true
	}
}

// IsCallable reports whether v is a non-nil function
func IsCallable(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Func && !rv.IsNil()
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// adapt wraps an arbitrary function. A leading error-typed parameter receives
// the error and the next parameter the value; without one the first parameter
// receives the value. Values that do not fit a parameter arrive as its zero
// value; remaining parameters are zero and results are discarded.
func adapt(v any) (Callback, bool) {
	if !IsCallable(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	t := rv.Type()

	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
	}

	return func(err error, value any) {
		in := make([]reflect.Value, fixed)
		next := 0
		if fixed > 0 && t.In(0) == errorType {
			in[0] = argument(t.In(0), err)
			next = 1
		}
		if next < fixed {
			in[next] = argument(t.In(next), value)
			next++
		}
		for ; next < fixed; next++ {
			in[next] = reflect.Zero(t.In(next))
		}
		rv.Call(in)
	}, true
}

func argument(t reflect.Type, v any) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	av := reflect.ValueOf(v)
	if av.Type().AssignableTo(t) {
		return av
	}
	return reflect.Zero(t)
}
