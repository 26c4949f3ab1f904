// Package guard validates the arguments of registration-style calls (on/off,
// subscribe/unsubscribe) against a declared schema.
//
// Validation never panics and never throws: a malformed call produces an
// Outcome carrying a Violation that the caller reports and then ignores.
package guard

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/srg/previewsim/internal/invoke"
)

// Kind is the expected shape of one positional argument
type Kind int

const (
	KindAny Kind = iota
	KindEventName
	KindString
	KindNumber
	KindBool
	KindObject
	KindFunction
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindEventName:
		return "event name"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	case KindFunction:
		return "function"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Slot describes one positional argument
type Slot struct {
	Name string
	Kind Kind
}

// Schema declares the accepted shape of a registration call.
// MaxArity of zero means len(Slots).
type Schema struct {
	Name     string
	Slots    []Slot
	MinArity int
	MaxArity int
	Events   []string
}

func (s Schema) maxArity() int {
	if s.MaxArity > 0 {
		return s.MaxArity
	}
	return len(s.Slots)
}

// Reason classifies a violation
type Reason string

const (
	ReasonArity        Reason = "wrong argument count"
	ReasonUnknownEvent Reason = "unknown event name"
	ReasonType         Reason = "wrong type"
)

// Violation describes why a call was rejected.
// Position is the zero-based argument index, or -1 for arity violations.
type Violation struct {
	Schema   string
	Reason   Reason
	Position int
	Detail   string
}

// Error implements the error interface
func (v *Violation) Error() string {
	if v == nil {
		return "<nil>"
	}
	msg := string(v.Reason)
	if v.Reason == ReasonType {
		msg = fmt.Sprintf("wrong type at position %d", v.Position+1)
	}
	if v.Schema != "" {
		msg = v.Schema + ": " + msg
	}
	if v.Detail != "" {
		msg += ": " + v.Detail
	}
	return msg
}

// Is allows errors.Is to compare violations by Reason
func (v *Violation) Is(target error) bool {
	if v == nil {
		return false
	}
	t, ok := target.(*Violation)
	if !ok {
		return false
	}
	return v.Reason == t.Reason
}

// Sentinels for errors.Is checks
var (
	ErrArity        = &Violation{Reason: ReasonArity}
	ErrUnknownEvent = &Violation{Reason: ReasonUnknownEvent}
	ErrType         = &Violation{Reason: ReasonType}
)

// Outcome is the result of a validation: Ok when Violation is nil.
type Outcome struct {
	Violation *Violation
}

// OK reports whether the call passed validation
func (o Outcome) OK() bool {
	return o.Violation == nil
}

// Err returns the violation as an error, or nil
func (o Outcome) Err() error {
	if o.Violation == nil {
		return nil
	}
	return o.Violation
}

// Validate checks args against schema: arity first, then each slot left to right.
func Validate(args []any, schema Schema) Outcome {
	n := len(args)
	if n < schema.MinArity || n > schema.maxArity() {
		return Outcome{Violation: &Violation{
			Schema:   schema.Name,
			Reason:   ReasonArity,
			Position: -1,
			Detail:   fmt.Sprintf("got %d, want %s", n, arityRange(schema.MinArity, schema.maxArity())),
		}}
	}

	for i, arg := range args {
		if i >= len(schema.Slots) {
			break
		}
		slot := schema.Slots[i]
		if !matches(slot.Kind, arg) {
			return Outcome{Violation: &Violation{
				Schema:   schema.Name,
				Reason:   ReasonType,
				Position: i,
				Detail:   fmt.Sprintf("%s must be %s, got %T", slotName(slot, i), slot.Kind, arg),
			}}
		}
		if slot.Kind == KindEventName && len(schema.Events) > 0 && !slices.Contains(schema.Events, arg.(string)) {
			return Outcome{Violation: &Violation{
				Schema:   schema.Name,
				Reason:   ReasonUnknownEvent,
				Position: i,
				Detail:   fmt.Sprintf("%q", arg),
			}}
		}
	}

	return Outcome{}
}

// Report logs a violation as a warning and reports whether the call may proceed.
// It never panics, even with a nil logger.
func Report(logger *logrus.Logger, outcome Outcome) bool {
	if outcome.OK() {
		return true
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"schema":   outcome.Violation.Schema,
			"reason":   string(outcome.Violation.Reason),
			"position": outcome.Violation.Position,
		}).Warn(outcome.Violation.Error())
	}
	return false
}

func matches(kind Kind, v any) bool {
	switch kind {
	case KindAny:
		return true
	case KindEventName, KindString:
		_, ok := v.(string)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindNumber:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		}
		return false
	case KindObject:
		if v == nil {
			return false
		}
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Map, reflect.Struct:
			return true
		case reflect.Pointer:
			return !rv.IsNil() && rv.Elem().Kind() == reflect.Struct
		}
		return false
	case KindFunction:
		return invoke.IsCallable(v)
	case KindMap:
		// string-keyed maps only; options are looked up by name
		t := reflect.TypeOf(v)
		return t != nil && t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
	default:
		return false
	}
}

func slotName(slot Slot, i int) string {
	if slot.Name != "" {
		return slot.Name
	}
	return fmt.Sprintf("argument %d", i+1)
}

func arityRange(lo, hi int) string {
	if lo == hi {
		return fmt.Sprintf("%d", lo)
	}
	return fmt.Sprintf("%d..%d", lo, hi)
}
