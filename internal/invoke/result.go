package invoke

import (
	"fmt"
)

// Result is the outcome of a single completed invocation.
// Exactly one of Value or Err is meaningful: a non-nil Err marks a failure.
type Result struct {
	Value any
	Err   error
}

// Success wraps a value into a successful Result
func Success(value any) Result {
	return Result{Value: value}
}

// Failure wraps an error into a failed Result
func Failure(err error) Result {
	return Result{Err: err}
}

// Failed reports whether the result carries a failure descriptor
func (r Result) Failed() bool {
	return r.Err != nil
}

// BusinessError is the platform's opaque error payload, delivered as the first
// callback argument or as the promise rejection reason.
type BusinessError struct {
	Code    int
	Message string
	Data    any
}

// Error implements the error interface
func (e *BusinessError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("business error %d", e.Code)
	}
	return fmt.Sprintf("business error %d: %s", e.Code, e.Message)
}

// Is allows errors.Is to compare BusinessError values by Code
func (e *BusinessError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*BusinessError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
