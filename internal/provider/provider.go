package provider

import (
	"errors"
	"fmt"

	"github.com/srg/previewsim/internal/invoke"
)

var (
	// ErrUnknownAPI is returned for an API no provider knows about
	ErrUnknownAPI = errors.New("unknown api")

	// ErrProducerFailed wraps a provider that panicked while producing a result
	ErrProducerFailed = errors.New("producer failed")
)

// Provider supplies the mock payload for one API invocation.
// Implementations must be safe for concurrent use.
type Provider interface {
	Produce(api string, args []any) invoke.Result
}

// Func adapts a plain function to Provider
type Func func(api string, args []any) invoke.Result

// Produce implements Provider
func (f Func) Produce(api string, args []any) invoke.Result {
	return f(api, args)
}

// Chain tries providers in order and returns the first result that is not ErrUnknownAPI.
func Chain(providers ...Provider) Provider {
	return Func(func(api string, args []any) invoke.Result {
		for _, p := range providers {
			if p == nil {
				continue
			}
			r := p.Produce(api, args)
			if !errors.Is(r.Err, ErrUnknownAPI) {
				return r
			}
		}
		return invoke.Failure(unknown(api))
	})
}

func unknown(api string) error {
	return fmt.Errorf("%w: %s", ErrUnknownAPI, api)
}
