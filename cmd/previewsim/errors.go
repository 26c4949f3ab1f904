package main

import (
	"errors"
	"fmt"

	"github.com/srg/previewsim/internal/invoke"
	"github.com/srg/previewsim/internal/provider"
	"github.com/srg/previewsim/pkg/config"
)

// Command-level errors
var (
	// ErrUnknownNamespace indicates a namespace no installer provides
	ErrUnknownNamespace = errors.New("unknown namespace")

	// ErrSubscriptionRejected indicates the event arguments failed validation
	ErrSubscriptionRejected = errors.New("subscription rejected")

	// ErrNoStreams indicates watch was given neither an event nor configured streams
	ErrNoStreams = errors.New("no streams to watch")
)

// FormatUserError turns internal errors into short messages for the terminal
func FormatUserError(err error) string {
	var bizErr *invoke.BusinessError
	var scriptErr *provider.ScriptError

	switch {
	case errors.As(err, &bizErr):
		return fmt.Sprintf("mock API returned error %d: %s", bizErr.Code, bizErr.Message)
	case errors.As(err, &scriptErr):
		return fmt.Sprintf("payload script for %s failed (%s): %s", scriptErr.API, scriptErr.Type, scriptErr.Message)
	case errors.Is(err, provider.ErrUnknownAPI):
		return fmt.Sprintf("%v (see 'previewsim list')", err)
	case errors.Is(err, config.ErrConfigUnreadable), errors.Is(err, config.ErrConfigMalformed), errors.Is(err, config.ErrInvalidConfig):
		return fmt.Sprintf("configuration problem: %v", err)
	default:
		return err.Error()
	}
}
