package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/previewsim/internal/invoke"
)

// ErrMalformedAPI indicates a call target without the namespace.api shape
var ErrMalformedAPI = errors.New("API must be given as <namespace>.<api>")

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <namespace.api> [json-args...]",
		Short: "Invoke a mocked API and print its result",
		Long: `Invokes a mocked API the way application code would.

Each extra argument is parsed as JSON; anything that is not valid JSON is
passed as a plain string. By default the result is awaited through a promise,
--callback passes a trailing callback instead. Both deliver the same outcome.`,
		Example: `  previewsim call network.getType
  previewsim call bluetooth.setLocalName '"kitchen"' --callback
  previewsim call bluetooth.getState -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCall,
	}

	cmd.Flags().Bool("callback", false, "Deliver the result through a trailing callback")
	cmd.Flags().Duration("timeout", 5*time.Second, "How long to wait for the result")
	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	namespace, api, ok := strings.Cut(args[0], ".")
	if !ok || namespace == "" || api == "" {
		return fmt.Errorf("%w: %q", ErrMalformedAPI, args[0])
	}

	sim, err := newSimulator(cmd)
	if err != nil {
		return err
	}
	defer sim.Close()

	ns, err := sim.namespace(namespace)
	if err != nil {
		return err
	}

	params := parseArgs(args[1:])
	useCallback, _ := cmd.Flags().GetBool("callback")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var value any
	mode := invoke.ModePromise
	if useCallback {
		mode = invoke.ModeCallback
		done := make(chan struct{})
		ns.Call(api, append(params, func(cbErr error, v any) {
			value, err = v, cbErr
			close(done)
		})...)

		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", args[0], ctx.Err())
		}
	} else {
		value, err = ns.Call(api, params...).Await(ctx)
	}

	sim.printer.Result(args[0], mode, value, err)
	if err != nil {
		return fmt.Errorf("%s failed: %w", args[0], err)
	}
	return nil
}

// parseArgs decodes each argument as JSON, keeping non-JSON input as a string
func parseArgs(raw []string) []any {
	params := make([]any, 0, len(raw))
	for _, s := range raw {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			v = s
		}
		params = append(params, v)
	}
	return params
}
