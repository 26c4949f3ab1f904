package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// newRootCmd builds the command tree; tests build a fresh one per run
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "previewsim",
		Short: "Mock API previewer with simulated event streams",
		Long: `Previewer-side simulator for platform APIs that provides:

- Dual-mode invocation: pass a trailing callback or receive a promise
- Simulated event streams driven by timers, one per namespace/event
- Argument validation that warns instead of failing
- Payloads from a built-in catalog or from Lua scripts

Ideal for exercising application code without a device.`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),

		// main() prints clean errors
		SilenceErrors: true,
	}

	root.AddCommand(newCallCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newListCmd())

	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolP("verbose", "V", false, "Verbose output (same as --log-level debug)")
	root.PersistentFlags().StringP("config", "c", "", "YAML config file")
	root.PersistentFlags().StringP("output", "o", "", "Output format: text or json (overrides config)")

	// Add -v as a short flag for --version
	root.Flags().BoolP("version", "v", false, "Show version information")
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
