package main

import (
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [namespace...]",
		Short: "List mocked namespaces with their APIs and events",
		Example: `  previewsim list
  previewsim list network -o json`,
		RunE: runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	sim, err := newSimulator(cmd)
	if err != nil {
		return err
	}
	defer sim.Close()

	names := args
	if len(names) == 0 {
		names = sim.facade.Namespaces()
	}

	for _, name := range names {
		ns, err := sim.namespace(name)
		if err != nil {
			return err
		}
		sim.printer.Namespace(name, sim.apis(name), ns.Events())
	}
	return nil
}
