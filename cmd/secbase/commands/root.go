// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the secbase CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secbase",
		Short: "Generate and validate cloud security baselines",
		Long: `secbase generates security baseline requirements for a cloud service,
validates each one against real, disposable test infrastructure, refines
failing configurations, and guarantees that every provisioned resource is
reclaimed before the session ends.`,
	}

	cmd.AddCommand(Run())
	cmd.AddCommand(Generate())
	cmd.AddCommand(Cleanup())
	cmd.AddCommand(Version())

	return cmd
}
