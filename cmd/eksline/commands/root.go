// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the eksline CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eksline",
		Short: "Provision an EKS DevOps environment with monitoring",
	}

	cmd.AddCommand(Up())
	cmd.AddCommand(Down())
	cmd.AddCommand(Status())
	cmd.AddCommand(Doctor())
	cmd.AddCommand(Version())

	return cmd
}
