package commands

import (
	"github.com/spf13/cobra"

	"github.com/eksline/eksline/cmd/eksline/handlers"
)

// Doctor returns the preflight diagnostics command.
//
// Doctor checks the local environment before any provisioning run: client
// tools on PATH and valid AWS credentials.
func Doctor() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check tools and credentials before provisioning",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Doctor(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: eksline.yaml)")

	return cmd
}
