package commands

import (
	"github.com/spf13/cobra"

	"github.com/eksline/eksline/cmd/eksline/handlers"
)

// Status returns the command that reports environment health.
//
// Status never mutates anything: it re-queries every external system and
// prints the observed state of each managed resource.
func Status() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the observed state of every managed resource",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: eksline.yaml)")

	return cmd
}
