package commands

import (
	"github.com/spf13/cobra"

	"github.com/eksline/eksline/cmd/eksline/handlers"
)

// Up returns the command that provisions the environment.
//
// Optional flags:
//
//	--config, -c: Path to environment configuration YAML file (default: eksline.yaml)
//	--approve:    Proceed through all confirmation gates without prompting
func Up() *cobra.Command {
	var configPath string
	var approve bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Provision the environment",
		Long: `Provision the environment as an ordered pipeline of idempotent stages:
remote-state backend, network, EKS cluster, storage addon and the
Prometheus/Grafana monitoring stack.

Each stage first re-queries the external system; stages whose desired
state is already in place are skipped, so the command is safe to re-run
after a partial failure.

Examples:
  # Provision using eksline.yaml in the current directory
  eksline up

  # Provision using a specific config file
  eksline up -c production.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Up(cmd.Context(), configPath, approve)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: eksline.yaml)")
	cmd.Flags().BoolVar(&approve, "approve", false, "Skip confirmation gates")

	return cmd
}
