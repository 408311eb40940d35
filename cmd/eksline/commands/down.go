package commands

import (
	"github.com/spf13/cobra"

	"github.com/eksline/eksline/cmd/eksline/handlers"
)

// Down returns the teardown command.
//
// The down command removes the environment in reverse dependency order:
// monitoring releases, storage addon, cluster, network, state backend.
// Every stage is confirmation-gated; a failed delete is recorded and the
// remaining stages are still attempted.
func Down() *cobra.Command {
	var configPath string
	var approve bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Tear down the environment and all associated resources",
		Long: `Tear down the environment in reverse dependency order.

This command deletes all resources associated with the environment:
  - Grafana and Prometheus Helm releases and the monitoring namespace
  - The EBS CSI storage addon
  - The EKS cluster and its nodegroups
  - The VPC network
  - The S3 remote-state bucket, including its objects

A failed delete does not stop the run; every remaining stage is still
attempted and the summary lists what may have been left behind.

Example:
  eksline down -c production.yaml --approve

WARNING: This operation is irreversible. All environment data will be lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Down(cmd.Context(), configPath, approve)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: eksline.yaml)")
	cmd.Flags().BoolVar(&approve, "approve", false, "Skip confirmation gates")

	return cmd
}
