package pipeline

import (
	"github.com/eksline/eksline/internal/config"
	"github.com/eksline/eksline/internal/orchestrate"
	"github.com/eksline/eksline/internal/platform/awsapi"
)

// Down builds the teardown pipeline: the provisioning chain in reverse.
// Every stage is destructive and therefore confirmation-gated. No stage
// is fatal: a failed delete leaves residue but must not stop the
// remaining cleanup from being attempted.
func Down(cfg *config.Config, t *config.Timeouts, deps Deps) []*orchestrate.Stage {
	return []*orchestrate.Stage{
		{
			Name:        "uninstall-monitoring",
			Destructive: true,
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				// With the cluster gone the Helm and namespace probes can
				// only fail; there is nothing left to uninstall.
				absent, err := awsapi.ClusterAbsent(ctx, deps.Clusters, cfg.Cluster.Name)
				if err != nil {
					return false, err
				}
				if absent {
					return true, nil
				}
				grafana, err := deps.Helm.IsInstalled(cfg.Monitoring.Namespace, cfg.Monitoring.Grafana.Release)
				if err != nil {
					return false, err
				}
				prometheus, err := deps.Helm.IsInstalled(cfg.Monitoring.Namespace, cfg.Monitoring.Prometheus.Release)
				if err != nil {
					return false, err
				}
				exists, err := deps.Kube.NamespaceExists(ctx, cfg.Monitoring.Namespace)
				if err != nil {
					return false, err
				}
				return !grafana && !prometheus && !exists, nil
			},
			Apply: func(ctx *orchestrate.Context) error {
				if err := deps.Helm.Uninstall(cfg.Monitoring.Namespace, cfg.Monitoring.Grafana.Release); err != nil {
					return err
				}
				if err := deps.Helm.Uninstall(cfg.Monitoring.Namespace, cfg.Monitoring.Prometheus.Release); err != nil {
					return err
				}
				return deps.Kube.DeleteNamespace(ctx, cfg.Monitoring.Namespace)
			},
		},
		{
			Name:        "remove-storage-addon",
			Destructive: true,
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				exists, err := awsapi.AddonExists(ctx, deps.Clusters, cfg.Cluster.Name, cfg.Cluster.StorageAddon)
				return !exists, err
			},
			Apply: func(ctx *orchestrate.Context) error {
				return awsapi.RemoveAddon(ctx, deps.Clusters, cfg.Cluster.Name, cfg.Cluster.StorageAddon)
			},
		},
		{
			Name:        "delete-cluster",
			Destructive: true,
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				return awsapi.ClusterAbsent(ctx, deps.Clusters, cfg.Cluster.Name)
			},
			Apply: func(ctx *orchestrate.Context) error {
				return deps.Terraform.Destroy(ctx, cfg.Terraform.ClusterDir)
			},
			ReadinessCheck: func(ctx *orchestrate.Context) (bool, error) {
				return awsapi.ClusterAbsent(ctx, deps.Clusters, cfg.Cluster.Name)
			},
			PollInterval:    t.EndpointInterval,
			MaxPollAttempts: attemptsFor(t.ClusterWait, t.EndpointInterval),
		},
		{
			Name:        "destroy-network",
			Destructive: true,
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				return awsapi.VPCAbsent(ctx, deps.Network, vpcName(cfg))
			},
			Apply: func(ctx *orchestrate.Context) error {
				return deps.Terraform.Destroy(ctx, cfg.Terraform.NetworkDir)
			},
		},
		{
			Name:        "delete-state-backend",
			Destructive: true,
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				exists, err := awsapi.BucketExists(ctx, deps.Buckets, cfg.StateBucket)
				return !exists, err
			},
			Apply: func(ctx *orchestrate.Context) error {
				return awsapi.DeleteBucket(ctx, deps.Buckets, cfg.StateBucket)
			},
		},
	}
}
