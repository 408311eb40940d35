package pipeline

import (
	"context"
	"fmt"

	"github.com/eksline/eksline/internal/config"
	"github.com/eksline/eksline/internal/orchestrate"
	"github.com/eksline/eksline/internal/platform/awsapi"
	"github.com/eksline/eksline/internal/platform/helmpkg"
	"github.com/eksline/eksline/internal/poll"
	"github.com/eksline/eksline/internal/preflight"
)

// vpcName returns the Name tag the network plan assigns to the VPC.
func vpcName(cfg *config.Config) string {
	return cfg.EnvName + "-vpc"
}

// grafanaServiceCandidates returns the Service names probed for a load
// balancer hostname, in order. The Grafana chart names its Service after
// the release; kube-prometheus-stack appends "-grafana".
func grafanaServiceCandidates(cfg config.GrafanaConfig) []string {
	if cfg.ServiceName != "" {
		return []string{cfg.ServiceName}
	}
	return []string{cfg.Release, cfg.Release + "-grafana"}
}

// clusterReachableCheck verifies the control plane answers. When an
// assumed-role session expires mid-run, refreshing the credentials once
// and re-probing recovers instead of failing the stage.
func clusterReachableCheck(cfg *config.Config, deps Deps) preflight.Check {
	return preflight.Check{
		Name: "cluster-reachable",
		Probe: func(ctx context.Context) error {
			active, err := awsapi.ClusterActive(ctx, deps.Clusters, cfg.Cluster.Name)
			if err != nil {
				return err
			}
			if !active {
				return fmt.Errorf("cluster %s is not active", cfg.Cluster.Name)
			}
			return nil
		},
		Recover: deps.RefreshCredentials,
	}
}

// Up builds the provisioning pipeline. Stage order is a dependency chain:
// state backend before any terraform run, network before cluster, cluster
// before anything installed into it.
func Up(cfg *config.Config, t *config.Timeouts, deps Deps) []*orchestrate.Stage {
	clusterReachable := clusterReachableCheck(cfg, deps)

	return []*orchestrate.Stage{
		{
			Name:  "state-backend",
			Fatal: true,
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				return awsapi.BucketExists(ctx, deps.Buckets, cfg.StateBucket)
			},
			Apply: func(ctx *orchestrate.Context) error {
				_, err := awsapi.EnsureBucket(ctx, deps.Buckets, cfg.StateBucket, cfg.Region)
				return err
			},
		},
		{
			Name:  "network",
			Fatal: true,
			Preconditions: []preflight.Check{preflight.ToolPresent(preflight.Tool{
				Name:       cfg.Terraform.Binary,
				Required:   true,
				InstallURL: "https://developer.hashicorp.com/terraform/install",
			})},
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				return awsapi.VPCExists(ctx, deps.Network, vpcName(cfg))
			},
			Apply: func(ctx *orchestrate.Context) error {
				if err := deps.Terraform.Init(ctx, cfg.Terraform.NetworkDir); err != nil {
					return err
				}
				return deps.Terraform.Apply(ctx, cfg.Terraform.NetworkDir)
			},
			ReadinessCheck: func(ctx *orchestrate.Context) (bool, error) {
				return awsapi.VPCExists(ctx, deps.Network, vpcName(cfg))
			},
		},
		{
			Name:  "cluster",
			Fatal: true,
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				active, err := awsapi.ClusterActive(ctx, deps.Clusters, cfg.Cluster.Name)
				if err != nil || !active {
					return false, err
				}
				return awsapi.NodegroupActive(ctx, deps.Clusters, cfg.Cluster.Name, cfg.Cluster.NodegroupName)
			},
			Apply: func(ctx *orchestrate.Context) error {
				if err := deps.Terraform.Init(ctx, cfg.Terraform.ClusterDir); err != nil {
					return err
				}
				return deps.Terraform.Apply(ctx, cfg.Terraform.ClusterDir)
			},
			// A half-created cluster is the most expensive thing to leak.
			Rollback: func(ctx *orchestrate.Context) error {
				return deps.Terraform.Destroy(ctx, cfg.Terraform.ClusterDir)
			},
			ReadinessCheck: func(ctx *orchestrate.Context) (bool, error) {
				ready, err := deps.Kube.NodesReady(ctx, cfg.Cluster.MinReadyNodes)
				if err != nil && awsapi.IsAccessDenied(err) {
					return false, poll.Fatal(err)
				}
				if err != nil {
					// The API server may not answer yet; treat as not ready.
					return false, nil
				}
				return ready, nil
			},
			PollInterval:    t.EndpointInterval,
			MaxPollAttempts: attemptsFor(t.ClusterWait, t.EndpointInterval),
		},
		{
			Name:          "storage-addon",
			Fatal:         true,
			Preconditions: []preflight.Check{clusterReachable},
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				return awsapi.AddonActive(ctx, deps.Clusters, cfg.Cluster.Name, cfg.Cluster.StorageAddon)
			},
			Apply: func(ctx *orchestrate.Context) error {
				_, err := awsapi.EnsureAddon(ctx, deps.Clusters, cfg.Cluster.Name, cfg.Cluster.StorageAddon, "")
				return err
			},
			ReadinessCheck: func(ctx *orchestrate.Context) (bool, error) {
				return awsapi.AddonActive(ctx, deps.Clusters, cfg.Cluster.Name, cfg.Cluster.StorageAddon)
			},
		},
		{
			Name: "monitoring-namespace",
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				return deps.Kube.NamespaceExists(ctx, cfg.Monitoring.Namespace)
			},
			Apply: func(ctx *orchestrate.Context) error {
				return deps.Kube.EnsureNamespace(ctx, cfg.Monitoring.Namespace)
			},
		},
		{
			Name: "prometheus",
			Preconditions: []preflight.Check{{
				Name: "storageclass:" + cfg.Cluster.StorageClass,
				Probe: func(ctx context.Context) error {
					exists, err := deps.Kube.StorageClassExists(ctx, cfg.Cluster.StorageClass)
					if err != nil {
						return err
					}
					if !exists {
						return fmt.Errorf("storage class %s not found", cfg.Cluster.StorageClass)
					}
					return nil
				},
			}},
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				return deps.Helm.IsInstalled(cfg.Monitoring.Namespace, cfg.Monitoring.Prometheus.Release)
			},
			Apply: func(ctx *orchestrate.Context) error {
				if err := deps.Helm.AddRepo(cfg.Monitoring.ChartRepoName, cfg.Monitoring.ChartRepoURL); err != nil {
					return err
				}
				return deps.Helm.InstallOrUpgrade(helmpkg.Release{
					Namespace: cfg.Monitoring.Namespace,
					Name:      cfg.Monitoring.Prometheus.Release,
					RepoURL:   cfg.Monitoring.ChartRepoURL,
					Chart:     cfg.Monitoring.Prometheus.Chart,
					Version:   cfg.Monitoring.Prometheus.Version,
					Values:    helmpkg.PrometheusValues(cfg.Cluster.StorageClass),
					Timeout:   t.HelmTimeout,
				})
			},
			ReadinessCheck: func(ctx *orchestrate.Context) (bool, error) {
				return deps.Kube.PodsReady(ctx, cfg.Monitoring.Namespace, "app.kubernetes.io/name=prometheus")
			},
		},
		{
			Name: "grafana",
			IdempotencyCheck: func(ctx *orchestrate.Context) (bool, error) {
				return deps.Helm.IsInstalled(cfg.Monitoring.Namespace, cfg.Monitoring.Grafana.Release)
			},
			Apply: func(ctx *orchestrate.Context) error {
				if err := deps.Helm.AddRepo(cfg.Monitoring.Grafana.RepoName, cfg.Monitoring.Grafana.RepoURL); err != nil {
					return err
				}
				return deps.Helm.InstallOrUpgrade(helmpkg.Release{
					Namespace: cfg.Monitoring.Namespace,
					Name:      cfg.Monitoring.Grafana.Release,
					RepoURL:   cfg.Monitoring.Grafana.RepoURL,
					Chart:     cfg.Monitoring.Grafana.Chart,
					Version:   cfg.Monitoring.Grafana.Version,
					Values:    helmpkg.GrafanaValues(cfg.Monitoring.Grafana),
					Timeout:   t.HelmTimeout,
				})
			},
			// Ready once any candidate Service has a public endpoint.
			ReadinessCheck: func(ctx *orchestrate.Context) (bool, error) {
				for _, name := range grafanaServiceCandidates(cfg.Monitoring.Grafana) {
					host, err := deps.Kube.ServiceLoadBalancer(ctx, cfg.Monitoring.Namespace, name)
					if err != nil {
						return false, err
					}
					if host != "" {
						ctx.Observer.Printf("[grafana] endpoint http://%s", host)
						return true, nil
					}
				}
				return false, nil
			},
			PollInterval:    t.EndpointInterval,
			MaxPollAttempts: t.EndpointAttempts,
		},
	}
}
