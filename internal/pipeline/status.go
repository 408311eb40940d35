package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/eksline/eksline/internal/config"
	"github.com/eksline/eksline/internal/platform/awsapi"
)

// ResourceStatus is the observed state of one environment resource.
type ResourceStatus struct {
	Name   string
	Ready  bool
	Detail string
}

// EnvironmentStatus is a point-in-time health report, built by re-querying
// every external system. Nothing is cached between runs.
type EnvironmentStatus struct {
	Resources []ResourceStatus
}

// Healthy reports whether every resource is ready.
func (s EnvironmentStatus) Healthy() bool {
	for _, r := range s.Resources {
		if !r.Ready {
			return false
		}
	}
	return true
}

// CollectStatus queries the current state of every resource the pipelines
// manage. Query errors are reported as status details, not returned: a
// partially unreachable environment still gets a report.
func CollectStatus(ctx context.Context, cfg *config.Config, deps Deps) EnvironmentStatus {
	var status EnvironmentStatus
	add := func(name string, ready bool, detail string, err error) {
		if err != nil {
			ready = false
			detail = err.Error()
		}
		status.Resources = append(status.Resources, ResourceStatus{Name: name, Ready: ready, Detail: detail})
	}

	exists, err := awsapi.BucketExists(ctx, deps.Buckets, cfg.StateBucket)
	add("state-backend", exists, fmt.Sprintf("s3://%s", cfg.StateBucket), err)

	exists, err = awsapi.VPCExists(ctx, deps.Network, vpcName(cfg))
	add("network", exists, vpcName(cfg), err)

	clusterState, err := awsapi.ClusterStatus(ctx, deps.Clusters, cfg.Cluster.Name)
	if clusterState == "" && err == nil {
		clusterState = "absent"
	}
	add("cluster", clusterState == "ACTIVE", clusterState, err)

	active, err := awsapi.AddonActive(ctx, deps.Clusters, cfg.Cluster.Name, cfg.Cluster.StorageAddon)
	add("storage-addon", active, cfg.Cluster.StorageAddon, err)

	installed, err := deps.Helm.IsInstalled(cfg.Monitoring.Namespace, cfg.Monitoring.Prometheus.Release)
	add("prometheus", installed, cfg.Monitoring.Prometheus.Release, err)

	installed, err = deps.Helm.IsInstalled(cfg.Monitoring.Namespace, cfg.Monitoring.Grafana.Release)
	detail := cfg.Monitoring.Grafana.Release
	if installed {
		for _, name := range grafanaServiceCandidates(cfg.Monitoring.Grafana) {
			host, herr := deps.Kube.ServiceLoadBalancer(ctx, cfg.Monitoring.Namespace, name)
			if herr == nil && host != "" {
				detail = "http://" + host
				break
			}
		}
	}
	add("grafana", installed, detail, err)

	return status
}

// Print writes the status report as an aligned two-column table.
func (s EnvironmentStatus) Print(w io.Writer) {
	for _, r := range s.Resources {
		indicator := "✅"
		if !r.Ready {
			indicator = "❌"
		}
		fmt.Fprintf(w, "%s %-22s %s\n", indicator, r.Name, r.Detail)
	}
}
