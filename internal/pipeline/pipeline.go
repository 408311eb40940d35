// Package pipeline defines the provisioning and teardown stage lists for an
// environment: remote state backend, network, EKS cluster, storage addon and
// the Helm-installed monitoring stack.
package pipeline

import (
	"context"
	"time"

	"github.com/eksline/eksline/internal/infra"
	"github.com/eksline/eksline/internal/platform/awsapi"
	"github.com/eksline/eksline/internal/platform/helmpkg"
)

// ClusterQuerier is the read-side Kubernetes collaborator, satisfied by
// *kube.Client.
type ClusterQuerier interface {
	NodesReady(ctx context.Context, min int) (bool, error)
	PodsReady(ctx context.Context, namespace, labelSelector string) (bool, error)
	ServiceLoadBalancer(ctx context.Context, namespace, name string) (string, error)
	NamespaceExists(ctx context.Context, name string) (bool, error)
	EnsureNamespace(ctx context.Context, name string) error
	DeleteNamespace(ctx context.Context, name string) error
	StorageClassExists(ctx context.Context, name string) (bool, error)
}

// ChartInstaller is the Helm collaborator, satisfied by *helmpkg.Client.
type ChartInstaller interface {
	AddRepo(name, url string) error
	InstallOrUpgrade(rel helmpkg.Release) error
	IsInstalled(namespace, name string) (bool, error)
	Uninstall(namespace, name string) error
}

// Deps gathers the external collaborators the stages act on. Everything is
// an interface so scenario tests can substitute fakes.
type Deps struct {
	Buckets   awsapi.BucketAPI
	Clusters  awsapi.ClusterAPI
	Network   awsapi.NetworkAPI
	Terraform infra.Runner
	Kube      ClusterQuerier
	Helm      ChartInstaller

	// RefreshCredentials re-exports assumed-role credentials. Used as the
	// recovery action for reachability preconditions; nil when no role is
	// configured.
	RefreshCredentials func(ctx context.Context) error
}

// attemptsFor converts a total wait budget into a poll attempt count.
func attemptsFor(total, interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	attempts := int(total / interval)
	if attempts < 1 {
		return 1
	}
	return attempts
}
