// Package config defines the eksline environment configuration, loaded from
// an eksline.yaml file, and the environment-variable driven timeout knobs.
package config

// Config is the top-level environment configuration.
type Config struct {
	// EnvName is the logical environment name, used as a prefix for
	// AWS resource names and tags.
	EnvName string `mapstructure:"envName"`

	// Region is the AWS region the environment lives in.
	Region string `mapstructure:"region"`

	// StateBucket is the S3 bucket holding remote Terraform state.
	// Defaults to "<envName>-tf-state".
	StateBucket string `mapstructure:"stateBucket"`

	// AssumeRoleARN, if set, is exchanged for temporary credentials
	// before any stage runs.
	AssumeRoleARN string `mapstructure:"assumeRoleArn"`

	// SessionDurationSeconds bounds the lifetime of assumed credentials.
	SessionDurationSeconds int32 `mapstructure:"sessionDurationSeconds"`

	// KubeconfigPath points at the kubeconfig written for the cluster.
	KubeconfigPath string `mapstructure:"kubeconfig"`

	// Confirm selects the confirmation policy for destructive stages:
	// "auto" (always proceed), "prompt" (ask), or "deny" (never proceed).
	Confirm string `mapstructure:"confirm"`

	Terraform  TerraformConfig  `mapstructure:"terraform"`
	Cluster    ClusterConfig    `mapstructure:"cluster"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// TerraformConfig locates the declarative plans applied by the pipeline.
type TerraformConfig struct {
	// Binary is the terraform executable name or path.
	Binary string `mapstructure:"binary"`

	// NetworkDir is the working directory of the VPC/subnet plan.
	NetworkDir string `mapstructure:"networkDir"`

	// ClusterDir is the working directory of the EKS cluster plan.
	ClusterDir string `mapstructure:"clusterDir"`
}

// ClusterConfig describes the EKS cluster the pipeline manages.
type ClusterConfig struct {
	// Name is the EKS cluster name. Defaults to "<envName>-eks".
	Name string `mapstructure:"name"`

	// Version is the Kubernetes version requested from EKS.
	Version string `mapstructure:"version"`

	// NodegroupName is the managed nodegroup observed for readiness.
	NodegroupName string `mapstructure:"nodegroup"`

	// MinReadyNodes is the node count required before the cluster
	// counts as ready.
	MinReadyNodes int `mapstructure:"minReadyNodes"`

	// StorageAddon is the EKS add-on providing persistent volumes.
	StorageAddon string `mapstructure:"storageAddon"`

	// StorageClass is the storage class monitoring charts depend on.
	StorageClass string `mapstructure:"storageClass"`
}

// MonitoringConfig describes the Helm-installed monitoring stack.
type MonitoringConfig struct {
	// Namespace is where monitoring releases are installed.
	Namespace string `mapstructure:"namespace"`

	// ChartRepoName and ChartRepoURL identify the chart repository.
	ChartRepoName string `mapstructure:"chartRepoName"`
	ChartRepoURL  string `mapstructure:"chartRepoUrl"`

	Prometheus ReleaseConfig `mapstructure:"prometheus"`
	Grafana    GrafanaConfig `mapstructure:"grafana"`
}

// ReleaseConfig identifies a single Helm release.
type ReleaseConfig struct {
	Release string `mapstructure:"release"`
	Chart   string `mapstructure:"chart"`
	Version string `mapstructure:"version"`
}

// GrafanaConfig extends ReleaseConfig with Grafana-specific settings.
type GrafanaConfig struct {
	ReleaseConfig `mapstructure:",squash"`

	// RepoName and RepoURL identify the Grafana chart repository,
	// which is distinct from the Prometheus community repository.
	RepoName string `mapstructure:"repoName"`
	RepoURL  string `mapstructure:"repoUrl"`

	// AdminPassword seeds the Grafana admin account.
	AdminPassword string `mapstructure:"adminPassword"`

	// ServiceName is the Service probed for a load balancer hostname.
	// When empty, well-known candidates derived from the release name
	// are tried in order.
	ServiceName string `mapstructure:"serviceName"`
}

// Confirmation policy values for Config.Confirm.
const (
	ConfirmAuto   = "auto"
	ConfirmPrompt = "prompt"
	ConfirmDeny   = "deny"
)
