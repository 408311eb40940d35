package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file looked up when none is given.
const DefaultConfigFile = "eksline.yaml"

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills in values derivable from the environment name.
func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = "eu-west-1"
	}
	if c.StateBucket == "" && c.EnvName != "" {
		c.StateBucket = c.EnvName + "-tf-state"
	}
	if c.SessionDurationSeconds == 0 {
		c.SessionDurationSeconds = 3600
	}
	if c.KubeconfigPath == "" {
		c.KubeconfigPath = "kubeconfig"
	}
	if c.Confirm == "" {
		c.Confirm = ConfirmPrompt
	}

	if c.Terraform.Binary == "" {
		c.Terraform.Binary = "terraform"
	}
	if c.Terraform.NetworkDir == "" {
		c.Terraform.NetworkDir = "terraform/network"
	}
	if c.Terraform.ClusterDir == "" {
		c.Terraform.ClusterDir = "terraform/cluster"
	}

	if c.Cluster.Name == "" && c.EnvName != "" {
		c.Cluster.Name = c.EnvName + "-eks"
	}
	if c.Cluster.NodegroupName == "" {
		c.Cluster.NodegroupName = "default"
	}
	if c.Cluster.MinReadyNodes == 0 {
		c.Cluster.MinReadyNodes = 1
	}
	if c.Cluster.StorageAddon == "" {
		c.Cluster.StorageAddon = "aws-ebs-csi-driver"
	}
	if c.Cluster.StorageClass == "" {
		c.Cluster.StorageClass = "gp2"
	}

	m := &c.Monitoring
	if m.Namespace == "" {
		m.Namespace = "monitoring"
	}
	if m.ChartRepoName == "" {
		m.ChartRepoName = "prometheus-community"
	}
	if m.ChartRepoURL == "" {
		m.ChartRepoURL = "https://prometheus-community.github.io/helm-charts"
	}
	if m.Prometheus.Release == "" {
		m.Prometheus.Release = "prometheus"
	}
	if m.Prometheus.Chart == "" {
		m.Prometheus.Chart = "kube-prometheus-stack"
	}
	if m.Grafana.Release == "" {
		m.Grafana.Release = "grafana"
	}
	if m.Grafana.Chart == "" {
		m.Grafana.Chart = "grafana"
	}
	if m.Grafana.RepoName == "" {
		m.Grafana.RepoName = "grafana"
	}
	if m.Grafana.RepoURL == "" {
		m.Grafana.RepoURL = "https://grafana.github.io/helm-charts"
	}
}
