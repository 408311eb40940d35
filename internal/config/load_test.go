package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "eksline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Minimal(t *testing.T) {
	path := writeConfig(t, `
envName: devops
region: eu-west-1
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "devops", cfg.EnvName)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "devops-tf-state", cfg.StateBucket)
	assert.Equal(t, "devops-eks", cfg.Cluster.Name)
	assert.Equal(t, "aws-ebs-csi-driver", cfg.Cluster.StorageAddon)
	assert.Equal(t, "gp2", cfg.Cluster.StorageClass)
	assert.Equal(t, "monitoring", cfg.Monitoring.Namespace)
	assert.Equal(t, "kube-prometheus-stack", cfg.Monitoring.Prometheus.Chart)
	assert.Equal(t, "grafana", cfg.Monitoring.Grafana.Release)
	assert.Equal(t, "https://grafana.github.io/helm-charts", cfg.Monitoring.Grafana.RepoURL)
	assert.Equal(t, ConfirmPrompt, cfg.Confirm)
	assert.Equal(t, "terraform", cfg.Terraform.Binary)
	assert.EqualValues(t, 3600, cfg.SessionDurationSeconds)
}

func TestLoadFile_Overrides(t *testing.T) {
	path := writeConfig(t, `
envName: prod
region: us-east-1
stateBucket: custom-state
confirm: auto
cluster:
  name: main-cluster
  nodegroup: workers
  minReadyNodes: 3
monitoring:
  namespace: observability
  grafana:
    release: graf
    adminPassword: hunter2
terraform:
  networkDir: infra/net
  clusterDir: infra/eks
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "custom-state", cfg.StateBucket)
	assert.Equal(t, ConfirmAuto, cfg.Confirm)
	assert.Equal(t, "main-cluster", cfg.Cluster.Name)
	assert.Equal(t, "workers", cfg.Cluster.NodegroupName)
	assert.Equal(t, 3, cfg.Cluster.MinReadyNodes)
	assert.Equal(t, "observability", cfg.Monitoring.Namespace)
	assert.Equal(t, "graf", cfg.Monitoring.Grafana.Release)
	assert.Equal(t, "hunter2", cfg.Monitoring.Grafana.AdminPassword)
	assert.Equal(t, "infra/net", cfg.Terraform.NetworkDir)
	assert.Equal(t, "infra/eks", cfg.Terraform.ClusterDir)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "envName: [unterminated")
	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFile_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
region: eu-west-1
`)
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "envName is required")
}

func TestValidate_BadConfirmPolicy(t *testing.T) {
	cfg := &Config{EnvName: "x", Region: "eu-west-1", Confirm: "maybe"}
	cfg.applyDefaults()
	cfg.Confirm = "maybe"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirm must be one of")
}

func TestLoadTimeouts_Defaults(t *testing.T) {
	timeouts := LoadTimeouts()

	assert.Equal(t, 10*time.Second, timeouts.PollInterval)
	assert.Equal(t, 60, timeouts.PollMaxAttempts)
	assert.Equal(t, 25*time.Minute, timeouts.ClusterWait)
	assert.Equal(t, 5*time.Minute, timeouts.HelmTimeout)
}

func TestLoadTimeouts_FromEnvironment(t *testing.T) {
	t.Setenv("EKSLINE_POLL_INTERVAL", "3s")
	t.Setenv("EKSLINE_POLL_MAX_ATTEMPTS", "7")

	timeouts := LoadTimeouts()

	assert.Equal(t, 3*time.Second, timeouts.PollInterval)
	assert.Equal(t, 7, timeouts.PollMaxAttempts)
}

func TestLoadTimeouts_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("EKSLINE_POLL_INTERVAL", "not-a-duration")
	t.Setenv("EKSLINE_POLL_MAX_ATTEMPTS", "-2")

	timeouts := LoadTimeouts()

	assert.Equal(t, 10*time.Second, timeouts.PollInterval)
	assert.Equal(t, 60, timeouts.PollMaxAttempts)
}
