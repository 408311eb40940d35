package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eksline/eksline/internal/config"
	"github.com/eksline/eksline/internal/orchestrate"
	"github.com/eksline/eksline/internal/platform/helmpkg"
	"github.com/eksline/eksline/internal/preflight"
)

func notFound() error {
	return &smithy.GenericAPIError{Code: "ResourceNotFoundException"}
}

// fakeEnv simulates the external world: AWS control plane, terraform-managed
// resources, the cluster and the Helm release store. Apply actions flip its
// state so readiness predicates observe the result.
type fakeEnv struct {
	bucketExists    bool
	vpcExists       bool
	clusterStatus   ekstypes.ClusterStatus // "" means absent
	nodegroupActive bool
	addonExists     bool
	nodesReady      int
	storageClass    bool
	namespaces      map[string]bool
	releases        map[string]bool
	lbHostnames     map[string]string

	applied   []string
	destroyed []string

	applyErr map[string]error

	// helmErr makes every Helm call fail, as when the cluster behind the
	// kubeconfig no longer exists.
	helmErr error

	// credsExpired makes EKS calls fail until RefreshCredentials clears it.
	credsExpired bool
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		namespaces:  map[string]bool{},
		releases:    map[string]bool{},
		lbHostnames: map[string]string{},
		applyErr:    map[string]error{},
	}
}

// --- awsapi.BucketAPI ---

func (f *fakeEnv) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.bucketExists {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeEnv) CreateBucket(_ context.Context, _ *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.bucketExists = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeEnv) PutBucketVersioning(_ context.Context, _ *s3.PutBucketVersioningInput, _ ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error) {
	return &s3.PutBucketVersioningOutput{}, nil
}

func (f *fakeEnv) ListObjectVersions(_ context.Context, _ *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	if !f.bucketExists {
		return nil, &smithy.GenericAPIError{Code: "NoSuchBucket"}
	}
	return &s3.ListObjectVersionsOutput{IsTruncated: aws.Bool(false)}, nil
}

func (f *fakeEnv) DeleteObject(_ context.Context, _ *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeEnv) DeleteBucket(_ context.Context, _ *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	f.bucketExists = false
	return &s3.DeleteBucketOutput{}, nil
}

// --- awsapi.ClusterAPI ---

func (f *fakeEnv) DescribeCluster(_ context.Context, _ *eks.DescribeClusterInput, _ ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
	if f.credsExpired {
		return nil, &smithy.GenericAPIError{Code: "ExpiredToken"}
	}
	if f.clusterStatus == "" {
		return nil, notFound()
	}
	return &eks.DescribeClusterOutput{Cluster: &ekstypes.Cluster{Status: f.clusterStatus}}, nil
}

func (f *fakeEnv) DescribeNodegroup(_ context.Context, _ *eks.DescribeNodegroupInput, _ ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error) {
	if !f.nodegroupActive {
		return nil, notFound()
	}
	return &eks.DescribeNodegroupOutput{Nodegroup: &ekstypes.Nodegroup{Status: ekstypes.NodegroupStatusActive}}, nil
}

func (f *fakeEnv) DescribeAddon(_ context.Context, _ *eks.DescribeAddonInput, _ ...func(*eks.Options)) (*eks.DescribeAddonOutput, error) {
	if !f.addonExists {
		return nil, notFound()
	}
	return &eks.DescribeAddonOutput{Addon: &ekstypes.Addon{Status: ekstypes.AddonStatusActive}}, nil
}

func (f *fakeEnv) CreateAddon(_ context.Context, _ *eks.CreateAddonInput, _ ...func(*eks.Options)) (*eks.CreateAddonOutput, error) {
	f.addonExists = true
	f.storageClass = true
	return &eks.CreateAddonOutput{}, nil
}

func (f *fakeEnv) DeleteAddon(_ context.Context, _ *eks.DeleteAddonInput, _ ...func(*eks.Options)) (*eks.DeleteAddonOutput, error) {
	if !f.addonExists {
		return nil, notFound()
	}
	f.addonExists = false
	return &eks.DeleteAddonOutput{}, nil
}

// --- awsapi.NetworkAPI ---

func (f *fakeEnv) DescribeVpcs(_ context.Context, _ *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	if !f.vpcExists {
		return &ec2.DescribeVpcsOutput{}, nil
	}
	return &ec2.DescribeVpcsOutput{Vpcs: []ec2types.Vpc{{VpcId: aws.String("vpc-0abc")}}}, nil
}

// --- infra.Runner ---

func (f *fakeEnv) Init(_ context.Context, _ string) error { return nil }

func (f *fakeEnv) Apply(_ context.Context, dir string) error {
	if err := f.applyErr[dir]; err != nil {
		return err
	}
	f.applied = append(f.applied, dir)
	switch dir {
	case "tf/network":
		f.vpcExists = true
	case "tf/cluster":
		f.clusterStatus = ekstypes.ClusterStatusActive
		f.nodegroupActive = true
		f.nodesReady = 2
	}
	return nil
}

func (f *fakeEnv) Destroy(_ context.Context, dir string) error {
	if err := f.applyErr["destroy:"+dir]; err != nil {
		return err
	}
	f.destroyed = append(f.destroyed, dir)
	switch dir {
	case "tf/network":
		f.vpcExists = false
	case "tf/cluster":
		f.clusterStatus = ""
		f.nodegroupActive = false
		f.nodesReady = 0
	}
	return nil
}

func (f *fakeEnv) Output(_ context.Context, _ string) (map[string]string, error) {
	return map[string]string{}, nil
}

// --- ClusterQuerier ---

func (f *fakeEnv) NodesReady(_ context.Context, min int) (bool, error) {
	return f.nodesReady >= min, nil
}

func (f *fakeEnv) PodsReady(_ context.Context, _, selector string) (bool, error) {
	return f.releases["prometheus"] && selector == "app.kubernetes.io/name=prometheus", nil
}

func (f *fakeEnv) ServiceLoadBalancer(_ context.Context, _, name string) (string, error) {
	return f.lbHostnames[name], nil
}

func (f *fakeEnv) NamespaceExists(_ context.Context, name string) (bool, error) {
	return f.namespaces[name], nil
}

func (f *fakeEnv) EnsureNamespace(_ context.Context, name string) error {
	f.namespaces[name] = true
	return nil
}

func (f *fakeEnv) DeleteNamespace(_ context.Context, name string) error {
	delete(f.namespaces, name)
	return nil
}

func (f *fakeEnv) StorageClassExists(_ context.Context, _ string) (bool, error) {
	return f.storageClass, nil
}

// --- ChartInstaller ---

func (f *fakeEnv) AddRepo(_, _ string) error { return nil }

func (f *fakeEnv) InstallOrUpgrade(rel helmpkg.Release) error {
	if err := f.applyErr["helm:"+rel.Name]; err != nil {
		return err
	}
	f.releases[rel.Name] = true
	if rel.Name == "grafana" {
		f.lbHostnames["grafana"] = "abc.elb.amazonaws.com"
	}
	return nil
}

func (f *fakeEnv) IsInstalled(_, name string) (bool, error) {
	if f.helmErr != nil {
		return false, f.helmErr
	}
	return f.releases[name], nil
}

func (f *fakeEnv) Uninstall(_, name string) error {
	if f.helmErr != nil {
		return f.helmErr
	}
	if err := f.applyErr["uninstall:"+name]; err != nil {
		return err
	}
	delete(f.releases, name)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		EnvName:     "devops",
		Region:      "eu-west-1",
		StateBucket: "devops-tf-state",
		Terraform: config.TerraformConfig{
			// A binary guaranteed to be on PATH wherever the tests run.
			Binary:     "go",
			NetworkDir: "tf/network",
			ClusterDir: "tf/cluster",
		},
		Cluster: config.ClusterConfig{
			Name:          "devops-eks",
			NodegroupName: "default",
			MinReadyNodes: 2,
			StorageAddon:  "aws-ebs-csi-driver",
			StorageClass:  "gp2",
		},
		Monitoring: config.MonitoringConfig{
			Namespace:     "monitoring",
			ChartRepoName: "prometheus-community",
			ChartRepoURL:  "https://prometheus-community.github.io/helm-charts",
			Prometheus: config.ReleaseConfig{
				Release: "prometheus",
				Chart:   "kube-prometheus-stack",
			},
			Grafana: config.GrafanaConfig{
				ReleaseConfig: config.ReleaseConfig{Release: "grafana", Chart: "grafana"},
				RepoName:      "grafana",
				RepoURL:       "https://grafana.github.io/helm-charts",
			},
		},
	}
}

func testTimeouts() *config.Timeouts {
	return &config.Timeouts{
		PollInterval:     time.Millisecond,
		PollMaxAttempts:  3,
		ClusterWait:      3 * time.Millisecond,
		EndpointInterval: time.Millisecond,
		EndpointAttempts: 3,
		HelmTimeout:      time.Second,
	}
}

func testContext(cfg *config.Config) *orchestrate.Context {
	return &orchestrate.Context{
		Context:  context.Background(),
		Config:   cfg,
		Observer: orchestrate.NewConsoleObserver(),
		Timeouts: testTimeouts(),
	}
}

func statuses(results []orchestrate.RunResult) []orchestrate.Status {
	out := make([]orchestrate.Status, 0, len(results))
	for _, r := range results {
		out = append(out, r.Status)
	}
	return out
}

func TestUp_FreshEnvironmentAppliesEverything(t *testing.T) {
	env := newFakeEnv()
	cfg := testConfig()
	deps := Deps{Buckets: env, Clusters: env, Network: env, Terraform: env, Kube: env, Helm: env}

	runner := orchestrate.NewRunner(orchestrate.ConfirmAuto, nil)
	results := runner.Run(testContext(cfg), Up(cfg, testTimeouts(), deps))

	require.Len(t, results, 7)
	for _, r := range results {
		assert.Equal(t, orchestrate.StatusApplied, r.Status, r.Stage)
		assert.False(t, r.TimedOut, r.Stage)
	}
	assert.Equal(t, []string{"tf/network", "tf/cluster"}, env.applied)
	assert.True(t, env.bucketExists)
	assert.True(t, env.releases["grafana"])
}

func TestUp_SecondRunSkipsEverything(t *testing.T) {
	env := newFakeEnv()
	cfg := testConfig()
	deps := Deps{Buckets: env, Clusters: env, Network: env, Terraform: env, Kube: env, Helm: env}
	runner := orchestrate.NewRunner(orchestrate.ConfirmAuto, nil)

	runner.Run(testContext(cfg), Up(cfg, testTimeouts(), deps))
	applied := len(env.applied)

	results := runner.Run(testContext(cfg), Up(cfg, testTimeouts(), deps))

	for _, r := range results {
		assert.Equal(t, orchestrate.StatusSkipped, r.Status, r.Stage)
	}
	assert.Len(t, env.applied, applied, "no terraform run on an idempotent re-run")
}

func TestUp_PartiallyProvisionedEnvironment(t *testing.T) {
	env := newFakeEnv()
	env.bucketExists = true
	env.vpcExists = true
	cfg := testConfig()
	deps := Deps{Buckets: env, Clusters: env, Network: env, Terraform: env, Kube: env, Helm: env}

	runner := orchestrate.NewRunner(orchestrate.ConfirmAuto, nil)
	results := runner.Run(testContext(cfg), Up(cfg, testTimeouts(), deps))

	require.Len(t, results, 7)
	assert.Equal(t, []orchestrate.Status{
		orchestrate.StatusSkipped,
		orchestrate.StatusSkipped,
		orchestrate.StatusApplied,
		orchestrate.StatusApplied,
		orchestrate.StatusApplied,
		orchestrate.StatusApplied,
		orchestrate.StatusApplied,
	}, statuses(results))
	assert.Equal(t, []string{"tf/cluster"}, env.applied)
}

func TestUp_ClusterApplyFailureRollsBackAndHalts(t *testing.T) {
	env := newFakeEnv()
	env.applyErr["tf/cluster"] = errors.New("quota exceeded")
	cfg := testConfig()
	deps := Deps{Buckets: env, Clusters: env, Network: env, Terraform: env, Kube: env, Helm: env}

	runner := orchestrate.NewRunner(orchestrate.ConfirmAuto, nil)
	results := runner.Run(testContext(cfg), Up(cfg, testTimeouts(), deps))

	require.Len(t, results, 3, "pipeline halts at the fatal cluster stage")
	assert.Equal(t, orchestrate.StatusRolledBack, results[2].Status)
	assert.Equal(t, []string{"tf/cluster"}, env.destroyed)
	assert.True(t, orchestrate.HasFailure(results))
	assert.Empty(t, env.releases, "monitoring stages never ran")
}

func TestUp_GrafanaEndpointTimeoutIsAWarning(t *testing.T) {
	env := newFakeEnv()
	cfg := testConfig()
	// Install succeeds but the service never gets a hostname.
	cfg.Monitoring.Grafana.ServiceName = "grafana-lb"
	deps := Deps{Buckets: env, Clusters: env, Network: env, Terraform: env, Kube: env, Helm: env}

	runner := orchestrate.NewRunner(orchestrate.ConfirmAuto, nil)
	results := runner.Run(testContext(cfg), Up(cfg, testTimeouts(), deps))

	require.Len(t, results, 7)
	grafana := results[6]
	assert.Equal(t, orchestrate.StatusApplied, grafana.Status)
	assert.True(t, grafana.TimedOut)
	assert.False(t, orchestrate.HasFailure(results))
}

func TestDown_TearsDownInReverse(t *testing.T) {
	env := newFakeEnv()
	cfg := testConfig()
	deps := Deps{Buckets: env, Clusters: env, Network: env, Terraform: env, Kube: env, Helm: env}
	runner := orchestrate.NewRunner(orchestrate.ConfirmAuto, nil)

	runner.Run(testContext(cfg), Up(cfg, testTimeouts(), deps))
	results := runner.Run(testContext(cfg), Down(cfg, testTimeouts(), deps))

	require.Len(t, results, 5)
	for _, r := range results {
		assert.Equal(t, orchestrate.StatusApplied, r.Status, r.Stage)
	}
	assert.False(t, env.bucketExists)
	assert.False(t, env.vpcExists)
	assert.Empty(t, env.releases)
	assert.Equal(t, []string{"tf/cluster", "tf/network"}, env.destroyed)
}

func TestDown_FailedDeleteContinuesAndReportsFailure(t *testing.T) {
	env := newFakeEnv()
	cfg := testConfig()
	deps := Deps{Buckets: env, Clusters: env, Network: env, Terraform: env, Kube: env, Helm: env}
	runner := orchestrate.NewRunner(orchestrate.ConfirmAuto, nil)
	runner.Run(testContext(cfg), Up(cfg, testTimeouts(), deps))

	env.applyErr["destroy:tf/cluster"] = errors.New("dependency violation")

	results := runner.Run(testContext(cfg), Down(cfg, testTimeouts(), deps))

	require.Len(t, results, 5, "every teardown stage is attempted")
	assert.Equal(t, orchestrate.StatusFailed, results[2].Status)
	assert.Equal(t, orchestrate.StatusApplied, results[3].Status, "network destroy still runs")
	assert.Equal(t, orchestrate.StatusApplied, results[4].Status, "state backend delete still runs")
	assert.True(t, orchestrate.HasFailure(results))
}

func TestDown_EmptyEnvironmentSkipsEverything(t *testing.T) {
	env := newFakeEnv()
	cfg := testConfig()
	deps := Deps{Buckets: env, Clusters: env, Network: env, Terraform: env, Kube: env, Helm: env}

	runner := orchestrate.NewRunner(orchestrate.ConfirmAuto, nil)
	results := runner.Run(testContext(cfg), Down(cfg, testTimeouts(), deps))

	for _, r := range results {
		assert.Equal(t, orchestrate.StatusSkipped, r.Status, r.Stage)
	}
	assert.Empty(t, env.destroyed)
}

func TestDown_UnreachableClusterSkipsMonitoring(t *testing.T) {
	// Re-running down after delete-cluster (or against an environment that
	// was never provisioned) leaves the Helm probes with nothing to talk
	// to. The monitoring stage must skip, not fail.
	env := newFakeEnv()
	env.helmErr = errors.New("Kubernetes cluster unreachable")
	cfg := testConfig()
	deps := Deps{Buckets: env, Clusters: env, Network: env, Terraform: env, Kube: env, Helm: env}

	runner := orchestrate.NewRunner(orchestrate.ConfirmAuto, nil)
	results := runner.Run(testContext(cfg), Down(cfg, testTimeouts(), deps))

	require.Len(t, results, 5)
	for _, r := range results {
		assert.Equal(t, orchestrate.StatusSkipped, r.Status, r.Stage)
	}
	assert.False(t, orchestrate.HasFailure(results), "a clean re-run must exit zero")
}

func TestClusterReachableCheck_RecoversAfterCredentialRefresh(t *testing.T) {
	t.Parallel()
	env := newFakeEnv()
	env.clusterStatus = ekstypes.ClusterStatusActive
	env.credsExpired = true
	refreshed := 0
	deps := Deps{
		Clusters: env,
		RefreshCredentials: func(_ context.Context) error {
			refreshed++
			env.credsExpired = false
			return nil
		},
	}

	res := preflight.Evaluate(context.Background(), clusterReachableCheck(testConfig(), deps))

	assert.True(t, res.OK)
	assert.Equal(t, "recovered", res.Detail)
	assert.Equal(t, 1, refreshed)
}

func TestClusterReachableCheck_NoRecoveryWithoutRole(t *testing.T) {
	t.Parallel()
	env := newFakeEnv()
	env.credsExpired = true

	res := preflight.Evaluate(context.Background(), clusterReachableCheck(testConfig(), Deps{Clusters: env}))

	assert.False(t, res.OK)
	assert.Contains(t, res.Detail, "ExpiredToken")
}

func TestDown_DenyPolicySkipsDestructiveStages(t *testing.T) {
	env := newFakeEnv()
	cfg := testConfig()
	deps := Deps{Buckets: env, Clusters: env, Network: env, Terraform: env, Kube: env, Helm: env}
	runner := orchestrate.NewRunner(orchestrate.ConfirmAuto, nil)
	runner.Run(testContext(cfg), Up(cfg, testTimeouts(), deps))

	denyRunner := orchestrate.NewRunner(orchestrate.ConfirmDeny, nil)
	results := denyRunner.Run(testContext(cfg), Down(cfg, testTimeouts(), deps))

	for _, r := range results {
		assert.Equal(t, orchestrate.StatusSkipped, r.Status, r.Stage)
	}
	assert.True(t, env.bucketExists, "nothing was deleted")
	assert.Empty(t, env.destroyed)
}

func TestGrafanaServiceCandidates(t *testing.T) {
	t.Parallel()
	explicit := config.GrafanaConfig{
		ReleaseConfig: config.ReleaseConfig{Release: "grafana"},
		ServiceName:   "grafana-lb",
	}
	assert.Equal(t, []string{"grafana-lb"}, grafanaServiceCandidates(explicit))

	derived := config.GrafanaConfig{ReleaseConfig: config.ReleaseConfig{Release: "grafana"}}
	assert.Equal(t, []string{"grafana", "grafana-grafana"}, grafanaServiceCandidates(derived))
}

func TestAttemptsFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 100, attemptsFor(25*time.Minute, 15*time.Second))
	assert.Equal(t, 1, attemptsFor(time.Second, 2*time.Second))
	assert.Equal(t, 1, attemptsFor(time.Minute, 0))
}

func TestCollectStatus(t *testing.T) {
	env := newFakeEnv()
	cfg := testConfig()
	deps := Deps{Buckets: env, Clusters: env, Network: env, Terraform: env, Kube: env, Helm: env}

	status := CollectStatus(context.Background(), cfg, deps)
	assert.False(t, status.Healthy(), "empty environment is unhealthy")

	runner := orchestrate.NewRunner(orchestrate.ConfirmAuto, nil)
	runner.Run(testContext(cfg), Up(cfg, testTimeouts(), deps))

	status = CollectStatus(context.Background(), cfg, deps)
	assert.True(t, status.Healthy())
	require.Len(t, status.Resources, 6)
	assert.Equal(t, "grafana", status.Resources[5].Name)
	assert.Equal(t, "http://abc.elb.amazonaws.com", status.Resources[5].Detail)
}
