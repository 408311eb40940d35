// Package helmpkg installs and removes the monitoring Helm releases
// through the Helm v3 action API, without shelling out to the helm binary.
package helmpkg

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/repo"
	"helm.sh/helm/v3/pkg/storage/driver"
)

// Release describes one chart installation.
type Release struct {
	Namespace string
	Name      string
	RepoURL   string
	Chart     string
	Version   string
	Values    map[string]interface{}
	Timeout   time.Duration
}

// Client handles Helm operations against the cluster named by a
// kubeconfig file.
type Client struct {
	settings       *cli.EnvSettings
	kubeconfigPath string
}

// New creates a Helm client. The kubeconfig is read on each operation,
// so the file may appear after construction.
func New(kubeconfigPath string) *Client {
	return &Client{
		settings:       cli.New(),
		kubeconfigPath: kubeconfigPath,
	}
}

func (c *Client) actionConfig(namespace string) (*action.Configuration, error) {
	restConfig, err := clientcmd.BuildConfigFromFlags("", c.kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	actionConfig := new(action.Configuration)
	clientGetter := &genericRESTClientGetter{
		config:    restConfig,
		namespace: namespace,
	}

	if err := actionConfig.Init(clientGetter, namespace, os.Getenv("HELM_DRIVER"), log.Printf); err != nil {
		return nil, fmt.Errorf("failed to init action config: %w", err)
	}
	return actionConfig, nil
}

// InstallOrUpgrade installs the release, or upgrades it when a prior
// revision exists. Waits for the release resources to become ready
// within the release timeout.
func (c *Client) InstallOrUpgrade(rel Release) error {
	actionConfig, err := c.actionConfig(rel.Namespace)
	if err != nil {
		return err
	}

	cp := &action.ChartPathOptions{}
	cp.RepoURL = rel.RepoURL
	cp.Version = rel.Version

	chartPath, err := cp.LocateChart(rel.Chart, c.settings)
	if err != nil {
		return fmt.Errorf("failed to locate chart: %w", err)
	}

	chart, err := loader.Load(chartPath)
	if err != nil {
		return fmt.Errorf("failed to load chart: %w", err)
	}

	timeout := rel.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	histClient := action.NewHistory(actionConfig)
	histClient.Max = 1
	if _, err := histClient.Run(rel.Name); err == nil {
		upgrade := action.NewUpgrade(actionConfig)
		upgrade.Namespace = rel.Namespace
		upgrade.Wait = true
		upgrade.Timeout = timeout
		if _, err := upgrade.Run(rel.Name, chart, rel.Values); err != nil {
			return fmt.Errorf("helm upgrade failed: %w", err)
		}
		return nil
	}

	install := action.NewInstall(actionConfig)
	install.Namespace = rel.Namespace
	install.ReleaseName = rel.Name
	install.CreateNamespace = true
	install.Wait = true
	install.Timeout = timeout
	if _, err := install.Run(chart, rel.Values); err != nil {
		return fmt.Errorf("helm install failed: %w", err)
	}
	return nil
}

// IsInstalled reports whether the release has at least one revision.
func (c *Client) IsInstalled(namespace, name string) (bool, error) {
	actionConfig, err := c.actionConfig(namespace)
	if err != nil {
		return false, err
	}

	histClient := action.NewHistory(actionConfig)
	histClient.Max = 1
	if _, err := histClient.Run(name); err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query release history: %w", err)
	}
	return true, nil
}

// Uninstall removes the release, tolerating absence.
func (c *Client) Uninstall(namespace, name string) error {
	actionConfig, err := c.actionConfig(namespace)
	if err != nil {
		return err
	}

	uninstall := action.NewUninstall(actionConfig)
	if _, err := uninstall.Run(name); err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return nil
		}
		return fmt.Errorf("helm uninstall failed: %w", err)
	}
	return nil
}

// AddRepo adds a repository to the helm settings.
func (c *Client) AddRepo(name, url string) error {
	f, err := repo.LoadFile(c.settings.RepositoryConfig)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if os.IsNotExist(err) {
		f = repo.NewFile()
	}

	entry := repo.Entry{
		Name: name,
		URL:  url,
	}

	r, err := repo.NewChartRepository(&entry, getter.All(c.settings))
	if err != nil {
		return err
	}

	if _, err := r.DownloadIndexFile(); err != nil {
		return err
	}

	f.Update(&entry)
	return f.WriteFile(c.settings.RepositoryConfig, 0644)
}

// genericRESTClientGetter implements basic RESTClientGetter for Helm.
type genericRESTClientGetter struct {
	config    *rest.Config
	namespace string
}

func (g *genericRESTClientGetter) ToRESTConfig() (*rest.Config, error) {
	return g.config, nil
}

func (g *genericRESTClientGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(g.config)
	if err != nil {
		return nil, err
	}
	return memory.NewMemCacheClient(discoveryClient), nil
}

func (g *genericRESTClientGetter) ToRESTMapper() (meta.RESTMapper, error) {
	discoveryClient, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(discoveryClient), nil
}

func (g *genericRESTClientGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	return clientcmd.NewDefaultClientConfig(*clientcmdapi.NewConfig(), &clientcmd.ConfigOverrides{})
}
