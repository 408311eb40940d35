// Package kube provides read-mostly access to the cluster for idempotency
// and readiness predicates: node and pod readiness, namespace and storage
// class existence, and load balancer hostnames.
package kube

import (
	"context"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps a clientset built lazily from a kubeconfig file. Laziness
// matters: the kubeconfig does not exist until the cluster stage has run,
// but the client is constructed up front with the rest of the pipeline
// dependencies.
type Client struct {
	kubeconfigPath string

	mu        sync.Mutex
	clientset kubernetes.Interface
	dialErr   error
}

// New creates a client that connects on first use.
func New(kubeconfigPath string) *Client {
	return &Client{kubeconfigPath: kubeconfigPath}
}

// NewWithClientset creates a client around an existing clientset.
// Used by tests with a fake clientset.
func NewWithClientset(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

func (c *Client) dial() (kubernetes.Interface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clientset != nil {
		return c.clientset, nil
	}
	if c.dialErr != nil {
		return nil, c.dialErr
	}

	restConfig, err := clientcmd.BuildConfigFromFlags("", c.kubeconfigPath)
	if err != nil {
		c.dialErr = fmt.Errorf("failed to load kubeconfig: %w", err)
		return nil, c.dialErr
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		c.dialErr = fmt.Errorf("failed to create kubernetes client: %w", err)
		return nil, c.dialErr
	}

	c.clientset = clientset
	return c.clientset, nil
}

// NodesReady reports whether at least min nodes are Ready.
func (c *Client) NodesReady(ctx context.Context, min int) (bool, error) {
	clientset, err := c.dial()
	if err != nil {
		return false, err
	}

	nodes, err := clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to list nodes: %w", err)
	}

	ready := 0
	for i := range nodes.Items {
		if isNodeReady(&nodes.Items[i]) {
			ready++
		}
	}
	return ready >= min, nil
}

// PodsReady reports whether all pods matching the label selector exist and
// are Ready. No pods at all counts as not ready.
func (c *Client) PodsReady(ctx context.Context, namespace, labelSelector string) (bool, error) {
	clientset, err := c.dial()
	if err != nil {
		return false, err
	}

	pods, err := clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return false, fmt.Errorf("failed to list pods: %w", err)
	}

	if len(pods.Items) == 0 {
		return false, nil
	}
	for i := range pods.Items {
		if !isPodReady(&pods.Items[i]) {
			return false, nil
		}
	}
	return true, nil
}

// ServiceLoadBalancer returns the load balancer hostname (or IP) of a
// Service, or "" when the Service is absent or not yet provisioned.
// Absence is a normal poll answer, not an error.
func (c *Client) ServiceLoadBalancer(ctx context.Context, namespace, name string) (string, error) {
	clientset, err := c.dial()
	if err != nil {
		return "", err
	}

	svc, err := clientset.CoreV1().Services(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get service %s/%s: %w", namespace, name, err)
	}

	for _, ingress := range svc.Status.LoadBalancer.Ingress {
		if ingress.Hostname != "" {
			return ingress.Hostname, nil
		}
		if ingress.IP != "" {
			return ingress.IP, nil
		}
	}
	return "", nil
}

// NamespaceExists probes for a namespace.
func (c *Client) NamespaceExists(ctx context.Context, name string) (bool, error) {
	clientset, err := c.dial()
	if err != nil {
		return false, err
	}

	_, err = clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get namespace %s: %w", name, err)
	}
	return true, nil
}

// EnsureNamespace creates the namespace if it is missing.
func (c *Client) EnsureNamespace(ctx context.Context, name string) error {
	clientset, err := c.dial()
	if err != nil {
		return err
	}

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	_, err = clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create namespace %s: %w", name, err)
	}
	return nil
}

// DeleteNamespace removes the namespace, tolerating absence.
func (c *Client) DeleteNamespace(ctx context.Context, name string) error {
	clientset, err := c.dial()
	if err != nil {
		return err
	}

	err = clientset.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete namespace %s: %w", name, err)
	}
	return nil
}

// StorageClassExists probes for a storage class.
func (c *Client) StorageClassExists(ctx context.Context, name string) (bool, error) {
	clientset, err := c.dial()
	if err != nil {
		return false, err
	}

	_, err = clientset.StorageV1().StorageClasses().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get storage class %s: %w", name, err)
	}
	return true, nil
}

// isNodeReady checks the node's Ready condition.
func isNodeReady(node *corev1.Node) bool {
	for _, condition := range node.Status.Conditions {
		if condition.Type == corev1.NodeReady &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// isPodReady checks if a pod is running and ready.
func isPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}

	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}
