// Package k8s is the single mediator for cluster access during a chaos
// cycle: manifest apply and delete, readiness polling, probe pod
// observation, and chaos workflow status.
package k8s

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps the typed and dynamic Kubernetes clients for one
// cluster context.
type Client struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	context   string
}

// NewClient builds a client for the named kubeconfig context. An empty
// kubeconfigPath falls back to the default loading rules; an empty
// contextName keeps the current context.
func NewClient(kubeconfigPath, contextName string) (*Client, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		rules.ExplicitPath = kubeconfigPath
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: contextName}
	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig for context %q: %w", contextName, err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return &Client{
		clientset: clientset,
		dynamic:   dynamicClient,
		context:   contextName,
	}, nil
}

// NewWithClients builds a client around preconstructed interfaces.
// Tests use this with the client-go fakes.
func NewWithClients(clientset kubernetes.Interface, dyn dynamic.Interface, contextName string) *Client {
	return &Client{clientset: clientset, dynamic: dyn, context: contextName}
}

// Context returns the kubeconfig context this client talks to.
func (c *Client) Context() string { return c.context }

// gvrForKind maps a manifest kind to its resource. Chaos Mesh CRDs use
// uncountable plurals (podchaos, networkchaos, ...), Workflow resources
// do not.
func gvrForKind(gvk schema.GroupVersionKind) schema.GroupVersionResource {
	kind := gvk.Kind
	var resource string
	switch {
	case strings.HasSuffix(kind, "Chaos"):
		resource = strings.ToLower(kind)
	case kind == "Workflow":
		resource = "workflows"
	case kind == "WorkflowNode":
		resource = "workflownodes"
	case kind == "NetworkPolicy":
		resource = "networkpolicies"
	case kind == "Ingress":
		resource = "ingresses"
	case kind == "PodDisruptionBudget":
		resource = "poddisruptionbudgets"
	default:
		resource = strings.ToLower(kind) + "s"
	}
	return schema.GroupVersionResource{
		Group:    gvk.Group,
		Version:  gvk.Version,
		Resource: resource,
	}
}
