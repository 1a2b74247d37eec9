package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynfake "k8s.io/client-go/dynamic/fake"
	k8sfake "k8s.io/client-go/kubernetes/fake"

	"github.com/chaoskit/chaoskit/internal/config"
	"github.com/chaoskit/chaoskit/internal/k8s"
)

var deploymentsGVR = schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}

func fakeDynamic(objects ...runtime.Object) *dynfake.FakeDynamicClient {
	scheme := runtime.NewScheme()
	listKinds := map[schema.GroupVersionResource]string{
		{Group: "chaos-mesh.org", Version: "v1alpha1", Resource: "workflows"}:     "WorkflowList",
		{Group: "chaos-mesh.org", Version: "v1alpha1", Resource: "workflownodes"}: "WorkflowNodeList",
		{Version: "v1", Resource: "services"}:                       "ServiceList",
		{Version: "v1", Resource: "pods"}:                           "PodList",
		{Version: "v1", Resource: "configmaps"}:                     "ConfigMapList",
		deploymentsGVR:                                              "DeploymentList",
		{Group: "apps", Version: "v1", Resource: "statefulsets"}:    "StatefulSetList",
		{Group: "apps", Version: "v1", Resource: "daemonsets"}:      "DaemonSetList",
		{Group: "batch", Version: "v1", Resource: "jobs"}:           "JobList",
	}
	return dynfake.NewSimpleDynamicClientWithCustomListKinds(scheme, listKinds, objects...)
}

func labeledDeployment(namespace, name, project string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]any{
			"namespace": namespace,
			"name":      name,
			"labels":    map[string]any{"project": project},
		},
	}}
}

func TestCleanupDeletesLabeledResources(t *testing.T) {
	dyn := fakeDynamic(
		labeledDeployment("sock-shop", "carts-db", "chaoskit"),
		labeledDeployment("sock-shop", "front-end", "other-project"),
	)
	client := k8s.NewWithClients(k8sfake.NewSimpleClientset(), dyn, "kind-chaos")

	orig := newK8sClient
	newK8sClient = func(_, _ string) (*k8s.Client, error) { return client, nil }
	t.Cleanup(func() { newK8sClient = orig })

	cfg := config.Default()
	require.NoError(t, Cleanup(context.Background(), cfg))

	list, err := dyn.Resource(deploymentsGVR).Namespace("sock-shop").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "front-end", list.Items[0].GetName())
}
