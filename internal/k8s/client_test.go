package k8s

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynfake "k8s.io/client-go/dynamic/fake"
	k8sfake "k8s.io/client-go/kubernetes/fake"
)

func newFakeClient(objects ...runtime.Object) (*Client, *dynfake.FakeDynamicClient) {
	scheme := runtime.NewScheme()
	listKinds := map[schema.GroupVersionResource]string{
		workflowGVR:     "WorkflowList",
		workflowNodeGVR: "WorkflowNodeList",
		{Version: "v1", Resource: "services"}:                                "ServiceList",
		{Version: "v1", Resource: "pods"}:                                    "PodList",
		{Version: "v1", Resource: "configmaps"}:                              "ConfigMapList",
		{Group: "apps", Version: "v1", Resource: "deployments"}:              "DeploymentList",
		{Group: "apps", Version: "v1", Resource: "statefulsets"}:             "StatefulSetList",
		{Group: "apps", Version: "v1", Resource: "daemonsets"}:               "DaemonSetList",
		{Group: "batch", Version: "v1", Resource: "jobs"}:                    "JobList",
		{Group: "chaos-mesh.org", Version: "v1alpha1", Resource: "podchaos"}: "PodChaosList",
	}
	dyn := dynfake.NewSimpleDynamicClientWithCustomListKinds(scheme, listKinds)
	clientset := k8sfake.NewSimpleClientset(objects...)
	return NewWithClients(clientset, dyn, "kind-chaos"), dyn
}

func TestGVRForKind(t *testing.T) {
	tests := []struct {
		kind     string
		group    string
		version  string
		resource string
	}{
		{"Deployment", "apps", "v1", "deployments"},
		{"Service", "", "v1", "services"},
		{"PodChaos", "chaos-mesh.org", "v1alpha1", "podchaos"},
		{"NetworkChaos", "chaos-mesh.org", "v1alpha1", "networkchaos"},
		{"Workflow", "chaos-mesh.org", "v1alpha1", "workflows"},
		{"WorkflowNode", "chaos-mesh.org", "v1alpha1", "workflownodes"},
		{"PodDisruptionBudget", "policy", "v1", "poddisruptionbudgets"},
		{"Ingress", "networking.k8s.io", "v1", "ingresses"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			gvr := gvrForKind(schema.GroupVersionKind{Group: tt.group, Version: tt.version, Kind: tt.kind})
			assert.Equal(t, tt.resource, gvr.Resource)
			assert.Equal(t, tt.group, gvr.Group)
		})
	}
}

func TestDecodeManifest(t *testing.T) {
	manifest := `apiVersion: v1
kind: Service
metadata:
  name: carts-db
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: carts-db
`
	objs, err := decodeManifest(manifest)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "Service", objs[0].GetKind())
	assert.Equal(t, "Deployment", objs[1].GetKind())
}

func TestDecodeManifestSkipsEmptyDocs(t *testing.T) {
	objs, err := decodeManifest("---\n\n---\napiVersion: v1\nkind: Pod\nmetadata:\n  name: p\n")
	require.NoError(t, err)
	require.Len(t, objs, 1)
}

func TestDecodeManifestRejectsKindless(t *testing.T) {
	_, err := decodeManifest("metadata:\n  name: nameless\n")
	assert.Error(t, err)
}

func TestApplyCreatesAndUpdates(t *testing.T) {
	client, dyn := newFakeClient()
	manifest := `apiVersion: chaos-mesh.org/v1alpha1
kind: PodChaos
metadata:
  name: kill-carts
  namespace: chaos-eng
spec:
  action: pod-kill
`
	require.NoError(t, client.Apply(context.Background(), manifest))

	gvr := schema.GroupVersionResource{Group: "chaos-mesh.org", Version: "v1alpha1", Resource: "podchaos"}
	got, err := dyn.Resource(gvr).Namespace("chaos-eng").Get(context.Background(), "kill-carts", metav1.GetOptions{})
	require.NoError(t, err)
	action, _, _ := unstructured.NestedString(got.Object, "spec", "action")
	assert.Equal(t, "pod-kill", action)

	updated := strings.Replace(manifest, "pod-kill", "container-kill", 1)
	require.NoError(t, client.Apply(context.Background(), updated))
	got, err = dyn.Resource(gvr).Namespace("chaos-eng").Get(context.Background(), "kill-carts", metav1.GetOptions{})
	require.NoError(t, err)
	action, _, _ = unstructured.NestedString(got.Object, "spec", "action")
	assert.Equal(t, "container-kill", action)
}

func TestDeleteManifestMissingIsNoop(t *testing.T) {
	client, _ := newFakeClient()
	manifest := `apiVersion: v1
kind: Pod
metadata:
  name: ghost
  namespace: chaos-eng
`
	assert.NoError(t, client.DeleteManifest(context.Background(), manifest))
}

func TestTerminatedExitCode(t *testing.T) {
	pod := &corev1.Pod{
		Status: corev1.PodStatus{
			ContainerStatuses: []corev1.ContainerStatus{
				{State: corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{ExitCode: 2}}},
			},
		},
	}
	code, ok := TerminatedExitCode(pod)
	assert.True(t, ok)
	assert.Equal(t, 2, code)

	running := &corev1.Pod{
		Status: corev1.PodStatus{
			ContainerStatuses: []corev1.ContainerStatus{
				{State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{}}},
			},
		},
	}
	_, ok = TerminatedExitCode(running)
	assert.False(t, ok)

	_, ok = TerminatedExitCode(&corev1.Pod{})
	assert.False(t, ok)
}

func TestPodDiagnostics(t *testing.T) {
	assert.Equal(t, "pod was never observed", PodDiagnostics(nil))

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "probe-pod"},
		Status: corev1.PodStatus{
			Phase: corev1.PodPending,
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodScheduled, Status: corev1.ConditionFalse, Message: "0/1 nodes available"},
			},
		},
	}
	diag := PodDiagnostics(pod)
	assert.Contains(t, diag, "probe-pod")
	assert.Contains(t, diag, "phase=Pending")
	assert.Contains(t, diag, "0/1 nodes available")
	assert.Contains(t, diag, "no container statuses reported")
}

func TestNodeAccomplishedStatus(t *testing.T) {
	node := &unstructured.Unstructured{Object: map[string]any{
		"status": map[string]any{
			"conditions": []any{
				map[string]any{"type": "Deadline", "status": "False"},
				map[string]any{"type": "Accomplished", "status": "True"},
			},
		},
	}}
	assert.Equal(t, "True", NodeAccomplishedStatus(node))

	bare := &unstructured.Unstructured{Object: map[string]any{}}
	assert.Equal(t, "Unknown", NodeAccomplishedStatus(bare))
}

func TestWaitAllReady(t *testing.T) {
	replicas := int32(2)
	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name: "carts-db", Namespace: "sock-shop",
			Labels: map[string]string{"project": "chaoskit"},
		},
		Spec: appsv1.DeploymentSpec{Replicas: &replicas},
		Status: appsv1.DeploymentStatus{
			AvailableReplicas: 2,
			UpdatedReplicas:   2,
		},
	}
	service := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name: "carts-db", Namespace: "sock-shop",
			Labels: map[string]string{"project": "chaoskit"},
		},
		Spec: corev1.ServiceSpec{ClusterIP: "10.0.0.1"},
	}

	client, _ := newFakeClient(deployment, service)
	err := client.WaitAllReady(context.Background(), "sock-shop", "project=chaoskit", 3*time.Second)
	assert.NoError(t, err)
}

func TestWaitAllReadyNoMatchesFails(t *testing.T) {
	client, _ := newFakeClient()
	err := client.WaitAllReady(context.Background(), "sock-shop", "project=chaoskit", 10*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no resources match")
}

func TestDeleteByNamespaceEmptyIsNoop(t *testing.T) {
	client, _ := newFakeClient()
	err := client.DeleteByNamespace(context.Background(), "chaos-eng",
		[]string{"workflow", "workflownode", "deployment", "pod", "service"})
	assert.NoError(t, err)
}

func TestWorkflowSelector(t *testing.T) {
	assert.Equal(t, "chaos-mesh.org/workflow=chaos-experiment-1", WorkflowSelector("chaos-experiment-1"))
}
