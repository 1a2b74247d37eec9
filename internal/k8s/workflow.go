package k8s

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Chaos Mesh workflow plumbing. The engine identifies every resource a
// workflow spawns through this label, and the entry node through its
// name prefix.
const (
	WorkflowLabel   = "chaos-mesh.org/workflow"
	entryNodePrefix = "the-entry"
)

var (
	workflowGVR     = schema.GroupVersionResource{Group: "chaos-mesh.org", Version: "v1alpha1", Resource: "workflows"}
	workflowNodeGVR = schema.GroupVersionResource{Group: "chaos-mesh.org", Version: "v1alpha1", Resource: "workflownodes"}
)

// WorkflowSelector returns the label selector matching everything a
// workflow spawned.
func WorkflowSelector(workflowName string) string {
	return fmt.Sprintf("%s=%s", WorkflowLabel, workflowName)
}

// EntryNode finds the workflow's entry WorkflowNode, recognized by its
// name prefix. Returns nil when the controller has not created it yet.
func (c *Client) EntryNode(ctx context.Context, namespace, workflowName string) (*unstructured.Unstructured, error) {
	nodes, err := c.dynamic.Resource(workflowNodeGVR).Namespace(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: WorkflowSelector(workflowName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow nodes for %q: %w", workflowName, err)
	}
	for i := range nodes.Items {
		if strings.HasPrefix(nodes.Items[i].GetName(), entryNodePrefix) {
			return &nodes.Items[i], nil
		}
	}
	return nil, nil
}

// NodeAccomplishedStatus reads the status of the Accomplished
// condition of a workflow node. Unknown when the condition is absent.
func NodeAccomplishedStatus(node *unstructured.Unstructured) string {
	conditions, found, err := unstructured.NestedSlice(node.Object, "status", "conditions")
	if err != nil || !found {
		return "Unknown"
	}
	for _, raw := range conditions {
		cond, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if cond["type"] == "Accomplished" {
			if status, ok := cond["status"].(string); ok {
				return status
			}
		}
	}
	return "Unknown"
}

// WorkflowPods lists the pods a workflow spawned.
func (c *Client) WorkflowPods(ctx context.Context, namespace, workflowName string) ([]corev1.Pod, error) {
	return c.Pods(ctx, namespace, WorkflowSelector(workflowName))
}

// DeleteWorkflowArtifacts best-effort deletes a workflow, its nodes,
// and its pods. Used before a run so a retried experiment starts
// clean. Missing resources are ignored.
func (c *Client) DeleteWorkflowArtifacts(ctx context.Context, namespace, workflowName string) error {
	selector := WorkflowSelector(workflowName)

	if err := c.dynamic.Resource(workflowGVR).Namespace(namespace).Delete(ctx, workflowName, metav1.DeleteOptions{}); err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete workflow %q: %w", workflowName, err)
	}

	nodes, err := c.dynamic.Resource(workflowNodeGVR).Namespace(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err == nil {
		for i := range nodes.Items {
			name := nodes.Items[i].GetName()
			if err := c.dynamic.Resource(workflowNodeGVR).Namespace(namespace).Delete(ctx, name, metav1.DeleteOptions{}); err != nil && !errors.IsNotFound(err) {
				return fmt.Errorf("failed to delete workflow node %q: %w", name, err)
			}
		}
	}

	pods, err := c.Pods(ctx, namespace, selector)
	if err == nil {
		for i := range pods {
			if err := c.DeletePod(ctx, namespace, pods[i].Name); err != nil {
				return err
			}
		}
	}
	return nil
}
