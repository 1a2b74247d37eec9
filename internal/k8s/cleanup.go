package k8s

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// gvrForCleanupKind resolves the kind names the cleanup surface
// accepts (lowercase, kubectl style).
func gvrForCleanupKind(kind string) (schema.GroupVersionResource, error) {
	switch kind {
	case "workflow", "workflows":
		return workflowGVR, nil
	case "workflownode", "workflownodes":
		return workflowNodeGVR, nil
	case "deployment", "deployments":
		return schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}, nil
	case "statefulset", "statefulsets":
		return schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "statefulsets"}, nil
	case "daemonset", "daemonsets":
		return schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "daemonsets"}, nil
	case "pod", "pods":
		return schema.GroupVersionResource{Version: "v1", Resource: "pods"}, nil
	case "service", "services":
		return schema.GroupVersionResource{Version: "v1", Resource: "services"}, nil
	case "configmap", "configmaps":
		return schema.GroupVersionResource{Version: "v1", Resource: "configmaps"}, nil
	case "job", "jobs":
		return schema.GroupVersionResource{Group: "batch", Version: "v1", Resource: "jobs"}, nil
	}
	return schema.GroupVersionResource{}, fmt.Errorf("unsupported cleanup kind %q", kind)
}

// DeleteByNamespace deletes every resource of the given kinds in the
// namespace. An empty namespace is a no-op, matching kubectl's
// "No resources found" behavior.
func (c *Client) DeleteByNamespace(ctx context.Context, namespace string, kinds []string) error {
	for _, kind := range kinds {
		gvr, err := gvrForCleanupKind(kind)
		if err != nil {
			return err
		}
		list, err := c.dynamic.Resource(gvr).Namespace(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			if errors.IsNotFound(err) || meta.IsNoMatchError(err) {
				continue
			}
			return fmt.Errorf("failed to list %s in %q: %w", kind, namespace, err)
		}
		for i := range list.Items {
			name := list.Items[i].GetName()
			if err := c.dynamic.Resource(gvr).Namespace(namespace).Delete(ctx, name, metav1.DeleteOptions{}); err != nil && !errors.IsNotFound(err) {
				return fmt.Errorf("failed to delete %s %q in %q: %w", kind, name, namespace, err)
			}
		}
	}
	return nil
}

// DeleteByLabel deletes labeled workload resources across every
// namespace: the teardown of everything a cycle deployed under its
// project label. Resources already gone are fine.
func (c *Client) DeleteByLabel(ctx context.Context, labelSelector string) error {
	kinds := []string{"deployments", "statefulsets", "daemonsets", "jobs", "services", "pods", "configmaps"}
	for _, kind := range kinds {
		gvr, err := gvrForCleanupKind(kind)
		if err != nil {
			return err
		}
		list, err := c.dynamic.Resource(gvr).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
		if err != nil {
			if errors.IsNotFound(err) || meta.IsNoMatchError(err) {
				continue
			}
			return fmt.Errorf("failed to list %s with selector %q: %w", kind, labelSelector, err)
		}
		for i := range list.Items {
			item := &list.Items[i]
			if err := c.dynamic.Resource(gvr).Namespace(item.GetNamespace()).Delete(ctx, item.GetName(), metav1.DeleteOptions{}); err != nil && !errors.IsNotFound(err) {
				return fmt.Errorf("failed to delete %s %s/%s: %w", kind, item.GetNamespace(), item.GetName(), err)
			}
		}
	}
	return nil
}
