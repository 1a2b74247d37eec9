package k8s

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

// DefaultReadyTimeout bounds WaitAllReady when the caller passes zero.
const DefaultReadyTimeout = 300 * time.Second

// WaitAllReady polls every second until every Deployment, Pod,
// Service, Job, StatefulSet, and DaemonSet matching the label selector
// reports fully ready. It fails when the timeout expires or no
// resource matches at all.
func (c *Client) WaitAllReady(ctx context.Context, namespace, labelSelector string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = DefaultReadyTimeout
	}
	var lastReason string
	err := wait.PollImmediate(1*time.Second, timeout, func() (bool, error) {
		ready, reason, err := c.allReady(ctx, namespace, labelSelector)
		if err != nil {
			// Transient API errors roll into the next tick.
			lastReason = err.Error()
			return false, nil
		}
		lastReason = reason
		return ready, nil
	})
	if err != nil {
		return fmt.Errorf("resources with selector %q in %q not ready: %s: %w", labelSelector, namespace, lastReason, err)
	}
	return nil
}

func (c *Client) allReady(ctx context.Context, namespace, selector string) (bool, string, error) {
	opts := metav1.ListOptions{LabelSelector: selector}
	total := 0

	deployments, err := c.clientset.AppsV1().Deployments(namespace).List(ctx, opts)
	if err != nil {
		return false, "", err
	}
	total += len(deployments.Items)
	for i := range deployments.Items {
		if !isDeploymentReady(&deployments.Items[i]) {
			return false, fmt.Sprintf("deployment %s not available", deployments.Items[i].Name), nil
		}
	}

	statefulSets, err := c.clientset.AppsV1().StatefulSets(namespace).List(ctx, opts)
	if err != nil {
		return false, "", err
	}
	total += len(statefulSets.Items)
	for i := range statefulSets.Items {
		if !isStatefulSetReady(&statefulSets.Items[i]) {
			return false, fmt.Sprintf("statefulset %s not ready", statefulSets.Items[i].Name), nil
		}
	}

	daemonSets, err := c.clientset.AppsV1().DaemonSets(namespace).List(ctx, opts)
	if err != nil {
		return false, "", err
	}
	total += len(daemonSets.Items)
	for i := range daemonSets.Items {
		if !isDaemonSetReady(&daemonSets.Items[i]) {
			return false, fmt.Sprintf("daemonset %s not available", daemonSets.Items[i].Name), nil
		}
	}

	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, opts)
	if err != nil {
		return false, "", err
	}
	total += len(pods.Items)
	for i := range pods.Items {
		if !isPodRunningOrSucceeded(&pods.Items[i]) {
			return false, fmt.Sprintf("pod %s in phase %s", pods.Items[i].Name, pods.Items[i].Status.Phase), nil
		}
	}

	services, err := c.clientset.CoreV1().Services(namespace).List(ctx, opts)
	if err != nil {
		return false, "", err
	}
	total += len(services.Items)
	for i := range services.Items {
		if services.Items[i].Spec.ClusterIP == "" {
			return false, fmt.Sprintf("service %s has no cluster IP", services.Items[i].Name), nil
		}
	}

	jobs, err := c.clientset.BatchV1().Jobs(namespace).List(ctx, opts)
	if err != nil {
		return false, "", err
	}
	total += len(jobs.Items)
	for i := range jobs.Items {
		if jobs.Items[i].Status.Succeeded < 1 {
			return false, fmt.Sprintf("job %s has no successful completion", jobs.Items[i].Name), nil
		}
	}

	if total == 0 {
		return false, "no resources match the selector", nil
	}
	return true, "", nil
}

func isDeploymentReady(deployment *appsv1.Deployment) bool {
	desired := int32(1)
	if deployment.Spec.Replicas != nil {
		desired = *deployment.Spec.Replicas
	}
	return deployment.Status.AvailableReplicas == desired &&
		deployment.Status.UpdatedReplicas == desired
}

func isStatefulSetReady(statefulSet *appsv1.StatefulSet) bool {
	desired := int32(1)
	if statefulSet.Spec.Replicas != nil {
		desired = *statefulSet.Spec.Replicas
	}
	return statefulSet.Status.ReadyReplicas == desired
}

func isDaemonSetReady(daemonSet *appsv1.DaemonSet) bool {
	return daemonSet.Status.NumberAvailable == daemonSet.Status.DesiredNumberScheduled
}

func isPodRunningOrSucceeded(pod *corev1.Pod) bool {
	return pod.Status.Phase == corev1.PodRunning || pod.Status.Phase == corev1.PodSucceeded
}
