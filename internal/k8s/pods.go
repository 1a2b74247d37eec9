package k8s

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Pod fetches a single pod.
func (c *Client) Pod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod %s/%s: %w", namespace, name, err)
	}
	return pod, nil
}

// Pods lists pods matching a label selector.
func (c *Client) Pods(ctx context.Context, namespace, labelSelector string) ([]corev1.Pod, error) {
	podList, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	return podList.Items, nil
}

// PodLogs fetches the full log of a pod's first container.
func (c *Client) PodLogs(ctx context.Context, namespace, name string) (string, error) {
	req := c.clientset.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{})
	logs, err := req.DoRaw(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get logs of pod %s/%s: %w", namespace, name, err)
	}
	return string(logs), nil
}

// DeletePod deletes a pod; a missing pod is a no-op.
func (c *Client) DeletePod(ctx context.Context, namespace, name string) error {
	err := c.clientset.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete pod %s/%s: %w", namespace, name, err)
	}
	return nil
}

// DeleteConfigMap deletes a configmap; a missing one is a no-op.
func (c *Client) DeleteConfigMap(ctx context.Context, namespace, name string) error {
	err := c.clientset.CoreV1().ConfigMaps(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete configmap %s/%s: %w", namespace, name, err)
	}
	return nil
}

// WaitForPodTerminated polls until one of the pod's containers reports
// a terminated state, then returns the pod. Succeeded and Failed are
// both acceptable outcomes; the caller reads the exit code.
func (c *Client) WaitForPodTerminated(ctx context.Context, namespace, name string, timeout time.Duration) (*corev1.Pod, error) {
	var last *corev1.Pod
	err := wait.PollImmediate(1*time.Second, timeout, func() (bool, error) {
		pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}
		last = pod
		_, ok := TerminatedExitCode(pod)
		return ok, nil
	})
	if err != nil {
		return last, fmt.Errorf("pod %s/%s did not terminate within %s: %w", namespace, name, timeout, err)
	}
	return last, nil
}

// TerminatedExitCode extracts the exit code of the first terminated
// container. ok is false when no container has terminated, including
// the diagnostic case of a pod with no container statuses at all.
func TerminatedExitCode(pod *corev1.Pod) (int, bool) {
	for _, status := range pod.Status.ContainerStatuses {
		if status.State.Terminated != nil {
			return int(status.State.Terminated.ExitCode), true
		}
	}
	return 0, false
}

// PodDiagnostics summarizes a pod's phase, conditions, and container
// states for the repair loop when the pod never produced logs.
func PodDiagnostics(pod *corev1.Pod) string {
	if pod == nil {
		return "pod was never observed"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "pod %s phase=%s", pod.Name, pod.Status.Phase)
	if pod.Status.Reason != "" {
		fmt.Fprintf(&b, " reason=%s", pod.Status.Reason)
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Status != corev1.ConditionTrue {
			fmt.Fprintf(&b, "; condition %s=%s (%s)", cond.Type, cond.Status, cond.Message)
		}
	}
	if len(pod.Status.ContainerStatuses) == 0 {
		b.WriteString("; no container statuses reported")
	}
	for _, status := range pod.Status.ContainerStatuses {
		switch {
		case status.State.Waiting != nil:
			fmt.Fprintf(&b, "; container %s waiting: %s %s", status.Name, status.State.Waiting.Reason, status.State.Waiting.Message)
		case status.State.Terminated != nil:
			fmt.Fprintf(&b, "; container %s terminated: exit=%d %s", status.Name, status.State.Terminated.ExitCode, status.State.Terminated.Reason)
		case status.State.Running != nil:
			fmt.Fprintf(&b, "; container %s still running", status.Name)
		}
	}
	return b.String()
}
