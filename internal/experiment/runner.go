package experiment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/k8s"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/schedule"
	"github.com/chaoskit/chaoskit/internal/util/naming"
)

// DefaultPollInterval paces the entry-node status polls.
const DefaultPollInterval = 5 * time.Second

// Runner applies a compiled workflow and watches it to completion.
type Runner struct {
	client       *k8s.Client
	log          logr.Logger
	namespace    string
	pollInterval time.Duration
	waitMargin   time.Duration
}

// NewRunner returns a Runner operating in the given chaos namespace.
func NewRunner(client *k8s.Client, log logr.Logger, namespace string) *Runner {
	return &Runner{
		client:       client,
		log:          log.WithName("experiment"),
		namespace:    namespace,
		pollInterval: DefaultPollInterval,
		waitMargin:   DeadlineMargin * time.Second,
	}
}

// Run executes the compiled experiment and collects the terminal state
// of every unit-test task pod. The workflow keeps running its full
// planned span even when tasks fail; failures surface in the result,
// not as errors. A planned task that never produced a pod is a
// deadline error.
func (r *Runner) Run(ctx context.Context, exp model.ChaosExperiment) (model.ExperimentResult, error) {
	result := model.ExperimentResult{PodStatuses: make(map[string]model.TaskStatus)}

	if err := r.client.DeleteWorkflowArtifacts(ctx, r.namespace, exp.WorkflowName); err != nil {
		r.log.Error(err, "pre-run cleanup incomplete", "workflow", exp.WorkflowName)
	}

	if err := r.client.Apply(ctx, exp.Workflow.Content); err != nil {
		return result, cerrors.New(cerrors.TransientInfra, fmt.Errorf("applying workflow %q: %w", exp.WorkflowName, err))
	}
	r.log.Info("workflow applied", "workflow", exp.WorkflowName, "total", exp.Plan.TimeSchedule.Total)

	if err := r.awaitAccomplished(ctx, exp); err != nil {
		return result, err
	}

	pods, err := r.client.WorkflowPods(ctx, r.namespace, exp.WorkflowName)
	if err != nil {
		return result, cerrors.New(cerrors.TransientInfra, err)
	}

	var missed []string
	for _, task := range unitTestTasks(exp.Plan) {
		pod, ok := podForTask(pods, task)
		if !ok {
			missed = append(missed, task)
			continue
		}
		status := model.TaskStatus{ExitCode: -1}
		if code, terminated := k8s.TerminatedExitCode(pod); terminated {
			status.ExitCode = code
		}
		logs, err := r.client.PodLogs(ctx, r.namespace, pod.Name)
		if err != nil {
			logs = k8s.PodDiagnostics(pod)
		}
		status.Logs = naming.LimitString(logs, naming.MaxLogLength)
		result.PodStatuses[task] = status
		r.log.Info("task finished", "task", task, "pod", pod.Name, "exitCode", status.ExitCode)
	}
	if len(missed) > 0 {
		sort.Strings(missed)
		return result, cerrors.Newf(cerrors.WorkflowDeadline,
			"workflow %s finished but these tasks never ran: %s",
			exp.WorkflowName, strings.Join(missed, ", "))
	}
	return result, nil
}

// awaitAccomplished polls the entry workflow node until its
// Accomplished condition leaves "False". The wait is bounded by the
// planned total time plus one margin.
func (r *Runner) awaitAccomplished(ctx context.Context, exp model.ChaosExperiment) error {
	total, err := schedule.ParseDuration(exp.Plan.TimeSchedule.Total)
	if err != nil {
		return cerrors.New(cerrors.SchemaFail, fmt.Errorf("experiment total time: %w", err))
	}
	deadline := time.Duration(total)*time.Second + r.waitMargin

	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		node, err := r.client.EntryNode(waitCtx, r.namespace, exp.WorkflowName)
		if err != nil {
			r.log.Error(err, "entry node lookup failed", "workflow", exp.WorkflowName)
		} else if node != nil && k8s.NodeAccomplishedStatus(node) != "False" {
			r.log.Info("workflow accomplished", "workflow", exp.WorkflowName)
			return nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return cerrors.New(cerrors.UserCancel, ctx.Err())
			}
			return cerrors.Newf(cerrors.WorkflowDeadline,
				"workflow %s did not finish within %s", exp.WorkflowName, deadline)
		case <-ticker.C:
		}
	}
}

// unitTestTasks lists the workflow names of every planned unit test.
// Fault templates spawn no pods and are not collected.
func unitTestTasks(plan model.ExperimentPlan) []string {
	var names []string
	for _, t := range plan.PreValidation.UnitTests {
		names = append(names, t.WorkflowName)
	}
	for _, t := range plan.FaultInjection.UnitTests {
		names = append(names, t.WorkflowName)
	}
	for _, t := range plan.PostValidation.UnitTests {
		names = append(names, t.WorkflowName)
	}
	return names
}

// podForTask matches a task to its pod by name prefix; workflow task
// pods are named after their template.
func podForTask(pods []corev1.Pod, task string) (*corev1.Pod, bool) {
	for i := range pods {
		if strings.HasPrefix(pods[i].Name, task) {
			return &pods[i], true
		}
	}
	return nil, false
}
