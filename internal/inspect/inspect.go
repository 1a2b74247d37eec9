// Package inspect runs generated measurement scripts against the
// cluster as ephemeral pods. Python probes run inside the probe image
// with the script mounted from a ConfigMap; k6 scripts run under the
// k6 image. The pod and its ConfigMap are deleted whatever happens.
package inspect

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/k8s"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/schedule"
	"github.com/chaoskit/chaoskit/internal/store"
	"github.com/chaoskit/chaoskit/internal/templates"
	"github.com/chaoskit/chaoskit/internal/util/naming"
)

// DefaultWaitTimeout bounds how long a probe pod may take to reach a
// terminal container state beyond its own duration.
const DefaultWaitTimeout = 5 * time.Minute

// Result is the terminal outcome of one probe run. Logs are already
// length-limited.
type Result struct {
	Pod      string `json:"pod"`
	Logs     string `json:"logs"`
	ExitCode int    `json:"exit_code"`
}

// Runner executes inspection scripts.
type Runner struct {
	client         *k8s.Client
	store          *store.Store
	log            logr.Logger
	namespace      string
	serviceAccount string
	waitTimeout    time.Duration
}

// New builds a Runner. The namespace hosts the ephemeral pods; the
// service account must be allowed to read the resources probes
// inspect.
func New(client *k8s.Client, st *store.Store, log logr.Logger, namespace, serviceAccount string) *Runner {
	return &Runner{
		client:         client,
		store:          st,
		log:            log.WithName("inspect"),
		namespace:      namespace,
		serviceAccount: serviceAccount,
		waitTimeout:    DefaultWaitTimeout,
	}
}

// PodNameFor derives the pod name from the script file name.
func PodNameFor(fname string) string {
	base := filepath.Base(fname)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := naming.SanitizeK8sName(base)
	const suffix = "-pod"
	if len(name) > naming.MaxK8sNameLength-len(suffix) {
		name = strings.TrimRight(name[:naming.MaxK8sNameLength-len(suffix)], "-")
	}
	return name + suffix
}

// Run executes one inspection script and returns its exit code and
// trimmed logs. A pod that never produces a terminated container state
// is a validation failure carrying synthesized diagnostics; the caller
// decides whether to re-prompt.
func (r *Runner) Run(ctx context.Context, toolType string, script model.File, duration string) (Result, error) {
	podName := PodNameFor(script.Fname)
	res := Result{Pod: podName, ExitCode: -1}

	manifest, err := r.renderManifest(toolType, podName, script, duration)
	if err != nil {
		return res, err
	}
	manifestRel := filepath.Join(filepath.Dir(script.Fname), podName+".yaml")
	if _, err := r.store.WriteFile(manifestRel, manifest); err != nil {
		return res, err
	}

	r.log.Info("running inspection pod", "pod", podName, "tool", toolType, "duration", duration)
	if err := r.client.Apply(ctx, manifest); err != nil {
		return res, fmt.Errorf("failed to apply inspection pod %q: %w", podName, err)
	}
	defer r.cleanup(podName)

	timeout := r.waitTimeout
	if secs, err := schedule.ParseDuration(duration); err == nil {
		timeout += time.Duration(secs) * time.Second
	}
	pod, waitErr := r.client.WaitForPodTerminated(ctx, r.namespace, podName, timeout)
	if waitErr != nil {
		res.Logs = naming.LimitString(k8s.PodDiagnostics(pod), naming.MaxLogLength)
		return res, cerrors.New(cerrors.ValidationFail,
			fmt.Errorf("inspection pod %q did not terminate: %s", podName, res.Logs))
	}

	logs, err := r.client.PodLogs(ctx, r.namespace, podName)
	if err != nil {
		logs = ""
	}
	res.Logs = naming.LimitString(logs, naming.MaxLogLength)

	exitCode, ok := k8s.TerminatedExitCode(pod)
	if !ok {
		res.Logs = naming.LimitString(k8s.PodDiagnostics(pod), naming.MaxLogLength)
		return res, cerrors.New(cerrors.ValidationFail,
			fmt.Errorf("inspection pod %q reported no container status: %s", podName, res.Logs))
	}
	res.ExitCode = exitCode
	r.log.Info("inspection pod finished", "pod", podName, "exitCode", exitCode)
	return res, nil
}

func (r *Runner) renderManifest(toolType, podName string, script model.File, duration string) (string, error) {
	switch toolType {
	case model.ToolProbeScript:
		secs, err := schedule.ParseDuration(duration)
		if err != nil {
			return "", cerrors.New(cerrors.SchemaFail, fmt.Errorf("bad probe duration %q: %w", duration, err))
		}
		return templates.Render(templates.PodProbe, templates.PodProbeParams{
			PodName:        podName,
			Namespace:      r.namespace,
			ServiceAccount: r.serviceAccount,
			ScriptFileName: filepath.Base(script.Fname),
			ScriptContent:  script.Content,
			Duration:       secs,
		})
	case model.ToolLoadTest:
		return templates.Render(templates.PodLoadTest, templates.PodLoadTestParams{
			PodName:        podName,
			Namespace:      r.namespace,
			ScriptFileName: filepath.Base(script.Fname),
			ScriptContent:  script.Content,
			Duration:       duration,
		})
	default:
		return "", cerrors.New(cerrors.SchemaFail, fmt.Errorf("unknown inspection tool type %q", toolType))
	}
}

// cleanup removes the pod and its script ConfigMap. Both deletes are
// tolerant so cleanup never masks the run's outcome.
func (r *Runner) cleanup(podName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.client.DeletePod(ctx, r.namespace, podName); err != nil {
		r.log.Info("failed to delete inspection pod", "pod", podName, "error", err.Error())
	}
	if err := r.client.DeleteConfigMap(ctx, r.namespace, podName+"-script"); err != nil {
		r.log.Info("failed to delete inspection configmap", "pod", podName, "error", err.Error())
	}
}
