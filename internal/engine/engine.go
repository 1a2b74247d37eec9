// Package engine drives a full chaos engineering cycle through its
// phases: preprocess, hypothesis, plan, run, and on failing runs the
// analyze/improve/replan loop, finishing with a postmortem. The engine
// owns the CycleState and snapshots it to outputs/output.json at every
// phase boundary.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/config"
	"github.com/chaoskit/chaoskit/internal/experiment"
	"github.com/chaoskit/chaoskit/internal/k8s"
	"github.com/chaoskit/chaoskit/internal/metrics"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/preprocess"
	"github.com/chaoskit/chaoskit/internal/store"
)

// Exit codes of a cycle.
const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitBudget    = 2
	ExitCancelled = 3
)

// SnapshotFile is where the latest cycle output lands after every
// phase boundary.
const SnapshotFile = "outputs/output.json"

// Preprocessor ingests and deploys the user bundle.
type Preprocessor interface {
	Process(ctx context.Context, input model.Input) (*model.ProcessedData, error)
}

// HypothesisBuilder defines and validates steady states and faults.
type HypothesisBuilder interface {
	Build(ctx context.Context, data *model.ProcessedData) (model.Hypothesis, error)
}

// Planner lays the hypothesis out on a timeline.
type Planner interface {
	Plan(ctx context.Context, data *model.ProcessedData, hyp *model.Hypothesis) (model.ExperimentPlan, error)
}

// Runner executes a compiled experiment on the cluster.
type Runner interface {
	Run(ctx context.Context, exp model.ChaosExperiment) (model.ExperimentResult, error)
}

// Analyzer explains a failed run.
type Analyzer interface {
	Analyze(ctx context.Context, data *model.ProcessedData, hyp *model.Hypothesis,
		plan model.ExperimentPlan, result model.ExperimentResult, prior []model.Analysis) (model.Analysis, error)
}

// Improver reconfigures manifests and re-targets the hypothesis after
// an analysis.
type Improver interface {
	Reconfigure(ctx context.Context, data *model.ProcessedData, hypothesis string,
		analysis model.Analysis, yamls []model.File, srcDir string, attempt int,
		history []string) ([]model.File, string, model.Reconfiguration, error)
	Replan(ctx context.Context, prevYamls, currYamls []model.File, hyp *model.Hypothesis) error
}

// Summarizer writes the cycle postmortem.
type Summarizer interface {
	Summarize(ctx context.Context, state *model.CycleState) (string, error)
}

// Components are the phase implementations the engine sequences.
type Components struct {
	Preprocessor Preprocessor
	Hypothesis   HypothesisBuilder
	Planner      Planner
	Runner       Runner
	Analyzer     Analyzer
	Improver     Improver
	Summarizer   Summarizer
}

// Engine sequences one cycle. A cycle owns its work dir, namespace and
// project label exclusively.
type Engine struct {
	cfg    config.Config
	st     *store.Store
	client *k8s.Client
	met    *metrics.Metrics
	comp   Components
	log    logr.Logger
	now    func() time.Time
}

func New(cfg config.Config, st *store.Store, client *k8s.Client, met *metrics.Metrics, comp Components, log logr.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		st:     st,
		client: client,
		met:    met,
		comp:   comp,
		log:    log.WithName("engine"),
		now:    time.Now,
	}
}

// Run executes the cycle and returns its exit code. All artifacts,
// including the final snapshot and metrics dump, are left under the
// work dir regardless of the outcome.
func (e *Engine) Run(ctx context.Context, input model.Input) int {
	state := &model.CycleState{}
	out := &model.CycleOutput{
		OutputDir: "outputs",
		WorkDir:   e.st.WorkDir(),
		Logs:      map[string][]string{},
		RunTime:   map[string]float64{},
		CECycle:   state,
	}

	if e.cfg.CleanBefore {
		e.cleanCluster(ctx)
	}

	err := e.runCycle(ctx, input, state, out)
	if err != nil {
		out.Error = err.Error()
		e.log.Error(err, "cycle failed", "kind", cerrors.KindOf(err))
	}
	e.snapshot(out)

	if e.cfg.CleanAfter {
		// Teardown still runs after cancellation.
		e.cleanCluster(context.WithoutCancel(ctx))
	}
	if path, rerr := e.st.Resolve("outputs/metrics.prom"); rerr == nil {
		if werr := e.met.WriteFile(path); werr != nil {
			e.log.Error(werr, "writing metrics dump")
		}
	}

	if err == nil {
		return ExitSuccess
	}
	switch cerrors.KindOf(err) {
	case cerrors.UserCancel:
		return ExitCancelled
	case cerrors.BudgetExceeded:
		return ExitBudget
	default:
		return ExitError
	}
}

func (e *Engine) runCycle(ctx context.Context, input model.Input, state *model.CycleState, out *model.CycleOutput) error {
	err := e.phase(ctx, out, "preprocess", func(ctx context.Context) error {
		data, err := e.comp.Preprocessor.Process(ctx, input)
		if err != nil {
			return err
		}
		state.ProcessedData = *data
		e.logPhase(out, "preprocess", fmt.Sprintf("deployed %d manifests, system ready", len(data.K8sYamls)))
		return nil
	})
	if err != nil {
		return err
	}

	err = e.phase(ctx, out, "hypothesis", func(ctx context.Context) error {
		hyp, err := e.comp.Hypothesis.Build(ctx, &state.ProcessedData)
		if err != nil {
			return err
		}
		state.Hypothesis = &hyp
		e.logPhase(out, "hypothesis", fmt.Sprintf("defined steady states: %s",
			strings.Join(hyp.SteadyStateNames(), ", ")))
		e.logPhase(out, "hypothesis", "fault event: "+hyp.Fault.Event)
		return nil
	})
	if err != nil {
		return err
	}

	err = e.phase(ctx, out, "plan", func(ctx context.Context) error {
		plan, err := e.comp.Planner.Plan(ctx, &state.ProcessedData, state.Hypothesis)
		if err != nil {
			return err
		}
		return e.compileAndPersist(plan, state, out, "plan")
	})
	if err != nil {
		return err
	}

	for {
		var result model.ExperimentResult
		err = e.phase(ctx, out, "run", func(ctx context.Context) error {
			r, err := e.comp.Runner.Run(ctx, *state.Experiment)
			result = r
			return err
		})
		if result.PodStatuses != nil {
			state.ResultHistory = append(state.ResultHistory, result)
			e.met.AddTaskFailures(countFailures(result))
		}
		if err != nil {
			return err
		}
		e.logPhase(out, "run", fmt.Sprintf("workflow %s finished, %d tasks, all passed: %t",
			state.Experiment.WorkflowName, len(result.PodStatuses), result.AllPassed()))
		if result.AllPassed() {
			break
		}

		if len(state.ReconfigHistory) >= e.cfg.MaxRetries {
			return cerrors.Newf(cerrors.BudgetExceeded,
				"steady states still failing after %d improvement iterations", len(state.ReconfigHistory))
		}
		state.ConductsReconfig = true

		err = e.phase(ctx, out, "analyze", func(ctx context.Context) error {
			an, err := e.comp.Analyzer.Analyze(ctx, &state.ProcessedData, state.Hypothesis,
				state.Experiment.Plan, result, state.AnalysisHistory)
			if err != nil {
				return err
			}
			state.AnalysisHistory = append(state.AnalysisHistory, an)
			return nil
		})
		if err != nil {
			return err
		}

		prevYamls := state.CurrentYamls()
		err = e.phase(ctx, out, "improve", func(ctx context.Context) error {
			attempt := len(state.ReconfigHistory)
			srcDir := state.CurrentModDir()
			if srcDir == "" {
				srcDir = preprocess.BundleDir
			}
			newYamls, dstDir, reconfig, err := e.comp.Improver.Reconfigure(ctx,
				&state.ProcessedData, describeHypothesis(state.Hypothesis),
				state.AnalysisHistory[len(state.AnalysisHistory)-1],
				prevYamls, srcDir, attempt, reconfigJSONs(state.ReconfigHistory))
			if err != nil {
				return err
			}
			state.ReconfigHistory = append(state.ReconfigHistory, reconfig)
			state.K8sYamlsHistory = append(state.K8sYamlsHistory, newYamls)
			state.ModDirHistory = append(state.ModDirHistory, dstDir)
			e.met.AddIteration()
			e.logPhase(out, "improve", fmt.Sprintf("reconfigured into %s (%d manifests)", dstDir, len(newYamls)))
			return nil
		})
		if err != nil {
			return err
		}
		if err := state.CheckHistoryInvariants(); err != nil {
			return cerrors.New(cerrors.Internal, err)
		}

		err = e.phase(ctx, out, "replan", func(ctx context.Context) error {
			if err := e.comp.Improver.Replan(ctx, prevYamls, state.CurrentYamls(), state.Hypothesis); err != nil {
				return err
			}
			plan := state.Experiment.Plan
			if err := experiment.BindHypothesis(&plan, state.Hypothesis); err != nil {
				return err
			}
			return e.compileAndPersist(plan, state, out, "replan")
		})
		if err != nil {
			return err
		}
	}

	state.CompletesReconfig = state.ConductsReconfig
	return e.phase(ctx, out, "postprocess", func(ctx context.Context) error {
		summary, err := e.comp.Summarizer.Summarize(ctx, state)
		if err != nil {
			return err
		}
		state.Summary = summary
		e.logPhase(out, "postprocess", "postmortem written to outputs/summary.md")
		return nil
	})
}

// compileAndPersist turns a plan into workflow YAML, writes the
// experiment artifacts and installs the experiment on the state.
func (e *Engine) compileAndPersist(plan model.ExperimentPlan, state *model.CycleState, out *model.CycleOutput, phase string) error {
	exp, err := experiment.Compile(plan, experiment.CompilerConfig{
		Namespace: e.cfg.ChaosNamespace,
		HostRoot:  e.cfg.HostRoot,
	}, e.now())
	if err != nil {
		return err
	}
	if err := experiment.Persist(e.st, exp); err != nil {
		return err
	}
	state.Experiment = &exp
	e.logPhase(out, phase, "compiled workflow "+exp.WorkflowName)
	return nil
}

// phase runs one state-machine phase: checks for cancellation at the
// boundary, times the body, records metrics and logs, and snapshots
// the cycle output before returning.
func (e *Engine) phase(ctx context.Context, out *model.CycleOutput, name string, fn func(context.Context) error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerrors.New(cerrors.UserCancel, cerr)
	}
	e.log.Info("phase start", "phase", name)
	start := e.now()
	err := fn(ctx)
	elapsed := time.Since(start)

	out.RunTime[name] += elapsed.Seconds()
	e.met.ObservePhase(name, elapsed, err)
	if err != nil {
		e.logPhase(out, name, "error: "+err.Error())
	}
	e.snapshot(out)
	return err
}

func (e *Engine) snapshot(out *model.CycleOutput) {
	if err := e.st.WriteJSON(SnapshotFile, out); err != nil {
		e.log.Error(err, "writing snapshot")
	}
}

func (e *Engine) logPhase(out *model.CycleOutput, phase, msg string) {
	out.Logs[phase] = append(out.Logs[phase], msg)
	e.log.Info(msg, "phase", phase)
}

// cleanCluster removes everything the cycle deployed under its project
// label plus workflow leftovers in the chaos namespace. Best effort.
func (e *Engine) cleanCluster(ctx context.Context) {
	if e.client == nil {
		return
	}
	if err := e.client.DeleteByLabel(ctx, "project="+e.cfg.Project); err != nil {
		e.log.Error(err, "cleaning labeled resources")
	}
	kinds := []string{"workflows", "workflownodes", "deployments", "pods", "services", "configmaps"}
	if err := e.client.DeleteByNamespace(ctx, e.cfg.ChaosNamespace, kinds); err != nil {
		e.log.Error(err, "cleaning chaos namespace")
	}
}

func countFailures(result model.ExperimentResult) int {
	n := 0
	for _, s := range result.PodStatuses {
		if s.ExitCode != 0 {
			n++
		}
	}
	return n
}

func reconfigJSONs(history []model.Reconfiguration) []string {
	if len(history) == 0 {
		return nil
	}
	rendered := make([]string, 0, len(history))
	for _, r := range history {
		raw, err := json.Marshal(r)
		if err != nil {
			continue
		}
		rendered = append(rendered, string(raw))
	}
	return rendered
}

func describeHypothesis(hyp *model.Hypothesis) string {
	var b strings.Builder
	for _, s := range hyp.SteadyStates {
		fmt.Fprintf(&b, "- %s: %s (threshold: %s)\n", s.Name, s.Description, s.Threshold.Value)
	}
	fmt.Fprintf(&b, "fault event: %s\n", hyp.Fault.Event)
	for i, wave := range hyp.Fault.Faults {
		for _, f := range wave {
			fmt.Fprintf(&b, "wave %d injects %s\n", i+1, f.Name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
