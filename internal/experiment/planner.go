// Package experiment plans, compiles, and runs the chaos experiment.
// The planner lays unit tests and fault injections out in time, the
// compiler lowers the plan into a single Chaos Mesh Workflow manifest,
// and the runner drives that workflow to completion and collects every
// task's verdict.
package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/schedule"
	"github.com/chaoskit/chaoskit/internal/util/naming"
)

// DeadlineMargin pads every unit-test deadline and every phase
// deadline, in seconds.
const DeadlineMargin = 300

// Planner asks the gateway for the experiment's time layout and binds
// the result to the hypothesis.
type Planner struct {
	gw  llm.Gateway
	log logr.Logger
}

// NewPlanner builds a Planner.
func NewPlanner(gw llm.Gateway, log logr.Logger) *Planner {
	return &Planner{gw: gw, log: log.WithName("planner")}
}

// Plan produces the complete experiment plan: time schedule, the three
// phase layouts, workflow names and deadlines, file and parameter
// bindings, and the prose summary used later by the analyzer.
func (p *Planner) Plan(ctx context.Context, data *model.ProcessedData, hyp *model.Hypothesis) (model.ExperimentPlan, error) {
	var plan model.ExperimentPlan
	overview := data.Overview()
	hypSummary := describeHypothesis(hyp)

	ts, err := p.gw.PlanTimeSchedule(ctx, llm.PlanRequest{Overview: overview, Hypothesis: hypSummary})
	if err != nil {
		return plan, err
	}
	if err := validateSchedule(ts); err != nil {
		return plan, cerrors.New(cerrors.SchemaFail, err)
	}
	plan.TimeSchedule = ts
	p.log.Info("time schedule planned", "total", ts.Total,
		"pre", ts.PreValidation, "fault", ts.FaultInjection, "post", ts.PostValidation)

	pre, err := p.gw.PlanValidationPhase(ctx, llm.ValidationPlanRequest{
		Overview: overview, Hypothesis: hypSummary,
		Phase: "pre-validation", PhaseDuration: ts.PreValidation,
	})
	if err != nil {
		return plan, err
	}
	plan.PreValidation = pre

	fault, err := p.gw.PlanFaultPhase(ctx, llm.FaultPlanRequest{
		Overview: overview, Hypothesis: hypSummary,
		Faults:        describeWaves(&hyp.Fault),
		PhaseDuration: ts.FaultInjection,
	})
	if err != nil {
		return plan, err
	}
	plan.FaultInjection = fault

	post, err := p.gw.PlanValidationPhase(ctx, llm.ValidationPlanRequest{
		Overview: overview, Hypothesis: hypSummary,
		Phase: "post-validation", PhaseDuration: ts.PostValidation,
	})
	if err != nil {
		return plan, err
	}
	plan.PostValidation = post

	if err := AssignWorkflowNames(&plan); err != nil {
		return plan, err
	}
	if err := BindHypothesis(&plan, hyp); err != nil {
		return plan, err
	}

	planJSON, err := json.MarshalIndent(&plan, "", "  ")
	if err != nil {
		return plan, err
	}
	summary, err := p.gw.SummarizePlan(ctx, string(planJSON))
	if err != nil {
		return plan, err
	}
	plan.Summary = summary
	return plan, nil
}

// AssignWorkflowNames gives every task its workflow name and deadline.
// Unit tests get duration plus the margin, or 10s when the planned
// duration is zero; faults run exactly their duration. Name collisions
// within a phase get numeric suffixes.
func AssignWorkflowNames(plan *model.ExperimentPlan) error {
	phases := []struct {
		prefix string
		tests  []model.UnitTestTask
	}{
		{"pre", plan.PreValidation.UnitTests},
		{"fault", plan.FaultInjection.UnitTests},
		{"post", plan.PostValidation.UnitTests},
	}
	for _, phase := range phases {
		dedupe := schedule.NewDeduper()
		for i := range phase.tests {
			task := &phase.tests[i]
			task.WorkflowName = dedupe.Name(fmt.Sprintf("%s-unittest-%s", phase.prefix, naming.SanitizeK8sName(task.Name)))
			secs, err := schedule.ParseDuration(task.Duration)
			if err != nil {
				return cerrors.New(cerrors.SchemaFail, fmt.Errorf("unit test %q: %w", task.Name, err))
			}
			if secs == 0 {
				task.Deadline = "10s"
			} else {
				task.Deadline = schedule.FormatDuration(secs + DeadlineMargin)
			}
		}
	}

	dedupe := schedule.NewDeduper()
	for i := range plan.FaultInjection.FaultInjection {
		task := &plan.FaultInjection.FaultInjection[i]
		task.WorkflowName = dedupe.Name("fault-" + naming.SanitizeK8sName(task.Name))
		if _, err := schedule.ParseDuration(task.Duration); err != nil {
			return cerrors.New(cerrors.SchemaFail, fmt.Errorf("fault %q: %w", task.Name, err))
		}
		task.Deadline = task.Duration
	}
	return nil
}

// BindHypothesis attaches each unit test's file path and each fault's
// refined parameters. A plan task with no hypothesis counterpart is a
// schema error.
func BindHypothesis(plan *model.ExperimentPlan, hyp *model.Hypothesis) error {
	testFiles := make(map[string]string, len(hyp.SteadyStates))
	for _, state := range hyp.SteadyStates {
		if _, dup := testFiles[state.Name]; dup {
			return cerrors.Newf(cerrors.SchemaFail,
				"hypothesis defines steady state %q more than once", state.Name)
		}
		testFiles[state.Name] = state.UnitTest.Fname
	}
	for _, tests := range [][]model.UnitTestTask{
		plan.PreValidation.UnitTests,
		plan.FaultInjection.UnitTests,
		plan.PostValidation.UnitTests,
	} {
		for i := range tests {
			path, ok := testFiles[tests[i].Name]
			if !ok {
				return cerrors.Newf(cerrors.SchemaFail,
					"planned unit test %q matches no steady state", tests[i].Name)
			}
			tests[i].FilePath = path
		}
	}

	for i := range plan.FaultInjection.FaultInjection {
		task := &plan.FaultInjection.FaultInjection[i]
		found := false
		for _, wave := range hyp.Fault.Faults {
			for _, fault := range wave {
				if fault.Name == task.Name && fault.NameID == task.NameID {
					task.Params = fault.Params
					found = true
				}
			}
		}
		if !found {
			return cerrors.Newf(cerrors.SchemaFail,
				"planned fault %s/%d matches no scenario fault", task.Name, task.NameID)
		}
	}
	return nil
}

func validateSchedule(ts model.TimeSchedule) error {
	for _, d := range []string{ts.Total, ts.PreValidation, ts.FaultInjection, ts.PostValidation} {
		if _, err := schedule.ParseDuration(d); err != nil {
			return fmt.Errorf("bad schedule duration %q: %w", d, err)
		}
	}
	return nil
}

func describeHypothesis(hyp *model.Hypothesis) string {
	var lines []string
	for _, s := range hyp.SteadyStates {
		lines = append(lines, fmt.Sprintf("steady state %s: %s (threshold: %s, unit test: %s)",
			s.Name, s.Description, s.Threshold.Value, filepath.Base(s.UnitTest.Fname)))
	}
	lines = append(lines, "fault event: "+hyp.Fault.Event)
	lines = append(lines, describeWaves(&hyp.Fault)...)
	return naming.BulletPoints(lines)
}

func describeWaves(scenario *model.FaultScenario) []string {
	var lines []string
	for w, wave := range scenario.Faults {
		for _, fault := range wave {
			lines = append(lines, fmt.Sprintf("wave %d: %s (name_id %d)", w+1, fault.Name, fault.NameID))
		}
	}
	return lines
}
