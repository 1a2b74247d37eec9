package experiment

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/chaosmesh"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/schedule"
	"github.com/chaoskit/chaoskit/internal/store"
	"github.com/chaoskit/chaoskit/internal/templates"
	"github.com/chaoskit/chaoskit/internal/util/naming"
)

// CompilerConfig locates the compiled workflow in the cluster and the
// unit tests on the node filesystem.
type CompilerConfig struct {
	// Namespace hosts the Workflow resource.
	Namespace string
	// HostRoot is the work directory as seen from the cluster nodes;
	// task pods mount unit tests from below it.
	HostRoot string
}

// Compile lowers an experiment plan into a single Chaos Mesh Workflow
// manifest. Given the same plan and clock the output is byte
// identical.
func Compile(plan model.ExperimentPlan, cfg CompilerConfig, now time.Time) (model.ChaosExperiment, error) {
	workflowName := "chaos-experiment-" + strings.ReplaceAll(naming.Timestamp(now), "_", "-")

	pre, err := compilePhase("pre-validation", cfg, plan.PreValidation.UnitTests, nil)
	if err != nil {
		return model.ChaosExperiment{}, err
	}
	fault, err := compilePhase("fault-injection", cfg, plan.FaultInjection.UnitTests, plan.FaultInjection.FaultInjection)
	if err != nil {
		return model.ChaosExperiment{}, err
	}
	post, err := compilePhase("post-validation", cfg, plan.PostValidation.UnitTests, nil)
	if err != nil {
		return model.ChaosExperiment{}, err
	}

	grandchildren := strings.Join(collect(pre.templates, fault.templates, post.templates), "\n\n")
	workflow, err := templates.Render(templates.WorkflowMeta, templates.WorkflowMetaParams{
		WorkflowName:   workflowName,
		Namespace:      cfg.Namespace,
		TotalTime:      schedule.FormatDuration(pre.deadline + fault.deadline + post.deadline + 3*DeadlineMargin),
		PreValidation:  templates.PhaseParams{Deadline: schedule.FormatDuration(pre.deadline + DeadlineMargin), Children: pre.children},
		FaultInjection: templates.PhaseParams{Deadline: schedule.FormatDuration(fault.deadline + DeadlineMargin), Children: fault.children},
		PostValidation: templates.PhaseParams{Deadline: schedule.FormatDuration(post.deadline + DeadlineMargin), Children: post.children},
		Grandchildren:  grandchildren,
	})
	if err != nil {
		return model.ChaosExperiment{}, err
	}

	return model.ChaosExperiment{
		Plan:         plan,
		WorkflowName: workflowName,
		Workflow: model.File{
			Fname:   filepath.Join("experiment", "workflow.yaml"),
			Content: workflow,
		},
	}, nil
}

// Persist writes the compiled workflow manifest and the experiment
// record under experiment/ in the work directory.
func Persist(st *store.Store, exp model.ChaosExperiment) error {
	if _, err := st.WriteFile(exp.Workflow.Fname, exp.Workflow.Content); err != nil {
		return err
	}
	return st.WriteJSON(filepath.Join("experiment", "experiment.json"), exp)
}

// compiledPhase is one phase lowered to workflow templates.
type compiledPhase struct {
	children  []string
	templates []string
	deadline  int
}

// compilePhase renders the phase's task and fault templates and lays
// them out in time via the sweep-merge grouping.
func compilePhase(phaseName string, cfg CompilerConfig, tests []model.UnitTestTask, faults []model.FaultTask) (compiledPhase, error) {
	var phase compiledPhase

	var items []schedule.Task
	for _, t := range tests {
		task, err := scheduleTask(t.WorkflowName, t.GracePeriod, t.Deadline)
		if err != nil {
			return phase, err
		}
		items = append(items, task)

		tmpl, err := renderUnitTest(t, cfg)
		if err != nil {
			return phase, err
		}
		phase.templates = append(phase.templates, tmpl)
	}
	for _, f := range faults {
		task, err := scheduleTask(f.WorkflowName, f.GracePeriod, f.Deadline)
		if err != nil {
			return phase, err
		}
		items = append(items, task)

		tmpl, err := renderFault(f)
		if err != nil {
			return phase, err
		}
		phase.templates = append(phase.templates, tmpl)
	}
	if len(items) == 0 {
		return phase, cerrors.Newf(cerrors.SchemaFail, "%s phase has no tasks", phaseName)
	}

	overlaps, err := schedule.MergeOverlaps(schedule.GroupByStart(items))
	if err != nil {
		return phase, err
	}
	children, grouping, err := layoutPhase(phaseName, overlaps)
	if err != nil {
		return phase, err
	}
	phase.children = children
	phase.templates = append(phase.templates, grouping...)
	phase.deadline = schedule.PhaseDuration(overlaps)
	return phase, nil
}

// layoutPhase turns the overlap groups into workflow children and
// grouping templates. A lone task becomes a direct child; simultaneous
// tasks share a Parallel; overlapping groups nest Serial[Suspend,
// Parallel] chains inside an outer Parallel so their offsets hold.
func layoutPhase(phaseName string, overlaps []schedule.OverlapGroup) ([]string, []string, error) {
	var children, rendered []string
	dedupe := schedule.NewDeduper()

	renderGroup := func(templateType, name string, deadline int, children []string) error {
		tmpl, err := templates.Render(templates.GroundChildren, templates.GroundChildrenParams{
			Name:         name,
			TemplateType: templateType,
			Deadline:     schedule.FormatDuration(deadline),
			Children:     children,
		})
		if err != nil {
			return err
		}
		rendered = append(rendered, tmpl)
		return nil
	}

	for _, og := range overlaps {
		if len(og.Members) == 1 {
			pg := og.Members[0].Group
			if len(pg.Tasks) == 1 {
				children = append(children, pg.Tasks[0].Name)
				continue
			}
			name := dedupe.Name(phaseName + "-parallel-workflows")
			children = append(children, name)
			if err := renderGroup("Parallel", name, pg.Duration, taskNames(pg)); err != nil {
				return nil, nil, err
			}
			continue
		}

		outer := dedupe.Name(phaseName + "-overlapped-workflows")
		children = append(children, outer)
		var memberNames []string
		for _, m := range og.Members {
			pg := m.Group
			switch {
			case m.Suspend == 0 && len(pg.Tasks) == 1:
				memberNames = append(memberNames, pg.Tasks[0].Name)
			case m.Suspend == 0:
				name := dedupe.Name(phaseName + "-parallel-workflow")
				memberNames = append(memberNames, name)
				if err := renderGroup("Parallel", name, pg.Duration, taskNames(pg)); err != nil {
					return nil, nil, err
				}
			default:
				serialName := dedupe.Name(phaseName + "-suspend-workflow")
				suspendName := dedupe.Name(phaseName + "-suspend")
				memberNames = append(memberNames, serialName)
				inner := pg.Tasks[0].Name
				var parallelName string
				if len(pg.Tasks) > 1 {
					parallelName = dedupe.Name(phaseName + "-parallel-workflows")
					inner = parallelName
				}
				if err := renderGroup("Serial", serialName, m.Suspend+pg.Duration, []string{suspendName, inner}); err != nil {
					return nil, nil, err
				}
				suspend, err := templates.Render(templates.Suspend, templates.SuspendParams{
					Name:     suspendName,
					Deadline: schedule.FormatDuration(m.Suspend),
				})
				if err != nil {
					return nil, nil, err
				}
				rendered = append(rendered, suspend)
				if parallelName != "" {
					if err := renderGroup("Parallel", parallelName, pg.Duration, taskNames(pg)); err != nil {
						return nil, nil, err
					}
				}
			}
		}
		if err := renderGroup("Parallel", outer, og.Duration, memberNames); err != nil {
			return nil, nil, err
		}
	}
	return children, rendered, nil
}

func renderUnitTest(task model.UnitTestTask, cfg CompilerConfig) (string, error) {
	hostDir := filepath.Join(cfg.HostRoot, filepath.Dir(task.FilePath))
	if filepath.Ext(task.FilePath) == ".js" {
		return templates.Render(templates.TaskLoadTest, templates.TaskParams{
			TaskName: task.WorkflowName,
			Deadline: task.Deadline,
			Duration: task.Duration,
			FileName: filepath.Base(task.FilePath),
			HostDir:  hostDir,
		})
	}
	secs, err := schedule.ParseDuration(task.Duration)
	if err != nil {
		return "", cerrors.New(cerrors.SchemaFail, fmt.Errorf("unit test %q: %w", task.WorkflowName, err))
	}
	return templates.Render(templates.TaskProbe, templates.TaskParams{
		TaskName: task.WorkflowName,
		Deadline: task.Deadline,
		Duration: strconv.Itoa(secs),
		FileName: filepath.Base(task.FilePath),
		HostDir:  hostDir,
	})
}

func renderFault(task model.FaultTask) (string, error) {
	kind, err := chaosmesh.ParseKind(task.Name)
	if err != nil {
		return "", cerrors.New(cerrors.SchemaFail, err)
	}
	specs, err := chaosmesh.MarshalParams(task.Params)
	if err != nil {
		return "", err
	}
	return templates.Render(templates.Fault, templates.FaultParams{
		Name:           task.WorkflowName,
		Kind:           string(kind),
		KindLowerCamel: kind.LowerCamel(),
		Deadline:       task.Deadline,
		Specs:          specs,
	})
}

func scheduleTask(name, gracePeriod, deadline string) (schedule.Task, error) {
	start, err := schedule.ParseDuration(gracePeriod)
	if err != nil {
		return schedule.Task{}, cerrors.New(cerrors.SchemaFail, fmt.Errorf("task %q grace period: %w", name, err))
	}
	dl, err := schedule.ParseDuration(deadline)
	if err != nil {
		return schedule.Task{}, cerrors.New(cerrors.SchemaFail, fmt.Errorf("task %q deadline: %w", name, err))
	}
	return schedule.Task{Name: name, Start: start, Deadline: dl}, nil
}

func taskNames(pg schedule.ParallelGroup) []string {
	names := make([]string, 0, len(pg.Tasks))
	for _, t := range pg.Tasks {
		names = append(names, t.Name)
	}
	return names
}

func collect(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
