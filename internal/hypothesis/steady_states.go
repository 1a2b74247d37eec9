package hypothesis

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/util/naming"
)

// BuildSteadyStates drafts, measures, and validates steady states one
// by one until the completion check is satisfied or the cap is
// reached. The loop counter guards against drafts that never converge.
func (b *Builder) BuildSteadyStates(ctx context.Context, data *model.ProcessedData) ([]model.SteadyState, error) {
	overview := data.Overview()
	var states []model.SteadyState
	checkThought := ""
	attempts := 0
	for len(states) < b.cfg.MaxSteadyStates {
		if err := ctx.Err(); err != nil {
			return nil, cerrors.New(cerrors.UserCancel, err)
		}
		if attempts >= b.cfg.MaxRetries+b.cfg.MaxSteadyStates {
			return nil, cerrors.Newf(cerrors.BudgetExceeded,
				"failed to define steady states within %d tries", b.cfg.MaxRetries+b.cfg.MaxSteadyStates)
		}
		attempts++

		draft, err := b.gw.DraftSteadyState(ctx, llm.SteadyStateRequest{
			Overview:     overview,
			Instructions: data.CEInstructions,
			Defined:      describeStates(states),
			CheckThought: checkThought,
		})
		if err != nil {
			return nil, err
		}
		b.log.Info("drafted steady state", "name", draft.Name, "manifest", draft.Manifest)

		if stateNamed(states, draft.Name) {
			b.log.Info("draft reuses an existing state name, re-drafting", "name", draft.Name)
			checkThought = fmt.Sprintf("a state named %q is already defined, pick a distinct name", draft.Name)
			continue
		}

		inspection, err := b.buildInspection(ctx, overview, data.CEInstructions, draft)
		if err != nil {
			if cerrors.Is(err, cerrors.BudgetExceeded) {
				continue
			}
			return nil, err
		}

		threshold, err := b.gw.DefineThreshold(ctx, llm.ThresholdRequest{
			Overview:          overview,
			StateName:         draft.Name,
			StateThought:      draft.Thought,
			InspectionSummary: inspection.Script.Content,
			Observed:          inspection.Result,
		})
		if err != nil {
			return nil, err
		}

		unitTest, err := b.buildUnitTest(ctx, overview, draft, inspection, threshold.Threshold)
		if err != nil {
			if cerrors.Is(err, cerrors.BudgetExceeded) {
				continue
			}
			return nil, err
		}

		states = append(states, model.SteadyState{
			ID:          len(states),
			Name:        draft.Name,
			Description: draft.Thought,
			Inspection:  inspection,
			Threshold:   model.Threshold{Value: threshold.Threshold, Rationale: threshold.Thought},
			UnitTest:    unitTest,
		})

		if len(states) >= b.cfg.MaxSteadyStates {
			break
		}
		check, err := b.gw.CheckCompletion(ctx, llm.CompletionRequest{
			Overview:        overview,
			Instructions:    data.CEInstructions,
			Defined:         describeStates(states),
			MaxSteadyStates: b.cfg.MaxSteadyStates,
		})
		if err != nil {
			return nil, err
		}
		checkThought = check.Thought
		if !check.RequiresAddition {
			break
		}
	}
	if len(states) == 0 {
		return nil, cerrors.Newf(cerrors.BudgetExceeded, "no steady state survived validation")
	}
	return states, nil
}

// buildInspection generates the measurement script and runs it until
// it exits zero, re-prompting with the accumulated failures.
func (b *Builder) buildInspection(ctx context.Context, overview, instructions string, draft llm.SteadyStateDraft) (model.Inspection, error) {
	req := llm.InspectionRequest{
		Overview:     overview,
		Instructions: instructions,
		StateName:    draft.Name,
		StateThought: draft.Thought,
	}
	design, err := b.gw.DesignInspection(ctx, req)
	if err != nil {
		return model.Inspection{}, err
	}

	var history []string
	for attempt := 0; ; attempt++ {
		if attempt >= b.cfg.MaxRetries {
			return model.Inspection{}, cerrors.Newf(cerrors.BudgetExceeded,
				"inspection for %q failed %d times", draft.Name, attempt)
		}

		script := b.scriptFile(design.ToolType, draft.Name, attempt)
		script.Content = design.Tool.Script
		if _, err := b.store.WriteFile(script.Fname, script.Content); err != nil {
			return model.Inspection{}, err
		}

		res, runErr := b.runner.Run(ctx, design.ToolType, script, design.Tool.Duration)
		if runErr == nil && res.ExitCode == 0 {
			return model.Inspection{
				ToolType: design.ToolType,
				Duration: design.Tool.Duration,
				Script:   script,
				Result:   res.Logs,
			}, nil
		}
		if runErr != nil && !cerrors.Is(runErr, cerrors.ValidationFail) {
			return model.Inspection{}, runErr
		}

		failure := fmt.Sprintf("exit=%d logs:\n%s", res.ExitCode, res.Logs)
		if runErr != nil {
			failure = runErr.Error()
		}
		history = append(history, failure)
		b.log.Info("inspection script failed, re-prompting",
			"state", draft.Name, "attempt", attempt+1, "exitCode", res.ExitCode)

		design, err = b.gw.RewriteInspection(ctx, req, history)
		if err != nil {
			return model.Inspection{}, err
		}
	}
}

// buildUnitTest turns the threshold into a test and proves it passes
// against the pre-fault cluster.
func (b *Builder) buildUnitTest(ctx context.Context, overview string, draft llm.SteadyStateDraft, inspection model.Inspection, threshold string) (model.File, error) {
	req := llm.UnitTestRequest{
		Overview:         overview,
		StateName:        draft.Name,
		Threshold:        threshold,
		InspectionScript: inspection.Script.Content,
	}
	test, err := b.gw.WriteUnitTest(ctx, req)
	if err != nil {
		return model.File{}, err
	}

	var history []string
	for attempt := 0; ; attempt++ {
		if attempt >= b.cfg.MaxRetries {
			return model.File{}, cerrors.Newf(cerrors.BudgetExceeded,
				"unit test for %q failed %d times", draft.Name, attempt)
		}

		fname := fmt.Sprintf("unittest_%s_mod%d.py", naming.SanitizeFilename(draft.Name), attempt)
		script := model.File{
			Fname:   filepath.Join("hypothesis", fname),
			Content: test.Code,
		}
		if _, err := b.store.WriteFile(script.Fname, script.Content); err != nil {
			return model.File{}, err
		}

		res, runErr := b.runner.Run(ctx, model.ToolProbeScript, script, inspection.Duration)
		if runErr == nil && res.ExitCode == 0 {
			return script, nil
		}
		if runErr != nil && !cerrors.Is(runErr, cerrors.ValidationFail) {
			return model.File{}, runErr
		}

		failure := fmt.Sprintf("exit=%d logs:\n%s", res.ExitCode, res.Logs)
		if runErr != nil {
			failure = runErr.Error()
		}
		history = append(history, failure)
		b.log.Info("unit test failed pre-fault, re-prompting",
			"state", draft.Name, "attempt", attempt+1, "exitCode", res.ExitCode)

		test, err = b.gw.RewriteUnitTest(ctx, req, history)
		if err != nil {
			return model.File{}, err
		}
	}
}

// scriptFile names an inspection script the way artifacts are laid out
// under hypothesis/: k8s_<state>.py or k6_<state>.js, with a _modN
// suffix on rewrites.
func (b *Builder) scriptFile(toolType, stateName string, attempt int) model.File {
	prefix, ext := "k8s_", ".py"
	if toolType == model.ToolLoadTest {
		prefix, ext = "k6_", ".js"
	}
	base := prefix + naming.SanitizeFilename(stateName)
	if attempt > 0 {
		base = fmt.Sprintf("%s_mod%d", base, attempt)
	}
	return model.File{Fname: filepath.Join("hypothesis", base+ext)}
}

func stateNamed(states []model.SteadyState, name string) bool {
	for _, s := range states {
		if s.Name == name {
			return true
		}
	}
	return false
}

func describeStates(states []model.SteadyState) []string {
	out := make([]string, 0, len(states))
	for _, s := range states {
		out = append(out, fmt.Sprintf("%s: %s (threshold: %s)", s.Name, s.Description, s.Threshold.Value))
	}
	return out
}
