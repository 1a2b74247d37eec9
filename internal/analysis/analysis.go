// Package analysis turns a failed experiment run into a report the
// improver can act on.
package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/store"
	"github.com/chaoskit/chaoskit/internal/util/naming"
)

// Analyzer reads a failed run against its hypothesis and plan.
type Analyzer struct {
	gw  llm.Gateway
	st  *store.Store
	log logr.Logger
}

// New builds an Analyzer persisting reports through st.
func New(gw llm.Gateway, st *store.Store, log logr.Logger) *Analyzer {
	return &Analyzer{gw: gw, st: st, log: log.WithName("analysis")}
}

// Analyze produces the report for the latest failed run and persists
// it as analysis/analysis_<N>.json, numbering after the prior reports
// of this cycle.
func (a *Analyzer) Analyze(
	ctx context.Context,
	data *model.ProcessedData,
	hyp *model.Hypothesis,
	plan model.ExperimentPlan,
	result model.ExperimentResult,
	prior []model.Analysis,
) (model.Analysis, error) {
	priorReports := make([]string, 0, len(prior))
	for _, p := range prior {
		priorReports = append(priorReports, p.Report)
	}

	report, err := a.gw.AnalyzeResult(ctx, llm.AnalysisRequest{
		Overview:      data.Overview(),
		Hypothesis:    describeHypothesis(hyp),
		PlanSummary:   plan.Summary,
		Results:       FormatResult(result),
		PriorAnalyses: priorReports,
	})
	if err != nil {
		return model.Analysis{}, err
	}

	seq := len(prior) + 1
	rel := filepath.Join("analysis", fmt.Sprintf("analysis_%d.json", seq))
	if err := a.st.WriteJSON(rel, report); err != nil {
		return model.Analysis{}, err
	}
	a.log.Info("analysis written", "path", rel, "attempt", seq)
	return report, nil
}

// FormatResult renders the per-task verdicts for prompts, tasks sorted
// by name so repeated runs produce identical text.
func FormatResult(result model.ExperimentResult) string {
	names := make([]string, 0, len(result.PodStatuses))
	for name := range result.PodStatuses {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		status := result.PodStatuses[name]
		verdict := "passed"
		if status.ExitCode != 0 {
			verdict = fmt.Sprintf("failed (exit code %d)", status.ExitCode)
		}
		fmt.Fprintf(&b, "### %s: %s\n", name, verdict)
		if status.Logs != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n", status.Logs)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeHypothesis(hyp *model.Hypothesis) string {
	var lines []string
	for _, s := range hyp.SteadyStates {
		lines = append(lines, fmt.Sprintf("%s: %s (threshold: %s)", s.Name, s.Description, s.Threshold.Value))
	}
	lines = append(lines, "fault event: "+hyp.Fault.Event)
	for w, wave := range hyp.Fault.Faults {
		for _, fault := range wave {
			lines = append(lines, fmt.Sprintf("wave %d injects %s", w+1, fault.Name))
		}
	}
	return naming.BulletPoints(lines)
}
