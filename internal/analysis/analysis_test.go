package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/store"
)

type analysisGateway struct {
	llm.Gateway
	req llm.AnalysisRequest
}

func (g *analysisGateway) AnalyzeResult(_ context.Context, req llm.AnalysisRequest) (model.Analysis, error) {
	g.req = req
	return model.Analysis{Report: "carts-db lost its second replica during the pod kill"}, nil
}

func failedResult() model.ExperimentResult {
	return model.ExperimentResult{PodStatuses: map[string]model.TaskStatus{
		"pre-unittest-cartsdbpodcount":   {ExitCode: 0, Logs: "2 pods running"},
		"fault-unittest-cartsdbpodcount": {ExitCode: 1, Logs: "AssertionError: expected 2 pods, saw 1"},
	}}
}

func TestAnalyzePersistsNumberedReport(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	gw := &analysisGateway{}
	analyzer := New(gw, st, logr.Discard())

	hyp := &model.Hypothesis{
		SteadyStates: []model.SteadyState{{
			Name:        "CartsDbPodCount",
			Description: "carts-db keeps two replicas",
			Threshold:   model.Threshold{Value: "pod count >= 2"},
		}},
		Fault: model.FaultScenario{
			Event:  "black friday pod pressure",
			Faults: [][]model.Fault{{{Name: "PodChaos"}}},
		},
	}
	prior := []model.Analysis{{Report: "first attempt: replica recovery too slow"}}

	report, err := analyzer.Analyze(context.Background(), &model.ProcessedData{}, hyp,
		model.ExperimentPlan{Summary: "kill one carts-db pod mid-experiment"}, failedResult(), prior)
	require.NoError(t, err)
	assert.Contains(t, report.Report, "carts-db")

	var persisted model.Analysis
	require.NoError(t, st.ReadJSON("analysis/analysis_2.json", &persisted))
	assert.Equal(t, report, persisted)

	assert.Contains(t, gw.req.Hypothesis, "CartsDbPodCount")
	assert.Contains(t, gw.req.Hypothesis, "wave 1 injects PodChaos")
	assert.Equal(t, "kill one carts-db pod mid-experiment", gw.req.PlanSummary)
	assert.Equal(t, []string{"first attempt: replica recovery too slow"}, gw.req.PriorAnalyses)
}

func TestFormatResultIsSortedAndMarksFailures(t *testing.T) {
	out := FormatResult(failedResult())

	assert.Contains(t, out, "### fault-unittest-cartsdbpodcount: failed (exit code 1)")
	assert.Contains(t, out, "### pre-unittest-cartsdbpodcount: passed")
	assert.Less(t,
		strings.Index(out, "fault-unittest-cartsdbpodcount"),
		strings.Index(out, "pre-unittest-cartsdbpodcount"))
	assert.Contains(t, out, "AssertionError")
}
