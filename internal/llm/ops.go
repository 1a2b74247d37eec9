package llm

import (
	"context"
	"fmt"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/chaosmesh"
	"github.com/chaoskit/chaoskit/internal/model"
)

// Gateway is the typed surface the engine talks to. One method per
// generation step of the cycle; implementations own every prompt.
type Gateway interface {
	SummarizeManifest(ctx context.Context, fname, content string) (string, error)
	SummarizeSystem(ctx context.Context, summaries []string, instructions string) (SystemSummary, error)

	DraftSteadyState(ctx context.Context, req SteadyStateRequest) (SteadyStateDraft, error)
	DesignInspection(ctx context.Context, req InspectionRequest) (InspectionDraft, error)
	RewriteInspection(ctx context.Context, req InspectionRequest, history []string) (InspectionDraft, error)
	DefineThreshold(ctx context.Context, req ThresholdRequest) (ThresholdDraft, error)
	WriteUnitTest(ctx context.Context, req UnitTestRequest) (UnitTestDraft, error)
	RewriteUnitTest(ctx context.Context, req UnitTestRequest, history []string) (UnitTestDraft, error)
	CheckCompletion(ctx context.Context, req CompletionRequest) (CompletionCheck, error)

	ProposeFaultScenario(ctx context.Context, req FaultScenarioRequest) (model.FaultScenario, error)
	RefineFaultParams(ctx context.Context, req FaultParamsRequest) (map[string]any, error)

	PlanTimeSchedule(ctx context.Context, req PlanRequest) (model.TimeSchedule, error)
	PlanValidationPhase(ctx context.Context, req ValidationPlanRequest) (model.ValidationPhase, error)
	PlanFaultPhase(ctx context.Context, req FaultPlanRequest) (model.FaultInjectionPhase, error)
	SummarizePlan(ctx context.Context, planJSON string) (string, error)

	AnalyzeResult(ctx context.Context, req AnalysisRequest) (model.Analysis, error)

	ProposeReconfiguration(ctx context.Context, req ReconfigRequest) (model.Reconfiguration, error)
	DebugReconfiguration(ctx context.Context, req ReconfigRequest, errHistory []string) (model.Reconfiguration, error)
	AdjustFaultScope(ctx context.Context, req ScopeRequest) (chaosmesh.Selectors, error)
	AdjustUnitTest(ctx context.Context, req TestAdjustRequest) (UnitTestAdjustment, error)

	Postmortem(ctx context.Context, cycleJSON string) (string, error)
}

// SystemSummary is the aggregate picture of the ingested manifests.
type SystemSummary struct {
	Thought     string `json:"thought"`
	Application string `json:"application"`
	Weaknesses  string `json:"weaknesses"`
}

// SteadyStateRequest carries the context for drafting one more steady
// state. Defined lists the states drafted so far, CheckThought is the
// completion check's reasoning about what the next state should cover.
type SteadyStateRequest struct {
	Overview     string
	Instructions string
	Defined      []string
	CheckThought string
}

// SteadyStateDraft names the next steady state and its target
// manifest.
type SteadyStateDraft struct {
	Thought  string `json:"thought"`
	Manifest string `json:"manifest"`
	Name     string `json:"name"`
}

// InspectionRequest asks for a script measuring one steady state.
type InspectionRequest struct {
	Overview     string
	Instructions string
	StateName    string
	StateThought string
}

// InspectionTool is the generated measurement script.
type InspectionTool struct {
	Duration string `json:"duration"`
	VUs      int    `json:"vus,omitempty"`
	Script   string `json:"script"`
}

// InspectionDraft selects the tool and carries its script.
type InspectionDraft struct {
	Thought  string         `json:"thought"`
	ToolType string         `json:"tool_type"`
	Tool     InspectionTool `json:"tool"`
}

// ThresholdRequest carries the observed measurement the threshold must
// admit.
type ThresholdRequest struct {
	Overview          string
	StateName         string
	StateThought      string
	InspectionSummary string
	Observed          string
}

// ThresholdDraft is the testable condition on the steady state.
type ThresholdDraft struct {
	Thought   string `json:"thought"`
	Threshold string `json:"threshold"`
}

// UnitTestRequest asks for a test asserting the threshold.
type UnitTestRequest struct {
	Overview         string
	StateName        string
	Threshold        string
	InspectionScript string
}

// UnitTestDraft is the generated test file content.
type UnitTestDraft struct {
	Thought string `json:"thought"`
	Code    string `json:"code"`
}

// CompletionRequest asks whether more steady states are needed.
type CompletionRequest struct {
	Overview        string
	Instructions    string
	Defined         []string
	MaxSteadyStates int
}

// CompletionCheck carries the decision and, when positive, what the
// next state should cover.
type CompletionCheck struct {
	Thought          string `json:"thought"`
	RequiresAddition bool   `json:"requires_addition"`
}

// FaultScenarioRequest asks for the failure event and its fault waves.
type FaultScenarioRequest struct {
	Overview     string
	Instructions string
	SteadyStates []string
	FaultKinds   []string
}

// FaultParamsRequest asks for the parameters of one fault. Schema
// describes the kind's parameter structure; History carries dry-run
// rejections from earlier attempts.
type FaultParamsRequest struct {
	Overview  string
	Scenario  string
	FaultName string
	Schema    string
	History   []string
}

// PlanRequest carries the hypothesis for schedule planning.
type PlanRequest struct {
	Overview   string
	Hypothesis string
}

// ValidationPlanRequest plans one validation phase. Phase is
// "pre-validation" or "post-validation".
type ValidationPlanRequest struct {
	Overview      string
	Hypothesis    string
	Phase         string
	PhaseDuration string
}

// FaultPlanRequest plans the fault-injection phase.
type FaultPlanRequest struct {
	Overview      string
	Hypothesis    string
	Faults        []string
	PhaseDuration string
}

// AnalysisRequest carries everything the analyzer reads.
type AnalysisRequest struct {
	Overview      string
	Hypothesis    string
	PlanSummary   string
	Results       string
	PriorAnalyses []string
}

// ReconfigRequest asks for manifest modifications. History lists the
// prior (result, analysis, reconfiguration) triples so attempts are
// not repeated.
type ReconfigRequest struct {
	Overview   string
	Hypothesis string
	Analysis   string
	Manifests  []string
	History    []string
}

// ScopeRequest re-targets one fault's selector after manifests
// changed.
type ScopeRequest struct {
	PrevManifests string
	CurrManifests string
	FaultKind     string
	Selector      string
}

// TestAdjustRequest re-targets one unit test after manifests changed.
type TestAdjustRequest struct {
	PrevManifests string
	CurrManifests string
	TestCode      string
}

// UnitTestAdjustment is the possibly-updated test.
type UnitTestAdjustment struct {
	Thought string `json:"thought"`
	Code    string `json:"code"`
}

func (c *Client) SummarizeManifest(ctx context.Context, fname, content string) (string, error) {
	return c.generateText(ctx, "summarize_manifest", renderPrompt("summarize_manifest", map[string]string{
		"Fname": fname, "Content": content,
	}))
}

func (c *Client) SummarizeSystem(ctx context.Context, summaries []string, instructions string) (SystemSummary, error) {
	var out SystemSummary
	err := c.generateJSON(ctx, "summarize_system", renderPrompt("summarize_system", map[string]any{
		"Summaries": summaries, "Instructions": instructions,
	}), &out)
	return out, err
}

func (c *Client) DraftSteadyState(ctx context.Context, req SteadyStateRequest) (SteadyStateDraft, error) {
	if req.CheckThought == "" {
		req.CheckThought = "No steady states have been defined yet, so a first steady state is needed."
	}
	var out SteadyStateDraft
	err := c.generateJSON(ctx, "draft_steady_state", renderPrompt("draft_steady_state", req), &out)
	return out, err
}

func (c *Client) DesignInspection(ctx context.Context, req InspectionRequest) (InspectionDraft, error) {
	var out InspectionDraft
	err := c.generateJSON(ctx, "design_inspection", renderPrompt("design_inspection", req), &out)
	if err != nil {
		return out, err
	}
	return out, validateToolType(out.ToolType)
}

func (c *Client) RewriteInspection(ctx context.Context, req InspectionRequest, history []string) (InspectionDraft, error) {
	var out InspectionDraft
	err := c.generateJSON(ctx, "rewrite_inspection", renderPrompt("rewrite_inspection", map[string]any{
		"Request": req, "History": c.capHistory(history),
	}), &out)
	if err != nil {
		return out, err
	}
	return out, validateToolType(out.ToolType)
}

func (c *Client) DefineThreshold(ctx context.Context, req ThresholdRequest) (ThresholdDraft, error) {
	var out ThresholdDraft
	err := c.generateJSON(ctx, "define_threshold", renderPrompt("define_threshold", req), &out)
	return out, err
}

func (c *Client) WriteUnitTest(ctx context.Context, req UnitTestRequest) (UnitTestDraft, error) {
	var out UnitTestDraft
	err := c.generateJSON(ctx, "write_unit_test", renderPrompt("write_unit_test", req), &out)
	return out, err
}

func (c *Client) RewriteUnitTest(ctx context.Context, req UnitTestRequest, history []string) (UnitTestDraft, error) {
	var out UnitTestDraft
	err := c.generateJSON(ctx, "rewrite_unit_test", renderPrompt("rewrite_unit_test", map[string]any{
		"Request": req, "History": c.capHistory(history),
	}), &out)
	return out, err
}

func (c *Client) CheckCompletion(ctx context.Context, req CompletionRequest) (CompletionCheck, error) {
	var out CompletionCheck
	err := c.generateJSON(ctx, "check_completion", renderPrompt("check_completion", req), &out)
	return out, err
}

func (c *Client) ProposeFaultScenario(ctx context.Context, req FaultScenarioRequest) (model.FaultScenario, error) {
	var out model.FaultScenario
	err := c.generateJSON(ctx, "propose_fault_scenario", renderPrompt("propose_fault_scenario", req), &out)
	return out, err
}

func (c *Client) RefineFaultParams(ctx context.Context, req FaultParamsRequest) (map[string]any, error) {
	req.History = c.capHistory(req.History)
	var out map[string]any
	err := c.generateJSON(ctx, "refine_fault_params", renderPrompt("refine_fault_params", req), &out)
	return out, err
}

func (c *Client) PlanTimeSchedule(ctx context.Context, req PlanRequest) (model.TimeSchedule, error) {
	var out model.TimeSchedule
	err := c.generateJSON(ctx, "plan_time_schedule", renderPrompt("plan_time_schedule", req), &out)
	return out, err
}

func (c *Client) PlanValidationPhase(ctx context.Context, req ValidationPlanRequest) (model.ValidationPhase, error) {
	var out model.ValidationPhase
	err := c.generateJSON(ctx, "plan_validation_phase", renderPrompt("plan_validation_phase", req), &out)
	return out, err
}

func (c *Client) PlanFaultPhase(ctx context.Context, req FaultPlanRequest) (model.FaultInjectionPhase, error) {
	var out model.FaultInjectionPhase
	err := c.generateJSON(ctx, "plan_fault_phase", renderPrompt("plan_fault_phase", req), &out)
	return out, err
}

func (c *Client) SummarizePlan(ctx context.Context, planJSON string) (string, error) {
	return c.generateText(ctx, "summarize_plan", renderPrompt("summarize_plan", map[string]string{
		"Plan": planJSON,
	}))
}

func (c *Client) AnalyzeResult(ctx context.Context, req AnalysisRequest) (model.Analysis, error) {
	req.PriorAnalyses = c.capHistory(req.PriorAnalyses)
	var out model.Analysis
	err := c.generateJSON(ctx, "analyze_result", renderPrompt("analyze_result", req), &out)
	return out, err
}

func (c *Client) ProposeReconfiguration(ctx context.Context, req ReconfigRequest) (model.Reconfiguration, error) {
	req.History = c.capHistory(req.History)
	var out model.Reconfiguration
	err := c.generateJSON(ctx, "propose_reconfiguration", renderPrompt("propose_reconfiguration", req), &out)
	return out, err
}

func (c *Client) DebugReconfiguration(ctx context.Context, req ReconfigRequest, errHistory []string) (model.Reconfiguration, error) {
	req.History = c.capHistory(req.History)
	var out model.Reconfiguration
	err := c.generateJSON(ctx, "debug_reconfiguration", renderPrompt("debug_reconfiguration", map[string]any{
		"Request": req, "Errors": c.capHistory(errHistory),
	}), &out)
	return out, err
}

func (c *Client) AdjustFaultScope(ctx context.Context, req ScopeRequest) (chaosmesh.Selectors, error) {
	var out chaosmesh.Selectors
	err := c.generateJSON(ctx, "adjust_fault_scope", renderPrompt("adjust_fault_scope", req), &out)
	return out, err
}

func (c *Client) AdjustUnitTest(ctx context.Context, req TestAdjustRequest) (UnitTestAdjustment, error) {
	var out UnitTestAdjustment
	err := c.generateJSON(ctx, "adjust_unit_test", renderPrompt("adjust_unit_test", req), &out)
	if err != nil {
		return out, err
	}
	if out.Code == "" {
		out.Code = req.TestCode
	}
	return out, nil
}

func (c *Client) Postmortem(ctx context.Context, cycleJSON string) (string, error) {
	return c.generateText(ctx, "postmortem", renderPrompt("postmortem", map[string]string{
		"Cycle": cycleJSON,
	}))
}

// capHistory keeps the newest entries when the list exceeds the cap.
func (c *Client) capHistory(history []string) []string {
	if c.maxHistory <= 0 || len(history) <= c.maxHistory {
		return history
	}
	return history[len(history)-c.maxHistory:]
}

func validateToolType(toolType string) error {
	switch toolType {
	case model.ToolProbeScript, model.ToolLoadTest:
		return nil
	default:
		return cerrors.New(cerrors.SchemaFail, fmt.Errorf("unknown tool type %q", toolType))
	}
}

var _ Gateway = (*Client)(nil)
