// Package model defines the data types that flow through a chaos
// cycle: the preprocessed input, the hypothesis, the compiled
// experiment, and the per-iteration histories. The engine owns the
// CycleState; every other package receives read-only views and returns
// fresh values.
package model

import (
	"fmt"
	"strings"
)

// File is a generated or ingested artifact. Path is absolute on disk,
// Fname is the path relative to WorkDir where meaningful. Files are
// never mutated in place; new versions get new paths under mod_N/.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	WorkDir string `json:"work_dir,omitempty"`
	Fname   string `json:"fname"`
}

// Input is the user-supplied bundle a cycle starts from.
type Input struct {
	DeployBundle File   `json:"deploy_bundle"`
	Files        []File `json:"files"`
	Instructions string `json:"instructions,omitempty"`
}

// ProcessedData is the immutable input snapshot of a cycle. K8sYamls
// and K8sSummaries correspond positionally.
type ProcessedData struct {
	WorkDir            string   `json:"work_dir"`
	Input              Input    `json:"input"`
	K8sYamls           []File   `json:"k8s_yamls"`
	K8sSummaries       []string `json:"k8s_summaries"`
	K8sWeaknessSummary string   `json:"k8s_weakness_summary"`
	K8sApp             string   `json:"k8s_app"`
	CEInstructions     string   `json:"ce_instructions"`
}

// Overview renders the system description prompts are grounded on:
// every manifest with its summary, then the application and weakness
// summaries.
func (p *ProcessedData) Overview() string {
	var b strings.Builder
	for i, y := range p.K8sYamls {
		fmt.Fprintf(&b, "# %s\n```yaml\n%s\n```\n", y.Fname, y.Content)
		if i < len(p.K8sSummaries) {
			fmt.Fprintf(&b, "Summary: %s\n\n", p.K8sSummaries[i])
		}
	}
	if p.K8sApp != "" {
		fmt.Fprintf(&b, "Application: %s\n", p.K8sApp)
	}
	if p.K8sWeaknessSummary != "" {
		fmt.Fprintf(&b, "Known weaknesses: %s\n", p.K8sWeaknessSummary)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Tool types of an inspection.
const (
	ToolProbeScript = "probe_script"
	ToolLoadTest    = "load_test"
)

// Inspection binds a steady state to the script that measures it.
// Result is populated only after a successful probe run.
type Inspection struct {
	ToolType string `json:"tool_type"`
	Duration string `json:"duration"`
	Script   File   `json:"script"`
	Result   string `json:"result,omitempty"`
}

// Threshold is the measurable condition a steady state must satisfy.
type Threshold struct {
	Value     string `json:"value"`
	Rationale string `json:"rationale"`
}

// SteadyState is a validated steady state: the inspection observed the
// current value, the threshold admits it, and the unit test passed
// against the pre-fault cluster.
type SteadyState struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Inspection  Inspection `json:"inspection"`
	Threshold   Threshold  `json:"threshold"`
	UnitTest    File       `json:"unit_test"`
}

// Fault is one fault injection. NameID distinguishes repeated kinds
// within a scenario; Params must validate against the kind's schema
// and against a server-side dry-run.
type Fault struct {
	Name   string         `json:"name"`
	NameID int            `json:"name_id"`
	Params map[string]any `json:"params,omitempty"`
}

// FaultScenario is the planned failure event. The outer list of Faults
// is temporally ordered; each inner list is a simultaneous wave.
type FaultScenario struct {
	Event       string    `json:"event"`
	Faults      [][]Fault `json:"faults"`
	Description string    `json:"description"`
}

// Hypothesis couples the steady states with the fault scenario that
// challenges them.
type Hypothesis struct {
	SteadyStates []SteadyState `json:"steady_states"`
	Fault        FaultScenario `json:"fault"`
}

// SteadyStateNames lists the names in definition order.
func (h *Hypothesis) SteadyStateNames() []string {
	names := make([]string, 0, len(h.SteadyStates))
	for _, s := range h.SteadyStates {
		names = append(names, s.Name)
	}
	return names
}
