package llm

import (
	"strings"
	"text/template"
)

const systemPrompt = `You are an assistant for Chaos Engineering on Kubernetes. You reason about Kubernetes manifests, design steady states and fault scenarios, and write probe scripts, k6 load tests, and Python unit tests.`

const jsonInstruction = `
Answer with a single JSON object and nothing else. No markdown fences, no prose before or after the object.`

var promptSet = template.Must(template.New("prompts").Option("missingkey=error").Funcs(template.FuncMap{
	"join": func(items []string, sep string) string { return strings.Join(items, sep) },
	"bullets": func(items []string) string {
		if len(items) == 0 {
			return "(none)"
		}
		var b strings.Builder
		for _, item := range items {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
		return strings.TrimRight(b.String(), "\n")
	},
}).Parse(promptTexts))

func renderPrompt(name string, data any) string {
	var b strings.Builder
	if err := promptSet.ExecuteTemplate(&b, name, data); err != nil {
		// Prompt templates are compiled in; a render failure is a
		// programming error in this package.
		panic(err)
	}
	return b.String()
}

const promptTexts = `
{{define "summarize_manifest" -}}
Summarize the following Kubernetes manifest in a few sentences. Name the resource kind, its purpose in the system, replica and resource settings, and anything notable about its resilience configuration (probes, replicas, disruption budgets, restart policy).

File: {{.Fname}}
` + "```yaml\n{{.Content}}\n```" + `
{{- end}}

{{define "summarize_system" -}}
Here are per-manifest summaries of a Kubernetes system:
{{bullets .Summaries}}

User instructions for Chaos Engineering:
{{.Instructions}}

Describe what application these manifests implement, then list the weaknesses in its resilience configuration that Chaos Engineering should probe first.
JSON fields: "thought" (your reasoning), "application" (what the system is), "weaknesses" (the resilience gaps, most likely failure first).
{{- end}}

{{define "draft_steady_state" -}}
Here is the overview of the system:
{{.Overview}}

Chaos Engineering instructions:
{{.Instructions}}

Steady states already defined:
{{bullets .Defined}}

The plan for defining the next state:
{{.CheckThought}}

Define one new steady state, different from those already defined. It must be a measurable output (pod count, throughput, error rate, latency) of a SINGLE Kubernetes manifest, chosen as the resource most likely to break under failure.
JSON fields: "thought" (the reasoning and the steady state details), "manifest" (the single targeted manifest file name), "name" (steady state name including the target resource, using only a-z, A-Z, 0-9).
{{- end}}

{{define "design_inspection" -}}
Here is the overview of the system:
{{.Overview}}

You will inspect the following state of the system:
{{.StateName}}: {{.StateThought}}

Chaos Engineering instructions:
{{.Instructions}}

Write a way to measure "{{.StateName}}" right now. Rules:
- Use the Kubernetes API (Python) for resource state, tool_type "probe_script". Use k6 (JavaScript) for request metrics such as latency or error rate, tool_type "load_test".
- A Python probe loops once per second for a --duration given via argparse (type=int), loading in-cluster config when KUBERNETES_SERVICE_HOST is set and kubeconfig otherwise, and prints a summary at the end. Add a __main__ entry point.
- A k6 script sets vus and duration in its options and defines a threshold that fails on clear request failures. Reach services through internal DNS names service.namespace.svc.cluster.local:port using the service port.
- Respect manifest namespaces; an unspecified namespace means "default".
JSON fields: "thought", "tool_type" ("probe_script" or "load_test"), "tool" ({"duration", "script"} plus "vus" for load tests).
{{- end}}

{{define "rewrite_inspection" -}}
{{template "design_inspection" .Request}}

The current script fails when executed. Errors so far, oldest first:
{{bullets .History}}

Analyze why the most recent error occurs and fix the script. Never repeat an earlier fix, change only what the error requires, and double-check service ports when requests fail. Switching tools is allowed if it keeps the original intent.
{{- end}}

{{define "define_threshold" -}}
Here is the overview of the system:
{{.Overview}}

Steady state under definition:
{{.StateName}}: {{.StateThought}}

How it was measured:
{{.InspectionSummary}}

The measurement just observed:
{{.Observed}}

Define the threshold this steady state must satisfy. The observed value above must satisfy the threshold, with a sensible tolerance so normal fluctuation does not fail it.
JSON fields: "thought", "threshold" (one precise, testable sentence).
{{- end}}

{{define "write_unit_test" -}}
Here is the overview of the system:
{{.Overview}}

Steady state: {{.StateName}}
Threshold: {{.Threshold}}

The inspection script that measured it:
` + "```\n{{.InspectionScript}}\n```" + `

Turn the inspection into a Python unit test asserting the threshold over a configurable window. Rules:
- Accept --duration (type=int) via argparse and check once per second for that many seconds.
- Exit non-zero on threshold violation, zero otherwise, and print the measured values.
- Load in-cluster config when KUBERNETES_SERVICE_HOST is set, kubeconfig otherwise.
- For a k6-based state, invoke k6 via subprocess against an inline script and assert on its summary output.
JSON fields: "thought", "code" (the complete test file content).
{{- end}}

{{define "rewrite_unit_test" -}}
{{template "write_unit_test" .Request}}

The current test fails to run. Errors so far, oldest first:
{{bullets .History}}

Analyze why the most recent error occurs and fix the test without weakening the assertion. Never repeat an earlier fix.
{{- end}}

{{define "check_completion" -}}
Here is the overview of the system:
{{.Overview}}

Chaos Engineering instructions:
{{.Instructions}}

Steady states defined so far:
{{bullets .Defined}}

Decide whether the defined steady states are enough to judge the system's resilience, or one more is needed. At most {{.MaxSteadyStates}} steady states are allowed in total.
JSON fields: "thought" (if another state is needed, what it should cover), "requires_addition" (boolean).
{{- end}}

{{define "propose_fault_scenario" -}}
Here is the overview of the system:
{{.Overview}}

Chaos Engineering instructions:
{{.Instructions}}

Steady states to challenge:
{{bullets .SteadyStates}}

Available Chaos Mesh fault kinds:
{{bullets .FaultKinds}}

Propose a failure event that this system plausibly faces (a traffic spike, a node failure, a dependency outage) and simulate it as waves of Chaos Mesh faults. Pick faults that attack the system's weakest points so the steady states are genuinely at risk.
JSON fields: "event" (the simulated event), "faults" (array of waves, each wave an array of {"name": fault kind, "name_id": ordinal among same-kind faults}), "description" (how the waves simulate the event and why these faults).
{{- end}}

{{define "refine_fault_params" -}}
Here is the overview of the system:
{{.Overview}}

Fault scenario:
{{.Scenario}}

Define the parameters for the fault "{{.FaultName}}" in that scenario. The parameter schema is:
{{.Schema}}

{{if .History -}}
Previous parameter sets were rejected by the cluster, oldest first:
{{bullets .History}}

Fix only what the most recent rejection requires and never repeat an earlier attempt.
{{- end}}
Target pods through the selector; respect manifest namespaces. Answer with the parameters object only.
{{- end}}

{{define "plan_time_schedule" -}}
Here is the overview of the system:
{{.Overview}}

Hypothesis to verify:
{{.Hypothesis}}

Split a Chaos Engineering experiment into pre-validation, fault-injection, and post-validation phases and assign each a duration. Durations are strings of the form "30s", "1m30s", or "1h". Keep the experiment as short as the steady-state checks allow; every unit test needs enough time inside its phase.
JSON fields: "thought", "total_time", "pre_validation_time", "fault_injection_time", "post_validation_time". total_time is the sum of the three phases.
{{- end}}

{{define "plan_validation_phase" -}}
Here is the overview of the system:
{{.Overview}}

Hypothesis to verify:
{{.Hypothesis}}

The {{.Phase}} phase lasts {{.PhaseDuration}}. Schedule the unit tests of every steady state inside it. grace_period is the offset from phase start; grace_period plus duration must fit within the phase. Durations and offsets are strings like "0s", "30s", "1m".
JSON fields: "thought", "unit_tests" (array of {"name": steady state name, "grace_period", "duration"}).
{{- end}}

{{define "plan_fault_phase" -}}
Here is the overview of the system:
{{.Overview}}

Hypothesis to verify:
{{.Hypothesis}}

Fault scenario waves, in order:
{{bullets .Faults}}

The fault-injection phase lasts {{.PhaseDuration}}. Schedule every fault wave and schedule the steady-state unit tests that should observe the system during the faults. Later waves start after earlier ones; tests should overlap the faults they watch. grace_period is the offset from phase start; grace_period plus duration must fit within the phase.
JSON fields: "thought", "unit_tests" (array of {"name", "grace_period", "duration"}), "fault_injection" (array of {"name": fault kind, "name_id", "grace_period", "duration"}).
{{- end}}

{{define "summarize_plan" -}}
Here is a Chaos Engineering experiment plan as JSON:
{{.Plan}}

Summarize the plan in a short paragraph per phase: what runs, when, and what it verifies. Plain text only.
{{- end}}

{{define "analyze_result" -}}
Here is the overview of the system:
{{.Overview}}

Hypothesis:
{{.Hypothesis}}

Experiment plan summary:
{{.PlanSummary}}

Task results (non-zero exit means the steady state failed):
{{.Results}}

{{if .PriorAnalyses -}}
Earlier analyses of this system, oldest first:
{{bullets .PriorAnalyses}}
{{- end}}

The experiment failed. Explain which steady states broke, under which faults, and what configuration weakness caused it. Ground every claim in the task logs.
JSON fields: "report" (the analysis).
{{- end}}

{{define "propose_reconfiguration" -}}
Here is the overview of the system:
{{.Overview}}

Hypothesis:
{{.Hypothesis}}

Latest failure analysis:
{{.Analysis}}

{{if .History -}}
Earlier reconfiguration attempts and their outcomes, oldest first:
{{bullets .History}}

Never repeat an earlier attempt.
{{- end}}
Current manifest files:
{{bullets .Manifests}}

Propose the minimal manifest changes that make the hypothesis hold. Prefer configuration fixes (replicas, probes, resource limits, disruption budgets) over architectural change.
JSON fields: "mod_k8s_yamls" (array of {"mod_type": "create"|"replace"|"delete", "fname", "explanation", "code"}). code is the complete file content and is required unless mod_type is "delete". For "replace", fname must be an existing file; for "create", a new one.
{{- end}}

{{define "debug_reconfiguration" -}}
{{template "propose_reconfiguration" .Request}}

Deploying your previous modification failed. Deploy errors so far, oldest first:
{{bullets .Errors}}

Analyze why the most recent deploy failed and correct the modification set. Never repeat an earlier fix.
{{- end}}

{{define "adjust_fault_scope" -}}
The system's manifests changed during reconfiguration.

Manifests before:
{{.PrevManifests}}

Manifests after:
{{.CurrManifests}}

A fault of kind {{.FaultKind}} currently targets:
{{.Selector}}

Update the selector so it targets the same logical component in the new manifests. Keep the scope unchanged when the relevant labels and namespaces did not change.
JSON fields: the Chaos Mesh selector object only (namespaces, labelSelectors, and any other selector axes needed).
{{- end}}

{{define "adjust_unit_test" -}}
The system's manifests changed during reconfiguration.

Manifests before:
{{.PrevManifests}}

Manifests after:
{{.CurrManifests}}

This steady-state unit test ran against the old manifests:
` + "```python\n{{.TestCode}}\n```" + `

If the test still measures the right thing, return it unchanged. Otherwise update resource names, labels, and namespaces to the new manifests without weakening the assertion or the threshold.
JSON fields: "thought", "code" (the complete updated test; repeat the original when no change is needed).
{{- end}}

{{define "postmortem" -}}
A Chaos Engineering cycle completed. Here is its record as JSON:
{{.Cycle}}

Write a postmortem summary: the hypothesis, what the first experiment found, what was reconfigured and why, and how the final experiment confirmed the fix. Plain text, a few paragraphs.
{{- end}}
`
