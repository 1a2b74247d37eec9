// Package templates renders the fixed set of manifests a chaos cycle
// materializes: probe pods, workflow task templates, fault templates,
// and the deploy bundle. Rendering is pure; callers persist and apply
// the output themselves.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Template names.
const (
	PodProbe       = "pod_probe"
	PodLoadTest    = "pod_load_test"
	WorkflowMeta   = "workflow_meta"
	TaskProbe      = "task_probe"
	TaskLoadTest   = "task_load_test"
	Fault          = "fault"
	GroundChildren = "groundchildren"
	Suspend        = "suspend"
	DeployBundle   = "deploy_bundle"
)

var funcs = template.FuncMap{
	// indent pads every non-empty line by n spaces, keeping embedded
	// YAML blocks aligned with their insertion point.
	"indent": func(n int, s string) string {
		pad := strings.Repeat(" ", n)
		lines := strings.Split(s, "\n")
		for i, line := range lines {
			if line != "" {
				lines[i] = pad + line
			}
		}
		return strings.Join(lines, "\n")
	},
}

var parsed = template.Must(
	template.New("templates").
		Funcs(funcs).
		Option("missingkey=error").
		ParseFS(templatesFS, "templates/*.tmpl"),
)

// Render executes the named template with the given data.
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := parsed.ExecuteTemplate(&buf, name+".yaml.tmpl", data); err != nil {
		return "", fmt.Errorf("rendering template %q: %w", name, err)
	}
	return buf.String(), nil
}

// PodProbeParams fills pod_probe: a ConfigMap carrying the script plus
// a pod that runs it against the cluster API.
type PodProbeParams struct {
	PodName        string
	Namespace      string
	ServiceAccount string
	ScriptFileName string
	ScriptContent  string
	Duration       int
}

// PodLoadTestParams fills pod_load_test: the script runs under the k6
// load generator, so Duration keeps its unit suffix.
type PodLoadTestParams struct {
	PodName        string
	Namespace      string
	ScriptFileName string
	ScriptContent  string
	Duration       string
}

// PhaseParams lays out one phase inside the workflow meta template.
type PhaseParams struct {
	Deadline string
	Children []string
}

// WorkflowMetaParams fills workflow_meta, the outer workflow document.
// Grandchildren carries every group, suspend, task, and fault template
// already rendered as top-level list items.
type WorkflowMetaParams struct {
	WorkflowName   string
	Namespace      string
	TotalTime      string
	PreValidation  PhaseParams
	FaultInjection PhaseParams
	PostValidation PhaseParams
	Grandchildren  string
}

// TaskParams fills task_probe and task_load_test: one unit test run as
// a workflow task. HostDir is the directory holding the unit test on
// the node filesystem.
type TaskParams struct {
	TaskName string
	Deadline string
	Duration string
	FileName string
	HostDir  string
}

// FaultParams fills fault: one fault-injection workflow template.
// Specs is the block-style YAML of the fault parameters.
type FaultParams struct {
	Name           string
	Kind           string
	KindLowerCamel string
	Deadline       string
	Specs          string
}

// GroundChildrenParams fills groundchildren: a Serial or Parallel
// grouping template.
type GroundChildrenParams struct {
	Name         string
	TemplateType string
	Deadline     string
	Children     []string
}

// SuspendParams fills suspend.
type SuspendParams struct {
	Name     string
	Deadline string
}

// DeployBundleParams fills deploy_bundle, the skaffold config listing
// the manifest set of the current iteration.
type DeployBundleParams struct {
	Name      string
	YamlPaths []string
}
