package model

// TimeSchedule is the planned wall-clock layout of the experiment.
// Total equals the sum of the three phases plus three deadline
// margins.
type TimeSchedule struct {
	Thought        string `json:"thought"`
	Total          string `json:"total_time"`
	PreValidation  string `json:"pre_validation_time"`
	FaultInjection string `json:"fault_injection_time"`
	PostValidation string `json:"post_validation_time"`
}

// UnitTestTask schedules one steady-state unit test within a phase.
// GracePeriod is the offset from the phase start.
type UnitTestTask struct {
	Name         string `json:"name"`
	WorkflowName string `json:"workflow_name,omitempty"`
	GracePeriod  string `json:"grace_period"`
	Duration     string `json:"duration"`
	Deadline     string `json:"deadline,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}

// FaultTask schedules one fault injection within the fault phase.
type FaultTask struct {
	Name         string         `json:"name"`
	NameID       int            `json:"name_id"`
	WorkflowName string         `json:"workflow_name,omitempty"`
	GracePeriod  string         `json:"grace_period"`
	Duration     string         `json:"duration"`
	Deadline     string         `json:"deadline,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
}

// ValidationPhase plans the unit tests of the pre- or post-validation
// phase.
type ValidationPhase struct {
	Thought   string         `json:"thought"`
	UnitTests []UnitTestTask `json:"unit_tests"`
}

// FaultInjectionPhase plans the fault phase: unit tests observed during
// the faults plus the fault injections themselves.
type FaultInjectionPhase struct {
	Thought        string         `json:"thought"`
	UnitTests      []UnitTestTask `json:"unit_tests"`
	FaultInjection []FaultTask    `json:"fault_injection"`
}

// ExperimentPlan is the complete phase layout handed to the compiler.
type ExperimentPlan struct {
	TimeSchedule   TimeSchedule        `json:"time_schedule"`
	PreValidation  ValidationPhase     `json:"pre_validation"`
	FaultInjection FaultInjectionPhase `json:"fault_injection"`
	PostValidation ValidationPhase     `json:"post_validation"`
	Summary        string              `json:"summary"`
}

// ChaosExperiment is the compiled experiment: the plan plus the
// rendered workflow manifest.
type ChaosExperiment struct {
	Plan         ExperimentPlan `json:"plan"`
	WorkflowName string         `json:"workflow_name"`
	Workflow     File           `json:"workflow"`
}

// TaskStatus is the terminal state of one workflow task pod.
type TaskStatus struct {
	ExitCode int    `json:"exit_code"`
	Logs     string `json:"logs"`
}

// ExperimentResult maps every task's workflow name to its terminal
// status.
type ExperimentResult struct {
	PodStatuses map[string]TaskStatus `json:"pod_statuses"`
}

// AllPassed reports whether every task exited zero.
func (r *ExperimentResult) AllPassed() bool {
	for _, s := range r.PodStatuses {
		if s.ExitCode != 0 {
			return false
		}
	}
	return true
}

// Analysis is the LLM's reading of a failed run. Free text, not
// machine-validated.
type Analysis struct {
	Report string `json:"report"`
}

// Modification types of a reconfiguration.
const (
	ModCreate  = "create"
	ModReplace = "replace"
	ModDelete  = "delete"
)

// ModK8sYaml is one manifest modification. Code is required unless
// ModType is delete.
type ModK8sYaml struct {
	ModType     string `json:"mod_type"`
	Fname       string `json:"fname"`
	Explanation string `json:"explanation,omitempty"`
	Code        string `json:"code,omitempty"`
}

// Reconfiguration is the set of manifest modifications proposed to
// make the hypothesis hold.
type Reconfiguration struct {
	ModK8sYamls []ModK8sYaml `json:"mod_k8s_yamls"`
}
