package model

import "fmt"

// CycleState is the engine's single source of truth, snapshotted to
// outputs/output.json at every phase boundary. The three history
// slices are append-only.
type CycleState struct {
	ProcessedData ProcessedData    `json:"processed_data"`
	Hypothesis    *Hypothesis      `json:"hypothesis,omitempty"`
	Experiment    *ChaosExperiment `json:"experiment,omitempty"`

	ResultHistory   []ExperimentResult `json:"result_history"`
	AnalysisHistory []Analysis         `json:"analysis_history"`
	ReconfigHistory []Reconfiguration  `json:"reconfig_history"`
	K8sYamlsHistory [][]File           `json:"k8s_yamls_history"`
	ModDirHistory   []string           `json:"mod_dir_history"`

	ConductsReconfig  bool   `json:"conducts_reconfig"`
	CompletesReconfig bool   `json:"completes_reconfig"`
	Summary           string `json:"summary,omitempty"`
}

// CurrentYamls returns the manifest set of the latest improvement
// iteration, or the preprocessed set when none has run yet.
func (s *CycleState) CurrentYamls() []File {
	if n := len(s.K8sYamlsHistory); n > 0 {
		return s.K8sYamlsHistory[n-1]
	}
	return s.ProcessedData.K8sYamls
}

// CurrentModDir returns the latest mod directory, or the empty string
// before the first improvement.
func (s *CycleState) CurrentModDir() string {
	if n := len(s.ModDirHistory); n > 0 {
		return s.ModDirHistory[n-1]
	}
	return ""
}

// CheckHistoryInvariants verifies the append-only history lengths:
// results lead analyses by at most one, and every analysis has exactly
// one reconfiguration.
func (s *CycleState) CheckHistoryInvariants() error {
	diff := len(s.ResultHistory) - len(s.AnalysisHistory)
	if diff != 0 && diff != 1 {
		return fmt.Errorf("result history length %d, analysis history length %d",
			len(s.ResultHistory), len(s.AnalysisHistory))
	}
	if len(s.AnalysisHistory) != len(s.ReconfigHistory) {
		return fmt.Errorf("analysis history length %d, reconfig history length %d",
			len(s.AnalysisHistory), len(s.ReconfigHistory))
	}
	return nil
}

// CycleOutput is the final JSON envelope of a cycle.
type CycleOutput struct {
	OutputDir string               `json:"output_dir"`
	WorkDir   string               `json:"work_dir"`
	Logs      map[string][]string  `json:"logs"`
	RunTime   map[string]float64   `json:"run_time"`
	CECycle   *CycleState          `json:"ce_cycle"`
	Error     string               `json:"error,omitempty"`
}
