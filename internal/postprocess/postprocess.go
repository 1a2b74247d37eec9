// Package postprocess closes a successful cycle with a postmortem of
// everything that happened.
package postprocess

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/store"
)

// Summarizer writes the cycle postmortem.
type Summarizer struct {
	gw  llm.Gateway
	st  *store.Store
	log logr.Logger
}

// New builds a Summarizer.
func New(gw llm.Gateway, st *store.Store, log logr.Logger) *Summarizer {
	return &Summarizer{gw: gw, st: st, log: log.WithName("postprocess")}
}

// Summarize asks for a postmortem over the whole cycle state, stores
// it as outputs/summary.md, and returns it. The cycle state is handed
// to the model as JSON minus the bulky manifest contents.
func (s *Summarizer) Summarize(ctx context.Context, state *model.CycleState) (string, error) {
	condensed := *state
	condensed.ProcessedData.K8sYamls = fileNamesOnly(condensed.ProcessedData.K8sYamls)
	condensed.K8sYamlsHistory = nil
	if condensed.Experiment != nil {
		exp := *condensed.Experiment
		exp.Workflow = model.File{Fname: exp.Workflow.Fname}
		condensed.Experiment = &exp
	}

	cycleJSON, err := json.MarshalIndent(&condensed, "", "  ")
	if err != nil {
		return "", err
	}
	summary, err := s.gw.Postmortem(ctx, string(cycleJSON))
	if err != nil {
		return "", err
	}

	rel := filepath.Join("outputs", "summary.md")
	if _, err := s.st.WriteFile(rel, summary); err != nil {
		return "", err
	}
	s.log.Info("postmortem written", "path", rel)
	return summary, nil
}

func fileNamesOnly(files []model.File) []model.File {
	out := make([]model.File, len(files))
	for i, f := range files {
		out[i] = model.File{Fname: f.Fname}
	}
	return out
}
