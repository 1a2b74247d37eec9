// Package hypothesis builds the chaos hypothesis: a set of validated
// steady states and the fault scenario that challenges them. Every
// generated script is executed against the live cluster before it is
// accepted; every fault parameter set must survive a server-side
// dry-run.
package hypothesis

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/chaoskit/chaoskit/internal/inspect"
	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/store"
)

// Config bounds the hypothesis loops.
type Config struct {
	MaxSteadyStates int
	MaxRetries      int
	Namespace       string
}

// ProbeRunner executes one inspection script to completion.
type ProbeRunner interface {
	Run(ctx context.Context, toolType string, script model.File, duration string) (inspect.Result, error)
}

// DryRunner validates a manifest without persisting it.
type DryRunner interface {
	DryRunApply(ctx context.Context, manifest string) error
}

// Builder drives the steady-state and fault loops.
type Builder struct {
	gw     llm.Gateway
	runner ProbeRunner
	dryRun DryRunner
	store  *store.Store
	log    logr.Logger
	cfg    Config
}

// New builds a Builder.
func New(gw llm.Gateway, runner ProbeRunner, dryRun DryRunner, st *store.Store, log logr.Logger, cfg Config) *Builder {
	if cfg.MaxSteadyStates <= 0 {
		cfg.MaxSteadyStates = 2
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Builder{
		gw:     gw,
		runner: runner,
		dryRun: dryRun,
		store:  st,
		log:    log.WithName("hypothesis"),
		cfg:    cfg,
	}
}

// Build produces the full hypothesis and persists it under
// hypothesis/.
func (b *Builder) Build(ctx context.Context, data *model.ProcessedData) (model.Hypothesis, error) {
	var hyp model.Hypothesis

	states, err := b.BuildSteadyStates(ctx, data)
	if err != nil {
		return hyp, err
	}
	hyp.SteadyStates = states

	scenario, err := b.BuildFaultScenario(ctx, data, states)
	if err != nil {
		return hyp, err
	}
	hyp.Fault = scenario

	if err := b.store.WriteJSON("hypothesis/hypothesis.json", &hyp); err != nil {
		return hyp, err
	}
	return hyp, nil
}
