// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and can be tested independently of
// the CLI layer. Construction of external clients goes through factory
// variables so tests can inject fakes.
package handlers

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/chaoskit/chaoskit/internal/analysis"
	"github.com/chaoskit/chaoskit/internal/config"
	"github.com/chaoskit/chaoskit/internal/deploy"
	"github.com/chaoskit/chaoskit/internal/engine"
	"github.com/chaoskit/chaoskit/internal/experiment"
	"github.com/chaoskit/chaoskit/internal/hypothesis"
	"github.com/chaoskit/chaoskit/internal/improve"
	"github.com/chaoskit/chaoskit/internal/inspect"
	"github.com/chaoskit/chaoskit/internal/k8s"
	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/metrics"
	"github.com/chaoskit/chaoskit/internal/postprocess"
	"github.com/chaoskit/chaoskit/internal/preprocess"
	"github.com/chaoskit/chaoskit/internal/store"
)

// Factory function variables, replaced in tests for dependency injection.
var (
	newK8sClient = k8s.NewClient
	newModel     = llm.NewModel
	newLogger    = func() (logr.Logger, error) {
		zl, err := zap.NewProduction()
		if err != nil {
			return logr.Logger{}, err
		}
		return zapr.NewLogger(zl), nil
	}
)

// Run executes one full chaos engineering cycle and returns its exit
// code. Errors are returned only for setup failures before the cycle
// starts; once the engine runs, the outcome is the exit code and the
// artifacts under the work dir.
func Run(ctx context.Context, cfg config.Config, bundleDir, instructions string) (int, error) {
	log, err := newLogger()
	if err != nil {
		return 0, fmt.Errorf("building logger: %w", err)
	}

	input, err := ReadBundle(bundleDir, instructions)
	if err != nil {
		return 0, err
	}

	st, err := store.New(cfg.WorkDir)
	if err != nil {
		return 0, err
	}
	client, err := newK8sClient(cfg.Kubeconfig, cfg.KubeContext)
	if err != nil {
		return 0, err
	}
	backend, err := newModel(cfg.Model)
	if err != nil {
		return 0, err
	}

	eng := buildEngine(cfg, st, client, backend, log)
	return eng.Run(ctx, input), nil
}

// buildEngine wires every phase implementation onto the engine.
func buildEngine(cfg config.Config, st *store.Store, client *k8s.Client, backend llms.Model, log logr.Logger) *engine.Engine {
	gw := llm.NewClient(backend, log,
		llm.WithTemperature(cfg.Model.Temperature),
		llm.WithMaxRetries(cfg.MaxRetries))
	deployer := deploy.NewSkaffold(cfg.KubeContext, cfg.Project, log)
	probe := inspect.New(client, st, log, cfg.ChaosNamespace, cfg.ServiceAccount)

	comp := engine.Components{
		Preprocessor: preprocess.New(gw, st, client, deployer, log, preprocess.Config{
			Namespace:  cfg.Namespace,
			Project:    cfg.Project,
			SkipDeploy: !cfg.NewDeployment,
		}),
		Hypothesis: hypothesis.New(gw, probe, client, st, log, hypothesis.Config{
			MaxSteadyStates: cfg.MaxSteadyStates,
			MaxRetries:      cfg.MaxRetries,
			Namespace:       cfg.Namespace,
		}),
		Planner:  experiment.NewPlanner(gw, log),
		Runner:   experiment.NewRunner(client, log, cfg.ChaosNamespace),
		Analyzer: analysis.New(gw, st, log),
		Improver: improve.New(gw, st, deployer, log, improve.Config{
			MaxRetries: cfg.MaxRetries,
			Project:    cfg.Project,
		}),
		Summarizer: postprocess.New(gw, st, log),
	}
	return engine.New(cfg, st, client, metrics.New(), comp, log)
}
