// Package preprocess ingests the user's deploy bundle, builds the LLM
// view of the system, and brings the system up before the first
// hypothesis is drafted.
package preprocess

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/yaml"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/k8s"
	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/store"
)

// DefaultWaitTimeout bounds the post-deploy readiness wait.
const DefaultWaitTimeout = 5 * time.Minute

// BundleDir is where the pristine input bundle lands in the work
// directory; reconfigurations graduate to mod_0, mod_1, and so on.
const BundleDir = "inputs"

// Deployer rolls a bundle directory onto the cluster.
type Deployer interface {
	Deploy(ctx context.Context, dir string) (string, error)
}

// Config tunes preprocessing.
type Config struct {
	// Namespace is where the system under test runs.
	Namespace string
	// Project labels everything the cycle deploys.
	Project     string
	WaitTimeout time.Duration
	// SkipDeploy leaves an already running system in place and only
	// waits for readiness.
	SkipDeploy bool
}

// Preprocessor turns the raw input bundle into ProcessedData.
type Preprocessor struct {
	gw       llm.Gateway
	st       *store.Store
	client   *k8s.Client
	deployer Deployer
	log      logr.Logger
	cfg      Config
}

// New builds a Preprocessor.
func New(gw llm.Gateway, st *store.Store, client *k8s.Client, deployer Deployer, log logr.Logger, cfg Config) *Preprocessor {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	return &Preprocessor{gw: gw, st: st, client: client, deployer: deployer, log: log.WithName("preprocess"), cfg: cfg}
}

// skaffoldConfig is the slice of a skaffold.yaml this tool reads.
type skaffoldConfig struct {
	Manifests struct {
		RawYaml []string `json:"rawYaml"`
	} `json:"manifests"`
}

// Process ingests the bundle, summarizes it, deploys it, and waits for
// the system to come up.
func (p *Preprocessor) Process(ctx context.Context, input model.Input) (*model.ProcessedData, error) {
	yamls, err := p.ingest(input)
	if err != nil {
		return nil, err
	}

	summaries := make([]string, 0, len(yamls))
	for _, y := range yamls {
		if err := ctx.Err(); err != nil {
			return nil, cerrors.New(cerrors.UserCancel, err)
		}
		summary, err := p.gw.SummarizeManifest(ctx, y.Fname, y.Content)
		if err != nil {
			return nil, err
		}
		p.log.Info("manifest summarized", "file", y.Fname)
		summaries = append(summaries, summary)
	}

	system, err := p.gw.SummarizeSystem(ctx, summaries, input.Instructions)
	if err != nil {
		return nil, err
	}
	p.log.Info("system summarized", "application", system.Application)

	if !p.cfg.SkipDeploy {
		dir, err := p.st.Resolve(BundleDir)
		if err != nil {
			return nil, err
		}
		if _, err := p.deployer.Deploy(ctx, dir); err != nil {
			return nil, err
		}
	}
	selector := "project=" + p.cfg.Project
	if err := p.client.WaitAllReady(ctx, p.cfg.Namespace, selector, p.cfg.WaitTimeout); err != nil {
		return nil, err
	}
	p.log.Info("system ready", "namespace", p.cfg.Namespace, "selector", selector)

	return &model.ProcessedData{
		WorkDir:            p.st.WorkDir(),
		Input:              input,
		K8sYamls:           yamls,
		K8sSummaries:       summaries,
		K8sApp:             system.Application,
		K8sWeaknessSummary: system.Weaknesses,
		CEInstructions:     input.Instructions,
	}, nil
}

// ingest validates the skaffold config against the supplied files and
// writes the pristine bundle under inputs/mod_0.
func (p *Preprocessor) ingest(input model.Input) ([]model.File, error) {
	var cfg skaffoldConfig
	if err := yaml.Unmarshal([]byte(input.DeployBundle.Content), &cfg); err != nil {
		return nil, cerrors.New(cerrors.SchemaFail, fmt.Errorf("parsing %s: %w", input.DeployBundle.Fname, err))
	}
	if len(cfg.Manifests.RawYaml) == 0 {
		return nil, cerrors.Newf(cerrors.SchemaFail, "%s lists no rawYaml manifests", input.DeployBundle.Fname)
	}

	byName := make(map[string]model.File, len(input.Files))
	for _, f := range input.Files {
		byName[f.Fname] = f
	}

	yamls := make([]model.File, 0, len(cfg.Manifests.RawYaml))
	for _, rel := range cfg.Manifests.RawYaml {
		f, ok := byName[rel]
		if !ok {
			return nil, cerrors.Newf(cerrors.SchemaFail, "%s references missing manifest %q", input.DeployBundle.Fname, rel)
		}
		path, err := p.st.WriteFile(filepath.Join(BundleDir, rel), f.Content)
		if err != nil {
			return nil, err
		}
		f.Path = path
		yamls = append(yamls, f)
	}
	if _, err := p.st.WriteFile(filepath.Join(BundleDir, "skaffold.yaml"), input.DeployBundle.Content); err != nil {
		return nil, err
	}
	return yamls, nil
}
