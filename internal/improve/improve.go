// Package improve reconfigures the system after a failed experiment:
// it asks for manifest modifications, redeploys the changed bundle,
// and re-targets the hypothesis artifacts at the new manifests.
package improve

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/store"
	"github.com/chaoskit/chaoskit/internal/templates"
)

// DefaultMaxRetries caps the deploy repair loop.
const DefaultMaxRetries = 3

// Deployer rolls a bundle directory onto the cluster. The returned
// output feeds the repair loop on failure.
type Deployer interface {
	Deploy(ctx context.Context, dir string) (string, error)
}

// Config tunes the improver.
type Config struct {
	MaxRetries int
	Project    string
}

// Improver proposes and applies manifest reconfigurations.
type Improver struct {
	gw       llm.Gateway
	st       *store.Store
	deployer Deployer
	log      logr.Logger
	cfg      Config
}

// New builds an Improver.
func New(gw llm.Gateway, st *store.Store, deployer Deployer, log logr.Logger, cfg Config) *Improver {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Improver{gw: gw, st: st, deployer: deployer, log: log.WithName("improve"), cfg: cfg}
}

// Reconfigure proposes manifest modifications for the analyzed
// failure, applies them to a fresh mod_<attempt> copy of the bundle,
// and deploys it. Deploy and modification errors are fed back to the
// model up to MaxRetries times. Returns the new manifest set, the new
// bundle directory, and the accepted reconfiguration.
func (im *Improver) Reconfigure(
	ctx context.Context,
	data *model.ProcessedData,
	hypothesis string,
	analysis model.Analysis,
	yamls []model.File,
	srcDir string,
	attempt int,
	history []string,
) ([]model.File, string, model.Reconfiguration, error) {
	dstDir := fmt.Sprintf("mod_%d", attempt)
	if err := im.st.CopyDir(srcDir, dstDir); err != nil {
		return nil, "", model.Reconfiguration{}, err
	}

	req := llm.ReconfigRequest{
		Overview:   data.Overview(),
		Hypothesis: hypothesis,
		Analysis:   analysis.Report,
		Manifests:  renderManifests(yamls),
		History:    history,
	}
	reconfig, err := im.gw.ProposeReconfiguration(ctx, req)
	if err != nil {
		return nil, "", model.Reconfiguration{}, err
	}

	var errHistory []string
	for try := 0; ; try++ {
		if err := ctx.Err(); err != nil {
			return nil, "", model.Reconfiguration{}, cerrors.New(cerrors.UserCancel, err)
		}
		if try >= im.cfg.MaxRetries {
			return nil, "", model.Reconfiguration{}, cerrors.Newf(cerrors.BudgetExceeded,
				"reconfiguration not deployable after %d attempts: %s",
				im.cfg.MaxRetries, errHistory[len(errHistory)-1])
		}

		newYamls, applyErr := im.applyMods(dstDir, yamls, reconfig)
		if applyErr == nil {
			var out string
			dir, resolveErr := im.st.Resolve(dstDir)
			if resolveErr != nil {
				return nil, "", model.Reconfiguration{}, resolveErr
			}
			out, applyErr = im.deployer.Deploy(ctx, dir)
			if applyErr == nil {
				im.persistReconfig(attempt, reconfig)
				im.log.Info("reconfiguration deployed", "dir", dstDir, "mods", len(reconfig.ModK8sYamls))
				return newYamls, dstDir, reconfig, nil
			}
			if out != "" {
				applyErr = fmt.Errorf("%w\n%s", applyErr, out)
			}
		}

		im.log.Info("reconfiguration rejected, re-prompting", "attempt", try+1, "reason", applyErr.Error())
		errHistory = append(errHistory, applyErr.Error())
		reconfig, err = im.gw.DebugReconfiguration(ctx, req, errHistory)
		if err != nil {
			return nil, "", model.Reconfiguration{}, err
		}
	}
}

// applyMods builds the new manifest set: replace overwrites, delete
// filters, create appends. Every surviving manifest is written under
// dir and the skaffold config is re-rendered to list exactly that set.
func (im *Improver) applyMods(dir string, yamls []model.File, reconfig model.Reconfiguration) ([]model.File, error) {
	byName := make(map[string]int, len(yamls))
	result := make([]model.File, len(yamls))
	copy(result, yamls)
	for i := range result {
		byName[result[i].Fname] = i
	}

	deleted := make(map[string]bool)
	for _, mod := range reconfig.ModK8sYamls {
		idx, exists := byName[mod.Fname]
		switch mod.ModType {
		case model.ModReplace:
			if !exists {
				return nil, fmt.Errorf("replace targets unknown manifest %q", mod.Fname)
			}
			if mod.Code == "" {
				return nil, fmt.Errorf("replace of %q carries no code", mod.Fname)
			}
			result[idx].Content = mod.Code
		case model.ModDelete:
			if !exists {
				return nil, fmt.Errorf("delete targets unknown manifest %q", mod.Fname)
			}
			deleted[mod.Fname] = true
		case model.ModCreate:
			if exists {
				return nil, fmt.Errorf("create collides with existing manifest %q", mod.Fname)
			}
			if mod.Code == "" {
				return nil, fmt.Errorf("create of %q carries no code", mod.Fname)
			}
			byName[mod.Fname] = len(result)
			result = append(result, model.File{Fname: mod.Fname, Content: mod.Code})
		default:
			return nil, fmt.Errorf("unknown mod_type %q for %q", mod.ModType, mod.Fname)
		}
	}

	kept := result[:0:0]
	for _, y := range result {
		if !deleted[y.Fname] {
			kept = append(kept, y)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("modifications delete every manifest")
	}

	paths := make([]string, 0, len(kept))
	for i := range kept {
		path, err := im.st.WriteFile(filepath.Join(dir, kept[i].Fname), kept[i].Content)
		if err != nil {
			return nil, err
		}
		kept[i].Path = path
		paths = append(paths, kept[i].Fname)
	}
	for _, d := range reconfig.ModK8sYamls {
		if deleted[d.Fname] {
			if err := im.st.RemoveFile(filepath.Join(dir, d.Fname)); err != nil {
				return nil, err
			}
		}
	}

	bundle, err := templates.Render(templates.DeployBundle, templates.DeployBundleParams{
		Name:      im.cfg.Project,
		YamlPaths: paths,
	})
	if err != nil {
		return nil, err
	}
	if _, err := im.st.WriteFile(filepath.Join(dir, "skaffold.yaml"), bundle); err != nil {
		return nil, err
	}
	return kept, nil
}

func (im *Improver) persistReconfig(attempt int, reconfig model.Reconfiguration) {
	rel := filepath.Join("improvement", fmt.Sprintf("reconfig_%d.json", attempt))
	if err := im.st.WriteJSON(rel, reconfig); err != nil {
		im.log.Error(err, "failed to persist reconfiguration", "path", rel)
	}
}

func renderManifests(yamls []model.File) []string {
	out := make([]string, 0, len(yamls))
	for _, y := range yamls {
		out = append(out, fmt.Sprintf("# %s\n%s", y.Fname, y.Content))
	}
	return out
}
