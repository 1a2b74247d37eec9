// Package deploy drives skaffold to roll a manifest bundle onto the
// cluster. Both the initial deployment and every reconfigured bundle
// go through here.
package deploy

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"

	"github.com/chaoskit/chaoskit/internal/cerrors"
)

// CommandRunner executes a command in dir and returns its combined
// output. Swapped for a stub in tests.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) (string, error)

func execCommand(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Skaffold deploys bundles with `skaffold run` against a fixed kube
// context, labeling everything it creates with project=<project> so
// cleanup can find it later.
type Skaffold struct {
	kubeContext string
	project     string
	log         logr.Logger
	run         CommandRunner
}

// NewSkaffold builds a Skaffold deployer.
func NewSkaffold(kubeContext, project string, log logr.Logger) *Skaffold {
	return &Skaffold{
		kubeContext: kubeContext,
		project:     project,
		log:         log.WithName("deploy"),
		run:         execCommand,
	}
}

// Deploy runs skaffold in dir, which must contain a skaffold.yaml. The
// combined output is returned either way so callers can feed failures
// back into the repair loop.
func (s *Skaffold) Deploy(ctx context.Context, dir string) (string, error) {
	args := []string{"run", "--kube-context", s.kubeContext, "-l", "project=" + s.project}
	s.log.Info("deploying bundle", "dir", dir, "context", s.kubeContext)

	out, err := s.run(ctx, dir, "skaffold", args...)
	if err != nil {
		return out, cerrors.New(cerrors.DeployFail,
			fmt.Errorf("skaffold run in %s: %w\noutput: %s", dir, err, strings.TrimSpace(out)))
	}
	s.log.Info("bundle deployed", "dir", dir)
	return out, nil
}
