package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaoskit/chaoskit/internal/cerrors"
)

func TestDeployPassesContextAndLabel(t *testing.T) {
	var gotDir, gotName string
	var gotArgs []string
	s := NewSkaffold("kind-chaos", "chaoskit", logr.Discard())
	s.run = func(_ context.Context, dir, name string, args ...string) (string, error) {
		gotDir, gotName, gotArgs = dir, name, args
		return "Deployments stabilized", nil
	}

	out, err := s.Deploy(context.Background(), "/work/inputs/mod_1")
	require.NoError(t, err)
	assert.Equal(t, "Deployments stabilized", out)
	assert.Equal(t, "/work/inputs/mod_1", gotDir)
	assert.Equal(t, "skaffold", gotName)
	assert.Equal(t, []string{"run", "--kube-context", "kind-chaos", "-l", "project=chaoskit"}, gotArgs)
}

func TestDeployFailureKeepsOutput(t *testing.T) {
	s := NewSkaffold("kind-chaos", "chaoskit", logr.Discard())
	s.run = func(_ context.Context, _, _ string, _ ...string) (string, error) {
		return "error: deployment carts-db exceeded its progress deadline", errors.New("exit status 1")
	}

	out, err := s.Deploy(context.Background(), "/work/inputs/mod_1")
	require.Error(t, err)
	assert.Equal(t, cerrors.DeployFail, cerrors.KindOf(err))
	assert.Contains(t, err.Error(), "progress deadline")
	assert.Contains(t, out, "progress deadline")
}
