package preprocess

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	dynfake "k8s.io/client-go/dynamic/fake"
	k8sfake "k8s.io/client-go/kubernetes/fake"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/k8s"
	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/store"
)

type summarizeGateway struct {
	llm.Gateway
	system llm.SystemSummary
}

func (g *summarizeGateway) SummarizeManifest(_ context.Context, fname, _ string) (string, error) {
	return "summary of " + fname, nil
}

func (g *summarizeGateway) SummarizeSystem(_ context.Context, summaries []string, _ string) (llm.SystemSummary, error) {
	if g.system.Application == "" {
		return llm.SystemSummary{Application: fmt.Sprintf("app built from %d manifests", len(summaries))}, nil
	}
	return g.system, nil
}

type stubDeployer struct {
	dirs []string
	err  error
}

func (d *stubDeployer) Deploy(_ context.Context, dir string) (string, error) {
	d.dirs = append(d.dirs, dir)
	return "", d.err
}

func readyObjects() []runtime.Object {
	replicas := int32(2)
	return []runtime.Object{
		&appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{
				Name: "carts-db", Namespace: "sock-shop",
				Labels: map[string]string{"project": "chaoskit"},
			},
			Spec:   appsv1.DeploymentSpec{Replicas: &replicas},
			Status: appsv1.DeploymentStatus{AvailableReplicas: 2, UpdatedReplicas: 2},
		},
		&corev1.Service{
			ObjectMeta: metav1.ObjectMeta{
				Name: "carts-db", Namespace: "sock-shop",
				Labels: map[string]string{"project": "chaoskit"},
			},
			Spec: corev1.ServiceSpec{ClusterIP: "10.0.0.1"},
		},
	}
}

func sampleInput() model.Input {
	return model.Input{
		DeployBundle: model.File{
			Fname:   "skaffold.yaml",
			Content: "apiVersion: skaffold/v3\nkind: Config\nmanifests:\n  rawYaml:\n    - carts-db.yaml\n    - front-end.yaml\n",
		},
		Files: []model.File{
			{Fname: "carts-db.yaml", Content: "kind: Deployment\nmetadata:\n  name: carts-db\n"},
			{Fname: "front-end.yaml", Content: "kind: Service\nmetadata:\n  name: front-end\n"},
		},
		Instructions: "focus on the carts database",
	}
}

func newPreprocessor(t *testing.T, objects ...runtime.Object) (*Preprocessor, *store.Store, *stubDeployer) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	client := k8s.NewWithClients(
		k8sfake.NewSimpleClientset(objects...),
		dynfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), nil),
		"kind-chaos",
	)
	deployer := &stubDeployer{}
	p := New(&summarizeGateway{}, st, client, deployer, logr.Discard(), Config{
		Namespace:   "sock-shop",
		Project:     "chaoskit",
		WaitTimeout: 3 * time.Second,
	})
	return p, st, deployer
}

func TestProcessIngestsAndDeploys(t *testing.T) {
	p, st, deployer := newPreprocessor(t, readyObjects()...)

	data, err := p.Process(context.Background(), sampleInput())
	require.NoError(t, err)

	require.Len(t, data.K8sYamls, 2)
	assert.Equal(t, "carts-db.yaml", data.K8sYamls[0].Fname)
	assert.Equal(t, []string{"summary of carts-db.yaml", "summary of front-end.yaml"}, data.K8sSummaries)
	assert.Equal(t, "app built from 2 manifests", data.K8sApp)
	assert.Equal(t, "focus on the carts database", data.CEInstructions)
	assert.Equal(t, st.WorkDir(), data.WorkDir)

	onDisk, err := st.ReadFile("inputs/carts-db.yaml")
	require.NoError(t, err)
	assert.Contains(t, onDisk, "carts-db")
	_, err = st.ReadFile("inputs/skaffold.yaml")
	require.NoError(t, err)

	require.Len(t, deployer.dirs, 1)
	assert.True(t, strings.HasSuffix(deployer.dirs[0], "inputs"))
}

func TestProcessSkipDeployOnlyWaits(t *testing.T) {
	p, _, deployer := newPreprocessor(t, readyObjects()...)
	p.cfg.SkipDeploy = true

	data, err := p.Process(context.Background(), sampleInput())
	require.NoError(t, err)

	assert.Empty(t, deployer.dirs)
	assert.Len(t, data.K8sYamls, 2)
}

func TestProcessRejectsMissingManifest(t *testing.T) {
	p, _, _ := newPreprocessor(t, readyObjects()...)

	input := sampleInput()
	input.Files = input.Files[:1]

	_, err := p.Process(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, cerrors.SchemaFail, cerrors.KindOf(err))
	assert.Contains(t, err.Error(), "front-end.yaml")
}

func TestProcessRejectsEmptyBundle(t *testing.T) {
	p, _, _ := newPreprocessor(t, readyObjects()...)

	input := sampleInput()
	input.DeployBundle.Content = "apiVersion: skaffold/v3\nkind: Config\n"

	_, err := p.Process(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rawYaml manifests")
}

func TestProcessFailsWhenSystemNeverReady(t *testing.T) {
	p, _, _ := newPreprocessor(t)
	p.cfg.WaitTimeout = 10 * time.Millisecond

	_, err := p.Process(context.Background(), sampleInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}
