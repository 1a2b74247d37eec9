package improve

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/chaosmesh"
	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/store"
)

type improveGateway struct {
	llm.Gateway

	proposal   model.Reconfiguration
	debugged   model.Reconfiguration
	debugCalls [][]string

	scope      chaosmesh.Selectors
	scopeCalls []llm.ScopeRequest
	adjust     func(req llm.TestAdjustRequest) llm.UnitTestAdjustment
}

func (g *improveGateway) ProposeReconfiguration(_ context.Context, _ llm.ReconfigRequest) (model.Reconfiguration, error) {
	return g.proposal, nil
}

func (g *improveGateway) DebugReconfiguration(_ context.Context, _ llm.ReconfigRequest, errHistory []string) (model.Reconfiguration, error) {
	g.debugCalls = append(g.debugCalls, append([]string(nil), errHistory...))
	return g.debugged, nil
}

func (g *improveGateway) AdjustFaultScope(_ context.Context, req llm.ScopeRequest) (chaosmesh.Selectors, error) {
	g.scopeCalls = append(g.scopeCalls, req)
	return g.scope, nil
}

func (g *improveGateway) AdjustUnitTest(_ context.Context, req llm.TestAdjustRequest) (llm.UnitTestAdjustment, error) {
	if g.adjust != nil {
		return g.adjust(req), nil
	}
	return llm.UnitTestAdjustment{Code: req.TestCode}, nil
}

type stubDeployer struct {
	errs  []error
	outs  []string
	calls []string
}

func (d *stubDeployer) Deploy(_ context.Context, dir string) (string, error) {
	i := len(d.calls)
	d.calls = append(d.calls, dir)
	var out string
	var err error
	if i < len(d.outs) {
		out = d.outs[i]
	}
	if i < len(d.errs) {
		err = d.errs[i]
	}
	return out, err
}

func seedBundle(t *testing.T) (*store.Store, []model.File) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	yamls := []model.File{
		{Fname: "carts-db.yaml", Content: "kind: Deployment\nmetadata:\n  name: carts-db\nspec:\n  replicas: 1\n"},
		{Fname: "front-end.yaml", Content: "kind: Service\nmetadata:\n  name: front-end\n"},
	}
	for _, y := range yamls {
		_, err := st.WriteFile("inputs/"+y.Fname, y.Content)
		require.NoError(t, err)
	}
	return st, yamls
}

func replaceCartsDb() model.Reconfiguration {
	return model.Reconfiguration{ModK8sYamls: []model.ModK8sYaml{{
		ModType: model.ModReplace,
		Fname:   "carts-db.yaml",
		Code:    "kind: Deployment\nmetadata:\n  name: carts-db\nspec:\n  replicas: 3\n",
	}}}
}

func newImprover(gw llm.Gateway, st *store.Store, d Deployer) *Improver {
	return New(gw, st, d, logr.Discard(), Config{MaxRetries: 3, Project: "chaoskit"})
}

func TestReconfigureAppliesModsAndDeploys(t *testing.T) {
	st, yamls := seedBundle(t)
	gw := &improveGateway{proposal: replaceCartsDb()}
	deployer := &stubDeployer{}
	im := newImprover(gw, st, deployer)

	newYamls, dir, reconfig, err := im.Reconfigure(context.Background(), &model.ProcessedData{},
		"carts-db keeps two replicas", model.Analysis{Report: "only one replica configured"},
		yamls, "inputs", 0, nil)
	require.NoError(t, err)

	assert.Equal(t, "mod_0", dir)
	require.Len(t, newYamls, 2)
	assert.Contains(t, newYamls[0].Content, "replicas: 3")
	assert.Len(t, reconfig.ModK8sYamls, 1)

	onDisk, err := st.ReadFile("mod_0/carts-db.yaml")
	require.NoError(t, err)
	assert.Contains(t, onDisk, "replicas: 3")

	bundle, err := st.ReadFile("mod_0/skaffold.yaml")
	require.NoError(t, err)
	assert.Contains(t, bundle, "- carts-db.yaml")
	assert.Contains(t, bundle, "- front-end.yaml")

	require.Len(t, deployer.calls, 1)
	assert.True(t, strings.HasSuffix(deployer.calls[0], "mod_0"))

	var persisted model.Reconfiguration
	require.NoError(t, st.ReadJSON("improvement/reconfig_0.json", &persisted))
	assert.Equal(t, reconfig, persisted)
}

func TestReconfigureCreateAndDelete(t *testing.T) {
	st, yamls := seedBundle(t)
	gw := &improveGateway{proposal: model.Reconfiguration{ModK8sYamls: []model.ModK8sYaml{
		{ModType: model.ModDelete, Fname: "front-end.yaml"},
		{ModType: model.ModCreate, Fname: "carts-db-pdb.yaml", Code: "kind: PodDisruptionBudget\n"},
	}}}
	im := newImprover(gw, st, &stubDeployer{})

	newYamls, _, _, err := im.Reconfigure(context.Background(), &model.ProcessedData{},
		"", model.Analysis{}, yamls, "inputs", 0, nil)
	require.NoError(t, err)

	names := []string{newYamls[0].Fname, newYamls[1].Fname}
	assert.Equal(t, []string{"carts-db.yaml", "carts-db-pdb.yaml"}, names)

	_, err = st.ReadFile("mod_0/front-end.yaml")
	require.Error(t, err)

	bundle, err := st.ReadFile("mod_0/skaffold.yaml")
	require.NoError(t, err)
	assert.NotContains(t, bundle, "front-end.yaml")
}

func TestReconfigureRepromptsOnDeployFailure(t *testing.T) {
	st, yamls := seedBundle(t)
	gw := &improveGateway{proposal: replaceCartsDb(), debugged: replaceCartsDb()}
	deployer := &stubDeployer{
		errs: []error{errors.New("deploy failed"), nil},
		outs: []string{"pod carts-db ImagePullBackOff", ""},
	}
	im := newImprover(gw, st, deployer)

	_, _, _, err := im.Reconfigure(context.Background(), &model.ProcessedData{},
		"", model.Analysis{}, yamls, "inputs", 0, nil)
	require.NoError(t, err)

	require.Len(t, gw.debugCalls, 1)
	assert.Contains(t, gw.debugCalls[0][0], "ImagePullBackOff")
	assert.Len(t, deployer.calls, 2)
}

func TestReconfigureRepromptsOnBadModification(t *testing.T) {
	st, yamls := seedBundle(t)
	gw := &improveGateway{
		proposal: model.Reconfiguration{ModK8sYamls: []model.ModK8sYaml{
			{ModType: model.ModReplace, Fname: "no-such.yaml", Code: "kind: Deployment\n"},
		}},
		debugged: replaceCartsDb(),
	}
	deployer := &stubDeployer{}
	im := newImprover(gw, st, deployer)

	_, _, _, err := im.Reconfigure(context.Background(), &model.ProcessedData{},
		"", model.Analysis{}, yamls, "inputs", 0, nil)
	require.NoError(t, err)

	require.Len(t, gw.debugCalls, 1)
	assert.Contains(t, gw.debugCalls[0][0], "no-such.yaml")
	assert.Len(t, deployer.calls, 1)
}

func TestReconfigureBudgetExhausted(t *testing.T) {
	st, yamls := seedBundle(t)
	gw := &improveGateway{proposal: replaceCartsDb(), debugged: replaceCartsDb()}
	deployer := &stubDeployer{
		errs: []error{errors.New("deploy failed"), errors.New("deploy failed"), errors.New("deploy failed")},
	}
	im := newImprover(gw, st, deployer)

	_, _, _, err := im.Reconfigure(context.Background(), &model.ProcessedData{},
		"", model.Analysis{}, yamls, "inputs", 0, nil)
	require.Error(t, err)
	assert.Equal(t, cerrors.BudgetExceeded, cerrors.KindOf(err))
	assert.Len(t, deployer.calls, 3)
}

func TestReplanAdjustsSelectorAndTest(t *testing.T) {
	st, _ := seedBundle(t)
	gw := &improveGateway{
		scope: chaosmesh.Selectors{LabelSelectors: map[string]string{"name": "carts-db-v2"}},
		adjust: func(req llm.TestAdjustRequest) llm.UnitTestAdjustment {
			return llm.UnitTestAdjustment{Code: strings.ReplaceAll(req.TestCode, "carts-db", "carts-db-v2")}
		},
	}
	im := newImprover(gw, st, &stubDeployer{})

	hyp := &model.Hypothesis{
		SteadyStates: []model.SteadyState{{
			Name: "CartsDbPodCount",
			UnitTest: model.File{
				Fname:   "hypothesis/unittest_CartsDbPodCount_mod0.py",
				Content: "assert pod_count('carts-db') >= 2",
			},
		}},
		Fault: model.FaultScenario{Faults: [][]model.Fault{{{
			Name: "PodChaos",
			Params: map[string]any{
				"action":   "pod-kill",
				"selector": map[string]any{"labelSelectors": map[string]any{"name": "carts-db"}},
			},
		}}}},
	}

	prev := []model.File{{Fname: "carts-db.yaml", Content: "name: carts-db"}}
	curr := []model.File{{Fname: "carts-db.yaml", Content: "name: carts-db-v2"}}
	require.NoError(t, im.Replan(context.Background(), prev, curr, hyp))

	sel, err := chaosmesh.SelectorOf(hyp.Fault.Faults[0][0].Params)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "carts-db-v2"}, sel.LabelSelectors)

	require.Len(t, gw.scopeCalls, 1)
	assert.Equal(t, "PodChaos", gw.scopeCalls[0].FaultKind)
	assert.Contains(t, gw.scopeCalls[0].Selector, "carts-db")

	state := hyp.SteadyStates[0]
	assert.Equal(t, "hypothesis/unittest_CartsDbPodCount_mod1.py", state.UnitTest.Fname)
	assert.Contains(t, state.UnitTest.Content, "carts-db-v2")

	onDisk, err := st.ReadFile(state.UnitTest.Fname)
	require.NoError(t, err)
	assert.Contains(t, onDisk, "carts-db-v2")
}

func TestReplanKeepsUnchangedTest(t *testing.T) {
	st, _ := seedBundle(t)
	gw := &improveGateway{}
	im := newImprover(gw, st, &stubDeployer{})

	hyp := &model.Hypothesis{SteadyStates: []model.SteadyState{{
		UnitTest: model.File{Fname: "hypothesis/unittest_FrontEndLatency_mod0.js", Content: "check latency"},
	}}}

	require.NoError(t, im.Replan(context.Background(), nil, nil, hyp))
	assert.Equal(t, "hypothesis/unittest_FrontEndLatency_mod0.js", hyp.SteadyStates[0].UnitTest.Fname)
}

func TestNextModPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"hypothesis/unittest_X_mod0.py", "hypothesis/unittest_X_mod1.py"},
		{"hypothesis/unittest_X_mod9.js", "hypothesis/unittest_X_mod10.js"},
		{"hypothesis/k6_front_end.js", "hypothesis/k6_front_end_mod1.js"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextModPath(tt.in))
	}
}
