package chaosmesh

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("VolcanoChaos")
	assert.Error(t, err)
}

func TestLowerCamel(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{PodChaos, "podChaos"},
		{NetworkChaos, "networkChaos"},
		{DNSChaos, "dnsChaos"},
		{HTTPChaos, "httpChaos"},
		{StressChaos, "stressChaos"},
		{IOChaos, "ioChaos"},
		{TimeChaos, "timeChaos"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.LowerCamel())
		})
	}
}

func validPodKillParams() map[string]any {
	return map[string]any{
		"action": "pod-kill",
		"mode":   "one",
		"selector": map[string]any{
			"namespaces":     []any{"sock-shop"},
			"labelSelectors": map[string]any{"app": "carts-db"},
		},
	}
}

func TestValidateParams(t *testing.T) {
	require.NoError(t, ValidateParams(PodChaos, validPodKillParams()))
}

func TestValidateParamsRejectsBadAction(t *testing.T) {
	params := validPodKillParams()
	params["action"] = "node-kill"
	assert.Error(t, ValidateParams(PodChaos, params))
}

func TestValidateParamsRejectsUnknownField(t *testing.T) {
	params := validPodKillParams()
	params["gracePeriodSeconds"] = 5
	assert.Error(t, ValidateParams(PodChaos, params))
}

func TestValidateParamsStressChaos(t *testing.T) {
	params := map[string]any{
		"mode": "all",
		"stressors": map[string]any{
			"cpu": map[string]any{"workers": 2, "load": 80},
		},
		"selector": map[string]any{
			"labelSelectors": map[string]any{"app": "front-end"},
		},
	}
	require.NoError(t, ValidateParams(StressChaos, params))

	params["stressors"].(map[string]any)["cpu"].(map[string]any)["load"] = 150
	assert.Error(t, ValidateParams(StressChaos, params))
}

func TestSchemaHintExamplesValidate(t *testing.T) {
	selector := map[string]any{
		"namespaces":     []any{"sock-shop"},
		"labelSelectors": map[string]any{"app": "carts-db"},
	}
	examples := map[Kind]map[string]any{
		PodChaos: {
			"action": "container-kill", "mode": "one",
			"selector": selector, "containerNames": []any{"carts-db"},
		},
		NetworkChaos: {
			"action": "delay", "mode": "all", "selector": selector,
			"direction": "to",
			"delay":     map[string]any{"latency": "100ms", "jitter": "10ms"},
		},
		DNSChaos: {
			"action": "error", "mode": "one", "selector": selector,
			"patterns": []any{"carts-db.*"},
		},
		HTTPChaos: {
			"mode": "one", "selector": selector,
			"target": "Request", "port": 8080, "path": "/carts", "method": "GET", "code": 500,
		},
		StressChaos: {
			"mode": "all", "selector": selector,
			"stressors": map[string]any{"cpu": map[string]any{"workers": 2, "load": 80}},
		},
		IOChaos: {
			"action": "latency", "mode": "one", "selector": selector,
			"volumePath": "/data/db", "delay": "100ms", "percent": 50,
		},
		TimeChaos: {
			"mode": "all", "selector": selector,
			"timeOffset": "-5m", "clockIds": []any{"CLOCK_REALTIME"},
		},
	}

	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			hint, err := SchemaHint(kind)
			require.NoError(t, err)
			params, ok := examples[kind]
			require.True(t, ok, "no example for %s", kind)
			for field := range params {
				assert.Contains(t, hint, `"`+field+`"`)
			}
			assert.NoError(t, ValidateParams(kind, params))
		})
	}
}

func TestSchemaHintMatchesPodChaosActions(t *testing.T) {
	hint, err := SchemaHint(PodChaos)
	require.NoError(t, err)

	assert.NotContains(t, hint, "pod-failure")
	assert.NotContains(t, hint, "gracePeriod")

	assert.Error(t, ValidateParams(PodChaos, map[string]any{
		"action": "pod-failure", "mode": "one",
		"selector": map[string]any{"labelSelectors": map[string]any{"app": "carts-db"}},
	}))
	withGrace := validPodKillParams()
	withGrace["gracePeriod"] = 0
	assert.Error(t, ValidateParams(PodChaos, withGrace))
}

func TestValidateParamsUnsupportedKind(t *testing.T) {
	assert.Error(t, ValidateParams(Kind("NopeChaos"), map[string]any{}))
}

func TestSelectorRoundTrip(t *testing.T) {
	params := validPodKillParams()

	sel, err := SelectorOf(params)
	require.NoError(t, err)
	assert.Equal(t, []string{"sock-shop"}, sel.Namespaces)
	assert.Equal(t, map[string]string{"app": "carts-db"}, sel.LabelSelectors)

	sel.LabelSelectors = map[string]string{"app": "carts-db-v2"}
	require.NoError(t, SetSelector(params, sel))

	got, err := SelectorOf(params)
	require.NoError(t, err)
	assert.Equal(t, "carts-db-v2", got.LabelSelectors["app"])
}

func TestSelectorsEmpty(t *testing.T) {
	var s Selectors
	assert.True(t, s.Empty())
	s.Namespaces = []string{"default"}
	assert.False(t, s.Empty())
}

func TestMarshalParamsBlockStyle(t *testing.T) {
	out, err := MarshalParams(validPodKillParams())
	require.NoError(t, err)

	assert.Contains(t, out, "action: pod-kill")
	assert.Contains(t, out, "selector:\n")
	assert.Contains(t, out, "  namespaces:\n")
	assert.NotContains(t, out, "{")

	// Deterministic output.
	again, err := MarshalParams(validPodKillParams())
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestRenderCR(t *testing.T) {
	out, err := RenderCR(PodChaos, "fault-podchaos-dryrun", "chaos-eng", validPodKillParams(), "30s")
	require.NoError(t, err)

	assert.Contains(t, out, "apiVersion: chaos-mesh.org/v1alpha1")
	assert.Contains(t, out, "kind: PodChaos")
	assert.Contains(t, out, "name: fault-podchaos-dryrun")
	assert.Contains(t, out, "duration: 30s")
	assert.True(t, strings.HasPrefix(out, "apiVersion:"))
}

func TestRenderCRUnknownKind(t *testing.T) {
	_, err := RenderCR(Kind("NopeChaos"), "x", "default", nil, "")
	assert.Error(t, err)
}
