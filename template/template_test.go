package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumahq/chainmesh/core"
)

func resolver(t *testing.T, input map[string]any) Resolver {
	t.Helper()
	ctx, err := core.NewExecutionContext(input, nil)
	require.NoError(t, err)
	return ctx
}

func TestRender_ScalarSubstitution(t *testing.T) {
	r := resolver(t, map[string]any{"a": map[string]any{"b": 5}})
	assert.Equal(t, "5", Render("{{input.a.b}}", r))
}

func TestRender_UnresolvedPassthrough(t *testing.T) {
	r := resolver(t, nil)
	assert.Equal(t, "{{input.missing}}", Render("{{input.missing}}", r))
}

func TestRender_ListIndex(t *testing.T) {
	r := resolver(t, map[string]any{"items": []any{"x", "y"}})
	assert.Equal(t, "y", Render("{{input.items[1]}}", r))
}

func TestRender_MultiplePlaceholders(t *testing.T) {
	r := resolver(t, map[string]any{"who": "fleet", "n": 3})
	got := Render("report {{input.who}} x{{input.n}} ({{input.gone}})", r)
	assert.Equal(t, "report fleet x3 ({{input.gone}})", got)
}

func TestRender_WhitespaceInsidePlaceholder(t *testing.T) {
	r := resolver(t, map[string]any{"who": "fleet"})
	assert.Equal(t, "fleet", Render("{{ input.who }}", r))
}

func TestRender_NonScalarCompactJSON(t *testing.T) {
	r := resolver(t, map[string]any{"obj": map[string]any{"k": "v"}})
	assert.Equal(t, `{"k":"v"}`, Render("{{input.obj}}", r))
}

func TestRender_NoMarkersFastPath(t *testing.T) {
	r := resolver(t, nil)
	assert.Equal(t, "plain text", Render("plain text", r))
}

func TestRenderDeep(t *testing.T) {
	r := resolver(t, map[string]any{"topic": "budgets", "limit": 10})

	in := map[string]any{
		"query":  "{{input.topic}}",
		"limit":  7,
		"nested": []any{"{{input.limit}}", true, map[string]any{"again": "{{input.topic}}"}},
	}
	got := RenderDeep(in, r).(map[string]any)

	assert.Equal(t, "budgets", got["query"])
	assert.Equal(t, 7, got["limit"], "non-string scalars untouched")
	nested := got["nested"].([]any)
	assert.Equal(t, "10", nested[0])
	assert.Equal(t, true, nested[1])
	assert.Equal(t, "budgets", nested[2].(map[string]any)["again"])

	// input must not be mutated
	assert.Equal(t, "{{input.topic}}", in["query"])
}

func TestRenderParams_Nil(t *testing.T) {
	got := RenderParams(nil, resolver(t, nil))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
