package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecutionContext_Namespaces(t *testing.T) {
	ctx, err := NewExecutionContext(map[string]any{"topic": "budgets"}, map[string]any{"dryRun": true})
	require.NoError(t, err)

	v, ok := ctx.Value("input.topic")
	assert.True(t, ok)
	assert.Equal(t, "budgets", v)

	v, ok = ctx.Value("options.dryRun")
	assert.True(t, ok)
	assert.Equal(t, true, v)

	assert.False(t, ctx.Exists("steps.anything"))
}

func TestNewExecutionContext_NilMaps(t *testing.T) {
	ctx, err := NewExecutionContext(nil, nil)
	require.NoError(t, err)
	assert.True(t, ctx.Exists("input"))
	assert.True(t, ctx.Exists("options"))
}

func TestExecutionContext_RecordStep(t *testing.T) {
	ctx, err := NewExecutionContext(nil, nil)
	require.NoError(t, err)

	require.NoError(t, ctx.RecordStep("fetch", StepCompleted, map[string]any{"total": 42}))

	v, ok := ctx.Value("steps.fetch.output.total")
	assert.True(t, ok)
	assert.Equal(t, float64(42), v)

	s, ok := ctx.Lookup("steps.fetch.status")
	assert.True(t, ok)
	assert.Equal(t, "completed", s)
}

func TestExecutionContext_RecordSkip(t *testing.T) {
	ctx, err := NewExecutionContext(nil, nil)
	require.NoError(t, err)

	require.NoError(t, ctx.RecordSkip("maybe"))

	s, ok := ctx.Lookup("steps.maybe.status")
	assert.True(t, ok)
	assert.Equal(t, "skipped", s)
	assert.False(t, ctx.Exists("steps.maybe.output"))
}

func TestExecutionContext_Lookup_ListIndex(t *testing.T) {
	ctx, err := NewExecutionContext(map[string]any{"items": []any{"x", "y"}}, nil)
	require.NoError(t, err)

	s, ok := ctx.Lookup("input.items[1]")
	assert.True(t, ok)
	assert.Equal(t, "y", s)

	_, ok = ctx.Lookup("input.items[5]")
	assert.False(t, ok)
}

func TestExecutionContext_Lookup_NonScalarCompactJSON(t *testing.T) {
	ctx, err := NewExecutionContext(map[string]any{"nested": map[string]any{"a": 1}}, nil)
	require.NoError(t, err)

	s, ok := ctx.Lookup("input.nested")
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, s)
	assert.NotContains(t, s, "\n")
}

func TestExecutionContext_Clone_Isolation(t *testing.T) {
	ctx, err := NewExecutionContext(map[string]any{"base": 1}, nil)
	require.NoError(t, err)

	snap := ctx.Clone()
	require.NoError(t, ctx.RecordStep("later", StepCompleted, "v"))

	assert.True(t, ctx.Exists("steps.later"))
	assert.False(t, snap.Exists("steps.later"), "snapshot must not see later writes")
	assert.True(t, snap.Exists("input.base"))
}
