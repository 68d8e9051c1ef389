package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-pantry-assistant/internal/llm/llmtest"
	"mcp-pantry-assistant/internal/models"
)

func TestRunPlanMissingToolDoesNotHalt(t *testing.T) {
	model := llmtest.New(llmtest.Rule{Match: "Extract the foods", Text: `[{"label":"Eggs"}]`})
	state := models.NewOrchestratorState(nil)

	var seen []models.ToolResult
	res := RunPlan(context.Background(), []Step{
		{Tool: "nutritionLookup"},
		{Tool: ToolIntentParser, Input: IntentInput{Text: "eggs"}},
	}, NewRegistry(), ToolEnv{Model: model}, state, func(index int, result models.ToolResult) {
		assert.Equal(t, len(seen), index)
		seen = append(seen, result)
	})

	require.Len(t, state.Failures, 1)
	assert.True(t, strings.HasSuffix(state.Failures[0], ": not implemented"))
	assert.Equal(t, "nutritionLookup: not implemented", state.Failures[0])

	require.Len(t, seen, 2)
	out, ok := seen[1].Output.(DetectionOutput)
	require.True(t, ok)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Eggs", out.Items[0].Label)

	assert.Same(t, state, res.State)
	require.Len(t, res.Logs, 2)
	assert.Equal(t, "step-1", res.Logs[0].Step)
	assert.NotEmpty(t, res.Logs[0].Error)
	assert.Empty(t, res.Logs[1].Error)
}

func TestRunPlanSoftErrorStaysInLog(t *testing.T) {
	registry := NewRegistry()
	registry.Register("flaky", func(context.Context, any, ToolEnv) models.ToolResult {
		return models.ToolResult{Name: "flaky", Error: "model unavailable"}
	})
	state := models.NewOrchestratorState(nil)

	res := RunPlan(context.Background(), []Step{{Label: "try", Tool: "flaky"}}, registry, ToolEnv{}, state, nil)

	assert.Empty(t, state.Failures)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "try", res.Logs[0].Step)
	assert.Equal(t, "model unavailable", res.Logs[0].Error)
}

func TestRunPlanRecoversPanics(t *testing.T) {
	registry := NewRegistry()
	registry.Register("exploder", func(context.Context, any, ToolEnv) models.ToolResult {
		panic("kaboom")
	})
	ran := false
	registry.Register("after", func(context.Context, any, ToolEnv) models.ToolResult {
		ran = true
		return models.ToolResult{Name: "after", Output: "ok"}
	})
	state := models.NewOrchestratorState(nil)

	RunPlan(context.Background(), []Step{{Tool: "exploder"}, {Tool: "after"}}, registry, ToolEnv{}, state, nil)

	assert.Equal(t, []string{"exploder: kaboom"}, state.Failures)
	assert.True(t, ran)
}

func TestRunPlanSequentialAndLogged(t *testing.T) {
	var order []string
	registry := &Registry{}
	for _, name := range []ToolName{"a", "b", "c"} {
		name := name
		registry.Register(name, func(_ context.Context, input any, _ ToolEnv) models.ToolResult {
			order = append(order, string(name)+":"+input.(string))
			return models.ToolResult{Name: string(name), Output: input}
		})
	}

	var sunk []models.OrchestratorLogEntry
	env := ToolEnv{Logger: func(e models.OrchestratorLogEntry) { sunk = append(sunk, e) }}
	state := models.NewOrchestratorState(nil)

	res := RunPlan(context.Background(), []Step{
		{Tool: "a", Input: "1"},
		{Tool: "b", Input: "2"},
		{Tool: "c", Input: "3"},
	}, registry, env, state, nil)

	assert.Equal(t, []string{"a:1", "b:2", "c:3"}, order)
	assert.Equal(t, res.Logs, sunk)
	assert.Equal(t, `"2"`, res.Logs[1].OutputPreview)
	for _, entry := range res.Logs {
		assert.False(t, entry.At.IsZero())
	}
}

func TestRegistryLookupBuiltins(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []ToolName{ToolVision, ToolIntentParser, ToolCommandBuilder, ToolJSONFixer} {
		_, ok := registry.Lookup(name)
		assert.True(t, ok, name)
	}
	_, ok := registry.Lookup(StepLogBuilder)
	assert.False(t, ok)

	var empty *Registry
	_, ok = empty.Lookup(ToolVision)
	assert.False(t, ok)
}
