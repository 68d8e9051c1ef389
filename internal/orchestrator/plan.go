// internal/orchestrator/plan.go
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mcp-pantry-assistant/internal/models"
)

// Step is one tool invocation in a plan.
type Step struct {
	Label string
	Tool  ToolName
	Input any
}

type PlanResult struct {
	State *models.OrchestratorState
	Logs  []models.OrchestratorLogEntry
}

// RunPlan executes steps in order against state. A missing tool or a panic
// inside a tool is recorded in state.Failures; a ToolResult.Error only reaches
// the step's log entry. onResult runs after every step and is how callers fold
// tool output into state.
func RunPlan(
	ctx context.Context,
	steps []Step,
	registry *Registry,
	env ToolEnv,
	state *models.OrchestratorState,
	onResult func(index int, result models.ToolResult),
) PlanResult {
	logs := make([]models.OrchestratorLogEntry, 0, len(steps))

	for i, step := range steps {
		label := step.Label
		if label == "" {
			label = fmt.Sprintf("step-%d", i+1)
		}
		entry := models.OrchestratorLogEntry{Step: label, Tool: string(step.Tool)}

		var result models.ToolResult
		tool, ok := registry.Lookup(step.Tool)
		if !ok {
			msg := fmt.Sprintf("%s: not implemented", step.Tool)
			state.Failures = append(state.Failures, msg)
			result = models.ToolResult{Name: string(step.Tool), Error: msg}
		} else if res, err := invokeTool(ctx, tool, step.Input, env); err != nil {
			msg := fmt.Sprintf("%s: %v", step.Tool, err)
			state.Failures = append(state.Failures, msg)
			result = models.ToolResult{Name: string(step.Tool), Error: msg}
		} else {
			result = res
		}

		entry.Error = result.Error
		entry.OutputPreview = outputPreview(result.Output)
		entry.At = time.Now()
		env.log(entry)
		logs = append(logs, entry)

		if onResult != nil {
			onResult(i, result)
		}
	}

	return PlanResult{State: state, Logs: logs}
}

func invokeTool(ctx context.Context, tool Tool, input any, env ToolEnv) (result models.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return tool(ctx, input, env), nil
}

func outputPreview(output any) string {
	if output == nil {
		return ""
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprintf("%v", output)
	}
	return preview(string(data))
}
