// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mcp-pantry-assistant/internal/llm"
	"mcp-pantry-assistant/internal/models"
)

const inferredLabelLimit = 80

// Request is the input to Orchestrate.
type Request struct {
	Text        string
	History     []models.ChatTurn
	Attachments []models.Attachment
	Defaults    models.Defaults
	Model       llm.Caller
	Logger      LogSink
	// Registry overrides the built-in tools when set.
	Registry  *Registry
	MaxTokens int
}

// Orchestrate turns one chat message into pantry or food-log commands. It
// never returns an error: every problem ends up in JobResult.Failures.
func Orchestrate(ctx context.Context, req Request) models.JobResult {
	state := models.NewOrchestratorState(req.Attachments)
	var logs []models.OrchestratorLogEntry
	record := func(entry models.OrchestratorLogEntry) {
		if entry.At.IsZero() {
			entry.At = time.Now()
		}
		logs = append(logs, entry)
		if req.Logger != nil {
			req.Logger(entry)
		}
	}

	env := ToolEnv{Model: req.Model, Logger: record, MaxTokens: req.MaxTokens}
	registry := req.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	text := strings.TrimSpace(req.Text)
	hasAttachments := len(req.Attachments) > 0
	if text == "" && !hasAttachments {
		return models.JobResult{
			Summary:           "Nothing to process.",
			JobType:           models.JobTypeAdd,
			State:             state,
			Logs:              logs,
			GeneratedCommands: []models.FoodCommandPayload{},
			Failures:          []string{},
		}
	}

	jobType := ClassifyIntent(text, hasAttachments)
	plan := SelectPlan(jobType, hasAttachments)
	planNames := make([]string, len(plan))
	for i, name := range plan {
		planNames[i] = string(name)
	}
	record(models.OrchestratorLogEntry{
		Step:          "classify",
		Tool:          "orchestrator",
		OutputPreview: fmt.Sprintf("intent=%s plan=%s", jobType, strings.Join(planNames, ",")),
	})

	if hasAttachments {
		detectFromAttachments(state, req.Attachments, record)
	} else {
		detectFromText(ctx, state, text, req.History, registry, env)
	}
	items := state.AllDetected()

	result := models.JobResult{
		JobType:           jobType,
		Plan:              planNames,
		State:             state,
		GeneratedCommands: []models.FoodCommandPayload{},
	}

	if jobType == models.JobTypeLog {
		for _, item := range items {
			state.LogCommands = append(state.LogCommands, BuildLogCommand(item, req.Defaults))
		}
		record(models.OrchestratorLogEntry{
			Step:          "log-commands",
			Tool:          string(StepLogBuilder),
			OutputPreview: fmt.Sprintf("built %d log command(s)", len(state.LogCommands)),
		})
		result.Summary = fmt.Sprintf("Detected %d item(s). Prepared %d log command(s).", len(items), len(state.LogCommands))
		result.GeneratedLogCommands = state.LogCommands
		result.Logs = logs
		result.Failures = collectFailures(state)
		return result
	}

	steps := make([]Step, 0, len(items))
	for _, item := range items {
		steps = append(steps, Step{
			Label: "command:" + item.ID,
			Tool:  ToolCommandBuilder,
			Input: CommandBuilderInput{Item: item, Defaults: req.Defaults},
		})
	}
	RunPlan(ctx, steps, registry, env, state, func(_ int, res models.ToolResult) {
		if out, ok := res.Output.(CommandOutput); ok && out.Command != nil {
			state.Commands = append(state.Commands, out.Command)
		}
	})

	result.GeneratedCommands = validateCommands(ctx, state, registry, env)
	result.Summary = fmt.Sprintf("Detected %d item(s). Built %d command(s). Validated %d command(s).",
		len(items), len(state.Commands), len(result.GeneratedCommands))
	result.Logs = logs
	result.Failures = collectFailures(state)
	return result
}

// detectFromAttachments logs the vision prompt for each attachment and fills
// in the fixed seasoning list instead of calling the vision tool.
func detectFromAttachments(state *models.OrchestratorState, attachments []models.Attachment, record LogSink) {
	for _, att := range attachments {
		record(models.OrchestratorLogEntry{
			Step:          "vision:" + att.ID,
			Tool:          string(ToolVision),
			PromptPreview: preview(visionUserPrompt(att)),
		})
		items := fallbackVisionItems(att.ID)
		state.AddDetected(att.ID, items...)
		record(models.OrchestratorLogEntry{
			Step:          "vision-fallback:" + att.ID,
			Tool:          string(ToolVision),
			OutputPreview: fmt.Sprintf("using %d fallback item(s)", len(items)),
		})
	}
}

func detectFromText(ctx context.Context, state *models.OrchestratorState, text string, history []models.ChatTurn, registry *Registry, env ToolEnv) {
	steps := []Step{{
		Label: "intent",
		Tool:  ToolIntentParser,
		Input: IntentInput{Text: text, History: history},
	}}
	RunPlan(ctx, steps, registry, env, state, func(_ int, res models.ToolResult) {
		if out, ok := res.Output.(DetectionOutput); ok && len(out.Items) > 0 {
			state.AddDetected(messageSourceID, out.Items...)
		}
	})

	if len(state.DetectedItems[messageSourceID]) == 0 {
		state.AddDetected(messageSourceID, inferredItem(text))
	}
}

func inferredItem(text string) models.DetectedItem {
	label := text
	if runes := []rune(label); len(runes) > inferredLabelLimit {
		label = string(runes[:inferredLabelLimit])
	}
	return models.DetectedItem{
		ID:       messageSourceID + "-0",
		Label:    strings.TrimSpace(label),
		Category: "inferred",
	}
}

var fallbackSeasonings = []struct {
	slug  string
	label string
}{
	{"sea-salt", "Sea Salt"},
	{"smoked-paprika", "Smoked Paprika"},
	{"garlic-powder", "Garlic Powder"},
	{"cumin", "Cumin"},
}

func fallbackVisionItems(attachmentID string) []models.DetectedItem {
	items := make([]models.DetectedItem, 0, len(fallbackSeasonings))
	for _, s := range fallbackSeasonings {
		confidence := 0.5
		items = append(items, models.DetectedItem{
			ID:         attachmentID + "-" + s.slug,
			Label:      s.label,
			Category:   "seasoning",
			Confidence: &confidence,
			Notes:      "vision fallback",
		})
	}
	return items
}

// validateCommands checks every built command, giving each invalid one a
// single pass through the JSON fixer.
func validateCommands(ctx context.Context, state *models.OrchestratorState, registry *Registry, env ToolEnv) []models.FoodCommandPayload {
	valid := []models.FoodCommandPayload{}
	for i, cmd := range state.Commands {
		payload, issues := ValidateFoodCommand(cmd)
		if len(issues) == 0 {
			valid = append(valid, payload)
			continue
		}

		errs := FormatIssues(issues)
		var fixed map[string]any
		steps := []Step{{
			Label: fmt.Sprintf("repair:%d", i+1),
			Tool:  ToolJSONFixer,
			Input: JSONFixerInput{Original: cmd, Errors: errs},
		}}
		RunPlan(ctx, steps, registry, env, state, func(_ int, res models.ToolResult) {
			if out, ok := res.Output.(FixerOutput); ok {
				fixed = out.Fixed
			}
		})

		if fixed != nil {
			payload, issues = ValidateFoodCommand(fixed)
			if len(issues) == 0 {
				valid = append(valid, payload)
				continue
			}
			errs = FormatIssues(issues)
		}

		state.ValidationErrors = append(state.ValidationErrors,
			fmt.Sprintf("%s: %s", commandLabel(cmd, i), strings.Join(errs, "; ")))
	}
	return valid
}

func commandLabel(cmd map[string]any, index int) string {
	if name, ok := cmd["name"].(string); ok && strings.TrimSpace(name) != "" {
		return fmt.Sprintf("command %d (%s)", index+1, strings.TrimSpace(name))
	}
	return fmt.Sprintf("command %d", index+1)
}

func collectFailures(state *models.OrchestratorState) []string {
	failures := make([]string, 0, len(state.Failures)+len(state.ValidationErrors))
	failures = append(failures, state.Failures...)
	failures = append(failures, state.ValidationErrors...)
	return failures
}
