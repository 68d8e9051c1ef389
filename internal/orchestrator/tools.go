// internal/orchestrator/tools.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mcp-pantry-assistant/internal/llm"
	"mcp-pantry-assistant/internal/models"
)

type ToolName string

const (
	ToolVision         ToolName = "vision"
	ToolIntentParser   ToolName = "intentParser"
	ToolCommandBuilder ToolName = "commandBuilder"
	ToolJSONFixer      ToolName = "jsonFixer"

	// StepLogBuilder names the deterministic log-command phase in a plan. It
	// is not a tool and never dispatched.
	StepLogBuilder ToolName = "logBuilder"
)

// messageSourceID keys items detected from the chat text.
const messageSourceID = "message"

var errNoModel = errors.New("no model configured")

// LogSink receives diagnostic entries. It must not be relied on for control flow.
type LogSink func(entry models.OrchestratorLogEntry)

// ToolEnv is passed to every tool invocation.
type ToolEnv struct {
	Model     llm.Caller
	Logger    LogSink
	MaxTokens int
}

func (e ToolEnv) log(entry models.OrchestratorLogEntry) {
	if e.Logger == nil {
		return
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	e.Logger(entry)
}

// Tool wraps one model call. Tools report problems through ToolResult.Error
// instead of returning errors.
type Tool func(ctx context.Context, input any, env ToolEnv) models.ToolResult

// Registry maps the fixed tool set to implementations. Extra tools can be
// registered by name; anything else is "not implemented" at run time.
type Registry struct {
	Vision         Tool
	IntentParser   Tool
	CommandBuilder Tool
	JSONFixer      Tool

	extra map[ToolName]Tool
}

// NewRegistry returns a registry with the built-in tools.
func NewRegistry() *Registry {
	return &Registry{
		Vision:         VisionTool,
		IntentParser:   IntentParserTool,
		CommandBuilder: CommandBuilderTool,
		JSONFixer:      JSONFixerTool,
	}
}

func (r *Registry) Register(name ToolName, tool Tool) {
	switch name {
	case ToolVision:
		r.Vision = tool
	case ToolIntentParser:
		r.IntentParser = tool
	case ToolCommandBuilder:
		r.CommandBuilder = tool
	case ToolJSONFixer:
		r.JSONFixer = tool
	default:
		if r.extra == nil {
			r.extra = make(map[ToolName]Tool)
		}
		r.extra[name] = tool
	}
}

func (r *Registry) Lookup(name ToolName) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	var tool Tool
	switch name {
	case ToolVision:
		tool = r.Vision
	case ToolIntentParser:
		tool = r.IntentParser
	case ToolCommandBuilder:
		tool = r.CommandBuilder
	case ToolJSONFixer:
		tool = r.JSONFixer
	default:
		tool = r.extra[name]
	}
	return tool, tool != nil
}

type VisionInput struct {
	Attachment models.Attachment
}

type IntentInput struct {
	Text    string
	History []models.ChatTurn
}

type CommandBuilderInput struct {
	Item     models.DetectedItem
	Defaults models.Defaults
}

type JSONFixerInput struct {
	Original any
	Errors   []string
}

// DetectionOutput is produced by the vision and intent-parser tools.
type DetectionOutput struct {
	SourceID string                `json:"sourceId"`
	Items    []models.DetectedItem `json:"items"`
}

// CommandOutput is produced by the command builder. Command is nil when the
// model output was unusable and no fallback could be built.
type CommandOutput struct {
	Command  map[string]any `json:"command"`
	Fallback bool           `json:"fallback,omitempty"`
}

type FixerOutput struct {
	Fixed map[string]any `json:"fixed"`
}

// callModel runs one prompt and logs its previews.
func callModel(ctx context.Context, env ToolEnv, name ToolName, step string, req llm.Request) (string, error) {
	entry := models.OrchestratorLogEntry{
		Step:          step + "/model",
		Tool:          string(name),
		PromptPreview: preview(req.UserPrompt),
	}
	if env.Model == nil {
		entry.Error = errNoModel.Error()
		env.log(entry)
		return "", errNoModel
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = env.MaxTokens
	}

	resp, err := env.Model.CallModel(ctx, req)
	if err != nil {
		entry.Error = err.Error()
		env.log(entry)
		return "", err
	}

	entry.OutputPreview = preview(resp.Text)
	if resp.Truncated {
		entry.Error = "response truncated"
	}
	env.log(entry)
	return resp.Text, nil
}

func VisionTool(ctx context.Context, input any, env ToolEnv) models.ToolResult {
	in, ok := input.(VisionInput)
	if !ok {
		return models.ToolResult{Name: string(ToolVision), Error: fmt.Sprintf("unexpected input %T", input)}
	}

	out := DetectionOutput{SourceID: in.Attachment.ID, Items: []models.DetectedItem{}}
	text, err := callModel(ctx, env, ToolVision, "vision:"+in.Attachment.ID, llm.Request{
		SystemPrompt: visionSystemPrompt,
		UserPrompt:   visionUserPrompt(in.Attachment),
		ResponseMode: llm.ResponseModeJSON,
	})
	if err != nil {
		return models.ToolResult{Name: string(ToolVision), Output: out, Error: err.Error()}
	}

	out.Items = ParseDetectedItems(text, in.Attachment.ID)
	return models.ToolResult{Name: string(ToolVision), Output: out}
}

func IntentParserTool(ctx context.Context, input any, env ToolEnv) models.ToolResult {
	in, ok := input.(IntentInput)
	if !ok {
		return models.ToolResult{Name: string(ToolIntentParser), Error: fmt.Sprintf("unexpected input %T", input)}
	}

	out := DetectionOutput{SourceID: messageSourceID, Items: []models.DetectedItem{}}
	text, err := callModel(ctx, env, ToolIntentParser, "intent", llm.Request{
		SystemPrompt: intentSystemPrompt,
		UserPrompt:   intentUserPrompt(in.Text, in.History),
		ResponseMode: llm.ResponseModeJSON,
	})
	if err != nil {
		return models.ToolResult{Name: string(ToolIntentParser), Output: out, Error: err.Error()}
	}

	out.Items = ParseDetectedItems(text, messageSourceID)
	return models.ToolResult{Name: string(ToolIntentParser), Output: out}
}

func CommandBuilderTool(ctx context.Context, input any, env ToolEnv) models.ToolResult {
	in, ok := input.(CommandBuilderInput)
	if !ok {
		return models.ToolResult{Name: string(ToolCommandBuilder), Error: fmt.Sprintf("unexpected input %T", input)}
	}

	text, err := callModel(ctx, env, ToolCommandBuilder, "command:"+in.Item.ID, llm.Request{
		SystemPrompt: commandBuilderSystemPrompt,
		UserPrompt:   commandBuilderUserPrompt(in.Item, in.Defaults),
		ResponseMode: llm.ResponseModeJSON,
	})
	if err == nil {
		if cmd, ok := extractCommand(text); ok {
			applyDefaults(cmd, in.Defaults)
			return models.ToolResult{Name: string(ToolCommandBuilder), Output: CommandOutput{Command: cmd}}
		}
	}

	fallback := fallbackCommand(in.Item, in.Defaults)
	result := models.ToolResult{
		Name:   string(ToolCommandBuilder),
		Output: CommandOutput{Command: fallback, Fallback: fallback != nil},
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func JSONFixerTool(ctx context.Context, input any, env ToolEnv) models.ToolResult {
	in, ok := input.(JSONFixerInput)
	if !ok {
		return models.ToolResult{Name: string(ToolJSONFixer), Error: fmt.Sprintf("unexpected input %T", input)}
	}

	text, err := callModel(ctx, env, ToolJSONFixer, "repair", llm.Request{
		SystemPrompt: jsonFixerSystemPrompt,
		UserPrompt:   jsonFixerUserPrompt(in.Original, in.Errors),
		ResponseMode: llm.ResponseModeJSON,
	})
	if err != nil {
		return models.ToolResult{Name: string(ToolJSONFixer), Output: FixerOutput{}, Error: err.Error()}
	}

	fixed, ok := extractObject(text)
	if !ok {
		return models.ToolResult{Name: string(ToolJSONFixer), Output: FixerOutput{}}
	}
	return models.ToolResult{Name: string(ToolJSONFixer), Output: FixerOutput{Fixed: fixed}}
}

// extractCommand reads the command object, unwrapping {"command": {...}}.
func extractCommand(text string) (map[string]any, bool) {
	obj, ok := extractObject(text)
	if !ok {
		return nil, false
	}
	if _, hasName := obj["name"]; !hasName {
		if inner, ok := obj["command"].(map[string]interface{}); ok {
			return inner, true
		}
	}
	return obj, true
}

func applyDefaults(cmd map[string]any, defaults models.Defaults) {
	fill := func(key, value string) {
		if value == "" {
			return
		}
		switch current := cmd[key].(type) {
		case nil:
		case string:
			if strings.TrimSpace(current) != "" {
				return
			}
		default:
			return
		}
		cmd[key] = value
	}
	fill("groupId", defaults.GroupID)
	fill("groupName", defaults.GroupName)
	fill("location", defaults.Location)
}

// fallbackCommand builds a single-serving command from the detected item.
// Without a default group there is nowhere to put it, so it returns nil.
func fallbackCommand(item models.DetectedItem, defaults models.Defaults) map[string]any {
	if defaults.GroupID == "" {
		return nil
	}

	serving := map[string]any{
		"id":     item.ID + "-serving-1",
		"label":  "Serving 1",
		"amount": "1",
		"unit":   guessUnit(item.Category),
	}
	for _, key := range models.NutrientKeys {
		serving[key] = "0"
	}

	cmd := map[string]any{
		"name":     item.Label,
		"groupId":  defaults.GroupID,
		"servings": []any{serving},
	}
	if defaults.GroupName != "" {
		cmd["groupName"] = defaults.GroupName
	}
	if defaults.Location != "" {
		cmd["location"] = defaults.Location
	}
	return cmd
}

func guessUnit(category string) string {
	if strings.Contains(strings.ToLower(category), "season") {
		return "tsp"
	}
	return "unit"
}
