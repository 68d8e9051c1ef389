// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"go.uber.org/zap"

	"mcp-pantry-assistant/internal/logging"
	"mcp-pantry-assistant/internal/models"
	"mcp-pantry-assistant/internal/orchestrator"
)

const defaultListLimit = 20

type OrchestrateParams struct {
	Text        string              `json:"text" description:"The chat message to process"`
	Attachments []models.Attachment `json:"attachments,omitempty" description:"Images sent with the message"`
	GroupID     string              `json:"group_id,omitempty" description:"Pantry group for generated commands"`
	GroupName   string              `json:"group_name,omitempty" description:"Display name of the pantry group"`
	Location    string              `json:"location,omitempty" description:"Default storage location"`
	History     []models.ChatTurn   `json:"history,omitempty" description:"Earlier chat turns, oldest first"`
	Persist     bool                `json:"persist,omitempty" description:"Apply the generated commands immediately"`
}

type ApplyCommandsParams struct {
	Commands    []map[string]interface{}       `json:"commands,omitempty" description:"Add-food commands to store"`
	LogCommands []models.FoodLogCommandPayload `json:"log_commands,omitempty" description:"Food-log commands to store"`
}

type GetPantryParams struct {
	GroupID string `json:"group_id,omitempty" description:"Only items of this group"`
	Limit   int    `json:"limit,omitempty" description:"Maximum number of items to return"`
}

type GetFoodLogsParams struct {
	GroupID   string `json:"group_id,omitempty" description:"Only logs of this group"`
	StartDate string `json:"start_date,omitempty" description:"Start date (YYYY-MM-DD)"`
	EndDate   string `json:"end_date,omitempty" description:"End date (YYYY-MM-DD)"`
	Limit     int    `json:"limit,omitempty" description:"Maximum number of entries to return"`
}

// ApplyResult reports what was stored. Failures never abort the batch.
type ApplyResult struct {
	PantryItems []models.PantryItem   `json:"pantry_items"`
	FoodLogs    []models.FoodLogEntry `json:"food_logs"`
	Failures    []string              `json:"failures"`
}

type OrchestrateResponse struct {
	Result  models.JobResult `json:"result"`
	Applied *ApplyResult     `json:"applied,omitempty"`
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal arguments: %v", errInvalidParams, err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}

	return nil
}

func (s *PantryServer) registerTools() {
	s.tools = map[string]toolHandler{
		"orchestrate_message": s.handleOrchestrate,
		"apply_commands":      s.handleApplyCommands,
		"get_pantry":          s.handleGetPantry,
		"get_food_logs":       s.handleGetFoodLogs,
	}
	for name := range s.tools {
		s.logger.Debug("Registered tool", zap.String("tool", name))
	}
}

// handleOrchestrate runs one chat message through the orchestrator. Problems
// inside the run are reported in the result, not as HTTP errors.
func (s *PantryServer) handleOrchestrate(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params OrchestrateParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if strings.TrimSpace(params.Text) == "" && len(params.Attachments) == 0 {
		return nil, fmt.Errorf("%w: text or attachments are required", errInvalidParams)
	}

	defaults := s.config.Defaults
	if params.GroupID != "" {
		defaults.GroupID = params.GroupID
	}
	if params.GroupName != "" {
		defaults.GroupName = params.GroupName
	}
	if params.Location != "" {
		defaults.Location = params.Location
	}

	result := orchestrator.Orchestrate(ctx, orchestrator.Request{
		Text:        params.Text,
		History:     params.History,
		Attachments: params.Attachments,
		Defaults:    defaults,
		Model:       s.model,
		Logger:      logging.OrchestratorSink(s.logger),
		MaxTokens:   s.config.MaxTokens,
	})

	response := OrchestrateResponse{Result: result}
	if params.Persist {
		applied := s.apply(ctx, result.GeneratedCommands, result.GeneratedLogCommands)
		response.Applied = &applied
		response.Result.Failures = append(response.Result.Failures, applied.Failures...)
	}

	return s.createJSONResponse(response)
}

// handleApplyCommands stores commands a client reviewed earlier. Add-food
// commands are validated again since they come back from outside.
func (s *PantryServer) handleApplyCommands(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ApplyCommandsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if len(params.Commands) == 0 && len(params.LogCommands) == 0 {
		return nil, fmt.Errorf("%w: no commands to apply", errInvalidParams)
	}

	var valid []models.FoodCommandPayload
	failures := []string{}
	for i, raw := range params.Commands {
		payload, issues := orchestrator.ValidateFoodCommand(raw)
		if len(issues) > 0 {
			failures = append(failures, fmt.Sprintf("command %d: %s", i+1,
				strings.Join(orchestrator.FormatIssues(issues), "; ")))
			continue
		}
		valid = append(valid, payload)
	}

	applied := s.apply(ctx, valid, params.LogCommands)
	applied.Failures = append(failures, applied.Failures...)
	return s.createJSONResponse(applied)
}

func (s *PantryServer) apply(ctx context.Context, cmds []models.FoodCommandPayload, logCmds []models.FoodLogCommandPayload) ApplyResult {
	result := ApplyResult{
		PantryItems: []models.PantryItem{},
		FoodLogs:    []models.FoodLogEntry{},
		Failures:    []string{},
	}

	for i, cmd := range cmds {
		item, err := s.store.ApplyFoodCommand(ctx, cmd)
		if err != nil {
			s.logger.Warn("Failed to store food command", zap.String("name", cmd.Name), zap.Error(err))
			result.Failures = append(result.Failures, fmt.Sprintf("store command %d (%s): %v", i+1, cmd.Name, err))
			continue
		}
		result.PantryItems = append(result.PantryItems, item)
	}

	for i, cmd := range logCmds {
		entry, err := s.store.ApplyFoodLogCommand(ctx, cmd)
		if err != nil {
			s.logger.Warn("Failed to store log command", zap.Int("index", i), zap.Error(err))
			result.Failures = append(result.Failures, fmt.Sprintf("store log command %d: %v", i+1, err))
			continue
		}
		result.FoodLogs = append(result.FoodLogs, entry)
	}

	return result
}

func (s *PantryServer) handleGetPantry(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetPantryParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}

	items, err := s.store.ListPantry(ctx, params.GroupID, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve pantry: %w", err)
	}
	if items == nil {
		items = []*models.PantryItem{}
	}

	return s.createJSONResponse(items)
}

func (s *PantryServer) handleGetFoodLogs(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetFoodLogsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}

	entries, err := s.store.ListFoodLogs(ctx, params.GroupID, params.StartDate, params.EndDate, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve food logs: %w", err)
	}
	if entries == nil {
		entries = []*models.FoodLogEntry{}
	}

	return s.createJSONResponse(entries)
}
