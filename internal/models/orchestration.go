// internal/models/orchestration.go
package models

import (
	"time"
)

// Attachment references one image supplied with a chat message.
type Attachment struct {
	ID        string `json:"id"`
	URI       string `json:"uri,omitempty"`
	DebugHint string `json:"debugHint,omitempty"`
}

// ItemMetadata holds the numeric and unit hints a tool found for an item.
// Only keys present in the model output are set.
type ItemMetadata struct {
	Amount       *string           `json:"amount,omitempty"`
	Unit         *string           `json:"unit,omitempty"`
	Quantity     *string           `json:"quantity,omitempty"`
	ServingLabel *string           `json:"servingLabel,omitempty"`
	Nutrients    map[string]string `json:"nutrients,omitempty"`
	Nutrition    map[string]string `json:"nutrition,omitempty"`
	Macros       map[string]string `json:"macros,omitempty"`
	Calories     *string           `json:"calories,omitempty"`
	Protein      *string           `json:"protein,omitempty"`
	Fat          *string           `json:"fat,omitempty"`
	Carbs        *string           `json:"carbs,omitempty"`
	Notes        *string           `json:"notes,omitempty"`
}

type DetectedItem struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	Category   string        `json:"category,omitempty"`
	Brand      string        `json:"brand,omitempty"`
	Confidence *float64      `json:"confidence,omitempty"`
	Notes      string        `json:"notes,omitempty"`
	Metadata   *ItemMetadata `json:"metadata,omitempty"`
}

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Defaults fill gaps in generated commands.
type Defaults struct {
	GroupID   string `json:"groupId,omitempty"`
	GroupName string `json:"groupName,omitempty"`
	Location  string `json:"location,omitempty"`
}

// OrchestratorState is threaded through one orchestration run and discarded
// afterwards.
type OrchestratorState struct {
	Attachments      []Attachment              `json:"attachments"`
	DetectedItems    map[string][]DetectedItem `json:"detectedItems"`
	SourceOrder      []string                  `json:"sourceOrder"`
	Commands         []map[string]any          `json:"commands"`
	LogCommands      []FoodLogCommandPayload   `json:"logCommands"`
	ValidationErrors []string                  `json:"validationErrors"`
	Failures         []string                  `json:"failures"`
}

func NewOrchestratorState(attachments []Attachment) *OrchestratorState {
	return &OrchestratorState{
		Attachments:   attachments,
		DetectedItems: make(map[string][]DetectedItem),
	}
}

// AddDetected appends items under sourceID, remembering first-seen order.
func (s *OrchestratorState) AddDetected(sourceID string, items ...DetectedItem) {
	if _, ok := s.DetectedItems[sourceID]; !ok {
		s.SourceOrder = append(s.SourceOrder, sourceID)
		s.DetectedItems[sourceID] = []DetectedItem{}
	}
	s.DetectedItems[sourceID] = append(s.DetectedItems[sourceID], items...)
}

// AllDetected flattens detected items in source insertion order.
func (s *OrchestratorState) AllDetected() []DetectedItem {
	var all []DetectedItem
	for _, source := range s.SourceOrder {
		all = append(all, s.DetectedItems[source]...)
	}
	return all
}

type OrchestratorLogEntry struct {
	Step          string    `json:"step"`
	Tool          string    `json:"tool"`
	PromptPreview string    `json:"promptPreview,omitempty"`
	OutputPreview string    `json:"outputPreview,omitempty"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}

// ToolResult is the envelope every tool returns. A non-empty Error marks the
// step as failed without stopping the plan.
type ToolResult struct {
	Name   string `json:"name"`
	Output any    `json:"output"`
	Error  string `json:"error,omitempty"`
}

type JobType string

const (
	JobTypeLog JobType = "log"
	JobTypeAdd JobType = "add"
)

type JobResult struct {
	Summary              string                  `json:"summary"`
	JobType              JobType                 `json:"jobType"`
	Plan                 []string                `json:"plan"`
	State                *OrchestratorState      `json:"state"`
	Logs                 []OrchestratorLogEntry  `json:"logs"`
	GeneratedCommands    []FoodCommandPayload    `json:"generatedCommands"`
	GeneratedLogCommands []FoodLogCommandPayload `json:"generatedLogCommands,omitempty"`
	Failures             []string                `json:"failures"`
}
