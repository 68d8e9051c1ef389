// internal/orchestrator/intent.go
package orchestrator

import (
	"regexp"

	"mcp-pantry-assistant/internal/models"
)

var (
	logKeywords = regexp.MustCompile(`(?i)\b(log|logs|logged|logging|ate|eat|eats|eating|eaten|drink|drinks|drank|drinking|record|recorded|recording|track|tracked|tracking)\b`)
	addKeywords = regexp.MustCompile(`(?i)\b(add|adds|added|adding|restock|restocked|restocking|stock|stocked|stocking|pantry|inventory|store|stored|storing)\b`)
)

// ClassifyIntent decides between logging a meal and adding to the pantry.
// Attachments always mean "add". When both or neither keyword family
// matches, a log keyword wins and otherwise the answer is "add".
func ClassifyIntent(text string, hasAttachments bool) models.JobType {
	if hasAttachments {
		return models.JobTypeAdd
	}

	logMatch := logKeywords.MatchString(text)
	addMatch := addKeywords.MatchString(text)
	switch {
	case logMatch && !addMatch:
		return models.JobTypeLog
	case addMatch && !logMatch:
		return models.JobTypeAdd
	case logMatch:
		return models.JobTypeLog
	default:
		return models.JobTypeAdd
	}
}

// SelectPlan returns the tool sequence for a job.
func SelectPlan(jobType models.JobType, hasAttachments bool) []ToolName {
	switch {
	case hasAttachments:
		return []ToolName{ToolVision, ToolCommandBuilder, ToolJSONFixer}
	case jobType == models.JobTypeLog:
		return []ToolName{ToolIntentParser, StepLogBuilder}
	default:
		return []ToolName{ToolIntentParser, ToolCommandBuilder, ToolJSONFixer}
	}
}
