// internal/orchestrator/prompts.go
package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"mcp-pantry-assistant/internal/models"
)

const historyTurns = 6

const visionSystemPrompt = `You are a pantry vision assistant. You look at one photo of food, groceries or a pantry shelf and list every distinct food item you can identify.

Respond with ONLY a JSON array. Each element:
{"id": "short-id", "label": "item name", "category": "produce|dairy|meat|seasoning|grain|snack|beverage|other", "brand": "brand if visible", "confidence": 0.0-1.0, "amount": number, "unit": "g|ml|unit|tsp|...", "notes": "anything useful"}

Omit keys you cannot determine. Never wrap the array in prose.`

const intentSystemPrompt = `You are a nutrition and pantry assistant. Extract the foods mentioned in the user's message.

Respond with ONLY a JSON array. Each element:
{"label": "food name", "category": "food category", "brand": "brand if named", "amount": number per serving, "unit": "serving unit", "quantity": number of servings, "nutrients": {"calories": number, "protein": grams, "fat": grams, "carbs": grams, "sugar": grams, "fiber": grams, "sodium": milligrams}, "notes": "preparation or context"}

Estimate nutrients per serving when the user gives none. Omit keys you cannot determine. Return [] when no food is mentioned.`

const commandBuilderSystemPrompt = `You convert one detected food item into an /add food command for a pantry database.

Respond with ONLY a JSON object with this shape:
{"name": "food name", "groupId": "group id", "groupName": "group name", "location": "pantry|fridge|freezer|...", "bestBy": "YYYY-MM-DD", "barcode": "", "cost": "", "image": "",
 "servings": [{"id": "serving-1", "label": "1 tbsp", "amount": "1", "unit": "tbsp",
   "energy_kcal": "0", "protein_g": "0", "fat_g": "0", "saturated_fat_g": "0", "carbs_g": "0", "sugar_g": "0", "fiber_g": "0", "cholesterol_mg": "0", "sodium_mg": "0"}]}

Rules:
- At least one serving.
- Every nutrient value is a decimal string; use "0" when unknown.
- Keep the groupId and location you are given.`

const jsonFixerSystemPrompt = `You repair JSON objects so they satisfy a schema. You receive the original object and a list of validation errors.

Respond with ONLY the corrected JSON object. Keep every valid field unchanged, fix only what the errors describe, and never add commentary.`

// AddFoodContract documents the /add food JSON contract for chat models that
// emit commands directly. It is informational; nothing here parses it.
const AddFoodContract = `/add food {"name": string, "groupId": string, "location"?: string, "bestBy"?: "YYYY-MM-DD", "barcode"?: string, "cost"?: string, "servings": [{"label": string, "amount": string, "unit": string, "energy_kcal": string, "protein_g": string, "fat_g": string, "saturated_fat_g": string, "carbs_g": string, "sugar_g": string, "fiber_g": string, "cholesterol_mg": string, "sodium_mg": string}]}`

// LogFoodContract is the /log food counterpart of AddFoodContract.
const LogFoodContract = `/log food {"mode": "existing", "foodId": string, "servingId": string, "quantity": string, "date"?: "YYYY-MM-DD", "notes"?: string} or {"mode": "manual", "manual": {"name": string, "serving": {"label": string, "amount": string, "unit": string, "energy_kcal": string, ...}}, "quantity": string}`

func visionUserPrompt(att models.Attachment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Attachment id: %s\n", att.ID)
	if att.URI != "" {
		fmt.Fprintf(&sb, "Image: %s\n", att.URI)
	}
	if att.DebugHint != "" {
		fmt.Fprintf(&sb, "Hint: %s\n", att.DebugHint)
	}
	sb.WriteString("List the food items in this image as a JSON array.")
	return sb.String()
}

func intentUserPrompt(text string, history []models.ChatTurn) string {
	var sb strings.Builder
	if len(history) > 0 {
		start := 0
		if len(history) > historyTurns {
			start = len(history) - historyTurns
		}
		sb.WriteString("Recent conversation:\n")
		for _, turn := range history[start:] {
			fmt.Fprintf(&sb, "%s: %s\n", turn.Role, strings.TrimSpace(turn.Content))
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Message: %q\n", text)
	sb.WriteString("Return the foods as a JSON array.")
	return sb.String()
}

func commandBuilderUserPrompt(item models.DetectedItem, defaults models.Defaults) string {
	itemJSON, _ := json.Marshal(item)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Detected item: %s\n", itemJSON)
	if defaults.GroupID != "" {
		fmt.Fprintf(&sb, "groupId: %s\n", defaults.GroupID)
	}
	if defaults.GroupName != "" {
		fmt.Fprintf(&sb, "groupName: %s\n", defaults.GroupName)
	}
	if defaults.Location != "" {
		fmt.Fprintf(&sb, "location: %s\n", defaults.Location)
	}
	sb.WriteString("Build the /add food JSON object.")
	return sb.String()
}

func jsonFixerUserPrompt(original any, errs []string) string {
	originalJSON, err := json.MarshalIndent(original, "", "  ")
	if err != nil {
		originalJSON = []byte(fmt.Sprintf("%v", original))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original JSON:\n%s\n\nValidation errors:\n", originalJSON)
	for _, e := range errs {
		fmt.Fprintf(&sb, "- %s\n", e)
	}
	sb.WriteString("Return the repaired JSON object.")
	return sb.String()
}
