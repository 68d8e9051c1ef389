// internal/models/meal.go
package models

import (
	"time"
)

type LogMode string

const (
	LogModeExisting LogMode = "existing"
	LogModeManual   LogMode = "manual"
)

// ManualFoodEntry carries an inline food for LogModeManual. The serving
// holds the nutrients for one unit of Quantity.
type ManualFoodEntry struct {
	Name    string  `json:"name"`
	Serving Serving `json:"serving"`
}

// FoodLogCommandPayload is the "log a meal" contract.
type FoodLogCommandPayload struct {
	Mode      LogMode          `json:"mode"`
	FoodID    string           `json:"foodId,omitempty"`
	ServingID string           `json:"servingId,omitempty"`
	Manual    *ManualFoodEntry `json:"manual,omitempty"`
	Quantity  string           `json:"quantity"`
	Date      string           `json:"date,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	GroupID   string           `json:"groupId,omitempty"`
	GroupName string           `json:"groupName,omitempty"`
}

// FoodLogEntry is a stored meal log row. Nutrients are already scaled by
// Quantity.
type FoodLogEntry struct {
	ID           string      `json:"id"`
	Mode         LogMode     `json:"mode"`
	FoodID       string      `json:"food_id,omitempty"`
	ServingID    string      `json:"serving_id,omitempty"`
	Name         string      `json:"name"`
	ServingLabel string      `json:"serving_label"`
	Amount       string      `json:"amount"`
	Unit         string      `json:"unit"`
	Quantity     string      `json:"quantity"`
	Nutrients    NutrientSet `json:"nutrients"`
	Notes        string      `json:"notes,omitempty"`
	GroupID      string      `json:"group_id,omitempty"`
	LoggedAt     time.Time   `json:"logged_at"`
	CreatedAt    time.Time   `json:"created_at"`
}
