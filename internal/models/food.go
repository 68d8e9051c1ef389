// internal/models/food.go
package models

import (
	"time"
)

// NutrientSet is the fixed nutrient panel carried by every serving. Values are
// decimal strings so model output ("105", "1.5") survives untouched.
type NutrientSet struct {
	EnergyKcal    string `json:"energy_kcal"`
	ProteinG      string `json:"protein_g"`
	FatG          string `json:"fat_g"`
	SaturatedFatG string `json:"saturated_fat_g"`
	CarbsG        string `json:"carbs_g"`
	SugarG        string `json:"sugar_g"`
	FiberG        string `json:"fiber_g"`
	CholesterolMg string `json:"cholesterol_mg"`
	SodiumMg      string `json:"sodium_mg"`
}

// NutrientKeys lists the JSON keys of NutrientSet in panel order.
var NutrientKeys = []string{
	"energy_kcal",
	"protein_g",
	"fat_g",
	"saturated_fat_g",
	"carbs_g",
	"sugar_g",
	"fiber_g",
	"cholesterol_mg",
	"sodium_mg",
}

// Field returns a pointer to the field named by its JSON key, or nil.
func (n *NutrientSet) Field(key string) *string {
	switch key {
	case "energy_kcal":
		return &n.EnergyKcal
	case "protein_g":
		return &n.ProteinG
	case "fat_g":
		return &n.FatG
	case "saturated_fat_g":
		return &n.SaturatedFatG
	case "carbs_g":
		return &n.CarbsG
	case "sugar_g":
		return &n.SugarG
	case "fiber_g":
		return &n.FiberG
	case "cholesterol_mg":
		return &n.CholesterolMg
	case "sodium_mg":
		return &n.SodiumMg
	}
	return nil
}

// WithDefaults returns a copy with every empty field set to "0".
func (n NutrientSet) WithDefaults() NutrientSet {
	for _, key := range NutrientKeys {
		if f := n.Field(key); *f == "" {
			*f = "0"
		}
	}
	return n
}

type Serving struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
	NutrientSet
}

// FoodCommandPayload is the "add food to pantry" contract.
type FoodCommandPayload struct {
	Name      string    `json:"name"`
	GroupID   string    `json:"groupId"`
	GroupName string    `json:"groupName,omitempty"`
	BestBy    string    `json:"bestBy,omitempty"`
	Location  string    `json:"location,omitempty"`
	Barcode   string    `json:"barcode,omitempty"`
	Cost      string    `json:"cost,omitempty"`
	Image     string    `json:"image,omitempty"`
	Servings  []Serving `json:"servings"`
}

// PantryItem is a FoodCommandPayload after it has been stored.
type PantryItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	GroupID   string    `json:"group_id"`
	GroupName string    `json:"group_name,omitempty"`
	BestBy    string    `json:"best_by,omitempty"`
	Location  string    `json:"location,omitempty"`
	Barcode   string    `json:"barcode,omitempty"`
	Cost      string    `json:"cost,omitempty"`
	Image     string    `json:"image,omitempty"`
	Servings  []Serving `json:"servings"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
