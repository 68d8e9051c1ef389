// internal/orchestrator/logbuilder.go
package orchestrator

import (
	"sort"
	"strings"

	"mcp-pantry-assistant/internal/models"
)

// nutrientAliases maps metadata keys to NutrientSet keys. Order matters when
// two aliases of the same nutrient appear in one source: the later one wins.
var nutrientAliases = []struct {
	key    string
	target string
}{
	{"calories", "energy_kcal"},
	{"energy", "energy_kcal"},
	{"energy_kcal", "energy_kcal"},
	{"protein", "protein_g"},
	{"fat", "fat_g"},
	{"carbs", "carbs_g"},
	{"carbohydrate", "carbs_g"},
	{"carbohydrates", "carbs_g"},
	{"sugar", "sugar_g"},
	{"fiber", "fiber_g"},
	{"sodium", "sodium_mg"},
}

// BuildLogCommand turns a detected item into a manual food-log command without
// a model round trip.
func BuildLogCommand(item models.DetectedItem, defaults models.Defaults) models.FoodLogCommandPayload {
	meta := item.Metadata
	if meta == nil {
		meta = &models.ItemMetadata{}
	}

	serving := models.Serving{
		Label:       valueOr(meta.ServingLabel, "Serving 1"),
		Amount:      valueOr(meta.Amount, "1"),
		Unit:        valueOr(meta.Unit, "unit"),
		NutrientSet: mapNutrients(meta).WithDefaults(),
	}

	return models.FoodLogCommandPayload{
		Mode:      models.LogModeManual,
		Manual:    &models.ManualFoodEntry{Name: item.Label, Serving: serving},
		Quantity:  valueOr(meta.Quantity, "1"),
		Notes:     item.Notes,
		GroupID:   defaults.GroupID,
		GroupName: defaults.GroupName,
	}
}

// mapNutrients merges nutrients, nutrition, macros and then the flat keys;
// later sources overwrite earlier ones.
func mapNutrients(meta *models.ItemMetadata) models.NutrientSet {
	flat := map[string]string{}
	for key, ptr := range map[string]*string{
		"calories": meta.Calories,
		"protein":  meta.Protein,
		"fat":      meta.Fat,
		"carbs":    meta.Carbs,
	} {
		if ptr != nil {
			flat[key] = *ptr
		}
	}

	var set models.NutrientSet
	for _, source := range []map[string]string{meta.Nutrients, meta.Nutrition, meta.Macros, flat} {
		lowered := lowerKeys(source)
		for _, alias := range nutrientAliases {
			if v, ok := lowered[alias.key]; ok && v != "" {
				*set.Field(alias.target) = v
			}
		}
	}
	return set
}

// lowerKeys folds keys to lower case. When keys collide, a key that is already
// lower case wins, then the first in sorted order. Empty values are dropped.
func lowerKeys(source map[string]string) map[string]string {
	keys := make([]string, 0, len(source))
	for k := range source {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lowered := make(map[string]string, len(source))
	exact := make(map[string]bool, len(source))
	for _, k := range keys {
		v := source[k]
		if v == "" {
			continue
		}
		norm := strings.ToLower(strings.TrimSpace(k))
		isExact := norm == k
		if _, seen := lowered[norm]; seen && (exact[norm] || !isExact) {
			continue
		}
		lowered[norm] = v
		exact[norm] = isExact
	}
	return lowered
}

func valueOr(ptr *string, fallback string) string {
	if ptr == nil || strings.TrimSpace(*ptr) == "" {
		return fallback
	}
	return *ptr
}
