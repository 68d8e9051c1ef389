package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-pantry-assistant/internal/models"
)

func strPtr(s string) *string { return &s }

func TestBuildLogCommandDefaults(t *testing.T) {
	cmd := BuildLogCommand(models.DetectedItem{ID: "message-0", Label: "Toast", Notes: "buttered"}, models.Defaults{GroupID: "g1", GroupName: "Home"})

	assert.Equal(t, models.LogModeManual, cmd.Mode)
	assert.Equal(t, "1", cmd.Quantity)
	assert.Equal(t, "buttered", cmd.Notes)
	assert.Equal(t, "g1", cmd.GroupID)
	assert.Equal(t, "Home", cmd.GroupName)
	require.NotNil(t, cmd.Manual)
	assert.Equal(t, "Toast", cmd.Manual.Name)
	assert.Equal(t, "Serving 1", cmd.Manual.Serving.Label)
	assert.Equal(t, "1", cmd.Manual.Serving.Amount)
	assert.Equal(t, "unit", cmd.Manual.Serving.Unit)
	for _, key := range models.NutrientKeys {
		assert.Equal(t, "0", *cmd.Manual.Serving.NutrientSet.Field(key), key)
	}
}

func TestBuildLogCommandUsesMetadata(t *testing.T) {
	item := models.DetectedItem{
		Label: "Banana",
		Metadata: &models.ItemMetadata{
			Amount:       strPtr("118"),
			Unit:         strPtr("g"),
			Quantity:     strPtr("2"),
			ServingLabel: strPtr("1 medium"),
			Calories:     strPtr("105"),
		},
	}

	cmd := BuildLogCommand(item, models.Defaults{})

	assert.Equal(t, "2", cmd.Quantity)
	serving := cmd.Manual.Serving
	assert.Equal(t, "1 medium", serving.Label)
	assert.Equal(t, "118", serving.Amount)
	assert.Equal(t, "g", serving.Unit)
	assert.Equal(t, "105", serving.EnergyKcal)
	assert.Equal(t, "0", serving.ProteinG)
}

func TestBuildLogCommandNutrientPrecedence(t *testing.T) {
	item := models.DetectedItem{
		Label: "Bar",
		Metadata: &models.ItemMetadata{
			Nutrients: map[string]string{"calories": "100", "protein": "3", "Sugar": "12"},
			Nutrition: map[string]string{"energy_kcal": "110", "fiber": "4"},
			Macros:    map[string]string{"protein": "5", "carbohydrates": "30"},
			Fat:       strPtr("7"),
			Calories:  strPtr("120"),
		},
	}

	serving := BuildLogCommand(item, models.Defaults{}).Manual.Serving

	assert.Equal(t, "120", serving.EnergyKcal)
	assert.Equal(t, "5", serving.ProteinG)
	assert.Equal(t, "7", serving.FatG)
	assert.Equal(t, "30", serving.CarbsG)
	assert.Equal(t, "12", serving.SugarG)
	assert.Equal(t, "4", serving.FiberG)
	assert.Equal(t, "0", serving.SodiumMg)
}

func TestMapNutrientsAliasOrderWithinSource(t *testing.T) {
	set := mapNutrients(&models.ItemMetadata{
		Nutrients: map[string]string{"calories": "100", "energy_kcal": "90", "carbs": "10", "carbohydrate": "11"},
	})
	assert.Equal(t, "90", set.EnergyKcal)
	assert.Equal(t, "11", set.CarbsG)
	assert.Empty(t, set.ProteinG)
}

func TestMapNutrientsCaseCollision(t *testing.T) {
	meta := &models.ItemMetadata{
		Nutrients: map[string]string{"Calories": "100", "calories": "200", "PROTEIN": "5", "Protein": "6", "Fat": ""},
	}

	for i := 0; i < 50; i++ {
		set := mapNutrients(meta)
		assert.Equal(t, "200", set.EnergyKcal)
		assert.Equal(t, "5", set.ProteinG)
		assert.Empty(t, set.FatG)
	}
}
