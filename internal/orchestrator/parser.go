// internal/orchestrator/parser.go
package orchestrator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"mcp-pantry-assistant/internal/models"
)

// ParseDetectedItems turns model output that should contain a JSON array of
// items into normalized DetectedItems. Anything unparseable yields an empty
// list; callers apply their own fallback.
func ParseDetectedItems(raw, sourceID string) []models.DetectedItem {
	arr, ok := extractArray(raw)
	if !ok {
		return []models.DetectedItem{}
	}

	items := []models.DetectedItem{}
	for index, entry := range arr.Array() {
		if !entry.IsObject() {
			continue
		}
		if item, ok := normalizeEntry(entry, sourceID, index); ok {
			items = append(items, item)
		}
	}
	return items
}

func normalizeEntry(entry gjson.Result, sourceID string, index int) (models.DetectedItem, bool) {
	label, ok := scalarString(entry.Get("label"))
	if !ok {
		return models.DetectedItem{}, false
	}

	item := models.DetectedItem{Label: label}
	if id, ok := scalarString(entry.Get("id")); ok {
		item.ID = id
	} else {
		item.ID = fmt.Sprintf("%s-%d", sourceID, index)
	}

	if category := entry.Get("category"); category.Type == gjson.String {
		item.Category = strings.TrimSpace(category.Str)
	}
	if brand := entry.Get("brand"); brand.Type == gjson.String {
		item.Brand = strings.TrimSpace(brand.Str)
	}
	if notes := entry.Get("notes"); notes.Type == gjson.String {
		item.Notes = strings.TrimSpace(notes.Str)
	}
	if confidence, ok := parseConfidence(entry.Get("confidence")); ok {
		item.Confidence = &confidence
	}

	meta := &models.ItemMetadata{}
	found := false
	// Nested metadata first so re-parsing serialized items is stable; flat
	// keys on the entry win.
	if nested := entry.Get("metadata"); nested.IsObject() {
		found = foldMetadata(meta, nested) || found
	}
	found = foldMetadata(meta, entry) || found
	if found {
		item.Metadata = meta
	}

	return item, true
}

func parseConfidence(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		return v, err == nil
	}
	return 0, false
}

// foldMetadata copies the known nutrition keys present on obj into meta.
func foldMetadata(meta *models.ItemMetadata, obj gjson.Result) bool {
	found := false
	scalars := []struct {
		key string
		dst **string
	}{
		{"amount", &meta.Amount},
		{"unit", &meta.Unit},
		{"quantity", &meta.Quantity},
		{"servingLabel", &meta.ServingLabel},
		{"calories", &meta.Calories},
		{"protein", &meta.Protein},
		{"fat", &meta.Fat},
		{"carbs", &meta.Carbs},
		{"notes", &meta.Notes},
	}
	for _, s := range scalars {
		if v, ok := scalarString(obj.Get(s.key)); ok {
			value := v
			*s.dst = &value
			found = true
		}
	}

	maps := []struct {
		key string
		dst *map[string]string
	}{
		{"nutrients", &meta.Nutrients},
		{"nutrition", &meta.Nutrition},
		{"macros", &meta.Macros},
	}
	for _, m := range maps {
		if values := scalarMap(obj.Get(m.key)); len(values) > 0 {
			*m.dst = values
			found = true
		}
	}
	return found
}

func scalarMap(r gjson.Result) map[string]string {
	if !r.IsObject() {
		return nil
	}
	values := map[string]string{}
	r.ForEach(func(key, value gjson.Result) bool {
		name := strings.TrimSpace(key.String())
		if v, ok := scalarString(value); ok && name != "" {
			values[name] = v
		}
		return true
	})
	return values
}
