// internal/orchestrator/schema.go
package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"mcp-pantry-assistant/internal/models"
)

// ValidationIssue is one schema violation.
type ValidationIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

var (
	foodCommandSchema = newFoodCommandSchema()
	missingPropertyRe = regexp.MustCompile(`property "([^"]+)" is missing`)
)

func newFoodCommandSchema() *openapi3.Schema {
	decimal := func() *openapi3.Schema {
		return openapi3.NewStringSchema().WithPattern(`^-?[0-9]+(\.[0-9]+)?$`)
	}
	nonEmpty := func() *openapi3.Schema {
		return openapi3.NewStringSchema().WithMinLength(1)
	}

	serving := openapi3.NewObjectSchema().
		WithProperty("id", nonEmpty()).
		WithProperty("label", nonEmpty()).
		WithProperty("amount", nonEmpty()).
		WithProperty("unit", nonEmpty())
	for _, key := range models.NutrientKeys {
		serving.WithProperty(key, decimal())
	}
	serving.Required = append([]string{"id", "label", "amount", "unit"}, models.NutrientKeys...)

	command := openapi3.NewObjectSchema().
		WithProperty("name", nonEmpty()).
		WithProperty("groupId", openapi3.NewStringSchema().WithPattern(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)).
		WithProperty("servings", openapi3.NewArraySchema().WithItems(serving).WithMinItems(1))
	command.Required = []string{"name", "groupId", "servings"}
	return command
}

// ValidateFoodCommand checks a candidate against the add-food schema. The
// candidate is not modified: on success a normalized copy is returned with
// numbers stringified and missing nutrients set to "0".
func ValidateFoodCommand(candidate any) (models.FoodCommandPayload, []ValidationIssue) {
	normalized, ok := normalizeCommand(candidate)
	if !ok {
		return models.FoodCommandPayload{}, []ValidationIssue{{Path: "$", Message: "expected a JSON object"}}
	}

	if err := foodCommandSchema.VisitJSON(normalized, openapi3.MultiErrors()); err != nil {
		return models.FoodCommandPayload{}, collectIssues(err)
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return models.FoodCommandPayload{}, []ValidationIssue{{Path: "$", Message: err.Error()}}
	}
	var payload models.FoodCommandPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return models.FoodCommandPayload{}, []ValidationIssue{{Path: "$", Message: err.Error()}}
	}
	return payload, nil
}

// FormatIssues renders issues as "path: message" strings.
func FormatIssues(issues []ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.String())
	}
	return out
}

// normalizeCommand deep-copies candidate and applies the coercions the
// schema expects.
func normalizeCommand(candidate any) (map[string]any, bool) {
	if candidate == nil {
		return nil, false
	}
	data, err := json.Marshal(candidate)
	if err != nil {
		return nil, false
	}
	var cmd map[string]any
	if err := json.Unmarshal(data, &cmd); err != nil || cmd == nil {
		return nil, false
	}

	for _, key := range []string{"name", "groupId", "groupName", "bestBy", "location", "barcode", "cost", "image"} {
		if v, ok := cmd[key]; ok {
			cmd[key] = coerceString(v)
		}
	}
	if name, ok := cmd["name"].(string); ok {
		cmd["name"] = strings.TrimSpace(name)
	}

	servings, ok := cmd["servings"].([]any)
	if !ok {
		return cmd, true
	}
	for i, raw := range servings {
		serving, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		// Some models nest the panel under "nutrients".
		if nested, ok := serving["nutrients"].(map[string]any); ok {
			for _, key := range models.NutrientKeys {
				if _, present := serving[key]; !present {
					if v, ok := nested[key]; ok {
						serving[key] = v
					}
				}
			}
			delete(serving, "nutrients")
		}
		if _, ok := serving["id"]; !ok {
			serving["id"] = fmt.Sprintf("serving-%d", i+1)
		}
		if _, ok := serving["label"]; !ok {
			serving["label"] = fmt.Sprintf("Serving %d", i+1)
		}
		for _, key := range []string{"id", "label", "amount", "unit"} {
			if v, ok := serving[key]; ok {
				serving[key] = coerceString(v)
			}
		}
		for _, key := range models.NutrientKeys {
			v, ok := serving[key]
			if !ok || v == nil || v == "" {
				serving[key] = "0"
				continue
			}
			serving[key] = coerceString(v)
		}
		servings[i] = serving
	}
	return cmd, true
}

// coerceString stringifies numbers and trims strings; other values pass
// through so the schema can reject them.
func coerceString(v any) any {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case string:
		return strings.TrimSpace(t)
	default:
		return v
	}
}

func collectIssues(err error) []ValidationIssue {
	var issues []ValidationIssue
	var walk func(error)
	walk = func(err error) {
		var multi openapi3.MultiError
		if errors.As(err, &multi) {
			for _, inner := range multi {
				walk(inner)
			}
			return
		}
		var schemaErr *openapi3.SchemaError
		if errors.As(err, &schemaErr) {
			path := schemaErr.JSONPointer()
			reason := schemaErr.Reason
			if m := missingPropertyRe.FindStringSubmatch(reason); m != nil {
				if len(path) == 0 || path[len(path)-1] != m[1] {
					path = append(path, m[1])
				}
				reason = "is required"
			}
			issues = append(issues, ValidationIssue{Path: formatPath(path), Message: reason})
			return
		}
		issues = append(issues, ValidationIssue{Path: "$", Message: err.Error()})
	}
	walk(err)
	return issues
}

func formatPath(parts []string) string {
	if len(parts) == 0 {
		return "$"
	}
	return strings.Join(parts, ".")
}
