// internal/orchestrator/extract.go
package orchestrator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const previewLimit = 400

var codeFencePattern = regexp.MustCompile("```[A-Za-z0-9_-]*")

// stripCodeFences removes markdown fence markers, keeping their contents.
func stripCodeFences(text string) string {
	return strings.TrimSpace(codeFencePattern.ReplaceAllString(text, ""))
}

// sliceBetween returns text from the first open byte to the last close byte.
func sliceBetween(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// extractArray finds the JSON array embedded in model output.
func extractArray(raw string) (gjson.Result, bool) {
	candidate, ok := sliceBetween(stripCodeFences(raw), '[', ']')
	if !ok || !gjson.Valid(candidate) {
		return gjson.Result{}, false
	}
	result := gjson.Parse(candidate)
	if !result.IsArray() {
		return gjson.Result{}, false
	}
	return result, true
}

// extractObject finds the JSON object embedded in model output.
func extractObject(raw string) (map[string]any, bool) {
	candidate, ok := sliceBetween(stripCodeFences(raw), '{', '}')
	if !ok || !gjson.Valid(candidate) {
		return nil, false
	}
	obj, ok := gjson.Parse(candidate).Value().(map[string]interface{})
	if !ok {
		return nil, false
	}
	return obj, true
}

// scalarString reads a string or number as trimmed text.
func scalarString(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		return s, s != ""
	case gjson.Number:
		return strings.TrimSpace(r.Raw), true
	default:
		return "", false
	}
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= previewLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLimit]) + "…"
}
