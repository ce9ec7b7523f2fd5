package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ilyasfares/sakina/backend/internal/model/suggestion"
)

// rawSuggestion is the shape we ask models to emit. Anything beyond these
// fields is ignored; anything missing is repaired or dropped.
type rawSuggestion struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Icon    string `json:"icon"`
}

var defaultIconByType = map[string]string{
	suggestion.TypeContinuation: "pen",
	suggestion.TypeReflection:   "mirror",
	suggestion.TypeSupport:      "heart",
	suggestion.TypeCoping:       "anchor",
	suggestion.TypeExploration:  "compass",
	suggestion.TypeGeneral:      "spark",
}

// parseSuggestions extracts the JSON array from free-form model output and
// normalizes it into at most three valid suggestions. Models wrap JSON in
// prose or code fences often enough that we never trust the raw shape.
func parseSuggestions(content string) ([]suggestion.Suggestion, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json array in model output")
	}

	var raw []rawSuggestion
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("malformed suggestion array: %w", err)
	}

	out := make([]suggestion.Suggestion, 0, 3)
	for _, item := range raw {
		text := strings.TrimSpace(item.Content)
		if text == "" {
			continue
		}
		if len(text) > suggestion.MaxContentLength {
			text = truncate(text, suggestion.MaxContentLength)
		}

		kind := strings.ToLower(strings.TrimSpace(item.Type))
		if !suggestion.ValidType(kind) {
			kind = suggestion.TypeGeneral
		}

		icon := strings.TrimSpace(item.Icon)
		if icon == "" {
			icon = defaultIconByType[kind]
		}

		out = append(out, suggestion.Suggestion{
			ID:      uuid.NewString(),
			Type:    kind,
			Content: text,
			Icon:    icon,
		})
		if len(out) == 3 {
			break
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("model output contained no usable suggestions")
	}
	return out, nil
}

// truncate cuts at a rune boundary so Arabic and accented text stays valid.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	for len(string(runes)) > max {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}
