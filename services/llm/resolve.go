package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResolveOutputText flattens a provider's polymorphic output field into
// display text. Shapes are tried in a fixed priority order:
//
//  1. plain string
//  2. object with a string "value" field
//  3. object tagged with "format" but no "value" — an empty placeholder
//  4. anything else — best-effort stringification
//
// The second return is false when there is nothing worth displaying:
// a nil output, a format-only placeholder, or resolved text that is
// empty or whitespace-only.
func ResolveOutputText(output any) (string, bool) {
	if output == nil {
		return "", false
	}

	text := ""
	switch v := output.(type) {
	case string:
		text = v
	case map[string]any:
		if value, ok := v["value"].(string); ok {
			text = value
		} else if _, tagged := v["format"]; tagged {
			// Placeholder shape: the provider declared a format but
			// produced no value.
			return "", false
		} else {
			text = stringify(v)
		}
	default:
		text = stringify(v)
	}

	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

func stringify(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
