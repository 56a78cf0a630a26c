// Package template substitutes {{dot.path}} placeholders from a run context.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Interpolate replaces every {{path}} whose path resolves in data. Unresolved
// placeholders are kept verbatim and substituted values are never re-scanned.
func Interpolate(text string, data map[string]any) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	return placeholder.ReplaceAllStringFunc(text, func(token string) string {
		path := placeholder.FindStringSubmatch(token)[1]

		value, ok := Lookup(data, path)
		if !ok || value == nil {
			return token
		}

		return Stringify(value)
	})
}

// InterpolateMap interpolates every value of a string map into a new map.
func InterpolateMap(values map[string]string, data map[string]any) map[string]string {
	if values == nil {
		return nil
	}

	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = Interpolate(v, data)
	}

	return out
}

// Lookup walks a dotted path through nested maps. Numeric segments index slices.
func Lookup(data map[string]any, path string) (any, bool) {
	var current any = data

	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = next
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}

			current = node[index]
		default:
			return nil, false
		}
	}

	return current, true
}

// Stringify renders a resolved value the way it is written into messages.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(raw)
	}
}
