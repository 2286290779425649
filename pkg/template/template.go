// Package template renders executor parameters against the running
// instance: lead fields and the outputs of earlier tasks are available as
// template data, so later tasks can reference what came before.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

// NeedsRendering reports whether the input contains template expressions.
func NeedsRendering(input string) bool {
	return strings.Contains(input, "{{")
}

// Render evaluates a single template string. The rendered result is coerced
// back into JSON, number, or boolean when it parses as one, so templated
// parameters keep their natural types.
func Render(input string, data map[string]any) (any, error) {
	tmpl, err := template.New("parameter").Option("missingkey=zero").Parse(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", input, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", input, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any
		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderParameters walks an executor parameter map and renders every string
// value that contains template expressions. Nested maps and slices are
// walked recursively; non-string values pass through untouched.
func RenderParameters(parameters, data map[string]any) (map[string]any, error) {
	if len(parameters) == 0 {
		return parameters, nil
	}

	rendered := make(map[string]any, len(parameters))

	for key, value := range parameters {
		result, err := renderValue(value, data)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", key, err)
		}

		rendered[key] = result
	}

	return rendered, nil
}

func renderValue(value any, data map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		if !NeedsRendering(v) {
			return v, nil
		}

		return Render(v, data)
	case map[string]any:
		return RenderParameters(v, data)
	case []any:
		rendered := make([]any, len(v))

		for i, item := range v {
			result, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}

			rendered[i] = result
		}

		return rendered, nil
	default:
		return value, nil
	}
}
