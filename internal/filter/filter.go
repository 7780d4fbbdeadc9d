// Package filter applies --jq expressions to command output.
package filter

import (
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/youtell/visrec-cli/internal/json"
)

// wrapperKeys are the envelope fields that hold the list in service
// responses: {"images": [...]} and {"classifiers": [...]}.
var wrapperKeys = []string{"images", "classifiers"}

// NormalizeExpression fixes shell-escaped operators in jq expressions.
// Zsh escapes ! to \! even in single quotes, breaking operators like !=.
func NormalizeExpression(expr string) string {
	return strings.ReplaceAll(expr, `\!`, `!`)
}

// Apply applies a jq expression to data. An empty expression returns data
// unchanged. A single result is returned bare; several come back as a slice.
func Apply(data any, expression string) (any, error) {
	if expression == "" {
		return data, nil
	}

	expression = NormalizeExpression(expression)
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	results, err := runQuery(query, data)
	if err != nil {
		if items, ok := envelopeFallbackData(data, expression, err); ok {
			if fallbackResults, fallbackErr := runQuery(query, items); fallbackErr == nil {
				results, err = fallbackResults, nil
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return collapseQueryResults(results), nil
}

func runQuery(query *gojq.Query, data any) ([]any, error) {
	iter := query.Run(data)

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}

func collapseQueryResults(results []any) any {
	if len(results) == 1 {
		return results[0]
	}
	return results
}

// envelopeFallbackData lets `.[] | ...` run against the list inside a
// response envelope when the query failed on the envelope object itself.
func envelopeFallbackData(data any, expression string, runErr error) (any, bool) {
	if runErr == nil || !looksLikeRootArrayQuery(expression) {
		return nil, false
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range wrapperKeys {
		if items, ok := m[key].([]any); ok {
			return items, true
		}
	}
	return nil, false
}

func looksLikeRootArrayQuery(expression string) bool {
	expr := strings.TrimSpace(expression)
	return strings.HasPrefix(expr, ".[]") || strings.HasPrefix(expr, "[.[]") || strings.HasPrefix(expr, "(.[]")
}

// ApplyFromJSON applies a jq expression to JSON bytes and returns the
// result as a Go value for the caller to format.
func ApplyFromJSON(jsonData []byte, expression string) (any, error) {
	var data any
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return Apply(data, expression)
}

// ApplyToJSON applies a jq expression to JSON bytes and returns the
// pretty-printed result.
func ApplyToJSON(jsonData []byte, expression string) ([]byte, error) {
	if expression == "" {
		return jsonData, nil
	}
	result, err := ApplyFromJSON(jsonData, expression)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(result, "", "  ")
}
