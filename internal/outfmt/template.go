package outfmt

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/template"

	"github.com/youtell/visrec-cli/internal/json"
)

type templateKey struct{}

// WithTemplate adds a template string to the context
func WithTemplate(ctx context.Context, tmpl string) context.Context {
	return context.WithValue(ctx, templateKey{}, tmpl)
}

// GetTemplate retrieves the template string from context
func GetTemplate(ctx context.Context) string {
	if tmpl, ok := ctx.Value(templateKey{}).(string); ok {
		return tmpl
	}
	return ""
}

// templateFuncs are available to --template. Values arrive in generic JSON
// form, so numbers are float64.
var templateFuncs = template.FuncMap{
	"json": func(val any) (string, error) {
		data, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	},
	"score": func(val any) string {
		f, ok := val.(float64)
		if !ok {
			return "-"
		}
		return fmt.Sprintf("%.3f", f)
	},
	"percent": func(val any) string {
		f, ok := val.(float64)
		if !ok {
			return "-"
		}
		return fmt.Sprintf("%.1f%%", f*100)
	},
	// pluck collects one string field from a list of objects, e.g.
	// {{pluck .classes "class" | join ", "}}.
	"pluck": func(list []any, key string) []string {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				if s, ok := m[key].(string); ok {
					out = append(out, s)
				}
			}
		}
		return out
	},
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
}

// WriteTemplate renders data using a Go text/template string
func WriteTemplate(w io.Writer, v any, tmpl string) error {
	t, err := template.New("output").Funcs(templateFuncs).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return formatTemplateError("invalid template", err)
	}
	if err := t.Execute(w, v); err != nil {
		return formatTemplateError("template execution error", err)
	}
	return nil
}

var templateLocationPattern = regexp.MustCompile(`:(\d+):(\d+):`)

func formatTemplateError(kind string, err error) error {
	msg := err.Error()
	if matches := templateLocationPattern.FindStringSubmatch(msg); len(matches) == 3 {
		return fmt.Errorf("%s at line %s, column %s: %s", kind, matches[1], matches[2], msg)
	}
	return fmt.Errorf("%s: %w", kind, err)
}
