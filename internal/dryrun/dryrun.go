// Package dryrun previews mutating requests without sending them.
package dryrun

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/youtell/visrec-cli/internal/multipart"
)

type contextKey string

const dryRunKey contextKey = "dry_run_enabled"

// WithDryRun returns a context with dry-run mode enabled/disabled.
func WithDryRun(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, dryRunKey, enabled)
}

// IsEnabled returns true if dry-run mode is enabled.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(dryRunKey).(bool); ok {
		return v
	}
	return false
}

// File is a multipart file part the request would upload.
type File struct {
	Field string `json:"field"`
	Path  string `json:"path"`
	Size  int64  `json:"size"`
}

// Preview describes the request a mutation would send.
type Preview struct {
	Operation string            `json:"operation"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Query     map[string]string `json:"query,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Files     []File            `json:"files,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// AddFile records a file part, warning when the file cannot be read.
func (p *Preview) AddFile(field, path string) {
	f := File{Field: field, Path: path}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		p.Warnings = append(p.Warnings, fmt.Sprintf("%s: %v", path, err))
	case info.IsDir():
		p.Warnings = append(p.Warnings, fmt.Sprintf("%s is a directory", path))
	default:
		f.Size = info.Size()
	}
	p.Files = append(p.Files, f)
}

// AddForm records the parts of form in order: value fields under Fields,
// file parts through AddFile.
func (p *Preview) AddForm(form *multipart.Form) {
	for _, field := range form.Fields() {
		if field.IsFile() {
			p.AddFile(field.Name, field.Path)
			continue
		}
		if p.Fields == nil {
			p.Fields = make(map[string]string)
		}
		p.Fields[field.Name] = string(field.Value)
	}
}

// Write outputs the preview to the writer
func (p *Preview) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "[DRY-RUN] Would %s: %s %s\n", p.Operation, p.Method, p.Path)

	writeSorted(w, "Query", p.Query)
	writeSorted(w, "Fields", p.Fields)

	if len(p.Files) > 0 {
		_, _ = fmt.Fprintln(w, "Files:")
		for _, f := range p.Files {
			_, _ = fmt.Fprintf(w, "  %s: %s (%d bytes)\n", f.Field, f.Path, f.Size)
		}
	}

	if len(p.Warnings) > 0 {
		_, _ = fmt.Fprintln(w, "Warnings:")
		for _, warning := range p.Warnings {
			_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
		}
	}

	_, _ = fmt.Fprintln(w, "No changes made (dry-run mode)")
}

func writeSorted(w io.Writer, title string, values map[string]string) {
	if len(values) == 0 {
		return
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	_, _ = fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", k, strings.TrimSpace(values[k]))
	}
}
