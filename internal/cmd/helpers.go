package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/youtell/visrec-cli/internal/api"
	"github.com/youtell/visrec-cli/internal/dryrun"
	"github.com/youtell/visrec-cli/internal/outfmt"
)

// getJQQuery returns the jq expression from --jq or --query, --jq winning.
func getJQQuery() string {
	if flags.JQ != "" {
		return flags.JQ
	}
	return flags.Query
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func isJSON(cmd *cobra.Command) bool {
	return outfmt.IsJSON(cmdContext(cmd))
}

func newFormatter(cmd *cobra.Command) *outfmt.Formatter {
	return outfmt.NewFormatter(cmdContext(cmd), cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// printJSON outputs data as JSON with the context's query and template applied.
func printJSON(cmd *cobra.Command, v any) error {
	return newFormatter(cmd).Output(v)
}

// previewRequest describes req without sending it.
func previewRequest(operation string, req api.Request) *dryrun.Preview {
	p := &dryrun.Preview{Operation: operation, Method: req.Method, Path: req.Path}
	for _, q := range req.Query {
		if p.Query == nil {
			p.Query = make(map[string]string)
		}
		p.Query[q.Key] = q.Value
	}
	if req.Form != nil {
		p.AddForm(req.Form)
	}
	return p
}

// writePreview reports a dry-run preview in the active output mode.
func writePreview(cmd *cobra.Command, p *dryrun.Preview) error {
	if isJSON(cmd) {
		return printJSON(cmd, map[string]any{"dry_run": true, "request": p})
	}
	p.Write(cmd.OutOrStdout())
	return nil
}

func printIfNotQuiet(cmd *cobra.Command, format string, args ...any) {
	if flags.Quiet {
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format, args...)
}

// parseHeaders turns repeated "Name: value" flags into a header set.
func parseHeaders(values []string) (http.Header, error) {
	if len(values) == 0 {
		return nil, nil
	}
	header := http.Header{}
	for _, raw := range values {
		name, value, ok := strings.Cut(raw, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --header %q: must be 'Name: value'", raw)
		}
		header.Add(name, strings.TrimSpace(value))
	}
	return header, nil
}

// splitCommaList splits a comma-separated flag value, dropping blanks.
func splitCommaList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var stdinIsTerminal = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// confirmAction asks for a y/N answer unless --yes was given. Without a
// terminal (or with --no-input) it refuses rather than guess.
func confirmAction(cmd *cobra.Command, prompt string) (bool, error) {
	if flags.Yes {
		return true, nil
	}
	if flags.NoInput || isJSON(cmd) || !stdinIsTerminal() {
		return false, fmt.Errorf("confirmation required: re-run with --yes")
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && answer == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// maskToken masks a secret for display, showing only the first and last 4 characters.
func maskToken(token string) string {
	if len(token) < 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

// errAlreadyHandled marks an error whose message was already printed, so
// Execute does not print it again.
var errAlreadyHandled = errors.New("error already handled")

type handledError struct {
	err      error
	exitCode int
}

func (e *handledError) Error() string {
	return e.err.Error()
}

func (e *handledError) Unwrap() []error {
	return []error{errAlreadyHandled, e.err}
}

func (e *handledError) ExitCode() int {
	return e.exitCode
}

// RunE wraps a command function with structured error reporting: a JSON
// error document on stderr in JSON modes, suggestions otherwise.
func RunE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		if isJSON(cmd) {
			if structured := api.StructuredErrorFromError(err); structured != nil {
				_ = outfmt.WriteJSON(cmd.ErrOrStderr(), structured)
			}
		} else {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), HandleError(err))
		}
		return &handledError{err: err, exitCode: ExitCode(err)}
	}
}
