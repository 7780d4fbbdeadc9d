package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/youtell/visrec-cli/internal/api"
	"github.com/youtell/visrec-cli/internal/config"
	"github.com/youtell/visrec-cli/internal/debug"
	"github.com/youtell/visrec-cli/internal/dryrun"
	"github.com/youtell/visrec-cli/internal/outfmt"
	"github.com/youtell/visrec-cli/internal/validation"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Output       string
	JSON         bool
	Compact      bool
	Query        string
	JQ           string
	Template     string
	Debug        bool
	LogFile      string
	Timeout      time.Duration
	Profile      string
	Headers      []string
	Quiet        bool
	Yes          bool
	NoInput      bool
	AllowPrivate bool
	NoCache      bool
	DryRun       bool
}

// flags holds the global command flags. It is reset at the start of every
// Execute call; anything reading it outside a command's RunE sees the
// previous invocation's values.
var flags = defaultFlags()

func defaultFlags() rootFlags {
	return rootFlags{
		Output:       defaultOutput(),
		Timeout:      api.DefaultTimeout,
		AllowPrivate: validation.AllowPrivateEnabled(),
	}
}

func defaultOutput() string {
	value := strings.TrimSpace(os.Getenv("VISREC_OUTPUT"))
	if value != "" {
		return value
	}
	return "text"
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	// Loaded before the flag reset so VISREC_OUTPUT and friends from the
	// file feed the defaults. Exported variables always win.
	_ = config.LoadEnvFiles(false, config.DefaultEnvFile())

	flags = defaultFlags()

	var logCloser io.Closer
	defer func() {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	}()

	root := &cobra.Command{
		Use:                "visrec",
		Short:              "Command-line client for the visual recognition service",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if flags.JSON {
				if cmd.Flags().Changed("output") && flags.Output != "json" {
					return fmt.Errorf("--json conflicts with --output %s", flags.Output)
				}
				flags.Output = "json"
			}

			query := getJQQuery()
			needsJSON := query != "" || flags.Template != ""
			if needsJSON && flags.Output != "json" && flags.Output != "jsonl" && flags.Output != "ndjson" {
				if cmd.Flags().Changed("output") {
					return fmt.Errorf("--jq/--template require --output json or jsonl (or --json)")
				}
				flags.Output = "json"
			}

			mode, err := outfmt.Parse(flags.Output)
			if err != nil {
				return err
			}
			ctx = outfmt.WithMode(ctx, mode)
			ctx = outfmt.WithCompact(ctx, flags.Compact)
			if query != "" {
				ctx = outfmt.WithQuery(ctx, query)
			}
			if flags.Template != "" {
				tmpl, err := loadTemplate(flags.Template)
				if err != nil {
					return err
				}
				ctx = outfmt.WithTemplate(ctx, tmpl)
			}

			if flags.Quiet && mode == outfmt.Text {
				cmd.SetOut(io.Discard)
			}

			if flags.Timeout < 0 {
				return fmt.Errorf("--timeout must be >= 0")
			}

			validation.SetAllowPrivate(flags.AllowPrivate)
			if flags.AllowPrivate && !flags.Quiet {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: allowing private/localhost URLs (use only with trusted targets).")
			}

			logCloser = debug.SetupLogger(flags.Debug, flags.LogFile)
			ctx = debug.WithDebug(ctx, flags.Debug)
			ctx = dryrun.WithDryRun(ctx, flags.DryRun)

			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetContext(ctx)
	root.SetArgs(args)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|jsonl (env VISREC_OUTPUT)")
	pf.BoolVarP(&flags.JSON, "json", "j", false, "Shorthand for --output json")
	pf.BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	pf.StringVarP(&flags.Query, "query", "q", "", "jq expression to filter JSON output")
	pf.StringVar(&flags.JQ, "jq", "", "Alias for --query")
	pf.StringVar(&flags.Template, "template", "", "Go template string (or @path) to render JSON output")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.StringVar(&flags.LogFile, "log-file", "", "Also write logs to this file (rotated at 10MB)")
	pf.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "HTTP request timeout (e.g., 30s, 2m)")
	pf.StringVarP(&flags.Profile, "profile", "p", "", "Credential profile to use (env VISREC_PROFILE)")
	pf.StringArrayVarP(&flags.Headers, "header", "H", nil, "Extra request header 'Name: value' (repeatable)")
	pf.BoolVarP(&flags.Quiet, "quiet", "Q", false, "Suppress non-essential output")
	pf.BoolVarP(&flags.Yes, "yes", "y", false, "Skip confirmation prompts")
	pf.BoolVar(&flags.NoInput, "no-input", false, "Disable interactive prompts")
	pf.BoolVar(&flags.AllowPrivate, "allow-private", flags.AllowPrivate, "Allow private/localhost service URLs (unsafe)")
	pf.BoolVar(&flags.NoCache, "no-cache", false, "Bypass the classifier list cache")
	pf.BoolVar(&flags.DryRun, "dry-run", false, "Preview mutating requests without sending them")

	root.AddCommand(newAuthCmd())
	root.AddCommand(newClassifyCmd())
	root.AddCommand(newDetectFacesCmd())
	root.AddCommand(newClassifiersCmd())
	root.AddCommand(newUserDataCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newVersionCmd())

	targetCmd, err := root.ExecuteC()
	if err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), enhanceUnknownError(err, root, targetCmd))
		}
		return err
	}
	return nil
}

// enhanceUnknownError adds "did you mean?" suggestions to unknown command/flag errors.
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	if strings.Contains(msg, "unknown command") {
		if unknown := extractQuoted(msg); unknown != "" {
			parent := root
			if targetCmd != nil {
				parent = targetCmd
			}
			var names []string
			for _, c := range parent.Commands() {
				if c.IsAvailableCommand() {
					names = append(names, c.Name())
					names = append(names, c.Aliases...)
				}
			}
			if suggestion := suggestCommand(unknown, names); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?", msg, suggestion)
			}
		}
		return msg
	}

	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown shorthand flag") {
		unknown := extractFlag(msg)
		if unknown == "" {
			return msg
		}
		target := root
		if targetCmd != nil {
			target = targetCmd
		}
		seen := make(map[string]bool)
		var flagNames []string
		collect := func(fs *pflag.FlagSet) {
			fs.VisitAll(func(f *pflag.Flag) {
				for _, name := range []string{"--" + f.Name, shorthandName(f)} {
					if name != "" && !seen[name] {
						seen[name] = true
						flagNames = append(flagNames, name)
					}
				}
			})
		}
		collect(target.Flags())
		collect(target.InheritedFlags())

		helpCmd := strings.TrimSpace(target.CommandPath()) + " --help"
		if suggestion := suggestFlag(unknown, flagNames); suggestion != "" {
			return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, suggestion, helpCmd)
		}
		return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
	}

	return msg
}

func shorthandName(f *pflag.Flag) string {
	if f.Shorthand == "" {
		return ""
	}
	return "-" + f.Shorthand
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	_, rest, ok := strings.Cut(s, `"`)
	if !ok {
		return ""
	}
	quoted, _, ok := strings.Cut(rest, `"`)
	if !ok {
		return ""
	}
	return quoted
}

// extractFlag extracts a flag name (e.g., "--foo" or "-f") from an error message.
func extractFlag(s string) string {
	if idx := strings.Index(s, "--"); idx >= 0 {
		rest := s[idx:]
		if end := strings.IndexByte(rest, ' '); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimRight(rest, ".,;:!?\"'")
	}
	// "unknown shorthand flag: 'a' in -a"
	idx := strings.LastIndex(s, " -")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(s[idx+1:])
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimRight(rest, ".,;:!?\"'")
	if len(rest) > 1 && strings.HasPrefix(rest, "-") {
		return rest
	}
	return ""
}

func loadTemplate(value string) (string, error) {
	path, ok := strings.CutPrefix(value, "@")
	if !ok {
		return value, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template file: %w", err)
	}
	return string(data), nil
}
