package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/youtell/visrec-cli/internal/api"
	"github.com/youtell/visrec-cli/internal/dryrun"
	"github.com/youtell/visrec-cli/internal/resolve"
	"github.com/youtell/visrec-cli/internal/validation"
)

func newClassifiersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "classifiers",
		Aliases: []string{"classifier", "cf"},
		Short:   "Manage custom classifiers",
		Long: strings.TrimSpace(`
Train, inspect and delete custom classifiers.

Commands that take a classifier accept its ID or its name; names are
matched against the cached classifier list (see --no-cache).
`),
	}

	cmd.AddCommand(newClassifiersListCmd())
	cmd.AddCommand(newClassifiersGetCmd())
	cmd.AddCommand(newClassifiersCreateCmd())
	cmd.AddCommand(newClassifiersUpdateCmd())
	cmd.AddCommand(newClassifiersDeleteCmd())
	cmd.AddCommand(newClassifiersCoreMLCmd())

	return cmd
}

func newClassifiersListCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List custom classifiers",
		Example: strings.TrimSpace(`
  visrec classifiers list
  visrec classifiers list --verbose --json
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			s, err := getSession()
			if err != nil {
				return err
			}

			var verboseParam *bool
			if cmd.Flags().Changed("verbose") {
				verboseParam = &verbose
			}
			items, err := s.client.Classifiers().List(cmdContext(cmd), verboseParam, nil)
			if err != nil {
				return err
			}
			if store := s.classifierCache(); store != nil {
				store.Put(items)
			}

			if isJSON(cmd) {
				return printJSON(cmd, items)
			}

			f := newFormatter(cmd)
			if len(items) == 0 {
				f.Empty("No classifiers found.")
				return nil
			}
			headers := []string{"ID", "NAME", "STATUS", "OWNER"}
			if verbose {
				headers = append(headers, "CLASSES", "CORE_ML", "UPDATED")
			}
			f.StartTable(headers)
			for _, c := range items {
				row := []string{c.ClassifierID, c.Name, dash(c.Status), dash(c.Owner)}
				if verbose {
					row = append(row, classNames(c.Classes), fmt.Sprintf("%t", c.CoreMLEnabled), dash(c.Updated))
				}
				f.Row(row...)
			}
			return f.EndTable()
		}),
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Include classes and training details")
	return cmd
}

func newClassifiersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <classifier>",
		Aliases: []string{"show"},
		Short:   "Show a classifier",
		Args:    cobra.ExactArgs(1),
		Example: "visrec classifiers get dogs",
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			s, err := getSession()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			id, err := resolveClassifierArg(ctx, s, args[0])
			if err != nil {
				return err
			}

			c, err := s.client.Classifiers().Get(ctx, id, nil)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, c)
			}
			printClassifier(cmd, c)
			return nil
		}),
	}
}

func newClassifiersCreateCmd() *cobra.Command {
	var (
		name     string
		positive []string
		negative string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Train a new classifier",
		Long: strings.TrimSpace(`
Create and train a classifier from .zip archives of example images.

Each --positive takes class=path; give at least two classes, or one class
together with --negative.
`),
		Example: strings.TrimSpace(`
  visrec classifiers create --name dogs --positive beagle=beagle.zip --positive husky=husky.zip --negative cats.zip
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if err := validation.ValidateClassifierName(name); err != nil {
				return err
			}
			examples, err := parsePositiveExamples(positive)
			if err != nil {
				return err
			}
			if len(examples) == 0 {
				return fmt.Errorf("at least one --positive class=path is required")
			}
			if len(examples) == 1 && negative == "" {
				return fmt.Errorf("one positive class must be trained with --negative examples")
			}

			opts := api.CreateClassifierOptions{
				Name:             name,
				PositiveExamples: examples,
				NegativeExamples: negative,
			}
			if dryrun.IsEnabled(cmdContext(cmd)) {
				return writePreview(cmd, previewRequest("create classifier", api.CreateClassifierRequest(opts)))
			}

			s, err := getSession()
			if err != nil {
				return err
			}
			c, err := s.client.Classifiers().Create(cmdContext(cmd), opts)
			if err != nil {
				return err
			}
			s.invalidateClassifierCache()

			if isJSON(cmd) {
				return printJSON(cmd, c)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created classifier %s (%s)\n", c.ClassifierID, dash(c.Status))
			return nil
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "Classifier name (required)")
	cmd.Flags().StringArrayVar(&positive, "positive", nil, "Positive examples as class=path.zip (repeatable)")
	cmd.Flags().StringVar(&negative, "negative", "", "Negative examples .zip")
	return cmd
}

func newClassifiersUpdateCmd() *cobra.Command {
	var (
		positive []string
		negative string
	)

	cmd := &cobra.Command{
		Use:     "update <classifier>",
		Short:   "Add training data to a classifier",
		Args:    cobra.ExactArgs(1),
		Example: "visrec classifiers update dogs --positive poodle=poodle.zip",
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			examples, err := parsePositiveExamples(positive)
			if err != nil {
				return err
			}
			if len(examples) == 0 && negative == "" {
				return fmt.Errorf("at least one --positive or --negative is required")
			}

			s, err := getSession()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			id, err := resolveClassifierArg(ctx, s, args[0])
			if err != nil {
				return err
			}

			opts := api.UpdateClassifierOptions{
				PositiveExamples: examples,
				NegativeExamples: negative,
			}
			if dryrun.IsEnabled(ctx) {
				return writePreview(cmd, previewRequest("update classifier", api.UpdateClassifierRequest(id, opts)))
			}

			c, err := s.client.Classifiers().Update(ctx, id, opts)
			if err != nil {
				return err
			}
			s.invalidateClassifierCache()

			if isJSON(cmd) {
				return printJSON(cmd, c)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated classifier %s (%s)\n", c.ClassifierID, dash(c.Status))
			return nil
		}),
	}

	cmd.Flags().StringArrayVar(&positive, "positive", nil, "Positive examples as class=path.zip (repeatable)")
	cmd.Flags().StringVar(&negative, "negative", "", "Negative examples .zip")
	return cmd
}

func newClassifiersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <classifier>",
		Aliases: []string{"rm"},
		Short:   "Delete a classifier",
		Args:    cobra.ExactArgs(1),
		Example: "visrec classifiers delete dogs_1941945966 --yes",
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			s, err := getSession()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			id, err := resolveClassifierArg(ctx, s, args[0])
			if err != nil {
				return err
			}

			if dryrun.IsEnabled(ctx) {
				return writePreview(cmd, previewRequest("delete classifier", api.DeleteClassifierRequest(id, nil)))
			}

			ok, err := confirmAction(cmd, fmt.Sprintf("Delete classifier %s?", id))
			if err != nil {
				return err
			}
			if !ok {
				printIfNotQuiet(cmd, "Aborted.\n")
				return nil
			}

			if err := s.client.Classifiers().Delete(ctx, id, nil); err != nil {
				return err
			}
			s.invalidateClassifierCache()

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"deleted": true, "classifier_id": id})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted classifier %s\n", id)
			return nil
		}),
	}
}

func newClassifiersCoreMLCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "core-ml <classifier>",
		Short: "Download a classifier's Core ML model",
		Args:  cobra.ExactArgs(1),
		Example: strings.TrimSpace(`
  visrec classifiers core-ml dogs
  visrec classifiers core-ml dogs --file - > dogs.mlmodel
`),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			s, err := getSession()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			id, err := resolveClassifierArg(ctx, s, args[0])
			if err != nil {
				return err
			}

			model, err := s.client.Classifiers().CoreMLModel(ctx, id, nil)
			if err != nil {
				return err
			}

			if file == "-" {
				_, err := cmd.OutOrStdout().Write(model)
				return err
			}
			if file == "" {
				file = id + ".mlmodel"
			}
			if err := os.WriteFile(file, model, 0o644); err != nil {
				return fmt.Errorf("failed to write model: %w", err)
			}
			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"classifier_id": id, "file": file, "bytes": len(model)})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", file, len(model))
			return nil
		}),
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Output path, or - for stdout (default <id>.mlmodel)")
	return cmd
}

// parsePositiveExamples parses class=path values in order.
func parsePositiveExamples(values []string) ([]api.ClassExamples, error) {
	examples := make([]api.ClassExamples, 0, len(values))
	for _, v := range values {
		class, path, ok := strings.Cut(v, "=")
		class, path = strings.TrimSpace(class), strings.TrimSpace(path)
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --positive %q: must be class=path", v)
		}
		if err := validation.ValidateClassName(class); err != nil {
			return nil, err
		}
		examples = append(examples, api.ClassExamples{Class: class, File: path})
	}
	return examples, nil
}

// listClassifiersCached returns the classifier list from the cache when
// fresh, fetching and caching it otherwise.
func listClassifiersCached(ctx context.Context, s *session, verbose *bool) ([]api.Classifier, error) {
	store := s.classifierCache()
	if store != nil {
		var items []api.Classifier
		if store.Get(&items) {
			return items, nil
		}
	}
	items, err := s.client.Classifiers().List(ctx, verbose, nil)
	if err != nil {
		return nil, err
	}
	if store != nil {
		store.Put(items)
	}
	return items, nil
}

// resolveClassifierArg maps an ID or name to a classifier ID. A miss against
// a cached list is retried once against a fresh one.
func resolveClassifierArg(ctx context.Context, s *session, value string) (string, error) {
	items, err := listClassifiersCached(ctx, s, nil)
	if err != nil {
		return "", err
	}
	id, err := matchClassifier(value, items)
	if err == nil || s.classifierCache() == nil {
		return id, err
	}
	var ambiguous *resolve.AmbiguousError
	if errors.As(err, &ambiguous) {
		return "", err
	}

	s.invalidateClassifierCache()
	items, listErr := listClassifiersCached(ctx, s, nil)
	if listErr != nil {
		return "", listErr
	}
	return matchClassifier(value, items)
}

func matchClassifier(value string, items []api.Classifier) (string, error) {
	named := make([]resolve.Named, len(items))
	for i, c := range items {
		named[i] = resolve.Named{ID: c.ClassifierID, Name: c.Name}
	}
	id, err := resolve.FuzzyMatch(value, named)
	if errors.Is(err, resolve.ErrEmptyItems) {
		return "", fmt.Errorf("no classifier matches %q: no custom classifiers exist", value)
	}
	return id, err
}

func (s *session) invalidateClassifierCache() {
	if store := s.classifierCache(); store != nil {
		store.Clear()
	}
}

func printClassifier(cmd *cobra.Command, c *api.Classifier) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "ID:       %s\n", c.ClassifierID)
	_, _ = fmt.Fprintf(out, "Name:     %s\n", c.Name)
	_, _ = fmt.Fprintf(out, "Status:   %s\n", dash(c.Status))
	_, _ = fmt.Fprintf(out, "Owner:    %s\n", dash(c.Owner))
	_, _ = fmt.Fprintf(out, "Core ML:  %t\n", c.CoreMLEnabled)
	_, _ = fmt.Fprintf(out, "Created:  %s\n", dash(c.Created))
	if c.Retrained != "" {
		_, _ = fmt.Fprintf(out, "Retrained: %s\n", c.Retrained)
	}
	if c.Explanation != "" {
		_, _ = fmt.Fprintf(out, "Explanation: %s\n", c.Explanation)
	}
	if len(c.Classes) > 0 {
		_, _ = fmt.Fprintf(out, "Classes:  %s\n", classNames(c.Classes))
	}
}

func classNames(classes []api.Class) string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.Class
	}
	return strings.Join(names, ", ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
