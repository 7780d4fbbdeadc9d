package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/youtell/visrec-cli/internal/api"
	"github.com/youtell/visrec-cli/internal/validation"
)

// builtinClassifiers are accepted as classifier IDs without a lookup.
var builtinClassifiers = map[string]bool{
	"default":  true,
	"food":     true,
	"explicit": true,
}

// imageInput is one file path or image URL to send.
type imageInput struct {
	File string
	URL  string
}

func (in imageInput) String() string {
	if in.URL != "" {
		return in.URL
	}
	return in.File
}

// collectImageInputs merges positional file arguments and --url values.
func collectImageInputs(args, urls []string) ([]imageInput, error) {
	var inputs []imageInput
	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg == "" {
			continue
		}
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			inputs = append(inputs, imageInput{URL: arg})
			continue
		}
		inputs = append(inputs, imageInput{File: arg})
	}
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			inputs = append(inputs, imageInput{URL: u})
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one image file or --url is required")
	}
	return inputs, nil
}

// imageOutcome pairs a bulk input with its result for JSON output.
type imageOutcome struct {
	Input  string               `json:"input"`
	Result any                  `json:"result,omitempty"`
	Error  *api.StructuredError `json:"error,omitempty"`
}

// runImages sends every input through call. A single input returns its own
// result or error; several inputs produce one outcome per input and an error
// only when at least one of them failed.
func runImages[T any](
	cmd *cobra.Command,
	inputs []imageInput,
	concurrency int,
	call func(ctx context.Context, in imageInput) (T, error),
	render func(input string, result T),
) error {
	ctx := cmdContext(cmd)
	if len(inputs) == 1 {
		result, err := call(ctx, inputs[0])
		if err != nil {
			return err
		}
		if isJSON(cmd) {
			return printJSON(cmd, result)
		}
		render(inputs[0].String(), result)
		return nil
	}

	byKey := make(map[string]imageInput, len(inputs))
	keys := make([]string, 0, len(inputs))
	for _, in := range inputs {
		byKey[in.String()] = in
		keys = append(keys, in.String())
	}

	results := runBulkOperation(ctx, keys, int64(concurrency), !flags.Quiet && !isJSON(cmd), cmd.ErrOrStderr(),
		func(ctx context.Context, key string) (T, error) {
			return call(ctx, byKey[key])
		})

	if isJSON(cmd) {
		outcomes := make([]imageOutcome, 0, len(results))
		for _, r := range results {
			outcome := imageOutcome{Input: r.Input}
			if r.Success {
				outcome.Result = r.Data
			} else {
				outcome.Error = api.StructuredErrorFromError(r.Error)
			}
			outcomes = append(outcomes, outcome)
		}
		if err := printJSON(cmd, outcomes); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Success {
				render(r.Input, r.Data.(T))
			} else {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.Input, r.Error)
			}
		}
	}

	success, failure := countResults(results)
	printIfNotQuiet(cmd, "Processed %d images: %d succeeded, %d failed\n", len(results), success, failure)
	if failure > 0 {
		return fmt.Errorf("%d of %d images failed", failure, len(results))
	}
	return nil
}

func newClassifyCmd() *cobra.Command {
	var (
		urls           []string
		threshold      string
		owners         string
		classifierIDs  string
		acceptLanguage string
		concurrency    int
	)

	cmd := &cobra.Command{
		Use:     "classify [files...]",
		Aliases: []string{"cl"},
		Short:   "Classify images",
		Long: strings.TrimSpace(`
Classify images with the built-in or your custom classifiers.

Each file may be a single image or a .zip archive of images. Arguments that
start with http:// or https:// are sent as image URLs. Several inputs are
uploaded concurrently.
`),
		Example: strings.TrimSpace(`
  # Classify a local image with the default classifier
  visrec classify fruit.jpg

  # Use custom classifiers by name or ID, keeping scores above 0.6
  visrec classify --classifier-ids dogs,default --threshold 0.6 photos.zip

  # Classify an image URL and print only class names
  visrec classify https://example.com/dog.jpg --jq '.images[].classifiers[].classes[].class'
`),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			inputs, err := collectImageInputs(args, urls)
			if err != nil {
				return err
			}
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}

			var thresholdValue *float64
			if threshold != "" {
				v, err := validation.ParseThreshold(threshold)
				if err != nil {
					return err
				}
				thresholdValue = &v
			}

			s, err := getSession()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			ids, err := resolveClassifierIDs(ctx, s, splitCommaList(classifierIDs))
			if err != nil {
				return err
			}

			opts := api.ClassifyOptions{
				Threshold:      thresholdValue,
				Owners:         splitCommaList(owners),
				ClassifierIDs:  ids,
				AcceptLanguage: acceptLanguage,
			}

			return runImages(cmd, inputs, concurrency,
				func(ctx context.Context, in imageInput) (*api.ClassifiedImages, error) {
					callOpts := opts
					callOpts.ImagesFile = in.File
					callOpts.URL = in.URL
					return s.client.Classify().Images(ctx, callOpts)
				},
				func(input string, result *api.ClassifiedImages) {
					renderClassified(cmd, input, result)
				})
		}),
	}

	cmd.Flags().StringArrayVar(&urls, "url", nil, "Image URL to classify (repeatable)")
	cmd.Flags().StringVar(&threshold, "threshold", "", "Minimum score a class needs to be returned (0-1)")
	cmd.Flags().StringVar(&owners, "owners", "", "Comma-separated owners: IBM, me")
	cmd.Flags().StringVar(&classifierIDs, "classifier-ids", "", "Comma-separated classifier IDs or names")
	cmd.Flags().StringVar(&acceptLanguage, "accept-language", "", "Language of class names (e.g. en, de, ja)")
	cmd.Flags().IntVar(&concurrency, "concurrency", DefaultConcurrency, "Maximum concurrent uploads")

	return cmd
}

func renderClassified(cmd *cobra.Command, input string, result *api.ClassifiedImages) {
	f := newFormatter(cmd)
	f.StartTable([]string{"IMAGE", "CLASSIFIER", "CLASS", "SCORE", "HIERARCHY"})
	for _, img := range result.Images {
		name := imageLabel(input, img.Image, img.ResolvedURL, img.SourceURL)
		if img.Error != nil {
			f.Row(name, "-", "error: "+img.Error.Description, "-", "-")
			continue
		}
		for _, c := range img.Classifiers {
			for _, class := range c.Classes {
				f.Row(name, c.ClassifierID, class.Class, formatScore(class.Score), class.TypeHierarchy)
			}
		}
	}
	_ = f.EndTable()
	for _, w := range result.Warnings {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w.Description)
	}
}

func imageLabel(input string, candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return input
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 3, 64)
}

// resolveClassifierIDs maps names to classifier IDs. Built-in classifiers
// pass through untouched and the classifier list is only fetched when a
// custom value needs resolving.
func resolveClassifierIDs(ctx context.Context, s *session, values []string) ([]string, error) {
	var items []api.Classifier
	loaded := false
	ids := make([]string, 0, len(values))
	for _, value := range values {
		if builtinClassifiers[value] {
			ids = append(ids, value)
			continue
		}
		if !loaded {
			var err error
			items, err = listClassifiersCached(ctx, s, nil)
			if err != nil {
				return nil, err
			}
			loaded = true
		}
		id, err := matchClassifier(value, items)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
