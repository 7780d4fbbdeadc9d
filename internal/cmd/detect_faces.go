package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/youtell/visrec-cli/internal/api"
)

func newDetectFacesCmd() *cobra.Command {
	var (
		urls        []string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:     "detect-faces [files...]",
		Aliases: []string{"faces", "df"},
		Short:   "Detect faces in images",
		Long: strings.TrimSpace(`
Detect faces and estimate age and gender for each one.

Each file may be a single image or a .zip archive of images. Arguments that
start with http:// or https:// are sent as image URLs.
`),
		Example: strings.TrimSpace(`
  visrec detect-faces team.jpg
  visrec detect-faces --url https://example.com/crowd.png --json
`),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			inputs, err := collectImageInputs(args, urls)
			if err != nil {
				return err
			}
			if concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}

			s, err := getSession()
			if err != nil {
				return err
			}

			return runImages(cmd, inputs, concurrency,
				func(ctx context.Context, in imageInput) (*api.DetectedFaces, error) {
					return s.client.Faces().Detect(ctx, api.DetectFacesOptions{
						ImagesFile: in.File,
						URL:        in.URL,
					})
				},
				func(input string, result *api.DetectedFaces) {
					renderFaces(cmd, input, result)
				})
		}),
	}

	cmd.Flags().StringArrayVar(&urls, "url", nil, "Image URL to analyze (repeatable)")
	cmd.Flags().IntVar(&concurrency, "concurrency", DefaultConcurrency, "Maximum concurrent uploads")

	return cmd
}

func renderFaces(cmd *cobra.Command, input string, result *api.DetectedFaces) {
	f := newFormatter(cmd)
	f.StartTable([]string{"IMAGE", "FACE", "AGE", "GENDER", "LOCATION"})
	for _, img := range result.Images {
		name := imageLabel(input, img.Image, img.ResolvedURL, img.SourceURL)
		if img.Error != nil {
			f.Row(name, "-", "-", "error: "+img.Error.Description, "-")
			continue
		}
		if len(img.Faces) == 0 {
			f.Row(name, "-", "-", "-", "no faces")
			continue
		}
		for i, face := range img.Faces {
			f.Row(name, fmt.Sprintf("%d", i+1), formatAge(face.Age), formatGender(face.Gender), formatLocation(face.FaceLocation))
		}
	}
	_ = f.EndTable()
	for _, w := range result.Warnings {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w.Description)
	}
}

func formatAge(age *api.FaceAge) string {
	if age == nil {
		return "-"
	}
	switch {
	case age.Min > 0 && age.Max > 0:
		return fmt.Sprintf("%d-%d (%s)", age.Min, age.Max, formatScore(age.Score))
	case age.Min > 0:
		return fmt.Sprintf("%d+ (%s)", age.Min, formatScore(age.Score))
	case age.Max > 0:
		return fmt.Sprintf("<=%d (%s)", age.Max, formatScore(age.Score))
	default:
		return "-"
	}
}

func formatGender(g *api.FaceGender) string {
	if g == nil || g.Gender == "" {
		return "-"
	}
	label := g.GenderLabel
	if label == "" {
		label = strings.ToLower(g.Gender)
	}
	return fmt.Sprintf("%s (%s)", label, formatScore(g.Score))
}

func formatLocation(loc *api.FaceLocation) string {
	if loc == nil {
		return "-"
	}
	return fmt.Sprintf("%gx%g@%g,%g", loc.Width, loc.Height, loc.Left, loc.Top)
}
