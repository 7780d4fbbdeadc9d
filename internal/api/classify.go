package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/youtell/visrec-cli/internal/multipart"
)

// ClassifyOptions selects the image and classifiers for a classify call.
// Either ImagesFile (a local image or .zip of images) or URL must be set.
type ClassifyOptions struct {
	ImagesFile     string
	URL            string
	Threshold      *float64
	Owners         []string
	ClassifierIDs  []string
	AcceptLanguage string
	Headers        http.Header
}

// Images classifies an image with the built-in or custom classifiers.
func (s ClassifyService) Images(ctx context.Context, opts ClassifyOptions) (*ClassifiedImages, error) {
	result, err := Execute(ctx, s.Client, classifyRequest(opts), JSON[ClassifiedImages]())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ImagesAsync runs Images in the background and delivers the result on the
// returned channel.
func (s ClassifyService) ImagesAsync(ctx context.Context, opts ClassifyOptions) <-chan Result[ClassifiedImages] {
	return Go(ctx, s.Client, classifyRequest(opts), JSON[ClassifiedImages]())
}

func classifyRequest(opts ClassifyOptions) Request {
	form := &multipart.Form{}
	if opts.ImagesFile != "" {
		form.AddFile("images_file", opts.ImagesFile)
	}
	if opts.URL != "" {
		form.AddValue("url", opts.URL)
	}
	if opts.Threshold != nil {
		form.AddValue("threshold", strconv.FormatFloat(*opts.Threshold, 'f', -1, 64))
	}
	if len(opts.Owners) > 0 {
		form.AddValue("owners", strings.Join(opts.Owners, ","))
	}
	if len(opts.ClassifierIDs) > 0 {
		form.AddValue("classifier_ids", strings.Join(opts.ClassifierIDs, ","))
	}

	header := operationHeader(opts.Headers, "application/json")
	if opts.AcceptLanguage != "" {
		header.Set("Accept-Language", opts.AcceptLanguage)
	}
	return Request{
		Method: http.MethodPost,
		Path:   "/v3/classify",
		Header: header,
		Form:   form,
	}
}

// operationHeader copies the caller's extra headers and sets the Accept value
// the operation requires.
func operationHeader(extra http.Header, accept string) http.Header {
	header := http.Header{}
	mergeHeader(header, extra)
	header.Set("Accept", accept)
	return header
}
