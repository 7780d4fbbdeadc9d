package api

import (
	"context"
	"net/http"

	"github.com/youtell/visrec-cli/internal/multipart"
)

// DetectFacesOptions selects the image for face detection.
type DetectFacesOptions struct {
	ImagesFile string
	URL        string
	Headers    http.Header
}

// Detect analyzes the faces in an image.
func (s FacesService) Detect(ctx context.Context, opts DetectFacesOptions) (*DetectedFaces, error) {
	result, err := Execute(ctx, s.Client, detectFacesRequest(opts), JSON[DetectedFaces]())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DetectAsync runs Detect in the background.
func (s FacesService) DetectAsync(ctx context.Context, opts DetectFacesOptions) <-chan Result[DetectedFaces] {
	return Go(ctx, s.Client, detectFacesRequest(opts), JSON[DetectedFaces]())
}

func detectFacesRequest(opts DetectFacesOptions) Request {
	form := &multipart.Form{}
	if opts.ImagesFile != "" {
		form.AddFile("images_file", opts.ImagesFile)
	}
	if opts.URL != "" {
		form.AddValue("url", opts.URL)
	}
	return Request{
		Method: http.MethodPost,
		Path:   "/v3/detect_faces",
		Header: operationHeader(opts.Headers, "application/json"),
		Form:   form,
	}
}
