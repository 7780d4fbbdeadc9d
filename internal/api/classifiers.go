package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/youtell/visrec-cli/internal/multipart"
)

// ClassExamples is a .zip of positive examples for one class.
type ClassExamples struct {
	Class string
	File  string
}

// CreateClassifierOptions describes a new custom classifier. Positive
// examples are sent in the order given.
type CreateClassifierOptions struct {
	Name             string
	PositiveExamples []ClassExamples
	NegativeExamples string
	Headers          http.Header
}

// UpdateClassifierOptions adds training data to an existing classifier.
type UpdateClassifierOptions struct {
	PositiveExamples []ClassExamples
	NegativeExamples string
	Headers          http.Header
}

// List retrieves the custom classifiers. A nil verbose omits the parameter.
func (s ClassifiersService) List(ctx context.Context, verbose *bool, headers http.Header) ([]Classifier, error) {
	req := Request{
		Method: http.MethodGet,
		Path:   "/v3/classifiers",
		Header: operationHeader(headers, "application/json"),
	}
	if verbose != nil {
		req.Query = append(req.Query, QueryParam{Key: "verbose", Value: strconv.FormatBool(*verbose)})
	}
	result, err := Execute(ctx, s.Client, req, JSON[Classifiers]())
	if err != nil {
		return nil, err
	}
	return result.Classifiers, nil
}

// Get retrieves a classifier by ID.
func (s ClassifiersService) Get(ctx context.Context, classifierID string, headers http.Header) (*Classifier, error) {
	req := Request{
		Method: http.MethodGet,
		Path:   classifierPath(classifierID),
		Header: operationHeader(headers, "application/json"),
	}
	result, err := Execute(ctx, s.Client, req, JSON[Classifier]())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Create trains a new custom classifier.
func (s ClassifiersService) Create(ctx context.Context, opts CreateClassifierOptions) (*Classifier, error) {
	result, err := Execute(ctx, s.Client, CreateClassifierRequest(opts), JSON[Classifier]())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateClassifierRequest builds the request Create sends.
func CreateClassifierRequest(opts CreateClassifierOptions) Request {
	form := &multipart.Form{}
	form.AddValue("name", opts.Name)
	addExamples(form, opts.PositiveExamples, opts.NegativeExamples)
	return Request{
		Method: http.MethodPost,
		Path:   "/v3/classifiers",
		Header: operationHeader(opts.Headers, "application/json"),
		Form:   form,
	}
}

// Update retrains a classifier with additional examples.
func (s ClassifiersService) Update(ctx context.Context, classifierID string, opts UpdateClassifierOptions) (*Classifier, error) {
	result, err := Execute(ctx, s.Client, UpdateClassifierRequest(classifierID, opts), JSON[Classifier]())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateClassifierRequest builds the request Update sends.
func UpdateClassifierRequest(classifierID string, opts UpdateClassifierOptions) Request {
	form := &multipart.Form{}
	addExamples(form, opts.PositiveExamples, opts.NegativeExamples)
	return Request{
		Method: http.MethodPost,
		Path:   classifierPath(classifierID),
		Header: operationHeader(opts.Headers, "application/json"),
		Form:   form,
	}
}

// Delete removes a classifier.
func (s ClassifiersService) Delete(ctx context.Context, classifierID string, headers http.Header) error {
	_, err := Execute(ctx, s.Client, DeleteClassifierRequest(classifierID, headers), NoContent())
	return err
}

// DeleteClassifierRequest builds the request Delete sends.
func DeleteClassifierRequest(classifierID string, headers http.Header) Request {
	return Request{
		Method: http.MethodDelete,
		Path:   classifierPath(classifierID),
		Header: operationHeader(headers, "application/json"),
	}
}

// CoreMLModel downloads the Core ML model of a classifier.
func (s ClassifiersService) CoreMLModel(ctx context.Context, classifierID string, headers http.Header) ([]byte, error) {
	req := Request{
		Method: http.MethodGet,
		Path:   classifierPath(classifierID) + "/core_ml_model",
		Header: operationHeader(headers, "application/octet-stream"),
	}
	return Execute(ctx, s.Client, req, Raw())
}

func classifierPath(classifierID string) string {
	return "/v3/classifiers/" + classifierID
}

func addExamples(form *multipart.Form, positive []ClassExamples, negative string) {
	for _, ex := range positive {
		form.AddFile(ex.Class+"_positive_examples", ex.File)
	}
	if negative != "" {
		form.AddFile("negative_examples", negative)
	}
}
