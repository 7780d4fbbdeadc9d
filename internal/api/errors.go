package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ServiceError is the failure of a single call. It is implemented only by
// *HTTPError, *SerializationError, *URLEncodingError and *TransportError.
type ServiceError interface {
	error
	serviceError()
}

var (
	_ ServiceError = (*HTTPError)(nil)
	_ ServiceError = (*SerializationError)(nil)
	_ ServiceError = (*URLEncodingError)(nil)
	_ ServiceError = (*TransportError)(nil)
)

// HTTPError is a failure reported by the remote service. Message is nil when
// the body carried no recognizable message; Metadata is nil (never empty)
// when no detail fields were extracted.
type HTTPError struct {
	StatusCode int
	Message    *string
	Metadata   map[string]string
	RequestID  string
}

func (*HTTPError) serviceError() {}

func (e *HTTPError) Error() string {
	if e.Message != nil && *e.Message != "" {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, *e.Message)
	}
	return fmt.Sprintf("API error (status %d)", e.StatusCode)
}

// MessageOr returns the decoded message, or fallback when there is none.
func (e *HTTPError) MessageOr(fallback string) string {
	if e.Message == nil {
		return fallback
	}
	return *e.Message
}

// MetadataString renders metadata as sorted key=value pairs.
func (e *HTTPError) MetadataString() string {
	if len(e.Metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + e.Metadata[k]
	}
	return strings.Join(pairs, " ")
}

// SerializationError is a local failure to encode a request or decode a
// response. Values names the artifact that failed.
type SerializationError struct {
	Values string
	Err    error
}

func (*SerializationError) serviceError() {}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("serialization failed for %s: %v", e.Values, e.Err)
	}
	return fmt.Sprintf("serialization failed for %s", e.Values)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// URLEncodingError reports a path that could not be percent-encoded.
type URLEncodingError struct {
	Path string
}

func (*URLEncodingError) serviceError() {}

func (e *URLEncodingError) Error() string {
	return fmt.Sprintf("failed to percent-encode path %q", e.Path)
}

// TransportError means no usable response was obtained: connection failures,
// timeouts, cancellation, or a body that could not be read.
type TransportError struct {
	Err error
}

func (*TransportError) serviceError() {}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsHTTPError checks if the error is a remote-reported failure.
func IsHTTPError(err error) bool {
	var e *HTTPError
	return errors.As(err, &e)
}

// IsSerializationError checks if the error is a local encode/decode failure.
func IsSerializationError(err error) bool {
	var e *SerializationError
	return errors.As(err, &e)
}

// IsURLEncodingError checks if the error is a path encoding failure.
func IsURLEncodingError(err error) bool {
	var e *URLEncodingError
	return errors.As(err, &e)
}

// IsTransportError checks if the error is a transport failure.
func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsNotFoundError checks if the error indicates a resource was not found.
func IsNotFoundError(err error) bool {
	var e *HTTPError
	if errors.As(err, &e) {
		return e.StatusCode == 404
	}
	return false
}

func stringPtr(s string) *string {
	return &s
}
