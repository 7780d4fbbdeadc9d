package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/youtell/visrec-cli/internal/json"
)

// ErrorCode represents machine-readable error codes for scripted error handling.
type ErrorCode string

const (
	// ErrBadRequest indicates a malformed request (HTTP 400).
	ErrBadRequest ErrorCode = "bad_request"
	// ErrUnauthorized indicates authentication is required or failed (HTTP 401).
	ErrUnauthorized ErrorCode = "unauthorized"
	// ErrForbidden indicates the credentials lack permission (HTTP 403).
	ErrForbidden ErrorCode = "forbidden"
	// ErrNotFound indicates the requested resource does not exist (HTTP 404).
	ErrNotFound ErrorCode = "not_found"
	// ErrConflict indicates a conflict with current state (HTTP 409).
	ErrConflict ErrorCode = "conflict"
	// ErrPayloadTooLarge indicates the upload exceeded the service limit (HTTP 413).
	ErrPayloadTooLarge ErrorCode = "payload_too_large"
	// ErrValidation indicates input validation failed (HTTP 415/422 or local checks).
	ErrValidation ErrorCode = "validation_failed"
	// ErrRateLimited indicates too many requests (HTTP 429).
	ErrRateLimited ErrorCode = "rate_limited"
	// ErrServerError indicates an internal server error (HTTP 5xx).
	ErrServerError ErrorCode = "server_error"
	// ErrTimeout indicates the request timed out.
	ErrTimeout ErrorCode = "timeout"
	// ErrTransport indicates no response was obtained.
	ErrTransport ErrorCode = "transport"
	// ErrSerialization indicates a request or response could not be encoded or decoded.
	ErrSerialization ErrorCode = "serialization"
	// ErrURLEncoding indicates a path could not be percent-encoded.
	ErrURLEncoding ErrorCode = "url_encoding"
	// ErrUnknown indicates an unknown or unclassified error.
	ErrUnknown ErrorCode = "unknown"
)

// IsRetryable returns true if errors with this code may succeed on retry.
func (c ErrorCode) IsRetryable() bool {
	switch c {
	case ErrRateLimited, ErrServerError, ErrTimeout, ErrTransport:
		return true
	default:
		return false
	}
}

// Suggestion returns a human-readable suggestion for resolving this error.
func (c ErrorCode) Suggestion() string {
	switch c {
	case ErrUnauthorized:
		return "Run 'visrec auth login' to authenticate"
	case ErrForbidden:
		return "Check that your API key is valid for this service instance"
	case ErrNotFound:
		return "Verify the classifier ID exists"
	case ErrPayloadTooLarge:
		return "Upload smaller files or split the .zip archive"
	case ErrRateLimited:
		return "Wait a moment and retry"
	case ErrValidation:
		return "Check the input values"
	case ErrBadRequest:
		return "Check the request format and parameters"
	case ErrConflict:
		return "The classifier may still be training; wait and retry"
	case ErrServerError:
		return "The server encountered an error; try again later"
	case ErrTimeout:
		return "The request timed out; increase --timeout or check network connectivity"
	case ErrTransport:
		return "Check network connectivity and the service URL"
	case ErrSerialization:
		return "Check that the input files exist and are readable"
	default:
		return ""
	}
}

// ErrorCodeFromStatus maps an HTTP status code to an ErrorCode.
func ErrorCodeFromStatus(statusCode int) ErrorCode {
	switch statusCode {
	case 400:
		return ErrBadRequest
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 409:
		return ErrConflict
	case 413:
		return ErrPayloadTooLarge
	case 415, 422:
		return ErrValidation
	case 429:
		return ErrRateLimited
	default:
		if statusCode >= 500 && statusCode < 600 {
			return ErrServerError
		}
		return ErrUnknown
	}
}

// StructuredError provides machine-readable error information.
type StructuredError struct {
	Code          ErrorCode      `json:"code"`
	Message       string         `json:"message"`
	Retryable     bool           `json:"retryable"`
	Suggestion    string         `json:"suggestion,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	AllowedValues []string       `json:"allowed_values,omitempty"`
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// MarshalJSON implements custom JSON marshaling.
func (e *StructuredError) MarshalJSON() ([]byte, error) {
	type Alias StructuredError
	return json.Marshal((*Alias)(e))
}

// NewStructuredError creates a StructuredError from an ErrorCode and message.
func NewStructuredError(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:       code,
		Message:    message,
		Retryable:  code.IsRetryable(),
		Suggestion: code.Suggestion(),
	}
}

// NewValidationError creates a StructuredError for input validation failures,
// including the list of allowed values.
func NewValidationError(field string, got string, allowed []string) *StructuredError {
	return &StructuredError{
		Code:          ErrValidation,
		Message:       fmt.Sprintf("invalid %s %q: must be one of %s", field, got, strings.Join(allowed, ", ")),
		Retryable:     false,
		Suggestion:    fmt.Sprintf("Use one of: %s", strings.Join(allowed, ", ")),
		AllowedValues: allowed,
		Context:       map[string]any{"field": field, "got": got},
	}
}

// StructuredErrorFromHTTPError converts an HTTPError to a StructuredError.
func StructuredErrorFromHTTPError(httpErr *HTTPError) *StructuredError {
	code := ErrorCodeFromStatus(httpErr.StatusCode)
	ctx := map[string]any{
		"status_code": httpErr.StatusCode,
	}
	if httpErr.RequestID != "" {
		ctx["request_id"] = httpErr.RequestID
	}
	for k, v := range httpErr.Metadata {
		ctx[k] = v
	}
	return &StructuredError{
		Code:       code,
		Message:    httpErr.Error(),
		Retryable:  code.IsRetryable(),
		Suggestion: code.Suggestion(),
		Context:    ctx,
	}
}

// StructuredErrorFromError attempts to convert any error to a StructuredError.
// It handles StructuredError, every ServiceError variant, and generic errors.
func StructuredErrorFromError(err error) *StructuredError {
	if err == nil {
		return nil
	}

	var se *StructuredError
	if errors.As(err, &se) {
		return se
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return StructuredErrorFromHTTPError(httpErr)
	}

	var serErr *SerializationError
	if errors.As(err, &serErr) {
		s := NewStructuredError(ErrSerialization, serErr.Error())
		s.Context = map[string]any{"values": serErr.Values}
		return s
	}

	var urlErr *URLEncodingError
	if errors.As(err, &urlErr) {
		s := NewStructuredError(ErrURLEncoding, urlErr.Error())
		s.Context = map[string]any{"path": urlErr.Path}
		return s
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if isTimeout(transportErr.Err) {
			return NewStructuredError(ErrTimeout, transportErr.Error())
		}
		return NewStructuredError(ErrTransport, transportErr.Error())
	}

	// Generic error - classify as unknown
	return &StructuredError{
		Code:    ErrUnknown,
		Message: err.Error(),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
