package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/tidwall/gjson"

	"github.com/youtell/visrec-cli/internal/json"
)

// Decoder turns the body of a 2xx response into a result value. A returned
// error that is not already a ServiceError is reported as a SerializationError
// naming T.
type Decoder[T any] func(body []byte, header http.Header) (T, error)

var errEmptyBody = errors.New("empty response body")

// JSON decodes the body into T. Unknown fields are ignored. The body must be
// a JSON object or array; null, scalars and values that do not fit T fail,
// and no partial value is kept.
func JSON[T any]() Decoder[T] {
	return func(body []byte, _ http.Header) (T, error) {
		var value T
		if len(body) == 0 {
			return value, errEmptyBody
		}
		root := gjson.ParseBytes(body)
		if !root.IsObject() && !root.IsArray() {
			return value, fmt.Errorf("expected a JSON object or array, got %s", describeJSON(root))
		}
		if err := json.Unmarshal(body, &value); err != nil {
			var zero T
			return zero, err
		}
		return value, nil
	}
}

// Raw passes the body through unchanged.
func Raw() Decoder[[]byte] {
	return func(body []byte, _ http.Header) ([]byte, error) {
		if body == nil {
			return []byte{}, nil
		}
		return body, nil
	}
}

// NoContent ignores the body.
func NoContent() Decoder[struct{}] {
	return func([]byte, http.Header) (struct{}, error) {
		return struct{}{}, nil
	}
}

func describeJSON(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		if r.Raw == "" {
			return "no value"
		}
		return "null"
	case gjson.False, gjson.True:
		return "a boolean"
	case gjson.Number:
		return "a number"
	case gjson.String:
		return "a string"
	default:
		return "invalid JSON"
	}
}

func shapeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
