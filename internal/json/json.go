// Package json is a drop-in for the subset of encoding/json used by the API
// client, backed by bytedance/sonic in its standard-library compatible mode.
package json

import (
	stdjson "encoding/json"

	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

type (
	// RawMessage is a raw encoded JSON value.
	RawMessage = stdjson.RawMessage

	// UnmarshalTypeError describes a JSON value that does not fit the target type.
	UnmarshalTypeError = stdjson.UnmarshalTypeError
)

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent is like Marshal but indents the output.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses data into v.
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Valid reports whether data is valid JSON.
func Valid(data []byte) bool {
	return api.Valid(data)
}
