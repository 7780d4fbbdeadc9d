package outfmt

import (
	"reflect"

	"github.com/youtell/visrec-cli/internal/json"
)

// normalizeJSONOutput turns nil slices into empty ones so that list output
// is always an array and never null.
func normalizeJSONOutput(v any) any {
	if v == nil {
		return v
	}
	switch v.(type) {
	case []byte, json.RawMessage:
		return v
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.IsNil() && rv.Type().Elem().Kind() != reflect.Uint8 {
		return []any{}
	}
	return v
}

// toGeneric round-trips v through JSON so that queries and templates see
// the same keys as JSON output.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(normalizeJSONOutput(v))
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
