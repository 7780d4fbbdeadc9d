package outfmt

import (
	"context"

	"github.com/youtell/visrec-cli/internal/filter"
)

type queryKey struct{}

// WithQuery adds a jq query to the context
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

// GetQuery retrieves the jq query from context
func GetQuery(ctx context.Context) string {
	if q, ok := ctx.Value(queryKey{}).(string); ok {
		return q
	}
	return ""
}

// ApplyQuery applies a jq query to structured data and returns the filtered
// value in generic JSON form.
func ApplyQuery(v any, query string) (any, error) {
	generic, err := toGeneric(v)
	if err != nil {
		return nil, err
	}
	return filter.Apply(generic, query)
}
