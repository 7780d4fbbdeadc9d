package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMarshalUnmarshal(t *testing.T) {
	data, err := Marshal(sample{Name: "dog", Score: 0.9})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"dog","score":0.9}`, string(data))

	var out sample
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, sample{Name: "dog", Score: 0.9}, out)
}

func TestUnmarshal_TypeMismatch(t *testing.T) {
	var out sample
	err := Unmarshal([]byte(`{"name":42}`), &out)
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid([]byte(`{"a":[1,2]}`)))
	assert.False(t, Valid([]byte(`{"a":`)))
	assert.False(t, Valid([]byte(`<html>`)))
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(map[string]int{"a": 1}, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(data))
}
