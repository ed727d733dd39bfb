package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Type
	}{
		{"", Starlark},
		{"starlark", Starlark},
		{"Starlark", Starlark},
		{"WASM", WASM},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := Parse("risor")
	require.Error(t, err)
}

func TestString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "starlark", Type("").String())
	assert.Equal(t, "wasm", WASM.String())
}
