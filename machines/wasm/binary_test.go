package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
)

func TestAppendS64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{-1, []byte{0x7f}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-64, []byte{0x40}},
		{-65, []byte{0xbf, 0x7f}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, appendS64(nil, tt.in), "%d", tt.in)
	}
}

func TestEncodeLocals(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0}, encodeLocals(nil))
	assert.Equal(t,
		[]byte{3, 2, byte(i32), 1, byte(f64), 1, byte(i32)},
		encodeLocals([]valType{i32, i32, f64, i32}))
}

func TestModuleNames(t *testing.T) {
	t.Parallel()

	m := &module{}
	assert.Equal(t, int32(0), m.name("p.A"))
	assert.Equal(t, int32(1), m.name("value"))
	assert.Equal(t, int32(0), m.name("p.A"))

	names, ok := decodeNames(encodeNames(m.names))
	require.True(t, ok)
	assert.Equal(t, []string{"p.A", "value"}, names)

	empty := encodeNames(nil)
	assert.Equal(t, []byte{0}, empty)
	names, ok = decodeNames(empty)
	require.True(t, ok)
	assert.Empty(t, names)

	for _, bad := range [][]byte{nil, {1, 5, 'a'}, {2, 1, 'a'}, {0, 'x'}} {
		_, ok = decodeNames(bad)
		assert.False(t, ok, "%v", bad)
	}
}

func TestEncodedModulesCompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(m *module)
		want  []string
	}{
		{
			name:  "no names",
			build: func(m *module) {},
			want:  []string{},
		},
		{
			name: "function and names",
			build: func(m *module) {
				m.addImport("poll", funcType{})
				_, f := m.addFunc("one", funcType{results: []valType{i32}})
				f.code = appendS64([]byte{opI32Const}, 1)
				m.name("p.A")
			},
			want: []string{"p.A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := t.Context()
			m := &module{}
			tt.build(m)

			rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter().WithCustomSections(true))
			defer func() { require.NoError(t, rt.Close(ctx)) }()
			compiled, err := rt.CompileModule(ctx, m.encode())
			require.NoError(t, err)

			names, err := nameTable(compiled)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestModuleTypesAreShared(t *testing.T) {
	t.Parallel()

	m := &module{}
	sig := funcType{params: []valType{i32}, results: []valType{i64}}
	m.addImport("a", sig)
	m.addImport("b", funcType{})
	idx, _ := m.addFunc("f", funcType{params: []valType{i32}, results: []valType{i64}})
	assert.Len(t, m.types, 2)
	assert.Equal(t, 2, idx)
	assert.Equal(t, moduleMagicVersion, string(m.encode()[:8]))
}

func TestHostFunctionsAreUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, h := range hostFuncs {
		assert.False(t, seen[h.name], h.name)
		seen[h.name] = true
	}
	assert.Equal(t, 0, hostIndex(hostFuncs[0].name))
	assert.Panics(t, func() { hostIndex("missing") })
}
