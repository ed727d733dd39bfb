package machines

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/check"
	"github.com/robbyt/go-classbody/compiler/parser"
	"github.com/robbyt/go-classbody/compiler/scanner"
	"github.com/robbyt/go-classbody/machines/types"
	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

const adderSource = `
package m;

public class Adder {
    private int base;

    public Adder() { base = 40; }

    public int add(int n) { return base + n; }

    public static long twice(long v) { return v * 2; }
}
`

func checked(t *testing.T, src string) (*ast.CompilationUnit, *check.Info) {
	t.Helper()
	unit, err := parser.New(scanner.FromString(src, "Adder.java")).ParseCompilationUnit()
	require.NoError(t, err)
	info, err := check.Check(t.Context(), unit, nil)
	require.NoError(t, err)
	return unit, info
}

func TestGenerateAndDefine(t *testing.T) {
	t.Parallel()
	handler := slog.NewTextHandler(io.Discard, nil)

	for _, mt := range types.Types {
		t.Run(mt.String(), func(t *testing.T) {
			t.Parallel()
			ctx := t.Context()
			unit, info := checked(t, adderSource)

			b, err := Generate(ctx, handler, unit, info, classfile.DebugAll, mt)
			require.NoError(t, err)
			names, err := Names(b)
			require.NoError(t, err)
			assert.Equal(t, []string{"m.Adder"}, names)

			loader := runtime.NewLoader(nil)
			classes, err := Define(ctx, handler, b, loader)
			require.NoError(t, err)
			require.Len(t, classes, 1)

			obj, err := classes[0].Instantiate(ctx)
			require.NoError(t, err)
			v, err := obj.Invoke(ctx, "add", 2)
			require.NoError(t, err)
			assert.Equal(t, int32(42), v)

			v, err = classes[0].InvokeStatic(ctx, "twice", int64(21))
			require.NoError(t, err)
			assert.Equal(t, int64(42), v)

			require.NoError(t, loader.Close(ctx))
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	m, err := New(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "starlark", m.Name())

	m, err = New(nil, types.WASM)
	require.NoError(t, err)
	assert.Equal(t, "wasm", m.Name())

	_, err = New(nil, types.Type("risor"))
	require.ErrorIs(t, err, diag.ErrInvalidArgument)
}

func TestDefineErrors(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	_, err := Define(ctx, nil, nil, nil)
	require.ErrorIs(t, err, diag.ErrInvalidArgument)

	_, err = Define(ctx, nil, []byte{0xff, 0xff}, runtime.NewLoader(nil))
	require.ErrorIs(t, err, diag.ErrInternal)

	b, err := classfile.Marshal(&classfile.File{Machine: "risor"})
	require.NoError(t, err)
	_, err = Define(ctx, nil, b, runtime.NewLoader(nil))
	require.ErrorIs(t, err, diag.ErrInvalidArgument)

	_, err = Names([]byte{0xff})
	require.Error(t, err)
}
