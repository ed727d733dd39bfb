package starlark

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyt/go-classbody/compiler/check"
	"github.com/robbyt/go-classbody/compiler/parser"
	"github.com/robbyt/go-classbody/compiler/scanner"
	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/runtime"
)

func newMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := New(WithLogHandler(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return m
}

func generateSource(t *testing.T, src string, debug classfile.DebugFlags) *classfile.File {
	t.Helper()
	unit, err := parser.New(scanner.FromString(src, "Test.java")).ParseCompilationUnit()
	require.NoError(t, err)
	info, err := check.Check(t.Context(), unit, nil)
	require.NoError(t, err)
	f, err := newMachine(t).Generate(unit, info, debug)
	require.NoError(t, err)
	return f
}

// load compiles src and defines its classes into a fresh loader.
func load(t *testing.T, src string, debug classfile.DebugFlags) *runtime.Loader {
	t.Helper()
	f := generateSource(t, src, debug)
	loader := runtime.NewLoader(nil)
	_, err := newMachine(t).Define(t.Context(), f, loader)
	require.NoError(t, err)
	return loader
}

func newInstance(t *testing.T, loader *runtime.Loader, name string) *runtime.Object {
	t.Helper()
	cls, err := loader.LoadClass(name)
	require.NoError(t, err)
	obj, err := cls.New(t.Context())
	require.NoError(t, err)
	return obj
}

func TestMachineNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		m, err := New()
		require.NoError(t, err)
		assert.NotNil(t, m.logger)
		assert.Equal(t, "starlark", m.Name())
	})

	t.Run("nil handler", func(t *testing.T) {
		_, err := New(WithLogHandler(nil))
		require.Error(t, err)
	})

	t.Run("nil logger", func(t *testing.T) {
		_, err := New(WithLogger(nil))
		require.Error(t, err)
	})

	t.Run("logger", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		m, err := New(WithLogger(logger))
		require.NoError(t, err)
		assert.Equal(t, logger, m.logger)
	})
}

func TestGenerateClassFile(t *testing.T) {
	t.Parallel()

	src := `
package p;
public interface Shape { double area(); }
public class Square implements Shape {
	static int created;
	private double side = 1;
	public Square() { created++; }
	public Square(double s) { side = s; created++; }
	public double area() { return side * side; }
	native int id();
}
`
	f := generateSource(t, src, classfile.DebugAll)
	assert.Equal(t, Name, f.Machine)
	assert.Equal(t, "Test.java", f.SourceFile)
	assert.NotEmpty(t, f.Code)
	assert.NotEmpty(t, f.Lines)
	require.Len(t, f.Classes, 2)

	shape := f.Class("p.Shape")
	require.NotNil(t, shape)
	require.Len(t, shape.Methods, 1)
	assert.Empty(t, shape.Methods[0].Entry)
	assert.Empty(t, shape.Constructors)

	square := f.Class("p.Square")
	require.NotNil(t, square)
	assert.Empty(t, square.Super)
	assert.Equal(t, []string{"p.Shape"}, square.Interfaces)
	assert.Len(t, square.Fields, 2)
	assert.Len(t, square.Constructors, 2)
	assert.NotEmpty(t, square.InstanceInit)
	assert.Empty(t, square.StaticInit)

	area := square.Methods[0]
	assert.Equal(t, "area", area.Name)
	assert.Equal(t, "double", area.Return)
	assert.NotEmpty(t, area.Entry)
	assert.Equal(t, 9, area.Line)
	assert.Empty(t, square.Methods[1].Entry, "native methods have no entry")

	t.Run("without debug information", func(t *testing.T) {
		f := generateSource(t, src, classfile.DebugNone)
		assert.Empty(t, f.SourceFile)
		assert.Empty(t, f.Lines)
		for _, c := range f.Class("p.Square").Constructors {
			assert.Empty(t, c.ParamNames)
		}
	})

	t.Run("survives encoding", func(t *testing.T) {
		b, err := classfile.Marshal(f)
		require.NoError(t, err)
		decoded, err := classfile.Unmarshal(b)
		require.NoError(t, err)

		loader := runtime.NewLoader(nil)
		classes, err := newMachine(t).Define(t.Context(), decoded, loader)
		require.NoError(t, err)
		require.Len(t, classes, 2)

		cls, err := loader.LoadClass("p.Square")
		require.NoError(t, err)
		obj, err := cls.New(t.Context(), 3.0)
		require.NoError(t, err)
		area, err := obj.Invoke(t.Context(), "area")
		require.NoError(t, err)
		assert.Equal(t, 9.0, area)

		created, err := cls.GetStatic(t.Context(), cls.DeclaredField("created"))
		require.NoError(t, err)
		assert.Equal(t, int32(1), created)
	})
}

func TestDefineRejectsBadInput(t *testing.T) {
	t.Parallel()
	m := newMachine(t)
	loader := runtime.NewLoader(nil)

	_, err := m.Define(t.Context(), nil, loader)
	require.Error(t, err)

	_, err = m.Define(t.Context(), &classfile.File{Machine: "wasm"}, loader)
	require.Error(t, err)

	_, err = m.Define(t.Context(), &classfile.File{Machine: Name}, loader)
	require.ErrorIs(t, err, ErrProgramNil)
}

func TestArithmetic(t *testing.T) {
	t.Parallel()

	src := `
public class Calc {
	public int add(int a, int b) { return a + b; }
	public int overflow() { int x = 2147483647; x++; return x; }
	public int negate(int x) { return -x; }
	public int div(int a, int b) { return a / b; }
	public int rem(int a, int b) { return a % b; }
	public long ldiv(long a, long b) { return a / b; }
	public long big() { return 1L << 40; }
	public int ushr(int x, int n) { return x >>> n; }
	public int shl(int x, int n) { return x << n; }
	public double half(int x) { return x / 2.0; }
	public int trunc(double d) { return (int) d; }
	public long ltrunc(double d) { return (long) d; }
	public double ddiv(double a, double b) { return a / b; }
	public boolean nanEq(double d) { return d == d; }
	public int narrow(long l) { return (int) l; }
	public int compound(int x) { x += 2.7; x *= 3; x -= 1; x <<= 1; return x; }
	public int bits(int a, int b) { return (a & b) | (a ^ b); }
	public boolean logic(boolean a, boolean b) { return a & b | !a ^ b; }
	public long mul(long a, long b) { return a * b; }
	public int mixed(int a, long b) { return (int) (a + b); }
}
`
	obj := newInstance(t, load(t, src, classfile.DebugAll), "Calc")

	tests := []struct {
		method string
		args   []any
		want   any
	}{
		{"add", []any{1, 2}, int32(3)},
		{"overflow", nil, int32(math.MinInt32)},
		{"negate", []any{math.MinInt32}, int32(math.MinInt32)},
		{"div", []any{-7, 2}, int32(-3)},
		{"rem", []any{-7, 2}, int32(-1)},
		{"div", []any{math.MinInt32, -1}, int32(math.MinInt32)},
		{"ldiv", []any{int64(math.MinInt64), int64(-1)}, int64(math.MinInt64)},
		{"big", nil, int64(1) << 40},
		{"ushr", []any{-1, 28}, int32(15)},
		{"shl", []any{1, 33}, int32(2)},
		{"half", []any{3}, 1.5},
		{"trunc", []any{3.9}, int32(3)},
		{"trunc", []any{-3.9}, int32(-3)},
		{"trunc", []any{1e20}, int32(math.MaxInt32)},
		{"trunc", []any{math.NaN()}, int32(0)},
		{"ltrunc", []any{-1e30}, int64(math.MinInt64)},
		{"ddiv", []any{1.0, 0.0}, math.Inf(1)},
		{"nanEq", []any{math.NaN()}, false},
		{"nanEq", []any{1.0}, true},
		{"narrow", []any{int64(1) << 32}, int32(0)},
		{"compound", []any{1}, int32(16)},
		{"bits", []any{12, 10}, int32(14)},
		{"logic", []any{true, false}, false},
		{"logic", []any{false, false}, true},
		{"mul", []any{int64(math.MaxInt64), int64(2)}, int64(-2)},
		{"mixed", []any{1, int64(2)}, int32(3)},
	}
	for _, tt := range tests {
		got, err := obj.Invoke(t.Context(), tt.method, tt.args...)
		require.NoError(t, err, tt.method)
		assert.Equal(t, tt.want, got, "%s%v", tt.method, tt.args)
	}
}

func TestStringsAndReferences(t *testing.T) {
	t.Parallel()

	src := `
public class Text {
	String name = "text";
	public String concat() { return "x" + 1 + 2.0 + true + null; }
	public String describe(Object o) { return "value=" + o; }
	public String toString() { return "Text(" + name + ")"; }
	public boolean same(String a, String b) { return a == b; }
	public boolean isText(Object o) { return o instanceof Text; }
	public Text cast(Object o) { return (Text) o; }
	public int len(String s) { return s.length(); }
}
`
	loader := load(t, src, classfile.DebugAll)
	obj := newInstance(t, loader, "Text")
	ctx := t.Context()

	got, err := obj.Invoke(ctx, "concat")
	require.NoError(t, err)
	assert.Equal(t, "x12.0truenull", got)

	got, err = obj.Invoke(ctx, "describe", obj)
	require.NoError(t, err)
	assert.Equal(t, "value=Text(text)", got)

	got, err = obj.Invoke(ctx, "same", "ab", "ab")
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = obj.Invoke(ctx, "isText", obj)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = obj.Invoke(ctx, "isText", "text")
	require.NoError(t, err)
	assert.Equal(t, false, got)

	got, err = obj.Invoke(ctx, "cast", nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = obj.Invoke(ctx, "cast", "text")
	require.ErrorIs(t, err, runtime.ErrClassCast)

	_, err = obj.Invoke(ctx, "len", nil)
	require.ErrorIs(t, err, runtime.ErrNullPointer)

	got, err = obj.Invoke(ctx, "len", "héllo")
	require.NoError(t, err)
	assert.Equal(t, int32(5), got)
}

func TestControlFlow(t *testing.T) {
	t.Parallel()

	src := `
public class Flow {
	public int sumEven(int n) {
		int s = 0;
		for (int i = 0; i <= n; i++) {
			if (i % 2 != 0) continue;
			s += i;
		}
		return s;
	}
	public int countDown(int n) {
		int steps = 0;
		do { n--; steps++; } while (n > 0);
		return steps;
	}
	public int firstSquareAbove(int limit) {
		int i = 0;
		while (true) {
			if (i * i > limit) break;
			i++;
		}
		return i;
	}
	public int fib(int n) { return n < 2 ? n : fib(n - 1) + fib(n - 2); }
	public int nested() {
		int c = 0;
		for (int i = 0; i < 3; i++) for (int j = 0; j < 3; j++) { if (j == 2) break; c++; }
		return c;
	}
	public int forever() { for (;;) { } }
	public int sign(int x) { if (x > 0) return 1; else if (x < 0) return -1; else return 0; }
}
`
	obj := newInstance(t, load(t, src, classfile.DebugAll), "Flow")
	ctx := t.Context()

	tests := []struct {
		method string
		args   []any
		want   any
	}{
		{"sumEven", []any{10}, int32(30)},
		{"countDown", []any{0}, int32(1)},
		{"countDown", []any{5}, int32(5)},
		{"firstSquareAbove", []any{10}, int32(4)},
		{"fib", []any{15}, int32(610)},
		{"nested", nil, int32(6)},
		{"sign", []any{-5}, int32(-1)},
		{"sign", []any{0}, int32(0)},
	}
	for _, tt := range tests {
		got, err := obj.Invoke(ctx, tt.method, tt.args...)
		require.NoError(t, err, tt.method)
		assert.Equal(t, tt.want, got, "%s%v", tt.method, tt.args)
	}

	t.Run("cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()
		_, err := obj.Invoke(ctx, "forever")
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestClassesAndFields(t *testing.T) {
	t.Parallel()

	src := `
package q;
import static lang.Integer.max;
public class Counter {
	static int instances;
	static final int START = 10;
	static { instances = 0; }
	int value = START;
	private int hidden() { return 1; }
	public Counter() { instances++; }
	public Counter(int v) { instances++; value = v; }
	public int next() { return value++; }
	public int peek() { return value; }
	public static int created() { return instances; }
	public int bigger(int x) { return max(value, x) + hidden(); }
}
public class Sub extends Counter {
	public int next() { return super.next() * 100; }
}
public class Use {
	public int run() {
		Counter c = new Sub();
		c.next();
		c.value += 5;
		return c.next() + Counter.created();
	}
}
`
	loader := load(t, src, classfile.DebugAll)
	ctx := t.Context()

	counter, err := loader.LoadClass("q.Counter")
	require.NoError(t, err)
	c, err := counter.New(ctx)
	require.NoError(t, err)

	got, err := c.Invoke(ctx, "next")
	require.NoError(t, err)
	assert.Equal(t, int32(10), got)
	got, err = c.Invoke(ctx, "peek")
	require.NoError(t, err)
	assert.Equal(t, int32(11), got)
	got, err = c.Invoke(ctx, "bigger", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(12), got)

	other, err := counter.New(ctx, int32(7))
	require.NoError(t, err)
	got, err = other.Invoke(ctx, "peek")
	require.NoError(t, err)
	assert.Equal(t, int32(7), got)

	use := newInstance(t, loader, "q.Use")
	got, err = use.Invoke(ctx, "run")
	require.NoError(t, err)
	// Sub: next returns 10*100, value becomes 11, +5 = 16, next returns 1600; three
	// constructions so far.
	assert.Equal(t, int32(1603), got)
}

func TestRuntimeErrorsCarrySourceLines(t *testing.T) {
	t.Parallel()

	src := `public class Boom {
	public int div(int a, int b) {
		int q = a / b;
		return q;
	}
	public int outer() {
		return div(1, 0);
	}
}
`
	t.Run("with line table", func(t *testing.T) {
		obj := newInstance(t, load(t, src, classfile.DebugAll), "Boom")
		_, err := obj.Invoke(t.Context(), "outer")
		require.ErrorIs(t, err, runtime.ErrArithmetic)

		var le *LineError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, 3, le.Line)
		assert.Equal(t, "Test.java", le.File)
		assert.Contains(t, err.Error(), "Test.java:3")
	})

	t.Run("without line table", func(t *testing.T) {
		obj := newInstance(t, load(t, src, classfile.DebugNone), "Boom")
		_, err := obj.Invoke(t.Context(), "div", 1, 0)
		require.ErrorIs(t, err, runtime.ErrArithmetic)

		var le *LineError
		assert.False(t, errors.As(err, &le))
	})
}
