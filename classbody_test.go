package classbody

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyt/go-classbody/compiler/parser"
	"github.com/robbyt/go-classbody/compiler/scanner"
	"github.com/robbyt/go-classbody/machines/types"
	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/platform/script/loader"
	"github.com/robbyt/go-classbody/runtime"
)

func quietHandler() slog.Handler {
	return slog.NewTextHandler(io.Discard, nil)
}

func newEvaluator(t *testing.T, opts ...Option) *ClassBodyEvaluator {
	t.Helper()
	e, err := New(append([]Option{WithLogHandler(quietHandler())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, e.Close(context.Background())) })
	return e
}

// declare compiles a complete unit and returns the loader holding its classes.
func declare(t *testing.T, src string) *runtime.Loader {
	t.Helper()
	sc, err := NewSimpleCompiler(WithLogHandler(quietHandler()))
	require.NoError(t, err)
	require.NoError(t, sc.CookString(t.Context(), src))
	t.Cleanup(func() { assert.NoError(t, sc.Close(context.Background())) })
	return sc.Loader()
}

func loadClass(t *testing.T, l *runtime.Loader, name string) *runtime.Class {
	t.Helper()
	cls, err := l.LoadClass(name)
	require.NoError(t, err)
	return cls
}

const fooSource = `
package p;

public interface Foo {
    int bar(int a, int b);
}
`

func TestNew(t *testing.T) {
	t.Parallel()

	e := newEvaluator(t)
	assert.Equal(t, DefaultClassName, e.className)
	assert.NotNil(t, e.implementedTypes)
	assert.Empty(t, e.implementedTypes)
	assert.Nil(t, e.extendedType)
	assert.Nil(t, e.defaultImports)
	assert.Nil(t, e.Loader())
	assert.Equal(t, "classbody.ClassBodyEvaluator{SC}", e.String())

	_, err := New(WithMachine("risor"))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSettersFailAfterCook(t *testing.T) {
	t.Parallel()

	setters := map[string]func(e *ClassBodyEvaluator) error{
		"class name":       func(e *ClassBodyEvaluator) error { return e.SetClassName("X") },
		"extended class":   func(e *ClassBodyEvaluator) error { return e.SetExtendedClass(nil) },
		"interfaces":       func(e *ClassBodyEvaluator) error { return e.SetImplementedInterfaces([]runtime.Type{}) },
		"default imports":  func(e *ClassBodyEvaluator) error { return e.SetDefaultImports([]string{"lang.*"}) },
		"parent loader":    func(e *ClassBodyEvaluator) error { return e.SetParentLoader(nil) },
		"machine":          func(e *ClassBodyEvaluator) error { return e.SetMachine(types.WASM) },
		"debugging":        func(e *ClassBodyEvaluator) error { return e.SetDebuggingInformation(classfile.DebugAll) },
		"extended type":    func(e *ClassBodyEvaluator) error { return e.SetExtendedType(nil) },
		"implemented type": func(e *ClassBodyEvaluator) error { return e.SetImplementedTypes([]runtime.Type{}) },
		"settings":         func(e *ClassBodyEvaluator) error { return e.Configure(&Settings{ClassName: "Y"}) },
	}
	bodies := map[string]string{
		"successful cook": "public int one() { return 1; }",
		"failed cook":     "public int one() { return true; }",
		"syntax error":    "public int one( {",
	}

	for setterName, set := range setters {
		for bodyName, body := range bodies {
			t.Run(setterName+"/"+bodyName, func(t *testing.T) {
				t.Parallel()
				e := newEvaluator(t)
				require.NoError(t, set(e), "setter must succeed before cooking")
				_ = e.CookString(t.Context(), body)
				require.ErrorIs(t, set(e), ErrIllegalState)
			})
		}
	}
}

func TestSetterArguments(t *testing.T) {
	t.Parallel()

	e := newEvaluator(t)
	err := e.SetClassName("")
	require.ErrorIs(t, err, ErrInvalidArgument)

	err = e.SetImplementedInterfaces(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.EqualError(t, err, "zero implemented types must be specified as an empty slice, not nil")

	err = e.SetMachine("risor")
	require.ErrorIs(t, err, ErrInvalidArgument)

	for _, ts := range [][]runtime.Type{{nil}, {runtime.ObjectClass(), nil}, {(*runtime.Class)(nil)}} {
		err = e.SetImplementedInterfaces(ts)
		require.ErrorIs(t, err, ErrInvalidArgument)
		assert.Contains(t, err.Error(), "is nil")
	}
	assert.Empty(t, e.implementedTypes, "rejected slices are not stored")

	// argument checks run before the lifecycle check
	require.NoError(t, e.CookString(t.Context(), ""))
	require.ErrorIs(t, e.SetClassName(""), ErrInvalidArgument)
	require.ErrorIs(t, e.SetImplementedInterfaces(nil), ErrInvalidArgument)
}

func TestSettersCopyArguments(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	parent := declare(t, fooSource)
	foo := loadClass(t, parent, "p.Foo")

	e := newEvaluator(t)
	require.NoError(t, e.SetParentLoader(parent))

	ifs := []runtime.Type{foo}
	require.NoError(t, e.SetImplementedInterfaces(ifs))
	ifs[0] = runtime.ObjectClass()

	imports := []string{"static lang.Math.*"}
	require.NoError(t, e.SetDefaultImports(imports))
	imports[0] = "lang.Missing"

	assert.Equal(t, []runtime.Type{foo}, e.implementedTypes)
	assert.Equal(t, []string{"static lang.Math.*"}, e.defaultImports)

	require.NoError(t, e.CookString(ctx, "public int bar(int a, int b) { return (int) max(a, b); }"))
	cls, err := e.ResultType()
	require.NoError(t, err)
	assert.Equal(t, []*runtime.Class{foo}, cls.Interfaces())
}

func TestMakeCompilationUnitImportOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		defaults []string
		source   string
		want     []string
	}{
		{
			name:   "source only",
			source: "import lang.Integer; import static lang.Math.max; int x;",
			want:   []string{"import lang.Integer;", "import static lang.Math.max;"},
		},
		{
			name:     "defaults only",
			defaults: []string{"lang.*", "static lang.Integer.*"},
			source:   "int x;",
			want:     []string{"import lang.*;", "import static lang.Integer.*;"},
		},
		{
			name:     "defaults first",
			defaults: []string{"static lang.Math.*", "lang.String"},
			source:   "import lang.Integer;\nimport static lang.Integer.parseInt;\nint x;",
			want: []string{
				"import static lang.Math.*;",
				"import lang.String;",
				"import lang.Integer;",
				"import static lang.Integer.parseInt;",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEvaluator(t)
			require.NoError(t, e.SetDefaultImports(tt.defaults))
			src := scanner.FromString(tt.source, "Body.java")

			unit, err := e.makeCompilationUnit(src)
			require.NoError(t, err)
			assert.Equal(t, "Body.java", unit.Origin)
			got := make([]string, len(unit.Imports))
			for i, imp := range unit.Imports {
				got[i] = imp.String()
			}
			assert.Equal(t, tt.want, got)
			assert.True(t, src.Peek().IsKeyword("int"), "member tokens must be left unread")
		})
	}

	t.Run("no token source", func(t *testing.T) {
		t.Parallel()
		e := newEvaluator(t)
		require.NoError(t, e.SetDefaultImports([]string{"lang.*"}))
		unit, err := e.makeCompilationUnit(nil)
		require.NoError(t, err)
		assert.Empty(t, unit.Origin)
		assert.Len(t, unit.Imports, 1)
	})
}

func TestMalformedDefaultImport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		imp     string
		message string
	}{
		{"trailing semicolon", "lang.Math.*; junk", `unexpected token ";" in default import "lang.Math.*; junk"`},
		{"trailing name", "lang.Integer Integer", `unexpected token "Integer" in default import "lang.Integer Integer"`},
		{"not an import", "42", "identifier expected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEvaluator(t)
			require.NoError(t, e.SetDefaultImports([]string{"lang.*", tt.imp}))
			src := scanner.FromString("public int one() { return 1; }", "")

			err := e.Cook(t.Context(), src)
			require.ErrorIs(t, err, ErrSyntax)
			assert.Contains(t, err.Error(), tt.message)
			assert.True(t, src.Peek().IsKeyword("public"), "no body token may be consumed")

			_, err = e.ResultType()
			require.ErrorIs(t, err, ErrIllegalState)
		})
	}
}

func TestAddWrappingDeclaration(t *testing.T) {
	t.Parallel()
	foo := loadClass(t, declare(t, fooSource), "p.Foo")

	tests := []struct {
		name       string
		className  string
		wantPkg    string
		wantSimple string
	}{
		{"qualified", "a.b.C", "a.b", "C"},
		{"simple", "C", "", "C"},
		{"one level", "calc.Adder", "calc", "Adder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEvaluator(t)
			require.NoError(t, e.SetClassName(tt.className))
			require.NoError(t, e.SetImplementedInterfaces([]runtime.Type{foo}))
			unit, err := e.makeCompilationUnit(nil)
			require.NoError(t, err)

			loc := diag.Location{File: "x", Line: 3, Column: 1}
			decl, err := e.addWrappingDeclaration(loc, unit)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPkg, unit.PackageName())
			assert.Equal(t, tt.wantSimple, decl.Name)
			assert.True(t, decl.Modifiers.Has(runtime.Public))
			assert.Nil(t, decl.Extends)
			require.Len(t, decl.Implements, 1)
			assert.Equal(t, runtime.Type(foo), decl.Implements[0].Handle)
			assert.Equal(t, loc, decl.Location())
			require.Len(t, unit.Types, 1)
			assert.Same(t, decl, unit.Types[0])
		})
	}

	t.Run("empty simple name", func(t *testing.T) {
		t.Parallel()
		e := newEvaluator(t)
		require.NoError(t, e.SetClassName("a.b."))
		unit, err := e.makeCompilationUnit(nil)
		require.NoError(t, err)
		_, err = e.addWrappingDeclaration(diag.Location{}, unit)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestCookImplementsInterface(t *testing.T) {
	t.Parallel()
	parent := declare(t, fooSource)
	foo := loadClass(t, parent, "p.Foo")

	for _, mt := range types.Types {
		t.Run(mt.String(), func(t *testing.T) {
			t.Parallel()
			ctx := t.Context()
			e := newEvaluator(t, WithMachine(mt), WithParentLoader(parent))
			require.NoError(t, e.SetImplementedInterfaces([]runtime.Type{foo}))

			obj, err := e.CreateInstanceFromString(ctx, "public int bar(int a, int b) { return a + b; }")
			require.NoError(t, err)
			assert.True(t, runtime.IsInstance(obj, foo))

			v, err := obj.Invoke(ctx, "bar", 1, 2)
			require.NoError(t, err)
			assert.Equal(t, int32(3), v)
		})
	}
}

func TestResultType(t *testing.T) {
	t.Parallel()

	e := newEvaluator(t)
	_, err := e.ResultType()
	require.ErrorIs(t, err, ErrIllegalState)

	require.NoError(t, e.SetClassName("a.b.C"))
	require.NoError(t, e.CookString(t.Context(), "public int one() { return 1; }"))
	cls, err := e.ResultType()
	require.NoError(t, err)
	require.NotNil(t, cls)
	assert.Equal(t, "a.b.C", cls.Name())
	assert.Same(t, e.Loader(), cls.Loader())

	clazz, err := e.GetClazz()
	require.NoError(t, err)
	assert.Same(t, cls, clazz)

	base, err := NewBase(WithLogHandler(quietHandler()))
	require.NoError(t, err)
	require.NoError(t, base.CookString(t.Context(), "int x;"))
	_, err = base.ResultType()
	require.ErrorIs(t, err, ErrIllegalState)
	require.NoError(t, base.Close(t.Context()))
}

func TestRecookFails(t *testing.T) {
	t.Parallel()

	e := newEvaluator(t)
	require.NoError(t, e.CookString(t.Context(), "public int one() { return 1; }"))
	first, err := e.ResultType()
	require.NoError(t, err)

	err = e.CookString(t.Context(), "public int two() { return 2; }")
	require.ErrorIs(t, err, ErrIllegalState)
	_, err = e.CreateInstanceFromString(t.Context(), "")
	require.ErrorIs(t, err, ErrIllegalState)

	again, err := e.ResultType()
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.NotNil(t, first.LookupMethod("one"))
	assert.Nil(t, first.LookupMethod("two"))
}

func TestCookImportsAndMembers(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	e := newEvaluator(t)
	require.NoError(t, e.SetClassName("calc.Calc"))
	require.NoError(t, e.SetDefaultImports([]string{"static lang.Integer.*"}))
	body := `
import static lang.Math.sqrt;

private int count;
private static int instances = 0;

{ count = 10; }

static { instances = 100; }

public Calc() { instances++; }

public int bigger(int a, int b) { return max(a, b) + count; }

public String parse(String s) { return "n=" + (parseInt(s) * 2); }

public double root(double d) { return sqrt(d); }

public static int created() { return instances; }
`
	obj, err := e.CreateInstanceFromString(ctx, body)
	require.NoError(t, err)

	v, err := obj.Invoke(ctx, "bigger", 3, 4)
	require.NoError(t, err)
	assert.Equal(t, int32(14), v)

	v, err = obj.Invoke(ctx, "parse", "21")
	require.NoError(t, err)
	assert.Equal(t, "n=42", v)

	v, err = obj.Invoke(ctx, "root", 16.0)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, 0)

	v, err = obj.Class().InvokeStatic(ctx, "created")
	require.NoError(t, err)
	assert.Equal(t, int32(101), v)
}

func TestCookErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		kind    error
		message string
	}{
		{"type mismatch", "public int one() { return true; }", ErrCompile, "File <Body>, Line 1"},
		{"unknown name", "public int one() { return nope; }", ErrCompile, "cannot find symbol: variable nope"},
		{"syntax", "public int one() { return 1 }", ErrSyntax, "File <Body>, Line 1"},
		{"member type", "class Inner {}", ErrSyntax, "member type declarations are not supported"},
		{"illegal character", "int x = #;", ErrSyntax, "File <Body>, Line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEvaluator(t)
			err := e.CookReader(t.Context(), "<Body>", strings.NewReader(tt.body))
			require.ErrorIs(t, err, tt.kind)
			assert.Contains(t, err.Error(), tt.message)
			assert.Nil(t, e.Loader(), "nothing may be defined by a failed cook")
		})
	}
}

func TestCompileToTypeMissingClass(t *testing.T) {
	t.Parallel()

	e := newEvaluator(t)
	unit, err := parser.New(scanner.FromString("public class Other {}", "")).ParseCompilationUnit()
	require.NoError(t, err)
	_, err = e.compileToType(t.Context(), unit, classfile.DebugAll, "Missing")
	require.ErrorIs(t, err, ErrInternal)
	require.ErrorIs(t, err, runtime.ErrClassNotFound)
	assert.Contains(t, err.Error(), "generated compilation unit does not declare class Missing")
}

func TestCreateInstanceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		cause   error
		message string
	}{
		{
			name:    "abstract",
			body:    "public abstract int f();",
			cause:   runtime.ErrInstantiation,
			message: "class is abstract, an interface, an array class, a primitive type, or void; or has no zero-parameter constructor",
		},
		{
			name:    "no zero-parameter constructor",
			body:    "public SC(int x) {}",
			cause:   runtime.ErrInstantiation,
			message: "class is abstract, an interface, an array class, a primitive type, or void; or has no zero-parameter constructor",
		},
		{
			name:    "private constructor",
			body:    "private SC() {}",
			cause:   runtime.ErrIllegalAccess,
			message: "the class or its zero-parameter constructor is not accessible",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEvaluator(t)
			_, err := e.CreateInstanceFromString(t.Context(), tt.body)
			require.ErrorIs(t, err, ErrCompile)
			require.ErrorIs(t, err, tt.cause)
			assert.Contains(t, err.Error(), tt.message)

			cls, err := e.ResultType()
			require.NoError(t, err, "the class is loaded even though it cannot be instantiated")
			assert.Equal(t, DefaultClassName, cls.Name())
		})
	}
}

func TestCookFromLoader(t *testing.T) {
	t.Parallel()

	l, err := loader.NewFromString("public String hello() { return \"hi\"; }")
	require.NoError(t, err)
	e := newEvaluator(t)
	obj, err := e.CreateInstanceFromLoader(t.Context(), l)
	require.NoError(t, err)
	v, err := obj.Invoke(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", v)

	bad, err := loader.NewFromString("public int broken() { return x; }")
	require.NoError(t, err)
	e = newEvaluator(t)
	err = e.CookLoader(t.Context(), bad)
	require.ErrorIs(t, err, ErrCompile)
	assert.Contains(t, err.Error(), bad.GetSourceURL().String())

	e = newEvaluator(t)
	require.ErrorIs(t, e.CookLoader(t.Context(), nil), ErrInvalidArgument)
	require.ErrorIs(t, e.Cook(t.Context(), nil), ErrInvalidArgument)
}

func TestCookFromHTTP(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Calc.body" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "public int answer() { return 42; }")
	}))
	t.Cleanup(srv.Close)

	l, err := loader.NewFromHTTP(srv.URL + "/Calc.body")
	require.NoError(t, err)
	obj, err := newEvaluator(t).CreateInstanceFromLoader(t.Context(), l)
	require.NoError(t, err)
	v, err := obj.Invoke(t.Context(), "answer")
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	missing, err := loader.NewFromHTTP(srv.URL + "/Other.body")
	require.NoError(t, err)
	err = newEvaluator(t).CookLoader(t.Context(), missing)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorIs(t, err, loader.ErrSourceNotAvailable)
}

func TestNewCooked(t *testing.T) {
	t.Parallel()

	e, err := NewCooked(t.Context(), "public int one() { return 1; }", WithLogHandler(quietHandler()))
	require.NoError(t, err)
	cls, err := e.ResultType()
	require.NoError(t, err)
	assert.NotNil(t, cls.LookupMethod("one"))
	require.NoError(t, e.Close(t.Context()))

	_, err = NewCooked(t.Context(), "int", WithLogHandler(quietHandler()))
	require.ErrorIs(t, err, ErrSyntax)
}
