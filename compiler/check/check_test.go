package check

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/parser"
	"github.com/robbyt/go-classbody/compiler/scanner"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

func parse(t *testing.T, src string) *ast.CompilationUnit {
	t.Helper()
	unit, err := parser.New(scanner.FromString(src, "test.java")).ParseCompilationUnit()
	require.NoError(t, err)
	return unit
}

func checkSource(t *testing.T, src string, parent *runtime.Loader) (*ast.CompilationUnit, *Info, error) {
	t.Helper()
	unit := parse(t, src)
	info, err := Check(t.Context(), unit, parent)
	return unit, info, err
}

func TestCheckValidUnit(t *testing.T) {
	t.Parallel()

	src := `
package p;
public interface Foo { int bar(int a, int b); }
public class Impl implements Foo {
	private int total;
	static final int LIMIT = 10;
	public int bar(int a, int b) { int s = a + b; total += s; return s; }
	long widen(int x) { return x; }
	String greet(String who) { return "hi " + who + 1; }
}
`
	unit, info, err := checkSource(t, src, nil)
	require.NoError(t, err)
	require.NotNil(t, info.Scratch)

	foo := info.ClassOf[unit.Types[0]]
	impl := info.ClassOf[unit.Types[1]]
	require.NotNil(t, foo)
	require.NotNil(t, impl)
	assert.Equal(t, "p.Foo", foo.Name())
	assert.Equal(t, "p.Impl", impl.Name())
	assert.True(t, impl.IsSubclassOf(foo))
	assert.False(t, impl.IsAbstract())
	assert.True(t, impl.HasZeroArgConstructor())

	decl := unit.Types[1].(*ast.ClassDecl)
	bar := decl.Members[2].(*ast.MethodDecl)
	assert.Equal(t, impl.DeclaredMethod("bar"), info.MethodOf[bar])
	assert.Equal(t, 3, info.Frames[bar])

	ret := bar.Body.Stmts[2].(*ast.ReturnStmt)
	name := ret.X.(*ast.Name)
	require.NotNil(t, info.Names[name])
	require.NotNil(t, info.Names[name].Local)
	assert.Equal(t, "s", info.Names[name].Local.Name)
	assert.Equal(t, 2, info.Names[name].Local.Index)
	assert.Equal(t, runtime.Int, info.TypeOf(name))

	greet := decl.Members[4].(*ast.MethodDecl)
	concat := greet.Body.Stmts[0].(*ast.ReturnStmt).X
	assert.Equal(t, runtime.Type(runtime.StringClass()), info.TypeOf(concat))
}

func TestCheckCalls(t *testing.T) {
	t.Parallel()

	src := `
import static lang.Math.max;
import static lang.Integer.MAX_VALUE;
class A {
	int n;
	double f() { return max(1.0, 2.0); }
	int g() { return Integer.parseInt("12"); }
	int h() { return MAX_VALUE; }
	int k() { return g() + this.n; }
	Object o() { return new A(); }
}
`
	unit, info, err := checkSource(t, src, nil)
	require.NoError(t, err)
	decl := unit.Types[0].(*ast.ClassDecl)

	ret := func(i int) ast.Expr {
		return decl.Members[i].(*ast.MethodDecl).Body.Stmts[0].(*ast.ReturnStmt).X
	}

	call := info.Calls[ret(1)]
	require.NotNil(t, call)
	assert.Equal(t, runtime.MathClassName, call.Method.Owner.Name())
	assert.False(t, call.Implicit)

	parseInt := ret(2).(*ast.MethodCall)
	require.NotNil(t, info.Calls[parseInt])
	assert.Equal(t, runtime.IntegerClassName, info.Calls[parseInt].Method.Owner.Name())
	qualifier := parseInt.X.(*ast.Name)
	assert.True(t, info.Names[qualifier].IsType())

	maxValue := ret(3).(*ast.Name)
	require.Len(t, info.Names[maxValue].Fields, 1)
	assert.Equal(t, "MAX_VALUE", info.Names[maxValue].Fields[0].Name)

	sum := ret(4).(*ast.Binary)
	require.NotNil(t, info.Calls[sum.X])
	assert.True(t, info.Calls[sum.X].Implicit)
	assert.NotNil(t, info.Fields[sum.Y])

	newA := ret(5).(*ast.New)
	assert.NotNil(t, info.News[newA])
}

func TestCheckFinalFieldInConstructor(t *testing.T) {
	t.Parallel()

	_, _, err := checkSource(t, `class A { final int x; A(int v) { x = v; } int f() { while (true) { } } }`, nil)
	require.NoError(t, err)
}

func TestCheckErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing return", `class A { int f() { } }`, "missing return statement"},
		{"unreachable", `class A { void f() { return; int x; } }`, "unreachable statement"},
		{"incompatible return", `class A { int f() { return "s"; } }`, "incompatible types: lang.String cannot be converted to int"},
		{"narrowing", `class A { int f(long x) { return x; } }`, "long cannot be converted to int"},
		{"static context field", `class A { int x; static int f() { return x; } }`, "non-static variable x cannot be referenced from a static context"},
		{"static context this", `class A { static Object f() { return this; } }`, "non-static variable this"},
		{"unknown variable", `class A { int f() { return y; } }`, "cannot find symbol: variable y"},
		{"unknown class", `class A { Missing m; }`, "cannot find class Missing"},
		{"abstract instantiation", `abstract class B { } class A { Object f() { return new B(); } }`, "B is abstract; cannot be instantiated"},
		{"implicitly abstract", `class B { abstract void g(); } class A { Object f() { return new B(); } }`, "B is abstract; cannot be instantiated"},
		{"private field", `class B { private int secret; } class A { int f(B b) { return b.secret; } }`, "secret has private access in B"},
		{"argument types", `class A { int g(int a) { return a; } int f() { return g("x"); } }`, "method g in A cannot be applied to given types; required: int; found: lang.String"},
		{"overloading", `class A { void g() { } void g(int a) { } }`, "overloading is not supported"},
		{"weaker access", `interface I { void run(); } class A implements I { void run() { } }`, "weaker access privileges"},
		{"final override", `class B { final void g() { } } class A extends B { void g() { } }`, "overridden method is final"},
		{"final superclass", `final class B { } class A extends B { }`, "cannot inherit from final B"},
		{"extends interface", `interface I { } class A extends I { }`, "no interface expected here"},
		{"implements class", `class B { } class A implements B { }`, "interface expected here"},
		{"final local", `class A { void f() { final int x = 1; x = 2; } }`, "cannot assign a value to final variable x"},
		{"final field", `class A { final int x = 1; void f() { x = 2; } }`, "cannot assign a value to final variable x"},
		{"condition", `class A { void f() { if (1) { } } }`, "int cannot be converted to boolean"},
		{"break outside loop", `class A { void f() { break; } }`, "break outside switch or loop"},
		{"duplicate local", `class A { void f(int x) { int x = 1; } }`, "variable x is already defined"},
		{"incomparable", `class A { boolean f(String s) { return s == 1; } }`, "incomparable types"},
		{"bad operands", `class A { int f(boolean b) { return b + 1; } }`, "bad operand types for binary operator '+'"},
		{"void value", `class A { void g() { } int f() { return g(); } }`, "'void' type not allowed here"},
		{"unloadable import", `import x.y.Z; class A { }`, `imported class "x.y.Z" could not be loaded`},
		{"cyclic inheritance", `class A extends B { } class B extends A { }`, "invalid type hierarchy"},
		{"duplicate class", `class A { } class A { }`, "duplicate class A"},
		{"return in initializer", `class A { static { return; } }`, "return outside method"},
		{"missing body", `class A { void f(); }`, "missing method body"},
		{"abstract super call", `abstract class B { abstract int g(); } class A extends B { int g() { return super.g(); } }`, "abstract method B.g() cannot be accessed directly"},
		{"uninitialized interface field", `interface I { int X; }`, "interface field X must be initialized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := checkSource(t, tt.src, nil)
			require.Error(t, err)
			require.ErrorIs(t, err, diag.ErrCompile)
			assert.Contains(t, err.Error(), tt.want)

			var de *diag.Error
			require.ErrorAs(t, err, &de)
			require.NotNil(t, de.Loc)
			assert.Equal(t, "test.java", de.Loc.File)
		})
	}
}

func TestCheckOnDemandImports(t *testing.T) {
	t.Parallel()

	parent := runtime.NewLoader(nil)
	_, err := parent.DefineClasses(t.Context(),
		&runtime.ClassDef{Name: "a.X", Mods: runtime.Public},
		&runtime.ClassDef{Name: "b.X", Mods: runtime.Public},
		&runtime.ClassDef{Name: "b.Y", Mods: runtime.Public},
	)
	require.NoError(t, err)

	unit, info, err := checkSource(t, `import a.*; import b.*; class A { Y y; }`, parent)
	require.NoError(t, err)
	field := unit.Types[0].(*ast.ClassDecl).Members[0].(*ast.FieldDecl)
	assert.Equal(t, "b.Y", info.FieldOf[field.Vars[0]].Type.Name())

	_, _, err = checkSource(t, `import a.*; import b.*; class A { X x; }`, parent)
	require.ErrorIs(t, err, diag.ErrCompile)
	assert.Contains(t, err.Error(), "reference to X is ambiguous")

	_, _, err = checkSource(t, `import a.X; import b.*; class A { X x; }`, parent)
	require.NoError(t, err)
}

func TestCheckTypeHandles(t *testing.T) {
	t.Parallel()

	other := runtime.NewLoader(nil)
	classes, err := other.DefineClasses(t.Context(), &runtime.ClassDef{
		Name:         "q.Hidden",
		Mods:         runtime.Public,
		Constructors: []runtime.ConstructorDef{{Mods: runtime.Public}},
	})
	require.NoError(t, err)
	hidden := classes[0]

	unitFor := func() (*ast.CompilationUnit, *ast.ClassDecl) {
		unit := ast.NewCompilationUnit("")
		decl := &ast.ClassDecl{
			Modifiers: ast.Public,
			Name:      "A",
			Extends:   ast.HandleRef(diag.Location{}, hidden),
		}
		unit.AddType(decl)
		return unit, decl
	}

	unit, _ := unitFor()
	_, err = Check(t.Context(), unit, nil)
	require.ErrorIs(t, err, diag.ErrCompile)
	assert.Contains(t, err.Error(), "not visible through the parent loader")

	unit, decl := unitFor()
	info, err := Check(t.Context(), unit, other)
	require.NoError(t, err)
	assert.Same(t, hidden, info.ClassOf[decl].Super())
}

func TestCheckNilUnit(t *testing.T) {
	t.Parallel()

	_, err := Check(t.Context(), nil, nil)
	require.ErrorIs(t, err, diag.ErrInvalidArgument)
}
