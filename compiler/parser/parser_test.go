package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/scanner"
	"github.com/robbyt/go-classbody/platform/diag"
)

func parserFor(src string) *Parser {
	return New(scanner.FromString(src, "test.java"))
}

func parseExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	p := parserFor(src)
	x, err := p.ParseExpression()
	require.NoError(t, err)
	require.True(t, p.peek().IsEOF(), "trailing tokens after %q", src)
	return x
}

func TestParseCompilationUnit(t *testing.T) {
	t.Parallel()

	src := `
package com.example;
import java.util.*;
import static lang.Math.max;
public interface Foo { int bar(int a, int b); int LIMIT = 3; }
class Impl extends Base implements Foo, Other {
	private int count;
	Impl(int start) { count = start; }
	public int bar(int a, int b) { return a + b; }
	static { }
}
`
	unit, err := parserFor(src).ParseCompilationUnit()
	require.NoError(t, err)

	assert.Equal(t, "test.java", unit.Origin)
	assert.Equal(t, "com.example", unit.PackageName())
	require.Len(t, unit.Imports, 2)
	assert.Equal(t, "import java.util.*;", unit.Imports[0].String())
	assert.Equal(t, "import static lang.Math.max;", unit.Imports[1].String())

	require.Len(t, unit.Types, 2)
	foo, ok := unit.Types[0].(*ast.InterfaceDecl)
	require.True(t, ok)
	assert.Equal(t, "Foo", foo.Name)
	require.Len(t, foo.Members, 2)
	bar := foo.Members[0].(*ast.MethodDecl)
	assert.Nil(t, bar.Body)
	assert.True(t, bar.Modifiers.Has(ast.Abstract))
	assert.True(t, bar.Modifiers.Has(ast.Public))
	limit := foo.Members[1].(*ast.FieldDecl)
	assert.True(t, limit.Modifiers.Has(ast.Static|ast.Final))

	impl, ok := unit.Types[1].(*ast.ClassDecl)
	require.True(t, ok)
	assert.Equal(t, "Base", impl.Extends.Name)
	require.Len(t, impl.Implements, 2)
	assert.Equal(t, "Other", impl.Implements[1].Name)
	require.Len(t, impl.Members, 4)
	assert.IsType(t, &ast.FieldDecl{}, impl.Members[0])
	assert.IsType(t, &ast.ConstructorDecl{}, impl.Members[1])
	assert.IsType(t, &ast.MethodDecl{}, impl.Members[2])
	init := impl.Members[3].(*ast.Initializer)
	assert.True(t, init.Static)
}

func TestParseImportDeclarationBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		want    string
		wantErr bool
	}{
		{name: "single type", src: "java.util.List", want: "import java.util.List;"},
		{name: "on demand", src: "java.util.*", want: "import java.util.*;"},
		{name: "static member", src: "static lang.Math.max", want: "import static lang.Math.max;"},
		{name: "static on demand", src: "static lang.Math.*", want: "import static lang.Math.*;"},
		{name: "unqualified", src: "List", wantErr: true},
		{name: "static type only", src: "static lang.Math", wantErr: true},
		{name: "not a name", src: "123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			imp, err := parserFor(tt.src).ParseImportDeclarationBody()
			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, diag.ErrSyntax)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, imp.String())
		})
	}
}

func TestParseImportDeclaration_RequiresSemicolon(t *testing.T) {
	t.Parallel()

	_, err := parserFor("import java.util.List").ParseImportDeclaration()
	require.ErrorIs(t, err, diag.ErrSyntax)

	imp, err := parserFor("import java.util.List;").ParseImportDeclaration()
	require.NoError(t, err)
	assert.Equal(t, 1, imp.Loc.Line)
}

func TestParseClassBodyDeclaration(t *testing.T) {
	t.Parallel()

	src := `
		int x = 1, y;
		;
		{ x = 2; }
		static { }
		public static final String NAME = "sc";
		SC() { y = 3; }
		public abstract int size();
		public native long hash(String s);
		private void reset() { x = 0; y = 0; }
	`
	p := parserFor(src)
	cd := &ast.ClassDecl{Name: "SC"}
	for !p.peek().IsEOF() {
		require.NoError(t, p.ParseClassBodyDeclaration(cd))
	}
	require.Len(t, cd.Members, 8)

	f := cd.Members[0].(*ast.FieldDecl)
	require.Len(t, f.Vars, 2)
	assert.Equal(t, "x", f.Vars[0].Name)
	assert.NotNil(t, f.Vars[0].Init)
	assert.Nil(t, f.Vars[1].Init)

	assert.False(t, cd.Members[1].(*ast.Initializer).Static)
	assert.True(t, cd.Members[2].(*ast.Initializer).Static)
	assert.IsType(t, &ast.ConstructorDecl{}, cd.Members[4])

	size := cd.Members[5].(*ast.MethodDecl)
	assert.Nil(t, size.Body)
	assert.True(t, size.Modifiers.Has(ast.Abstract))

	hash := cd.Members[6].(*ast.MethodDecl)
	assert.True(t, hash.Modifiers.Has(ast.Native))
	require.Len(t, hash.Params, 1)
	assert.Equal(t, "String", hash.Params[0].Type.Name)

	reset := cd.Members[7].(*ast.MethodDecl)
	assert.Equal(t, "void", reset.Return.Name)
	assert.Len(t, reset.Body.Stmts, 2)
}

func TestParseClassBodyDeclaration_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{name: "member class", src: "class Inner {}", msg: "member type declarations are not supported"},
		{name: "member interface", src: "public interface I {}", msg: "member type declarations are not supported"},
		{name: "duplicate modifier", src: "public public int x;", msg: "duplicate modifier"},
		{name: "void field", src: "void x;", msg: "cannot have type void"},
		{name: "array field", src: "int[] xs;", msg: "array types are not supported"},
		{name: "unsupported type", src: "char c;", msg: `type "char" is not supported`},
		{name: "throws clause", src: "void f() throws E {}", msg: "throws clauses are not supported"},
		{name: "missing semicolon", src: "int x = 1", msg: `";" expected`},
		{name: "unterminated string", src: `String s = "abc`, msg: "unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := parserFor(tt.src).ParseClassBodyDeclaration(&ast.ClassDecl{Name: "SC"})
			require.Error(t, err)
			require.ErrorIs(t, err, diag.ErrSyntax)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseInterfaceBodyDeclaration_RejectsBody(t *testing.T) {
	t.Parallel()

	err := parserFor("int f() { return 1; }").ParseInterfaceBodyDeclaration(&ast.InterfaceDecl{Name: "I"})
	require.ErrorIs(t, err, diag.ErrSyntax)
	assert.Contains(t, err.Error(), "cannot have a body")
}

func TestParseExpression_Precedence(t *testing.T) {
	t.Parallel()

	x := parseExpr(t, "a + b * c")
	add := x.(*ast.Binary)
	assert.Equal(t, "+", add.Op)
	assert.Equal(t, "*", add.Y.(*ast.Binary).Op)

	x = parseExpr(t, "a - b - c")
	sub := x.(*ast.Binary)
	assert.Equal(t, "-", sub.X.(*ast.Binary).Op, "left associative")

	x = parseExpr(t, "a < b && c == d || !e")
	or := x.(*ast.Binary)
	assert.Equal(t, "||", or.Op)
	assert.Equal(t, "&&", or.X.(*ast.Binary).Op)
	assert.Equal(t, "!", or.Y.(*ast.Unary).Op)

	x = parseExpr(t, "a = b = c")
	as := x.(*ast.Assign)
	assert.IsType(t, &ast.Assign{}, as.RHS, "right associative")

	x = parseExpr(t, "c ? 1 : d ? 2 : 3")
	cond := x.(*ast.Conditional)
	assert.IsType(t, &ast.Conditional{}, cond.Else)

	x = parseExpr(t, "o instanceof Foo && x")
	and := x.(*ast.Binary)
	assert.IsType(t, &ast.InstanceOf{}, and.X)

	x = parseExpr(t, "1 << 2 + 3")
	assert.Equal(t, "<<", x.(*ast.Binary).Op)
}

func TestParseExpression_Literals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		kind ast.LitKind
		want any
	}{
		{src: "42", kind: ast.IntLit, want: int32(42)},
		{src: "-2147483648", kind: ast.IntLit, want: int32(-2147483648)},
		{src: "0xFFFFFFFF", kind: ast.IntLit, want: int32(-1)},
		{src: "-9223372036854775808L", kind: ast.LongLit, want: int64(-9223372036854775808)},
		{src: "7L", kind: ast.LongLit, want: int64(7)},
		{src: "2.5", kind: ast.DoubleLit, want: 2.5},
		{src: "1e3", kind: ast.DoubleLit, want: 1000.0},
		{src: `"hi\n"`, kind: ast.StringLit, want: "hi\n"},
		{src: "true", kind: ast.BoolLit, want: true},
		{src: "null", kind: ast.NullLit, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			lit, ok := parseExpr(t, tt.src).(*ast.Literal)
			require.True(t, ok)
			assert.Equal(t, tt.kind, lit.Kind)
			assert.Equal(t, tt.want, lit.Value)
		})
	}
}

func TestParseExpression_OutOfRange(t *testing.T) {
	t.Parallel()

	for _, src := range []string{"2147483648", "-2147483649", "9223372036854775808L", "0x1FFFFFFFF"} {
		_, err := parserFor(src).ParseExpression()
		require.ErrorIs(t, err, diag.ErrSyntax, src)
		assert.Contains(t, err.Error(), "out of range")
	}
}

func TestParseExpression_Names(t *testing.T) {
	t.Parallel()

	x := parseExpr(t, "a.b.c")
	assert.Equal(t, []string{"a", "b", "c"}, x.(*ast.Name).Parts)

	x = parseExpr(t, "lang.Math.max(1, 2)")
	call := x.(*ast.MethodCall)
	assert.Equal(t, "max", call.Name)
	assert.Equal(t, []string{"lang", "Math"}, call.X.(*ast.Name).Parts)
	assert.Len(t, call.Args, 2)

	x = parseExpr(t, "f()")
	call = x.(*ast.MethodCall)
	assert.Nil(t, call.X)
	assert.Empty(t, call.Args)

	x = parseExpr(t, "f().g.h(1)")
	call = x.(*ast.MethodCall)
	assert.Equal(t, "h", call.Name)
	fa := call.X.(*ast.FieldAccess)
	assert.Equal(t, "g", fa.Name)

	x = parseExpr(t, "this.x")
	assert.IsType(t, &ast.This{}, x.(*ast.FieldAccess).X)

	x = parseExpr(t, "super.toString()")
	assert.Equal(t, "toString", x.(*ast.SuperMethodCall).Name)

	x = parseExpr(t, "new Impl(1).bar(2, 3)")
	call = x.(*ast.MethodCall)
	assert.IsType(t, &ast.New{}, call.X)

	x = parseExpr(t, "i++")
	assert.Equal(t, "++", x.(*ast.Postfix).Op)
}

func TestParseExpression_Casts(t *testing.T) {
	t.Parallel()

	x := parseExpr(t, "(int) d")
	c := x.(*ast.Cast)
	assert.Equal(t, "int", c.Type.Name)

	x = parseExpr(t, "(Foo) o")
	assert.Equal(t, "Foo", x.(*ast.Cast).Type.Name)

	x = parseExpr(t, "(a.B) this")
	assert.Equal(t, "a.B", x.(*ast.Cast).Type.Name)

	x = parseExpr(t, "(a) - b")
	assert.IsType(t, &ast.Binary{}, x, "parenthesized name followed by minus is a subtraction")

	x = parseExpr(t, "(a) + 1")
	assert.IsType(t, &ast.Binary{}, x)

	x = parseExpr(t, "(long) -1")
	c = x.(*ast.Cast)
	assert.Equal(t, "long", c.Type.Name)
	assert.Equal(t, int32(-1), c.X.(*ast.Literal).Value)
}

func TestParseExpression_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src string
		msg string
	}{
		{src: "1 = 2", msg: "is not a variable"},
		{src: "a[0]", msg: "array access is not supported"},
		{src: "new Foo() {}", msg: "anonymous classes are not supported"},
		{src: "int.class", msg: "class literals are not supported"},
		{src: "(a + b", msg: `")" expected`},
		{src: "+", msg: "expression expected"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			_, err := parserFor(tt.src).ParseExpression()
			require.ErrorIs(t, err, diag.ErrSyntax)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseBlock_Statements(t *testing.T) {
	t.Parallel()

	src := `{
		int i = 0;
		final long total = 0L;
		a.b.C c;
		for (int j = 0, k = 1; j < 10; j++, k--) { if (j == 3) continue; else break; }
		for (;;) { }
		for (i = 0; i < 2; i++) ;
		while (i > 0) i--;
		do { i++; } while (i < 5);
		return;
	}`
	b, err := parserFor(src).ParseBlock()
	require.NoError(t, err)
	require.Len(t, b.Stmts, 9)

	assert.IsType(t, &ast.LocalVarDecl{}, b.Stmts[0])
	assert.True(t, b.Stmts[1].(*ast.LocalVarDecl).Final)
	assert.Equal(t, "a.b.C", b.Stmts[2].(*ast.LocalVarDecl).Type.Name)

	f := b.Stmts[3].(*ast.ForStmt)
	require.Len(t, f.Init, 1)
	assert.Len(t, f.Init[0].(*ast.LocalVarDecl).Vars, 2)
	assert.Len(t, f.Update, 2)
	ifs := f.Body.(*ast.Block).Stmts[0].(*ast.IfStmt)
	assert.IsType(t, &ast.ContinueStmt{}, ifs.Then)
	assert.IsType(t, &ast.BreakStmt{}, ifs.Else)

	forever := b.Stmts[4].(*ast.ForStmt)
	assert.Nil(t, forever.Cond)
	assert.Empty(t, forever.Init)

	assert.IsType(t, &ast.ExprStmt{}, b.Stmts[5].(*ast.ForStmt).Init[0])
	assert.IsType(t, &ast.EmptyStmt{}, b.Stmts[5].(*ast.ForStmt).Body)
	assert.IsType(t, &ast.WhileStmt{}, b.Stmts[6])
	assert.IsType(t, &ast.DoStmt{}, b.Stmts[7])
	assert.Nil(t, b.Stmts[8].(*ast.ReturnStmt).X)
}

func TestParseBlock_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{name: "not a statement", src: "{ a + b; }", msg: "not a statement"},
		{name: "switch", src: "{ switch (x) {} }", msg: "switch statements are not supported"},
		{name: "try", src: "{ try {} finally {} }", msg: "try statements are not supported"},
		{name: "labeled break", src: "{ while (true) break out; }", msg: "labeled break is not supported"},
		{name: "label", src: "{ out: while (true) {} }", msg: "labeled statements are not supported"},
		{name: "enhanced for", src: "{ for (Foo f : xs) {} }", msg: "enhanced for statements are not supported"},
		{name: "local class", src: "{ class X {} }", msg: "local class declarations are not supported"},
		{name: "unterminated", src: "{ int x;", msg: `"}" expected`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parserFor(tt.src).ParseBlock()
			require.ErrorIs(t, err, diag.ErrSyntax)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParser_ErrorLocation(t *testing.T) {
	t.Parallel()

	_, err := parserFor("class A {\n  int x = ;\n}").ParseCompilationUnit()
	require.Error(t, err)
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	require.NotNil(t, de.Loc)
	assert.Equal(t, "test.java", de.Loc.File)
	assert.Equal(t, 2, de.Loc.Line)
}
