package starlark

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/check"
	"github.com/robbyt/go-classbody/runtime"
)

func (e *emitter) block(b *ast.Block) {
	e.stmts(b.Stmts)
}

func (e *emitter) stmts(list []ast.Stmt) {
	for _, s := range list {
		e.stmt(s)
	}
}

// nested emits s as the indented body of a compound statement.
func (e *emitter) nested(s ast.Stmt) {
	e.indent++
	n := e.line
	e.stmt(s)
	if e.line == n {
		e.emitf("pass")
	}
	e.indent--
}

func (e *emitter) stmt(s ast.Stmt) {
	e.at(s)
	switch s := s.(type) {
	case *ast.Block:
		e.block(s)

	case *ast.EmptyStmt:

	case *ast.LocalVarDecl:
		for _, v := range s.Vars {
			l := e.info.Locals[v]
			e.at(v)
			if v.Init == nil {
				e.emitf("L[%d] = %s", l.Index, zero(l.Type))
			} else {
				e.emitf("L[%d] = %s", l.Index, e.convert(v.Init, l.Type))
			}
		}

	case *ast.ExprStmt:
		if a, ok := s.X.(*ast.Assign); ok && a.Op == "=" {
			if l := e.local(a.LHS); l != nil {
				e.emitf("L[%d] = %s", l.Index, e.convert(a.RHS, l.Type))
				return
			}
		}
		e.emitf("%s", e.expr(s.X))

	case *ast.IfStmt:
		e.emitf("if %s:", e.expr(s.Cond))
		e.nested(s.Then)
		if s.Else != nil {
			e.at(s.Else)
			e.emitf("else:")
			e.nested(s.Else)
		}

	case *ast.WhileStmt:
		e.emitf("while %s:", e.expr(s.Cond))
		e.nested(s.Body)

	case *ast.DoStmt:
		first := e.temp("d")
		e.emitf("%s = True", first)
		e.at(s.Cond)
		e.emitf("while %s or %s:", first, e.expr(s.Cond))
		e.indent++
		e.emitf("%s = False", first)
		e.indent--
		e.nested(s.Body)

	case *ast.ForStmt:
		e.stmts(s.Init)
		again := e.temp("f")
		e.at(s)
		e.emitf("%s = False", again)
		e.emitf("while True:")
		e.indent++
		if len(s.Update) > 0 {
			e.emitf("if %s:", again)
			e.indent++
			for _, u := range s.Update {
				e.at(u)
				e.emitf("%s", e.expr(u))
			}
			e.indent--
		}
		e.emitf("%s = True", again)
		if s.Cond != nil {
			e.at(s.Cond)
			e.emitf("if not %s:", e.expr(s.Cond))
			e.indent++
			e.emitf("break")
			e.indent--
		}
		e.indent--
		e.nested(s.Body)

	case *ast.BreakStmt:
		e.emitf("break")

	case *ast.ContinueStmt:
		e.emitf("continue")

	case *ast.ReturnStmt:
		if s.X == nil {
			e.emitf("return")
			return
		}
		e.emitf("return %s", e.convert(s.X, e.result))

	default:
		e.fail(s, "unsupported statement %T", s)
	}
}

// local returns the local variable x denotes, if any.
func (e *emitter) local(x ast.Expr) *check.Local {
	n, ok := ast.Unparen(x).(*ast.Name)
	if !ok {
		return nil
	}
	ref := e.info.Names[n]
	if ref == nil || len(ref.Fields) > 0 {
		return nil
	}
	return ref.Local
}

func (e *emitter) typeOf(x ast.Expr) runtime.Type {
	return e.info.TypeOf(x)
}

func zero(t runtime.Type) string {
	switch t {
	case runtime.Int, runtime.Long:
		return "0"
	case runtime.Double:
		return "0.0"
	case runtime.Boolean:
		return "False"
	}
	return "None"
}

// convert emits x converted to t.
func (e *emitter) convert(x ast.Expr, t runtime.Type) string {
	return conversion(e.expr(x), e.typeOf(x), t)
}

// conversion applies the primitive conversion from one numeric type to another. Widening
// int to long is the identity since both are Starlark ints.
func conversion(text string, from, to runtime.Type) string {
	switch {
	case from == to:
		return text
	case to == runtime.Double && (from == runtime.Int || from == runtime.Long):
		return "float(" + text + ")"
	case to == runtime.Int && from == runtime.Long:
		return "_i32(" + text + ")"
	case to == runtime.Int && from == runtime.Double:
		return "_d2i(" + text + ")"
	case to == runtime.Long && from == runtime.Double:
		return "_d2l(" + text + ")"
	}
	return text
}

func (e *emitter) expr(x ast.Expr) string {
	switch x := x.(type) {
	case *ast.Literal:
		return literal(x)
	case *ast.Paren:
		return e.expr(x.X)
	case *ast.This:
		return "this"
	case *ast.Name:
		return e.name(x)
	case *ast.FieldAccess:
		f := e.info.Fields[x]
		if f.IsStatic() {
			return fmt.Sprintf("_seq(%s, %s)", e.expr(x.X), getStatic(f))
		}
		return getField(e.expr(x.X), f)
	case *ast.SuperFieldAccess:
		f := e.info.Fields[x]
		if f.IsStatic() {
			return getStatic(f)
		}
		return getField("this", f)
	case *ast.MethodCall:
		return e.call(x)
	case *ast.SuperMethodCall:
		call := e.info.Calls[x]
		return e.invoke("_invokesp", []string{"this", quote(call.Method.Owner.Name()), quote(call.Method.Name)}, call.Method.Params, x.Args)
	case *ast.New:
		ctor := e.info.News[x]
		return e.invoke("_new", []string{quote(ctor.Owner.Name())}, ctor.Params, x.Args)
	case *ast.Unary:
		return e.unary(x)
	case *ast.Postfix:
		return e.increment(x.Op, x.X, true)
	case *ast.Binary:
		return e.binary(x)
	case *ast.Conditional:
		t := e.typeOf(x)
		return fmt.Sprintf("(%s if %s else %s)", e.convert(x.Then, t), e.expr(x.Cond), e.convert(x.Else, t))
	case *ast.Assign:
		return e.assign(x)
	case *ast.Cast:
		return e.cast(x)
	case *ast.InstanceOf:
		return fmt.Sprintf("_instanceof(%s, %s)", e.expr(x.X), quote(e.info.TypeRefs[x.Type].Name()))
	}
	return e.fail(x, "unsupported expression %T", x)
}

func literal(l *ast.Literal) string {
	switch v := l.Value.(type) {
	case int32:
		return signed(strconv.FormatInt(int64(v), 10))
	case int64:
		return signed(strconv.FormatInt(v, 10))
	case float64:
		switch {
		case math.IsNaN(v):
			return `float("nan")`
		case math.IsInf(v, 1):
			return `float("inf")`
		case math.IsInf(v, -1):
			return `float("-inf")`
		}
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return signed(s)
	case string:
		return quote(v)
	case bool:
		if v {
			return "True"
		}
		return "False"
	}
	return "None"
}

func signed(s string) string {
	if strings.HasPrefix(s, "-") {
		return "(" + s + ")"
	}
	return s
}

func getStatic(f *runtime.Field) string {
	return fmt.Sprintf("_gets(%s, %s)", quote(f.Owner.Name()), quote(f.Name))
}

func getField(recv string, f *runtime.Field) string {
	return fmt.Sprintf("_getf(%s, %s, %s)", recv, quote(f.Owner.Name()), quote(f.Name))
}

// name emits a possibly qualified name as a chain of field reads.
func (e *emitter) name(n *ast.Name) string {
	ref := e.info.Names[n]
	if ref == nil {
		return e.fail(n, "unresolved name %s", n)
	}
	return e.namePrefix(ref, len(ref.Fields))
}

// namePrefix emits the value of the first k fields of ref.
func (e *emitter) namePrefix(ref *check.NameRef, k int) string {
	cur := ""
	if ref.Local != nil {
		cur = fmt.Sprintf("L[%d]", ref.Local.Index)
	}
	for _, f := range ref.Fields[:k] {
		if f.IsStatic() {
			if cur != "" {
				cur = fmt.Sprintf("_seq(%s, %s)", cur, getStatic(f))
			} else {
				cur = getStatic(f)
			}
			continue
		}
		if cur == "" {
			cur = "this"
		}
		cur = getField(cur, f)
	}
	return cur
}

// invoke emits a call of a bridge function with args converted to params.
func (e *emitter) invoke(fn string, lead []string, params []runtime.Type, args []ast.Expr) string {
	parts := lead
	for i, a := range args {
		parts = append(parts, e.convert(a, params[i]))
	}
	return fmt.Sprintf("%s(%s)", fn, strings.Join(parts, ", "))
}

func (e *emitter) call(x *ast.MethodCall) string {
	call := e.info.Calls[x]
	m := call.Method
	owner, name := quote(m.Owner.Name()), quote(m.Name)

	var recv string
	switch q := x.X.(type) {
	case nil:
	case *ast.Name:
		if ref := e.info.Names[q]; ref != nil && ref.IsType() {
			return e.invoke("_invokes", []string{owner, name}, m.Params, x.Args)
		}
		recv = e.expr(q)
	default:
		recv = e.expr(q)
	}

	switch {
	case m.IsStatic():
		text := e.invoke("_invokes", []string{owner, name}, m.Params, x.Args)
		if recv != "" {
			return fmt.Sprintf("_seq(%s, %s)", recv, text)
		}
		return text
	case recv == "":
		recv = "this"
	}
	if m.IsPrivate() {
		return e.invoke("_invokesp", []string{recv, owner, name}, m.Params, x.Args)
	}
	return e.invoke("_invoke", []string{recv, name}, m.Params, x.Args)
}

func (e *emitter) cast(x *ast.Cast) string {
	to := e.info.TypeRefs[x.Type]
	from := e.typeOf(x.X)
	text := e.expr(x.X)
	switch {
	case to.IsPrimitive():
		return conversion(text, from, to)
	case from == check.Null || runtime.IsAssignable(from, to):
		return text
	}
	return fmt.Sprintf("_cast(%s, %s)", text, quote(to.Name()))
}

func (e *emitter) unary(x *ast.Unary) string {
	t := e.typeOf(x)
	switch x.Op {
	case "++", "--":
		return e.increment(x.Op, x.X, false)
	case "+":
		return conversion(e.expr(x.X), e.typeOf(x.X), t)
	case "-":
		v := conversion(e.expr(x.X), e.typeOf(x.X), t)
		return wrap("(-"+v+")", t)
	case "~":
		return "(~" + conversion(e.expr(x.X), e.typeOf(x.X), t) + ")"
	case "!":
		return "(not " + e.expr(x.X) + ")"
	}
	return e.fail(x, "unsupported operator %s", x.Op)
}

// wrap reduces an int or long arithmetic result to its width.
func wrap(text string, t runtime.Type) string {
	switch t {
	case runtime.Int:
		return "_i32(" + text + ")"
	case runtime.Long:
		return "_i64(" + text + ")"
	}
	return text
}

func (e *emitter) binary(x *ast.Binary) string {
	switch x.Op {
	case "&&":
		return fmt.Sprintf("(%s and %s)", e.expr(x.X), e.expr(x.Y))
	case "||":
		return fmt.Sprintf("(%s or %s)", e.expr(x.X), e.expr(x.Y))
	}
	return operate(x.Op, e.expr(x.X), e.typeOf(x.X), e.expr(x.Y), e.typeOf(x.Y), e.typeOf(x))
}

func isNumeric(t runtime.Type) bool {
	return t == runtime.Int || t == runtime.Long || t == runtime.Double
}

func isString(t runtime.Type) bool {
	return t == runtime.Type(runtime.StringClass())
}

func promote(x, y runtime.Type) runtime.Type {
	switch {
	case x == runtime.Double || y == runtime.Double:
		return runtime.Double
	case x == runtime.Long || y == runtime.Long:
		return runtime.Long
	}
	return runtime.Int
}

// operate emits a strict binary operation whose result has type res.
func operate(op, x string, xt runtime.Type, y string, yt, res runtime.Type) string {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		if isNumeric(xt) && isNumeric(yt) && promote(xt, yt) == runtime.Double {
			return fmt.Sprintf("_dcmp(%s, %s, %s)", quote(op), x, y)
		}
		return fmt.Sprintf("(%s %s %s)", x, op, y)

	case "<<", ">>", ">>>":
		bits := 32
		if res == runtime.Long {
			bits = 64
		}
		fn := map[string]string{"<<": "_shl", ">>": "_shr", ">>>": "_ushr"}[op]
		return fmt.Sprintf("%s(%s, %s, %d)", fn, conversion(x, xt, res), y, bits)

	case "&", "|", "^":
		if res == runtime.Boolean {
			switch op {
			case "&":
				return fmt.Sprintf("_and(%s, %s)", x, y)
			case "|":
				return fmt.Sprintf("_or(%s, %s)", x, y)
			}
			return fmt.Sprintf("(%s != %s)", x, y)
		}
		return fmt.Sprintf("(%s %s %s)", x, op, y)
	}

	if op == "+" && isString(res) {
		return fmt.Sprintf("_concat(%s, %s)", x, y)
	}
	x, y = conversion(x, xt, res), conversion(y, yt, res)
	switch op {
	case "/", "%":
		fn := map[runtime.Type]string{runtime.Int: "_i", runtime.Long: "_l", runtime.Double: "_d"}[res]
		if op == "/" {
			fn += "div"
		} else {
			fn += "rem"
		}
		return fmt.Sprintf("%s(%s, %s)", fn, x, y)
	}
	return wrap(fmt.Sprintf("(%s %s %s)", x, op, y), res)
}

// target is an assignable location.
type target struct {
	local  *check.Local
	field  *runtime.Field
	recv   string
	static bool
}

func (e *emitter) target(x ast.Expr) target {
	switch x := ast.Unparen(x).(type) {
	case *ast.Name:
		ref := e.info.Names[x]
		if ref == nil {
			e.fail(x, "unresolved name %s", x)
			return target{}
		}
		if len(ref.Fields) == 0 {
			return target{local: ref.Local}
		}
		f := ref.Fields[len(ref.Fields)-1]
		if f.IsStatic() {
			return target{field: f, static: true}
		}
		recv := e.namePrefix(ref, len(ref.Fields)-1)
		if recv == "" {
			recv = "this"
		}
		return target{field: f, recv: recv}
	case *ast.FieldAccess:
		f := e.info.Fields[x]
		if f.IsStatic() {
			return target{field: f, static: true}
		}
		return target{field: f, recv: e.expr(x.X)}
	case *ast.SuperFieldAccess:
		f := e.info.Fields[x]
		return target{field: f, recv: "this", static: f.IsStatic()}
	}
	e.fail(x, "unsupported assignment target %T", x)
	return target{}
}

func (t target) store(v string) string {
	switch {
	case t.local != nil:
		return fmt.Sprintf("_put(L, %d, %s)", t.local.Index, v)
	case t.field == nil:
		return "None"
	case t.static:
		return fmt.Sprintf("_puts(%s, %s, %s)", quote(t.field.Owner.Name()), quote(t.field.Name), v)
	}
	return fmt.Sprintf("_putf(%s, %s, %s, %s)", t.recv, quote(t.field.Owner.Name()), quote(t.field.Name), v)
}

func (t target) update(fn string, post bool) string {
	p := "False"
	if post {
		p = "True"
	}
	switch {
	case t.local != nil:
		return fmt.Sprintf("_rmwl(L, %d, %s, %s)", t.local.Index, fn, p)
	case t.field == nil:
		return "None"
	case t.static:
		return fmt.Sprintf("_rmws(%s, %s, %s, %s)", quote(t.field.Owner.Name()), quote(t.field.Name), fn, p)
	}
	return fmt.Sprintf("_rmwf(%s, %s, %s, %s, %s)", t.recv, quote(t.field.Owner.Name()), quote(t.field.Name), fn, p)
}

func (e *emitter) assign(a *ast.Assign) string {
	lt := e.typeOf(a.LHS)
	t := e.target(a.LHS)
	if a.Op == "=" {
		return t.store(e.convert(a.RHS, lt))
	}

	op := strings.TrimSuffix(a.Op, "=")
	rt := e.typeOf(a.RHS)
	var res runtime.Type
	switch {
	case op == "+" && isString(lt):
		res = lt
	case op == "<<" || op == ">>" || op == ">>>":
		res = lt
	case lt == runtime.Boolean:
		res = runtime.Boolean
	default:
		res = promote(lt, rt)
	}
	v := operate(op, "v", lt, e.expr(a.RHS), rt, res)
	return t.update("lambda v: "+conversion(v, res, lt), false)
}

func (e *emitter) increment(op string, x ast.Expr, post bool) string {
	t := e.typeOf(x)
	v := operate(op[:1], "v", t, "1", runtime.Int, t)
	return e.target(x).update("lambda v: "+v, post)
}
