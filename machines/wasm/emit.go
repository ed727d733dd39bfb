package wasm

import (
	"strings"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/check"
	"github.com/robbyt/go-classbody/runtime"
)

// control frame kinds
const (
	ctlPlain = iota
	ctlBreak
	ctlContinue
)

// body emits the code of one function.
type body struct {
	*generator
	code

	fn      *function
	nparams int
	// slots holds the type of every local, parameters first. Locals of a body are at base
	// plus their index.
	slots  []valType
	base   int
	temps  map[valType]int
	ctl    []int
	result runtime.Type
}

func (g *generator) body(fn *function, params []valType, result runtime.Type) *body {
	return &body{
		generator: g,
		fn:        fn,
		nparams:   len(params),
		slots:     append([]valType(nil), params...),
		temps:     make(map[valType]int),
		result:    result,
	}
}

// grow reserves n locals from the current base.
func (e *body) grow(n int) {
	for len(e.slots) < e.base+n {
		e.slots = append(e.slots, i32)
	}
}

func (e *body) finish() {
	e.fn.locals = e.slots[e.nparams:]
	e.fn.code = e.b
}

// temp returns a scratch local of type k.
func (e *body) temp(k valType) uint32 {
	if i, ok := e.temps[k]; ok {
		return uint32(i)
	}
	e.slots = append(e.slots, k)
	e.temps[k] = len(e.slots) - 1
	return uint32(len(e.slots) - 1)
}

func (e *body) local(l *check.Local) uint32 {
	return uint32(e.base + l.Index)
}

func (e *body) enter(op byte, blockType byte, kind int) {
	e.op(op, blockType)
	e.ctl = append(e.ctl, kind)
}

func (e *body) end() {
	e.op(opEnd)
	e.ctl = e.ctl[:len(e.ctl)-1]
}

// branch emits br to the innermost control frame of the given kind.
func (e *body) branch(n ast.Node, kind int) {
	for i := len(e.ctl) - 1; i >= 0; i-- {
		if e.ctl[i] == kind {
			e.u32(opBr, uint32(len(e.ctl)-1-i))
			return
		}
	}
	e.fail(n, "branch outside of a loop")
}

func (e *body) host(name string) {
	e.u32(opCall, uint32(hostIndex(name)))
}

// nameRef pushes the id of s in the module's name table.
func (e *body) nameRef(s string) {
	e.i32(e.mod.name(s))
}

func (e *body) stmts(list []ast.Stmt) {
	for _, s := range list {
		e.stmt(s)
	}
}

func (e *body) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Block:
		e.stmts(s.Stmts)

	case *ast.EmptyStmt:

	case *ast.LocalVarDecl:
		for _, v := range s.Vars {
			l := e.info.Locals[v]
			k, ok := kind(l.Type)
			if !ok {
				e.unsupported(v, "local variable of type "+l.Type.Name())
				return
			}
			idx := e.local(l)
			e.slots[idx] = k
			if v.Init == nil {
				e.zero(k)
			} else {
				e.convert(v.Init, l.Type)
			}
			e.u32(opLocalSet, idx)
		}

	case *ast.ExprStmt:
		e.expr(s.X)
		if e.typeOf(s.X) != runtime.Void {
			e.op(opDrop)
		}

	case *ast.IfStmt:
		e.expr(s.Cond)
		e.enter(opIf, blockEmpty, ctlPlain)
		e.stmt(s.Then)
		if s.Else != nil {
			e.op(opElse)
			e.stmt(s.Else)
		}
		e.end()

	case *ast.WhileStmt:
		e.enter(opBlock, blockEmpty, ctlBreak)
		e.enter(opLoop, blockEmpty, ctlContinue)
		e.host("poll")
		e.expr(s.Cond)
		e.op(opI32Eqz)
		e.u32(opBrIf, 1)
		e.stmt(s.Body)
		e.u32(opBr, 0)
		e.end()
		e.end()

	case *ast.DoStmt:
		e.enter(opBlock, blockEmpty, ctlBreak)
		e.enter(opLoop, blockEmpty, ctlPlain)
		e.host("poll")
		e.enter(opBlock, blockEmpty, ctlContinue)
		e.stmt(s.Body)
		e.end()
		e.expr(s.Cond)
		e.u32(opBrIf, 0)
		e.end()
		e.end()

	case *ast.ForStmt:
		e.stmts(s.Init)
		e.enter(opBlock, blockEmpty, ctlBreak)
		e.enter(opLoop, blockEmpty, ctlPlain)
		e.host("poll")
		if s.Cond != nil {
			e.expr(s.Cond)
			e.op(opI32Eqz)
			e.u32(opBrIf, 1)
		}
		e.enter(opBlock, blockEmpty, ctlContinue)
		e.stmt(s.Body)
		e.end()
		for _, u := range s.Update {
			e.expr(u)
			if e.typeOf(u) != runtime.Void {
				e.op(opDrop)
			}
		}
		e.u32(opBr, 0)
		e.end()
		e.end()

	case *ast.BreakStmt:
		e.branch(s, ctlBreak)

	case *ast.ContinueStmt:
		e.branch(s, ctlContinue)

	case *ast.ReturnStmt:
		if s.X != nil {
			e.convert(s.X, e.result)
		}
		e.op(opReturn)

	default:
		e.unsupported(s, "statement")
	}
}

func (e *body) typeOf(x ast.Expr) runtime.Type {
	return e.info.TypeOf(x)
}

func (e *body) zero(k valType) {
	switch k {
	case i64:
		e.i64(0)
	case f64:
		e.f64(0)
	default:
		e.i32(0)
	}
}

// convert emits x converted to t.
func (e *body) convert(x ast.Expr, t runtime.Type) {
	e.expr(x)
	e.conversion(e.typeOf(x), t)
}

// conversion applies the primitive conversion between numeric types. Double to integer
// conversions saturate and map NaN to zero.
func (e *body) conversion(from, to runtime.Type) {
	switch {
	case from == to:
	case from == runtime.Int && to == runtime.Long:
		e.op(opI64ExtendI32S)
	case from == runtime.Int && to == runtime.Double:
		e.op(opF64ConvertI32S)
	case from == runtime.Long && to == runtime.Int:
		e.op(opI32WrapI64)
	case from == runtime.Long && to == runtime.Double:
		e.op(opF64ConvertI64S)
	case from == runtime.Double && to == runtime.Int:
		e.op(opPrefixFC, opI32TruncSatF64S)
	case from == runtime.Double && to == runtime.Long:
		e.op(opPrefixFC, opI64TruncSatF64S)
	}
}

// expr emits x, leaving its value on the stack unless it is void.
func (e *body) expr(x ast.Expr) {
	if t := e.typeOf(x); t != nil && t != runtime.Void {
		if _, ok := kind(t); !ok {
			e.unsupported(x, "expression of type "+t.Name())
			return
		}
	}
	switch x := x.(type) {
	case *ast.Literal:
		e.literal(x)
	case *ast.Paren:
		e.expr(x.X)
	case *ast.Name:
		e.name(x)
	case *ast.FieldAccess:
		f := e.info.Fields[x]
		switch {
		case f.IsStatic() && isTypeName(e.info, x.X):
			e.getStatic(f)
		case isThis(x.X):
			if f.IsStatic() {
				e.getStatic(f)
			} else {
				e.getField(f)
			}
		default:
			e.unsupported(x, "field access through a reference")
		}
	case *ast.SuperFieldAccess:
		f := e.info.Fields[x]
		if f.IsStatic() {
			e.getStatic(f)
		} else {
			e.getField(f)
		}
	case *ast.MethodCall:
		e.call(x)
	case *ast.SuperMethodCall:
		call := e.info.Calls[x]
		e.args(call.Method.Params, x.Args)
		e.nameRef(call.Method.Owner.Name())
		e.nameRef(call.Method.Name)
		e.host("pcall_" + suffix(call.Method.Return))
	case *ast.Unary:
		e.unary(x)
	case *ast.Postfix:
		t := e.typeOf(x)
		e.update(e.target(x.X), true, func() {
			e.one(t)
			e.operator(x, x.Op[:1], t)
		})
	case *ast.Binary:
		e.binary(x)
	case *ast.Conditional:
		t := e.typeOf(x)
		k, _ := kind(t)
		e.expr(x.Cond)
		e.enter(opIf, byte(k), ctlPlain)
		e.convert(x.Then, t)
		e.op(opElse)
		e.convert(x.Else, t)
		e.end()
	case *ast.Assign:
		e.assign(x)
	case *ast.Cast:
		to := e.info.TypeRefs[x.Type]
		if !to.IsPrimitive() {
			e.unsupported(x, "reference cast")
			return
		}
		e.convert(x.X, to)
	case *ast.This:
		e.unsupported(x, "this as a value")
	case *ast.New:
		e.unsupported(x, "object creation")
	case *ast.InstanceOf:
		e.unsupported(x, "instanceof")
	default:
		e.unsupported(x, "expression")
	}
}

func isThis(x ast.Expr) bool {
	_, ok := ast.Unparen(x).(*ast.This)
	return ok
}

func isTypeName(info *check.Info, x ast.Expr) bool {
	n, ok := x.(*ast.Name)
	if !ok {
		return false
	}
	ref := info.Names[n]
	return ref != nil && ref.IsType()
}

func (e *body) literal(l *ast.Literal) {
	switch v := l.Value.(type) {
	case int32:
		e.i32(v)
	case int64:
		e.i64(v)
	case float64:
		e.f64(v)
	case bool:
		if v {
			e.i32(1)
		} else {
			e.i32(0)
		}
	default:
		e.unsupported(l, "literal")
	}
}

// one pushes the constant 1 of type t.
func (e *body) one(t runtime.Type) {
	switch t {
	case runtime.Long:
		e.i64(1)
	case runtime.Double:
		e.f64(1)
	default:
		e.i32(1)
	}
}

// suffix names the host function variant for values of type t.
func suffix(t runtime.Type) string {
	if t == runtime.Void {
		return "v"
	}
	k, _ := kind(t)
	switch k {
	case i64:
		return "i64"
	case f64:
		return "f64"
	}
	return "i32"
}

func (e *body) getField(f *runtime.Field) {
	e.nameRef(f.Owner.Name())
	e.nameRef(f.Name)
	e.host("get_" + suffix(f.Type))
}

func (e *body) getStatic(f *runtime.Field) {
	e.nameRef(f.Owner.Name())
	e.nameRef(f.Name)
	e.host("sget_" + suffix(f.Type))
}

func (e *body) name(n *ast.Name) {
	ref := e.info.Names[n]
	switch {
	case ref == nil:
		e.fail(n, "unresolved name %s", n)
	case ref.Local != nil && len(ref.Fields) == 0:
		e.u32(opLocalGet, e.local(ref.Local))
	case ref.Local == nil && len(ref.Fields) == 1:
		if f := ref.Fields[0]; f.IsStatic() {
			e.getStatic(f)
		} else {
			e.getField(f)
		}
	default:
		e.unsupported(n, "field access through a reference")
	}
}

// args pushes each argument converted to its parameter type onto the argument stack.
func (e *body) args(params []runtime.Type, args []ast.Expr) {
	for i, a := range args {
		e.convert(a, params[i])
		e.host("arg_" + suffix(params[i]))
	}
}

func (e *body) call(x *ast.MethodCall) {
	m := e.info.Calls[x].Method
	switch {
	case x.X == nil, isThis(x.X):
	case m.IsStatic() && isTypeName(e.info, x.X):
	default:
		e.unsupported(x, "method call on a reference")
		return
	}
	e.args(m.Params, x.Args)
	switch {
	case m.IsStatic():
		e.nameRef(m.Owner.Name())
		e.nameRef(m.Name)
		e.host("scall_" + suffix(m.Return))
	case m.IsPrivate():
		e.nameRef(m.Owner.Name())
		e.nameRef(m.Name)
		e.host("pcall_" + suffix(m.Return))
	default:
		e.nameRef(m.Name)
		e.host("vcall_" + suffix(m.Return))
	}
}

func (e *body) unary(x *ast.Unary) {
	t := e.typeOf(x)
	switch x.Op {
	case "++", "--":
		e.update(e.target(x.X), false, func() {
			e.one(t)
			e.operator(x, x.Op[:1], t)
		})
	case "+":
		e.convert(x.X, t)
	case "-":
		switch t {
		case runtime.Double:
			e.convert(x.X, t)
			e.op(opF64Neg)
		case runtime.Long:
			e.i64(0)
			e.convert(x.X, t)
			e.op(opI64Sub)
		default:
			e.i32(0)
			e.convert(x.X, t)
			e.op(opI32Sub)
		}
	case "~":
		e.convert(x.X, t)
		if t == runtime.Long {
			e.i64(-1)
			e.op(opI64Xor)
		} else {
			e.i32(-1)
			e.op(opI32Xor)
		}
	case "!":
		e.expr(x.X)
		e.op(opI32Eqz)
	default:
		e.fail(x, "unsupported operator %s", x.Op)
	}
}

func isNumeric(t runtime.Type) bool {
	return t == runtime.Int || t == runtime.Long || t == runtime.Double
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

func isComparison(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

// operands returns the types the operands of op are converted to before it is applied. A
// shift count takes the width of the shifted value.
func operands(op string, xt, yt, res runtime.Type) (runtime.Type, runtime.Type) {
	switch {
	case isComparison(op):
		if isNumeric(xt) && isNumeric(yt) {
			p := promote(xt, yt)
			return p, p
		}
		return xt, yt
	}
	return res, res
}

func (e *body) binary(x *ast.Binary) {
	switch x.Op {
	case "&&":
		e.expr(x.X)
		e.enter(opIf, byte(i32), ctlPlain)
		e.expr(x.Y)
		e.op(opElse)
		e.i32(0)
		e.end()
		return
	case "||":
		e.expr(x.X)
		e.enter(opIf, byte(i32), ctlPlain)
		e.i32(1)
		e.op(opElse)
		e.expr(x.Y)
		e.end()
		return
	}
	xt, yt := e.typeOf(x.X), e.typeOf(x.Y)
	lt, rt := operands(x.Op, xt, yt, e.typeOf(x))
	e.convert(x.X, lt)
	e.convert(x.Y, rt)
	e.operator(x, x.Op, lt)
}

var (
	i32Ops = map[string]byte{
		"==": opI32Eq, "!=": opI32Ne, "<": opI32LtS, "<=": opI32LeS, ">": opI32GtS, ">=": opI32GeS,
		"+": opI32Add, "-": opI32Sub, "*": opI32Mul,
		"&": opI32And, "|": opI32Or, "^": opI32Xor,
		"<<": opI32Shl, ">>": opI32ShrS, ">>>": opI32ShrU,
	}
	i64Ops = map[string]byte{
		"==": opI64Eq, "!=": opI64Ne, "<": opI64LtS, "<=": opI64LeS, ">": opI64GtS, ">=": opI64GeS,
		"+": opI64Add, "-": opI64Sub, "*": opI64Mul,
		"&": opI64And, "|": opI64Or, "^": opI64Xor,
		"<<": opI64Shl, ">>": opI64ShrS, ">>>": opI64ShrU,
	}
	f64Ops = map[string]byte{
		"==": opF64Eq, "!=": opF64Ne, "<": opF64Lt, "<=": opF64Le, ">": opF64Gt, ">=": opF64Ge,
		"+": opF64Add, "-": opF64Sub, "*": opF64Mul, "/": opF64Div,
	}
	// hostOps are the operators delegated to the host for their exceptions and semantics.
	hostOps = map[string]map[valType]string{
		"/": {i32: "idiv", i64: "ldiv"},
		"%": {i32: "irem", i64: "lrem", f64: "drem"},
	}
)

// operator applies the binary operator op to two operands of type t on the stack.
func (e *body) operator(n ast.Node, op string, t runtime.Type) {
	k, _ := kind(t)
	if fn, ok := hostOps[op][k]; ok {
		e.host(fn)
		return
	}
	table := i32Ops
	switch k {
	case i64:
		table = i64Ops
	case f64:
		table = f64Ops
	}
	if code, ok := table[op]; ok {
		e.op(code)
		return
	}
	e.fail(n, "unsupported operator %s on %s", op, t.Name())
}

// target is an assignable location: a local, a field of this or a static field.
type target struct {
	local  *check.Local
	field  *runtime.Field
	typ    runtime.Type
	static bool
}

func (e *body) target(x ast.Expr) target {
	t := target{typ: e.typeOf(x)}
	switch x := ast.Unparen(x).(type) {
	case *ast.Name:
		ref := e.info.Names[x]
		switch {
		case ref == nil:
			e.fail(x, "unresolved name %s", x)
		case ref.Local != nil && len(ref.Fields) == 0:
			t.local = ref.Local
		case ref.Local == nil && len(ref.Fields) == 1:
			t.field = ref.Fields[0]
		default:
			e.unsupported(x, "assignment through a reference")
		}
	case *ast.FieldAccess:
		t.field = e.info.Fields[x]
		if !isThis(x.X) && !(t.field.IsStatic() && isTypeName(e.info, x.X)) {
			e.unsupported(x, "assignment through a reference")
		}
	case *ast.SuperFieldAccess:
		t.field = e.info.Fields[x]
	default:
		e.unsupported(x, "assignment target")
	}
	if t.field != nil {
		t.static = t.field.IsStatic()
	}
	return t
}

// prepare pushes the operands the store of t needs below the value.
func (e *body) prepare(t target) {
	if t.field != nil {
		e.nameRef(t.field.Owner.Name())
		e.nameRef(t.field.Name)
	}
}

func (e *body) load(t target) {
	switch {
	case t.local != nil:
		e.u32(opLocalGet, e.local(t.local))
	case t.static:
		e.getStatic(t.field)
	case t.field != nil:
		e.getField(t.field)
	}
}

func (e *body) store(t target) {
	switch {
	case t.local != nil:
		e.u32(opLocalSet, e.local(t.local))
	case t.static:
		e.host("sset_" + suffix(t.typ))
	case t.field != nil:
		e.host("set_" + suffix(t.typ))
	}
}

// update stores the value compute derives from the current value of t, and leaves the
// old value when post is set or the new one otherwise.
func (e *body) update(t target, post bool, compute func()) {
	k, ok := kind(t.typ)
	if !ok {
		return
	}
	tmp := e.temp(k)
	e.prepare(t)
	e.load(t)
	if post {
		e.u32(opLocalTee, tmp)
	}
	compute()
	if !post {
		e.u32(opLocalTee, tmp)
	}
	e.store(t)
	e.u32(opLocalGet, tmp)
}

// assignField stores the value of rhs into the field f and leaves it on the stack.
func (e *body) assignField(n ast.Node, f *runtime.Field, rhs func()) {
	k, ok := kind(f.Type)
	if !ok {
		e.unsupported(n, "field of type "+f.Type.Name())
		return
	}
	t := target{field: f, typ: f.Type, static: f.IsStatic()}
	tmp := e.temp(k)
	e.prepare(t)
	rhs()
	e.u32(opLocalTee, tmp)
	e.store(t)
	e.u32(opLocalGet, tmp)
}

func (e *body) assign(a *ast.Assign) {
	t := e.target(a.LHS)
	lt := t.typ
	if a.Op == "=" {
		switch {
		case t.local != nil:
			e.convert(a.RHS, lt)
			e.u32(opLocalTee, e.local(t.local))
		case t.field != nil:
			e.assignField(a, t.field, func() { e.convert(a.RHS, lt) })
		}
		return
	}

	op := strings.TrimSuffix(a.Op, "=")
	rt := e.typeOf(a.RHS)
	var res runtime.Type
	switch {
	case op == "<<" || op == ">>" || op == ">>>":
		res = lt
	case lt == runtime.Boolean:
		res = runtime.Boolean
	default:
		res = promote(lt, rt)
	}
	xo, yo := operands(op, lt, rt, res)
	e.update(t, false, func() {
		e.conversion(lt, xo)
		e.convert(a.RHS, yo)
		e.operator(a, op, xo)
		e.conversion(res, lt)
	})
}
