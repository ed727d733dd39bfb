package check

import (
	"strings"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/runtime"
)

// value checks e where a value is required.
func (b *body) value(e ast.Expr) (runtime.Type, error) {
	t, err := b.expr(e)
	if err != nil {
		return nil, err
	}
	if t == runtime.Void {
		return nil, errorf(e, "'void' type not allowed here")
	}
	return t, nil
}

// expr checks e and records its type.
func (b *body) expr(e ast.Expr) (runtime.Type, error) {
	t, err := b.exprInternal(e)
	if err != nil {
		return nil, err
	}
	b.info.Types[e] = t
	return t, nil
}

func (b *body) exprInternal(e ast.Expr) (runtime.Type, error) {
	switch e := e.(type) {
	case *ast.Literal:
		return literalType(e), nil
	case *ast.Paren:
		return b.value(e.X)
	case *ast.Name:
		ref, t, err := b.resolveName(e, false)
		if err != nil {
			return nil, err
		}
		b.info.Names[e] = ref
		return t, nil
	case *ast.This:
		if b.static {
			return nil, errorf(e, "non-static variable this cannot be referenced from a static context")
		}
		return b.class, nil
	case *ast.FieldAccess:
		return b.fieldAccess(e)
	case *ast.SuperFieldAccess:
		return b.superFieldAccess(e)
	case *ast.MethodCall:
		return b.methodCall(e)
	case *ast.SuperMethodCall:
		return b.superMethodCall(e)
	case *ast.New:
		return b.newExpr(e)
	case *ast.Unary:
		return b.unary(e)
	case *ast.Postfix:
		return b.increment(e, e.Op, e.X)
	case *ast.Binary:
		return b.binary(e)
	case *ast.Conditional:
		return b.conditional(e)
	case *ast.Assign:
		return b.assign(e)
	case *ast.Cast:
		return b.cast(e)
	case *ast.InstanceOf:
		return b.instanceOf(e)
	}
	return nil, errorf(e, "unsupported expression %T", e)
}

func literalType(l *ast.Literal) runtime.Type {
	switch l.Kind {
	case ast.IntLit:
		return runtime.Int
	case ast.LongLit:
		return runtime.Long
	case ast.DoubleLit:
		return runtime.Double
	case ast.StringLit:
		return runtime.StringClass()
	case ast.BoolLit:
		return runtime.Boolean
	default:
		return Null
	}
}

func (b *body) canAccess(mods runtime.Modifiers, owner *runtime.Class) bool {
	return !mods.Has(runtime.Private) || owner == b.class
}

// classOf returns the class to dereference for a value of type t.
func classOf(n ast.Node, t runtime.Type) (*runtime.Class, error) {
	cls, ok := t.(*runtime.Class)
	if !ok {
		return nil, errorf(n, "%s cannot be dereferenced", typeName(t))
	}
	return cls, nil
}

// resolveName resolves a possibly qualified name. With allowType, a name denoting a type
// is accepted and returned with a nil type.
func (b *body) resolveName(n *ast.Name, allowType bool) (*NameRef, runtime.Type, error) {
	ref := &NameRef{}
	parts := n.Parts
	var t runtime.Type
	rest := parts[1:]
	fromType := false

	if l := b.lookupLocal(parts[0]); l != nil {
		ref.Local = l
		t = l.Type
	} else if f := b.class.LookupField(parts[0]); f != nil {
		if !b.canAccess(f.Mods, f.Owner) {
			return nil, nil, errorf(n, "%s has private access in %s", f.Name, f.Owner.Name())
		}
		if !f.IsStatic() && b.static {
			return nil, nil, errorf(n, "non-static variable %s cannot be referenced from a static context", f.Name)
		}
		ref.Fields = append(ref.Fields, f)
		t = f.Type
	} else if f := b.staticImportField(parts[0]); f != nil {
		ref.Fields = append(ref.Fields, f)
		t = f.Type
	} else {
		for i := 1; i <= len(parts); i++ {
			if cls := b.lookupType(n, strings.Join(parts[:i], ".")); cls != nil {
				ref.Type = cls
				t = cls
				rest = parts[i:]
				fromType = true
				break
			}
		}
		if ref.Type == nil {
			return nil, nil, errorf(n, "cannot find symbol: variable %s", parts[0])
		}
	}

	for _, name := range rest {
		cls, err := classOf(n, t)
		if err != nil {
			return nil, nil, err
		}
		f := cls.LookupField(name)
		if f == nil {
			return nil, nil, errorf(n, "cannot find symbol: variable %s in %s", name, cls.Name())
		}
		if !b.canAccess(f.Mods, f.Owner) {
			return nil, nil, errorf(n, "%s has private access in %s", f.Name, f.Owner.Name())
		}
		if fromType && !f.IsStatic() {
			return nil, nil, errorf(n, "non-static variable %s cannot be referenced from a static context", f.Name)
		}
		fromType = false
		ref.Fields = append(ref.Fields, f)
		t = f.Type
	}

	if ref.IsType() {
		if !allowType {
			return nil, nil, errorf(n, "cannot find symbol: variable %s", n)
		}
		return ref, nil, nil
	}
	return ref, t, nil
}

func (b *body) fieldAccess(e *ast.FieldAccess) (runtime.Type, error) {
	xt, err := b.value(e.X)
	if err != nil {
		return nil, err
	}
	cls, err := classOf(e, xt)
	if err != nil {
		return nil, err
	}
	f := cls.LookupField(e.Name)
	if f == nil {
		return nil, errorf(e, "cannot find symbol: variable %s in %s", e.Name, cls.Name())
	}
	if !b.canAccess(f.Mods, f.Owner) {
		return nil, errorf(e, "%s has private access in %s", f.Name, f.Owner.Name())
	}
	b.info.Fields[e] = f
	return f.Type, nil
}

func (b *body) superOf(n ast.Node) (*runtime.Class, error) {
	if b.static {
		return nil, errorf(n, "non-static variable super cannot be referenced from a static context")
	}
	sup := b.class.Super()
	if sup == nil {
		return nil, errorf(n, "%s has no superclass", b.class.Name())
	}
	return sup, nil
}

func (b *body) superFieldAccess(e *ast.SuperFieldAccess) (runtime.Type, error) {
	sup, err := b.superOf(e)
	if err != nil {
		return nil, err
	}
	f := sup.LookupField(e.Name)
	if f == nil {
		return nil, errorf(e, "cannot find symbol: variable %s in %s", e.Name, sup.Name())
	}
	if !b.canAccess(f.Mods, f.Owner) {
		return nil, errorf(e, "%s has private access in %s", f.Name, f.Owner.Name())
	}
	b.info.Fields[e] = f
	return f.Type, nil
}

func (b *body) methodCall(e *ast.MethodCall) (runtime.Type, error) {
	call := &Call{}
	var m *runtime.Method
	switch x := e.X.(type) {
	case nil:
		if m = b.class.LookupMethod(e.Name); m == nil {
			m = b.staticImportMethod(e.Name)
		}
		if m == nil {
			return nil, errorf(e, "cannot find symbol: method %s", e.Name)
		}
		if !m.IsStatic() && b.static {
			return nil, errorf(e, "non-static method %s cannot be referenced from a static context", m)
		}
		call.Implicit = !m.IsStatic()

	case *ast.Name:
		ref, t, err := b.resolveName(x, true)
		if err != nil {
			return nil, err
		}
		b.info.Names[x] = ref
		if ref.IsType() {
			if m = ref.Type.LookupMethod(e.Name); m == nil {
				return nil, errorf(e, "cannot find symbol: method %s in %s", e.Name, ref.Type.Name())
			}
			if !m.IsStatic() {
				return nil, errorf(e, "non-static method %s cannot be referenced from a static context", m)
			}
			break
		}
		b.info.Types[x] = t
		if m, err = b.receiverMethod(e, t); err != nil {
			return nil, err
		}

	default:
		t, err := b.value(x)
		if err != nil {
			return nil, err
		}
		if m, err = b.receiverMethod(e, t); err != nil {
			return nil, err
		}
	}

	if !b.canAccess(m.Mods, m.Owner) {
		return nil, errorf(e, "%s has private access in %s", m, m.Owner.Name())
	}
	if err := b.arguments(e, "method "+e.Name, m.Owner, m.Params, e.Args); err != nil {
		return nil, err
	}
	call.Method = m
	b.info.Calls[e] = call
	return m.Return, nil
}

func (b *body) receiverMethod(e *ast.MethodCall, t runtime.Type) (*runtime.Method, error) {
	cls, err := classOf(e, t)
	if err != nil {
		return nil, err
	}
	m := cls.LookupMethod(e.Name)
	if m == nil {
		return nil, errorf(e, "cannot find symbol: method %s in %s", e.Name, cls.Name())
	}
	return m, nil
}

func (b *body) superMethodCall(e *ast.SuperMethodCall) (runtime.Type, error) {
	sup, err := b.superOf(e)
	if err != nil {
		return nil, err
	}
	m := sup.LookupMethod(e.Name)
	if m == nil {
		return nil, errorf(e, "cannot find symbol: method %s in %s", e.Name, sup.Name())
	}
	if m.IsAbstract() {
		return nil, errorf(e, "abstract method %s cannot be accessed directly", m)
	}
	if !b.canAccess(m.Mods, m.Owner) {
		return nil, errorf(e, "%s has private access in %s", m, m.Owner.Name())
	}
	if err := b.arguments(e, "method "+e.Name, m.Owner, m.Params, e.Args); err != nil {
		return nil, err
	}
	b.info.Calls[e] = &Call{Method: m, Super: true}
	return m.Return, nil
}

// arguments checks call arguments against the parameter types. There is no overloading,
// so a mismatch is reported against the single candidate.
func (b *body) arguments(n ast.Node, what string, owner *runtime.Class, params []runtime.Type, args []ast.Expr) error {
	found := make([]runtime.Type, len(args))
	ok := len(args) == len(params)
	for i, a := range args {
		t, err := b.value(a)
		if err != nil {
			return err
		}
		found[i] = t
		if ok && !assignable(t, params[i]) {
			ok = false
		}
	}
	if !ok {
		return errorf(n, "%s in %s cannot be applied to given types; required: %s; found: %s",
			what, owner.Name(), argList(params), argList(found))
	}
	return nil
}

func argList(ts []runtime.Type) string {
	if len(ts) == 0 {
		return "no arguments"
	}
	return typeList(ts)
}

func (b *body) newExpr(e *ast.New) (runtime.Type, error) {
	t, err := b.resolveRef(e.Type)
	if err != nil {
		return nil, err
	}
	cls, ok := t.(*runtime.Class)
	if !ok {
		return nil, errorf(e, "cannot instantiate %s", typeName(t))
	}
	if cls.IsAbstract() {
		return nil, errorf(e, "%s is abstract; cannot be instantiated", cls.Name())
	}
	ctor := cls.ConstructorFor(len(e.Args))
	if ctor == nil {
		found := make([]runtime.Type, 0, len(e.Args))
		for _, a := range e.Args {
			at, err := b.value(a)
			if err != nil {
				return nil, err
			}
			found = append(found, at)
		}
		return nil, errorf(e, "no suitable constructor found for %s(%s)", cls.Name(), typeList(found))
	}
	if !b.canAccess(ctor.Mods, cls) {
		return nil, errorf(e, "%s(%s) has private access in %s", cls.Name(), typeList(ctor.Params), cls.Name())
	}
	if err := b.arguments(e, "constructor", cls, ctor.Params, e.Args); err != nil {
		return nil, err
	}
	b.info.News[e] = ctor
	return cls, nil
}

func (b *body) unary(e *ast.Unary) (runtime.Type, error) {
	if e.Op == "++" || e.Op == "--" {
		return b.increment(e, e.Op, e.X)
	}
	t, err := b.value(e.X)
	if err != nil {
		return nil, err
	}
	switch {
	case (e.Op == "+" || e.Op == "-") && isNumeric(t):
		return t, nil
	case e.Op == "~" && isIntegral(t):
		return t, nil
	case e.Op == "!" && t == runtime.Boolean:
		return t, nil
	}
	return nil, errorf(e, "bad operand type %s for unary operator '%s'", typeName(t), e.Op)
}

func (b *body) increment(e ast.Expr, op string, x ast.Expr) (runtime.Type, error) {
	if err := b.variable(x); err != nil {
		return nil, err
	}
	t, err := b.value(x)
	if err != nil {
		return nil, err
	}
	if !isNumeric(t) {
		return nil, errorf(e, "bad operand type %s for unary operator '%s'", typeName(t), op)
	}
	return t, nil
}

// variable checks that e denotes a variable that may be assigned.
func (b *body) variable(e ast.Expr) error {
	switch x := ast.Unparen(e).(type) {
	case *ast.Name:
		ref, _, err := b.resolveName(x, false)
		if err != nil {
			return err
		}
		if ref.Local != nil && len(ref.Fields) == 0 {
			if ref.Local.Final {
				return errorf(e, "cannot assign a value to final variable %s", ref.Local.Name)
			}
			return nil
		}
		last := ref.Fields[len(ref.Fields)-1]
		implicit := ref.Local == nil && ref.Type == nil && len(ref.Fields) == 1
		return b.assignableField(e, last, implicit)
	case *ast.FieldAccess:
		if _, err := b.fieldAccess(x); err != nil {
			return err
		}
		_, isThis := ast.Unparen(x.X).(*ast.This)
		return b.assignableField(e, b.info.Fields[x], isThis)
	case *ast.SuperFieldAccess:
		if _, err := b.superFieldAccess(x); err != nil {
			return err
		}
		return b.assignableField(e, b.info.Fields[x], false)
	}
	return errorf(e, "unexpected type: required variable, found value")
}

// assignableField permits assignments to a final field only from the initializers and
// constructors of its own class, through a simple name or this, and only when the field
// has no initializer.
func (b *body) assignableField(e ast.Expr, f *runtime.Field, simple bool) error {
	if !f.Mods.Has(runtime.Final) {
		return nil
	}
	inInit := f.Owner == b.class && simple && !b.initialized[f]
	if f.IsStatic() {
		inInit = inInit && b.kind == initializerBody && b.static
	} else {
		inInit = inInit && !b.static && (b.kind == constructorBody || b.kind == initializerBody)
	}
	if !inInit {
		return errorf(e, "cannot assign a value to final variable %s", f.Name)
	}
	return nil
}

func (b *body) binary(e *ast.Binary) (runtime.Type, error) {
	x, err := b.value(e.X)
	if err != nil {
		return nil, err
	}
	y, err := b.value(e.Y)
	if err != nil {
		return nil, err
	}
	bad := func() (runtime.Type, error) {
		return nil, errorf(e, "bad operand types for binary operator '%s': %s and %s", e.Op, typeName(x), typeName(y))
	}
	switch e.Op {
	case "&&", "||":
		if x == runtime.Boolean && y == runtime.Boolean {
			return runtime.Boolean, nil
		}
	case "&", "|", "^":
		if x == runtime.Boolean && y == runtime.Boolean {
			return runtime.Boolean, nil
		}
		if isIntegral(x) && isIntegral(y) {
			return promote(x, y), nil
		}
	case "+":
		if isString(x) || isString(y) {
			return runtime.StringClass(), nil
		}
		if isNumeric(x) && isNumeric(y) {
			return promote(x, y), nil
		}
	case "-", "*", "/", "%":
		if isNumeric(x) && isNumeric(y) {
			return promote(x, y), nil
		}
	case "<<", ">>", ">>>":
		if isIntegral(x) && isIntegral(y) {
			return x, nil
		}
	case "<", ">", "<=", ">=":
		if isNumeric(x) && isNumeric(y) {
			return runtime.Boolean, nil
		}
	case "==", "!=":
		if equatable(x, y) {
			return runtime.Boolean, nil
		}
		return nil, errorf(e, "incomparable types: %s and %s", typeName(x), typeName(y))
	}
	return bad()
}

func (b *body) conditional(e *ast.Conditional) (runtime.Type, error) {
	if err := b.condition(e.Cond); err != nil {
		return nil, err
	}
	x, err := b.value(e.Then)
	if err != nil {
		return nil, err
	}
	y, err := b.value(e.Else)
	if err != nil {
		return nil, err
	}
	switch {
	case x == y:
		return x, nil
	case isNumeric(x) && isNumeric(y):
		return promote(x, y), nil
	case isRef(x) && isRef(y) && assignable(x, y):
		return y, nil
	case isRef(x) && isRef(y) && assignable(y, x):
		return x, nil
	}
	return nil, errorf(e, "incompatible types in conditional expression: %s and %s", typeName(x), typeName(y))
}

func (b *body) assign(e *ast.Assign) (runtime.Type, error) {
	if err := b.variable(e.LHS); err != nil {
		return nil, err
	}
	lt, err := b.value(e.LHS)
	if err != nil {
		return nil, err
	}
	if e.Op == "=" {
		return lt, b.convert(e.RHS, lt)
	}
	rt, err := b.value(e.RHS)
	if err != nil {
		return nil, err
	}
	op := strings.TrimSuffix(e.Op, "=")
	ok := false
	switch op {
	case "+":
		ok = isString(lt) || isNumeric(lt) && isNumeric(rt)
	case "-", "*", "/", "%":
		ok = isNumeric(lt) && isNumeric(rt)
	case "<<", ">>", ">>>":
		ok = isIntegral(lt) && isIntegral(rt)
	case "&", "|", "^":
		ok = isIntegral(lt) && isIntegral(rt) || lt == runtime.Boolean && rt == runtime.Boolean
	}
	if !ok {
		return nil, errorf(e, "bad operand types for binary operator '%s': %s and %s", op, typeName(lt), typeName(rt))
	}
	return lt, nil
}

func (b *body) cast(e *ast.Cast) (runtime.Type, error) {
	to, err := b.resolveRef(e.Type)
	if err != nil {
		return nil, err
	}
	from, err := b.value(e.X)
	if err != nil {
		return nil, err
	}
	if to == runtime.Void || !castable(from, to) {
		return nil, errorf(e, "incompatible types: %s cannot be converted to %s", typeName(from), typeName(to))
	}
	return to, nil
}

func (b *body) instanceOf(e *ast.InstanceOf) (runtime.Type, error) {
	to, err := b.resolveRef(e.Type)
	if err != nil {
		return nil, err
	}
	from, err := b.value(e.X)
	if err != nil {
		return nil, err
	}
	if !isRef(from) || !isRef(to) || !castable(from, to) {
		return nil, errorf(e, "incompatible types: %s cannot be converted to %s", typeName(from), typeName(to))
	}
	return runtime.Boolean, nil
}
