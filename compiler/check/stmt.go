package check

import (
	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/runtime"
)

type bodyKind int

const (
	methodBody bodyKind = iota
	constructorBody
	initializerBody
	fieldInit
)

type loop struct {
	broken bool
}

// body is the checking state of one method, constructor, initializer or field initializer.
type body struct {
	*checker
	class  *runtime.Class
	kind   bodyKind
	static bool
	// result is the declared return type of a method, Void otherwise.
	result runtime.Type

	scopes  []map[string]*Local
	nlocals int
	loops   []*loop
}

func (c *checker) newBody(cls *runtime.Class, kind bodyKind, static bool, result runtime.Type) *body {
	if result == nil {
		result = runtime.Void
	}
	return &body{checker: c, class: cls, kind: kind, static: static, result: result}
}

func (c *checker) checkBodies() error {
	for _, td := range c.unit.Types {
		cls := c.info.ClassOf[td]
		for _, m := range td.MemberList() {
			if err := c.ctx.Err(); err != nil {
				return err
			}
			var err error
			switch m := m.(type) {
			case *ast.FieldDecl:
				err = c.checkFieldInits(cls, m)
			case *ast.MethodDecl:
				err = c.checkMethod(cls, m)
			case *ast.ConstructorDecl:
				b := c.newBody(cls, constructorBody, false, nil)
				err = b.run(m, m.Params, m.Body)
			case *ast.Initializer:
				b := c.newBody(cls, initializerBody, m.Static, nil)
				err = b.run(m, nil, m.Body)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *checker) checkFieldInits(cls *runtime.Class, fd *ast.FieldDecl) error {
	for _, v := range fd.Vars {
		if v.Init == nil {
			continue
		}
		f := c.info.FieldOf[v]
		b := c.newBody(cls, fieldInit, f.IsStatic(), nil)
		if err := b.convert(v.Init, f.Type); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkMethod(cls *runtime.Class, md *ast.MethodDecl) error {
	if md.Body == nil {
		return nil
	}
	m := c.info.MethodOf[md]
	b := c.newBody(cls, methodBody, m.IsStatic(), m.Return)
	return b.run(md, md.Params, md.Body)
}

// run checks a body with its parameters in scope.
func (b *body) run(owner ast.Node, params []*ast.Param, blk *ast.Block) error {
	b.push()
	for _, p := range params {
		t, err := b.resolveRef(p.Type)
		if err != nil {
			return err
		}
		if _, err := b.declareLocal(p, p.Name, t, p.Final, true); err != nil {
			return err
		}
	}
	live, err := b.block(blk)
	if err != nil {
		return err
	}
	b.pop()
	b.info.Frames[owner] = b.nlocals
	if live && b.result != runtime.Void {
		return errorf(owner, "missing return statement")
	}
	return nil
}

func (b *body) push() {
	b.scopes = append(b.scopes, make(map[string]*Local))
}

func (b *body) pop() {
	b.scopes = b.scopes[:len(b.scopes)-1]
}

func (b *body) lookupLocal(name string) *Local {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if l, ok := b.scopes[i][name]; ok {
			return l
		}
	}
	return nil
}

func (b *body) declareLocal(n ast.Node, name string, t runtime.Type, final, param bool) (*Local, error) {
	if b.lookupLocal(name) != nil {
		return nil, errorf(n, "variable %s is already defined", name)
	}
	l := &Local{Name: name, Type: t, Final: final, Param: param, Index: b.nlocals}
	b.nlocals++
	b.scopes[len(b.scopes)-1][name] = l
	b.info.Locals[n] = l
	return l, nil
}

func (b *body) block(blk *ast.Block) (bool, error) {
	b.push()
	defer b.pop()
	return b.stmts(blk.Stmts)
}

// stmts checks a statement list and reports whether it can complete normally.
func (b *body) stmts(list []ast.Stmt) (bool, error) {
	live := true
	for _, s := range list {
		if !live {
			return false, errorf(s, "unreachable statement")
		}
		var err error
		if live, err = b.stmt(s); err != nil {
			return false, err
		}
	}
	return live, nil
}

// sub checks a statement nested in a control statement in its own scope.
func (b *body) sub(s ast.Stmt) (bool, error) {
	b.push()
	defer b.pop()
	return b.stmt(s)
}

func isTrue(e ast.Expr) bool {
	lit, ok := ast.Unparen(e).(*ast.Literal)
	return ok && lit.Kind == ast.BoolLit && lit.Value == true
}

func isFalse(e ast.Expr) bool {
	lit, ok := ast.Unparen(e).(*ast.Literal)
	return ok && lit.Kind == ast.BoolLit && lit.Value == false
}

func (b *body) stmt(s ast.Stmt) (bool, error) {
	switch s := s.(type) {
	case *ast.Block:
		return b.block(s)

	case *ast.LocalVarDecl:
		return true, b.localVarDecl(s)

	case *ast.ExprStmt:
		_, err := b.expr(s.X)
		return true, err

	case *ast.EmptyStmt:
		return true, nil

	case *ast.IfStmt:
		if err := b.condition(s.Cond); err != nil {
			return false, err
		}
		thenLive, err := b.sub(s.Then)
		if err != nil {
			return false, err
		}
		if s.Else == nil {
			return true, nil
		}
		elseLive, err := b.sub(s.Else)
		if err != nil {
			return false, err
		}
		return thenLive || elseLive, nil

	case *ast.WhileStmt:
		if err := b.condition(s.Cond); err != nil {
			return false, err
		}
		if isFalse(s.Cond) {
			return false, errorf(s.Body, "unreachable statement")
		}
		l, err := b.loopBody(s.Body)
		if err != nil {
			return false, err
		}
		return !isTrue(s.Cond) || l.broken, nil

	case *ast.DoStmt:
		l, err := b.loopBody(s.Body)
		if err != nil {
			return false, err
		}
		if err := b.condition(s.Cond); err != nil {
			return false, err
		}
		return !isTrue(s.Cond) || l.broken, nil

	case *ast.ForStmt:
		b.push()
		defer b.pop()
		for _, init := range s.Init {
			if _, err := b.stmt(init); err != nil {
				return false, err
			}
		}
		if s.Cond != nil {
			if err := b.condition(s.Cond); err != nil {
				return false, err
			}
			if isFalse(s.Cond) {
				return false, errorf(s.Body, "unreachable statement")
			}
		}
		for _, u := range s.Update {
			if _, err := b.expr(u); err != nil {
				return false, err
			}
		}
		l, err := b.loopBody(s.Body)
		if err != nil {
			return false, err
		}
		return (s.Cond != nil && !isTrue(s.Cond)) || l.broken, nil

	case *ast.BreakStmt:
		if len(b.loops) == 0 {
			return false, errorf(s, "break outside switch or loop")
		}
		b.loops[len(b.loops)-1].broken = true
		return false, nil

	case *ast.ContinueStmt:
		if len(b.loops) == 0 {
			return false, errorf(s, "continue outside of loop")
		}
		return false, nil

	case *ast.ReturnStmt:
		return false, b.returnStmt(s)
	}
	return false, errorf(s, "unsupported statement %T", s)
}

func (b *body) loopBody(s ast.Stmt) (*loop, error) {
	l := &loop{}
	b.loops = append(b.loops, l)
	defer func() { b.loops = b.loops[:len(b.loops)-1] }()
	_, err := b.sub(s)
	return l, err
}

func (b *body) condition(e ast.Expr) error {
	t, err := b.value(e)
	if err != nil {
		return err
	}
	if t != runtime.Boolean {
		return errorf(e, "incompatible types: %s cannot be converted to boolean", typeName(t))
	}
	return nil
}

func (b *body) localVarDecl(s *ast.LocalVarDecl) error {
	t, err := b.resolveRef(s.Type)
	if err != nil {
		return err
	}
	if t == runtime.Void {
		return errorf(s, "illegal start of expression: variables cannot have type void")
	}
	for _, v := range s.Vars {
		if v.Init != nil {
			if err := b.convert(v.Init, t); err != nil {
				return err
			}
		}
		if _, err := b.declareLocal(v, v.Name, t, s.Final, false); err != nil {
			return err
		}
	}
	return nil
}

func (b *body) returnStmt(s *ast.ReturnStmt) error {
	switch {
	case b.kind == initializerBody || b.kind == fieldInit:
		return errorf(s, "return outside method")
	case b.result == runtime.Void && s.X != nil:
		return errorf(s, "incompatible types: unexpected return value")
	case b.result != runtime.Void && s.X == nil:
		return errorf(s, "missing return value")
	case s.X == nil:
		return nil
	}
	return b.convert(s.X, b.result)
}

// convert checks e and that its type is assignable to t.
func (b *body) convert(e ast.Expr, t runtime.Type) error {
	et, err := b.value(e)
	if err != nil {
		return err
	}
	if !assignable(et, t) {
		return errorf(e, "incompatible types: %s cannot be converted to %s", typeName(et), typeName(t))
	}
	return nil
}
