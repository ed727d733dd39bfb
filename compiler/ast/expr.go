package ast

import "strings"

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	expr()
}

type LitKind int

const (
	IntLit LitKind = iota
	LongLit
	DoubleLit
	StringLit
	BoolLit
	NullLit
)

// Literal holds an int32, int64, float64, string, bool or nil Value according to Kind.
type Literal struct {
	Pos
	Kind  LitKind
	Value any
}

// Name is a possibly qualified name whose meaning (local, field, type, package) is only
// known after checking, such as "a.b.c".
type Name struct {
	Pos
	Parts []string
}

func (n *Name) String() string {
	return strings.Join(n.Parts, ".")
}

// FieldAccess is "X.Name" where X is not a plain name.
type FieldAccess struct {
	Pos
	X    Expr
	Name string
}

// MethodCall is "[X.]Name(Args)". X is nil for unqualified calls and may be a *Name that
// denotes a type for static calls.
type MethodCall struct {
	Pos
	X    Expr
	Name string
	Args []Expr
}

type SuperMethodCall struct {
	Pos
	Name string
	Args []Expr
}

type SuperFieldAccess struct {
	Pos
	Name string
}

type This struct{ Pos }

type New struct {
	Pos
	Type *TypeRef
	Args []Expr
}

// Unary is a prefix operation: + - ! ~ ++ --.
type Unary struct {
	Pos
	Op string
	X  Expr
}

// Postfix is "X++" or "X--".
type Postfix struct {
	Pos
	Op string
	X  Expr
}

type Binary struct {
	Pos
	Op string
	X  Expr
	Y  Expr
}

type Conditional struct {
	Pos
	Cond Expr
	Then Expr
	Else Expr
}

// Assign is "LHS Op RHS" with Op "=" or a compound operator such as "+=".
type Assign struct {
	Pos
	Op  string
	LHS Expr
	RHS Expr
}

type Cast struct {
	Pos
	Type *TypeRef
	X    Expr
}

type InstanceOf struct {
	Pos
	X    Expr
	Type *TypeRef
}

type Paren struct {
	Pos
	X Expr
}

func (*Literal) expr()          {}
func (*Name) expr()             {}
func (*FieldAccess) expr()      {}
func (*MethodCall) expr()       {}
func (*SuperMethodCall) expr()  {}
func (*SuperFieldAccess) expr() {}
func (*This) expr()             {}
func (*New) expr()              {}
func (*Unary) expr()            {}
func (*Postfix) expr()          {}
func (*Binary) expr()           {}
func (*Conditional) expr()      {}
func (*Assign) expr()           {}
func (*Cast) expr()             {}
func (*InstanceOf) expr()       {}
func (*Paren) expr()            {}

// Unparen strips enclosing parentheses.
func Unparen(e Expr) Expr {
	for {
		p, ok := e.(*Paren)
		if !ok {
			return e
		}
		e = p.X
	}
}
