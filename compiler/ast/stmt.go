package ast

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmt()
}

type Block struct {
	Pos
	Stmts []Stmt
}

type LocalVarDecl struct {
	Pos
	Final bool
	Type  *TypeRef
	Vars  []*VarDeclarator
}

type ExprStmt struct {
	Pos
	X Expr
}

type IfStmt struct {
	Pos
	Cond Expr
	Then Stmt
	Else Stmt
}

type WhileStmt struct {
	Pos
	Cond Expr
	Body Stmt
}

type DoStmt struct {
	Pos
	Body Stmt
	Cond Expr
}

// ForStmt has Init entries that are *LocalVarDecl or *ExprStmt. Cond is nil for "for(;;)".
type ForStmt struct {
	Pos
	Init   []Stmt
	Cond   Expr
	Update []Expr
	Body   Stmt
}

type BreakStmt struct{ Pos }

type ContinueStmt struct{ Pos }

type ReturnStmt struct {
	Pos
	X Expr
}

type EmptyStmt struct{ Pos }

func (*Block) stmt()        {}
func (*LocalVarDecl) stmt() {}
func (*ExprStmt) stmt()     {}
func (*IfStmt) stmt()       {}
func (*WhileStmt) stmt()    {}
func (*DoStmt) stmt()       {}
func (*ForStmt) stmt()      {}
func (*BreakStmt) stmt()    {}
func (*ContinueStmt) stmt() {}
func (*ReturnStmt) stmt()   {}
func (*EmptyStmt) stmt()    {}
