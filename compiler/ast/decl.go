package ast

// TypeDecl is a class or interface declaration.
type TypeDecl interface {
	Node
	TypeName() string
	Mods() Modifiers
	MemberList() []Member
}

// Member is a field, method, constructor or initializer.
type Member interface {
	Node
	member()
}

// ClassDecl is a class declaration. Members may be appended while parsing continues.
type ClassDecl struct {
	Pos
	Modifiers  Modifiers
	Name       string
	Extends    *TypeRef
	Implements []*TypeRef
	Members    []Member
}

func (c *ClassDecl) TypeName() string     { return c.Name }
func (c *ClassDecl) Mods() Modifiers      { return c.Modifiers }
func (c *ClassDecl) MemberList() []Member { return c.Members }

// AddMember appends m to the declaration.
func (c *ClassDecl) AddMember(m Member) {
	c.Members = append(c.Members, m)
}

type InterfaceDecl struct {
	Pos
	Modifiers Modifiers
	Name      string
	Extends   []*TypeRef
	Members   []Member
}

func (i *InterfaceDecl) TypeName() string     { return i.Name }
func (i *InterfaceDecl) Mods() Modifiers      { return i.Modifiers }
func (i *InterfaceDecl) MemberList() []Member { return i.Members }

func (i *InterfaceDecl) AddMember(m Member) {
	i.Members = append(i.Members, m)
}

type FieldDecl struct {
	Pos
	Modifiers Modifiers
	Type      *TypeRef
	Vars      []*VarDeclarator
}

type VarDeclarator struct {
	Pos
	Name string
	Init Expr
}

type Param struct {
	Pos
	Final bool
	Type  *TypeRef
	Name  string
}

// MethodDecl has a nil Body when declared abstract or native.
type MethodDecl struct {
	Pos
	Modifiers Modifiers
	Return    *TypeRef
	Name      string
	Params    []*Param
	Body      *Block
}

type ConstructorDecl struct {
	Pos
	Modifiers Modifiers
	Params    []*Param
	Body      *Block
}

// Initializer is an instance "{ ... }" or static "static { ... }" initializer block.
type Initializer struct {
	Pos
	Static bool
	Body   *Block
}

func (*FieldDecl) member()       {}
func (*MethodDecl) member()      {}
func (*ConstructorDecl) member() {}
func (*Initializer) member()     {}
