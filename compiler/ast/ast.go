// Package ast declares the syntax tree built by the parser and consumed by the checker and
// the machine generators.
package ast

import (
	"strings"

	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

// Node is implemented by every syntax tree node.
type Node interface {
	Location() diag.Location
}

// Pos is embedded in nodes to provide Location.
type Pos struct {
	Loc diag.Location
}

func (p Pos) Location() diag.Location {
	return p.Loc
}

// At returns a Pos for loc.
func At(loc diag.Location) Pos {
	return Pos{Loc: loc}
}

// CompilationUnit is the root of a syntax tree.
type CompilationUnit struct {
	Origin  string
	Package *PackageDecl
	Imports []*ImportDecl
	Types   []TypeDecl
}

// NewCompilationUnit returns an empty unit tagged with origin.
func NewCompilationUnit(origin string) *CompilationUnit {
	return &CompilationUnit{Origin: origin}
}

func (u *CompilationUnit) SetPackage(p *PackageDecl) {
	u.Package = p
}

func (u *CompilationUnit) AddImport(i *ImportDecl) {
	u.Imports = append(u.Imports, i)
}

func (u *CompilationUnit) AddType(t TypeDecl) {
	u.Types = append(u.Types, t)
}

// PackageName returns the declared package, or "" for the unnamed package.
func (u *CompilationUnit) PackageName() string {
	if u.Package == nil {
		return ""
	}
	return u.Package.Name
}

// QualifiedName returns the fully qualified name of a top-level type of this unit.
func (u *CompilationUnit) QualifiedName(simple string) string {
	if pkg := u.PackageName(); pkg != "" {
		return pkg + "." + simple
	}
	return simple
}

type PackageDecl struct {
	Pos
	Name string
}

// ImportDecl is "import [static] a.b.C;" or "import [static] a.b.*;".
type ImportDecl struct {
	Pos
	Static   bool
	Parts    []string
	OnDemand bool
}

// Name returns the dotted name without the trailing ".*".
func (i *ImportDecl) Name() string {
	return strings.Join(i.Parts, ".")
}

func (i *ImportDecl) String() string {
	var b strings.Builder
	b.WriteString("import ")
	if i.Static {
		b.WriteString("static ")
	}
	b.WriteString(i.Name())
	if i.OnDemand {
		b.WriteString(".*")
	}
	b.WriteString(";")
	return b.String()
}

// TypeRef names a type in source. Handle is set when the reference was created from an
// already loaded type rather than parsed from text.
type TypeRef struct {
	Pos
	Name   string
	Handle runtime.Type
}

// HandleRef builds a TypeRef for an existing runtime type.
func HandleRef(loc diag.Location, t runtime.Type) *TypeRef {
	return &TypeRef{Pos: At(loc), Name: t.Name(), Handle: t}
}

func (t *TypeRef) String() string {
	return t.Name
}
