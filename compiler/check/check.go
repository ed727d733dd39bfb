// Package check performs semantic analysis of a parsed compilation unit.
//
// The unit's types are first declared into a scratch runtime.Loader that delegates to the
// parent loader, so that unit types and already loaded types are seen through the same
// runtime.Type handles. Method bodies are then checked against those handles and the
// results are recorded in an Info, in the manner of go/types: expression types, the
// resolution of every name, field access, call and instantiation, and local variables.
package check

import (
	"context"
	"log/slog"
	"strings"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/internal/helpers"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

// Local is a parameter or local variable. Index is unique within its body.
type Local struct {
	Name  string
	Type  runtime.Type
	Final bool
	Param bool
	Index int
}

// NameRef is the resolution of an ast.Name. The name starts at Local, at the type Type, or,
// when both are nil, at an implicit this (instance field) or a class (static field), and
// continues through Fields. A NameRef with Type set and no Fields denotes a type.
type NameRef struct {
	Local  *Local
	Type   *runtime.Class
	Fields []*runtime.Field
}

// IsType reports whether the name denotes a type rather than a value.
func (r *NameRef) IsType() bool {
	return r.Type != nil && len(r.Fields) == 0
}

// Call is the resolution of a method call.
type Call struct {
	Method *runtime.Method
	// Implicit is set for unqualified calls, which go through this for instance methods.
	Implicit bool
	// Super is set for super.m(...) calls, which are not dispatched virtually.
	Super bool
}

// Info holds the results of checking one unit.
type Info struct {
	Unit *ast.CompilationUnit
	// Scratch is the loader the unit's types were declared into for checking.
	Scratch *runtime.Loader

	ClassOf  map[ast.TypeDecl]*runtime.Class
	MethodOf map[*ast.MethodDecl]*runtime.Method
	CtorOf   map[*ast.ConstructorDecl]*runtime.Constructor
	FieldOf  map[*ast.VarDeclarator]*runtime.Field

	Types    map[ast.Expr]runtime.Type
	TypeRefs map[*ast.TypeRef]runtime.Type
	Names    map[*ast.Name]*NameRef
	Fields   map[ast.Expr]*runtime.Field
	Calls    map[ast.Expr]*Call
	News     map[*ast.New]*runtime.Constructor
	Locals   map[ast.Node]*Local
	// Frames holds the number of locals of each body, keyed by the method, constructor or
	// initializer declaring it.
	Frames map[ast.Node]int
}

func newInfo(unit *ast.CompilationUnit) *Info {
	return &Info{
		Unit:     unit,
		ClassOf:  make(map[ast.TypeDecl]*runtime.Class),
		MethodOf: make(map[*ast.MethodDecl]*runtime.Method),
		CtorOf:   make(map[*ast.ConstructorDecl]*runtime.Constructor),
		FieldOf:  make(map[*ast.VarDeclarator]*runtime.Field),
		Types:    make(map[ast.Expr]runtime.Type),
		TypeRefs: make(map[*ast.TypeRef]runtime.Type),
		Names:    make(map[*ast.Name]*NameRef),
		Fields:   make(map[ast.Expr]*runtime.Field),
		Calls:    make(map[ast.Expr]*Call),
		News:     make(map[*ast.New]*runtime.Constructor),
		Locals:   make(map[ast.Node]*Local),
		Frames:   make(map[ast.Node]int),
	}
}

// TypeOf returns the recorded type of e.
func (info *Info) TypeOf(e ast.Expr) runtime.Type {
	return info.Types[e]
}

// Option configures Check.
type Option func(*checker)

// WithLogHandler sets the handler for the checker's debug output.
func WithLogHandler(h slog.Handler) Option {
	return func(c *checker) {
		_, c.logger = helpers.SetupLogger(h, "check", "Checker")
	}
}

type checker struct {
	ctx     context.Context
	unit    *ast.CompilationUnit
	parent  *runtime.Loader
	scratch *runtime.Loader
	info    *Info
	logger  *slog.Logger

	// unit types by qualified and by simple name
	unitTypes  map[string]ast.TypeDecl
	simpleUnit map[string]string

	imports *imports
	// initialized holds the fields declared with an initializer.
	initialized map[*runtime.Field]bool
}

// Check analyses unit against the classes visible through parent (the System loader when
// nil). The first error found is returned as a diag Compile error.
func Check(ctx context.Context, unit *ast.CompilationUnit, parent *runtime.Loader, opts ...Option) (*Info, error) {
	if unit == nil {
		return nil, diag.InvalidArgumentf("compilation unit is nil")
	}
	if parent == nil {
		parent = runtime.System()
	}
	c := &checker{
		ctx:        ctx,
		unit:       unit,
		parent:     parent,
		info:       newInfo(unit),
		unitTypes:  make(map[string]ast.TypeDecl),
		simpleUnit: make(map[string]string),

		initialized: make(map[*runtime.Field]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		_, c.logger = helpers.SetupLogger(nil, "check", "Checker")
	}

	for _, td := range unit.Types {
		q := unit.QualifiedName(td.TypeName())
		if _, dup := c.unitTypes[q]; dup {
			return nil, errorf(td, "duplicate class %s", q)
		}
		c.unitTypes[q] = td
		c.simpleUnit[td.TypeName()] = q
	}

	imps, err := c.resolveImports()
	if err != nil {
		return nil, err
	}
	c.imports = imps

	if err := c.declare(); err != nil {
		return nil, err
	}
	if err := c.checkDeclarations(); err != nil {
		return nil, err
	}
	if err := c.checkBodies(); err != nil {
		return nil, err
	}
	c.logger.Debug("unit checked", "origin", unit.Origin, "types", len(unit.Types))
	return c.info, nil
}

func errorf(n ast.Node, format string, args ...any) error {
	loc := n.Location()
	return diag.Compilef(&loc, format, args...)
}

// nullType is the type of the null literal.
type nullType struct{}

func (nullType) Name() string                { return "null" }
func (nullType) IsInterface() bool           { return false }
func (nullType) IsAbstract() bool            { return false }
func (nullType) IsArray() bool               { return false }
func (nullType) IsPrimitive() bool           { return false }
func (nullType) HasZeroArgConstructor() bool { return false }

// Null is the type recorded for the null literal.
var Null runtime.Type = nullType{}

func typeName(t runtime.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}

func typeList(ts []runtime.Type) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = typeName(t)
	}
	return strings.Join(names, ",")
}
