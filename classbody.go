// Package classbody compiles the body of a class, given as source text, into a class
// loaded by a runtime.Loader and creates instances of it.
//
// A ClassBodyEvaluator wraps the members it reads in a synthetic public class declaration
// named by SetClassName (DefaultClassName unless set), optionally extending the type set
// with SetExtendedClass and implementing the types set with SetImplementedInterfaces.
// Import declarations may precede the members, and default imports configured with
// SetDefaultImports are added ahead of them.
//
//	e, _ := classbody.New()
//	_ = e.SetImplementedInterfaces([]runtime.Type{foo})
//	obj, err := e.CreateInstanceFromString(ctx, "public int bar(int a, int b) { return a + b; }")
//
// An evaluator cooks once. Setters called after cooking has started, and a second cook,
// fail with an IllegalState error.
package classbody

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/parser"
	"github.com/robbyt/go-classbody/compiler/scanner"
	"github.com/robbyt/go-classbody/options"
	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/platform/script/loader"
	"github.com/robbyt/go-classbody/runtime"
)

// DefaultClassName is the name of the generated class unless SetClassName is called.
const DefaultClassName = "SC"

// ClassBodyEvaluator compiles a class body into a loaded class.
type ClassBodyEvaluator struct {
	cookable

	className        string
	extendedType     runtime.Type
	implementedTypes []runtime.Type
	defaultImports   []string

	result *runtime.Class
	// embedded is set for evaluators that serve as the base of another compiler, which
	// must not hand out the generated class as its own result.
	embedded bool
}

// New creates an evaluator with the given options.
func New(opts ...options.Option) (*ClassBodyEvaluator, error) {
	c, err := newCookable("ClassBodyEvaluator", opts)
	if err != nil {
		return nil, err
	}
	return &ClassBodyEvaluator{
		cookable:         c,
		className:        DefaultClassName,
		implementedTypes: []runtime.Type{},
	}, nil
}

// NewBase creates an evaluator meant to be embedded by another compiler. ResultType
// always fails on it.
func NewBase(opts ...options.Option) (*ClassBodyEvaluator, error) {
	e, err := New(opts...)
	if err != nil {
		return nil, err
	}
	e.embedded = true
	return e, nil
}

func (e *ClassBodyEvaluator) String() string {
	return "classbody.ClassBodyEvaluator{" + e.className + "}"
}

// SetClassName sets the qualified name of the generated class.
func (e *ClassBodyEvaluator) SetClassName(name string) error {
	if name == "" {
		return diag.InvalidArgumentf("class name must not be empty")
	}
	if err := e.assertNotCooked(); err != nil {
		return err
	}
	e.className = name
	return nil
}

// SetExtendedClass sets the superclass of the generated class. nil means none.
func (e *ClassBodyEvaluator) SetExtendedClass(t runtime.Type) error {
	if err := e.assertNotCooked(); err != nil {
		return err
	}
	if isNilType(t) {
		t = nil
	}
	e.extendedType = t
	return nil
}

// SetImplementedInterfaces sets the interfaces the generated class implements. No
// interfaces must be given as an empty slice.
func (e *ClassBodyEvaluator) SetImplementedInterfaces(ts []runtime.Type) error {
	if ts == nil {
		return diag.InvalidArgumentf("zero implemented types must be specified as an empty slice, not nil")
	}
	for i, t := range ts {
		if isNilType(t) {
			return diag.InvalidArgumentf("implemented type %d is nil", i)
		}
	}
	if err := e.assertNotCooked(); err != nil {
		return err
	}
	e.implementedTypes = slices.Clone(ts)
	return nil
}

func isNilType(t runtime.Type) bool {
	if t == nil {
		return true
	}
	c, ok := t.(*runtime.Class)
	return ok && c == nil
}

// SetDefaultImports sets import declaration bodies, such as "static lang.Math.*", that are
// added to the unit ahead of the imports of the source. nil means none.
func (e *ClassBodyEvaluator) SetDefaultImports(imports []string) error {
	if err := e.assertNotCooked(); err != nil {
		return err
	}
	e.defaultImports = slices.Clone(imports)
	return nil
}

// Cook reads optional import declarations and then class body declarations from src up
// to end of input, and compiles them into the generated class with all debugging
// information.
func (e *ClassBodyEvaluator) Cook(ctx context.Context, src *scanner.Scanner) error {
	logger := e.logger.WithGroup("cook")
	if err := e.startCooking(); err != nil {
		return err
	}
	if src == nil {
		return diag.InvalidArgumentf("token source is nil")
	}

	unit, err := e.makeCompilationUnit(src)
	if err != nil {
		return err
	}
	decl, err := e.addWrappingDeclaration(src.Location(), unit)
	if err != nil {
		return err
	}
	p := parser.New(src)
	for !src.Peek().IsEOF() {
		if err := p.ParseClassBodyDeclaration(decl); err != nil {
			return err
		}
	}
	logger.Debug("class body parsed", "class", e.className, "members", len(decl.Members), "imports", len(unit.Imports))

	cls, err := e.compileToType(ctx, unit, classfile.DebugAll, e.className)
	if err != nil {
		logger.Warn("cook failed", "class", e.className, "error", err)
		return err
	}
	e.result = cls
	return nil
}

// CookString cooks a class body given as text.
func (e *ClassBodyEvaluator) CookString(ctx context.Context, body string) error {
	return e.Cook(ctx, scanner.FromString(body, ""))
}

// CookReader cooks a class body read from r. origin labels error locations.
func (e *ClassBodyEvaluator) CookReader(ctx context.Context, origin string, r io.Reader) error {
	s, err := scannerFromReader(origin, r)
	if err != nil {
		return err
	}
	return e.Cook(ctx, s)
}

// CookLoader cooks a class body provided by l, labelled with its source URL.
func (e *ClassBodyEvaluator) CookLoader(ctx context.Context, l loader.Loader) error {
	s, err := scannerFromLoader(l)
	if err != nil {
		return err
	}
	return e.Cook(ctx, s)
}

// makeCompilationUnit creates the unit tagged with the origin of src, adding the default
// imports and then the import declarations src starts with. src may be nil.
func (e *ClassBodyEvaluator) makeCompilationUnit(src *scanner.Scanner) (*ast.CompilationUnit, error) {
	origin := ""
	if src != nil {
		origin = src.Origin()
	}
	unit := ast.NewCompilationUnit(origin)

	for _, text := range e.defaultImports {
		s := scanner.FromString(text, "")
		imp, err := parser.New(s).ParseImportDeclarationBody()
		if err != nil {
			return nil, err
		}
		if tok := s.Peek(); !tok.IsEOF() {
			loc := s.Location()
			return nil, diag.Syntaxf(&loc, "unexpected token %q in default import %q", tok.String(), text)
		}
		unit.AddImport(imp)
	}

	if src != nil {
		p := parser.New(src)
		for src.Peek().IsKeyword("import") {
			imp, err := p.ParseImportDeclaration()
			if err != nil {
				return nil, err
			}
			unit.AddImport(imp)
		}
	}
	return unit, nil
}

// addWrappingDeclaration adds the public class declaration named by the class name to
// unit, placing a qualified name's prefix in the package declaration.
func (e *ClassBodyEvaluator) addWrappingDeclaration(loc diag.Location, unit *ast.CompilationUnit) (*ast.ClassDecl, error) {
	name := e.className
	if i := strings.LastIndexByte(name, '.'); i != -1 {
		unit.SetPackage(&ast.PackageDecl{Pos: ast.At(loc), Name: name[:i]})
		name = name[i+1:]
	}
	if name == "" {
		return nil, diag.InvalidArgumentf("class name %q has no simple name", e.className)
	}
	decl := &ast.ClassDecl{
		Pos:        ast.At(loc),
		Modifiers:  ast.Public,
		Name:       name,
		Extends:    typeRef(loc, e.extendedType),
		Implements: typeRefs(loc, e.implementedTypes),
	}
	unit.AddType(decl)
	return decl, nil
}

func typeRef(loc diag.Location, t runtime.Type) *ast.TypeRef {
	if t == nil {
		return nil
	}
	return ast.HandleRef(loc, t)
}

func typeRefs(loc diag.Location, ts []runtime.Type) []*ast.TypeRef {
	refs := make([]*ast.TypeRef, 0, len(ts))
	for _, t := range ts {
		refs = append(refs, typeRef(loc, t))
	}
	return refs
}

// compileToType compiles unit and loads the class name from the resulting loader.
func (e *ClassBodyEvaluator) compileToType(
	ctx context.Context,
	unit *ast.CompilationUnit,
	debug classfile.DebugFlags,
	name string,
) (*runtime.Class, error) {
	l, err := e.compileToLoader(ctx, unit, debug)
	if err != nil {
		return nil, err
	}
	cls, err := l.LoadClass(name)
	if err != nil {
		return nil, diag.Wrap(diag.KindInternal, err, nil, "generated compilation unit does not declare class %s", name)
	}
	return cls, nil
}

// ResultType returns the generated class. It fails before a successful cook and on
// evaluators created with NewBase.
func (e *ClassBodyEvaluator) ResultType() (*runtime.Class, error) {
	if e.embedded {
		return nil, diag.IllegalStatef("must not be called on derived instances")
	}
	if e.result == nil {
		return nil, diag.IllegalStatef("must only be called after cook")
	}
	return e.result, nil
}

// CreateInstance cooks src and creates an instance of the generated class with its
// zero-parameter constructor.
func (e *ClassBodyEvaluator) CreateInstance(ctx context.Context, src *scanner.Scanner) (*runtime.Object, error) {
	if err := e.Cook(ctx, src); err != nil {
		return nil, err
	}
	cls, err := e.ResultType()
	if err != nil {
		return nil, err
	}
	obj, err := runtime.Instantiate(ctx, cls)
	switch {
	case err == nil:
		return obj, nil
	case errors.Is(err, runtime.ErrInstantiation):
		return nil, diag.Wrap(diag.KindCompile, err, nil,
			"class is abstract, an interface, an array class, a primitive type, or void; or has no zero-parameter constructor")
	case errors.Is(err, runtime.ErrIllegalAccess):
		return nil, diag.Wrap(diag.KindCompile, err, nil,
			"the class or its zero-parameter constructor is not accessible")
	default:
		return nil, err
	}
}

// CreateInstanceFromString is CreateInstance for a class body given as text.
func (e *ClassBodyEvaluator) CreateInstanceFromString(ctx context.Context, body string) (*runtime.Object, error) {
	return e.CreateInstance(ctx, scanner.FromString(body, ""))
}

// CreateInstanceFromLoader is CreateInstance for a class body provided by l.
func (e *ClassBodyEvaluator) CreateInstanceFromLoader(ctx context.Context, l loader.Loader) (*runtime.Object, error) {
	s, err := scannerFromLoader(l)
	if err != nil {
		return nil, err
	}
	return e.CreateInstance(ctx, s)
}
