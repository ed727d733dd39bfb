package wasm

import (
	"fmt"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/check"
	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

// Name is the machine identifier stored in generated class files.
const Name = "wasm"

// Export names of the functions of a class module.
const (
	exportClinit = "clinit"
	exportInit   = "init"
)

// Generate translates a checked unit into a class file with one WebAssembly module per
// class. Only primitive values are supported: any expression of a reference type is
// reported as a compile error.
func (m *Machine) Generate(unit *ast.CompilationUnit, info *check.Info, debug classfile.DebugFlags) (*classfile.File, error) {
	if unit == nil || info == nil {
		return nil, diag.InvalidArgumentf("unit and check info are required")
	}
	file := &classfile.File{Machine: Name, Debug: debug}
	if debug.Has(classfile.DebugSource) {
		file.SourceFile = unit.Origin
	}
	size := 0
	for _, td := range unit.Types {
		g := &generator{info: info, debug: debug, mod: newModule()}
		cls := g.class(td)
		if g.err != nil {
			return nil, g.err
		}
		cls.Code = g.mod.encode()
		size += len(cls.Code)
		file.Classes = append(file.Classes, cls)
	}
	m.logger.Debug("unit generated", "origin", unit.Origin, "classes", len(file.Classes), "codeSize", size)
	return file, nil
}

// newModule returns a module importing every host function.
func newModule() *module {
	mod := &module{}
	for _, h := range hostFuncs {
		mod.addImport(h.name, funcType{params: h.params, results: h.results})
	}
	return mod
}

// generator builds the module of one class.
type generator struct {
	info  *check.Info
	debug classfile.DebugFlags
	mod   *module
	err   error
}

func (g *generator) fail(n ast.Node, format string, args ...any) {
	if g.err == nil {
		loc := n.Location()
		g.err = diag.Compilef(&loc, format, args...)
	}
}

func (g *generator) unsupported(n ast.Node, what string) {
	g.fail(n, "%s is not supported by the %s machine", what, Name)
}

// kind returns the WebAssembly value type representing t.
func kind(t runtime.Type) (valType, bool) {
	switch t {
	case runtime.Int, runtime.Boolean:
		return i32, true
	case runtime.Long:
		return i64, true
	case runtime.Double:
		return f64, true
	}
	return 0, false
}

func typeNames(ts []runtime.Type) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name()
	}
	return names
}

// signature maps parameter and result types to a function type.
func (g *generator) signature(n ast.Node, params []runtime.Type, result runtime.Type) funcType {
	var ft funcType
	for _, p := range params {
		k, ok := kind(p)
		if !ok {
			g.unsupported(n, "parameter type "+p.Name())
			continue
		}
		ft.params = append(ft.params, k)
	}
	if result != runtime.Void {
		k, ok := kind(result)
		if !ok {
			g.unsupported(n, "return type "+result.Name())
		}
		ft.results = []valType{k}
	}
	return ft
}

func (g *generator) class(td ast.TypeDecl) *classfile.Class {
	cls := g.info.ClassOf[td]
	out := &classfile.Class{
		Name:      cls.Name(),
		Modifiers: uint32(cls.Modifiers()),
		Line:      td.Location().Line,
	}
	if sup := cls.Super(); sup != nil && sup != runtime.ObjectClass() {
		out.Super = sup.Name()
	}
	for _, i := range cls.Interfaces() {
		out.Interfaces = append(out.Interfaces, i.Name())
	}
	for _, f := range cls.Fields() {
		out.Fields = append(out.Fields, &classfile.Field{Name: f.Name, Type: f.Type.Name(), Modifiers: uint32(f.Mods)})
	}

	var (
		clinit, inst []ast.Member
		hasCtor      bool
	)
	for _, mem := range td.MemberList() {
		switch mem := mem.(type) {
		case *ast.FieldDecl:
			if mem.Modifiers.Has(runtime.Static) || cls.IsInterface() {
				clinit = append(clinit, mem)
			} else {
				inst = append(inst, mem)
			}
		case *ast.Initializer:
			if mem.Static {
				clinit = append(clinit, mem)
			} else {
				inst = append(inst, mem)
			}
		case *ast.MethodDecl:
			out.Methods = append(out.Methods, g.method(mem))
		case *ast.ConstructorDecl:
			hasCtor = true
			out.Constructors = append(out.Constructors, g.constructor(mem))
		}
	}
	if !hasCtor && !cls.IsInterface() {
		if ctor := cls.ConstructorFor(0); ctor != nil {
			out.Constructors = append(out.Constructors, &classfile.Constructor{Modifiers: uint32(ctor.Mods), Line: out.Line})
		}
	}
	out.StaticInit = g.initializer(exportClinit, clinit)
	out.InstanceInit = g.initializer(exportInit, inst)
	return out
}

func (g *generator) method(md *ast.MethodDecl) *classfile.Method {
	m := g.info.MethodOf[md]
	out := &classfile.Method{
		Name:      m.Name,
		Modifiers: uint32(m.Mods),
		Params:    typeNames(m.Params),
		Return:    m.Return.Name(),
		Line:      md.Location().Line,
	}
	if g.debug.Has(classfile.DebugVars) {
		out.ParamNames = m.ParamNames
	}
	if md.Body == nil {
		return out
	}
	out.Entry = "m_" + m.Name
	ft := g.signature(md, m.Params, m.Return)
	_, fn := g.mod.addFunc(out.Entry, ft)
	e := g.body(fn, ft.params, m.Return)
	e.grow(g.info.Frames[md])
	e.stmts(md.Body.Stmts)
	if m.Return != runtime.Void {
		e.op(opUnreachable)
	}
	e.finish()
	return out
}

func (g *generator) constructor(cd *ast.ConstructorDecl) *classfile.Constructor {
	c := g.info.CtorOf[cd]
	out := &classfile.Constructor{
		Modifiers: uint32(c.Mods),
		Params:    typeNames(c.Params),
		Entry:     fmt.Sprintf("ctor%d", len(c.Params)),
		Line:      cd.Location().Line,
	}
	if g.debug.Has(classfile.DebugVars) {
		out.ParamNames = c.ParamNames
	}
	ft := g.signature(cd, c.Params, runtime.Void)
	_, fn := g.mod.addFunc(out.Entry, ft)
	e := g.body(fn, ft.params, runtime.Void)
	e.grow(g.info.Frames[cd])
	e.stmts(cd.Body.Stmts)
	e.finish()
	return out
}

// initializer merges field initializers and initializer blocks into one exported
// function, in member order. The locals of each block are placed after those of the
// blocks before it. It returns "" when there is nothing to run.
func (g *generator) initializer(export string, members []ast.Member) string {
	run := false
	for _, mem := range members {
		switch mem := mem.(type) {
		case *ast.FieldDecl:
			for _, v := range mem.Vars {
				run = run || v.Init != nil
			}
		case *ast.Initializer:
			run = true
		}
	}
	if !run {
		return ""
	}

	_, fn := g.mod.addFunc(export, funcType{})
	e := g.body(fn, nil, runtime.Void)
	for _, mem := range members {
		switch mem := mem.(type) {
		case *ast.FieldDecl:
			for _, v := range mem.Vars {
				if v.Init == nil {
					continue
				}
				f := g.info.FieldOf[v]
				e.assignField(v, f, func() { e.convert(v.Init, f.Type) })
				e.op(opDrop)
			}
		case *ast.Initializer:
			e.base = len(e.slots)
			e.grow(g.info.Frames[mem])
			e.stmts(mem.Body.Stmts)
		}
	}
	e.finish()
	return export
}
