package starlark

import (
	"bytes"
	"fmt"
	"strings"

	starlarkLib "go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/check"
	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

// Name is the machine identifier stored in generated class files.
const Name = "starlark"

const generatedFile = "<generated>"

// fileOptions enables the statements generated bodies rely on.
var fileOptions = &syntax.FileOptions{While: true, Recursion: true}

// emitter accumulates the Starlark source of one unit.
type emitter struct {
	info  *check.Info
	debug classfile.DebugFlags

	buf    strings.Builder
	line   int
	indent int
	src    int
	lines  []classfile.LineEntry
	temps  int
	err    error

	// result is the return type of the method being emitted.
	result runtime.Type
}

func newEmitter(info *check.Info, debug classfile.DebugFlags) *emitter {
	return &emitter{info: info, debug: debug, line: 1}
}

// emitf writes one line of code at the current indentation.
func (e *emitter) emitf(format string, args ...any) {
	if e.debug.Has(classfile.DebugLines) && e.src > 0 {
		if n := len(e.lines); n == 0 || e.lines[n-1].Source != e.src {
			e.lines = append(e.lines, classfile.LineEntry{Generated: e.line, Source: e.src})
		}
	}
	e.buf.WriteString(strings.Repeat("    ", e.indent))
	fmt.Fprintf(&e.buf, format, args...)
	e.buf.WriteByte('\n')
	e.line++
}

// at sets the source line attributed to the lines emitted next.
func (e *emitter) at(n ast.Node) {
	e.src = n.Location().Line
}

func (e *emitter) fail(n ast.Node, format string, args ...any) string {
	if e.err == nil {
		loc := n.Location()
		e.err = diag.New(diag.KindInternal, &loc, format, args...)
	}
	return "None"
}

func (e *emitter) temp(prefix string) string {
	e.temps++
	return fmt.Sprintf("_%s%d", prefix, e.temps)
}

func quote(s string) string {
	return syntax.Quote(s, false)
}

func typeNames(ts []runtime.Type) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name()
	}
	return names
}

// Generate translates a checked unit into a class file holding one compiled Starlark
// program for all of its classes.
func (m *Machine) Generate(unit *ast.CompilationUnit, info *check.Info, debug classfile.DebugFlags) (*classfile.File, error) {
	file, src, err := generate(unit, info, debug)
	if err != nil {
		return nil, err
	}

	filename := generatedFile
	if file.SourceFile != "" {
		filename = file.SourceFile
	}
	f, err := fileOptions.Parse(filename, src, 0)
	if err != nil {
		m.logger.Error("generated code does not parse", "error", err)
		return nil, diag.Wrap(diag.KindInternal, fmt.Errorf("%w: %w", ErrGenerationFailed, err), nil, "starlark code generation")
	}
	prog, err := starlarkLib.FileProgram(f, isPredeclared)
	if err != nil {
		m.logger.Error("generated code does not resolve", "error", err)
		return nil, diag.Wrap(diag.KindInternal, fmt.Errorf("%w: %w", ErrGenerationFailed, err), nil, "starlark code generation")
	}
	var code bytes.Buffer
	if err := prog.Write(&code); err != nil {
		return nil, diag.Wrap(diag.KindInternal, err, nil, "starlark program encoding")
	}
	file.Code = code.Bytes()

	m.logger.Debug("unit generated", "origin", unit.Origin, "classes", len(file.Classes), "codeSize", len(file.Code))
	return file, nil
}

// generate returns the class file without code and the Starlark source of unit.
func generate(unit *ast.CompilationUnit, info *check.Info, debug classfile.DebugFlags) (*classfile.File, string, error) {
	if unit == nil || info == nil {
		return nil, "", diag.InvalidArgumentf("unit and check info are required")
	}
	e := newEmitter(info, debug)
	file := &classfile.File{Machine: Name, Debug: debug}
	if debug.Has(classfile.DebugSource) {
		file.SourceFile = unit.Origin
	}
	for k, td := range unit.Types {
		file.Classes = append(file.Classes, e.class(k, td))
	}
	if e.err != nil {
		return nil, "", e.err
	}
	file.Lines = e.lines
	return file, e.buf.String(), nil
}

func (e *emitter) class(k int, td ast.TypeDecl) *classfile.Class {
	cls := e.info.ClassOf[td]
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

	prefix := fmt.Sprintf("c%d_", k)
	var (
		clinit, inst []ast.Member
		hasCtor      bool
	)
	for i, mem := range td.MemberList() {
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
			out.Methods = append(out.Methods, e.method(fmt.Sprintf("%sm%d_%s", prefix, i, ident(mem.Name)), mem))
		case *ast.ConstructorDecl:
			hasCtor = true
			out.Constructors = append(out.Constructors, e.constructor(fmt.Sprintf("%sctor%d", prefix, len(mem.Params)), mem))
		}
	}
	if !hasCtor && !cls.IsInterface() {
		if ctor := cls.ConstructorFor(0); ctor != nil {
			out.Constructors = append(out.Constructors, &classfile.Constructor{Modifiers: uint32(ctor.Mods), Line: out.Line})
		}
	}
	out.StaticInit = e.initializer(prefix+"clinit", clinit)
	out.InstanceInit = e.initializer(prefix+"init", inst)
	return out
}

// ident makes a source identifier usable in a Starlark function name.
func ident(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, name)
}

func (e *emitter) method(entry string, md *ast.MethodDecl) *classfile.Method {
	m := e.info.MethodOf[md]
	out := &classfile.Method{
		Name:      m.Name,
		Modifiers: uint32(m.Mods),
		Params:    typeNames(m.Params),
		Return:    m.Return.Name(),
		Line:      md.Location().Line,
	}
	if e.debug.Has(classfile.DebugVars) {
		out.ParamNames = m.ParamNames
	}
	if md.Body != nil {
		out.Entry = entry
		e.result = m.Return
		e.function(entry, md, len(md.Params), e.info.Frames[md], md.Body.Stmts)
	}
	return out
}

func (e *emitter) constructor(entry string, cd *ast.ConstructorDecl) *classfile.Constructor {
	c := e.info.CtorOf[cd]
	out := &classfile.Constructor{
		Modifiers: uint32(c.Mods),
		Params:    typeNames(c.Params),
		Entry:     entry,
		Line:      cd.Location().Line,
	}
	if e.debug.Has(classfile.DebugVars) {
		out.ParamNames = c.ParamNames
	}
	e.result = runtime.Void
	e.function(entry, cd, len(cd.Params), e.info.Frames[cd], cd.Body.Stmts)
	return out
}

// function emits "def entry(this, p0, ...)" with the locals held in the list L.
func (e *emitter) function(entry string, owner ast.Node, nparams, nlocals int, body []ast.Stmt) {
	params := []string{"this"}
	for i := range nparams {
		params = append(params, fmt.Sprintf("p%d", i))
	}
	e.at(owner)
	e.emitf("def %s(%s):", entry, strings.Join(params, ", "))
	e.indent++
	e.frame(params[1:], nlocals)
	n := e.line
	e.stmts(body)
	if e.line == n {
		e.emitf("pass")
	}
	e.indent--
	e.emitf("")
}

func (e *emitter) frame(params []string, nlocals int) {
	switch {
	case nlocals == 0:
	case len(params) == 0:
		e.emitf("L = [None] * %d", nlocals)
	case nlocals == len(params):
		e.emitf("L = [%s]", strings.Join(params, ", "))
	default:
		e.emitf("L = [%s] + [None] * %d", strings.Join(params, ", "), nlocals-len(params))
	}
}

// initializer merges field initializers and initializer blocks into one function, in
// member order. It returns "" when there is nothing to run.
func (e *emitter) initializer(entry string, members []ast.Member) string {
	nlocals := 0
	run := false
	for _, mem := range members {
		switch mem := mem.(type) {
		case *ast.FieldDecl:
			for _, v := range mem.Vars {
				run = run || v.Init != nil
			}
		case *ast.Initializer:
			run = true
			nlocals = max(nlocals, e.info.Frames[mem])
		}
	}
	if !run {
		return ""
	}

	e.result = runtime.Void
	e.at(members[0])
	e.emitf("def %s(this):", entry)
	e.indent++
	e.frame(nil, nlocals)
	n := e.line
	for _, mem := range members {
		switch mem := mem.(type) {
		case *ast.FieldDecl:
			for _, v := range mem.Vars {
				if v.Init == nil {
					continue
				}
				f := e.info.FieldOf[v]
				e.at(v)
				val := e.convert(v.Init, f.Type)
				if f.IsStatic() {
					e.emitf("_puts(%s, %s, %s)", quote(f.Owner.Name()), quote(f.Name), val)
				} else {
					e.emitf("_putf(this, %s, %s, %s)", quote(f.Owner.Name()), quote(f.Name), val)
				}
			}
		case *ast.Initializer:
			e.block(mem.Body)
		}
	}
	if e.line == n {
		e.emitf("pass")
	}
	e.indent--
	e.emitf("")
	return entry
}
