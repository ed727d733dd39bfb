package starlark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	starlarkLib "go.starlark.net/starlark"

	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

// LineError attributes a failure inside generated code to a line of the source.
type LineError struct {
	File string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// program is a class file whose Starlark program has been initialized.
type program struct {
	file    *classfile.File
	name    string
	globals starlarkLib.StringDict
	logger  *slog.Logger
}

// Define initializes the program of f with the bridge bound to loader and defines the
// classes of f into loader.
func (m *Machine) Define(ctx context.Context, f *classfile.File, loader *runtime.Loader) ([]*runtime.Class, error) {
	if f == nil || loader == nil {
		return nil, diag.InvalidArgumentf("class file and loader are required")
	}
	if f.Machine != Name {
		return nil, diag.InvalidArgumentf("class file targets machine %q", f.Machine)
	}
	if len(f.Code) == 0 {
		return nil, diag.Wrap(diag.KindInternal, ErrProgramNil, nil, "class file has no code")
	}

	prog, err := starlarkLib.CompiledProgram(bytes.NewReader(f.Code))
	if err != nil {
		return nil, diag.Wrap(diag.KindInternal, err, nil, "failed to decode starlark program")
	}
	thread := &starlarkLib.Thread{Name: "define"}
	globals, err := prog.Init(thread, (&bridge{loader: loader}).builtins())
	if err != nil {
		return nil, diag.Wrap(diag.KindInternal, err, nil, "failed to initialize starlark program")
	}
	globals.Freeze()

	p := &program{
		file:    f,
		name:    prog.Filename(),
		globals: globals,
		logger:  m.logger.With("source", f.SourceFile),
	}
	defs := make([]*runtime.ClassDef, 0, len(f.Classes))
	for _, c := range f.Classes {
		def, err := p.classDef(c)
		if err != nil {
			return nil, diag.Wrap(diag.KindInternal, err, nil, "class %s", c.Name)
		}
		defs = append(defs, def)
	}
	classes, err := loader.DefineClasses(ctx, defs...)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("classes defined", "count", len(classes), "loader", loader.ID())
	return classes, nil
}

func (p *program) classDef(c *classfile.Class) (*runtime.ClassDef, error) {
	def := &runtime.ClassDef{
		Name:       c.Name,
		Mods:       runtime.Modifiers(c.Modifiers),
		Super:      c.Super,
		Interfaces: c.Interfaces,
		Source:     p.file.SourceFile,
	}
	for _, fd := range c.Fields {
		def.Fields = append(def.Fields, runtime.FieldDef{Name: fd.Name, Type: fd.Type, Mods: runtime.Modifiers(fd.Modifiers)})
	}
	for _, md := range c.Methods {
		impl, err := p.entry(md.Entry, md.Return)
		if err != nil {
			return nil, err
		}
		def.Methods = append(def.Methods, runtime.MethodDef{
			Name:       md.Name,
			Params:     md.Params,
			ParamNames: md.ParamNames,
			Return:     md.Return,
			Mods:       runtime.Modifiers(md.Modifiers),
			Line:       md.Line,
			Impl:       impl,
		})
	}
	for _, cd := range c.Constructors {
		impl, err := p.entry(cd.Entry, runtime.Void.Name())
		if err != nil {
			return nil, err
		}
		def.Constructors = append(def.Constructors, runtime.ConstructorDef{
			Params:     cd.Params,
			ParamNames: cd.ParamNames,
			Mods:       runtime.Modifiers(cd.Modifiers),
			Impl:       impl,
		})
	}
	var err error
	if def.StaticInit, err = p.entry(c.StaticInit, runtime.Void.Name()); err != nil {
		return nil, err
	}
	if def.InstanceInit, err = p.entry(c.InstanceInit, runtime.Void.Name()); err != nil {
		return nil, err
	}
	return def, nil
}

// entry returns the invoker of the function name, or nil when name is empty.
func (p *program) entry(name, result string) (runtime.Invoker, error) {
	if name == "" {
		return nil, nil
	}
	fn, ok := p.globals[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	var rt runtime.Type
	if prim, ok := runtime.PrimitiveByName(result); ok {
		rt = prim
	}
	return &function{prog: p, fn: fn, name: name, result: rt}, nil
}

// function runs one generated function. A nil result type denotes a reference.
type function struct {
	prog   *program
	fn     starlarkLib.Value
	name   string
	result runtime.Type
}

func (f *function) Invoke(ctx context.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	thread := &starlarkLib.Thread{
		Name: f.name,
		Print: func(_ *starlarkLib.Thread, msg string) {
			f.prog.logger.InfoContext(ctx, msg)
		},
	}
	thread.SetLocal(ctxLocal, ctx)
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	targs := make(starlarkLib.Tuple, 0, len(args)+1)
	for _, a := range append([]runtime.Value{this}, args...) {
		v, err := convertToStarlarkValue(a)
		if err != nil {
			return nil, err
		}
		targs = append(targs, v)
	}
	res, err := starlarkLib.Call(thread, f.fn, targs, nil)
	if err != nil {
		return nil, f.prog.translate(ctx, err)
	}
	return convertStarlarkValue(res, f.result)
}

// translate unwraps an evaluation error to its cause and attributes it to the innermost
// source line of this program when the line table is available.
func (p *program) translate(ctx context.Context, err error) error {
	var le *LineError
	if errors.As(err, &le) {
		return le
	}
	var ee *starlarkLib.EvalError
	if !errors.As(err, &ee) {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s", context.Cause(ctx), ee.Msg)
	}
	cause := ee.Unwrap()
	if cause == nil {
		cause = errors.New(ee.Msg)
	}
	if !p.file.Debug.Has(classfile.DebugLines) {
		return cause
	}
	for i := len(ee.CallStack) - 1; i >= 0; i-- {
		pos := ee.CallStack[i].Pos
		if pos.Filename() != p.name {
			continue
		}
		if line := p.file.SourceLine(int(pos.Line)); line > 0 {
			return &LineError{File: p.file.SourceFile, Line: line, Err: cause}
		}
		break
	}
	return cause
}
