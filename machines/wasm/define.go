package wasm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

// instance is the instantiated module of one class.
type instance struct {
	class string
	rt    wazero.Runtime
	mod   api.Module
}

// Define instantiates the module of each class of f on its own wazero runtime and defines
// the classes into loader. The runtimes are closed with the loader.
func (m *Machine) Define(ctx context.Context, f *classfile.File, loader *runtime.Loader) ([]*runtime.Class, error) {
	if f == nil || loader == nil {
		return nil, diag.InvalidArgumentf("class file and loader are required")
	}
	if f.Machine != Name {
		return nil, diag.InvalidArgumentf("class file targets machine %q", f.Machine)
	}

	var (
		insts []*instance
		defs  []*runtime.ClassDef
	)
	closeAll := func() {
		for _, inst := range insts {
			if err := inst.rt.Close(ctx); err != nil {
				m.logger.Warn("failed to close runtime", "class", inst.class, "error", err)
			}
		}
	}
	for _, c := range f.Classes {
		inst, err := m.instantiate(ctx, c, loader)
		if err != nil {
			closeAll()
			return nil, diag.Wrap(diag.KindInternal, err, nil, "class %s", c.Name)
		}
		insts = append(insts, inst)
		def, err := inst.classDef(c, f.SourceFile)
		if err != nil {
			closeAll()
			return nil, diag.Wrap(diag.KindInternal, err, nil, "class %s", c.Name)
		}
		defs = append(defs, def)
	}
	classes, err := loader.DefineClasses(ctx, defs...)
	if err != nil {
		closeAll()
		return nil, err
	}
	for _, inst := range insts {
		loader.AddCloser(inst.rt.Close)
	}
	m.logger.Debug("classes defined", "count", len(classes), "loader", loader.ID())
	return classes, nil
}

func (m *Machine) instantiate(ctx context.Context, c *classfile.Class, loader *runtime.Loader) (*instance, error) {
	if len(c.Code) == 0 {
		return nil, ErrModuleNil
	}
	rt := wazero.NewRuntimeWithConfig(ctx, m.runtimeConfig.WithCustomSections(true))
	inst, err := func() (*instance, error) {
		compiled, err := rt.CompileModule(ctx, c.Code)
		if err != nil {
			return nil, fmt.Errorf("failed to compile module: %w", err)
		}
		names, err := nameTable(compiled)
		if err != nil {
			return nil, err
		}
		h := &host{loader: loader, names: names}
		if err := h.instantiate(ctx, rt); err != nil {
			return nil, fmt.Errorf("failed to instantiate host module: %w", err)
		}
		mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(uuid.NewString()))
		if err != nil {
			return nil, fmt.Errorf("failed to instantiate module: %w", err)
		}
		return &instance{class: c.Name, rt: rt, mod: mod}, nil
	}()
	if err != nil {
		return nil, errors.Join(err, rt.Close(ctx))
	}
	return inst, nil
}

func nameTable(compiled wazero.CompiledModule) ([]string, error) {
	for _, s := range compiled.CustomSections() {
		if s.Name() != namesSection {
			continue
		}
		names, ok := decodeNames(s.Data())
		if !ok {
			return nil, fmt.Errorf("%w: malformed section", ErrNamesMissing)
		}
		return names, nil
	}
	return nil, ErrNamesMissing
}

func (inst *instance) classDef(c *classfile.Class, source string) (*runtime.ClassDef, error) {
	def := &runtime.ClassDef{
		Name:       c.Name,
		Mods:       runtime.Modifiers(c.Modifiers),
		Super:      c.Super,
		Interfaces: c.Interfaces,
		Source:     source,
	}
	for _, fd := range c.Fields {
		def.Fields = append(def.Fields, runtime.FieldDef{Name: fd.Name, Type: fd.Type, Mods: runtime.Modifiers(fd.Modifiers)})
	}
	for _, md := range c.Methods {
		impl, err := inst.entry(md.Entry, md.Params, md.Return)
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
		impl, err := inst.entry(cd.Entry, cd.Params, runtime.Void.Name())
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
	if def.StaticInit, err = inst.entry(c.StaticInit, nil, runtime.Void.Name()); err != nil {
		return nil, err
	}
	if def.InstanceInit, err = inst.entry(c.InstanceInit, nil, runtime.Void.Name()); err != nil {
		return nil, err
	}
	return def, nil
}

// entry returns the invoker of the exported function name, or nil when name is empty.
func (inst *instance) entry(name string, params []string, ret string) (runtime.Invoker, error) {
	if name == "" {
		return nil, nil
	}
	if inst.mod.ExportedFunction(name) == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	fn := &export{inst: inst, name: name}
	for _, p := range params {
		t, ok := runtime.PrimitiveByName(p)
		if !ok {
			return nil, fmt.Errorf("%w: parameter type %s", ErrUnsupportedValue, p)
		}
		fn.params = append(fn.params, t)
	}
	if t, ok := runtime.PrimitiveByName(ret); ok {
		fn.result = t
	}
	return fn, nil
}

// export runs one exported function of a class module.
type export struct {
	inst   *instance
	name   string
	params []runtime.Type
	result runtime.Type
}

func (f *export) Invoke(ctx context.Context, this runtime.Value, args []runtime.Value) (runtime.Value, error) {
	fr := &frame{}
	if this != nil {
		obj, ok := this.(*runtime.Object)
		if !ok {
			return nil, fmt.Errorf("%w: receiver %T", ErrUnsupportedValue, this)
		}
		fr.this = obj
	}
	stack := make([]uint64, len(args))
	for i, a := range args {
		v, err := encode(a, f.params[i])
		if err != nil {
			return nil, err
		}
		stack[i] = v
	}
	ctx = context.WithValue(ctx, frameKey{}, fr)

	// api.Function is not safe for concurrent use.
	fn := f.inst.mod.ExportedFunction(f.name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, f.name)
	}
	res, err := fn.Call(ctx, stack...)
	if err != nil {
		if fr.err != nil {
			return nil, fr.err
		}
		return nil, fmt.Errorf("%w: %s.%s: %w", ErrTrap, f.inst.class, f.name, err)
	}
	if f.result == nil || f.result == runtime.Void || len(res) == 0 {
		return nil, nil
	}
	return decode(res[0], f.result), nil
}
