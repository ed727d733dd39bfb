package wasm

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/robbyt/go-classbody/runtime"
)

// hostFunc is a function of the "env" module class modules import. Class and member names
// are passed as ids into the name table of the calling module.
type hostFunc struct {
	name    string
	params  []valType
	results []valType
	fn      func(h *host) api.GoModuleFunc
}

var hostFuncs []hostFunc

func init() {
	kinds := []struct {
		suffix string
		k      valType
	}{
		{"i32", i32},
		{"i64", i64},
		{"f64", f64},
	}
	for _, v := range kinds {
		k := v.k
		hostFuncs = append(hostFuncs,
			hostFunc{"get_" + v.suffix, []valType{i32, i32}, []valType{k}, func(h *host) api.GoModuleFunc { return h.getField }},
			hostFunc{"set_" + v.suffix, []valType{i32, i32, k}, nil, func(h *host) api.GoModuleFunc { return h.setField }},
			hostFunc{"sget_" + v.suffix, []valType{i32, i32}, []valType{k}, func(h *host) api.GoModuleFunc { return h.getStatic }},
			hostFunc{"sset_" + v.suffix, []valType{i32, i32, k}, nil, func(h *host) api.GoModuleFunc { return h.setStatic }},
			hostFunc{"arg_" + v.suffix, []valType{k}, nil, func(h *host) api.GoModuleFunc { return h.pushArg }},
		)
	}
	calls := []struct {
		suffix  string
		results []valType
	}{
		{"v", nil},
		{"i32", []valType{i32}},
		{"i64", []valType{i64}},
		{"f64", []valType{f64}},
	}
	for _, c := range calls {
		hostFuncs = append(hostFuncs,
			hostFunc{"vcall_" + c.suffix, []valType{i32}, c.results, func(h *host) api.GoModuleFunc { return h.callVirtual }},
			hostFunc{"pcall_" + c.suffix, []valType{i32, i32}, c.results, func(h *host) api.GoModuleFunc { return h.callSpecial }},
			hostFunc{"scall_" + c.suffix, []valType{i32, i32}, c.results, func(h *host) api.GoModuleFunc { return h.callStatic }},
		)
	}
	hostFuncs = append(hostFuncs,
		hostFunc{"idiv", []valType{i32, i32}, []valType{i32}, func(h *host) api.GoModuleFunc { return intDiv }},
		hostFunc{"irem", []valType{i32, i32}, []valType{i32}, func(h *host) api.GoModuleFunc { return intRem }},
		hostFunc{"ldiv", []valType{i64, i64}, []valType{i64}, func(h *host) api.GoModuleFunc { return longDiv }},
		hostFunc{"lrem", []valType{i64, i64}, []valType{i64}, func(h *host) api.GoModuleFunc { return longRem }},
		hostFunc{"drem", []valType{f64, f64}, []valType{f64}, func(h *host) api.GoModuleFunc { return doubleRem }},
		hostFunc{"poll", nil, nil, func(h *host) api.GoModuleFunc { return poll }},
	)
}

// hostIndex returns the function index of the import name.
func hostIndex(name string) int {
	i := slices.IndexFunc(hostFuncs, func(h hostFunc) bool { return h.name == name })
	if i < 0 {
		panic("wasm: unknown host function " + name)
	}
	return i
}

func apiTypes(ks []valType) []api.ValueType {
	out := make([]api.ValueType, len(ks))
	for i, k := range ks {
		switch k {
		case i64:
			out[i] = api.ValueTypeI64
		case f64:
			out[i] = api.ValueTypeF64
		default:
			out[i] = api.ValueTypeI32
		}
	}
	return out
}

// frameKey keys the frame of the running invocation in its context.
type frameKey struct{}

// frame is the state of one invocation of a class module function.
type frame struct {
	this *runtime.Object
	args []uint64
	err  error
}

func frameOf(ctx context.Context) *frame {
	if fr, ok := ctx.Value(frameKey{}).(*frame); ok {
		return fr
	}
	panic(fmt.Errorf("%w: host function called outside of an invocation", ErrTrap))
}

// raise records err as the failure of the running invocation and unwinds the module.
func raise(ctx context.Context, err error) {
	if fr, ok := ctx.Value(frameKey{}).(*frame); ok && fr.err == nil {
		fr.err = err
	}
	panic(err)
}

// host serves the imports of one class module.
type host struct {
	loader *runtime.Loader
	names  []string
}

// instantiate builds the "env" module on r.
func (h *host) instantiate(ctx context.Context, r wazero.Runtime) error {
	b := r.NewHostModuleBuilder("env")
	for _, f := range hostFuncs {
		b.NewFunctionBuilder().
			WithGoModuleFunction(f.fn(h), apiTypes(f.params), apiTypes(f.results)).
			Export(f.name)
	}
	_, err := b.Instantiate(ctx)
	return err
}

func (h *host) name(ctx context.Context, id uint64) string {
	i := int(api.DecodeI32(id))
	if i < 0 || i >= len(h.names) {
		raise(ctx, fmt.Errorf("%w: name id %d out of range", ErrTrap, i))
	}
	return h.names[i]
}

func (h *host) class(ctx context.Context, id uint64) *runtime.Class {
	cls, err := h.loader.LoadClass(h.name(ctx, id))
	if err != nil {
		raise(ctx, err)
	}
	return cls
}

func (h *host) field(ctx context.Context, cls, name uint64) *runtime.Field {
	c := h.class(ctx, cls)
	f := c.DeclaredField(h.name(ctx, name))
	if f == nil {
		raise(ctx, fmt.Errorf("%w: %s.%s", runtime.ErrNoSuchField, c.Name(), h.name(ctx, name)))
	}
	return f
}

func receiver(ctx context.Context, what string) *runtime.Object {
	fr := frameOf(ctx)
	if fr.this == nil {
		raise(ctx, fmt.Errorf("%w: cannot access %s of null", runtime.ErrNullPointer, what))
	}
	return fr.this
}

// getField(cls, name) reads a field of this.
func (h *host) getField(ctx context.Context, _ api.Module, stack []uint64) {
	f := h.field(ctx, stack[0], stack[1])
	result(ctx, stack, receiver(ctx, f.Name).GetField(f), f.Type)
}

// setField(cls, name, v) writes a field of this.
func (h *host) setField(ctx context.Context, _ api.Module, stack []uint64) {
	f := h.field(ctx, stack[0], stack[1])
	receiver(ctx, f.Name).SetField(f, decode(stack[2], f.Type))
}

func (h *host) getStatic(ctx context.Context, _ api.Module, stack []uint64) {
	f := h.field(ctx, stack[0], stack[1])
	v, err := f.Owner.GetStatic(ctx, f)
	if err != nil {
		raise(ctx, err)
	}
	result(ctx, stack, v, f.Type)
}

func (h *host) setStatic(ctx context.Context, _ api.Module, stack []uint64) {
	f := h.field(ctx, stack[0], stack[1])
	if err := f.Owner.SetStatic(ctx, f, decode(stack[2], f.Type)); err != nil {
		raise(ctx, err)
	}
}

// pushArg appends an argument of the next call to the frame.
func (h *host) pushArg(ctx context.Context, _ api.Module, stack []uint64) {
	fr := frameOf(ctx)
	fr.args = append(fr.args, stack[0])
}

// popArgs removes the arguments of m from the frame and decodes them.
func popArgs(ctx context.Context, m *runtime.Method) []runtime.Value {
	fr := frameOf(ctx)
	n := len(m.Params)
	if len(fr.args) < n {
		raise(ctx, fmt.Errorf("%w: %s takes %d arguments, %d pushed", ErrTrap, m, n, len(fr.args)))
	}
	raw := fr.args[len(fr.args)-n:]
	fr.args = fr.args[:len(fr.args)-n]
	args := make([]runtime.Value, n)
	for i, p := range m.Params {
		args[i] = decode(raw[i], p)
	}
	return args
}

func (h *host) invoke(ctx context.Context, m *runtime.Method, recv runtime.Value, stack []uint64) {
	args := popArgs(ctx, m)
	res, err := m.Call(ctx, recv, args)
	if err != nil {
		raise(ctx, err)
	}
	if m.Return != runtime.Void {
		result(ctx, stack, res, m.Return)
	}
}

// callVirtual(name) calls an instance method of this, dispatching on its runtime class.
func (h *host) callVirtual(ctx context.Context, _ api.Module, stack []uint64) {
	name := h.name(ctx, stack[0])
	obj := receiver(ctx, name)
	m := obj.Class().ResolveVirtual(name)
	if m == nil {
		raise(ctx, fmt.Errorf("%w: %s.%s", runtime.ErrNoSuchMethod, obj.Class().Name(), name))
	}
	h.invoke(ctx, m, obj, stack)
}

// callSpecial(cls, name) calls the method of cls on this without virtual dispatch, as
// private and super calls do.
func (h *host) callSpecial(ctx context.Context, _ api.Module, stack []uint64) {
	cls := h.class(ctx, stack[0])
	name := h.name(ctx, stack[1])
	m := cls.LookupMethod(name)
	if m == nil {
		raise(ctx, fmt.Errorf("%w: %s.%s", runtime.ErrNoSuchMethod, cls.Name(), name))
	}
	h.invoke(ctx, m, receiver(ctx, name), stack)
}

func (h *host) callStatic(ctx context.Context, _ api.Module, stack []uint64) {
	cls := h.class(ctx, stack[0])
	name := h.name(ctx, stack[1])
	m := cls.LookupMethod(name)
	if m == nil || !m.IsStatic() {
		raise(ctx, fmt.Errorf("%w: static %s.%s", runtime.ErrNoSuchMethod, cls.Name(), name))
	}
	h.invoke(ctx, m, nil, stack)
}

func divisor(ctx context.Context, zero bool) {
	if zero {
		raise(ctx, fmt.Errorf("%w: / by zero", runtime.ErrArithmetic))
	}
}

// Go's signed division wraps MinInt/-1 to MinInt with remainder 0, as Java does.

func intDiv(ctx context.Context, _ api.Module, stack []uint64) {
	x, y := api.DecodeI32(stack[0]), api.DecodeI32(stack[1])
	divisor(ctx, y == 0)
	stack[0] = api.EncodeI32(x / y)
}

func intRem(ctx context.Context, _ api.Module, stack []uint64) {
	x, y := api.DecodeI32(stack[0]), api.DecodeI32(stack[1])
	divisor(ctx, y == 0)
	stack[0] = api.EncodeI32(x % y)
}

func longDiv(ctx context.Context, _ api.Module, stack []uint64) {
	x, y := int64(stack[0]), int64(stack[1])
	divisor(ctx, y == 0)
	stack[0] = api.EncodeI64(x / y)
}

func longRem(ctx context.Context, _ api.Module, stack []uint64) {
	x, y := int64(stack[0]), int64(stack[1])
	divisor(ctx, y == 0)
	stack[0] = api.EncodeI64(x % y)
}

func doubleRem(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeF64(math.Mod(api.DecodeF64(stack[0]), api.DecodeF64(stack[1])))
}

// poll stops loops of a cancelled invocation.
func poll(ctx context.Context, _ api.Module, _ []uint64) {
	if ctx.Err() != nil {
		raise(ctx, context.Cause(ctx))
	}
}

// encode converts a runtime value of type t to its stack representation.
func encode(v runtime.Value, t runtime.Type) (uint64, error) {
	switch x := v.(type) {
	case int32:
		return api.EncodeI32(x), nil
	case int64:
		return api.EncodeI64(x), nil
	case float64:
		return api.EncodeF64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %T for %s", ErrUnsupportedValue, v, t.Name())
}

// result stores v as the result of a host function.
func result(ctx context.Context, stack []uint64, v runtime.Value, t runtime.Type) {
	x, err := encode(v, t)
	if err != nil {
		raise(ctx, err)
	}
	stack[0] = x
}

// decode converts a stack value to the runtime representation of t.
func decode(v uint64, t runtime.Type) runtime.Value {
	switch t {
	case runtime.Long:
		return int64(v)
	case runtime.Double:
		return api.DecodeF64(v)
	case runtime.Boolean:
		return api.DecodeI32(v) != 0
	}
	return api.DecodeI32(v)
}
