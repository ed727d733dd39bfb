package starlark

import (
	"context"
	"fmt"
	"math"
	"slices"

	starlarkLib "go.starlark.net/starlark"

	"github.com/robbyt/go-classbody/runtime"
)

const ctxLocal = "classbody.ctx"

// threadContext returns the context of the invocation running on thread.
func threadContext(thread *starlarkLib.Thread) context.Context {
	if ctx, ok := thread.Local(ctxLocal).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// bridge implements the predeclared functions generated code calls into. Class names are
// resolved through the loader the classes are defined in.
type bridge struct {
	loader *runtime.Loader
}

type builtinFunc func(thread *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error)

// bridgeNames lists the predeclared names generated code may use.
var bridgeNames = []string{
	"_getf", "_putf", "_rmwf",
	"_gets", "_puts", "_rmws",
	"_put", "_rmwl",
	"_invoke", "_invokes", "_invokesp", "_new",
	"_i32", "_i64", "_d2i", "_d2l",
	"_idiv", "_ldiv", "_ddiv", "_irem", "_lrem", "_drem",
	"_shl", "_shr", "_ushr",
	"_dcmp", "_and", "_or", "_concat", "_seq",
	"_instanceof", "_cast",
}

func isPredeclared(name string) bool {
	return slices.Contains(bridgeNames, name)
}

func (b *bridge) builtins() starlarkLib.StringDict {
	funcs := map[string]builtinFunc{
		"_getf":       b.getField,
		"_putf":       b.putField,
		"_rmwf":       b.rmwField,
		"_gets":       b.getStatic,
		"_puts":       b.putStatic,
		"_rmws":       b.rmwStatic,
		"_put":        putLocal,
		"_rmwl":       rmwLocal,
		"_invoke":     b.invoke,
		"_invokes":    b.invokeStatic,
		"_invokesp":   b.invokeSpecial,
		"_new":        b.newObject,
		"_i32":        intConv(32),
		"_i64":        intConv(64),
		"_d2i":        doubleToInt(32),
		"_d2l":        doubleToInt(64),
		"_idiv":       intDiv(32, false),
		"_ldiv":       intDiv(64, false),
		"_irem":       intDiv(32, true),
		"_lrem":       intDiv(64, true),
		"_ddiv":       doubleDiv,
		"_drem":       doubleRem,
		"_shl":        shift("<<"),
		"_shr":        shift(">>"),
		"_ushr":       shift(">>>"),
		"_dcmp":       doubleCompare,
		"_and":        boolOp(func(x, y bool) bool { return x && y }),
		"_or":         boolOp(func(x, y bool) bool { return x || y }),
		"_concat":     concat,
		"_seq":        sequence,
		"_instanceof": b.instanceOf,
		"_cast":       b.cast,
	}
	dict := make(starlarkLib.StringDict, len(funcs))
	for name, fn := range funcs {
		dict[name] = starlarkLib.NewBuiltin(name, func(thread *starlarkLib.Thread, _ *starlarkLib.Builtin, args starlarkLib.Tuple, kwargs []starlarkLib.Tuple) (starlarkLib.Value, error) {
			if len(kwargs) > 0 {
				return nil, fmt.Errorf("%s: unexpected keyword arguments", name)
			}
			return fn(thread, args)
		})
	}
	return dict
}

func arity(name string, args starlarkLib.Tuple, n int) error {
	if len(args) < n {
		return fmt.Errorf("%s: want at least %d arguments, got %d", name, n, len(args))
	}
	return nil
}

func stringArg(v starlarkLib.Value) string {
	s, _ := starlarkLib.AsString(v)
	return s
}

func (b *bridge) class(name starlarkLib.Value) (*runtime.Class, error) {
	return b.loader.LoadClass(stringArg(name))
}

// field resolves the field declared as name by the class owner.
func (b *bridge) field(owner, name starlarkLib.Value) (*runtime.Class, *runtime.Field, error) {
	cls, err := b.class(owner)
	if err != nil {
		return nil, nil, err
	}
	f := cls.DeclaredField(stringArg(name))
	if f == nil {
		return nil, nil, fmt.Errorf("%w: %s.%s", runtime.ErrNoSuchField, cls.Name(), stringArg(name))
	}
	return cls, f, nil
}

func receiver(v starlarkLib.Value, what string) (*runtime.Object, error) {
	switch x := v.(type) {
	case object:
		return x.obj, nil
	case starlarkLib.NoneType:
		return nil, fmt.Errorf("%w: cannot access %s of null", runtime.ErrNullPointer, what)
	}
	return nil, fmt.Errorf("%w: %s has no fields", runtime.ErrIllegalArgument, v.Type())
}

// _getf(obj, owner, name)
func (b *bridge) getField(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_getf", args, 3); err != nil {
		return nil, err
	}
	_, f, err := b.field(args[1], args[2])
	if err != nil {
		return nil, err
	}
	obj, err := receiver(args[0], f.Name)
	if err != nil {
		return nil, err
	}
	return convertToStarlarkValue(obj.GetField(f))
}

func (b *bridge) storeField(obj *runtime.Object, f *runtime.Field, v starlarkLib.Value) error {
	val, err := convertStarlarkValue(v, f.Type)
	if err != nil {
		return err
	}
	obj.SetField(f, val)
	return nil
}

// _putf(obj, owner, name, value) returns value.
func (b *bridge) putField(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_putf", args, 4); err != nil {
		return nil, err
	}
	_, f, err := b.field(args[1], args[2])
	if err != nil {
		return nil, err
	}
	obj, err := receiver(args[0], f.Name)
	if err != nil {
		return nil, err
	}
	return args[3], b.storeField(obj, f, args[3])
}

// readModifyWrite stores fn(old) and returns the old value when post is set, the new one
// otherwise.
func readModifyWrite(thread *starlarkLib.Thread, old, fn, post starlarkLib.Value, store func(starlarkLib.Value) error) (starlarkLib.Value, error) {
	v, err := starlarkLib.Call(thread, fn, starlarkLib.Tuple{old}, nil)
	if err != nil {
		return nil, err
	}
	if err := store(v); err != nil {
		return nil, err
	}
	if post.Truth() {
		return old, nil
	}
	return v, nil
}

// _rmwf(obj, owner, name, fn, post)
func (b *bridge) rmwField(thread *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_rmwf", args, 5); err != nil {
		return nil, err
	}
	_, f, err := b.field(args[1], args[2])
	if err != nil {
		return nil, err
	}
	obj, err := receiver(args[0], f.Name)
	if err != nil {
		return nil, err
	}
	old, err := convertToStarlarkValue(obj.GetField(f))
	if err != nil {
		return nil, err
	}
	return readModifyWrite(thread, old, args[3], args[4], func(v starlarkLib.Value) error {
		return b.storeField(obj, f, v)
	})
}

// _gets(owner, name)
func (b *bridge) getStatic(thread *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_gets", args, 2); err != nil {
		return nil, err
	}
	cls, f, err := b.field(args[0], args[1])
	if err != nil {
		return nil, err
	}
	v, err := cls.GetStatic(threadContext(thread), f)
	if err != nil {
		return nil, err
	}
	return convertToStarlarkValue(v)
}

func (b *bridge) storeStatic(ctx context.Context, cls *runtime.Class, f *runtime.Field, v starlarkLib.Value) error {
	val, err := convertStarlarkValue(v, f.Type)
	if err != nil {
		return err
	}
	return cls.SetStatic(ctx, f, val)
}

// _puts(owner, name, value) returns value.
func (b *bridge) putStatic(thread *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_puts", args, 3); err != nil {
		return nil, err
	}
	cls, f, err := b.field(args[0], args[1])
	if err != nil {
		return nil, err
	}
	return args[2], b.storeStatic(threadContext(thread), cls, f, args[2])
}

// _rmws(owner, name, fn, post)
func (b *bridge) rmwStatic(thread *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_rmws", args, 4); err != nil {
		return nil, err
	}
	cls, f, err := b.field(args[0], args[1])
	if err != nil {
		return nil, err
	}
	ctx := threadContext(thread)
	cur, err := cls.GetStatic(ctx, f)
	if err != nil {
		return nil, err
	}
	old, err := convertToStarlarkValue(cur)
	if err != nil {
		return nil, err
	}
	return readModifyWrite(thread, old, args[2], args[3], func(v starlarkLib.Value) error {
		return b.storeStatic(ctx, cls, f, v)
	})
}

func localSlot(name string, args starlarkLib.Tuple) (*starlarkLib.List, int, error) {
	list, ok := args[0].(*starlarkLib.List)
	if !ok {
		return nil, 0, fmt.Errorf("%s: want list, got %s", name, args[0].Type())
	}
	var i int
	if err := starlarkLib.AsInt(args[1], &i); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", name, err)
	}
	if i < 0 || i >= list.Len() {
		return nil, 0, fmt.Errorf("%s: local %d out of range", name, i)
	}
	return list, i, nil
}

// _put(locals, i, value) returns value.
func putLocal(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_put", args, 3); err != nil {
		return nil, err
	}
	list, i, err := localSlot("_put", args)
	if err != nil {
		return nil, err
	}
	return args[2], list.SetIndex(i, args[2])
}

// _rmwl(locals, i, fn, post)
func rmwLocal(thread *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_rmwl", args, 4); err != nil {
		return nil, err
	}
	list, i, err := localSlot("_rmwl", args)
	if err != nil {
		return nil, err
	}
	return readModifyWrite(thread, list.Index(i), args[2], args[3], func(v starlarkLib.Value) error {
		return list.SetIndex(i, v)
	})
}

func (b *bridge) call(thread *starlarkLib.Thread, m *runtime.Method, this runtime.Value, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", runtime.ErrIllegalArgument, m, len(m.Params), len(args))
	}
	vals := make([]runtime.Value, len(args))
	for i, a := range args {
		v, err := convertStarlarkValue(a, m.Params[i])
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	res, err := m.Call(threadContext(thread), this, vals)
	if err != nil {
		return nil, err
	}
	return convertToStarlarkValue(res)
}

// _invoke(recv, name, args...) dispatches on the class of recv.
func (b *bridge) invoke(thread *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_invoke", args, 2); err != nil {
		return nil, err
	}
	name := stringArg(args[1])
	recv, err := convertStarlarkValue(args[0], nil)
	if err != nil {
		return nil, err
	}
	if recv == nil {
		return nil, fmt.Errorf("%w: cannot invoke %s on null", runtime.ErrNullPointer, name)
	}
	cls := runtime.ClassOf(recv)
	m := cls.ResolveVirtual(name)
	if m == nil {
		return nil, fmt.Errorf("%w: %s.%s", runtime.ErrNoSuchMethod, cls.Name(), name)
	}
	return b.call(thread, m, recv, args[2:])
}

// _invokes(owner, name, args...)
func (b *bridge) invokeStatic(thread *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_invokes", args, 2); err != nil {
		return nil, err
	}
	cls, err := b.class(args[0])
	if err != nil {
		return nil, err
	}
	m := cls.LookupMethod(stringArg(args[1]))
	if m == nil {
		return nil, fmt.Errorf("%w: %s.%s", runtime.ErrNoSuchMethod, cls.Name(), stringArg(args[1]))
	}
	return b.call(thread, m, nil, args[2:])
}

// _invokesp(recv, owner, name, args...) calls the method found from owner without virtual
// dispatch, for super and private calls.
func (b *bridge) invokeSpecial(thread *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_invokesp", args, 3); err != nil {
		return nil, err
	}
	recv, err := convertStarlarkValue(args[0], nil)
	if err != nil {
		return nil, err
	}
	cls, err := b.class(args[1])
	if err != nil {
		return nil, err
	}
	m := cls.LookupMethod(stringArg(args[2]))
	if m == nil {
		return nil, fmt.Errorf("%w: %s.%s", runtime.ErrNoSuchMethod, cls.Name(), stringArg(args[2]))
	}
	return b.call(thread, m, recv, args[3:])
}

// _new(class, args...)
func (b *bridge) newObject(thread *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_new", args, 1); err != nil {
		return nil, err
	}
	cls, err := b.class(args[0])
	if err != nil {
		return nil, err
	}
	ctor := cls.ConstructorFor(len(args) - 1)
	if ctor == nil {
		return nil, fmt.Errorf("%w: %s has no constructor taking %d arguments", runtime.ErrNoSuchMethod, cls.Name(), len(args)-1)
	}
	vals := make([]runtime.Value, len(args)-1)
	for i, a := range args[1:] {
		v, err := convertStarlarkValue(a, ctor.Params[i])
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	obj, err := cls.New(threadContext(thread), vals...)
	if err != nil {
		return nil, err
	}
	return object{obj: obj}, nil
}

func intArg(name string, v starlarkLib.Value) (starlarkLib.Int, error) {
	i, ok := v.(starlarkLib.Int)
	if !ok {
		return starlarkLib.Int{}, fmt.Errorf("%s: want int, got %s", name, v.Type())
	}
	return i, nil
}

func floatArg(name string, v starlarkLib.Value) (float64, error) {
	switch x := v.(type) {
	case starlarkLib.Float:
		return float64(x), nil
	case starlarkLib.Int:
		return float64(x.Float()), nil
	}
	return 0, fmt.Errorf("%s: want float, got %s", name, v.Type())
}

// intConv wraps an integer to 32 or 64 bits.
func intConv(bits uint) builtinFunc {
	return func(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
		if err := arity("_i32", args, 1); err != nil {
			return nil, err
		}
		i, err := intArg("_i32", args[0])
		if err != nil {
			return nil, err
		}
		return starlarkLib.MakeInt64(wrapInt(i, bits)), nil
	}
}

// doubleToInt narrows a double: NaN is zero and out of range values saturate.
func doubleToInt(bits uint) builtinFunc {
	return func(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
		if err := arity("_d2i", args, 1); err != nil {
			return nil, err
		}
		f, err := floatArg("_d2i", args[0])
		if err != nil {
			return nil, err
		}
		lo, hi := float64(math.MinInt32), float64(math.MaxInt32)
		if bits == 64 {
			lo, hi = math.MinInt64, math.MaxInt64
		}
		switch {
		case math.IsNaN(f):
			return starlarkLib.MakeInt(0), nil
		case f <= lo:
			return starlarkLib.MakeInt64(int64(lo)), nil
		case f >= hi:
			if bits == 64 {
				return starlarkLib.MakeInt64(math.MaxInt64), nil
			}
			return starlarkLib.MakeInt64(math.MaxInt32), nil
		}
		return starlarkLib.MakeInt64(int64(f)), nil
	}
}

// intDiv divides truncating toward zero, or takes the remainder with the sign of the
// dividend, and wraps the result.
func intDiv(bits uint, rem bool) builtinFunc {
	return func(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
		if err := arity("_idiv", args, 2); err != nil {
			return nil, err
		}
		x, err := intArg("_idiv", args[0])
		if err != nil {
			return nil, err
		}
		y, err := intArg("_idiv", args[1])
		if err != nil {
			return nil, err
		}
		a, b := wrapInt(x, bits), wrapInt(y, bits)
		if b == 0 {
			return nil, fmt.Errorf("%w: / by zero", runtime.ErrArithmetic)
		}
		if rem {
			return starlarkLib.MakeInt64(a % b), nil
		}
		q := a / b
		if bits == 32 {
			q = int64(int32(q))
		}
		return starlarkLib.MakeInt64(q), nil
	}
}

func floatPair(name string, args starlarkLib.Tuple) (float64, float64, error) {
	if err := arity(name, args, 2); err != nil {
		return 0, 0, err
	}
	x, err := floatArg(name, args[0])
	if err != nil {
		return 0, 0, err
	}
	y, err := floatArg(name, args[1])
	return x, y, err
}

func doubleDiv(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	x, y, err := floatPair("_ddiv", args)
	if err != nil {
		return nil, err
	}
	return starlarkLib.Float(x / y), nil
}

func doubleRem(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	x, y, err := floatPair("_drem", args)
	if err != nil {
		return nil, err
	}
	return starlarkLib.Float(math.Mod(x, y)), nil
}

// _dcmp(op, x, y) compares doubles with IEEE semantics.
func doubleCompare(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_dcmp", args, 3); err != nil {
		return nil, err
	}
	x, y, err := floatPair("_dcmp", args[1:])
	if err != nil {
		return nil, err
	}
	var r bool
	switch stringArg(args[0]) {
	case "==":
		r = x == y
	case "!=":
		r = x != y
	case "<":
		r = x < y
	case "<=":
		r = x <= y
	case ">":
		r = x > y
	case ">=":
		r = x >= y
	default:
		return nil, fmt.Errorf("_dcmp: unknown operator %s", args[0])
	}
	return starlarkLib.Bool(r), nil
}

// shift(x, n, bits) shifts by the low 5 or 6 bits of n.
func shift(op string) builtinFunc {
	return func(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
		if err := arity("_shift", args, 3); err != nil {
			return nil, err
		}
		x, err := intArg("_shift", args[0])
		if err != nil {
			return nil, err
		}
		n, err := intArg("_shift", args[1])
		if err != nil {
			return nil, err
		}
		var bits int
		if err := starlarkLib.AsInt(args[2], &bits); err != nil {
			return nil, err
		}
		s := uint(wrapInt(n, 64)) & uint(bits-1)
		if bits == 32 {
			v := int32(wrapInt(x, 32))
			switch op {
			case "<<":
				v <<= s
			case ">>":
				v >>= s
			default:
				v = int32(uint32(v) >> s)
			}
			return starlarkLib.MakeInt64(int64(v)), nil
		}
		v := wrapInt(x, 64)
		switch op {
		case "<<":
			v <<= s
		case ">>":
			v >>= s
		default:
			v = int64(uint64(v) >> s)
		}
		return starlarkLib.MakeInt64(v), nil
	}
}

// boolOp evaluates a non-short-circuit boolean operator.
func boolOp(f func(x, y bool) bool) builtinFunc {
	return func(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
		if err := arity("_and", args, 2); err != nil {
			return nil, err
		}
		return starlarkLib.Bool(f(bool(args[0].Truth()), bool(args[1].Truth()))), nil
	}
}

// _concat(x, y) applies string conversion to both operands.
func concat(thread *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_concat", args, 2); err != nil {
		return nil, err
	}
	ctx := threadContext(thread)
	var out string
	for _, a := range args {
		s, err := javaString(ctx, a)
		if err != nil {
			return nil, err
		}
		out += s
	}
	return starlarkLib.String(out), nil
}

func javaString(ctx context.Context, v starlarkLib.Value) (string, error) {
	var rv runtime.Value
	switch x := v.(type) {
	case starlarkLib.Int:
		rv = wrapInt(x, 64)
	case starlarkLib.Float:
		rv = float64(x)
	case starlarkLib.Bool:
		rv = bool(x)
	default:
		var err error
		if rv, err = convertStarlarkValue(v, nil); err != nil {
			return "", err
		}
	}
	return runtime.ToString(ctx, rv)
}

// _seq(x, y) evaluates both and returns y.
func sequence(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_seq", args, 2); err != nil {
		return nil, err
	}
	return args[len(args)-1], nil
}

// _instanceof(x, class)
func (b *bridge) instanceOf(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_instanceof", args, 2); err != nil {
		return nil, err
	}
	cls, err := b.class(args[1])
	if err != nil {
		return nil, err
	}
	v, err := convertStarlarkValue(args[0], nil)
	if err != nil {
		return nil, err
	}
	return starlarkLib.Bool(v != nil && runtime.IsInstance(v, cls)), nil
}

// _cast(x, class)
func (b *bridge) cast(_ *starlarkLib.Thread, args starlarkLib.Tuple) (starlarkLib.Value, error) {
	if err := arity("_cast", args, 2); err != nil {
		return nil, err
	}
	cls, err := b.class(args[1])
	if err != nil {
		return nil, err
	}
	v, err := convertStarlarkValue(args[0], nil)
	if err != nil {
		return nil, err
	}
	if _, err := runtime.CheckCast(v, cls); err != nil {
		return nil, err
	}
	return args[0], nil
}
