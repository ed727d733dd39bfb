package starlark

import (
	"fmt"
	"math/big"

	starlarkLib "go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/robbyt/go-classbody/runtime"
)

// object exposes a runtime object to Starlark code. Equality is identity.
type object struct {
	obj *runtime.Object
}

func (v object) String() string          { return v.obj.String() }
func (v object) Type() string            { return v.obj.Class().Name() }
func (v object) Freeze()                 {}
func (v object) Truth() starlarkLib.Bool { return starlarkLib.True }

func (v object) Hash() (uint32, error) {
	return uint32(v.obj.IdentityHash()), nil
}

func (v object) CompareSameType(op syntax.Token, y starlarkLib.Value, _ int) (bool, error) {
	other, ok := y.(object)
	if !ok {
		return false, fmt.Errorf("%w: cannot compare %s with %s", ErrUnsupportedValue, v.Type(), y.Type())
	}
	switch op {
	case syntax.EQL:
		return v.obj == other.obj, nil
	case syntax.NEQ:
		return v.obj != other.obj, nil
	}
	return false, fmt.Errorf("%w: %s %s %s", ErrUnsupportedValue, v.Type(), op, y.Type())
}

// convertToStarlarkValue converts a runtime value to its Starlark representation.
func convertToStarlarkValue(v runtime.Value) (starlarkLib.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlarkLib.None, nil
	case int32:
		return starlarkLib.MakeInt64(int64(val)), nil
	case int64:
		return starlarkLib.MakeInt64(val), nil
	case float64:
		return starlarkLib.Float(val), nil
	case bool:
		return starlarkLib.Bool(val), nil
	case string:
		return starlarkLib.String(val), nil
	case *runtime.Object:
		return object{obj: val}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// convertStarlarkValue converts v to the runtime representation of t. Any non-primitive t,
// including nil, is treated as a reference type.
func convertStarlarkValue(v starlarkLib.Value, t runtime.Type) (runtime.Value, error) {
	switch t {
	case runtime.Void:
		return nil, nil
	case runtime.Int:
		if i, ok := v.(starlarkLib.Int); ok {
			return int32(wrapInt(i, 32)), nil
		}
	case runtime.Long:
		if i, ok := v.(starlarkLib.Int); ok {
			return wrapInt(i, 64), nil
		}
	case runtime.Double:
		switch x := v.(type) {
		case starlarkLib.Float:
			return float64(x), nil
		case starlarkLib.Int:
			return float64(x.Float()), nil
		}
	case runtime.Boolean:
		if b, ok := v.(starlarkLib.Bool); ok {
			return bool(b), nil
		}
	default:
		switch x := v.(type) {
		case starlarkLib.NoneType:
			return nil, nil
		case starlarkLib.String:
			return string(x), nil
		case object:
			return x.obj, nil
		}
	}
	name := "reference"
	if t != nil {
		name = t.Name()
	}
	return nil, fmt.Errorf("%w: cannot convert %s to %s", ErrUnsupportedValue, v.Type(), name)
}

var (
	mod32 = new(big.Int).Lsh(big.NewInt(1), 32)
	mod64 = new(big.Int).Lsh(big.NewInt(1), 64)
)

// wrapInt reduces i to a two's complement integer of the given width.
func wrapInt(i starlarkLib.Int, bits uint) int64 {
	if v, ok := i.Int64(); ok {
		if bits == 32 {
			return int64(int32(v))
		}
		return v
	}
	mod := mod64
	if bits == 32 {
		mod = mod32
	}
	r := new(big.Int).Mod(i.BigInt(), mod)
	if bits == 32 {
		return int64(int32(uint32(r.Uint64())))
	}
	return int64(r.Uint64())
}
