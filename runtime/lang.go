package runtime

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/robbyt/go-classbody/internal/helpers"
)

// Names of the classes provided by the System loader. The package lang is imported on
// demand by every compilation unit.
const (
	LangPackage      = "lang"
	ObjectClassName  = "lang.Object"
	StringClassName  = "lang.String"
	MathClassName    = "lang.Math"
	IntegerClassName = "lang.Integer"
)

type bootstrap struct {
	loader  *Loader
	object  *Class
	str     *Class
	math    *Class
	integer *Class
}

var (
	bootOnce sync.Once
	booted   *bootstrap
)

// boot defines the lang classes on first use. The lang classes are concrete and not
// interfaces, so linking them never asks for ObjectClass and re-enters bootOnce.
func boot() *bootstrap {
	bootOnce.Do(func() {
		booted = newBootstrap()
	})
	return booted
}

// System returns the root loader holding the lang classes.
func System() *Loader {
	return boot().loader
}

// ObjectClass returns lang.Object, the root of the class hierarchy.
func ObjectClass() *Class {
	return boot().object
}

// StringClass returns lang.String, the class of string values.
func StringClass() *Class {
	return boot().str
}

func newBootstrap() *bootstrap {
	l := newLoader(nil)
	_, l.logger = helpers.SetupLogger(nil, "runtime", "Loader")

	classes, err := l.DefineClasses(context.Background(),
		objectDef(), stringDef(), mathDef(), integerDef())
	if err != nil {
		panic(fmt.Sprintf("runtime: bootstrap classes: %v", err))
	}
	b := &bootstrap{
		loader:  l,
		object:  classes[0],
		str:     classes[1],
		math:    classes[2],
		integer: classes[3],
	}

	setConst := func(c *Class, name string, v Value) {
		c.staticSlots[c.DeclaredField(name).Slot] = v
	}
	setConst(b.math, "PI", math.Pi)
	setConst(b.math, "E", math.E)
	setConst(b.integer, "MAX_VALUE", int32(math.MaxInt32))
	setConst(b.integer, "MIN_VALUE", int32(math.MinInt32))
	return b
}

func native(f func(this Value, args []Value) (Value, error)) Invoker {
	return InvokerFunc(func(_ context.Context, this Value, args []Value) (Value, error) {
		return f(this, args)
	})
}

func objectDef() *ClassDef {
	return &ClassDef{
		Name: ObjectClassName,
		Mods: Public,
		Methods: []MethodDef{
			{
				Name:   "toString",
				Return: StringClassName,
				Mods:   Public,
				Impl: native(func(this Value, _ []Value) (Value, error) {
					if o, ok := this.(*Object); ok {
						return o.String(), nil
					}
					return fmt.Sprint(this), nil
				}),
			},
			{
				Name:       "equals",
				Params:     []string{ObjectClassName},
				ParamNames: []string{"other"},
				Return:     "boolean",
				Mods:       Public,
				Impl: native(func(this Value, args []Value) (Value, error) {
					return this == args[0], nil
				}),
			},
			{
				Name:   "hashCode",
				Return: "int",
				Mods:   Public,
				Impl: native(func(this Value, _ []Value) (Value, error) {
					if o, ok := this.(*Object); ok {
						return o.id, nil
					}
					return int32(0), nil
				}),
			},
		},
		Constructors: []ConstructorDef{{Mods: Public}},
	}
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func strMethod(name string, params []string, ret string, f func(s string, args []Value) (Value, error)) MethodDef {
	names := make([]string, len(params))
	for i := range params {
		names[i] = fmt.Sprintf("arg%d", i)
	}
	return MethodDef{
		Name:       name,
		Params:     params,
		ParamNames: names,
		Return:     ret,
		Mods:       Public,
		Impl: native(func(this Value, args []Value) (Value, error) {
			s, ok := this.(string)
			if !ok {
				return nil, fmt.Errorf("%w: receiver of String.%s is %T", ErrClassCast, name, this)
			}
			for i, a := range args {
				if a == nil && params[i] == StringClassName {
					return nil, fmt.Errorf("%w: argument of String.%s", ErrNullPointer, name)
				}
			}
			return f(s, args)
		}),
	}
}

func stringDef() *ClassDef {
	str := []string{StringClassName}
	return &ClassDef{
		Name: StringClassName,
		Mods: Public | Final,
		Methods: []MethodDef{
			strMethod("length", nil, "int", func(s string, _ []Value) (Value, error) {
				return int32(utf16Len(s)), nil
			}),
			strMethod("isEmpty", nil, "boolean", func(s string, _ []Value) (Value, error) {
				return s == "", nil
			}),
			strMethod("substring", []string{"int", "int"}, StringClassName, func(s string, args []Value) (Value, error) {
				units := utf16.Encode([]rune(s))
				begin, end := int(args[0].(int32)), int(args[1].(int32))
				if begin < 0 || end > len(units) || begin > end {
					return nil, fmt.Errorf("%w: begin %d, end %d, length %d", ErrIndexOutOfBounds, begin, end, len(units))
				}
				return string(utf16.Decode(units[begin:end])), nil
			}),
			strMethod("indexOf", str, "int", func(s string, args []Value) (Value, error) {
				i := strings.Index(s, args[0].(string))
				if i < 0 {
					return int32(-1), nil
				}
				return int32(utf16Len(s[:i])), nil
			}),
			strMethod("contains", str, "boolean", func(s string, args []Value) (Value, error) {
				return strings.Contains(s, args[0].(string)), nil
			}),
			strMethod("startsWith", str, "boolean", func(s string, args []Value) (Value, error) {
				return strings.HasPrefix(s, args[0].(string)), nil
			}),
			strMethod("endsWith", str, "boolean", func(s string, args []Value) (Value, error) {
				return strings.HasSuffix(s, args[0].(string)), nil
			}),
			strMethod("toUpperCase", nil, StringClassName, func(s string, _ []Value) (Value, error) {
				return strings.ToUpper(s), nil
			}),
			strMethod("toLowerCase", nil, StringClassName, func(s string, _ []Value) (Value, error) {
				return strings.ToLower(s), nil
			}),
			strMethod("trim", nil, StringClassName, func(s string, _ []Value) (Value, error) {
				return strings.TrimFunc(s, func(r rune) bool { return r <= ' ' }), nil
			}),
			strMethod("concat", str, StringClassName, func(s string, args []Value) (Value, error) {
				return s + args[0].(string), nil
			}),
			strMethod("equals", []string{ObjectClassName}, "boolean", func(s string, args []Value) (Value, error) {
				o, ok := args[0].(string)
				return ok && o == s, nil
			}),
			strMethod("hashCode", nil, "int", func(s string, _ []Value) (Value, error) {
				return StringHash(s), nil
			}),
			strMethod("toString", nil, StringClassName, func(s string, _ []Value) (Value, error) {
				return s, nil
			}),
		},
	}
}

func staticMethod(name string, params []string, ret string, f func(args []Value) (Value, error)) MethodDef {
	names := make([]string, len(params))
	for i := range params {
		names[i] = string(rune('a' + i))
	}
	return MethodDef{
		Name:       name,
		Params:     params,
		ParamNames: names,
		Return:     ret,
		Mods:       Public | Static,
		Impl: native(func(_ Value, args []Value) (Value, error) {
			return f(args)
		}),
	}
}

func unaryDouble(name string, f func(float64) float64) MethodDef {
	return staticMethod(name, []string{"double"}, "double", func(args []Value) (Value, error) {
		return f(args[0].(float64)), nil
	})
}

func binaryDouble(name string, f func(float64, float64) float64) MethodDef {
	return staticMethod(name, []string{"double", "double"}, "double", func(args []Value) (Value, error) {
		return f(args[0].(float64), args[1].(float64)), nil
	})
}

func mathDef() *ClassDef {
	return &ClassDef{
		Name: MathClassName,
		Mods: Public | Final,
		Fields: []FieldDef{
			{Name: "PI", Type: "double", Mods: Public | Static | Final},
			{Name: "E", Type: "double", Mods: Public | Static | Final},
		},
		Methods: []MethodDef{
			unaryDouble("abs", math.Abs),
			unaryDouble("sqrt", math.Sqrt),
			unaryDouble("floor", math.Floor),
			unaryDouble("ceil", math.Ceil),
			binaryDouble("max", math.Max),
			binaryDouble("min", math.Min),
			binaryDouble("pow", math.Pow),
		},
		Constructors: []ConstructorDef{{Mods: Private}},
	}
}

func binaryInt(name string, f func(a, b int32) int32) MethodDef {
	return staticMethod(name, []string{"int", "int"}, "int", func(args []Value) (Value, error) {
		return f(args[0].(int32), args[1].(int32)), nil
	})
}

func integerDef() *ClassDef {
	return &ClassDef{
		Name: IntegerClassName,
		Mods: Public | Final,
		Fields: []FieldDef{
			{Name: "MAX_VALUE", Type: "int", Mods: Public | Static | Final},
			{Name: "MIN_VALUE", Type: "int", Mods: Public | Static | Final},
		},
		Methods: []MethodDef{
			staticMethod("parseInt", []string{StringClassName}, "int", func(args []Value) (Value, error) {
				s, _ := args[0].(string)
				n, err := strconv.ParseInt(s, 10, 32)
				if err != nil {
					return nil, fmt.Errorf("%w: for input string %q", ErrNumberFormat, s)
				}
				return int32(n), nil
			}),
			staticMethod("toHexString", []string{"int"}, StringClassName, func(args []Value) (Value, error) {
				return strconv.FormatUint(uint64(uint32(args[0].(int32))), 16), nil
			}),
			binaryInt("max", func(a, b int32) int32 { return max(a, b) }),
			binaryInt("min", func(a, b int32) int32 { return min(a, b) }),
			binaryInt("sum", func(a, b int32) int32 { return a + b }),
		},
		Constructors: []ConstructorDef{{Mods: Private}},
	}
}
