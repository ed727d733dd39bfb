package runtime

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a runtime value: int32, int64, float64, bool, string, *Object or nil.
type Value = any

// ClassOf returns the class of a reference value, or nil for null and primitives.
func ClassOf(v Value) *Class {
	switch x := v.(type) {
	case *Object:
		return x.class
	case string:
		return StringClass()
	}
	return nil
}

// IsInstance reports whether v is a non-null reference whose class is assignable to t.
func IsInstance(v Value, t Type) bool {
	c := ClassOf(v)
	if c == nil {
		return false
	}
	tc, ok := t.(*Class)
	return ok && c.IsSubclassOf(tc)
}

// CheckCast returns v if it may be viewed as t, as a reference cast does.
func CheckCast(v Value, t Type) (Value, error) {
	if v == nil || IsInstance(v, t) {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s cannot be cast to %s", ErrClassCast, ClassOf(v), t.Name())
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x), true
		}
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), true
		}
	}
	return 0, false
}

// Coerce converts a Go value to the representation of t. Go integers of any width become
// int32 or int64 when in range, and numbers become float64 for double.
func Coerce(v any, t Type) (Value, error) {
	switch t {
	case Int:
		if n, ok := toInt64(v); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), nil
		}
	case Long:
		if n, ok := toInt64(v); ok {
			return n, nil
		}
	case Double:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		}
		if n, ok := toInt64(v); ok {
			return float64(n), nil
		}
	case Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Void:
		if v == nil {
			return nil, nil
		}
	default:
		switch v.(type) {
		case nil:
			return nil, nil
		case string, *Object:
			if IsInstance(v, t) {
				return v, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: cannot convert %T to %s", ErrIllegalArgument, v, t.Name())
}

func coerceArgs(what string, params []Type, args []any) ([]Value, error) {
	if len(args) != len(params) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrIllegalArgument, what, len(params), len(args))
	}
	vals := make([]Value, len(args))
	for i, a := range args {
		v, err := Coerce(a, params[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, what, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// InvokeVirtual dispatches the method name on the class of recv.
func InvokeVirtual(ctx context.Context, recv Value, name string, args []Value) (Value, error) {
	if recv == nil {
		return nil, fmt.Errorf("%w: cannot invoke %s on null", ErrNullPointer, name)
	}
	c := ClassOf(recv)
	if c == nil {
		return nil, fmt.Errorf("%w: %T is not a reference", ErrIllegalArgument, recv)
	}
	m := c.ResolveVirtual(name)
	if m == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchMethod, c.name, name)
	}
	return m.Call(ctx, recv, args)
}

// ToString converts v to a string the way string concatenation does. Objects are converted
// by invoking their toString method.
func ToString(ctx context.Context, v Value) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return x, nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return FormatDouble(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case *Object:
		r, err := InvokeVirtual(ctx, x, "toString", nil)
		if err != nil {
			return "", err
		}
		if r == nil {
			return "null", nil
		}
		s, ok := r.(string)
		if !ok {
			return "", fmt.Errorf("%w: toString returned %T", ErrClassCast, r)
		}
		return s, nil
	}
	return "", fmt.Errorf("%w: %T is not a runtime value", ErrIllegalArgument, v)
}

// FormatDouble renders f like the language's double-to-string conversion: plain notation
// for magnitudes in [1e-3, 1e7), computerized scientific notation otherwise, always with a
// fractional part.
func FormatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	abs := math.Abs(f)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	s := strconv.FormatFloat(f, 'E', -1, 64)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(exp, "+-")
	exp = strings.TrimLeft(exp, "0")
	if exp == "" {
		exp = "0"
	}
	if neg {
		exp = "-" + exp
	}
	return mant + "E" + exp
}

// StringHash computes the language's string hash over UTF-16 code units.
func StringHash(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(u)
	}
	return h
}
