package check

import "github.com/robbyt/go-classbody/runtime"

func isNumeric(t runtime.Type) bool {
	return t == runtime.Int || t == runtime.Long || t == runtime.Double
}

func isIntegral(t runtime.Type) bool {
	return t == runtime.Int || t == runtime.Long
}

func isString(t runtime.Type) bool {
	return t == runtime.Type(runtime.StringClass())
}

// isRef reports whether t is a reference type, including the null type.
func isRef(t runtime.Type) bool {
	return t != nil && !t.IsPrimitive()
}

// promote returns the binary numeric promotion of two numeric types.
func promote(x, y runtime.Type) runtime.Type {
	switch {
	case x == runtime.Double || y == runtime.Double:
		return runtime.Double
	case x == runtime.Long || y == runtime.Long:
		return runtime.Long
	default:
		return runtime.Int
	}
}

// widens reports whether a primitive widening conversion turns from into to.
func widens(from, to runtime.Type) bool {
	switch from {
	case runtime.Int:
		return to == runtime.Long || to == runtime.Double
	case runtime.Long:
		return to == runtime.Double
	}
	return false
}

// assignable reports whether a value of type from may be assigned to a variable of type to.
func assignable(from, to runtime.Type) bool {
	switch {
	case from == nil || to == nil || from == runtime.Void || to == runtime.Void:
		return false
	case from == to:
		return true
	case from.IsPrimitive() || to.IsPrimitive():
		return from.IsPrimitive() && to.IsPrimitive() && widens(from, to)
	case from == Null:
		return true
	}
	return runtime.IsAssignable(from, to)
}

// castable reports whether "(to) x" is legal for x of type from.
func castable(from, to runtime.Type) bool {
	switch {
	case from == to:
		return true
	case isNumeric(from) && isNumeric(to):
		return true
	case from.IsPrimitive() || to.IsPrimitive():
		return false
	case from == Null:
		return true
	}
	fc, ok1 := from.(*runtime.Class)
	tc, ok2 := to.(*runtime.Class)
	if !ok1 || !ok2 {
		return false
	}
	if fc.IsSubclassOf(tc) || tc.IsSubclassOf(fc) {
		return true
	}
	// A non-final class may have a subclass implementing any interface.
	switch {
	case fc.IsInterface() && tc.IsInterface():
		return true
	case fc.IsInterface():
		return !tc.IsFinal()
	case tc.IsInterface():
		return !fc.IsFinal()
	}
	return false
}

// equatable reports whether x == y is legal.
func equatable(x, y runtime.Type) bool {
	switch {
	case isNumeric(x) && isNumeric(y):
		return true
	case x == runtime.Boolean || y == runtime.Boolean:
		return x == y
	case isRef(x) && isRef(y):
		return castable(x, y)
	}
	return false
}
