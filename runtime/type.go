// Package runtime is the type system and type-loading facility that compiled classes are
// defined into. Classes live in a Loader; loaders form a parent-first delegation chain rooted
// at the System loader, which provides the lang.* classes. Values crossing the package API
// are int32, int64, float64, bool, string, *Object or nil.
package runtime

// Type is a handle to a primitive, array or class type.
type Type interface {
	Name() string
	IsInterface() bool
	IsAbstract() bool
	IsArray() bool
	IsPrimitive() bool
	HasZeroArgConstructor() bool
}

// Primitive is one of the built-in value types, including void.
type Primitive struct {
	name string
}

var (
	Int     = &Primitive{name: "int"}
	Long    = &Primitive{name: "long"}
	Double  = &Primitive{name: "double"}
	Boolean = &Primitive{name: "boolean"}
	Void    = &Primitive{name: "void"}
)

var primitives = map[string]*Primitive{
	Int.name:     Int,
	Long.name:    Long,
	Double.name:  Double,
	Boolean.name: Boolean,
	Void.name:    Void,
}

// PrimitiveByName returns the primitive type spelled name.
func PrimitiveByName(name string) (*Primitive, bool) {
	p, ok := primitives[name]
	return p, ok
}

func (p *Primitive) Name() string                { return p.name }
func (p *Primitive) String() string              { return p.name }
func (p *Primitive) IsInterface() bool           { return false }
func (p *Primitive) IsAbstract() bool            { return false }
func (p *Primitive) IsArray() bool               { return false }
func (p *Primitive) IsPrimitive() bool           { return true }
func (p *Primitive) HasZeroArgConstructor() bool { return false }

// IsNumeric reports whether p is int, long or double.
func (p *Primitive) IsNumeric() bool {
	return p == Int || p == Long || p == Double
}

// ArrayType is an array of Elem. The language has no array expressions; array types exist
// so that reflective instantiation can reject them.
type ArrayType struct {
	Elem Type
}

// ArrayOf returns the array type with element type elem.
func ArrayOf(elem Type) *ArrayType {
	return &ArrayType{Elem: elem}
}

func (a *ArrayType) Name() string                { return a.Elem.Name() + "[]" }
func (a *ArrayType) String() string              { return a.Name() }
func (a *ArrayType) IsInterface() bool           { return false }
func (a *ArrayType) IsAbstract() bool            { return true }
func (a *ArrayType) IsArray() bool               { return true }
func (a *ArrayType) IsPrimitive() bool           { return false }
func (a *ArrayType) HasZeroArgConstructor() bool { return false }

// IsReference reports whether values of t are references (nil-able).
func IsReference(t Type) bool {
	return !t.IsPrimitive()
}

// ZeroValue returns the default value of a field or local of type t.
func ZeroValue(t Type) Value {
	switch t {
	case Int:
		return int32(0)
	case Long:
		return int64(0)
	case Double:
		return float64(0)
	case Boolean:
		return false
	}
	return nil
}

// IsAssignable reports whether a reference of type from may be stored in a variable of type
// to without a cast. Primitive types are only assignable to themselves; numeric widening is
// the compiler's business.
func IsAssignable(from, to Type) bool {
	if from == to {
		return true
	}
	if from.IsPrimitive() || to.IsPrimitive() {
		return false
	}
	fc, ok1 := from.(*Class)
	tc, ok2 := to.(*Class)
	if ok1 && ok2 {
		return fc.IsSubclassOf(tc)
	}
	return false
}
