package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Field is a static or instance variable declared by a class.
type Field struct {
	Name  string
	Type  Type
	Mods  Modifiers
	Owner *Class
	// Slot indexes the owner's static slots for static fields and the object's slots for
	// instance fields.
	Slot int
}

func (f *Field) IsStatic() bool {
	return f.Mods.Has(Static)
}

func (f *Field) String() string {
	return f.Owner.name + "." + f.Name
}

// Method is a method declared by a class. Methods are identified by name within a class.
type Method struct {
	Name       string
	Owner      *Class
	Params     []Type
	ParamNames []string
	Return     Type
	Mods       Modifiers
	Line       int
	impl       Invoker
}

func (m *Method) IsStatic() bool   { return m.Mods.Has(Static) }
func (m *Method) IsAbstract() bool { return m.Mods.Has(Abstract) }
func (m *Method) IsNative() bool   { return m.Mods.Has(Native) }
func (m *Method) IsPrivate() bool  { return m.Mods.Has(Private) }

// Bound reports whether the method has an implementation.
func (m *Method) Bound() bool {
	return m.impl != nil
}

func (m *Method) String() string {
	var b strings.Builder
	b.WriteString(m.Owner.name)
	b.WriteByte('.')
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name())
	}
	b.WriteByte(')')
	return b.String()
}

// Call invokes the method. this is ignored for static methods and args must already have
// the representation of the parameter types.
func (m *Method) Call(ctx context.Context, this Value, args []Value) (Value, error) {
	ctx, err := enter(ctx)
	if err != nil {
		return nil, err
	}
	if m.IsStatic() {
		if err := m.Owner.initialize(ctx); err != nil {
			return nil, err
		}
		this = nil
	} else if this == nil {
		return nil, fmt.Errorf("%w: cannot invoke %s on null", ErrNullPointer, m)
	}
	if m.IsAbstract() {
		return nil, fmt.Errorf("%w: %s", ErrAbstractMethod, m)
	}
	if m.impl == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsatisfiedLink, m)
	}
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrIllegalArgument, m, len(m.Params), len(args))
	}
	return m.impl.Invoke(ctx, this, args)
}

// Constructor is a constructor declared by a class. Constructors of one class differ in
// arity.
type Constructor struct {
	Owner      *Class
	Params     []Type
	ParamNames []string
	Mods       Modifiers
	impl       Invoker
}

// Class is a class or interface defined in a Loader.
type Class struct {
	name       string
	mods       Modifiers
	loader     *Loader
	super      *Class
	interfaces []*Class
	fields     []*Field
	methods    []*Method
	ctors      []*Constructor
	source     string

	staticInit   Invoker
	instanceInit Invoker

	abstract  bool
	slotCount int
	instance  []*Field

	staticMu    sync.Mutex
	staticSlots []Value

	initMu   sync.Mutex
	initDone bool
	initErr  error
}

func (c *Class) Name() string         { return c.name }
func (c *Class) String() string       { return c.name }
func (c *Class) Modifiers() Modifiers { return c.mods }
func (c *Class) Loader() *Loader      { return c.loader }
func (c *Class) Super() *Class        { return c.super }
func (c *Class) Interfaces() []*Class { return c.interfaces }
func (c *Class) Fields() []*Field     { return c.fields }
func (c *Class) Methods() []*Method   { return c.methods }
func (c *Class) Source() string       { return c.source }
func (c *Class) IsInterface() bool    { return c.mods.Has(Interface) }
func (c *Class) IsArray() bool        { return false }
func (c *Class) IsPrimitive() bool    { return false }
func (c *Class) IsPublic() bool       { return c.mods.Has(Public) }
func (c *Class) IsFinal() bool        { return c.mods.Has(Final) }
func (c *Class) Constructors() []*Constructor {
	return c.ctors
}

// IsAbstract reports whether the class is an interface, is declared abstract, or leaves an
// inherited abstract method unimplemented.
func (c *Class) IsAbstract() bool {
	return c.abstract
}

// HasZeroArgConstructor reports whether the class declares a constructor without
// parameters. Interfaces have none.
func (c *Class) HasZeroArgConstructor() bool {
	return c.ConstructorFor(0) != nil
}

// ConstructorFor returns the constructor taking n parameters.
func (c *Class) ConstructorFor(n int) *Constructor {
	for _, k := range c.ctors {
		if len(k.Params) == n {
			return k
		}
	}
	return nil
}

// DeclaredField returns the field named name declared by c itself.
func (c *Class) DeclaredField(name string) *Field {
	for _, f := range c.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// DeclaredMethod returns the method named name declared by c itself.
func (c *Class) DeclaredMethod(name string) *Method {
	for _, m := range c.methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// LookupField finds a field by name in c, its superinterfaces and then its superclasses.
func (c *Class) LookupField(name string) *Field {
	for k := c; k != nil; k = k.super {
		if f := k.DeclaredField(name); f != nil {
			return f
		}
		for _, i := range k.interfaces {
			if f := i.LookupField(name); f != nil {
				return f
			}
		}
	}
	return nil
}

// LookupMethod finds the method named name visible from c: declared by c or a superclass,
// or else by a superinterface. Interfaces also see the methods of lang.Object.
func (c *Class) LookupMethod(name string) *Method {
	for k := c; k != nil; k = k.super {
		if m := k.DeclaredMethod(name); m != nil {
			return m
		}
	}
	for k := c; k != nil; k = k.super {
		for _, i := range k.interfaces {
			if m := i.LookupMethod(name); m != nil {
				return m
			}
		}
	}
	if c.IsInterface() {
		return ObjectClass().DeclaredMethod(name)
	}
	return nil
}

// ResolveVirtual returns the implementation that a virtual call of name on an instance of c
// dispatches to: the most derived non-abstract declaration, or else the abstract one.
func (c *Class) ResolveVirtual(name string) *Method {
	for k := c; k != nil; k = k.super {
		if m := k.DeclaredMethod(name); m != nil && !m.IsAbstract() {
			return m
		}
	}
	return c.LookupMethod(name)
}

// IsSubclassOf reports whether c is other or inherits from it, through superclasses or
// interfaces. Every class is a subclass of lang.Object.
func (c *Class) IsSubclassOf(other *Class) bool {
	if c == other || other == ObjectClass() {
		return true
	}
	if c.super != nil && c.super.IsSubclassOf(other) {
		return true
	}
	for _, i := range c.interfaces {
		if i.IsSubclassOf(other) {
			return true
		}
	}
	return false
}

// NumSlots returns the number of instance slots of objects of c, inherited ones included.
func (c *Class) NumSlots() int {
	return c.slotCount
}

type initMarker struct{ c *Class }

// initialize runs the static initializer once. A nested request for the same class on the
// same call chain returns immediately, as the initialization is already in progress.
func (c *Class) initialize(ctx context.Context) error {
	if ctx.Value(initMarker{c}) != nil {
		return nil
	}
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initDone {
		return c.initErr
	}
	c.initDone = true

	ictx := context.WithValue(ctx, initMarker{c}, true)
	if c.super != nil {
		if err := c.super.initialize(ictx); err != nil {
			c.initErr = err
			return err
		}
	}
	if c.staticInit != nil {
		if _, err := c.staticInit.Invoke(ictx, nil, nil); err != nil {
			c.initErr = fmt.Errorf("%w: %s: %w", ErrInitializerFailed, c.name, err)
		}
	}
	return c.initErr
}

// Initialize forces static initialization of c.
func (c *Class) Initialize(ctx context.Context) error {
	return c.initialize(ctx)
}

// GetStatic reads a static field, initializing its class first.
func (c *Class) GetStatic(ctx context.Context, f *Field) (Value, error) {
	if !f.IsStatic() {
		return nil, fmt.Errorf("%w: %s is not static", ErrNoSuchField, f)
	}
	owner := f.Owner
	if err := owner.initialize(ctx); err != nil {
		return nil, err
	}
	owner.staticMu.Lock()
	defer owner.staticMu.Unlock()
	return owner.staticSlots[f.Slot], nil
}

// SetStatic writes a static field, initializing its class first.
func (c *Class) SetStatic(ctx context.Context, f *Field, v Value) error {
	if !f.IsStatic() {
		return fmt.Errorf("%w: %s is not static", ErrNoSuchField, f)
	}
	owner := f.Owner
	if err := owner.initialize(ctx); err != nil {
		return err
	}
	owner.staticMu.Lock()
	defer owner.staticMu.Unlock()
	owner.staticSlots[f.Slot] = v
	return nil
}

// InvokeStatic calls the static method name with Go arguments converted to the parameter
// types.
func (c *Class) InvokeStatic(ctx context.Context, name string, args ...any) (Value, error) {
	m := c.LookupMethod(name)
	if m == nil || !m.IsStatic() {
		return nil, fmt.Errorf("%w: static %s.%s", ErrNoSuchMethod, c.name, name)
	}
	vals, err := coerceArgs(m.String(), m.Params, args)
	if err != nil {
		return nil, err
	}
	return m.Call(ctx, nil, vals)
}

// New creates an instance through the constructor matching len(args), as the "new"
// expression does. Accessibility is the compiler's concern.
func (c *Class) New(ctx context.Context, args ...Value) (*Object, error) {
	if c.abstract {
		return nil, fmt.Errorf("%w: %s is abstract", ErrInstantiation, c.name)
	}
	ctor := c.ConstructorFor(len(args))
	if ctor == nil {
		return nil, fmt.Errorf("%w: %s has no constructor taking %d arguments", ErrNoSuchMethod, c.name, len(args))
	}
	return c.newInstance(ctx, ctor, args)
}

// Instantiate creates an instance through the zero-parameter constructor, as reflective
// instantiation does.
func (c *Class) Instantiate(ctx context.Context) (*Object, error) {
	return Instantiate(ctx, c)
}

func (c *Class) newInstance(ctx context.Context, ctor *Constructor, args []Value) (*Object, error) {
	ctx, err := enter(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.initialize(ctx); err != nil {
		return nil, err
	}
	obj := newObject(c)
	if err := c.construct(ctx, obj, ctor, args); err != nil {
		return nil, err
	}
	return obj, nil
}

// construct runs the superclass constructor chain, then the instance initializers of c,
// then the constructor body.
func (c *Class) construct(ctx context.Context, obj *Object, ctor *Constructor, args []Value) error {
	if c.super != nil {
		sc := c.super.ConstructorFor(0)
		if sc == nil {
			return fmt.Errorf("%w: %s has no zero-parameter constructor", ErrLinkage, c.super.name)
		}
		if err := c.super.construct(ctx, obj, sc, nil); err != nil {
			return err
		}
	}
	if c.instanceInit != nil {
		if _, err := c.instanceInit.Invoke(ctx, obj, nil); err != nil {
			return err
		}
	}
	if ctor.impl != nil {
		if _, err := ctor.impl.Invoke(ctx, obj, args); err != nil {
			return err
		}
	}
	return nil
}

// Instantiate creates an instance of t through its zero-parameter constructor. It fails
// with ErrInstantiation when t is abstract, an interface, an array type, a primitive type
// or void, or has no zero-parameter constructor, and with ErrIllegalAccess when the class
// is not public or the constructor is private.
func Instantiate(ctx context.Context, t Type) (*Object, error) {
	switch {
	case t == nil:
		return nil, fmt.Errorf("%w: type is nil", ErrInstantiation)
	case t.IsPrimitive():
		return nil, fmt.Errorf("%w: %s is a primitive type", ErrInstantiation, t.Name())
	case t.IsArray():
		return nil, fmt.Errorf("%w: %s is an array type", ErrInstantiation, t.Name())
	case t.IsInterface():
		return nil, fmt.Errorf("%w: %s is an interface", ErrInstantiation, t.Name())
	case t.IsAbstract():
		return nil, fmt.Errorf("%w: %s is abstract", ErrInstantiation, t.Name())
	}
	c, ok := t.(*Class)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a class", ErrInstantiation, t.Name())
	}
	ctor := c.ConstructorFor(0)
	if ctor == nil {
		return nil, fmt.Errorf("%w: %s has no zero-parameter constructor", ErrInstantiation, c.name)
	}
	if !c.IsPublic() {
		return nil, fmt.Errorf("%w: class %s is not public", ErrIllegalAccess, c.name)
	}
	if ctor.Mods.Has(Private) {
		return nil, fmt.Errorf("%w: zero-parameter constructor of %s is private", ErrIllegalAccess, c.name)
	}
	return c.newInstance(ctx, ctor, nil)
}
