package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

var nextIdentity atomic.Int32

// Object is an instance of a class. Its slots hold the instance fields of the class and of
// all its superclasses.
type Object struct {
	class *Class
	id    int32

	mu    sync.RWMutex
	slots []Value
}

func newObject(c *Class) *Object {
	o := &Object{
		class: c,
		id:    nextIdentity.Add(1),
		slots: make([]Value, c.slotCount),
	}
	for k := c; k != nil; k = k.super {
		for _, f := range k.instance {
			o.slots[f.Slot] = ZeroValue(f.Type)
		}
	}
	return o
}

// Class returns the runtime class of o.
func (o *Object) Class() *Class {
	return o.class
}

// IdentityHash returns a per-object value that is stable for the object's lifetime.
func (o *Object) IdentityHash() int32 {
	return o.id
}

func (o *Object) String() string {
	return fmt.Sprintf("%s@%x", o.class.name, uint32(o.id))
}

// GetField reads an instance slot.
func (o *Object) GetField(f *Field) Value {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.slots[f.Slot]
}

// SetField writes an instance slot. v must already have the representation of f.Type.
func (o *Object) SetField(f *Field, v Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.slots[f.Slot] = v
}

func (o *Object) instanceField(name string) (*Field, error) {
	f := o.class.LookupField(name)
	if f == nil || f.IsStatic() {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchField, o.class.name, name)
	}
	return f, nil
}

// Get reads the instance field name.
func (o *Object) Get(name string) (Value, error) {
	f, err := o.instanceField(name)
	if err != nil {
		return nil, err
	}
	return o.GetField(f), nil
}

// Set writes the instance field name, converting v to the field type.
func (o *Object) Set(name string, v any) error {
	f, err := o.instanceField(name)
	if err != nil {
		return err
	}
	cv, err := Coerce(v, f.Type)
	if err != nil {
		return fmt.Errorf("field %s: %w", f, err)
	}
	o.SetField(f, cv)
	return nil
}

// InstanceOf reports whether o is an instance of t.
func (o *Object) InstanceOf(t Type) bool {
	return IsInstance(o, t)
}

// Invoke calls the method name on o with virtual dispatch. Go arguments are converted to
// the parameter types, so Invoke(ctx, "bar", 1, 2) works for a method bar(int, int).
func (o *Object) Invoke(ctx context.Context, name string, args ...any) (Value, error) {
	m := o.class.ResolveVirtual(name)
	if m == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchMethod, o.class.name, name)
	}
	vals, err := coerceArgs(m.String(), m.Params, args)
	if err != nil {
		return nil, err
	}
	return m.Call(ctx, o, vals)
}
