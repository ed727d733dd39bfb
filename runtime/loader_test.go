package runtime

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func define(t *testing.T, l *Loader, defs ...*ClassDef) []*Class {
	t.Helper()
	classes, err := l.DefineClasses(t.Context(), defs...)
	require.NoError(t, err)
	return classes
}

func returns(v Value) Invoker {
	return InvokerFunc(func(context.Context, Value, []Value) (Value, error) {
		return v, nil
	})
}

func fooInterface() *ClassDef {
	return &ClassDef{
		Name: "Foo",
		Mods: Public | Interface,
		Methods: []MethodDef{
			{Name: "bar", Params: []string{"int", "int"}, ParamNames: []string{"a", "b"}, Return: "int"},
		},
	}
}

func adder() *ClassDef {
	return &ClassDef{
		Name:       "Adder",
		Mods:       Public,
		Interfaces: []string{"Foo"},
		Methods: []MethodDef{
			{
				Name:   "bar",
				Params: []string{"int", "int"},
				Return: "int",
				Mods:   Public,
				Impl: InvokerFunc(func(_ context.Context, _ Value, args []Value) (Value, error) {
					return args[0].(int32) + args[1].(int32), nil
				}),
			},
		},
		Constructors: []ConstructorDef{{Mods: Public}},
	}
}

func TestLoader_DefineAndInvoke(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	l := NewLoader(nil, WithLogHandler(slog.DiscardHandler))
	classes := define(t, l, fooInterface(), adder())
	foo, impl := classes[0], classes[1]

	assert.True(t, foo.IsInterface())
	assert.True(t, foo.IsAbstract())
	assert.False(t, foo.HasZeroArgConstructor())
	assert.False(t, impl.IsAbstract())
	assert.True(t, impl.HasZeroArgConstructor())
	assert.Same(t, ObjectClass(), impl.Super())
	assert.True(t, impl.IsSubclassOf(foo))
	assert.Equal(t, []string{"Adder", "Foo"}, l.ClassNames())

	obj, err := impl.Instantiate(ctx)
	require.NoError(t, err)
	assert.True(t, obj.InstanceOf(foo))

	r, err := obj.Invoke(ctx, "bar", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(3), r)

	_, err = obj.Invoke(ctx, "bar", 1)
	require.ErrorIs(t, err, ErrIllegalArgument)
	_, err = obj.Invoke(ctx, "bar", 1, "two")
	require.ErrorIs(t, err, ErrIllegalArgument)
	_, err = obj.Invoke(ctx, "baz")
	require.ErrorIs(t, err, ErrNoSuchMethod)

	// Inherited from lang.Object.
	s, err := obj.Invoke(ctx, "toString")
	require.NoError(t, err)
	assert.Contains(t, s, "Adder@")
}

func TestLoader_Delegation(t *testing.T) {
	t.Parallel()

	parent := NewLoader(nil)
	define(t, parent, fooInterface())
	child := NewLoader(parent)
	assert.Same(t, parent, child.Parent())
	assert.NotEqual(t, parent.ID(), child.ID())

	foo, err := child.LoadClass("Foo")
	require.NoError(t, err)
	assert.Same(t, parent, foo.Loader())

	str, err := child.LoadClass(StringClassName)
	require.NoError(t, err)
	assert.Same(t, StringClass(), str)

	_, err = parent.LoadClass("Adder")
	require.ErrorIs(t, err, ErrClassNotFound)

	define(t, child, adder())
	_, err = parent.LoadClass("Adder")
	require.ErrorIs(t, err, ErrClassNotFound, "children are not visible to parents")

	_, err = child.DefineClasses(t.Context(), fooInterface())
	require.ErrorIs(t, err, ErrDuplicateClass, "parent classes cannot be shadowed")

	it, err := child.ResolveType("int")
	require.NoError(t, err)
	assert.Same(t, Int, it)
}

func TestLoader_AllOrNothing(t *testing.T) {
	t.Parallel()

	l := NewLoader(nil)
	bad := &ClassDef{Name: "Bad", Super: "Missing"}
	_, err := l.DefineClasses(t.Context(), fooInterface(), bad)
	require.ErrorIs(t, err, ErrClassNotFound)

	_, err = l.LoadClass("Foo")
	require.ErrorIs(t, err, ErrClassNotFound)
	assert.Empty(t, l.ClassNames())

	define(t, l, fooInterface())
}

func TestLoader_LinkageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		defs []*ClassDef
		want error
	}{
		{
			name: "unnamed",
			defs: []*ClassDef{{}},
			want: ErrLinkage,
		},
		{
			name: "duplicate in batch",
			defs: []*ClassDef{{Name: "A"}, {Name: "A"}},
			want: ErrDuplicateClass,
		},
		{
			name: "redefine system class",
			defs: []*ClassDef{{Name: ObjectClassName}},
			want: ErrDuplicateClass,
		},
		{
			name: "extends interface",
			defs: []*ClassDef{fooInterface(), {Name: "A", Super: "Foo"}},
			want: ErrLinkage,
		},
		{
			name: "extends final class",
			defs: []*ClassDef{{Name: "A", Super: StringClassName}},
			want: ErrLinkage,
		},
		{
			name: "implements class",
			defs: []*ClassDef{{Name: "A", Interfaces: []string{ObjectClassName}}},
			want: ErrLinkage,
		},
		{
			name: "circular superclass",
			defs: []*ClassDef{{Name: "A", Super: "B"}, {Name: "B", Super: "A"}},
			want: ErrLinkage,
		},
		{
			name: "circular interfaces",
			defs: []*ClassDef{
				{Name: "I", Mods: Interface, Interfaces: []string{"J"}},
				{Name: "J", Mods: Interface, Interfaces: []string{"I"}},
			},
			want: ErrLinkage,
		},
		{
			name: "interface with superclass",
			defs: []*ClassDef{{Name: "I", Mods: Interface, Super: ObjectClassName}},
			want: ErrLinkage,
		},
		{
			name: "duplicate method",
			defs: []*ClassDef{{Name: "A", Methods: []MethodDef{
				{Name: "m", Return: "void", Impl: returns(nil)},
				{Name: "m", Params: []string{"int"}, Return: "void", Impl: returns(nil)},
			}}},
			want: ErrLinkage,
		},
		{
			name: "duplicate field",
			defs: []*ClassDef{{Name: "A", Fields: []FieldDef{{Name: "x", Type: "int"}, {Name: "x", Type: "long"}}}},
			want: ErrLinkage,
		},
		{
			name: "void field",
			defs: []*ClassDef{{Name: "A", Fields: []FieldDef{{Name: "x", Type: "void"}}}},
			want: ErrLinkage,
		},
		{
			name: "unknown parameter type",
			defs: []*ClassDef{{Name: "A", Methods: []MethodDef{{Name: "m", Params: []string{"Nope"}, Return: "void"}}}},
			want: ErrClassNotFound,
		},
		{
			name: "constructors with equal arity",
			defs: []*ClassDef{{Name: "A", Constructors: []ConstructorDef{{}, {}}}},
			want: ErrLinkage,
		},
		{
			name: "interface constructor",
			defs: []*ClassDef{{Name: "I", Mods: Interface, Constructors: []ConstructorDef{{}}}},
			want: ErrLinkage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := NewLoader(nil)
			_, err := l.DefineClasses(t.Context(), tt.defs...)
			require.Error(t, err)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, l.ClassNames())
		})
	}
}

func TestLoader_AbstractComputation(t *testing.T) {
	t.Parallel()

	l := NewLoader(nil)
	partial := &ClassDef{Name: "Partial", Mods: Public, Interfaces: []string{"Foo"}, Constructors: []ConstructorDef{{Mods: Public}}}
	full := adder()
	full.Name = "Full"
	full.Interfaces = nil
	full.Super = "Partial"
	declared := &ClassDef{Name: "Declared", Mods: Public | Abstract, Constructors: []ConstructorDef{{Mods: Public}}}

	classes := define(t, l, fooInterface(), partial, full, declared)
	assert.True(t, classes[1].IsAbstract(), "unimplemented interface method")
	assert.False(t, classes[2].IsAbstract(), "implemented by subclass")
	assert.True(t, classes[3].IsAbstract())

	_, err := Instantiate(t.Context(), classes[1])
	require.ErrorIs(t, err, ErrInstantiation)

	obj, err := Instantiate(t.Context(), classes[2])
	require.NoError(t, err)
	assert.True(t, obj.InstanceOf(classes[1]))
}

type recordingResolver struct {
	bound []string
	err   error
}

func (r *recordingResolver) Resolve(_ context.Context, m *Method) (Invoker, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.bound = append(r.bound, m.String())
	if m.Name == "unbound" {
		return nil, nil
	}
	return returns(int64(99)), nil
}

func TestLoader_NativeResolver(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	def := func() *ClassDef {
		return &ClassDef{
			Name: "N",
			Mods: Public,
			Methods: []MethodDef{
				{Name: "hash", Params: []string{StringClassName}, Return: "long", Mods: Public | Native},
				{Name: "unbound", Return: "long", Mods: Public | Native},
			},
			Constructors: []ConstructorDef{{Mods: Public}},
		}
	}

	r := &recordingResolver{}
	parent := NewLoader(nil, WithNativeResolver(r))
	l := NewLoader(parent)
	classes := define(t, l, def())
	assert.Equal(t, []string{"N.hash(lang.String)", "N.unbound()"}, r.bound)

	obj, err := classes[0].Instantiate(ctx)
	require.NoError(t, err)
	v, err := obj.Invoke(ctx, "hash", "x")
	require.NoError(t, err)
	assert.Equal(t, int64(99), v)

	_, err = obj.Invoke(ctx, "unbound")
	require.ErrorIs(t, err, ErrUnsatisfiedLink)

	failing := NewLoader(nil, WithNativeResolver(&recordingResolver{err: errors.New("no plugin")}))
	_, err = failing.DefineClasses(ctx, def())
	require.ErrorIs(t, err, ErrUnsatisfiedLink)
	assert.Contains(t, err.Error(), "no plugin")
}

func TestLoader_Close(t *testing.T) {
	t.Parallel()

	l := NewLoader(nil)
	var order []int
	l.AddCloser(func(context.Context) error { order = append(order, 1); return nil })
	l.AddCloser(func(context.Context) error { order = append(order, 2); return errors.New("boom") })

	err := l.Close(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []int{2, 1}, order)

	require.NoError(t, l.Close(t.Context()))
	assert.Equal(t, []int{2, 1}, order, "closers run once")

	_, err = l.DefineClasses(t.Context(), fooInterface())
	require.ErrorIs(t, err, ErrLoaderClosed)
}
