package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstantiate_Errors(t *testing.T) {
	t.Parallel()

	l := NewLoader(nil)
	classes := define(t, l,
		fooInterface(),
		&ClassDef{Name: "NoDefault", Mods: Public, Constructors: []ConstructorDef{{Params: []string{"int"}}}},
		&ClassDef{Name: "Hidden", Constructors: []ConstructorDef{{}}},
		&ClassDef{Name: "PrivateCtor", Mods: Public, Constructors: []ConstructorDef{{Mods: Private}}},
	)

	tests := []struct {
		name string
		typ  Type
		want error
	}{
		{name: "nil", typ: nil, want: ErrInstantiation},
		{name: "primitive", typ: Int, want: ErrInstantiation},
		{name: "void", typ: Void, want: ErrInstantiation},
		{name: "array", typ: ArrayOf(ObjectClass()), want: ErrInstantiation},
		{name: "interface", typ: classes[0], want: ErrInstantiation},
		{name: "no zero-parameter constructor", typ: classes[1], want: ErrInstantiation},
		{name: "string has no constructor", typ: StringClass(), want: ErrInstantiation},
		{name: "class not public", typ: classes[2], want: ErrIllegalAccess},
		{name: "private constructor", typ: classes[3], want: ErrIllegalAccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			obj, err := Instantiate(t.Context(), tt.typ)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, obj)
		})
	}

	// New is not subject to reflective access checks.
	obj, err := classes[2].New(t.Context())
	require.NoError(t, err)
	assert.Same(t, classes[2], obj.Class())

	_, err = classes[1].New(t.Context())
	require.ErrorIs(t, err, ErrNoSuchMethod)
}

func TestClass_ConstructionOrder(t *testing.T) {
	t.Parallel()

	var trace []string
	step := func(s string) Invoker {
		return InvokerFunc(func(_ context.Context, this Value, args []Value) (Value, error) {
			assert.IsType(t, &Object{}, this)
			entry := s
			if len(args) > 0 {
				entry += ":" + args[0].(string)
			}
			trace = append(trace, entry)
			return nil, nil
		})
	}

	l := NewLoader(nil)
	classes := define(t, l,
		&ClassDef{
			Name:         "Base",
			Mods:         Public,
			Fields:       []FieldDef{{Name: "a", Type: "int"}},
			InstanceInit: step("base init"),
			Constructors: []ConstructorDef{{Mods: Public, Impl: step("base ctor")}},
		},
		&ClassDef{
			Name:         "Derived",
			Mods:         Public,
			Super:        "Base",
			Fields:       []FieldDef{{Name: "b", Type: "long"}, {Name: "s", Type: StringClassName}, {Name: "k", Type: "int", Mods: Static}},
			InstanceInit: step("derived init"),
			Constructors: []ConstructorDef{
				{Mods: Public, Impl: step("derived ctor")},
				{Mods: Public, Params: []string{StringClassName}, Impl: step("derived ctor")},
			},
		},
	)
	derived := classes[1]
	assert.Equal(t, 3, derived.NumSlots())

	obj, err := derived.New(t.Context(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"base init", "base ctor", "derived init", "derived ctor:x"}, trace)

	a, err := obj.Get("a")
	require.NoError(t, err)
	assert.Equal(t, int32(0), a)
	b, err := obj.Get("b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), b)
	s, err := obj.Get("s")
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, obj.Set("a", 7))
	require.NoError(t, obj.Set("s", "hello"))
	a, _ = obj.Get("a")
	assert.Equal(t, int32(7), a)

	require.ErrorIs(t, obj.Set("a", "nope"), ErrIllegalArgument)
	require.ErrorIs(t, obj.Set("missing", 1), ErrNoSuchField)
	_, err = obj.Get("k")
	require.ErrorIs(t, err, ErrNoSuchField, "static fields are not instance fields")
}

func TestClass_StaticInitialization(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	var mu sync.Mutex
	runs := 0
	var counter *Class
	counterDef := &ClassDef{
		Name:   "Counter",
		Mods:   Public,
		Fields: []FieldDef{{Name: "n", Type: "int", Mods: Static}},
		StaticInit: InvokerFunc(func(ctx context.Context, _ Value, _ []Value) (Value, error) {
			mu.Lock()
			runs++
			mu.Unlock()
			// Reentrant access while initialization is in progress.
			return nil, counter.SetStatic(ctx, counter.DeclaredField("n"), int32(41))
		}),
		Methods: []MethodDef{{
			Name:   "next",
			Return: "int",
			Mods:   Public | Static,
			Impl: InvokerFunc(func(ctx context.Context, _ Value, _ []Value) (Value, error) {
				f := counter.DeclaredField("n")
				v, err := counter.GetStatic(ctx, f)
				if err != nil {
					return nil, err
				}
				n := v.(int32) + 1
				return n, counter.SetStatic(ctx, f, n)
			}),
		}},
	}
	counter = define(t, NewLoader(nil), counterDef)[0]
	assert.Equal(t, 0, runs, "initialization is lazy")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, counter.Initialize(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, runs)

	v, err := counter.InvokeStatic(ctx, "next")
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	v, err = counter.GetStatic(ctx, counter.DeclaredField("n"))
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	_, err = counter.InvokeStatic(ctx, "missing")
	require.ErrorIs(t, err, ErrNoSuchMethod)
}

func TestClass_FailedInitialization(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := define(t, NewLoader(nil), &ClassDef{
		Name:         "Broken",
		Mods:         Public,
		StaticInit:   InvokerFunc(func(context.Context, Value, []Value) (Value, error) { return nil, boom }),
		Constructors: []ConstructorDef{{Mods: Public}},
	})[0]

	_, err := c.Instantiate(t.Context())
	require.ErrorIs(t, err, ErrInitializerFailed)
	require.ErrorIs(t, err, boom)

	_, err = c.Instantiate(t.Context())
	require.ErrorIs(t, err, ErrInitializerFailed, "failure is sticky")
}

func TestMethod_Call(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	var recurse *Method
	classes := define(t, NewLoader(nil),
		&ClassDef{
			Name: "Shape",
			Mods: Public | Abstract,
			Methods: []MethodDef{
				{Name: "area", Return: "double", Mods: Public | Abstract},
				{
					Name:   "recurse",
					Return: "void",
					Mods:   Public | Static,
					Impl: InvokerFunc(func(ctx context.Context, _ Value, _ []Value) (Value, error) {
						return recurse.Call(ctx, nil, nil)
					}),
				},
			},
			Constructors: []ConstructorDef{{Mods: Public}},
		},
	)
	shape := classes[0]
	recurse = shape.DeclaredMethod("recurse")

	area := shape.DeclaredMethod("area")
	assert.True(t, area.IsAbstract())
	assert.Equal(t, "Shape.area()", area.String())

	_, err := area.Call(ctx, nil, nil)
	require.ErrorIs(t, err, ErrNullPointer)

	obj, err := shape.New(ctx)
	require.ErrorIs(t, err, ErrInstantiation)
	assert.Nil(t, obj)

	_, err = recurse.Call(ctx, nil, nil)
	require.ErrorIs(t, err, ErrStackOverflow)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = recurse.Call(cancelled, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}
