package runtime

import (
	"context"
	"fmt"
)

// Invoker is the executable body of a method, constructor or initializer. this is nil for
// static members; args are already converted to the declared parameter types.
type Invoker interface {
	Invoke(ctx context.Context, this Value, args []Value) (Value, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, this Value, args []Value) (Value, error)

func (f InvokerFunc) Invoke(ctx context.Context, this Value, args []Value) (Value, error) {
	return f(ctx, this, args)
}

// NativeResolver binds native methods when their class is defined. Resolve returns
// (nil, nil) when it has no binding for m, which leaves the method unbound until a call
// fails with ErrUnsatisfiedLink.
type NativeResolver interface {
	Resolve(ctx context.Context, m *Method) (Invoker, error)
}

// MaxCallDepth bounds nested invocations on one call chain.
const MaxCallDepth = 1024

type callDepthKey struct{}

// enter increments the call depth carried by ctx.
func enter(ctx context.Context) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return ctx, err
	}
	depth, _ := ctx.Value(callDepthKey{}).(int)
	if depth >= MaxCallDepth {
		return ctx, fmt.Errorf("%w: call depth exceeds %d", ErrStackOverflow, MaxCallDepth)
	}
	return context.WithValue(ctx, callDepthKey{}, depth+1), nil
}

// CallDepth returns the number of nested invocations active on ctx.
func CallDepth(ctx context.Context) int {
	depth, _ := ctx.Value(callDepthKey{}).(int)
	return depth
}
