package classbody

import (
	"context"
	"errors"

	"github.com/robbyt/go-classbody/compiler/scanner"
	"github.com/robbyt/go-classbody/options"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

// CreateFast compiles a class body named DefaultClassName and returns an instance. An
// interface baseType is implemented by the class; any other baseType is extended. A nil
// baseType means neither.
func CreateFast(
	ctx context.Context,
	src *scanner.Scanner,
	baseType runtime.Type,
	parent *runtime.Loader,
	opts ...options.Option,
) (*runtime.Object, error) {
	var (
		extended    runtime.Type
		implemented = []runtime.Type{}
	)
	if baseType != nil {
		if baseType.IsInterface() {
			implemented = []runtime.Type{baseType}
		} else {
			extended = baseType
		}
	}
	return CreateFastNamed(ctx, src, DefaultClassName, extended, implemented, parent, opts...)
}

// CreateFastNamed compiles a class body into the class className with the given
// superclass and interfaces, and returns an instance created with its zero-parameter
// constructor.
func CreateFastNamed(
	ctx context.Context,
	src *scanner.Scanner,
	className string,
	extended runtime.Type,
	implemented []runtime.Type,
	parent *runtime.Loader,
	opts ...options.Option,
) (*runtime.Object, error) {
	e, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := e.SetClassName(className); err != nil {
		return nil, err
	}
	if err := e.SetExtendedClass(extended); err != nil {
		return nil, err
	}
	if err := e.SetImplementedInterfaces(implemented); err != nil {
		return nil, err
	}
	if err := e.SetParentLoader(parent); err != nil {
		return nil, err
	}
	if err := e.Cook(ctx, src); err != nil {
		return nil, err
	}
	cls, err := e.ResultType()
	if err != nil {
		return nil, err
	}

	obj, err := runtime.Instantiate(ctx, cls)
	switch {
	case err == nil:
		return obj, nil
	case errors.Is(err, runtime.ErrInstantiation):
		return nil, diag.Wrap(diag.KindCompile, err, nil,
			"cannot instantiate abstract class -- one or more method implementations are missing")
	case errors.Is(err, runtime.ErrIllegalAccess):
		// The generated class and its default constructor are public.
		return nil, diag.Wrap(diag.KindInternal, err, nil, "generated class is not accessible")
	default:
		return nil, err
	}
}

// CreateFastFromString is CreateFast for a class body given as text.
func CreateFastFromString(
	ctx context.Context,
	body string,
	baseType runtime.Type,
	parent *runtime.Loader,
	opts ...options.Option,
) (*runtime.Object, error) {
	return CreateFast(ctx, scanner.FromString(body, ""), baseType, parent, opts...)
}
