package classbody

import (
	"context"

	"github.com/robbyt/go-classbody/compiler/scanner"
	"github.com/robbyt/go-classbody/options"
	"github.com/robbyt/go-classbody/runtime"
)

// SetExtendedType forwards to SetExtendedClass.
//
// Deprecated: use SetExtendedClass.
func (e *ClassBodyEvaluator) SetExtendedType(t runtime.Type) error {
	return e.SetExtendedClass(t)
}

// SetImplementedTypes forwards to SetImplementedInterfaces.
//
// Deprecated: use SetImplementedInterfaces.
func (e *ClassBodyEvaluator) SetImplementedTypes(ts []runtime.Type) error {
	return e.SetImplementedInterfaces(ts)
}

// GetClazz forwards to ResultType.
//
// Deprecated: use ResultType.
func (e *ClassBodyEvaluator) GetClazz() (*runtime.Class, error) {
	return e.ResultType()
}

// CreateFastClassBodyEvaluator forwards to CreateFast.
//
// Deprecated: use CreateFast.
func CreateFastClassBodyEvaluator(
	ctx context.Context,
	src *scanner.Scanner,
	baseType runtime.Type,
	parent *runtime.Loader,
	opts ...options.Option,
) (*runtime.Object, error) {
	return CreateFast(ctx, src, baseType, parent, opts...)
}

// NewCooked creates an evaluator and cooks body with it.
//
// Deprecated: use New followed by CookString.
func NewCooked(ctx context.Context, body string, opts ...options.Option) (*ClassBodyEvaluator, error) {
	e, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := e.CookString(ctx, body); err != nil {
		return nil, err
	}
	return e, nil
}
