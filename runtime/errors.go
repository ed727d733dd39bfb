package runtime

import "errors"

var (
	// ErrInstantiation reports that a type cannot be instantiated reflectively: it is
	// abstract, an interface, an array type, a primitive type or void, or it has no
	// zero-parameter constructor.
	ErrInstantiation = errors.New("type cannot be instantiated")

	// ErrIllegalAccess reports that a type or its zero-parameter constructor is not
	// accessible to reflective instantiation.
	ErrIllegalAccess = errors.New("type or constructor is not accessible")

	ErrClassNotFound     = errors.New("class not found")
	ErrDuplicateClass    = errors.New("duplicate class definition")
	ErrLinkage           = errors.New("class linkage failed")
	ErrNoSuchField       = errors.New("no such field")
	ErrNoSuchMethod      = errors.New("no such method")
	ErrAbstractMethod    = errors.New("abstract method invoked")
	ErrUnsatisfiedLink   = errors.New("native method is not bound")
	ErrIllegalArgument   = errors.New("illegal argument")
	ErrArithmetic        = errors.New("arithmetic exception")
	ErrNullPointer       = errors.New("null pointer")
	ErrClassCast         = errors.New("class cast")
	ErrIndexOutOfBounds  = errors.New("index out of bounds")
	ErrNumberFormat      = errors.New("number format")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrInitializerFailed = errors.New("class initialization failed")
	ErrLoaderClosed      = errors.New("loader is closed")
)
