// Package diag holds the error taxonomy shared by every stage of the cook pipeline.
//
// Every failure surfaced by the compiler is a *Error carrying one Kind. The kind sentinels
// (ErrSyntax, ErrCompile, ...) match through errors.Is, and so does the chained cause, which
// lets callers test for the category and for the root cause of the same error value.
package diag

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax          = errors.New("syntax error")
	ErrCompile         = errors.New("compile error")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrIllegalState    = errors.New("illegal state")
	ErrInternal        = errors.New("internal compiler error")
)

// Kind classifies an Error.
type Kind int

const (
	KindSyntax Kind = iota + 1
	KindCompile
	KindInvalidArgument
	KindIllegalState
	KindInternal
)

func (k Kind) String() string {
	return k.sentinel().Error()
}

func (k Kind) sentinel() error {
	switch k {
	case KindSyntax:
		return ErrSyntax
	case KindCompile:
		return ErrCompile
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindIllegalState:
		return ErrIllegalState
	default:
		return ErrInternal
	}
}

// Error is a categorized compiler failure with an optional source location and cause.
type Error struct {
	Kind  Kind
	Msg   string
	Loc   *Location
	Cause error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Loc != nil {
		msg = e.Loc.String() + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Cause}
}

// New creates an Error of the given kind.
func New(kind Kind, loc *Location, format string, args ...any) *Error {
	return &Error{Kind: kind, Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind chaining cause.
func Wrap(kind Kind, cause error, loc *Location, format string, args ...any) *Error {
	return &Error{Kind: kind, Loc: loc, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

func Syntaxf(loc *Location, format string, args ...any) *Error {
	return New(KindSyntax, loc, format, args...)
}

func Compilef(loc *Location, format string, args ...any) *Error {
	return New(KindCompile, loc, format, args...)
}

func InvalidArgumentf(format string, args ...any) *Error {
	return New(KindInvalidArgument, nil, format, args...)
}

func IllegalStatef(format string, args ...any) *Error {
	return New(KindIllegalState, nil, format, args...)
}

func Internalf(format string, args ...any) *Error {
	return New(KindInternal, nil, format, args...)
}

// KindOf reports the kind of the first *Error in err's chain, or 0 if there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
