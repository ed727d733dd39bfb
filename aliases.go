package classbody

import (
	"github.com/robbyt/go-classbody/machines/types"
	"github.com/robbyt/go-classbody/options"
	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/platform/diag"
)

type Option = options.Option

// MachineType names the machine that generates and runs compiled classes.
type MachineType = types.Type

var (
	WithLogHandler     = options.WithLogHandler
	WithLogger         = options.WithLogger
	WithMachine        = options.WithMachine
	WithParentLoader   = options.WithParentLoader
	WithDebug          = options.WithDebug
	WithNativeResolver = options.WithNativeResolver
)

// Error categories of the compiler. Every error returned by this package matches one of
// them through errors.Is.
var (
	ErrSyntax          = diag.ErrSyntax
	ErrCompile         = diag.ErrCompile
	ErrInvalidArgument = diag.ErrInvalidArgument
	ErrIllegalState    = diag.ErrIllegalState
	ErrInternal        = diag.ErrInternal
)

const (
	Starlark = types.Starlark
	WASM     = types.WASM
)

const (
	DebugSource = classfile.DebugSource
	DebugLines  = classfile.DebugLines
	DebugVars   = classfile.DebugVars
	DebugAll    = classfile.DebugAll
)
