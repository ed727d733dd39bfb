package starlark

import "errors"

var (
	ErrProgramNil       = errors.New("starlark program is nil")
	ErrGenerationFailed = errors.New("starlark generation failed")
	ErrEntryNotFound    = errors.New("starlark entry point not found")
	ErrUnsupportedValue = errors.New("unsupported starlark value")
)
