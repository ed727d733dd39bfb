package wasm

import "errors"

var (
	ErrModuleNil        = errors.New("wasm module is nil")
	ErrEntryNotFound    = errors.New("wasm entry point not found")
	ErrNamesMissing     = errors.New("wasm name table missing")
	ErrTrap             = errors.New("wasm trap")
	ErrUnsupportedValue = errors.New("unsupported wasm value")
)
