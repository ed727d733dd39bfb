package extism

import "errors"

var (
	ErrContentNil     = errors.New("wasm content is nil")
	ErrPluginNil      = errors.New("compiled plugin is nil")
	ErrCompileFailed  = errors.New("failed to compile plugin")
	ErrCallFailed     = errors.New("plugin call failed")
	ErrUnsupportedArg = errors.New("value cannot be passed to a plugin")
	ErrBadResult      = errors.New("plugin returned an unusable result")
)
