// Package types names the machines that can generate and execute class files.
package types

import (
	"fmt"
	"strings"
)

// Type identifies a machine. The zero value selects Default.
type Type string

const (
	// Starlark compiles classes to Starlark bytecode: https://github.com/google/starlark-go
	Starlark Type = "starlark"
	// WASM compiles classes to WebAssembly modules run by wazero: https://wazero.io/
	WASM Type = "wasm"

	Default = Starlark
)

// Types lists the supported machines.
var Types = []Type{Starlark, WASM}

func (t Type) String() string {
	if t == "" {
		return string(Default)
	}
	return string(t)
}

// Parse returns the machine named s, ignoring case. The empty string is Default.
func Parse(s string) (Type, error) {
	if s == "" {
		return Default, nil
	}
	for _, t := range Types {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown machine type %q", s)
}
