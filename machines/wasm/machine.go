// Package wasm compiles checked compilation units to WebAssembly, one module per class,
// and runs them on wazero. Only primitive values are supported; fields, calls and integer
// division are served by host functions bound to the runtime loader.
package wasm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
)

// Machine is the WebAssembly code generator and definer.
type Machine struct {
	logHandler    slog.Handler
	logger        *slog.Logger
	runtimeConfig wazero.RuntimeConfig
	cache         wazero.CompilationCache
}

// New creates a Machine with the given options.
func New(opts ...FunctionalOption) (*Machine, error) {
	m := &Machine{}
	m.applyDefaults()
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("error applying machine option: %w", err)
		}
	}
	m.setupLogger()
	return m, nil
}

func (m *Machine) String() string {
	return "wasm.Machine"
}

// Name returns the machine identifier written into class files.
func (m *Machine) Name() string {
	return Name
}

// Close releases the compilation cache shared by the runtimes of defined classes.
func (m *Machine) Close(ctx context.Context) error {
	return m.cache.Close(ctx)
}
