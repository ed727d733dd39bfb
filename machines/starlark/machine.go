// Package starlark generates Starlark programs from checked compilation units and defines
// the classes of such programs into a runtime loader. Method bodies run as Starlark
// functions; field access, calls and the arithmetic Starlark lacks are delegated to
// predeclared bridge functions.
package starlark

import (
	"fmt"
	"log/slog"
)

// Machine is the Starlark code generator and definer.
type Machine struct {
	logHandler slog.Handler
	logger     *slog.Logger
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
	return "starlark.Machine"
}

// Name returns the machine identifier written into class files.
func (m *Machine) Name() string {
	return Name
}
