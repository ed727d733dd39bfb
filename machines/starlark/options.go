package starlark

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/robbyt/go-classbody/internal/helpers"
)

// FunctionalOption is a function that configures a Machine instance
type FunctionalOption func(*Machine) error

// WithLogHandler creates an option to set the log handler for the Starlark machine.
func WithLogHandler(handler slog.Handler) FunctionalOption {
	return func(m *Machine) error {
		if handler == nil {
			return fmt.Errorf("log handler cannot be nil")
		}
		m.logHandler = handler
		m.logger = nil
		return nil
	}
}

// WithLogger creates an option to set a specific logger for the Starlark machine.
func WithLogger(logger *slog.Logger) FunctionalOption {
	return func(m *Machine) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		m.logger = logger
		m.logHandler = nil
		return nil
	}
}

// setupLogger configures the logger and handler based on the current state.
func (m *Machine) setupLogger() {
	if m.logger != nil {
		m.logHandler = m.logger.Handler()
	} else {
		m.logHandler, m.logger = helpers.SetupLogger(m.logHandler, "starlark", "Machine")
	}
}

func (m *Machine) applyDefaults() {
	if m.logHandler == nil && m.logger == nil {
		m.logHandler = slog.NewTextHandler(os.Stderr, nil)
	}
}
