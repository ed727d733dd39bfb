package extism

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tetratelabs/wazero"

	"github.com/robbyt/go-classbody/internal/helpers"
	"github.com/robbyt/go-classbody/runtime"
)

// FunctionalOption is a function that configures a Resolver instance
type FunctionalOption func(*Resolver) error

// WithLogHandler creates an option to set the log handler for the resolver.
func WithLogHandler(handler slog.Handler) FunctionalOption {
	return func(r *Resolver) error {
		if handler == nil {
			return fmt.Errorf("log handler cannot be nil")
		}
		r.logHandler = handler
		r.logger = nil
		return nil
	}
}

// WithLogger creates an option to set a specific logger for the resolver.
func WithLogger(logger *slog.Logger) FunctionalOption {
	return func(r *Resolver) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger
		r.logHandler = nil
		return nil
	}
}

// WithWASIEnabled enables or disables WASI for the plugin compiled by New.
func WithWASIEnabled(enabled bool) FunctionalOption {
	return func(r *Resolver) error {
		r.enableWASI = enabled
		return nil
	}
}

// WithRuntimeConfig sets the wazero runtime configuration used to compile the plugin.
func WithRuntimeConfig(rc wazero.RuntimeConfig) FunctionalOption {
	return func(r *Resolver) error {
		if rc == nil {
			return fmt.Errorf("runtime config cannot be nil")
		}
		r.runtimeConfig = rc
		return nil
	}
}

// WithFunctionName sets how a native method maps to the plugin function it calls. The
// default is the method name.
func WithFunctionName(fn func(m *runtime.Method) string) FunctionalOption {
	return func(r *Resolver) error {
		if fn == nil {
			return fmt.Errorf("function name mapper cannot be nil")
		}
		r.functionName = fn
		return nil
	}
}

// QualifiedName maps a method to "<class>_<method>", with the dots of the class name
// replaced by underscores.
func QualifiedName(m *runtime.Method) string {
	return strings.ReplaceAll(m.Owner.Name(), ".", "_") + "_" + m.Name
}

func methodName(m *runtime.Method) string {
	return m.Name
}

func (r *Resolver) setupLogger() {
	if r.logger != nil {
		r.logHandler = r.logger.Handler()
	} else {
		r.logHandler, r.logger = helpers.SetupLogger(r.logHandler, "extism", "Resolver")
	}
}

func (r *Resolver) applyDefaults() {
	if r.logHandler == nil && r.logger == nil {
		r.logHandler = slog.NewTextHandler(os.Stderr, nil)
	}
	r.enableWASI = true
	r.runtimeConfig = wazero.NewRuntimeConfig()
	r.functionName = methodName
}
