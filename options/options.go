// Package options holds the configuration shared by the compilers of this module.
package options

import (
	"fmt"
	"log/slog"

	"github.com/robbyt/go-classbody/machines/types"
	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/runtime"
)

// Config holds the settings a compiler is created with.
type Config struct {
	// Handler for log output
	handler slog.Handler
	// Machine that generates and runs the classes (starlark, wasm)
	machineType types.Type
	// Loader the compiled classes are defined under; nil selects the System loader
	parent *runtime.Loader
	// Debugging information kept in generated class files
	debug classfile.DebugFlags
	// Binds native methods of the compiled classes
	natives runtime.NativeResolver
}

// Option is a function that modifies Config
type Option func(*Config) error

// WithLogHandler sets the log handler. A nil handler keeps the current one.
func WithLogHandler(handler slog.Handler) Option {
	return func(c *Config) error {
		if handler != nil {
			c.handler = handler
		}
		return nil
	}
}

// WithLogger sets the log handler to the handler of logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.handler = logger.Handler()
		return nil
	}
}

// WithMachine selects the machine by type.
func WithMachine(machineType types.Type) Option {
	return func(c *Config) error {
		if _, err := types.Parse(string(machineType)); err != nil {
			return err
		}
		c.machineType = machineType
		return nil
	}
}

// WithParentLoader sets the loader the compiled classes are defined under.
func WithParentLoader(parent *runtime.Loader) Option {
	return func(c *Config) error {
		c.parent = parent
		return nil
	}
}

// WithDebug sets the debugging information kept in class files compiled by a
// SimpleCompiler. Class bodies always keep all of it.
func WithDebug(debug classfile.DebugFlags) Option {
	return func(c *Config) error {
		c.debug = debug
		return nil
	}
}

// WithNativeResolver binds native methods of the compiled classes through r.
func WithNativeResolver(r runtime.NativeResolver) Option {
	return func(c *Config) error {
		if r == nil {
			return fmt.Errorf("native resolver cannot be nil")
		}
		c.natives = r
		return nil
	}
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if c.handler == nil {
		return fmt.Errorf("no log handler specified")
	}
	if _, err := types.Parse(string(c.machineType)); err != nil {
		return err
	}
	return nil
}

// GetHandler returns the configured log handler
func (c *Config) GetHandler() slog.Handler {
	return c.handler
}

// SetHandler sets the log handler
func (c *Config) SetHandler(handler slog.Handler) {
	c.handler = handler
}

// GetMachineType returns the configured machine type
func (c *Config) GetMachineType() types.Type {
	return c.machineType
}

// SetMachineType sets the machine type
func (c *Config) SetMachineType(machineType types.Type) {
	c.machineType = machineType
}

// GetParentLoader returns the configured parent loader, nil for the System loader
func (c *Config) GetParentLoader() *runtime.Loader {
	return c.parent
}

// SetParentLoader sets the parent loader
func (c *Config) SetParentLoader(parent *runtime.Loader) {
	c.parent = parent
}

// GetDebug returns the configured debugging information
func (c *Config) GetDebug() classfile.DebugFlags {
	return c.debug
}

// SetDebug sets the debugging information
func (c *Config) SetDebug(debug classfile.DebugFlags) {
	c.debug = debug
}

// GetNativeResolver returns the configured native resolver, if any
func (c *Config) GetNativeResolver() runtime.NativeResolver {
	return c.natives
}
