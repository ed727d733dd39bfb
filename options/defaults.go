package options

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/robbyt/go-classbody/machines/types"
	"github.com/robbyt/go-classbody/platform/classfile"
)

// DefaultConfig initializes a Config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetMachineType(types.Default)
	cfg.SetHandler(DefaultHandler())
	cfg.SetDebug(DefaultDebug)
	return cfg
}

// DefaultDebug keeps source names and line numbers, which is enough for error locations.
const DefaultDebug = classfile.DebugSource | classfile.DebugLines

// DefaultHandler returns the default logging handler
func DefaultHandler() slog.Handler {
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
}

// WithDefaults applies default values to any config properties that are unset
func WithDefaults() Option {
	return func(c *Config) error {
		if c.handler == nil {
			c.handler = DefaultHandler()
		}
		if c.machineType == "" {
			c.machineType = types.Default
		}
		return nil
	}
}

// New applies opts over DefaultConfig, fills in defaults and validates the result.
func New(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("error applying option: %w", err)
		}
	}
	if err := WithDefaults()(cfg); err != nil {
		return nil, fmt.Errorf("error applying defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
