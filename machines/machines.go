// Package machines dispatches code generation and class definition to the machine
// selected for a compilation.
package machines

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/check"
	"github.com/robbyt/go-classbody/internal/helpers"
	"github.com/robbyt/go-classbody/machines/starlark"
	"github.com/robbyt/go-classbody/machines/types"
	"github.com/robbyt/go-classbody/machines/wasm"
	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

// Machine generates class files from checked units and defines their classes.
type Machine interface {
	Name() string
	Generate(unit *ast.CompilationUnit, info *check.Info, debug classfile.DebugFlags) (*classfile.File, error)
	Define(ctx context.Context, f *classfile.File, loader *runtime.Loader) ([]*runtime.Class, error)
}

type closer interface {
	Close(ctx context.Context) error
}

// New creates the machine of type t. A nil handler selects the default log handler.
func New(handler slog.Handler, t types.Type) (Machine, error) {
	handler, _ = helpers.SetupLogger(handler, "machines", "")
	switch t {
	case types.Starlark, "":
		m, err := starlark.New(starlark.WithLogHandler(handler))
		if err != nil {
			return nil, err
		}
		return m, nil
	case types.WASM:
		m, err := wasm.New(wasm.WithLogHandler(handler))
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, diag.InvalidArgumentf("unsupported machine type: %s", t)
	}
}

// Generate translates a checked unit into encoded class-file bytes for machine t.
func Generate(
	ctx context.Context,
	handler slog.Handler,
	unit *ast.CompilationUnit,
	info *check.Info,
	debug classfile.DebugFlags,
	t types.Type,
) ([]byte, error) {
	handler, logger := helpers.SetupLogger(handler, "machines", "Generate")
	m, err := New(handler, t)
	if err != nil {
		return nil, err
	}
	if c, ok := m.(closer); ok {
		defer func() {
			if err := c.Close(ctx); err != nil {
				logger.Warn("failed to close machine", "machine", m.Name(), "error", err)
			}
		}()
	}
	f, err := m.Generate(unit, info, debug)
	if err != nil {
		return nil, err
	}
	b, err := classfile.Marshal(f)
	if err != nil {
		return nil, diag.Wrap(diag.KindInternal, err, nil, "failed to encode class file")
	}
	logger.DebugContext(ctx, "class file generated",
		"machine", m.Name(), "classes", len(f.Classes), "size", len(b), "digest", helpers.Digest12(b))
	return b, nil
}

// Define decodes class-file bytes and defines their classes into loader with the machine
// named in the file. Resources the machine keeps for the classes are released when the
// loader is closed.
func Define(ctx context.Context, handler slog.Handler, b []byte, loader *runtime.Loader) ([]*runtime.Class, error) {
	if loader == nil {
		return nil, diag.InvalidArgumentf("loader is required")
	}
	f, err := classfile.Unmarshal(b)
	if err != nil {
		return nil, diag.Wrap(diag.KindInternal, err, nil, "failed to decode class file")
	}
	t, err := types.Parse(f.Machine)
	if err != nil {
		return nil, diag.Wrap(diag.KindInvalidArgument, err, nil, "class file machine")
	}
	m, err := New(handler, t)
	if err != nil {
		return nil, err
	}
	if c, ok := m.(closer); ok {
		// Registered first so that it runs after the closers the machine adds.
		loader.AddCloser(c.Close)
	}
	return m.Define(ctx, f, loader)
}

// Names returns the names of the classes a class file declares.
func Names(b []byte) ([]string, error) {
	f, err := classfile.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to decode class file: %w", err)
	}
	names := make([]string, len(f.Classes))
	for i, c := range f.Classes {
		names[i] = c.Name
	}
	return names, nil
}
