package classbody

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/compiler/check"
	"github.com/robbyt/go-classbody/compiler/scanner"
	"github.com/robbyt/go-classbody/internal/helpers"
	"github.com/robbyt/go-classbody/machines"
	"github.com/robbyt/go-classbody/machines/types"
	"github.com/robbyt/go-classbody/options"
	"github.com/robbyt/go-classbody/platform/classfile"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/platform/script/loader"
	"github.com/robbyt/go-classbody/runtime"
)

// cookable holds the settings and lifecycle state shared by the compilers. A compiler
// cooks at most once; every setter fails once cooking has started.
type cookable struct {
	cfg        *options.Config
	logHandler slog.Handler
	logger     *slog.Logger

	cooked bool
	loader *runtime.Loader
}

func newCookable(group string, opts []options.Option) (cookable, error) {
	cfg, err := options.New(opts...)
	if err != nil {
		return cookable{}, diag.Wrap(diag.KindInvalidArgument, err, nil, "invalid options")
	}
	handler, logger := helpers.SetupLogger(cfg.GetHandler(), "classbody", group)
	return cookable{cfg: cfg, logHandler: handler, logger: logger}, nil
}

func (c *cookable) assertNotCooked() error {
	if c.cooked {
		return diag.IllegalStatef("already cooked")
	}
	return nil
}

// startCooking moves the compiler to the cooked state. A failed cook leaves it there.
func (c *cookable) startCooking() error {
	if err := c.assertNotCooked(); err != nil {
		return err
	}
	c.cooked = true
	return nil
}

// SetParentLoader sets the loader the compiled classes are defined under. nil selects the
// System loader.
func (c *cookable) SetParentLoader(parent *runtime.Loader) error {
	if err := c.assertNotCooked(); err != nil {
		return err
	}
	c.cfg.SetParentLoader(parent)
	return nil
}

// SetMachine selects the machine that generates and runs the compiled classes.
func (c *cookable) SetMachine(t types.Type) error {
	if err := c.assertNotCooked(); err != nil {
		return err
	}
	if _, err := types.Parse(string(t)); err != nil {
		return diag.Wrap(diag.KindInvalidArgument, err, nil, "invalid machine")
	}
	c.cfg.SetMachineType(t)
	return nil
}

// SetDebuggingInformation sets the debugging information kept in generated class files.
// It applies to SimpleCompiler; a ClassBodyEvaluator always keeps all debugging
// information, so the setting only takes part in the lifecycle check there.
func (c *cookable) SetDebuggingInformation(debug classfile.DebugFlags) error {
	if err := c.assertNotCooked(); err != nil {
		return err
	}
	c.cfg.SetDebug(debug)
	return nil
}

// Loader returns the loader the compiled classes were defined in, or nil before a
// successful cook.
func (c *cookable) Loader() *runtime.Loader {
	return c.loader
}

// Close releases the resources held by the compiled classes.
func (c *cookable) Close(ctx context.Context) error {
	if c.loader == nil {
		return nil
	}
	return c.loader.Close(ctx)
}

// compileToLoader checks unit, generates its classes for the configured machine and
// defines them into a new child of the parent loader. Nothing is defined on failure.
func (c *cookable) compileToLoader(
	ctx context.Context,
	unit *ast.CompilationUnit,
	debug classfile.DebugFlags,
) (*runtime.Loader, error) {
	logger := c.logger.WithGroup("compile")
	parent := c.cfg.GetParentLoader()

	info, err := check.Check(ctx, unit, parent, check.WithLogHandler(c.logHandler))
	if err != nil {
		return nil, err
	}
	code, err := machines.Generate(ctx, c.logHandler, unit, info, debug, c.cfg.GetMachineType())
	if err != nil {
		return nil, err
	}
	logger.Debug("unit generated", "origin", unit.Origin, "machine", c.cfg.GetMachineType(), "size", len(code))

	loaderOpts := []runtime.LoaderOption{runtime.WithLogHandler(c.logHandler)}
	if r := c.cfg.GetNativeResolver(); r != nil {
		loaderOpts = append(loaderOpts, runtime.WithNativeResolver(r))
	}
	l := runtime.NewLoader(parent, loaderOpts...)
	classes, err := machines.Define(ctx, c.logHandler, code, l)
	if err != nil {
		if cerr := l.Close(ctx); cerr != nil {
			logger.Warn("failed to close loader", "error", cerr)
		}
		return nil, err
	}
	logger.Debug("classes defined", "count", len(classes), "loader", l.ID())
	c.loader = l
	return l, nil
}

func scannerFromReader(origin string, r io.Reader) (*scanner.Scanner, error) {
	s, err := scanner.New(origin, r)
	if err != nil {
		if errors.Is(err, diag.ErrInvalidArgument) {
			return nil, err
		}
		return nil, diag.Wrap(diag.KindInvalidArgument, err, nil, "cannot read source")
	}
	return s, nil
}

func scannerFromLoader(l loader.Loader) (*scanner.Scanner, error) {
	s, err := scanner.FromLoader(l)
	if err != nil {
		if errors.Is(err, diag.ErrInvalidArgument) {
			return nil, err
		}
		return nil, diag.Wrap(diag.KindInvalidArgument, err, nil, "cannot read source")
	}
	return s, nil
}
