package classbody

import (
	"context"
	"io"

	"github.com/robbyt/go-classbody/compiler/parser"
	"github.com/robbyt/go-classbody/compiler/scanner"
	"github.com/robbyt/go-classbody/options"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/platform/script/loader"
)

// SimpleCompiler compiles a complete compilation unit and defines its classes into a
// child of the parent loader, available through Loader after cooking. It is the usual way
// to declare the interfaces and base classes a class body is compiled against.
type SimpleCompiler struct {
	cookable
}

// NewSimpleCompiler creates a compiler with the given options.
func NewSimpleCompiler(opts ...options.Option) (*SimpleCompiler, error) {
	c, err := newCookable("SimpleCompiler", opts)
	if err != nil {
		return nil, err
	}
	return &SimpleCompiler{cookable: c}, nil
}

func (c *SimpleCompiler) String() string {
	return "classbody.SimpleCompiler"
}

// Cook parses a compilation unit from src and compiles it with the configured debugging
// information.
func (c *SimpleCompiler) Cook(ctx context.Context, src *scanner.Scanner) error {
	logger := c.logger.WithGroup("cook")
	if err := c.startCooking(); err != nil {
		return err
	}
	if src == nil {
		return diag.InvalidArgumentf("token source is nil")
	}
	unit, err := parser.New(src).ParseCompilationUnit()
	if err != nil {
		return err
	}
	l, err := c.compileToLoader(ctx, unit, c.cfg.GetDebug())
	if err != nil {
		logger.Warn("cook failed", "origin", src.Origin(), "error", err)
		return err
	}
	logger.Debug("unit compiled", "origin", src.Origin(), "types", len(unit.Types), "loader", l.ID())
	return nil
}

// CookString cooks a compilation unit given as text.
func (c *SimpleCompiler) CookString(ctx context.Context, text string) error {
	return c.Cook(ctx, scanner.FromString(text, ""))
}

// CookReader cooks a compilation unit read from r. origin labels error locations.
func (c *SimpleCompiler) CookReader(ctx context.Context, origin string, r io.Reader) error {
	s, err := scannerFromReader(origin, r)
	if err != nil {
		return err
	}
	return c.Cook(ctx, s)
}

// CookLoader cooks a compilation unit provided by l, labelled with its source URL.
func (c *SimpleCompiler) CookLoader(ctx context.Context, l loader.Loader) error {
	s, err := scannerFromLoader(l)
	if err != nil {
		return err
	}
	return c.Cook(ctx, s)
}
