package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/robbyt/go-classbody/internal/helpers"
)

// FieldDef describes a field by type name.
type FieldDef struct {
	Name string
	Type string
	Mods Modifiers
}

// MethodDef describes a method by type names. Impl is nil for abstract methods and for
// native methods that the loader's NativeResolver binds.
type MethodDef struct {
	Name       string
	Params     []string
	ParamNames []string
	Return     string
	Mods       Modifiers
	Line       int
	Impl       Invoker
}

// ConstructorDef describes a constructor. A nil Impl is an empty body.
type ConstructorDef struct {
	Params     []string
	ParamNames []string
	Mods       Modifiers
	Impl       Invoker
}

// ClassDef is the name-based description of a class handed to DefineClasses. Type names
// are resolved against the other definitions of the same call first, then through the
// loader chain.
type ClassDef struct {
	Name string
	// Mods carries Interface for interfaces.
	Mods Modifiers
	// Super is the superclass name; "" means lang.Object for classes.
	Super        string
	Interfaces   []string
	Fields       []FieldDef
	Methods      []MethodDef
	Constructors []ConstructorDef
	StaticInit   Invoker
	InstanceInit Invoker
	Source       string
}

// Loader is a namespace of classes with parent-first delegation. Lookups are safe for
// concurrent use.
type Loader struct {
	id      string
	parent  *Loader
	logger  *slog.Logger
	natives NativeResolver

	defineMu sync.Mutex

	mu      sync.RWMutex
	classes map[string]*Class
	closers []func(context.Context) error
	closed  bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithNativeResolver binds native methods of classes defined in the loader or its
// descendants.
func WithNativeResolver(r NativeResolver) LoaderOption {
	return func(l *Loader) {
		l.natives = r
	}
}

// WithLogHandler sets the handler used for the loader's diagnostics.
func WithLogHandler(h slog.Handler) LoaderOption {
	return func(l *Loader) {
		_, l.logger = helpers.SetupLogger(h, "runtime", "Loader")
	}
}

// NewLoader creates a loader delegating to parent, or to the System loader when parent is
// nil.
func NewLoader(parent *Loader, opts ...LoaderOption) *Loader {
	if parent == nil {
		parent = System()
	}
	l := newLoader(parent)
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = parent.logger
	}
	l.logger = l.logger.With("loader", l.id)
	return l
}

func newLoader(parent *Loader) *Loader {
	return &Loader{
		id:      uuid.NewString(),
		parent:  parent,
		classes: make(map[string]*Class),
	}
}

func (l *Loader) String() string {
	return fmt.Sprintf("runtime.Loader{ID: %s}", l.id)
}

// ID returns the loader's unique identifier.
func (l *Loader) ID() string {
	return l.id
}

// Parent returns the delegation parent, nil for the System loader.
func (l *Loader) Parent() *Loader {
	return l.parent
}

func (l *Loader) findLocal(name string) *Class {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.classes[name]
}

// LoadClass returns the class named name, asking the parent first.
func (l *Loader) LoadClass(name string) (*Class, error) {
	if l.parent != nil {
		if c, err := l.parent.LoadClass(name); err == nil {
			return c, nil
		}
	}
	if c := l.findLocal(name); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
}

// ResolveType returns the primitive or class type spelled name.
func (l *Loader) ResolveType(name string) (Type, error) {
	if p, ok := PrimitiveByName(name); ok {
		return p, nil
	}
	return l.LoadClass(name)
}

// ClassNames returns the names of the classes defined by this loader itself, sorted.
func (l *Loader) ClassNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.classes))
}

// AddCloser registers fn to run when the loader is closed. Closers run in reverse order.
func (l *Loader) AddCloser(fn func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closers = append(l.closers, fn)
}

// Close releases resources held for the loader's classes. It is idempotent.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	closers := l.closers
	l.closers = nil
	l.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Loader) nativeResolver() NativeResolver {
	for k := l; k != nil; k = k.parent {
		if k.natives != nil {
			return k.natives
		}
	}
	return nil
}

// DefineClasses links defs and adds them to the loader. Either all classes are defined or
// none is. The returned classes are in the order of defs.
func (l *Loader) DefineClasses(ctx context.Context, defs ...*ClassDef) ([]*Class, error) {
	l.defineMu.Lock()
	defer l.defineMu.Unlock()

	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return nil, ErrLoaderClosed
	}

	lk := &linker{loader: l, batch: make(map[string]*Class, len(defs))}
	classes, err := lk.link(ctx, defs)
	if err != nil {
		l.logger.Debug("class definition failed", "error", err)
		return nil, err
	}

	l.mu.Lock()
	for _, c := range classes {
		l.classes[c.name] = c
	}
	l.mu.Unlock()

	l.logger.Debug("classes defined", "names", lk.names)
	return classes, nil
}

// linker holds the state of one DefineClasses call.
type linker struct {
	loader *Loader
	batch  map[string]*Class
	names  []string
}

func (lk *linker) resolve(name string) (Type, error) {
	if p, ok := PrimitiveByName(name); ok {
		return p, nil
	}
	if c, ok := lk.batch[name]; ok {
		return c, nil
	}
	if c := lk.loader.findLocal(name); c != nil {
		return c, nil
	}
	if lk.loader.parent != nil {
		return lk.loader.parent.LoadClass(name)
	}
	return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
}

func (lk *linker) resolveClass(name string) (*Class, error) {
	t, err := lk.resolve(name)
	if err != nil {
		return nil, err
	}
	c, ok := t.(*Class)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a class", ErrLinkage, name)
	}
	return c, nil
}

func (lk *linker) resolveAll(names []string) ([]Type, error) {
	types := make([]Type, len(names))
	for i, n := range names {
		t, err := lk.resolve(n)
		if err != nil {
			return nil, err
		}
		if t == Void {
			return nil, fmt.Errorf("%w: void is not a value type", ErrLinkage)
		}
		types[i] = t
	}
	return types, nil
}

func (lk *linker) link(ctx context.Context, defs []*ClassDef) ([]*Class, error) {
	l := lk.loader
	classes := make([]*Class, len(defs))

	// Shells first, so that definitions may refer to each other.
	for i, d := range defs {
		if d == nil || d.Name == "" {
			return nil, fmt.Errorf("%w: class definition without a name", ErrLinkage)
		}
		if _, dup := lk.batch[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClass, d.Name)
		}
		if _, err := l.LoadClass(d.Name); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClass, d.Name)
		}
		c := &Class{
			name:   d.Name,
			mods:   d.Mods,
			loader: l,
			source: d.Source,
		}
		lk.batch[d.Name] = c
		lk.names = append(lk.names, d.Name)
		classes[i] = c
	}

	for i, d := range defs {
		if err := lk.linkSupertypes(classes[i], d); err != nil {
			return nil, err
		}
	}
	for _, c := range classes {
		seen := map[*Class]bool{}
		for k := c; k != nil; k = k.super {
			if seen[k] {
				return nil, fmt.Errorf("%w: circular superclass chain through %s", ErrLinkage, c.name)
			}
			seen[k] = true
		}
		if err := checkInterfaceCycle(c, map[*Class]bool{}); err != nil {
			return nil, err
		}
	}

	for i, d := range defs {
		if err := lk.linkMembers(classes[i], d); err != nil {
			return nil, err
		}
	}

	laidOut := map[*Class]bool{}
	for _, c := range classes {
		lk.layout(c, laidOut)
	}
	for _, c := range classes {
		c.abstract = computeAbstract(c)
	}

	if r := l.nativeResolver(); r != nil {
		for _, c := range classes {
			for _, m := range c.methods {
				if !m.IsNative() || m.impl != nil {
					continue
				}
				inv, err := r.Resolve(ctx, m)
				if err != nil {
					return nil, fmt.Errorf("%w: binding %s: %w", ErrUnsatisfiedLink, m, err)
				}
				m.impl = inv
			}
		}
	}
	return classes, nil
}

func checkInterfaceCycle(c *Class, path map[*Class]bool) error {
	if path[c] {
		return fmt.Errorf("%w: circular interface hierarchy through %s", ErrLinkage, c.name)
	}
	path[c] = true
	defer delete(path, c)
	for _, i := range c.interfaces {
		if err := checkInterfaceCycle(i, path); err != nil {
			return err
		}
	}
	return nil
}

func (lk *linker) linkSupertypes(c *Class, d *ClassDef) error {
	switch {
	case c.IsInterface():
		if d.Super != "" {
			return fmt.Errorf("%w: interface %s cannot have a superclass", ErrLinkage, c.name)
		}
		c.mods |= Abstract
	case d.Super != "":
		sc, err := lk.resolveClass(d.Super)
		if err != nil {
			return fmt.Errorf("superclass of %s: %w", c.name, err)
		}
		if sc.IsInterface() {
			return fmt.Errorf("%w: %s cannot extend interface %s", ErrLinkage, c.name, sc.name)
		}
		if sc.IsFinal() {
			return fmt.Errorf("%w: %s cannot extend final class %s", ErrLinkage, c.name, sc.name)
		}
		c.super = sc
	case !(lk.loader.parent == nil && c.name == ObjectClassName):
		sc, err := lk.resolveClass(ObjectClassName)
		if err != nil {
			return err
		}
		c.super = sc
	}

	for _, name := range d.Interfaces {
		ic, err := lk.resolveClass(name)
		if err != nil {
			return fmt.Errorf("interface of %s: %w", c.name, err)
		}
		if !ic.IsInterface() {
			return fmt.Errorf("%w: %s is not an interface", ErrLinkage, ic.name)
		}
		c.interfaces = append(c.interfaces, ic)
	}
	return nil
}

func (lk *linker) linkMembers(c *Class, d *ClassDef) error {
	iface := c.IsInterface()

	for _, fd := range d.Fields {
		if c.DeclaredField(fd.Name) != nil {
			return fmt.Errorf("%w: duplicate field %s.%s", ErrLinkage, c.name, fd.Name)
		}
		t, err := lk.resolve(fd.Type)
		if err != nil {
			return fmt.Errorf("field %s.%s: %w", c.name, fd.Name, err)
		}
		if t == Void {
			return fmt.Errorf("%w: field %s.%s has type void", ErrLinkage, c.name, fd.Name)
		}
		mods := fd.Mods
		if iface {
			mods |= Public | Static | Final
		}
		c.fields = append(c.fields, &Field{Name: fd.Name, Type: t, Mods: mods, Owner: c})
	}

	for _, md := range d.Methods {
		if c.DeclaredMethod(md.Name) != nil {
			return fmt.Errorf("%w: duplicate method %s.%s", ErrLinkage, c.name, md.Name)
		}
		params, err := lk.resolveAll(md.Params)
		if err != nil {
			return fmt.Errorf("method %s.%s: %w", c.name, md.Name, err)
		}
		ret, err := lk.resolve(md.Return)
		if err != nil {
			return fmt.Errorf("method %s.%s: %w", c.name, md.Name, err)
		}
		mods := md.Mods
		if iface && !mods.Has(Static) {
			mods |= Public
			if md.Impl == nil {
				mods |= Abstract
			}
		}
		if md.Impl == nil && !mods.Has(Native) {
			mods |= Abstract
		}
		c.methods = append(c.methods, &Method{
			Name:       md.Name,
			Owner:      c,
			Params:     params,
			ParamNames: md.ParamNames,
			Return:     ret,
			Mods:       mods,
			Line:       md.Line,
			impl:       md.Impl,
		})
	}

	for _, cd := range d.Constructors {
		if iface {
			return fmt.Errorf("%w: interface %s cannot declare constructors", ErrLinkage, c.name)
		}
		params, err := lk.resolveAll(cd.Params)
		if err != nil {
			return fmt.Errorf("constructor of %s: %w", c.name, err)
		}
		if c.ConstructorFor(len(params)) != nil {
			return fmt.Errorf("%w: %s declares two constructors with %d parameters", ErrLinkage, c.name, len(params))
		}
		c.ctors = append(c.ctors, &Constructor{
			Owner:      c,
			Params:     params,
			ParamNames: cd.ParamNames,
			Mods:       cd.Mods,
			impl:       cd.Impl,
		})
	}

	c.staticInit = d.StaticInit
	c.instanceInit = d.InstanceInit
	return nil
}

// layout assigns instance slots after those of the superclass and static slots per class.
func (lk *linker) layout(c *Class, done map[*Class]bool) {
	if done[c] || c.loader != lk.loader || lk.batch[c.name] != c {
		return
	}
	done[c] = true
	base := 0
	if c.super != nil {
		lk.layout(c.super, done)
		base = c.super.slotCount
	}
	var statics []Value
	for _, f := range c.fields {
		if f.IsStatic() {
			f.Slot = len(statics)
			statics = append(statics, ZeroValue(f.Type))
			continue
		}
		f.Slot = base
		base++
		c.instance = append(c.instance, f)
	}
	c.slotCount = base
	c.staticSlots = statics
}

// computeAbstract reports whether c cannot be instantiated: it is an interface, is declared
// abstract, or some abstract method it inherits has no concrete implementation.
func computeAbstract(c *Class) bool {
	if c.mods.Has(Abstract | Interface) {
		return true
	}
	for _, name := range abstractMethodNames(c, map[*Class]bool{}) {
		m := c.ResolveVirtual(name)
		if m == nil || m.IsAbstract() {
			return true
		}
	}
	return false
}

func abstractMethodNames(c *Class, seen map[*Class]bool) []string {
	if c == nil || seen[c] {
		return nil
	}
	seen[c] = true
	var names []string
	for _, m := range c.methods {
		if m.IsAbstract() {
			names = append(names, m.Name)
		}
	}
	names = append(names, abstractMethodNames(c.super, seen)...)
	for _, i := range c.interfaces {
		names = append(names, abstractMethodNames(i, seen)...)
	}
	return names
}
