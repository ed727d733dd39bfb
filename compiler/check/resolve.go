package check

import (
	"strings"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/runtime"
)

// imports is the resolved import section of a unit.
type imports struct {
	// single maps a simple name to the qualified name of a single-type import.
	single map[string]string
	// onDemand lists the prefixes of type-import-on-demand declarations.
	onDemand []string
	// staticSingle maps a member name to the class of a single-static import.
	staticSingle map[string]*runtime.Class
	// staticOnDemand lists the classes of static-import-on-demand declarations.
	staticOnDemand []*runtime.Class
}

func (c *checker) resolveImports() (*imports, error) {
	imps := &imports{
		single:       make(map[string]string),
		staticSingle: make(map[string]*runtime.Class),
	}
	for _, imp := range c.unit.Imports {
		name := imp.Name()
		switch {
		case !imp.Static && imp.OnDemand:
			imps.onDemand = append(imps.onDemand, name)

		case !imp.Static:
			if !c.classExists(name) {
				return nil, errorf(imp, "imported class %q could not be loaded", name)
			}
			simple := imp.Parts[len(imp.Parts)-1]
			if prev, ok := imps.single[simple]; ok && prev != name {
				return nil, errorf(imp, "%s is already defined in a single-type import", simple)
			}
			if q, ok := c.simpleUnit[simple]; ok && q != name {
				return nil, errorf(imp, "%s is already defined in this compilation unit", simple)
			}
			imps.single[simple] = name

		case imp.OnDemand:
			cls, err := c.parent.LoadClass(name)
			if err != nil {
				return nil, errorf(imp, "imported class %q could not be loaded", name)
			}
			imps.staticOnDemand = append(imps.staticOnDemand, cls)

		default:
			owner := strings.Join(imp.Parts[:len(imp.Parts)-1], ".")
			member := imp.Parts[len(imp.Parts)-1]
			cls, err := c.parent.LoadClass(owner)
			if err != nil {
				return nil, errorf(imp, "imported class %q could not be loaded", owner)
			}
			if !hasStaticMember(cls, member) {
				return nil, errorf(imp, "cannot find static member %s in %s", member, owner)
			}
			imps.staticSingle[member] = cls
		}
	}
	return imps, nil
}

func hasStaticMember(cls *runtime.Class, name string) bool {
	if f := cls.LookupField(name); f != nil && f.IsStatic() {
		return true
	}
	if m := cls.LookupMethod(name); m != nil && m.IsStatic() {
		return true
	}
	return false
}

// classExists reports whether a qualified class name is declared by the unit or loadable
// through the parent loader.
func (c *checker) classExists(name string) bool {
	if _, ok := c.unitTypes[name]; ok {
		return true
	}
	_, err := c.parent.LoadClass(name)
	return err == nil
}

// qualify maps a type name as written in source to the name the loader knows it by.
func (c *checker) qualify(n ast.Node, name string) (string, error) {
	if _, ok := runtime.PrimitiveByName(name); ok {
		return name, nil
	}
	if strings.Contains(name, ".") {
		if c.classExists(name) {
			return name, nil
		}
		return "", errorf(n, "cannot find class %s", name)
	}

	if q, ok := c.simpleUnit[name]; ok {
		return q, nil
	}
	if q, ok := c.imports.single[name]; ok {
		return q, nil
	}
	own := name
	if pkg := c.unit.PackageName(); pkg != "" {
		own = pkg + "." + name
	}
	if c.classExists(own) {
		return own, nil
	}

	var found []string
	for _, prefix := range append(c.imports.onDemand, runtime.LangPackage) {
		q := prefix + "." + name
		if c.classExists(q) && !contains(found, q) {
			found = append(found, q)
		}
		if prefix == runtime.LangPackage && len(found) > 0 {
			break
		}
	}
	switch len(found) {
	case 0:
		return "", errorf(n, "cannot find class %s", name)
	case 1:
		return found[0], nil
	default:
		return "", errorf(n, "reference to %s is ambiguous: %s", name, strings.Join(found, " and "))
	}
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// refName returns the loader name of a type reference. References created from runtime
// handles must be loadable by name from the parent loader and yield the same type.
func (c *checker) refName(ref *ast.TypeRef) (string, error) {
	if ref.Handle == nil {
		return c.qualify(ref, ref.Name)
	}
	h := ref.Handle
	if h.IsPrimitive() {
		return h.Name(), nil
	}
	if h.IsArray() {
		return "", errorf(ref, "array type %s cannot be used here", h.Name())
	}
	got, err := c.parent.LoadClass(h.Name())
	if err != nil || runtime.Type(got) != h {
		return "", errorf(ref, "type %s is not visible through the parent loader", h.Name())
	}
	return h.Name(), nil
}

// resolveRef resolves a type reference once the unit's types are declared, and records it.
func (c *checker) resolveRef(ref *ast.TypeRef) (runtime.Type, error) {
	if t, ok := c.info.TypeRefs[ref]; ok {
		return t, nil
	}
	name, err := c.refName(ref)
	if err != nil {
		return nil, err
	}
	t, err := c.scratch.ResolveType(name)
	if err != nil {
		return nil, errorf(ref, "cannot find class %s", name)
	}
	c.info.TypeRefs[ref] = t
	return t, nil
}

// lookupType resolves a possibly qualified name used in an expression, returning nil when
// no such class exists.
func (c *checker) lookupType(n ast.Node, name string) *runtime.Class {
	q, err := c.qualify(n, name)
	if err != nil {
		return nil
	}
	t, err := c.scratch.ResolveType(q)
	if err != nil {
		return nil
	}
	cls, _ := t.(*runtime.Class)
	return cls
}

// staticImportField finds a field brought into scope by a static import.
func (c *checker) staticImportField(name string) *runtime.Field {
	if cls, ok := c.imports.staticSingle[name]; ok {
		if f := cls.LookupField(name); f != nil && f.IsStatic() {
			return f
		}
	}
	for _, cls := range c.imports.staticOnDemand {
		if f := cls.LookupField(name); f != nil && f.IsStatic() {
			return f
		}
	}
	return nil
}

// staticImportMethod finds a method brought into scope by a static import.
func (c *checker) staticImportMethod(name string) *runtime.Method {
	if cls, ok := c.imports.staticSingle[name]; ok {
		if m := cls.LookupMethod(name); m != nil && m.IsStatic() {
			return m
		}
	}
	for _, cls := range c.imports.staticOnDemand {
		if m := cls.LookupMethod(name); m != nil && m.IsStatic() {
			return m
		}
	}
	return nil
}
