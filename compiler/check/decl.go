package check

import (
	"context"
	"errors"

	"github.com/robbyt/go-classbody/compiler/ast"
	"github.com/robbyt/go-classbody/platform/diag"
	"github.com/robbyt/go-classbody/runtime"
)

// unchecked stands in for bodies in the scratch loader, which never runs code.
var unchecked = runtime.InvokerFunc(func(context.Context, runtime.Value, []runtime.Value) (runtime.Value, error) {
	return nil, diag.Internalf("classes declared for checking are not executable")
})

// declare defines the unit's types into a scratch loader and records the runtime handle
// of every declaration.
func (c *checker) declare() error {
	defs := make([]*runtime.ClassDef, 0, len(c.unit.Types))
	for _, td := range c.unit.Types {
		d, err := c.classDef(td)
		if err != nil {
			return err
		}
		defs = append(defs, d)
	}

	c.scratch = runtime.NewLoader(c.parent)
	c.info.Scratch = c.scratch
	if len(defs) == 0 {
		return nil
	}
	classes, err := c.scratch.DefineClasses(c.ctx, defs...)
	if err != nil {
		first := c.unit.Types[0]
		loc := first.Location()
		switch {
		case errors.Is(err, runtime.ErrDuplicateClass):
			return diag.Wrap(diag.KindCompile, err, &loc, "class is already defined")
		case errors.Is(err, runtime.ErrLinkage):
			return diag.Wrap(diag.KindCompile, err, &loc, "invalid type hierarchy")
		default:
			return diag.Wrap(diag.KindCompile, err, &loc, "cannot declare types")
		}
	}

	for i, td := range c.unit.Types {
		cls := classes[i]
		c.info.ClassOf[td] = cls
		for _, m := range td.MemberList() {
			switch m := m.(type) {
			case *ast.FieldDecl:
				for _, v := range m.Vars {
					f := cls.DeclaredField(v.Name)
					c.info.FieldOf[v] = f
					if v.Init != nil {
						c.initialized[f] = true
					}
				}
			case *ast.MethodDecl:
				c.info.MethodOf[m] = cls.DeclaredMethod(m.Name)
			case *ast.ConstructorDecl:
				c.info.CtorOf[m] = cls.ConstructorFor(len(m.Params))
			}
		}
	}
	return nil
}

func (c *checker) classDef(td ast.TypeDecl) (*runtime.ClassDef, error) {
	d := &runtime.ClassDef{
		Name:   c.unit.QualifiedName(td.TypeName()),
		Mods:   td.Mods(),
		Source: c.unit.Origin,
	}

	_, iface := td.(*ast.InterfaceDecl)
	switch td := td.(type) {
	case *ast.ClassDecl:
		if td.Extends != nil {
			name, err := c.superclass(td.Extends)
			if err != nil {
				return nil, err
			}
			d.Super = name
		}
		for _, ref := range td.Implements {
			name, err := c.superinterface(ref)
			if err != nil {
				return nil, err
			}
			d.Interfaces = append(d.Interfaces, name)
		}
	case *ast.InterfaceDecl:
		d.Mods |= runtime.Interface
		for _, ref := range td.Extends {
			name, err := c.superinterface(ref)
			if err != nil {
				return nil, err
			}
			d.Interfaces = append(d.Interfaces, name)
		}
	}

	if d.Mods.Has(runtime.Abstract) && d.Mods.Has(runtime.Final) && !iface {
		return nil, errorf(td, "illegal combination of modifiers: abstract and final")
	}

	methods := make(map[string]bool)
	ctors := make(map[int]bool)
	for _, m := range td.MemberList() {
		switch m := m.(type) {
		case *ast.FieldDecl:
			tn, err := c.refName(m.Type)
			if err != nil {
				return nil, err
			}
			for _, v := range m.Vars {
				d.Fields = append(d.Fields, runtime.FieldDef{Name: v.Name, Type: tn, Mods: m.Modifiers})
			}

		case *ast.MethodDecl:
			md, err := c.methodDef(td, m, iface)
			if err != nil {
				return nil, err
			}
			if methods[m.Name] {
				return nil, errorf(m, "method %s is already defined in %s (overloading is not supported)", m.Name, d.Name)
			}
			methods[m.Name] = true
			d.Methods = append(d.Methods, md)

		case *ast.ConstructorDecl:
			if ctors[len(m.Params)] {
				return nil, errorf(m, "constructor with %d parameters is already defined in %s", len(m.Params), d.Name)
			}
			ctors[len(m.Params)] = true
			params, names, err := c.paramDefs(m.Params)
			if err != nil {
				return nil, err
			}
			d.Constructors = append(d.Constructors, runtime.ConstructorDef{
				Params:     params,
				ParamNames: names,
				Mods:       m.Modifiers,
				Impl:       unchecked,
			})

		case *ast.Initializer:
			if iface {
				return nil, errorf(m, "initializers are not allowed in interfaces")
			}
		}
	}

	if !iface && len(ctors) == 0 {
		d.Constructors = append(d.Constructors, runtime.ConstructorDef{Mods: td.Mods() & runtime.Public})
	}
	return d, nil
}

func (c *checker) methodDef(td ast.TypeDecl, m *ast.MethodDecl, iface bool) (runtime.MethodDef, error) {
	abstract := m.Modifiers.Has(runtime.Abstract)
	native := m.Modifiers.Has(runtime.Native)
	switch {
	case abstract && native:
		return runtime.MethodDef{}, errorf(m, "illegal combination of modifiers: abstract and native")
	case abstract && (m.Modifiers.Has(runtime.Private) || m.Modifiers.Has(runtime.Static) || m.Modifiers.Has(runtime.Final)):
		return runtime.MethodDef{}, errorf(m, "illegal combination of modifiers for abstract method %s", m.Name)
	case abstract && m.Body != nil:
		return runtime.MethodDef{}, errorf(m, "abstract methods cannot have a body")
	case native && m.Body != nil:
		return runtime.MethodDef{}, errorf(m, "native methods cannot have a body")
	case !abstract && !native && m.Body == nil && !iface:
		return runtime.MethodDef{}, errorf(m, "missing method body, or declare abstract")
	case abstract && !iface && !td.Mods().Has(runtime.Abstract):
		c.logger.Debug("class with abstract method is implicitly abstract", "class", td.TypeName(), "method", m.Name)
	}

	params, names, err := c.paramDefs(m.Params)
	if err != nil {
		return runtime.MethodDef{}, err
	}
	ret, err := c.refName(m.Return)
	if err != nil {
		return runtime.MethodDef{}, err
	}
	md := runtime.MethodDef{
		Name:       m.Name,
		Params:     params,
		ParamNames: names,
		Return:     ret,
		Mods:       m.Modifiers,
		Line:       m.Location().Line,
	}
	if m.Body != nil || native {
		md.Impl = unchecked
	}
	return md, nil
}

func (c *checker) paramDefs(params []*ast.Param) ([]string, []string, error) {
	types := make([]string, len(params))
	names := make([]string, len(params))
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		if seen[p.Name] {
			return nil, nil, errorf(p, "variable %s is already defined", p.Name)
		}
		seen[p.Name] = true
		tn, err := c.refName(p.Type)
		if err != nil {
			return nil, nil, err
		}
		if tn == runtime.Void.Name() {
			return nil, nil, errorf(p, "parameter %s cannot have type void", p.Name)
		}
		types[i] = tn
		names[i] = p.Name
	}
	return types, names, nil
}

// supertypeKind reports whether the named type is an interface and whether it is final,
// looking at the unit's own declarations before the parent loader.
func (c *checker) supertypeKind(name string) (iface, final bool) {
	if td, ok := c.unitTypes[name]; ok {
		_, iface = td.(*ast.InterfaceDecl)
		return iface, td.Mods().Has(runtime.Final)
	}
	cls, err := c.parent.LoadClass(name)
	if err != nil {
		return false, false
	}
	return cls.IsInterface(), cls.IsFinal()
}

func (c *checker) superclass(ref *ast.TypeRef) (string, error) {
	name, err := c.refName(ref)
	if err != nil {
		return "", err
	}
	if _, ok := runtime.PrimitiveByName(name); ok {
		return "", errorf(ref, "unexpected type %s; class expected", name)
	}
	iface, final := c.supertypeKind(name)
	switch {
	case iface:
		return "", errorf(ref, "no interface expected here: %s", name)
	case final:
		return "", errorf(ref, "cannot inherit from final %s", name)
	}
	return name, nil
}

func (c *checker) superinterface(ref *ast.TypeRef) (string, error) {
	name, err := c.refName(ref)
	if err != nil {
		return "", err
	}
	if iface, _ := c.supertypeKind(name); !iface {
		return "", errorf(ref, "interface expected here: %s", name)
	}
	return name, nil
}

// checkDeclarations validates member declarations against the supertypes: overriding rules
// and interface constants.
func (c *checker) checkDeclarations() error {
	for _, td := range c.unit.Types {
		cls := c.info.ClassOf[td]
		for _, m := range td.MemberList() {
			switch m := m.(type) {
			case *ast.MethodDecl:
				if err := c.checkOverride(m, c.info.MethodOf[m], cls); err != nil {
					return err
				}
			case *ast.FieldDecl:
				if cls.IsInterface() {
					for _, v := range m.Vars {
						if v.Init == nil {
							return errorf(v, "= expected: interface field %s must be initialized", v.Name)
						}
					}
				}
			}
		}
	}
	return nil
}

func (c *checker) checkOverride(decl *ast.MethodDecl, m *runtime.Method, cls *runtime.Class) error {
	for _, sup := range overridden(cls, m.Name) {
		if sup.IsPrivate() {
			continue
		}
		if len(sup.Params) != len(m.Params) {
			return errorf(decl, "%s cannot override %s: parameter lists differ (overloading is not supported)", m, sup)
		}
		for i := range m.Params {
			if m.Params[i] != sup.Params[i] {
				return errorf(decl, "%s cannot override %s: parameter lists differ (overloading is not supported)", m, sup)
			}
		}
		switch {
		case m.Return != sup.Return && !(runtime.IsReference(m.Return) && runtime.IsReference(sup.Return) && runtime.IsAssignable(m.Return, sup.Return)):
			return errorf(decl, "%s cannot override %s: return type %s is not compatible with %s", m, sup, typeName(m.Return), typeName(sup.Return))
		case m.IsStatic() && !sup.IsStatic():
			return errorf(decl, "%s cannot hide the instance method %s", m, sup)
		case !m.IsStatic() && sup.IsStatic():
			return errorf(decl, "%s cannot override the static method %s", m, sup)
		case sup.Mods.Has(runtime.Final):
			return errorf(decl, "%s cannot override %s: overridden method is final", m, sup)
		case accessRank(m.Mods) < accessRank(sup.Mods):
			return errorf(decl, "%s cannot override %s: attempting to assign weaker access privileges", m, sup)
		}
	}
	return nil
}

// overridden returns the methods named name declared by the proper supertypes of cls.
func overridden(cls *runtime.Class, name string) []*runtime.Method {
	var out []*runtime.Method
	seen := map[*runtime.Class]bool{cls: true}
	var walk func(*runtime.Class)
	walk = func(k *runtime.Class) {
		if k == nil || seen[k] {
			return
		}
		seen[k] = true
		if m := k.DeclaredMethod(name); m != nil {
			out = append(out, m)
		}
		walk(k.Super())
		for _, i := range k.Interfaces() {
			walk(i)
		}
	}
	walk(cls.Super())
	for _, i := range cls.Interfaces() {
		walk(i)
	}
	if cls.IsInterface() {
		walk(runtime.ObjectClass())
	}
	return out
}

func accessRank(m runtime.Modifiers) int {
	switch {
	case m.Has(runtime.Public):
		return 3
	case m.Has(runtime.Protected):
		return 2
	case m.Has(runtime.Private):
		return 0
	default:
		return 1
	}
}
