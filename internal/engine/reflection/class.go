package reflection

import (
	"strings"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/eval"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/engine/typesys"
	"staticreflect/internal/engine/value"
)

// Class reflects a class, interface, trait or enum.
type Class struct {
	r    *Reflector
	file *source.File
	ns   *source.Namespace
	decl *source.ClassLike
	name string

	composed bool
	table    *table
	tableErr error

	attrs   []*Attribute
	cases   []*EnumCase
	backing memo[typesys.Type]
	live    bridge[LiveClass]
}

func newClass(r *Reflector, file *source.File, ns *source.Namespace, decl *source.ClassLike) *Class {
	return &Class{r: r, file: file, ns: ns, decl: decl, name: source.Qualify(ns.Name, decl.Name)}
}

// Name is the fully qualified name as declared.
func (c *Class) Name() string          { return c.name }
func (c *Class) ShortName() string     { return c.decl.Name }
func (c *Class) NamespaceName() string { return c.ns.Name }
func (c *Class) InNamespace() bool     { return c.ns.Name != "" }
func (c *Class) FileName() string      { return c.file.Path }
func (c *Class) StartLine() int        { return c.decl.Line }
func (c *Class) EndLine() int          { return c.decl.EndLine }
func (c *Class) DocComment() string    { return c.decl.DocComment }

func (c *Class) Kind() source.ClassKind { return c.decl.Kind }

// Modifiers returns the declared modifiers. Enums are implicitly final.
func (c *Class) Modifiers() source.Modifier {
	m := c.decl.Modifiers
	if c.decl.Kind == source.KindEnum {
		m |= source.ModFinal
	}
	if c.IsAbstract() {
		m |= source.ModAbstract
	}
	return m
}

func (c *Class) ModifierNames() []string {
	names := c.Modifiers().Names()
	out := names[:0]
	for _, n := range names {
		// classes have no visibility
		if n != "public" && n != "protected" && n != "private" {
			out = append(out, n)
		}
	}
	return out
}

func (c *Class) IsInterface() bool { return c.decl.Kind == source.KindInterface }
func (c *Class) IsTrait() bool     { return c.decl.Kind == source.KindTrait }
func (c *Class) IsEnum() bool      { return c.decl.Kind == source.KindEnum }
func (c *Class) IsAnonymous() bool { return c.decl.Name == "" }
func (c *Class) IsFinal() bool     { return c.Modifiers().Has(source.ModFinal) }
func (c *Class) IsReadOnly() bool  { return c.decl.Modifiers.Has(source.ModReadonly) }

// IsAbstract reports explicitly abstract classes and class-likes declaring
// abstract methods, which includes interfaces with methods.
func (c *Class) IsAbstract() bool {
	if c.decl.Modifiers.Has(source.ModAbstract) {
		return true
	}
	for _, m := range c.decl.Methods {
		if m.Modifiers.Has(source.ModAbstract) || (c.IsInterface() && !m.HasBody) {
			return true
		}
	}
	return false
}

// IsInstantiable reports a concrete class whose constructor, if any, is
// public.
func (c *Class) IsInstantiable() (bool, error) {
	if c.decl.Kind != source.KindClass || c.IsAbstract() {
		return false, nil
	}
	ctor, err := c.Constructor()
	if err != nil {
		return false, err
	}
	return ctor == nil || ctor.IsPublic(), nil
}

// IsCloneable is IsInstantiable with __clone in place of the constructor.
func (c *Class) IsCloneable() (bool, error) {
	if c.decl.Kind != source.KindClass || c.IsAbstract() {
		return false, nil
	}
	t, err := c.composition()
	if err != nil {
		return false, err
	}
	clone, ok := t.methods.get("__clone")
	return !ok || clone.IsPublic(), nil
}

// IsBacked reports an enum with a scalar backing type.
func (c *Class) IsBacked() bool {
	return c.decl.Kind == source.KindEnum && c.decl.BackingType != nil
}

// BackingType returns the backing type of a backed enum, nil otherwise.
func (c *Class) BackingType() (typesys.Type, error) {
	if !c.IsBacked() {
		return nil, nil
	}
	return c.backing.get(func() (typesys.Type, error) {
		return c.r.types.ResolveIn(c.decl.BackingType, typesys.UsageParameter, false, c.ns.ResolveClass)
	})
}

// ParentClassName is the resolved name of the extended class, "" when the
// class-like has no parent class.
func (c *Class) ParentClassName() string {
	if c.decl.Kind != source.KindClass || len(c.decl.Extends) == 0 {
		return ""
	}
	return c.ns.ResolveClass(c.decl.Extends[0])
}

// ParentClass returns nil without error when there is no parent.
func (c *Class) ParentClass() (*Class, error) {
	name := c.ParentClassName()
	if name == "" {
		return nil, nil
	}
	return c.r.ReflectClass(name)
}

// InterfaceNames lists every implemented interface, including inherited and
// implicit ones, in discovery order.
func (c *Class) InterfaceNames() ([]string, error) {
	ifaces, err := c.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(ifaces))
	for i, iface := range ifaces {
		out[i] = iface.name
	}
	return out, nil
}

func (c *Class) Interfaces() ([]*Class, error) {
	t, err := c.composition()
	if err != nil {
		return nil, err
	}
	return append([]*Class(nil), t.interfaces...), nil
}

// ImplementsInterface reports whether name is among the implemented
// interfaces. An interface implements itself.
func (c *Class) ImplementsInterface(name string) (bool, error) {
	name = strings.TrimPrefix(name, `\`)
	if c.IsInterface() && strings.EqualFold(c.name, name) {
		return true, nil
	}
	names, err := c.InterfaceNames()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true, nil
		}
	}
	return false, nil
}

// IsSubclassOf reports whether the class extends or implements name,
// directly or not. A class is not a subclass of itself.
func (c *Class) IsSubclassOf(name string) (bool, error) {
	name = strings.TrimPrefix(name, `\`)
	if strings.EqualFold(c.name, name) {
		return false, nil
	}
	seen := map[*Class]bool{c: true}
	for cur := c; cur != nil; {
		parent, err := cur.ParentClass()
		if err != nil {
			return false, err
		}
		if parent == nil {
			break
		}
		if seen[parent] {
			return false, circular(c, parent.name)
		}
		if strings.EqualFold(parent.name, name) {
			return true, nil
		}
		seen[parent] = true
		cur = parent
	}
	return c.ImplementsInterface(name)
}

// TraitNames lists the traits used directly by this class-like, resolved.
func (c *Class) TraitNames() []string {
	var out []string
	for _, use := range c.decl.TraitUses {
		for _, t := range use.Traits {
			out = append(out, c.ns.ResolveClass(t))
		}
	}
	return out
}

// Traits returns the used traits that could be located.
func (c *Class) Traits() ([]*Class, error) {
	t, err := c.composition()
	if err != nil {
		return nil, err
	}
	return append([]*Class(nil), t.traits...), nil
}

// Adaptations returns the trait adaptation rules with trait names resolved.
func (c *Class) Adaptations() []Adaptation {
	var out []Adaptation
	for _, use := range c.decl.TraitUses {
		for _, a := range use.Adaptations {
			out = append(out, c.adaptation(a))
		}
	}
	return out
}

// TraitAliases maps each alias to "Trait::method". An unqualified method
// is attributed to the trait that supplied it.
func (c *Class) TraitAliases() (map[string]string, error) {
	t, err := c.composition()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, use := range c.decl.TraitUses {
		for _, a := range use.Adaptations {
			if a.Alias == "" {
				continue
			}
			trait := c.adaptation(a).Trait
			if trait == "" {
				if m, ok := t.methods.get(strings.ToLower(a.Alias)); ok && m.trait != nil {
					trait = m.trait.name
				}
			}
			if trait == "" && len(use.Traits) > 0 {
				trait = c.ns.ResolveClass(use.Traits[0])
			}
			out[a.Alias] = trait + "::" + a.Method
		}
	}
	return out, nil
}

func (c *Class) Attributes() []*Attribute {
	if c.attrs == nil {
		c.attrs = newAttributes(c.r, c.file, c.ns, c.decl.Attributes, TargetClass, func() *eval.Context {
			return c.context(c)
		})
	}
	return c.attrs
}

// Constructor returns __construct from the composition table, or nil.
func (c *Class) Constructor() (*Method, error) {
	t, err := c.composition()
	if err != nil {
		return nil, err
	}
	m, _ := t.methods.get("__construct")
	return m, nil
}

func (c *Class) Methods() ([]*Method, error) {
	t, err := c.composition()
	if err != nil {
		return nil, err
	}
	return t.methods.values(), nil
}

// Method looks a method up case-insensitively.
func (c *Class) Method(name string) (*Method, error) {
	t, err := c.composition()
	if err != nil {
		return nil, err
	}
	if m, ok := t.methods.get(strings.ToLower(name)); ok {
		return m, nil
	}
	return nil, c.memberNotFound("method", name)
}

// HasMethod is false when the method is missing or the class cannot be
// composed.
func (c *Class) HasMethod(name string) bool {
	m, err := c.Method(name)
	return err == nil && m != nil
}

func (c *Class) Properties() ([]*Property, error) {
	t, err := c.composition()
	if err != nil {
		return nil, err
	}
	return t.properties.values(), nil
}

func (c *Class) Property(name string) (*Property, error) {
	t, err := c.composition()
	if err != nil {
		return nil, err
	}
	if p, ok := t.properties.get(strings.TrimPrefix(name, "$")); ok {
		return p, nil
	}
	return nil, c.memberNotFound("property", name)
}

func (c *Class) HasProperty(name string) bool {
	p, err := c.Property(name)
	return err == nil && p != nil
}

// Constants lists constants including enum cases.
func (c *Class) Constants() ([]*ClassConstant, error) {
	t, err := c.composition()
	if err != nil {
		return nil, err
	}
	return t.constants.values(), nil
}

func (c *Class) Constant(name string) (*ClassConstant, error) {
	t, err := c.composition()
	if err != nil {
		return nil, err
	}
	if k, ok := t.constants.get(name); ok {
		return k, nil
	}
	return nil, c.memberNotFound("constant", name)
}

func (c *Class) HasConstant(name string) bool {
	k, err := c.Constant(name)
	return err == nil && k != nil
}

// ConstantValue evaluates the named constant.
func (c *Class) ConstantValue(name string) (value.Value, error) {
	k, err := c.Constant(name)
	if err != nil {
		return value.Value{}, err
	}
	return k.Value()
}

// Cases lists the cases of an enum in declaration order.
func (c *Class) Cases() []*EnumCase {
	if c.cases == nil && c.IsEnum() {
		c.cases = make([]*EnumCase, 0, len(c.decl.Cases))
		for _, decl := range c.decl.Cases {
			c.cases = append(c.cases, newEnumCase(c, decl))
		}
	}
	return c.cases
}

// Case looks an enum case up by its case-sensitive name.
func (c *Class) Case(name string) (*EnumCase, error) {
	if !c.IsEnum() {
		return nil, errors.AddContext(
			errors.Newf(errors.CodeNotSupported, "%s %s is not an enum", c.decl.Kind, c.name),
			errors.CtxClass, c.name)
	}
	for _, ec := range c.Cases() {
		if ec.Name() == name {
			return ec, nil
		}
	}
	return nil, c.memberNotFound("case", name)
}

// NewInstance creates an object through the live runtime.
func (c *Class) NewInstance(args ...any) (any, error) {
	live, err := c.liveClass()
	if err != nil {
		return nil, err
	}
	return live.NewInstance(args...)
}

func (c *Class) NewInstanceWithoutConstructor() (any, error) {
	live, err := c.liveClass()
	if err != nil {
		return nil, err
	}
	return live.NewInstanceWithoutConstructor()
}

func (c *Class) LiveState() LiveState { return c.live.state }

func (c *Class) liveClass() (LiveClass, error) {
	return c.live.open(c.r, "class", c.name, func(rt Runtime) (LiveClass, error) {
		return rt.Class(c.name)
	})
}

func (c *Class) memberNotFound(kind, name string) error {
	err := errors.Newf(errors.CodeNotFound, "%s %s::%s does not exist", kind, c.name, name)
	err = errors.AddContext(err, errors.CtxClass, c.name)
	return errors.AddContext(err, errors.CtxMember, name)
}

// context builds the evaluation context for code written inside c, with
// self bound to self. self differs from c for trait members.
func (c *Class) context(self *Class) *eval.Context {
	ctx := &eval.Context{File: c.file, Namespace: c.ns, Class: classScope{self}}
	if c.IsTrait() {
		ctx.Trait = c.name
	}
	return ctx
}

// classScope is what self and parent resolve to during evaluation.
type classScope struct {
	c *Class
}

func (s classScope) Name() string       { return s.c.name }
func (s classScope) ParentName() string { return s.c.ParentClassName() }
