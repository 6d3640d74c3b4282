package reflection

import (
	"log/slog"
	"strings"
	"time"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/shared/observability"
)

// Adaptation is one trait adaptation rule of a class body. Exactly one of
// Insteadof or Alias/Visibility is set. Trait is empty when the method was
// not qualified.
type Adaptation struct {
	Trait      string
	Method     string
	Alias      string
	Insteadof  []string
	Visibility source.Modifier
}

func (c *Class) adaptation(a *source.TraitAdaptation) Adaptation {
	ad := Adaptation{Method: a.Method, Alias: a.Alias, Visibility: a.Visibility}
	if a.Trait != "" {
		ad.Trait = c.ns.ResolveClass(a.Trait)
	}
	for _, loser := range a.Insteadof {
		ad.Insteadof = append(ad.Insteadof, c.ns.ResolveClass(loser))
	}
	return ad
}

// appliesTo reports whether the rule targets method of trait.
func (a Adaptation) appliesTo(trait *Class, method string) bool {
	if !strings.EqualFold(a.Method, method) {
		return false
	}
	return a.Trait == "" || strings.EqualFold(a.Trait, trait.name)
}

// table is the composition table of a class-like: its flattened members
// after precedence resolution.
type table struct {
	methods    ordered[*Method]
	properties ordered[*Property]
	constants  ordered[*ClassConstant]
	interfaces []*Class
	traits     []*Class
}

func newTable() *table {
	return &table{
		methods:    newOrdered[*Method](),
		properties: newOrdered[*Property](),
		constants:  newOrdered[*ClassConstant](),
	}
}

func (t *table) addInterface(iface *Class) {
	for _, existing := range t.interfaces {
		if existing == iface {
			return
		}
	}
	t.interfaces = append(t.interfaces, iface)
}

// ordered is a map that remembers insertion order. The first value added
// under a key wins.
type ordered[T any] struct {
	keys  []string
	items map[string]T
}

func newOrdered[T any]() ordered[T] {
	return ordered[T]{items: make(map[string]T)}
}

func (o *ordered[T]) add(key string, v T) bool {
	if _, ok := o.items[key]; ok {
		return false
	}
	o.keys = append(o.keys, key)
	o.items[key] = v
	return true
}

func (o *ordered[T]) get(key string) (T, bool) {
	v, ok := o.items[key]
	return v, ok
}

func (o *ordered[T]) values() []T {
	out := make([]T, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.items[k])
	}
	return out
}

func circular(c *Class, via string) error {
	err := errors.Newf(errors.CodeCircularReference, "class hierarchy of %s is circular through %s", c.name, via)
	return errors.AddContext(err, errors.CtxClass, c.name)
}

// composition returns the memoised composition table, building it on first
// use.
func (c *Class) composition() (*table, error) {
	c.r.composeMu.Lock()
	defer c.r.composeMu.Unlock()
	return c.compose(nil)
}

// compose builds the table with stack holding the class-likes being
// composed further up the call chain. Callers hold composeMu.
func (c *Class) compose(stack []*Class) (*table, error) {
	if c.composed {
		return c.table, c.tableErr
	}
	for _, pending := range stack {
		if pending == c {
			return nil, circular(stack[0], c.name)
		}
	}

	start := time.Now()
	t, err := c.build(append(stack, c))
	observability.CompositionDuration.WithLabelValues(c.decl.Kind.String()).Observe(time.Since(start).Seconds())

	c.table, c.tableErr, c.composed = t, err, true
	return t, err
}

// build merges members with precedence own > trait > parent > interface.
func (c *Class) build(stack []*Class) (*table, error) {
	if reason := c.decl.Unsupported; reason != "" {
		err := errors.Newf(errors.CodeUnsupportedConstruct, "%s: %s", c.name, reason)
		err = errors.AddContext(err, errors.CtxClass, c.name)
		return nil, errors.AddContext(err, errors.CtxPath, c.file.Path)
	}
	t := newTable()
	c.addOwn(t)

	if err := c.addTraits(t, stack); err != nil {
		return nil, err
	}
	if err := c.addParent(t, stack); err != nil {
		return nil, err
	}
	if err := c.addInterfaces(t, stack); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Class) addOwn(t *table) {
	d := c.decl
	for _, m := range d.Methods {
		t.methods.add(strings.ToLower(m.Name), newMethod(c, c, nil, m, m.Name, m.Modifiers))
	}
	if d.Kind == source.KindEnum {
		for _, decl := range enumMethods(d.BackingType != nil) {
			m := newMethod(c, c, nil, decl, decl.Name, decl.Modifiers)
			m.synthetic = true
			t.methods.add(strings.ToLower(decl.Name), m)
		}
	}
	for _, p := range d.Properties {
		t.properties.add(p.Name, newProperty(c, c, nil, p))
	}
	for _, k := range d.Constants {
		t.constants.add(k.Name, newClassConstant(c, c, nil, k))
	}
	for _, ec := range c.Cases() {
		t.constants.add(ec.Name(), newCaseConstant(ec))
	}
}

// enumMethods are the static methods every enum receives.
func enumMethods(backed bool) []*source.Method {
	static := source.ModPublic | source.ModStatic
	out := []*source.Method{{
		Name:       "cases",
		Modifiers:  static,
		ReturnType: &source.NamedTypeExpr{Name: "array"},
		HasBody:    true,
	}}
	if !backed {
		return out
	}
	valueParam := func() []*source.Param {
		return []*source.Param{{
			Name: "value",
			Type: &source.UnionTypeExpr{Types: []source.TypeExpr{
				&source.NamedTypeExpr{Name: "int"},
				&source.NamedTypeExpr{Name: "string"},
			}},
		}}
	}
	return append(out,
		&source.Method{
			Name:       "from",
			Modifiers:  static,
			Params:     valueParam(),
			ReturnType: &source.NamedTypeExpr{Name: "static"},
			HasBody:    true,
		},
		&source.Method{
			Name:       "tryFrom",
			Modifiers:  static,
			Params:     valueParam(),
			ReturnType: &source.NullableTypeExpr{Inner: &source.NamedTypeExpr{Name: "static"}},
			HasBody:    true,
		},
	)
}

// resolveRelated loads a trait or interface for a best-effort collection.
// Missing or unparseable class-likes are skipped; only a circular hierarchy
// is reported.
func (c *Class) resolveRelated(role, name string, stack []*Class) (*Class, *table, error) {
	related, err := c.r.ReflectClass(name)
	if err == nil {
		var t *table
		if t, err = related.compose(stack); err == nil {
			return related, t, nil
		}
	}
	if errors.IsCode(err, errors.CodeCircularReference) {
		return nil, nil, err
	}
	slog.Debug("skipping unresolvable "+role, "class", c.name, role, name, "error", err)
	return nil, nil, nil
}

func (c *Class) addTraits(t *table, stack []*Class) error {
	for _, use := range c.decl.TraitUses {
		var rules []Adaptation
		for _, a := range use.Adaptations {
			rules = append(rules, c.adaptation(a))
		}

		for _, written := range use.Traits {
			trait, tt, err := c.resolveRelated("trait", c.ns.ResolveClass(written), stack)
			if err != nil {
				return err
			}
			if trait == nil {
				continue
			}
			if !trait.IsTrait() {
				slog.Debug("skipping non-trait in use statement", "class", c.name, "trait", trait.name, "kind", trait.decl.Kind.String())
				continue
			}
			t.traits = append(t.traits, trait)
			c.importTrait(t, trait, tt, rules)
		}
	}
	return nil
}

// importTrait copies the members of trait into t, rebinding them to c and
// applying the adaptation rules of the use statement.
func (c *Class) importTrait(t *table, trait *Class, tt *table, rules []Adaptation) {
	for _, m := range tt.methods.values() {
		excluded := false
		mods := m.modifiers
		for _, rule := range rules {
			if !strings.EqualFold(rule.Method, m.name) {
				continue
			}
			for _, loser := range rule.Insteadof {
				if strings.EqualFold(loser, trait.name) {
					excluded = true
				}
			}
			if rule.Alias == "" && rule.Visibility != 0 && rule.appliesTo(trait, m.name) {
				mods = mods.WithVisibility(rule.Visibility)
			}
		}
		if !excluded {
			t.methods.add(strings.ToLower(m.name), newMethod(c, m.lexical, trait, m.decl, m.name, mods))
		}
		for _, rule := range rules {
			if rule.Alias == "" || !rule.appliesTo(trait, m.name) {
				continue
			}
			aliasMods := m.modifiers
			if rule.Visibility != 0 {
				aliasMods = aliasMods.WithVisibility(rule.Visibility)
			}
			t.methods.add(strings.ToLower(rule.Alias), newMethod(c, m.lexical, trait, m.decl, rule.Alias, aliasMods))
		}
	}
	for _, p := range tt.properties.values() {
		t.properties.add(p.Name(), newProperty(c, p.lexical, trait, p.decl))
	}
	for _, k := range tt.constants.values() {
		t.constants.add(k.Name(), newClassConstant(c, k.lexical, trait, k.decl))
	}
}

// addParent merges the parent's non-private members. A missing parent is
// an error: the class cannot be composed without it.
func (c *Class) addParent(t *table, stack []*Class) error {
	name := c.ParentClassName()
	if name == "" {
		return nil
	}
	parent, err := c.r.ReflectClass(name)
	if err != nil {
		return errors.AddContext(err, errors.CtxClass, c.name)
	}
	if parent.decl.Kind != source.KindClass {
		return errors.AddContext(
			errors.Newf(errors.CodeUnresolvableReference, "class %s cannot extend %s %s", c.name, parent.decl.Kind, parent.name),
			errors.CtxClass, c.name)
	}
	pt, err := parent.compose(stack)
	if err != nil {
		return err
	}

	for _, m := range pt.methods.values() {
		if !m.IsPrivate() {
			t.methods.add(strings.ToLower(m.name), m)
		}
	}
	for _, p := range pt.properties.values() {
		if !p.IsPrivate() {
			t.properties.add(p.Name(), p)
		}
	}
	for _, k := range pt.constants.values() {
		if !k.IsPrivate() {
			t.constants.add(k.Name(), k)
		}
	}
	for _, iface := range pt.interfaces {
		t.addInterface(iface)
	}
	return nil
}

// interfaceNames lists the directly implemented interfaces, resolved,
// including the implicit enum and Stringable interfaces.
func (c *Class) interfaceNames(t *table) []string {
	d := c.decl
	written := d.Implements
	if d.Kind == source.KindInterface {
		written = d.Extends
	}
	var out []string
	for _, w := range written {
		out = append(out, c.ns.ResolveClass(w))
	}
	if d.Kind == source.KindEnum {
		out = append(out, "UnitEnum")
		if d.BackingType != nil {
			out = append(out, "BackedEnum")
		}
	}
	if d.Kind != source.KindTrait && !strings.EqualFold(c.name, "Stringable") {
		if _, ok := t.methods.get("__tostring"); ok {
			out = append(out, "Stringable")
		}
	}
	return out
}

func (c *Class) addInterfaces(t *table, stack []*Class) error {
	for _, name := range c.interfaceNames(t) {
		iface, it, err := c.resolveRelated("interface", name, stack)
		if err != nil {
			return err
		}
		if iface == nil {
			continue
		}
		if !iface.IsInterface() {
			slog.Debug("skipping non-interface in implements list", "class", c.name, "interface", iface.name)
			continue
		}
		t.addInterface(iface)
		for _, inherited := range it.interfaces {
			t.addInterface(inherited)
		}
		for _, m := range it.methods.values() {
			t.methods.add(strings.ToLower(m.name), m)
		}
		for _, k := range it.constants.values() {
			t.constants.add(k.Name(), k)
		}
	}
	return nil
}
