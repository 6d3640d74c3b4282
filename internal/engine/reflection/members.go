package reflection

import (
	"strings"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/eval"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/engine/typesys"
	"staticreflect/internal/engine/value"
)

// Method reflects a method as it appears in a class's composition table.
// class is the class the method is bound to; for trait methods that is the
// using class, while lexical is the class-like whose body declares it.
type Method struct {
	signature
	class     *Class
	lexical   *Class
	trait     *Class
	decl      *source.Method
	name      string
	modifiers source.Modifier
	synthetic bool

	attrs []*Attribute
	live  bridge[LiveMethod]
}

func newMethod(class, lexical, trait *Class, decl *source.Method, name string, mods source.Modifier) *Method {
	m := &Method{
		class:     class,
		lexical:   lexical,
		trait:     trait,
		decl:      decl,
		name:      name,
		modifiers: mods,
	}
	m.signature = signature{
		r:          class.r,
		file:       lexical.file,
		ns:         lexical.ns,
		params:     decl.Params,
		returnType: decl.ReturnType,
		owner:      class.name + "::" + name,
		scope:      m.context,
	}
	return m
}

func (m *Method) context() *eval.Context {
	ctx := m.lexical.context(m.class)
	ctx.Function = m.decl.Name
	return ctx
}

// Name is the name the method is reachable under, which is the alias for
// aliased trait methods.
func (m *Method) Name() string { return m.name }

// OriginalName is the name written in the declaring body.
func (m *Method) OriginalName() string { return m.decl.Name }

func (m *Method) DeclaringClass() *Class { return m.class }

// Trait is the trait the method was imported through, nil otherwise.
func (m *Method) Trait() *Class { return m.trait }

// Modifiers always carries a visibility bit. Interface methods are
// implicitly abstract.
func (m *Method) Modifiers() source.Modifier {
	mods := m.modifiers.WithVisibility(m.modifiers.Visibility())
	if m.lexical.IsInterface() {
		mods |= source.ModAbstract
	}
	return mods
}

func (m *Method) ModifierNames() []string { return m.Modifiers().Names() }

func (m *Method) IsPublic() bool    { return m.Modifiers().Has(source.ModPublic) }
func (m *Method) IsProtected() bool { return m.Modifiers().Has(source.ModProtected) }
func (m *Method) IsPrivate() bool   { return m.Modifiers().Has(source.ModPrivate) }
func (m *Method) IsStatic() bool    { return m.modifiers.Has(source.ModStatic) }
func (m *Method) IsFinal() bool     { return m.modifiers.Has(source.ModFinal) }
func (m *Method) IsAbstract() bool  { return m.Modifiers().Has(source.ModAbstract) }

func (m *Method) IsConstructor() bool { return strings.EqualFold(m.name, "__construct") }

// IsSynthetic reports enum methods that exist without a declaration.
func (m *Method) IsSynthetic() bool      { return m.synthetic }
func (m *Method) IsGenerator() bool      { return m.decl.Generator }
func (m *Method) ReturnsReference() bool { return m.decl.ByRef }
func (m *Method) DocComment() string     { return m.decl.DocComment }
func (m *Method) StartLine() int         { return m.decl.Line }
func (m *Method) EndLine() int           { return m.decl.EndLine }
func (m *Method) FileName() string       { return m.lexical.file.Path }

func (m *Method) Attributes() []*Attribute {
	if m.attrs == nil {
		m.attrs = newAttributes(m.r, m.file, m.ns, m.decl.Attributes, TargetMethod, m.context)
	}
	return m.attrs
}

// Invoke calls the method on obj through the live runtime; obj is nil for
// static methods.
func (m *Method) Invoke(obj any, args ...any) (any, error) {
	live, err := m.liveMethod()
	if err != nil {
		return nil, err
	}
	return live.Invoke(obj, args...)
}

// Closure returns an invocable handle bound to obj.
func (m *Method) Closure(obj any) (any, error) {
	live, err := m.liveMethod()
	if err != nil {
		return nil, err
	}
	return live.Closure(obj)
}

func (m *Method) LiveState() LiveState { return m.live.state }

func (m *Method) liveMethod() (LiveMethod, error) {
	return m.live.open(m.r, "method", m.owner, func(rt Runtime) (LiveMethod, error) {
		return rt.Method(m.class.name, m.name)
	})
}

// Property reflects a declared or promoted property.
type Property struct {
	class   *Class
	lexical *Class
	trait   *Class
	decl    *source.Property

	typ   memo[typesys.Type]
	def   memo[eval.Result]
	attrs []*Attribute
	live  bridge[LiveProperty]
}

func newProperty(class, lexical, trait *Class, decl *source.Property) *Property {
	return &Property{class: class, lexical: lexical, trait: trait, decl: decl}
}

func (p *Property) context() *eval.Context {
	ctx := p.lexical.context(p.class)
	ctx.Property = p.decl.Name
	return ctx
}

// Name is the property name without the "$".
func (p *Property) Name() string           { return p.decl.Name }
func (p *Property) DeclaringClass() *Class { return p.class }
func (p *Property) Trait() *Class          { return p.trait }
func (p *Property) DocComment() string     { return p.decl.DocComment }
func (p *Property) StartLine() int         { return p.decl.Line }
func (p *Property) IsPromoted() bool       { return p.decl.Promoted }
func (p *Property) HasType() bool          { return p.decl.Type != nil }

// Modifiers always carries a visibility bit. Properties of readonly
// classes are readonly.
func (p *Property) Modifiers() source.Modifier {
	mods := p.decl.Modifiers.WithVisibility(p.decl.Modifiers.Visibility())
	if p.lexical.IsReadOnly() {
		mods |= source.ModReadonly
	}
	return mods
}

func (p *Property) IsPublic() bool    { return p.Modifiers().Has(source.ModPublic) }
func (p *Property) IsProtected() bool { return p.Modifiers().Has(source.ModProtected) }
func (p *Property) IsPrivate() bool   { return p.Modifiers().Has(source.ModPrivate) }
func (p *Property) IsStatic() bool    { return p.decl.Modifiers.Has(source.ModStatic) }
func (p *Property) IsReadOnly() bool  { return p.Modifiers().Has(source.ModReadonly) }

func (p *Property) Type() (typesys.Type, error) {
	if p.decl.Type == nil {
		return nil, nil
	}
	return p.typ.get(func() (typesys.Type, error) {
		t, err := p.class.r.types.ResolveIn(p.decl.Type, typesys.UsageProperty, false, p.lexical.ns.ResolveClass)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxMember, "$"+p.decl.Name)
		}
		return t, nil
	})
}

// HasDefaultValue is true for explicit defaults and for untyped declared
// properties, which default to null.
func (p *Property) HasDefaultValue() bool {
	return p.decl.Default != nil || (p.decl.Type == nil && !p.decl.Promoted)
}

func (p *Property) DefaultValue() (value.Value, error) {
	if p.decl.Default == nil {
		if p.HasDefaultValue() {
			return value.Null(), nil
		}
		err := errors.Newf(errors.CodeNotFound, "property %s::$%s has no default value", p.class.name, p.decl.Name)
		err = errors.AddContext(err, errors.CtxClass, p.class.name)
		return value.Value{}, errors.AddContext(err, errors.CtxMember, "$"+p.decl.Name)
	}
	res, err := p.def.get(func() (eval.Result, error) {
		return p.class.r.evaluate(p.decl.Default, p.context())
	})
	return res.Value, err
}

func (p *Property) DefaultValueText() string {
	if p.decl.Default == nil {
		return ""
	}
	if text := p.lexical.file.Text(p.decl.Default); text != "" {
		return text
	}
	return source.PrintExpr(p.decl.Default)
}

func (p *Property) Attributes() []*Attribute {
	if p.attrs == nil {
		p.attrs = newAttributes(p.class.r, p.lexical.file, p.lexical.ns, p.decl.Attributes, TargetProperty, p.context)
	}
	return p.attrs
}

// Value reads the property of obj through the live runtime.
func (p *Property) Value(obj any) (any, error) {
	live, err := p.liveProperty()
	if err != nil {
		return nil, err
	}
	return live.Value(obj)
}

func (p *Property) SetValue(obj, v any) error {
	live, err := p.liveProperty()
	if err != nil {
		return err
	}
	return live.SetValue(obj, v)
}

func (p *Property) LiveState() LiveState { return p.live.state }

func (p *Property) liveProperty() (LiveProperty, error) {
	return p.live.open(p.class.r, "property", p.class.name+"::$"+p.decl.Name, func(rt Runtime) (LiveProperty, error) {
		return rt.Property(p.class.name, p.decl.Name)
	})
}

// ClassConstant reflects a class constant or, for enums, a case seen as a
// constant.
type ClassConstant struct {
	class    *Class
	lexical  *Class
	trait    *Class
	decl     *source.ClassConst
	enumCase *EnumCase

	evaluating bool
	result     memo[eval.Result]
	typ        memo[typesys.Type]
	attrs      []*Attribute
}

func newClassConstant(class, lexical, trait *Class, decl *source.ClassConst) *ClassConstant {
	return &ClassConstant{class: class, lexical: lexical, trait: trait, decl: decl}
}

func newCaseConstant(ec *EnumCase) *ClassConstant {
	return &ClassConstant{class: ec.class, lexical: ec.class, enumCase: ec}
}

func (k *ClassConstant) Name() string {
	if k.enumCase != nil {
		return k.enumCase.Name()
	}
	return k.decl.Name
}

func (k *ClassConstant) DeclaringClass() *Class { return k.class }
func (k *ClassConstant) Trait() *Class          { return k.trait }

// EnumCase returns the case behind the constant, nil for plain constants.
func (k *ClassConstant) EnumCase() *EnumCase { return k.enumCase }
func (k *ClassConstant) IsEnumCase() bool    { return k.enumCase != nil }

func (k *ClassConstant) Modifiers() source.Modifier {
	if k.enumCase != nil {
		return source.ModPublic | source.ModFinal
	}
	return k.decl.Modifiers.WithVisibility(k.decl.Modifiers.Visibility())
}

func (k *ClassConstant) IsPublic() bool  { return k.Modifiers().Has(source.ModPublic) }
func (k *ClassConstant) IsPrivate() bool { return k.Modifiers().Has(source.ModPrivate) }
func (k *ClassConstant) IsFinal() bool   { return k.Modifiers().Has(source.ModFinal) }

func (k *ClassConstant) DocComment() string {
	if k.enumCase != nil {
		return k.enumCase.DocComment()
	}
	return k.decl.DocComment
}

func (k *ClassConstant) HasType() bool { return k.decl != nil && k.decl.Type != nil }

func (k *ClassConstant) Type() (typesys.Type, error) {
	if !k.HasType() {
		return nil, nil
	}
	return k.typ.get(func() (typesys.Type, error) {
		return k.class.r.types.ResolveIn(k.decl.Type, typesys.UsageProperty, false, k.lexical.ns.ResolveClass)
	})
}

// Result evaluates the constant. A constant that depends on itself fails
// with CIRCULAR_REFERENCE.
func (k *ClassConstant) Result() (eval.Result, error) {
	if k.enumCase != nil {
		return eval.Result{Value: value.EnumCase(k.class.name, k.enumCase.Name())}, nil
	}
	return k.result.get(func() (eval.Result, error) {
		if k.evaluating {
			err := errors.Newf(errors.CodeCircularReference, "constant %s::%s refers to itself", k.class.name, k.decl.Name)
			err = errors.AddContext(err, errors.CtxClass, k.class.name)
			return eval.Result{}, errors.AddContext(err, errors.CtxMember, k.decl.Name)
		}
		k.evaluating = true
		defer func() { k.evaluating = false }()
		return k.class.r.evaluate(k.decl.Value, k.lexical.context(k.class))
	})
}

func (k *ClassConstant) Value() (value.Value, error) {
	res, err := k.Result()
	return res.Value, err
}

// ValueText is the value expression as written.
func (k *ClassConstant) ValueText() string {
	if k.enumCase != nil {
		return k.enumCase.ValueText()
	}
	if text := k.lexical.file.Text(k.decl.Value); text != "" {
		return text
	}
	return source.PrintExpr(k.decl.Value)
}

func (k *ClassConstant) Attributes() []*Attribute {
	if k.enumCase != nil {
		return k.enumCase.Attributes()
	}
	if k.attrs == nil {
		k.attrs = newAttributes(k.class.r, k.lexical.file, k.lexical.ns, k.decl.Attributes, TargetClassConstant, func() *eval.Context {
			return k.lexical.context(k.class)
		})
	}
	return k.attrs
}

// EnumCase reflects one case of an enum.
type EnumCase struct {
	class *Class
	decl  *source.EnumCase

	evaluating bool
	backing    memo[value.Value]
	attrs      []*Attribute
}

func newEnumCase(c *Class, decl *source.EnumCase) *EnumCase {
	return &EnumCase{class: c, decl: decl}
}

func (ec *EnumCase) Name() string       { return ec.decl.Name }
func (ec *EnumCase) Class() *Class      { return ec.class }
func (ec *EnumCase) DocComment() string { return ec.decl.DocComment }
func (ec *EnumCase) StartLine() int     { return ec.decl.Line }

// Value is the case itself as a symbolic value.
func (ec *EnumCase) Value() value.Value {
	return value.EnumCase(ec.class.name, ec.decl.Name)
}

// IsBacked reports a case of a backed enum.
func (ec *EnumCase) IsBacked() bool { return ec.class.IsBacked() }

// BackingValue evaluates the scalar behind a case of a backed enum.
func (ec *EnumCase) BackingValue() (value.Value, error) {
	if !ec.class.IsBacked() {
		err := errors.Newf(errors.CodeNotSupported, "case %s::%s of a pure enum has no backing value", ec.class.name, ec.decl.Name)
		return value.Value{}, errors.AddContext(err, errors.CtxClass, ec.class.name)
	}
	return ec.backing.get(func() (value.Value, error) {
		if ec.decl.Value == nil {
			err := errors.Newf(errors.CodeUnresolvableReference, "case %s::%s of a backed enum declares no value", ec.class.name, ec.decl.Name)
			return value.Value{}, errors.AddContext(err, errors.CtxClass, ec.class.name)
		}
		if ec.evaluating {
			err := errors.Newf(errors.CodeCircularReference, "case %s::%s refers to itself", ec.class.name, ec.decl.Name)
			return value.Value{}, errors.AddContext(err, errors.CtxClass, ec.class.name)
		}
		ec.evaluating = true
		defer func() { ec.evaluating = false }()
		res, err := ec.class.r.evaluate(ec.decl.Value, ec.class.context(ec.class))
		if err != nil {
			return value.Value{}, errors.AddContext(err, errors.CtxMember, ec.decl.Name)
		}
		return res.Value, nil
	})
}

func (ec *EnumCase) ValueText() string {
	if ec.decl.Value == nil {
		return ""
	}
	if text := ec.class.file.Text(ec.decl.Value); text != "" {
		return text
	}
	return source.PrintExpr(ec.decl.Value)
}

func (ec *EnumCase) Attributes() []*Attribute {
	if ec.attrs == nil {
		ec.attrs = newAttributes(ec.class.r, ec.class.file, ec.class.ns, ec.decl.Attributes, TargetClassConstant, func() *eval.Context {
			return ec.class.context(ec.class)
		})
	}
	return ec.attrs
}

// CaseLookup is the outcome of matching a backing value against the cases
// of an enum.
type CaseLookup int

const (
	CaseNotFound CaseLookup = iota
	CaseFound
	// CaseUnresolved means no case matched but at least one case value
	// could not be evaluated, so a match cannot be ruled out.
	CaseUnresolved
)

func (l CaseLookup) String() string {
	switch l {
	case CaseFound:
		return "found"
	case CaseUnresolved:
		return "unresolved"
	default:
		return "not found"
	}
}

// LookupCase finds the case whose backing value is identical to v. The
// returned error explains an unresolved outcome.
func (c *Class) LookupCase(v value.Value) (*EnumCase, CaseLookup, error) {
	if !c.IsBacked() {
		err := errors.Newf(errors.CodeNotSupported, "%s is not a backed enum", c.name)
		return nil, CaseNotFound, errors.AddContext(err, errors.CtxClass, c.name)
	}
	var unresolved error
	for _, ec := range c.Cases() {
		bv, err := ec.BackingValue()
		if err != nil {
			if unresolved == nil {
				unresolved = err
			}
			continue
		}
		if value.Identical(bv, v) {
			return ec, CaseFound, nil
		}
	}
	if unresolved != nil {
		return nil, CaseUnresolved, unresolved
	}
	return nil, CaseNotFound, nil
}

// From mirrors the synthetic from() method: a value matching no case is a
// NOT_FOUND error.
func (c *Class) From(v value.Value) (*EnumCase, error) {
	ec, outcome, err := c.LookupCase(v)
	switch {
	case outcome == CaseFound:
		return ec, nil
	case outcome == CaseUnresolved:
		return nil, errors.Wrap(err, errors.CodeUnresolvableReference,
			"cannot decide "+c.name+"::from("+value.Export(v)+")")
	case err != nil:
		return nil, err
	}
	nf := errors.Newf(errors.CodeNotFound, "%s is not a valid backing value for enum %s", value.Export(v), c.name)
	return nil, errors.AddContext(nf, errors.CtxClass, c.name)
}

// TryFrom mirrors the synthetic tryFrom() method: a value matching no case
// yields nil without error.
func (c *Class) TryFrom(v value.Value) (*EnumCase, error) {
	ec, outcome, err := c.LookupCase(v)
	switch outcome {
	case CaseFound:
		return ec, nil
	case CaseUnresolved:
		return nil, errors.Wrap(err, errors.CodeUnresolvableReference,
			"cannot decide "+c.name+"::tryFrom("+value.Export(v)+")")
	}
	return nil, err
}
