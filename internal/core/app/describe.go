package app

import (
	"strings"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/reflection"
	"staticreflect/internal/engine/typesys"
	"staticreflect/internal/engine/value"
)

// ClassReport is a flattened, printable view of a class-like entity.
// Member values that fail to evaluate carry the failure in Error instead
// of aborting the report.
type ClassReport struct {
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	File       string            `json:"file"`
	Line       int               `json:"line"`
	Modifiers  []string          `json:"modifiers,omitempty"`
	Parent     string            `json:"parent,omitempty"`
	Interfaces []string          `json:"interfaces,omitempty"`
	Traits     []string          `json:"traits,omitempty"`
	Aliases    map[string]string `json:"aliases,omitempty"`
	Backing    string            `json:"backing,omitempty"`
	Attributes []string          `json:"attributes,omitempty"`
	Constants  []MemberReport    `json:"constants,omitempty"`
	Properties []MemberReport    `json:"properties,omitempty"`
	Methods    []MemberReport    `json:"methods,omitempty"`
}

type MemberReport struct {
	Name      string   `json:"name"`
	Declaring string   `json:"declaring"`
	Trait     string   `json:"trait,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
	// Detail is the value of a constant, the type and default of a
	// property or the signature of a method.
	Detail string `json:"detail"`
	Error  string `json:"error,omitempty"`
}

type FunctionReport struct {
	Name       string   `json:"name"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Signature  string   `json:"signature"`
	Attributes []string `json:"attributes,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type ConstantReport struct {
	Name    string `json:"name"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Defined bool   `json:"defined"`
	Value   string `json:"value"`
	Error   string `json:"error,omitempty"`
}

func (a *App) DescribeClass(name string) (ClassReport, error) {
	c, err := a.reflector.ReflectClass(name)
	if err != nil {
		return ClassReport{}, err
	}
	return DescribeClass(c)
}

func (a *App) DescribeFunction(name string) (FunctionReport, error) {
	fn, err := a.reflector.ReflectFunction(name)
	if err != nil {
		return FunctionReport{}, err
	}
	return DescribeFunction(fn), nil
}

func (a *App) DescribeConstant(name string) (ConstantReport, error) {
	k, err := a.reflector.ReflectConstant(name)
	if err != nil {
		return ConstantReport{}, err
	}
	return DescribeConstant(k), nil
}

// DescribeClass fails only when the class cannot be composed.
func DescribeClass(c *reflection.Class) (ClassReport, error) {
	report := ClassReport{
		Name:       c.Name(),
		Kind:       c.Kind().String(),
		File:       c.FileName(),
		Line:       c.StartLine(),
		Modifiers:  c.ModifierNames(),
		Parent:     c.ParentClassName(),
		Traits:     c.TraitNames(),
		Attributes: attributeNames(c.Attributes()),
	}
	aliases, err := c.TraitAliases()
	if err != nil {
		return ClassReport{}, err
	}
	if len(aliases) > 0 {
		report.Aliases = aliases
	}

	if report.Interfaces, err = c.InterfaceNames(); err != nil {
		return ClassReport{}, err
	}
	if c.IsBacked() {
		backing, err := c.BackingType()
		if err != nil {
			return ClassReport{}, err
		}
		report.Backing = typesys.Render(backing, typesys.RenderOptions{})
	}

	constants, err := c.Constants()
	if err != nil {
		return ClassReport{}, err
	}
	for _, k := range constants {
		m := MemberReport{Name: k.Name(), Declaring: k.DeclaringClass().Name(), Trait: traitName(k.Trait())}
		if k.IsEnumCase() {
			m.Modifiers = []string{"case"}
			m.Detail, m.Error = caseDetail(k.EnumCase())
		} else {
			m.Modifiers = k.Modifiers().Names()
			m.Detail, m.Error = exported(k.Value())
		}
		report.Constants = append(report.Constants, m)
	}

	properties, err := c.Properties()
	if err != nil {
		return ClassReport{}, err
	}
	for _, p := range properties {
		m := MemberReport{
			Name:      "$" + p.Name(),
			Declaring: p.DeclaringClass().Name(),
			Trait:     traitName(p.Trait()),
			Modifiers: p.Modifiers().Names(),
		}
		m.Detail, m.Error = propertyDetail(p)
		report.Properties = append(report.Properties, m)
	}

	methods, err := c.Methods()
	if err != nil {
		return ClassReport{}, err
	}
	for _, method := range methods {
		m := MemberReport{
			Name:      method.Name(),
			Declaring: method.DeclaringClass().Name(),
			Trait:     traitName(method.Trait()),
			Modifiers: method.ModifierNames(),
		}
		m.Detail, m.Error = signature(method.Name(), method.Parameters(), method.ReturnType, method.HasReturnType())
		report.Methods = append(report.Methods, m)
	}
	return report, nil
}

func DescribeFunction(fn *reflection.Function) FunctionReport {
	report := FunctionReport{
		Name:       fn.Name(),
		File:       fn.FileName(),
		Line:       fn.StartLine(),
		Attributes: attributeNames(fn.Attributes()),
	}
	report.Signature, report.Error = signature(fn.ShortName(), fn.Parameters(), fn.ReturnType, fn.HasReturnType())
	return report
}

func DescribeConstant(k *reflection.Constant) ConstantReport {
	report := ConstantReport{
		Name:    k.Name(),
		File:    k.FileName(),
		Line:    k.StartLine(),
		Defined: k.IsDefined(),
	}
	report.Value, report.Error = exported(k.Value())
	return report
}

// exported renders a value, falling back to an empty detail and the error
// text when evaluation failed.
func exported(v value.Value, err error) (string, string) {
	if err != nil {
		return "", err.Error()
	}
	return value.Export(v), ""
}

func caseDetail(ec *reflection.EnumCase) (string, string) {
	if ec == nil || !ec.IsBacked() {
		return "", ""
	}
	return exported(ec.BackingValue())
}

func propertyDetail(p *reflection.Property) (string, string) {
	var parts []string
	if p.HasType() {
		t, err := p.Type()
		if err != nil {
			return "", err.Error()
		}
		parts = append(parts, typesys.Render(t, typesys.RenderOptions{}))
	}
	if p.HasDefaultValue() {
		v, err := p.DefaultValue()
		if err != nil {
			if !errors.IsCode(err, errors.CodeUnresolvableReference) {
				return strings.Join(parts, " "), err.Error()
			}
			parts = append(parts, "= "+p.DefaultValueText())
		} else {
			parts = append(parts, "= "+value.Export(v))
		}
	}
	return strings.Join(parts, " "), ""
}

func signature(name string, params []*reflection.Parameter, ret func() (typesys.Type, error), hasReturn bool) (string, string) {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.HasType() {
			t, err := p.Type()
			if err != nil {
				return "", err.Error()
			}
			b.WriteString(typesys.Render(t, typesys.RenderOptions{}))
			b.WriteByte(' ')
		}
		if p.IsPassedByReference() {
			b.WriteByte('&')
		}
		if p.IsVariadic() {
			b.WriteString("...")
		}
		b.WriteString("$" + p.Name())
		if p.HasDefaultValue() {
			b.WriteString(" = " + p.DefaultValueText())
		}
	}
	b.WriteByte(')')
	if hasReturn {
		t, err := ret()
		if err != nil {
			return "", err.Error()
		}
		b.WriteString(": " + typesys.Render(t, typesys.RenderOptions{}))
	}
	return b.String(), ""
}

func traitName(c *reflection.Class) string {
	if c == nil {
		return ""
	}
	return c.Name()
}

func attributeNames(attrs []*reflection.Attribute) []string {
	var out []string
	for _, attr := range attrs {
		out = append(out, attr.Name())
	}
	return out
}
