package reflection

import (
	"strings"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/eval"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/engine/value"
)

// Target is the kind of declaration an attribute is attached to. Values
// match the host language's Attribute::TARGET_* flags.
type Target int

const (
	TargetClass         Target = 1
	TargetFunction      Target = 2
	TargetMethod        Target = 4
	TargetProperty      Target = 8
	TargetClassConstant Target = 16
	TargetParameter     Target = 32
)

func (t Target) String() string {
	switch t {
	case TargetClass:
		return "class"
	case TargetFunction:
		return "function"
	case TargetMethod:
		return "method"
	case TargetProperty:
		return "property"
	case TargetClassConstant:
		return "class constant"
	case TargetParameter:
		return "parameter"
	}
	return "unknown"
}

// Attribute reflects one attribute usage. Arguments are evaluated on first
// request.
type Attribute struct {
	r        *Reflector
	decl     *source.Attribute
	name     string
	target   Target
	repeated bool
	context  func() *eval.Context

	args memo[*value.Array]
}

func newAttributes(r *Reflector, file *source.File, ns *source.Namespace, decls []*source.Attribute, target Target, context func() *eval.Context) []*Attribute {
	out := make([]*Attribute, 0, len(decls))
	counts := make(map[string]int, len(decls))
	for _, d := range decls {
		a := &Attribute{r: r, decl: d, name: ns.ResolveClass(d.Name), target: target, context: context}
		counts[strings.ToLower(a.name)]++
		out = append(out, a)
	}
	for _, a := range out {
		a.repeated = counts[strings.ToLower(a.name)] > 1
	}
	return out
}

// Name is the fully qualified attribute class name.
func (a *Attribute) Name() string      { return a.name }
func (a *Attribute) ShortName() string { return source.ShortName(a.name) }
func (a *Attribute) Target() Target    { return a.target }

// IsRepeated reports whether the same attribute appears more than once on
// the declaration.
func (a *Attribute) IsRepeated() bool { return a.repeated }

// Arguments evaluates the arguments into an array: positional arguments
// under integer keys, named ones under their name.
func (a *Attribute) Arguments() (*value.Array, error) {
	return a.args.get(func() (*value.Array, error) {
		out := value.NewArray()
		for _, arg := range a.decl.Args {
			if arg.Unpack {
				err := errors.Newf(errors.CodeUnsupportedConstruct, "argument unpacking in attribute %s", a.name)
				return nil, errors.AddContext(err, errors.CtxSymbol, a.name)
			}
			res, err := a.r.evaluate(arg.Value, a.context())
			if err != nil {
				return nil, errors.AddContext(err, errors.CtxSymbol, a.name)
			}
			if arg.Name != "" {
				out.Set(value.StringKey(arg.Name), res.Value)
				continue
			}
			if err := out.Append(res.Value); err != nil {
				return nil, err
			}
		}
		return out, nil
	})
}

// Class reflects the attribute class itself.
func (a *Attribute) Class() (*Class, error) {
	return a.r.ReflectClass(a.name)
}
