package typesys

import (
	"fmt"
	"strings"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/source"
)

// Resolver folds type annotations into descriptors against a builtin set.
type Resolver struct {
	cfg *Config
}

func NewResolver(cfg *Config) *Resolver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Resolver{cfg: cfg}
}

func (r *Resolver) Config() *Config { return r.cfg }

// Resolve is ResolveIn without class-name qualification.
func (r *Resolver) Resolve(expr source.TypeExpr, usage Usage, implicitlyNullable bool) (Type, error) {
	return r.ResolveIn(expr, usage, implicitlyNullable, nil)
}

// ResolveIn resolves expr for a use-site of category usage. implicitlyNullable
// is set for parameters whose default is null. qualify, when non-nil, maps a
// class reference as written to its fully qualified name; self, parent and
// static are passed through unchanged.
func (r *Resolver) ResolveIn(expr source.TypeExpr, usage Usage, implicitlyNullable bool, qualify func(string) string) (Type, error) {
	if expr == nil {
		return nil, nil
	}
	switch e := expr.(type) {
	case *source.NamedTypeExpr:
		return r.named(e.Name, usage, implicitlyNullable, qualify), nil

	case *source.NullableTypeExpr:
		inner, ok := e.Inner.(*source.NamedTypeExpr)
		if !ok {
			return nil, unsupported(expr, "nullable marker on a composite type")
		}
		n := r.named(inner.Name, usage, true, qualify)
		if n.Builtin && (n.Name == "mixed" || n.Name == "null") {
			return nil, unsupported(expr, fmt.Sprintf("%s cannot be marked nullable", n.Name))
		}
		return n, nil

	case *source.UnionTypeExpr:
		return r.union(e, usage, implicitlyNullable, qualify)

	case *source.IntersectionTypeExpr:
		if implicitlyNullable {
			return nil, unsupported(expr, "intersection types cannot be implicitly nullable")
		}
		return r.intersection(e, usage, qualify)
	}
	return nil, unsupported(expr, fmt.Sprintf("type fragment %T", expr))
}

func (r *Resolver) named(name string, usage Usage, nullable bool, qualify func(string) string) *Named {
	name = strings.TrimSpace(name)
	if r.cfg.IsBuiltin(name, usage) {
		return &Named{Name: strings.ToLower(name), Nullable: nullable, Builtin: true}
	}
	return &Named{Name: qualifyName(name, qualify), Nullable: nullable}
}

func qualifyName(name string, qualify func(string) string) string {
	if qualify == nil {
		return strings.TrimPrefix(name, "\\")
	}
	switch strings.ToLower(name) {
	case "self", "parent", "static":
		return name
	}
	return qualify(name)
}

func (r *Resolver) union(e *source.UnionTypeExpr, usage Usage, implicitlyNullable bool, qualify func(string) string) (Type, error) {
	if len(e.Types) < 2 {
		return nil, unsupported(e, "union with fewer than two members")
	}
	u := &Union{Types: make([]Type, 0, len(e.Types)+1)}
	hasNull := false
	for _, member := range e.Types {
		switch m := member.(type) {
		case *source.NamedTypeExpr:
			n := r.named(m.Name, usage, false, qualify)
			if n.Builtin && n.Name == "null" {
				hasNull = true
			}
			u.Types = append(u.Types, n)
		case *source.IntersectionTypeExpr:
			in, err := r.intersection(m, usage, qualify)
			if err != nil {
				return nil, err
			}
			u.Types = append(u.Types, in)
		default:
			return nil, unsupported(member, "union member must be a name or an intersection")
		}
	}
	if implicitlyNullable && !hasNull {
		u.Types = append(u.Types, &Named{Name: "null", Builtin: true})
	}
	return u, nil
}

func (r *Resolver) intersection(e *source.IntersectionTypeExpr, usage Usage, qualify func(string) string) (*Intersection, error) {
	if len(e.Types) < 2 {
		return nil, unsupported(e, "intersection with fewer than two members")
	}
	out := &Intersection{Types: make([]*Named, 0, len(e.Types))}
	for _, member := range e.Types {
		m, ok := member.(*source.NamedTypeExpr)
		if !ok {
			return nil, unsupported(member, "intersection member must be a class name")
		}
		n := r.named(m.Name, usage, false, qualify)
		if n.Builtin {
			return nil, unsupported(member, fmt.Sprintf("builtin type %s in an intersection", n.Name))
		}
		out.Types = append(out.Types, n)
	}
	return out, nil
}

func unsupported(n source.Node, msg string) error {
	err := errors.New(errors.CodeUnsupportedConstruct, msg)
	return errors.AddContext(err, errors.CtxNode, fmt.Sprintf("line %d", n.Pos().Line))
}
