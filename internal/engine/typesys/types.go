// Package typesys turns type annotations into structured type descriptors.
package typesys

import "strings"

// Type is a resolved type descriptor: *Named, *Union or *Intersection. A nil
// Type means the declaration carries no type.
type Type interface {
	String() string
	AllowsNull() bool
	typeNode()
}

// Named is a single name. Builtin reports whether the name was a builtin
// keyword at its use-site; otherwise it refers to a class-like.
type Named struct {
	Name     string
	Nullable bool
	Builtin  bool
}

// Union lists alternatives; members are *Named or *Intersection.
type Union struct {
	Types []Type
}

// Intersection lists class-like names that must all be satisfied.
type Intersection struct {
	Types []*Named
}

func (*Named) typeNode()        {}
func (*Union) typeNode()        {}
func (*Intersection) typeNode() {}

func (n *Named) String() string {
	if n.Nullable && !n.implicitlyNullable() {
		return "?" + n.Name
	}
	return n.Name
}

// AllowsNull covers explicit nullability and the types that include null.
func (n *Named) AllowsNull() bool {
	return n.Nullable || n.implicitlyNullable()
}

func (n *Named) implicitlyNullable() bool {
	if !n.Builtin {
		return false
	}
	switch strings.ToLower(n.Name) {
	case "mixed", "null":
		return true
	}
	return false
}

// IsClassReference reports a non-builtin name, i.e. a class, interface, enum
// or one of self/parent/static used as a class.
func (n *Named) IsClassReference() bool {
	return !n.Builtin
}

func (u *Union) String() string {
	parts := make([]string, len(u.Types))
	for i, t := range u.Types {
		if _, ok := t.(*Intersection); ok {
			parts[i] = "(" + t.String() + ")"
			continue
		}
		parts[i] = t.String()
	}
	return strings.Join(parts, "|")
}

func (u *Union) AllowsNull() bool {
	for _, t := range u.Types {
		if t.AllowsNull() {
			return true
		}
	}
	return false
}

func (i *Intersection) String() string {
	parts := make([]string, len(i.Types))
	for k, t := range i.Types {
		parts[k] = t.Name
	}
	return strings.Join(parts, "&")
}

func (*Intersection) AllowsNull() bool { return false }

// RenderOptions controls display-only rewriting.
type RenderOptions struct {
	// ExpandIterable renders iterable as Traversable|array.
	ExpandIterable bool
}

// Render stringifies t for display. The descriptor itself is not changed.
func Render(t Type, opts RenderOptions) string {
	if t == nil {
		return ""
	}
	if !opts.ExpandIterable {
		return t.String()
	}
	switch t := t.(type) {
	case *Named:
		if t.Builtin && strings.EqualFold(t.Name, "iterable") {
			if t.Nullable {
				return "Traversable|array|null"
			}
			return "Traversable|array"
		}
		return t.String()
	case *Union:
		parts := make([]string, 0, len(t.Types)+1)
		seen := make(map[string]bool)
		for _, member := range t.Types {
			rendered := Render(member, opts)
			if _, ok := member.(*Intersection); ok {
				rendered = "(" + rendered + ")"
			}
			for _, p := range splitTopLevelUnion(rendered) {
				if seen[strings.ToLower(p)] {
					continue
				}
				seen[strings.ToLower(p)] = true
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, "|")
	}
	return t.String()
}

func splitTopLevelUnion(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '|':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}
