package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"staticreflect/internal/engine/source"
)

// Type converts a type annotation node. It returns nil for a missing node.
func (c *ExtractionContext) Type(node *sitter.Node) source.TypeExpr {
	if node == nil {
		return nil
	}
	pos := c.Position(node)
	switch node.Kind() {
	case "optional_type":
		parts := namedChildren(node)
		if len(parts) == 0 {
			return nil
		}
		return &source.NullableTypeExpr{Position: pos, Inner: c.Type(parts[0])}
	case "union_type", "disjunctive_normal_form_type":
		u := &source.UnionTypeExpr{Position: pos}
		for _, part := range namedChildren(node) {
			t := c.Type(part)
			// nested unions flatten
			if inner, ok := t.(*source.UnionTypeExpr); ok {
				u.Types = append(u.Types, inner.Types...)
				continue
			}
			if t != nil {
				u.Types = append(u.Types, t)
			}
		}
		return u
	case "intersection_type":
		in := &source.IntersectionTypeExpr{Position: pos}
		for _, part := range namedChildren(node) {
			if t := c.Type(part); t != nil {
				in.Types = append(in.Types, t)
			}
		}
		return in
	case "type", "_type":
		if parts := namedChildren(node); len(parts) == 1 {
			return c.Type(parts[0])
		}
	}
	return &source.NamedTypeExpr{Position: pos, Name: c.Name(node)}
}
