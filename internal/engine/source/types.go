package source

// TypeExpr is a type annotation fragment as written in source.
type TypeExpr interface {
	Node
	typeNode()
}

// NamedTypeExpr is a bare name: a keyword such as `int` or a class reference.
type NamedTypeExpr struct {
	Position
	Name string
}

type NullableTypeExpr struct {
	Position
	Inner TypeExpr
}

type UnionTypeExpr struct {
	Position
	Types []TypeExpr
}

type IntersectionTypeExpr struct {
	Position
	Types []TypeExpr
}

func (*NamedTypeExpr) typeNode()        {}
func (*NullableTypeExpr) typeNode()     {}
func (*UnionTypeExpr) typeNode()        {}
func (*IntersectionTypeExpr) typeNode() {}
