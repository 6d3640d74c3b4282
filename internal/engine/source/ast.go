// Package source is the syntax model consumed by the reflection engine. A
// File is produced once by the parser and never mutated afterwards.
package source

import "strings"

// Position locates a node in its file. Lines and columns are 1-based, byte
// offsets are 0-based and End is exclusive.
type Position struct {
	Line      int
	Column    int
	EndLine   int
	StartByte int
	EndByte   int
}

func (p Position) Pos() Position { return p }

// Node is implemented by every syntax node.
type Node interface {
	Pos() Position
}

type File struct {
	Path       string
	Source     []byte
	Namespaces []*Namespace
}

// Text returns the raw source covered by n, or "" when the file carries no
// source or the node has no byte span (synthetic nodes).
func (f *File) Text(n Node) string {
	if f == nil || n == nil {
		return ""
	}
	p := n.Pos()
	if p.EndByte <= p.StartByte || p.EndByte > len(f.Source) {
		return ""
	}
	return string(f.Source[p.StartByte:p.EndByte])
}

// Classes returns every class-like declaration in the file, in source order.
func (f *File) Classes() []*ClassLike {
	var out []*ClassLike
	for _, ns := range f.Namespaces {
		out = append(out, ns.Classes...)
	}
	return out
}

// Namespace is one namespace block. Files without a namespace statement carry
// a single Namespace with an empty name.
type Namespace struct {
	Position
	Name      string
	Uses      []*UseImport
	Classes   []*ClassLike
	Functions []*Function
	Constants []*ConstDecl
	Defines   []*Call
}

type UseKind int

const (
	UseClass UseKind = iota
	UseFunction
	UseConstant
)

// UseImport is one imported name, `use A\B as C;` yields Name "A\B", Alias "C".
type UseImport struct {
	Position
	Kind  UseKind
	Name  string
	Alias string
}

// LocalName is the name the import is visible under.
func (u *UseImport) LocalName() string {
	if u.Alias != "" {
		return u.Alias
	}
	if idx := strings.LastIndex(u.Name, `\`); idx >= 0 {
		return u.Name[idx+1:]
	}
	return u.Name
}

type ClassKind int

const (
	KindClass ClassKind = iota
	KindInterface
	KindTrait
	KindEnum
)

func (k ClassKind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindTrait:
		return "trait"
	case KindEnum:
		return "enum"
	default:
		return "class"
	}
}

// Modifier is a bitmask of declaration modifiers.
type Modifier int

const (
	ModPublic Modifier = 1 << iota
	ModProtected
	ModPrivate
	ModStatic
	ModAbstract
	ModFinal
	ModReadonly
)

const VisibilityMask = ModPublic | ModProtected | ModPrivate

// Visibility returns the visibility bits, defaulting to public.
func (m Modifier) Visibility() Modifier {
	if v := m & VisibilityMask; v != 0 {
		return v
	}
	return ModPublic
}

// WithVisibility replaces the visibility bits.
func (m Modifier) WithVisibility(v Modifier) Modifier {
	return (m &^ VisibilityMask) | (v & VisibilityMask)
}

func (m Modifier) Has(flag Modifier) bool { return m&flag != 0 }

// Names renders modifiers in declaration order.
func (m Modifier) Names() []string {
	var out []string
	if m.Has(ModAbstract) {
		out = append(out, "abstract")
	}
	if m.Has(ModFinal) {
		out = append(out, "final")
	}
	switch {
	case m.Has(ModPrivate):
		out = append(out, "private")
	case m.Has(ModProtected):
		out = append(out, "protected")
	case m.Has(ModPublic):
		out = append(out, "public")
	}
	if m.Has(ModStatic) {
		out = append(out, "static")
	}
	if m.Has(ModReadonly) {
		out = append(out, "readonly")
	}
	return out
}

type ClassLike struct {
	Position
	Kind        ClassKind
	Name        string // short name, empty for anonymous classes
	Modifiers   Modifier
	Extends     []string // at most one for classes, many for interfaces
	Implements  []string
	BackingType TypeExpr // enums only
	Attributes  []*Attribute
	DocComment  string
	TraitUses   []*TraitUse
	Constants   []*ClassConst
	Properties  []*Property
	Methods     []*Method
	Cases       []*EnumCase
	// Unsupported is set when the body could not be modelled faithfully.
	Unsupported string
}

// TraitUse is a `use A, B { ... }` statement inside a class body.
type TraitUse struct {
	Position
	Traits      []string
	Adaptations []*TraitAdaptation
}

// TraitAdaptation is one rule of a trait use block. Exactly one of Insteadof
// or (Alias and/or Visibility) is populated.
type TraitAdaptation struct {
	Position
	Trait      string // empty when the method is not qualified
	Method     string
	Insteadof  []string
	Alias      string
	Visibility Modifier
}

type Method struct {
	Position
	Name       string
	Modifiers  Modifier
	Params     []*Param
	ReturnType TypeExpr
	ByRef      bool
	Attributes []*Attribute
	DocComment string
	HasBody    bool
	Generator  bool
}

type Function struct {
	Position
	Name       string
	Params     []*Param
	ReturnType TypeExpr
	ByRef      bool
	Attributes []*Attribute
	DocComment string
	Generator  bool
}

type Param struct {
	Position
	Name       string // without the leading '$'
	Type       TypeExpr
	Default    Expr
	Variadic   bool
	ByRef      bool
	Promoted   Modifier // visibility/readonly of a promoted constructor parameter, 0 otherwise
	Attributes []*Attribute
}

type Property struct {
	Position
	Name       string // without the leading '$'
	Modifiers  Modifier
	Type       TypeExpr
	Default    Expr
	Attributes []*Attribute
	DocComment string
	Promoted   bool
}

type ClassConst struct {
	Position
	Name       string
	Modifiers  Modifier
	Type       TypeExpr
	Value      Expr
	Attributes []*Attribute
	DocComment string
}

type EnumCase struct {
	Position
	Name       string
	Value      Expr
	Attributes []*Attribute
	DocComment string
}

// ConstDecl is a namespace-level `const NAME = expr;`.
type ConstDecl struct {
	Position
	Name       string
	Value      Expr
	DocComment string
}

type Attribute struct {
	Position
	Name string
	Args []*Argument
}

type Argument struct {
	Position
	Name   string // named argument, empty for positional
	Value  Expr
	Unpack bool
}
