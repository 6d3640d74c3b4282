package source

import "strings"

// Expr is an expression fragment.
type Expr interface {
	Node
	exprNode()
}

type IntLit struct {
	Position
	Value int64
	Raw   string
}

// FloatLit also carries integer literals that overflow int64.
type FloatLit struct {
	Position
	Value float64
	Raw   string
}

type StringLit struct {
	Position
	Value string
	Raw   string
}

// InterpolatedString is a double-quoted or heredoc string with embedded
// expressions. Parts are StringLit or arbitrary expressions.
type InterpolatedString struct {
	Position
	Parts []Expr
}

type ArrayItem struct {
	Position
	Key    Expr // nil for positional items
	Value  Expr
	Unpack bool
	ByRef  bool
}

type ArrayLit struct {
	Position
	Items []*ArrayItem
	Short bool // [] rather than array()
}

type BinaryExpr struct {
	Position
	Op    string
	Left  Expr
	Right Expr
}

type UnaryExpr struct {
	Position
	Op      string
	Operand Expr
}

// TernaryExpr is `Cond ? Then : Else`; Then is nil for `Cond ?: Else`.
type TernaryExpr struct {
	Position
	Cond Expr
	Then Expr
	Else Expr
}

type ParenExpr struct {
	Position
	Inner Expr
}

type CastExpr struct {
	Position
	Type string // int, float, string, bool, array, object, unset
	Expr Expr
}

// ConstFetch is a bare name used as a value: `FOO`, `\NS\FOO`, `true`.
type ConstFetch struct {
	Position
	Name string
}

// ClassConstFetch is `Class::NAME`, including `Foo::class`. Class is the
// name as written (`self`, `parent`, `static` included).
type ClassConstFetch struct {
	Position
	Class string
	Name  string
}

type MagicKind int

const (
	MagicLine MagicKind = iota
	MagicFile
	MagicDir
	MagicNamespace
	MagicClass
	MagicFunction
	MagicMethod
	MagicTrait
	MagicProperty
)

var magicNames = map[MagicKind]string{
	MagicLine:      "__LINE__",
	MagicFile:      "__FILE__",
	MagicDir:       "__DIR__",
	MagicNamespace: "__NAMESPACE__",
	MagicClass:     "__CLASS__",
	MagicFunction:  "__FUNCTION__",
	MagicMethod:    "__METHOD__",
	MagicTrait:     "__TRAIT__",
	MagicProperty:  "__PROPERTY__",
}

func (k MagicKind) String() string { return magicNames[k] }

// LookupMagic maps a case-insensitive magic constant name to its kind.
func LookupMagic(name string) (MagicKind, bool) {
	for kind, n := range magicNames {
		if strings.EqualFold(n, name) {
			return kind, true
		}
	}
	return 0, false
}

type MagicConst struct {
	Position
	Kind MagicKind
}

type Call struct {
	Position
	Name string
	Args []*Argument
}

type New struct {
	Position
	Class string
	Args  []*Argument
}

type Variable struct {
	Position
	Name string
}

type PropertyFetch struct {
	Position
	Object   Expr
	Property string
	NullSafe bool
}

type StaticPropertyFetch struct {
	Position
	Class    string
	Property string
}

type IndexFetch struct {
	Position
	Target Expr
	Index  Expr
}

// Closure covers anonymous functions and arrow functions; the body is not
// modelled.
type Closure struct {
	Position
	Static bool
	Params []*Param
	Arrow  bool
}

// Unknown stands for any syntactic form the parser does not model. Kind is
// the parser's node kind.
type Unknown struct {
	Position
	Kind string
}

func (*IntLit) exprNode()              {}
func (*FloatLit) exprNode()            {}
func (*StringLit) exprNode()           {}
func (*InterpolatedString) exprNode()  {}
func (*ArrayLit) exprNode()            {}
func (*BinaryExpr) exprNode()          {}
func (*UnaryExpr) exprNode()           {}
func (*TernaryExpr) exprNode()         {}
func (*ParenExpr) exprNode()           {}
func (*CastExpr) exprNode()            {}
func (*ConstFetch) exprNode()          {}
func (*ClassConstFetch) exprNode()     {}
func (*MagicConst) exprNode()          {}
func (*Call) exprNode()                {}
func (*New) exprNode()                 {}
func (*Variable) exprNode()            {}
func (*PropertyFetch) exprNode()       {}
func (*StaticPropertyFetch) exprNode() {}
func (*IndexFetch) exprNode()          {}
func (*Closure) exprNode()             {}
func (*Unknown) exprNode()             {}
