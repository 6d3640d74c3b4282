package parser

import (
	"math/big"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"staticreflect/internal/engine/source"
)

// Expr converts an expression node. Forms outside the modelled subset become
// *source.Unknown so evaluation can fail on them precisely.
func (c *ExtractionContext) Expr(node *sitter.Node) source.Expr {
	if node == nil {
		return nil
	}
	pos := c.Position(node)
	switch node.Kind() {
	case "integer":
		return intLiteral(pos, c.Text(node))
	case "float":
		raw := c.Text(node)
		f, err := strconv.ParseFloat(strings.ReplaceAll(raw, "_", ""), 64)
		if err != nil {
			return &source.Unknown{Position: pos, Kind: node.Kind()}
		}
		return &source.FloatLit{Position: pos, Value: f, Raw: raw}
	case "string":
		raw := c.Text(node)
		return &source.StringLit{Position: pos, Value: decodeSingleQuoted(raw), Raw: raw}
	case "encapsed_string":
		return c.encapsed(node, pos)
	case "heredoc":
		return c.heredoc(node, pos, true)
	case "nowdoc":
		return c.heredoc(node, pos, false)
	case "boolean", "null":
		return &source.ConstFetch{Position: pos, Name: c.Name(node)}
	case "name":
		name := c.Name(node)
		if kind, ok := source.LookupMagic(name); ok {
			return &source.MagicConst{Position: pos, Kind: kind}
		}
		return &source.ConstFetch{Position: pos, Name: name}
	case "qualified_name", "relative_name":
		return &source.ConstFetch{Position: pos, Name: c.Name(node)}
	case "binary_expression":
		return c.binary(node, pos)
	case "unary_op_expression":
		return c.unary(node, pos)
	case "conditional_expression":
		return &source.TernaryExpr{
			Position: pos,
			Cond:     c.Expr(node.ChildByFieldName("condition")),
			Then:     c.Expr(node.ChildByFieldName("body")),
			Else:     c.Expr(node.ChildByFieldName("alternative")),
		}
	case "parenthesized_expression":
		parts := namedChildren(node)
		if len(parts) == 0 {
			return &source.Unknown{Position: pos, Kind: node.Kind()}
		}
		return &source.ParenExpr{Position: pos, Inner: c.Expr(parts[0])}
	case "cast_expression":
		return c.cast(node, pos)
	case "array_creation_expression":
		return c.array(node, pos)
	case "subscript_expression":
		parts := namedChildren(node)
		if len(parts) != 2 {
			return &source.Unknown{Position: pos, Kind: node.Kind()}
		}
		return &source.IndexFetch{Position: pos, Target: c.Expr(parts[0]), Index: c.Expr(parts[1])}
	case "class_constant_access_expression":
		return c.classConstant(node, pos)
	case "scoped_property_access_expression":
		parts := namedChildren(node)
		if len(parts) != 2 || !isStaticScope(parts[0]) {
			return &source.Unknown{Position: pos, Kind: node.Kind()}
		}
		return &source.StaticPropertyFetch{
			Position: pos,
			Class:    c.Name(parts[0]),
			Property: strings.TrimPrefix(c.Name(parts[1]), "$"),
		}
	case "member_access_expression", "nullsafe_member_access_expression":
		name := node.ChildByFieldName("name")
		if name == nil || name.Kind() != "name" {
			return &source.Unknown{Position: pos, Kind: node.Kind()}
		}
		return &source.PropertyFetch{
			Position: pos,
			Object:   c.Expr(node.ChildByFieldName("object")),
			Property: c.Name(name),
			NullSafe: node.Kind() == "nullsafe_member_access_expression",
		}
	case "function_call_expression":
		fn := node.ChildByFieldName("function")
		if fn == nil || !isStaticScope(fn) {
			return &source.Unknown{Position: pos, Kind: node.Kind()}
		}
		return &source.Call{Position: pos, Name: c.Name(fn), Args: c.Arguments(node.ChildByFieldName("arguments"))}
	case "object_creation_expression":
		cls := childOfKind(node, "name", "qualified_name", "relative_name", "relative_scope")
		if cls == nil {
			return &source.Unknown{Position: pos, Kind: node.Kind()}
		}
		return &source.New{Position: pos, Class: c.Name(cls), Args: c.Arguments(childOfKind(node, "arguments"))}
	case "variable_name":
		return &source.Variable{Position: pos, Name: strings.TrimPrefix(c.Name(node), "$")}
	case "anonymous_function", "anonymous_function_creation_expression", "arrow_function":
		return &source.Closure{
			Position: pos,
			Static:   childOfKind(node, "static_modifier") != nil || c.hasToken(node, "static"),
			Params:   c.Params(node.ChildByFieldName("parameters")),
			Arrow:    node.Kind() == "arrow_function",
		}
	}
	return &source.Unknown{Position: pos, Kind: node.Kind()}
}

// isStaticScope reports nodes naming a class or function at compile time.
func isStaticScope(node *sitter.Node) bool {
	switch node.Kind() {
	case "name", "qualified_name", "relative_name", "relative_scope":
		return true
	}
	return false
}

// intLiteral parses decimal, hex, octal and binary literals. Values beyond
// the int64 range become floats the way the language does.
func intLiteral(pos source.Position, raw string) source.Expr {
	digits := strings.ReplaceAll(raw, "_", "")
	lower := strings.ToLower(digits)
	base := 10
	switch {
	case strings.HasPrefix(lower, "0x"):
		base, digits = 16, digits[2:]
	case strings.HasPrefix(lower, "0b"):
		base, digits = 2, digits[2:]
	case strings.HasPrefix(lower, "0o"):
		base, digits = 8, digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		base, digits = 8, digits[1:]
	}
	if v, err := strconv.ParseInt(digits, base, 64); err == nil {
		return &source.IntLit{Position: pos, Value: v, Raw: raw}
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return &source.Unknown{Position: pos, Kind: "integer"}
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return &source.FloatLit{Position: pos, Value: f, Raw: raw}
}

func (c *ExtractionContext) binary(node *sitter.Node, pos source.Position) source.Expr {
	op := node.ChildByFieldName("operator")
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if op == nil || left == nil || right == nil {
		return &source.Unknown{Position: pos, Kind: node.Kind()}
	}
	return &source.BinaryExpr{
		Position: pos,
		Op:       strings.ToLower(c.Text(op)),
		Left:     c.Expr(left),
		Right:    c.Expr(right),
	}
}

func (c *ExtractionContext) unary(node *sitter.Node, pos source.Position) source.Expr {
	operand := node.ChildByFieldName("argument")
	if operand == nil {
		parts := namedChildren(node)
		if len(parts) == 0 {
			return &source.Unknown{Position: pos, Kind: node.Kind()}
		}
		operand = parts[len(parts)-1]
	}
	op := ""
	if o := node.ChildByFieldName("operator"); o != nil {
		op = c.Text(o)
	} else if first := node.Child(0); first != nil && !first.IsNamed() {
		op = c.Text(first)
	}
	if op == "@" {
		return &source.Unknown{Position: pos, Kind: "error_suppression"}
	}
	return &source.UnaryExpr{Position: pos, Op: op, Operand: c.Expr(operand)}
}

var castTypes = map[string]string{
	"int":     "int",
	"integer": "int",
	"bool":    "bool",
	"boolean": "bool",
	"float":   "float",
	"double":  "float",
	"real":    "float",
	"string":  "string",
	"binary":  "string",
	"array":   "array",
	"object":  "object",
	"unset":   "unset",
}

func (c *ExtractionContext) cast(node *sitter.Node, pos source.Position) source.Expr {
	typ := node.ChildByFieldName("type")
	val := node.ChildByFieldName("value")
	if typ == nil || val == nil {
		return &source.Unknown{Position: pos, Kind: node.Kind()}
	}
	name, ok := castTypes[strings.ToLower(c.Name(typ))]
	if !ok {
		return &source.Unknown{Position: pos, Kind: node.Kind()}
	}
	return &source.CastExpr{Position: pos, Type: name, Expr: c.Expr(val)}
}

func (c *ExtractionContext) array(node *sitter.Node, pos source.Position) source.Expr {
	arr := &source.ArrayLit{Position: pos, Short: !c.hasToken(node, "array")}
	for _, el := range childrenOfKind(node, "array_element_initializer") {
		item := &source.ArrayItem{Position: c.Position(el)}
		parts := namedChildren(el)
		switch {
		case len(parts) == 1 && parts[0].Kind() == "variadic_unpacking":
			item.Unpack = true
			if inner := namedChildren(parts[0]); len(inner) > 0 {
				item.Value = c.Expr(inner[0])
			}
		case c.hasToken(el, "=>") && len(parts) >= 2:
			item.Key = c.Expr(parts[0])
			item.Value = c.byRefValue(item, parts[len(parts)-1])
		case len(parts) >= 1:
			item.Value = c.byRefValue(item, parts[len(parts)-1])
		default:
			continue
		}
		if c.hasToken(el, "...") {
			item.Unpack = true
		}
		arr.Items = append(arr.Items, item)
	}
	return arr
}

func (c *ExtractionContext) byRefValue(item *source.ArrayItem, node *sitter.Node) source.Expr {
	if node.Kind() == "by_ref" {
		item.ByRef = true
		if inner := namedChildren(node); len(inner) > 0 {
			return c.Expr(inner[0])
		}
	}
	return c.Expr(node)
}

func (c *ExtractionContext) classConstant(node *sitter.Node, pos source.Position) source.Expr {
	parts := namedChildren(node)
	last := node.Child(node.ChildCount() - 1)
	if len(parts) == 0 || last == nil || !isStaticScope(parts[0]) {
		return &source.Unknown{Position: pos, Kind: node.Kind()}
	}
	return &source.ClassConstFetch{Position: pos, Class: c.Name(parts[0]), Name: c.Name(last)}
}

// Arguments reads a call or attribute argument list.
func (c *ExtractionContext) Arguments(node *sitter.Node) []*source.Argument {
	var out []*source.Argument
	for _, a := range namedChildren(node) {
		arg := &source.Argument{Position: c.Position(a)}
		if a.Kind() != "argument" {
			arg.Value = &source.Unknown{Position: arg.Position, Kind: a.Kind()}
			out = append(out, arg)
			continue
		}
		if name := a.ChildByFieldName("name"); name != nil {
			arg.Name = c.Name(name)
		}
		parts := namedChildren(a)
		if len(parts) == 0 {
			continue
		}
		value := parts[len(parts)-1]
		if value.Kind() == "variadic_unpacking" {
			arg.Unpack = true
			if inner := namedChildren(value); len(inner) > 0 {
				value = inner[0]
			}
		}
		if c.hasToken(a, "...") {
			arg.Unpack = true
		}
		arg.Value = c.Expr(value)
		out = append(out, arg)
	}
	return out
}
