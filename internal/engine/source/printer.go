package source

import (
	"strconv"
	"strings"
)

// Operator precedence (higher = binds tighter)
var operatorPrecedence = map[string]int{
	"or":  1,
	"xor": 2,
	"and": 3,
	"??":  5,
	"||":  6,
	"&&":  7,
	"|":   8,
	"^":   9,
	"&":   10,
	"==":  11,
	"!=":  11,
	"<>":  11,
	"===": 11,
	"!==": 11,
	"<=>": 11,
	"<":   12,
	">":   12,
	"<=":  12,
	">=":  12,
	".":   13,
	"<<":  14,
	">>":  14,
	"+":   15,
	"-":   15,
	"*":   16,
	"/":   16,
	"%":   16,
	"**":  18,
}

const ternaryPrecedence = 4

func precedence(op string) int {
	if p, ok := operatorPrecedence[op]; ok {
		return p
	}
	return 20
}

// PrintExpr renders an expression as PHP source. It is used when the original
// text is unavailable, e.g. for synthetic nodes.
func PrintExpr(e Expr) string {
	var b strings.Builder
	printExpr(&b, e, 0)
	return b.String()
}

// PrintType renders a type annotation as written.
func PrintType(t TypeExpr) string {
	switch t := t.(type) {
	case nil:
		return ""
	case *NamedTypeExpr:
		return t.Name
	case *NullableTypeExpr:
		return "?" + PrintType(t.Inner)
	case *UnionTypeExpr:
		parts := make([]string, len(t.Types))
		for i, sub := range t.Types {
			if _, ok := sub.(*IntersectionTypeExpr); ok {
				parts[i] = "(" + PrintType(sub) + ")"
				continue
			}
			parts[i] = PrintType(sub)
		}
		return strings.Join(parts, "|")
	case *IntersectionTypeExpr:
		parts := make([]string, len(t.Types))
		for i, sub := range t.Types {
			parts[i] = PrintType(sub)
		}
		return strings.Join(parts, "&")
	}
	return ""
}

func printExpr(b *strings.Builder, e Expr, parent int) {
	switch e := e.(type) {
	case nil:
	case *IntLit:
		if e.Raw != "" {
			b.WriteString(e.Raw)
			return
		}
		b.WriteString(strconv.FormatInt(e.Value, 10))
	case *FloatLit:
		if e.Raw != "" {
			b.WriteString(e.Raw)
			return
		}
		s := strconv.FormatFloat(e.Value, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		b.WriteString(s)
	case *StringLit:
		if e.Raw != "" {
			b.WriteString(e.Raw)
			return
		}
		b.WriteString(QuoteString(e.Value))
	case *InterpolatedString:
		b.WriteByte('"')
		for _, part := range e.Parts {
			if lit, ok := part.(*StringLit); ok {
				b.WriteString(escapeDouble(lit.Value))
				continue
			}
			b.WriteByte('{')
			printExpr(b, part, 0)
			b.WriteByte('}')
		}
		b.WriteByte('"')
	case *ArrayLit:
		b.WriteByte('[')
		for i, item := range e.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			if item.Unpack {
				b.WriteString("...")
			}
			if item.Key != nil {
				printExpr(b, item.Key, 0)
				b.WriteString(" => ")
			}
			if item.ByRef {
				b.WriteByte('&')
			}
			printExpr(b, item.Value, 0)
		}
		b.WriteByte(']')
	case *BinaryExpr:
		p := precedence(e.Op)
		wrap := p < parent
		if wrap {
			b.WriteByte('(')
		}
		left, right := p, p+1
		if e.Op == "**" || e.Op == "??" {
			left, right = p+1, p
		}
		printExpr(b, e.Left, left)
		b.WriteString(" " + e.Op + " ")
		printExpr(b, e.Right, right)
		if wrap {
			b.WriteByte(')')
		}
	case *UnaryExpr:
		b.WriteString(e.Op)
		printExpr(b, e.Operand, 17)
	case *TernaryExpr:
		wrap := ternaryPrecedence < parent
		if wrap {
			b.WriteByte('(')
		}
		printExpr(b, e.Cond, ternaryPrecedence+1)
		if e.Then == nil {
			b.WriteString(" ?: ")
		} else {
			b.WriteString(" ? ")
			printExpr(b, e.Then, ternaryPrecedence+1)
			b.WriteString(" : ")
		}
		printExpr(b, e.Else, ternaryPrecedence+1)
		if wrap {
			b.WriteByte(')')
		}
	case *ParenExpr:
		b.WriteByte('(')
		printExpr(b, e.Inner, 0)
		b.WriteByte(')')
	case *CastExpr:
		b.WriteString("(" + e.Type + ") ")
		printExpr(b, e.Expr, 17)
	case *ConstFetch:
		b.WriteString(e.Name)
	case *ClassConstFetch:
		b.WriteString(e.Class + "::" + e.Name)
	case *MagicConst:
		b.WriteString(e.Kind.String())
	case *Call:
		b.WriteString(e.Name)
		printArgs(b, e.Args)
	case *New:
		b.WriteString("new " + e.Class)
		printArgs(b, e.Args)
	case *Variable:
		b.WriteString("$" + e.Name)
	case *PropertyFetch:
		printExpr(b, e.Object, 20)
		if e.NullSafe {
			b.WriteString("?->")
		} else {
			b.WriteString("->")
		}
		b.WriteString(e.Property)
	case *StaticPropertyFetch:
		b.WriteString(e.Class + "::$" + e.Property)
	case *IndexFetch:
		printExpr(b, e.Target, 20)
		b.WriteByte('[')
		printExpr(b, e.Index, 0)
		b.WriteByte(']')
	case *Closure:
		if e.Static {
			b.WriteString("static ")
		}
		if e.Arrow {
			b.WriteString("fn() => ...")
		} else {
			b.WriteString("function () {...}")
		}
	case *Unknown:
		b.WriteString("/* " + e.Kind + " */")
	}
}

func printArgs(b *strings.Builder, args []*Argument) {
	b.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		if arg.Unpack {
			b.WriteString("...")
		}
		if arg.Name != "" {
			b.WriteString(arg.Name + ": ")
		}
		printExpr(b, arg.Value, 0)
	}
	b.WriteByte(')')
}

// QuoteString renders s as a single-quoted PHP string literal.
func QuoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

func escapeDouble(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return r.Replace(s)
}
