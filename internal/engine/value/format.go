package value

import (
	"math"
	"strconv"
	"strings"
)

// displayPrecision is the significant-digit count used for float to string
// conversion.
const displayPrecision = 14

// FormatFloat renders f the way a string cast does: 14 significant digits,
// exponent notation outside [1e-4, 1e15).
func FormatFloat(f float64) string {
	return formatFloatDigits(f, displayPrecision)
}

// exportFloat renders f with the shortest round-tripping digits and always
// keeps a fractional part, as var_export does.
func exportFloat(f float64) string {
	s := formatFloatDigits(f, -1)
	if strings.ContainsAny(s, ".EN") {
		return s
	}
	return s + ".0"
}

func formatFloatDigits(f float64, precision int) string {
	switch {
	case math.IsNaN(f):
		return "NAN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	case f == 0:
		if math.Signbit(f) {
			return "-0"
		}
		return "0"
	}

	ndigit := precision
	formatted := strconv.FormatFloat(math.Abs(f), 'e', precision-1, 64)
	if precision < 0 {
		ndigit = 17
		formatted = strconv.FormatFloat(math.Abs(f), 'e', -1, 64)
	}
	mantissa, expPart, _ := strings.Cut(formatted, "e")
	exp, _ := strconv.Atoi(expPart)
	digits := strings.TrimRight(strings.Replace(mantissa, ".", "", 1), "0")
	if digits == "" {
		digits = "0"
	}
	decpt := exp + 1

	var b strings.Builder
	if f < 0 {
		b.WriteByte('-')
	}
	if decpt < -3 || decpt > ndigit {
		b.WriteByte(digits[0])
		b.WriteByte('.')
		if len(digits) > 1 {
			b.WriteString(digits[1:])
		} else {
			b.WriteByte('0')
		}
		b.WriteByte('E')
		if exp < 0 {
			b.WriteByte('-')
			exp = -exp
		} else {
			b.WriteByte('+')
		}
		b.WriteString(strconv.Itoa(exp))
		return b.String()
	}
	if decpt <= 0 {
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -decpt))
		b.WriteString(digits)
		return b.String()
	}
	if len(digits) <= decpt {
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", decpt-len(digits)))
		return b.String()
	}
	b.WriteString(digits[:decpt])
	b.WriteByte('.')
	b.WriteString(digits[decpt:])
	return b.String()
}

// Export renders v as source text, like var_export on a single line.
func Export(v Value) string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return exportFloat(v.f)
	case KindString:
		s := strings.ReplaceAll(v.s, `\`, `\\`)
		s = strings.ReplaceAll(s, `'`, `\'`)
		return "'" + s + "'"
	case KindArray:
		var b strings.Builder
		b.WriteByte('[')
		first := true
		list := v.arr.IsList()
		v.arr.Each(func(k Key, item Value) bool {
			if !first {
				b.WriteString(", ")
			}
			first = false
			if !list {
				b.WriteString(Export(k.Value()))
				b.WriteString(" => ")
			}
			b.WriteString(Export(item))
			return true
		})
		b.WriteByte(']')
		return b.String()
	case KindEnumCase:
		return `\` + strings.TrimPrefix(v.class, `\`) + "::" + v.s
	case KindUnresolved:
		return "<unresolved>"
	}
	return ""
}
