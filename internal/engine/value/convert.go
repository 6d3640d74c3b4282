package value

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNonNumeric is returned when a string without a numeric prefix is used
// in arithmetic.
var ErrNonNumeric = errors.New("non-numeric value")

// ErrUnsupportedOperand is returned for operand types an operator rejects.
var ErrUnsupportedOperand = errors.New("unsupported operand types")

func ToBool(v Value) bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != "" && v.s != "0"
	case KindArray:
		return v.arr.Len() > 0
	case KindEnumCase:
		return true
	}
	return false
}

// ToInt is an (int) cast; it never fails for scalars.
func ToInt(v Value) (int64, error) {
	switch v.kind {
	case KindNull:
		return 0, nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindInt:
		return v.i, nil
	case KindFloat:
		return floatToInt(v.f), nil
	case KindString:
		n, _, ok := parseNumericPrefix(v.s)
		if !ok {
			return 0, nil
		}
		if n.kind == KindFloat {
			return floatToInt(n.f), nil
		}
		return n.i, nil
	case KindArray:
		if v.arr.Len() > 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: cannot convert %s to int", ErrUnsupportedOperand, v.kind)
}

// ToFloat is a (float) cast.
func ToFloat(v Value) (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindString:
		n, _, ok := parseNumericPrefix(v.s)
		if !ok {
			return 0, nil
		}
		if n.kind == KindFloat {
			return n.f, nil
		}
		return float64(n.i), nil
	}
	i, err := ToInt(v)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot convert %s to float", ErrUnsupportedOperand, v.kind)
	}
	return float64(i), nil
}

// ToString is a (string) cast. Arrays, enum cases and unresolved values fail.
func ToString(v Value) (string, error) {
	switch v.kind {
	case KindNull:
		return "", nil
	case KindBool:
		if v.b {
			return "1", nil
		}
		return "", nil
	case KindInt:
		return strconv.FormatInt(v.i, 10), nil
	case KindFloat:
		return FormatFloat(v.f), nil
	case KindString:
		return v.s, nil
	}
	return "", fmt.Errorf("%w: %s to string conversion", ErrUnsupportedOperand, v.kind)
}

// ToNumber converts an arithmetic operand to an int or float value.
func ToNumber(v Value) (Value, error) {
	switch v.kind {
	case KindInt, KindFloat:
		return v, nil
	case KindNull:
		return Int(0), nil
	case KindBool:
		if v.b {
			return Int(1), nil
		}
		return Int(0), nil
	case KindString:
		n, _, ok := parseNumericPrefix(v.s)
		if !ok {
			return Value{}, fmt.Errorf("%w: %q", ErrNonNumeric, v.s)
		}
		return n, nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedOperand, v.kind)
}

// IsNumericString reports whether s is entirely numeric, allowing leading and
// trailing whitespace.
func IsNumericString(s string) bool {
	_, full, ok := parseNumericPrefix(s)
	return ok && full
}

func floatToInt(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

// parseNumericPrefix parses the longest numeric prefix of s. full reports
// whether only whitespace follows it.
func parseNumericPrefix(s string) (n Value, full bool, ok bool) {
	i := 0
	for i < len(s) && isNumericSpace(s[i]) {
		i++
	}
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digitsStart := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	intDigits := i - digitsStart
	isFloat := false
	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		fracDigits = j - i - 1
		if intDigits > 0 || fracDigits > 0 {
			isFloat = true
			i = j
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return Value{}, false, false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expStart := j
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j > expStart {
			isFloat = true
			i = j
		}
	}
	text := s[start:i]
	rest := strings.TrimLeft(s[i:], " \t\n\r\v\f")
	full = rest == ""
	if !isFloat {
		if iv, err := strconv.ParseInt(text, 10, 64); err == nil {
			return Int(iv), full, true
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return Value{}, false, false
	}
	return Float(f), full, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNumericSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
