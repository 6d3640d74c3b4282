package value

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrModuloByZero   = errors.New("modulo by zero")
	ErrNegativeShift  = errors.New("bit shift by negative number")
)

// Add implements `+`, including array union.
func Add(a, b Value) (Value, error) {
	if a.kind == KindArray || b.kind == KindArray {
		if a.kind != KindArray || b.kind != KindArray {
			return Value{}, fmt.Errorf("%w: %s + %s", ErrUnsupportedOperand, a.kind, b.kind)
		}
		out := a.arr.Clone()
		b.arr.Each(func(k Key, v Value) bool {
			if !out.Has(k) {
				out.Set(k, v)
			}
			return true
		})
		return ArrayOf(out), nil
	}
	return arith(a, b, "+", func(x, y int64) (int64, bool) {
		r := x + y
		return r, (x > 0 && y > 0 && r < 0) || (x < 0 && y < 0 && r >= 0)
	}, func(x, y float64) float64 { return x + y })
}

func Sub(a, b Value) (Value, error) {
	return arith(a, b, "-", func(x, y int64) (int64, bool) {
		r := x - y
		return r, (x >= 0 && y < 0 && r < 0) || (x < 0 && y > 0 && r >= 0)
	}, func(x, y float64) float64 { return x - y })
}

func Mul(a, b Value) (Value, error) {
	return arith(a, b, "*", mulOverflow, func(x, y float64) float64 { return x * y })
}

// Div implements `/`: an int result only when both operands are ints and the
// division is exact.
func Div(a, b Value) (Value, error) {
	x, y, err := numericOperands(a, b, "/")
	if err != nil {
		return Value{}, err
	}
	if (y.kind == KindInt && y.i == 0) || (y.kind == KindFloat && y.f == 0) {
		return Value{}, ErrDivisionByZero
	}
	if x.kind == KindInt && y.kind == KindInt {
		if x.i%y.i == 0 && !(x.i == math.MinInt64 && y.i == -1) {
			return Int(x.i / y.i), nil
		}
		return Float(float64(x.i) / float64(y.i)), nil
	}
	return Float(asFloat(x) / asFloat(y)), nil
}

// Mod implements `%`: both operands are truncated to int first.
func Mod(a, b Value) (Value, error) {
	x, y, err := intOperands(a, b, "%")
	if err != nil {
		return Value{}, err
	}
	if y == 0 {
		return Value{}, ErrModuloByZero
	}
	if y == -1 {
		return Int(0), nil
	}
	return Int(x % y), nil
}

// Pow implements `**`.
func Pow(a, b Value) (Value, error) {
	x, y, err := numericOperands(a, b, "**")
	if err != nil {
		return Value{}, err
	}
	if x.kind == KindInt && y.kind == KindInt && y.i >= 0 {
		result, base, exp := int64(1), x.i, y.i
		overflow := false
		for exp > 0 && !overflow {
			if exp&1 == 1 {
				r, o := mulOverflow(result, base)
				result, overflow = r, o
			}
			exp >>= 1
			if exp > 0 && !overflow {
				sq, o := mulOverflow(base, base)
				base, overflow = sq, o
			}
		}
		if !overflow {
			return Int(result), nil
		}
	}
	return Float(math.Pow(asFloat(x), asFloat(y))), nil
}

func mulOverflow(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, false
	}
	r := x * y
	return r, r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64)
}

// Concat implements `.`.
func Concat(a, b Value) (Value, error) {
	x, err := ToString(a)
	if err != nil {
		return Value{}, err
	}
	y, err := ToString(b)
	if err != nil {
		return Value{}, err
	}
	return String(x + y), nil
}

// Negate implements unary minus.
func Negate(a Value) (Value, error) {
	return Mul(a, Int(-1))
}

// Plus implements unary plus.
func Plus(a Value) (Value, error) {
	return Mul(a, Int(1))
}

// BitNot implements `~`.
func BitNot(a Value) (Value, error) {
	switch a.kind {
	case KindInt:
		return Int(^a.i), nil
	case KindFloat:
		return Int(^floatToInt(a.f)), nil
	case KindString:
		out := []byte(a.s)
		for i := range out {
			out[i] = ^out[i]
		}
		return String(string(out)), nil
	}
	return Value{}, fmt.Errorf("%w: ~%s", ErrUnsupportedOperand, a.kind)
}

// Bitwise implements `&`, `|` and `^`. Two strings combine byte-wise.
func Bitwise(op string, a, b Value) (Value, error) {
	if a.kind == KindString && b.kind == KindString {
		return bitwiseStrings(op, a.s, b.s), nil
	}
	x, y, err := intOperands(a, b, op)
	if err != nil {
		return Value{}, err
	}
	switch op {
	case "&":
		return Int(x & y), nil
	case "|":
		return Int(x | y), nil
	case "^":
		return Int(x ^ y), nil
	}
	return Value{}, fmt.Errorf("%w: unknown bitwise operator %q", ErrUnsupportedOperand, op)
}

func bitwiseStrings(op, x, y string) Value {
	if op == "|" {
		if len(x) < len(y) {
			x, y = y, x
		}
		out := []byte(x)
		for i := 0; i < len(y); i++ {
			out[i] |= y[i]
		}
		return String(string(out))
	}
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		if op == "&" {
			out[i] = x[i] & y[i]
		} else {
			out[i] = x[i] ^ y[i]
		}
	}
	return String(string(out))
}

// Shift implements `<<` and `>>`.
func Shift(op string, a, b Value) (Value, error) {
	x, y, err := intOperands(a, b, op)
	if err != nil {
		return Value{}, err
	}
	if y < 0 {
		return Value{}, ErrNegativeShift
	}
	if op == "<<" {
		if y >= 64 {
			return Int(0), nil
		}
		return Int(x << uint(y)), nil
	}
	if y >= 64 {
		if x < 0 {
			return Int(-1), nil
		}
		return Int(0), nil
	}
	return Int(x >> uint(y)), nil
}

func arith(a, b Value, op string, ints func(x, y int64) (int64, bool), floats func(x, y float64) float64) (Value, error) {
	x, y, err := numericOperands(a, b, op)
	if err != nil {
		return Value{}, err
	}
	if x.kind == KindInt && y.kind == KindInt {
		if r, overflow := ints(x.i, y.i); !overflow {
			return Int(r), nil
		}
	}
	return Float(floats(asFloat(x), asFloat(y))), nil
}

func numericOperands(a, b Value, op string) (Value, Value, error) {
	if a.kind == KindArray || b.kind == KindArray || a.kind == KindEnumCase || b.kind == KindEnumCase {
		return Value{}, Value{}, fmt.Errorf("%w: %s %s %s", ErrUnsupportedOperand, a.kind, op, b.kind)
	}
	x, err := ToNumber(a)
	if err != nil {
		return Value{}, Value{}, err
	}
	y, err := ToNumber(b)
	if err != nil {
		return Value{}, Value{}, err
	}
	return x, y, nil
}

func intOperands(a, b Value, op string) (int64, int64, error) {
	x, y, err := numericOperands(a, b, op)
	if err != nil {
		return 0, 0, err
	}
	return asInt(x), asInt(y), nil
}

func asFloat(n Value) float64 {
	if n.kind == KindFloat {
		return n.f
	}
	return float64(n.i)
}

func asInt(n Value) int64 {
	if n.kind == KindFloat {
		return floatToInt(n.f)
	}
	return n.i
}
