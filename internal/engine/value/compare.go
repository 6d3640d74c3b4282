package value

import "strings"

// uncomparable is returned by Compare for operands with no ordering; it is
// non-zero so loose equality fails.
const uncomparable = 1

// Identical implements `===`.
func Identical(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindEnumCase:
		return strings.EqualFold(a.class, b.class) && a.s == b.s
	case KindArray:
		if a.arr.Len() != b.arr.Len() {
			return false
		}
		ak, bk := a.arr.Keys(), b.arr.Keys()
		for i := range ak {
			if ak[i] != bk[i] {
				return false
			}
			av, _ := a.arr.Get(ak[i])
			bv, _ := b.arr.Get(bk[i])
			if !Identical(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// LooseEqual implements `==`.
func LooseEqual(a, b Value) bool {
	return Compare(a, b) == 0
}

// Compare implements `<=>` with loose comparison rules, returning -1, 0 or 1.
func Compare(a, b Value) int {
	switch {
	case a.kind == KindUnresolved || b.kind == KindUnresolved:
		return uncomparable
	case a.kind == KindEnumCase || b.kind == KindEnumCase:
		if a.kind == b.kind && Identical(a, b) {
			return 0
		}
		if a.kind == KindBool || b.kind == KindBool {
			return compareBools(ToBool(a), ToBool(b))
		}
		return uncomparable
	case a.kind == KindNull && b.kind == KindNull:
		return 0
	case a.kind == KindBool || b.kind == KindBool:
		return compareBools(ToBool(a), ToBool(b))
	case a.kind == KindNull && b.kind == KindString:
		return compareStrings("", b.s)
	case a.kind == KindString && b.kind == KindNull:
		return compareStrings(a.s, "")
	case a.kind == KindNull || b.kind == KindNull:
		return compareBools(ToBool(a), ToBool(b))
	case a.kind == KindArray && b.kind == KindArray:
		return compareArrays(a.arr, b.arr)
	case a.kind == KindArray:
		return 1
	case b.kind == KindArray:
		return -1
	case a.kind == KindString && b.kind == KindString:
		if IsNumericString(a.s) && IsNumericString(b.s) {
			x, _ := ToNumber(a)
			y, _ := ToNumber(b)
			return compareNumbers(x, y)
		}
		return compareStrings(a.s, b.s)
	case a.kind == KindString:
		if IsNumericString(a.s) {
			x, _ := ToNumber(a)
			return compareNumbers(x, b)
		}
		s, _ := ToString(b)
		return compareStrings(a.s, s)
	case b.kind == KindString:
		if IsNumericString(b.s) {
			y, _ := ToNumber(b)
			return compareNumbers(a, y)
		}
		s, _ := ToString(a)
		return compareStrings(s, b.s)
	}
	return compareNumbers(a, b)
}

func compareBools(x, y bool) int {
	switch {
	case x == y:
		return 0
	case x:
		return 1
	}
	return -1
}

func compareStrings(x, y string) int {
	switch c := strings.Compare(x, y); {
	case c < 0:
		return -1
	case c > 0:
		return 1
	}
	return 0
}

func compareNumbers(x, y Value) int {
	if x.kind == KindInt && y.kind == KindInt {
		switch {
		case x.i < y.i:
			return -1
		case x.i > y.i:
			return 1
		}
		return 0
	}
	fx, fy := asFloat(x), asFloat(y)
	switch {
	case fx < fy:
		return -1
	case fx > fy:
		return 1
	case fx == fy:
		return 0
	}
	return uncomparable
}

func compareArrays(a, b *Array) int {
	if a.Len() != b.Len() {
		if a.Len() < b.Len() {
			return -1
		}
		return 1
	}
	result := 0
	a.Each(func(k Key, av Value) bool {
		bv, ok := b.Get(k)
		if !ok {
			result = uncomparable
			return false
		}
		if c := Compare(av, bv); c != 0 {
			result = c
			return false
		}
		return true
	})
	return result
}
