package value

import (
	"errors"
	"math"
	"strconv"
)

// ErrNextIndexOccupied is returned when appending after the maximum int key.
var ErrNextIndexOccupied = errors.New("cannot add element to the array as the next element is already occupied")

// Key is an array key: either an int or a string.
type Key struct {
	IsString bool
	Int      int64
	Str      string
}

func IntKey(i int64) Key     { return Key{Int: i} }
func StringKey(s string) Key { return Key{IsString: true, Str: s} }

func (k Key) String() string {
	if k.IsString {
		return k.Str
	}
	return strconv.FormatInt(k.Int, 10)
}

// Value returns the key as a Value.
func (k Key) Value() Value {
	if k.IsString {
		return String(k.Str)
	}
	return Int(k.Int)
}

// Array is an insertion-ordered map from keys to values.
type Array struct {
	keys      []Key
	values    map[Key]Value
	nextIndex int64
	full      bool
}

func NewArray() *Array {
	return &Array{values: make(map[Key]Value)}
}

// NewList builds a list array from values.
func NewList(items ...Value) *Array {
	a := NewArray()
	for _, v := range items {
		_ = a.Append(v)
	}
	return a
}

func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Set stores v under k. Existing keys keep their position.
func (a *Array) Set(k Key, v Value) {
	if _, ok := a.values[k]; !ok {
		a.keys = append(a.keys, k)
	}
	a.values[k] = v
	if !k.IsString && !a.full && k.Int >= a.nextIndex {
		if k.Int == math.MaxInt64 {
			a.full = true
			return
		}
		a.nextIndex = k.Int + 1
	}
}

// Append stores v under the next positional index.
func (a *Array) Append(v Value) error {
	if a.full {
		return ErrNextIndexOccupied
	}
	a.Set(IntKey(a.nextIndex), v)
	return nil
}

func (a *Array) Get(k Key) (Value, bool) {
	if a == nil {
		return Value{}, false
	}
	v, ok := a.values[k]
	return v, ok
}

func (a *Array) Has(k Key) bool {
	_, ok := a.Get(k)
	return ok
}

// Keys returns the keys in insertion order.
func (a *Array) Keys() []Key {
	if a == nil {
		return nil
	}
	out := make([]Key, len(a.keys))
	copy(out, a.keys)
	return out
}

// Values returns the values in insertion order.
func (a *Array) Values() []Value {
	if a == nil {
		return nil
	}
	out := make([]Value, 0, len(a.keys))
	for _, k := range a.keys {
		out = append(out, a.values[k])
	}
	return out
}

// Each calls fn for every entry in order until fn returns false.
func (a *Array) Each(fn func(Key, Value) bool) {
	if a == nil {
		return
	}
	for _, k := range a.keys {
		if !fn(k, a.values[k]) {
			return
		}
	}
}

// IsList reports whether keys are exactly 0..n-1 in order.
func (a *Array) IsList() bool {
	for i, k := range a.keys {
		if k.IsString || k.Int != int64(i) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy; values are immutable so this is a full copy.
func (a *Array) Clone() *Array {
	out := NewArray()
	if a == nil {
		return out
	}
	for _, k := range a.keys {
		out.Set(k, a.values[k])
	}
	out.nextIndex = a.nextIndex
	out.full = a.full
	return out
}

// NormalizeKey applies PHP's array key casts: canonical decimal strings become
// ints, bools and floats become ints, null becomes "".
func NormalizeKey(v Value) (Key, error) {
	switch v.kind {
	case KindInt:
		return IntKey(v.i), nil
	case KindString:
		if i, ok := canonicalIntString(v.s); ok {
			return IntKey(i), nil
		}
		return StringKey(v.s), nil
	case KindBool:
		if v.b {
			return IntKey(1), nil
		}
		return IntKey(0), nil
	case KindFloat:
		return IntKey(floatToInt(v.f)), nil
	case KindNull:
		return StringKey(""), nil
	}
	return Key{}, errors.New("illegal offset type " + v.kind.String())
}

// canonicalIntString matches "0", "-12", "42" but not "012", "+1" or "-0".
func canonicalIntString(s string) (int64, bool) {
	if s == "" || len(s) > 20 {
		return 0, false
	}
	digits := s
	if s[0] == '-' {
		digits = s[1:]
	}
	if digits == "" || (digits[0] == '0' && len(digits) > 1) || (s[0] == '-' && digits == "0") {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}
