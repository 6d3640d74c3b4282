// Package value models the result of folding an expression without running
// the program: scalars, ordered arrays, symbolic enum case references and an
// explicit unresolved marker.
package value

import "fmt"

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindEnumCase
	KindUnresolved
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindEnumCase:
		return "enum"
	case KindUnresolved:
		return "unresolved"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is immutable once built. The zero Value is null.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	class string
	arr   *Array
}

func Null() Value              { return Value{} }
func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func Int(i int64) Value        { return Value{kind: KindInt, i: i} }
func Float(f float64) Value    { return Value{kind: KindFloat, f: f} }
func String(s string) Value    { return Value{kind: KindString, s: s} }
func ArrayOf(a *Array) Value   { return Value{kind: KindArray, arr: a} }
func Unresolved(reason string) Value {
	return Value{kind: KindUnresolved, s: reason}
}

// EnumCase is a symbolic reference to case `name` of enum `class`.
func EnumCase(class, name string) Value {
	return Value{kind: KindEnumCase, class: class, s: name}
}

func (v Value) Kind() Kind          { return v.kind }
func (v Value) IsNull() bool        { return v.kind == KindNull }
func (v Value) IsUnresolved() bool  { return v.kind == KindUnresolved }
func (v Value) BoolValue() bool     { return v.b }
func (v Value) IntValue() int64     { return v.i }
func (v Value) FloatValue() float64 { return v.f }

// StringValue is the raw string of a string value.
func (v Value) StringValue() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// ArrayValue returns the array of an array value, nil otherwise.
func (v Value) ArrayValue() *Array {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

func (v Value) EnumClass() string {
	if v.kind != KindEnumCase {
		return ""
	}
	return v.class
}

func (v Value) EnumCaseName() string {
	if v.kind != KindEnumCase {
		return ""
	}
	return v.s
}

// Reason explains why an unresolved value could not be folded.
func (v Value) Reason() string {
	if v.kind != KindUnresolved {
		return ""
	}
	return v.s
}

// IsScalar reports bool, int, float and string values.
func (v Value) IsScalar() bool {
	switch v.kind {
	case KindBool, KindInt, KindFloat, KindString:
		return true
	}
	return false
}

// Native converts the value to plain Go data: nil, bool, int64, float64,
// string, []any for list arrays and map[string]any for keyed arrays. Enum
// cases become "Class::Case" and unresolved values nil.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		if v.arr.IsList() {
			out := make([]any, 0, v.arr.Len())
			v.arr.Each(func(_ Key, item Value) bool {
				out = append(out, item.Native())
				return true
			})
			return out
		}
		out := make(map[string]any, v.arr.Len())
		v.arr.Each(func(k Key, item Value) bool {
			out[k.String()] = item.Native()
			return true
		})
		return out
	case KindEnumCase:
		return v.class + "::" + v.s
	}
	return nil
}

// FromNative is the inverse of Native for the Go types it produces, plus int
// and float32 for convenience.
func FromNative(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case string:
		return String(x), nil
	case Value:
		return x, nil
	case []any:
		arr := NewArray()
		for _, item := range x {
			v, err := FromNative(item)
			if err != nil {
				return Value{}, err
			}
			if err := arr.Append(v); err != nil {
				return Value{}, err
			}
		}
		return ArrayOf(arr), nil
	}
	return Value{}, fmt.Errorf("cannot convert %T to a value", x)
}

func (v Value) String() string {
	return Export(v)
}
