package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/engine/value"
)

func list(items ...source.Expr) source.Expr {
	arr := &source.ArrayLit{Short: true}
	for _, it := range items {
		arr.Items = append(arr.Items, &source.ArrayItem{Value: it})
	}
	return arr
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		name string
		expr source.Expr
		want any
	}{
		{"strlen", call("strlen", str("héllo")), int64(6)},
		{"strtoupper ascii only", call("STRTOUPPER", str("abc-é")), "ABC-é"},
		{"ucfirst", call("ucfirst", str("hello")), "Hello"},
		{"ucwords", call("ucwords", str("hello big_world"), str(" _")), "Hello Big_World"},
		{"trim", call("trim", str("  x \n")), "x"},
		{"trim range", call("rtrim", str("abc123"), str("0..9")), "abc"},
		{"str_repeat", call("str_repeat", str("ab"), i(3)), "ababab"},
		{"str_replace", call("str_replace", list(str("a"), str("b")), str("x"), str("abc")), "xxc"},
		{"str_pad left", call("str_pad", str("7"), i(3), str("0"), i(0)), "007"},
		{"str_pad both", call("str_pad", str("x"), i(4), str("-"), i(2)), "-x--"},
		{"substr", call("substr", str("abcdef"), i(-3), i(2)), "de"},
		{"substr past end", call("substr", str("abc"), i(5)), ""},
		{"strrev", call("strrev", str("abc")), "cba"},
		{"implode", call("implode", str(","), list(i(1), str("b"), fl(2.5))), "1,b,2.5"},
		{"sprintf", call("sprintf", str("%s-%05.1f-%'*4d-%x-%%"), str("v"), fl(3.14159), i(7), i(255)), "v-003.1-***7-ff-%"},
		{"sprintf argnum", call("sprintf", str("%2$s %1$s"), str("a"), str("b")), "b a"},
		{"sprintf exponent", call("sprintf", str("%.2e"), i(1234)), "1.23e+3"},
		{"abs", call("abs", i(-3)), int64(3)},
		{"max", call("max", i(1), i(9), i(3)), int64(9)},
		{"min array", call("min", list(i(4), i(2))), int64(2)},
		{"intdiv", call("intdiv", i(7), i(2)), int64(3)},
		{"floor", call("floor", fl(2.7)), 2.0},
		{"round", call("round", fl(2.5)), 3.0},
		{"round precision", call("round", fl(1.955), i(1)), 2.0},
		{"count", call("count", list(i(1), i(2))), int64(2)},
		{"in_array", call("in_array", str("2"), list(i(1), i(2))), true},
		{"in_array strict", call("in_array", str("2"), list(i(1), i(2)), &source.ConstFetch{Name: "true"}), false},
		{"array_key_exists", call("array_key_exists", i(1), list(str("a"), str("b"))), true},
		{"preg_match", call("preg_match", str("/^a+b$/i"), str("AAb")), int64(1)},
		{"preg_match miss", call("preg_match", str("#\\d+#"), str("abc")), int64(0)},
		{"preg_replace", call("preg_replace", str(`/(\w+) (\w+)/`), str(`$2 \1`), str("hello world")), "world hello"},
		{"preg_quote", call("preg_quote", str("a.b/c"), str("/")), `a\.b\/c`},
		{"mb_strlen", call("mb_strlen", str("héllo")), int64(5)},
		{"mb_strtoupper", call("mb_strtoupper", str("héllo")), "HÉLLO"},
		{"mb_convert_case title", call("mb_convert_case", str("hello world"), &source.ConstFetch{Name: "MB_CASE_TITLE"}), "Hello World"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evalOK(t, tt.expr, &Context{Namespace: &source.Namespace{Name: "App"}})
			assert.Equal(t, tt.want, res.Value.Native())
		})
	}
}

func TestArrayBuiltins(t *testing.T) {
	assoc := &source.ArrayLit{Items: []*source.ArrayItem{
		{Key: str("a"), Value: i(1)},
		{Key: i(3), Value: i(2)},
	}}
	res := evalOK(t, call("array_keys", assoc), nil)
	assert.Equal(t, []any{"a", int64(3)}, res.Value.Native())

	res = evalOK(t, call("array_values", assoc), nil)
	assert.Equal(t, []any{int64(1), int64(2)}, res.Value.Native())

	res = evalOK(t, call("array_merge", assoc, list(str("x"))), nil)
	keys := res.Value.ArrayValue().Keys()
	assert.Equal(t, []value.Key{value.StringKey("a"), value.IntKey(0), value.IntKey(1)}, keys)
}

func TestConstantAndDefined(t *testing.T) {
	ctx := classCtx()

	res := evalOK(t, call("constant", str(`App\Base::SIZE`)), ctx)
	assert.Equal(t, int64(4), res.Value.IntValue())
	assert.False(t, res.IsConstantReference())

	res = evalOK(t, call("constant", str("self::NAME")), ctx)
	assert.Equal(t, "child", res.Value.StringValue())

	res = evalOK(t, call("defined", str(`App\LIMIT`)), ctx)
	assert.True(t, res.Value.BoolValue())

	res = evalOK(t, call("defined", str("MISSING")), ctx)
	assert.False(t, res.Value.BoolValue())
}

func TestCustomBuiltin(t *testing.T) {
	ev := NewEvaluator(WithBuiltin("double", func(args []value.Value) (value.Value, error) {
		return value.Mul(args[0], value.Int(2))
	}))
	res, err := ev.Evaluate(call("double", i(21)), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Value.IntValue())
}

func TestNamespacedFunctionShadowsBuiltin(t *testing.T) {
	ctx := classCtx()

	_, err := NewEvaluator().Evaluate(call("strlen", str("ab")), ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedConstruct))

	// fully qualified calls skip the namespace
	res := evalOK(t, call(`\strlen`, str("ab")), ctx)
	assert.Equal(t, int64(2), res.Value.IntValue())

	res = evalOK(t, call("strtoupper", str("ab")), ctx)
	assert.Equal(t, "AB", res.Value.StringValue())
}
