package eval

import (
	stderrors "errors"
	"fmt"
	"math"
	"strings"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/engine/value"
)

// Builtin is a trusted pure function. It must not observe anything but its
// arguments.
type Builtin func(args []value.Value) (value.Value, error)

var errArgumentCount = stderrors.New("wrong argument count")

func defaultBuiltins() map[string]Builtin {
	return map[string]Builtin{
		"strlen":           fnStrlen,
		"strtoupper":       asciiCase(true),
		"strtolower":       asciiCase(false),
		"ucfirst":          fnUcfirst,
		"lcfirst":          fnLcfirst,
		"ucwords":          fnUcwords,
		"trim":             trimmer(strings.Trim),
		"ltrim":            trimmer(strings.TrimLeft),
		"rtrim":            trimmer(strings.TrimRight),
		"chop":             trimmer(strings.TrimRight),
		"str_repeat":       fnStrRepeat,
		"str_replace":      fnStrReplace,
		"str_pad":          fnStrPad,
		"str_contains":     stringPredicate(strings.Contains),
		"str_starts_with":  stringPredicate(strings.HasPrefix),
		"str_ends_with":    stringPredicate(strings.HasSuffix),
		"substr":           fnSubstr,
		"strrev":           fnStrrev,
		"implode":          fnImplode,
		"join":             fnImplode,
		"sprintf":          fnSprintf,
		"abs":              fnAbs,
		"min":              extremum(-1),
		"max":              extremum(1),
		"intdiv":           fnIntdiv,
		"floor":            rounder(math.Floor),
		"ceil":             rounder(math.Ceil),
		"round":            fnRound,
		"count":            fnCount,
		"sizeof":           fnCount,
		"array_keys":       fnArrayKeys,
		"array_values":     fnArrayValues,
		"array_merge":      fnArrayMerge,
		"in_array":         fnInArray,
		"array_key_exists": fnArrayKeyExists,
		"key_exists":       fnArrayKeyExists,
		"preg_match":       fnPregMatch,
		"preg_replace":     fnPregReplace,
		"preg_quote":       fnPregQuote,
		"mb_strlen":        fnMbStrlen,
		"mb_strtoupper":    mbCase(mbCaseUpper),
		"mb_strtolower":    mbCase(mbCaseLower),
		"mb_convert_case":  fnMbConvertCase,
	}
}

// evalCall folds calls to trusted builtins and fails closed for anything
// else, user functions included.
func (e *Evaluator) evalCall(f *frame, n *source.Call) (value.Value, error) {
	args, err := e.evalArgs(f, n)
	if err != nil {
		return value.Value{}, err
	}
	candidates := f.ctx.Namespace.ResolveFunction(n.Name)
	global := candidates[len(candidates)-1]
	if strings.Contains(global, `\`) {
		return value.Value{}, unsupported(n, fmt.Sprintf("call to %s is not a trusted builtin", global))
	}
	// a namespaced declaration shadows the builtin of the same name
	for _, candidate := range candidates[:len(candidates)-1] {
		if f.ctx.Symbols == nil {
			break
		}
		err := f.ctx.Symbols.Function(candidate)
		if err == nil {
			return value.Value{}, unsupported(n, fmt.Sprintf("call to user function %s", candidate))
		}
		if !errors.IsCode(err, errors.CodeNotFound) {
			return value.Value{}, err
		}
	}
	switch lower := strings.ToLower(global); lower {
	case "constant":
		return e.builtinConstant(f.ctx, n, args)
	case "defined":
		if len(args) != 1 {
			return value.Value{}, operandError(n, errArgumentCount)
		}
		name, err := value.ToString(args[0])
		if err != nil {
			return value.Value{}, operandError(n, err)
		}
		_, _, err = e.lookupConstant(f.ctx, `\`+strings.TrimPrefix(name, `\`))
		return value.Bool(err == nil), nil
	default:
		fn, ok := e.builtins[lower]
		if !ok {
			return value.Value{}, unsupported(n, fmt.Sprintf("call to %s is not a trusted builtin", global))
		}
		out, err := fn(args)
		if err != nil {
			return value.Value{}, errors.AddContext(operandError(n, err), errors.CtxSymbol, lower)
		}
		return out, nil
	}
}

func (e *Evaluator) evalArgs(f *frame, n *source.Call) ([]value.Value, error) {
	args := make([]value.Value, 0, len(n.Args))
	for _, a := range n.Args {
		if a.Name != "" {
			return nil, unsupported(a, "named arguments to builtins")
		}
		v, err := e.eval(f, a.Value)
		if err != nil {
			return nil, err
		}
		if !a.Unpack {
			args = append(args, v)
			continue
		}
		if v.Kind() != value.KindArray {
			return nil, unsupported(a, fmt.Sprintf("cannot unpack %s", v.Kind()))
		}
		args = append(args, v.ArrayValue().Values()...)
	}
	return args, nil
}

// builtinConstant implements constant("NAME") and constant("Class::NAME").
func (e *Evaluator) builtinConstant(ctx *Context, n *source.Call, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, operandError(n, errArgumentCount)
	}
	name, err := value.ToString(args[0])
	if err != nil {
		return value.Value{}, operandError(n, err)
	}
	if class, member, ok := strings.Cut(name, "::"); ok {
		resolved := strings.TrimPrefix(class, `\`)
		if source.IsSpecialClassName(class) {
			if resolved, err = resolveClassRef(ctx, class); err != nil {
				return value.Value{}, withLine(err, n)
			}
		}
		v, err := e.lookupClassConstant(ctx, resolved, member)
		return v, withLineIfErr(err, n)
	}
	_, v, err := e.lookupConstant(ctx, `\`+strings.TrimPrefix(name, `\`))
	return v, withLineIfErr(err, n)
}

func withLineIfErr(err error, n source.Node) error {
	if err == nil {
		return nil
	}
	return withLine(err, n)
}

func arity(args []value.Value, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return fmt.Errorf("%w: got %d", errArgumentCount, len(args))
	}
	return nil
}

func stringArg(args []value.Value, i int) (string, error) {
	return value.ToString(args[i])
}

func intArg(args []value.Value, i int, def int64) (int64, error) {
	if i >= len(args) || args[i].IsNull() {
		return def, nil
	}
	return value.ToInt(args[i])
}

func arrayArg(args []value.Value, i int) (*value.Array, error) {
	if args[i].Kind() != value.KindArray {
		return nil, fmt.Errorf("%w: argument #%d must be of type array, %s given", value.ErrUnsupportedOperand, i+1, args[i].Kind())
	}
	return args[i].ArrayValue(), nil
}

func fnStrlen(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.Value{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	return value.Int(int64(len(s))), nil
}

// asciiCase maps ASCII letters only, leaving other bytes untouched.
func asciiCase(upper bool) Builtin {
	return func(args []value.Value) (value.Value, error) {
		if err := arity(args, 1, 1); err != nil {
			return value.Value{}, err
		}
		s, err := stringArg(args, 0)
		if err != nil {
			return value.Value{}, err
		}
		out := []byte(s)
		for i, c := range out {
			switch {
			case upper && c >= 'a' && c <= 'z':
				out[i] = c - 32
			case !upper && c >= 'A' && c <= 'Z':
				out[i] = c + 32
			}
		}
		return value.String(string(out)), nil
	}
}

func fnUcfirst(args []value.Value) (value.Value, error) {
	return mapFirst(args, 'a', 'z', -32)
}

func fnLcfirst(args []value.Value) (value.Value, error) {
	return mapFirst(args, 'A', 'Z', 32)
}

func mapFirst(args []value.Value, lo, hi byte, delta int) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.Value{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	if s == "" || s[0] < lo || s[0] > hi {
		return value.String(s), nil
	}
	return value.String(string(byte(int(s[0])+delta)) + s[1:]), nil
}

func fnUcwords(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return value.Value{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	delims := " \t\r\n\f\v"
	if len(args) == 2 {
		if delims, err = stringArg(args, 1); err != nil {
			return value.Value{}, err
		}
	}
	out := []byte(s)
	upNext := true
	for i, c := range out {
		if upNext && c >= 'a' && c <= 'z' {
			out[i] = c - 32
		}
		upNext = strings.IndexByte(delims, c) >= 0
	}
	return value.String(string(out)), nil
}

func trimmer(fn func(string, string) string) Builtin {
	return func(args []value.Value) (value.Value, error) {
		if err := arity(args, 1, 2); err != nil {
			return value.Value{}, err
		}
		s, err := stringArg(args, 0)
		if err != nil {
			return value.Value{}, err
		}
		cutset := " \n\r\t\v\x00"
		if len(args) == 2 {
			if cutset, err = stringArg(args, 1); err != nil {
				return value.Value{}, err
			}
			cutset = expandCharRanges(cutset)
		}
		return value.String(fn(s, cutset)), nil
	}
}

// expandCharRanges expands "a..z" style ranges in a trim character list.
func expandCharRanges(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if i+3 < len(s) && s[i+1] == '.' && s[i+2] == '.' && s[i+3] >= s[i] {
			for c := int(s[i]); c <= int(s[i+3]); c++ {
				sb.WriteByte(byte(c))
			}
			i += 3
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func fnStrRepeat(args []value.Value) (value.Value, error) {
	if err := arity(args, 2, 2); err != nil {
		return value.Value{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	n, err := value.ToInt(args[1])
	if err != nil {
		return value.Value{}, err
	}
	if n < 0 {
		return value.Value{}, fmt.Errorf("%w: str_repeat times must be >= 0", value.ErrUnsupportedOperand)
	}
	return value.String(strings.Repeat(s, int(n))), nil
}

func fnStrReplace(args []value.Value) (value.Value, error) {
	if err := arity(args, 3, 3); err != nil {
		return value.Value{}, err
	}
	subject, err := stringArg(args, 2)
	if err != nil {
		return value.Value{}, err
	}
	searches, err := stringList(args[0])
	if err != nil {
		return value.Value{}, err
	}
	var replaces []string
	replaceScalar := args[1].Kind() != value.KindArray
	if replaceScalar {
		r, err := value.ToString(args[1])
		if err != nil {
			return value.Value{}, err
		}
		replaces = []string{r}
	} else if replaces, err = stringList(args[1]); err != nil {
		return value.Value{}, err
	}
	for i, search := range searches {
		if search == "" {
			continue
		}
		repl := ""
		switch {
		case replaceScalar:
			repl = replaces[0]
		case i < len(replaces):
			repl = replaces[i]
		}
		subject = strings.ReplaceAll(subject, search, repl)
	}
	return value.String(subject), nil
}

func stringList(v value.Value) ([]string, error) {
	if v.Kind() != value.KindArray {
		s, err := value.ToString(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	var out []string
	for _, item := range v.ArrayValue().Values() {
		s, err := value.ToString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func fnStrPad(args []value.Value) (value.Value, error) {
	if err := arity(args, 2, 4); err != nil {
		return value.Value{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	length, err := value.ToInt(args[1])
	if err != nil {
		return value.Value{}, err
	}
	pad := " "
	if len(args) > 2 {
		if pad, err = stringArg(args, 2); err != nil {
			return value.Value{}, err
		}
		if pad == "" {
			return value.Value{}, fmt.Errorf("%w: str_pad padding must be a non-empty string", value.ErrUnsupportedOperand)
		}
	}
	mode, err := intArg(args, 3, 1)
	if err != nil {
		return value.Value{}, err
	}
	total := int(length) - len(s)
	if total <= 0 {
		return value.String(s), nil
	}
	fill := func(n int) string {
		return strings.Repeat(pad, n/len(pad)+1)[:n]
	}
	switch mode {
	case 0:
		return value.String(fill(total) + s), nil
	case 2:
		left := total / 2
		return value.String(fill(left) + s + fill(total-left)), nil
	}
	return value.String(s + fill(total)), nil
}

func stringPredicate(fn func(string, string) bool) Builtin {
	return func(args []value.Value) (value.Value, error) {
		if err := arity(args, 2, 2); err != nil {
			return value.Value{}, err
		}
		s, err := stringArg(args, 0)
		if err != nil {
			return value.Value{}, err
		}
		needle, err := stringArg(args, 1)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(fn(s, needle)), nil
	}
}

func fnSubstr(args []value.Value) (value.Value, error) {
	if err := arity(args, 2, 3); err != nil {
		return value.Value{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	n := int64(len(s))
	start, err := value.ToInt(args[1])
	if err != nil {
		return value.Value{}, err
	}
	if start < 0 {
		start = max(n+start, 0)
	}
	if start > n {
		return value.String(""), nil
	}
	end := n
	if len(args) == 3 && !args[2].IsNull() {
		length, err := value.ToInt(args[2])
		if err != nil {
			return value.Value{}, err
		}
		if length < 0 {
			end = max(n+length, start)
		} else {
			end = min(start+length, n)
		}
	}
	return value.String(s[start:end]), nil
}

func fnStrrev(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.Value{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	out := []byte(s)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return value.String(string(out)), nil
}

func fnImplode(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return value.Value{}, err
	}
	sep, pieces := value.String(""), args[0]
	if len(args) == 2 {
		sep, pieces = args[0], args[1]
		if sep.Kind() == value.KindArray {
			sep, pieces = pieces, sep
		}
	}
	if pieces.Kind() != value.KindArray {
		return value.Value{}, fmt.Errorf("%w: implode expects an array", value.ErrUnsupportedOperand)
	}
	glue, err := value.ToString(sep)
	if err != nil {
		return value.Value{}, err
	}
	parts, err := stringList(pieces)
	if err != nil {
		return value.Value{}, err
	}
	return value.String(strings.Join(parts, glue)), nil
}

func fnAbs(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.Value{}, err
	}
	n, err := value.ToNumber(args[0])
	if err != nil {
		return value.Value{}, err
	}
	if n.Kind() == value.KindInt {
		if n.IntValue() == math.MinInt64 {
			return value.Float(-float64(math.MinInt64)), nil
		}
		if n.IntValue() < 0 {
			return value.Int(-n.IntValue()), nil
		}
		return n, nil
	}
	return value.Float(math.Abs(n.FloatValue())), nil
}

// extremum implements min (sign -1) and max (sign 1) over arguments or a
// single array argument.
func extremum(sign int) Builtin {
	return func(args []value.Value) (value.Value, error) {
		if err := arity(args, 1, -1); err != nil {
			return value.Value{}, err
		}
		items := args
		if len(args) == 1 {
			arr, err := arrayArg(args, 0)
			if err != nil {
				return value.Value{}, err
			}
			items = arr.Values()
		}
		if len(items) == 0 {
			return value.Value{}, fmt.Errorf("%w: empty array", value.ErrUnsupportedOperand)
		}
		best := items[0]
		for _, v := range items[1:] {
			if value.Compare(v, best)*sign > 0 {
				best = v
			}
		}
		return best, nil
	}
}

func fnIntdiv(args []value.Value) (value.Value, error) {
	if err := arity(args, 2, 2); err != nil {
		return value.Value{}, err
	}
	x, err := value.ToInt(args[0])
	if err != nil {
		return value.Value{}, err
	}
	y, err := value.ToInt(args[1])
	if err != nil {
		return value.Value{}, err
	}
	if y == 0 {
		return value.Value{}, value.ErrDivisionByZero
	}
	if x == math.MinInt64 && y == -1 {
		return value.Value{}, fmt.Errorf("%w: intdiv overflow", value.ErrUnsupportedOperand)
	}
	return value.Int(x / y), nil
}

func rounder(fn func(float64) float64) Builtin {
	return func(args []value.Value) (value.Value, error) {
		if err := arity(args, 1, 1); err != nil {
			return value.Value{}, err
		}
		x, err := value.ToFloat(args[0])
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(fn(x)), nil
	}
}

// fnRound rounds half away from zero.
func fnRound(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return value.Value{}, err
	}
	x, err := value.ToFloat(args[0])
	if err != nil {
		return value.Value{}, err
	}
	precision, err := intArg(args, 1, 0)
	if err != nil {
		return value.Value{}, err
	}
	scale := math.Pow(10, float64(precision))
	return value.Float(math.Round(x*scale) / scale), nil
}

func fnCount(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return value.Value{}, err
	}
	arr, err := arrayArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	mode, err := intArg(args, 1, 0)
	if err != nil {
		return value.Value{}, err
	}
	if mode == 1 {
		return value.Int(int64(countRecursive(arr))), nil
	}
	return value.Int(int64(arr.Len())), nil
}

func countRecursive(arr *value.Array) int {
	n := 0
	arr.Each(func(_ value.Key, v value.Value) bool {
		n++
		if v.Kind() == value.KindArray {
			n += countRecursive(v.ArrayValue())
		}
		return true
	})
	return n
}

func fnArrayKeys(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.Value{}, err
	}
	arr, err := arrayArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	out := value.NewArray()
	for _, k := range arr.Keys() {
		if err := out.Append(k.Value()); err != nil {
			return value.Value{}, err
		}
	}
	return value.ArrayOf(out), nil
}

func fnArrayValues(args []value.Value) (value.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return value.Value{}, err
	}
	arr, err := arrayArg(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	return value.ArrayOf(value.NewList(arr.Values()...)), nil
}

func fnArrayMerge(args []value.Value) (value.Value, error) {
	out := value.NewArray()
	for i := range args {
		arr, err := arrayArg(args, i)
		if err != nil {
			return value.Value{}, err
		}
		if err := spreadInto(out, arr); err != nil {
			return value.Value{}, err
		}
	}
	return value.ArrayOf(out), nil
}

func spreadInto(dst, src *value.Array) error {
	var err error
	src.Each(func(k value.Key, v value.Value) bool {
		if k.IsString {
			dst.Set(k, v)
			return true
		}
		err = dst.Append(v)
		return err == nil
	})
	return err
}

func fnInArray(args []value.Value) (value.Value, error) {
	if err := arity(args, 2, 3); err != nil {
		return value.Value{}, err
	}
	arr, err := arrayArg(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	strict := len(args) == 3 && value.ToBool(args[2])
	for _, v := range arr.Values() {
		if (strict && value.Identical(args[0], v)) || (!strict && value.LooseEqual(args[0], v)) {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func fnArrayKeyExists(args []value.Value) (value.Value, error) {
	if err := arity(args, 2, 2); err != nil {
		return value.Value{}, err
	}
	arr, err := arrayArg(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	key, err := value.NormalizeKey(args[0])
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(arr.Has(key)), nil
}
