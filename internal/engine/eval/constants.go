package eval

import (
	"fmt"
	"math"
	"strings"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/engine/typesys"
	"staticreflect/internal/engine/value"
)

// predefinedConstants are the engine constants that never depend on user
// code. Values follow a 64-bit Linux build.
func predefinedConstants(v typesys.Version) map[string]value.Value {
	return map[string]value.Value{
		"PHP_INT_MAX":         value.Int(math.MaxInt64),
		"PHP_INT_MIN":         value.Int(math.MinInt64),
		"PHP_INT_SIZE":        value.Int(8),
		"PHP_FLOAT_EPSILON":   value.Float(math.Nextafter(1, 2) - 1),
		"PHP_FLOAT_MAX":       value.Float(math.MaxFloat64),
		"PHP_FLOAT_MIN":       value.Float(2.2250738585072014e-308),
		"PHP_FLOAT_DIG":       value.Int(15),
		"NAN":                 value.Float(math.NaN()),
		"INF":                 value.Float(math.Inf(1)),
		"PHP_EOL":             value.String("\n"),
		"DIRECTORY_SEPARATOR": value.String("/"),
		"PATH_SEPARATOR":      value.String(":"),
		"PHP_OS":              value.String("Linux"),
		"PHP_OS_FAMILY":       value.String("Linux"),
		"PHP_VERSION":         value.String(v.String()),
		"PHP_VERSION_ID":      value.Int(int64(v.ID())),
		"PHP_MAJOR_VERSION":   value.Int(int64(v.Major)),
		"PHP_MINOR_VERSION":   value.Int(int64(v.Minor)),
		"PHP_RELEASE_VERSION": value.Int(int64(v.Patch)),
		"PHP_MAXPATHLEN":      value.Int(4096),
		"M_PI":                value.Float(math.Pi),
		"M_E":                 value.Float(math.E),
		"M_SQRT2":             value.Float(math.Sqrt2),
		"M_LN2":               value.Float(math.Ln2),
		"M_LN10":              value.Float(math.Ln10),
		"E_ERROR":             value.Int(1),
		"E_WARNING":           value.Int(2),
		"E_PARSE":             value.Int(4),
		"E_NOTICE":            value.Int(8),
		"E_CORE_ERROR":        value.Int(16),
		"E_CORE_WARNING":      value.Int(32),
		"E_COMPILE_ERROR":     value.Int(64),
		"E_COMPILE_WARNING":   value.Int(128),
		"E_USER_ERROR":        value.Int(256),
		"E_USER_WARNING":      value.Int(512),
		"E_USER_NOTICE":       value.Int(1024),
		"E_STRICT":            value.Int(2048),
		"E_RECOVERABLE_ERROR": value.Int(4096),
		"E_DEPRECATED":        value.Int(8192),
		"E_USER_DEPRECATED":   value.Int(16384),
		"E_ALL":               value.Int(32767),
		"SORT_REGULAR":        value.Int(0),
		"SORT_NUMERIC":        value.Int(1),
		"SORT_STRING":         value.Int(2),
		"SORT_FLAG_CASE":      value.Int(8),
		"COUNT_NORMAL":        value.Int(0),
		"COUNT_RECURSIVE":     value.Int(1),
		"STR_PAD_LEFT":        value.Int(0),
		"STR_PAD_RIGHT":       value.Int(1),
		"STR_PAD_BOTH":        value.Int(2),
		"PHP_ROUND_HALF_UP":   value.Int(1),
		"PHP_ROUND_HALF_DOWN": value.Int(2),
		"PHP_ROUND_HALF_EVEN": value.Int(3),
		"PHP_ROUND_HALF_ODD":  value.Int(4),
		"MB_CASE_UPPER":       value.Int(0),
		"MB_CASE_LOWER":       value.Int(1),
		"MB_CASE_TITLE":       value.Int(2),
		"ENT_QUOTES":          value.Int(3),

		"JSON_HEX_TAG":           value.Int(1),
		"JSON_UNESCAPED_SLASHES": value.Int(64),
		"JSON_PRETTY_PRINT":      value.Int(128),
		"JSON_UNESCAPED_UNICODE": value.Int(256),
		"JSON_THROW_ON_ERROR":    value.Int(4194304),
		"PREG_PATTERN_ORDER":     value.Int(1),
		"PREG_SET_ORDER":         value.Int(2),
		"PREG_SPLIT_NO_EMPTY":    value.Int(1),
		"ARRAY_FILTER_USE_KEY":   value.Int(2),
		"ARRAY_FILTER_USE_BOTH":  value.Int(1),
	}
}

func (e *Evaluator) evalConstFetch(f *frame, n *source.ConstFetch) (value.Value, error) {
	switch strings.ToLower(strings.TrimPrefix(n.Name, `\`)) {
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	case "null":
		return value.Null(), nil
	}
	name, v, err := e.lookupConstant(f.ctx, n.Name)
	if err != nil {
		return value.Value{}, withLine(err, n)
	}
	if f.depth == 1 {
		f.constant = name
	}
	return v, nil
}

// lookupConstant resolves a constant as written inside ctx and returns its
// fully qualified name together with its value.
func (e *Evaluator) lookupConstant(ctx *Context, written string) (string, value.Value, error) {
	for _, candidate := range ctx.Namespace.ResolveConstant(written) {
		if !strings.Contains(candidate, `\`) {
			if v, ok := e.constants[candidate]; ok {
				return candidate, v, nil
			}
		}
		if ctx.Symbols == nil {
			continue
		}
		v, err := ctx.Symbols.Constant(candidate)
		if err == nil {
			return candidate, v, nil
		}
		if !errors.IsCode(err, errors.CodeNotFound) {
			return "", value.Value{}, err
		}
	}
	return "", value.Value{}, errors.AddContext(
		errors.Newf(errors.CodeUnresolvableReference, "undefined constant %s", written),
		errors.CtxSymbol, written)
}

func (e *Evaluator) evalClassConstFetch(f *frame, n *source.ClassConstFetch) (value.Value, error) {
	class, err := resolveClassRef(f.ctx, n.Class)
	if err != nil {
		return value.Value{}, withLine(err, n)
	}
	if strings.EqualFold(n.Name, "class") {
		return value.String(class), nil
	}
	v, err := e.lookupClassConstant(f.ctx, class, n.Name)
	if err != nil {
		return value.Value{}, withLine(err, n)
	}
	if f.depth == 1 {
		f.constant = class + "::" + n.Name
	}
	return v, nil
}

func (e *Evaluator) lookupClassConstant(ctx *Context, class, name string) (value.Value, error) {
	if ctx.Symbols == nil {
		return value.Value{}, errors.AddContext(
			errors.Newf(errors.CodeUnresolvableReference, "cannot resolve %s::%s without a symbol table", class, name),
			errors.CtxClass, class)
	}
	v, err := ctx.Symbols.ClassConstant(class, name)
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return value.Value{}, errors.AddContext(
				errors.Wrap(err, errors.CodeUnresolvableReference, fmt.Sprintf("undefined constant %s::%s", class, name)),
				errors.CtxClass, class)
		}
		return value.Value{}, err
	}
	return v, nil
}

// resolveClassRef maps a class reference to a fully qualified name. self,
// static and parent are looked up on the class scope; static cannot be
// late-bound without execution so it resolves like self.
func resolveClassRef(ctx *Context, written string) (string, error) {
	switch strings.ToLower(written) {
	case "self", "static":
		if ctx.Class == nil {
			return "", errors.Newf(errors.CodeUnresolvableReference, "cannot use %q outside a class", written)
		}
		return ctx.Class.Name(), nil
	case "parent":
		if ctx.Class == nil {
			return "", errors.New(errors.CodeUnresolvableReference, `cannot use "parent" outside a class`)
		}
		parent := ctx.Class.ParentName()
		if parent == "" {
			return "", errors.AddContext(
				errors.Newf(errors.CodeUnresolvableReference, "class %s has no parent", ctx.Class.Name()),
				errors.CtxClass, ctx.Class.Name())
		}
		return parent, nil
	}
	return ctx.Namespace.ResolveClass(written), nil
}
