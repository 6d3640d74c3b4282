package eval

import (
	"fmt"
	"path/filepath"
	"strings"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/engine/typesys"
	"staticreflect/internal/engine/value"
	"staticreflect/internal/shared/observability"
)

// maxEvalDepth bounds expression nesting so malformed input cannot exhaust
// the stack.
const maxEvalDepth = 512

// Evaluator folds expressions. It holds no per-evaluation state and may be
// shared; each Evaluate call runs on its own frame.
type Evaluator struct {
	version   typesys.Version
	constants map[string]value.Value
	builtins  map[string]Builtin
}

type Option func(*Evaluator)

// WithVersion sets the host version reported by PHP_VERSION and friends.
func WithVersion(v typesys.Version) Option {
	return func(e *Evaluator) { e.version = v }
}

// WithBuiltin registers an additional trusted function. name is matched
// case-insensitively.
func WithBuiltin(name string, fn Builtin) Option {
	return func(e *Evaluator) { e.builtins[strings.ToLower(name)] = fn }
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		version:  typesys.Version{Major: 8, Minor: 3},
		builtins: defaultBuiltins(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.constants = predefinedConstants(e.version)
	return e
}

// frame is the evaluation stack of a single Evaluate call.
type frame struct {
	ctx      *Context
	depth    int
	constant string
}

// Evaluate folds expr in ctx. It fails with UNSUPPORTED_CONSTRUCT when expr
// has no folding rule and with UNRESOLVABLE_REFERENCE when a name cannot be
// resolved.
func (e *Evaluator) Evaluate(expr source.Expr, ctx *Context) (Result, error) {
	if ctx == nil {
		ctx = &Context{}
	}
	f := &frame{ctx: ctx}
	v, err := e.eval(f, expr)
	if err != nil {
		observability.EvaluationFailures.WithLabelValues(string(errors.CodeOf(err))).Inc()
		return Result{}, err
	}
	return Result{Value: v, ConstantName: f.constant}, nil
}

func (e *Evaluator) eval(f *frame, expr source.Expr) (value.Value, error) {
	if p, ok := expr.(*source.ParenExpr); ok {
		return e.eval(f, p.Inner)
	}
	f.depth++
	defer func() { f.depth-- }()
	if f.depth > maxEvalDepth {
		return value.Value{}, unsupported(expr, "expression nesting too deep")
	}

	switch n := expr.(type) {
	case nil:
		return value.Value{}, errors.New(errors.CodeUnsupportedConstruct, "missing expression")
	case *source.IntLit:
		return value.Int(n.Value), nil
	case *source.FloatLit:
		return value.Float(n.Value), nil
	case *source.StringLit:
		return value.String(n.Value), nil
	case *source.InterpolatedString:
		return e.evalInterpolated(f, n)
	case *source.ArrayLit:
		return e.evalArray(f, n)
	case *source.BinaryExpr:
		return e.evalBinary(f, n)
	case *source.UnaryExpr:
		return e.evalUnary(f, n)
	case *source.TernaryExpr:
		return e.evalTernary(f, n)
	case *source.CastExpr:
		return e.evalCast(f, n)
	case *source.ConstFetch:
		return e.evalConstFetch(f, n)
	case *source.ClassConstFetch:
		return e.evalClassConstFetch(f, n)
	case *source.MagicConst:
		return e.evalMagic(f, n)
	case *source.Call:
		return e.evalCall(f, n)
	case *source.IndexFetch:
		return e.evalIndex(f, n, false)
	case *source.PropertyFetch:
		return e.evalPropertyFetch(f, n)
	}
	return value.Value{}, unsupported(expr, fmt.Sprintf("no folding rule for %s", nodeKind(expr)))
}

func (e *Evaluator) evalInterpolated(f *frame, n *source.InterpolatedString) (value.Value, error) {
	var sb strings.Builder
	for _, part := range n.Parts {
		if lit, ok := part.(*source.StringLit); ok {
			sb.WriteString(lit.Value)
			continue
		}
		v, err := e.eval(f, part)
		if err != nil {
			return value.Value{}, err
		}
		s, err := value.ToString(v)
		if err != nil {
			return value.Value{}, operandError(part, err)
		}
		sb.WriteString(s)
	}
	return value.String(sb.String()), nil
}

func (e *Evaluator) evalArray(f *frame, n *source.ArrayLit) (value.Value, error) {
	arr := value.NewArray()
	for _, item := range n.Items {
		if item.ByRef {
			return value.Value{}, unsupported(item, "by-reference array element")
		}
		v, err := e.eval(f, item.Value)
		if err != nil {
			return value.Value{}, err
		}
		if item.Unpack {
			if err := spread(arr, v, item); err != nil {
				return value.Value{}, err
			}
			continue
		}
		if item.Key == nil {
			if err := arr.Append(v); err != nil {
				return value.Value{}, operandError(item, err)
			}
			continue
		}
		kv, err := e.eval(f, item.Key)
		if err != nil {
			return value.Value{}, err
		}
		key, err := value.NormalizeKey(kv)
		if err != nil {
			return value.Value{}, operandError(item.Key, err)
		}
		arr.Set(key, v)
	}
	return value.ArrayOf(arr), nil
}

// spread appends integer keys and overwrites string keys.
func spread(dst *value.Array, v value.Value, at source.Node) error {
	if v.Kind() != value.KindArray {
		return unsupported(at, fmt.Sprintf("cannot unpack %s", v.Kind()))
	}
	var err error
	v.ArrayValue().Each(func(k value.Key, item value.Value) bool {
		if k.IsString {
			dst.Set(k, item)
			return true
		}
		if err = dst.Append(item); err != nil {
			return false
		}
		return true
	})
	if err != nil {
		return operandError(at, err)
	}
	return nil
}

func (e *Evaluator) evalTernary(f *frame, n *source.TernaryExpr) (value.Value, error) {
	cond, err := e.eval(f, n.Cond)
	if err != nil {
		return value.Value{}, err
	}
	if value.ToBool(cond) {
		if n.Then == nil {
			return cond, nil
		}
		return e.eval(f, n.Then)
	}
	return e.eval(f, n.Else)
}

func (e *Evaluator) evalCast(f *frame, n *source.CastExpr) (value.Value, error) {
	v, err := e.eval(f, n.Expr)
	if err != nil {
		return value.Value{}, err
	}
	switch strings.ToLower(n.Type) {
	case "int", "integer":
		i, err := value.ToInt(v)
		if err != nil {
			return value.Value{}, operandError(n, err)
		}
		return value.Int(i), nil
	case "float", "double", "real":
		x, err := value.ToFloat(v)
		if err != nil {
			return value.Value{}, operandError(n, err)
		}
		return value.Float(x), nil
	case "string", "binary":
		s, err := value.ToString(v)
		if err != nil {
			return value.Value{}, operandError(n, err)
		}
		return value.String(s), nil
	case "bool", "boolean":
		return value.Bool(value.ToBool(v)), nil
	case "array":
		switch v.Kind() {
		case value.KindArray:
			return v, nil
		case value.KindNull:
			return value.ArrayOf(value.NewArray()), nil
		case value.KindEnumCase, value.KindUnresolved:
			return value.Value{}, unsupported(n, "array cast of an object")
		}
		return value.ArrayOf(value.NewList(v)), nil
	}
	return value.Value{}, unsupported(n, fmt.Sprintf("(%s) cast", n.Type))
}

func (e *Evaluator) evalIndex(f *frame, n *source.IndexFetch, quiet bool) (value.Value, error) {
	target, err := e.eval(f, n.Target)
	if err != nil {
		return value.Value{}, err
	}
	if n.Index == nil {
		return value.Value{}, unsupported(n, "empty index in a read context")
	}
	idx, err := e.eval(f, n.Index)
	if err != nil {
		return value.Value{}, err
	}
	switch target.Kind() {
	case value.KindArray:
		key, err := value.NormalizeKey(idx)
		if err != nil {
			return value.Value{}, operandError(n.Index, err)
		}
		if v, ok := target.ArrayValue().Get(key); ok {
			return v, nil
		}
		if quiet {
			return value.Null(), nil
		}
		return value.Value{}, unresolvable(n, fmt.Sprintf("undefined array key %s", key))
	case value.KindString:
		i, err := value.ToInt(idx)
		if err != nil {
			return value.Value{}, operandError(n.Index, err)
		}
		s := target.StringValue()
		if i < 0 {
			i += int64(len(s))
		}
		if i < 0 || i >= int64(len(s)) {
			if quiet {
				return value.Null(), nil
			}
			return value.Value{}, unresolvable(n, fmt.Sprintf("uninitialized string offset %d", i))
		}
		return value.String(s[i : i+1]), nil
	case value.KindNull:
		return value.Null(), nil
	}
	return value.Value{}, unsupported(n, fmt.Sprintf("cannot index %s", target.Kind()))
}

// evalPropertyFetch supports ->name and ->value on enum cases.
func (e *Evaluator) evalPropertyFetch(f *frame, n *source.PropertyFetch) (value.Value, error) {
	obj, err := e.eval(f, n.Object)
	if err != nil {
		return value.Value{}, err
	}
	if obj.IsNull() && n.NullSafe {
		return value.Null(), nil
	}
	if obj.Kind() != value.KindEnumCase {
		return value.Value{}, unsupported(n, "property fetch on a non-enum value")
	}
	switch n.Property {
	case "name":
		return value.String(obj.EnumCaseName()), nil
	case "value":
		if f.ctx.Symbols == nil {
			return value.Value{}, unresolvable(n, "no symbol table to resolve enum case values")
		}
		v, err := f.ctx.Symbols.EnumCaseValue(obj.EnumClass(), obj.EnumCaseName())
		if err != nil {
			return value.Value{}, errors.AddContext(err, errors.CtxSymbol, obj.EnumClass()+"::"+obj.EnumCaseName())
		}
		return v, nil
	}
	return value.Value{}, unsupported(n, fmt.Sprintf("enum property %q", n.Property))
}

func (e *Evaluator) evalMagic(f *frame, n *source.MagicConst) (value.Value, error) {
	ctx := f.ctx
	switch n.Kind {
	case source.MagicLine:
		return value.Int(int64(n.Line)), nil
	case source.MagicFile, source.MagicDir:
		if ctx.File == nil || ctx.File.Path == "" {
			return value.Value{}, unresolvable(n, n.Kind.String()+" outside a file")
		}
		if n.Kind == source.MagicDir {
			return value.String(filepath.Dir(ctx.File.Path)), nil
		}
		return value.String(ctx.File.Path), nil
	case source.MagicNamespace:
		return value.String(ctx.namespaceName()), nil
	case source.MagicClass:
		if ctx.Class == nil {
			return value.Value{}, unresolvable(n, "__CLASS__ outside a class")
		}
		return value.String(ctx.Class.Name()), nil
	case source.MagicTrait:
		if ctx.Trait == "" {
			return value.Value{}, unresolvable(n, "__TRAIT__ outside a trait")
		}
		return value.String(ctx.Trait), nil
	case source.MagicFunction:
		if ctx.Function == "" {
			return value.Value{}, unresolvable(n, "__FUNCTION__ outside a function")
		}
		return value.String(ctx.Function), nil
	case source.MagicMethod:
		if ctx.Function == "" {
			return value.Value{}, unresolvable(n, "__METHOD__ outside a function")
		}
		// trait methods keep the trait's name, unlike __CLASS__
		switch {
		case ctx.Trait != "":
			return value.String(ctx.Trait + "::" + ctx.Function), nil
		case ctx.Class != nil:
			return value.String(ctx.Class.Name() + "::" + ctx.Function), nil
		}
		return value.String(ctx.Function), nil
	case source.MagicProperty:
		if ctx.Property == "" {
			return value.Value{}, unresolvable(n, "__PROPERTY__ outside a property")
		}
		return value.String(ctx.Property), nil
	}
	return value.Value{}, unsupported(n, "unknown magic constant")
}

func nodeKind(expr source.Expr) string {
	if u, ok := expr.(*source.Unknown); ok {
		return u.Kind
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", expr), "*source.")
}

func unsupported(n source.Node, msg string) error {
	return withLine(errors.New(errors.CodeUnsupportedConstruct, msg), n)
}

func unresolvable(n source.Node, msg string) error {
	return withLine(errors.New(errors.CodeUnresolvableReference, msg), n)
}

// operandError reports a failed value operation; folding cannot continue so
// the construct is unsupported for static evaluation.
func operandError(n source.Node, err error) error {
	return withLine(errors.Wrap(err, errors.CodeUnsupportedConstruct, "cannot fold operation"), n)
}

func withLine(err error, n source.Node) error {
	if n == nil {
		return err
	}
	return errors.AddContext(err, errors.CtxNode, fmt.Sprintf("line %d", n.Pos().Line))
}
