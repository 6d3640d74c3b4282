package reflection

import (
	"strings"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/eval"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/engine/typesys"
	"staticreflect/internal/engine/value"
)

// signature is the parameter list and return type shared by methods and
// functions.
type signature struct {
	r          *Reflector
	file       *source.File
	ns         *source.Namespace
	params     []*source.Param
	returnType source.TypeExpr
	owner      string
	scope      func() *eval.Context

	parameters []*Parameter
	ret        memo[typesys.Type]
}

func (s *signature) Parameters() []*Parameter {
	if s.parameters == nil {
		s.parameters = make([]*Parameter, len(s.params))
		for i, p := range s.params {
			s.parameters[i] = &Parameter{sig: s, decl: p, position: i}
		}
	}
	return s.parameters
}

// Parameter looks a parameter up by name, with or without the "$".
func (s *signature) Parameter(name string) (*Parameter, error) {
	name = strings.TrimPrefix(name, "$")
	for _, p := range s.Parameters() {
		if p.decl.Name == name {
			return p, nil
		}
	}
	err := errors.Newf(errors.CodeNotFound, "parameter $%s of %s does not exist", name, s.owner)
	return nil, errors.AddContext(err, errors.CtxMember, name)
}

func (s *signature) NumberOfParameters() int { return len(s.params) }

// NumberOfRequiredParameters counts up to the last parameter that has
// neither a default nor is variadic. Defaults before it do not make a
// parameter optional.
func (s *signature) NumberOfRequiredParameters() int {
	required := 0
	for i, p := range s.params {
		if p.Default == nil && !p.Variadic {
			required = i + 1
		}
	}
	return required
}

func (s *signature) HasReturnType() bool { return s.returnType != nil }

// ReturnType returns nil without error when no return type is declared.
func (s *signature) ReturnType() (typesys.Type, error) {
	if s.returnType == nil {
		return nil, nil
	}
	return s.ret.get(func() (typesys.Type, error) {
		t, err := s.r.types.ResolveIn(s.returnType, typesys.UsageReturn, false, s.ns.ResolveClass)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxSymbol, s.owner)
		}
		return t, nil
	})
}

type Parameter struct {
	sig      *signature
	decl     *source.Param
	position int

	typ   memo[typesys.Type]
	def   memo[eval.Result]
	attrs []*Attribute
}

// Name is the parameter name without the "$".
func (p *Parameter) Name() string              { return p.decl.Name }
func (p *Parameter) Position() int             { return p.position }
func (p *Parameter) IsVariadic() bool          { return p.decl.Variadic }
func (p *Parameter) IsPassedByReference() bool { return p.decl.ByRef }
func (p *Parameter) IsPromoted() bool          { return p.decl.Promoted != 0 }
func (p *Parameter) HasType() bool             { return p.decl.Type != nil }
func (p *Parameter) HasDefaultValue() bool     { return p.decl.Default != nil }

// IsOptional reports a parameter after the last required one.
func (p *Parameter) IsOptional() bool {
	return p.position >= p.sig.NumberOfRequiredParameters()
}

// Type resolves the declared type. A default of null makes it implicitly
// nullable.
func (p *Parameter) Type() (typesys.Type, error) {
	if p.decl.Type == nil {
		return nil, nil
	}
	return p.typ.get(func() (typesys.Type, error) {
		t, err := p.sig.r.types.ResolveIn(p.decl.Type, typesys.UsageParameter, p.defaultsToNull(), p.sig.ns.ResolveClass)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxMember, "$"+p.decl.Name)
		}
		return t, nil
	})
}

func (p *Parameter) defaultsToNull() bool {
	c, ok := p.decl.Default.(*source.ConstFetch)
	return ok && strings.EqualFold(strings.TrimPrefix(c.Name, `\`), "null")
}

// AllowsNull is true for untyped parameters.
func (p *Parameter) AllowsNull() (bool, error) {
	t, err := p.Type()
	if err != nil || t == nil {
		return err == nil, err
	}
	return t.AllowsNull(), nil
}

func (p *Parameter) defaultResult() (eval.Result, error) {
	if p.decl.Default == nil {
		err := errors.Newf(errors.CodeNotFound, "parameter $%s of %s has no default value", p.decl.Name, p.sig.owner)
		return eval.Result{}, errors.AddContext(err, errors.CtxMember, "$"+p.decl.Name)
	}
	return p.def.get(func() (eval.Result, error) {
		return p.sig.r.evaluate(p.decl.Default, p.sig.scope())
	})
}

func (p *Parameter) DefaultValue() (value.Value, error) {
	res, err := p.defaultResult()
	return res.Value, err
}

// IsDefaultValueConstant reports a default written as a bare constant
// reference such as PHP_EOL or self::LIMIT.
func (p *Parameter) IsDefaultValueConstant() (bool, error) {
	res, err := p.defaultResult()
	return res.IsConstantReference(), err
}

func (p *Parameter) DefaultValueConstantName() (string, error) {
	res, err := p.defaultResult()
	return res.ConstantName, err
}

// DefaultValueText is the default as written, or printed back when the
// source text is unavailable.
func (p *Parameter) DefaultValueText() string {
	if p.decl.Default == nil {
		return ""
	}
	if text := p.sig.file.Text(p.decl.Default); text != "" {
		return text
	}
	return source.PrintExpr(p.decl.Default)
}

func (p *Parameter) Attributes() []*Attribute {
	if p.attrs == nil {
		p.attrs = newAttributes(p.sig.r, p.sig.file, p.sig.ns, p.decl.Attributes, TargetParameter, p.sig.scope)
	}
	return p.attrs
}

// Function reflects a namespace-level function.
type Function struct {
	signature
	decl *source.Function
	name string

	attrs []*Attribute
	live  bridge[LiveFunction]
}

func newFunction(r *Reflector, file *source.File, ns *source.Namespace, decl *source.Function) *Function {
	fn := &Function{decl: decl, name: source.Qualify(ns.Name, decl.Name)}
	fn.signature = signature{
		r:          r,
		file:       file,
		ns:         ns,
		params:     decl.Params,
		returnType: decl.ReturnType,
		owner:      fn.name,
	}
	fn.scope = func() *eval.Context {
		return &eval.Context{File: file, Namespace: ns, Function: fn.name}
	}
	return fn
}

func (f *Function) Name() string           { return f.name }
func (f *Function) ShortName() string      { return f.decl.Name }
func (f *Function) NamespaceName() string  { return f.ns.Name }
func (f *Function) InNamespace() bool      { return f.ns.Name != "" }
func (f *Function) FileName() string       { return f.file.Path }
func (f *Function) StartLine() int         { return f.decl.Line }
func (f *Function) EndLine() int           { return f.decl.EndLine }
func (f *Function) DocComment() string     { return f.decl.DocComment }
func (f *Function) ReturnsReference() bool { return f.decl.ByRef }
func (f *Function) IsGenerator() bool      { return f.decl.Generator }

func (f *Function) IsVariadic() bool {
	for _, p := range f.decl.Params {
		if p.Variadic {
			return true
		}
	}
	return false
}

func (f *Function) Attributes() []*Attribute {
	if f.attrs == nil {
		f.attrs = newAttributes(f.r, f.file, f.ns, f.decl.Attributes, TargetFunction, f.scope)
	}
	return f.attrs
}

// Invoke calls the function through the live runtime.
func (f *Function) Invoke(args ...any) (any, error) {
	live, err := f.live.open(f.r, "function", f.name, func(rt Runtime) (LiveFunction, error) {
		return rt.Function(f.name)
	})
	if err != nil {
		return nil, err
	}
	return live.Invoke(args...)
}

func (f *Function) LiveState() LiveState { return f.live.state }

// Constant reflects a global or namespaced constant declared with const or
// define().
type Constant struct {
	r       *Reflector
	file    *source.File
	ns      *source.Namespace
	name    string
	expr    source.Expr
	pos     source.Position
	doc     string
	defined bool

	evaluating bool
	result     memo[eval.Result]
}

func newDeclaredConstant(r *Reflector, file *source.File, ns *source.Namespace, decl *source.ConstDecl) *Constant {
	return &Constant{
		r:    r,
		file: file,
		ns:   ns,
		name: source.Qualify(ns.Name, decl.Name),
		expr: decl.Value,
		pos:  decl.Position,
		doc:  decl.DocComment,
	}
}

// newDefinedConstant wraps define(name, value). Names passed to define are
// always fully qualified, whatever the enclosing namespace.
func newDefinedConstant(r *Reflector, file *source.File, ns *source.Namespace, call *source.Call, name string) *Constant {
	k := &Constant{r: r, file: file, ns: ns, name: name, pos: call.Position, defined: true}
	if len(call.Args) > 1 {
		k.expr = call.Args[1].Value
	}
	return k
}

func (k *Constant) Name() string          { return k.name }
func (k *Constant) ShortName() string     { return source.ShortName(k.name) }
func (k *Constant) NamespaceName() string { return source.NamespaceOf(k.name) }
func (k *Constant) InNamespace() bool     { return k.NamespaceName() != "" }
func (k *Constant) FileName() string      { return k.file.Path }
func (k *Constant) StartLine() int        { return k.pos.Line }
func (k *Constant) DocComment() string    { return k.doc }

// IsDefined reports a constant created by define() rather than const.
func (k *Constant) IsDefined() bool { return k.defined }

// Result evaluates the constant's value along with its provenance.
func (k *Constant) Result() (eval.Result, error) {
	return k.result.get(func() (eval.Result, error) {
		if k.expr == nil {
			err := errors.Newf(errors.CodeUnsupportedConstruct, "define(%q) has no value argument", k.name)
			return eval.Result{}, errors.AddContext(err, errors.CtxSymbol, k.name)
		}
		if k.evaluating {
			err := errors.Newf(errors.CodeCircularReference, "constant %s refers to itself", k.name)
			return eval.Result{}, errors.AddContext(err, errors.CtxSymbol, k.name)
		}
		k.evaluating = true
		defer func() { k.evaluating = false }()
		return k.r.evaluate(k.expr, &eval.Context{File: k.file, Namespace: k.ns})
	})
}

func (k *Constant) Value() (value.Value, error) {
	res, err := k.Result()
	return res.Value, err
}

// ValueText is the value expression as written.
func (k *Constant) ValueText() string {
	if k.expr == nil {
		return ""
	}
	if text := k.file.Text(k.expr); text != "" {
		return text
	}
	return source.PrintExpr(k.expr)
}
