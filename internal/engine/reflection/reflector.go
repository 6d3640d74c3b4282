// Package reflection exposes PHP declarations as reflective entities built
// from source alone. Entities are created on first lookup, memoise every
// query result and are never invalidated.
//
// Entities are not safe for concurrent use: callers serialise queries per
// class. The Reflector itself may be shared between goroutines.
package reflection

import (
	"log/slog"
	"strings"
	"sync"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/eval"
	"staticreflect/internal/engine/locator"
	"staticreflect/internal/engine/parser"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/engine/typesys"
	"staticreflect/internal/engine/value"
	"staticreflect/internal/shared/observability"
	"staticreflect/internal/shared/util"
)

type Options struct {
	Locator   locator.Locator
	Cache     *parser.Cache
	Evaluator *eval.Evaluator
	Types     *typesys.Resolver
	// Runtime backs behavioural queries. Without one they fail with
	// NOT_SUPPORTED.
	Runtime Runtime
	// MaxHeapMB halves the parse cache whenever the live heap grows past
	// it. Zero disables the check.
	MaxHeapMB uint64
}

// Reflector owns the entity registry: each class-like, function and
// constant name maps to a single entity for the reflector's lifetime.
type Reflector struct {
	locator   locator.Locator
	cache     *parser.Cache
	eval      *eval.Evaluator
	types     *typesys.Resolver
	runtime   Runtime
	maxHeapMB uint64

	mu        sync.Mutex
	classes   map[string]*Class
	functions map[string]*Function
	constants map[string]*Constant

	// composeMu serialises composition table construction so a partially
	// built table is never observed.
	composeMu sync.Mutex
}

func NewReflector(opts Options) (*Reflector, error) {
	if opts.Locator == nil {
		return nil, errors.New(errors.CodeInvalidConfiguration, "reflector needs a locator")
	}
	r := &Reflector{
		locator:   opts.Locator,
		cache:     opts.Cache,
		eval:      opts.Evaluator,
		types:     opts.Types,
		runtime:   opts.Runtime,
		maxHeapMB: opts.MaxHeapMB,
		classes:   make(map[string]*Class),
		functions: make(map[string]*Function),
		constants: make(map[string]*Constant),
	}
	if r.cache == nil {
		r.cache = parser.NewCache(nil, parser.DefaultCacheSize)
	}
	if r.eval == nil {
		r.eval = eval.NewEvaluator()
	}
	if r.types == nil {
		r.types = typesys.NewResolver(nil)
	}
	return r, nil
}

// Types returns the type resolver entities use.
func (r *Reflector) Types() *typesys.Resolver { return r.types }

// Release drops every entity. Entities already handed out stay usable.
func (r *Reflector) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	observability.ReflectedClasses.Sub(float64(len(r.classes)))
	r.classes = make(map[string]*Class)
	r.functions = make(map[string]*Function)
	r.constants = make(map[string]*Constant)
}

// ReflectClass returns the class, interface, trait or enum with the given
// fully qualified name. Names are case-insensitive.
func (r *Reflector) ReflectClass(name string) (*Class, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), `\`)
	if name == "" {
		return nil, errors.New(errors.CodeNotFound, "empty class name")
	}
	key := strings.ToLower(name)

	r.mu.Lock()
	c, ok := r.classes[key]
	r.mu.Unlock()
	if ok {
		return c, nil
	}

	file, err := r.load(locator.Class(name))
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxClass, name)
	}
	for _, ns := range file.Namespaces {
		for _, decl := range ns.Classes {
			if decl.Name != "" && strings.EqualFold(source.Qualify(ns.Name, decl.Name), name) {
				return r.registerClass(file, ns, decl), nil
			}
		}
	}
	return nil, errors.AddContext(
		errors.Newf(errors.CodeNotFound, "class %s is not declared in %s", name, file.Path),
		errors.CtxClass, name)
}

func (r *Reflector) registerClass(file *source.File, ns *source.Namespace, decl *source.ClassLike) *Class {
	name := source.Qualify(ns.Name, decl.Name)
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.classes[key]; ok {
		return c
	}
	c := newClass(r, file, ns, decl)
	r.classes[key] = c
	observability.ReflectedClasses.Inc()
	return c
}

// ReflectFunction returns a namespace-level function.
func (r *Reflector) ReflectFunction(name string) (*Function, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), `\`)
	key := strings.ToLower(name)

	r.mu.Lock()
	fn, ok := r.functions[key]
	r.mu.Unlock()
	if ok {
		return fn, nil
	}

	file, err := r.load(locator.Function(name))
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxSymbol, name)
	}
	for _, ns := range file.Namespaces {
		for _, decl := range ns.Functions {
			if strings.EqualFold(source.Qualify(ns.Name, decl.Name), name) {
				return r.registerFunction(file, ns, decl), nil
			}
		}
	}
	return nil, errors.AddContext(
		errors.Newf(errors.CodeNotFound, "function %s is not declared in %s", name, file.Path),
		errors.CtxSymbol, name)
}

func (r *Reflector) registerFunction(file *source.File, ns *source.Namespace, decl *source.Function) *Function {
	name := source.Qualify(ns.Name, decl.Name)
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if fn, ok := r.functions[key]; ok {
		return fn
	}
	fn := newFunction(r, file, ns, decl)
	r.functions[key] = fn
	return fn
}

// ReflectConstant returns a constant declared with const or define(). The
// namespace part of name is case-insensitive, the constant name is not.
func (r *Reflector) ReflectConstant(name string) (*Constant, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), `\`)
	key := constantKey(name)

	r.mu.Lock()
	c, ok := r.constants[key]
	r.mu.Unlock()
	if ok {
		return c, nil
	}

	file, err := r.load(locator.Constant(name))
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxSymbol, name)
	}
	for _, ns := range file.Namespaces {
		for _, decl := range ns.Constants {
			if constantKey(source.Qualify(ns.Name, decl.Name)) == key {
				return r.registerConstant(newDeclaredConstant(r, file, ns, decl)), nil
			}
		}
		for _, call := range ns.Defines {
			if defined, ok := locator.DefinedName(call); ok && constantKey(defined) == key {
				return r.registerConstant(newDefinedConstant(r, file, ns, call, defined)), nil
			}
		}
	}
	return nil, errors.AddContext(
		errors.Newf(errors.CodeNotFound, "constant %s is not declared in %s", name, file.Path),
		errors.CtxSymbol, name)
}

func (r *Reflector) registerConstant(c *Constant) *Constant {
	key := constantKey(c.name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.constants[key]; ok {
		return existing
	}
	r.constants[key] = c
	return c
}

func constantKey(name string) string {
	return locator.Constant(name).Key()
}

// ReflectFile parses path and exposes everything it declares. A non-nil
// content replaces what is on disk.
func (r *Reflector) ReflectFile(path string, content []byte) (*File, error) {
	f, err := r.cache.Parse(path, content)
	if err != nil {
		return nil, err
	}
	r.trimCache()
	return newFile(r, f), nil
}

// load locates id and returns the parsed file declaring it. Files already
// in the parse cache are not parsed again even when the locator supplies
// their content.
func (r *Reflector) load(id locator.Identifier) (*source.File, error) {
	loc, err := r.locator.Locate(id)
	if err != nil {
		return nil, err
	}
	if f, ok := r.cache.Peek(loc.Path); ok {
		return f, nil
	}
	f, err := r.cache.Parse(loc.Path, loc.Source)
	if err != nil {
		return nil, err
	}
	r.trimCache()
	return f, nil
}

func (r *Reflector) trimCache() {
	if r.maxHeapMB == 0 {
		return
	}
	if heap := util.HeapAllocMB(); heap > r.maxHeapMB {
		evicted := r.cache.Shrink(r.cache.Len() / 2)
		slog.Debug("parse cache trimmed under memory pressure", "heap_mb", heap, "evicted", evicted)
	}
}

// evaluate folds expr with constant lookups served by r.
func (r *Reflector) evaluate(expr source.Expr, ctx *eval.Context) (eval.Result, error) {
	ctx.Symbols = symbols{r}
	return r.eval.Evaluate(expr, ctx)
}

// symbols resolves constants and class constants for the evaluator through
// the reflector's own entities.
type symbols struct {
	r *Reflector
}

func (s symbols) Constant(name string) (value.Value, error) {
	c, err := s.r.ReflectConstant(name)
	if err != nil {
		return value.Value{}, err
	}
	v, err := c.Value()
	if err != nil && errors.IsCode(err, errors.CodeNotFound) {
		return value.Value{}, errors.Wrap(err, errors.CodeUnresolvableReference, "constant "+name)
	}
	return v, err
}

func (s symbols) ClassConstant(class, name string) (value.Value, error) {
	c, err := s.r.ReflectClass(class)
	if err != nil {
		return value.Value{}, err
	}
	k, err := c.Constant(name)
	if err != nil {
		return value.Value{}, err
	}
	return k.Value()
}

func (s symbols) Function(name string) error {
	_, err := s.r.ReflectFunction(name)
	return err
}

func (s symbols) EnumCaseValue(class, name string) (value.Value, error) {
	c, err := s.r.ReflectClass(class)
	if err != nil {
		return value.Value{}, err
	}
	ec, err := c.Case(name)
	if err != nil {
		return value.Value{}, err
	}
	return ec.BackingValue()
}
