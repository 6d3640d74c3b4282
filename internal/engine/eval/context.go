// Package eval folds constant expressions into symbolic values.
package eval

import (
	"staticreflect/internal/engine/source"
	"staticreflect/internal/engine/value"
)

// ClassScope is the class-like that self and static resolve to.
type ClassScope interface {
	// Name is the fully qualified class name.
	Name() string
	// ParentName is the fully qualified parent class name, "" when the class
	// has no parent.
	ParentName() string
}

// Symbols resolves user declarations the evaluator cannot see on its own.
// Implementations report NOT_FOUND for unknown names.
type Symbols interface {
	// Constant returns the value of a global or namespaced constant by its
	// fully qualified name.
	Constant(name string) (value.Value, error)
	// ClassConstant returns class::name; enum cases yield value.EnumCase.
	ClassConstant(class, name string) (value.Value, error)
	// EnumCaseValue returns the backing value of a case of a backed enum.
	EnumCaseValue(class, name string) (value.Value, error)
	// Function reports NOT_FOUND unless a user function with the fully
	// qualified name is declared.
	Function(name string) error
}

// Context describes where an expression appears. Every field is optional;
// a query that needs a missing facet fails with UNRESOLVABLE_REFERENCE.
type Context struct {
	File      *source.File
	Namespace *source.Namespace
	// Class is what self resolves to. For trait members reflected through a
	// class this is the using class.
	Class ClassScope
	// Trait is the trait that lexically contains the expression.
	Trait    string
	Function string
	Property string
	Symbols  Symbols
}

// Result is an evaluated value with its provenance.
type Result struct {
	Value value.Value
	// ConstantName is set when the expression is itself a bare constant or
	// class constant reference, e.g. "PHP_EOL" or `App\Foo::BAR`.
	ConstantName string
}

// IsConstantReference reports whether the evaluated expression was a named
// constant rather than a literal or a computed value.
func (r Result) IsConstantReference() bool {
	return r.ConstantName != ""
}

func (c *Context) namespaceName() string {
	if c == nil || c.Namespace == nil {
		return ""
	}
	return c.Namespace.Name
}
