// Package locator maps qualified symbol names to the source that declares
// them. The reflection engine depends only on the Locator interface.
package locator

import (
	"strings"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/data/index"
	"staticreflect/internal/engine/source"
)

type Kind int

const (
	KindClass Kind = iota
	KindFunction
	KindConstant
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return index.KindFunction
	case KindConstant:
		return index.KindConstant
	default:
		return index.KindClass
	}
}

// Identifier names a symbol. Name is fully qualified; a leading `\` is
// ignored.
type Identifier struct {
	Name string
	Kind Kind
}

func Class(name string) Identifier    { return Identifier{Name: name, Kind: KindClass} }
func Function(name string) Identifier { return Identifier{Name: name, Kind: KindFunction} }
func Constant(name string) Identifier { return Identifier{Name: name, Kind: KindConstant} }

// Key returns the normalised lookup key.
func (id Identifier) Key() string {
	return index.NameKey(id.Kind.String(), id.Name)
}

// Location is where a symbol is declared. Source, when set, replaces the
// content of Path.
type Location struct {
	Path   string
	Line   int
	Source []byte
}

type Locator interface {
	Locate(id Identifier) (Location, error)
}

// Func adapts a function to the Locator interface.
type Func func(id Identifier) (Location, error)

func (f Func) Locate(id Identifier) (Location, error) { return f(id) }

func notFound(id Identifier) error {
	err := errors.Newf(errors.CodeNotFound, "%s %s not found", id.Kind, strings.TrimPrefix(id.Name, `\`))
	return errors.AddContext(err, errors.CtxSymbol, id.Name)
}

// Declaration is one symbol declared by a file.
type Declaration struct {
	ID   Identifier
	Line int
}

// Declarations lists the classes, functions and constants a file declares,
// including constants defined through define() with a literal name.
func Declarations(file *source.File) []Declaration {
	var out []Declaration
	for _, ns := range file.Namespaces {
		for _, cl := range ns.Classes {
			if cl.Name == "" {
				continue
			}
			out = append(out, Declaration{ID: Class(source.Qualify(ns.Name, cl.Name)), Line: cl.Line})
		}
		for _, fn := range ns.Functions {
			out = append(out, Declaration{ID: Function(source.Qualify(ns.Name, fn.Name)), Line: fn.Line})
		}
		for _, c := range ns.Constants {
			out = append(out, Declaration{ID: Constant(source.Qualify(ns.Name, c.Name)), Line: c.Line})
		}
		for _, call := range ns.Defines {
			if name, ok := DefinedName(call); ok {
				out = append(out, Declaration{ID: Constant(name), Line: call.Line})
			}
		}
	}
	return out
}

// DefinedName returns the constant name of a define() call whose first
// argument is a string literal. define() names are always global.
func DefinedName(call *source.Call) (string, bool) {
	if len(call.Args) == 0 {
		return "", false
	}
	lit, ok := call.Args[0].Value.(*source.StringLit)
	if !ok || lit.Value == "" {
		return "", false
	}
	return strings.TrimPrefix(lit.Value, `\`), true
}

// symbolTable is the in-memory declaration map shared by locators.
type symbolTable map[Kind]map[string]Location

func (t symbolTable) add(id Identifier, loc Location) {
	byName, ok := t[id.Kind]
	if !ok {
		byName = make(map[string]Location)
		t[id.Kind] = byName
	}
	key := id.Key()
	if _, exists := byName[key]; !exists {
		byName[key] = loc
	}
}

func (t symbolTable) lookup(id Identifier) (Location, bool) {
	loc, ok := t[id.Kind][id.Key()]
	return loc, ok
}

func (t symbolTable) removePath(path string) {
	for _, byName := range t {
		for key, loc := range byName {
			if loc.Path == path {
				delete(byName, key)
			}
		}
	}
}

func (t symbolTable) size() int {
	n := 0
	for _, byName := range t {
		n += len(byName)
	}
	return n
}
