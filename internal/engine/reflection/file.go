package reflection

import (
	"log/slog"

	"staticreflect/internal/engine/eval"
	"staticreflect/internal/engine/locator"
	"staticreflect/internal/engine/source"
)

// File reflects everything a parsed file declares. Declarations are
// registered with the reflector, so a class reached through a File is the
// same entity ReflectClass returns.
type File struct {
	r          *Reflector
	src        *source.File
	namespaces []*Namespace
}

func newFile(r *Reflector, f *source.File) *File {
	file := &File{r: r, src: f}
	for _, ns := range f.Namespaces {
		file.namespaces = append(file.namespaces, &Namespace{r: r, file: f, decl: ns})
	}
	return file
}

func (f *File) Path() string { return f.src.Path }

func (f *File) Namespaces() []*Namespace { return f.namespaces }

func (f *File) Classes() []*Class {
	var out []*Class
	for _, ns := range f.namespaces {
		out = append(out, ns.Classes()...)
	}
	return out
}

func (f *File) Functions() []*Function {
	var out []*Function
	for _, ns := range f.namespaces {
		out = append(out, ns.Functions()...)
	}
	return out
}

func (f *File) Constants() []*Constant {
	var out []*Constant
	for _, ns := range f.namespaces {
		out = append(out, ns.Constants()...)
	}
	return out
}

// Namespace reflects one namespace block of a file.
type Namespace struct {
	r    *Reflector
	file *source.File
	decl *source.Namespace
}

// Name is "" for the global namespace.
func (n *Namespace) Name() string     { return n.decl.Name }
func (n *Namespace) IsGlobal() bool   { return n.decl.Name == "" }
func (n *Namespace) StartLine() int   { return n.decl.Line }
func (n *Namespace) FileName() string { return n.file.Path }

// Use is one import of a namespace block.
type Use struct {
	Kind  source.UseKind
	Name  string
	Alias string
}

func (n *Namespace) Uses() []Use {
	out := make([]Use, 0, len(n.decl.Uses))
	for _, u := range n.decl.Uses {
		out = append(out, Use{Kind: u.Kind, Name: u.Name, Alias: u.LocalName()})
	}
	return out
}

// ResolveClass qualifies a class name as written in this block.
func (n *Namespace) ResolveClass(name string) string { return n.decl.ResolveClass(name) }

// Classes lists named class-likes; anonymous classes are not reflectable
// by name and are left out.
func (n *Namespace) Classes() []*Class {
	var out []*Class
	for _, decl := range n.decl.Classes {
		if decl.Name == "" {
			continue
		}
		out = append(out, n.r.registerClass(n.file, n.decl, decl))
	}
	return out
}

func (n *Namespace) Functions() []*Function {
	out := make([]*Function, 0, len(n.decl.Functions))
	for _, decl := range n.decl.Functions {
		out = append(out, n.r.registerFunction(n.file, n.decl, decl))
	}
	return out
}

// Constants lists const declarations followed by define() calls. A
// define() whose name is not a string literal is skipped.
func (n *Namespace) Constants() []*Constant {
	out := make([]*Constant, 0, len(n.decl.Constants)+len(n.decl.Defines))
	for _, decl := range n.decl.Constants {
		out = append(out, n.r.registerConstant(newDeclaredConstant(n.r, n.file, n.decl, decl)))
	}
	for _, call := range n.decl.Defines {
		name, ok := locator.DefinedName(call)
		if !ok {
			slog.Debug("skipping define() with a dynamic name", "path", n.file.Path, "line", call.Line)
			continue
		}
		out = append(out, n.r.registerConstant(newDefinedConstant(n.r, n.file, n.decl, call, name)))
	}
	return out
}

// Evaluate folds expr as if it were written at the top level of this
// namespace block.
func (n *Namespace) Evaluate(expr source.Expr) (eval.Result, error) {
	return n.r.evaluate(expr, &eval.Context{File: n.file, Namespace: n.decl})
}
