package locator

import (
	"embed"
	"io/fs"
	"path"

	"staticreflect/internal/engine/parser"
)

//go:embed stubs/*.php
var stubFiles embed.FS

// StubPrefix marks locations served from the embedded stubs.
const StubPrefix = "stub:"

// Stub locates the core interfaces and classes every program can rely on
// (Traversable, Countable, Stringable, UnitEnum, Exception, ...).
type Stub struct {
	*Source
}

func NewStub(p *parser.Parser) (*Stub, error) {
	src := NewSource(p)
	entries, err := fs.ReadDir(stubFiles, "stubs")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		data, err := stubFiles.ReadFile(path.Join("stubs", e.Name()))
		if err != nil {
			return nil, err
		}
		if err := src.Add(StubPrefix+e.Name(), string(data)); err != nil {
			return nil, err
		}
	}
	return &Stub{Source: src}, nil
}
