package locator

import (
	"staticreflect/internal/engine/parser"
)

// Source locates symbols in in-memory files. Each Location carries the file
// content so callers never touch the file system.
type Source struct {
	parser *parser.Parser
	table  symbolTable
}

func NewSource(p *parser.Parser) *Source {
	if p == nil {
		p = parser.NewParser()
	}
	return &Source{parser: p, table: make(symbolTable)}
}

// Add parses content as path and registers everything it declares. The first
// declaration of a name wins.
func (s *Source) Add(path string, content string) error {
	file, err := s.parser.ParseFile(path, []byte(content))
	if err != nil {
		return err
	}
	data := []byte(content)
	for _, decl := range Declarations(file) {
		s.table.add(decl.ID, Location{Path: path, Line: decl.Line, Source: data})
	}
	return nil
}

func (s *Source) Locate(id Identifier) (Location, error) {
	if loc, ok := s.table.lookup(id); ok {
		return loc, nil
	}
	return Location{}, notFound(id)
}
