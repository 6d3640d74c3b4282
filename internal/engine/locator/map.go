package locator

// Map locates classes from a fixed name to path table, such as a generated
// class map.
type Map struct {
	table symbolTable
}

func NewMap(classes map[string]string) *Map {
	m := &Map{table: make(symbolTable)}
	for name, path := range classes {
		m.Add(Class(name), path)
	}
	return m
}

// Add registers id as declared in path.
func (m *Map) Add(id Identifier, path string) {
	m.table.add(id, Location{Path: path})
}

func (m *Map) Locate(id Identifier) (Location, error) {
	if loc, ok := m.table.lookup(id); ok {
		return loc, nil
	}
	return Location{}, notFound(id)
}
