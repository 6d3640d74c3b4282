package locator

import (
	"staticreflect/internal/core/errors"
)

// Composite asks each locator in order. Only NOT_FOUND moves on to the next
// locator; any other failure is returned as is.
type Composite []Locator

func (c Composite) Locate(id Identifier) (Location, error) {
	for _, l := range c {
		if l == nil {
			continue
		}
		loc, err := l.Locate(id)
		if err == nil {
			return loc, nil
		}
		if !errors.IsCode(err, errors.CodeNotFound) {
			return Location{}, err
		}
	}
	return Location{}, notFound(id)
}
