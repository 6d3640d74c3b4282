package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/parser"
)

func TestDeclarations(t *testing.T) {
	src := `<?php
namespace App\Model;

const LIMIT = 10;
define('APP_ENV', 'prod');
define($dynamic, 1);

interface HasName {}

final class User implements HasName {}

function make_user(): User { return new User(); }
`
	file, err := parser.NewParser().ParseFile("User.php", []byte(src))
	require.NoError(t, err)

	var got []string
	for _, d := range Declarations(file) {
		got = append(got, d.ID.Kind.String()+":"+d.ID.Name)
	}
	assert.ElementsMatch(t, []string{
		`class:App\Model\HasName`,
		`class:App\Model\User`,
		`function:App\Model\make_user`,
		`constant:App\Model\LIMIT`,
		`constant:APP_ENV`,
	}, got)
}

func TestIdentifierKey(t *testing.T) {
	assert.Equal(t, Class(`\App\User`).Key(), Class(`app\user`).Key())
	assert.Equal(t, Function(`Str_Pad`).Key(), Function(`str_pad`).Key())
	assert.NotEqual(t, Constant(`App\LIMIT`).Key(), Constant(`App\limit`).Key())
}

func TestMap(t *testing.T) {
	m := NewMap(map[string]string{`App\User`: "/src/User.php"})
	m.Add(Function(`App\helper`), "/src/helpers.php")

	loc, err := m.Locate(Class(`\APP\USER`))
	require.NoError(t, err)
	assert.Equal(t, "/src/User.php", loc.Path)

	loc, err = m.Locate(Function(`App\helper`))
	require.NoError(t, err)
	assert.Equal(t, "/src/helpers.php", loc.Path)

	_, err = m.Locate(Class(`App\helper`))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestSource(t *testing.T) {
	s := NewSource(nil)
	require.NoError(t, s.Add("a.php", "<?php\nclass A {}\nclass Dup {}"))
	require.NoError(t, s.Add("b.php", "<?php\nclass Dup {}\nfunction f() {}"))

	loc, err := s.Locate(Class("A"))
	require.NoError(t, err)
	assert.Equal(t, "a.php", loc.Path)
	assert.Equal(t, 2, loc.Line)
	assert.Contains(t, string(loc.Source), "class A")

	loc, err = s.Locate(Class("dup"))
	require.NoError(t, err)
	assert.Equal(t, "a.php", loc.Path, "first declaration wins")

	loc, err = s.Locate(Function("F"))
	require.NoError(t, err)
	assert.Equal(t, "b.php", loc.Path)

	err = s.Add("c.txt", "<?php class C {}")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
}

func TestComposite(t *testing.T) {
	first := NewMap(map[string]string{"A": "/first/A.php"})
	second := NewMap(map[string]string{"A": "/second/A.php", "B": "/second/B.php"})
	c := Composite{nil, first, second}

	loc, err := c.Locate(Class("A"))
	require.NoError(t, err)
	assert.Equal(t, "/first/A.php", loc.Path)

	loc, err = c.Locate(Class("B"))
	require.NoError(t, err)
	assert.Equal(t, "/second/B.php", loc.Path)

	_, err = c.Locate(Class("C"))
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestCompositeStopsOnOtherErrors(t *testing.T) {
	broken := Func(func(id Identifier) (Location, error) {
		return Location{}, errors.New(errors.CodeInternal, "index unavailable")
	})
	c := Composite{broken, NewMap(map[string]string{"A": "/A.php"})}

	_, err := c.Locate(Class("A"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInternal))
}

func TestStub(t *testing.T) {
	stub, err := NewStub(nil)
	require.NoError(t, err)

	for _, name := range []string{"Traversable", "Countable", "Stringable", "UnitEnum", "BackedEnum", "Exception", "RuntimeException", "Attribute"} {
		loc, err := stub.Locate(Class(name))
		if assert.NoError(t, err, name) {
			assert.Contains(t, loc.Path, StubPrefix, name)
			assert.NotEmpty(t, loc.Source, name)
		}
	}
	_, err = stub.Locate(Class("App\\User"))
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}
