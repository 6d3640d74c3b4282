package reflection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/locator"
	"staticreflect/internal/engine/parser"
	"staticreflect/internal/engine/value"
)

// newTestReflector serves files from memory, backed by the core stubs.
func newTestReflector(t *testing.T, files map[string]string, configure ...func(*Options)) *Reflector {
	t.Helper()
	p := parser.NewParser()
	src := locator.NewSource(p)
	for path, content := range files {
		require.NoError(t, src.Add(path, content))
	}
	stub, err := locator.NewStub(p)
	require.NoError(t, err)

	opts := Options{
		Locator: locator.Composite{src, stub},
		Cache:   parser.NewCache(p, 0),
	}
	for _, fn := range configure {
		fn(&opts)
	}
	r, err := NewReflector(opts)
	require.NoError(t, err)
	return r
}

func TestNewReflector_RequiresLocator(t *testing.T) {
	_, err := NewReflector(Options{})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidConfiguration))
}

func TestReflectClass_Identity(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"User.php": `<?php
namespace App\Model;

/** A user. */
final class User {}
`,
	})

	a, err := r.ReflectClass(`App\Model\User`)
	require.NoError(t, err)
	b, err := r.ReflectClass(`\app\model\USER`)
	require.NoError(t, err)
	assert.Same(t, a, b)

	assert.Equal(t, `App\Model\User`, a.Name())
	assert.Equal(t, "User", a.ShortName())
	assert.Equal(t, `App\Model`, a.NamespaceName())
	assert.True(t, a.InNamespace())
	assert.Equal(t, "User.php", a.FileName())
	assert.Contains(t, a.DocComment(), "A user.")
	assert.True(t, a.IsFinal())
	assert.Equal(t, []string{"final"}, a.ModifierNames())
}

func TestReflectClass_NotFound(t *testing.T) {
	r := newTestReflector(t, nil)

	_, err := r.ReflectClass(`App\Missing`)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	_, err = r.ReflectClass("")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestReflectClass_Stubs(t *testing.T) {
	r := newTestReflector(t, nil)

	c, err := r.ReflectClass("Countable")
	require.NoError(t, err)
	assert.True(t, c.IsInterface())
	assert.True(t, c.IsAbstract())
	assert.True(t, c.HasMethod("count"))
}

func TestReflectFile_SharesRegistry(t *testing.T) {
	src := `<?php
namespace App;

const LIMIT = 3;

class Service {}

function helper() {}
`
	r := newTestReflector(t, map[string]string{"Service.php": src})

	file, err := r.ReflectFile("Service.php", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "Service.php", file.Path())
	require.Len(t, file.Namespaces(), 1)
	assert.Equal(t, "App", file.Namespaces()[0].Name())

	classes := file.Classes()
	require.Len(t, classes, 1)
	byName, err := r.ReflectClass(`App\Service`)
	require.NoError(t, err)
	assert.Same(t, byName, classes[0])

	functions := file.Functions()
	require.Len(t, functions, 1)
	fn, err := r.ReflectFunction(`app\HELPER`)
	require.NoError(t, err)
	assert.Same(t, fn, functions[0])

	constants := file.Constants()
	require.Len(t, constants, 1)
	assert.Equal(t, `App\LIMIT`, constants[0].Name())
}

func TestReflectFunction(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"greet.php": `<?php
namespace App;

/** Says hello. */
function greet(string $name, int $times = 1, string ...$rest): string
{
    return str_repeat($name, $times);
}
`,
	})

	fn, err := r.ReflectFunction(`App\greet`)
	require.NoError(t, err)
	assert.Equal(t, `App\greet`, fn.Name())
	assert.Equal(t, "greet", fn.ShortName())
	assert.Equal(t, "App", fn.NamespaceName())
	assert.Contains(t, fn.DocComment(), "Says hello.")
	assert.True(t, fn.IsVariadic())
	assert.Equal(t, 3, fn.NumberOfParameters())
	assert.Equal(t, 1, fn.NumberOfRequiredParameters())

	ret, err := fn.ReturnType()
	require.NoError(t, err)
	assert.Equal(t, "string", ret.String())

	times, err := fn.Parameter("$times")
	require.NoError(t, err)
	assert.Equal(t, 1, times.Position())
	assert.True(t, times.IsOptional())
	v, err := times.DefaultValue()
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), v)

	name, err := fn.Parameter("name")
	require.NoError(t, err)
	assert.False(t, name.IsOptional())

	_, err = fn.Parameter("missing")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	_, err = r.ReflectFunction(`App\nope`)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestReflectConstant(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"consts.php": `<?php
namespace App;

/** Upper bound. */
const LIMIT = 10;

define('APP_ENV', 'prod');
define('DOUBLE_LIMIT', \App\LIMIT * 2);
`,
	})

	limit, err := r.ReflectConstant(`App\LIMIT`)
	require.NoError(t, err)
	assert.Equal(t, "LIMIT", limit.ShortName())
	assert.Equal(t, "App", limit.NamespaceName())
	assert.False(t, limit.IsDefined())
	assert.Contains(t, limit.DocComment(), "Upper bound.")
	v, err := limit.Value()
	require.NoError(t, err)
	assert.Equal(t, value.Int(10), v)

	same, err := r.ReflectConstant(`app\LIMIT`)
	require.NoError(t, err)
	assert.Same(t, limit, same)

	env, err := r.ReflectConstant("APP_ENV")
	require.NoError(t, err)
	assert.True(t, env.IsDefined())
	assert.False(t, env.InNamespace())
	v, err = env.Value()
	require.NoError(t, err)
	assert.Equal(t, value.String("prod"), v)

	double, err := r.ReflectConstant("DOUBLE_LIMIT")
	require.NoError(t, err)
	v, err = double.Value()
	require.NoError(t, err)
	assert.Equal(t, value.Int(20), v)

	_, err = r.ReflectConstant(`App\limit`)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestReflectConstant_SelfReference(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"loop.php": `<?php
const PING = PONG;
const PONG = PING;
`,
	})

	ping, err := r.ReflectConstant("PING")
	require.NoError(t, err)
	_, err = ping.Value()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCircularReference))
}

func TestNamespace_Evaluate(t *testing.T) {
	src := `<?php
namespace App;

use App\Config\Defaults as D;

const BASE = 2;
`
	r := newTestReflector(t, map[string]string{"base.php": src})
	file, err := r.ReflectFile("base.php", []byte(src))
	require.NoError(t, err)
	ns := file.Namespaces()[0]

	uses := ns.Uses()
	require.Len(t, uses, 1)
	assert.Equal(t, `App\Config\Defaults`, uses[0].Name)
	assert.Equal(t, "D", uses[0].Alias)
	assert.Equal(t, `App\Config\Defaults`, ns.ResolveClass("D"))

	decl := file.Constants()[0]
	res, err := decl.Result()
	require.NoError(t, err)
	assert.False(t, res.IsConstantReference())
	assert.Equal(t, value.Int(2), res.Value)
}

func TestRelease(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"A.php": `<?php class A {}`,
	})
	first, err := r.ReflectClass("A")
	require.NoError(t, err)

	r.Release()
	second, err := r.ReflectClass("A")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Name(), second.Name())
}

func TestReflectConstant_UserFunctionShadowsBuiltin(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"app.php": `<?php
namespace App;

function strlen($s) { return 42; }

const X = strlen('ab');
const Y = \strlen('ab');

class C
{
    const X = strlen('ab');
}
`,
	})

	_, err := r.ReflectFunction(`App\strlen`)
	require.NoError(t, err)

	x, err := r.ReflectConstant(`App\X`)
	require.NoError(t, err)
	_, err = x.Value()
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedConstruct))

	c, err := r.ReflectClass(`App\C`)
	require.NoError(t, err)
	_, err = c.ConstantValue("X")
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedConstruct))

	y, err := r.ReflectConstant(`App\Y`)
	require.NoError(t, err)
	v, err := y.Value()
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), v)
}
