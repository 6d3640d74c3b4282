package reflection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/value"
)

func methodNames(t *testing.T, c *Class) []string {
	t.Helper()
	methods, err := c.Methods()
	require.NoError(t, err)
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name()
	}
	return names
}

const traitsSource = `<?php
namespace App;

trait A
{
    public function hello() { return 'A'; }
    public function foo() {}
}

trait B
{
    public function hello() { return 'B'; }
}

class C
{
    use A, B {
        B::hello insteadof A;
        A::foo as bar;
        A::hello as protected helloFromA;
    }
}

class Solo
{
    use A, B {
        B::foo insteadof A;
        B::hello insteadof A;
    }
}

class Quiet
{
    use A {
        hello as private;
    }
}
`

func TestCompose_TraitAliasAndInsteadof(t *testing.T) {
	r := newTestReflector(t, map[string]string{"traits.php": traitsSource})

	c, err := r.ReflectClass(`App\C`)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hello", "foo", "bar", "helloFromA"}, methodNames(t, c))
	assert.Equal(t, []string{`App\A`, `App\B`}, c.TraitNames())

	hello, err := c.Method("hello")
	require.NoError(t, err)
	assert.Equal(t, `App\B`, hello.Trait().Name())
	assert.Same(t, c, hello.DeclaringClass())

	bar, err := c.Method("BAR")
	require.NoError(t, err)
	assert.Equal(t, "bar", bar.Name())
	assert.Equal(t, "foo", bar.OriginalName())
	assert.Equal(t, `App\A`, bar.Trait().Name())
	assert.Same(t, c, bar.DeclaringClass())
	assert.True(t, bar.IsPublic())

	fromA, err := c.Method("helloFromA")
	require.NoError(t, err)
	assert.True(t, fromA.IsProtected())
	assert.Equal(t, `App\A`, fromA.Trait().Name())

	aliases, err := c.TraitAliases()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"bar":        `App\A::foo`,
		"helloFromA": `App\A::hello`,
	}, aliases)

	adaptations := c.Adaptations()
	require.Len(t, adaptations, 3)
	assert.Equal(t, []string{`App\A`}, adaptations[0].Insteadof)
	assert.Equal(t, `App\B`, adaptations[0].Trait)

	solo, err := r.ReflectClass(`App\Solo`)
	require.NoError(t, err)
	assert.False(t, solo.HasMethod("foo"))
	assert.True(t, solo.HasMethod("hello"))

	quiet, err := r.ReflectClass(`App\Quiet`)
	require.NoError(t, err)
	qh, err := quiet.Method("hello")
	require.NoError(t, err)
	assert.True(t, qh.IsPrivate())
}

func TestCompose_PrivateParentMembersHidden(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"base.php": `<?php
class Base
{
    private const KEY = 1;
    public const PUB = 2;
    private $hidden;
    protected $shared;

    private function secret() {}
    protected function helper() {}
}

class Child extends Base {}
`,
	})

	child, err := r.ReflectClass("Child")
	require.NoError(t, err)
	assert.False(t, child.HasMethod("secret"))
	assert.False(t, child.HasProperty("hidden"))
	assert.False(t, child.HasConstant("KEY"))

	helper, err := child.Method("helper")
	require.NoError(t, err)
	assert.Equal(t, "Base", helper.DeclaringClass().Name())
	assert.True(t, child.HasProperty("$shared"))
	assert.True(t, child.HasConstant("PUB"))

	_, err = child.Method("secret")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	parent, err := child.ParentClass()
	require.NoError(t, err)
	assert.Equal(t, "Base", parent.Name())
	ok, err := child.IsSubclassOf("base")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompose_TraitPrivateNotReexported(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"t.php": `<?php
trait Internals
{
    private function tidy() {}
}

class UsesInternals
{
    use Internals;
}

class Sub extends UsesInternals {}
`,
	})

	user, err := r.ReflectClass("UsesInternals")
	require.NoError(t, err)
	tidy, err := user.Method("tidy")
	require.NoError(t, err)
	assert.True(t, tidy.IsPrivate())
	assert.Same(t, user, tidy.DeclaringClass())

	sub, err := r.ReflectClass("Sub")
	require.NoError(t, err)
	assert.False(t, sub.HasMethod("tidy"))
}

func TestCompose_Precedence(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"p.php": `<?php
namespace App;

interface Named
{
    const KIND = 'interface';
    public function name(): string;
    public function tag(): string;
}

class Root implements Named
{
    public function name(): string { return 'root'; }
    public function who() {}
    public function tag(): string { return 'root'; }
}

trait Speaks
{
    public function who() {}
}

class Leaf extends Root
{
    use Speaks;

    public function name(): string { return 'leaf'; }
}
`,
	})

	leaf, err := r.ReflectClass(`App\Leaf`)
	require.NoError(t, err)

	name, err := leaf.Method("name")
	require.NoError(t, err)
	assert.Same(t, leaf, name.DeclaringClass())
	assert.Nil(t, name.Trait())

	who, err := leaf.Method("who")
	require.NoError(t, err)
	assert.Equal(t, `App\Speaks`, who.Trait().Name())

	tag, err := leaf.Method("tag")
	require.NoError(t, err)
	assert.Equal(t, `App\Root`, tag.DeclaringClass().Name())
	assert.False(t, tag.IsAbstract())

	kind, err := leaf.Constant("KIND")
	require.NoError(t, err)
	assert.Equal(t, `App\Named`, kind.DeclaringClass().Name())

	names, err := leaf.InterfaceNames()
	require.NoError(t, err)
	assert.Equal(t, []string{`App\Named`}, names)
}

func TestCompose_InterfaceInheritance(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"shape.php": `<?php
namespace App;

interface Shape extends \Countable {}

abstract class Square implements Shape {}
`,
	})

	sq, err := r.ReflectClass(`App\Square`)
	require.NoError(t, err)
	names, err := sq.InterfaceNames()
	require.NoError(t, err)
	assert.Equal(t, []string{`App\Shape`, "Countable"}, names)

	ok, err := sq.ImplementsInterface(`\countable`)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = sq.IsSubclassOf("Countable")
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := sq.Method("count")
	require.NoError(t, err)
	assert.True(t, count.IsAbstract())
	assert.Equal(t, "Countable", count.DeclaringClass().Name())

	inst, err := sq.IsInstantiable()
	require.NoError(t, err)
	assert.False(t, inst)
}

func TestCompose_ImplicitStringable(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"label.php": `<?php
class Label
{
    public function __toString(): string { return ''; }
}
`,
	})

	label, err := r.ReflectClass("Label")
	require.NoError(t, err)
	ok, err := label.ImplementsInterface("Stringable")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompose_EnumSynthetics(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"enums.php": `<?php
enum Suit: string
{
    case Hearts = 'H';
    case Spades = 'S';

    const Wild = self::Spades;
}

enum Status
{
    case Active;
    case Inactive;
}
`,
	})

	suit, err := r.ReflectClass("Suit")
	require.NoError(t, err)
	assert.True(t, suit.IsEnum())
	assert.True(t, suit.IsBacked())
	assert.True(t, suit.IsFinal())

	for _, name := range []string{"cases", "from", "tryFrom"} {
		m, err := suit.Method(name)
		require.NoError(t, err, name)
		assert.True(t, m.IsSynthetic(), name)
		assert.True(t, m.IsStatic(), name)
		assert.Same(t, suit, m.DeclaringClass(), name)
	}
	from, err := suit.Method("from")
	require.NoError(t, err)
	assert.Equal(t, 1, from.NumberOfRequiredParameters())

	backing, err := suit.BackingType()
	require.NoError(t, err)
	assert.Equal(t, "string", backing.String())

	names, err := suit.InterfaceNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"UnitEnum", "BackedEnum"}, names)

	constants, err := suit.Constants()
	require.NoError(t, err)
	var constNames []string
	for _, k := range constants {
		constNames = append(constNames, k.Name())
	}
	assert.Equal(t, []string{"Wild", "Hearts", "Spades"}, constNames)

	wild, err := suit.ConstantValue("Wild")
	require.NoError(t, err)
	assert.Equal(t, value.EnumCase("Suit", "Spades"), wild)

	hearts, err := suit.Constant("Hearts")
	require.NoError(t, err)
	assert.True(t, hearts.IsEnumCase())
	assert.True(t, hearts.IsFinal())

	status, err := r.ReflectClass("Status")
	require.NoError(t, err)
	assert.True(t, status.HasMethod("cases"))
	assert.False(t, status.HasMethod("from"))
	assert.False(t, status.HasMethod("tryFrom"))
	typ, err := status.BackingType()
	require.NoError(t, err)
	assert.Nil(t, typ)
	require.Len(t, status.Cases(), 2)
}

func TestCompose_CircularHierarchy(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"loop.php": `<?php
class Ping extends Pong {}
class Pong extends Ping {}
`,
	})

	ping, err := r.ReflectClass("Ping")
	require.NoError(t, err)
	_, err = ping.Methods()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCircularReference))

	_, err = ping.IsSubclassOf("Other")
	assert.True(t, errors.IsCode(err, errors.CodeCircularReference))
	_, err = ping.TraitAliases()
	assert.True(t, errors.IsCode(err, errors.CodeCircularReference))
	assert.False(t, ping.HasMethod("anything"))
}

func TestCompose_MissingParentFails(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"orphan.php": `<?php
class Orphan extends Missing {}
`,
	})

	orphan, err := r.ReflectClass("Orphan")
	require.NoError(t, err)
	_, err = orphan.Methods()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestCompose_MissingTraitsAndInterfacesSkipped(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"lenient.php": `<?php
class Lenient implements MissingContract
{
    use MissingTrait;

    public function ok() {}
}
`,
	})

	c, err := r.ReflectClass("Lenient")
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, methodNames(t, c))
	assert.Equal(t, []string{"MissingTrait"}, c.TraitNames())

	traits, err := c.Traits()
	require.NoError(t, err)
	assert.Empty(t, traits)
	ifaces, err := c.Interfaces()
	require.NoError(t, err)
	assert.Empty(t, ifaces)
}

func TestCompose_EnumWithConstants(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"suit.php": `<?php
namespace P;

enum Suit: string
{
    const PREFIX = 'x';

    case Hearts = self::PREFIX . 'h';
    case Spades = 's';

    public function label(): string { return $this->value; }
}
`,
	})

	suit, err := r.ReflectClass(`P\Suit`)
	require.NoError(t, err)
	require.Len(t, suit.Cases(), 2)
	assert.True(t, suit.HasMethod("label"))
	assert.True(t, suit.HasMethod("from"))
	assert.True(t, suit.HasMethod("tryFrom"))
	assert.True(t, suit.HasConstant("PREFIX"))

	prefix, err := suit.Constant("PREFIX")
	require.NoError(t, err)
	assert.False(t, prefix.IsEnumCase())

	hearts, err := suit.Case("Hearts")
	require.NoError(t, err)
	v, err := hearts.BackingValue()
	require.NoError(t, err)
	assert.Equal(t, value.String("xh"), v)

	_, err = r.ReflectConstant(`P\PREFIX`)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestCompose_EnumConstantListUnsupported(t *testing.T) {
	r := newTestReflector(t, map[string]string{
		"level.php": `<?php
enum Level: int
{
    const LOW = 1, HIGH = 2;

    case Debug = 1;
}
`,
	})

	level, err := r.ReflectClass("Level")
	require.NoError(t, err)
	_, err = level.Methods()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedConstruct))
	assert.False(t, level.HasConstant("LOW"))
}
