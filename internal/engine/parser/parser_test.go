package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/source"
)

func parse(t *testing.T, src string) *source.File {
	t.Helper()
	f, err := NewParser().ParseFile("test.php", []byte(src))
	require.NoError(t, err)
	return f
}

func TestParseFile_UnsupportedExtension(t *testing.T) {
	_, err := NewParser().ParseFile("main.go", []byte("package main"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
}

func TestParseFile_SupportedExtensions(t *testing.T) {
	p := NewParser()
	assert.Equal(t, []string{".inc", ".php", ".phtml"}, p.SupportedExtensions())
	assert.True(t, p.IsSupportedPath("src/Foo.PHP"))
	assert.False(t, p.IsSupportedPath("README.md"))
}

func TestParseFile_NamespacesAndUses(t *testing.T) {
	f := parse(t, `<?php
namespace App\Model;

use App\Contracts\Entity;
use App\Support\Str as Text;
use function App\Support\helper;
use const App\Support\LIMIT;

class User {}
`)
	require.Len(t, f.Namespaces, 1)
	ns := f.Namespaces[0]
	assert.Equal(t, `App\Model`, ns.Name)
	require.Len(t, ns.Uses, 4)

	assert.Equal(t, `App\Contracts\Entity`, ns.Uses[0].Name)
	assert.Equal(t, "Entity", ns.Uses[0].LocalName())
	assert.Equal(t, source.UseClass, ns.Uses[0].Kind)

	assert.Equal(t, `App\Support\Str`, ns.Uses[1].Name)
	assert.Equal(t, "Text", ns.Uses[1].LocalName())

	assert.Equal(t, source.UseFunction, ns.Uses[2].Kind)
	assert.Equal(t, source.UseConstant, ns.Uses[3].Kind)

	require.Len(t, ns.Classes, 1)
	assert.Equal(t, "User", ns.Classes[0].Name)
	assert.Equal(t, `App\Model\User`, ns.ResolveClass("User"))
	assert.Equal(t, `App\Support\Str`, ns.ResolveClass("Text"))
}

func TestParseFile_MultipleBracedNamespaces(t *testing.T) {
	f := parse(t, `<?php
namespace A { class One {} }
namespace B { class Two {} }
`)
	require.Len(t, f.Namespaces, 2)
	assert.Equal(t, "A", f.Namespaces[0].Name)
	assert.Equal(t, "B", f.Namespaces[1].Name)
	require.Len(t, f.Classes(), 2)
	assert.Equal(t, "Two", f.Namespaces[1].Classes[0].Name)
}

func TestParseFile_GlobalNamespace(t *testing.T) {
	f := parse(t, "<?php\nfunction run() {}\nconst DEBUG = true;\n")
	require.Len(t, f.Namespaces, 1)
	ns := f.Namespaces[0]
	assert.Equal(t, "", ns.Name)
	require.Len(t, ns.Functions, 1)
	assert.Equal(t, "run", ns.Functions[0].Name)
	require.Len(t, ns.Constants, 1)
	assert.Equal(t, "DEBUG", ns.Constants[0].Name)
}

func TestParseFile_ClassMembers(t *testing.T) {
	f := parse(t, `<?php
/**
 * A shape.
 */
abstract class Shape extends Base implements Countable, \JsonSerializable
{
    const SIDES = 0;
    final protected const NAME = 'shape';

    public static int $count = 0;
    private ?string $label = null;

    public function __construct(private readonly int $id, protected $tags = []) {}

    abstract public function area(): float;

    final public static function &make(int ...$sizes): static
    {
        return new static();
    }
}
`)
	cls := f.Classes()[0]
	assert.Equal(t, source.KindClass, cls.Kind)
	assert.Equal(t, "Shape", cls.Name)
	assert.True(t, cls.Modifiers.Has(source.ModAbstract))
	assert.Equal(t, []string{"Base"}, cls.Extends)
	assert.Equal(t, []string{"Countable", `\JsonSerializable`}, cls.Implements)
	assert.Contains(t, cls.DocComment, "A shape.")

	require.Len(t, cls.Constants, 2)
	assert.Equal(t, "SIDES", cls.Constants[0].Name)
	assert.Equal(t, source.ModPublic, cls.Constants[0].Modifiers.Visibility())
	assert.Equal(t, source.ModProtected, cls.Constants[1].Modifiers.Visibility())
	assert.True(t, cls.Constants[1].Modifiers.Has(source.ModFinal))
	lit, ok := cls.Constants[1].Value.(*source.StringLit)
	require.True(t, ok)
	assert.Equal(t, "shape", lit.Value)

	// two declared plus two promoted
	require.Len(t, cls.Properties, 4)
	count := cls.Properties[0]
	assert.Equal(t, "count", count.Name)
	assert.True(t, count.Modifiers.Has(source.ModStatic))
	assert.Equal(t, &source.NamedTypeExpr{Position: count.Type.Pos(), Name: "int"}, count.Type)
	label := cls.Properties[1]
	assert.Equal(t, source.ModPrivate, label.Modifiers.Visibility())
	_, nullable := label.Type.(*source.NullableTypeExpr)
	assert.True(t, nullable)

	id := cls.Properties[2]
	assert.Equal(t, "id", id.Name)
	assert.True(t, id.Promoted)
	assert.True(t, id.Modifiers.Has(source.ModReadonly))
	assert.Equal(t, source.ModPrivate, id.Modifiers.Visibility())
	assert.Equal(t, "tags", cls.Properties[3].Name)

	require.Len(t, cls.Methods, 3)
	ctor := cls.Methods[0]
	require.Len(t, ctor.Params, 2)
	assert.NotZero(t, ctor.Params[0].Promoted)
	assert.IsType(t, &source.ArrayLit{}, ctor.Params[1].Default)

	area := cls.Methods[1]
	assert.True(t, area.Modifiers.Has(source.ModAbstract))
	assert.False(t, area.HasBody)

	mk := cls.Methods[2]
	assert.True(t, mk.ByRef)
	assert.True(t, mk.HasBody)
	assert.True(t, mk.Modifiers.Has(source.ModStatic|source.ModFinal))
	require.Len(t, mk.Params, 1)
	assert.True(t, mk.Params[0].Variadic)
	assert.Equal(t, "sizes", mk.Params[0].Name)
}

func TestParseFile_InterfaceTraitEnum(t *testing.T) {
	f := parse(t, `<?php
interface Shape extends Countable, Stringable { public function area(): float; }
trait Greets { public function hello() { yield 1; } }
enum Suit: string implements HasLabel {
    case Hearts = 'H';
    case Spades = 'S';
    const Wild = self::Spades;
    public function label(): string { return ucfirst($this->name); }
}
enum Status { case Active; }
`)
	classes := f.Classes()
	require.Len(t, classes, 4)

	assert.Equal(t, source.KindInterface, classes[0].Kind)
	assert.Equal(t, []string{"Countable", "Stringable"}, classes[0].Extends)

	assert.Equal(t, source.KindTrait, classes[1].Kind)
	assert.True(t, classes[1].Methods[0].Generator)

	suit := classes[2]
	assert.Equal(t, source.KindEnum, suit.Kind)
	require.NotNil(t, suit.BackingType)
	assert.Equal(t, "string", suit.BackingType.(*source.NamedTypeExpr).Name)
	assert.Equal(t, []string{"HasLabel"}, suit.Implements)
	require.Len(t, suit.Cases, 2)
	assert.Equal(t, "Hearts", suit.Cases[0].Name)
	assert.Equal(t, "H", suit.Cases[0].Value.(*source.StringLit).Value)
	require.Len(t, suit.Constants, 1)
	fetch, ok := suit.Constants[0].Value.(*source.ClassConstFetch)
	require.True(t, ok)
	assert.Equal(t, "self", fetch.Class)
	assert.Equal(t, "Spades", fetch.Name)

	status := classes[3]
	assert.Nil(t, status.BackingType)
	require.Len(t, status.Cases, 1)
	assert.Nil(t, status.Cases[0].Value)
}

func TestParseFile_EnumConstants(t *testing.T) {
	f := parse(t, `<?php
namespace P;

enum Suit: string
{
    const PREFIX = 'x';
    /** Shared tag. */
    final public const string TAG = 'suit';
    private const
        HIDDEN = 1;

    case Hearts = self::PREFIX . 'h';
    case Spades = 's';

    public function label(): string { return 'const ' . $this->name; }
}
`)
	require.Len(t, f.Namespaces, 1)
	ns := f.Namespaces[0]
	assert.Empty(t, ns.Constants)
	require.Len(t, ns.Classes, 1)

	suit := ns.Classes[0]
	assert.Empty(t, suit.Unsupported)
	require.Len(t, suit.Cases, 2)
	assert.Equal(t, "Hearts", suit.Cases[0].Name)
	_, ok := suit.Cases[0].Value.(*source.BinaryExpr)
	assert.True(t, ok)
	require.Len(t, suit.Methods, 1)
	assert.Equal(t, "label", suit.Methods[0].Name)

	require.Len(t, suit.Constants, 3)
	prefix := suit.Constants[0]
	assert.Equal(t, "PREFIX", prefix.Name)
	assert.Equal(t, "x", prefix.Value.(*source.StringLit).Value)
	assert.Nil(t, prefix.Type)
	assert.Equal(t, 6, prefix.Line)

	tag := suit.Constants[1]
	assert.Equal(t, "TAG", tag.Name)
	assert.True(t, tag.Modifiers.Has(source.ModFinal))
	assert.Equal(t, source.ModPublic, tag.Modifiers.Visibility())
	require.NotNil(t, tag.Type)
	assert.Equal(t, "string", tag.Type.(*source.NamedTypeExpr).Name)
	assert.Contains(t, tag.DocComment, "Shared tag.")

	hidden := suit.Constants[2]
	assert.Equal(t, "HIDDEN", hidden.Name)
	assert.Equal(t, source.ModPrivate, hidden.Modifiers.Visibility())
	assert.Equal(t, 10, hidden.Line)
}

func TestParseFile_EnumConstantListUnsupported(t *testing.T) {
	f := parse(t, `<?php
enum Level: int
{
    const LOW = 1, HIGH = 2;

    case Debug = 1;
}

const AFTER = 3;
`)
	classes := f.Classes()
	require.Len(t, classes, 1)
	level := classes[0]
	assert.Contains(t, level.Unsupported, "line 4")
	assert.Empty(t, level.Constants)
	require.Len(t, level.Cases, 1)

	require.Len(t, f.Namespaces, 1)
	require.Len(t, f.Namespaces[0].Constants, 1)
	assert.Equal(t, "AFTER", f.Namespaces[0].Constants[0].Name)
}

func TestRewriteEnumConstants_LeavesOtherCodeAlone(t *testing.T) {
	src := []byte(`<?php
class Config { const enum = 'enum Fake { const X = 1; }'; }
$x = <<<EOT
enum Heredoc { const Y = 2; }
EOT;
// enum Comment { const Z = 3; }
`)
	patch := rewriteEnumConstants(src)
	assert.Equal(t, src, patch.content)
	assert.Empty(t, patch.consts)
	assert.Empty(t, patch.unsupported)
}

func TestParseFile_TraitAdaptations(t *testing.T) {
	f := parse(t, `<?php
class Talker {
    use A, B {
        B::smallTalk insteadof A;
        A::bigTalk as protected talk;
        sayHello as private;
    }
}
`)
	cls := f.Classes()[0]
	require.Len(t, cls.TraitUses, 1)
	use := cls.TraitUses[0]
	assert.Equal(t, []string{"A", "B"}, use.Traits)
	require.Len(t, use.Adaptations, 3)

	ins := use.Adaptations[0]
	assert.Equal(t, "B", ins.Trait)
	assert.Equal(t, "smallTalk", ins.Method)
	assert.Equal(t, []string{"A"}, ins.Insteadof)

	alias := use.Adaptations[1]
	assert.Equal(t, "A", alias.Trait)
	assert.Equal(t, "bigTalk", alias.Method)
	assert.Equal(t, "talk", alias.Alias)
	assert.Equal(t, source.ModProtected, alias.Visibility)

	vis := use.Adaptations[2]
	assert.Equal(t, "", vis.Trait)
	assert.Equal(t, "sayHello", vis.Method)
	assert.Equal(t, "", vis.Alias)
	assert.Equal(t, source.ModPrivate, vis.Visibility)
}

func TestParseFile_Attributes(t *testing.T) {
	f := parse(t, `<?php
#[Entity(table: 'users'), Cached]
class User {
    #[Column('id', nullable: false)]
    public int $id;
}
`)
	cls := f.Classes()[0]
	require.Len(t, cls.Attributes, 2)
	assert.Equal(t, "Entity", cls.Attributes[0].Name)
	require.Len(t, cls.Attributes[0].Args, 1)
	assert.Equal(t, "table", cls.Attributes[0].Args[0].Name)
	assert.Equal(t, "Cached", cls.Attributes[1].Name)
	assert.Empty(t, cls.Attributes[1].Args)

	prop := cls.Properties[0]
	require.Len(t, prop.Attributes, 1)
	args := prop.Attributes[0].Args
	require.Len(t, args, 2)
	assert.Equal(t, "", args[0].Name)
	assert.Equal(t, "nullable", args[1].Name)
}

func TestParseFile_Defines(t *testing.T) {
	f := parse(t, `<?php
define('APP_VERSION', '1.2');
if (!defined('DEBUG')) {
    define('DEBUG', false);
}
echo APP_VERSION;
`)
	ns := f.Namespaces[0]
	require.Len(t, ns.Defines, 2)
	assert.Equal(t, "define", ns.Defines[0].Name)
	require.Len(t, ns.Defines[0].Args, 2)
	assert.Equal(t, "APP_VERSION", ns.Defines[0].Args[0].Value.(*source.StringLit).Value)
}

func TestParseFile_Positions(t *testing.T) {
	src := "<?php\n\nclass A\n{\n    public function f() {}\n}\n"
	f := parse(t, src)
	cls := f.Classes()[0]
	assert.Equal(t, 3, cls.Line)
	assert.Equal(t, 6, cls.EndLine)
	assert.Equal(t, 5, cls.Methods[0].Line)
	assert.Equal(t, "public function f() {}", f.Text(cls.Methods[0]))
}

func TestParseFile_RecoversFromSyntaxErrors(t *testing.T) {
	f, err := NewParser().ParseFile("broken.php", []byte("<?php\nclass Ok {}\nclass {\n"))
	require.NoError(t, err)
	names := []string{}
	for _, cls := range f.Classes() {
		names = append(names, cls.Name)
	}
	assert.Contains(t, names, "Ok")
}
