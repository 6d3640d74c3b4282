package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staticreflect/internal/core/config"
	"staticreflect/internal/core/errors"
)

const userSource = `<?php
namespace App;

interface HasName
{
    public function name(): string;
}

trait Greets
{
    public function greet(string $who = 'world'): string { return "hi $who"; }
}

#[Entity(table: 'users')]
final class User implements HasName
{
    use Greets;

    public const ROLE = 'admin';
    public const LEVEL = self::BASE * 2;
    private const BASE = 21;

    public function __construct(private readonly int $id, ?string $nick = null) {}

    public function name(): string { return ''; }
}

enum Status: int
{
    case On = 1;
    case Off = 0;
}

function helper(int ...$xs): int { return 0; }

const VERSION = '1.0';
`

func newTestApp(t *testing.T, configure func(*config.Config)) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "composer.json"), []byte("{}"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "User.php"), []byte(userSource), 0o644))

	cfg := config.Default()
	cfg.Locator.Roots = []string{"src"}
	cfg.Locator.IndexPath = ".cache/index.db"
	if configure != nil {
		configure(cfg)
	}
	a, err := New(cfg, Options{Base: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, dir
}

func findMember(t *testing.T, members []MemberReport, name string) MemberReport {
	t.Helper()
	for _, m := range members {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("member %s not found in %v", name, members)
	return MemberReport{}
}

func TestApp_DescribeClass(t *testing.T) {
	a, dir := newTestApp(t, nil)
	stats, err := a.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.FileExists(t, filepath.Join(dir, ".cache", "index.db"))

	report, err := a.DescribeClass(`App\User`)
	require.NoError(t, err)
	assert.Equal(t, `App\User`, report.Name)
	assert.Equal(t, "class", report.Kind)
	assert.Equal(t, []string{"final"}, report.Modifiers)
	assert.Equal(t, []string{`App\HasName`}, report.Interfaces)
	assert.Equal(t, []string{`App\Greets`}, report.Traits)
	assert.Equal(t, []string{`App\Entity`}, report.Attributes)

	level := findMember(t, report.Constants, "LEVEL")
	assert.Equal(t, "42", level.Detail)
	assert.Empty(t, level.Error)
	assert.Equal(t, "'admin'", findMember(t, report.Constants, "ROLE").Detail)

	assert.Equal(t, "int", findMember(t, report.Properties, "$id").Detail)

	greet := findMember(t, report.Methods, "greet")
	assert.Equal(t, `App\User`, greet.Declaring)
	assert.Equal(t, `App\Greets`, greet.Trait)
	assert.Equal(t, "greet(string $who = 'world'): string", greet.Detail)

	ctor := findMember(t, report.Methods, "__construct")
	assert.Equal(t, "__construct(int $id, ?string $nick = null)", ctor.Detail)
}

func TestApp_DescribeEnum(t *testing.T) {
	a, _ := newTestApp(t, nil)

	report, err := a.DescribeClass(`app\status`)
	require.NoError(t, err)
	assert.Equal(t, "enum", report.Kind)
	assert.Equal(t, "int", report.Backing)

	on := findMember(t, report.Constants, "On")
	assert.Equal(t, []string{"case"}, on.Modifiers)
	assert.Equal(t, "1", on.Detail)
	assert.Equal(t, "0", findMember(t, report.Constants, "Off").Detail)
	findMember(t, report.Methods, "tryFrom")
}

func TestApp_DescribeFunctionAndConstant(t *testing.T) {
	a, _ := newTestApp(t, nil)

	fn, err := a.DescribeFunction(`App\helper`)
	require.NoError(t, err)
	assert.Equal(t, "helper(int ...$xs): int", fn.Signature)
	assert.Empty(t, fn.Error)

	k, err := a.DescribeConstant(`App\VERSION`)
	require.NoError(t, err)
	assert.Equal(t, "'1.0'", k.Value)
	assert.False(t, k.Defined)
}

func TestApp_NotFound(t *testing.T) {
	a, _ := newTestApp(t, nil)

	_, err := a.DescribeClass(`App\Missing`)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestApp_StubsDisabled(t *testing.T) {
	a, _ := newTestApp(t, func(cfg *config.Config) {
		disabled := false
		cfg.Stubs.Enabled = &disabled
	})

	_, err := a.Reflector().ReflectClass("Countable")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestApp_InvalidIndexPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "composer.json"), []byte("{}"), 0o644))
	cfg := config.Default()
	cfg.Locator.IndexPath = "."

	_, err := New(cfg, Options{Base: dir})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidConfiguration))
}

func TestApp_Health(t *testing.T) {
	a, _ := newTestApp(t, func(cfg *config.Config) { cfg.Locator.Watch = true })
	_, err := a.Scan(context.Background())
	require.NoError(t, err)

	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Contains(t, status.Components["index"], "ok")
	assert.Contains(t, status.Components["watcher"], "not running")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.StartWatcher(ctx))
	status = NewHealthService(a).Check(context.Background())
	assert.Equal(t, "up", status.Status)
}

func TestApp_WatchPicksUpNewClasses(t *testing.T) {
	a, dir := newTestApp(t, func(cfg *config.Config) { cfg.Locator.Debounce = 50 * time.Millisecond })
	_, err := a.Scan(context.Background())
	require.NoError(t, err)

	before, err := a.Reflector().ReflectClass(`App\User`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.StartWatcher(ctx))

	path := filepath.Join(dir, "src", "Order.php")
	require.NoError(t, os.WriteFile(path, []byte("<?php\nnamespace App;\n\nclass Order {}\n"), 0o644))

	require.Eventually(t, func() bool {
		_, err := a.DescribeClass(`App\Order`)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Positive(t, a.Changes())

	after, err := a.Reflector().ReflectClass(`App\User`)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
}
