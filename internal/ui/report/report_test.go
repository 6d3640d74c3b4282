package report

import (
	"bytes"
	"strings"
	"testing"

	"staticreflect/internal/core/app"
)

func sampleClass() app.ClassReport {
	return app.ClassReport{
		Name:       `App\User`,
		Kind:       "class",
		File:       "/project/src/User.php",
		Line:       7,
		Modifiers:  []string{"final"},
		Interfaces: []string{`App\HasName`},
		Traits:     []string{`App\Greets`},
		Constants: []app.MemberReport{
			{Name: "LEVEL", Declaring: `App\User`, Modifiers: []string{"public"}, Detail: "42"},
			{Name: "BROKEN", Declaring: `App\User`, Modifiers: []string{"public"}, Error: "[UNRESOLVABLE_REFERENCE] a|b"},
		},
		Methods: []app.MemberReport{
			{Name: "greet", Declaring: `App\User`, Trait: `App\Greets`, Modifiers: []string{"public"}, Detail: "greet(string $who): string"},
		},
	}
}

func TestMarkdownGenerator_Class(t *testing.T) {
	out := NewMarkdownGenerator(MarkdownOptions{ProjectRoot: "/project"}).Class(sampleClass())

	for _, want := range []string{
		"# class `App\\User`",
		"| Location | `src/User.php:7` |",
		"| Implements | `App\\HasName` |",
		"| `LEVEL` | public | `42` | `App\\User` |",
		`error: [UNRESOLVABLE_REFERENCE] a\|b`,
		"via `App\\Greets`",
		"## Properties\nNone.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected markdown to contain %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Extends") {
		t.Error("empty rows must be omitted")
	}
	if strings.Contains(out, "<details>") {
		t.Error("short tables must not collapse")
	}
}

func TestMarkdownGenerator_Collapse(t *testing.T) {
	r := sampleClass()
	r.Methods = nil
	for i := 0; i < 3; i++ {
		r.Methods = append(r.Methods, app.MemberReport{Name: "m", Declaring: r.Name})
	}

	out := NewMarkdownGenerator(MarkdownOptions{Collapsible: true, CollapseAfter: 2}).Class(r)
	if !strings.Contains(out, "<summary>Methods details</summary>") {
		t.Errorf("expected collapsed methods table\n%s", out)
	}
	if strings.Contains(out, "<summary>Constants details</summary>") {
		t.Error("constants table is short and must not collapse")
	}
}

func TestMarkdownGenerator_FunctionAndConstant(t *testing.T) {
	gen := NewMarkdownGenerator(MarkdownOptions{})
	fn := gen.Function(app.FunctionReport{Name: `App\helper`, File: "f.php", Line: 3, Signature: "helper(): int"})
	if !strings.Contains(fn, "- Signature: `helper(): int`") {
		t.Errorf("unexpected function markdown\n%s", fn)
	}
	k := gen.Constant(app.ConstantReport{Name: "APP_ENV", File: "f.php", Defined: true, Value: "'prod'"})
	if !strings.Contains(k, "define()") || !strings.Contains(k, "- Value: `'prod'`") {
		t.Errorf("unexpected constant markdown\n%s", k)
	}
}

func TestText_Class(t *testing.T) {
	var buf bytes.Buffer
	if err := NewText(&buf, false).Class(sampleClass()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"final class App\\User\n",
		"  implements App\\HasName\n",
		"constants (2)\n",
		"  public LEVEL  42\n",
		"  public BROKEN ! [UNRESOLVABLE_REFERENCE] a|b\n",
		"  public greet  greet(string $who): string  <- App\\Greets\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected text to contain %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("colour must be off")
	}
}

func TestText_Color(t *testing.T) {
	var buf bytes.Buffer
	if err := NewText(&buf, true).Constant(app.ConstantReport{Name: "X", Error: "boom"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "\033[1mconst X") {
		t.Errorf("expected bold heading, got %q", out)
	}
	if !strings.Contains(out, "\033[31m! boom") {
		t.Errorf("expected red error, got %q", out)
	}
}
