package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/typesys"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "staticreflect.toml", `
[php]
min_version = "8.1"

[types.builtins]
int = ["parameter", "return"]
void = ["return"]
mask = 3

[cache]
max_files = 64
max_heap_mb = 512

[locator]
roots = ["src", " lib "]
include = ["**.php"]
exclude = ["vendor"]
index_path = ".cache/index.db"
watch = true
debounce = "1s"
refresh_rate = 2.5

[stubs]
enabled = false

[metrics]
enabled = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("expected default version 1, got %d", cfg.Version)
	}
	if cfg.PHP.MinVersion != "8.1" {
		t.Errorf("unexpected min_version %q", cfg.PHP.MinVersion)
	}
	if cfg.Cache.MaxFiles != 64 || cfg.Cache.MaxHeapMB != 512 {
		t.Errorf("unexpected cache section: %+v", cfg.Cache)
	}
	if got := strings.Join(cfg.Locator.Roots, ","); got != "src,lib" {
		t.Errorf("expected trimmed roots, got %q", got)
	}
	if cfg.Locator.Debounce != time.Second {
		t.Errorf("expected 1s debounce, got %v", cfg.Locator.Debounce)
	}
	if !cfg.Locator.Watch || cfg.Locator.RefreshRate != 2.5 {
		t.Errorf("unexpected locator section: %+v", cfg.Locator)
	}
	if cfg.Stubs.IsEnabled() {
		t.Error("expected stubs to be disabled")
	}
	if cfg.Metrics.Address != defaultMetrics {
		t.Errorf("expected default metrics address, got %q", cfg.Metrics.Address)
	}

	types, err := cfg.TypeConfig()
	if err != nil {
		t.Fatalf("TypeConfig failed: %v", err)
	}
	if !types.IsBuiltin("void", typesys.UsageReturn) || types.IsBuiltin("void", typesys.UsageParameter) {
		t.Error("expected void to be a return-only builtin")
	}
	if !types.IsBuiltin("mask", typesys.UsageParameter) {
		t.Error("expected integer masks to be accepted")
	}
	if types.IsBuiltin("string", typesys.UsageParameter) {
		t.Error("explicit builtins must replace the version-derived set")
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "staticreflect.yaml", `
php:
  min_version: "7.4"
types:
  builtins:
    int: [parameter, return]
locator:
  roots: [app]
  debounce: 250ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PHP.MinVersion != "7.4" {
		t.Errorf("unexpected min_version %q", cfg.PHP.MinVersion)
	}
	if cfg.Locator.Debounce != 250*time.Millisecond {
		t.Errorf("expected 250ms debounce, got %v", cfg.Locator.Debounce)
	}
	if len(cfg.Locator.Roots) != 1 || cfg.Locator.Roots[0] != "app" {
		t.Errorf("unexpected roots %v", cfg.Locator.Roots)
	}
	if !cfg.Stubs.IsEnabled() {
		t.Error("stubs default to enabled")
	}
	v, err := cfg.PHPVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v.ID() != 70400 {
		t.Errorf("expected version id 70400, got %d", v.ID())
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.PHP.MinVersion != defaultMinVersion {
		t.Errorf("unexpected default min_version %q", cfg.PHP.MinVersion)
	}
	if cfg.Cache.MaxFiles != defaultMaxFiles {
		t.Errorf("unexpected default max_files %d", cfg.Cache.MaxFiles)
	}
	if len(cfg.Locator.Roots) != 1 || cfg.Locator.Roots[0] != "." {
		t.Errorf("unexpected default roots %v", cfg.Locator.Roots)
	}
	if cfg.Locator.Debounce != defaultDebounce {
		t.Errorf("unexpected default debounce %v", cfg.Locator.Debounce)
	}

	types, err := cfg.TypeConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !types.IsBuiltin("never", typesys.UsageReturn) {
		t.Error("expected the default version to know never")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"version", "version = 2", "unsupported config version"},
		{"php version", "[php]\nmin_version = \"eight\"", "malformed version"},
		{"zero mask", "[types.builtins]\nint = 0", "empty usage mask"},
		{"unknown usage", "[types.builtins]\nint = [\"yield\"]", "unknown type usage"},
		{"nested mask", "[types.builtins.int]\nparameter = true", "non-scalar"},
		{"max files", "[cache]\nmax_files = -1", "cache.max_files"},
		{"wildcard root", "[locator]\nroots = [\"src/*\"]", "not a pattern"},
		{"overlapping roots", "[locator]\nroots = [\"src\", \"src/App\"]", "overlaps"},
		{"bad glob", "[locator]\nexclude = [\"[\"]", "not a valid pattern"},
		{"refresh rate", "[locator]\nrefresh_rate = -1.0", "refresh_rate"},
		{"metrics address", "[metrics]\nenabled = true\naddress = \"nowhere\"", "host:port"},
		{"syntax", "[locator", "decode toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), FormatTOML)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.IsCode(err, errors.CodeInvalidConfiguration) {
				t.Errorf("expected INVALID_CONFIGURATION, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParse_UnknownFormat(t *testing.T) {
	_, err := Parse(nil, "ini")
	if !errors.IsCode(err, errors.CodeInvalidConfiguration) {
		t.Fatalf("expected INVALID_CONFIGURATION, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.IsCode(err, errors.CodeInvalidConfiguration) {
		t.Fatalf("expected INVALID_CONFIGURATION, got %v", err)
	}
}

func TestFormatOf(t *testing.T) {
	cases := map[string]string{
		"a.toml":  FormatTOML,
		"a.yaml":  FormatYAML,
		"a.YML":   FormatYAML,
		"noext":   FormatTOML,
		"a.json":  FormatTOML,
		"d/x.yml": FormatYAML,
	}
	for path, want := range cases {
		if got := FormatOf(path); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("STATICREFLECT_PHP_MIN_VERSION", "8.0")
	t.Setenv("STATICREFLECT_CACHE_MAX_FILES", "12")
	t.Setenv("STATICREFLECT_CACHE_MAX_HEAP_MB", "not-a-number")
	t.Setenv("STATICREFLECT_LOCATOR_ROOTS", "a"+string(os.PathListSeparator)+" b ")
	t.Setenv("STATICREFLECT_LOCATOR_WATCH", "TRUE")
	t.Setenv("STATICREFLECT_LOCATOR_DEBOUNCE", "2s")

	cfg := Default()
	cfg.Cache.MaxHeapMB = 100
	ApplyEnvOverrides(cfg)

	if cfg.PHP.MinVersion != "8.0" {
		t.Errorf("unexpected min_version %q", cfg.PHP.MinVersion)
	}
	if cfg.Cache.MaxFiles != 12 {
		t.Errorf("unexpected max_files %d", cfg.Cache.MaxFiles)
	}
	if cfg.Cache.MaxHeapMB != 100 {
		t.Errorf("unparsable overrides must be ignored, got %d", cfg.Cache.MaxHeapMB)
	}
	if strings.Join(cfg.Locator.Roots, ",") != "a,b" {
		t.Errorf("unexpected roots %v", cfg.Locator.Roots)
	}
	if !cfg.Locator.Watch || cfg.Locator.Debounce != 2*time.Second {
		t.Errorf("unexpected locator section %+v", cfg.Locator)
	}
}
