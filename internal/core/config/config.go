package config

import (
	"time"

	"staticreflect/internal/engine/typesys"
)

type Config struct {
	Version int     `toml:"version" yaml:"version"`
	PHP     PHP     `toml:"php" yaml:"php"`
	Types   Types   `toml:"types" yaml:"types"`
	Cache   Cache   `toml:"cache" yaml:"cache"`
	Locator Locator `toml:"locator" yaml:"locator"`
	Stubs   Stubs   `toml:"stubs" yaml:"stubs"`
	Metrics Metrics `toml:"metrics" yaml:"metrics"`
	Tracing Tracing `toml:"tracing" yaml:"tracing"`
}

type PHP struct {
	// MinVersion selects the builtin type set and the PHP_VERSION_ID the
	// evaluator reports, e.g. "8.1".
	MinVersion string `toml:"min_version" yaml:"min_version"`
}

type Types struct {
	// Builtins overrides the version-derived builtin set. Values are usage
	// lists ("parameter", "return") or integer masks.
	Builtins map[string]any `toml:"builtins" yaml:"builtins"`
}

type Cache struct {
	MaxFiles  int    `toml:"max_files" yaml:"max_files"`
	MaxHeapMB uint64 `toml:"max_heap_mb" yaml:"max_heap_mb"`
}

type Locator struct {
	Roots       []string      `toml:"roots" yaml:"roots"`
	Include     []string      `toml:"include" yaml:"include"`
	Exclude     []string      `toml:"exclude" yaml:"exclude"`
	IndexPath   string        `toml:"index_path" yaml:"index_path"`
	Watch       bool          `toml:"watch" yaml:"watch"`
	Debounce    time.Duration `toml:"debounce" yaml:"debounce"`
	RefreshRate float64       `toml:"refresh_rate" yaml:"refresh_rate"`
}

type Stubs struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

type Metrics struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Address string `toml:"address" yaml:"address"`
}

type Tracing struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"insecure" yaml:"insecure"`
}

func (s Stubs) IsEnabled() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// PHPVersion parses php.min_version.
func (c *Config) PHPVersion() (typesys.Version, error) {
	return typesys.ParseVersion(c.PHP.MinVersion)
}

// TypeConfig returns the builtin type set: the explicit [types.builtins]
// table when present, otherwise the set derived from php.min_version.
func (c *Config) TypeConfig() (*typesys.Config, error) {
	if len(c.Types.Builtins) > 0 {
		return typesys.NewConfigFromRaw(c.Types.Builtins)
	}
	return typesys.ConfigForVersionString(c.PHP.MinVersion)
}
