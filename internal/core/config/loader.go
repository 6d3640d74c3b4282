package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"staticreflect/internal/core/errors"
)

const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

const (
	defaultMinVersion = "8.3"
	defaultMaxFiles   = 256
	defaultDebounce   = 500 * time.Millisecond
	defaultMetrics    = "127.0.0.1:9464"
	defaultOTLP       = "localhost:4317"
)

// Load reads a TOML or YAML file, chosen by extension, then applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInvalidConfiguration, "read config"), errors.CtxPath, path)
	}
	cfg, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return cfg, nil
}

// FormatOf maps .yaml and .yml to FormatYAML; anything else is TOML.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatTOML
}

func Parse(data []byte, format string) (*Config, error) {
	var cfg Config
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfiguration, "decode yaml config")
		}
	case FormatTOML, "":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfiguration, "decode toml config")
		}
	default:
		return nil, errors.Newf(errors.CodeInvalidConfiguration, "unknown config format %q", format)
	}

	applyDefaults(&cfg)
	normalizeLocator(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.PHP.MinVersion) == "" {
		cfg.PHP.MinVersion = defaultMinVersion
	}
	if cfg.Cache.MaxFiles == 0 {
		cfg.Cache.MaxFiles = defaultMaxFiles
	}
	if len(cfg.Locator.Roots) == 0 {
		cfg.Locator.Roots = []string{"."}
	}
	if len(cfg.Locator.Exclude) == 0 {
		cfg.Locator.Exclude = []string{".git", "node_modules"}
	}
	if cfg.Locator.Debounce == 0 {
		cfg.Locator.Debounce = defaultDebounce
	}
	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Address) == "" {
		cfg.Metrics.Address = defaultMetrics
	}
	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		cfg.Tracing.Endpoint = defaultOTLP
	}
}

func normalizeLocator(cfg *Config) {
	cfg.Locator.IndexPath = strings.TrimSpace(cfg.Locator.IndexPath)
	cfg.Locator.Roots = trimAll(cfg.Locator.Roots)
	cfg.Locator.Include = trimAll(cfg.Locator.Include)
	cfg.Locator.Exclude = trimAll(cfg.Locator.Exclude)
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
