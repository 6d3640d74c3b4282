package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"staticreflect/internal/core/config/helpers"
	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/typesys"
)

func validate(cfg *Config) error {
	checks := []func(*Config) error{
		validateVersion,
		validatePHP,
		validateTypes,
		validateCache,
		validateLocator,
		validateTelemetry,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return errors.Newf(errors.CodeInvalidConfiguration, "unsupported config version %d; the only supported version is 1", cfg.Version)
	}
	return nil
}

func validatePHP(cfg *Config) error {
	if _, err := typesys.ParseVersion(cfg.PHP.MinVersion); err != nil {
		return errors.AddContext(err, errors.CtxSymbol, "php.min_version")
	}
	return nil
}

func validateTypes(cfg *Config) error {
	if len(cfg.Types.Builtins) == 0 {
		return nil
	}
	if _, err := typesys.NewConfigFromRaw(cfg.Types.Builtins); err != nil {
		return errors.AddContext(err, errors.CtxSymbol, "types.builtins")
	}
	return nil
}

func validateCache(cfg *Config) error {
	if cfg.Cache.MaxFiles < 0 {
		return errors.Newf(errors.CodeInvalidConfiguration, "cache.max_files must be >= 0, got %d", cfg.Cache.MaxFiles)
	}
	return nil
}

func validateLocator(cfg *Config) error {
	loc := cfg.Locator
	if len(loc.Roots) == 0 {
		return errors.New(errors.CodeInvalidConfiguration, "locator.roots must not be empty")
	}
	for i, root := range loc.Roots {
		if helpers.HasWildcard(root) {
			return errors.Newf(errors.CodeInvalidConfiguration, "locator.roots[%d] %q must be a directory, not a pattern", i, root)
		}
		for j := 0; j < i; j++ {
			if helpers.IsPathOverlap(root, loc.Roots[j]) {
				return errors.Newf(errors.CodeInvalidConfiguration, "locator.roots[%d] %q overlaps locator.roots[%d] %q", i, root, j, loc.Roots[j])
			}
		}
	}
	for _, group := range []struct {
		key      string
		patterns []string
	}{
		{"locator.include", loc.Include},
		{"locator.exclude", loc.Exclude},
	} {
		for i, pattern := range group.patterns {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				return errors.Wrap(err, errors.CodeInvalidConfiguration, fmt.Sprintf("%s[%d] %q is not a valid pattern", group.key, i, pattern))
			}
		}
	}
	if loc.Debounce < 0 {
		return errors.New(errors.CodeInvalidConfiguration, "locator.debounce must not be negative")
	}
	if loc.RefreshRate < 0 {
		return errors.New(errors.CodeInvalidConfiguration, "locator.refresh_rate must not be negative")
	}
	return nil
}

func validateTelemetry(cfg *Config) error {
	if cfg.Metrics.Enabled && !strings.Contains(cfg.Metrics.Address, ":") {
		return errors.Newf(errors.CodeInvalidConfiguration, "metrics.address must be host:port, got %q", cfg.Metrics.Address)
	}
	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		return errors.New(errors.CodeInvalidConfiguration, "tracing.endpoint must not be empty")
	}
	return nil
}
