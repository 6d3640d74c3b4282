package config

import (
	"os"
	"path/filepath"
	"strings"

	"staticreflect/internal/core/errors"
)

// ResolvedPaths holds the locator paths made absolute.
type ResolvedPaths struct {
	ProjectRoot string
	Roots       []string
	// IndexPath is empty when no persistent index is configured.
	IndexPath string
}

// ResolvePaths anchors relative locator paths at the project root, which
// is detected from base when base itself carries no project marker.
func ResolvePaths(cfg *Config, base string) (ResolvedPaths, error) {
	if strings.TrimSpace(base) == "" {
		return ResolvedPaths{}, errors.New(errors.CodeInvalidConfiguration, "base directory must not be empty")
	}
	projectRoot, err := DetectProjectRoot([]string{base})
	if err != nil {
		projectRoot, err = filepath.Abs(base)
		if err != nil {
			return ResolvedPaths{}, errors.Wrap(err, errors.CodeInvalidConfiguration, "resolve base directory")
		}
	}

	resolved := ResolvedPaths{ProjectRoot: filepath.Clean(projectRoot)}
	for _, root := range cfg.Locator.Roots {
		resolved.Roots = append(resolved.Roots, ResolveRelative(projectRoot, root))
	}
	if cfg.Locator.IndexPath != "" {
		resolved.IndexPath = ResolveRelative(projectRoot, cfg.Locator.IndexPath)
	}
	return resolved, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Join(base, raw)
}

var projectMarkers = []string{
	"composer.json",
	"staticreflect.toml",
	"staticreflect.yaml",
	".git",
}

// DetectProjectRoot walks up from each candidate until a directory holding
// a project marker is found.
func DetectProjectRoot(candidates []string) (string, error) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			abs = filepath.Dir(abs)
		}
		for dir := abs; ; {
			if hasMarker(dir) {
				return dir, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return "", errors.New(errors.CodeNotFound, "no project root found")
}

func hasMarker(dir string) bool {
	for _, marker := range projectMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}
