package helpers

import (
	"path/filepath"
	"strings"
)

// HasWildcard reports whether pattern uses glob syntax.
func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[]{}")
}

// IsPathOverlap reports whether a and b are the same directory or one
// contains the other.
func IsPathOverlap(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if a == b {
		return true
	}
	return within(a, b) || within(b, a)
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
