// Package pattern provides the path filter used by selective
// reconciliation. Selective sync is opt-in scope reduction: paths that do
// not match the filter are dropped silently, not reported as errors.
package pattern

import (
	"path/filepath"
	"strings"
)

// DefaultSuffixes is the suffix allow-list applied when no patterns are
// configured.
var DefaultSuffixes = []string{".py"}

// Filter matches repo-relative paths against a suffix allow-list and
// optional include/exclude glob patterns. Safe for concurrent use after
// creation.
type Filter struct {
	suffixes []string
	includes []string
	excludes []string
}

// New creates a filter. An empty suffix list falls back to
// DefaultSuffixes unless glob patterns are given; empty includes admit
// every path not excluded.
func New(suffixes, includes, excludes []string) *Filter {
	if len(suffixes) == 0 && len(includes) == 0 {
		suffixes = DefaultSuffixes
	}
	return &Filter{
		suffixes: suffixes,
		includes: includes,
		excludes: excludes,
	}
}

// Match returns true if the path is in selective scope.
func (f *Filter) Match(path string) bool {
	path = filepath.ToSlash(path)

	for _, pat := range f.excludes {
		if matchGlob(pat, path) {
			return false
		}
	}

	for _, suffix := range f.suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}

	for _, pat := range f.includes {
		if matchGlob(pat, path) {
			return true
		}
	}

	return false
}

// matchGlob matches a path against a glob pattern, with ** matching
// across path separators.
func matchGlob(pattern, path string) bool {
	if strings.Contains(pattern, "**") {
		return matchDoublestar(pattern, path)
	}

	matched, _ := filepath.Match(pattern, path)
	if matched {
		return true
	}

	// A bare filename pattern matches in any directory.
	matched, _ = filepath.Match(pattern, filepath.Base(path))
	return matched
}

// matchDoublestar handles prefix/**/suffix patterns.
func matchDoublestar(pattern, path string) bool {
	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix != "" {
		if path != prefix && !strings.HasPrefix(path, prefix+"/") {
			return false
		}
		path = strings.TrimPrefix(path, prefix+"/")
	}

	if suffix == "" {
		return true
	}

	// The suffix may match at any depth below the prefix.
	if matched, _ := filepath.Match(suffix, path); matched {
		return true
	}
	segments := strings.Split(path, "/")
	for i := 1; i < len(segments); i++ {
		rest := strings.Join(segments[i:], "/")
		if matched, _ := filepath.Match(suffix, rest); matched {
			return true
		}
	}
	return false
}
