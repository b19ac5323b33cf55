package utils

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// NameFilter matches names against a set of exclusion patterns.
// Patterns with wildcards are matched as globs, others as exact names.
type NameFilter struct {
	patterns []string
	globs    []glob.Glob
}

// NewNameFilter compiles the given patterns. Empty patterns are ignored.
func NewNameFilter(patterns []string) (*NameFilter, error) {
	f := &NameFilter{}
	seen := make(map[string]bool)

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true

		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("error compiling exclude pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, p)
		f.globs = append(f.globs, g)
	}

	return f, nil
}

// Match reports whether name matches any pattern
func (f *NameFilter) Match(name string) bool {
	if f == nil {
		return false
	}
	for _, g := range f.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Patterns returns the compiled patterns
func (f *NameFilter) Patterns() []string {
	if f == nil {
		return nil
	}
	return f.patterns
}

// SplitList splits a comma separated list, trimming blanks
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
