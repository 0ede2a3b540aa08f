// Package exclude decides which project paths are left out of a sync.
//
// Patterns follow doublestar glob syntax with rsync-like anchoring: a
// pattern without '/' is tried against every path component, a pattern
// containing '/' is tried against the project-relative path and each of its
// parent directories. A leading '/' is accepted and ignored, a trailing '/'
// is dropped.
package exclude

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// AutoExcludes are macOS metadata files that never belong on a remote host.
var AutoExcludes = []string{".DS_Store", "._*"}

// Matcher is an exclude predicate. The zero value excludes nothing.
type Matcher struct {
	patterns  []string
	component []string
	anchored  []string
}

// New builds a matcher from the configured patterns plus AutoExcludes when
// auto is true. Duplicates are dropped; order is kept.
func New(patterns []string, auto bool) (*Matcher, error) {
	m := &Matcher{}
	seen := make(map[string]bool)

	all := append([]string(nil), patterns...)
	if auto {
		all = append(all, AutoExcludes...)
	}

	for _, p := range all {
		if seen[p] {
			continue
		}
		seen[p] = true

		norm := strings.TrimSuffix(strings.TrimPrefix(p, "/"), "/")
		if norm == "" {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
		if !doublestar.ValidatePattern(norm) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}

		m.patterns = append(m.patterns, p)
		if strings.Contains(norm, "/") || strings.HasPrefix(p, "/") {
			m.anchored = append(m.anchored, norm)
		} else {
			m.component = append(m.component, norm)
		}
	}
	return m, nil
}

// Patterns returns the effective pattern list in the order given.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// Excluded reports whether rel, a slash-separated project-relative path, is
// excluded. Excluding a directory excludes everything beneath it.
func (m *Matcher) Excluded(rel string) bool {
	if m == nil {
		return false
	}
	rel = strings.Trim(path.Clean("/"+rel), "/")
	if rel == "" {
		return false
	}

	parts := strings.Split(rel, "/")
	for _, part := range parts {
		for _, p := range m.component {
			if ok, _ := doublestar.Match(p, part); ok {
				return true
			}
		}
	}

	for i := len(parts); i > 0; i-- {
		prefix := strings.Join(parts[:i], "/")
		for _, p := range m.anchored {
			if ok, _ := doublestar.Match(p, prefix); ok {
				return true
			}
		}
	}
	return false
}
