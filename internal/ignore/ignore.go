// Package ignore resolves the set of directories excluded from an audit.
//
// The set is the union of the index service's root-level configured
// ignore directories (sourced from its configuration, never crawled
// for) and a fixed set of version-control metadata directories. The
// same set drives both sides of the comparison: the crawler skips these
// directories without descending, and the primary query expression
// excludes everything beneath them.
package ignore

import (
	"path"
	"sort"
	"strings"
)

// VCSDirectories are version-control metadata directories that are
// always excluded, whether or not the service configuration names them.
var VCSDirectories = []string{".git", ".hg", ".svn"}

// Set answers whether a root-relative path lies inside an ignored
// directory. Matching is component-wise against root-relative
// directory paths, never a substring match.
type Set struct {
	dirs []string
}

// New builds a Set from the service-configured ignore directories.
// An empty configured list is valid and yields just the VCS set.
func New(configured []string) *Set {
	seen := make(map[string]bool, len(configured)+len(VCSDirectories))
	var dirs []string

	add := func(dir string) {
		dir = path.Clean(strings.Trim(strings.ReplaceAll(dir, "\\", "/"), "/"))
		if dir == "" || dir == "." || seen[dir] {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	for _, dir := range VCSDirectories {
		add(dir)
	}
	for _, dir := range configured {
		add(dir)
	}

	sort.Strings(dirs)
	return &Set{dirs: dirs}
}

// FromConfig extracts the "ignore_dirs" list from a service
// configuration mapping and builds a Set from it plus any extra
// locally-configured directories. Absent or oddly-typed entries are
// treated as an empty configured list.
func FromConfig(config map[string]any, extra ...string) *Set {
	var dirs []string
	if raw, ok := config["ignore_dirs"].([]any); ok {
		for _, entry := range raw {
			if dir, ok := entry.(string); ok {
				dirs = append(dirs, dir)
			}
		}
	}
	return New(append(dirs, extra...))
}

// Ignored reports whether the root-relative path equals an ignored
// directory or lies beneath one.
func (s *Set) Ignored(relPath string) bool {
	for _, dir := range s.dirs {
		if relPath == dir || strings.HasPrefix(relPath, dir+"/") {
			return true
		}
	}
	return false
}

// Directories returns the member directories in sorted order, for use
// in query expressions that must exclude the same paths the crawler
// skips.
func (s *Set) Directories() []string {
	out := make([]string, len(s.dirs))
	copy(out, s.dirs)
	return out
}
