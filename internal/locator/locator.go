// Package locator finds named files inside a bounded directory tree.
package locator

import (
	"os"
	"path/filepath"
)

// Default search bounds.
const (
	// DefaultMaxDepth bounds searches under a project root
	DefaultMaxDepth = 6
	// PluginMaxDepth bounds searches under a plugin installation root
	PluginMaxDepth = 3
)

// Root is one directory tree to search together with its depth bound.
type Root struct {
	Dir      string
	MaxDepth int
}

// Match is a file found by LocateAny.
type Match struct {
	Path string
	Name string
	Root Root
}

// Locate walks the tree under root looking for a regular file called name.
// The root is depth 0; entries of a directory at depth maxDepth are examined
// but its subdirectories are not entered. Unreadable directories are skipped.
// Each resolved directory is entered once, so symlink loops terminate.
//
// When several files match, which one is returned is unspecified.
func Locate(root, name string, maxDepth int) (string, bool) {
	seen := make(map[string]struct{})
	seen[resolvedKey(root)] = struct{}{}

	return search(root, name, 0, maxDepth, seen)
}

func search(dir, name string, depth, maxDepth int, seen map[string]struct{}) (string, bool) {
	if depth > maxDepth {
		return "", false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())

		// Stat follows symlinks so linked files and directories count.
		info, err := os.Stat(full)
		if err != nil {
			continue
		}

		if info.Mode().IsRegular() && entry.Name() == name {
			return full, true
		}

		if !info.IsDir() {
			continue
		}

		key := resolvedKey(full)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if found, ok := search(full, name, depth+1, maxDepth, seen); ok {
			return found, true
		}
	}

	return "", false
}

func resolvedKey(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	return filepath.Clean(path)
}

// LocateAny tries each name in order against each root in order and returns
// the first hit. Roots with an empty Dir are ignored.
func LocateAny(roots []Root, names ...string) (Match, bool) {
	for _, name := range names {
		for _, root := range roots {
			if root.Dir == "" {
				continue
			}

			if path, ok := Locate(root.Dir, name, root.MaxDepth); ok {
				return Match{Path: path, Name: name, Root: root}, true
			}
		}
	}

	return Match{}, false
}
