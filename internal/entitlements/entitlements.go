// Package entitlements adds the applinks entry for the universal-links host
// to an iOS entitlements property list.
package entitlements

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

// Defaults for the associated-domains entry.
const (
	DefaultKey    = "com.apple.developer.associated-domains"
	DefaultPrefix = "applinks"

	// AppPlaceholder is replaced with the Xcode project name in target paths.
	AppPlaceholder = "{app}"
)

// File and directory permissions for files this package creates.
const (
	DirPerms  os.FileMode = 0750
	FilePerms os.FileMode = 0644
)

var (
	// ErrNoProject means no *.xcodeproj directory was found. Callers treat
	// it as a skip.
	ErrNoProject = errors.New("no Xcode project found")

	// ErrNotArray means the key exists but does not hold an array.
	ErrNotArray = errors.New("entitlement value is not an array")
)

// DefaultFiles is the entitlements location relative to platforms/ios.
func DefaultFiles() []string {
	return []string{AppPlaceholder + "/" + AppPlaceholder + ".entitlements"}
}

// Entry returns the associated-domains entry for host, e.g.
// "applinks:example.com".
func Entry(prefix, host string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ":" + host
}

// Merge returns a copy of doc in which key holds an array containing entry.
// Existing keys and array members are preserved; entry is appended only when
// no identical string is present. doc itself is not modified.
func Merge(doc map[string]any, key, entry string) (map[string]any, bool, error) {
	out := maps.Clone(doc)
	if out == nil {
		out = make(map[string]any)
	}

	var items []any

	switch v := out[key].(type) {
	case nil:
	case []any:
		items = v
	case []string:
		items = make([]any, 0, len(v))
		for _, s := range v {
			items = append(items, s)
		}
	default:
		return doc, false, fmt.Errorf("%w: %s is %T", ErrNotArray, key, v)
	}

	for _, item := range items {
		if s, ok := item.(string); ok && s == entry {
			return out, false, nil
		}
	}

	merged := make([]any, 0, len(items)+1)
	merged = append(merged, items...)
	merged = append(merged, entry)
	out[key] = merged

	return out, true, nil
}

// AppName returns the Xcode project name found in iosDir, which is the
// name of the first *.xcodeproj entry without its extension.
func AppName(iosDir string) (string, error) {
	entries, err := os.ReadDir(iosDir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w in %s", ErrNoProject, iosDir)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", iosDir, err)
	}

	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".xcodeproj"); ok && name != "" {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w in %s", ErrNoProject, iosDir)
}

// TargetPaths expands the {app} placeholder in files and joins relative
// results onto iosDir.
func TargetPaths(iosDir, app string, files []string) []string {
	if len(files) == 0 {
		files = DefaultFiles()
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.FromSlash(strings.ReplaceAll(f, AppPlaceholder, app))
		if !filepath.IsAbs(p) {
			p = filepath.Join(iosDir, p)
		}
		paths = append(paths, p)
	}

	return paths
}

// Options configures Patch.
type Options struct {
	Key    string
	Entry  string
	DryRun bool
}

// Result describes what Patch did to one entitlements file.
type Result struct {
	Path    string
	Before  []byte
	After   []byte
	Changed bool
	Created bool
}

// Patch merges opts.Entry into the entitlements file at path. A missing file
// is created along with its parent directories. An existing file keeps its
// plist format and is rewritten only when the entry was not yet present.
func Patch(path string, opts Options) (Result, error) {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}

	res := Result{Path: path}

	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the project layout
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res.Created = true
	case err != nil:
		return res, fmt.Errorf("reading %s: %w", path, err)
	}
	res.Before = data

	doc := map[string]any{}
	format := plist.XMLFormat

	if len(strings.TrimSpace(string(data))) > 0 {
		if format, err = plist.Unmarshal(data, &doc); err != nil {
			return res, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	merged, changed, err := Merge(doc, opts.Key, opts.Entry)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}

	if !changed && !res.Created {
		res.After = data
		return res, nil
	}

	if res.After, err = encode(merged, format); err != nil {
		return res, fmt.Errorf("encoding %s: %w", path, err)
	}
	res.Changed = true

	if opts.DryRun {
		return res, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), DirPerms); err != nil {
		return res, fmt.Errorf("creating parent directory: %w", err)
	}

	if err := os.WriteFile(path, res.After, FilePerms); err != nil {
		return res, fmt.Errorf("writing %s: %w", path, err)
	}

	return res, nil
}

func encode(doc map[string]any, format int) ([]byte, error) {
	if format == plist.XMLFormat {
		return plist.MarshalIndent(doc, format, "\t")
	}
	return plist.Marshal(doc, format)
}
