// Package testutil provides fake project fixtures for tests.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Manifest is a minimal config.xml without a universal-links block.
const Manifest = `<?xml version="1.0" encoding="utf-8"?>
<widget id="com.example.fixture" version="1.0.0" xmlns="http://www.w3.org/ns/widgets">
    <name>Fixture</name>
    <preference name="Orientation" value="portrait"/>
</widget>
`

// Project is a throwaway project tree rooted in a test temp directory.
type Project struct {
	t    *testing.T
	Root string
}

// NewProject creates an empty project.
func NewProject(t *testing.T) *Project {
	t.Helper()

	return &Project{t: t, Root: t.TempDir()}
}

// Path returns the absolute path of rel inside the project.
func (p *Project) Path(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// WriteFile writes content to rel, creating parent directories, and returns
// the absolute path.
func (p *Project) WriteFile(rel, content string) string {
	p.t.Helper()

	path := p.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		p.t.Fatalf("creating parent of %s: %v", rel, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		p.t.Fatalf("writing %s: %v", rel, err)
	}

	return path
}

// ReadFile returns the content of rel, failing the test if it cannot be read.
func (p *Project) ReadFile(rel string) string {
	p.t.Helper()

	data, err := os.ReadFile(p.Path(rel))
	if err != nil {
		p.t.Fatalf("reading %s: %v", rel, err)
	}

	return string(data)
}

// Exists reports whether rel exists.
func (p *Project) Exists(rel string) bool {
	_, err := os.Stat(p.Path(rel))
	return err == nil
}

// AddXcodeProject creates platforms/ios/<app>.xcodeproj.
func (p *Project) AddXcodeProject(app string) {
	p.t.Helper()

	if err := os.MkdirAll(p.Path("platforms/ios/"+app+".xcodeproj"), 0o750); err != nil {
		p.t.Fatalf("creating Xcode project: %v", err)
	}
}

// Snapshot returns every regular file in the project keyed by slash-separated
// relative path, with its content.
func (p *Project) Snapshot() map[string]string {
	p.t.Helper()

	files := make(map[string]string)

	err := filepath.WalkDir(p.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		data, err := os.ReadFile(path) //nolint:gosec // walking a test temp dir
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(p.Root, path)
		if err != nil {
			return err
		}

		files[filepath.ToSlash(rel)] = string(data)

		return nil
	})
	if err != nil {
		p.t.Fatalf("snapshotting project: %v", err)
	}

	return files
}

// SkipIfNoSymlink skips the test if the OS does not support symlink creation
// (e.g., Windows without Developer Mode enabled).
func SkipIfNoSymlink(t *testing.T) {
	t.Helper()

	if runtime.GOOS != "windows" {
		return
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	if err := os.WriteFile(src, []byte("x"), 0o600); err != nil {
		t.Fatalf("cannot create test file: %v", err)
	}

	if err := os.Symlink(src, dst); err != nil {
		t.Skipf("symlinks not available: %v", err)
	}
}
