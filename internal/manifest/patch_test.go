package manifest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.xml")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}

	return path
}

func countBackups(t *testing.T, dir string) int {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "*.bak*"))
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}

	return len(matches)
}

func TestPatch_BackupOnce(t *testing.T) {
	t.Parallel()

	original := readTestdata(t, "config.xml")
	path := writeManifest(t, original)

	first, err := Patch(path, defaultFragment, PatchOptions{})
	if err != nil {
		t.Fatalf("first Patch() error = %v", err)
	}

	if !first.Changed || !first.BackupCreated {
		t.Errorf("first Patch() = (changed %v, backup %v), want (true, true)", first.Changed, first.BackupCreated)
	}

	if first.BackupPath != path+DefaultBackupSuffix {
		t.Errorf("BackupPath = %q, want %q", first.BackupPath, path+DefaultBackupSuffix)
	}

	afterFirst, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	second, err := Patch(path, defaultFragment, PatchOptions{})
	if err != nil {
		t.Fatalf("second Patch() error = %v", err)
	}

	if second.Changed || second.BackupCreated {
		t.Errorf("second Patch() = (changed %v, backup %v), want (false, false)", second.Changed, second.BackupCreated)
	}

	afterSecond, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(afterFirst, afterSecond) {
		t.Error("second Patch() modified the manifest")
	}

	// A later change with new values must not refresh the backup.
	frag := defaultFragment
	frag.Host = "example.com"

	third, err := Patch(path, frag, PatchOptions{})
	if err != nil {
		t.Fatalf("third Patch() error = %v", err)
	}

	if !third.Changed || third.BackupCreated {
		t.Errorf("third Patch() = (changed %v, backup %v), want (true, false)", third.Changed, third.BackupCreated)
	}

	backup, err := os.ReadFile(path + DefaultBackupSuffix)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}

	if !bytes.Equal(backup, original) {
		t.Errorf("backup content =\n%s\nwant original\n%s", backup, original)
	}

	if n := countBackups(t, filepath.Dir(path)); n != 1 {
		t.Errorf("backup files = %d, want 1", n)
	}
}

func TestPatch_CustomSuffix(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, readTestdata(t, "config.xml"))

	res, err := Patch(path, defaultFragment, PatchOptions{BackupSuffix: ".orig"})
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}

	if res.BackupPath != path+".orig" {
		t.Errorf("BackupPath = %q, want %q", res.BackupPath, path+".orig")
	}

	if _, err := os.Stat(path + ".orig"); err != nil {
		t.Errorf("backup missing: %v", err)
	}
}

func TestPatch_DryRun(t *testing.T) {
	t.Parallel()

	original := readTestdata(t, "config.xml")
	path := writeManifest(t, original)

	res, err := Patch(path, defaultFragment, PatchOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}

	if !res.Changed || res.Action != ActionAppended {
		t.Errorf("Patch() = (changed %v, action %q), want (true, %q)", res.Changed, res.Action, ActionAppended)
	}

	if bytes.Equal(res.Before, res.After) {
		t.Error("dry run After equals Before")
	}

	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(current, original) {
		t.Error("dry run wrote the manifest")
	}

	if n := countBackups(t, filepath.Dir(path)); n != 0 {
		t.Errorf("dry run created %d backup files", n)
	}
}

func TestPatch_Skips(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := Patch(filepath.Join(t.TempDir(), "config.xml"), defaultFragment, PatchOptions{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Patch() error = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("directory", func(t *testing.T) {
		t.Parallel()

		_, err := Patch(t.TempDir(), defaultFragment, PatchOptions{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Patch() error = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()

		doc := []byte("<widget>\n")
		path := writeManifest(t, doc)

		_, err := Patch(path, defaultFragment, PatchOptions{})
		if !errors.Is(err, ErrMalformedDocument) {
			t.Errorf("Patch() error = %v, want %v", err, ErrMalformedDocument)
		}

		current, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(current, doc) {
			t.Error("malformed manifest was rewritten")
		}

		if n := countBackups(t, filepath.Dir(path)); n != 0 {
			t.Errorf("malformed manifest produced %d backup files", n)
		}
	})
}
