package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AntoineGS/ulinject/internal/testutil"
)

func touch(t *testing.T, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

// nested returns root/d1/d2/.../dN.
func nested(root string, n int) string {
	dir := root
	for i := 1; i <= n; i++ {
		dir = filepath.Join(dir, "d"+string(rune('0'+i)))
	}

	return dir
}

func TestLocate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fileDepth int
		maxDepth  int
		wantFound bool
	}{
		{"at root", 0, 6, true},
		{"nested within bound", 3, 6, true},
		{"in directory at bound", 6, 6, true},
		{"below bound", 7, 6, false},
		{"zero bound only root", 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			want := filepath.Join(nested(root, tt.fileDepth), "plugin_options.json")
			touch(t, want)

			got, ok := Locate(root, "plugin_options.json", tt.maxDepth)
			if ok != tt.wantFound {
				t.Fatalf("Locate() found = %v, want %v", ok, tt.wantFound)
			}

			if ok && got != want {
				t.Errorf("Locate() = %q, want %q", got, want)
			}
		})
	}
}

func TestLocate_ExactNameOnly(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, filepath.Join(root, "plugin_options.json.bak"))
	touch(t, filepath.Join(root, "Plugin_Options.json"))

	if got, ok := Locate(root, "plugin_options.json", DefaultMaxDepth); ok {
		t.Errorf("Locate() = %q, want not found", got)
	}
}

func TestLocate_DirectoryWithMatchingNameIsNotAFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "plugin_options.json"), 0750); err != nil {
		t.Fatal(err)
	}

	if _, ok := Locate(root, "plugin_options.json", DefaultMaxDepth); ok {
		t.Error("Locate() matched a directory")
	}
}

func TestLocate_MissingRoot(t *testing.T) {
	t.Parallel()

	if _, ok := Locate(filepath.Join(t.TempDir(), "nope"), "x", DefaultMaxDepth); ok {
		t.Error("Locate() on missing root should not find anything")
	}
}

func TestLocate_SymlinkCycle(t *testing.T) {
	testutil.SkipIfNoSymlink(t)
	t.Parallel()

	root := t.TempDir()
	sub := filepath.Join(root, "a")
	if err := os.MkdirAll(sub, 0750); err != nil {
		t.Fatal(err)
	}

	if err := os.Symlink(root, filepath.Join(sub, "loop")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	if _, ok := Locate(root, "absent.json", 50); ok {
		t.Error("Locate() found a file that does not exist")
	}

	want := filepath.Join(sub, "deep", "plugin_options.json")
	touch(t, want)

	got, ok := Locate(root, "plugin_options.json", 50)
	if !ok {
		t.Fatal("Locate() did not find file next to a symlink loop")
	}

	if got != want {
		t.Errorf("Locate() = %q, want %q", got, want)
	}
}

func TestLocate_LinkedFileDoesNotHideTarget(t *testing.T) {
	testutil.SkipIfNoSymlink(t)
	t.Parallel()

	root := t.TempDir()
	want := filepath.Join(root, "sub", "plugin_options.json")
	touch(t, want)

	// Sorts ahead of sub/ and resolves to the same file under another name.
	if err := os.Symlink(want, filepath.Join(root, "a-link.json")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	got, ok := Locate(root, "plugin_options.json", DefaultMaxDepth)
	if !ok {
		t.Fatal("Locate() did not find the link target")
	}

	if got != want {
		t.Errorf("Locate() = %q, want %q", got, want)
	}
}

func TestLocateAny_NameOrderBeatsRootOrder(t *testing.T) {
	t.Parallel()

	project := t.TempDir()
	plugin := t.TempDir()
	touch(t, filepath.Join(project, "www", "plugin_options.js"))
	touch(t, filepath.Join(plugin, "plugin_options.json"))

	roots := []Root{
		{Dir: project, MaxDepth: DefaultMaxDepth},
		{Dir: "", MaxDepth: 1},
		{Dir: plugin, MaxDepth: PluginMaxDepth},
	}

	m, ok := LocateAny(roots, "plugin_options.json", "plugin_options.js")
	if !ok {
		t.Fatal("LocateAny() found nothing")
	}

	if m.Name != "plugin_options.json" || m.Root.Dir != plugin {
		t.Errorf("LocateAny() = %+v, want plugin_options.json from plugin root", m)
	}
}

func TestLocateAny_ProjectRootFirst(t *testing.T) {
	t.Parallel()

	project := t.TempDir()
	plugin := t.TempDir()
	want := filepath.Join(project, "plugin_options.json")
	touch(t, want)
	touch(t, filepath.Join(plugin, "plugin_options.json"))

	m, ok := LocateAny([]Root{{Dir: project, MaxDepth: 6}, {Dir: plugin, MaxDepth: 3}}, "plugin_options.json")
	if !ok || m.Path != want {
		t.Errorf("LocateAny() = %+v, %v; want %q", m, ok, want)
	}
}
