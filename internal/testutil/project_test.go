package testutil

import (
	"testing"
)

func TestProject(t *testing.T) {
	t.Parallel()

	p := NewProject(t)
	p.WriteFile("config.xml", Manifest)
	p.WriteFile("nested/dir/plugin_options.json", `{"UL_HOST":"x"}`)
	p.AddXcodeProject("MyApp")

	if !p.Exists("config.xml") || !p.Exists("platforms/ios/MyApp.xcodeproj") {
		t.Error("Exists() = false for created paths")
	}

	if p.Exists("missing") {
		t.Error("Exists() = true for missing path")
	}

	if got := p.ReadFile("nested/dir/plugin_options.json"); got != `{"UL_HOST":"x"}` {
		t.Errorf("ReadFile() = %q", got)
	}

	snap := p.Snapshot()
	if len(snap) != 2 {
		t.Errorf("Snapshot() has %d files, want 2: %v", len(snap), snap)
	}

	if snap["config.xml"] != Manifest {
		t.Error("Snapshot() content mismatch for config.xml")
	}
}
