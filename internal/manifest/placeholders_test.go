package manifest

import (
	"bytes"
	"os"
	"testing"
)

func TestSubstitutePlaceholders(t *testing.T) {
	t.Parallel()

	values := map[string]string{
		"UL_HOST":   "example.com",
		"UL_SCHEME": "https",
		"UL_EVENT":  "ul_deeplink",
	}

	tests := []struct {
		name  string
		doc   string
		want  string
		count int
	}{
		{
			name:  "all placeholders",
			doc:   `<host name="$UL_HOST" scheme="$UL_SCHEME" event="$UL_EVENT"/>`,
			want:  `<host name="example.com" scheme="https" event="ul_deeplink"/>`,
			count: 3,
		},
		{
			name:  "repeated",
			doc:   `$UL_HOST $UL_HOST`,
			want:  `example.com example.com`,
			count: 2,
		},
		{
			name:  "none",
			doc:   `<plugin id="x"/>`,
			want:  `<plugin id="x"/>`,
			count: 0,
		},
		{
			name:  "unknown name untouched",
			doc:   `$UL_OTHER $HOME`,
			want:  `$UL_OTHER $HOME`,
			count: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := SubstitutePlaceholders([]byte(tt.doc), values)
			if string(got) != tt.want || n != tt.count {
				t.Errorf("SubstitutePlaceholders() = (%q, %d), want (%q, %d)", got, n, tt.want, tt.count)
			}
		})
	}
}

func TestSubstitutePlaceholders_LongestNameWins(t *testing.T) {
	t.Parallel()

	got, n := SubstitutePlaceholders([]byte("$HOST $HOSTNAME"), map[string]string{
		"HOST":     "h",
		"HOSTNAME": "full",
	})

	if string(got) != "h full" || n != 2 {
		t.Errorf("SubstitutePlaceholders() = (%q, %d), want (%q, 2)", got, n, "h full")
	}
}

func TestSubstitutePlaceholders_NoRescan(t *testing.T) {
	t.Parallel()

	got, _ := SubstitutePlaceholders([]byte("$A"), map[string]string{"A": "$B", "B": "x"})
	if string(got) != "$B" {
		t.Errorf("SubstitutePlaceholders() = %q, want %q", got, "$B")
	}
}

func TestPatchPlaceholders(t *testing.T) {
	t.Parallel()

	original := []byte(`<plugin><config-file><string>applinks:$UL_HOST</string></config-file></plugin>` + "\n")
	path := writeManifest(t, original)
	values := map[string]string{"UL_HOST": "example.com"}

	first, err := PatchPlaceholders(path, values, PatchOptions{})
	if err != nil {
		t.Fatalf("PatchPlaceholders() error = %v", err)
	}

	if first.Action != ActionSubstituted || !first.BackupCreated {
		t.Errorf("first run = (%q, backup %v), want (%q, true)", first.Action, first.BackupCreated, ActionSubstituted)
	}

	second, err := PatchPlaceholders(path, values, PatchOptions{})
	if err != nil {
		t.Fatalf("PatchPlaceholders() error = %v", err)
	}

	if second.Changed || second.Action != ActionUnchanged {
		t.Errorf("second run = (changed %v, %q), want (false, %q)", second.Changed, second.Action, ActionUnchanged)
	}

	backup, err := os.ReadFile(path + DefaultBackupSuffix)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}

	if !bytes.Equal(backup, original) {
		t.Errorf("backup = %q, want %q", backup, original)
	}
}
