package platform

import (
	"slices"
	"testing"
)

func TestNewSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ids  []string
		want []string
	}{
		{"empty", nil, []string{}},
		{"single", []string{"ios"}, []string{"ios"}},
		{"normalizes case and space", []string{" IOS ", "Android"}, []string{"ios", "android"}},
		{"drops duplicates", []string{"ios", "android", "ios"}, []string{"ios", "android"}},
		{"drops empty", []string{"", " ", "browser"}, []string{"browser"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := NewSet(tt.ids...).List()
			if !slices.Equal(got, tt.want) {
				t.Errorf("NewSet(%v).List() = %v, want %v", tt.ids, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	s := Parse("ios, android,,")
	if got := s.String(); got != "ios,android" {
		t.Errorf("Parse().String() = %q, want %q", got, "ios,android")
	}

	if !Parse("").Empty() {
		t.Error("Parse(\"\") should be empty")
	}
}

func TestSet_WantsLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		set  Set
		want bool
	}{
		{"ios only", NewSet(IOS), true},
		{"android only", NewSet(Android), true},
		{"both", NewSet(Android, IOS), true},
		{"windows only", NewSet(Windows), false},
		{"browser and electron", NewSet(Browser, Electron), false},
		{"zero value", Set{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.set.WantsLinks(); got != tt.want {
				t.Errorf("WantsLinks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSet_HasIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := NewSet("ios")
	if !s.Has("IOS") {
		t.Error("Has(\"IOS\") = false, want true")
	}

	if s.Has("android") {
		t.Error("Has(\"android\") = true, want false")
	}
}

func TestSet_ListIsCopy(t *testing.T) {
	t.Parallel()

	s := NewSet("ios", "android")
	list := s.List()
	list[0] = "windows"

	if !s.Has("ios") {
		t.Error("mutating List() result changed the set")
	}
}
