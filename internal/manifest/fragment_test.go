package manifest

import (
	"strings"
	"testing"
)

func TestRenderer_Default(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer("")
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	got, err := r.Render(Fragment{Host: "h", Scheme: "s", Event: "e", Paths: []string{"/a", "/b"}})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := strings.Join([]string{
		`<universal-links>`,
		`        <host name="h" scheme="s" event="e">`,
		`            <path url="/a"/>`,
		`            <path url="/b"/>`,
		`        </host>`,
		`    </universal-links>`,
	}, "\n")

	if got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderer_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"not a fragment", `<host name="{{ .Host }}"/>`},
		{"unterminated", `<universal-links>{{ .Host }}`},
		{"unknown field", `<universal-links>{{ .Nope }}</universal-links>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRenderer(tt.text)
			if err != nil {
				return
			}

			if _, err := r.Render(defaultFragment); err == nil {
				t.Errorf("Render() error = nil, want error")
			}
		})
	}
}

func TestNewRenderer_ParseError(t *testing.T) {
	t.Parallel()

	if _, err := NewRenderer(`<universal-links>{{ .Host `); err == nil {
		t.Error("NewRenderer() error = nil, want parse error")
	}
}

func TestXMLAttr(t *testing.T) {
	t.Parallel()

	if got := xmlAttr(`a<b>&"c"`); got != "a&lt;b&gt;&amp;&#34;c&#34;" {
		t.Errorf("xmlAttr() = %q", got)
	}
}
