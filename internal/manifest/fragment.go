// Package manifest merges the universal-links fragment into an XML manifest.
//
// The fragment is identified by its outer tag. A document that already holds
// one gets it replaced in place; otherwise the fragment is appended as the
// last child of the root element. Running the merge again with the same
// values produces the same bytes.
package manifest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"

	"github.com/beevik/etree"
	"github.com/go-sprout/sprout"
	"github.com/go-sprout/sprout/group/all"
)

// Element and attribute names of the fragment.
const (
	FragmentTag = "universal-links"
	hostTag     = "host"
	pathTag     = "path"
)

const indentUnit = "    "

// Fragment holds the values rendered into the universal-links block.
type Fragment struct {
	Host   string
	Scheme string
	Event  string
	Paths  []string
}

// element builds the fragment as an XML tree laid out one level below the
// root element.
func (f Fragment) element() *etree.Element {
	ul := etree.NewElement(FragmentTag)
	ul.AddChild(etree.NewText("\n" + indent(2)))

	host := ul.CreateElement(hostTag)
	host.CreateAttr("name", f.Host)
	host.CreateAttr("scheme", f.Scheme)
	host.CreateAttr("event", f.Event)

	for _, p := range f.Paths {
		host.AddChild(etree.NewText("\n" + indent(3)))
		host.CreateElement(pathTag).CreateAttr("url", p)
	}
	host.AddChild(etree.NewText("\n" + indent(2)))

	ul.AddChild(etree.NewText("\n" + indent(1)))

	return ul
}

// render serializes the fragment with the layout of DefaultTemplate.
func (f Fragment) render() (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(f.element())

	return doc.WriteToString()
}

func indent(level int) string {
	return strings.Repeat(indentUnit, level)
}

// DefaultTemplate renders the fragment for the text strategy. The first line
// carries no indentation; the merger adds it when appending.
const DefaultTemplate = `<universal-links>
        <host name="{{ xmlAttr .Host }}" scheme="{{ xmlAttr .Scheme }}" event="{{ xmlAttr .Event }}">
{{- range .Paths }}
            <path url="{{ xmlAttr . }}"/>
{{- end }}
        </host>
    </universal-links>`

// Renderer renders a Fragment through a text template. Templates may use the
// sprout function library plus xmlAttr.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses text, or DefaultTemplate when text is empty.
func NewRenderer(text string) (*Renderer, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultTemplate
	}

	funcs, err := templateFuncs()
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("fragment").Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment template: %w", err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the template. Trailing newlines are dropped so the output
// can be spliced between existing lines.
func (r *Renderer) Render(f Fragment) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, f); err != nil {
		return "", fmt.Errorf("rendering fragment: %w", err)
	}

	out := strings.TrimRight(buf.String(), "\r\n")
	trimmed := strings.TrimSpace(out)
	if !strings.HasPrefix(trimmed, "<"+FragmentTag) || !strings.HasSuffix(trimmed, "</"+FragmentTag+">") {
		return "", fmt.Errorf("rendering fragment: output must be a single <%s> element", FragmentTag)
	}

	return out, nil
}

func templateFuncs() (template.FuncMap, error) {
	handler := sprout.New()
	if err := handler.AddGroups(all.RegistryGroup()); err != nil {
		return nil, fmt.Errorf("loading template functions: %w", err)
	}

	funcs := template.FuncMap(handler.Build())
	funcs["xmlAttr"] = xmlAttr

	return funcs, nil
}

func xmlAttr(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s)) //nolint:errcheck // bytes.Buffer writes do not fail
	return buf.String()
}
