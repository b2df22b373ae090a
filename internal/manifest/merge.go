package manifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// Strategy selects how the fragment is spliced into the document.
type Strategy string

// Supported strategies.
const (
	// StrategyTree parses the document to locate the fragment and the root
	// element, then splices the serialized fragment in at those offsets.
	StrategyTree Strategy = "tree"
	// StrategyText edits the raw text: it replaces the first tagged span or
	// inserts before the root closing tag.
	StrategyText Strategy = "text"
)

// DefaultRootTag is the root element of a Cordova config.xml.
const DefaultRootTag = "widget"

// Action records what a merge did with the fragment.
type Action string

// Merge actions.
const (
	ActionAppended    Action = "appended"
	ActionReplaced    Action = "replaced"
	ActionSubstituted Action = "substituted"
	ActionUnchanged   Action = "unchanged"
)

// MergeOptions configures Merge. The zero value uses the tree strategy, the
// widget root and the default template.
type MergeOptions struct {
	Renderer *Renderer
	Strategy Strategy
	RootTag  string
}

// Result is the outcome of a merge.
type Result struct {
	Action  Action
	Data    []byte
	Changed bool
}

// fragmentSpan matches the first fragment element, self-closing or not.
var fragmentSpan = regexp.MustCompile(`(?s)<` + FragmentTag + `(?:\s[^>]*)?/>|<` + FragmentTag + `(?:\s[^>]*)?>.*?</` + FragmentTag + `>`)

// Merge returns doc with frag replaced or appended.
func Merge(doc []byte, frag Fragment, opts MergeOptions) (Result, error) {
	if opts.RootTag == "" {
		opts.RootTag = DefaultRootTag
	}

	var (
		res Result
		err error
	)

	switch opts.Strategy {
	case StrategyTree, "":
		res, err = mergeTree(doc, frag, opts)
	case StrategyText:
		res, err = mergeText(doc, frag, opts)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, opts.Strategy)
	}

	if err != nil {
		return Result{}, err
	}

	res.Changed = !bytes.Equal(doc, res.Data)
	if !res.Changed {
		res.Action = ActionUnchanged
	}

	return res, nil
}

// mergeTree parses the document to find where the fragment goes, then
// splices the serialized fragment into the original bytes. Everything outside
// the edited span is left as written.
func mergeTree(doc []byte, frag Fragment, opts MergeOptions) (Result, error) {
	l, err := locate(doc, FragmentTag)
	if err != nil {
		return Result{}, err
	}

	block, err := frag.render()
	if err != nil {
		return Result{}, fmt.Errorf("serializing fragment: %w", err)
	}

	if l.found {
		return Result{Data: splice(doc, l.frag.start, l.frag.end, block), Action: ActionReplaced}, nil
	}

	if l.rootTag != opts.RootTag {
		return Result{}, fmt.Errorf("%w: root element is <%s>, want <%s>", ErrMalformedDocument, l.rootTag, opts.RootTag)
	}

	if l.selfClosing {
		return Result{Data: expandRoot(doc, l, block), Action: ActionAppended}, nil
	}

	return Result{Data: insertBeforeClose(doc, l.rootClose, block), Action: ActionAppended}, nil
}

type span struct {
	start, end int
}

// layout holds the byte offsets of a document that a tree merge edits.
type layout struct {
	rootTag     string
	rootOpen    span // root start tag
	rootClose   int  // start of the root end tag
	selfClosing bool
	frag        span // first fragment element, valid when found
	found       bool
}

// locate decodes doc and records where its root element and the first
// element named tag sit.
func locate(doc []byte, tag string) (layout, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	var (
		l         layout
		seenRoot  bool
		depth     int
		fragDepth = -1
	)

	for {
		start := int(dec.InputOffset())

		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return layout{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		end := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 && !seenRoot {
				seenRoot = true
				l.rootTag = t.Name.Local
				l.rootOpen = span{start, end}
			}
			if !l.found && fragDepth < 0 && t.Name.Local == tag {
				fragDepth = depth
				l.frag.start = start
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == fragDepth {
				fragDepth = -1
				l.frag.end = end
				l.found = true
			}
			if depth == 0 && l.rootClose == 0 {
				l.rootClose = start
				l.selfClosing = !bytes.HasPrefix(doc[start:], []byte("</"))
			}
		}
	}

	if !seenRoot {
		return layout{}, fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}

	return l, nil
}

// expandRoot rewrites a self-closing root element as a start and end tag
// pair holding block.
func expandRoot(doc []byte, l layout, block string) []byte {
	open := doc[l.rootOpen.start:l.rootOpen.end]
	name := open[1:]
	if i := bytes.IndexAny(name, " \t\r\n/>"); i >= 0 {
		name = name[:i]
	}

	head := bytes.TrimRight(open[:len(open)-len("/>")], " \t\r\n")
	repl := string(head) + ">\n" + indent(1) + block + "\n</" + string(name) + ">"

	return splice(doc, l.rootOpen.start, l.rootOpen.end, repl)
}

// insertBeforeClose puts block on its own line, one level in, ahead of the
// root end tag at offset at.
func insertBeforeClose(doc []byte, at int, block string) []byte {
	insert := indent(1) + block + "\n"

	lineStart := bytes.LastIndexByte(doc[:at], '\n') + 1
	if len(bytes.TrimSpace(doc[lineStart:at])) == 0 {
		at = lineStart
	} else {
		insert = "\n" + insert
	}

	return splice(doc, at, at, insert)
}

func splice(doc []byte, start, end int, s string) []byte {
	out := make([]byte, 0, len(doc)-(end-start)+len(s))
	out = append(out, doc[:start]...)
	out = append(out, s...)

	return append(out, doc[end:]...)
}

func mergeText(doc []byte, frag Fragment, opts MergeOptions) (Result, error) {
	renderer := opts.Renderer
	if renderer == nil {
		var err error
		if renderer, err = NewRenderer(""); err != nil {
			return Result{}, err
		}
	}

	block, err := renderer.Render(frag)
	if err != nil {
		return Result{}, err
	}

	if loc := fragmentSpan.FindIndex(doc); loc != nil {
		return Result{Data: splice(doc, loc[0], loc[1], block), Action: ActionReplaced}, nil
	}

	if bytes.Contains(doc, []byte("<"+FragmentTag)) {
		return Result{}, fmt.Errorf("%w: unterminated <%s>", ErrMalformedDocument, FragmentTag)
	}

	closing := []byte("</" + opts.RootTag + ">")
	idx := bytes.LastIndex(doc, closing)
	if idx < 0 {
		return Result{}, fmt.Errorf("%w: no %s", ErrMalformedDocument, closing)
	}

	return Result{Data: insertBeforeClose(doc, idx, block), Action: ActionAppended}, nil
}
