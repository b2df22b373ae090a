// Package textdiff renders line diffs for dry-run output.
package textdiff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ContextLines is the number of unchanged lines kept around each change.
const ContextLines = 3

// Unified returns a unified-style line diff between before and after, or ""
// when they are equal. Long runs of unchanged lines are collapsed.
func Unified(name string, before, after []byte) string {
	if bytes.Equal(before, after) {
		return ""
	}

	dmp := diffmatchpatch.New()

	a, b, lineArray := dmp.DiffLinesToChars(string(before), string(after))
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n", name)
	fmt.Fprintf(&sb, "+++ %s (patched)\n", name)

	for i, diff := range diffs {
		lines := splitLines(diff.Text)

		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			writeLines(&sb, "-", lines)
		case diffmatchpatch.DiffInsert:
			writeLines(&sb, "+", lines)
		case diffmatchpatch.DiffEqual:
			writeContext(&sb, lines, i == 0, i == len(diffs)-1)
		}
	}

	return sb.String()
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func writeLines(sb *strings.Builder, prefix string, lines []string) {
	for _, line := range lines {
		sb.WriteString(prefix + line + "\n")
	}
}

func writeContext(sb *strings.Builder, lines []string, first, last bool) {
	n := len(lines)

	switch {
	case first && n > ContextLines:
		writeSkipped(sb, n-ContextLines)
		writeLines(sb, " ", lines[n-ContextLines:])
	case last && n > ContextLines:
		writeLines(sb, " ", lines[:ContextLines])
		writeSkipped(sb, n-ContextLines)
	case !first && !last && n > 2*ContextLines:
		writeLines(sb, " ", lines[:ContextLines])
		writeSkipped(sb, n-2*ContextLines)
		writeLines(sb, " ", lines[n-ContextLines:])
	default:
		writeLines(sb, " ", lines)
	}
}

func writeSkipped(sb *strings.Builder, n int) {
	fmt.Fprintf(sb, "@@ %d unchanged lines @@\n", n)
}
