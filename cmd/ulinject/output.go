package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/AntoineGS/ulinject/internal/injector"
	"github.com/AntoineGS/ulinject/internal/resolve"
	"github.com/AntoineGS/ulinject/internal/state"
)

var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	accentColor    = lipgloss.Color("#F59E0B") // Amber
	mutedColor     = lipgloss.Color("#6B7280") // Gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	tierStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	changedStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	skippedStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(primaryColor)).
		Headers(headers...).
		BorderHeader(true)
}

// printVars writes the resolved variables with the tier of each value.
func printVars(w io.Writer, vars resolve.Vars, src string) {
	if src == "" {
		src = "none"
	}
	fmt.Fprintf(w, "Options file: %s\n", src)

	values := map[string]string{
		resolve.VarHost:   vars.Host,
		resolve.VarScheme: vars.Scheme,
		resolve.VarEvent:  vars.Event,
		resolve.VarPaths:  strings.Join(vars.Paths, ", "),
	}

	t := newTable("Variable", "Value", "Source").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 2:
				return tierStyle
			default:
				return cellStyle
			}
		})

	for _, name := range resolve.Names {
		t.Row(name, values[name], vars.Tiers[name].String())
	}

	fmt.Fprintln(w, t.Render())

	for _, warn := range vars.Warnings {
		fmt.Fprintln(w, skippedStyle.Render("warning: "+warn.Error()))
	}
}

// printReport writes one line per target, and the pending diff of each
// changed target in dry-run mode.
func printReport(w io.Writer, r *injector.Report) {
	if r.Skipped != "" {
		fmt.Fprintln(w, skippedStyle.Render("Skipped: "+r.Skipped))
		return
	}

	for _, c := range r.Changes {
		switch {
		case c.Skipped != "":
			fmt.Fprintf(w, "%s %s %s\n", skippedStyle.Render("[skip]"), c.Path, mutedStyle.Render("("+c.Skipped+")"))
		case c.Changed:
			fmt.Fprintf(w, "%s %s %s\n", changedStyle.Render("["+c.Action+"]"), c.Path, mutedStyle.Render("("+c.Kind+")"))
		default:
			fmt.Fprintf(w, "[ok] %s %s\n", c.Path, mutedStyle.Render("(up to date)"))
		}

		if c.Diff != "" {
			fmt.Fprint(w, c.Diff)
		}
	}

	verb := "written"
	if r.DryRun {
		verb = "would be written"
	}
	fmt.Fprintf(w, "\n%d of %d documents %s\n", r.Written(), len(r.Changes), verb)
}

// printHistory writes recorded runs, newest first. Targets inside root are
// shown relative to it.
func printHistory(w io.Writer, root string, runs []state.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	t := newTable("When", "Target", "Action", "Host", "Digest").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0 || col == 4:
				return tierStyle
			default:
				return cellStyle
			}
		})

	for _, run := range runs {
		target := run.Target
		if rel, err := filepath.Rel(root, target); err == nil && !strings.HasPrefix(rel, "..") {
			target = filepath.ToSlash(rel)
		}

		digest := run.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}

		t.Row(humanize.Time(run.RanAt), target, run.Action, run.Host, digest)
	}

	fmt.Fprintln(w, t.Render())
}
