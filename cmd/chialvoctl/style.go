package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"chialvo/internal/simulation"
	"chialvo/pkg/chialvo"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("240"))
)

func heading(text string) string {
	return headingStyle.Render(text)
}

func field(label, value string) string {
	return "  " + labelStyle.Render(label) + valueStyle.Render(value)
}

func printRunSummary(w io.Writer, s chialvo.RunSummary, p simulation.Params) {
	lines := []string{
		heading("Run " + s.RunID),
		field("lattice", describeLattice(p)),
		field("steps", humanize.Comma(int64(s.Iterations))),
		field("samples", fmt.Sprintf("%s per node (%s phase)", humanize.Comma(int64(s.Samples)), s.SamplePhase)),
		field("spikes", fmt.Sprintf("%s (mean rate %.4g)", humanize.Comma(int64(s.TotalSpikes)), s.MeanRate)),
		field("artifacts", s.ArtifactsDir),
	}
	if s.FigurePath != "" {
		lines = append(lines, field("figure", s.FigurePath))
	}
	lines = append(lines, field("elapsed", roundElapsed(s.Elapsed).String()))
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

// table renders rows as left-aligned columns under a styled header.
func table(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = tableHeaderStyle.Render(pad(h, widths[i]))
	}
	fmt.Fprintln(w, strings.Join(cells, "  "))
	for _, row := range rows {
		for i := range cells {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = pad(cell, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
