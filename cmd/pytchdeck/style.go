package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/clintjohnsn/pytchdeck/internal/pipeline"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	reusedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	labelStyle   = lipgloss.NewStyle().Width(18).Foreground(lipgloss.Color("245"))
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
	headerStyle  = cellStyle.Bold(true).Underline(true)
	linkStyle    = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("39"))
	statusMarker = map[string]string{
		pipeline.StatusStarted:   "…",
		pipeline.StatusCompleted: "✓",
		pipeline.StatusReused:    "↺",
		pipeline.StatusFailed:    "✗",
		pipeline.StatusRejected:  "✗",
		pipeline.StatusDone:      "★",
	}
)

// progressPrinter renders engine progress events as one line each.
func progressPrinter(w io.Writer) pipeline.ProgressCallback {
	return func(ev pipeline.ProgressEvent) {
		if ev.Status == pipeline.StatusStarted {
			return
		}
		line := fmt.Sprintf("%s %s", statusMarker[ev.Status], stepLabel(ev))
		switch ev.Status {
		case pipeline.StatusCompleted, pipeline.StatusDone:
			line = okStyle.Render(line)
		case pipeline.StatusReused:
			line = reusedStyle.Render(line + " (checkpoint)")
		case pipeline.StatusFailed, pipeline.StatusRejected:
			line = failStyle.Render(line)
			if ev.Message != "" {
				line += " " + ev.Message
			}
		}
		if ev.DurationMs > 0 {
			line += reusedStyle.Render(fmt.Sprintf(" %dms", ev.DurationMs))
		}
		fmt.Fprintln(w, line)
	}
}

func stepLabel(ev pipeline.ProgressEvent) string {
	if ev.Step == "" {
		return string(ev.Phase)
	}
	return ev.Step
}

// table renders rows as aligned columns with a styled header.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	render := func(style lipgloss.Style, cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = style.Width(widths[i] + 2).Render(cell)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}

	lines := []string{render(headerStyle, header)}
	for _, row := range rows {
		lines = append(lines, render(cellStyle, row))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
