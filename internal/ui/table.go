package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a new Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	// Nothing is focused in CLI output, so the selected row renders like any other.
	s.Selected = s.Cell

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string.
// This is for CLI output (not TUI), producing a simple formatted table.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := NewTable(columns, tableRows)
	return t.View()
}

// FitColumns sizes columns to their widest cell, capped at maxCell, then
// shrinks the widest columns until the table fits in total.
func FitColumns(titles []string, rows [][]string, maxCell, total int) []TableColumn {
	cols := make([]TableColumn, len(titles))
	for i, title := range titles {
		cols[i] = TableColumn{Title: title, Width: lipgloss.Width(title)}
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(cols); i++ {
			if w := lipgloss.Width(row[i]); w > cols[i].Width {
				cols[i].Width = w
			}
		}
	}
	for i := range cols {
		if maxCell > 0 && cols[i].Width > maxCell {
			cols[i].Width = maxCell
		}
	}

	if total <= 0 {
		return cols
	}
	// Each cell carries one space of padding on both sides.
	for tableWidth(cols) > total {
		widest := 0
		for i := range cols {
			if cols[i].Width > cols[widest].Width {
				widest = i
			}
		}
		if cols[widest].Width <= 4 {
			break
		}
		cols[widest].Width--
	}
	return cols
}

func tableWidth(cols []TableColumn) int {
	w := 0
	for _, c := range cols {
		w += c.Width + 2
	}
	return w
}

// RenderPlainRows renders rows as whitespace-separated lines, for piping.
func RenderPlainRows(rows [][]string) string {
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(strings.Join(row, "\t"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderKeyValues renders aligned "key  value" lines.
func RenderKeyValues(pairs [][2]string) string {
	keyStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorInfo)

	width := 0
	for _, p := range pairs {
		if w := lipgloss.Width(p[0]); w > width {
			width = w
		}
	}

	var sb strings.Builder
	for _, p := range pairs {
		sb.WriteString(keyStyle.Render(padRight(p[0], width)))
		sb.WriteString("  ")
		sb.WriteString(p[1])
		sb.WriteString("\n")
	}
	return sb.String()
}

// padRight pads a string to the specified width.
func padRight(s string, width int) string {
	// Account for ANSI codes when calculating visible length
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}
