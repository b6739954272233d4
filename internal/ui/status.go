package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// RunStatusStyle returns the style used to render a run status.
func RunStatusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	case "failed", "lost":
		return lipgloss.NewStyle().Foreground(ColorError)
	case "terminated":
		return lipgloss.NewStyle().Foreground(ColorWarning)
	case "running":
		return lipgloss.NewStyle().Foreground(ColorInfo)
	default:
		return lipgloss.NewStyle().Foreground(ColorMuted)
	}
}

// RunStatusSymbol returns the symbol shown next to a run status.
func RunStatusSymbol(status string) string {
	switch status {
	case "completed":
		return SymbolSuccess
	case "failed", "lost":
		return SymbolFail
	case "terminated":
		return SymbolSkipped
	case "running":
		return SymbolProgress
	default:
		return SymbolPending
	}
}

// RenderRunStatus renders "<symbol> <status>" in the status color.
func RenderRunStatus(status string) string {
	return RunStatusStyle(status).Render(RunStatusSymbol(status) + " " + status)
}

// PrintSuccess writes a green check line.
func PrintSuccess(w io.Writer, format string, args ...any) {
	style := lipgloss.NewStyle().Foreground(ColorSuccess)
	fmt.Fprintln(w, style.Render(SymbolSuccess)+" "+fmt.Sprintf(format, args...))
}

// PrintWarning writes a yellow warning line.
func PrintWarning(w io.Writer, format string, args ...any) {
	style := lipgloss.NewStyle().Foreground(ColorWarning)
	fmt.Fprintln(w, style.Render("!")+" "+fmt.Sprintf(format, args...))
}

// PrintFailure writes a red cross line.
func PrintFailure(w io.Writer, format string, args ...any) {
	style := lipgloss.NewStyle().Foreground(ColorError)
	fmt.Fprintln(w, style.Render(SymbolFail)+" "+fmt.Sprintf(format, args...))
}

// Muted renders s in the muted color.
func Muted(s string) string {
	return lipgloss.NewStyle().Foreground(ColorMuted).Render(s)
}
