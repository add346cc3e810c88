// Package ui provides terminal output styling for the budget CLI.
package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	ColorSuccess = lipgloss.Color("#2ECC71")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorAccent  = lipgloss.Color("#3498DB")
	ColorMuted   = lipgloss.Color("#7F8C8D")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Accent  lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorMuted),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Accent:  lipgloss.NewStyle().Foreground(ColorAccent),
}

// plain reports whether styled output should be suppressed: not a TTY, or
// NO_COLOR set.
func plain() bool {
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	return termenv.NewOutput(os.Stdout).Profile == termenv.Ascii
}

func render(style lipgloss.Style, format string, args ...any) string {
	text := fmt.Sprintf(format, args...)
	if plain() {
		return text
	}
	return style.Render(text)
}

// Pass formats a success line with a leading check mark.
func Pass(format string, args ...any) string {
	return render(Styles.Success, "✓ "+format, args...)
}

// Warn formats a warning line.
func Warn(format string, args ...any) string {
	return render(Styles.Warning, "⚠ "+format, args...)
}

// Fail formats an error line.
func Fail(format string, args ...any) string {
	return render(Styles.Error, "✗ "+format, args...)
}

// Accent highlights an identifier or value.
func Accent(format string, args ...any) string {
	return render(Styles.Accent, format, args...)
}

// Muted dims secondary detail.
func Muted(format string, args ...any) string {
	return render(Styles.Muted, format, args...)
}

// Title renders a section heading.
func Title(format string, args ...any) string {
	return render(Styles.Title, format, args...)
}
