// Package ui renders terminal output for the bittask command.
package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/DaveSongnata/BitTask/internal/types"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	priorityStyles = map[types.Priority]lipgloss.Style{
		types.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		types.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		types.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}
)

var colorEnabled = IsTerminal(os.Stdout) && os.Getenv("NO_COLOR") == ""

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// SetColor forces styling on or off.
func SetColor(enabled bool) {
	colorEnabled = enabled
}

// Width returns the terminal width of stdout, or 80 when unknown.
func Width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

func render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

func RenderAccent(s string) string { return render(accentStyle, s) }
func RenderPass(s string) string   { return render(passStyle, s) }
func RenderWarn(s string) string   { return render(warnStyle, s) }
func RenderFail(s string) string   { return render(failStyle, s) }
func RenderMuted(s string) string  { return render(mutedStyle, s) }
func RenderHeader(s string) string { return render(headerStyle, s) }

// RenderPriority colors a priority label by urgency.
func RenderPriority(p types.Priority) string {
	style, ok := priorityStyles[p]
	if !ok {
		return string(p)
	}
	return render(style, string(p))
}

// Checkbox renders a completion marker.
func Checkbox(done bool) string {
	if done {
		return RenderPass("[x]")
	}
	return "[ ]"
}

// Truncate shortens s to at most n runes, ending in "…" when cut.
func Truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
