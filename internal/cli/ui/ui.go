// Package ui holds the blogdata CLI styles, symbols, spinner and
// terminal detection.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// ANSI 4-bit colors; lipgloss degrades them for simpler terminals.
var (
	ColorGreen  = lipgloss.Color("2")
	ColorYellow = lipgloss.Color("3")
	ColorRed    = lipgloss.Color("1")
)

var (
	StyleBold    = lipgloss.NewStyle().Bold(true)
	StyleDim     = lipgloss.NewStyle().Faint(true)
	StyleGreen   = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow  = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed     = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBoldRed = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)

	// Status
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleError   = lipgloss.NewStyle().Foreground(ColorRed)

	StyleHint = lipgloss.NewStyle().Faint(true)
)

const (
	SymbolCheck   = "✓"
	SymbolCross   = "✗"
	SymbolWarning = "⚠"
	SymbolArrow   = "→"
)

// UseColor switches the styles on or off. The default renderer only looks
// at stdout, while most CLI output goes to stderr.
func UseColor(enabled bool) {
	if enabled {
		lipgloss.SetColorProfile(termenv.ANSI)
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}

// ColorEnabled returns whether stderr is a TTY that supports color.
// Respects NO_COLOR (https://no-color.org/).
func ColorEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// ColorEnabledFd returns whether the given fd supports color.
func ColorEnabledFd(fd uintptr) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
