// Package pretty renders arbor trees and diffs for terminals with Lipgloss.
package pretty

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

const defaultTermWidth = 100

// Styles contains all styled renderers for CLI output.
type Styles struct {
	// Tree outline
	NodeType lipgloss.Style
	Anon     lipgloss.Style
	Field    lipgloss.Style
	Range    lipgloss.Style
	Text     lipgloss.Style
	Error    lipgloss.Style

	// Diff styles
	DiffHeader lipgloss.Style
	DiffAdd    lipgloss.Style
	DiffRemove lipgloss.Style
	DiffChange lipgloss.Style
	DiffEqual  lipgloss.Style

	// Misc
	Dim  lipgloss.Style
	Bold lipgloss.Style
}

// NewStyles creates a new Styles with the given color mode.
func NewStyles(colorEnabled bool) *Styles {
	if !colorEnabled {
		return newNoColorStyles()
	}
	return newColorStyles()
}

func newColorStyles() *Styles {
	return &Styles{
		NodeType: lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		Anon:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Field:    lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		Range:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Text:     lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),

		DiffHeader: lipgloss.NewStyle().Bold(true),
		DiffAdd:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		DiffRemove: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		DiffChange: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		DiffEqual:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),

		Dim:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Bold: lipgloss.NewStyle().Bold(true),
	}
}

func newNoColorStyles() *Styles {
	plain := lipgloss.NewStyle()
	return &Styles{
		NodeType:   plain,
		Anon:       plain,
		Field:      plain,
		Range:      plain,
		Text:       plain,
		Error:      plain,
		DiffHeader: plain,
		DiffAdd:    plain,
		DiffRemove: plain,
		DiffChange: plain,
		DiffEqual:  plain,
		Dim:        plain,
		Bold:       plain,
	}
}

// IsColorEnabled determines if color should be enabled based on mode and writer.
// Mode values: "auto" (default), "always", "never".
// In auto mode, color is enabled only if the writer is a TTY and NO_COLOR is not set.
func IsColorEnabled(mode string, writer io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		if os.Getenv("NO_COLOR") != "" {
			return false
		}
		if f, ok := writer.(*os.File); ok {
			return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
		return false
	}
}

// TerminalWidth returns the width of the terminal behind writer, or a
// default when writer is not a terminal.
func TerminalWidth(writer io.Writer) int {
	if f, ok := writer.(interface{ Fd() uintptr }); ok {
		width, _, err := term.GetSize(int(f.Fd()))
		if err == nil && width > 0 {
			return width
		}
	}
	return defaultTermWidth
}
