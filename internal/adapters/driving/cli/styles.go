package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Palette used for command output. lipgloss drops the colours when the
// output is not a terminal.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourMuted   = lipgloss.Color("#6C7086")
	colourSuccess = lipgloss.Color("#A6E3A1")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	labelStyle   = lipgloss.NewStyle().Width(14).Foreground(colourMuted)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
)

// title renders a section heading.
func title(s string) string {
	return titleStyle.Render(s)
}

// row renders an aligned "label value" line.
func row(label string, value any) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label+":"), " ", fmt.Sprint(value))
}

// enabledText renders a boolean as a coloured yes/no.
func enabledText(b bool) string {
	if b {
		return successStyle.Render("yes")
	}
	return mutedStyle.Render("no")
}

// progressBar renders a fixed width bar for a share between 0 and 1.
func progressBar(share float64, width int) string {
	if share < 0 {
		share = 0
	}
	if share > 1 {
		share = 1
	}
	filled := int(share * float64(width))
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	style := warningStyle
	if share >= 1 {
		style = successStyle
	}
	return style.Render(bar)
}
