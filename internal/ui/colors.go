package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Pinterest brand red for titles; the rest follow the terminal's usual status colors.
const (
	colorBrand   = "#E60023"
	colorSuccess = "#04B575"
	colorFailure = "#FF0000"
	colorPartial = "#FFA500"
	colorMuted   = "#626262"
)

var styles = newPalette()

// Palette holds the styles the account and board views render with.
type Palette struct {
	title lipgloss.Style // view headings
	ok    lipgloss.Style // completed refreshes
	err   lipgloss.Style // store and refresh errors
	warn  lipgloss.Style // refreshes that finished with failures
	help  lipgloss.Style // loading and hint lines
	muted lipgloss.Style // secondary details such as board counts
}

func newPalette() *Palette {
	return &Palette{
		title: bold(colorBrand).MarginBottom(1),
		ok:    bold(colorSuccess),
		err:   bold(colorFailure),
		warn:  fg(colorPartial),
		help:  fg(colorMuted).Italic(true),
		muted: fg(colorMuted),
	}
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
