package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme names the colors a [Palette] is built from. Each entry is a light/dark pair.
type Theme struct {
	Accent lipgloss.AdaptiveColor
	OK     lipgloss.AdaptiveColor
	Err    lipgloss.AdaptiveColor
	Warn   lipgloss.AdaptiveColor
	Muted  lipgloss.AdaptiveColor
}

// DefaultTheme uses Spotify green as the accent.
var DefaultTheme = Theme{
	Accent: lipgloss.AdaptiveColor{Light: "#148A3D", Dark: "#1DB954"},
	OK:     lipgloss.AdaptiveColor{Light: "#0B7A55", Dark: "#04B575"},
	Err:    lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF4F4F"},
	Warn:   lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFA500"},
	Muted:  lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#626262"},
}

var styles = NewPalette(DefaultTheme)

// Palette holds the rendered styles used across views.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	label lipgloss.Style
	box   lipgloss.Style
}

func NewPalette(t Theme) *Palette {
	fg := func(c lipgloss.AdaptiveColor) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return &Palette{
		title: fg(t.Accent).Bold(true).MarginBottom(1),
		ok:    fg(t.OK).Bold(true),
		err:   fg(t.Err).Bold(true),
		warn:  fg(t.Warn),
		help:  fg(t.Muted).Italic(true),
		label: fg(t.Muted).Width(10),
		box:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Accent).Padding(0, 1),
	}
}
