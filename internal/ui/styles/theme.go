// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme bundles the pre-built styles the views render with.
type Theme struct {
	width  int
	height int

	Title           lipgloss.Style
	Sidebar         lipgloss.Style
	SidebarTitle    lipgloss.Style
	SidebarEntry    lipgloss.Style
	SidebarSelected lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemText     lipgloss.Style
	Timestamp      lipgloss.Style

	StatusBar   lipgloss.Style
	StatusError lipgloss.Style
	InputBox    lipgloss.Style
	Help        lipgloss.Style
}

// NewTheme builds the default theme.
func NewTheme() *Theme {
	return &Theme{
		Title: lipgloss.NewStyle().Foreground(Cyan).Bold(true),

		Sidebar: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(Overlay),
		SidebarTitle:    lipgloss.NewStyle().Foreground(Purple).Bold(true),
		SidebarEntry:    lipgloss.NewStyle().Foreground(TextSecondary),
		SidebarSelected: lipgloss.NewStyle().Foreground(TextPrimary).Background(SelectionBg).Bold(true),

		UserLabel:      lipgloss.NewStyle().Foreground(UserBubbleFg).Bold(true),
		AssistantLabel: lipgloss.NewStyle().Foreground(AssistantBubbleFg).Bold(true),
		SystemText:     lipgloss.NewStyle().Foreground(SystemFg).Italic(true),
		Timestamp:      lipgloss.NewStyle().Foreground(TextMuted),

		StatusBar:   lipgloss.NewStyle().Foreground(TextSecondary),
		StatusError: lipgloss.NewStyle().Foreground(Rose).Bold(true),
		InputBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Overlay),
		Help: lipgloss.NewStyle().Foreground(TextMuted),
	}
}

// SetSize records the terminal dimensions for styles that depend on them.
func (t *Theme) SetSize(width, height int) {
	t.width = width
	t.height = height
}

// ApplyBackground forces the light or dark palette, or detects the terminal
// background for "auto".
func ApplyBackground(theme string) {
	switch theme {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	default:
		lipgloss.SetHasDarkBackground(termenv.HasDarkBackground())
	}
}
