package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette.
var (
	colorSuccess   = lipgloss.Color("#10B981") // Green (installed)
	colorDanger    = lipgloss.Color("#EF4444") // Red (errors)
	colorMuted     = lipgloss.Color("#6B7280") // Gray
	colorSecondary = lipgloss.Color("#A78BFA") // Light purple
)

// Styles shared by the install progress program.
var (
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	installedStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorDanger)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)
)
