package tui

import (
	"image/color"

	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	baseFg    = lipgloss.Color("#E6E6E6")
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	accentFg  = lipgloss.Color("#7C3AED")
	borderCol = lipgloss.Color("#243141")
	errorFg   = lipgloss.Color("#F87171")
	okFg      = lipgloss.Color("#34D399")

	// canvas background outside the image
	canvasBg = color.RGBA{0x0B, 0x0F, 0x14, 0xff}

	appStyle      = lipgloss.NewStyle().Foreground(baseFg)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderCol).Padding(0, 1)
	titleStyle    = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(baseDimFg)
	selectedStyle = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(errorFg).Bold(true)
	infoStyle     = lipgloss.NewStyle().Foreground(okFg)
	blockingStyle = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(errorFg).Padding(1, 3).Bold(true)
)
