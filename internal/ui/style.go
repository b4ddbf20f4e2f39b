package ui

import "github.com/charmbracelet/lipgloss"

var (
	cyan    = lipgloss.Color("#00E5FF")
	magenta = lipgloss.Color("#FF1B6B")
	yellow  = lipgloss.Color("#FFB500")
	green   = lipgloss.Color("#2AFFAA")
	red     = lipgloss.Color("#FF5555")
	muted   = lipgloss.Color("#6C7280")
	text    = lipgloss.Color("#ECEFF4")
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(cyan).Bold(true)

	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cyan).
			Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1)

	labelStyle   = lipgloss.NewStyle().Foreground(muted)
	valueStyle   = lipgloss.NewStyle().Foreground(text).Bold(true)
	goodStyle    = lipgloss.NewStyle().Foreground(green).Bold(true)
	badStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow).Bold(true)
	simStyle     = lipgloss.NewStyle().Foreground(magenta).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(muted)
	logTimeStyle = lipgloss.NewStyle().Foreground(muted)
)
