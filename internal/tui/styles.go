package tui

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	LabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	VisibleText = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	HelpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	ErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5733"))
	BoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("69")).Padding(0, 1)
)
