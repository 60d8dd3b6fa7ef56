package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0F172A")).
			Background(lipgloss.Color("#E2E8F0")).Padding(0, 1)
	hintStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	buttonStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#000000")).Padding(0, 2)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	toastStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#334155")).Padding(0, 1)
	resultStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	focusedStyle = resultStyle.BorderForeground(lipgloss.Color("#7C3AED"))
)
