package chat

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	activityStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	thinkingStyle  = lipgloss.NewStyle().Faint(true).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle    = lipgloss.NewStyle().Faint(true)
)

func (m *model) View() string {
	status := ""
	if m.busy {
		status = m.spin.View() + statusStyle.Render(" working...")
	}
	return m.viewport.View() + "\n" + status + "\n" + m.input.View()
}
