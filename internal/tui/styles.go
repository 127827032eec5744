package tui

import "github.com/charmbracelet/lipgloss"

const (
	accent = lipgloss.Color("12")
	muted  = lipgloss.Color("8")
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent)
	subtitleStyle = lipgloss.NewStyle().Foreground(muted).MarginBottom(1)
	helpStyle     = lipgloss.NewStyle().Foreground(muted).MarginTop(1)

	transcriptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)

// speakerStyles colors the label in front of each transcript line.
var speakerStyles = map[speaker]lipgloss.Style{
	fromUser:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
	fromBot:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
	fromSystem: lipgloss.NewStyle().Italic(true).Foreground(muted),
}
