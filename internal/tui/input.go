package tui

import (
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
)

type inputModel struct {
	textarea textarea.Model
}

func newInputModel() inputModel {
	ta := textarea.New()
	ta.Placeholder = "Escribe un mensaje..."
	ta.Focus()
	ta.CharLimit = 500
	ta.SetWidth(60)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	return inputModel{textarea: ta}
}

func (m inputModel) Update(msg tea.Msg) (inputModel, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.textarea.SetWidth(max(20, ws.Width-4))
		return m, nil
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	return m.textarea.View()
}

func (m inputModel) Value() string {
	return m.textarea.Value()
}

func (m *inputModel) Reset() {
	m.textarea.Reset()
}
