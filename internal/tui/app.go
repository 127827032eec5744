// Package tui is an interactive console for talking to the booking
// assistant as if from a chat.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/christopherklint97/citabot/internal/booking"
)

// Handler answers chat messages.
type Handler interface {
	Handle(ctx context.Context, msg booking.Message) booking.Reply
}

type speaker int

const (
	fromUser speaker = iota
	fromBot
	fromSystem
)

type line struct {
	who  speaker
	text string
}

type replyMsg struct {
	reply booking.Reply
}

type App struct {
	handler  Handler
	userID   string
	botName  string
	input    inputModel
	spinner  spinner.Model
	viewport viewport.Model

	transcript []line
	waiting    bool
	timeout    time.Duration
}

func NewApp(handler Handler, userID, botName string) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot

	a := &App{
		handler:  handler,
		userID:   userID,
		botName:  botName,
		input:    newInputModel(),
		spinner:  s,
		viewport: viewport.New(60, 16),
		timeout:  60 * time.Second,
	}
	a.transcript = append(a.transcript, line{fromSystem, "Escribe \"agendar\" para reservar una cita o pregunta por horarios disponibles."})
	a.refresh()
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.input.textarea.Focus(), a.spinner.Tick)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.viewport.Width = msg.Width
		a.viewport.Height = max(4, msg.Height-8)
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		a.refresh()
		return a, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return a, tea.Quit
		case "enter":
			return a.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			return a, cmd
		}
	case replyMsg:
		return a.handleReply(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	if a.waiting {
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(a.botName) + "\n")
	b.WriteString(subtitleStyle.Render("Conversación como " + a.userID))
	b.WriteString("\n")
	b.WriteString(transcriptStyle.Render(a.viewport.View()))
	b.WriteString("\n")
	if a.waiting {
		b.WriteString(a.spinner.View() + " Pensando...")
	} else {
		b.WriteString(a.input.View())
	}
	b.WriteString("\n" + helpStyle.Render("Enter: enviar • PgUp/PgDn: desplazar • Esc: salir"))
	return b.String()
}

func (a *App) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(a.input.Value())
	if text == "" || a.waiting {
		return a, nil
	}
	a.input.Reset()
	a.transcript = append(a.transcript, line{fromUser, text})
	a.waiting = true
	a.refresh()
	return a, tea.Batch(a.spinner.Tick, a.send(text))
}

func (a *App) send(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		return replyMsg{reply: a.handler.Handle(ctx, booking.Message{UserID: a.userID, Text: text})}
	}
}

func (a *App) handleReply(msg replyMsg) (tea.Model, tea.Cmd) {
	a.waiting = false
	if !msg.reply.Handled {
		a.transcript = append(a.transcript, line{fromSystem, "(mensaje fuera del flujo de citas)"})
	}
	for _, m := range msg.reply.Messages {
		a.transcript = append(a.transcript, line{fromBot, m})
	}
	a.refresh()
	return a, nil
}

func (a *App) refresh() {
	a.viewport.SetContent(a.render())
	a.viewport.GotoBottom()
}

func (a *App) render() string {
	parts := make([]string, 0, len(a.transcript))
	for _, l := range a.transcript {
		style := speakerStyles[l.who]
		switch l.who {
		case fromUser:
			parts = append(parts, style.Render("Tú: ")+l.text)
		case fromBot:
			parts = append(parts, style.Render(a.botName+": ")+l.text)
		default:
			parts = append(parts, style.Render(l.text))
		}
	}
	return strings.Join(parts, "\n\n")
}

// Transcript returns the conversation as plain text.
func (a *App) Transcript() []string {
	out := make([]string, 0, len(a.transcript))
	for _, l := range a.transcript {
		switch l.who {
		case fromUser:
			out = append(out, "> "+l.text)
		case fromBot:
			out = append(out, l.text)
		}
	}
	return out
}

// Run starts the console and blocks until the user quits.
func Run(handler Handler, userID, botName string) error {
	_, err := tea.NewProgram(NewApp(handler, userID, botName), tea.WithAltScreen()).Run()
	if err != nil {
		return errors.Wrap(err, "running chat console")
	}
	return nil
}
