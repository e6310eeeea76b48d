package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// Model is the Bubble Tea model for the read-only session monitor.
type Model struct {
	client       *apiClient
	pollInterval time.Duration

	sessionTable table.Model
	spinner      spinner.Model
	loaded       bool
	sessionCount int
	err          error
	width        int
	height       int
}

// NewModel creates a monitor model polling the given engine base URL.
func NewModel(baseURL string, pollInterval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		client:       newAPIClient(baseURL),
		pollInterval: pollInterval,
		sessionTable: NewSessionTable(),
		spinner:      s,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchSessions(), m.tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sessionTable.SetWidth(msg.Width)
		m.sessionTable.SetHeight(msg.Height - 6)
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchSessions(), m.tick())

	case SessionsMsg:
		m.loaded = true
		m.err = nil
		m.sessionCount = len(msg.Sessions)
		m.sessionTable = UpdateTableRows(m.sessionTable, msg.Sessions)
		return m, nil

	case FetchErrMsg:
		m.loaded = true
		m.err = msg.Err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.sessionTable, cmd = m.sessionTable.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Engine Sessions"))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
	}

	switch {
	case !m.loaded:
		s.WriteString(m.spinner.View())
		s.WriteString(" Connecting to engine...\n")
	case m.sessionCount == 0:
		s.WriteString("No sessions.\n")
	default:
		s.WriteString(m.sessionTable.View())
	}

	s.WriteString("\n")
	s.WriteString(HelpStyle.Render(fmt.Sprintf("q: quit | polling %s every %s", m.client.baseURL, m.pollInterval)))

	return s.String()
}

// fetchSessions returns a command polling the engine once.
func (m Model) fetchSessions() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.pollInterval)
		defer cancel()

		sessions, err := m.client.FetchSessions(ctx)
		if err != nil {
			return FetchErrMsg{Err: err}
		}

		return SessionsMsg{Sessions: sessions}
	}
}

// tick schedules the next poll.
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.pollInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
