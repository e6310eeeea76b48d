package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

// NewSessionTable creates the table displaying engine sessions.
func NewSessionTable() table.Model {
	columns := []table.Column{
		{Title: "Session", Width: 10},
		{Title: "Strategy", Width: 16},
		{Title: "Mode", Width: 10},
		{Title: "Status", Width: 10},
		{Title: "Progress", Width: 9},
		{Title: "Time", Width: 10},
		{Title: "Open", Width: 6},
		{Title: "Trades", Width: 7},
		{Title: "P&L", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)

	t.SetStyles(s)

	return t
}

// UpdateTableRows refreshes the table from the latest session list. Sessions
// come back in start order from the engine, which is kept.
func UpdateTableRows(t table.Model, sessions []types.Snapshot) table.Model {
	rows := make([]table.Row, 0, len(sessions))

	for _, s := range sessions {
		rows = append(rows, table.Row{
			ShortID(s.SessionID),
			s.StrategyID,
			string(s.Mode),
			string(s.Status),
			fmt.Sprintf("%.1f%%", s.Progress),
			s.CurrentTimestamp.Format("15:04:05"),
			fmt.Sprintf("%d", len(s.OpenPositions)),
			fmt.Sprintf("%d", s.Counters.ExitsClosed),
			FormatPnL(s.RealizedPnL),
		})
	}

	t.SetRows(rows)

	return t
}

// ShortID truncates a session UUID to its first group for display.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}

	return id[:8]
}
