// Package notifications renders the ledger's notification window.
package notifications

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/theme"
)

// Model is the notification panel.
type Model struct {
	list   list.Model
	width  int
	height int
	loaded bool
}

// New creates an empty panel.
func New(width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{list: l, width: width, height: height}
}

// SetNotifications replaces the rows, keeping the cursor on the same
// notification when it is still present.
func (m *Model) SetNotifications(ns []model.Notification) tea.Cmd {
	selected := ""
	if it, ok := m.list.SelectedItem().(Item); ok {
		selected = it.Notification.ID
	}

	items := make([]list.Item, len(ns))
	cursor := 0
	for i, n := range ns {
		items[i] = Item{Notification: n}
		if n.ID == selected {
			cursor = i
		}
	}
	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	m.loaded = true
	return cmd
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update delegates navigation to the list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the panel.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if !m.loaded {
		return style.Render("Loading activity…")
	}
	return style.Render("No activity for this branch yet.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
