// Package modal is the blocking order dialog. While it is open no other
// view receives keys.
package modal

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolroom/internal/classify"
	"github.com/nhle/toolroom/internal/keys"
	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/theme"
)

// ConfirmMsg asks the app to confirm the shown order.
type ConfirmMsg struct{ OrderID string }

// RejectMsg asks the app to refuse the shown order.
type RejectMsg struct{ OrderID string }

// Model renders one order awaiting a decision.
type Model struct {
	keys    *keys.KeyMap
	order   model.Notification
	open    bool
	busy    bool
	err     error
	spinner spinner.Model
	width   int
}

// New creates a closed modal.
func New(k *keys.KeyMap, width int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{keys: k, spinner: sp, width: width}
}

// Show opens the modal for order.
func (m *Model) Show(order model.Notification) {
	m.order = order
	m.open = true
	m.busy = false
	m.err = nil
}

// Hide closes the modal.
func (m *Model) Hide() {
	m.open = false
	m.busy = false
	m.err = nil
}

// Open reports whether the modal is showing.
func (m Model) Open() bool {
	return m.open
}

// Busy reports whether a refusal is being recorded.
func (m Model) Busy() bool {
	return m.busy
}

// Fail keeps the modal open and shows err.
func (m *Model) Fail(err error) {
	m.busy = false
	m.err = err
}

// Update handles the decision keys. Keys are ignored while busy.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.open {
		return m, nil
	}

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		id := m.order.ID
		switch {
		case key.Matches(msg, m.keys.Confirm):
			return m, func() tea.Msg { return ConfirmMsg{OrderID: id} }
		case key.Matches(msg, m.keys.Reject):
			m.busy = true
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return RejectMsg{OrderID: id} })
		}
	}
	return m, nil
}

// View renders the dialog.
func (m Model) View() string {
	if !m.open {
		return ""
	}
	rec := m.order.Record
	requester := classify.BranchName(rec.ToBranch, rec.ToBranchName)
	item := classify.ItemName(rec)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorOrange).
		Render(m.order.Title)

	body := fmt.Sprintf("%s needs %s from your branch.\nHand it over now?", requester, item)

	actions := theme.HelpStyle.Render("[y] hand over    [n] refuse: needed on site")
	if m.busy {
		actions = m.spinner.View() + " recording refusal…"
	}

	parts := []string{title, "", body, "", actions}
	if m.err != nil {
		parts = append(parts, "", theme.ErrorStyle.Render("Could not record refusal: "+m.err.Error()))
	}

	width := m.width / 2
	if width < 40 {
		width = 40
	}
	return theme.ModalStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetWidth updates the dialog width.
func (m *Model) SetWidth(width int) {
	m.width = width
}
