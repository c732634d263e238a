// Package transferform is the hand-over form opened after an order is
// confirmed. Submitting it records the TRANSFER.
package transferform

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolroom/internal/theme"
	"github.com/nhle/toolroom/internal/workflow"
)

// maxNotesLen bounds the free-text notes on a transfer.
const maxNotesLen = 200

// SubmitMsg is dispatched when the operator sends the transfer.
type SubmitMsg struct {
	Draft workflow.TransferDraft
	Notes string
}

// CancelMsg is dispatched when the operator backs out of the form.
type CancelMsg struct {
	Draft workflow.TransferDraft
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	notes string
	send  bool
}

// Model is the Bubble Tea model for the transfer form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	draft  workflow.TransferDraft
	err    error
	width  int
	height int
}

// New creates an idle transfer form.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start fills the form from a confirmed order.
func (m *Model) Start(draft workflow.TransferDraft) tea.Cmd {
	m.draft = draft
	m.err = nil
	m.fb.notes = ""
	m.fb.send = true
	m.form = m.buildForm()
	return m.form.Init()
}

// Draft returns the order being fulfilled.
func (m Model) Draft() workflow.TransferDraft {
	return m.draft
}

// SetError shows a failed submit and reopens the form for another try.
func (m *Model) SetError(err error) tea.Cmd {
	m.err = err
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the transfer form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.handleSubmit()
	case huh.StateAborted:
		draft := m.draft
		return m, func() tea.Msg { return CancelMsg{Draft: draft} }
	}

	return m, cmd
}

// View renders the transfer form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Hand Over Tool") + "\n" + m.form.View()
	if m.err != nil {
		content += "\n" + theme.ErrorStyle.Render(m.err.Error())
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title(Summary(m.draft)).
				Description("The tool is marked in transit until the destination confirms receipt."),
			huh.NewText().
				Title("Notes").
				Placeholder("Courier, crate number... (optional)").
				CharLimit(maxNotesLen).
				Value(&m.fb.notes).
				Validate(validateNotes),
			huh.NewConfirm().
				Title("Send now?").
				Affirmative("Send").
				Negative("Back").
				Value(&m.fb.send),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	draft := m.draft
	if !m.fb.send {
		return func() tea.Msg { return CancelMsg{Draft: draft} }
	}
	notes := strings.TrimSpace(m.fb.notes)
	return func() tea.Msg { return SubmitMsg{Draft: draft, Notes: notes} }
}

// Summary describes the hand-over in one line.
func Summary(d workflow.TransferDraft) string {
	return fmt.Sprintf("Send %s to %s", d.ItemName, d.ToBranchName)
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateNotes(s string) error {
	if utf8.RuneCountInString(s) > maxNotesLen {
		return fmt.Errorf("notes are limited to %d characters", maxNotesLen)
	}
	return nil
}
