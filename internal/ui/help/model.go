// Package help shows what each key does on the notification board and in
// the order dialog, plus the meaning of the panel markers.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolroom/internal/keys"
	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/theme"
)

// section is one titled group of bindings.
type section struct {
	title    string
	bindings []key.Binding
}

// Model is the help view.
type Model struct {
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a help view over k.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{keys: k, width: width, height: height}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) sections() []section {
	return []section{
		{"Activity board", []key.Binding{m.keys.Up, m.keys.Down, m.keys.MarkRead, m.keys.DismissToast, m.keys.Refresh}},
		{"Incoming order", []key.Binding{m.keys.Confirm, m.keys.Reject}},
		{"Application", []key.Binding{m.keys.Command, m.keys.Help, m.keys.Back, m.keys.Quit}},
	}
}

// View renders the key sections and the legend.
func (m Model) View() string {
	heading := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginTop(1)

	var b strings.Builder
	b.WriteString(heading.MarginTop(0).Render("Toolroom Help"))
	for _, s := range m.sections() {
		b.WriteString("\n" + heading.Render(s.title) + "\n")
		b.WriteString(renderBindings(s.bindings))
	}

	b.WriteString("\n" + heading.Render("Legend") + "\n")
	b.WriteString(theme.UnreadMarkStyle.Render("●") + "  not yet read\n")
	b.WriteString(theme.DirectionLabel(model.DirectionIncoming) + "  tool coming to your branch\n")
	b.WriteString(theme.DirectionLabel(model.DirectionOutgoing) + "  tool leaving your branch\n")

	b.WriteString("\n" + theme.HelpStyle.Render("Palette: refresh · read · branch <id|all|home> · signout · quit"))

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(b.String())
}

// renderBindings lays out one binding per line, keys left-aligned.
func renderBindings(bindings []key.Binding) string {
	keyStyle := lipgloss.NewStyle().Foreground(theme.ColorBlue).Bold(true)
	var lines []string
	for _, kb := range bindings {
		h := kb.Help()
		if h.Key == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s  %s", keyStyle.Width(10).Render(h.Key), h.Desc))
	}
	return strings.Join(lines, "\n")
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
