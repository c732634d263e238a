package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/theme"
)

// Kind identifies a palette command.
type Kind int

const (
	KindRefresh Kind = iota
	KindMarkRead
	KindBranch
	KindSignOut
	KindQuit
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Kind   Kind
	Branch model.BranchID
}

// ErrorMsg is emitted when the typed command cannot be parsed.
type ErrorMsg struct {
	Err error
}

// Parse turns palette input into a command. "branch home" and a bare
// "branch" reset an administrator to their home branch.
func Parse(input string) (CommandMsg, error) {
	fields := strings.Fields(strings.ToLower(input))
	if len(fields) == 0 {
		return CommandMsg{}, fmt.Errorf("empty command")
	}

	switch fields[0] {
	case "refresh", "r":
		return CommandMsg{Kind: KindRefresh}, nil
	case "read", "mark-read":
		return CommandMsg{Kind: KindMarkRead}, nil
	case "signout", "logout":
		return CommandMsg{Kind: KindSignOut}, nil
	case "quit", "q":
		return CommandMsg{Kind: KindQuit}, nil
	case "branch", "b":
		if len(fields) > 2 {
			return CommandMsg{}, fmt.Errorf("usage: branch <id|all|home>")
		}
		if len(fields) == 1 || fields[1] == "home" {
			return CommandMsg{Kind: KindBranch}, nil
		}
		// ids are case-sensitive; keep the original spelling
		raw := strings.Fields(input)[1]
		if fields[1] == string(model.AllBranches) {
			raw = string(model.AllBranches)
		}
		return CommandMsg{Kind: KindBranch, Branch: model.BranchID(raw)}, nil
	default:
		return CommandMsg{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh, read, branch <id>, signout, quit"
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text == "" {
			return m, nil
		}
		parsed, err := Parse(text)
		if err != nil {
			return m, func() tea.Msg { return ErrorMsg{Err: err} }
		}
		return m, func() tea.Msg { return parsed }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	content := lipgloss.JoinVertical(lipgloss.Left, title, input)

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
