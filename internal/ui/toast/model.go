// Package toast renders the transient notification stack and schedules
// each toast's removal.
package toast

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/theme"
)

// DefaultTTL is how long a toast stays on screen.
const DefaultTTL = 5 * time.Second

// ExpireMsg is delivered when a toast's display time has elapsed.
type ExpireMsg struct {
	ID string
}

// Expire returns a command that fires ExpireMsg for id after ttl.
func Expire(id string, ttl time.Duration) tea.Cmd {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return ExpireMsg{ID: id}
	})
}

// View stacks toasts oldest on top. An empty stack renders nothing.
func View(toasts []model.Notification) string {
	if len(toasts) == 0 {
		return ""
	}
	rendered := make([]string, len(toasts))
	for i, t := range toasts {
		title := theme.SeverityStyle(t.Severity).Render(t.Title)
		rendered[i] = theme.ToastStyle(t.Severity).Render(title + "\n" + t.Message)
	}
	return lipgloss.JoinVertical(lipgloss.Right, rendered...)
}
