package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolroom/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps overlay panels such as help and the command palette.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for rows of the notification panel.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the focused row.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// UnreadMarkStyle colors the dot in front of unread rows.
var UnreadMarkStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorOrange)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ModalStyle frames the blocking order dialog.
var ModalStyle = lipgloss.NewStyle().
	Padding(1, 3).
	Border(lipgloss.ThickBorder()).
	BorderForeground(ColorOrange)

// ErrorStyle renders inline errors.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// ToastStyle returns the framed style for a toast of the given severity.
func ToastStyle(sev model.Severity) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(44).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(SeverityColor(sev))
}

// SeverityColor maps a notification severity to its accent color.
func SeverityColor(sev model.Severity) lipgloss.AdaptiveColor {
	switch sev {
	case model.SeverityWarning:
		return ColorYellow
	case model.SeveritySuccess:
		return ColorGreen
	case model.SeverityInfo:
		return ColorBlue
	default:
		return ColorGray
	}
}

// SeverityStyle returns a bold color-coded style for notification titles.
func SeverityStyle(sev model.Severity) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(SeverityColor(sev))
}

// DirectionLabel returns the short arrow shown next to a notification.
func DirectionLabel(d model.Direction) string {
	switch d {
	case model.DirectionIncoming:
		return "←"
	case model.DirectionOutgoing:
		return "→"
	default:
		return "·"
	}
}
