package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// HeaderStatus formats the right side of the header: scope and unread badge.
func HeaderStatus(viewer model.ViewerContext, unread int) string {
	scope := string(viewer.EffectiveBranch())
	switch {
	case viewer.EffectiveBranch() == model.AllBranches:
		scope = "all branches"
	case scope == "":
		scope = "no branch"
	}
	if viewer.IsAdmin() {
		scope += " (admin)"
	}
	if unread == 0 {
		return scope
	}
	return fmt.Sprintf("%s  ● %d unread", scope, unread)
}

// RenderHeader renders the top header bar with a title and status.
func (l Layout) RenderHeader(title, status string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.Align(lipgloss.Right).Render(status)

	gap := l.Width - lipgloss.Width(titleRendered) - lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, titleRendered, filler, statusRendered)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// Overlay centers content in the content area, replacing what was there.
func (l Layout) Overlay(content string) string {
	return lipgloss.Place(l.Width, l.ContentHeight(), lipgloss.Center, lipgloss.Center, content)
}

// WithSidebar joins main with a right-aligned column such as the toast
// stack. An empty side leaves main untouched.
func (l Layout) WithSidebar(main, side string) string {
	if side == "" {
		return main
	}
	sideWidth := lipgloss.Width(side)
	mainWidth := l.Width - sideWidth - 1
	if mainWidth < 0 {
		mainWidth = 0
	}
	left := lipgloss.NewStyle().Width(mainWidth).MaxHeight(l.ContentHeight()).Render(main)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", side)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	body := lipgloss.NewStyle().Height(l.ContentHeight()).MaxHeight(l.ContentHeight()).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusBar)
}
