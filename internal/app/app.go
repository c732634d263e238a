package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/toolroom/internal/eventsource"
	"github.com/nhle/toolroom/internal/keys"
	"github.com/nhle/toolroom/internal/session"
	appsync "github.com/nhle/toolroom/internal/sync"
	"github.com/nhle/toolroom/internal/theme"
	"github.com/nhle/toolroom/internal/ui"
	"github.com/nhle/toolroom/internal/ui/command"
	helpview "github.com/nhle/toolroom/internal/ui/help"
	"github.com/nhle/toolroom/internal/ui/modal"
	"github.com/nhle/toolroom/internal/ui/notifications"
	"github.com/nhle/toolroom/internal/ui/toast"
	"github.com/nhle/toolroom/internal/ui/transferform"
)

// ViewState represents the current active view in the application.
// The order modal is not a view: it overlays whichever view is active.
type ViewState int

const (
	ViewMain ViewState = iota
	ViewHelp
	ViewCommand
	ViewTransfer
)

// Options configures the root model.
type Options struct {
	Session   *session.Session
	Refresher *appsync.Refresher
	Logger    *zap.Logger
	ToastTTL  time.Duration
	Title     string
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and the notification session.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	session      *session.Session
	refresher    *appsync.Refresher
	logger       *zap.Logger
	toastTTL     time.Duration
	title        string

	panel        notifications.Model
	modal        modal.Model
	transferForm transferform.Model
	helpView     helpview.Model
	commandView  command.Model

	// Refresh results are held in deferred while a refusal write is in
	// flight or the transfer form is open, so no order is raised over an
	// unfinished decision.
	rejecting  bool
	deferred   *appsync.RefreshResultMsg
	signingOut bool

	statusMessage string
	statusIsError bool
	ready         bool
}

// New creates the root application model.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.ToastTTL
	if ttl <= 0 {
		ttl = toast.DefaultTTL
	}
	title := opts.Title
	if title == "" {
		title = "Toolroom"
	}

	return Model{
		currentView:  ViewMain,
		keys:         k,
		session:      opts.Session,
		refresher:    opts.Refresher,
		logger:       logger,
		toastTTL:     ttl,
		title:        title,
		layout:       ui.NewLayout(80, 24),
		panel:        notifications.New(80, 22),
		modal:        modal.New(k, 80),
		transferForm: transferform.New(80, 22),
		helpView:     helpview.New(k, 80, 22),
		commandView:  command.New(80, 22),
	}
}

// Init starts the refresh loop. Its first fetch never toasts.
func (m Model) Init() tea.Cmd {
	return m.refresher.Start()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.Width
		contentHeight := m.layout.ContentHeight()
		m.panel.SetSize(contentWidth, contentHeight)
		m.modal.SetWidth(contentWidth)
		m.transferForm.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case appsync.RefreshResultMsg:
		return m.handleRefresh(msg)

	case modal.ConfirmMsg:
		draft, err := m.session.Confirm()
		if err != nil {
			m.logger.Warn("confirm rejected", zap.String("order_id", msg.OrderID), zap.Error(err))
			m.modal.Hide()
			return m, nil
		}
		m.modal.Hide()
		m.previousView = ViewMain
		m.currentView = ViewTransfer
		return m, m.transferForm.Start(draft)

	case modal.RejectMsg:
		m.rejecting = true
		return m, rejectOrder(m.session, msg.OrderID)

	case refusalResultMsg:
		m.rejecting = false
		if msg.err != nil {
			m.modal.Fail(msg.err)
		} else {
			m.modal.Hide()
			m.setStatus("Refusal recorded", false)
		}
		return m.releaseDeferred()

	case transferform.SubmitMsg:
		return m, submitTransfer(m.session, msg.Draft, msg.Notes)

	case transferform.CancelMsg:
		m.currentView = ViewMain
		m.setStatus(fmt.Sprintf("Hand-over of %s not recorded", msg.Draft.ItemName), false)
		return m.releaseDeferred()

	case transferResultMsg:
		if msg.err != nil {
			return m, m.transferForm.SetError(msg.err)
		}
		m.currentView = ViewMain
		m.setStatus(fmt.Sprintf("%s sent to %s", msg.draft.ItemName, msg.draft.ToBranchName), false)
		m.refresher.Trigger(false)
		return m.releaseDeferred()

	case toast.ExpireMsg:
		m.session.DismissToast(msg.ID)
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(msg)

	case command.ErrorMsg:
		m.currentView = m.previousView
		m.setStatus(msg.Err.Error(), true)
		return m, nil

	case signedOutMsg:
		m.session.Reset()
		if msg.err != nil {
			m.logger.Error("sign out incomplete", zap.Error(msg.err))
		}
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}

		// The modal takes every key while it is open.
		if m.modal.Open() {
			var cmd tea.Cmd
			m.modal, cmd = m.modal.Update(msg)
			return m, cmd
		}

		// Forms and the palette own their text input.
		if m.currentView == ViewTransfer {
			return m.updateActiveView(msg)
		}
		if m.currentView == ViewCommand && !key.Matches(msg, m.keys.Back) {
			return m.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.currentView == ViewMain {
				return m, m.quit()
			}

		case key.Matches(msg, m.keys.Back):
			if m.currentView != ViewMain {
				m.currentView = ViewMain
				return m, nil
			}

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Command):
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case key.Matches(msg, m.keys.Refresh):
			if m.currentView == ViewMain {
				m.refresher.Trigger(false)
				return m, nil
			}

		case key.Matches(msg, m.keys.MarkRead):
			if m.currentView == ViewMain {
				return m, m.markAllRead()
			}

		case key.Matches(msg, m.keys.DismissToast):
			if m.currentView == ViewMain {
				for _, t := range m.session.Toasts() {
					m.session.DismissToast(t.ID)
				}
				return m, nil
			}
		}
	}

	// Spinner ticks and other internal messages belong to the modal.
	if m.modal.Open() {
		var cmd tea.Cmd
		m.modal, cmd = m.modal.Update(msg)
		viewModel, viewCmd := m.updateActiveView(msg)
		return viewModel, tea.Batch(cmd, viewCmd)
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleRefresh runs one refreshed window through the session, or holds
// it while a decision is unfinished.
func (m Model) handleRefresh(msg appsync.RefreshResultMsg) (tea.Model, tea.Cmd) {
	wait := m.refresher.WaitForNextResult()
	if m.signingOut {
		return m, nil
	}
	if m.holding() {
		if m.deferred != nil {
			notify := msg.ShouldNotify || m.deferred.ShouldNotify
			if msg.Err != nil {
				msg = *m.deferred
			}
			msg.ShouldNotify = notify
		}
		m.deferred = &msg
		return m, wait
	}

	next, cmd := m.applyRefresh(msg)
	return next, tea.Batch(wait, cmd)
}

// applyRefresh feeds one result to the session. It does not re-arm the
// result listener.
func (m Model) applyRefresh(msg appsync.RefreshResultMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.setStatus(refreshErrorText(msg.Err), true)
		return m, nil
	}

	up := m.session.Apply(context.Background(), msg.Records, msg.ShouldNotify)
	cmds := []tea.Cmd{m.panel.SetNotifications(m.session.Notifications())}

	if up.Raised != nil {
		m.modal.Show(*up.Raised)
	}
	if up.Toast != nil {
		cmds = append(cmds, toast.Expire(up.Toast.ID, m.toastTTL))
	}
	if up.PersistErr != nil {
		m.setStatus("Could not save handled orders: "+up.PersistErr.Error(), true)
	} else if m.statusIsError {
		m.clearStatus()
	}
	return m, tea.Batch(cmds...)
}

// holding reports whether refresh results must wait.
func (m Model) holding() bool {
	return m.rejecting || m.currentView == ViewTransfer
}

// releaseDeferred applies the held refresh result, if any, once nothing
// holds it back any more.
func (m Model) releaseDeferred() (tea.Model, tea.Cmd) {
	if m.deferred == nil || m.holding() {
		return m, nil
	}
	held := *m.deferred
	m.deferred = nil
	return m.applyRefresh(held)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewMain:
		m.panel, cmd = m.panel.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewTransfer:
		m.transferForm, cmd = m.transferForm.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title, ui.HeaderStatus(m.session.Viewer(), m.session.UnreadCount()))

	content := m.renderContent()
	if m.modal.Open() {
		content = m.layout.Overlay(m.modal.View())
	}

	statusBar := m.layout.RenderStatusBar(m.statusLine())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewMain:
		return m.layout.WithSidebar(m.panel.View(), toast.View(m.session.Toasts()))
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewTransfer:
		return m.transferForm.View()
	default:
		return ""
	}
}

// statusLine returns the flash message when present, else key hints.
func (m Model) statusLine() string {
	if m.statusMessage != "" {
		if m.statusIsError {
			return theme.ErrorStyle.Render(m.statusMessage)
		}
		return m.statusMessage
	}
	return m.keyHints()
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.modal.Open() {
		return "y hand over | n refuse"
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewTransfer:
		return "enter submit | esc cancel"
	default:
		hints := "q quit | ? help | : command | m mark read | r refresh"
		if m.refresher.Status().State == appsync.RefreshRunning {
			hints = "refreshing… | " + hints
		}
		return hints
	}
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(c command.CommandMsg) tea.Cmd {
	switch c.Kind {
	case command.KindRefresh:
		m.refresher.Trigger(false)
		return nil
	case command.KindMarkRead:
		return m.markAllRead()
	case command.KindBranch:
		if err := m.session.SetSimulatedBranch(c.Branch); err != nil {
			m.setStatus(err.Error(), true)
			return nil
		}
		m.setStatus("Scope: "+ui.HeaderStatus(m.session.Viewer(), 0), false)
		m.refresher.Trigger(false)
		return nil
	case command.KindSignOut:
		m.signingOut = true
		m.modal.Hide()
		m.refresher.Stop()
		return signOut(m.session)
	case command.KindQuit:
		return m.quit()
	default:
		return nil
	}
}

func (m *Model) markAllRead() tea.Cmd {
	if err := m.session.MarkAllRead(context.Background()); err != nil {
		m.logger.Warn("read watermark not saved", zap.Error(err))
		m.setStatus(err.Error(), true)
		return nil
	}
	return m.panel.SetNotifications(m.session.Notifications())
}

func (m *Model) quit() tea.Cmd {
	m.refresher.Stop()
	return tea.Quit
}

func (m *Model) setStatus(text string, isError bool) {
	m.statusMessage = text
	m.statusIsError = isError
}

func (m *Model) clearStatus() {
	m.statusMessage = ""
	m.statusIsError = false
}

// refreshErrorText phrases a failed refresh for the status bar.
func refreshErrorText(err error) string {
	var fe *eventsource.FetchError
	if errors.As(err, &fe) {
		return "Activity feed unreachable, retrying: " + fe.Err.Error()
	}
	return "Refresh failed: " + err.Error()
}
