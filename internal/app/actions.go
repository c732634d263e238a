package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/session"
	"github.com/nhle/toolroom/internal/workflow"
)

// writeTimeout bounds a single decision write made from the UI.
const writeTimeout = 10 * time.Second

// refusalResultMsg is sent after a refusal write completes.
type refusalResultMsg struct {
	orderID string
	record  model.LogRecord
	err     error
}

// transferResultMsg is sent after a transfer write completes.
type transferResultMsg struct {
	draft  workflow.TransferDraft
	record model.LogRecord
	err    error
}

// signedOutMsg is sent once the session has been torn down.
type signedOutMsg struct{ err error }

// rejectOrder records the refusal off the UI loop. Refresh results that
// arrive meanwhile are held back until refusalResultMsg is handled.
func rejectOrder(s *session.Session, orderID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		rec, err := s.Reject(ctx)
		return refusalResultMsg{orderID: orderID, record: rec, err: err}
	}
}

// submitTransfer records the hand-over prepared from draft.
func submitTransfer(s *session.Session, draft workflow.TransferDraft, notes string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		rec, err := s.SubmitTransfer(ctx, draft, notes)
		return transferResultMsg{draft: draft, record: rec, err: err}
	}
}

// signOut wipes the viewer's device state. The ledger is reset when
// signedOutMsg reaches the UI loop.
func signOut(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		return signedOutMsg{err: s.Revoke(ctx)}
	}
}
