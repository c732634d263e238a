// Package session ties the notification core to one signed-in viewer on
// this device. A Session is created at sign-in and disposed at sign-out;
// it is never reused for another identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/toolroom/internal/classify"
	"github.com/nhle/toolroom/internal/eventsource"
	"github.com/nhle/toolroom/internal/ledger"
	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/reconcile"
	"github.com/nhle/toolroom/internal/sound"
	"github.com/nhle/toolroom/internal/store"
	"github.com/nhle/toolroom/internal/workflow"
)

var (
	// ErrNotAdmin is returned when a staff viewer tries to switch branch.
	ErrNotAdmin = errors.New("only administrators can switch branch")

	// ErrClosed is returned by operations on a signed-out session.
	ErrClosed = errors.New("session closed")
)

// Options configures a Session.
type Options struct {
	Viewer model.ViewerContext
	Source eventsource.Source
	Store  store.Store
	Player sound.Player
	Logger *zap.Logger

	LedgerSize  int
	ToastLimit  int
	ToastMaxAge time.Duration
	Now         func() time.Time
}

// Update is what a single Apply produced for the views.
type Update struct {
	Raised     *model.Notification
	Toast      *model.Notification
	PersistErr error
}

// Session owns the per-viewer ledger, reconciler and workflow.
type Session struct {
	viewer model.ViewerContext
	source eventsource.Source
	store  store.Store
	logger *zap.Logger
	now    func() time.Time

	ledger     *ledger.Ledger
	reconciler *reconcile.Reconciler
	workflow   *workflow.Workflow

	sub    eventsource.Subscription
	closed bool
}

// Open restores the viewer's device state and builds the core.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Source == nil || opts.Store == nil {
		return nil, fmt.Errorf("opening session: source and store are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	// Unreadable device state is not fatal: the next flush overwrites it.
	handled, err := opts.Store.LoadHandledOrders(ctx)
	if err != nil {
		logger.Warn("handled orders unreadable, starting empty", zap.Error(err))
		handled = model.NewHandledOrders()
	}
	watermark, err := opts.Store.LoadWatermark(ctx)
	if err != nil {
		logger.Warn("read watermark unreadable, everything unread", zap.Error(err))
		watermark = time.Time{}
	}

	l := ledger.New(opts.LedgerSize, opts.ToastLimit)
	l.SetWatermark(watermark)

	viewer := opts.Viewer
	viewer.ReadWatermark = watermark

	r := reconcile.New(handled, reconcile.Options{
		Store:       opts.Store,
		Player:      opts.Player,
		Logger:      logger.Named("reconcile"),
		ToastMaxAge: opts.ToastMaxAge,
		Now:         now,
	})
	w := workflow.New(opts.Source, r, workflow.Options{
		OperatorID: viewer.UserID,
		Logger:     logger.Named("workflow"),
	})

	logger.Info("session opened",
		zap.String("user_id", viewer.UserID),
		zap.String("branch", string(viewer.EffectiveBranch())),
		zap.Int("handled_orders", handled.Len()))

	return &Session{
		viewer:     viewer,
		source:     opts.Source,
		store:      opts.Store,
		logger:     logger,
		now:        now,
		ledger:     l,
		reconciler: r,
		workflow:   w,
	}, nil
}

// Subscribe opens the push subscription for this session. onInsert runs
// on the event source's goroutine and should only trigger a refresh.
func (s *Session) Subscribe(ctx context.Context, onInsert func()) error {
	if s.closed {
		return ErrClosed
	}
	if s.sub != nil {
		return nil
	}
	sub, err := s.source.Subscribe(ctx, onInsert)
	if err != nil {
		s.logger.Warn("push subscription unavailable, polling only", zap.Error(err))
		return fmt.Errorf("subscribing to changes: %w", err)
	}
	s.sub = sub
	return nil
}

// Apply runs one refreshed newest-first window through the core.
func (s *Session) Apply(ctx context.Context, records []model.LogRecord, shouldNotify bool) Update {
	if s.closed {
		return Update{}
	}

	batch := classify.ClassifyBatch(records, s.viewer)
	s.ledger.ReplaceBatch(batch)

	out := s.reconciler.Reconcile(ctx, batch, s.viewer, shouldNotify)
	if out.Raised != nil {
		if err := s.workflow.Begin(*out.Raised); err != nil {
			s.logger.Error("workflow out of step with reconciler", zap.Error(err))
		}
	}
	if out.Toast != nil {
		s.ledger.PushToast(*out.Toast)
	}

	return Update{Raised: out.Raised, Toast: out.Toast, PersistErr: out.PersistErr}
}

// MarkAllRead moves the watermark to now and persists it.
func (s *Session) MarkAllRead(ctx context.Context) error {
	s.ledger.MarkAllRead(s.now())
	s.viewer.ReadWatermark = s.ledger.Watermark()
	if err := s.store.SaveWatermark(ctx, s.ledger.Watermark()); err != nil {
		return fmt.Errorf("saving read watermark: %w", err)
	}
	return nil
}

// SetSimulatedBranch scopes an administrator to branch, "all" or, when
// empty, back to their home branch. The next Apply uses the new scope.
func (s *Session) SetSimulatedBranch(branch model.BranchID) error {
	if !s.viewer.IsAdmin() {
		return ErrNotAdmin
	}
	s.viewer.SimulatedBranch = model.BranchID(strings.TrimSpace(string(branch)))
	s.logger.Info("branch scope changed", zap.String("branch", string(s.viewer.EffectiveBranch())))
	return nil
}

// Confirm accepts the pending order.
func (s *Session) Confirm() (workflow.TransferDraft, error) {
	return s.workflow.Confirm()
}

// Reject refuses the pending order.
func (s *Session) Reject(ctx context.Context) (model.LogRecord, error) {
	return s.workflow.Reject(ctx)
}

// SubmitTransfer records the physical hand-over prepared from draft.
func (s *Session) SubmitTransfer(ctx context.Context, draft workflow.TransferDraft, notes string) (model.LogRecord, error) {
	if s.closed {
		return model.LogRecord{}, ErrClosed
	}
	rec, err := s.source.Insert(ctx, model.NewLogRecord{
		Action:     model.ActionTransfer,
		FromBranch: draft.FromBranch,
		ToBranch:   draft.ToBranch,
		ItemID:     draft.ItemID,
		Notes:      strings.TrimSpace(notes),
		OperatorID: s.viewer.UserID,
	})
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("submitting transfer of %s: %w", draft.ItemName, err)
	}
	s.logger.Info("transfer submitted",
		zap.String("order_id", draft.OrderID), zap.String("log_id", rec.ID))
	return rec, nil
}

// DismissToast removes a toast whose display time ran out.
func (s *Session) DismissToast(id string) {
	s.ledger.DismissToast(id)
}

// Viewer returns the current viewer context.
func (s *Session) Viewer() model.ViewerContext {
	return s.viewer
}

// Notifications returns the ledger's batch, newest first.
func (s *Session) Notifications() []model.Notification {
	return s.ledger.Notifications()
}

// Toasts returns the showing toasts.
func (s *Session) Toasts() []model.Notification {
	return s.ledger.Toasts()
}

// UnreadCount returns the unread badge count.
func (s *Session) UnreadCount() int {
	return s.ledger.UnreadCount()
}

// Pending returns the order awaiting a decision, if any.
func (s *Session) Pending() (model.Notification, bool) {
	return s.workflow.Pending()
}

// DecisionErr returns the last failed decision's error.
func (s *Session) DecisionErr() error {
	return s.workflow.Err()
}

// Close tears down the push subscription but keeps device state, as on
// quitting the application.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.sub == nil {
		return nil
	}
	err := s.sub.Close()
	s.sub = nil
	if err != nil {
		return fmt.Errorf("closing subscription: %w", err)
	}
	return nil
}

// Revoke closes the session and wipes the viewer's device state. It does
// not touch the in-memory ledger, so it may run off the UI loop; call
// Reset on the UI loop once it returns.
func (s *Session) Revoke(ctx context.Context) error {
	closeErr := s.Close()
	if err := s.store.ClearDeviceState(ctx); err != nil {
		return fmt.Errorf("clearing device state: %w", err)
	}
	s.logger.Info("signed out", zap.String("user_id", s.viewer.UserID))
	return closeErr
}

// Reset empties the notification ledger and toasts.
func (s *Session) Reset() {
	s.ledger.Reset()
}

// SignOut revokes the session and resets the ledger in one call.
func (s *Session) SignOut(ctx context.Context) error {
	err := s.Revoke(ctx)
	s.Reset()
	return err
}
