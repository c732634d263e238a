// Package workflow drives the operator's decision on a blocking order:
// confirm and hand the item over, or refuse and record why.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/toolroom/internal/classify"
	"github.com/nhle/toolroom/internal/model"
)

// State is a step of the transfer decision.
type State int

const (
	StateDetected State = iota
	StateAwaitingDecision
	StateConfirmed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateDetected:
		return "detected"
	case StateAwaitingDecision:
		return "awaiting decision"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when an action does not apply to the
// current state.
var ErrInvalidTransition = errors.New("invalid workflow transition")

// Inserter appends records to the change log.
type Inserter interface {
	Insert(ctx context.Context, rec model.NewLogRecord) (model.LogRecord, error)
}

// ActiveClearer releases the reconciler's blocking slot.
type ActiveClearer interface {
	ClearActive()
}

// TransferDraft pre-fills the transfer form after a confirmation.
type TransferDraft struct {
	OrderID      string
	ItemID       string
	ItemName     string
	FromBranch   model.BranchID
	ToBranch     model.BranchID
	ToBranchName string
}

// Options configures a Workflow.
type Options struct {
	OperatorID string
	Logger     *zap.Logger
}

// Workflow holds at most one order at a time. Like the reconciler it is
// driven from the UI event loop only.
type Workflow struct {
	source     Inserter
	clearer    ActiveClearer
	operatorID string
	logger     *zap.Logger

	state   State
	order   model.Notification
	lastErr error
}

// New creates a Workflow in StateDetected with no order.
func New(source Inserter, clearer ActiveClearer, opts Options) *Workflow {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		source:     source,
		clearer:    clearer,
		operatorID: opts.OperatorID,
		logger:     logger,
	}
}

// Begin puts a freshly raised order up for decision. It fails while
// another order is still awaiting one.
func (w *Workflow) Begin(order model.Notification) error {
	if w.state == StateAwaitingDecision {
		return fmt.Errorf("%w: order %s is still awaiting a decision", ErrInvalidTransition, w.order.ID)
	}
	w.state = StateAwaitingDecision
	w.order = order
	w.lastErr = nil
	return nil
}

// Confirm accepts the order. No record is written; the returned draft
// feeds the transfer form whose own submit records the TRANSFER.
func (w *Workflow) Confirm() (TransferDraft, error) {
	if w.state != StateAwaitingDecision {
		return TransferDraft{}, fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, w.state)
	}

	rec := w.order.Record
	draft := TransferDraft{
		OrderID:      w.order.ID,
		ItemID:       rec.Item.ID,
		ItemName:     classify.ItemName(rec),
		FromBranch:   rec.FromBranch,
		ToBranch:     rec.ToBranch,
		ToBranchName: classify.BranchName(rec.ToBranch, rec.ToBranchName),
	}

	w.state = StateConfirmed
	w.lastErr = nil
	w.clearer.ClearActive()
	w.logger.Info("order confirmed", zap.String("order_id", w.order.ID))
	return draft, nil
}

// Reject records a REFUSAL for the order. On failure the state stays
// AwaitingDecision and the error is kept for display; calling Reject
// again retries.
func (w *Workflow) Reject(ctx context.Context) (model.LogRecord, error) {
	if w.state != StateAwaitingDecision {
		return model.LogRecord{}, fmt.Errorf("%w: reject from %s", ErrInvalidTransition, w.state)
	}

	rec := w.order.Record
	stored, err := w.source.Insert(ctx, model.NewLogRecord{
		Action:     model.ActionRefusal,
		FromBranch: rec.FromBranch,
		ToBranch:   rec.ToBranch,
		ItemID:     rec.Item.ID,
		Notes:      RefusalNotes(rec),
		OperatorID: w.operatorID,
	})
	if err != nil {
		w.lastErr = err
		w.logger.Warn("refusal not recorded",
			zap.String("order_id", w.order.ID), zap.Error(err))
		return model.LogRecord{}, fmt.Errorf("rejecting order %s: %w", w.order.ID, err)
	}

	w.state = StateRejected
	w.lastErr = nil
	w.clearer.ClearActive()
	w.logger.Info("order rejected",
		zap.String("order_id", w.order.ID), zap.String("refusal_id", stored.ID))
	return stored, nil
}

// State returns the current state.
func (w *Workflow) State() State {
	return w.state
}

// Pending returns the order awaiting a decision, if any.
func (w *Workflow) Pending() (model.Notification, bool) {
	if w.state != StateAwaitingDecision {
		return model.Notification{}, false
	}
	return w.order, true
}

// Err returns the error of the last failed Reject, cleared on success.
func (w *Workflow) Err() error {
	return w.lastErr
}

// RefusalNotes composes the explanation recorded with a refusal.
func RefusalNotes(order model.LogRecord) string {
	owner := classify.BranchName(order.FromBranch, order.FromBranchName)
	return fmt.Sprintf("%s refused to hand over %s: resource required on site.", owner, classify.ItemName(order))
}
