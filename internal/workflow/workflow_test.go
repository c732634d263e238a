package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/toolroom/internal/classify"
	"github.com/nhle/toolroom/internal/eventsource"
	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/reconcile"
)

func seededSource(t *testing.T) (*eventsource.MemorySource, model.LogRecord) {
	t.Helper()
	src := eventsource.NewMemorySource()
	src.AddBranch(eventsource.Branch{ID: "1", Name: "Harbour"})
	src.AddBranch(eventsource.Branch{ID: "2", Name: "Quarry"})
	src.AddTool(eventsource.Tool{ID: "tool-drill", Name: "Drill", BranchID: "2"})

	rec, err := src.Insert(context.Background(), model.NewLogRecord{
		Action: model.ActionOrder, FromBranch: "2", ToBranch: "1", ItemID: "tool-drill", OperatorID: "u-1",
	})
	require.NoError(t, err)
	return src, rec
}

func raise(t *testing.T, src *eventsource.MemorySource) (*reconcile.Reconciler, model.Notification) {
	t.Helper()
	viewer := model.ViewerContext{UserID: "u-2", HomeBranch: "2", Role: model.RoleStaff}
	records, err := src.Recent(context.Background(), 50)
	require.NoError(t, err)

	r := reconcile.New(nil, reconcile.Options{Now: time.Now})
	out := r.Reconcile(context.Background(), classify.ClassifyBatch(records, viewer), viewer, true)
	require.NotNil(t, out.Raised)
	return r, *out.Raised
}

type failingInserter struct {
	err   error
	calls int
}

func (f *failingInserter) Insert(context.Context, model.NewLogRecord) (model.LogRecord, error) {
	f.calls++
	return model.LogRecord{}, f.err
}

func TestWorkflow_RejectRecordsRefusal(t *testing.T) {
	src, order := seededSource(t)
	r, raised := raise(t, src)

	w := New(src, r, Options{OperatorID: "u-2"})
	require.NoError(t, w.Begin(raised))
	assert.Equal(t, StateAwaitingDecision, w.State())

	refusal, err := w.Reject(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ActionRefusal, refusal.Action)
	assert.Equal(t, model.BranchID("2"), refusal.FromBranch)
	assert.Equal(t, model.BranchID("1"), refusal.ToBranch)
	assert.Equal(t, "Drill", refusal.Item.Name)
	assert.Contains(t, refusal.Notes, "Drill")
	assert.Equal(t, "Quarry refused to hand over Drill: resource required on site.", refusal.Notes)
	assert.Equal(t, "u-2", refusal.OperatorID)

	assert.Equal(t, StateRejected, w.State())
	_, active := r.Active()
	assert.False(t, active)
	assert.True(t, r.Handled().Has(order.ID))
}

func TestWorkflow_RejectedOrderNeverReturns(t *testing.T) {
	src, order := seededSource(t)
	r, raised := raise(t, src)
	viewer := model.ViewerContext{HomeBranch: "2", Role: model.RoleStaff}

	w := New(src, r, Options{})
	require.NoError(t, w.Begin(raised))
	_, err := w.Reject(context.Background())
	require.NoError(t, err)

	records, err := src.Recent(context.Background(), 50)
	require.NoError(t, err)
	out := r.Reconcile(context.Background(), classify.ClassifyBatch(records, viewer), viewer, false)
	assert.Nil(t, out.Raised)
	assert.True(t, r.Handled().Has(order.ID))
}

func TestWorkflow_RejectFailureKeepsDecisionOpen(t *testing.T) {
	_, raisedRec := seededSource(t)
	r := reconcile.New(nil, reconcile.Options{})
	ins := &failingInserter{err: &eventsource.WriteError{Action: model.ActionRefusal, Err: errors.New("timeout")}}

	w := New(ins, r, Options{})
	require.NoError(t, w.Begin(model.Notification{ID: raisedRec.ID, Record: raisedRec}))

	_, err := w.Reject(context.Background())
	require.Error(t, err)
	assert.True(t, eventsource.IsWriteError(err))
	assert.Equal(t, StateAwaitingDecision, w.State())
	assert.Error(t, w.Err())

	pending, ok := w.Pending()
	require.True(t, ok)
	assert.Equal(t, raisedRec.ID, pending.ID)

	ins.err = nil
	_, err = w.Reject(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ins.calls)
	assert.Equal(t, StateRejected, w.State())
	assert.NoError(t, w.Err())
}

func TestWorkflow_ConfirmWritesNothing(t *testing.T) {
	src, order := seededSource(t)
	r, raised := raise(t, src)

	w := New(src, r, Options{})
	require.NoError(t, w.Begin(raised))

	draft, err := w.Confirm()
	require.NoError(t, err)
	assert.Equal(t, TransferDraft{
		OrderID:      order.ID,
		ItemID:       "tool-drill",
		ItemName:     "Drill",
		FromBranch:   "2",
		ToBranch:     "1",
		ToBranchName: "Harbour",
	}, draft)
	assert.Equal(t, StateConfirmed, w.State())

	_, active := r.Active()
	assert.False(t, active)

	records, err := src.Recent(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestWorkflow_InvalidTransitions(t *testing.T) {
	w := New(&failingInserter{}, reconcile.New(nil, reconcile.Options{}), Options{})

	_, err := w.Confirm()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = w.Reject(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, w.Begin(model.Notification{ID: "a"}))
	assert.ErrorIs(t, w.Begin(model.Notification{ID: "b"}), ErrInvalidTransition)

	_, err = w.Confirm()
	require.NoError(t, err)
	_, err = w.Confirm()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// terminal states accept the next order
	assert.NoError(t, w.Begin(model.Notification{ID: "b"}))
}

func TestRefusalNotes_Placeholders(t *testing.T) {
	notes := RefusalNotes(model.LogRecord{FromBranch: "7"})
	assert.True(t, strings.HasPrefix(notes, "Branch 7 refused to hand over Unknown tool"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting decision", StateAwaitingDecision.String())
	assert.Equal(t, "state(9)", State(9).String())
}
