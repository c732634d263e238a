package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/toolroom/internal/classify"
	"github.com/nhle/toolroom/internal/eventsource"
	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/store"
	"github.com/nhle/toolroom/tests/testutil"
)

func newSource(t *testing.T) *eventsource.MemorySource {
	t.Helper()
	src := eventsource.NewMemorySource()
	src.AddBranch(eventsource.Branch{ID: "1", Name: "Harbour"})
	src.AddBranch(eventsource.Branch{ID: "2", Name: "Quarry"})
	src.AddTool(eventsource.Tool{ID: "tool-drill", Name: "Drill", BranchID: "2"})
	src.AddTool(eventsource.Tool{ID: "tool-saw", Name: "Saw", BranchID: "1"})
	return src
}

func placeOrder(t *testing.T, src *eventsource.MemorySource, from, to model.BranchID, item string) model.LogRecord {
	t.Helper()
	rec, err := src.Insert(context.Background(), model.NewLogRecord{
		Action: model.ActionOrder, FromBranch: from, ToBranch: to, ItemID: item,
	})
	require.NoError(t, err)
	return rec
}

func open(t *testing.T, src eventsource.Source, st store.Store, viewer model.ViewerContext) *Session {
	t.Helper()
	s, err := Open(context.Background(), Options{Viewer: viewer, Source: src, Store: st})
	require.NoError(t, err)
	return s
}

func refresh(t *testing.T, s *Session, src eventsource.Source, notify bool) Update {
	t.Helper()
	records, err := src.Recent(context.Background(), 50)
	require.NoError(t, err)
	return s.Apply(context.Background(), records, notify)
}

var quarryStaff = model.ViewerContext{UserID: "u-q", HomeBranch: "2", Role: model.RoleStaff}

func TestSession_RaisesAndPersistsBlockingOrder(t *testing.T) {
	src := newSource(t)
	st := testutil.NewTestStore(t)
	order := placeOrder(t, src, "2", "1", "tool-drill")

	s := open(t, src, st, quarryStaff)
	up := refresh(t, s, src, false)

	require.NotNil(t, up.Raised)
	assert.Equal(t, order.ID, up.Raised.ID)
	assert.Equal(t, classify.TitleNewRequest, up.Raised.Title)

	pending, ok := s.Pending()
	require.True(t, ok)
	assert.Equal(t, order.ID, pending.ID)

	handled, err := st.LoadHandledOrders(context.Background())
	require.NoError(t, err)
	assert.True(t, handled.Has(order.ID))
	assert.Equal(t, 1, s.UnreadCount())
}

func TestSession_ReloadDoesNotReprompt(t *testing.T) {
	src := newSource(t)
	path := filepath.Join(t.TempDir(), "device.db")
	placeOrder(t, src, "2", "1", "tool-drill")

	st, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	first := open(t, src, st, quarryStaff)
	require.NotNil(t, refresh(t, first, src, false).Raised)
	require.NoError(t, first.Close())
	require.NoError(t, st.Close())

	reopened, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	second := open(t, src, reopened, quarryStaff)
	up := refresh(t, second, src, true)
	assert.Nil(t, up.Raised)
	_, ok := second.Pending()
	assert.False(t, ok)
}

func TestSession_RequesterGetsNoModal(t *testing.T) {
	src := newSource(t)
	placeOrder(t, src, "2", "1", "tool-drill")

	s := open(t, src, testutil.NewTestStore(t), model.ViewerContext{UserID: "u-h", HomeBranch: "1", Role: model.RoleStaff})
	up := refresh(t, s, src, true)

	assert.Nil(t, up.Raised)
	assert.Nil(t, up.Toast)
	require.Len(t, s.Notifications(), 1)
	assert.Equal(t, classify.TitleYourRequest, s.Notifications()[0].Title)
}

func TestSession_PushRefreshToastsNewestRecord(t *testing.T) {
	src := newSource(t)
	_, err := src.Insert(context.Background(), model.NewLogRecord{
		Action: model.ActionTransfer, FromBranch: "1", ToBranch: "2", ItemID: "tool-saw",
	})
	require.NoError(t, err)

	s := open(t, src, testutil.NewTestStore(t), quarryStaff)

	assert.Nil(t, refresh(t, s, src, false).Toast)

	up := refresh(t, s, src, true)
	require.NotNil(t, up.Toast)
	assert.Equal(t, classify.TitleInbound, up.Toast.Title)
	require.Len(t, s.Toasts(), 1)

	assert.Nil(t, refresh(t, s, src, true).Toast)

	s.DismissToast(up.Toast.ID)
	assert.Empty(t, s.Toasts())
}

func TestSession_RejectThenNextOrder(t *testing.T) {
	src := newSource(t)
	st := testutil.NewTestStore(t)
	first := placeOrder(t, src, "2", "1", "tool-drill")

	s := open(t, src, st, quarryStaff)
	require.NotNil(t, refresh(t, s, src, false).Raised)

	refusal, err := s.Reject(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ActionRefusal, refusal.Action)

	src.AddTool(eventsource.Tool{ID: "tool-ladder", Name: "Ladder", BranchID: "2"})
	second := placeOrder(t, src, "2", "1", "tool-ladder")

	up := refresh(t, s, src, true)
	require.NotNil(t, up.Raised)
	assert.Equal(t, second.ID, up.Raised.ID)

	handled, err := st.LoadHandledOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, handled.IDs())
}

func TestSession_ConfirmAndSubmitTransfer(t *testing.T) {
	src := newSource(t)
	placeOrder(t, src, "2", "1", "tool-drill")

	s := open(t, src, testutil.NewTestStore(t), quarryStaff)
	require.NotNil(t, refresh(t, s, src, false).Raised)

	draft, err := s.Confirm()
	require.NoError(t, err)
	_, ok := s.Pending()
	assert.False(t, ok)

	rec, err := s.SubmitTransfer(context.Background(), draft, "  on the 3pm van ")
	require.NoError(t, err)
	assert.Equal(t, model.ActionTransfer, rec.Action)
	assert.Equal(t, "on the 3pm van", rec.Notes)
	assert.Equal(t, "u-q", rec.OperatorID)

	tool, _ := src.Tool("tool-drill")
	assert.Equal(t, model.ItemStatusInTransit, tool.Status)

	assert.Nil(t, refresh(t, s, src, false).Raised)
}

func TestSession_MarkAllReadPersists(t *testing.T) {
	src := newSource(t)
	st := testutil.NewTestStore(t)
	placeOrder(t, src, "1", "2", "tool-saw")

	clock := time.Now().Add(time.Second)
	s, err := Open(context.Background(), Options{
		Viewer: quarryStaff, Source: src, Store: st,
		Now: func() time.Time { return clock },
	})
	require.NoError(t, err)

	refresh(t, s, src, false)
	require.Equal(t, 1, s.UnreadCount())

	require.NoError(t, s.MarkAllRead(context.Background()))
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, clock, s.Viewer().ReadWatermark)

	wm, err := st.LoadWatermark(context.Background())
	require.NoError(t, err)
	assert.True(t, clock.Equal(wm))

	reopened := open(t, src, st, quarryStaff)
	refresh(t, reopened, src, false)
	assert.Equal(t, 0, reopened.UnreadCount())
}

func TestSession_SetSimulatedBranch(t *testing.T) {
	src := newSource(t)
	placeOrder(t, src, "2", "1", "tool-drill")

	staff := open(t, src, testutil.NewTestStore(t), quarryStaff)
	assert.ErrorIs(t, staff.SetSimulatedBranch("1"), ErrNotAdmin)

	admin := open(t, src, testutil.NewTestStore(t), model.ViewerContext{UserID: "root", HomeBranch: "9", Role: model.RoleAdmin})
	assert.Nil(t, refresh(t, admin, src, false).Raised)

	require.NoError(t, admin.SetSimulatedBranch("2"))
	assert.Equal(t, model.BranchID("2"), admin.Viewer().EffectiveBranch())
	assert.NotNil(t, refresh(t, admin, src, false).Raised)
}

func TestSession_SignOutClearsStateAndSubscription(t *testing.T) {
	src := newSource(t)
	st := testutil.NewTestStore(t)
	placeOrder(t, src, "2", "1", "tool-drill")

	s := open(t, src, st, quarryStaff)
	triggered := 0
	require.NoError(t, s.Subscribe(context.Background(), func() { triggered++ }))
	assert.Equal(t, 1, src.Subscribers())

	refresh(t, s, src, false)
	require.NoError(t, s.MarkAllRead(context.Background()))

	placeOrder(t, src, "2", "1", "tool-drill")
	assert.Equal(t, 1, triggered)

	require.NoError(t, s.SignOut(context.Background()))
	assert.Equal(t, 0, src.Subscribers())
	assert.Empty(t, s.Notifications())

	handled, err := st.LoadHandledOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, handled.Len())
	wm, err := st.LoadWatermark(context.Background())
	require.NoError(t, err)
	assert.True(t, wm.IsZero())

	assert.ErrorIs(t, s.Subscribe(context.Background(), func() {}), ErrClosed)
	assert.Equal(t, Update{}, s.Apply(context.Background(), nil, true))
}

func TestOpen_RequiresSourceAndStore(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.Error(t, err)
}

func TestSession_RevokeLeavesLedgerUntilReset(t *testing.T) {
	src := newSource(t)
	st := testutil.NewTestStore(t)
	order := placeOrder(t, src, "2", "1", "tool-drill")

	s := open(t, src, st, quarryStaff)
	refresh(t, s, src, false)

	require.NoError(t, s.Revoke(context.Background()))
	require.Len(t, s.Notifications(), 1)
	assert.Equal(t, order.ID, s.Notifications()[0].ID)

	handled, err := st.LoadHandledOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, handled.Len())

	s.Reset()
	assert.Empty(t, s.Notifications())
	assert.Equal(t, 0, s.UnreadCount())
}

// unreadableStore fails every load, as with a corrupt device.db value.
type unreadableStore struct {
	store.Store
	saved *model.HandledOrders
}

func (u *unreadableStore) LoadHandledOrders(context.Context) (*model.HandledOrders, error) {
	return nil, errors.New("decoding handled orders: invalid character")
}

func (u *unreadableStore) LoadWatermark(context.Context) (time.Time, error) {
	return time.Time{}, errors.New("parsing read watermark: bad time")
}

func (u *unreadableStore) SaveHandledOrders(_ context.Context, h *model.HandledOrders) error {
	u.saved = model.NewHandledOrders(h.IDs()...)
	return nil
}

func TestOpen_UnreadableDeviceStateStartsEmpty(t *testing.T) {
	src := newSource(t)
	order := placeOrder(t, src, "2", "1", "tool-drill")
	st := &unreadableStore{}

	s, err := Open(context.Background(), Options{Viewer: quarryStaff, Source: src, Store: st})
	require.NoError(t, err)
	assert.True(t, s.Viewer().ReadWatermark.IsZero())

	up := refresh(t, s, src, false)
	require.NotNil(t, up.Raised)
	assert.NoError(t, up.PersistErr)
	require.NotNil(t, st.saved)
	assert.Equal(t, []string{order.ID}, st.saved.IDs())
}
