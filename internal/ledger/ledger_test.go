package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/toolroom/internal/model"
)

var epoch = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

// batch returns count notifications, newest first, one minute apart.
func batch(count int) []model.Notification {
	out := make([]model.Notification, count)
	for i := range out {
		out[i] = model.Notification{
			ID:        fmt.Sprintf("n%02d", count-i),
			CreatedAt: epoch.Add(time.Duration(count-i) * time.Minute),
		}
	}
	return out
}

func TestReplaceBatch_TruncatesToCapacity(t *testing.T) {
	l := New(5, 0)
	l.ReplaceBatch(batch(8))

	got := l.Notifications()
	require.Len(t, got, 5)
	assert.Equal(t, "n08", got[0].ID)
	assert.Equal(t, "n04", got[4].ID)
	assert.Equal(t, 5, l.UnreadCount())
}

func TestReplaceBatch_DefaultCapacity(t *testing.T) {
	l := New(0, 0)
	l.ReplaceBatch(batch(30))
	assert.Len(t, l.Notifications(), DefaultCapacity)
}

func TestMarkAllRead_AppliesToHeldAndOlderFutureRecords(t *testing.T) {
	l := New(10, 3)
	l.ReplaceBatch(batch(3))
	require.Equal(t, 3, l.UnreadCount())

	now := epoch.Add(10 * time.Minute)
	l.MarkAllRead(now)
	assert.Equal(t, 0, l.UnreadCount())
	assert.Equal(t, now, l.Watermark())

	fresh := append([]model.Notification{{ID: "new", CreatedAt: now.Add(time.Second)}}, batch(3)...)
	l.ReplaceBatch(fresh)
	assert.Equal(t, 1, l.UnreadCount())

	n, ok := l.Find("new")
	require.True(t, ok)
	assert.False(t, n.IsRead)
}

func TestMarkAllRead_NeverMovesBackwards(t *testing.T) {
	l := New(10, 3)
	l.MarkAllRead(epoch)
	l.MarkAllRead(epoch.Add(-time.Hour))
	assert.Equal(t, epoch, l.Watermark())
}

func TestIsRead_BoundaryIsInclusive(t *testing.T) {
	n := model.Notification{CreatedAt: epoch}
	assert.True(t, IsRead(n, epoch))
	assert.False(t, IsRead(n, epoch.Add(-time.Nanosecond)))
	assert.False(t, IsRead(n, time.Time{}))
}

func TestPushToast_DedupsAndEvictsOldest(t *testing.T) {
	l := New(10, 3)

	assert.True(t, l.PushToast(model.Notification{ID: "a"}))
	assert.False(t, l.PushToast(model.Notification{ID: "a"}))
	assert.True(t, l.PushToast(model.Notification{ID: "b"}))
	assert.True(t, l.PushToast(model.Notification{ID: "c"}))
	assert.True(t, l.PushToast(model.Notification{ID: "d"}))

	ids := toastIDs(l)
	assert.Equal(t, []string{"b", "c", "d"}, ids)

	l.DismissToast("c")
	assert.Equal(t, []string{"b", "d"}, toastIDs(l))

	l.DismissToast("missing")
	assert.Equal(t, []string{"b", "d"}, toastIDs(l))

	// A dismissed id may show again.
	assert.True(t, l.PushToast(model.Notification{ID: "c"}))
}

func TestReset(t *testing.T) {
	l := New(10, 3)
	l.ReplaceBatch(batch(2))
	l.PushToast(model.Notification{ID: "a"})
	l.MarkAllRead(epoch)

	l.Reset()
	assert.Empty(t, l.Notifications())
	assert.Empty(t, l.Toasts())
	assert.True(t, l.Watermark().IsZero())
}

func toastIDs(l *Ledger) []string {
	var ids []string
	for _, t := range l.Toasts() {
		ids = append(ids, t.ID)
	}
	return ids
}
