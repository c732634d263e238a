// Package ledger holds the viewer's current notification window: the most
// recent classified batch, the read watermark and the toast stack.
package ledger

import (
	"time"

	"github.com/nhle/toolroom/internal/model"
)

// Default bounds.
const (
	DefaultCapacity   = 20
	DefaultToastLimit = 3
)

// Ledger is owned by a single viewer session and is not safe for
// concurrent use; the UI event loop is its only writer.
type Ledger struct {
	capacity      int
	toastLimit    int
	watermark     time.Time
	notifications []model.Notification
	toasts        []model.Notification
}

// New creates a ledger keeping at most capacity notifications and
// toastLimit concurrent toasts. Non-positive values use the defaults.
func New(capacity, toastLimit int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if toastLimit <= 0 {
		toastLimit = DefaultToastLimit
	}
	return &Ledger{capacity: capacity, toastLimit: toastLimit}
}

// ReplaceBatch swaps in a freshly classified newest-first batch, truncated
// to capacity, and recomputes IsRead against the current watermark.
func (l *Ledger) ReplaceBatch(batch []model.Notification) {
	n := len(batch)
	if n > l.capacity {
		n = l.capacity
	}
	next := make([]model.Notification, n)
	copy(next, batch[:n])
	l.notifications = next
	l.applyWatermark()
}

// MarkAllRead advances the watermark to now. Records created after now
// arrive unread in later batches.
func (l *Ledger) MarkAllRead(now time.Time) {
	if now.After(l.watermark) {
		l.watermark = now
	}
	l.applyWatermark()
}

// SetWatermark restores a persisted watermark.
func (l *Ledger) SetWatermark(t time.Time) {
	l.watermark = t
	l.applyWatermark()
}

// Watermark returns the read boundary.
func (l *Ledger) Watermark() time.Time {
	return l.watermark
}

// Notifications returns a copy of the held batch, newest first.
func (l *Ledger) Notifications() []model.Notification {
	out := make([]model.Notification, len(l.notifications))
	copy(out, l.notifications)
	return out
}

// UnreadCount returns how many held notifications are unread.
func (l *Ledger) UnreadCount() int {
	count := 0
	for _, n := range l.notifications {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// Find returns the held notification with the given id.
func (l *Ledger) Find(id string) (model.Notification, bool) {
	for _, n := range l.notifications {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// Reset drops all state, including the watermark.
func (l *Ledger) Reset() {
	l.notifications = nil
	l.toasts = nil
	l.watermark = time.Time{}
}

func (l *Ledger) applyWatermark() {
	for i := range l.notifications {
		l.notifications[i].IsRead = IsRead(l.notifications[i], l.watermark)
	}
}

// IsRead reports whether n falls at or before the watermark.
func IsRead(n model.Notification, watermark time.Time) bool {
	if watermark.IsZero() {
		return false
	}
	return !n.CreatedAt.After(watermark)
}
