package ledger

import "github.com/nhle/toolroom/internal/model"

// PushToast adds n to the toast stack. It reports false when a toast with
// the same id is already showing. When the stack is full the oldest toast
// is evicted.
func (l *Ledger) PushToast(n model.Notification) bool {
	for _, t := range l.toasts {
		if t.ID == n.ID {
			return false
		}
	}
	l.toasts = append(l.toasts, n)
	if over := len(l.toasts) - l.toastLimit; over > 0 {
		l.toasts = append([]model.Notification(nil), l.toasts[over:]...)
	}
	return true
}

// DismissToast removes the toast with the given id, if present. It is
// driven by the display timer, not by ledger state.
func (l *Ledger) DismissToast(id string) {
	for i, t := range l.toasts {
		if t.ID == id {
			l.toasts = append(l.toasts[:i:i], l.toasts[i+1:]...)
			return
		}
	}
}

// Toasts returns the showing toasts, oldest first.
func (l *Ledger) Toasts() []model.Notification {
	out := make([]model.Notification, len(l.toasts))
	copy(out, l.toasts)
	return out
}
