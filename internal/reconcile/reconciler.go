// Package reconcile decides, for every refreshed batch, whether an incoming
// order must block the viewer for a decision or whether the newest record
// merely deserves an ambient toast.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/sound"
)

// DefaultToastMaxAge is the age beyond which a record never toasts.
const DefaultToastMaxAge = 2 * time.Minute

// HandledOrderStore persists the handled-orders set on this device.
type HandledOrderStore interface {
	SaveHandledOrders(ctx context.Context, h *model.HandledOrders) error
}

// Outcome reports what a single Reconcile call decided.
type Outcome struct {
	// Raised is the order that became the active blocking order this cycle.
	Raised *model.Notification

	// Toast is the notification to show as an ambient toast this cycle.
	Toast *model.Notification

	// PersistErr is set when the handled-orders set could not be flushed.
	PersistErr error
}

// Options configures a Reconciler.
type Options struct {
	Store       HandledOrderStore
	Player      sound.Player
	Logger      *zap.Logger
	ToastMaxAge time.Duration
	Now         func() time.Time
}

// Reconciler carries the per-session arrival state. It is driven from a
// single goroutine.
type Reconciler struct {
	handled     *model.HandledOrders
	store       HandledOrderStore
	player      sound.Player
	logger      *zap.Logger
	toastMaxAge time.Duration
	now         func() time.Time

	active      *model.Notification
	lastToastID string
}

// New creates a Reconciler seeded with the persisted handled-orders set.
func New(handled *model.HandledOrders, opts Options) *Reconciler {
	if handled == nil {
		handled = model.NewHandledOrders()
	}
	r := &Reconciler{
		handled:     handled,
		store:       opts.Store,
		player:      opts.Player,
		logger:      opts.Logger,
		toastMaxAge: opts.ToastMaxAge,
		now:         opts.Now,
	}
	if r.player == nil {
		r.player = sound.Mute{}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.toastMaxAge <= 0 {
		r.toastMaxAge = DefaultToastMaxAge
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Reconcile processes one newest-first, relevance-filtered batch.
// shouldNotify is true only for refreshes triggered by the push channel.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	batch []model.Notification,
	viewer model.ViewerContext,
	shouldNotify bool,
) Outcome {
	var out Outcome

	if r.active == nil {
		if n, ok := r.findBlocking(batch, viewer); ok {
			r.handled.Add(n.ID)
			if r.store != nil {
				if err := r.store.SaveHandledOrders(ctx, r.handled); err != nil {
					out.PersistErr = fmt.Errorf("persisting handled order %s: %w", n.ID, err)
					r.logger.Error("handled orders not flushed",
						zap.String("order_id", n.ID), zap.Error(err))
				}
			}
			r.active = &n
			out.Raised = &n
			r.play(sound.CueAlert)
			r.logger.Info("blocking order raised",
				zap.String("order_id", n.ID),
				zap.String("item", n.Record.Item.Name),
				zap.String("to_branch", string(n.Record.ToBranch)))
			return out
		}
	}

	if t, ok := r.ambient(batch, shouldNotify); ok {
		r.lastToastID = t.ID
		out.Toast = &t
		r.play(sound.CueChime)
	}

	return out
}

// findBlocking returns the newest order the viewer owns that has not been
// surfaced yet and is not already being fulfilled.
func (r *Reconciler) findBlocking(batch []model.Notification, viewer model.ViewerContext) (model.Notification, bool) {
	me := viewer.EffectiveBranch()
	if me == "" {
		return model.Notification{}, false
	}
	for _, n := range batch {
		rec := n.Record
		if rec.Action != model.ActionOrder || rec.FromBranch != me {
			continue
		}
		if rec.FromBranch == rec.ToBranch {
			continue
		}
		if r.handled.Has(n.ID) {
			continue
		}
		if rec.Item.Status == model.ItemStatusInTransit {
			continue
		}
		return n, true
	}
	return model.Notification{}, false
}

// ambient returns the newest notification when it deserves a toast.
func (r *Reconciler) ambient(batch []model.Notification, shouldNotify bool) (model.Notification, bool) {
	if !shouldNotify || len(batch) == 0 {
		return model.Notification{}, false
	}
	latest := batch[0]
	if latest.ID == r.lastToastID {
		return model.Notification{}, false
	}
	if r.active != nil && r.active.ID == latest.ID {
		return model.Notification{}, false
	}
	if r.now().Sub(latest.CreatedAt) >= r.toastMaxAge {
		return model.Notification{}, false
	}
	if latest.IsOrder() && latest.Direction == model.DirectionOutgoing {
		return model.Notification{}, false
	}
	return latest, true
}

func (r *Reconciler) play(cue sound.Cue) {
	if err := r.player.Play(cue); err != nil {
		r.logger.Debug("sound playback failed", zap.Error(err))
	}
}

// Active returns the blocking order awaiting a decision, if any.
func (r *Reconciler) Active() (model.Notification, bool) {
	if r.active == nil {
		return model.Notification{}, false
	}
	return *r.active, true
}

// ClearActive releases the blocking slot so the next refresh may raise
// another order. The order's id stays handled.
func (r *Reconciler) ClearActive() {
	r.active = nil
}

// Handled returns the handled-orders set.
func (r *Reconciler) Handled() *model.HandledOrders {
	return r.handled
}
