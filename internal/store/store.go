package store

import (
	"context"
	"time"

	"github.com/nhle/toolroom/internal/model"
)

// Keys of the device_state table.
const (
	keyHandledOrders = "handled_orders"
	keyReadWatermark = "read_watermark"
)

// Store defines the device-local persistence used by a viewer session.
// Everything in it belongs to the signed-in viewer on this device and is
// wiped on sign-out.
type Store interface {
	// LoadHandledOrders returns the persisted handled-order set, empty when
	// nothing was stored yet.
	LoadHandledOrders(ctx context.Context) (*model.HandledOrders, error)
	SaveHandledOrders(ctx context.Context, handled *model.HandledOrders) error

	// LoadWatermark returns the zero time when nothing was stored yet.
	LoadWatermark(ctx context.Context) (time.Time, error)
	SaveWatermark(ctx context.Context, watermark time.Time) error

	// ClearDeviceState removes all per-viewer keys.
	ClearDeviceState(ctx context.Context) error

	Close() error
}
