package model

import "time"

// Severity controls how a notification is styled.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
)

// Direction tells whether a record flows towards or away from the viewer's branch.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionNone     Direction = "none"
)

// Notification is a viewer-specific projection of a LogRecord. It is
// recomputed on every refresh and never persisted.
type Notification struct {
	// ID equals the source record's ID and is the dedup key across refreshes.
	ID string `json:"id"`

	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Direction Direction `json:"direction"`

	// IsRead is derived from the viewer's read watermark.
	IsRead bool `json:"is_read"`

	CreatedAt time.Time `json:"created_at"`

	// Record is the originating log record, kept for workflow actions.
	Record LogRecord `json:"-"`
}

// IsOrder reports whether the notification was produced by an Order record.
func (n Notification) IsOrder() bool {
	return n.Record.Action == ActionOrder
}
