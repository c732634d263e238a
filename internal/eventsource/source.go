// Package eventsource talks to the shared inventory change log: it fetches
// the latest window of records, appends new ones and subscribes to the
// insert notification channel.
package eventsource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/toolroom/internal/model"
)

// Source is the inventory change log as seen by the client.
type Source interface {
	// Recent returns the last limit records, newest first, joined with
	// item and branch details.
	Recent(ctx context.Context, limit int) ([]model.LogRecord, error)

	// Insert appends one record and returns it as stored.
	Insert(ctx context.Context, rec model.NewLogRecord) (model.LogRecord, error)

	// Subscribe calls onInsert after every insert into the log, by anyone.
	// The callback carries no payload; callers re-fetch.
	Subscribe(ctx context.Context, onInsert func()) (Subscription, error)

	Close() error
}

// Subscription is a live insert subscription.
type Subscription interface {
	// Close stops delivery. It is safe to call more than once.
	Close() error
}

// ErrInvalidRecord is returned for inserts that fail client-side validation.
var ErrInvalidRecord = errors.New("invalid log record")

// FetchError wraps a failed query or subscription.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("event source %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError wraps a failed insert.
type WriteError struct {
	Action model.Action
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("recording %s: %v", strings.ToLower(string(e.Action)), e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsFetchError reports whether err (or any error in its chain) is a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsWriteError reports whether err (or any error in its chain) is a WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

// Validate checks the fields every insert needs.
func Validate(rec model.NewLogRecord) error {
	switch {
	case strings.TrimSpace(string(rec.Action)) == "":
		return fmt.Errorf("%w: action is required", ErrInvalidRecord)
	case strings.TrimSpace(rec.ItemID) == "":
		return fmt.Errorf("%w: item is required", ErrInvalidRecord)
	case rec.Action == model.ActionRefusal && strings.TrimSpace(rec.Notes) == "":
		return fmt.Errorf("%w: a refusal needs an explanation", ErrInvalidRecord)
	}
	return nil
}
