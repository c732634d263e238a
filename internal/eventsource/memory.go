package eventsource

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/toolroom/internal/model"
)

// Branch is a site registered with a MemorySource.
type Branch struct {
	ID   model.BranchID
	Name string
}

// Tool is an item registered with a MemorySource.
type Tool struct {
	ID             string
	Name           string
	Status         model.ItemStatus
	BranchID       model.BranchID
	TargetBranchID model.BranchID
}

// MemorySource is an in-process change log. It backs the demo driver and
// the tests of every package above the event source.
type MemorySource struct {
	mu          sync.Mutex
	branches    map[model.BranchID]string
	tools       map[string]*Tool
	logs        []model.LogRecord
	subscribers map[int]func()
	nextSubID   int
	now         func() time.Time
	closed      bool

	// InsertErr, when set, fails every Insert.
	InsertErr error
	// FetchErr, when set, fails every Recent.
	FetchErr error
}

// NewMemorySource returns an empty log.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		branches:    make(map[model.BranchID]string),
		tools:       make(map[string]*Tool),
		subscribers: make(map[int]func()),
		now:         time.Now,
	}
}

// SetClock replaces the timestamp source used by Insert.
func (m *MemorySource) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// AddBranch registers a site name.
func (m *MemorySource) AddBranch(b Branch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branches[b.ID] = b.Name
}

// AddTool registers or replaces an item.
func (m *MemorySource) AddTool(t Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Status == "" {
		t.Status = model.ItemStatusFree
	}
	tool := t
	m.tools[t.ID] = &tool
}

// Tool returns a copy of the current item state.
func (m *MemorySource) Tool(id string) (Tool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tools[id]
	if !ok {
		return Tool{}, false
	}
	return *t, true
}

// Recent implements Source. Item and branch details reflect their state
// at query time, as the hosted join does.
func (m *MemorySource) Recent(_ context.Context, limit int) ([]model.LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FetchErr != nil {
		return nil, &FetchError{Op: "recent", Err: m.FetchErr}
	}
	if limit <= 0 {
		limit = 50
	}

	sorted := make([]model.LogRecord, len(m.logs))
	copy(sorted, m.logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	for i := range sorted {
		m.join(&sorted[i])
	}
	return sorted, nil
}

func (m *MemorySource) join(r *model.LogRecord) {
	r.FromBranchName = m.branches[r.FromBranch]
	r.ToBranchName = m.branches[r.ToBranch]
	if t, ok := m.tools[r.Item.ID]; ok {
		r.Item = model.ItemRef{
			ID:             t.ID,
			Name:           t.Name,
			Status:         t.Status,
			BranchID:       t.BranchID,
			TargetBranchID: t.TargetBranchID,
		}
	}
}

// Insert implements Source. TRANSFER marks the item in transit towards
// the destination and RECEIPT lands it there.
func (m *MemorySource) Insert(_ context.Context, rec model.NewLogRecord) (model.LogRecord, error) {
	if err := Validate(rec); err != nil {
		return model.LogRecord{}, &WriteError{Action: rec.Action, Err: err}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return model.LogRecord{}, &WriteError{Action: rec.Action, Err: fmt.Errorf("source closed")}
	}
	if m.InsertErr != nil {
		err := m.InsertErr
		m.mu.Unlock()
		return model.LogRecord{}, &WriteError{Action: rec.Action, Err: err}
	}

	stored := model.LogRecord{
		ID:         uuid.New().String(),
		Action:     rec.Action,
		FromBranch: rec.FromBranch,
		ToBranch:   rec.ToBranch,
		Item:       model.ItemRef{ID: rec.ItemID},
		Notes:      rec.Notes,
		OperatorID: rec.OperatorID,
		CreatedAt:  m.now(),
	}
	m.logs = append(m.logs, stored)

	if t, ok := m.tools[rec.ItemID]; ok {
		switch rec.Action {
		case model.ActionTransfer:
			t.Status = model.ItemStatusInTransit
			t.TargetBranchID = rec.ToBranch
		case model.ActionReceipt:
			t.Status = model.ItemStatusFree
			t.BranchID = rec.ToBranch
			t.TargetBranchID = ""
		}
	}
	m.join(&stored)

	callbacks := make([]func(), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		callbacks = append(callbacks, fn)
	}
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return stored, nil
}

// Seed appends a record as-is, keeping its id and timestamp, without
// touching item state or notifying subscribers.
func (m *MemorySource) Seed(records ...model.LogRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, records...)
}

// Subscribe implements Source.
func (m *MemorySource) Subscribe(_ context.Context, onInsert func()) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, &FetchError{Op: "subscribe", Err: fmt.Errorf("source closed")}
	}
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = onInsert
	return &memorySubscription{source: m, id: id}, nil
}

// Subscribers returns the number of live subscriptions.
func (m *MemorySource) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Close drops every subscriber and rejects further writes.
func (m *MemorySource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subscribers = make(map[int]func())
	return nil
}

type memorySubscription struct {
	source *MemorySource
	id     int
}

func (s *memorySubscription) Close() error {
	s.source.mu.Lock()
	defer s.source.mu.Unlock()
	delete(s.source.subscribers, s.id)
	return nil
}
