package model

import (
	"encoding/json"
	"fmt"
)

// HandledOrders is the insertion-ordered set of Order record ids that have
// already been surfaced as a blocking confirmation. Ids are only ever added;
// the set is dropped as a whole on sign-out.
type HandledOrders struct {
	ids   []string
	index map[string]struct{}
}

// NewHandledOrders returns a set seeded with ids, skipping duplicates and blanks.
func NewHandledOrders(ids ...string) *HandledOrders {
	h := &HandledOrders{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		h.Add(id)
	}
	return h
}

// Add inserts id and reports whether it was new.
func (h *HandledOrders) Add(id string) bool {
	if id == "" {
		return false
	}
	if h.index == nil {
		h.index = make(map[string]struct{})
	}
	if _, ok := h.index[id]; ok {
		return false
	}
	h.index[id] = struct{}{}
	h.ids = append(h.ids, id)
	return true
}

// Has reports whether id is in the set.
func (h *HandledOrders) Has(id string) bool {
	if h == nil {
		return false
	}
	_, ok := h.index[id]
	return ok
}

// Len returns the number of ids.
func (h *HandledOrders) Len() int {
	if h == nil {
		return 0
	}
	return len(h.ids)
}

// IDs returns a copy of the ids in insertion order.
func (h *HandledOrders) IDs() []string {
	if h == nil {
		return nil
	}
	out := make([]string, len(h.ids))
	copy(out, h.ids)
	return out
}

// MarshalJSON encodes the set as an ordered JSON array of ids.
func (h *HandledOrders) MarshalJSON() ([]byte, error) {
	ids := h.IDs()
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

// UnmarshalJSON decodes an ordered JSON array of ids.
func (h *HandledOrders) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("decoding handled orders: %w", err)
	}
	*h = *NewHandledOrders(ids...)
	return nil
}
