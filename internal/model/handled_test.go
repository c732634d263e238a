package model

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandledOrders_AddIgnoresDuplicatesAndBlanks(t *testing.T) {
	h := NewHandledOrders("a", "b", "a", "")
	assert.Equal(t, []string{"a", "b"}, h.IDs())

	assert.True(t, h.Add("c"))
	assert.False(t, h.Add("b"))
	assert.False(t, h.Add(""))
	assert.Equal(t, 3, h.Len())
}

func TestHandledOrders_NilSafe(t *testing.T) {
	var h *HandledOrders
	assert.False(t, h.Has("a"))
	assert.Equal(t, 0, h.Len())
	assert.Nil(t, h.IDs())
}

func TestHandledOrders_EmptyMarshalsAsArray(t *testing.T) {
	data, err := json.Marshal(NewHandledOrders())
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestHandledOrders_UnmarshalRejectsObject(t *testing.T) {
	var h HandledOrders
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &h))
}

func TestHandledOrders_JSONRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("round trip keeps ids and order", prop.ForAll(
		func(ids []string) bool {
			h := NewHandledOrders(ids...)
			data, err := json.Marshal(h)
			if err != nil {
				return false
			}
			var decoded HandledOrders
			if err := json.Unmarshal(data, &decoded); err != nil {
				return false
			}
			want, got := h.IDs(), decoded.IDs()
			if len(want) != len(got) {
				return false
			}
			for i := range want {
				if want[i] != got[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
