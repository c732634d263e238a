package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/store"
	"github.com/nhle/toolroom/tests/testutil"
)

func TestSQLiteStore_EmptyState(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	handled, err := s.LoadHandledOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, handled.Len())

	wm, err := s.LoadWatermark(ctx)
	require.NoError(t, err)
	assert.True(t, wm.IsZero())
}

func TestSQLiteStore_HandledOrdersRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveHandledOrders(ctx, model.NewHandledOrders("o-1", "o-2")))

	handled := model.NewHandledOrders("o-1", "o-2", "o-3")
	require.NoError(t, s.SaveHandledOrders(ctx, handled))

	loaded, err := s.LoadHandledOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"o-1", "o-2", "o-3"}, loaded.IDs())
	assert.True(t, loaded.Has("o-3"))
}

func TestSQLiteStore_WatermarkRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	wm := time.Date(2026, 5, 6, 7, 8, 9, 123456789, time.FixedZone("CET", 3600))
	require.NoError(t, s.SaveWatermark(ctx, wm))

	loaded, err := s.LoadWatermark(ctx)
	require.NoError(t, err)
	assert.True(t, wm.Equal(loaded))
}

func TestSQLiteStore_ClearDeviceState(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveHandledOrders(ctx, model.NewHandledOrders("o-1")))
	require.NoError(t, s.SaveWatermark(ctx, time.Now()))
	require.NoError(t, s.ClearDeviceState(ctx))

	handled, err := s.LoadHandledOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, handled.Len())

	wm, err := s.LoadWatermark(ctx)
	require.NoError(t, err)
	assert.True(t, wm.IsZero())
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "device.db")
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveHandledOrders(ctx, model.NewHandledOrders("o-9")))
	require.NoError(t, s.Close())

	reopened, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	handled, err := reopened.LoadHandledOrders(ctx)
	require.NoError(t, err)
	assert.True(t, handled.Has("o-9"))
}
