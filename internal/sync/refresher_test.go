package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/toolroom/internal/model"
)

type stubFetcher struct {
	mu     gosync.Mutex
	calls  int
	limits []int
	err    error
}

func (f *stubFetcher) Recent(_ context.Context, limit int) ([]model.LogRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return []model.LogRecord{{ID: "log-1", Action: model.ActionOrder}}, nil
}

func receive(t *testing.T, r *Refresher) RefreshResultMsg {
	t.Helper()
	done := make(chan RefreshResultMsg, 1)
	go func() {
		msg, _ := r.WaitForNextResult()().(RefreshResultMsg)
		done <- msg
	}()
	select {
	case msg := <-done:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh result")
		return RefreshResultMsg{}
	}
}

func TestRefresher_InitialFetchDoesNotNotify(t *testing.T) {
	f := &stubFetcher{}
	r := New(f, Options{Interval: time.Hour, Limit: 25})
	require.NotNil(t, r.Start())
	defer r.Stop()

	msg := receive(t, r)
	require.NoError(t, msg.Err)
	assert.False(t, msg.ShouldNotify)
	assert.Len(t, msg.Records, 1)
	assert.Equal(t, []int{25}, f.limits)
	assert.Equal(t, RefreshIdle, r.Status().State)
}

func TestRefresher_TriggerCarriesNotifyFlag(t *testing.T) {
	r := New(&stubFetcher{}, Options{Interval: time.Hour})
	r.Start()
	defer r.Stop()
	receive(t, r)

	r.Trigger(true)
	assert.True(t, receive(t, r).ShouldNotify)

	r.Trigger(false)
	assert.False(t, receive(t, r).ShouldNotify)
}

func TestRefresher_TickerDoesNotNotify(t *testing.T) {
	r := New(&stubFetcher{}, Options{Interval: 20 * time.Millisecond})
	r.Start()
	defer r.Stop()

	receive(t, r)
	assert.False(t, receive(t, r).ShouldNotify)
}

func TestRefresher_FetchErrorKeepsRecordsNil(t *testing.T) {
	f := &stubFetcher{err: errors.New("offline")}
	r := New(f, Options{Interval: time.Hour})
	r.Start()
	defer r.Stop()

	msg := receive(t, r)
	assert.Error(t, msg.Err)
	assert.Nil(t, msg.Records)
	assert.Equal(t, RefreshError, r.Status().State)
}

func TestRefresher_DrainTriggersCoalesces(t *testing.T) {
	r := New(&stubFetcher{}, Options{})
	r.triggerCh <- false
	r.triggerCh <- true
	r.triggerCh <- false

	assert.True(t, r.drainTriggers(false))
	assert.Empty(t, r.triggerCh)
}

func TestRefresher_StartTwiceAndStopTwice(t *testing.T) {
	r := New(&stubFetcher{}, Options{Interval: time.Hour})
	require.NotNil(t, r.Start())
	assert.Nil(t, r.Start())

	r.Stop()
	r.Stop()
}
