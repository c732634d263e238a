package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/toolroom/internal/eventsource"
	"github.com/nhle/toolroom/internal/model"
)

// RefreshState represents the current state of the refresh loop.
type RefreshState int

const (
	RefreshIdle RefreshState = iota
	RefreshRunning
	RefreshError
)

// RefreshStatus holds the refresh state shown in the status bar.
type RefreshStatus struct {
	State       RefreshState
	LastRefresh time.Time
	Error       error
}

// RefreshResultMsg is a tea.Msg sent when a fetch completes. On error
// Records is nil and the caller keeps its previous state.
type RefreshResultMsg struct {
	Records      []model.LogRecord
	ShouldNotify bool
	Err          error
}

// Fetcher is the read side of the event source.
type Fetcher interface {
	Recent(ctx context.Context, limit int) ([]model.LogRecord, error)
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// DefaultInterval is the fallback poll interval.
const DefaultInterval = 15 * time.Second

// Options configures a Refresher.
type Options struct {
	Interval time.Duration
	Limit    int
	Logger   *zap.Logger
}

// Refresher fetches the latest window of the change log on a fixed
// interval and on demand. Ticks fetch with shouldNotify=false; triggers
// carry their own flag.
type Refresher struct {
	fetcher   Fetcher
	interval  time.Duration
	limit     int
	logger    *zap.Logger
	status    RefreshStatus
	resultCh  chan RefreshResultMsg
	triggerCh chan bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a Refresher reading from f.
func New(f Fetcher, opts Options) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Refresher{
		fetcher:   f,
		interval:  opts.Interval,
		limit:     opts.Limit,
		logger:    opts.Logger,
		resultCh:  make(chan RefreshResultMsg, 16),
		triggerCh: make(chan bool, 16),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the refresh goroutine and returns a tea.Cmd that waits
// for the first result. The first fetch runs immediately without toasts.
func (r *Refresher) Start() tea.Cmd {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	go r.loop()

	return r.waitForResult()
}

// Stop halts the refresh goroutine and waits for it to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	<-r.doneCh
}

// Trigger requests an immediate fetch. Push notifications pass true so
// that the newest record may toast; manual refreshes pass false.
func (r *Refresher) Trigger(shouldNotify bool) {
	select {
	case r.triggerCh <- shouldNotify:
	default:
		// Channel full; a fetch is already pending
	}
}

// Status returns the current refresh status.
func (r *Refresher) Status() RefreshStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Refresher) loop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.fetch(false)

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.fetch(false)
		case notify := <-r.triggerCh:
			r.fetch(r.drainTriggers(notify))
		}
	}
}

// drainTriggers coalesces queued triggers into one fetch; the fetch
// notifies if any of them asked to.
func (r *Refresher) drainTriggers(notify bool) bool {
	for {
		select {
		case n := <-r.triggerCh:
			notify = notify || n
		default:
			return notify
		}
	}
}

func (r *Refresher) fetch(shouldNotify bool) {
	r.setStatus(RefreshRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	records, err := r.fetcher.Recent(ctx, r.limit)
	if err != nil {
		r.setStatus(RefreshError, err)
		r.logger.Warn("refresh failed",
			zap.Bool("fetch_error", eventsource.IsFetchError(err)),
			zap.Error(err))
		r.sendResult(RefreshResultMsg{ShouldNotify: shouldNotify, Err: err})
		return
	}

	r.setStatus(RefreshIdle, nil)
	r.logger.Debug("refreshed",
		zap.Int("records", len(records)),
		zap.Bool("should_notify", shouldNotify))
	r.sendResult(RefreshResultMsg{Records: records, ShouldNotify: shouldNotify})
}

func (r *Refresher) setStatus(state RefreshState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.State = state
	r.status.Error = err
	if state == RefreshIdle {
		r.status.LastRefresh = time.Now()
	}
}

// sendResult sends a result without blocking the loop.
func (r *Refresher) sendResult(msg RefreshResultMsg) {
	select {
	case r.resultCh <- msg:
	default:
		// Drop if channel is full; a newer fetch will follow
	}
}

func (r *Refresher) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-r.resultCh:
			return result
		case <-r.doneCh:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next refresh
// result. Call it after handling each RefreshResultMsg to keep listening.
func (r *Refresher) WaitForNextResult() tea.Cmd {
	return r.waitForResult()
}
