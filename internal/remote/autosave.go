package remote

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SaveFunc uploads one timeline state to the store of record
type SaveFunc func(ctx context.Context, state TimelineState) error

// Autosaver collapses bursts of mutations into debounced bulk saves.
//
// Guarantees: at most one save in flight at a time; any state scheduled
// during the debounce window or while a save is in flight supersedes the
// previous pending state and produces exactly one follow-up save. The last
// scheduled state always reaches the server (barring errors); in-flight
// requests are never aborted, only future ones replaced.
type Autosaver struct {
	mu       sync.Mutex
	delay    time.Duration
	save     SaveFunc
	onError  func(error)
	logger   *zap.Logger
	timer    *time.Timer
	pending  *TimelineState
	inflight bool
	closed   bool
	idle     chan struct{} // closed when no timer, no pending, no inflight
}

// NewAutosaver creates a scheduler pushing through save after each debounce
// window. onError receives save failures; it may be nil.
func NewAutosaver(delay time.Duration, save SaveFunc, onError func(error), logger *zap.Logger) *Autosaver {
	if delay <= 0 {
		delay = time.Second
	}
	a := &Autosaver{
		delay:   delay,
		save:    save,
		onError: onError,
		logger:  logger,
		idle:    make(chan struct{}),
	}
	close(a.idle)
	return a
}

// Schedule records the latest timeline state and (re)starts the debounce
// window. Only the most recent state within the window is sent.
func (a *Autosaver) Schedule(state TimelineState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.pending = &state
	a.markBusy()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.fire)
}

func (a *Autosaver) fire() {
	a.mu.Lock()
	a.timer = nil
	if a.inflight || a.pending == nil {
		// an in-flight save will pick the pending state up on completion
		a.maybeIdleLocked()
		a.mu.Unlock()
		return
	}
	state := *a.pending
	a.pending = nil
	a.inflight = true
	a.mu.Unlock()

	go a.run(state)
}

func (a *Autosaver) run(state TimelineState) {
	for {
		if err := a.save(context.Background(), state); err != nil {
			a.logger.Warn("Autosave failed", zap.Error(err))
			if a.onError != nil {
				a.onError(err)
			}
		} else {
			a.logger.Debug("Autosave pushed",
				zap.Int("segments", len(state.Segments)+len(state.AudioSegments)+len(state.TextSegments)+len(state.ImageSegments)))
		}

		a.mu.Lock()
		if a.pending == nil || a.closed {
			a.inflight = false
			a.maybeIdleLocked()
			a.mu.Unlock()
			return
		}
		// exactly one follow-up with whatever arrived during the flight
		state = *a.pending
		a.pending = nil
		a.mu.Unlock()
	}
}

// Flush sends any pending state immediately instead of waiting out the
// debounce window, then waits for the saver to go idle. Used on shutdown.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if !a.inflight && a.pending != nil {
		state := *a.pending
		a.pending = nil
		a.inflight = true
		a.mu.Unlock()
		go a.run(state)
	} else {
		a.maybeIdleLocked()
		a.mu.Unlock()
	}

	select {
	case <-a.Idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending work and stops accepting new schedules
func (a *Autosaver) Close(ctx context.Context) error {
	err := a.Flush(ctx)
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return err
}

// Idle returns a channel closed while the saver has no queued or in-flight
// work. Primarily for tests and shutdown.
func (a *Autosaver) Idle() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.idle
}

func (a *Autosaver) markBusy() {
	select {
	case <-a.idle:
		a.idle = make(chan struct{})
	default:
	}
}

func (a *Autosaver) maybeIdleLocked() {
	if a.timer == nil && a.pending == nil && !a.inflight {
		select {
		case <-a.idle:
		default:
			close(a.idle)
		}
	}
}
