package remote

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/models"
)

// UpdateFunc pushes one segment's current values to the store of record
type UpdateFunc func(ctx context.Context, seg models.Segment) error

// Dispatcher serializes per-segment update calls. Without it two
// near-simultaneous moves of the same segment could race and leave the
// server in an order-dependent final state; with it, each segment id has at
// most one update in flight and the newest payload replaces any queued one
// (latest wins, intermediate states are skipped).
type Dispatcher struct {
	mu       sync.Mutex
	update   UpdateFunc
	onError  func(segmentID string, err error)
	logger   *zap.Logger
	inflight map[string]bool
	queued   map[string]models.Segment
	idle     chan struct{}
}

// NewDispatcher creates a per-segment update serializer. onError receives
// terminal failures per segment; it may be nil.
func NewDispatcher(update UpdateFunc, onError func(string, error), logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		update:   update,
		onError:  onError,
		logger:   logger,
		inflight: map[string]bool{},
		queued:   map[string]models.Segment{},
		idle:     make(chan struct{}),
	}
	close(d.idle)
	return d
}

// Enqueue submits a segment's latest values. If an update for the same id is
// already in flight the payload is parked, replacing any previously parked
// one, and sent when the in-flight call returns.
func (d *Dispatcher) Enqueue(seg models.Segment) {
	d.mu.Lock()
	if d.inflight[seg.ID] {
		d.queued[seg.ID] = seg
		d.mu.Unlock()
		return
	}
	d.inflight[seg.ID] = true
	d.markBusy()
	d.mu.Unlock()

	go d.drain(seg)
}

func (d *Dispatcher) drain(seg models.Segment) {
	for {
		if err := d.update(context.Background(), seg); err != nil {
			d.logger.Warn("Segment update failed",
				zap.String("segmentId", seg.ID),
				zap.Error(err))
			if d.onError != nil {
				d.onError(seg.ID, err)
			}
		}

		d.mu.Lock()
		next, ok := d.queued[seg.ID]
		if !ok {
			delete(d.inflight, seg.ID)
			d.maybeIdleLocked()
			d.mu.Unlock()
			return
		}
		delete(d.queued, seg.ID)
		d.mu.Unlock()
		seg = next
	}
}

// Idle returns a channel closed while no updates are queued or in flight
func (d *Dispatcher) Idle() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idle
}

func (d *Dispatcher) markBusy() {
	select {
	case <-d.idle:
		d.idle = make(chan struct{})
	default:
	}
}

func (d *Dispatcher) maybeIdleLocked() {
	if len(d.inflight) == 0 && len(d.queued) == 0 {
		select {
		case <-d.idle:
		default:
			close(d.idle)
		}
	}
}
