package event

import (
	"context"
	"errors"
	"sync"

	"github.com/shandysiswandi/gosampling/internal/sampling/entity"
)

var (
	ErrBusClosed = errors.New("event bus is closed")
	ErrBusFull   = errors.New("event bus is full")
)

// Bus is a bounded in-process queue of assembled-file events. The queue is
// closed only once no send is in flight, and a send blocked on a full queue
// gives up as soon as Close begins.
type Bus struct {
	queue     chan entity.FileAssembledEvent
	done      chan struct{}
	sendMu    sync.RWMutex
	closeOnce sync.Once
}

func NewBus(buffer int) *Bus {
	return &Bus{
		queue: make(chan entity.FileAssembledEvent, max(buffer, 1)),
		done:  make(chan struct{}),
	}
}

// Publish enqueues event, waiting for room until ctx ends.
func (b *Bus) Publish(ctx context.Context, event entity.FileAssembledEvent) error {
	return b.send(ctx, event, true)
}

// Offer enqueues event only if there is room right now.
func (b *Bus) Offer(event entity.FileAssembledEvent) error {
	return b.send(context.Background(), event, false)
}

func (b *Bus) send(ctx context.Context, event entity.FileAssembledEvent, block bool) error {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()

	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}

	if !block {
		select {
		case b.queue <- event:
			return nil
		default:
			return ErrBusFull
		}
	}

	select {
	case b.queue <- event:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports how many events wait for a consumer.
func (b *Bus) Pending() int {
	return len(b.queue)
}

func (b *Bus) Subscribe() <-chan entity.FileAssembledEvent {
	return b.queue
}

// Close stops new sends and releases blocked ones with ErrBusClosed. Queued
// events stay readable until drained.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)

		b.sendMu.Lock()
		defer b.sendMu.Unlock()
		close(b.queue)
	})
}
