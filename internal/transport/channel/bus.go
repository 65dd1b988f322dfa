// Package channel is the in-process event queue between the producers
// (scheduler and dispatcher handlers) and the dispatcher's run loop.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/skypad123/ntu-sa-roomsense2-mono/internal/domain"
)

// ErrBufferFull is returned when the queue stays full for the whole emit
// timeout. It signals backpressure and is never fatal to the caller.
var ErrBufferFull = errors.New("event bus buffer full")

// DefaultEmitTimeout bounds how long Emit waits for room in the buffer.
const DefaultEmitTimeout = time.Second

// MetricsSink receives queue depth updates. All methods must be non-blocking.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}

type Option func(*EventBus)

// WithEmitTimeout overrides DefaultEmitTimeout.
func WithEmitTimeout(d time.Duration) Option {
	return func(b *EventBus) {
		b.emitTimeout = d
	}
}

func WithMetrics(sink MetricsSink) Option {
	return func(b *EventBus) {
		b.metrics = sink
	}
}

// EventBus is a bounded FIFO queue safe for many producers and one consumer.
type EventBus struct {
	ch          chan domain.Event
	emitTimeout time.Duration
	metrics     MetricsSink // optional, nil = disabled
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch:          make(chan domain.Event, buffer),
		emitTimeout: DefaultEmitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// Emit enqueues event, waiting at most the emit timeout for buffer space.
func (b *EventBus) Emit(ctx context.Context, event domain.Event) error {
	// fast path: room in the buffer
	select {
	case b.ch <- event:
		b.recordDepth()
		return nil
	default:
	}

	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- event:
		b.recordDepth()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	}
}

// Channel returns the receive side for the dispatcher.
func (b *EventBus) Channel() <-chan domain.Event {
	return b.ch
}

// Len is the number of queued events.
func (b *EventBus) Len() int {
	return len(b.ch)
}

func (b *EventBus) Cap() int {
	return cap(b.ch)
}

func (b *EventBus) recordDepth() {
	if b.metrics == nil {
		return
	}
	size := len(b.ch)
	b.metrics.BufferSizeUpdate(size)
	if c := cap(b.ch); c > 0 {
		b.metrics.BufferSaturationUpdate(float64(size) / float64(c))
	}
}
