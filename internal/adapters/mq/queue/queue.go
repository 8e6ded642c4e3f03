// Package queue buffers broker messages between the fetch loop and the
// ingest workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/techrank/pkg/metrics"
	"github.com/segmentio/kafka-go"
)

const defaultQueueCapacity = 256

// Delivery is one fetched, not yet committed broker message.
type Delivery = kafka.Message

// Queue hands deliveries from one producer to many consumers.
type Queue interface {
	// Enqueue blocks until d is buffered, ctx is done or the queue closes.
	Enqueue(ctx context.Context, d Delivery) error

	// Dequeue returns the channel consumers read from. It is closed once the
	// queue is closed and drained.
	Dequeue() <-chan Delivery

	Len() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	deliveries chan Delivery
	capacity   int

	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.deliveries = make(chan Delivery, q.capacity)
	metrics.UpdateIngestQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, d Delivery) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	select {
	case q.deliveries <- d:
		metrics.UpdateIngestQueueSize(len(q.deliveries))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrClosed
	}
}

func (q *InMemoryQueue) Dequeue() <-chan Delivery {
	return q.deliveries
}

func (q *InMemoryQueue) Len() int {
	size := len(q.deliveries)
	metrics.UpdateIngestQueueSize(size)
	return size
}

// Close stops new deliveries. Buffered ones stay readable.
func (q *InMemoryQueue) Close() error {
	// Wake blocked producers before taking the write lock they hold as readers.
	q.signalDone()

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.deliveries)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) signalDone() {
	q.doneOnce.Do(func() { close(q.done) })
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
