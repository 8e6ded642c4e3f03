// Package worker runs the goroutines that drain the ingest queue.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/techrank/internal/adapters/mq/queue"
	"github.com/okian/techrank/pkg/logger"
	"github.com/okian/techrank/pkg/metrics"
)

const (
	defaultWorkerCount  = 4
	poolShutdownTimeout = 30 * time.Second
)

// Handler processes one delivery. Returned errors are logged; deciding
// whether the delivery is acknowledged is up to the handler.
type Handler interface {
	Handle(ctx context.Context, d queue.Delivery) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, d queue.Delivery) error

func (f HandlerFunc) Handle(ctx context.Context, d queue.Delivery) error { return f(ctx, d) } //nolint:gocritic // hugeParam

// Source is where workers receive deliveries from.
type Source interface {
	Dequeue() <-chan queue.Delivery
}

// Worker drains a Source until it closes or the context ends.
type Worker struct {
	source  Source
	handler Handler
	name    string

	done   chan struct{}
	logger logger.Logger
}

// NewWorker creates a worker.
func NewWorker(source Source, handler Handler, opts ...Option) *Worker {
	w := &Worker{
		source:  source,
		handler: handler,
		name:    "worker",
		done:    make(chan struct{}),
		logger:  logger.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes deliveries until the source closes or ctx is canceled.
// Deliveries already buffered when the source closes are still handled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-w.source.Dequeue():
			if !ok {
				return
			}
			if err := w.handler.Handle(ctx, d); err != nil {
				w.logger.Error(ctx, "error handling delivery",
					logger.String("topic", d.Topic),
					logger.Int("partition", d.Partition),
					logger.Int64("offset", d.Offset),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Pool manages a fixed set of workers over one source.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates count workers. A count below one selects the default.
func NewPool(count int, source Source, handler Handler, opts ...Option) *Pool {
	if count < 1 {
		count = defaultWorkerCount
	}
	probe := &Worker{logger: logger.NewNop()}
	for _, opt := range opts {
		opt(probe)
	}
	p := &Pool{
		workers: make([]*Worker, count),
		logger:  probe.logger.Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := make([]Option, 0, len(opts)+1)
		wopts = append(wopts, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewWorker(source, handler, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
	metrics.UpdateIngestWorkerCount(len(p.workers))
}

// Wait blocks until every worker has returned or ctx ends. Close the source
// first so workers drain and stop.
func (p *Pool) Wait(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		metrics.UpdateIngestWorkerCount(0)
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
