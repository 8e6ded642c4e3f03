// Package ingest consumes service record events from Kafka and stores them
// through the application service.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/techrank/internal/adapters/mq/queue"
	"github.com/okian/techrank/internal/adapters/mq/worker"
	"github.com/okian/techrank/internal/adapters/repository"
	"github.com/okian/techrank/internal/domain/model"
	"github.com/okian/techrank/pkg/logger"
	"github.com/okian/techrank/pkg/metrics"
	"github.com/segmentio/kafka-go"
)

const (
	defaultWorkers    = 4
	defaultBuffer     = 256
	fetchRetryDelay   = time.Second
	readerMinBytes    = 10e3 // 10KB
	readerMaxBytes    = 10e6 // 10MB
	readerCommitEvery = time.Second
)

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordSink stores a service record under an idempotency key. The bool
// reports a replay of a key that was already stored.
type RecordSink interface {
	AddServiceRecord(ctx context.Context, key string, in model.RecordInput) (model.ServiceRecord, bool, error)
}

// Config locates the topic.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewKafkaReader builds a consumer-group reader for cfg.
func NewKafkaReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       readerMinBytes,
		MaxBytes:       readerMaxBytes,
		CommitInterval: readerCommitEvery,
	})
}

// Stats counts what the consumer has done since it started.
type Stats struct {
	Running    bool  `json:"running"`
	Workers    int   `json:"workers"`
	Buffered   int   `json:"buffered"`
	Processed  int64 `json:"processed"`
	Duplicates int64 `json:"duplicates"`
	Rejected   int64 `json:"rejected"`
	Failed     int64 `json:"failed"`
}

// Consumer fetches messages on one goroutine and hands them to a worker pool.
// A message is committed once it is stored, recognised as a replay, or found
// unusable. Store failures leave it uncommitted so the group redelivers it.
type Consumer struct {
	reader  Reader
	sink    RecordSink
	workers int
	buffer  int
	logger  logger.Logger

	mu        sync.Mutex
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	cancel    context.CancelFunc
	fetchDone chan struct{}
	running   atomic.Bool

	processed  atomic.Int64
	duplicates atomic.Int64
	rejected   atomic.Int64
	failed     atomic.Int64
}

// NewConsumer wires a reader to a sink.
func NewConsumer(reader Reader, sink RecordSink, opts ...Option) *Consumer {
	c := &Consumer{
		reader:  reader,
		sink:    sink,
		workers: defaultWorkers,
		buffer:  defaultBuffer,
		logger:  logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("ingest")
	return c
}

// Start begins fetching. Workers outlive ctx so that buffered messages can
// still be stored and committed during Shutdown.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running.Load() {
		return ErrRunning
	}

	c.queue = queue.NewInMemoryQueue(queue.WithCapacity(c.buffer))
	c.pool = worker.NewPool(c.workers, c.queue, c, worker.WithLogger(c.logger))
	c.pool.Start(context.WithoutCancel(ctx))

	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.fetchDone = make(chan struct{})
	go c.fetch(fetchCtx, c.queue, c.fetchDone)

	c.running.Store(true)
	c.logger.Info(ctx, "ingest started", logger.Int("workers", c.pool.Size()))
	return nil
}

func (c *Consumer) fetch(ctx context.Context, q *queue.InMemoryQueue, done chan<- struct{}) {
	defer close(done)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			metrics.RecordErrorByComponent("ingest", "fetch")
			c.logger.Error(ctx, "fetch failed", logger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchRetryDelay):
			}
			continue
		}
		if err := q.Enqueue(ctx, msg); err != nil {
			return
		}
	}
}

// Handle stores one delivery. It satisfies worker.Handler.
func (c *Consumer) Handle(ctx context.Context, d queue.Delivery) error { //nolint:gocritic // hugeParam
	msg, err := DecodeMessage(d.Key, d.Value)
	var in model.RecordInput
	if err == nil {
		in, err = msg.Input()
	}
	if err != nil {
		c.rejected.Add(1)
		metrics.RecordIngestMessage("malformed")
		c.logger.Warn(ctx, "dropping malformed message",
			logger.Int64("offset", d.Offset),
			logger.Error(err),
		)
		return c.commit(ctx, d)
	}

	_, replayed, err := c.sink.AddServiceRecord(ctx, msg.EventID, in)
	switch {
	case err == nil && replayed:
		c.duplicates.Add(1)
		metrics.RecordIngestMessage("duplicate")
	case err == nil:
		c.processed.Add(1)
		metrics.RecordIngestMessage("processed")
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, repository.ErrNotFound):
		c.rejected.Add(1)
		metrics.RecordIngestMessage("rejected")
		c.logger.Warn(ctx, "dropping rejected event",
			logger.String("event_id", msg.EventID),
			logger.Error(err),
		)
	default:
		c.failed.Add(1)
		metrics.RecordIngestMessage("failed")
		return fmt.Errorf("store event %s: %w", msg.EventID, err)
	}
	return c.commit(ctx, d)
}

func (c *Consumer) commit(ctx context.Context, d queue.Delivery) error { //nolint:gocritic // hugeParam
	if err := c.reader.CommitMessages(ctx, d); err != nil {
		metrics.RecordErrorByComponent("ingest", "commit")
		return fmt.Errorf("commit offset %d: %w", d.Offset, err)
	}
	return nil
}

// Shutdown stops fetching, lets workers finish what is buffered, then
// closes the reader.
func (c *Consumer) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running.Load() {
		return c.reader.Close()
	}

	c.cancel()
	select {
	case <-c.fetchDone:
	case <-ctx.Done():
	}
	_ = c.queue.Close()
	waitErr := c.pool.Wait(ctx)
	c.running.Store(false)

	closeErr := c.reader.Close()
	c.logger.Info(ctx, "ingest stopped",
		logger.Int64("processed", c.processed.Load()),
		logger.Int64("failed", c.failed.Load()),
	)
	return errors.Join(waitErr, closeErr)
}

// Stats returns current counters.
func (c *Consumer) Stats() Stats {
	s := Stats{
		Running:    c.running.Load(),
		Workers:    c.workers,
		Processed:  c.processed.Load(),
		Duplicates: c.duplicates.Load(),
		Rejected:   c.rejected.Load(),
		Failed:     c.failed.Load(),
	}
	c.mu.Lock()
	if c.queue != nil {
		s.Buffered = c.queue.Len()
	}
	c.mu.Unlock()
	return s
}
