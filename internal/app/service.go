// Package service owns the technician and service record state and exposes
// the operations used by the HTTP API, the ingest consumer and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/techrank/internal/adapters/mq/ingest"
	"github.com/okian/techrank/internal/adapters/repository"
	"github.com/okian/techrank/internal/adapters/transfer"
	"github.com/okian/techrank/internal/domain/dedupe"
	"github.com/okian/techrank/pkg/logger"
	"github.com/okian/techrank/pkg/metrics"
)

const defaultDedupeSize = 50000

// Service implements the API dependencies for the ranking system.
type Service struct {
	// mu guards the lifecycle fields below.
	mu sync.RWMutex
	// writeMu serializes mutations so a record insert and the cache refresh
	// that follows it are not interleaved with other writes.
	writeMu sync.Mutex

	store     repository.Store
	ownsStore bool
	deduper   dedupe.Deduper
	archiver  transfer.Archiver
	consumer  *ingest.Consumer

	// Configuration
	storeDriver   string
	storeDSN      string
	storeOpts     []repository.Option
	dedupeSize    int
	seedNames     []string
	ingestConfig  ingest.Config
	ingestWorkers int
	ingestReader  ingest.Reader
	now           func() time.Time
	newID         func() string

	started bool
	logger  logger.Logger
}

// New constructs a Service. Nothing is opened until Start.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver: repository.DriverMemory,
		dedupeSize:  defaultDedupeSize,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, seeds default technicians into an empty store and
// starts ingest when configured. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting technician ranking service...")

	if s.store == nil {
		st, err := repository.Open(ctx, s.storeDriver, s.storeDSN, s.storeOpts...)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = st
		s.ownsStore = true
		s.logger.Info(ctx, "store opened", logger.String("driver", s.storeDriver))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	if err := s.seed(ctx); err != nil {
		_ = s.closeStore(ctx)
		return err
	}

	reader := s.ingestReader
	if reader == nil && len(s.ingestConfig.Brokers) > 0 {
		reader = ingest.NewKafkaReader(s.ingestConfig)
	}
	s.started = true

	if reader != nil {
		c := ingest.NewConsumer(reader, ingestSink{s},
			ingest.WithWorkers(s.ingestWorkers),
			ingest.WithLogger(s.logger),
		)
		if err := c.Start(ctx); err != nil {
			s.started = false
			_ = s.closeStore(ctx)
			return fmt.Errorf("start ingest: %w", err)
		}
		s.consumer = c
	}

	s.logger.Info(ctx, "technician ranking service started",
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("archive", s.archiver != nil),
		logger.Bool("ingest", s.consumer != nil),
	)
	return nil
}

// Stop drains ingest, then closes the store if the service opened it.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.RLock()
	started, consumer := s.started, s.consumer
	s.mu.RUnlock()
	if !started {
		return nil
	}

	s.logger.Info(ctx, "stopping technician ranking service...")

	// Ingest workers call back into the service, so they stop before the
	// lifecycle lock is taken.
	var errs []error
	if consumer != nil {
		if err := consumer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop ingest: %w", err))
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeStore(ctx); err != nil {
		errs = append(errs, err)
	}
	s.consumer = nil
	s.started = false
	s.logger.Info(ctx, "technician ranking service stopped")
	return errors.Join(errs...)
}

// closeStore releases a store the service opened. Caller holds s.mu.
func (s *Service) closeStore(ctx context.Context) error {
	if !s.ownsStore || s.store == nil {
		return nil
	}
	err := s.store.Close()
	if err != nil {
		s.logger.Error(ctx, "failed to close store", logger.Error(err))
		err = fmt.Errorf("close store: %w", err)
	}
	s.store = nil
	s.ownsStore = false
	return err
}

// repo returns the open store.
func (s *Service) repo() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Stats describes the service for monitoring.
type Stats struct {
	Started        bool          `json:"started"`
	Technicians    int           `json:"technicians"`
	ServiceRecords int           `json:"serviceRecords"`
	DedupeSize     int64         `json:"dedupeSize"`
	Archive        bool          `json:"archive"`
	Ingest         *ingest.Stats `json:"ingest,omitempty"`
}

// GetStats returns service statistics and refreshes the matching gauges.
// The lifecycle lock is held throughout so Stop cannot close the store
// mid-read.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Started: s.started, Archive: s.archiver != nil}
	if !stats.Started {
		return stats, nil
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return stats, err
	}
	stats.Technicians = len(snap.Technicians)
	stats.ServiceRecords = len(snap.ServiceRecords)
	stats.DedupeSize = s.deduper.Size()
	if s.consumer != nil {
		is := s.consumer.Stats()
		stats.Ingest = &is
		metrics.UpdateIngestQueueSize(is.Buffered)
	}

	metrics.UpdateTechniciansTotal(stats.Technicians)
	metrics.UpdateServiceRecordsTotal(stats.ServiceRecords)
	return stats, nil
}
