package service

import (
	"time"

	"github.com/okian/techrank/internal/adapters/mq/ingest"
	"github.com/okian/techrank/internal/adapters/repository"
	"github.com/okian/techrank/internal/adapters/transfer"
	"github.com/okian/techrank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects an open store. The caller keeps ownership and closes it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithStoreDriver selects the store Start opens when none was injected.
func WithStoreDriver(driver, dsn string, opts ...repository.Option) Option {
	return func(s *Service) {
		s.storeDriver = driver
		s.storeDSN = dsn
		s.storeOpts = opts
	}
}

// WithArchiver enables archiving exports.
func WithArchiver(a transfer.Archiver) Option {
	return func(s *Service) {
		s.archiver = a
	}
}

// WithDedupeSize sets how many idempotency keys are remembered. Zero keeps
// every key; negative sizes are ignored.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how technician and record ids are made.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithSeedTechnicians sets the technicians created when Start finds an
// empty store.
func WithSeedTechnicians(names []string) Option {
	return func(s *Service) {
		s.seedNames = names
	}
}

// WithIngest consumes service record events from Kafka.
func WithIngest(cfg ingest.Config, workers int) Option {
	return func(s *Service) {
		s.ingestConfig = cfg
		s.ingestWorkers = workers
	}
}

// WithIngestReader consumes from r instead of building a Kafka reader.
func WithIngestReader(r ingest.Reader, workers int) Option {
	return func(s *Service) {
		s.ingestReader = r
		s.ingestWorkers = workers
	}
}
