package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/techrank/internal/domain/model"
	"github.com/okian/techrank/pkg/metrics"
)

// MemoryStore keeps everything in process memory. Values are copied in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	technicians []model.Technician
	techIndex   map[string]int
	records     []model.ServiceRecord
	recordIndex map[string]int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		techIndex:   make(map[string]int),
		recordIndex: make(map[string]int),
	}
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func (s *MemoryStore) CreateTechnician(_ context.Context, t model.Technician) error {
	defer observe("create_technician", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.techIndex[t.ID]; ok {
		return fmt.Errorf("technician %q: %w", t.ID, ErrDuplicate)
	}
	s.techIndex[t.ID] = len(s.technicians)
	s.technicians = append(s.technicians, t)
	return nil
}

func (s *MemoryStore) UpdateTechnician(_ context.Context, t model.Technician) error {
	defer observe("update_technician", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.techIndex[t.ID]
	if !ok {
		return fmt.Errorf("technician %q: %w", t.ID, ErrNotFound)
	}
	s.technicians[i] = t
	return nil
}

func (s *MemoryStore) DeleteTechnician(_ context.Context, id string) error {
	defer observe("delete_technician", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.techIndex[id]; !ok {
		return fmt.Errorf("technician %q: %w", id, ErrNotFound)
	}
	s.technicians = slices.DeleteFunc(s.technicians, func(t model.Technician) bool { return t.ID == id })
	s.records = slices.DeleteFunc(s.records, func(r model.ServiceRecord) bool { return r.TechnicianID == id })
	s.reindex()
	return nil
}

func (s *MemoryStore) GetTechnician(_ context.Context, id string) (model.Technician, error) {
	defer observe("get_technician", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.techIndex[id]
	if !ok {
		return model.Technician{}, fmt.Errorf("technician %q: %w", id, ErrNotFound)
	}
	return s.technicians[i], nil
}

func (s *MemoryStore) ListTechnicians(_ context.Context) ([]model.Technician, error) {
	defer observe("list_technicians", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.technicians), nil
}

func (s *MemoryStore) AddServiceRecord(_ context.Context, r model.ServiceRecord) error {
	defer observe("add_service_record", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.techIndex[r.TechnicianID]; !ok {
		return fmt.Errorf("technician %q: %w", r.TechnicianID, ErrNotFound)
	}
	if _, ok := s.recordIndex[r.ID]; ok {
		return fmt.Errorf("service record %q: %w", r.ID, ErrDuplicate)
	}
	s.recordIndex[r.ID] = len(s.records)
	s.records = append(s.records, r)
	return nil
}

func (s *MemoryStore) GetServiceRecord(_ context.Context, id string) (model.ServiceRecord, error) {
	defer observe("get_service_record", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.recordIndex[id]
	if !ok {
		return model.ServiceRecord{}, fmt.Errorf("service record %q: %w", id, ErrNotFound)
	}
	return s.records[i], nil
}

func (s *MemoryStore) ListServiceRecords(_ context.Context) ([]model.ServiceRecord, error) {
	defer observe("list_service_records", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.records), nil
}

func (s *MemoryStore) Snapshot(_ context.Context) (model.Dataset, error) {
	defer observe("snapshot", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.Dataset{
		Technicians:    slices.Clone(s.technicians),
		ServiceRecords: slices.Clone(s.records),
	}, nil
}

func (s *MemoryStore) Replace(_ context.Context, ds model.Dataset) error {
	defer observe("replace", time.Now())
	if err := ds.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.technicians = slices.Clone(ds.Technicians)
	s.records = slices.Clone(ds.ServiceRecords)
	s.reindex()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	defer observe("clear", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	s.technicians = nil
	s.records = nil
	s.reindex()
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// reindex rebuilds both id indexes. Caller holds s.mu.
func (s *MemoryStore) reindex() {
	s.techIndex = make(map[string]int, len(s.technicians))
	for i, t := range s.technicians {
		s.techIndex[t.ID] = i
	}
	s.recordIndex = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.recordIndex[r.ID] = i
	}
}
