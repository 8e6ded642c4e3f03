package service

import (
	"context"
	"fmt"

	"github.com/okian/techrank/internal/adapters/repository"
	"github.com/okian/techrank/internal/domain/model"
	"github.com/okian/techrank/internal/domain/ranking"
	"github.com/okian/techrank/pkg/logger"
	"github.com/okian/techrank/pkg/metrics"
)

// DefaultTechnicians are created on first start when seeding is enabled.
var DefaultTechnicians = []string{
	"Victor Santos",
	"João Rangel",
	"Fabricio",
	"Felipe Lopes",
	"Marcel Neves",
	"Leonardo",
	"Matheus Carvalho",
	"Matheus Medina",
}

// AddTechnician creates a technician with zero metrics.
func (s *Service) AddTechnician(ctx context.Context, name string) (model.Technician, error) {
	name, err := model.NormalizeName(name)
	if err != nil {
		return model.Technician{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	store, err := s.repo()
	if err != nil {
		return model.Technician{}, err
	}

	return s.createTechnician(ctx, store, name)
}

func (s *Service) createTechnician(ctx context.Context, store repository.Store, name string) (model.Technician, error) {
	now := s.now().UTC()
	t := model.Technician{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateTechnician(ctx, t); err != nil {
		return model.Technician{}, err
	}
	s.logger.Debug(ctx, "technician added", logger.String("id", t.ID))
	return t, nil
}

// UpdateTechnician renames a technician. Metrics and CreatedAt are kept.
func (s *Service) UpdateTechnician(ctx context.Context, id, name string) (model.Technician, error) {
	name, err := model.NormalizeName(name)
	if err != nil {
		return model.Technician{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	store, err := s.repo()
	if err != nil {
		return model.Technician{}, err
	}

	t, err := store.GetTechnician(ctx, id)
	if err != nil {
		return model.Technician{}, err
	}
	t.Name = name
	t.UpdatedAt = s.now().UTC()
	if err := store.UpdateTechnician(ctx, t); err != nil {
		return model.Technician{}, err
	}
	return t, nil
}

// DeleteTechnician removes a technician and every record attributed to it.
func (s *Service) DeleteTechnician(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	store, err := s.repo()
	if err != nil {
		return err
	}

	if err := store.DeleteTechnician(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "technician deleted", logger.String("id", id))
	return nil
}

// Technician returns one technician with metrics computed for window.
func (s *Service) Technician(ctx context.Context, id string, window *model.DateWindow) (model.Technician, error) {
	store, err := s.repo()
	if err != nil {
		return model.Technician{}, err
	}
	t, err := store.GetTechnician(ctx, id)
	if err != nil {
		return model.Technician{}, err
	}
	records, err := store.ListServiceRecords(ctx)
	if err != nil {
		return model.Technician{}, err
	}
	return t.WithMetrics(ranking.ComputeMetrics(id, records, window)), nil
}

// Technicians returns every technician, in creation order, with metrics
// computed for window.
func (s *Service) Technicians(ctx context.Context, window *model.DateWindow) ([]model.Technician, error) {
	store, err := s.repo()
	if err != nil {
		return nil, err
	}
	snap, err := store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ranking.LiveMetrics(snap.Technicians, snap.ServiceRecords, window), nil
}

// refreshTechnician rewrites the cached all-time metrics of one technician.
// Caller holds s.writeMu.
func (s *Service) refreshTechnician(ctx context.Context, store repository.Store, id string) error {
	t, err := store.GetTechnician(ctx, id)
	if err != nil {
		return err
	}
	records, err := store.ListServiceRecords(ctx)
	if err != nil {
		return err
	}
	t = t.WithMetrics(ranking.ComputeMetrics(id, records, nil))
	t.UpdatedAt = s.now().UTC()
	return store.UpdateTechnician(ctx, t)
}

// seed creates the configured technicians when the store has none.
// Caller holds s.mu.
func (s *Service) seed(ctx context.Context) error {
	if len(s.seedNames) == 0 {
		return nil
	}
	existing, err := s.store.ListTechnicians(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, name := range s.seedNames {
		name, err := model.NormalizeName(name)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if _, err := s.createTechnician(ctx, s.store, name); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	metrics.UpdateTechniciansTotal(len(s.seedNames))
	s.logger.Info(ctx, "seeded default technicians", logger.Int("count", len(s.seedNames)))
	return nil
}
