package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/okian/techrank/internal/adapters/repository"
	"github.com/okian/techrank/internal/domain/model"
	"github.com/okian/techrank/internal/domain/ranking"
	"github.com/okian/techrank/pkg/logger"
	"github.com/okian/techrank/pkg/metrics"
)

// Record sources, used as a metric label.
const (
	sourceAPI    = "api"
	sourceIngest = "ingest"
)

// Ranked is a technician with its position in a ranking, starting at 1.
type Ranked struct {
	Rank int `json:"rank"`
	model.Technician
}

// AddServiceRecord stores a new record and refreshes the cached metrics of
// its technician. A non-empty key makes the call idempotent: repeating a key
// returns the first record and reports replayed=true.
func (s *Service) AddServiceRecord(ctx context.Context, key string, in model.RecordInput) (model.ServiceRecord, bool, error) {
	return s.addServiceRecord(ctx, sourceAPI, key, in)
}

func (s *Service) addServiceRecord(ctx context.Context, source, key string, in model.RecordInput) (model.ServiceRecord, bool, error) {
	if err := in.Validate(); err != nil {
		return model.ServiceRecord{}, false, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	store, err := s.repo()
	if err != nil {
		return model.ServiceRecord{}, false, err
	}

	id := s.newID()
	key = strings.TrimSpace(key)
	if key != "" {
		rec, replayed, err := s.replay(ctx, store, key, id)
		if err != nil || replayed {
			if replayed {
				metrics.RecordServiceRecordDuplicate(source)
				s.logger.Debug(ctx, "replayed service record",
					logger.String("key", key),
					logger.String("id", rec.ID),
				)
			}
			return rec, replayed, err
		}
	}

	rec := in.Record(id)
	if err := store.AddServiceRecord(ctx, rec); err != nil {
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		return model.ServiceRecord{}, false, err
	}
	metrics.RecordServiceRecordAdded(source)

	if err := s.refreshTechnician(ctx, store, rec.TechnicianID); err != nil {
		metrics.RecordErrorByComponent("service", "cache_refresh")
		s.logger.Warn(ctx, "failed to refresh cached metrics",
			logger.String("technician", rec.TechnicianID),
			logger.Error(err),
		)
	}
	return rec, false, nil
}

// replay claims key for id. When the key already belongs to a stored record
// that record is returned. A key whose record has since been deleted is
// reclaimed for id. Caller holds s.writeMu.
func (s *Service) replay(ctx context.Context, store repository.Store, key, id string) (model.ServiceRecord, bool, error) {
	prev, seen := s.deduper.SeenAndRecord(ctx, key, id)
	if !seen {
		return model.ServiceRecord{}, false, nil
	}
	rec, err := store.GetServiceRecord(ctx, prev)
	switch {
	case err == nil:
		return rec, true, nil
	case errors.Is(err, repository.ErrNotFound):
		s.deduper.Unrecord(ctx, key)
		s.deduper.SeenAndRecord(ctx, key, id)
		return model.ServiceRecord{}, false, nil
	default:
		return model.ServiceRecord{}, false, err
	}
}

// TechnicianHistory returns a technician's records within window, newest first.
func (s *Service) TechnicianHistory(ctx context.Context, id string, window *model.DateWindow) ([]model.ServiceRecord, error) {
	store, err := s.repo()
	if err != nil {
		return nil, err
	}
	if _, err := store.GetTechnician(ctx, id); err != nil {
		return nil, err
	}
	records, err := store.ListServiceRecords(ctx)
	if err != nil {
		return nil, err
	}
	return ranking.History(id, records, window), nil
}

// Rankings orders technicians by q.Sort with metrics computed for q.Window.
func (s *Service) Rankings(ctx context.Context, q ranking.Query) ([]Ranked, error) {
	store, err := s.repo()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	snap, err := store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if q.Sort == "" {
		q.Sort = model.DefaultSortKey
	}

	ordered := ranking.RankTechnicians(snap.Technicians, snap.ServiceRecords, q)
	out := make([]Ranked, len(ordered))
	for i, t := range ordered {
		out[i] = Ranked{Rank: i + 1, Technician: t}
	}
	metrics.RecordRankingComputed(string(q.Sort), float64(time.Since(start).Microseconds())/1000)
	return out, nil
}

// Overview aggregates the metrics of every technician for window.
func (s *Service) Overview(ctx context.Context, window *model.DateWindow) (model.Metrics, error) {
	techs, err := s.Technicians(ctx, window)
	if err != nil {
		return model.Metrics{}, err
	}
	return ranking.AggregateOverview(techs), nil
}

// ingestSink feeds consumer deliveries into the service under their own
// metric label.
type ingestSink struct {
	s *Service
}

func (k ingestSink) AddServiceRecord(ctx context.Context, key string, in model.RecordInput) (model.ServiceRecord, bool, error) {
	return k.s.addServiceRecord(ctx, sourceIngest, key, in)
}
