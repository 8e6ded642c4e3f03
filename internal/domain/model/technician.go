// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// Technician is a person whose service performance is tracked and ranked.
//
// The four metric fields are a cache. They are refreshed whenever records
// are added or imported, but ranking always recomputes them from records.
type Technician struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	TotalCalls           int       `json:"totalCalls"`
	AvgServiceTime       float64   `json:"avgServiceTime"`    // minutes
	AvgFirstResponseTime float64   `json:"firstResponseTime"` // minutes
	AvgRating            float64   `json:"rating"`            // 1..5
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Metrics is the aggregate of a technician's service records.
type Metrics struct {
	TotalCalls           int     `json:"totalCalls"`
	AvgServiceTime       float64 `json:"avgServiceTime"`
	AvgFirstResponseTime float64 `json:"firstResponseTime"`
	AvgRating            float64 `json:"rating"`
}

// Metrics returns the cached metric fields.
func (t Technician) Metrics() Metrics {
	return Metrics{
		TotalCalls:           t.TotalCalls,
		AvgServiceTime:       t.AvgServiceTime,
		AvgFirstResponseTime: t.AvgFirstResponseTime,
		AvgRating:            t.AvgRating,
	}
}

// WithMetrics returns a copy of t carrying m.
func (t Technician) WithMetrics(m Metrics) Technician {
	t.TotalCalls = m.TotalCalls
	t.AvgServiceTime = m.AvgServiceTime
	t.AvgFirstResponseTime = m.AvgFirstResponseTime
	t.AvgRating = m.AvgRating
	return t
}

// Dataset is the full persisted state: every technician and every record.
type Dataset struct {
	Technicians    []Technician    `json:"technicians"`
	ServiceRecords []ServiceRecord `json:"serviceRecords"`
}

// Validate checks a dataset before it replaces stored state. Ids must be set
// and unique, names valid, and every record must point at a technician in
// the set and carry values RecordInput.Validate accepts.
func (ds Dataset) Validate() error {
	techs := make(map[string]struct{}, len(ds.Technicians))
	for i, t := range ds.Technicians {
		if t.ID == "" {
			return fmt.Errorf("%w: technician %d has no id", ErrInvalidInput, i)
		}
		if _, dup := techs[t.ID]; dup {
			return fmt.Errorf("%w: duplicate technician id %q", ErrInvalidInput, t.ID)
		}
		if _, err := NormalizeName(t.Name); err != nil {
			return fmt.Errorf("technician %q: %w", t.ID, err)
		}
		techs[t.ID] = struct{}{}
	}
	records := make(map[string]struct{}, len(ds.ServiceRecords))
	for i, r := range ds.ServiceRecords {
		if r.ID == "" {
			return fmt.Errorf("%w: service record %d has no id", ErrInvalidInput, i)
		}
		if _, dup := records[r.ID]; dup {
			return fmt.Errorf("%w: duplicate service record id %q", ErrInvalidInput, r.ID)
		}
		if _, ok := techs[r.TechnicianID]; !ok {
			return fmt.Errorf("%w: service record %q references unknown technician %q", ErrInvalidInput, r.ID, r.TechnicianID)
		}
		if err := r.input().Validate(); err != nil {
			return fmt.Errorf("service record %q: %w", r.ID, err)
		}
		records[r.ID] = struct{}{}
	}
	return nil
}
