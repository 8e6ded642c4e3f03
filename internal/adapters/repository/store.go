// Package repository persists technicians and their service records.
package repository

import (
	"context"

	"github.com/okian/techrank/internal/domain/model"
)

// Store provides read/write access to technicians and service records.
//
// Lists come back in insertion order. Deleting a technician removes its
// records in the same step; a record may only be added for a technician
// that exists.
type Store interface {
	CreateTechnician(ctx context.Context, t model.Technician) error
	// UpdateTechnician overwrites every field of an existing technician.
	// Returns ErrNotFound if the technician is unknown.
	UpdateTechnician(ctx context.Context, t model.Technician) error
	// DeleteTechnician removes the technician and all of its records.
	DeleteTechnician(ctx context.Context, id string) error
	GetTechnician(ctx context.Context, id string) (model.Technician, error)
	ListTechnicians(ctx context.Context) ([]model.Technician, error)

	// AddServiceRecord stores r. Returns ErrNotFound if r.TechnicianID is unknown.
	AddServiceRecord(ctx context.Context, r model.ServiceRecord) error
	GetServiceRecord(ctx context.Context, id string) (model.ServiceRecord, error)
	ListServiceRecords(ctx context.Context) ([]model.ServiceRecord, error)

	// Snapshot returns every technician and record.
	Snapshot(ctx context.Context) (model.Dataset, error)
	// Replace swaps the whole dataset. On error nothing changes.
	Replace(ctx context.Context, ds model.Dataset) error
	Clear(ctx context.Context) error

	Close() error
}
