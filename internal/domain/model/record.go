package model

import (
	"fmt"
	"strings"
	"time"
)

// Rating bounds.
const (
	MinRating = 1.0
	MaxRating = 5.0

	maxNameLength  = 100
	maxNotesLength = 2000
)

// ServiceRecord is one completed service event attributed to a technician.
// Records are immutable once created.
type ServiceRecord struct {
	ID                string    `json:"id"`
	TechnicianID      string    `json:"technicianId"`
	Date              time.Time `json:"date"`
	ServiceTime       float64   `json:"serviceTime"`       // minutes
	FirstResponseTime float64   `json:"firstResponseTime"` // minutes
	Rating            float64   `json:"rating"`
	Notes             string    `json:"notes,omitempty"`
}

func (r ServiceRecord) input() RecordInput {
	return RecordInput{
		TechnicianID:      r.TechnicianID,
		Date:              r.Date,
		ServiceTime:       r.ServiceTime,
		FirstResponseTime: r.FirstResponseTime,
		Rating:            r.Rating,
		Notes:             r.Notes,
	}
}

// RecordInput carries the user-supplied fields of a new service record.
type RecordInput struct {
	TechnicianID      string
	Date              time.Time
	ServiceTime       float64
	FirstResponseTime float64
	Rating            float64
	Notes             string
}

// Validate reports the first problem with the input, wrapped in ErrInvalidInput.
func (in RecordInput) Validate() error {
	switch {
	case strings.TrimSpace(in.TechnicianID) == "":
		return fmt.Errorf("%w: technician is required", ErrInvalidInput)
	case in.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	case in.ServiceTime <= 0:
		return fmt.Errorf("%w: service time must be greater than zero", ErrInvalidInput)
	case in.FirstResponseTime <= 0:
		return fmt.Errorf("%w: first response time must be greater than zero", ErrInvalidInput)
	case in.Rating < MinRating || in.Rating > MaxRating:
		return fmt.Errorf("%w: rating must be between %g and %g", ErrInvalidInput, MinRating, MaxRating)
	case len(in.Notes) > maxNotesLength:
		return fmt.Errorf("%w: notes must be at most %d characters", ErrInvalidInput, maxNotesLength)
	}
	return nil
}

// Record builds the immutable record for this input.
func (in RecordInput) Record(id string) ServiceRecord {
	return ServiceRecord{
		ID:                id,
		TechnicianID:      strings.TrimSpace(in.TechnicianID),
		Date:              in.Date.UTC(),
		ServiceTime:       in.ServiceTime,
		FirstResponseTime: in.FirstResponseTime,
		Rating:            in.Rating,
		Notes:             strings.TrimSpace(in.Notes),
	}
}

// NormalizeName trims a technician name and checks it.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len([]rune(name)) > maxNameLength {
		return "", fmt.Errorf("%w: name must be at most %d characters", ErrInvalidInput, maxNameLength)
	}
	return name, nil
}
