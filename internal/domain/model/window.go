package model

import (
	"fmt"
	"strings"
	"time"
)

// dateOnly is the layout accepted for calendar dates.
const dateOnly = "2006-01-02"

// DateWindow restricts which records count toward metrics.
// Both ends are inclusive. A nil *DateWindow means all time.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within [Start, End].
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ParseDateWindow builds a window from two optional strings. Both empty
// yields nil. Each value may be RFC3339 or YYYY-MM-DD (midnight UTC).
func ParseDateWindow(start, end string) (*DateWindow, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("%w: start and end must be given together", ErrInvalidInput)
	}
	s, err := ParseTime(start)
	if err != nil {
		return nil, fmt.Errorf("invalid start: %w", err)
	}
	e, err := ParseTime(end)
	if err != nil {
		return nil, fmt.Errorf("invalid end: %w", err)
	}
	if e.Before(s) {
		return nil, fmt.Errorf("%w: end must not be before start", ErrInvalidInput)
	}
	return &DateWindow{Start: s, End: e}, nil
}

// ParseTime accepts RFC3339 (with or without fractional seconds) or a
// calendar date, which is read as midnight UTC.
func ParseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is not RFC3339 or YYYY-MM-DD", ErrInvalidInput, v)
}
