package model

import "fmt"

// SortKey selects the metric technicians are ranked by.
type SortKey string

// Supported sort keys. The values match the metric JSON field names.
const (
	SortByTotalCalls        SortKey = "totalCalls"
	SortByAvgServiceTime    SortKey = "avgServiceTime"
	SortByFirstResponseTime SortKey = "firstResponseTime"
	SortByRating            SortKey = "rating"
)

// DefaultSortKey is used when no key is requested.
const DefaultSortKey = SortByTotalCalls

// SortKeys lists every supported key in display order.
func SortKeys() []SortKey {
	return []SortKey{SortByTotalCalls, SortByAvgServiceTime, SortByFirstResponseTime, SortByRating}
}

// ParseSortKey maps a query value to a SortKey. Empty selects the default.
func ParseSortKey(v string) (SortKey, error) {
	if v == "" {
		return DefaultSortKey, nil
	}
	for _, k := range SortKeys() {
		if string(k) == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown sort key %q", ErrInvalidInput, v)
}

// Descending reports whether larger values rank higher for this key.
func (k SortKey) Descending() bool {
	return k == SortByTotalCalls || k == SortByRating
}
