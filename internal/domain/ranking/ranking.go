// Package ranking computes technician metrics from service records and orders
// technicians by a chosen metric.
//
// Every function here is pure: inputs are never mutated and nothing is cached
// between calls. Cached metric fields on model.Technician are ignored as
// input; they are always recomputed from records.
package ranking

import (
	"slices"
	"strings"

	"github.com/okian/techrank/internal/domain/model"
)

// Query controls a ranking pass.
type Query struct {
	Window *model.DateWindow
	Search string
	Sort   model.SortKey
}

// ComputeMetrics aggregates the records of one technician, optionally
// restricted to window. An empty selection yields all-zero metrics.
func ComputeMetrics(technicianID string, records []model.ServiceRecord, window *model.DateWindow) model.Metrics {
	var (
		n                      int
		service, resp, ratings float64
	)
	for i := range records {
		r := &records[i]
		if !selected(r, technicianID, window) {
			continue
		}
		n++
		service += r.ServiceTime
		resp += r.FirstResponseTime
		ratings += r.Rating
	}
	if n == 0 {
		return model.Metrics{}
	}
	count := float64(n)
	return model.Metrics{
		TotalCalls:           n,
		AvgServiceTime:       service / count,
		AvgFirstResponseTime: resp / count,
		AvgRating:            ratings / count,
	}
}

// RankTechnicians recomputes each technician's metrics for q.Window, keeps
// names containing q.Search (case-insensitive), and orders the rest by q.Sort.
// Equal keys fall back to technician ID ascending.
func RankTechnicians(technicians []model.Technician, records []model.ServiceRecord, q Query) []model.Technician {
	byTech := groupByTechnician(records, q.Window)
	needle := strings.ToLower(q.Search)

	out := make([]model.Technician, 0, len(technicians))
	for _, t := range technicians {
		if needle != "" && !strings.Contains(strings.ToLower(t.Name), needle) {
			continue
		}
		out = append(out, t.WithMetrics(ComputeMetrics(t.ID, byTech[t.ID], nil)))
	}

	sortKey := q.Sort
	if sortKey == "" {
		sortKey = model.DefaultSortKey
	}
	slices.SortStableFunc(out, func(a, b model.Technician) int {
		if c := compareBy(sortKey, a, b); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// LiveMetrics returns copies of technicians, in their given order, carrying
// metrics recomputed for window.
func LiveMetrics(technicians []model.Technician, records []model.ServiceRecord, window *model.DateWindow) []model.Technician {
	byTech := groupByTechnician(records, window)
	out := make([]model.Technician, len(technicians))
	for i, t := range technicians {
		out[i] = t.WithMetrics(ComputeMetrics(t.ID, byTech[t.ID], nil))
	}
	return out
}

// AggregateOverview summarizes a set of technicians. Calls are summed over
// everyone; the averages only count technicians with at least one call.
func AggregateOverview(technicians []model.Technician) model.Metrics {
	var (
		total, active          int
		service, resp, ratings float64
	)
	for _, t := range technicians {
		total += t.TotalCalls
		if t.TotalCalls <= 0 {
			continue
		}
		active++
		service += t.AvgServiceTime
		resp += t.AvgFirstResponseTime
		ratings += t.AvgRating
	}
	out := model.Metrics{TotalCalls: total}
	if active == 0 {
		return out
	}
	n := float64(active)
	out.AvgServiceTime = service / n
	out.AvgFirstResponseTime = resp / n
	out.AvgRating = ratings / n
	return out
}

// History returns the technician's records within window, newest first.
func History(technicianID string, records []model.ServiceRecord, window *model.DateWindow) []model.ServiceRecord {
	out := make([]model.ServiceRecord, 0)
	for i := range records {
		if selected(&records[i], technicianID, window) {
			out = append(out, records[i])
		}
	}
	slices.SortStableFunc(out, func(a, b model.ServiceRecord) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func selected(r *model.ServiceRecord, technicianID string, window *model.DateWindow) bool {
	if r.TechnicianID != technicianID {
		return false
	}
	return window == nil || window.Contains(r.Date)
}

// groupByTechnician buckets the in-window records per technician so ranking
// is a single pass over records instead of one pass per technician.
func groupByTechnician(records []model.ServiceRecord, window *model.DateWindow) map[string][]model.ServiceRecord {
	out := make(map[string][]model.ServiceRecord)
	for _, r := range records {
		if window != nil && !window.Contains(r.Date) {
			continue
		}
		out[r.TechnicianID] = append(out[r.TechnicianID], r)
	}
	return out
}

// compareBy orders a before b when a ranks higher for key.
func compareBy(key model.SortKey, a, b model.Technician) int {
	switch key {
	case model.SortByAvgServiceTime:
		return cmpFloat(a.AvgServiceTime, b.AvgServiceTime)
	case model.SortByFirstResponseTime:
		return cmpFloat(a.AvgFirstResponseTime, b.AvgFirstResponseTime)
	case model.SortByRating:
		return cmpFloat(b.AvgRating, a.AvgRating)
	default:
		return b.TotalCalls - a.TotalCalls
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
