package aggregator

import (
	"iter"
	"sort"
	"strings"

	"go-sniper/models"
)

// Predicate selects scan results.
type Predicate func(r models.ScanResult) bool

// MatchText matches results whose target or workspace contains term,
// case-insensitively. An empty term matches everything.
func MatchText(term string) Predicate {
	term = strings.ToLower(strings.TrimSpace(term))
	return func(r models.ScanResult) bool {
		if term == "" {
			return true
		}
		return strings.Contains(strings.ToLower(r.Target), term) ||
			strings.Contains(strings.ToLower(r.Workspace), term)
	}
}

// InWorkspace matches results of the named workspace.
func InWorkspace(name string) Predicate {
	return func(r models.ScanResult) bool {
		return r.Workspace == name
	}
}

// WithStatus matches results in the given status.
func WithStatus(status models.ScanStatus) Predicate {
	return func(r models.ScanResult) bool {
		return r.Status == status
	}
}

// WithMode matches results produced by the given mode.
func WithMode(mode models.ScanMode) Predicate {
	return func(r models.ScanResult) bool {
		return r.Mode == mode
	}
}

// All matches results accepted by every predicate. Nil predicates are skipped.
func All(preds ...Predicate) Predicate {
	return func(r models.ScanResult) bool {
		for _, p := range preds {
			if p != nil && !p(r) {
				return false
			}
		}
		return true
	}
}

// Query returns the results matching pred, newest first. Each iteration
// takes a fresh snapshot, so the sequence can be ranged over repeatedly.
func (s *Store) Query(pred Predicate) iter.Seq[models.ScanResult] {
	if pred == nil {
		pred = All()
	}
	return func(yield func(models.ScanResult) bool) {
		for _, r := range s.snapshot(pred) {
			if !yield(r) {
				return
			}
		}
	}
}

func (s *Store) snapshot(pred Predicate) []models.ScanResult {
	s.mu.RLock()
	out := make([]models.ScanResult, 0, len(s.results))
	for _, r := range s.results {
		c := r.Clone()
		if pred(c) {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
