package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// AlertStore keeps alert rows in a map keyed by ID.
type AlertStore struct {
	mu   sync.RWMutex
	rows map[string]domain.Alert
}

// NewAlertStore creates an empty AlertStore.
func NewAlertStore() *AlertStore {
	return &AlertStore{rows: make(map[string]domain.Alert)}
}

func (s *AlertStore) Create(_ context.Context, a domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[a.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.rows[a.ID] = a
	return nil
}

func (s *AlertStore) ListByUser(_ context.Context, userID string, opts domain.ListOpts) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Alert
	for _, a := range s.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

func (s *AlertStore) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.IsRead = true
	s.rows[id] = a
	return nil
}

func (s *AlertStore) ListReadBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Alert
	for _, a := range s.rows {
		if a.IsRead && a.CreatedAt.Before(cutoff) {
			out = append(out, a)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *AlertStore) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, a := range s.rows {
		if a.IsRead && a.CreatedAt.Before(cutoff) {
			delete(s.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

var _ domain.AlertStore = (*AlertStore)(nil)
