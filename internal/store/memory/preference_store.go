package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// PreferenceStore keeps user preferences in a map keyed by user ID.
type PreferenceStore struct {
	mu   sync.RWMutex
	rows map[string]domain.UserPreference
}

// NewPreferenceStore creates an empty PreferenceStore.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{rows: make(map[string]domain.UserPreference)}
}

func (s *PreferenceStore) Upsert(_ context.Context, p domain.UserPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = time.Now().UTC()
	s.rows[p.UserID] = p
	return nil
}

func (s *PreferenceStore) Get(_ context.Context, userID string) (domain.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.rows[userID]
	if !ok {
		return domain.UserPreference{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *PreferenceStore) ListDashboardEnabled(_ context.Context) ([]domain.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.UserPreference
	for _, p := range s.rows {
		if p.Notifications.Dashboard {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

var _ domain.PreferenceStore = (*PreferenceStore)(nil)
