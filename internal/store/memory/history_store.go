package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// HistoryStore is an append-only in-memory slice of price samples.
type HistoryStore struct {
	mu     sync.RWMutex
	nextID int64
	points []domain.TokenHistoryPoint
}

// NewHistoryStore creates an empty HistoryStore.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{nextID: 1}
}

func (s *HistoryStore) AppendBatch(_ context.Context, points []domain.TokenHistoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		p.ID = s.nextID
		s.nextID++
		s.points = append(s.points, p)
	}
	return nil
}

func (s *HistoryStore) List(_ context.Context, key domain.TokenKey, since time.Time) ([]domain.TokenHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.TokenHistoryPoint
	for _, p := range s.points {
		if p.Symbol == key.Symbol && p.Chain == key.Chain && !p.CollectedAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectedAt.Before(out[j].CollectedAt) })
	return out, nil
}

func (s *HistoryStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.TokenHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.TokenHistoryPoint
	for _, p := range s.points {
		if p.CollectedAt.Before(cutoff) {
			out = append(out, p)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *HistoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.points[:0]
	var deleted int64
	for _, p := range s.points {
		if p.CollectedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	s.points = kept
	return deleted, nil
}

var _ domain.TokenHistoryStore = (*HistoryStore)(nil)
