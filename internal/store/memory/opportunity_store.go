package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// OpportunityStore keeps opportunity rows in a map keyed by ID.
type OpportunityStore struct {
	mu   sync.RWMutex
	rows map[string]domain.Opportunity
}

// NewOpportunityStore creates an empty OpportunityStore.
func NewOpportunityStore() *OpportunityStore {
	return &OpportunityStore{rows: make(map[string]domain.Opportunity)}
}

func (s *OpportunityStore) Create(_ context.Context, o domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.rows[o.ID] = o
	return nil
}

func (s *OpportunityStore) Update(_ context.Context, o domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[o.ID]; !ok {
		return domain.ErrNotFound
	}
	s.rows[o.ID] = o
	return nil
}

func (s *OpportunityStore) UpdateStatus(_ context.Context, id string, status domain.OpportunityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	s.rows[id] = o
	return nil
}

func (s *OpportunityStore) GetByID(_ context.Context, id string) (domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.rows[id]
	if !ok {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *OpportunityStore) GetActive(_ context.Context, tokenID string, from, to domain.Chain) (domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.rows {
		if o.Status == domain.OpportunityActive && o.TokenID == tokenID && o.ChainFrom == from && o.ChainTo == to {
			return o, nil
		}
	}
	return domain.Opportunity{}, domain.ErrNotFound
}

func (s *OpportunityStore) ListByStatus(_ context.Context, status domain.OpportunityStatus, opts domain.ListOpts) ([]domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Opportunity
	for _, o := range s.rows {
		if o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return paginate(out, opts), nil
}

func (s *OpportunityStore) ListExpiredBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Opportunity
	for _, o := range s.rows {
		if o.Status == domain.OpportunityExpired && o.UpdatedAt.Before(cutoff) {
			out = append(out, o)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *OpportunityStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, o := range s.rows {
		if o.Status == domain.OpportunityExpired && o.UpdatedAt.Before(cutoff) {
			delete(s.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

func paginate[T any](in []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(in) {
			return nil
		}
		in = in[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(in) {
		in = in[:opts.Limit]
	}
	return in
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
