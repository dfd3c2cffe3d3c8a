// Package memory provides in-memory implementations of the domain store
// interfaces. They back tests and the database-free demo setup; production
// uses the postgres package.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// TokenStore is a mutex-guarded map keyed by (symbol, chain).
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[domain.TokenKey]domain.Token
}

// NewTokenStore creates an empty TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[domain.TokenKey]domain.Token)}
}

func (s *TokenStore) Upsert(_ context.Context, t domain.Token) (domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := t.Key()
	if existing, ok := s.tokens[key]; ok {
		t.ID = existing.ID
		// The DEX-quote side is owned by UpdateDexQuote.
		t.DexPrice = existing.DexPrice
		t.DexName = existing.DexName
		t.LiquidityUSD = existing.LiquidityUSD
	} else if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.LastUpdated.IsZero() {
		t.LastUpdated = time.Now().UTC()
	}
	s.tokens[key] = t
	return t, nil
}

func (s *TokenStore) UpdateDexQuote(_ context.Context, key domain.TokenKey, priceUSD float64, dexName string, liquidityUSD float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[key]
	if !ok {
		return domain.ErrNotFound
	}
	t.DexPrice = priceUSD
	t.DexName = dexName
	t.LiquidityUSD = liquidityUSD
	s.tokens[key] = t
	return nil
}

func (s *TokenStore) Get(_ context.Context, key domain.TokenKey) (domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[key]
	if !ok {
		return domain.Token{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *TokenStore) List(_ context.Context) ([]domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, t)
	}
	return out, nil
}

var _ domain.TokenStore = (*TokenStore)(nil)
