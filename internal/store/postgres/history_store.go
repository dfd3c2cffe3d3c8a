package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// HistoryStore implements domain.TokenHistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a HistoryStore backed by the given connection pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// AppendBatch inserts price samples in one round trip using a pgx batch.
func (s *HistoryStore) AppendBatch(ctx context.Context, points []domain.TokenHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	const query = `
		INSERT INTO token_history (symbol, chain, price_usd, source, collected_at)
		VALUES ($1, $2, $3, $4, $5)`

	batch := &pgx.Batch{}
	for _, p := range points {
		collectedAt := p.CollectedAt
		if collectedAt.IsZero() {
			collectedAt = time.Now().UTC()
		}
		batch.Queue(query, p.Symbol, p.Chain, p.PriceUSD, p.Source, collectedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: append history batch: %w", err)
		}
	}
	return nil
}

// List returns samples for a token since the given time, oldest first.
func (s *HistoryStore) List(ctx context.Context, key domain.TokenKey, since time.Time) ([]domain.TokenHistoryPoint, error) {
	const query = `
		SELECT id, symbol, chain, price_usd, source, collected_at
		FROM token_history
		WHERE symbol = $1 AND chain = $2 AND collected_at >= $3
		ORDER BY collected_at`

	rows, err := s.pool.Query(ctx, query, key.Symbol, key.Chain, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history %s/%s: %w", key.Symbol, key.Chain, err)
	}
	return collectHistory(rows)
}

// ListBefore returns up to limit samples older than cutoff, oldest first.
func (s *HistoryStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TokenHistoryPoint, error) {
	query := `
		SELECT id, symbol, chain, price_usd, source, collected_at
		FROM token_history
		WHERE collected_at < $1
		ORDER BY collected_at`
	args := []any{cutoff}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history before: %w", err)
	}
	return collectHistory(rows)
}

// DeleteBefore removes samples older than cutoff and reports how many.
func (s *HistoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM token_history WHERE collected_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete history before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectHistory(rows pgx.Rows) ([]domain.TokenHistoryPoint, error) {
	defer rows.Close()

	var out []domain.TokenHistoryPoint
	for rows.Next() {
		var p domain.TokenHistoryPoint
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Chain, &p.PriceUSD, &p.Source, &p.CollectedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan history point: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: history rows: %w", err)
	}
	return out, nil
}

var _ domain.TokenHistoryStore = (*HistoryStore)(nil)
