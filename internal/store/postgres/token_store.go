package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// TokenStore implements domain.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore creates a TokenStore backed by the given connection pool.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

const tokenSelectCols = `id, symbol, chain, name, decimals, contract_address,
	current_price, dex_price, dex_name, liquidity_usd, last_updated`

// Upsert inserts or refreshes the reference-price side of a token row. The
// DEX-quote columns are owned by UpdateDexQuote and are left untouched on
// conflict.
func (s *TokenStore) Upsert(ctx context.Context, t domain.Token) (domain.Token, error) {
	const query = `
		INSERT INTO tokens (
			id, symbol, chain, name, decimals, contract_address,
			current_price, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, chain) DO UPDATE SET
			name             = EXCLUDED.name,
			decimals         = EXCLUDED.decimals,
			contract_address = EXCLUDED.contract_address,
			current_price    = EXCLUDED.current_price,
			last_updated     = EXCLUDED.last_updated
		RETURNING ` + tokenSelectCols

	id := t.ID
	if id == "" {
		id = uuid.New().String()
	}
	lastUpdated := t.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	row := s.pool.QueryRow(ctx, query,
		id, t.Symbol, t.Chain, t.Name, t.Decimals, t.ContractAddress,
		t.CurrentPrice, lastUpdated,
	)

	stored, err := scanToken(row)
	if err != nil {
		return domain.Token{}, fmt.Errorf("postgres: upsert token %s/%s: %w", t.Symbol, t.Chain, err)
	}
	return stored, nil
}

// UpdateDexQuote overwrites the DEX-quote side of an existing row.
func (s *TokenStore) UpdateDexQuote(ctx context.Context, key domain.TokenKey, priceUSD float64, dexName string, liquidityUSD float64) error {
	const query = `
		UPDATE tokens SET
			dex_price     = $3,
			dex_name      = $4,
			liquidity_usd = $5,
			last_updated  = NOW()
		WHERE symbol = $1 AND chain = $2`

	tag, err := s.pool.Exec(ctx, query, key.Symbol, key.Chain, priceUSD, dexName, liquidityUSD)
	if err != nil {
		return fmt.Errorf("postgres: update dex quote %s/%s: %w", key.Symbol, key.Chain, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get returns the token row for the given key.
func (s *TokenStore) Get(ctx context.Context, key domain.TokenKey) (domain.Token, error) {
	query := `SELECT ` + tokenSelectCols + ` FROM tokens WHERE symbol = $1 AND chain = $2`

	t, err := scanToken(s.pool.QueryRow(ctx, query, key.Symbol, key.Chain))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Token{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Token{}, fmt.Errorf("postgres: get token %s/%s: %w", key.Symbol, key.Chain, err)
	}
	return t, nil
}

// List returns every tracked token ordered by symbol then chain.
func (s *TokenStore) List(ctx context.Context) ([]domain.Token, error) {
	query := `SELECT ` + tokenSelectCols + ` FROM tokens ORDER BY symbol, chain`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tokens: %w", err)
	}
	defer rows.Close()

	var out []domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list tokens rows: %w", err)
	}
	return out, nil
}

func scanToken(row pgx.Row) (domain.Token, error) {
	var t domain.Token
	err := row.Scan(
		&t.ID, &t.Symbol, &t.Chain, &t.Name, &t.Decimals, &t.ContractAddress,
		&t.CurrentPrice, &t.DexPrice, &t.DexName, &t.LiquidityUSD, &t.LastUpdated,
	)
	return t, err
}

var _ domain.TokenStore = (*TokenStore)(nil)
