package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL. The
// partial unique index on (token_id, chain_from, chain_to) WHERE status =
// 'active' enforces the one-live-row-per-route rule at the database level.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, token_id, token_symbol, chain_from, chain_to,
	price_from, price_to, price_diff, price_diff_percent, volume_usd,
	gas_cost_usd, gas_outbound_usd, gas_inbound_usd,
	estimated_profit_usd, net_profit_usd, roi_percent, score,
	anomaly_flags, status, detected_at, updated_at`

// Create stores a new opportunity row.
func (s *OpportunityStore) Create(ctx context.Context, o domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, token_id, token_symbol, chain_from, chain_to,
			price_from, price_to, price_diff, price_diff_percent, volume_usd,
			gas_cost_usd, gas_outbound_usd, gas_inbound_usd,
			estimated_profit_usd, net_profit_usd, roi_percent, score,
			anomaly_flags, status, detected_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21
		)`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.TokenID, o.TokenSymbol, o.ChainFrom, o.ChainTo,
		o.PriceFrom, o.PriceTo, o.PriceDiff, o.PriceDiffPercent, o.VolumeUSD,
		o.GasCostUSD, o.GasOutboundUSD, o.GasInboundUSD,
		o.EstimatedProfitUSD, o.NetProfitUSD, o.ROIPercent, o.Score,
		flagsOrEmpty(o.AnomalyFlags), o.Status, o.DetectedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create opportunity %s: %w", o.ID, err)
	}
	return nil
}

// Update overwrites an existing row by ID.
func (s *OpportunityStore) Update(ctx context.Context, o domain.Opportunity) error {
	const query = `
		UPDATE opportunities SET
			token_id             = $2,
			token_symbol         = $3,
			chain_from           = $4,
			chain_to             = $5,
			price_from           = $6,
			price_to             = $7,
			price_diff           = $8,
			price_diff_percent   = $9,
			volume_usd           = $10,
			gas_cost_usd         = $11,
			gas_outbound_usd     = $12,
			gas_inbound_usd      = $13,
			estimated_profit_usd = $14,
			net_profit_usd       = $15,
			roi_percent          = $16,
			score                = $17,
			anomaly_flags        = $18,
			status               = $19,
			detected_at          = $20,
			updated_at           = $21
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		o.ID, o.TokenID, o.TokenSymbol, o.ChainFrom, o.ChainTo,
		o.PriceFrom, o.PriceTo, o.PriceDiff, o.PriceDiffPercent, o.VolumeUSD,
		o.GasCostUSD, o.GasOutboundUSD, o.GasInboundUSD,
		o.EstimatedProfitUSD, o.NetProfitUSD, o.ROIPercent, o.Score,
		flagsOrEmpty(o.AnomalyFlags), o.Status, o.DetectedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update opportunity %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatus moves a row to a new lifecycle state.
func (s *OpportunityStore) UpdateStatus(ctx context.Context, id string, status domain.OpportunityStatus) error {
	const query = `UPDATE opportunities SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("postgres: update opportunity status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID returns one row by its ID.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE id = $1`

	o, err := scanOpportunity(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("postgres: get opportunity %s: %w", id, err)
	}
	return o, nil
}

// GetActive returns the single active row for a route, or ErrNotFound.
func (s *OpportunityStore) GetActive(ctx context.Context, tokenID string, from, to domain.Chain) (domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM opportunities
		WHERE status = 'active' AND token_id = $1 AND chain_from = $2 AND chain_to = $3`

	o, err := scanOpportunity(s.pool.QueryRow(ctx, query, tokenID, from, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("postgres: get active opportunity: %w", err)
	}
	return o, nil
}

// ListByStatus returns rows in one lifecycle state, most recently updated
// first.
func (s *OpportunityStore) ListByStatus(ctx context.Context, status domain.OpportunityStatus, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM opportunities
		WHERE status = $1
		ORDER BY updated_at DESC`
	args := []any{status}

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities by status %s: %w", status, err)
	}
	return collectOpportunities(rows)
}

// ListExpiredBefore returns up to limit expired rows last touched before
// cutoff, for archival.
func (s *OpportunityStore) ListExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM opportunities
		WHERE status = 'expired' AND updated_at < $1
		ORDER BY updated_at`
	args := []any{cutoff}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired opportunities: %w", err)
	}
	return collectOpportunities(rows)
}

// DeleteExpiredBefore removes expired rows last touched before cutoff.
func (s *OpportunityStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM opportunities WHERE status = 'expired' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete expired opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var o domain.Opportunity
	err := row.Scan(
		&o.ID, &o.TokenID, &o.TokenSymbol, &o.ChainFrom, &o.ChainTo,
		&o.PriceFrom, &o.PriceTo, &o.PriceDiff, &o.PriceDiffPercent, &o.VolumeUSD,
		&o.GasCostUSD, &o.GasOutboundUSD, &o.GasInboundUSD,
		&o.EstimatedProfitUSD, &o.NetProfitUSD, &o.ROIPercent, &o.Score,
		&o.AnomalyFlags, &o.Status, &o.DetectedAt, &o.UpdatedAt,
	)
	return o, err
}

func collectOpportunities(rows pgx.Rows) ([]domain.Opportunity, error) {
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return out, nil
}

// flagsOrEmpty keeps the anomaly_flags column NOT NULL friendly.
func flagsOrEmpty(flags []string) []string {
	if flags == nil {
		return []string{}
	}
	return flags
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
