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

// PreferenceStore implements domain.PreferenceStore using PostgreSQL.
type PreferenceStore struct {
	pool *pgxpool.Pool
}

// NewPreferenceStore creates a PreferenceStore backed by the given pool.
func NewPreferenceStore(pool *pgxpool.Pool) *PreferenceStore {
	return &PreferenceStore{pool: pool}
}

const prefSelectCols = `user_id, email_address, tokens_tracked,
	min_net_profit_usd, max_gas_cost_usd, min_roi_percent, min_score,
	notify_dashboard, notify_email, notify_telegram, notify_discord,
	updated_at`

// Upsert inserts or replaces a user's preference row.
func (s *PreferenceStore) Upsert(ctx context.Context, p domain.UserPreference) error {
	const query = `
		INSERT INTO user_preferences (
			user_id, email_address, tokens_tracked,
			min_net_profit_usd, max_gas_cost_usd, min_roi_percent, min_score,
			notify_dashboard, notify_email, notify_telegram, notify_discord,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			email_address      = EXCLUDED.email_address,
			tokens_tracked     = EXCLUDED.tokens_tracked,
			min_net_profit_usd = EXCLUDED.min_net_profit_usd,
			max_gas_cost_usd   = EXCLUDED.max_gas_cost_usd,
			min_roi_percent    = EXCLUDED.min_roi_percent,
			min_score          = EXCLUDED.min_score,
			notify_dashboard   = EXCLUDED.notify_dashboard,
			notify_email       = EXCLUDED.notify_email,
			notify_telegram    = EXCLUDED.notify_telegram,
			notify_discord     = EXCLUDED.notify_discord,
			updated_at         = EXCLUDED.updated_at`

	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		p.UserID, p.EmailAddress, symbolsToStrings(p.TokensTracked),
		p.Thresholds.MinNetProfitUSD, p.Thresholds.MaxGasCostUSD,
		p.Thresholds.MinROIPercent, p.Thresholds.MinScore,
		p.Notifications.Dashboard, p.Notifications.Email,
		p.Notifications.Telegram, p.Notifications.Discord,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert preference %s: %w", p.UserID, err)
	}
	return nil
}

// Get returns one user's preferences.
func (s *PreferenceStore) Get(ctx context.Context, userID string) (domain.UserPreference, error) {
	query := `SELECT ` + prefSelectCols + ` FROM user_preferences WHERE user_id = $1`

	p, err := scanPreference(s.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserPreference{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.UserPreference{}, fmt.Errorf("postgres: get preference %s: %w", userID, err)
	}
	return p, nil
}

// ListDashboardEnabled returns the fan-out audience.
func (s *PreferenceStore) ListDashboardEnabled(ctx context.Context) ([]domain.UserPreference, error) {
	query := `SELECT ` + prefSelectCols + ` FROM user_preferences WHERE notify_dashboard ORDER BY user_id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list dashboard-enabled preferences: %w", err)
	}
	defer rows.Close()

	var out []domain.UserPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan preference: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: preference rows: %w", err)
	}
	return out, nil
}

func scanPreference(row pgx.Row) (domain.UserPreference, error) {
	var p domain.UserPreference
	var tracked []string
	err := row.Scan(
		&p.UserID, &p.EmailAddress, &tracked,
		&p.Thresholds.MinNetProfitUSD, &p.Thresholds.MaxGasCostUSD,
		&p.Thresholds.MinROIPercent, &p.Thresholds.MinScore,
		&p.Notifications.Dashboard, &p.Notifications.Email,
		&p.Notifications.Telegram, &p.Notifications.Discord,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.UserPreference{}, err
	}
	for _, s := range tracked {
		p.TokensTracked = append(p.TokensTracked, domain.Symbol(s))
	}
	return p, nil
}

func symbolsToStrings(syms []domain.Symbol) []string {
	out := make([]string, 0, len(syms))
	for _, s := range syms {
		out = append(out, string(s))
	}
	return out
}

var _ domain.PreferenceStore = (*PreferenceStore)(nil)
