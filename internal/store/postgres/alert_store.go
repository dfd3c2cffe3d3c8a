package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// AlertStore implements domain.AlertStore using PostgreSQL. The opportunity
// summary travels as a JSONB meta column so the dashboard list needs no join.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates an AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

const alertSelectCols = `id, user_id, opportunity_id, type, priority, message,
	meta, is_read, created_at`

// Create stores a new alert row.
func (s *AlertStore) Create(ctx context.Context, a domain.Alert) error {
	const query = `
		INSERT INTO alerts (
			id, user_id, opportunity_id, type, priority, message,
			meta, is_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	meta, err := json.Marshal(a.Meta)
	if err != nil {
		return fmt.Errorf("postgres: marshal alert meta %s: %w", a.ID, err)
	}

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, query,
		a.ID, a.UserID, a.OpportunityID, a.Type, a.Priority, a.Message,
		meta, a.IsRead, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create alert %s: %w", a.ID, err)
	}
	return nil
}

// ListByUser returns a user's alerts, newest first.
func (s *AlertStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Alert, error) {
	query := `SELECT ` + alertSelectCols + `
		FROM alerts
		WHERE user_id = $1
		ORDER BY created_at DESC`
	args := []any{userID}

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
		return nil, fmt.Errorf("postgres: list alerts for %s: %w", userID, err)
	}
	return collectAlerts(rows)
}

// MarkRead flags an alert as read.
func (s *AlertStore) MarkRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark alert read %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListReadBefore returns up to limit read alerts created before cutoff, for
// archival.
func (s *AlertStore) ListReadBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Alert, error) {
	query := `SELECT ` + alertSelectCols + `
		FROM alerts
		WHERE is_read AND created_at < $1
		ORDER BY created_at`
	args := []any{cutoff}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list read alerts before: %w", err)
	}
	return collectAlerts(rows)
}

// DeleteReadBefore removes read alerts created before cutoff.
func (s *AlertStore) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM alerts WHERE is_read AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete read alerts before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectAlerts(rows pgx.Rows) ([]domain.Alert, error) {
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var meta []byte
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.OpportunityID, &a.Type, &a.Priority, &a.Message,
			&meta, &a.IsRead, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan alert: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Meta); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal alert meta %s: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: alert rows: %w", err)
	}
	return out, nil
}

var _ domain.AlertStore = (*AlertStore)(nil)
