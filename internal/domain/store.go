package domain

import (
	"context"
	"time"
)

// ListOpts carries pagination for list queries. Zero Limit means the store's
// default page size.
type ListOpts struct {
	Limit  int
	Offset int
}

// TokenStore persists the latest token state.
type TokenStore interface {
	// Upsert inserts or refreshes the reference-price side of a token row
	// and returns the stored row, including its ID.
	Upsert(ctx context.Context, t Token) (Token, error)

	// UpdateDexQuote overwrites the DEX-quote side of an existing row.
	UpdateDexQuote(ctx context.Context, key TokenKey, priceUSD float64, dexName string, liquidityUSD float64) error

	Get(ctx context.Context, key TokenKey) (Token, error)
	List(ctx context.Context) ([]Token, error)
}

// TokenHistoryStore persists append-only price samples.
type TokenHistoryStore interface {
	AppendBatch(ctx context.Context, points []TokenHistoryPoint) error
	List(ctx context.Context, key TokenKey, since time.Time) ([]TokenHistoryPoint, error)

	// ListBefore returns up to limit points older than cutoff, for archival.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]TokenHistoryPoint, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OpportunityStore persists opportunity lifecycle state.
type OpportunityStore interface {
	Create(ctx context.Context, o Opportunity) error
	Update(ctx context.Context, o Opportunity) error
	UpdateStatus(ctx context.Context, id string, status OpportunityStatus) error

	GetByID(ctx context.Context, id string) (Opportunity, error)

	// GetActive returns the single active row for a route, or ErrNotFound.
	GetActive(ctx context.Context, tokenID string, from, to Chain) (Opportunity, error)

	ListByStatus(ctx context.Context, status OpportunityStatus, opts ListOpts) ([]Opportunity, error)

	// ListExpiredBefore and DeleteExpiredBefore support archive-then-delete
	// cleanup of terminal rows.
	ListExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]Opportunity, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertStore persists per-user alerts.
type AlertStore interface {
	Create(ctx context.Context, a Alert) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Alert, error)
	MarkRead(ctx context.Context, id string) error

	ListReadBefore(ctx context.Context, cutoff time.Time, limit int) ([]Alert, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PreferenceStore persists user alerting preferences.
type PreferenceStore interface {
	Upsert(ctx context.Context, p UserPreference) error
	Get(ctx context.Context, userID string) (UserPreference, error)

	// ListDashboardEnabled returns every preference row whose dashboard
	// switch is on; this is the fan-out audience.
	ListDashboardEnabled(ctx context.Context) ([]UserPreference, error)
}
