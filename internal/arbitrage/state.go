package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// StateStore reconciles evaluations with persisted opportunity rows,
// enforcing the one-active-row-per-route invariant.
type StateStore struct {
	opps      domain.OpportunityStore
	evaluator *Evaluator
	logger    *slog.Logger
}

// NewStateStore creates a StateStore.
func NewStateStore(opps domain.OpportunityStore, evaluator *Evaluator, logger *slog.Logger) *StateStore {
	return &StateStore{
		opps:      opps,
		evaluator: evaluator,
		logger:    logger.With(slog.String("component", "opportunity_state")),
	}
}

// UpsertResult reports what Upsert did. Opportunity is nil when the
// evaluation was unprofitable and no row was touched or the existing row was
// expired.
type UpsertResult struct {
	Opportunity *domain.Opportunity
	IsNew       bool
}

// Upsert reconciles one evaluation with storage. A profitable evaluation
// refreshes the route's active row or creates it; an unprofitable one
// expires any active row for the route.
func (s *StateStore) Upsert(ctx context.Context, ev *Evaluation, snap *Context) (UpsertResult, error) {
	token, ok := snap.Token(ev.TokenSymbol, ev.ChainFrom)
	if !ok {
		return UpsertResult{}, fmt.Errorf("arbitrage: upsert %s %s->%s: source token missing from snapshot",
			ev.TokenSymbol, ev.ChainFrom, ev.ChainTo)
	}

	existing, err := s.opps.GetActive(ctx, token.ID, ev.ChainFrom, ev.ChainTo)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
	default:
		return UpsertResult{}, fmt.Errorf("arbitrage: load active opportunity: %w", err)
	}
	found := err == nil

	now := time.Now().UTC()

	if !ev.Profitable {
		if !found {
			return UpsertResult{}, nil
		}
		if err := s.opps.UpdateStatus(ctx, existing.ID, domain.OpportunityExpired); err != nil {
			return UpsertResult{}, fmt.Errorf("arbitrage: expire opportunity %s: %w", existing.ID, err)
		}
		s.logger.Info("opportunity expired",
			slog.String("id", existing.ID),
			slog.String("route", existing.Route()))
		return UpsertResult{}, nil
	}

	opp := domain.Opportunity{
		TokenID:            token.ID,
		TokenSymbol:        ev.TokenSymbol,
		ChainFrom:          ev.ChainFrom,
		ChainTo:            ev.ChainTo,
		PriceFrom:          ev.PriceFrom,
		PriceTo:            ev.PriceTo,
		PriceDiff:          ev.PriceTo - ev.PriceFrom,
		PriceDiffPercent:   ev.PriceDiffPercent,
		VolumeUSD:          ev.TradeNotionalUSD,
		GasCostUSD:         ev.GasCostUSD,
		GasOutboundUSD:     ev.GasOutboundUSD,
		GasInboundUSD:      ev.GasInboundUSD,
		EstimatedProfitUSD: ev.GrossProfitUSD,
		NetProfitUSD:       ev.NetProfitUSD,
		ROIPercent:         ev.ROIPercent,
		Score:              ev.Score,
		AnomalyFlags:       ev.AnomalyFlags,
		Status:             domain.OpportunityActive,
		UpdatedAt:          now,
	}

	if found {
		opp.ID = existing.ID
		opp.DetectedAt = existing.DetectedAt
		if err := s.opps.Update(ctx, opp); err != nil {
			return UpsertResult{}, fmt.Errorf("arbitrage: update opportunity %s: %w", opp.ID, err)
		}
		return UpsertResult{Opportunity: &opp}, nil
	}

	opp.ID = uuid.New().String()
	opp.DetectedAt = now
	if err := s.opps.Create(ctx, opp); err != nil {
		return UpsertResult{}, fmt.Errorf("arbitrage: create opportunity: %w", err)
	}
	s.logger.Info("opportunity detected",
		slog.String("id", opp.ID),
		slog.String("route", opp.Route()),
		slog.Float64("net_profit_usd", opp.NetProfitUSD))
	return UpsertResult{Opportunity: &opp, IsNew: true}, nil
}

// IsStillProfitable re-prices a persisted opportunity against the current
// snapshot, using its recorded notional and skipping the scoring oracle.
// Any inability to re-evaluate counts as no longer profitable.
func (s *StateStore) IsStillProfitable(ctx context.Context, opp domain.Opportunity, snap *Context) bool {
	ev, err := s.evaluator.Evaluate(ctx, opp.TokenSymbol, opp.ChainFrom, opp.ChainTo, snap, Options{
		SkipScoring:      true,
		TradeNotionalUSD: opp.VolumeUSD,
	})
	if err != nil || ev == nil {
		return false
	}
	return ev.Profitable
}
