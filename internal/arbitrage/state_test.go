package arbitrage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbitrader/arbitrader/internal/domain"
	"github.com/arbitrader/arbitrader/internal/store/memory"
)

func newStateFixture(t *testing.T) (*StateStore, *memory.OpportunityStore, *Evaluator) {
	t.Helper()
	opps := memory.NewOpportunityStore()
	e := NewEvaluator(evalConfig(), nil, testLogger())
	return NewStateStore(opps, e, testLogger()), opps, e
}

func evalFixture(e *Evaluator, t *testing.T, snap *Context) *Evaluation {
	t.Helper()
	ev, err := e.Evaluate(context.Background(), domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snap, Options{})
	require.NoError(t, err)
	require.NotNil(t, ev)
	return ev
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	state, opps, e := newStateFixture(t)
	ctx := context.Background()
	snap := snapFixture()

	res, err := state.Upsert(ctx, evalFixture(e, t, snap), snap)
	require.NoError(t, err)
	require.NotNil(t, res.Opportunity)
	assert.True(t, res.IsNew)
	firstID := res.Opportunity.ID
	firstDetected := res.Opportunity.DetectedAt

	// A second detection of the same route refreshes the row in place.
	tok := snap.Tokens[domain.TokenKey{Symbol: domain.SymbolETH, Chain: domain.ChainPolygon}]
	tok.CurrentPrice = 104
	snap.Tokens[tok.Key()] = tok

	res2, err := state.Upsert(ctx, evalFixture(e, t, snap), snap)
	require.NoError(t, err)
	require.NotNil(t, res2.Opportunity)
	assert.False(t, res2.IsNew)
	assert.Equal(t, firstID, res2.Opportunity.ID)
	assert.Equal(t, firstDetected, res2.Opportunity.DetectedAt)
	assert.InDelta(t, 104.0, res2.Opportunity.PriceTo, 1e-9)

	active, err := opps.ListByStatus(ctx, domain.OpportunityActive, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, active, 1, "one active row per route")
}

func TestUpsertUnprofitableExpiresExisting(t *testing.T) {
	state, opps, e := newStateFixture(t)
	ctx := context.Background()
	snap := snapFixture()

	res, err := state.Upsert(ctx, evalFixture(e, t, snap), snap)
	require.NoError(t, err)
	require.True(t, res.IsNew)

	// Collapse the gap so the same route evaluates unprofitable.
	tok := snap.Tokens[domain.TokenKey{Symbol: domain.SymbolETH, Chain: domain.ChainPolygon}]
	tok.CurrentPrice = 100.01
	snap.Tokens[tok.Key()] = tok

	ev, err := e.Evaluate(ctx, domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snap, Options{})
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.False(t, ev.Profitable)

	res2, err := state.Upsert(ctx, ev, snap)
	require.NoError(t, err)
	assert.Nil(t, res2.Opportunity)
	assert.False(t, res2.IsNew)

	got, err := opps.GetByID(ctx, res.Opportunity.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OpportunityExpired, got.Status)
}

func TestUpsertUnprofitableWithoutExistingIsNoop(t *testing.T) {
	state, opps, e := newStateFixture(t)
	ctx := context.Background()
	snap := snapFixture()

	ev, err := e.Evaluate(ctx, domain.SymbolETH, domain.ChainPolygon, domain.ChainEthereum, snap, Options{})
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.False(t, ev.Profitable)

	res, err := state.Upsert(ctx, ev, snap)
	require.NoError(t, err)
	assert.Nil(t, res.Opportunity)

	active, err := opps.ListByStatus(ctx, domain.OpportunityActive, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestIsStillProfitable(t *testing.T) {
	state, _, e := newStateFixture(t)
	ctx := context.Background()
	snap := snapFixture()

	res, err := state.Upsert(ctx, evalFixture(e, t, snap), snap)
	require.NoError(t, err)
	opp := *res.Opportunity

	assert.True(t, state.IsStillProfitable(ctx, opp, snap))

	// Gap collapsed.
	collapsed := snapFixture()
	tok := collapsed.Tokens[domain.TokenKey{Symbol: domain.SymbolETH, Chain: domain.ChainPolygon}]
	tok.CurrentPrice = 100.01
	collapsed.Tokens[tok.Key()] = tok
	assert.False(t, state.IsStillProfitable(ctx, opp, collapsed))

	// Missing data fails closed.
	missing := snapFixture()
	delete(missing.GasPrices, domain.ChainPolygon)
	assert.False(t, state.IsStillProfitable(ctx, opp, missing))
}

func TestIsStillProfitableUsesRecordedNotional(t *testing.T) {
	state, _, e := newStateFixture(t)
	ctx := context.Background()
	snap := snapFixture()

	// At a tiny recorded notional the 5 USD gas overwhelms the 3% gap.
	ev, err := e.Evaluate(ctx, domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snap, Options{TradeNotionalUSD: 100})
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.False(t, ev.Profitable, "3 USD gross against 5 USD gas")

	opp := domain.Opportunity{
		TokenSymbol: domain.SymbolETH,
		ChainFrom:   domain.ChainEthereum,
		ChainTo:     domain.ChainPolygon,
		VolumeUSD:   100,
	}
	assert.False(t, state.IsStillProfitable(ctx, opp, snap))

	opp.VolumeUSD = 1000
	assert.True(t, state.IsStillProfitable(ctx, opp, snap))
}
