package arbitrage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbitrader/arbitrader/internal/domain"
)

func TestEvaluateProfitableRoute(t *testing.T) {
	scorer := &stubScorer{score: 0.8}
	e := NewEvaluator(evalConfig(), scorer, testLogger())
	snap := snapFixture()

	ev, err := e.Evaluate(context.Background(), domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snap, Options{})
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.InDelta(t, 10.0, ev.TradeTokenAmount, 1e-9)
	assert.InDelta(t, 3.0, ev.PriceDiffPercent, 1e-9)
	assert.InDelta(t, 2.0, ev.GasOutboundUSD, 1e-9)
	assert.InDelta(t, 3.0, ev.GasInboundUSD, 1e-9)
	assert.InDelta(t, 5.0, ev.GasCostUSD, 1e-9)
	assert.InDelta(t, 30.0, ev.GrossProfitUSD, 1e-9)
	assert.InDelta(t, 25.0, ev.NetProfitUSD, 1e-9)
	require.NotNil(t, ev.ROIPercent)
	assert.InDelta(t, 2.5, *ev.ROIPercent, 1e-9)
	assert.True(t, ev.Profitable)
	assert.Equal(t, 0.8, ev.Score)
	assert.Equal(t, 1, scorer.calls)
	assert.Empty(t, ev.AnomalyFlags)
}

func TestNetProfitIsGrossMinusGas(t *testing.T) {
	e := NewEvaluator(evalConfig(), nil, testLogger())
	snap := snapFixture()

	ev, err := e.Evaluate(context.Background(), domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snap, Options{})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.InDelta(t, ev.GrossProfitUSD-ev.GasCostUSD, ev.NetProfitUSD, 1e-12)
}

func TestEvaluateMissingInputs(t *testing.T) {
	e := NewEvaluator(evalConfig(), nil, testLogger())
	ctx := context.Background()

	t.Run("destination token absent", func(t *testing.T) {
		snap := snapFixture()
		delete(snap.Tokens, domain.TokenKey{Symbol: domain.SymbolETH, Chain: domain.ChainPolygon})
		ev, err := e.Evaluate(ctx, domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snap, Options{})
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("non-positive source price", func(t *testing.T) {
		snap := snapFixture()
		tok := snap.Tokens[domain.TokenKey{Symbol: domain.SymbolETH, Chain: domain.ChainEthereum}]
		tok.CurrentPrice = 0
		snap.Tokens[tok.Key()] = tok
		ev, err := e.Evaluate(ctx, domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snap, Options{})
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("gas price missing", func(t *testing.T) {
		snap := snapFixture()
		delete(snap.GasPrices, domain.ChainPolygon)
		ev, err := e.Evaluate(ctx, domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snap, Options{})
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("native price missing", func(t *testing.T) {
		snap := snapFixture()
		delete(snap.NativePrices, domain.ChainEthereum)
		ev, err := e.Evaluate(ctx, domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snap, Options{})
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("no gas units for chain", func(t *testing.T) {
		snap := snapFixture()
		ev, err := e.Evaluate(ctx, domain.SymbolETH, domain.ChainEthereum, domain.ChainBSC, snap, Options{})
		require.NoError(t, err)
		assert.Nil(t, ev)
	})
}

func TestEvaluateUnprofitableRoute(t *testing.T) {
	scorer := &stubScorer{score: 0.9}
	e := NewEvaluator(evalConfig(), scorer, testLogger())
	snap := snapFixture()

	// Reversed route: destination is cheaper.
	ev, err := e.Evaluate(context.Background(), domain.SymbolETH, domain.ChainPolygon, domain.ChainEthereum, snap, Options{})
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.False(t, ev.Profitable)
	assert.Less(t, ev.NetProfitUSD, 0.0)
	assert.Equal(t, 0.0, ev.Score, "unprofitable evaluations are not scored")
	assert.Equal(t, 0, scorer.calls)
}

func TestEvaluateSpreadOutlierDiscarded(t *testing.T) {
	e := NewEvaluator(evalConfig(), nil, testLogger())
	snap := snapFixture()
	tok := snap.Tokens[domain.TokenKey{Symbol: domain.SymbolETH, Chain: domain.ChainPolygon}]
	tok.CurrentPrice = 100_000 // +99900% vs the 100 USD source leg
	snap.Tokens[tok.Key()] = tok

	ev, err := e.Evaluate(context.Background(), domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snap, Options{})
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestEvaluateDexDivergenceDiscarded(t *testing.T) {
	e := NewEvaluator(evalConfig(), nil, testLogger())

	for _, leg := range []domain.Chain{domain.ChainEthereum, domain.ChainPolygon} {
		snap := snapFixture()
		tok := snap.Tokens[domain.TokenKey{Symbol: domain.SymbolETH, Chain: leg}]
		tok.DexPrice = tok.CurrentPrice * 2
		snap.Tokens[tok.Key()] = tok

		ev, err := e.Evaluate(context.Background(), domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snap, Options{})
		require.NoError(t, err)
		assert.Nil(t, ev, "divergent %s leg must disqualify", leg)
	}
}

func TestEvaluateGasProfitOutlierDiscarded(t *testing.T) {
	cfg := evalConfig()
	cfg.GasUnits = map[domain.Chain]GasUnits{
		domain.ChainEthereum: {Outbound: 1, Inbound: 1},
		domain.ChainPolygon:  {Outbound: 1, Inbound: 1},
	}
	e := NewEvaluator(cfg, nil, testLogger())

	ev, err := e.Evaluate(context.Background(), domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snapFixture(), Options{})
	require.NoError(t, err)
	assert.Nil(t, ev, "microscopic gas against a real gross profit is a data glitch")
}

func TestEvaluateScorerFailureNonFatal(t *testing.T) {
	scorer := &stubScorer{err: errors.New("oracle down")}
	e := NewEvaluator(evalConfig(), scorer, testLogger())

	ev, err := e.Evaluate(context.Background(), domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snapFixture(), Options{})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 0.0, ev.Score)
	assert.True(t, ev.Profitable)
}

func TestEvaluateScoreClamped(t *testing.T) {
	for raw, want := range map[float64]float64{1.7: 1.0, -0.5: 0.0, 0.42: 0.42} {
		e := NewEvaluator(evalConfig(), &stubScorer{score: raw}, testLogger())
		ev, err := e.Evaluate(context.Background(), domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snapFixture(), Options{})
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, want, ev.Score)
	}
}

func TestEvaluateSkipScoring(t *testing.T) {
	scorer := &stubScorer{score: 0.9}
	e := NewEvaluator(evalConfig(), scorer, testLogger())

	ev, err := e.Evaluate(context.Background(), domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snapFixture(), Options{SkipScoring: true})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 0.0, ev.Score)
	assert.Equal(t, 0, scorer.calls)
}

func TestEvaluateNotionalOverride(t *testing.T) {
	e := NewEvaluator(evalConfig(), nil, testLogger())

	ev, err := e.Evaluate(context.Background(), domain.SymbolETH, domain.ChainEthereum, domain.ChainPolygon, snapFixture(), Options{TradeNotionalUSD: 500})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.InDelta(t, 5.0, ev.TradeTokenAmount, 1e-9)
	assert.InDelta(t, 15.0, ev.GrossProfitUSD, 1e-9)
	assert.InDelta(t, 10.0, ev.NetProfitUSD, 1e-9)
	require.NotNil(t, ev.ROIPercent)
	assert.InDelta(t, 2.0, *ev.ROIPercent, 1e-9)
}
