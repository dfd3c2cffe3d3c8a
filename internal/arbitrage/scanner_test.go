package arbitrage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbitrader/arbitrader/internal/domain"
	"github.com/arbitrader/arbitrader/internal/store/memory"
)

type scannerFixture struct {
	scanner   *Scanner
	tokens    *memory.TokenStore
	opps      *memory.OpportunityStore
	gas       *stubGas
	refresher *stubRefresher
	fanout    *stubFanout
	bus       *stubBus
}

// newScannerFixture seeds one profitable route: ETH ethereum->polygon with a
// 3% gap and 5 USD of gas at the default notional.
func newScannerFixture(t *testing.T) *scannerFixture {
	t.Helper()
	ctx := context.Background()

	tokens := memory.NewTokenStore()
	seed := []domain.Token{
		{Symbol: domain.SymbolETH, Chain: domain.ChainEthereum, CurrentPrice: 100},
		{Symbol: domain.SymbolETH, Chain: domain.ChainPolygon, CurrentPrice: 103},
		{Symbol: domain.SymbolMATIC, Chain: domain.ChainPolygon, CurrentPrice: 150},
	}
	for _, tok := range seed {
		_, err := tokens.Upsert(ctx, tok)
		require.NoError(t, err)
	}

	// The ethereum native quote is ETH itself at 100 USD; polygon's is
	// MATIC at 150 USD, matching snapFixture's gas economics.
	gas := &stubGas{prices: map[domain.Chain]float64{
		domain.ChainEthereum: 10,
		domain.ChainPolygon:  20,
	}}

	opps := memory.NewOpportunityStore()
	logger := testLogger()
	builder := NewSnapshotBuilder(tokens, gas, logger)
	evaluator := NewEvaluator(evalConfig(), nil, logger)
	state := NewStateStore(opps, evaluator, logger)
	refresher := &stubRefresher{}
	fanout := &stubFanout{}
	bus := newStubBus()

	return &scannerFixture{
		scanner:   NewScanner(builder, evaluator, state, opps, refresher, fanout, bus, logger),
		tokens:    tokens,
		opps:      opps,
		gas:       gas,
		refresher: refresher,
		fanout:    fanout,
		bus:       bus,
	}
}

func TestScanAllDetectsAndFansOut(t *testing.T) {
	f := newScannerFixture(t)
	ctx := context.Background()

	res := f.scanner.ScanAll(ctx)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Found)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Expired)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, f.refresher.calls)

	require.Len(t, f.fanout.opps, 1)
	assert.Equal(t, domain.SymbolETH, f.fanout.opps[0].TokenSymbol)
	assert.Equal(t, domain.ChainEthereum, f.fanout.opps[0].ChainFrom)
	assert.Equal(t, domain.ChainPolygon, f.fanout.opps[0].ChainTo)

	assert.Equal(t, 1, f.bus.count(domain.ChannelScanResults))
	assert.Equal(t, 1, f.bus.count(domain.ChannelOpportunities))
}

func TestScanAllSecondCycleUpdatesInPlace(t *testing.T) {
	f := newScannerFixture(t)
	ctx := context.Background()

	f.scanner.ScanAll(ctx)
	res := f.scanner.ScanAll(ctx)

	assert.Equal(t, 0, res.Found)
	assert.Equal(t, 1, res.Updated)
	assert.Len(t, f.fanout.opps, 1, "repeat detections do not re-alert")

	active, err := f.opps.ListByStatus(ctx, domain.OpportunityActive, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestScanAllExpiresCollapsedRoutes(t *testing.T) {
	f := newScannerFixture(t)
	ctx := context.Background()

	f.scanner.ScanAll(ctx)

	// Gas spikes far past the gross profit.
	f.gas.prices[domain.ChainEthereum] = 10_000_000

	res := f.scanner.ScanAll(ctx)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 0, res.Found)
	assert.Equal(t, 0, res.Updated)

	active, err := f.opps.ListByStatus(ctx, domain.OpportunityActive, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, active)

	expired, err := f.opps.ListByStatus(ctx, domain.OpportunityExpired, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, expired, 1)
}

func TestScanAllBusySkips(t *testing.T) {
	f := newScannerFixture(t)

	require.True(t, f.scanner.running.CompareAndSwap(false, true))
	defer f.scanner.running.Store(false)

	res := f.scanner.ScanAll(context.Background())
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Found)
	assert.Equal(t, 0, f.refresher.calls, "skipped trigger must not refresh")
	assert.Equal(t, 0, f.bus.count(domain.ChannelScanResults))
}

func TestScanAllRefreshFailureIsRecordedNotFatal(t *testing.T) {
	f := newScannerFixture(t)
	f.refresher.err = assert.AnError

	res := f.scanner.ScanAll(context.Background())
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Found, "scan proceeds on stale data")
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "refresh")
}

func TestSnapshotBuilderSkipsFailedGasChains(t *testing.T) {
	f := newScannerFixture(t)
	f.gas.errs = map[domain.Chain]error{domain.ChainPolygon: assert.AnError}

	snap, err := NewSnapshotBuilder(f.tokens, f.gas, testLogger()).Build(context.Background())
	require.NoError(t, err)

	assert.Contains(t, snap.GasPrices, domain.ChainEthereum)
	assert.NotContains(t, snap.GasPrices, domain.ChainPolygon)
	assert.NotContains(t, snap.GasPrices, domain.ChainBSC)
	assert.InDelta(t, 100.0, snap.NativePrices[domain.ChainEthereum], 1e-9)
	assert.InDelta(t, 150.0, snap.NativePrices[domain.ChainPolygon], 1e-9)
}
