package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbitrader/arbitrader/internal/domain"
	"github.com/arbitrader/arbitrader/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubRef struct {
	quotes []domain.ReferenceQuote
	err    error
}

func (r *stubRef) FetchPrices(_ context.Context) ([]domain.ReferenceQuote, error) {
	return r.quotes, r.err
}

type stubDex struct {
	quotes map[string]domain.DexQuote
	errs   map[string]error
}

func dexKey(chain domain.Chain, contract string) string {
	return string(chain) + ":" + contract
}

func (d *stubDex) Quote(_ context.Context, chain domain.Chain, contract string) (domain.DexQuote, error) {
	k := dexKey(chain, contract)
	if err, ok := d.errs[k]; ok {
		return domain.DexQuote{}, err
	}
	if q, ok := d.quotes[k]; ok {
		return q, nil
	}
	return domain.DexQuote{}, domain.ErrNoQuote
}

type stubGas struct {
	prices map[domain.Chain]float64
	errs   map[domain.Chain]error
}

func (g *stubGas) GasPrice(_ context.Context, chain domain.Chain) (float64, error) {
	if err, ok := g.errs[chain]; ok {
		return 0, err
	}
	return g.prices[chain], nil
}

type recordingArchiver struct {
	opps    []domain.Opportunity
	alerts  []domain.Alert
	history []domain.TokenHistoryPoint

	oppErr error
}

func (a *recordingArchiver) ArchiveOpportunities(_ context.Context, rows []domain.Opportunity) error {
	if a.oppErr != nil {
		return a.oppErr
	}
	a.opps = append(a.opps, rows...)
	return nil
}

func (a *recordingArchiver) ArchiveAlerts(_ context.Context, rows []domain.Alert) error {
	a.alerts = append(a.alerts, rows...)
	return nil
}

func (a *recordingArchiver) ArchiveHistory(_ context.Context, rows []domain.TokenHistoryPoint) error {
	a.history = append(a.history, rows...)
	return nil
}

type pipelineFixture struct {
	p        *Pipeline
	tokens   *memory.TokenStore
	history  *memory.HistoryStore
	opps     *memory.OpportunityStore
	alerts   *memory.AlertStore
	ref      *stubRef
	dex      *stubDex
	gas      *stubGas
	archiver *recordingArchiver
}

func testConfig() Config {
	return Config{
		Contracts: map[domain.Symbol]map[domain.Chain]string{
			domain.SymbolETH: {
				domain.ChainEthereum: "0xeth-mainnet",
				domain.ChainPolygon:  "0xeth-polygon",
			},
		},
		MinLiquidityUSD:      1000,
		StableBandMin:        0.8,
		StableBandMax:        1.2,
		MedianBandHigh:       20,
		MedianBandLow:        0.05,
		OpportunityRetention: 7 * 24 * time.Hour,
		AlertRetention:       7 * 24 * time.Hour,
		HistoryRetention:     90 * 24 * time.Hour,
	}
}

func newPipelineFixture(cfg Config) *pipelineFixture {
	f := &pipelineFixture{
		tokens:   memory.NewTokenStore(),
		history:  memory.NewHistoryStore(),
		opps:     memory.NewOpportunityStore(),
		alerts:   memory.NewAlertStore(),
		ref:      &stubRef{},
		dex:      &stubDex{quotes: map[string]domain.DexQuote{}, errs: map[string]error{}},
		gas:      &stubGas{prices: map[domain.Chain]float64{}, errs: map[domain.Chain]error{}},
		archiver: &recordingArchiver{},
	}
	f.p = New(cfg, f.tokens, f.history, f.opps, f.alerts, f.ref, f.dex, f.gas, nil, nil, f.archiver, testLogger())
	return f
}

func TestReconcileDropsMedianOutliers(t *testing.T) {
	f := newPipelineFixture(testConfig())

	got := f.p.reconcileChainPrices(domain.SymbolETH, map[domain.Chain]float64{
		domain.ChainEthereum: 100,
		domain.ChainPolygon:  103,
		domain.ChainBSC:      5000, // 48x the median, a feed glitch
	})

	assert.Len(t, got, 2)
	assert.Contains(t, got, domain.ChainEthereum)
	assert.Contains(t, got, domain.ChainPolygon)
	assert.NotContains(t, got, domain.ChainBSC)
}

func TestReconcileStableBand(t *testing.T) {
	f := newPipelineFixture(testConfig())

	got := f.p.reconcileChainPrices(domain.SymbolUSDT, map[domain.Chain]float64{
		domain.ChainEthereum: 1.0,
		domain.ChainPolygon:  0.5,
		domain.ChainBSC:      1.5,
	})

	assert.Equal(t, map[domain.Chain]float64{domain.ChainEthereum: 1.0}, got)
}

func TestReconcileDropsNonPositive(t *testing.T) {
	f := newPipelineFixture(testConfig())

	got := f.p.reconcileChainPrices(domain.SymbolETH, map[domain.Chain]float64{
		domain.ChainEthereum: 100,
		domain.ChainPolygon:  0,
		domain.ChainBSC:      -3,
	})

	assert.Equal(t, map[domain.Chain]float64{domain.ChainEthereum: 100}, got)
}

func TestRefreshPricesPersistsTokensAndHistory(t *testing.T) {
	f := newPipelineFixture(testConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	f.ref.quotes = []domain.ReferenceQuote{{
		Symbol: domain.SymbolETH,
		ChainPrices: map[domain.Chain]float64{
			domain.ChainEthereum: 100,
			domain.ChainPolygon:  103,
		},
		FetchedAt: now,
	}}
	f.dex.quotes[dexKey(domain.ChainEthereum, "0xeth-mainnet")] = domain.DexQuote{
		PriceUSD: 101, LiquidityUSD: 50_000, Venue: "uniswap",
	}
	f.dex.quotes[dexKey(domain.ChainPolygon, "0xeth-polygon")] = domain.DexQuote{
		PriceUSD: 102, LiquidityUSD: 500, Venue: "quickswap", // below the floor
	}

	require.NoError(t, f.p.RefreshPrices(ctx))

	ethMain, err := f.tokens.Get(ctx, domain.TokenKey{Symbol: domain.SymbolETH, Chain: domain.ChainEthereum})
	require.NoError(t, err)
	assert.Equal(t, 100.0, ethMain.CurrentPrice)
	assert.Equal(t, 101.0, ethMain.DexPrice)
	assert.Equal(t, "uniswap", ethMain.DexName)
	assert.Equal(t, 50_000.0, ethMain.LiquidityUSD)

	ethPoly, err := f.tokens.Get(ctx, domain.TokenKey{Symbol: domain.SymbolETH, Chain: domain.ChainPolygon})
	require.NoError(t, err)
	assert.Equal(t, 103.0, ethPoly.CurrentPrice)
	assert.Zero(t, ethPoly.DexPrice, "illiquid quote must be dropped")

	points, err := f.history.List(ctx, domain.TokenKey{Symbol: domain.SymbolETH, Chain: domain.ChainEthereum}, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 100.0, points[0].PriceUSD)
	assert.Equal(t, "reference", points[0].Source)

	st := f.p.Status()
	assert.Equal(t, 2, st.TokensUpdated)
	assert.False(t, st.LastPriceRefresh.IsZero())
}

func TestRefreshPricesGuard(t *testing.T) {
	f := newPipelineFixture(testConfig())

	require.True(t, f.p.refreshing.CompareAndSwap(false, true))
	defer f.p.refreshing.Store(false)

	err := f.p.RefreshPrices(context.Background())
	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)
}

func TestRefreshPricesFetchFailure(t *testing.T) {
	f := newPipelineFixture(testConfig())
	f.ref.err = errors.New("upstream 500")

	err := f.p.RefreshPrices(context.Background())
	require.Error(t, err)

	list, lerr := f.tokens.List(context.Background())
	require.NoError(t, lerr)
	assert.Empty(t, list)
}

func TestRefreshGasPrices(t *testing.T) {
	f := newPipelineFixture(testConfig())
	f.gas.prices[domain.ChainEthereum] = 12
	f.gas.prices[domain.ChainPolygon] = 40
	f.gas.errs[domain.ChainBSC] = errors.New("rpc timeout")

	assert.NoError(t, f.p.RefreshGasPrices(context.Background()), "partial failure is not fatal")

	f.gas.errs[domain.ChainEthereum] = errors.New("rpc timeout")
	f.gas.errs[domain.ChainPolygon] = errors.New("rpc timeout")
	assert.Error(t, f.p.RefreshGasPrices(context.Background()), "all chains failing is")
}

func TestCleanupArchivesThenDeletes(t *testing.T) {
	f := newPipelineFixture(testConfig())
	ctx := context.Background()
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)

	require.NoError(t, f.opps.Create(ctx, domain.Opportunity{
		ID: "opp-old", Status: domain.OpportunityExpired, UpdatedAt: old,
	}))
	require.NoError(t, f.opps.Create(ctx, domain.Opportunity{
		ID: "opp-live", Status: domain.OpportunityActive, UpdatedAt: old,
	}))
	require.NoError(t, f.alerts.Create(ctx, domain.Alert{
		ID: "alert-old", IsRead: true, CreatedAt: old,
	}))
	require.NoError(t, f.alerts.Create(ctx, domain.Alert{
		ID: "alert-unread", IsRead: false, CreatedAt: old,
	}))
	require.NoError(t, f.history.AppendBatch(ctx, []domain.TokenHistoryPoint{
		{Symbol: domain.SymbolETH, Chain: domain.ChainEthereum, PriceUSD: 90, CollectedAt: time.Now().UTC().Add(-100 * 24 * time.Hour)},
		{Symbol: domain.SymbolETH, Chain: domain.ChainEthereum, PriceUSD: 100, CollectedAt: time.Now().UTC()},
	}))

	require.NoError(t, f.p.CleanupOldData(ctx))

	require.Len(t, f.archiver.opps, 1)
	assert.Equal(t, "opp-old", f.archiver.opps[0].ID)
	require.Len(t, f.archiver.alerts, 1)
	assert.Equal(t, "alert-old", f.archiver.alerts[0].ID)
	require.Len(t, f.archiver.history, 1)
	assert.Equal(t, 90.0, f.archiver.history[0].PriceUSD)

	_, err := f.opps.GetByID(ctx, "opp-old")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.opps.GetByID(ctx, "opp-live")
	assert.NoError(t, err, "active rows survive cleanup regardless of age")

	remaining, err := f.alerts.ListByUser(ctx, "", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "alert-unread", remaining[0].ID)
}

func TestCleanupArchiveFailureSkipsDelete(t *testing.T) {
	f := newPipelineFixture(testConfig())
	ctx := context.Background()
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)

	require.NoError(t, f.opps.Create(ctx, domain.Opportunity{
		ID: "opp-old", Status: domain.OpportunityExpired, UpdatedAt: old,
	}))
	f.archiver.oppErr = errors.New("bucket unreachable")

	err := f.p.CleanupOldData(ctx)
	require.Error(t, err)

	_, gerr := f.opps.GetByID(ctx, "opp-old")
	assert.NoError(t, gerr, "rows must survive a failed archive")
}
