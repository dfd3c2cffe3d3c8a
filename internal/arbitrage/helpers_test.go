package arbitrage

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubGas struct {
	prices map[domain.Chain]float64
	errs   map[domain.Chain]error
}

func (g *stubGas) GasPrice(_ context.Context, chain domain.Chain) (float64, error) {
	if err, ok := g.errs[chain]; ok {
		return 0, err
	}
	gwei, ok := g.prices[chain]
	if !ok {
		return 0, domain.ErrUnsupportedChain
	}
	return gwei, nil
}

type stubScorer struct {
	score float64
	err   error
	calls int
}

func (s *stubScorer) Score(_ context.Context, _ Evaluation) (float64, error) {
	s.calls++
	return s.score, s.err
}

type stubRefresher struct {
	calls int
	err   error
}

func (r *stubRefresher) RefreshPrices(_ context.Context) error {
	r.calls++
	return r.err
}

type stubFanout struct {
	mu   sync.Mutex
	opps []domain.Opportunity
}

func (f *stubFanout) Notify(_ context.Context, opp domain.Opportunity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opps = append(f.opps, opp)
}

type stubBus struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func newStubBus() *stubBus {
	return &stubBus{msgs: make(map[string][][]byte)}
}

func (b *stubBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs[channel] = append(b.msgs[channel], payload)
	return nil
}

func (b *stubBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *stubBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs[channel])
}

// evalConfig prices the canonical test route ETH ethereum->polygon at
// exactly 2 USD outbound and 3 USD inbound gas.
func evalConfig() EvaluatorConfig {
	return EvaluatorConfig{
		TradeNotionalUSD: 1000,
		GasUnits: map[domain.Chain]GasUnits{
			domain.ChainEthereum: {Outbound: 2_000_000, Inbound: 500_000},
			domain.ChainPolygon:  {Outbound: 800_000, Inbound: 1_000_000},
		},
		Thresholds: AnomalyThresholds{
			MaxSpreadPercent:  5000,
			MaxDexCexRatio:    1.5,
			MinGasProfitRatio: 0.0001,
		},
	}
}

func snapFixture() *Context {
	eth := domain.Token{ID: "tok-eth-ethereum", Symbol: domain.SymbolETH, Chain: domain.ChainEthereum, CurrentPrice: 100}
	ethPoly := domain.Token{ID: "tok-eth-polygon", Symbol: domain.SymbolETH, Chain: domain.ChainPolygon, CurrentPrice: 103}

	return &Context{
		Tokens: map[domain.TokenKey]domain.Token{
			eth.Key():     eth,
			ethPoly.Key(): ethPoly,
		},
		GasPrices: map[domain.Chain]float64{
			domain.ChainEthereum: 10,
			domain.ChainPolygon:  20,
		},
		NativePrices: map[domain.Chain]float64{
			domain.ChainEthereum: 100,
			domain.ChainPolygon:  150,
		},
		BuiltAt: time.Now().UTC(),
	}
}
