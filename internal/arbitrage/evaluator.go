package arbitrage

import (
	"context"
	"log/slog"
	"math"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// GasUnits holds the gas unit estimates for the two legs of a cross-chain
// trade on one chain: Outbound covers the swap plus bridge deposit on the
// source chain, Inbound the bridge claim plus swap on the destination.
type GasUnits struct {
	Outbound uint64
	Inbound  uint64
}

// Scorer predicts a confidence score for an evaluation. Implementations may
// fail freely; scoring failures never disqualify a candidate.
type Scorer interface {
	Score(ctx context.Context, ev Evaluation) (float64, error)
}

// EvaluatorConfig holds the trade economics the evaluator prices with.
type EvaluatorConfig struct {
	TradeNotionalUSD float64
	GasUnits         map[domain.Chain]GasUnits
	Thresholds       AnomalyThresholds
}

// Options tweak a single evaluation.
type Options struct {
	// SkipScoring suppresses the scoring oracle call, leaving Score at 0.
	SkipScoring bool

	// TradeNotionalUSD overrides the configured notional when positive.
	TradeNotionalUSD float64
}

// Evaluation is the full economics of one route at one snapshot.
type Evaluation struct {
	TokenSymbol domain.Symbol
	ChainFrom   domain.Chain
	ChainTo     domain.Chain

	PriceFrom        float64
	PriceTo          float64
	PriceDiffPercent float64

	TradeNotionalUSD float64
	TradeTokenAmount float64

	GasOutboundUSD float64
	GasInboundUSD  float64
	GasCostUSD     float64

	GrossProfitUSD float64
	NetProfitUSD   float64

	// ROIPercent is nil when the notional is zero.
	ROIPercent *float64

	Profitable bool
	Score      float64

	AnomalyFlags []string
}

// Evaluator prices candidate routes against a snapshot Context.
type Evaluator struct {
	cfg    EvaluatorConfig
	scorer Scorer
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator. scorer may be nil to disable scoring
// entirely.
func NewEvaluator(cfg EvaluatorConfig, scorer Scorer, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		cfg:    cfg,
		scorer: scorer,
		logger: logger.With(slog.String("component", "evaluator")),
	}
}

// Evaluate prices the route sym/from->to against snap. It returns (nil, nil)
// when the route cannot be evaluated: a leg price or gas input is missing or
// unusable, or a severe anomaly fired. Missing data is routine (the
// ingestion pipeline may simply not have covered the pair yet), so it is not
// an error; callers skip nil evaluations.
func (e *Evaluator) Evaluate(ctx context.Context, sym domain.Symbol, from, to domain.Chain, snap *Context, opts Options) (*Evaluation, error) {
	fromToken, ok := snap.Token(sym, from)
	if !ok || !usablePrice(fromToken.CurrentPrice) {
		return nil, nil
	}
	toToken, ok := snap.Token(sym, to)
	if !ok || !usablePrice(toToken.CurrentPrice) {
		return nil, nil
	}

	notional := e.cfg.TradeNotionalUSD
	if opts.TradeNotionalUSD > 0 {
		notional = opts.TradeNotionalUSD
	}
	if notional <= 0 {
		return nil, nil
	}

	gasOut, ok := e.gasLegUSD(from, snap, true)
	if !ok {
		return nil, nil
	}
	gasIn, ok := e.gasLegUSD(to, snap, false)
	if !ok {
		return nil, nil
	}

	priceFrom := fromToken.CurrentPrice
	priceTo := toToken.CurrentPrice
	tokenAmount := notional / priceFrom

	ev := &Evaluation{
		TokenSymbol:      sym,
		ChainFrom:        from,
		ChainTo:          to,
		PriceFrom:        priceFrom,
		PriceTo:          priceTo,
		PriceDiffPercent: (priceTo - priceFrom) / priceFrom * 100,
		TradeNotionalUSD: notional,
		TradeTokenAmount: tokenAmount,
		GasOutboundUSD:   gasOut,
		GasInboundUSD:    gasIn,
		GasCostUSD:       gasOut + gasIn,
		GrossProfitUSD:   (priceTo - priceFrom) * tokenAmount,
	}
	ev.NetProfitUSD = ev.GrossProfitUSD - ev.GasCostUSD
	ev.Profitable = ev.NetProfitUSD > 0
	roi := ev.NetProfitUSD / notional * 100
	ev.ROIPercent = &roi

	ev.AnomalyFlags = detectAnomalies(ev, fromToken, toToken, e.cfg.Thresholds)
	if HasSevereFlag(ev.AnomalyFlags) {
		e.logger.Warn("candidate discarded by anomaly screen",
			slog.String("token", string(sym)),
			slog.String("chain_from", string(from)),
			slog.String("chain_to", string(to)),
			slog.Any("flags", ev.AnomalyFlags),
			slog.Float64("price_diff_percent", ev.PriceDiffPercent))
		return nil, nil
	}

	if ev.Profitable && !opts.SkipScoring && e.scorer != nil {
		score, err := e.scorer.Score(ctx, *ev)
		if err != nil {
			e.logger.Warn("scoring failed, using zero score",
				slog.String("token", string(sym)),
				slog.String("error", err.Error()))
		} else {
			ev.Score = clampScore(score)
		}
	}

	return ev, nil
}

// gasLegUSD converts one gas leg to USD. It returns ok=false when the
// chain's gas price, native price, or unit estimate is missing.
func (e *Evaluator) gasLegUSD(chain domain.Chain, snap *Context, outbound bool) (float64, bool) {
	units, ok := e.cfg.GasUnits[chain]
	if !ok {
		return 0, false
	}
	gwei, ok := snap.GasPrices[chain]
	if !ok || gwei <= 0 {
		return 0, false
	}
	nativeUSD, ok := snap.NativePrices[chain]
	if !ok || nativeUSD <= 0 {
		return 0, false
	}

	legUnits := units.Inbound
	if outbound {
		legUnits = units.Outbound
	}

	// gwei -> native token amount is a factor of 1e-9 per gas unit.
	return float64(legUnits) * gwei * 1e-9 * nativeUSD, true
}

func usablePrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
