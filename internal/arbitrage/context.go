// Package arbitrage detects cross-chain price gaps: it builds per-cycle
// market snapshots, evaluates route economics, screens anomalies, and
// maintains opportunity lifecycle state.
package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// Context is one scan cycle's frozen view of the market. Every evaluation in
// a cycle reads from the same Context so all routes are compared against
// consistent prices.
type Context struct {
	// Tokens is keyed by (symbol, chain).
	Tokens map[domain.TokenKey]domain.Token

	// GasPrices holds the latest gas price per chain, in gwei. Chains whose
	// gas read failed are absent.
	GasPrices map[domain.Chain]float64

	// NativePrices holds the USD price of each chain's gas token, derived
	// from Tokens. Chains whose native token has no price are absent.
	NativePrices map[domain.Chain]float64

	BuiltAt time.Time
}

// Token returns the snapshot entry for (sym, chain).
func (c *Context) Token(sym domain.Symbol, chain domain.Chain) (domain.Token, bool) {
	t, ok := c.Tokens[domain.TokenKey{Symbol: sym, Chain: chain}]
	return t, ok
}

// GasSource reads the current gas price of a chain in gwei.
type GasSource interface {
	GasPrice(ctx context.Context, chain domain.Chain) (float64, error)
}

// SnapshotBuilder assembles a Context from the token store and the gas
// source.
type SnapshotBuilder struct {
	tokens domain.TokenStore
	gas    GasSource
	logger *slog.Logger
}

// NewSnapshotBuilder creates a SnapshotBuilder.
func NewSnapshotBuilder(tokens domain.TokenStore, gas GasSource, logger *slog.Logger) *SnapshotBuilder {
	return &SnapshotBuilder{
		tokens: tokens,
		gas:    gas,
		logger: logger.With(slog.String("component", "snapshot_builder")),
	}
}

// Build loads all tokens and reads gas prices for every supported chain.
// A failed token load aborts the build; a failed gas read only leaves that
// chain out of the snapshot, which later disqualifies routes touching it.
func (b *SnapshotBuilder) Build(ctx context.Context) (*Context, error) {
	list, err := b.tokens.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("arbitrage: load tokens: %w", err)
	}

	snap := &Context{
		Tokens:       make(map[domain.TokenKey]domain.Token, len(list)),
		GasPrices:    make(map[domain.Chain]float64),
		NativePrices: make(map[domain.Chain]float64),
		BuiltAt:      time.Now().UTC(),
	}

	for _, t := range list {
		snap.Tokens[t.Key()] = t
	}

	for _, chain := range domain.SupportedChains() {
		gwei, err := b.gas.GasPrice(ctx, chain)
		if err != nil {
			b.logger.Warn("gas price unavailable",
				slog.String("chain", string(chain)),
				slog.String("error", err.Error()))
			continue
		}
		if gwei <= 0 {
			b.logger.Warn("non-positive gas price ignored",
				slog.String("chain", string(chain)),
				slog.Float64("gwei", gwei))
			continue
		}
		snap.GasPrices[chain] = gwei
	}

	for _, chain := range domain.SupportedChains() {
		native, ok := snap.Token(chain.NativeSymbol(), chain)
		if !ok || native.CurrentPrice <= 0 {
			continue
		}
		snap.NativePrices[chain] = native.CurrentPrice
	}

	return snap, nil
}
