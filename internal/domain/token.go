package domain

import "time"

// Token is the latest known state of one (symbol, chain) pair: the reference
// price from the aggregator plus the best DEX quote, when one exists.
type Token struct {
	ID              string
	Symbol          Symbol
	Chain           Chain
	Name            string
	Decimals        int
	ContractAddress string

	// CurrentPrice is the reference (aggregator) USD price.
	CurrentPrice float64

	// DexPrice, DexName and LiquidityUSD describe the deepest DEX pair seen
	// for the token. Zero values mean no usable DEX quote.
	DexPrice     float64
	DexName      string
	LiquidityUSD float64

	LastUpdated time.Time
}

// Key returns the identity the stores deduplicate on.
func (t Token) Key() TokenKey {
	return TokenKey{Symbol: t.Symbol, Chain: t.Chain}
}

// TokenKey is the (symbol, chain) identity of a token row.
type TokenKey struct {
	Symbol Symbol
	Chain  Chain
}

// TokenHistoryPoint is one observed price sample, kept for charting and
// model training. Rows are append-only and pruned by retention.
type TokenHistoryPoint struct {
	ID          int64
	Symbol      Symbol
	Chain       Chain
	PriceUSD    float64
	Source      string
	CollectedAt time.Time
}
