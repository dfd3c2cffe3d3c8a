package domain

import "time"

// ReferenceQuote is one token's aggregator prices across chains, as returned
// by the reference price source in a single fetch.
type ReferenceQuote struct {
	Symbol      Symbol
	ChainPrices map[Chain]float64
	FetchedAt   time.Time
}

// DexQuote is the best on-chain quote found for one token contract.
type DexQuote struct {
	PriceUSD     float64
	LiquidityUSD float64
	Venue        string
}
