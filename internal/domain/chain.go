package domain

import "fmt"

// Chain identifies a supported EVM network. Values arriving from config,
// HTTP requests, or upstream APIs must pass through ParseChain before they
// are used as map keys anywhere else in the codebase.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainPolygon  Chain = "polygon"
	ChainBSC      Chain = "bsc"
)

// SupportedChains returns all chains the scanner understands, in a stable
// order suitable for deterministic sweeps.
func SupportedChains() []Chain {
	return []Chain{ChainEthereum, ChainPolygon, ChainBSC}
}

// ParseChain validates a raw chain identifier.
func ParseChain(s string) (Chain, error) {
	switch Chain(s) {
	case ChainEthereum, ChainPolygon, ChainBSC:
		return Chain(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedChain, s)
}

// Valid reports whether c is a known chain.
func (c Chain) Valid() bool {
	_, err := ParseChain(string(c))
	return err == nil
}

// NativeSymbol returns the gas token of the chain. Gas legs are priced in
// this token's USD quote.
func (c Chain) NativeSymbol() Symbol {
	switch c {
	case ChainEthereum:
		return SymbolETH
	case ChainPolygon:
		return SymbolMATIC
	case ChainBSC:
		return SymbolBNB
	}
	return ""
}

// Symbol identifies a tracked token. Like Chain it is a closed set.
type Symbol string

const (
	SymbolETH   Symbol = "ETH"
	SymbolUSDT  Symbol = "USDT"
	SymbolUSDC  Symbol = "USDC"
	SymbolBNB   Symbol = "BNB"
	SymbolMATIC Symbol = "MATIC"
)

// SupportedSymbols returns all tracked token symbols in sweep order.
func SupportedSymbols() []Symbol {
	return []Symbol{SymbolETH, SymbolUSDT, SymbolUSDC, SymbolBNB, SymbolMATIC}
}

// ParseSymbol validates a raw token symbol.
func ParseSymbol(s string) (Symbol, error) {
	switch Symbol(s) {
	case SymbolETH, SymbolUSDT, SymbolUSDC, SymbolBNB, SymbolMATIC:
		return Symbol(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedToken, s)
}

// Valid reports whether s is a known symbol.
func (s Symbol) Valid() bool {
	_, err := ParseSymbol(string(s))
	return err == nil
}

// Stable reports whether the token is a USD stablecoin. Stablecoin quotes
// outside a sane band around 1.0 are rejected during ingestion.
func (s Symbol) Stable() bool {
	return s == SymbolUSDT || s == SymbolUSDC
}
