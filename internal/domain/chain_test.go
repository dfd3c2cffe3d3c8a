package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChain(t *testing.T) {
	for _, c := range SupportedChains() {
		got, err := ParseChain(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseChain("solana")
	assert.ErrorIs(t, err, ErrUnsupportedChain)

	_, err = ParseChain("Ethereum")
	assert.ErrorIs(t, err, ErrUnsupportedChain, "chain identifiers are case sensitive")
}

func TestNativeSymbol(t *testing.T) {
	assert.Equal(t, SymbolETH, ChainEthereum.NativeSymbol())
	assert.Equal(t, SymbolMATIC, ChainPolygon.NativeSymbol())
	assert.Equal(t, SymbolBNB, ChainBSC.NativeSymbol())
}

func TestParseSymbol(t *testing.T) {
	for _, s := range SupportedSymbols() {
		got, err := ParseSymbol(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseSymbol("DOGE")
	assert.ErrorIs(t, err, ErrUnsupportedToken)
}

func TestSymbolStable(t *testing.T) {
	assert.True(t, SymbolUSDT.Stable())
	assert.True(t, SymbolUSDC.Stable())
	assert.False(t, SymbolETH.Stable())
}

func TestPreferenceTracks(t *testing.T) {
	all := UserPreference{}
	assert.True(t, all.Tracks(SymbolETH), "empty list tracks everything")

	some := UserPreference{TokensTracked: []Symbol{SymbolETH, SymbolUSDT}}
	assert.True(t, some.Tracks(SymbolUSDT))
	assert.False(t, some.Tracks(SymbolBNB))
}
