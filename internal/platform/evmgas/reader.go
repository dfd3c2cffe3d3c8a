// Package evmgas reads current gas prices from per-chain JSON-RPC endpoints
// via go-ethereum's ethclient.
package evmgas

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// Reader holds one RPC client per configured chain.
type Reader struct {
	clients map[domain.Chain]*ethclient.Client
}

// New dials the given JSON-RPC endpoints. Chains with an empty URL are
// skipped; a chain whose endpoint cannot be dialed is a hard error so
// misconfiguration surfaces at startup.
func New(ctx context.Context, endpoints map[domain.Chain]string) (*Reader, error) {
	clients := make(map[domain.Chain]*ethclient.Client, len(endpoints))
	for chain, rawurl := range endpoints {
		if rawurl == "" {
			continue
		}
		ec, err := ethclient.DialContext(ctx, rawurl)
		if err != nil {
			for _, c := range clients {
				c.Close()
			}
			return nil, fmt.Errorf("evmgas: dial %s: %w", chain, err)
		}
		clients[chain] = ec
	}
	return &Reader{clients: clients}, nil
}

// GasPrice returns the node-suggested gas price for the chain, in gwei.
func (r *Reader) GasPrice(ctx context.Context, chain domain.Chain) (float64, error) {
	ec, ok := r.clients[chain]
	if !ok {
		return 0, fmt.Errorf("evmgas: no rpc endpoint for %s: %w", chain, domain.ErrUnsupportedChain)
	}

	wei, err := ec.SuggestGasPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("evmgas: suggest gas price %s: %w", chain, err)
	}

	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9)).Float64()
	return gwei, nil
}

// Chains returns the chains the reader has a live client for.
func (r *Reader) Chains() []domain.Chain {
	out := make([]domain.Chain, 0, len(r.clients))
	for chain := range r.clients {
		out = append(out, chain)
	}
	return out
}

// Close releases all RPC connections.
func (r *Reader) Close() {
	for _, ec := range r.clients {
		ec.Close()
	}
}
