package pipeline

import (
	"sort"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// median returns the median of vals. It panics on an empty slice; callers
// guard for that.
func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// reconcileChainPrices filters one token's cross-chain quotes down to the
// set worth persisting. Quotes far from the cross-chain median are data
// glitches from the aggregator, and stablecoin quotes outside the stable
// band are depegs or glitches either way not prices to arb against.
func (p *Pipeline) reconcileChainPrices(sym domain.Symbol, prices map[domain.Chain]float64) map[domain.Chain]float64 {
	positive := make(map[domain.Chain]float64, len(prices))
	vals := make([]float64, 0, len(prices))
	for chain, price := range prices {
		if price <= 0 {
			continue
		}
		positive[chain] = price
		vals = append(vals, price)
	}
	if len(positive) == 0 {
		return positive
	}

	out := make(map[domain.Chain]float64, len(positive))
	med := median(vals)
	for chain, price := range positive {
		if len(positive) > 1 && med > 0 {
			ratio := price / med
			if ratio > p.cfg.MedianBandHigh || ratio < p.cfg.MedianBandLow {
				continue
			}
		}
		if sym.Stable() && (price < p.cfg.StableBandMin || price > p.cfg.StableBandMax) {
			continue
		}
		out[chain] = price
	}
	return out
}
