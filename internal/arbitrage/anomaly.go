package arbitrage

import "github.com/arbitrader/arbitrader/internal/domain"

// Anomaly flag names. Flags mark evaluations whose inputs look like data
// glitches rather than tradable gaps.
const (
	FlagSpreadOutlier     = "spread-outlier"
	FlagGasProfitOutlier  = "gas-vs-profit-outlier"
	FlagFromDexDivergence = "from-dex-cex-divergence"
	FlagToDexDivergence   = "to-dex-cex-divergence"
)

// severeFlags lists the flags that disqualify a candidate outright. Today
// every known flag is severe; the split exists so advisory flags can be
// added without changing callers.
var severeFlags = map[string]bool{
	FlagSpreadOutlier:     true,
	FlagGasProfitOutlier:  true,
	FlagFromDexDivergence: true,
	FlagToDexDivergence:   true,
}

// HasSevereFlag reports whether any flag in the list is disqualifying.
func HasSevereFlag(flags []string) bool {
	for _, f := range flags {
		if severeFlags[f] {
			return true
		}
	}
	return false
}

// AnomalyThresholds tune the screening rules.
type AnomalyThresholds struct {
	// MaxSpreadPercent flags spreads whose magnitude exceeds this value.
	MaxSpreadPercent float64

	// MaxDexCexRatio flags a leg when its DEX and reference prices diverge
	// by more than this factor in either direction.
	MaxDexCexRatio float64

	// MinGasProfitRatio flags evaluations whose gas cost is implausibly
	// small relative to gross profit.
	MinGasProfitRatio float64
}

// detectAnomalies screens an evaluation against its leg tokens and returns
// the flags that fired, in a stable order.
func detectAnomalies(ev *Evaluation, from, to domain.Token, th AnomalyThresholds) []string {
	var flags []string

	pct := ev.PriceDiffPercent
	if pct < 0 {
		pct = -pct
	}
	if pct > th.MaxSpreadPercent {
		flags = append(flags, FlagSpreadOutlier)
	}

	if diverged(from, th.MaxDexCexRatio) {
		flags = append(flags, FlagFromDexDivergence)
	}
	if diverged(to, th.MaxDexCexRatio) {
		flags = append(flags, FlagToDexDivergence)
	}

	if ev.GrossProfitUSD > 0 && ev.GasCostUSD < ev.GrossProfitUSD*th.MinGasProfitRatio {
		flags = append(flags, FlagGasProfitOutlier)
	}

	return flags
}

// diverged reports whether the token's DEX and reference prices disagree by
// more than maxRatio in either direction. Tokens without a DEX quote never
// diverge.
func diverged(t domain.Token, maxRatio float64) bool {
	if t.DexPrice <= 0 || t.CurrentPrice <= 0 {
		return false
	}
	ratio := t.DexPrice / t.CurrentPrice
	if ratio < 1 {
		ratio = 1 / ratio
	}
	return ratio > maxRatio
}
