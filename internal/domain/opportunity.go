package domain

import "time"

// OpportunityStatus is the lifecycle state of a detected opportunity.
type OpportunityStatus string

const (
	OpportunityActive   OpportunityStatus = "active"
	OpportunityExpired  OpportunityStatus = "expired"
	OpportunityExecuted OpportunityStatus = "executed"
)

// Opportunity is a persisted cross-chain price gap. At most one active row
// exists per (TokenID, ChainFrom, ChainTo); repeated detections of the same
// route update that row in place.
type Opportunity struct {
	ID          string
	TokenID     string
	TokenSymbol Symbol
	ChainFrom   Chain
	ChainTo     Chain

	PriceFrom        float64
	PriceTo          float64
	PriceDiff        float64
	PriceDiffPercent float64

	// VolumeUSD is the trade notional the economics were computed for.
	VolumeUSD float64

	GasCostUSD     float64
	GasOutboundUSD float64
	GasInboundUSD  float64

	// EstimatedProfitUSD is gross profit before gas; NetProfitUSD is after.
	EstimatedProfitUSD float64
	NetProfitUSD       float64

	// ROIPercent is nil when the notional was zero.
	ROIPercent *float64

	// Score is the oracle confidence in [0, 1]. Zero when scoring was
	// skipped or the oracle was unreachable.
	Score float64

	AnomalyFlags []string

	Status     OpportunityStatus
	DetectedAt time.Time
	UpdatedAt  time.Time
}

// Route returns a human-readable route label used in alerts and logs.
func (o Opportunity) Route() string {
	return string(o.TokenSymbol) + " " + string(o.ChainFrom) + "->" + string(o.ChainTo)
}
