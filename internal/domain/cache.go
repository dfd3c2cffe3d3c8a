package domain

import (
	"context"
	"time"
)

// GasCache holds the most recent gas observation per chain for the status
// API, so status reads never touch the RPC endpoints.
type GasCache interface {
	SetGasPrice(ctx context.Context, chain Chain, gwei float64, ts time.Time) error
	GetGasPrice(ctx context.Context, chain Chain) (gwei float64, ts time.Time, err error)
}

// SignalBus provides fire-and-forget pub/sub used to push scan results,
// new opportunities, and alerts to live dashboard connections.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Bus channel names.
const (
	ChannelScanResults   = "scan_results"
	ChannelOpportunities = "opportunities"
	ChannelAlerts        = "alerts"
	ChannelGas           = "gas"
)
