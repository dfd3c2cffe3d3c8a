package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Trading.TradeNotionalUSD = 0
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "trade_notional_usd")
	assert.Contains(t, err.Error(), "server: port")
}

func TestValidateGasUnits(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.GasUnits["solana"] = GasUnitsConfig{Outbound: 1, Inbound: 1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown chain")

	cfg = Defaults()
	cfg.Trading.GasUnits["bsc"] = GasUnitsConfig{Outbound: 0, Inbound: 200_000}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gas_units.bsc")
}

func TestValidateArchiveRequiresS3(t *testing.T) {
	cfg := Defaults()
	cfg.Pipeline.ArchiveEnabled = true
	cfg.S3.Bucket = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARBITRADER_MODE", "ingest")
	t.Setenv("ARBITRADER_TRADING_TRADE_NOTIONAL_USD", "2500")
	t.Setenv("ARBITRADER_SCANNER_INTERVAL", "30m")
	t.Setenv("ARBITRADER_SOURCES_RPC_POLYGON", "https://rpc.example/polygon")
	t.Setenv("ARBITRADER_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "ingest", cfg.Mode)
	assert.Equal(t, 2500.0, cfg.Trading.TradeNotionalUSD)
	assert.Equal(t, 30*time.Minute, cfg.Scanner.Interval.Duration)
	assert.Equal(t, "https://rpc.example/polygon", cfg.Sources.RPCEndpoints["polygon"])
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestDefaultContractsCoverTrackedTokens(t *testing.T) {
	cfg := Defaults()
	for _, sym := range []string{"ETH", "USDT", "USDC", "BNB", "MATIC"} {
		assert.NotEmpty(t, cfg.Tokens.Contracts[sym], sym)
	}
}
