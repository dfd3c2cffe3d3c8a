// Package config defines the top-level configuration for the arbitrader
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBITRADER_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Sources  SourcesConfig  `toml:"sources"`
	Tokens   TokensConfig   `toml:"tokens"`
	Trading  TradingConfig  `toml:"trading"`
	Scanner  ScannerConfig  `toml:"scanner"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the cleanup
// archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SourcesConfig holds upstream data source endpoints.
type SourcesConfig struct {
	CoinGeckoURL    string `toml:"coingecko_url"`
	CoinGeckoAPIKey string `toml:"coingecko_api_key"`
	DexScreenerURL  string `toml:"dexscreener_url"`
	MLServiceURL    string `toml:"ml_service_url"`

	// RPCEndpoints maps a chain name to its JSON-RPC URL for gas reads.
	// Chains without an endpoint are skipped by the gas reader.
	RPCEndpoints map[string]string `toml:"rpc_endpoints"`

	// DexQueryDelay is the fixed pause between consecutive DEX quote
	// requests, keeping the scraper under the public rate limit.
	DexQueryDelay duration `toml:"dex_query_delay"`
}

// TokensConfig maps token symbols to per-chain contract addresses used for
// DEX quote lookups. Tokens without an address on a chain get no DEX quote
// there.
type TokensConfig struct {
	Contracts map[string]map[string]string `toml:"contracts"`
}

// GasUnitsConfig holds the per-chain gas unit estimates for the two legs of
// a cross-chain trade.
type GasUnitsConfig struct {
	Outbound uint64 `toml:"outbound"`
	Inbound  uint64 `toml:"inbound"`
}

// TradingConfig holds the economics of opportunity evaluation.
type TradingConfig struct {
	TradeNotionalUSD float64 `toml:"trade_notional_usd"`
	MinLiquidityUSD  float64 `toml:"min_liquidity_usd"`

	// Stablecoin quotes outside [StableBandMin, StableBandMax] are dropped
	// during ingestion.
	StableBandMin float64 `toml:"stable_band_min"`
	StableBandMax float64 `toml:"stable_band_max"`

	// A chain quote is dropped when quote/median exceeds MedianBandHigh or
	// falls below MedianBandLow.
	MedianBandHigh float64 `toml:"median_band_high"`
	MedianBandLow  float64 `toml:"median_band_low"`

	GasUnits map[string]GasUnitsConfig `toml:"gas_units"`

	// Anomaly screening thresholds.
	MaxSpreadPercent  float64 `toml:"max_spread_percent"`
	MaxDexCexRatio    float64 `toml:"max_dex_cex_ratio"`
	MinGasProfitRatio float64 `toml:"min_gas_profit_ratio"`
}

// ScannerConfig holds opportunity scanner parameters.
type ScannerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
}

// PipelineConfig holds data-pipeline parameters.
type PipelineConfig struct {
	Enabled         bool     `toml:"enabled"`
	PriceInterval   duration `toml:"price_interval"`
	GasInterval     duration `toml:"gas_interval"`
	CleanupInterval duration `toml:"cleanup_interval"`

	OpportunityRetentionDays int `toml:"opportunity_retention_days"`
	AlertRetentionDays       int `toml:"alert_retention_days"`
	HistoryRetentionDays     int `toml:"history_retention_days"`

	// ArchiveEnabled turns on S3 archival of rows before cleanup deletes
	// them. Requires the [s3] section.
	ArchiveEnabled bool `toml:"archive_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// APIKey protects the mutating endpoints. Empty disables authentication.
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`

	SMTPHost     string `toml:"smtp_host"`
	SMTPPort     int    `toml:"smtp_port"`
	SMTPUsername string `toml:"smtp_username"`
	SMTPPassword string `toml:"smtp_password"`
	SMTPFrom     string `toml:"smtp_from"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbitrader",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbitrader-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Sources: SourcesConfig{
			CoinGeckoURL:   "https://api.coingecko.com/api/v3",
			DexScreenerURL: "https://api.dexscreener.com",
			MLServiceURL:   "http://localhost:8100",
			RPCEndpoints: map[string]string{
				"ethereum": "https://eth.llamarpc.com",
				"polygon":  "https://polygon-rpc.com",
				"bsc":      "https://bsc-dataseed.binance.org",
			},
			DexQueryDelay: duration{500 * time.Millisecond},
		},
		Tokens: TokensConfig{
			Contracts: defaultContracts(),
		},
		Trading: TradingConfig{
			TradeNotionalUSD: 1000,
			MinLiquidityUSD:  1000,
			StableBandMin:    0.8,
			StableBandMax:    1.2,
			MedianBandHigh:   20,
			MedianBandLow:    0.05,
			GasUnits: map[string]GasUnitsConfig{
				"ethereum": {Outbound: 450_000, Inbound: 220_000},
				"polygon":  {Outbound: 320_000, Inbound: 160_000},
				"bsc":      {Outbound: 360_000, Inbound: 200_000},
			},
			MaxSpreadPercent:  5000,
			MaxDexCexRatio:    1.5,
			MinGasProfitRatio: 0.0001,
		},
		Scanner: ScannerConfig{
			Enabled:  true,
			Interval: duration{time.Hour},
		},
		Pipeline: PipelineConfig{
			Enabled:                  true,
			PriceInterval:            duration{5 * time.Minute},
			GasInterval:              duration{2 * time.Minute},
			CleanupInterval:          duration{24 * time.Hour},
			OpportunityRetentionDays: 7,
			AlertRetentionDays:       7,
			HistoryRetentionDays:     90,
			ArchiveEnabled:           false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			SMTPPort: 587,
			SMTPFrom: "alerts@arbitrader.local",
			Events:   []string{"opportunity_alert", "scan_failed", "pipeline_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// defaultContracts lists the well-known contract addresses used for DEX
// quote lookups. Native tokens use their wrapped representation.
func defaultContracts() map[string]map[string]string {
	return map[string]map[string]string{
		"ETH": {
			"ethereum": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
			"polygon":  "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619",
			"bsc":      "0x2170Ed0880ac9A755fd29B2688956BD959F933F8",
		},
		"USDT": {
			"ethereum": "0xdAC17F958D2ee523a2206206994597C13D831ec7",
			"polygon":  "0xc2132D05D31c914a87C6611C10748AEb04B58e8F",
			"bsc":      "0x55d398326f99059fF775485246999027B3197955",
		},
		"USDC": {
			"ethereum": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			"polygon":  "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
			"bsc":      "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d",
		},
		"BNB": {
			"polygon": "0x3BA4c387f786bFEE076A58914F5Bd38d668B42c3",
			"bsc":     "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
		},
		"MATIC": {
			"ethereum": "0x7D1AfA7B718fb893dB30A3aBc0Cfc608AaCfeBB0",
			"polygon":  "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270",
			"bsc":      "0xCC42724C6683B7E57334c4E856f4c9965ED682bD",
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":   true,
	"ingest": true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validChains = map[string]bool{
	"ethereum": true,
	"polygon":  true,
	"bsc":      true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, ingest, server, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only required when the cleanup archiver is on.
	if c.Pipeline.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when pipeline.archive_enabled is set")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when pipeline.archive_enabled is set")
		}
	}

	// Sources
	if c.Sources.CoinGeckoURL == "" {
		errs = append(errs, "sources: coingecko_url must not be empty")
	}
	if c.Sources.DexScreenerURL == "" {
		errs = append(errs, "sources: dexscreener_url must not be empty")
	}
	for chain := range c.Sources.RPCEndpoints {
		if !validChains[chain] {
			errs = append(errs, fmt.Sprintf("sources: rpc_endpoints has unknown chain %q", chain))
		}
	}
	if c.Sources.DexQueryDelay.Duration < 0 {
		errs = append(errs, "sources: dex_query_delay must not be negative")
	}

	// Tokens
	for sym, chains := range c.Tokens.Contracts {
		for chain := range chains {
			if !validChains[chain] {
				errs = append(errs, fmt.Sprintf("tokens: contracts[%s] has unknown chain %q", sym, chain))
			}
		}
	}

	// Trading
	if c.Trading.TradeNotionalUSD <= 0 {
		errs = append(errs, "trading: trade_notional_usd must be > 0")
	}
	if c.Trading.MinLiquidityUSD < 0 {
		errs = append(errs, "trading: min_liquidity_usd must be >= 0")
	}
	if c.Trading.StableBandMin <= 0 || c.Trading.StableBandMin >= c.Trading.StableBandMax {
		errs = append(errs, "trading: stable band must satisfy 0 < stable_band_min < stable_band_max")
	}
	if c.Trading.MedianBandLow <= 0 || c.Trading.MedianBandLow >= 1 {
		errs = append(errs, "trading: median_band_low must be in (0, 1)")
	}
	if c.Trading.MedianBandHigh <= 1 {
		errs = append(errs, "trading: median_band_high must be > 1")
	}
	for chain, gu := range c.Trading.GasUnits {
		if !validChains[chain] {
			errs = append(errs, fmt.Sprintf("trading: gas_units has unknown chain %q", chain))
			continue
		}
		if gu.Outbound == 0 || gu.Inbound == 0 {
			errs = append(errs, fmt.Sprintf("trading: gas_units.%s legs must both be > 0", chain))
		}
	}
	if c.Trading.MaxSpreadPercent <= 0 {
		errs = append(errs, "trading: max_spread_percent must be > 0")
	}
	if c.Trading.MaxDexCexRatio <= 1 {
		errs = append(errs, "trading: max_dex_cex_ratio must be > 1")
	}
	if c.Trading.MinGasProfitRatio <= 0 {
		errs = append(errs, "trading: min_gas_profit_ratio must be > 0")
	}

	// Scanner
	if c.Scanner.Enabled && c.Scanner.Interval.Duration <= 0 {
		errs = append(errs, "scanner: interval must be > 0 when enabled")
	}

	// Pipeline
	if c.Pipeline.Enabled {
		if c.Pipeline.PriceInterval.Duration <= 0 {
			errs = append(errs, "pipeline: price_interval must be > 0 when enabled")
		}
		if c.Pipeline.GasInterval.Duration <= 0 {
			errs = append(errs, "pipeline: gas_interval must be > 0 when enabled")
		}
		if c.Pipeline.CleanupInterval.Duration <= 0 {
			errs = append(errs, "pipeline: cleanup_interval must be > 0 when enabled")
		}
	}
	if c.Pipeline.OpportunityRetentionDays < 1 {
		errs = append(errs, "pipeline: opportunity_retention_days must be >= 1")
	}
	if c.Pipeline.AlertRetentionDays < 1 {
		errs = append(errs, "pipeline: alert_retention_days must be >= 1")
	}
	if c.Pipeline.HistoryRetentionDays < 1 {
		errs = append(errs, "pipeline: history_retention_days must be >= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify: SMTP fields must be set together or not at all.
	sh := c.Notify.SMTPHost != ""
	su := c.Notify.SMTPUsername != ""
	sp := c.Notify.SMTPPassword != ""
	if (su || sp) && !sh {
		errs = append(errs, "notify: smtp_host is required when smtp credentials are set")
	}
	if sh && c.Notify.SMTPPort <= 0 {
		errs = append(errs, "notify: smtp_port must be > 0 when smtp_host is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
