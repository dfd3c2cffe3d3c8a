package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBITRADER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBITRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBITRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBITRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBITRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBITRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBITRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBITRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBITRADER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBITRADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBITRADER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBITRADER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBITRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBITRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBITRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBITRADER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBITRADER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBITRADER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBITRADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBITRADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBITRADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBITRADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBITRADER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBITRADER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBITRADER_S3_FORCE_PATH_STYLE")

	// ── Sources ──
	setStr(&cfg.Sources.CoinGeckoURL, "ARBITRADER_SOURCES_COINGECKO_URL")
	setStr(&cfg.Sources.CoinGeckoAPIKey, "ARBITRADER_SOURCES_COINGECKO_API_KEY")
	setStr(&cfg.Sources.DexScreenerURL, "ARBITRADER_SOURCES_DEXSCREENER_URL")
	setStr(&cfg.Sources.MLServiceURL, "ARBITRADER_SOURCES_ML_SERVICE_URL")
	setDuration(&cfg.Sources.DexQueryDelay, "ARBITRADER_SOURCES_DEX_QUERY_DELAY")
	setMapEntry(cfg.Sources.RPCEndpoints, "ethereum", "ARBITRADER_SOURCES_RPC_ETHEREUM")
	setMapEntry(cfg.Sources.RPCEndpoints, "polygon", "ARBITRADER_SOURCES_RPC_POLYGON")
	setMapEntry(cfg.Sources.RPCEndpoints, "bsc", "ARBITRADER_SOURCES_RPC_BSC")

	// ── Trading ──
	setFloat64(&cfg.Trading.TradeNotionalUSD, "ARBITRADER_TRADING_TRADE_NOTIONAL_USD")
	setFloat64(&cfg.Trading.MinLiquidityUSD, "ARBITRADER_TRADING_MIN_LIQUIDITY_USD")
	setFloat64(&cfg.Trading.StableBandMin, "ARBITRADER_TRADING_STABLE_BAND_MIN")
	setFloat64(&cfg.Trading.StableBandMax, "ARBITRADER_TRADING_STABLE_BAND_MAX")
	setFloat64(&cfg.Trading.MedianBandHigh, "ARBITRADER_TRADING_MEDIAN_BAND_HIGH")
	setFloat64(&cfg.Trading.MedianBandLow, "ARBITRADER_TRADING_MEDIAN_BAND_LOW")
	setFloat64(&cfg.Trading.MaxSpreadPercent, "ARBITRADER_TRADING_MAX_SPREAD_PERCENT")
	setFloat64(&cfg.Trading.MaxDexCexRatio, "ARBITRADER_TRADING_MAX_DEX_CEX_RATIO")
	setFloat64(&cfg.Trading.MinGasProfitRatio, "ARBITRADER_TRADING_MIN_GAS_PROFIT_RATIO")

	// ── Scanner ──
	setBool(&cfg.Scanner.Enabled, "ARBITRADER_SCANNER_ENABLED")
	setDuration(&cfg.Scanner.Interval, "ARBITRADER_SCANNER_INTERVAL")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "ARBITRADER_PIPELINE_ENABLED")
	setDuration(&cfg.Pipeline.PriceInterval, "ARBITRADER_PIPELINE_PRICE_INTERVAL")
	setDuration(&cfg.Pipeline.GasInterval, "ARBITRADER_PIPELINE_GAS_INTERVAL")
	setDuration(&cfg.Pipeline.CleanupInterval, "ARBITRADER_PIPELINE_CLEANUP_INTERVAL")
	setInt(&cfg.Pipeline.OpportunityRetentionDays, "ARBITRADER_PIPELINE_OPPORTUNITY_RETENTION_DAYS")
	setInt(&cfg.Pipeline.AlertRetentionDays, "ARBITRADER_PIPELINE_ALERT_RETENTION_DAYS")
	setInt(&cfg.Pipeline.HistoryRetentionDays, "ARBITRADER_PIPELINE_HISTORY_RETENTION_DAYS")
	setBool(&cfg.Pipeline.ArchiveEnabled, "ARBITRADER_PIPELINE_ARCHIVE_ENABLED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBITRADER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBITRADER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBITRADER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARBITRADER_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBITRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBITRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBITRADER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBITRADER_NOTIFY_EVENTS")
	setStr(&cfg.Notify.SMTPHost, "ARBITRADER_NOTIFY_SMTP_HOST")
	setInt(&cfg.Notify.SMTPPort, "ARBITRADER_NOTIFY_SMTP_PORT")
	setStr(&cfg.Notify.SMTPUsername, "ARBITRADER_NOTIFY_SMTP_USERNAME")
	setStr(&cfg.Notify.SMTPPassword, "ARBITRADER_NOTIFY_SMTP_PASSWORD")
	setStr(&cfg.Notify.SMTPFrom, "ARBITRADER_NOTIFY_SMTP_FROM")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBITRADER_MODE")
	setStr(&cfg.LogLevel, "ARBITRADER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setMapEntry(dst map[string]string, mapKey, key string) {
	if v := os.Getenv(key); v != "" && dst != nil {
		dst[mapKey] = v
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
