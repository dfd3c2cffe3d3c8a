package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arbitrader/arbitrader/internal/arbitrage"
	s3blob "github.com/arbitrader/arbitrader/internal/blob/s3"
	"github.com/arbitrader/arbitrader/internal/cache/redis"
	"github.com/arbitrader/arbitrader/internal/config"
	"github.com/arbitrader/arbitrader/internal/domain"
	"github.com/arbitrader/arbitrader/internal/notify"
	"github.com/arbitrader/arbitrader/internal/platform/coingecko"
	"github.com/arbitrader/arbitrader/internal/platform/dexscreener"
	"github.com/arbitrader/arbitrader/internal/platform/evmgas"
	"github.com/arbitrader/arbitrader/internal/platform/mlscore"
	"github.com/arbitrader/arbitrader/internal/store/postgres"
)

// Dependencies bundles the infrastructure the application modes build on.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Tokens        domain.TokenStore
	History       domain.TokenHistoryStore
	Opportunities domain.OpportunityStore
	Alerts        domain.AlertStore
	Preferences   domain.PreferenceStore

	// Caches and bus
	GasCache domain.GasCache
	Bus      domain.SignalBus

	// Upstream clients
	Reference *coingecko.Client
	Dex       *dexscreener.Client
	GasReader *evmgas.Reader
	Scorer    arbitrage.Scorer

	// Cold storage
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
	Mailer   *notify.SMTPMailer

	// Contracts is the typed symbol -> chain -> contract address map used by
	// both the reference client and the pipeline.
	Contracts map[domain.Symbol]map[domain.Chain]string

	// Health probes for the status API.
	PingPostgres func(ctx context.Context) error
	PingRedis    func(ctx context.Context) error
}

// needsGasReader reports whether the mode dials the chain RPC endpoints.
// The server mode only reads the gas cache.
func needsGasReader(mode string) bool {
	switch mode {
	case "scan", "ingest", "full":
		return true
	}
	return false
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Tokens = postgres.NewTokenStore(pool)
	deps.History = postgres.NewHistoryStore(pool)
	deps.Opportunities = postgres.NewOpportunityStore(pool)
	deps.Alerts = postgres.NewAlertStore(pool)
	deps.Preferences = postgres.NewPreferenceStore(pool)
	deps.PingPostgres = pool.Ping

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.GasCache = redis.NewGasCache(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)
	deps.PingRedis = redisClient.Ping

	// --- S3 archiver (only when cleanup archival is on) ---
	if cfg.Pipeline.ArchiveEnabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
	}

	// --- Upstream clients ---
	contracts, err := contractsFromConfig(cfg.Tokens.Contracts)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: token contracts: %w", err)
	}

	deps.Contracts = contracts
	deps.Reference = coingecko.New(cfg.Sources.CoinGeckoURL, cfg.Sources.CoinGeckoAPIKey, contracts)
	deps.Dex = dexscreener.New(cfg.Sources.DexScreenerURL)

	if needsGasReader(cfg.Mode) {
		endpoints, err := rpcEndpointsFromConfig(cfg.Sources.RPCEndpoints)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: rpc endpoints: %w", err)
		}
		reader, err := evmgas.New(ctx, endpoints)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: gas reader: %w", err)
		}
		closers = append(closers, reader.Close)
		deps.GasReader = reader
	}

	if cfg.Sources.MLServiceURL != "" {
		deps.Scorer = &mlScorer{client: mlscore.New(cfg.Sources.MLServiceURL)}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	if cfg.Notify.SMTPHost != "" {
		deps.Mailer = notify.NewSMTPMailer(
			cfg.Notify.SMTPHost,
			cfg.Notify.SMTPPort,
			cfg.Notify.SMTPUsername,
			cfg.Notify.SMTPPassword,
			cfg.Notify.SMTPFrom,
		)
	}

	return deps, cleanup, nil
}

// mlScorer adapts the scoring service client to the evaluator's Scorer
// interface.
type mlScorer struct {
	client *mlscore.Client
}

func (s *mlScorer) Score(ctx context.Context, ev arbitrage.Evaluation) (float64, error) {
	var roi float64
	if ev.ROIPercent != nil {
		roi = *ev.ROIPercent
	}
	return s.client.Score(ctx, mlscore.Request{
		Token:            string(ev.TokenSymbol),
		ChainFrom:        string(ev.ChainFrom),
		ChainTo:          string(ev.ChainTo),
		PriceDiffPercent: ev.PriceDiffPercent,
		GrossProfitUSD:   ev.GrossProfitUSD,
		NetProfitUSD:     ev.NetProfitUSD,
		GasCostUSD:       ev.GasCostUSD,
		ROIPercent:       roi,
		TradeVolumeUSD:   ev.TradeNotionalUSD,
	})
}

// contractsFromConfig converts the raw TOML contract map into typed keys.
func contractsFromConfig(raw map[string]map[string]string) (map[domain.Symbol]map[domain.Chain]string, error) {
	out := make(map[domain.Symbol]map[domain.Chain]string, len(raw))
	for rawSym, chains := range raw {
		sym, err := domain.ParseSymbol(rawSym)
		if err != nil {
			return nil, err
		}
		out[sym] = make(map[domain.Chain]string, len(chains))
		for rawChain, addr := range chains {
			chain, err := domain.ParseChain(rawChain)
			if err != nil {
				return nil, err
			}
			out[sym][chain] = addr
		}
	}
	return out, nil
}

// rpcEndpointsFromConfig converts the raw TOML RPC map into typed keys.
func rpcEndpointsFromConfig(raw map[string]string) (map[domain.Chain]string, error) {
	out := make(map[domain.Chain]string, len(raw))
	for rawChain, url := range raw {
		chain, err := domain.ParseChain(rawChain)
		if err != nil {
			return nil, err
		}
		out[chain] = url
	}
	return out, nil
}

// gasUnitsFromConfig converts the raw TOML gas unit map into typed keys.
func gasUnitsFromConfig(raw map[string]config.GasUnitsConfig) (map[domain.Chain]arbitrage.GasUnits, error) {
	out := make(map[domain.Chain]arbitrage.GasUnits, len(raw))
	for rawChain, gu := range raw {
		chain, err := domain.ParseChain(rawChain)
		if err != nil {
			return nil, err
		}
		out[chain] = arbitrage.GasUnits{Outbound: gu.Outbound, Inbound: gu.Inbound}
	}
	return out, nil
}
