package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arbitrader/arbitrader/internal/alerting"
	"github.com/arbitrader/arbitrader/internal/arbitrage"
	"github.com/arbitrader/arbitrader/internal/domain"
	"github.com/arbitrader/arbitrader/internal/pipeline"
	"github.com/arbitrader/arbitrader/internal/server"
	"github.com/arbitrader/arbitrader/internal/server/handler"
	"github.com/arbitrader/arbitrader/internal/server/ws"
)

// components are the domain services assembled on top of the wired
// infrastructure. Every mode builds all of them; the mode decides which
// loops actually run.
type components struct {
	pipe    *pipeline.Pipeline
	scanner *arbitrage.Scanner
}

// cachedGasSource reads gas prices from the Redis cache instead of dialling
// RPC endpoints. Used in server mode, where manually triggered scans reuse
// the observations the ingest deployment wrote.
type cachedGasSource struct {
	cache domain.GasCache
}

func (g cachedGasSource) GasPrice(ctx context.Context, chain domain.Chain) (float64, error) {
	gwei, _, err := g.cache.GetGasPrice(ctx, chain)
	return gwei, err
}

// buildComponents assembles the pipeline, evaluator, state store, fan-out
// and scanner from the wired dependencies.
func (a *App) buildComponents(deps *Dependencies) (*components, error) {
	cfg := a.cfg

	var archiver pipeline.Archiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}

	pipe := pipeline.New(
		pipeline.Config{
			Contracts:            deps.Contracts,
			MinLiquidityUSD:      cfg.Trading.MinLiquidityUSD,
			StableBandMin:        cfg.Trading.StableBandMin,
			StableBandMax:        cfg.Trading.StableBandMax,
			MedianBandHigh:       cfg.Trading.MedianBandHigh,
			MedianBandLow:        cfg.Trading.MedianBandLow,
			DexQueryDelay:        cfg.Sources.DexQueryDelay.Duration,
			PriceInterval:        cfg.Pipeline.PriceInterval.Duration,
			GasInterval:          cfg.Pipeline.GasInterval.Duration,
			CleanupInterval:      cfg.Pipeline.CleanupInterval.Duration,
			OpportunityRetention: daysToDuration(cfg.Pipeline.OpportunityRetentionDays),
			AlertRetention:       daysToDuration(cfg.Pipeline.AlertRetentionDays),
			HistoryRetention:     daysToDuration(cfg.Pipeline.HistoryRetentionDays),
		},
		deps.Tokens,
		deps.History,
		deps.Opportunities,
		deps.Alerts,
		deps.Reference,
		deps.Dex,
		gasSourceFor(deps),
		deps.GasCache,
		deps.Bus,
		archiver,
		a.logger,
	)

	gasUnits, err := gasUnitsFromConfig(cfg.Trading.GasUnits)
	if err != nil {
		return nil, fmt.Errorf("app: gas units: %w", err)
	}

	evaluator := arbitrage.NewEvaluator(arbitrage.EvaluatorConfig{
		TradeNotionalUSD: cfg.Trading.TradeNotionalUSD,
		GasUnits:         gasUnits,
		Thresholds: arbitrage.AnomalyThresholds{
			MaxSpreadPercent:  cfg.Trading.MaxSpreadPercent,
			MaxDexCexRatio:    cfg.Trading.MaxDexCexRatio,
			MinGasProfitRatio: cfg.Trading.MinGasProfitRatio,
		},
	}, deps.Scorer, a.logger)

	var mailer alerting.Mailer
	if deps.Mailer != nil {
		mailer = deps.Mailer
	}
	fanout := alerting.NewFanOut(deps.Preferences, deps.Alerts, deps.Bus, mailer, deps.Notifier, a.logger)

	builder := arbitrage.NewSnapshotBuilder(deps.Tokens, gasSourceFor(deps), a.logger)
	state := arbitrage.NewStateStore(deps.Opportunities, evaluator, a.logger)

	scanner := arbitrage.NewScanner(
		builder,
		evaluator,
		state,
		deps.Opportunities,
		pipe,
		fanout,
		deps.Bus,
		a.logger,
	)

	return &components{pipe: pipe, scanner: scanner}, nil
}

// gasSourceFor returns the RPC reader when one was dialled and the cache
// fallback otherwise.
func gasSourceFor(deps *Dependencies) pipeline.GasSource {
	if deps.GasReader != nil {
		return deps.GasReader
	}
	return cachedGasSource{cache: deps.GasCache}
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// runServer builds and runs the HTTP API and WebSocket hub until the
// context is cancelled.
func (a *App) runServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, comps *components) {
	hub := ws.NewHub(deps.Bus, a.cfg.Mode, a.logger)

	checks := map[string]handler.HealthCheckFunc{
		"postgres": deps.PingPostgres,
		"redis":    deps.PingRedis,
	}

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(checks),
		Tokens:        handler.NewTokenHandler(deps.Tokens, deps.History, a.logger),
		Opportunities: handler.NewOpportunityHandler(deps.Opportunities, a.logger),
		Alerts:        handler.NewAlertHandler(deps.Alerts, a.logger),
		Preferences:   handler.NewPreferenceHandler(deps.Preferences, a.logger),
		Scanner:       handler.NewScannerHandler(ctx, comps.scanner, a.logger),
		Pipeline:      handler.NewPipelineHandler(ctx, comps.pipe, a.logger),
		Gas:           handler.NewGasHandler(deps.GasCache, a.logger),
	}

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return ignoreCanceled(hub.Run(ctx))
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// ScanMode runs the opportunity scan loop only. Data freshness relies on a
// separate ingest deployment; each cycle still triggers a best-effort
// refresh through the pipeline.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	comps, err := a.buildComponents(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return comps.scanner.RunLoop(ctx, a.cfg.Scanner.Interval.Duration)
	})
	return ignoreCanceled(g.Wait())
}

// IngestMode runs the data pipeline loops only.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	comps, err := a.buildComponents(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return comps.pipe.RunLoop(ctx)
	})
	return ignoreCanceled(g.Wait())
}

// ServerMode runs the HTTP and WebSocket API only. Scans and refreshes can
// still be triggered manually through the API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	comps, err := a.buildComponents(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.runServer(ctx, g, deps, comps)
	return ignoreCanceled(g.Wait())
}

// FullMode runs every enabled subsystem in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	comps, err := a.buildComponents(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Pipeline.Enabled {
		g.Go(func() error {
			return comps.pipe.RunLoop(ctx)
		})
	}
	if a.cfg.Scanner.Enabled {
		g.Go(func() error {
			return comps.scanner.RunLoop(ctx, a.cfg.Scanner.Interval.Duration)
		})
	}
	if a.cfg.Server.Enabled {
		a.runServer(ctx, g, deps, comps)
	}

	return ignoreCanceled(g.Wait())
}

// ignoreCanceled maps context cancellation to a clean shutdown.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
