// Package pipeline ingests market data: reference prices, DEX quotes, gas
// prices, and the retention cleanup that keeps storage bounded.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// archiveBatchLimit bounds how many rows one cleanup run loads for archival.
const archiveBatchLimit = 10_000

// ReferenceSource fetches aggregator prices for all tracked tokens.
type ReferenceSource interface {
	FetchPrices(ctx context.Context) ([]domain.ReferenceQuote, error)
}

// DexSource fetches the best on-chain quote for one token contract.
type DexSource interface {
	Quote(ctx context.Context, chain domain.Chain, contract string) (domain.DexQuote, error)
}

// GasSource reads the current gas price of a chain in gwei.
type GasSource interface {
	GasPrice(ctx context.Context, chain domain.Chain) (float64, error)
}

// Archiver writes rows to cold storage before cleanup deletes them.
type Archiver interface {
	ArchiveOpportunities(ctx context.Context, rows []domain.Opportunity) error
	ArchiveAlerts(ctx context.Context, rows []domain.Alert) error
	ArchiveHistory(ctx context.Context, rows []domain.TokenHistoryPoint) error
}

// Config holds pipeline tuning.
type Config struct {
	// Contracts maps symbol -> chain -> contract address for DEX lookups.
	Contracts map[domain.Symbol]map[domain.Chain]string

	MinLiquidityUSD float64

	StableBandMin float64
	StableBandMax float64

	MedianBandHigh float64
	MedianBandLow  float64

	// DexQueryDelay is the pause between consecutive DEX quote requests.
	DexQueryDelay time.Duration

	PriceInterval   time.Duration
	GasInterval     time.Duration
	CleanupInterval time.Duration

	OpportunityRetention time.Duration
	AlertRetention       time.Duration
	HistoryRetention     time.Duration
}

// Status is the pipeline's introspection snapshot for the status API.
type Status struct {
	Running          bool      `json:"running"`
	LastPriceRefresh time.Time `json:"lastPriceRefresh"`
	LastGasRefresh   time.Time `json:"lastGasRefresh"`
	LastCleanup      time.Time `json:"lastCleanup"`
	TokensUpdated    int       `json:"tokensUpdated"`
	RecentErrors     []string  `json:"recentErrors,omitempty"`
}

// Pipeline wires the sources to the stores.
type Pipeline struct {
	cfg     Config
	tokens  domain.TokenStore
	history domain.TokenHistoryStore
	opps    domain.OpportunityStore
	alerts  domain.AlertStore

	ref ReferenceSource
	dex DexSource
	gas GasSource

	gasCache domain.GasCache
	bus      domain.SignalBus
	archiver Archiver

	logger *slog.Logger

	refreshing atomic.Bool

	mu     sync.Mutex
	status Status
}

// New creates a Pipeline. gasCache, bus, and archiver may each be nil; the
// corresponding side effect is skipped.
func New(
	cfg Config,
	tokens domain.TokenStore,
	history domain.TokenHistoryStore,
	opps domain.OpportunityStore,
	alerts domain.AlertStore,
	ref ReferenceSource,
	dex DexSource,
	gas GasSource,
	gasCache domain.GasCache,
	bus domain.SignalBus,
	archiver Archiver,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		tokens:   tokens,
		history:  history,
		opps:     opps,
		alerts:   alerts,
		ref:      ref,
		dex:      dex,
		gas:      gas,
		gasCache: gasCache,
		bus:      bus,
		archiver: archiver,
		logger:   logger.With(slog.String("component", "pipeline")),
	}
}

var symbolNames = map[domain.Symbol]string{
	domain.SymbolETH:   "Ethereum",
	domain.SymbolUSDT:  "Tether USD",
	domain.SymbolUSDC:  "USD Coin",
	domain.SymbolBNB:   "BNB",
	domain.SymbolMATIC: "Polygon",
}

var symbolDecimals = map[domain.Symbol]int{
	domain.SymbolETH:   18,
	domain.SymbolUSDT:  6,
	domain.SymbolUSDC:  6,
	domain.SymbolBNB:   18,
	domain.SymbolMATIC: 18,
}

// RefreshPrices pulls reference prices, reconciles them, persists token rows
// and history points, and then refreshes DEX quotes. A refresh already in
// flight returns domain.ErrAlreadyRunning without touching anything.
func (p *Pipeline) RefreshPrices(ctx context.Context) error {
	if !p.refreshing.CompareAndSwap(false, true) {
		return domain.ErrAlreadyRunning
	}
	defer p.refreshing.Store(false)

	quotes, err := p.ref.FetchPrices(ctx)
	if err != nil {
		p.recordError(fmt.Sprintf("reference fetch: %v", err))
		return fmt.Errorf("pipeline: fetch reference prices: %w", err)
	}

	var (
		points  []domain.TokenHistoryPoint
		updated int
		errs    []error
	)
	for _, q := range quotes {
		for chain, price := range p.reconcileChainPrices(q.Symbol, q.ChainPrices) {
			tok := domain.Token{
				Symbol:          q.Symbol,
				Chain:           chain,
				Name:            symbolNames[q.Symbol],
				Decimals:        symbolDecimals[q.Symbol],
				ContractAddress: p.cfg.Contracts[q.Symbol][chain],
				CurrentPrice:    price,
				LastUpdated:     q.FetchedAt,
			}
			if _, err := p.tokens.Upsert(ctx, tok); err != nil {
				errs = append(errs, fmt.Errorf("upsert %s/%s: %w", q.Symbol, chain, err))
				continue
			}
			updated++
			points = append(points, domain.TokenHistoryPoint{
				Symbol:      q.Symbol,
				Chain:       chain,
				PriceUSD:    price,
				Source:      "reference",
				CollectedAt: q.FetchedAt,
			})
		}
	}

	if len(points) > 0 {
		if err := p.history.AppendBatch(ctx, points); err != nil {
			errs = append(errs, fmt.Errorf("append history: %w", err))
		}
	}

	errs = append(errs, p.refreshDexQuotes(ctx)...)

	p.mu.Lock()
	p.status.LastPriceRefresh = time.Now().UTC()
	p.status.TokensUpdated = updated
	p.mu.Unlock()
	for _, e := range errs {
		p.recordError(e.Error())
	}

	p.logger.Info("price refresh complete",
		slog.Int("tokens_updated", updated),
		slog.Int("history_points", len(points)),
		slog.Int("errors", len(errs)))

	return errors.Join(errs...)
}

// refreshDexQuotes walks the configured contracts in deterministic order,
// pausing between requests. Quotes below the liquidity floor are dropped so
// the evaluator never diverges against a puddle.
func (p *Pipeline) refreshDexQuotes(ctx context.Context) []error {
	var errs []error
	first := true
	for _, sym := range domain.SupportedSymbols() {
		for _, chain := range domain.SupportedChains() {
			contract := p.cfg.Contracts[sym][chain]
			if contract == "" {
				continue
			}

			if !first && p.cfg.DexQueryDelay > 0 {
				select {
				case <-ctx.Done():
					return append(errs, ctx.Err())
				case <-time.After(p.cfg.DexQueryDelay):
				}
			}
			first = false

			q, err := p.dex.Quote(ctx, chain, contract)
			if err != nil {
				if !errors.Is(err, domain.ErrNoQuote) {
					errs = append(errs, fmt.Errorf("dex quote %s/%s: %w", sym, chain, err))
				}
				continue
			}
			if q.LiquidityUSD < p.cfg.MinLiquidityUSD {
				p.logger.Debug("dex quote below liquidity floor",
					slog.String("token", string(sym)),
					slog.String("chain", string(chain)),
					slog.Float64("liquidity_usd", q.LiquidityUSD))
				continue
			}

			key := domain.TokenKey{Symbol: sym, Chain: chain}
			if err := p.tokens.UpdateDexQuote(ctx, key, q.PriceUSD, q.Venue, q.LiquidityUSD); err != nil {
				// The reference side may not have produced this row yet.
				if !errors.Is(err, domain.ErrNotFound) {
					errs = append(errs, fmt.Errorf("store dex quote %s/%s: %w", sym, chain, err))
				}
			}
		}
	}
	return errs
}

// RefreshGasPrices reads each chain's gas price independently, caching and
// broadcasting the ones that succeed. It fails only when every chain fails.
func (p *Pipeline) RefreshGasPrices(ctx context.Context) error {
	var errs []error
	ok := 0
	now := time.Now().UTC()

	for _, chain := range domain.SupportedChains() {
		gwei, err := p.gas.GasPrice(ctx, chain)
		if err != nil {
			p.logger.Warn("gas refresh failed",
				slog.String("chain", string(chain)),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", chain, err))
			continue
		}
		ok++

		if p.gasCache != nil {
			if err := p.gasCache.SetGasPrice(ctx, chain, gwei, now); err != nil {
				errs = append(errs, fmt.Errorf("cache %s: %w", chain, err))
			}
		}
		p.publish(ctx, domain.ChannelGas, map[string]any{
			"chain": chain,
			"gwei":  gwei,
			"ts":    now,
		})
	}

	p.mu.Lock()
	p.status.LastGasRefresh = now
	p.mu.Unlock()

	if ok == 0 {
		return fmt.Errorf("pipeline: gas refresh failed on all chains: %w", errors.Join(errs...))
	}
	return nil
}

// CleanupOldData prunes terminal rows past retention, archiving each batch
// first when an archiver is configured. A failed archive skips the delete
// for that table so nothing is lost.
func (p *Pipeline) CleanupOldData(ctx context.Context) error {
	now := time.Now().UTC()
	var errs []error

	if err := p.cleanupOpportunities(ctx, now.Add(-p.cfg.OpportunityRetention)); err != nil {
		errs = append(errs, err)
	}
	if err := p.cleanupAlerts(ctx, now.Add(-p.cfg.AlertRetention)); err != nil {
		errs = append(errs, err)
	}
	if err := p.cleanupHistory(ctx, now.Add(-p.cfg.HistoryRetention)); err != nil {
		errs = append(errs, err)
	}

	p.mu.Lock()
	p.status.LastCleanup = now
	p.mu.Unlock()
	for _, e := range errs {
		p.recordError(e.Error())
	}

	return errors.Join(errs...)
}

func (p *Pipeline) cleanupOpportunities(ctx context.Context, cutoff time.Time) error {
	if p.archiver != nil {
		rows, err := p.opps.ListExpiredBefore(ctx, cutoff, archiveBatchLimit)
		if err != nil {
			return fmt.Errorf("pipeline: list expired opportunities: %w", err)
		}
		if len(rows) > 0 {
			if err := p.archiver.ArchiveOpportunities(ctx, rows); err != nil {
				return fmt.Errorf("pipeline: archive opportunities: %w", err)
			}
		}
	}

	n, err := p.opps.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: delete expired opportunities: %w", err)
	}
	if n > 0 {
		p.logger.Info("pruned expired opportunities", slog.Int64("rows", n))
	}
	return nil
}

func (p *Pipeline) cleanupAlerts(ctx context.Context, cutoff time.Time) error {
	if p.archiver != nil {
		rows, err := p.alerts.ListReadBefore(ctx, cutoff, archiveBatchLimit)
		if err != nil {
			return fmt.Errorf("pipeline: list read alerts: %w", err)
		}
		if len(rows) > 0 {
			if err := p.archiver.ArchiveAlerts(ctx, rows); err != nil {
				return fmt.Errorf("pipeline: archive alerts: %w", err)
			}
		}
	}

	n, err := p.alerts.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: delete read alerts: %w", err)
	}
	if n > 0 {
		p.logger.Info("pruned read alerts", slog.Int64("rows", n))
	}
	return nil
}

func (p *Pipeline) cleanupHistory(ctx context.Context, cutoff time.Time) error {
	if p.archiver != nil {
		rows, err := p.history.ListBefore(ctx, cutoff, archiveBatchLimit)
		if err != nil {
			return fmt.Errorf("pipeline: list old history: %w", err)
		}
		if len(rows) > 0 {
			if err := p.archiver.ArchiveHistory(ctx, rows); err != nil {
				return fmt.Errorf("pipeline: archive history: %w", err)
			}
		}
	}

	n, err := p.history.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: delete old history: %w", err)
	}
	if n > 0 {
		p.logger.Info("pruned history points", slog.Int64("rows", n))
	}
	return nil
}

// RunLoop runs the three refresh loops until the context is cancelled. Each
// loop runs its task immediately and then on every tick.
func (p *Pipeline) RunLoop(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.loop(ctx, "prices", p.cfg.PriceInterval, func(ctx context.Context) error {
			err := p.RefreshPrices(ctx)
			if errors.Is(err, domain.ErrAlreadyRunning) {
				return nil
			}
			return err
		})
	})
	g.Go(func() error {
		return p.loop(ctx, "gas", p.cfg.GasInterval, p.RefreshGasPrices)
	})
	g.Go(func() error {
		return p.loop(ctx, "cleanup", p.cfg.CleanupInterval, p.CleanupOldData)
	})

	return g.Wait()
}

// loop runs task immediately and then on every tick. Task failures are
// logged, never fatal; only context cancellation stops a loop.
func (p *Pipeline) loop(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) error {
	p.logger.Info("loop started",
		slog.String("loop", name),
		slog.Duration("interval", interval))

	run := func() {
		if err := task(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("loop task failed",
				slog.String("loop", name),
				slog.String("error", err.Error()))
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("loop stopped", slog.String("loop", name))
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}

// Status returns the pipeline's current introspection snapshot.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.status
	st.Running = p.refreshing.Load()
	st.RecentErrors = append([]string(nil), p.status.RecentErrors...)
	return st
}

// recordError keeps a short ring of recent failures for the status API.
func (p *Pipeline) recordError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.RecentErrors = append(p.status.RecentErrors, msg)
	if n := len(p.status.RecentErrors); n > 20 {
		p.status.RecentErrors = p.status.RecentErrors[n-20:]
	}
}

func (p *Pipeline) publish(ctx context.Context, channel string, payload any) {
	if p.bus == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := p.bus.Publish(ctx, channel, raw); err != nil {
		p.logger.Warn("publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()))
	}
}
