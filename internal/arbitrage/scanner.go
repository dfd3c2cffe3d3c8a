package arbitrage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// PriceRefresher triggers a best-effort data refresh before a scan cycle.
type PriceRefresher interface {
	RefreshPrices(ctx context.Context) error
}

// AlertNotifier fans out alerts for a newly detected opportunity.
type AlertNotifier interface {
	Notify(ctx context.Context, opp domain.Opportunity)
}

// ScanResult summarizes one scan cycle.
type ScanResult struct {
	Skipped   bool          `json:"skipped"`
	Found     int           `json:"found"`
	Updated   int           `json:"updated"`
	Expired   int           `json:"expired"`
	Errors    []string      `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"startedAt"`
}

// Status is the scanner's introspection snapshot for the status API.
type Status struct {
	Running    bool       `json:"running"`
	LastScanAt time.Time  `json:"lastScanAt"`
	LastResult ScanResult `json:"lastResult"`
}

// Scanner drives scan cycles: refresh, snapshot, expire pass, sweep pass,
// alert fan-out. One cycle runs at a time; overlapping triggers are skipped,
// not queued.
type Scanner struct {
	builder   *SnapshotBuilder
	evaluator *Evaluator
	state     *StateStore
	opps      domain.OpportunityStore
	refresher PriceRefresher
	fanout    AlertNotifier
	bus       domain.SignalBus
	logger    *slog.Logger

	running atomic.Bool

	mu         sync.Mutex
	lastScanAt time.Time
	lastResult ScanResult
}

// NewScanner creates a Scanner. refresher, fanout, and bus may each be nil;
// the corresponding step is skipped.
func NewScanner(
	builder *SnapshotBuilder,
	evaluator *Evaluator,
	state *StateStore,
	opps domain.OpportunityStore,
	refresher PriceRefresher,
	fanout AlertNotifier,
	bus domain.SignalBus,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		builder:   builder,
		evaluator: evaluator,
		state:     state,
		opps:      opps,
		refresher: refresher,
		fanout:    fanout,
		bus:       bus,
		logger:    logger.With(slog.String("component", "scanner")),
	}
}

// ScanAll runs one full scan cycle. If a cycle is already in flight the call
// returns immediately with Skipped set and touches no state.
func (s *Scanner) ScanAll(ctx context.Context) ScanResult {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("scan already in flight, skipping trigger")
		return ScanResult{Skipped: true}
	}
	defer s.running.Store(false)

	started := time.Now().UTC()
	res := ScanResult{StartedAt: started}

	if s.refresher != nil {
		switch err := s.refresher.RefreshPrices(ctx); {
		case err == nil:
		case errors.Is(err, domain.ErrAlreadyRunning):
			s.logger.Debug("pipeline refresh already in flight")
		default:
			// Scan proceeds on stale data; the refresh failure is recorded.
			s.logger.Warn("pre-scan refresh failed", slog.String("error", err.Error()))
			res.Errors = append(res.Errors, fmt.Sprintf("refresh: %v", err))
		}
	}

	snap, err := s.builder.Build(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("snapshot: %v", err))
		res.Duration = time.Since(started)
		s.finish(ctx, res)
		return res
	}

	s.expirePass(ctx, snap, &res)
	s.sweepPass(ctx, snap, &res)

	res.Duration = time.Since(started)
	s.finish(ctx, res)

	s.logger.Info("scan cycle complete",
		slog.Int("found", res.Found),
		slog.Int("updated", res.Updated),
		slog.Int("expired", res.Expired),
		slog.Int("errors", len(res.Errors)),
		slog.Duration("duration", res.Duration))
	return res
}

// expirePass re-checks every active opportunity against the snapshot and
// expires the ones that no longer clear their own economics. It completes
// before the sweep so the sweep starts from consistent lifecycle state.
func (s *Scanner) expirePass(ctx context.Context, snap *Context, res *ScanResult) {
	active, err := s.opps.ListByStatus(ctx, domain.OpportunityActive, domain.ListOpts{})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("list active: %v", err))
		return
	}

	for _, opp := range active {
		if s.state.IsStillProfitable(ctx, opp, snap) {
			continue
		}
		if err := s.opps.UpdateStatus(ctx, opp.ID, domain.OpportunityExpired); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("expire %s: %v", opp.ID, err))
			continue
		}
		res.Expired++
		s.publish(ctx, domain.ChannelOpportunities, map[string]any{
			"event": "expired",
			"id":    opp.ID,
			"route": opp.Route(),
		})
	}
}

// sweepPass evaluates every token on every ordered chain pair. Per-route
// failures are collected and never abort the sweep.
func (s *Scanner) sweepPass(ctx context.Context, snap *Context, res *ScanResult) {
	for _, sym := range domain.SupportedSymbols() {
		for _, from := range domain.SupportedChains() {
			for _, to := range domain.SupportedChains() {
				if from == to {
					continue
				}
				if err := s.scanRoute(ctx, sym, from, to, snap, res); err != nil {
					res.Errors = append(res.Errors, fmt.Sprintf("%s %s->%s: %v", sym, from, to, err))
				}
			}
		}
	}
}

func (s *Scanner) scanRoute(ctx context.Context, sym domain.Symbol, from, to domain.Chain, snap *Context, res *ScanResult) error {
	ev, err := s.evaluator.Evaluate(ctx, sym, from, to, snap, Options{})
	if err != nil {
		return err
	}
	if ev == nil {
		return nil
	}

	up, err := s.state.Upsert(ctx, ev, snap)
	if err != nil {
		return err
	}
	if up.Opportunity == nil {
		return nil
	}

	if up.IsNew {
		res.Found++
		s.publish(ctx, domain.ChannelOpportunities, map[string]any{
			"event":       "detected",
			"opportunity": up.Opportunity,
		})
		if s.fanout != nil {
			s.fanout.Notify(ctx, *up.Opportunity)
		}
	} else {
		res.Updated++
	}
	return nil
}

// finish records the result and publishes the scan_results event.
func (s *Scanner) finish(ctx context.Context, res ScanResult) {
	s.mu.Lock()
	s.lastScanAt = res.StartedAt
	s.lastResult = res
	s.mu.Unlock()

	s.publish(ctx, domain.ChannelScanResults, res)
}

func (s *Scanner) publish(ctx context.Context, channel string, payload any) {
	if s.bus == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, channel, raw); err != nil {
		s.logger.Warn("publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()))
	}
}

// Status returns the scanner's current introspection snapshot.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:    s.running.Load(),
		LastScanAt: s.lastScanAt,
		LastResult: s.lastResult,
	}
}

// RunLoop runs a scan immediately and then on every tick until the context
// is cancelled.
func (s *Scanner) RunLoop(ctx context.Context, interval time.Duration) error {
	s.logger.Info("scan loop started", slog.Duration("interval", interval))

	s.ScanAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scan loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.ScanAll(ctx)
		}
	}
}
