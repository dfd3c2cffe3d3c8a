// Package alerting turns newly detected opportunities into per-user alerts
// and delivers them over the channels each user enabled.
package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// Mailer sends one HTML mail to one recipient.
type Mailer interface {
	SendHTML(ctx context.Context, to, subject, htmlBody string) error
}

// OperatorNotifier is the operator-level broadcast channel (Telegram,
// Discord). Satisfied by *notify.Notifier.
type OperatorNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// FanOut distributes one opportunity to every user whose thresholds it
// clears.
type FanOut struct {
	prefs    domain.PreferenceStore
	alerts   domain.AlertStore
	bus      domain.SignalBus
	mailer   Mailer
	notifier OperatorNotifier
	logger   *slog.Logger
}

// NewFanOut creates a FanOut. bus, mailer, and notifier may each be nil; the
// corresponding channel is skipped.
func NewFanOut(
	prefs domain.PreferenceStore,
	alerts domain.AlertStore,
	bus domain.SignalBus,
	mailer Mailer,
	notifier OperatorNotifier,
	logger *slog.Logger,
) *FanOut {
	return &FanOut{
		prefs:    prefs,
		alerts:   alerts,
		bus:      bus,
		mailer:   mailer,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "alert_fanout")),
	}
}

// Notify fans the opportunity out. Per-user failures are logged and never
// stop delivery to the remaining users, so Notify has no error to return.
func (f *FanOut) Notify(ctx context.Context, opp domain.Opportunity) {
	if f.notifier != nil {
		title := fmt.Sprintf("Arbitrage: %s", opp.Route())
		msg := fmt.Sprintf("net profit $%.2f, gas $%.2f, score %.2f",
			opp.NetProfitUSD, opp.GasCostUSD, opp.Score)
		if err := f.notifier.Notify(ctx, "opportunity_alert", title, msg); err != nil {
			f.logger.Warn("operator notification failed", slog.String("error", err.Error()))
		}
	}

	prefs, err := f.prefs.ListDashboardEnabled(ctx)
	if err != nil {
		f.logger.Error("load preferences failed", slog.String("error", err.Error()))
		return
	}

	for _, pref := range prefs {
		if err := f.notifyUser(ctx, pref, opp); err != nil {
			f.logger.Warn("user fan-out failed",
				slog.String("user_id", pref.UserID),
				slog.String("error", err.Error()))
		}
	}
}

func (f *FanOut) notifyUser(ctx context.Context, pref domain.UserPreference, opp domain.Opportunity) error {
	if !pref.Tracks(opp.TokenSymbol) {
		return nil
	}
	if !meetsThresholds(opp, pref.Thresholds) {
		return nil
	}

	roi := 0.0
	if opp.ROIPercent != nil {
		roi = *opp.ROIPercent
	}

	alert := domain.Alert{
		ID:            uuid.New().String(),
		UserID:        pref.UserID,
		OpportunityID: opp.ID,
		Type:          domain.AlertOpportunity,
		Priority:      priorityFor(netProfit(opp), roi),
		Message: fmt.Sprintf("%s: $%.2f net profit (%.2f%% ROI) moving $%.0f",
			opp.Route(), netProfit(opp), roi, opp.VolumeUSD),
		Meta: domain.AlertMeta{
			TokenSymbol:  opp.TokenSymbol,
			ChainFrom:    opp.ChainFrom,
			ChainTo:      opp.ChainTo,
			NetProfitUSD: netProfit(opp),
			ROIPercent:   opp.ROIPercent,
			Score:        opp.Score,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := f.alerts.Create(ctx, alert); err != nil {
		return fmt.Errorf("alerting: persist alert: %w", err)
	}

	f.publish(ctx, alert)

	if pref.Notifications.Email && pref.EmailAddress != "" && f.mailer != nil {
		subject, body := buildOpportunityEmail(alert, opp)
		if err := f.mailer.SendHTML(ctx, pref.EmailAddress, subject, body); err != nil {
			// The dashboard alert already exists; mail is best effort.
			return fmt.Errorf("alerting: send email: %w", err)
		}
	}

	return nil
}

// netProfit prefers the persisted net and falls back to gross minus gas for
// rows written before the net column existed.
func netProfit(opp domain.Opportunity) float64 {
	if opp.NetProfitUSD != 0 {
		return opp.NetProfitUSD
	}
	return opp.EstimatedProfitUSD - opp.GasCostUSD
}

// meetsThresholds requires every gate to pass at once.
func meetsThresholds(opp domain.Opportunity, th domain.AlertThresholds) bool {
	roi := 0.0
	if opp.ROIPercent != nil {
		roi = *opp.ROIPercent
	}
	return netProfit(opp) >= th.MinNetProfitUSD &&
		opp.GasCostUSD <= th.MaxGasCostUSD &&
		roi >= th.MinROIPercent &&
		opp.Score >= th.MinScore
}

// priorityFor grades an alert by net profit or ROI, whichever is more
// impressive.
func priorityFor(net, roi float64) domain.AlertPriority {
	switch {
	case net > 1000 || roi > 50:
		return domain.PriorityUrgent
	case net > 500 || roi > 25:
		return domain.PriorityHigh
	case net > 100 || roi > 10:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func (f *FanOut) publish(ctx context.Context, alert domain.Alert) {
	if f.bus == nil {
		return
	}
	raw, err := json.Marshal(alert)
	if err != nil {
		return
	}
	if err := f.bus.Publish(ctx, domain.ChannelAlerts, raw); err != nil {
		f.logger.Warn("publish alert failed", slog.String("error", err.Error()))
	}
}
