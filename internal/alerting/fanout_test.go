package alerting

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbitrader/arbitrader/internal/domain"
	"github.com/arbitrader/arbitrader/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubMailer struct {
	sent    []string // recipients, in order
	failFor map[string]error
}

func (m *stubMailer) SendHTML(_ context.Context, to, _, _ string) error {
	if err := m.failFor[to]; err != nil {
		return err
	}
	m.sent = append(m.sent, to)
	return nil
}

type stubOperator struct {
	events []string
	err    error
}

func (o *stubOperator) Notify(_ context.Context, event, _, _ string) error {
	o.events = append(o.events, event)
	return o.err
}

func roi(v float64) *float64 { return &v }

func oppFixture() domain.Opportunity {
	return domain.Opportunity{
		ID:                 "opp-1",
		TokenSymbol:        domain.SymbolETH,
		ChainFrom:          domain.ChainEthereum,
		ChainTo:            domain.ChainPolygon,
		PriceFrom:          100,
		PriceTo:            103,
		VolumeUSD:          1000,
		GasCostUSD:         5,
		EstimatedProfitUSD: 30,
		NetProfitUSD:       25,
		ROIPercent:         roi(2.5),
		Score:              0.9,
		Status:             domain.OpportunityActive,
	}
}

func prefFixture(userID string) domain.UserPreference {
	return domain.UserPreference{
		UserID:       userID,
		EmailAddress: userID + "@example.com",
		Thresholds: domain.AlertThresholds{
			MinNetProfitUSD: 10,
			MaxGasCostUSD:   50,
			MinROIPercent:   1,
			MinScore:        0.7,
		},
		Notifications: domain.NotificationSettings{Dashboard: true, Email: true},
	}
}

func TestFanOutCreatesAlertsAndMails(t *testing.T) {
	ctx := context.Background()
	prefs := memory.NewPreferenceStore()
	alerts := memory.NewAlertStore()
	mailer := &stubMailer{}
	operator := &stubOperator{}

	require.NoError(t, prefs.Upsert(ctx, prefFixture("alice")))
	require.NoError(t, prefs.Upsert(ctx, prefFixture("bob")))

	f := NewFanOut(prefs, alerts, nil, mailer, operator, testLogger())
	f.Notify(ctx, oppFixture())

	for _, user := range []string{"alice", "bob"} {
		got, err := alerts.ListByUser(ctx, user, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, got, 1, user)
		assert.Equal(t, "opp-1", got[0].OpportunityID)
		assert.Equal(t, domain.AlertOpportunity, got[0].Type)
		assert.Equal(t, domain.PriorityLow, got[0].Priority)
		assert.Equal(t, domain.SymbolETH, got[0].Meta.TokenSymbol)
	}

	assert.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, mailer.sent)
	assert.Equal(t, []string{"opportunity_alert"}, operator.events)
}

func TestFanOutThresholdsAreConjunctive(t *testing.T) {
	base := oppFixture()

	cases := map[string]func(*domain.UserPreference){
		"min profit":  func(p *domain.UserPreference) { p.Thresholds.MinNetProfitUSD = 26 },
		"max gas":     func(p *domain.UserPreference) { p.Thresholds.MaxGasCostUSD = 4 },
		"min roi":     func(p *domain.UserPreference) { p.Thresholds.MinROIPercent = 3 },
		"min score":   func(p *domain.UserPreference) { p.Thresholds.MinScore = 0.95 },
		"token watch": func(p *domain.UserPreference) { p.TokensTracked = []domain.Symbol{domain.SymbolBNB} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			prefs := memory.NewPreferenceStore()
			alerts := memory.NewAlertStore()

			pref := prefFixture("carol")
			mutate(&pref)
			require.NoError(t, prefs.Upsert(ctx, pref))

			NewFanOut(prefs, alerts, nil, nil, nil, testLogger()).Notify(ctx, base)

			got, err := alerts.ListByUser(ctx, "carol", domain.ListOpts{})
			require.NoError(t, err)
			assert.Empty(t, got, "one failing gate suppresses the alert")
		})
	}
}

func TestFanOutSkipsDashboardDisabled(t *testing.T) {
	ctx := context.Background()
	prefs := memory.NewPreferenceStore()
	alerts := memory.NewAlertStore()

	pref := prefFixture("dave")
	pref.Notifications.Dashboard = false
	require.NoError(t, prefs.Upsert(ctx, pref))

	NewFanOut(prefs, alerts, nil, nil, nil, testLogger()).Notify(ctx, oppFixture())

	got, err := alerts.ListByUser(ctx, "dave", domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFanOutMailFailureDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	prefs := memory.NewPreferenceStore()
	alerts := memory.NewAlertStore()
	mailer := &stubMailer{failFor: map[string]error{"alice@example.com": errors.New("smtp down")}}

	require.NoError(t, prefs.Upsert(ctx, prefFixture("alice")))
	require.NoError(t, prefs.Upsert(ctx, prefFixture("bob")))

	NewFanOut(prefs, alerts, nil, mailer, nil, testLogger()).Notify(ctx, oppFixture())

	// Alice's dashboard alert exists even though her mail bounced.
	for _, user := range []string{"alice", "bob"} {
		got, err := alerts.ListByUser(ctx, user, domain.ListOpts{})
		require.NoError(t, err)
		assert.Len(t, got, 1, user)
	}
	assert.Equal(t, []string{"bob@example.com"}, mailer.sent)
}

func TestPriorityLadder(t *testing.T) {
	cases := []struct {
		net, roi float64
		want     domain.AlertPriority
	}{
		{net: 1500, roi: 2, want: domain.PriorityUrgent},
		{net: 20, roi: 60, want: domain.PriorityUrgent},
		{net: 600, roi: 2, want: domain.PriorityHigh},
		{net: 20, roi: 30, want: domain.PriorityHigh},
		{net: 150, roi: 2, want: domain.PriorityMedium},
		{net: 20, roi: 11, want: domain.PriorityMedium},
		{net: 25, roi: 2.5, want: domain.PriorityLow},
		{net: 100, roi: 10, want: domain.PriorityLow}, // boundaries are exclusive
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, priorityFor(tc.net, tc.roi), "net=%v roi=%v", tc.net, tc.roi)
	}
}

func TestNetProfitFallback(t *testing.T) {
	opp := oppFixture()
	assert.Equal(t, 25.0, netProfit(opp))

	opp.NetProfitUSD = 0
	assert.Equal(t, 25.0, netProfit(opp), "gross minus gas when net is unset")
}
