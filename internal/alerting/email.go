package alerting

import (
	"fmt"
	"strings"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// buildOpportunityEmail renders the alert mail. The body is a small
// self-contained HTML summary; recipients' mail clients get no external
// assets.
func buildOpportunityEmail(alert domain.Alert, opp domain.Opportunity) (subject, body string) {
	subject = fmt.Sprintf("[%s] Arbitrage opportunity: %s", strings.ToUpper(string(alert.Priority)), opp.Route())

	roi := "n/a"
	if opp.ROIPercent != nil {
		roi = fmt.Sprintf("%.2f%%", *opp.ROIPercent)
	}

	body = fmt.Sprintf(`<html>
<body style="font-family: sans-serif; color: #1a1a2e;">
  <h2>%s</h2>
  <p>%s is priced at $%.4f on %s and $%.4f on %s.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td><b>Net profit</b></td><td>$%.2f</td></tr>
    <tr><td><b>Gross profit</b></td><td>$%.2f</td></tr>
    <tr><td><b>Gas cost</b></td><td>$%.2f</td></tr>
    <tr><td><b>ROI</b></td><td>%s</td></tr>
    <tr><td><b>Trade size</b></td><td>$%.0f</td></tr>
    <tr><td><b>Confidence</b></td><td>%.2f</td></tr>
  </table>
  <p style="color: #666; font-size: 12px;">Prices move fast. Verify before acting.</p>
</body>
</html>`,
		opp.Route(),
		opp.TokenSymbol, opp.PriceFrom, opp.ChainFrom, opp.PriceTo, opp.ChainTo,
		netProfit(opp),
		opp.EstimatedProfitUSD,
		opp.GasCostUSD,
		roi,
		opp.VolumeUSD,
		opp.Score,
	)
	return subject, body
}
