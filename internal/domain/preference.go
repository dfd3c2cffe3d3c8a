package domain

import "time"

// AlertThresholds are the per-user gates an opportunity must clear before an
// alert is created. All four conditions must hold at once.
type AlertThresholds struct {
	MinNetProfitUSD float64 `json:"minNetProfitUsd"`
	MaxGasCostUSD   float64 `json:"maxGasCostUsd"`
	MinROIPercent   float64 `json:"minRoiPercent"`
	MinScore        float64 `json:"minScore"`
}

// DefaultThresholds are applied to preference rows created without explicit
// values.
func DefaultThresholds() AlertThresholds {
	return AlertThresholds{
		MinNetProfitUSD: 10,
		MaxGasCostUSD:   50,
		MinROIPercent:   5,
		MinScore:        0.7,
	}
}

// NotificationSettings toggles delivery channels for a user. Dashboard is
// the master switch: when false the user is skipped entirely.
type NotificationSettings struct {
	Dashboard bool `json:"dashboard"`
	Email     bool `json:"email"`
	Telegram  bool `json:"telegram"`
	Discord   bool `json:"discord"`
}

// UserPreference is one user's alerting configuration.
type UserPreference struct {
	UserID        string
	EmailAddress  string
	TokensTracked []Symbol
	Thresholds    AlertThresholds
	Notifications NotificationSettings
	UpdatedAt     time.Time
}

// Tracks reports whether the user wants alerts for the given token. An
// empty TokensTracked list means all tokens.
func (p UserPreference) Tracks(sym Symbol) bool {
	if len(p.TokensTracked) == 0 {
		return true
	}
	for _, s := range p.TokensTracked {
		if s == sym {
			return true
		}
	}
	return false
}
