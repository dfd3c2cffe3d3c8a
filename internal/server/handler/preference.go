package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// PreferenceHandler serves user alerting preferences.
type PreferenceHandler struct {
	prefs  domain.PreferenceStore
	logger *slog.Logger
}

// NewPreferenceHandler creates a PreferenceHandler.
func NewPreferenceHandler(prefs domain.PreferenceStore, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs, logger: logger}
}

// GetPreferences returns one user's preferences. Unknown users receive the
// defaults rather than a 404 so the dashboard can render a settings form.
// GET /api/preferences/{userID}
func (h *PreferenceHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	p, err := h.prefs.Get(r.Context(), userID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusOK, domain.UserPreference{
			UserID:        userID,
			Thresholds:    domain.DefaultThresholds(),
			Notifications: domain.NotificationSettings{Dashboard: true},
		})
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get preferences failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// preferenceUpdate is the mutable subset of a preference row accepted from
// the dashboard.
type preferenceUpdate struct {
	EmailAddress  string                       `json:"emailAddress"`
	TokensTracked []string                     `json:"tokensTracked"`
	Thresholds    *domain.AlertThresholds      `json:"thresholds"`
	Notifications *domain.NotificationSettings `json:"notifications"`
}

// UpdatePreferences replaces one user's preferences.
// PUT /api/preferences/{userID}
func (h *PreferenceHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var upd preferenceUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tracked := make([]domain.Symbol, 0, len(upd.TokensTracked))
	for _, raw := range upd.TokensTracked {
		sym, err := domain.ParseSymbol(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unsupported token symbol: "+raw)
			return
		}
		tracked = append(tracked, sym)
	}

	p := domain.UserPreference{
		UserID:        userID,
		EmailAddress:  upd.EmailAddress,
		TokensTracked: tracked,
		Thresholds:    domain.DefaultThresholds(),
		Notifications: domain.NotificationSettings{Dashboard: true},
		UpdatedAt:     time.Now().UTC(),
	}
	if upd.Thresholds != nil {
		p.Thresholds = *upd.Thresholds
	}
	if upd.Notifications != nil {
		p.Notifications = *upd.Notifications
	}

	if err := h.prefs.Upsert(r.Context(), p); err != nil {
		h.logger.ErrorContext(r.Context(), "update preferences failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update preferences")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
