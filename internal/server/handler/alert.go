package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// AlertHandler serves per-user alerts.
type AlertHandler struct {
	alerts domain.AlertStore
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(alerts domain.AlertStore, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

// ListAlerts returns one user's alerts, newest first.
// GET /api/alerts?user_id=...&limit=50&offset=0
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id parameter")
		return
	}

	out, err := h.alerts.ListByUser(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list alerts failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if out == nil {
		out = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, out)
}

// MarkRead flags one alert as read.
// POST /api/alerts/{id}/read
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing alert id")
		return
	}

	err := h.alerts.MarkRead(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "mark alert read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to mark alert read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
