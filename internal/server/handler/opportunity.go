package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// OpportunityHandler serves detected opportunities.
type OpportunityHandler struct {
	opps   domain.OpportunityStore
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(opps domain.OpportunityStore, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{opps: opps, logger: logger}
}

// ListOpportunities returns opportunities in one lifecycle state, newest
// first. The status query parameter defaults to active.
// GET /api/opportunities?status=active&limit=50&offset=0
func (h *OpportunityHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	status := domain.OpportunityActive
	if v := r.URL.Query().Get("status"); v != "" {
		switch domain.OpportunityStatus(v) {
		case domain.OpportunityActive, domain.OpportunityExpired, domain.OpportunityExecuted:
			status = domain.OpportunityStatus(v)
		default:
			writeError(w, http.StatusBadRequest, "invalid status parameter")
			return
		}
	}

	out, err := h.opps.ListByStatus(r.Context(), status, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if out == nil {
		out = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetOpportunity returns one opportunity by ID.
// GET /api/opportunities/{id}
func (h *OpportunityHandler) GetOpportunity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing opportunity id")
		return
	}

	o, err := h.opps.GetByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get opportunity failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get opportunity")
		return
	}
	writeJSON(w, http.StatusOK, o)
}
