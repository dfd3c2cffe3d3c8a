package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
	"github.com/arbitrader/arbitrader/internal/pipeline"
)

// PipelineHandler serves ingestion status and on-demand refresh triggers.
type PipelineHandler struct {
	pipe    *pipeline.Pipeline
	logger  *slog.Logger
	baseCtx context.Context
}

// NewPipelineHandler creates a PipelineHandler. Triggered refreshes run on
// baseCtx so they survive the triggering request.
func NewPipelineHandler(baseCtx context.Context, pipe *pipeline.Pipeline, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{pipe: pipe, logger: logger, baseCtx: baseCtx}
}

// GetStatus reports refresh timestamps and recent ingestion errors.
// GET /api/pipeline/status
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pipe.Status())
}

// TriggerRefresh starts one price refresh in the background. A refresh
// already in flight answers 409.
// POST /api/pipeline/refresh
func (h *PipelineHandler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if h.pipe.Status().Running {
		writeError(w, http.StatusConflict, "refresh already in progress")
		return
	}

	h.logger.InfoContext(r.Context(), "manual price refresh triggered")
	go func() {
		if err := h.pipe.RefreshPrices(h.baseCtx); err != nil && !errors.Is(err, domain.ErrAlreadyRunning) {
			h.logger.Error("manual price refresh failed", slog.String("error", err.Error()))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
