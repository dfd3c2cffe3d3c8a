package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/arbitrader/arbitrader/internal/arbitrage"
)

// ScannerHandler serves scan status and on-demand scan triggers.
type ScannerHandler struct {
	scanner *arbitrage.Scanner
	logger  *slog.Logger

	// baseCtx outlives the triggering request so a manual scan is not cut
	// short when the caller disconnects.
	baseCtx context.Context
}

// NewScannerHandler creates a ScannerHandler. Triggered scans run on baseCtx.
func NewScannerHandler(baseCtx context.Context, scanner *arbitrage.Scanner, logger *slog.Logger) *ScannerHandler {
	return &ScannerHandler{scanner: scanner, logger: logger, baseCtx: baseCtx}
}

// GetStatus reports whether a scan is in flight and the last cycle summary.
// GET /api/scanner/status
func (h *ScannerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scanner.Status())
}

// TriggerScan starts one scan cycle in the background. A cycle already in
// flight answers 409 without queueing.
// POST /api/scanner/trigger
func (h *ScannerHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if h.scanner.Status().Running {
		writeError(w, http.StatusConflict, "scan already in progress")
		return
	}

	h.logger.InfoContext(r.Context(), "manual scan triggered")
	go h.scanner.ScanAll(h.baseCtx)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
