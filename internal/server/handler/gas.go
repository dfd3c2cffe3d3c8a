package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// GasHandler serves the latest cached gas observation per chain.
type GasHandler struct {
	cache  domain.GasCache
	logger *slog.Logger
}

// NewGasHandler creates a GasHandler.
func NewGasHandler(cache domain.GasCache, logger *slog.Logger) *GasHandler {
	return &GasHandler{cache: cache, logger: logger}
}

type gasEntry struct {
	Gwei       float64   `json:"gwei"`
	ObservedAt time.Time `json:"observedAt"`
}

// GetGasPrices returns the cached gas price of every chain that has a fresh
// observation. Chains without one are omitted rather than reported as zero.
// GET /api/gas
func (h *GasHandler) GetGasPrices(w http.ResponseWriter, r *http.Request) {
	out := make(map[domain.Chain]gasEntry)
	for _, chain := range domain.SupportedChains() {
		gwei, ts, err := h.cache.GetGasPrice(r.Context(), chain)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			h.logger.ErrorContext(r.Context(), "read gas cache failed",
				slog.String("chain", string(chain)),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to read gas prices")
			return
		}
		out[chain] = gasEntry{Gwei: gwei, ObservedAt: ts}
	}
	writeJSON(w, http.StatusOK, out)
}
