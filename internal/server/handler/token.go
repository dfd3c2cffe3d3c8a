package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// TokenHandler serves the tracked token list and price history.
type TokenHandler struct {
	tokens  domain.TokenStore
	history domain.TokenHistoryStore
	logger  *slog.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(tokens domain.TokenStore, history domain.TokenHistoryStore, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, history: history, logger: logger}
}

// ListTokens returns every tracked token with its latest prices.
// GET /api/tokens
func (h *TokenHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	out, err := h.tokens.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list tokens failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}
	if out == nil {
		out = []domain.Token{}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetToken returns one token by symbol and chain.
// GET /api/tokens/{symbol}/{chain}
func (h *TokenHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	key, ok := tokenKeyFromPath(w, r)
	if !ok {
		return
	}

	t, err := h.tokens.Get(r.Context(), key)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get token failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get token")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// GetHistory returns price samples for one token over a trailing window.
// GET /api/tokens/{symbol}/{chain}/history?hours=24
func (h *TokenHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	key, ok := tokenKeyFromPath(w, r)
	if !ok {
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 24*90 {
			writeError(w, http.StatusBadRequest, "invalid hours parameter")
			return
		}
		hours = n
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	points, err := h.history.List(r.Context(), key, since)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list history failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if points == nil {
		points = []domain.TokenHistoryPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func tokenKeyFromPath(w http.ResponseWriter, r *http.Request) (domain.TokenKey, bool) {
	sym, err := domain.ParseSymbol(r.PathValue("symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported token symbol")
		return domain.TokenKey{}, false
	}
	chain, err := domain.ParseChain(r.PathValue("chain"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported chain")
		return domain.TokenKey{}, false
	}
	return domain.TokenKey{Symbol: sym, Chain: chain}, true
}
