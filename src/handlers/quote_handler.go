package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/fundfolio/backend/src/database"
	"github.com/username/fundfolio/backend/src/logger"
	"github.com/username/fundfolio/backend/src/services"
	"github.com/username/fundfolio/backend/src/utils"
)

// QuoteHandler serves cached quotes, refresh and daily history.
type QuoteHandler struct {
	quotes *services.QuoteService
	states *database.StateStore
}

func NewQuoteHandler(quotes *services.QuoteService, states *database.StateStore) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, states: states}
}

// tickersFromRequest takes ?tickers=A,B,C or falls back to every asset
// ticker of the current snapshot.
func (h *QuoteHandler) tickersFromRequest(r *http.Request) ([]string, error) {
	if raw := strings.TrimSpace(r.URL.Query().Get("tickers")); raw != "" {
		return strings.Split(raw, ","), nil
	}
	state, err := h.states.Get()
	if err != nil {
		return nil, err
	}
	tickers := make([]string, 0, len(state.Assets))
	for _, asset := range state.Assets {
		tickers = append(tickers, asset.Ticker)
	}
	return tickers, nil
}

// GetQuotes returns the cached quotes without hitting any provider.
func (h *QuoteHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.tickersFromRequest(r)
	if err != nil {
		logger.FromContext(r.Context()).Error("Resolving quote tickers failed", "error", err)
		utils.SendJSONError(w, "Could not resolve tickers", http.StatusInternalServerError)
		return
	}
	quotes, err := h.quotes.Cached(tickers)
	if err != nil {
		logger.FromContext(r.Context()).Error("Reading cached quotes failed", "error", err)
		utils.SendJSONError(w, "Could not read quotes", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"quotes": quotes})
}

// RefreshQuotes fetches fresh prices from the providers and persists them.
func (h *QuoteHandler) RefreshQuotes(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.tickersFromRequest(r)
	if err != nil {
		logger.FromContext(r.Context()).Error("Resolving quote tickers failed", "error", err)
		utils.SendJSONError(w, "Could not resolve tickers", http.StatusInternalServerError)
		return
	}
	quotes, err := h.quotes.Refresh(r.Context(), tickers)
	if err != nil {
		logger.FromContext(r.Context()).Error("Quote refresh failed", "error", err)
		utils.SendJSONError(w, "Could not refresh quotes", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"quotes": quotes})
}

// History returns up to ?limit= daily closes for ?ticker=.
func (h *QuoteHandler) History(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimSpace(r.URL.Query().Get("ticker"))
	if ticker == "" {
		utils.SendJSONError(w, "ticker query parameter required", http.StatusBadRequest)
		return
	}
	limit := utils.ToInt(r.URL.Query().Get("limit"), 400)
	history, err := h.quotes.DailyHistory(r.Context(), ticker, limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("Quote history fetch failed", "ticker", ticker, "error", err)
		utils.SendJSONError(w, "Could not fetch history", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"ticker": strings.ToUpper(ticker), "history": history})
}
