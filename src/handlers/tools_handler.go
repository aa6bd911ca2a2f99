package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/fundfolio/backend/src/logger"
	"github.com/username/fundfolio/backend/src/services"
	"github.com/username/fundfolio/backend/src/utils"
)

// ToolsHandler serves the expert tools: scanner, signals, calendar,
// recommendations, model portfolio, charts and the alert workflow.
type ToolsHandler struct {
	expert       *services.ExpertService
	model        *services.ModelPortfolioService
	charts       *services.ChartService
	webhookToken string
}

func NewToolsHandler(expert *services.ExpertService, model *services.ModelPortfolioService, charts *services.ChartService, webhookToken string) *ToolsHandler {
	return &ToolsHandler{expert: expert, model: model, charts: charts, webhookToken: webhookToken}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// Scanner scores and filters the asset universe.
func (h *ToolsHandler) Scanner(w http.ResponseWriter, r *http.Request) {
	var filters services.ScannerFilters
	if r.Body != nil {
		// An empty or absent body means no filters.
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&filters)
	}
	result, err := h.expert.Scanner(filters)
	if err != nil {
		logger.FromContext(r.Context()).Error("Scanner failed", "error", err)
		utils.SendJSONError(w, "Could not run scanner", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// Signals returns one trade signal per open holding.
func (h *ToolsHandler) Signals(w http.ResponseWriter, r *http.Request) {
	result, err := h.expert.Signals(r.URL.Query().Get("portfolioId"))
	if err != nil {
		logger.FromContext(r.Context()).Error("Signals failed", "error", err)
		utils.SendJSONError(w, "Could not compute signals", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// Calendar lists upcoming portfolio events inside ?days=.
func (h *ToolsHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	days := utils.ToInt(r.URL.Query().Get("days"), 60)
	result, err := h.expert.Calendar(days, r.URL.Query().Get("portfolioId"))
	if err != nil {
		logger.FromContext(r.Context()).Error("Calendar failed", "error", err)
		utils.SendJSONError(w, "Could not build calendar", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// Recommendations runs the portfolio health checklist.
func (h *ToolsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	result, err := h.expert.Recommendations(r.URL.Query().Get("portfolioId"))
	if err != nil {
		logger.FromContext(r.Context()).Error("Recommendations failed", "error", err)
		utils.SendJSONError(w, "Could not compute recommendations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// GetModelPortfolio returns the stored target allocation.
func (h *ToolsHandler) GetModelPortfolio(w http.ResponseWriter, r *http.Request) {
	model, err := h.model.Get()
	if err != nil {
		logger.FromContext(r.Context()).Error("Reading model portfolio failed", "error", err)
		utils.SendJSONError(w, "Could not read model portfolio", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"model": model})
}

// SetModelPortfolio validates and stores a target allocation.
func (h *ToolsHandler) SetModelPortfolio(w http.ResponseWriter, r *http.Request) {
	var payload services.ModelPortfolio
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	model, err := h.model.Set(payload)
	if errors.Is(err, services.ErrInvalidModelWeights) {
		utils.SendJSONError(w, "Model portfolio weights must be positive", http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("Storing model portfolio failed", "error", err)
		utils.SendJSONError(w, "Could not store model portfolio", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"model": model})
}

// CompareModelPortfolio measures the live allocation against the model.
func (h *ToolsHandler) CompareModelPortfolio(w http.ResponseWriter, r *http.Request) {
	result, err := h.model.Compare(r.URL.Query().Get("portfolioId"))
	if err != nil {
		logger.FromContext(r.Context()).Error("Model portfolio compare failed", "error", err)
		utils.SendJSONError(w, "Could not compare model portfolio", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// Candles returns daily bars plus indicators for ?ticker=.
func (h *ToolsHandler) Candles(w http.ResponseWriter, r *http.Request) {
	limit := utils.ToInt(r.URL.Query().Get("limit"), 120)
	result, err := h.charts.Candles(r.Context(), r.URL.Query().Get("ticker"), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("Candle chart failed", "error", err)
		utils.SendJSONError(w, "Could not build candle chart", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// TradingView returns the embeddable chart reference for ?ticker=.
func (h *ToolsHandler) TradingView(w http.ResponseWriter, r *http.Request) {
	result, err := h.charts.TradingView(r.Context(), r.URL.Query().Get("ticker"))
	if err != nil {
		logger.FromContext(r.Context()).Error("TradingView chart failed", "error", err)
		utils.SendJSONError(w, "Could not build chart reference", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// Catalyst runs the bond yield analysis over the snapshot's bond assets.
func (h *ToolsHandler) Catalyst(w http.ResponseWriter, r *http.Request) {
	limit := utils.ToInt(r.URL.Query().Get("limit"), 80)
	result, err := h.charts.CatalystAnalysis(r.URL.Query().Get("portfolioId"), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("Catalyst analysis failed", "error", err)
		utils.SendJSONError(w, "Could not run bond analysis", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// FundsRanking ranks the snapshot's funds on their daily history.
func (h *ToolsHandler) FundsRanking(w http.ResponseWriter, r *http.Request) {
	limit := utils.ToInt(r.URL.Query().Get("limit"), 30)
	result, err := h.charts.FundsRanking(r.Context(), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("Funds ranking failed", "error", err)
		utils.SendJSONError(w, "Could not rank funds", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// RunAlerts evaluates every alert. Besides the authenticated UI call, an
// external scheduler may invoke it with the shared webhook token.
func (h *ToolsHandler) RunAlerts(w http.ResponseWriter, r *http.Request) {
	result, err := h.expert.RunAlertWorkflow(r.URL.Query().Get("portfolioId"))
	if err != nil {
		logger.FromContext(r.Context()).Error("Alert workflow failed", "error", err)
		utils.SendJSONError(w, "Could not run alert workflow", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// AlertHistory returns the recent trigger log.
func (h *ToolsHandler) AlertHistory(w http.ResponseWriter, r *http.Request) {
	limit := utils.ToInt(r.URL.Query().Get("limit"), 100)
	history, err := h.expert.AlertHistory(limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("Alert history failed", "error", err)
		utils.SendJSONError(w, "Could not read alert history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"history": history})
}

// WebhookAuthMiddleware admits requests carrying the shared webhook token.
// With no token configured, the webhook surface stays closed.
func (h *ToolsHandler) WebhookAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Webhook-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if h.webhookToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookToken)) != 1 {
			logger.FromContext(r.Context()).Warn("Webhook token rejected", "path", r.URL.Path)
			utils.SendJSONError(w, "Invalid webhook token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
