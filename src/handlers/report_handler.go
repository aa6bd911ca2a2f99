package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/fundfolio/backend/src/logger"
	"github.com/username/fundfolio/backend/src/services"
	"github.com/username/fundfolio/backend/src/utils"
)

// ReportHandler serves the report catalog, generated reports and the
// portfolio metrics summary.
type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Catalog lists the available report names.
func (h *ReportHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"reports": h.reports.Catalog()})
}

type generateRequest struct {
	ReportName  string `json:"reportName"`
	PortfolioID string `json:"portfolioId"`
}

// Generate renders one named report.
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var payload generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	report, err := h.reports.Generate(payload.ReportName, payload.PortfolioID)
	if err != nil {
		ctxLogger.Error("Report generation failed", "report", payload.ReportName, "error", err)
		utils.SendJSONError(w, "Could not generate report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// PortfolioMetrics returns the condensed dashboard summary.
func (h *ReportHandler) PortfolioMetrics(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolioId")
	summary, err := h.reports.Metrics(portfolioID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Metrics summary failed", "error", err)
		utils.SendJSONError(w, "Could not compute metrics", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
