// backend/src/handlers/insight_handler.go
package handlers

import (
	"net/http"

	"github.com/username/fintrack/backend/src/services"
	"github.com/username/fintrack/backend/src/utils"
)

type InsightHandler struct {
	insights *services.InsightService
}

func NewInsightHandler(insights *services.InsightService) *InsightHandler {
	return &InsightHandler{insights: insights}
}

// The insight endpoints only fail on storage errors while building the
// summary; generator failures are absorbed into deterministic fallbacks.

func (h *InsightHandler) HandleGetInsights(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	result, err := h.insights.GeneralInsights(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err, "general insights")
		return
	}
	utils.SendJSON(w, http.StatusOK, result)
}

func (h *InsightHandler) HandleGetInvestmentTips(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	result, err := h.insights.InvestmentTips(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err, "investment tips")
		return
	}
	utils.SendJSON(w, http.StatusOK, result)
}

func (h *InsightHandler) HandleGetTaxTips(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	result, err := h.insights.TaxTips(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err, "tax tips")
		return
	}
	utils.SendJSON(w, http.StatusOK, result)
}
