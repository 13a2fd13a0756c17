// backend/src/handlers/budget_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/username/fintrack/backend/src/logger"
	"github.com/username/fintrack/backend/src/processors"
	"github.com/username/fintrack/backend/src/services"
	"github.com/username/fintrack/backend/src/utils"
)

type BudgetHandler struct {
	budgets   *services.BudgetService
	processor *processors.BudgetProcessor
}

func NewBudgetHandler(budgets *services.BudgetService, processor *processors.BudgetProcessor) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, processor: processor}
}

// HandleListBudgets returns every budget with its spending figures derived
// live from the ledger.
func (h *BudgetHandler) HandleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	reports, err := h.processor.Reports(userID)
	if err != nil {
		handleServiceError(w, r, err, "list budgets")
		return
	}
	utils.SendJSON(w, http.StatusOK, reports)
}

// HandleUpsertBudget creates or updates the budget keyed by
// (user, category, year, month, period).
func (h *BudgetHandler) HandleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	var input services.UpsertBudgetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	budget, err := h.budgets.Upsert(input, userID)
	if err != nil {
		handleServiceError(w, r, err, "upsert budget")
		return
	}

	report, err := h.processor.ComputeSpending(*budget)
	if err != nil {
		handleServiceError(w, r, err, "compute budget spending")
		return
	}

	logger.FromContext(r.Context()).Info("Budget upserted", "budgetID", budget.ID, "category", budget.Category)
	utils.SendJSON(w, http.StatusOK, report)
}

func (h *BudgetHandler) HandleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.budgets.Delete(id, userID); err != nil {
		handleServiceError(w, r, err, "delete budget")
		return
	}
	utils.SendJSONMessage(w, http.StatusOK, "Budget deleted")
}

// HandleGetBudgetAlerts recomputes threshold crossings for budgets covering
// the current month; nothing is persisted or de-duplicated.
func (h *BudgetHandler) HandleGetBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	alerts, err := h.processor.Alerts(userID, time.Now())
	if err != nil {
		handleServiceError(w, r, err, "budget alerts")
		return
	}
	utils.SendJSON(w, http.StatusOK, alerts)
}
