// backend/src/handlers/transaction_handler.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/fintrack/backend/src/logger"
	"github.com/username/fintrack/backend/src/models"
	"github.com/username/fintrack/backend/src/services"
	"github.com/username/fintrack/backend/src/utils"
)

type TransactionHandler struct {
	ledger   *services.LedgerService
	insights *services.InsightService
}

func NewTransactionHandler(ledger *services.LedgerService, insights *services.InsightService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, insights: insights}
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	var input services.CreateTransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tx, err := h.ledger.CreateTransaction(input, userID)
	if err != nil {
		handleServiceError(w, r, err, "create transaction")
		return
	}

	h.insights.InvalidateSummary(userID)
	logger.FromContext(r.Context()).Info("Transaction created", "transactionID", tx.ID, "type", tx.Type)
	utils.SendJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	filter, err := h.buildFilter(r, userID)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	page := parseIntQuery(r, "page", 1)
	limit := parseIntQuery(r, "limit", 20)

	result, err := h.ledger.QueryTransactions(*filter, page, limit)
	if err != nil {
		handleServiceError(w, r, err, "query transactions")
		return
	}
	utils.SendJSON(w, http.StatusOK, result)
}

func (h *TransactionHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
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

	tx, err := h.ledger.GetTransaction(id, userID)
	if err != nil {
		handleServiceError(w, r, err, "get transaction")
		return
	}
	utils.SendJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
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

	var patch services.UpdateTransactionInput
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tx, err := h.ledger.UpdateTransaction(id, userID, patch)
	if err != nil {
		handleServiceError(w, r, err, "update transaction")
		return
	}

	h.insights.InvalidateSummary(userID)
	utils.SendJSON(w, http.StatusOK, tx)
}

type deleteResult struct {
	Deleted int `json:"deleted"`
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
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

	if err := h.ledger.DeleteTransaction(id, userID); err != nil {
		handleServiceError(w, r, err, "delete transaction")
		return
	}

	h.insights.InvalidateSummary(userID)
	logger.FromContext(r.Context()).Info("Transaction deleted", "transactionID", id)
	utils.SendJSON(w, http.StatusOK, deleteResult{Deleted: 1})
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *TransactionHandler) HandleBulkDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	deleted, err := h.ledger.BulkDeleteTransactions(req.IDs, userID)
	if err != nil {
		// A mid-batch storage failure leaves earlier deletions applied; the
		// count is reported through the log before the error response.
		logger.FromContext(r.Context()).Warn("Bulk delete did not complete", "requested", len(req.IDs), "deleted", deleted, "error", err)
		handleServiceError(w, r, err, "bulk delete transactions")
		return
	}

	h.insights.InvalidateSummary(userID)
	logger.FromContext(r.Context()).Info("Bulk delete completed", "deleted", deleted)
	utils.SendJSON(w, http.StatusOK, deleteResult{Deleted: deleted})
}

func (h *TransactionHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	filter, err := h.buildFilter(r, userID)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := h.ledger.Stats(*filter)
	if err != nil {
		handleServiceError(w, r, err, "transaction stats")
		return
	}
	utils.SendJSON(w, http.StatusOK, stats)
}

func (h *TransactionHandler) HandleGetBreakdown(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	filter, err := h.buildFilter(r, userID)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	breakdown, err := h.ledger.CategoryBreakdown(*filter)
	if err != nil {
		handleServiceError(w, r, err, "category breakdown")
		return
	}
	utils.SendJSON(w, http.StatusOK, breakdown)
}

func (h *TransactionHandler) buildFilter(r *http.Request, userID int64) (*models.TransactionFilter, error) {
	startDate, err := parseDateQuery(r, "startDate", false)
	if err != nil {
		return nil, err
	}
	endDate, err := parseDateQuery(r, "endDate", true)
	if err != nil {
		return nil, err
	}
	return &models.TransactionFilter{
		UserID:    userID,
		Type:      r.URL.Query().Get("type"),
		Category:  r.URL.Query().Get("category"),
		AccountID: parseInt64Query(r, "account"),
		StartDate: startDate,
		EndDate:   endDate,
		Search:    r.URL.Query().Get("search"),
	}, nil
}
