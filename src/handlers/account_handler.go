// backend/src/handlers/account_handler.go
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/username/fintrack/backend/src/database"
	"github.com/username/fintrack/backend/src/logger"
	"github.com/username/fintrack/backend/src/models"
	"github.com/username/fintrack/backend/src/security/validation"
	"github.com/username/fintrack/backend/src/utils"
)

type AccountHandler struct{}

func NewAccountHandler() *AccountHandler {
	return &AccountHandler{}
}

type accountRequest struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Balance     float64 `json:"balance"`
	Currency    string  `json:"currency"`
	IsDefault   bool    `json:"is_default"`
	Color       string  `json:"color"`
	Description string  `json:"description"`
}

func validateAccountRequest(req *accountRequest) error {
	req.Name = validation.NormalizeFreeText(req.Name)
	req.Type = strings.ToUpper(strings.TrimSpace(req.Type))
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.Description = validation.NormalizeFreeText(req.Description)

	if err := validation.ValidateStringNotEmpty(req.Name, "name"); err != nil {
		return err
	}
	if err := validation.ValidateStringMaxLength(req.Name, validation.MaxAccountNameLength, "name"); err != nil {
		return err
	}
	return validation.ValidateEnum(req.Type, "type", models.AccountTypes...)
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	accounts, err := models.ListAccountsByUser(database.DB, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list accounts", "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utilSendUnauthorized(w, "authentication required")
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validateAccountRequest(&req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	account := &models.Account{
		UserID:      userID,
		Name:        req.Name,
		Type:        req.Type,
		Balance:     req.Balance,
		Currency:    req.Currency,
		Color:       req.Color,
		Description: req.Description,
	}
	if err := account.CreateAccount(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to create account", "error", err)
		utils.SendJSONError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	if req.IsDefault {
		if err := models.SetDefaultAccount(database.DB, account.ID, userID); err != nil {
			logger.FromContext(r.Context()).Error("Failed to set default on new account", "accountID", account.ID, "error", err)
			utils.SendJSONError(w, "Failed to set default account", http.StatusInternalServerError)
			return
		}
		account.IsDefault = true
	}

	logger.FromContext(r.Context()).Info("Account created", "accountID", account.ID)
	utils.SendJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
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

	account, err := models.GetAccountByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Account not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch account", "accountID", id, "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
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

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validateAccountRequest(&req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := models.GetAccountByID(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Account not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to fetch account for update", "accountID", id, "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}

	// Balance is not user-editable here; it only moves with the ledger.
	account.Name = req.Name
	account.Type = req.Type
	account.Currency = req.Currency
	account.Color = req.Color
	account.Description = req.Description
	if err := account.UpdateAccount(database.DB); err != nil {
		logger.FromContext(r.Context()).Error("Failed to update account", "accountID", id, "error", err)
		utils.SendJSONError(w, "Failed to update account", http.StatusInternalServerError)
		return
	}

	if req.IsDefault && !account.IsDefault {
		if err := models.SetDefaultAccount(database.DB, account.ID, userID); err != nil {
			logger.FromContext(r.Context()).Error("Failed to set default account", "accountID", id, "error", err)
			utils.SendJSONError(w, "Failed to set default account", http.StatusInternalServerError)
			return
		}
		account.IsDefault = true
	}

	utils.SendJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
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

	count, err := models.CountTransactionsForAccount(database.DB, id, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to count transactions for account", "accountID", id, "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}
	if count > 0 {
		utils.SendJSONError(w, "Account still has transactions and cannot be deleted", http.StatusBadRequest)
		return
	}

	if err := models.DeleteAccount(database.DB, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Account not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to delete account", "accountID", id, "error", err)
		utils.SendJSONError(w, "Failed to delete account", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("Account deleted", "accountID", id)
	utils.SendJSONMessage(w, http.StatusOK, "Account deleted")
}

func (h *AccountHandler) HandleSetDefaultAccount(w http.ResponseWriter, r *http.Request) {
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

	if err := models.SetDefaultAccount(database.DB, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Account not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to set default account", "accountID", id, "error", err)
		utils.SendJSONError(w, "Failed to set default account", http.StatusInternalServerError)
		return
	}

	account, err := models.GetAccountByID(database.DB, id, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to reload account after set-default", "accountID", id, "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusOK, account)
}

type reconcileResult struct {
	AccountID int64   `json:"account_id"`
	Previous  float64 `json:"previous_balance"`
	Computed  float64 `json:"computed_balance"`
	Drift     float64 `json:"drift"`
}

// HandleReconcileAccount recomputes the balance from the full ledger scan and
// reports how far the incrementally maintained value had drifted.
func (h *AccountHandler) HandleReconcileAccount(w http.ResponseWriter, r *http.Request) {
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

	previous, computed, err := models.RecalculateAccountBalance(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SendJSONError(w, "Account not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to reconcile account balance", "accountID", id, "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
		return
	}

	drift := previous - computed
	if drift != 0 {
		logger.FromContext(r.Context()).Warn("Account balance drift corrected",
			"accountID", id, "previous", previous, "computed", computed, "drift", drift)
	}
	utils.SendJSON(w, http.StatusOK, reconcileResult{
		AccountID: id,
		Previous:  previous,
		Computed:  computed,
		Drift:     drift,
	})
}
