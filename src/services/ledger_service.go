// backend/src/services/ledger_service.go
package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/username/fintrack/backend/src/logger"
	"github.com/username/fintrack/backend/src/models"
	"github.com/username/fintrack/backend/src/security/validation"
)

// LedgerService owns the transaction ledger and the balance side effects it
// triggers on the referenced accounts. Creates and deletes adjust the account
// balance exactly once; updates re-adjust it symmetrically when amount or
// type change, so the balance invariant holds across edits.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// CreateTransactionInput carries the caller-supplied fields of a new
// transaction before normalization.
type CreateTransactionInput struct {
	Type              string     `json:"type"`
	Amount            float64    `json:"amount"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	AccountID         int64      `json:"account"`
	Date              *time.Time `json:"date,omitempty"`
	Subcategory       string     `json:"subcategory,omitempty"`
	Merchant          string     `json:"merchant,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	IsRecurring       bool       `json:"is_recurring,omitempty"`
	RecurringInterval string     `json:"recurring_interval,omitempty"`
	TaxDeductible     bool       `json:"tax_deductible,omitempty"`
	InvestmentType    string     `json:"investment_type,omitempty"`
}

// CreateTransaction validates and persists a transaction, then credits or
// debits the linked account. The balance adjustment is ordered strictly after
// persistence; if the account vanished in between, the adjustment is skipped
// (a documented consistency gap, logged at warn, never retried).
func (s *LedgerService) CreateTransaction(input CreateTransactionInput, userID int64) (*models.Transaction, error) {
	tx := &models.Transaction{
		UserID:            userID,
		AccountID:         input.AccountID,
		Type:              strings.ToUpper(strings.TrimSpace(input.Type)),
		Amount:            input.Amount,
		Description:       validation.NormalizeFreeText(input.Description),
		Category:          strings.ToLower(strings.TrimSpace(input.Category)),
		Subcategory:       validation.NormalizeFreeText(input.Subcategory),
		Merchant:          validation.NormalizeFreeText(input.Merchant),
		Tags:              normalizeTags(input.Tags),
		IsRecurring:       input.IsRecurring,
		RecurringInterval: strings.ToUpper(strings.TrimSpace(input.RecurringInterval)),
		TaxDeductible:     input.TaxDeductible,
		InvestmentType:    strings.ToUpper(strings.TrimSpace(input.InvestmentType)),
	}
	if input.Date != nil {
		tx.Date = *input.Date
	} else {
		tx.Date = time.Now()
	}

	if err := s.validateTransaction(tx); err != nil {
		return nil, err
	}

	account, err := models.GetAccountByID(s.db, tx.AccountID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %d", ErrNotFound, tx.AccountID)
		}
		return nil, err
	}

	if tx.IsRecurring && tx.RecurringInterval != "" {
		next, err := models.NextOccurrence(tx.Date, tx.RecurringInterval)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", validation.ErrValidationFailed, err)
		}
		tx.NextRecurringDate = &next
	} else {
		tx.NextRecurringDate = nil
	}

	if err := tx.Insert(s.db); err != nil {
		return nil, err
	}

	rows, err := models.AdjustAccountBalance(s.db, tx.AccountID, userID, tx.SignedAmount())
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		logger.L.Warn("Balance adjustment skipped, account disappeared after transaction insert",
			"transactionID", tx.ID, "accountID", tx.AccountID, "userID", userID)
	}

	tx.Account = &models.AccountRef{ID: account.ID, Name: account.Name, Type: account.Type}
	return tx, nil
}

// UpdateTransactionInput is a sparse patch; nil fields stay untouched.
// The linked account is immutable once the transaction exists.
type UpdateTransactionInput struct {
	Type              *string    `json:"type,omitempty"`
	Amount            *float64   `json:"amount,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Category          *string    `json:"category,omitempty"`
	Date              *time.Time `json:"date,omitempty"`
	Subcategory       *string    `json:"subcategory,omitempty"`
	Merchant          *string    `json:"merchant,omitempty"`
	Tags              *[]string  `json:"tags,omitempty"`
	IsRecurring       *bool      `json:"is_recurring,omitempty"`
	RecurringInterval *string    `json:"recurring_interval,omitempty"`
	TaxDeductible     *bool      `json:"tax_deductible,omitempty"`
	InvestmentType    *string    `json:"investment_type,omitempty"`
}

// UpdateTransaction applies the patch and, when amount or type changed,
// re-adjusts the account balance by the delta between the old and new signed
// contributions.
func (s *LedgerService) UpdateTransaction(id, userID int64, patch UpdateTransactionInput) (*models.Transaction, error) {
	tx, err := models.GetTransactionByID(s.db, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
		}
		return nil, err
	}
	oldSigned := tx.SignedAmount()

	if patch.Type != nil {
		tx.Type = strings.ToUpper(strings.TrimSpace(*patch.Type))
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.Description != nil {
		tx.Description = validation.NormalizeFreeText(*patch.Description)
	}
	if patch.Category != nil {
		tx.Category = strings.ToLower(strings.TrimSpace(*patch.Category))
	}
	if patch.Date != nil {
		tx.Date = *patch.Date
	}
	if patch.Subcategory != nil {
		tx.Subcategory = validation.NormalizeFreeText(*patch.Subcategory)
	}
	if patch.Merchant != nil {
		tx.Merchant = validation.NormalizeFreeText(*patch.Merchant)
	}
	if patch.Tags != nil {
		tx.Tags = normalizeTags(*patch.Tags)
	}
	if patch.IsRecurring != nil {
		tx.IsRecurring = *patch.IsRecurring
	}
	if patch.RecurringInterval != nil {
		tx.RecurringInterval = strings.ToUpper(strings.TrimSpace(*patch.RecurringInterval))
	}
	if patch.TaxDeductible != nil {
		tx.TaxDeductible = *patch.TaxDeductible
	}
	if patch.InvestmentType != nil {
		tx.InvestmentType = strings.ToUpper(strings.TrimSpace(*patch.InvestmentType))
	}

	if err := s.validateTransaction(tx); err != nil {
		return nil, err
	}

	if tx.IsRecurring && tx.RecurringInterval != "" {
		next, err := models.NextOccurrence(tx.Date, tx.RecurringInterval)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", validation.ErrValidationFailed, err)
		}
		tx.NextRecurringDate = &next
	} else {
		tx.RecurringInterval = ""
		tx.NextRecurringDate = nil
	}

	if err := tx.Update(s.db); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
		}
		return nil, err
	}

	if delta := tx.SignedAmount() - oldSigned; delta != 0 {
		rows, err := models.AdjustAccountBalance(s.db, tx.AccountID, userID, delta)
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			logger.L.Warn("Balance re-adjustment skipped, account disappeared during transaction update",
				"transactionID", tx.ID, "accountID", tx.AccountID, "userID", userID)
		}
	}
	return tx, nil
}

// GetTransaction fetches one owned transaction.
func (s *LedgerService) GetTransaction(id, userID int64) (*models.Transaction, error) {
	tx, err := models.GetTransactionByID(s.db, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
		}
		return nil, err
	}
	return tx, nil
}

// DeleteTransaction removes one owned transaction and reverses its original
// balance contribution exactly once, using the stored type and amount. A
// second delete of the same id fails NotFound without touching the balance.
func (s *LedgerService) DeleteTransaction(id, userID int64) error {
	tx, err := models.GetTransactionByID(s.db, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: transaction %d", ErrNotFound, id)
		}
		return err
	}

	if err := models.DeleteTransaction(s.db, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: transaction %d", ErrNotFound, id)
		}
		return err
	}

	rows, err := models.AdjustAccountBalance(s.db, tx.AccountID, userID, -tx.SignedAmount())
	if err != nil {
		return err
	}
	if rows == 0 {
		logger.L.Warn("Balance reversal skipped, account no longer exists",
			"transactionID", id, "accountID", tx.AccountID, "userID", userID)
	}
	return nil
}

// BulkDeleteTransactions deletes a batch of owned transactions. Authorization
// is all-or-nothing: one foreign id fails the whole batch with Forbidden and
// nothing is deleted. Deletion itself runs sequentially so each balance
// reversal fires in order; a storage failure mid-batch leaves the earlier
// deletions in place (documented gap, reported with the partial count).
func (s *LedgerService) BulkDeleteTransactions(ids []int64, userID int64) (int, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return 0, fmt.Errorf("%w: no transaction ids given", validation.ErrValidationFailed)
	}

	owned, err := models.CountOwnedTransactions(s.db, unique, userID)
	if err != nil {
		return 0, err
	}
	if owned != len(unique) {
		return 0, fmt.Errorf("%w: batch contains transactions not owned by the caller", ErrForbidden)
	}

	deleted := 0
	for _, id := range unique {
		if err := s.DeleteTransaction(id, userID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// TransactionPage is one page of query results.
type TransactionPage struct {
	Transactions []models.Transaction `json:"transactions"`
	Total        int                  `json:"total"`
	Page         int                  `json:"page"`
	Limit        int                  `json:"limit"`
	PageCount    int                  `json:"page_count"`
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// QueryTransactions runs a filtered, paginated ledger query sorted by date
// descending.
func (s *LedgerService) QueryTransactions(filter models.TransactionFilter, page, limit int) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if filter.Type != "" {
		if err := validation.ValidateEnum(strings.ToUpper(filter.Type), "type", models.TransactionTypes...); err != nil {
			return nil, err
		}
	}

	transactions, total, err := models.QueryTransactions(s.db, filter, page, limit)
	if err != nil {
		return nil, err
	}
	return &TransactionPage{
		Transactions: transactions,
		Total:        total,
		Page:         page,
		Limit:        limit,
		PageCount:    int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// TransactionStats is the per-type roll-up of the matching ledger rows.
// Net counts every non-income type as an outflow:
// net = income - expense - investment - tax.
type TransactionStats struct {
	ByType map[string]models.TypeStat `json:"by_type"`
	Net    float64                    `json:"net"`
}

// Stats aggregates the matching transactions by type, with all four types
// always present in the result.
func (s *LedgerService) Stats(filter models.TransactionFilter) (*TransactionStats, error) {
	byType, err := models.StatsByType(s.db, filter)
	if err != nil {
		return nil, err
	}
	net := byType[models.TransactionTypeIncome].Total -
		byType[models.TransactionTypeExpense].Total -
		byType[models.TransactionTypeInvestment].Total -
		byType[models.TransactionTypeTax].Total
	return &TransactionStats{ByType: byType, Net: net}, nil
}

// CategoryBreakdown groups matching transactions of one type by category,
// largest spend first.
func (s *LedgerService) CategoryBreakdown(filter models.TransactionFilter) ([]models.CategoryTotal, error) {
	if filter.Type == "" {
		return nil, fmt.Errorf("%w: type is required for a category breakdown", validation.ErrValidationFailed)
	}
	if err := validation.ValidateEnum(strings.ToUpper(filter.Type), "type", models.TransactionTypes...); err != nil {
		return nil, err
	}
	return models.CategoryBreakdown(s.db, filter)
}

func (s *LedgerService) validateTransaction(tx *models.Transaction) error {
	if err := validation.ValidateStringNotEmpty(tx.Type, "type"); err != nil {
		return err
	}
	if err := validation.ValidateEnum(tx.Type, "type", models.TransactionTypes...); err != nil {
		return err
	}
	if err := validation.ValidatePositiveAmount(tx.Amount, "amount"); err != nil {
		return err
	}
	if err := validation.ValidateStringNotEmpty(tx.Description, "description"); err != nil {
		return err
	}
	if err := validation.ValidateStringMaxLength(tx.Description, validation.MaxDescriptionLength, "description"); err != nil {
		return err
	}
	if err := validation.ValidateStringNotEmpty(tx.Category, "category"); err != nil {
		return err
	}
	if err := validation.ValidateStringMaxLength(tx.Category, validation.MaxCategoryLength, "category"); err != nil {
		return err
	}
	if err := validation.ValidateStringMaxLength(tx.Merchant, validation.MaxMerchantLength, "merchant"); err != nil {
		return err
	}
	if tx.AccountID == 0 {
		return fmt.Errorf("%w: account is required", validation.ErrValidationFailed)
	}

	// investment_type only means something on INVESTMENT transactions;
	// anything supplied on other types is discarded, not rejected.
	if tx.Type != models.TransactionTypeInvestment {
		tx.InvestmentType = ""
	} else if tx.InvestmentType != "" {
		if err := validation.ValidateEnum(tx.InvestmentType, "investment_type", models.InvestmentTypes...); err != nil {
			return err
		}
	}

	if tx.IsRecurring && tx.RecurringInterval != "" {
		if err := validation.ValidateEnum(tx.RecurringInterval, "recurring_interval", models.RecurringIntervals...); err != nil {
			return err
		}
	}
	return nil
}

func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
