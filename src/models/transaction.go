package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Transaction types. The type is always stored uppercase; the sign of the
// balance contribution is implied by it, amounts themselves stay positive.
const (
	TransactionTypeIncome     = "INCOME"
	TransactionTypeExpense    = "EXPENSE"
	TransactionTypeInvestment = "INVESTMENT"
	TransactionTypeTax        = "TAX"
)

// TransactionTypes lists all valid transaction types in stats order.
var TransactionTypes = []string{
	TransactionTypeIncome,
	TransactionTypeExpense,
	TransactionTypeInvestment,
	TransactionTypeTax,
}

// Recurring intervals.
const (
	RecurringDaily   = "DAILY"
	RecurringWeekly  = "WEEKLY"
	RecurringMonthly = "MONTHLY"
	RecurringYearly  = "YEARLY"
)

var RecurringIntervals = []string{RecurringDaily, RecurringWeekly, RecurringMonthly, RecurringYearly}

// Investment types, only meaningful on INVESTMENT transactions.
var InvestmentTypes = []string{"STOCKS", "CRYPTO", "REAL_ESTATE", "BONDS", "MUTUAL_FUNDS", "OTHER"}

// Transaction is one row of the ledger. Category is stored lowercase and type
// uppercase regardless of caller casing.
type Transaction struct {
	ID                int64       `json:"id"`
	UserID            int64       `json:"user_id"`
	AccountID         int64       `json:"account_id"`
	Type              string      `json:"type"`
	Amount            float64     `json:"amount"`
	Description       string      `json:"description"`
	Date              time.Time   `json:"date"`
	Category          string      `json:"category"`
	Subcategory       string      `json:"subcategory,omitempty"`
	Merchant          string      `json:"merchant,omitempty"`
	Tags              []string    `json:"tags"`
	IsRecurring       bool        `json:"is_recurring"`
	RecurringInterval string      `json:"recurring_interval,omitempty"`
	NextRecurringDate *time.Time  `json:"next_recurring_date,omitempty"`
	TaxDeductible     bool        `json:"tax_deductible"`
	InvestmentType    string      `json:"investment_type,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	Account           *AccountRef `json:"account,omitempty"`
}

// SignedAmount is the transaction's contribution to its account balance:
// positive for income, negative for every outflow type.
func (t *Transaction) SignedAmount() float64 {
	if t.Type == TransactionTypeIncome {
		return t.Amount
	}
	return -t.Amount
}

// NextOccurrence adds exactly one interval unit to the given date. Month and
// year additions are calendar-aware via time.AddDate, which normalizes
// overflow: Jan 31 + 1 month lands on Mar 2 (Mar 3 in non-leap years).
func NextOccurrence(date time.Time, interval string) (time.Time, error) {
	switch interval {
	case RecurringDaily:
		return date.AddDate(0, 0, 1), nil
	case RecurringWeekly:
		return date.AddDate(0, 0, 7), nil
	case RecurringMonthly:
		return date.AddDate(0, 1, 0), nil
	case RecurringYearly:
		return date.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown recurring interval %q", interval)
	}
}

func (t *Transaction) Insert(db *sql.DB) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Tags == nil {
		t.Tags = []string{}
	}
	tagsJSON, err := json.Marshal(t.Tags)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO transactions (user_id, account_id, type, amount, description, date, category,
	                          subcategory, merchant, tags, is_recurring, recurring_interval,
	                          next_recurring_date, tax_deductible, investment_type, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := db.Exec(query,
		t.UserID, t.AccountID, t.Type, t.Amount, t.Description, t.Date, t.Category,
		t.Subcategory, t.Merchant, string(tagsJSON), t.IsRecurring, nullableString(t.RecurringInterval),
		nullableTime(t.NextRecurringDate), t.TaxDeductible, nullableString(t.InvestmentType),
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func GetTransactionByID(db *sql.DB, id, userID int64) (*Transaction, error) {
	query := selectTransactionColumns + `
	WHERE id = ? AND user_id = ?`
	row := db.QueryRow(query, id, userID)
	return scanTransaction(row)
}

// Update rewrites every mutable column of the row. AccountID is immutable and
// intentionally absent from the statement.
func (t *Transaction) Update(db *sql.DB) error {
	t.UpdatedAt = time.Now()
	if t.Tags == nil {
		t.Tags = []string{}
	}
	tagsJSON, err := json.Marshal(t.Tags)
	if err != nil {
		return err
	}

	query := `
	UPDATE transactions
	SET type = ?, amount = ?, description = ?, date = ?, category = ?, subcategory = ?,
	    merchant = ?, tags = ?, is_recurring = ?, recurring_interval = ?, next_recurring_date = ?,
	    tax_deductible = ?, investment_type = ?, updated_at = ?
	WHERE id = ? AND user_id = ?`
	res, err := db.Exec(query,
		t.Type, t.Amount, t.Description, t.Date, t.Category, t.Subcategory,
		t.Merchant, string(tagsJSON), t.IsRecurring, nullableString(t.RecurringInterval),
		nullableTime(t.NextRecurringDate), t.TaxDeductible, nullableString(t.InvestmentType),
		t.UpdatedAt, t.ID, t.UserID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func DeleteTransaction(db *sql.DB, id, userID int64) error {
	res, err := db.Exec(`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountOwnedTransactions reports how many of the given ids belong to the user.
// Bulk deletion uses it for the all-or-nothing authorization check.
func CountOwnedTransactions(db *sql.DB, ids []int64, userID int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `SELECT COUNT(*) FROM transactions WHERE user_id = ? AND id IN (?` +
		strings.Repeat(",?", len(ids)-1) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	var count int
	err := db.QueryRow(query, args...).Scan(&count)
	return count, err
}

// TransactionFilter enumerates the optional query criteria. Zero values mean
// "not filtered on". It compiles to a WHERE clause in buildWhere.
type TransactionFilter struct {
	UserID    int64
	Type      string
	Category  string
	AccountID int64
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
}

func (f *TransactionFilter) buildWhere() (string, []interface{}) {
	clauses := []string{"user_id = ?"}
	args := []interface{}{f.UserID}

	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, strings.ToUpper(f.Type))
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(f.Category)))
	}
	if f.AccountID != 0 {
		clauses = append(clauses, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.StartDate != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, *f.StartDate)
	}
	if f.EndDate != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, *f.EndDate)
	}
	if f.Search != "" {
		// LIKE is case-insensitive for ASCII in sqlite by default.
		clauses = append(clauses, "(description LIKE ? OR merchant LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}
	return strings.Join(clauses, " AND "), args
}

// QueryTransactions returns one page of matching rows ordered by date
// descending (id descending as the stable tie-break) plus the total match count.
func QueryTransactions(db *sql.DB, f TransactionFilter, page, limit int) ([]Transaction, int, error) {
	where, args := f.buildWhere()

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectTransactionColumns + `
	WHERE ` + where + `
	ORDER BY date DESC, id DESC
	LIMIT ? OFFSET ?`
	pagedArgs := append(append([]interface{}{}, args...), limit, (page-1)*limit)

	rows, err := db.Query(query, pagedArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if transactions == nil {
		transactions = []Transaction{}
	}
	return transactions, total, nil
}

// TypeStat is the aggregate for one transaction type.
type TypeStat struct {
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// StatsByType groups the matching rows by type. Every one of the four types
// is present in the result, absent groups defaulting to {0, 0}.
func StatsByType(db *sql.DB, f TransactionFilter) (map[string]TypeStat, error) {
	where, args := f.buildWhere()
	query := `
	SELECT type, COALESCE(SUM(amount), 0), COUNT(*)
	FROM transactions
	WHERE ` + where + `
	GROUP BY type`
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]TypeStat, len(TransactionTypes))
	for _, t := range TransactionTypes {
		stats[t] = TypeStat{}
	}
	for rows.Next() {
		var txType string
		var s TypeStat
		if err := rows.Scan(&txType, &s.Total, &s.Count); err != nil {
			return nil, err
		}
		stats[txType] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

// CategoryTotal is the aggregate for one category within a single type.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// CategoryBreakdown groups matching rows of one type by their lower-cased
// category, largest total first.
func CategoryBreakdown(db *sql.DB, f TransactionFilter) ([]CategoryTotal, error) {
	where, args := f.buildWhere()
	query := `
	SELECT category, COALESCE(SUM(amount), 0), COUNT(*)
	FROM transactions
	WHERE ` + where + `
	GROUP BY category
	ORDER BY SUM(amount) DESC`
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breakdown []CategoryTotal
	for rows.Next() {
		var c CategoryTotal
		if err := rows.Scan(&c.Category, &c.Total, &c.Count); err != nil {
			return nil, err
		}
		breakdown = append(breakdown, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if breakdown == nil {
		breakdown = []CategoryTotal{}
	}
	return breakdown, nil
}

// SumExpensesInWindow totals EXPENSE amounts for one category inside an
// inclusive date window. The budget aggregator reads spending through this.
func SumExpensesInWindow(db *sql.DB, userID int64, category string, start, end time.Time) (float64, error) {
	var total float64
	err := db.QueryRow(`
	SELECT COALESCE(SUM(amount), 0)
	FROM transactions
	WHERE user_id = ? AND type = ? AND category = ? AND date >= ? AND date <= ?`,
		userID, TransactionTypeExpense, strings.ToLower(category), start, end).Scan(&total)
	return total, err
}

const selectTransactionColumns = `
	SELECT id, user_id, account_id, type, amount, description, date, category,
	       subcategory, merchant, tags, is_recurring, recurring_interval,
	       next_recurring_date, tax_deductible, investment_type, created_at, updated_at
	FROM transactions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var t Transaction
	var tagsJSON string
	var recurringInterval, investmentType sql.NullString
	var nextRecurringDate sql.NullTime
	err := row.Scan(
		&t.ID, &t.UserID, &t.AccountID, &t.Type, &t.Amount, &t.Description, &t.Date, &t.Category,
		&t.Subcategory, &t.Merchant, &tagsJSON, &t.IsRecurring, &recurringInterval,
		&nextRecurringDate, &t.TaxDeductible, &investmentType, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if recurringInterval.Valid {
		t.RecurringInterval = recurringInterval.String
	}
	if investmentType.Valid {
		t.InvestmentType = investmentType.String
	}
	if nextRecurringDate.Valid {
		d := nextRecurringDate.Time
		t.NextRecurringDate = &d
	}
	if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
		return nil, fmt.Errorf("corrupt tags column on transaction %d: %w", t.ID, err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return &t, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
