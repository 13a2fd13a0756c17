package models

import (
	"database/sql"
	"time"
)

// Account types supported by the tracker.
const (
	AccountTypeCurrent    = "CURRENT"
	AccountTypeSavings    = "SAVINGS"
	AccountTypeInvestment = "INVESTMENT"
	AccountTypeCreditCard = "CREDIT_CARD"
)

// AccountTypes lists all valid account types in display order.
var AccountTypes = []string{
	AccountTypeCurrent,
	AccountTypeSavings,
	AccountTypeInvestment,
	AccountTypeCreditCard,
}

// Account holds a user's money pot. Its balance is a running total adjusted
// on every transaction create/delete; it is never recomputed implicitly.
type Account struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Balance     float64   `json:"balance"`
	Currency    string    `json:"currency"`
	IsDefault   bool      `json:"is_default"`
	Color       string    `json:"color,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AccountRef is the minimal account projection embedded in transaction responses.
type AccountRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func (a *Account) CreateAccount(db *sql.DB) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Currency == "" {
		a.Currency = "EUR"
	}

	query := `
	INSERT INTO accounts (user_id, name, type, balance, currency, is_default, color, description, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := db.Exec(query,
		a.UserID, a.Name, a.Type, a.Balance, a.Currency, a.IsDefault, a.Color, a.Description,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func GetAccountByID(db *sql.DB, id, userID int64) (*Account, error) {
	query := `
	SELECT id, user_id, name, type, balance, currency, is_default, color, description, created_at, updated_at
	FROM accounts
	WHERE id = ? AND user_id = ?`
	var a Account
	err := db.QueryRow(query, id, userID).Scan(
		&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance, &a.Currency, &a.IsDefault,
		&a.Color, &a.Description, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func ListAccountsByUser(db *sql.DB, userID int64) ([]Account, error) {
	query := `
	SELECT id, user_id, name, type, balance, currency, is_default, color, description, created_at, updated_at
	FROM accounts
	WHERE user_id = ?
	ORDER BY created_at ASC, id ASC`
	rows, err := db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance, &a.Currency, &a.IsDefault,
			&a.Color, &a.Description, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []Account{}
	}
	return accounts, nil
}

// UpdateAccount rewrites the user-editable attributes. Balance is deliberately
// not part of this statement; it only moves through AdjustAccountBalance and
// RecalculateAccountBalance.
func (a *Account) UpdateAccount(db *sql.DB) error {
	a.UpdatedAt = time.Now()
	query := `
	UPDATE accounts
	SET name = ?, type = ?, currency = ?, color = ?, description = ?, updated_at = ?
	WHERE id = ? AND user_id = ?`
	res, err := db.Exec(query, a.Name, a.Type, a.Currency, a.Color, a.Description, a.UpdatedAt, a.ID, a.UserID)
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

func DeleteAccount(db *sql.DB, id, userID int64) error {
	res, err := db.Exec(`DELETE FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
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

// SetDefaultAccount clears the default flag on every sibling account and sets
// it on the target within a single database transaction, so the unique-default
// invariant cannot be observed half-applied.
func SetDefaultAccount(db *sql.DB, id, userID int64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`UPDATE accounts SET is_default = 0 WHERE user_id = ? AND id != ?`, userID, id); err != nil {
		return err
	}
	res, err := tx.Exec(`UPDATE accounts SET is_default = 1, updated_at = ? WHERE id = ? AND user_id = ?`, time.Now(), id, userID)
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
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// AdjustAccountBalance applies a signed delta as one atomic read-modify-write
// inside the database. Returns the number of rows touched; zero means the
// account no longer exists and the caller decides what to do about it.
func AdjustAccountBalance(db *sql.DB, id, userID int64, delta float64) (int64, error) {
	res, err := db.Exec(`
	UPDATE accounts
	SET balance = balance + ?, updated_at = ?
	WHERE id = ? AND user_id = ?`, delta, time.Now(), id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecalculateAccountBalance recomputes the balance from a full scan of the
// account's transactions and rewrites the stored value. It reports the value
// before and after so callers can expose the drift.
func RecalculateAccountBalance(db *sql.DB, id, userID int64) (previous, computed float64, err error) {
	account, err := GetAccountByID(db, id, userID)
	if err != nil {
		return 0, 0, err
	}
	previous = account.Balance

	query := `
	SELECT COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)
	FROM transactions
	WHERE account_id = ? AND user_id = ?`
	if err = db.QueryRow(query, TransactionTypeIncome, id, userID).Scan(&computed); err != nil {
		return 0, 0, err
	}

	_, err = db.Exec(`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		computed, time.Now(), id, userID)
	if err != nil {
		return 0, 0, err
	}
	return previous, computed, nil
}

// CountTransactionsForAccount reports how many ledger rows still reference the account.
func CountTransactionsForAccount(db *sql.DB, accountID, userID int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE account_id = ? AND user_id = ?`,
		accountID, userID).Scan(&count)
	return count, err
}
