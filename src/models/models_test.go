package models

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    balance REAL NOT NULL DEFAULT 0,
    currency TEXT NOT NULL DEFAULT 'EUR',
    is_default INTEGER NOT NULL DEFAULT 0,
    color TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    account_id INTEGER NOT NULL,
    type TEXT NOT NULL,
    amount REAL NOT NULL,
    description TEXT NOT NULL,
    date TIMESTAMP NOT NULL,
    category TEXT NOT NULL,
    subcategory TEXT NOT NULL DEFAULT '',
    merchant TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    is_recurring INTEGER NOT NULL DEFAULT 0,
    recurring_interval TEXT,
    next_recurring_date TIMESTAMP,
    tax_deductible INTEGER NOT NULL DEFAULT 0,
    investment_type TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE budgets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    category TEXT NOT NULL,
    amount REAL NOT NULL,
    period TEXT NOT NULL,
    year INTEGER NOT NULL,
    month INTEGER NOT NULL DEFAULT 0,
    alerts_enabled INTEGER NOT NULL DEFAULT 1,
    alert_threshold REAL NOT NULL DEFAULT 80,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (user_id, category, year, month, period)
);`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newAccount(t *testing.T, db *sql.DB, userID int64, name string) *Account {
	t.Helper()
	a := &Account{UserID: userID, Name: name, Type: AccountTypeCurrent}
	require.NoError(t, a.CreateAccount(db))
	return a
}

func TestBudgetUpsertKeyedByPeriodTuple(t *testing.T) {
	db := setupTestDB(t)

	b := &Budget{
		UserID:         1,
		Category:       "food",
		Amount:         500,
		Period:         BudgetPeriodMonthly,
		Year:           2025,
		Month:          3,
		AlertsEnabled:  true,
		AlertThreshold: DefaultAlertThreshold,
	}
	require.NoError(t, b.Upsert(db))
	originalID := b.ID
	require.NotZero(t, originalID)

	// Same tuple updates in place instead of inserting a second row.
	revised := &Budget{
		UserID:         1,
		Category:       "food",
		Amount:         800,
		Period:         BudgetPeriodMonthly,
		Year:           2025,
		Month:          3,
		AlertsEnabled:  false,
		AlertThreshold: 90,
	}
	require.NoError(t, revised.Upsert(db))
	assert.Equal(t, originalID, revised.ID)

	budgets, err := ListBudgetsByUser(db, 1)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, 800.0, budgets[0].Amount)
	assert.False(t, budgets[0].AlertsEnabled)
	assert.Equal(t, 90.0, budgets[0].AlertThreshold)

	// A different month in the tuple is a new budget.
	april := &Budget{
		UserID:         1,
		Category:       "food",
		Amount:         600,
		Period:         BudgetPeriodMonthly,
		Year:           2025,
		Month:          4,
		AlertsEnabled:  true,
		AlertThreshold: DefaultAlertThreshold,
	}
	require.NoError(t, april.Upsert(db))
	assert.NotEqual(t, originalID, april.ID)

	budgets, err = ListBudgetsByUser(db, 1)
	require.NoError(t, err)
	assert.Len(t, budgets, 2)
}

func TestBudgetMonthlyAndYearlyCoexist(t *testing.T) {
	db := setupTestDB(t)

	monthly := &Budget{
		UserID: 1, Category: "food", Amount: 500,
		Period: BudgetPeriodMonthly, Year: 2025, Month: 3,
		AlertsEnabled: true, AlertThreshold: DefaultAlertThreshold,
	}
	yearly := &Budget{
		UserID: 1, Category: "food", Amount: 6000,
		Period: BudgetPeriodYearly, Year: 2025,
		AlertsEnabled: true, AlertThreshold: DefaultAlertThreshold,
	}
	require.NoError(t, monthly.Upsert(db))
	require.NoError(t, yearly.Upsert(db))
	assert.NotEqual(t, monthly.ID, yearly.ID)

	budgets, err := ListBudgetsByUser(db, 1)
	require.NoError(t, err)
	assert.Len(t, budgets, 2)
}

func TestDeleteBudgetScopedToOwner(t *testing.T) {
	db := setupTestDB(t)

	b := &Budget{
		UserID: 1, Category: "food", Amount: 500,
		Period: BudgetPeriodMonthly, Year: 2025, Month: 3,
		AlertsEnabled: true, AlertThreshold: DefaultAlertThreshold,
	}
	require.NoError(t, b.Upsert(db))

	assert.ErrorIs(t, DeleteBudget(db, b.ID, 2), sql.ErrNoRows)
	assert.NoError(t, DeleteBudget(db, b.ID, 1))
}

func TestSetDefaultAccountLeavesExactlyOneDefault(t *testing.T) {
	db := setupTestDB(t)

	a := newAccount(t, db, 1, "Checking")
	b := newAccount(t, db, 1, "Savings")
	c := newAccount(t, db, 1, "Broker")

	require.NoError(t, SetDefaultAccount(db, a.ID, 1))
	require.NoError(t, SetDefaultAccount(db, b.ID, 1))

	accounts, err := ListAccountsByUser(db, 1)
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	defaults := map[int64]bool{}
	for _, account := range accounts {
		if account.IsDefault {
			defaults[account.ID] = true
		}
	}
	assert.Equal(t, map[int64]bool{b.ID: true}, defaults)
	_ = c
}

func TestSetDefaultAccountUnknownAccount(t *testing.T) {
	db := setupTestDB(t)
	newAccount(t, db, 1, "Checking")

	assert.ErrorIs(t, SetDefaultAccount(db, 999, 1), sql.ErrNoRows)
}

func TestSetDefaultAccountDoesNotTouchOtherUsers(t *testing.T) {
	db := setupTestDB(t)

	mine := newAccount(t, db, 1, "Checking")
	theirs := newAccount(t, db, 2, "Checking")
	require.NoError(t, SetDefaultAccount(db, theirs.ID, 2))
	require.NoError(t, SetDefaultAccount(db, mine.ID, 1))

	other, err := GetAccountByID(db, theirs.ID, 2)
	require.NoError(t, err)
	assert.True(t, other.IsDefault)
}

func TestAdjustAccountBalanceReportsMissingAccount(t *testing.T) {
	db := setupTestDB(t)

	a := newAccount(t, db, 1, "Checking")
	rows, err := AdjustAccountBalance(db, a.ID, 1, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = AdjustAccountBalance(db, 999, 1, 250)
	require.NoError(t, err)
	assert.Zero(t, rows)

	reloaded, err := GetAccountByID(db, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 250.0, reloaded.Balance)
}

func TestRecalculateAccountBalanceCorrectsDrift(t *testing.T) {
	db := setupTestDB(t)

	a := newAccount(t, db, 1, "Checking")
	date := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rows := []struct {
		txType string
		amount float64
	}{
		{TransactionTypeIncome, 1000},
		{TransactionTypeExpense, 300},
		{TransactionTypeInvestment, 150},
		{TransactionTypeTax, 50},
	}
	for _, row := range rows {
		tx := &Transaction{
			UserID:      1,
			AccountID:   a.ID,
			Type:        row.txType,
			Amount:      row.amount,
			Description: "history",
			Date:        date,
			Category:    "misc",
		}
		require.NoError(t, tx.Insert(db))
	}

	// Simulate drift by overwriting the stored running total.
	_, err := db.Exec(`UPDATE accounts SET balance = 999 WHERE id = ?`, a.ID)
	require.NoError(t, err)

	previous, computed, err := RecalculateAccountBalance(db, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 999.0, previous)
	assert.Equal(t, 500.0, computed)

	reloaded, err := GetAccountByID(db, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 500.0, reloaded.Balance)
}

func TestNextOccurrenceIntervals(t *testing.T) {
	base := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

	daily, err := NextOccurrence(base, RecurringDaily)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC), daily)

	weekly, err := NextOccurrence(base, RecurringWeekly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 22, 0, 0, 0, 0, time.UTC), weekly)

	monthly, err := NextOccurrence(base, RecurringMonthly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC), monthly)

	yearly, err := NextOccurrence(base, RecurringYearly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), yearly)

	_, err = NextOccurrence(base, "FORTNIGHTLY")
	assert.Error(t, err)
}
