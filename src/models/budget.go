package models

import (
	"database/sql"
	"time"
)

// Budget periods.
const (
	BudgetPeriodMonthly = "MONTHLY"
	BudgetPeriodYearly  = "YEARLY"
)

var BudgetPeriods = []string{BudgetPeriodMonthly, BudgetPeriodYearly}

// DefaultAlertThreshold is the percentage at which budget alerts fire unless
// the user picked another value.
const DefaultAlertThreshold = 80.0

// Budget is a spending threshold for one category and period. Month is 0 for
// YEARLY budgets, 1-12 for MONTHLY ones; together with user, category, year
// and period it forms the upsert key. Spending figures are never persisted,
// the aggregator derives them per request.
type Budget struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Category       string    `json:"category"`
	Amount         float64   `json:"amount"`
	Period         string    `json:"period"`
	Year           int       `json:"year"`
	Month          int       `json:"month,omitempty"`
	AlertsEnabled  bool      `json:"alerts_enabled"`
	AlertThreshold float64   `json:"alert_threshold"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Upsert creates the budget or, when the uniqueness tuple already exists,
// overwrites its amount and alert settings.
func (b *Budget) Upsert(db *sql.DB) error {
	now := time.Now()
	b.UpdatedAt = now

	query := `
	INSERT INTO budgets (user_id, category, amount, period, year, month, alerts_enabled, alert_threshold, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, category, year, month, period) DO UPDATE
	SET amount = excluded.amount,
	    alerts_enabled = excluded.alerts_enabled,
	    alert_threshold = excluded.alert_threshold,
	    updated_at = excluded.updated_at
	RETURNING id, created_at`
	return db.QueryRow(query,
		b.UserID, b.Category, b.Amount, b.Period, b.Year, b.Month,
		b.AlertsEnabled, b.AlertThreshold, now, now).Scan(&b.ID, &b.CreatedAt)
}

func GetBudgetByID(db *sql.DB, id, userID int64) (*Budget, error) {
	query := `
	SELECT id, user_id, category, amount, period, year, month, alerts_enabled, alert_threshold, created_at, updated_at
	FROM budgets
	WHERE id = ? AND user_id = ?`
	var b Budget
	err := db.QueryRow(query, id, userID).Scan(
		&b.ID, &b.UserID, &b.Category, &b.Amount, &b.Period, &b.Year, &b.Month,
		&b.AlertsEnabled, &b.AlertThreshold, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func ListBudgetsByUser(db *sql.DB, userID int64) ([]Budget, error) {
	query := `
	SELECT id, user_id, category, amount, period, year, month, alerts_enabled, alert_threshold, created_at, updated_at
	FROM budgets
	WHERE user_id = ?
	ORDER BY year DESC, month DESC, category ASC`
	rows, err := db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.Category, &b.Amount, &b.Period, &b.Year, &b.Month,
			&b.AlertsEnabled, &b.AlertThreshold, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if budgets == nil {
		budgets = []Budget{}
	}
	return budgets, nil
}

func DeleteBudget(db *sql.DB, id, userID int64) error {
	res, err := db.Exec(`DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
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
