// backend/src/processors/budget_processor.go
package processors

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/username/fintrack/backend/src/models"
)

// Budget statuses derived from the spending percentage.
const (
	BudgetStatusHealthy  = "HEALTHY"
	BudgetStatusWarning  = "WARNING"
	BudgetStatusExceeded = "EXCEEDED"
)

// Alert types.
const (
	AlertTypeWarning  = "WARNING"
	AlertTypeExceeded = "EXCEEDED"
)

// BudgetReport is a budget enriched with its derived spending figures. None
// of the derived fields are persisted; every report is recomputed from the
// ledger on demand.
type BudgetReport struct {
	models.Budget
	Spending        float64   `json:"current_spending"`
	RemainingAmount float64   `json:"remaining_amount"`
	PercentageUsed  float64   `json:"percentage_used"`
	Status          string    `json:"status"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
}

// BudgetAlert is one threshold crossing, recomputed from scratch on every
// call. There is no suppression state and no memory of earlier alerts.
type BudgetAlert struct {
	Category       string  `json:"category"`
	PercentageUsed float64 `json:"percentage_used"`
	AlertType      string  `json:"alert_type"`
	Message        string  `json:"message"`
}

// BudgetProcessor derives spending aggregates for budgets by replaying
// ledger queries. It holds no state beyond the database handle.
type BudgetProcessor struct {
	db *sql.DB
}

func NewBudgetProcessor(db *sql.DB) *BudgetProcessor {
	return &BudgetProcessor{db: db}
}

// Window returns the inclusive date range a budget covers: the full calendar
// month for MONTHLY budgets, the full year for YEARLY ones.
func (p *BudgetProcessor) Window(b models.Budget) (start, end time.Time) {
	if b.Period == models.BudgetPeriodMonthly {
		start = time.Date(b.Year, time.Month(b.Month), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
		return start, end
	}
	start = time.Date(b.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(1, 0, 0).Add(-time.Nanosecond)
	return start, end
}

// ComputeSpending fills in the derived fields for one budget from the ledger:
// spending is the sum of EXPENSE transactions in the budget's category and
// window, remaining never goes below zero, and a zero-amount budget reports
// 0% used rather than dividing by zero.
func (p *BudgetProcessor) ComputeSpending(b models.Budget) (*BudgetReport, error) {
	start, end := p.Window(b)
	spending, err := models.SumExpensesInWindow(p.db, b.UserID, b.Category, start, end)
	if err != nil {
		return nil, err
	}

	remaining := b.Amount - spending
	if remaining < 0 {
		remaining = 0
	}
	var percentage float64
	if b.Amount > 0 {
		percentage = spending / b.Amount * 100
	}

	return &BudgetReport{
		Budget:          b,
		Spending:        spending,
		RemainingAmount: remaining,
		PercentageUsed:  percentage,
		Status:          classifyStatus(percentage, b.AlertThreshold),
		PeriodStart:     start,
		PeriodEnd:       end,
	}, nil
}

// Reports computes spending for every budget the user has.
func (p *BudgetProcessor) Reports(userID int64) ([]BudgetReport, error) {
	budgets, err := models.ListBudgetsByUser(p.db, userID)
	if err != nil {
		return nil, err
	}
	reports := make([]BudgetReport, 0, len(budgets))
	for _, b := range budgets {
		report, err := p.ComputeSpending(b)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// Alerts checks every alerts-enabled budget covering the current month and
// emits an alert for each one at or past its threshold.
func (p *BudgetProcessor) Alerts(userID int64, now time.Time) ([]BudgetAlert, error) {
	budgets, err := models.ListBudgetsByUser(p.db, userID)
	if err != nil {
		return nil, err
	}

	alerts := []BudgetAlert{}
	for _, b := range budgets {
		if !b.AlertsEnabled || !coversMonth(b, now) {
			continue
		}
		report, err := p.ComputeSpending(b)
		if err != nil {
			return nil, err
		}
		if report.PercentageUsed < b.AlertThreshold {
			continue
		}
		alerts = append(alerts, buildAlert(report))
	}
	return alerts, nil
}

func coversMonth(b models.Budget, now time.Time) bool {
	if b.Period == models.BudgetPeriodMonthly {
		return b.Year == now.Year() && b.Month == int(now.Month())
	}
	return b.Year == now.Year()
}

func classifyStatus(percentage, threshold float64) string {
	switch {
	case percentage >= 100:
		return BudgetStatusExceeded
	case percentage >= threshold:
		return BudgetStatusWarning
	default:
		return BudgetStatusHealthy
	}
}

func buildAlert(report *BudgetReport) BudgetAlert {
	alert := BudgetAlert{
		Category:       report.Category,
		PercentageUsed: report.PercentageUsed,
	}
	if report.PercentageUsed >= 100 {
		alert.AlertType = AlertTypeExceeded
		alert.Message = fmt.Sprintf("Budget for '%s' is exceeded: %.1f%% of %.2f used.",
			report.Category, report.PercentageUsed, report.Amount)
	} else {
		alert.AlertType = AlertTypeWarning
		alert.Message = fmt.Sprintf("Budget for '%s' is at %.1f%% of %.2f.",
			report.Category, report.PercentageUsed, report.Amount)
	}
	return alert
}
