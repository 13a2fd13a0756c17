// backend/src/services/budget_service.go
package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/username/fintrack/backend/src/models"
	"github.com/username/fintrack/backend/src/security/validation"
)

// BudgetService validates and stores budget thresholds. Spending against them
// is derived elsewhere (processors.BudgetProcessor); this service never
// persists derived figures.
type BudgetService struct {
	db *sql.DB
}

func NewBudgetService(db *sql.DB) *BudgetService {
	return &BudgetService{db: db}
}

// UpsertBudgetInput carries the caller-supplied budget fields. AlertsEnabled
// and AlertThreshold are optional and default to enabled at 80%.
type UpsertBudgetInput struct {
	Category       string   `json:"category"`
	Amount         float64  `json:"amount"`
	Period         string   `json:"period"`
	Year           int      `json:"year"`
	Month          int      `json:"month,omitempty"`
	AlertsEnabled  *bool    `json:"alerts_enabled,omitempty"`
	AlertThreshold *float64 `json:"alert_threshold,omitempty"`
}

// Upsert creates or overwrites the budget keyed by
// (user, category, year, month, period).
func (s *BudgetService) Upsert(input UpsertBudgetInput, userID int64) (*models.Budget, error) {
	b := &models.Budget{
		UserID:         userID,
		Category:       strings.ToLower(strings.TrimSpace(input.Category)),
		Amount:         input.Amount,
		Period:         strings.ToUpper(strings.TrimSpace(input.Period)),
		Year:           input.Year,
		Month:          input.Month,
		AlertsEnabled:  true,
		AlertThreshold: models.DefaultAlertThreshold,
	}
	if input.AlertsEnabled != nil {
		b.AlertsEnabled = *input.AlertsEnabled
	}
	if input.AlertThreshold != nil {
		b.AlertThreshold = *input.AlertThreshold
	}

	if err := validation.ValidateStringNotEmpty(b.Category, "category"); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeAmount(b.Amount, "amount"); err != nil {
		return nil, err
	}
	if err := validation.ValidateEnum(b.Period, "period", models.BudgetPeriods...); err != nil {
		return nil, err
	}
	if b.Year < 1970 || b.Year > 9999 {
		return nil, fmt.Errorf("%w: year %d is out of range", validation.ErrValidationFailed, b.Year)
	}
	if b.Period == models.BudgetPeriodMonthly {
		if b.Month < 1 || b.Month > 12 {
			return nil, fmt.Errorf("%w: month is required for a MONTHLY budget and must be 1-12", validation.ErrValidationFailed)
		}
	} else if b.Month != 0 {
		return nil, fmt.Errorf("%w: month must not be set for a YEARLY budget", validation.ErrValidationFailed)
	}
	if err := validation.ValidatePercentage(b.AlertThreshold, "alert_threshold"); err != nil {
		return nil, err
	}

	if err := b.Upsert(s.db); err != nil {
		return nil, err
	}
	return b, nil
}

// Delete removes one owned budget.
func (s *BudgetService) Delete(id, userID int64) error {
	err := models.DeleteBudget(s.db, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: budget %d", ErrNotFound, id)
	}
	return err
}
