// backend/src/services/insight_service.go
package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"github.com/username/fintrack/backend/src/logger"
	"github.com/username/fintrack/backend/src/models"
	"github.com/username/fintrack/backend/src/processors"
)

// Cache settings for computed financial summaries.
const (
	DefaultCacheExpiration = 5 * time.Minute
	CacheCleanupInterval   = 10 * time.Minute
)

// InsightClient is the injected collaborator that turns a prompt into
// natural-language text. It is constructed once at process start and passed
// in explicitly, so tests can substitute a deterministic implementation.
type InsightClient interface {
	Available() bool
	Generate(ctx context.Context, prompt string) (string, error)
}

// HTTPInsightClient talks to a remote text-generation service.
type HTTPInsightClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPInsightClient(baseURL, apiKey string) *HTTPInsightClient {
	return &HTTPInsightClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

func (c *HTTPInsightClient) Available() bool {
	return c.baseURL != ""
}

func (c *HTTPInsightClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("insight service returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if strings.TrimSpace(parsed.Text) == "" {
		return "", fmt.Errorf("insight service returned empty text")
	}
	return parsed.Text, nil
}

// FinancialSummary is the aggregate fed into prompt building and into the
// deterministic fallbacks.
type FinancialSummary struct {
	PeriodStart   time.Time                 `json:"period_start"`
	PeriodEnd     time.Time                 `json:"period_end"`
	Income        float64                   `json:"income"`
	Expenses      float64                   `json:"expenses"`
	Investments   float64                   `json:"investments"`
	Taxes         float64                   `json:"taxes"`
	Net           float64                   `json:"net"`
	TopCategories []models.CategoryTotal    `json:"top_categories"`
	BudgetReports []processors.BudgetReport `json:"budget_reports"`
}

// InsightResult carries the generated text plus the summary it was built
// from. Source tells callers whether the AI client or the fallback answered.
type InsightResult struct {
	Summary FinancialSummary `json:"summary"`
	Text    string           `json:"text"`
	Source  string           `json:"source"`
}

// InsightService builds financial summaries from the ledger and asks the
// injected client for commentary, substituting deterministic fallback content
// whenever the client is unavailable, slow, or failing. Endpoints backed by
// it therefore never fail once input validation has passed.
type InsightService struct {
	db           *sql.DB
	client       InsightClient
	budgets      *processors.BudgetProcessor
	summaryCache *cache.Cache
	timeout      time.Duration
	maxRetries   int
}

func NewInsightService(db *sql.DB, client InsightClient, budgets *processors.BudgetProcessor,
	summaryCache *cache.Cache, timeout time.Duration, maxRetries int) *InsightService {
	return &InsightService{
		db:           db,
		client:       client,
		budgets:      budgets,
		summaryCache: summaryCache,
		timeout:      timeout,
		maxRetries:   maxRetries,
	}
}

// GeneralInsights comments on the last 30 days of activity.
func (s *InsightService) GeneralInsights(ctx context.Context, userID int64) (*InsightResult, error) {
	summary, err := s.buildSummary(userID)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(
		"You are a personal finance assistant. Given income %.2f, expenses %.2f, investments %.2f, taxes %.2f and net %.2f for the last 30 days, top spending categories %s, give three short actionable insights.",
		summary.Income, summary.Expenses, summary.Investments, summary.Taxes, summary.Net, formatCategories(summary.TopCategories))
	text, source := s.generate(ctx, prompt, func() string { return fallbackGeneralInsights(summary) })
	return &InsightResult{Summary: *summary, Text: text, Source: source}, nil
}

// InvestmentTips comments on the investment share of recent activity.
func (s *InsightService) InvestmentTips(ctx context.Context, userID int64) (*InsightResult, error) {
	summary, err := s.buildSummary(userID)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(
		"You are a personal finance assistant. The user invested %.2f against an income of %.2f in the last 30 days. Suggest three ways to improve their investment habits. Do not give regulated financial advice.",
		summary.Investments, summary.Income)
	text, source := s.generate(ctx, prompt, func() string { return fallbackInvestmentTips(summary) })
	return &InsightResult{Summary: *summary, Text: text, Source: source}, nil
}

// TaxTips comments on tax-related activity.
func (s *InsightService) TaxTips(ctx context.Context, userID int64) (*InsightResult, error) {
	summary, err := s.buildSummary(userID)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(
		"You are a personal finance assistant. The user paid %.2f in taxes against an income of %.2f in the last 30 days. Suggest three general ways to stay organized for tax season.",
		summary.Taxes, summary.Income)
	text, source := s.generate(ctx, prompt, func() string { return fallbackTaxTips(summary) })
	return &InsightResult{Summary: *summary, Text: text, Source: source}, nil
}

// generate asks the client with a bounded timeout and retry, falling back to
// the deterministic content on any failure. Upstream failures are swallowed
// here; they never surface to the caller.
func (s *InsightService) generate(ctx context.Context, prompt string, fallback func() string) (text, source string) {
	if s.client == nil || !s.client.Available() {
		return fallback(), "fallback"
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.maxRetries)), ctx)
	result, err := backoff.RetryWithData(func() (string, error) {
		return s.client.Generate(ctx, prompt)
	}, policy)
	if err != nil {
		logger.L.Warn("Insight generation failed, using deterministic fallback", "error", err)
		return fallback(), "fallback"
	}
	return result, "ai"
}

func (s *InsightService) buildSummary(userID int64) (*FinancialSummary, error) {
	cacheKey := fmt.Sprintf("summary:%d", userID)
	if cached, found := s.summaryCache.Get(cacheKey); found {
		if summary, ok := cached.(*FinancialSummary); ok {
			return summary, nil
		}
	}

	end := time.Now()
	start := end.AddDate(0, 0, -30)
	filter := models.TransactionFilter{UserID: userID, StartDate: &start, EndDate: &end}

	byType, err := models.StatsByType(s.db, filter)
	if err != nil {
		return nil, err
	}

	expenseFilter := filter
	expenseFilter.Type = models.TransactionTypeExpense
	topCategories, err := models.CategoryBreakdown(s.db, expenseFilter)
	if err != nil {
		return nil, err
	}
	if len(topCategories) > 5 {
		topCategories = topCategories[:5]
	}

	budgetReports, err := s.budgets.Reports(userID)
	if err != nil {
		return nil, err
	}

	summary := &FinancialSummary{
		PeriodStart:   start,
		PeriodEnd:     end,
		Income:        byType[models.TransactionTypeIncome].Total,
		Expenses:      byType[models.TransactionTypeExpense].Total,
		Investments:   byType[models.TransactionTypeInvestment].Total,
		Taxes:         byType[models.TransactionTypeTax].Total,
		TopCategories: topCategories,
		BudgetReports: budgetReports,
	}
	summary.Net = summary.Income - summary.Expenses - summary.Investments - summary.Taxes

	s.summaryCache.Set(cacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}

// InvalidateSummary drops the cached summary after write operations so the
// next insight request re-derives it from the ledger.
func (s *InsightService) InvalidateSummary(userID int64) {
	s.summaryCache.Delete(fmt.Sprintf("summary:%d", userID))
}

func formatCategories(categories []models.CategoryTotal) string {
	if len(categories) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", c.Category, c.Total))
	}
	return strings.Join(parts, ", ")
}

func fallbackGeneralInsights(summary *FinancialSummary) string {
	var b strings.Builder
	if summary.Net >= 0 {
		fmt.Fprintf(&b, "You kept a positive net of %.2f over the last 30 days. ", summary.Net)
	} else {
		fmt.Fprintf(&b, "You spent %.2f more than you earned over the last 30 days. ", -summary.Net)
	}
	if len(summary.TopCategories) > 0 {
		top := summary.TopCategories[0]
		fmt.Fprintf(&b, "Your largest expense category was '%s' at %.2f. ", top.Category, top.Total)
	}
	exceeded := 0
	for _, report := range summary.BudgetReports {
		if report.Status == processors.BudgetStatusExceeded {
			exceeded++
		}
	}
	if exceeded > 0 {
		fmt.Fprintf(&b, "%d of your budgets are exceeded; consider revisiting them.", exceeded)
	} else {
		b.WriteString("All budgets are within their limits.")
	}
	return b.String()
}

func fallbackInvestmentTips(summary *FinancialSummary) string {
	if summary.Income <= 0 {
		return "No income was recorded in the last 30 days, so no investment rate can be computed. Record income transactions to track how much of it you invest."
	}
	rate := summary.Investments / summary.Income * 100
	return fmt.Sprintf("You invested %.1f%% of your income over the last 30 days. A common guideline is to invest steadily every month and keep an emergency fund before increasing contributions.", rate)
}

func fallbackTaxTips(summary *FinancialSummary) string {
	return fmt.Sprintf("You recorded %.2f in tax payments over the last 30 days. Mark deductible expenses with the tax-deductible flag as you enter them so year-end summaries stay accurate.", summary.Taxes)
}
