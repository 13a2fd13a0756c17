// backend/src/handlers/helpers.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/username/fintrack/backend/src/logger"
	"github.com/username/fintrack/backend/src/security/validation"
	"github.com/username/fintrack/backend/src/services"
	"github.com/username/fintrack/backend/src/utils"
)

func utilSendUnauthorized(w http.ResponseWriter, message string) {
	utils.SendJSONError(w, message, http.StatusUnauthorized)
}

// handleServiceError maps the service error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is a storage or programming failure and
// surfaces as a generic 500 so internals never leak to clients.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	switch {
	case errors.Is(err, validation.ErrValidationFailed):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrForbidden):
		utils.SendJSONError(w, err.Error(), http.StatusForbidden)
	default:
		logger.FromContext(r.Context()).Error("Unhandled service error", "operation", operation, "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
	}
}

// parseIDParam reads a positive integer id from the chi route parameters.
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s '%s'", name, raw)
	}
	return id, nil
}

// parseDateQuery reads an ISO-8601 date from the query string. endOfDay
// shifts the result to the last instant of that day so inclusive range
// filters cover the whole date.
func parseDateQuery(r *http.Request, name string, endOfDay bool) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s '%s', expected ISO-8601", name, raw)
		}
	}
	if endOfDay {
		parsed = parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &parsed, nil
}

// parseIntQuery reads an integer query parameter, returning fallback when absent.
func parseIntQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	if value, err := strconv.Atoi(raw); err == nil {
		return value
	}
	return fallback
}

// parseInt64Query reads an int64 query parameter, returning 0 when absent.
func parseInt64Query(r *http.Request, name string) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return value
	}
	return 0
}
