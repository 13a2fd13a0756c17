// backend/src/utils/response.go
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/username/fintrack/backend/src/logger"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// SendJSON writes a success envelope with the given payload.
func SendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data}); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}

// SendJSONMessage writes a success envelope carrying only a message.
func SendJSONMessage(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: true, Message: message}); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}

// SendJSONError writes a failure envelope. Internal details must be scrubbed
// by the caller before reaching this point.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: false, Message: message}); err != nil {
		logger.L.Error("Failed to encode JSON error response", "error", err)
	}
}
