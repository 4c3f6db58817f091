package api

import (
	"encoding/json"
	"net/http"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/logging"
	"github.com/chain-ledger/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Common error codes
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// mapServiceError maps a categorized error to its HTTP status, code and the
// message shown to the client. System errors are not described.
func mapServiceError(err error) (int, string, string, map[string]interface{}) {
	catErr := errors.Categorize(err)
	if catErr == nil || catErr.Category == errors.CategorySystem ||
		catErr.Category == errors.CategoryDatabase || catErr.Category == errors.CategoryCache {
		return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil
	}
	return catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details
}

// respondServiceError logs err with the request logger and writes the mapped response
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, code, message, details := mapServiceError(err)
	log := logging.FromContext(r.Context()).WithError(err).WithField("code", code)
	if statusCode >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Warn("request rejected")
	}
	respondError(w, statusCode, code, message, details)
}

func respondUnavailable(w http.ResponseWriter, what string) {
	respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, what+" is not configured", nil)
}
