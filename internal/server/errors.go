package server

import (
	"encoding/json"
	"net/http"
)

// Error codes surfaced to callers. Validation and not-found errors are not
// retryable without changing the request; internal errors are.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodePolicyNotFound = "POLICY_NOT_FOUND"
	CodeConfig         = "CONFIG_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
	CodeRateLimited    = "RATE_LIMITED"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message, traceID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{
		Error:   message,
		Code:    code,
		TraceID: traceID,
	})
}

// writeJSON writes a JSON success response.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
