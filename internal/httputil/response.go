// Package httputil provides shared JSON response helpers.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the wire shape for all error responses.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a single failure.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSONResponse serialises v with the given status.
func WriteJSONResponse(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteErrorResponse writes the standard error body.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	WriteJSONResponse(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message, Details: details}})
}

// Unauthorized writes a 401 with an optional message override.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "authentication required"
	}
	WriteJSONResponse(w, http.StatusUnauthorized, ErrorBody{Error: ErrorDetail{Code: "UNAUTHORIZED", Message: message}})
}
