// ABOUTME: JSON error envelope and response helpers for the grid HTTP API.
// ABOUTME: Every handler failure is written as {code, message, status, field?, details?}.

package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error reply.
//
// Usage:
//
//	WriteError(w, http.StatusNotFound, ErrUnknownRow, "row r1 is not loaded")
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// WriteError writes an error envelope with the given status and code.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
	})
}

// WriteErrorWithField names the request field that was rejected.
func WriteErrorWithField(w http.ResponseWriter, status int, code, message, field string) {
	WriteJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
		Field:   field,
	})
}

// WriteErrorWithDetails attaches the underlying cause, e.g. a wrapped fetch error.
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message, details string) {
	WriteJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
		Details: details,
	})
}

// WriteJSON writes v as a JSON body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error codes
const (
	// Client errors (4xx)
	ErrInvalidRequest = "invalid_request"
	ErrInvalidBody    = "invalid_request_body"
	ErrMissingField   = "missing_field"
	ErrInvalidPage    = "invalid_page"
	ErrNotFound       = "not_found"
	ErrUnknownGrid    = "unknown_grid"
	ErrUnknownColumn  = "unknown_column"
	ErrUnknownKind    = "unknown_kind"
	ErrUnknownRow     = "unknown_row"
	ErrTooManyGrids   = "too_many_grids"

	// Server errors (5xx)
	ErrInternal      = "internal_error"
	ErrDatabaseError = "database_error"
	ErrFetchFailed   = "fetch_failed"
)
