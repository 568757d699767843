// Package httpx holds the JSON response helpers shared by every handler in
// the contracts API.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the uniform error body: a snake_case error code plus an
// optional details payload (field violations, state info).
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// JSON writes payload with the given status. Marshaling happens before any
// header is written so an encode failure never leaves a half-written body.
func JSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// JSONError writes an ErrorResponse with the given status and error code.
func JSONError(w http.ResponseWriter, status int, code string, details any) {
	JSON(w, status, ErrorResponse{Error: code, Details: details})
}
