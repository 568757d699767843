package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/votra/contracts/httpx"
	"github.com/votra/contracts/internal/services"
)

// writeServiceError maps service-layer errors to JSON responses with enough
// context for the caller to correct and resubmit.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", ve.Violations)
		return
	}
	var se *services.InvalidStateError
	if errors.As(err, &se) {
		httpx.JSONError(w, http.StatusConflict, "invalid_state", map[string]any{
			"current": se.Current,
			"allowed": se.Allowed,
		})
		return
	}
	switch {
	case errors.Is(err, services.ErrDocumentNotFound):
		httpx.JSONError(w, http.StatusNotFound, "document_not_found", nil)
	case errors.Is(err, services.ErrTemplateNotFound):
		httpx.JSONError(w, http.StatusNotFound, "template_not_found", nil)
	case errors.Is(err, services.ErrCounterpartyNotFound):
		httpx.JSONError(w, http.StatusNotFound, "counterparty_not_found", nil)
	case errors.Is(err, services.ErrConcurrencyConflict):
		httpx.JSONError(w, http.StatusConflict, "conflict_retry_exhausted", nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// idParam reads a required uint id from the query string.
func idParam(r *http.Request, name string) (uint, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
