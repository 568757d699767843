package handlers

import (
	"log"
	"net/http"

	"github.com/votra/contracts/httpx"
	"github.com/votra/contracts/internal/models"
	"github.com/votra/contracts/internal/services"
	"github.com/votra/contracts/validation"
)

// GateCheckHandler answers validity queries for downstream workflows.
type GateCheckHandler struct {
	Checker *services.GateChecker
}

func NewGateCheckHandler(c *services.GateChecker) *GateCheckHandler {
	return &GateCheckHandler{Checker: c}
}

// Valid: GET /documents/valid?counterparty_id=&type=
// A check that cannot complete (timeout, storage error) answers valid=false:
// legal gating fails closed.
func (h *GateCheckHandler) Valid(w http.ResponseWriter, r *http.Request) {
	cpID, ok := idParam(r, "counterparty_id")
	docType := r.URL.Query().Get("type")
	v := validation.Violations{}
	if !ok {
		v["counterparty_id"] = "required"
	}
	validation.OneOf("type", docType, models.DocumentTypes(), v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	res, err := h.Checker.HasValidDocument(r.Context(), cpID, docType)
	if err != nil {
		log.Printf("gate check failed (denying): counterparty=%d type=%s err=%v", cpID, docType, err)
		httpx.JSON(w, http.StatusOK, map[string]any{"valid": false, "mode": res.Mode, "degraded": true})
		return
	}
	body := map[string]any{"valid": res.Valid, "mode": res.Mode}
	if res.ExpirationDate != nil {
		body["expiration_date"] = res.ExpirationDate.Format(dateLayout)
	}
	httpx.JSON(w, http.StatusOK, body)
}
