package handlers

import (
	"net/http"

	"github.com/votra/contracts/httpx"
	"github.com/votra/contracts/internal/services"
	"gorm.io/gorm"
)

type AuditHandler struct{ DB *gorm.DB }

func NewAuditHandler(db *gorm.DB) *AuditHandler { return &AuditHandler{DB: db} }

// List: GET /audit?entity_type=&entity_id=&user_id=&action= – read-only view
// of the audit trail for compliance review. Entries are never editable.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	f := services.AuditFilter{
		EntityType: r.URL.Query().Get("entity_type"),
		Action:     r.URL.Query().Get("action"),
	}
	if id, ok := idParam(r, "entity_id"); ok {
		f.EntityID = id
	}
	if id, ok := idParam(r, "user_id"); ok {
		f.UserID = id
	}
	if n, ok := idParam(r, "limit"); ok {
		f.Limit = int(n)
	}
	logs, err := services.ListAuditLogs(h.DB, f)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_audit_logs", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": logs, "total": len(logs)})
}
