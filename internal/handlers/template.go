package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/votra/contracts/auth"
	"github.com/votra/contracts/gate"
	"github.com/votra/contracts/httpx"
	"github.com/votra/contracts/internal/models"
	"github.com/votra/contracts/internal/services"
	"github.com/votra/contracts/validation"
	"gorm.io/gorm"
)

// TemplateHandler manages contract templates. Creation and deactivation are
// admin-only, enforced through the policy gate. A template version is
// immutable once created: a content change means a new version row.
type TemplateHandler struct {
	DB   *gorm.DB
	Gate *gate.Gate[uint]
}

func NewTemplateHandler(db *gorm.DB, g *gate.Gate[uint]) *TemplateHandler {
	return &TemplateHandler{DB: db, Gate: g}
}

func (h *TemplateHandler) authorize(w http.ResponseWriter, r *http.Request, action gate.Action) bool {
	uid, _ := auth.UserIDFromContext(r.Context())
	if err := h.Gate.Authorize(r.Context(), uid, action, "template", nil); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return false
	}
	return true
}

// List: GET /templates – all versions, optionally filtered by type or active.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	q := h.DB.Model(&models.Template{})
	if t := r.URL.Query().Get("type"); t != "" {
		q = q.Where("type = ?", t)
	}
	if r.URL.Query().Get("active") == "true" {
		q = q.Where("active = ?", true)
	}
	var tpls []models.Template
	if err := q.Order("name asc, version desc").Find(&tpls).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_templates", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": tpls, "total": len(tpls)})
}

// Get: GET /templates/get?id= – one template with its placeholder keys.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	var tpl models.Template
	if err := h.DB.First(&tpl, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "template_not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"template":     tpl,
		"placeholders": services.Placeholders(tpl.Content),
	})
}

// Create: POST /templates – admin only. Version is assigned automatically:
// one past the highest existing version for the same name.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, gate.ActionCreate) {
		return
	}
	type createReq struct {
		Name         string `json:"name"`
		Type         string `json:"type"`
		Content      string `json:"content"`
		ValidityDays int    `json:"validity_days"`
		RenewalDays  int    `json:"renewal_days"`
		MinSigners   int    `json:"min_signers"`
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	v := validation.Violations{}
	validation.Required("name", req.Name, v)
	validation.Required("content", req.Content, v)
	validation.OneOf("type", req.Type, models.DocumentTypes(), v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	if req.ValidityDays <= 0 {
		req.ValidityDays = 365
	}
	if req.RenewalDays <= 0 {
		req.RenewalDays = req.ValidityDays
	}
	if req.MinSigners <= 0 {
		req.MinSigners = 1
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	var tpl models.Template
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var maxVersion int
		row := tx.Model(&models.Template{}).Where("name = ?", req.Name).Select("COALESCE(MAX(version), 0)").Row()
		if err := row.Scan(&maxVersion); err != nil {
			return err
		}
		tpl = models.Template{
			Name: req.Name, Version: maxVersion + 1, Type: req.Type, Content: req.Content,
			ValidityDays: req.ValidityDays, RenewalDays: req.RenewalDays,
			MinSigners: req.MinSigners, Active: true, CreatedBy: uid,
		}
		if err := tx.Create(&tpl).Error; err != nil {
			return err
		}
		entry := models.AuditLog{
			UserID: uid, Action: "create", EntityType: "template", EntityID: tpl.ID,
			NewValues:   `{"name":"` + tpl.Name + `","version":` + strconv.Itoa(tpl.Version) + `}`,
			Description: "template created",
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_template", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, tpl)
}

// Deactivate: POST /templates/deactivate?id= – admin only. Templates are
// never deleted; deactivation stops new documents from using them.
func (h *TemplateHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, gate.ActionArchive) {
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Template{}).Where("id = ? AND active = ?", id, true).Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		entry := models.AuditLog{
			UserID: uid, Action: "deactivate", EntityType: "template", EntityID: id,
			OldValues: `{"active":true}`, NewValues: `{"active":false}`,
			Description: "template deactivated",
		}
		return tx.Create(&entry).Error
	})
	if err == gorm.ErrRecordNotFound {
		httpx.JSONError(w, http.StatusNotFound, "template_not_found", nil)
		return
	}
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_deactivate_template", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// Preview: POST /templates/render?id= – substitutes bindings into the
// template body without creating anything.
func (h *TemplateHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	var tpl models.Template
	if err := h.DB.First(&tpl, id).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "template_not_found", nil)
		return
	}
	var bindings map[string]string
	if err := json.NewDecoder(r.Body).Decode(&bindings); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	rendered, missing := services.Render(tpl.Content, bindings)
	httpx.JSON(w, http.StatusOK, map[string]any{"rendered": rendered, "missing": missing})
}
