package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/votra/contracts/httpx"
	"github.com/votra/contracts/internal/models"
	"github.com/votra/contracts/validation"
	"gorm.io/gorm"
)

type CounterpartyHandler struct{ DB *gorm.DB }

func NewCounterpartyHandler(db *gorm.DB) *CounterpartyHandler { return &CounterpartyHandler{DB: db} }

// List: GET /counterparties
func (h *CounterpartyHandler) List(w http.ResponseWriter, r *http.Request) {
	q := h.DB.Model(&models.Counterparty{}).Where("active = ?", true)
	if s := strings.TrimSpace(r.URL.Query().Get("q")); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("lower(name) LIKE ? OR lower(company) LIKE ?", like, like)
	}
	var cps []models.Counterparty
	if err := q.Order("name asc").Limit(200).Find(&cps).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_counterparties", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": cps, "total": len(cps)})
}

// Create: POST /counterparties
func (h *CounterpartyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var cp models.Counterparty
	if err := json.NewDecoder(r.Body).Decode(&cp); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("name", cp.Name, v)
	validation.Required("email", cp.Email, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	cp.ID = 0
	cp.Active = true
	if cp.PaymentTerms <= 0 {
		cp.PaymentTerms = 30
	}
	if err := h.DB.Create(&cp).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_counterparty", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, cp)
}
