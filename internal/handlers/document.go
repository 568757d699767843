package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/votra/contracts/auth"
	"github.com/votra/contracts/httpx"
	"github.com/votra/contracts/internal/services"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// DocumentHandler exposes the document lifecycle over HTTP. All state changes
// delegate to the documents service; this layer only parses, authorizes, and
// maps errors.
type DocumentHandler struct {
	DB     *gorm.DB
	Svc    *services.DocumentService
	Ledger *services.SignatureLedger
}

func NewDocumentHandler(db *gorm.DB, svc *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{DB: db, Svc: svc, Ledger: svc.Ledger}
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// List: GET /documents?counterparty_id=&status=&type=
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	f := services.DocumentFilter{
		Status: r.URL.Query().Get("status"),
		Type:   r.URL.Query().Get("type"),
	}
	if id, ok := idParam(r, "counterparty_id"); ok {
		f.CounterpartyID = id
	}
	if id, ok := idParam(r, "limit"); ok {
		f.Limit = int(id)
	}
	docs, total, err := h.Svc.List(r.Context(), f)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_documents", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": docs, "total": total})
}

// Get: GET /documents/get?id= – document plus its version history.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	doc, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	versions, err := h.Svc.Versions(r.Context(), id)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_versions", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"document": doc, "versions": versions})
}

// Create: POST /documents
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	type createReq struct {
		TemplateID     uint   `json:"template_id"`
		CounterpartyID uint   `json:"counterparty_id"`
		EffectiveDate  string `json:"effective_date"`
		ExpirationDate string `json:"expiration_date"`
		Customizations string `json:"customizations"`
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	eff, ok1 := parseDate(req.EffectiveDate)
	exp, ok2 := parseDate(req.ExpirationDate)
	if !ok1 || !ok2 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"date": "expected YYYY-MM-DD"})
		return
	}
	doc, err := h.Svc.Create(r.Context(), services.CreateDocumentInput{
		TemplateID:     req.TemplateID,
		CounterpartyID: req.CounterpartyID,
		EffectiveDate:  eff,
		ExpirationDate: exp,
		Customizations: req.Customizations,
	}, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

// Update: POST /documents/update?id= – draft only.
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := idParam(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	type updateReq struct {
		Customizations *string `json:"customizations"`
		ExpirationDate *string `json:"expiration_date"`
	}
	var req updateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	in := services.UpdateDocumentInput{Customizations: req.Customizations}
	if req.ExpirationDate != nil {
		exp, ok := parseDate(*req.ExpirationDate)
		if !ok || exp.IsZero() {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"expiration_date": "expected YYYY-MM-DD"})
			return
		}
		in.ExpirationDate = &exp
	}
	doc, err := h.Svc.Update(r.Context(), id, in, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

// Sign: POST /documents/sign?id=
func (h *DocumentHandler) Sign(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := idParam(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	type signReq struct {
		SignerName  string `json:"signer_name"`
		SignerEmail string `json:"signer_email"`
		SignerTitle string `json:"signer_title"`
		Affiliation string `json:"affiliation"`
		Method      string `json:"method"`
	}
	var req signReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	doc, err := h.Svc.RecordSignature(r.Context(), id, services.SignerInput{
		Name:        req.SignerName,
		Email:       req.SignerEmail,
		Title:       req.SignerTitle,
		Affiliation: req.Affiliation,
		Method:      req.Method,
	}, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

// Renew: POST /documents/renew?id=
func (h *DocumentHandler) Renew(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := idParam(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	type renewReq struct {
		NewExpirationDate string `json:"new_expiration_date"`
		Notes             string `json:"notes"`
	}
	var req renewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	exp, ok := parseDate(req.NewExpirationDate)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"new_expiration_date": "expected YYYY-MM-DD"})
		return
	}
	doc, err := h.Svc.Renew(r.Context(), id, services.RenewInput{NewExpirationDate: exp, Notes: req.Notes}, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

// Archive: POST /documents/archive?id= – idempotent soft delete.
func (h *DocumentHandler) Archive(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := idParam(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	doc, err := h.Svc.Archive(r.Context(), id, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

// Signatures: GET /documents/signatures?id= – the append-only ledger for one
// document, in signing order.
func (h *DocumentHandler) Signatures(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	sigs, err := h.Ledger.ListFor(r.Context(), id)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_signatures", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": sigs, "total": len(sigs)})
}
