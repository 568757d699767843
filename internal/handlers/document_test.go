package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/votra/contracts/auth"
	"github.com/votra/contracts/internal/models"
	"github.com/votra/contracts/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Role{}, &models.User{}, &models.Counterparty{}, &models.Template{},
		&models.Document{}, &models.Signature{}, &models.DocumentVersion{}, &models.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedDocumentFixtures(t *testing.T, db *gorm.DB) (user models.User, cp models.Counterparty, tpl models.Template) {
	t.Helper()
	role := models.Role{Name: "manager"}
	if err := db.Create(&role).Error; err != nil {
		t.Fatalf("role: %v", err)
	}
	user = models.User{Email: "ops@test", Password: "x", RoleID: role.ID, Active: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	cp = models.Counterparty{Name: "Acme Corp", Email: "legal@acme.test", Active: true}
	if err := db.Create(&cp).Error; err != nil {
		t.Fatalf("counterparty: %v", err)
	}
	tpl = models.Template{
		Name: "Standard MSA", Version: 1, Type: models.DocumentTypeMSA,
		Content: "MSA between {{provider_name}} and {{client_name}}.", ValidityDays: 365,
		RenewalDays: 365, MinSigners: 1, Active: true,
	}
	if err := db.Create(&tpl).Error; err != nil {
		t.Fatalf("template: %v", err)
	}
	return
}

func authedRequest(method, target, body string, uid uint) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(auth.WithUserID(req.Context(), uid))
}

func TestDocumentCreateSignRenewFlow(t *testing.T) {
	db := setupHandlerTestDB(t)
	user, cp, tpl := seedDocumentFixtures(t, db)
	h := NewDocumentHandler(db, services.NewDocumentService(db))

	// Create
	body := fmt.Sprintf(`{"template_id":%d,"counterparty_id":%d,"effective_date":"2026-01-01","expiration_date":"2026-12-31"}`, tpl.ID, cp.ID)
	w := httptest.NewRecorder()
	h.Create(w, authedRequest(http.MethodPost, "/documents", body, user.ID))
	if w.Code != http.StatusCreated {
		t.Fatalf("create expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var created models.Document
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != models.StatusDraft {
		t.Fatalf("expected draft, got %s", created.Status)
	}
	id := strconv.Itoa(int(created.ID))

	// Sign: single signer satisfies the minimum
	w = httptest.NewRecorder()
	h.Sign(w, authedRequest(http.MethodPost, "/documents/sign?id="+id,
		`{"signer_name":"Jo Smith","signer_email":"jo@acme.test","method":"electronic"}`, user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("sign expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var signed models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &signed)
	if signed.Status != models.StatusSigned || signed.SignedDate == nil {
		t.Fatalf("expected signed with stamp, got %+v", signed)
	}

	// Renew
	w = httptest.NewRecorder()
	h.Renew(w, authedRequest(http.MethodPost, "/documents/renew?id="+id,
		`{"new_expiration_date":"2027-12-31","notes":"annual renewal"}`, user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("renew expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var renewed models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &renewed)
	if renewed.Status != models.StatusRenewed || renewed.CurrentVersion != 2 {
		t.Fatalf("expected renewed v2, got status=%s version=%d", renewed.Status, renewed.CurrentVersion)
	}

	// Get returns the version history
	w = httptest.NewRecorder()
	h.Get(w, authedRequest(http.MethodGet, "/documents/get?id="+id, "", user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("get expected 200 got %d", w.Code)
	}
	var detail struct {
		Document models.Document          `json:"document"`
		Versions []models.DocumentVersion `json:"versions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if len(detail.Versions) != 1 || detail.Versions[0].VersionNumber != 2 {
		t.Fatalf("expected one amendment at version 2, got %+v", detail.Versions)
	}

	// Signature ledger
	w = httptest.NewRecorder()
	h.Signatures(w, authedRequest(http.MethodGet, "/documents/signatures?id="+id, "", user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("signatures expected 200 got %d", w.Code)
	}
	var ledger struct {
		Items []models.Signature `json:"items"`
		Total int                `json:"total"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &ledger)
	if ledger.Total != 1 || ledger.Items[0].SignerName != "Jo Smith" {
		t.Fatalf("unexpected ledger: %+v", ledger)
	}
}

func TestDocumentCreateValidationErrors(t *testing.T) {
	db := setupHandlerTestDB(t)
	user, cp, tpl := seedDocumentFixtures(t, db)
	h := NewDocumentHandler(db, services.NewDocumentService(db))

	// expiration before effective
	body := fmt.Sprintf(`{"template_id":%d,"counterparty_id":%d,"effective_date":"2026-12-31","expiration_date":"2026-01-01"}`, tpl.ID, cp.ID)
	w := httptest.NewRecorder()
	h.Create(w, authedRequest(http.MethodPost, "/documents", body, user.ID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
	var resp struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "validation_failed" || resp.Details["expiration_date"] == "" {
		t.Fatalf("expected field-level detail, got %+v", resp)
	}

	// unknown template -> 404
	body = fmt.Sprintf(`{"template_id":999,"counterparty_id":%d,"effective_date":"2026-01-01","expiration_date":"2026-12-31"}`, cp.ID)
	w = httptest.NewRecorder()
	h.Create(w, authedRequest(http.MethodPost, "/documents", body, user.ID))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}

func TestDocumentUpdateRejectedAfterSigning(t *testing.T) {
	db := setupHandlerTestDB(t)
	user, cp, tpl := seedDocumentFixtures(t, db)
	h := NewDocumentHandler(db, services.NewDocumentService(db))

	body := fmt.Sprintf(`{"template_id":%d,"counterparty_id":%d,"effective_date":"2026-01-01","expiration_date":"2026-12-31"}`, tpl.ID, cp.ID)
	w := httptest.NewRecorder()
	h.Create(w, authedRequest(http.MethodPost, "/documents", body, user.ID))
	var created models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	id := strconv.Itoa(int(created.ID))

	w = httptest.NewRecorder()
	h.Sign(w, authedRequest(http.MethodPost, "/documents/sign?id="+id,
		`{"signer_name":"Jo Smith","signer_email":"jo@acme.test"}`, user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("sign: %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.Update(w, authedRequest(http.MethodPost, "/documents/update?id="+id,
		`{"customizations":"new terms"}`, user.ID))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Error   string `json:"error"`
		Details struct {
			Current string   `json:"current"`
			Allowed []string `json:"allowed"`
		} `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "invalid_state" || resp.Details.Current != models.StatusSigned {
		t.Fatalf("expected invalid_state with current state, got %+v", resp)
	}
}

func TestGateCheckEndpoint(t *testing.T) {
	db := setupHandlerTestDB(t)
	user, cp, tpl := seedDocumentFixtures(t, db)
	svc := services.NewDocumentService(db)
	dh := NewDocumentHandler(db, svc)
	gh := NewGateCheckHandler(services.NewGateChecker(db, nil))

	// No document yet: invalid.
	w := httptest.NewRecorder()
	gh.Valid(w, authedRequest(http.MethodGet, fmt.Sprintf("/documents/valid?counterparty_id=%d&type=msa", cp.ID), "", user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != false {
		t.Fatalf("expected invalid, got %v", resp)
	}

	// Create and sign, then the gate opens.
	body := fmt.Sprintf(`{"template_id":%d,"counterparty_id":%d,"effective_date":"2026-01-01","expiration_date":"2099-12-31"}`, tpl.ID, cp.ID)
	w = httptest.NewRecorder()
	dh.Create(w, authedRequest(http.MethodPost, "/documents", body, user.ID))
	var created models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	w = httptest.NewRecorder()
	dh.Sign(w, authedRequest(http.MethodPost, fmt.Sprintf("/documents/sign?id=%d", created.ID),
		`{"signer_name":"Jo Smith","signer_email":"jo@acme.test"}`, user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("sign: %d", w.Code)
	}

	w = httptest.NewRecorder()
	gh.Valid(w, authedRequest(http.MethodGet, fmt.Sprintf("/documents/valid?counterparty_id=%d&type=msa", cp.ID), "", user.ID))
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != true {
		t.Fatalf("expected valid, got %v", resp)
	}
	if resp["expiration_date"] != "2099-12-31" {
		t.Fatalf("expected expiration_date, got %v", resp)
	}

	// Missing/invalid params are a validation error.
	w = httptest.NewRecorder()
	gh.Valid(w, authedRequest(http.MethodGet, "/documents/valid?type=lease", "", user.ID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestAuditEndpointListsDocumentTrail(t *testing.T) {
	db := setupHandlerTestDB(t)
	user, cp, tpl := seedDocumentFixtures(t, db)
	dh := NewDocumentHandler(db, services.NewDocumentService(db))
	ah := NewAuditHandler(db)

	body := fmt.Sprintf(`{"template_id":%d,"counterparty_id":%d,"effective_date":"2026-01-01","expiration_date":"2026-12-31"}`, tpl.ID, cp.ID)
	w := httptest.NewRecorder()
	dh.Create(w, authedRequest(http.MethodPost, "/documents", body, user.ID))
	var created models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = httptest.NewRecorder()
	ah.List(w, authedRequest(http.MethodGet, fmt.Sprintf("/audit?entity_type=document&entity_id=%d", created.ID), "", user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var resp struct {
		Items []models.AuditLog `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Action != "create" {
		t.Fatalf("expected single create entry, got %+v", resp.Items)
	}
}
