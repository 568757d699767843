package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/votra/contracts/internal/config"
	"github.com/votra/contracts/internal/db"
	"github.com/votra/contracts/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, m := range db.ModelsToMigrate() {
		if err := conn.AutoMigrate(m); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	cfg := config.Config{GateModes: map[string]string{models.DocumentTypeMSA: "hard", models.DocumentTypeNDA: "hard"}}
	return New(conn, cfg), conn
}

func TestHealthEndpoints(t *testing.T) {
	handler, _ := setupRouter(t)
	for _, path := range []string{"/health", "/healthz"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s expected 200 got %d", path, w.Code)
		}
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	handler, _ := setupRouter(t)
	for _, path := range []string{"/documents", "/templates", "/counterparties", "/documents/valid", "/audit"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s expected 401 got %d", path, w.Code)
		}
	}
}

func TestLoginIssuesUsableSession(t *testing.T) {
	handler, conn := setupRouter(t)

	role := models.Role{Name: "manager"}
	if err := conn.Create(&role).Error; err != nil {
		t.Fatalf("role: %v", err)
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.DefaultCost)
	user := models.User{Email: "ops@test", Password: string(hash), RoleID: role.ID, Active: true}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("user: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"ops@test","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected session cookie")
	}

	// Session cookie grants access to protected routes.
	w = httptest.NewRecorder()
	listReq := httptest.NewRequest(http.MethodGet, "/documents", nil)
	for _, c := range cookies {
		listReq.AddCookie(c)
	}
	handler.ServeHTTP(w, listReq)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated list expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Items []models.Document `json:"items"`
		Total int64             `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 0 {
		t.Fatalf("expected empty document list, got %+v", resp)
	}

	// Wrong password denied.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"ops@test","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}

func TestSignupBootstrapsAdmin(t *testing.T) {
	handler, conn := setupRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"first@test","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["role"] != "admin" {
		t.Fatalf("first user should be admin, got %v", resp["role"])
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"second@test","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(w, req)
	var second map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &second)
	if second["role"] != "manager" {
		t.Fatalf("later users default to manager, got %v", second["role"])
	}

	var count int64
	if err := conn.Model(&models.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 users, got %d", count)
	}
}
