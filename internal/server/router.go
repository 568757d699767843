package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/votra/contracts/auth"
	"github.com/votra/contracts/gate"
	"github.com/votra/contracts/httpx"
	"github.com/votra/contracts/internal/config"
	"github.com/votra/contracts/internal/handlers"
	"github.com/votra/contracts/internal/models"
	"github.com/votra/contracts/internal/services"
	"gorm.io/gorm"
)

// newPolicyGate wires role-based authorization for admin resources.
// Roles resolve through the DB on each check; the volume is low enough that
// caching is not worth the staleness.
func newPolicyGate(db *gorm.DB) *gate.Gate[uint] {
	g := gate.NewGate[uint]()
	resolve := func(_ context.Context, uid uint) (string, error) {
		var user models.User
		if err := db.Preload("Role").First(&user, uid).Error; err != nil {
			return "", err
		}
		return user.Role.Name, nil
	}
	g.Register("template", &gate.RolePolicy[uint]{
		Resolve: resolve,
		Allowed: map[string][]gate.Action{
			"admin": {gate.ActionView, gate.ActionCreate, gate.ActionArchive, gate.ActionList},
		},
	})
	return g
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, cfg config.Config) http.Handler {
	mux := http.NewServeMux()

	// Configure a user verifier so RequireAuth can ensure the user still exists.
	auth.SetUserVerifier(func(_ context.Context, uid uint) bool {
		var count int64
		if err := db.Model(&models.User{}).Where("id = ? AND active = ?", uid, true).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	})

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth endpoints
	authHandler := handlers.NewAuthHandler(db)
	authHandler.Register(mux)

	protected := func(fn http.HandlerFunc) http.Handler {
		return auth.Middleware(auth.RequireAuth(fn))
	}

	// Template endpoints (creation/deactivation admin-only via policy gate)
	th := handlers.NewTemplateHandler(db, newPolicyGate(db))
	mux.Handle("/templates", protected(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			th.List(w, r)
		case http.MethodPost:
			th.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))
	mux.Handle("/templates/get", protected(th.Get))
	mux.Handle("/templates/deactivate", protected(th.Deactivate))
	mux.Handle("/templates/render", protected(th.Preview))

	// Counterparty endpoints
	ch := handlers.NewCounterpartyHandler(db)
	mux.Handle("/counterparties", protected(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ch.List(w, r)
		case http.MethodPost:
			ch.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))

	// Document lifecycle endpoints
	docSvc := services.NewDocumentService(db)
	dh := handlers.NewDocumentHandler(db, docSvc)
	mux.Handle("/documents", protected(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			dh.List(w, r)
		case http.MethodPost:
			dh.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))
	mux.Handle("/documents/get", protected(dh.Get))
	mux.Handle("/documents/update", protected(dh.Update))
	mux.Handle("/documents/sign", protected(dh.Sign))
	mux.Handle("/documents/renew", protected(dh.Renew))
	mux.Handle("/documents/archive", protected(dh.Archive))
	mux.Handle("/documents/signatures", protected(dh.Signatures))

	// Gate check for downstream workflows (SOW creation, invoicing)
	gh := handlers.NewGateCheckHandler(services.NewGateChecker(db, cfg.GateModes))
	mux.Handle("/documents/valid", protected(gh.Valid))

	// Audit trail (read-only)
	ah := handlers.NewAuditHandler(db)
	mux.Handle("/audit", protected(ah.List))

	return withRecover(withLogging(mux))
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
