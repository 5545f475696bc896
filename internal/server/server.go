// Package server wires stores, services and handlers into the HTTP API.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/larderapp/larder/internal/backup"
	"github.com/larderapp/larder/internal/catalog"
	"github.com/larderapp/larder/internal/email"
	"github.com/larderapp/larder/internal/handler"
	"github.com/larderapp/larder/internal/household"
	"github.com/larderapp/larder/internal/middleware"
	"github.com/larderapp/larder/internal/push"
	"github.com/larderapp/larder/internal/remote"
	"github.com/larderapp/larder/internal/store"
	"github.com/larderapp/larder/internal/syncer"
	ws "github.com/larderapp/larder/internal/websocket"
)

type Server struct {
	db  *sql.DB
	hub *ws.Hub

	authH      *handler.AuthHandler
	householdH *handler.HouseholdHandler
	productH   *handler.ProductHandler
	syncH      *handler.SyncHandler
	pushH      *handler.PushHandler // nil when VAPID keys are missing
	backupH    *handler.BackupHandler

	sessions    *store.SessionStore
	users       *store.UserStore
	pushes      *store.PushStore
	products    *store.ProductStore
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

// New wires the application together. dir may be nil (no remote
// directory), emailClient may be unconfigured, and pushSvc may be nil;
// the corresponding features degrade to local-only behavior.
func New(db *sql.DB, dir remote.Directory, emailClient *email.Client, pushSvc *push.Service, backupMgr *backup.Manager, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)
	households := store.NewHouseholdStore(db)
	products := store.NewProductStore(db)
	pushes := store.NewPushStore(db)

	var mailer household.Mailer
	if emailClient != nil && emailClient.Configured() {
		mailer = emailClient
	}
	householdSvc := household.NewService(households, dir, mailer, hub, logger.With("component", "household"))

	var syncSvc *syncer.Syncer
	if dir != nil {
		syncSvc = syncer.New(households, dir, logger.With("component", "sync"))
	}

	cat := catalog.NewClient()

	var pushH *handler.PushHandler
	if pushSvc != nil {
		pushH = handler.NewPushHandler(pushes, households, pushSvc, logger.With("component", "push"))
	}

	return &Server{
		db:          db,
		hub:         hub,
		authH:       handler.NewAuthHandler(users, sessions, logger.With("component", "auth")),
		householdH:  handler.NewHouseholdHandler(householdSvc, households, logger.With("component", "household")),
		productH:    handler.NewProductHandler(products, households, cat, dir, hub, logger.With("component", "product")),
		syncH:       handler.NewSyncHandler(syncSvc, logger.With("component", "sync")),
		pushH:       pushH,
		backupH:     handler.NewBackupHandler(backupMgr, logger.With("component", "backup")),
		sessions:    sessions,
		users:       users,
		pushes:      pushes,
		products:    products,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessions
}

// PushStore returns the push store for the expiry notifier.
func (s *Server) PushStore() *store.PushStore {
	return s.pushes
}

// ProductStore returns the product store for the expiry notifier.
func (s *Server) ProductStore() *store.ProductStore {
	return s.products
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimited(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimited(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessions, s.users)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("GET /api/households", s.householdH.List)
	mux.HandleFunc("GET /api/households/{id}", s.householdH.Get)
	mux.HandleFunc("PUT /api/households/{id}", s.householdH.Update)
	mux.HandleFunc("DELETE /api/households/{id}", s.householdH.Delete)
	mux.HandleFunc("GET /api/households/{id}/members", s.householdH.Members)
	mux.HandleFunc("PUT /api/households/{id}/members/{member_id}/role", s.householdH.UpdateMemberRole)
	mux.HandleFunc("DELETE /api/households/{id}/members/{member_id}", s.householdH.RemoveMember)
	mux.HandleFunc("POST /api/households/{id}/invitations", s.householdH.Invite)
	mux.HandleFunc("POST /api/households/join", s.householdH.Join)

	mux.HandleFunc("POST /api/households/{id}/products", s.productH.Create)
	mux.HandleFunc("GET /api/households/{id}/products", s.productH.List)
	mux.HandleFunc("DELETE /api/products/{product_id}", s.productH.Delete)
	mux.HandleFunc("GET /api/products/{product_id}/image", s.productH.Image)
	mux.HandleFunc("GET /api/products/lookup/{barcode}", s.productH.Lookup)

	mux.HandleFunc("POST /api/sync", s.syncH.Run)

	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /api/push/subscriptions", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions", s.pushH.Unsubscribe)
	}

	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("POST /api/backups", s.backupH.Run)
	mux.HandleFunc("GET /api/backups/{id}/download", s.backupH.Download)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
