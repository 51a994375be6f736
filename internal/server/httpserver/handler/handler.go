package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/internal/storage"
	"github.com/mtaadao/mtaa-realtime/pkg/clock"
)

// ConnectionCounter reports live realtime connections. realtime.Hub
// satisfies it.
type ConnectionCounter interface {
	Count() int
	UserCount() int
	OnlineUsers() []string
	DisconnectUser(userID string) int
}

// Deps are the services the handlers call.
type Deps struct {
	Sessions      *service.SessionService
	Notifications *service.NotificationService
	Limiter       *service.RateLimiter

	// Hub is optional; without it connection stats read zero and revoking
	// all sessions does not drop realtime connections.
	Hub ConnectionCounter

	// Inbox is optional; admin status and GC include it when set.
	Inbox storage.KVEngine

	// Ready reports readiness; nil means always ready.
	Ready func(ctx context.Context) error

	Clock  clock.Clock
	Logger *slog.Logger
}

// Handler is the main HTTP handler that routes requests to the endpoint
// handlers.
type Handler struct {
	deps    Deps
	started time.Time
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New creates a new Handler with the given services.
func New(deps Deps) *Handler {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &Handler{
		deps:    deps,
		started: deps.Clock.Now(),
		logger:  deps.Logger.With("component", "handler"),
		mux:     http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all JSON API routes. The streaming endpoints
// and /metrics are mounted by the router.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// Session endpoints
	h.mux.HandleFunc("POST /sessions", h.handleCreateSession)
	h.mux.HandleFunc("GET /sessions/{id}", h.handleGetSession)
	h.mux.HandleFunc("POST /sessions/{id}/touch", h.handleTouchSession)
	h.mux.HandleFunc("POST /sessions/{id}/revoke", h.handleRevokeSession)
	h.mux.HandleFunc("GET /users/{user_id}/sessions", h.handleListUserSessions)
	h.mux.HandleFunc("POST /users/{user_id}/sessions/revoke", h.handleRevokeUserSessions)

	// Notification endpoints
	h.mux.HandleFunc("POST /notifications", h.handlePublish)
	h.mux.HandleFunc("GET /users/{user_id}/notifications", h.handleListNotifications)
	h.mux.HandleFunc("POST /users/{user_id}/notifications/read-all", h.handleMarkAllRead)
	h.mux.HandleFunc("POST /users/{user_id}/notifications/{id}/read", h.handleMarkRead)
	h.mux.HandleFunc("DELETE /users/{user_id}/notifications/{id}", h.handleDeleteNotification)

	// Rate limit consultation
	h.mux.HandleFunc("POST /ratelimit/{policy}/check", h.handleRateLimitCheck)

	// Admin endpoints
	h.mux.HandleFunc("GET /admin/v1/status/summary", h.handleAdminStatus)
	h.mux.HandleFunc("POST /admin/v1/gc/trigger", h.handleGCTrigger)
}
