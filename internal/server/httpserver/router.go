package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handlers serves the JSON API.
	Handlers *handler.Handler

	Sessions *service.SessionService
	Limiter  *service.RateLimiter
	Admin    *service.AdminAuthenticator

	// Service guards the business API.
	Service *service.ServiceAuthenticator

	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies handler.TrustedProxies

	// WebSocket and Stream are the realtime endpoints.
	WebSocket http.Handler
	Stream    http.Handler

	// Metrics serves /metrics; nil leaves the route unregistered.
	Metrics        http.Handler
	RequestMetrics RequestMetrics

	Logger *slog.Logger

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string

	// RateLimitEnabled turns the policy middleware on.
	RateLimitEnabled bool
}

// NewRouter creates the top-level mux with all routes and middleware.
//
// Business chain: Recover -> RequestID -> RealIP -> CORS -> Audit ->
// RateLimit(policy) -> ServiceAuth -> SessionActivity -> handler.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	h := cfg.Handlers
	audit := Audit(log, cfg.RequestMetrics)
	realIP := RealIP(cfg.TrustedProxies)
	cors := CORS(cfg.CORSAllowedOrigins)

	business := func(policy string) http.Handler {
		mws := []Middleware{Recover(log), RequestID(), realIP, cors, audit}
		if cfg.RateLimitEnabled && policy != "" {
			mws = append(mws, RateLimit(cfg.Limiter, policy, cfg.Sessions))
		}
		mws = append(mws, ServiceAuth(cfg.Service), SessionActivity(cfg.Sessions))
		return Chain(h, mws...)
	}

	mux := http.NewServeMux()

	// Health endpoints
	public := Chain(h, Recover(log), RequestID())
	mux.Handle("GET /health", public)
	mux.Handle("GET /ready", public)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	general := business(service.PolicyGeneral)
	login := business(service.PolicyAuth)

	// Session endpoints
	mux.Handle("POST /sessions", login)
	mux.Handle("GET /sessions/{id}", general)
	mux.Handle("POST /sessions/{id}/touch", general)
	mux.Handle("POST /sessions/{id}/revoke", general)
	mux.Handle("GET /users/{user_id}/sessions", general)
	mux.Handle("POST /users/{user_id}/sessions/revoke", general)

	// Notification endpoints
	mux.Handle("POST /notifications", general)
	mux.Handle("GET /users/{user_id}/notifications", general)
	mux.Handle("POST /users/{user_id}/notifications/read-all", general)
	mux.Handle("POST /users/{user_id}/notifications/{id}/read", general)
	mux.Handle("DELETE /users/{user_id}/notifications/{id}", general)

	// Rate limit consultation is itself the limiter; no policy middleware.
	mux.Handle("POST /ratelimit/{policy}/check", business(""))

	// Realtime endpoints authenticate end users by session. Audit is left
	// out: connections are long lived.
	if cfg.Stream != nil {
		mux.Handle("GET /notifications/stream", Chain(cfg.Stream,
			Recover(log), RequestID(), realIP, cors, SessionActivity(cfg.Sessions)))
	}
	if cfg.WebSocket != nil {
		mux.Handle("GET /ws", Chain(cfg.WebSocket, Recover(log), RequestID(), realIP))
	}

	// Admin endpoints
	admin := Chain(h, Recover(log), RequestID(), realIP, audit, AdminAuth(cfg.Admin))
	mux.Handle("GET /admin/v1/status/summary", admin)
	mux.Handle("POST /admin/v1/gc/trigger", admin)

	// Preflight for browser clients.
	mux.Handle("OPTIONS /", Chain(http.NotFoundHandler(), cors))

	return mux
}
