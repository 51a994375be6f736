package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/internal/telemetry/logger"
)

// RateLimitKey derives the window key for p. User-keyed policies use the
// session's user and fall back to the client IP without a session.
func RateLimitKey(r *http.Request, p service.Policy, sessions *service.SessionService) string {
	if p.KeyBy == service.KeyByUser {
		if userID := logger.UserIDFromContext(r.Context()); userID != "" {
			return "user:" + userID
		}
		sid := logger.SessionIDFromContext(r.Context())
		if sid == "" {
			sid = RequestSessionID(r)
		}
		if sid != "" && sessions != nil {
			if s, err := sessions.Get(r.Context(), sid); err == nil {
				return "user:" + s.UserID
			}
		}
	}
	return "ip:" + ClientIP(r)
}

// RequestSessionID reads the x-session-id header, then the sessionId
// cookie.
func RequestSessionID(r *http.Request) string {
	if id := r.Header.Get(domain.SessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(domain.SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// WriteRateLimited writes the 429 response.
func WriteRateLimited(w http.ResponseWriter, d service.Decision) {
	retry := d.RetryAfterSeconds()
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	SetRateLimitHeaders(w, d)
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(RateLimitBody{
		Error:      "Too many requests, please try again later.",
		RetryAfter: retry,
	})
}

// SetRateLimitHeaders reports the window state to the client.
func SetRateLimitHeaders(w http.ResponseWriter, d service.Decision) {
	w.Header().Set("RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.Reset.IsZero() {
		w.Header().Set("RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	}
}

// handleRateLimitCheck handles POST /ratelimit/{policy}/check. Each call
// consumes one request from the window.
func (h *Handler) handleRateLimitCheck(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("policy")
	p, ok := h.deps.Limiter.Policy(name)
	if !ok {
		WriteError(w, r, domain.ErrInvalidArgument.WithDetails("unknown rate limit policy: "+name))
		return
	}

	var req RateLimitCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	key := RateLimitKey(r, p, h.deps.Sessions)
	if req.Key != "" {
		key = string(p.KeyBy) + ":" + req.Key
	}

	d, err := h.deps.Limiter.Allow(name, key)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if !d.Allowed {
		WriteRateLimited(w, d)
		return
	}

	SetRateLimitHeaders(w, d)
	WriteJSON(w, r, http.StatusOK, RateLimitCheckResponse{
		Policy:    name,
		Key:       key,
		Allowed:   true,
		Limit:     d.Limit,
		Remaining: d.Remaining,
	})
}
