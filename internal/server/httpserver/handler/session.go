package handler

import (
	"net/http"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/internal/telemetry/logger"
)

// handleCreateSession handles POST /sessions.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	session, err := h.deps.Sessions.Create(r.Context(), &service.CreateSessionRequest{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Email:     req.Email,
		Role:      req.Role,
		IPAddress: ClientIP(r),
		UserAgent: truncate(r.UserAgent(), domain.MaxUserAgentLength),
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, r, http.StatusCreated, h.sessionToResponse(r, session))
}

// handleGetSession handles GET /sessions/{id}. Reading a session extends
// its life.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.deps.Sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, h.sessionToResponse(r, session))
}

// handleTouchSession handles POST /sessions/{id}/touch.
func (h *Handler) handleTouchSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.deps.Sessions.Touch(r.Context(), id)

	// Touch is fire-and-forget; report the resulting state.
	session, err := h.deps.Sessions.Get(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, h.sessionToResponse(r, session))
}

// handleRevokeSession handles POST /sessions/{id}/revoke. Revoking an
// unknown session succeeds with revoked=false.
func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	removed, err := h.deps.Sessions.Destroy(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, RevokeSessionResponse{Revoked: removed})
}

// handleListUserSessions handles GET /users/{user_id}/sessions.
func (h *Handler) handleListUserSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.deps.Sessions.ListForUser(r.Context(), r.PathValue("user_id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	items := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, h.sessionToResponse(r, s))
	}
	WriteJSON(w, r, http.StatusOK, ListSessionsResponse{Items: items, Total: len(items)})
}

// handleRevokeUserSessions handles POST /users/{user_id}/sessions/revoke.
// Live realtime connections of the user are dropped as well.
func (h *Handler) handleRevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	n, err := h.deps.Sessions.DestroyAllForUser(r.Context(), userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	resp := RevokeUserSessionsResponse{RevokedCount: n}
	if h.deps.Hub != nil {
		resp.DisconnectedCount = h.deps.Hub.DisconnectUser(userID)
	}
	WriteJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) sessionToResponse(r *http.Request, s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		UserID:       s.UserID,
		Email:        s.Email,
		Role:         s.Role,
		IPAddress:    s.IPAddress,
		UserAgent:    s.UserAgent,
		Device:       deviceLabel(s.UserAgent),
		LoginTime:    s.LoginTime,
		LastActivity: s.LastActivity,
		ExpiresAt:    h.deps.Sessions.ExpiresAt(s),
		Current:      s.ID == logger.SessionIDFromContext(r.Context()),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
