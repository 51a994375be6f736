package handler

import (
	"net/http"
	"strconv"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/core/service"
)

// handlePublish handles POST /notifications.
func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req service.PublishRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	result, err := h.deps.Notifications.Publish(r.Context(), &req)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, r, http.StatusCreated, PublishResponse{
		Notification: result.Notification,
		Delivered:    result.Delivered,
		Persisted:    result.Persisted,
	})
}

// handleListNotifications handles GET /users/{user_id}/notifications.
//
// Query parameters: filter (all|unread|high), limit.
func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteError(w, r, domain.ErrInvalidArgument.WithDetails("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	page, err := h.deps.Notifications.List(r.Context(), r.PathValue("user_id"),
		service.NotificationFilter(q.Get("filter")), limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, page)
}

// handleMarkRead handles POST /users/{user_id}/notifications/{id}/read.
func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if err := h.deps.Notifications.MarkRead(r.Context(), userID, r.PathValue("id")); err != nil {
		WriteError(w, r, err)
		return
	}

	unread, err := h.deps.Notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, map[string]int{"unread_count": unread})
}

// handleDeleteNotification handles DELETE /users/{user_id}/notifications/{id}.
func (h *Handler) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if err := h.deps.Notifications.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		WriteError(w, r, err)
		return
	}

	unread, err := h.deps.Notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, map[string]int{"unread_count": unread})
}

// handleMarkAllRead handles POST /users/{user_id}/notifications/read-all.
func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Notifications.MarkAllRead(r.Context(), r.PathValue("user_id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, MarkAllReadResponse{Updated: n})
}
