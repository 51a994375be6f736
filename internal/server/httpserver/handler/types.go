package handler

import (
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/internal/infra/buildinfo"
)

// Response is the standard API response envelope.
// All JSON responses use this format except the 429 rate limit body and
// /metrics.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// RateLimitBody is the 429 response body.
type RateLimitBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

// CreateSessionRequest is the request body for POST /sessions.
type CreateSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
}

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Device       string    `json:"device,omitempty"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	Current      bool      `json:"current,omitempty"`
}

// ListSessionsResponse is the response body for GET /users/{user_id}/sessions.
type ListSessionsResponse struct {
	Items []SessionResponse `json:"items"`
	Total int               `json:"total"`
}

// RevokeSessionResponse is the response body for POST /sessions/{id}/revoke.
type RevokeSessionResponse struct {
	Revoked bool `json:"revoked"`
}

// RevokeUserSessionsResponse is the response body for
// POST /users/{user_id}/sessions/revoke.
type RevokeUserSessionsResponse struct {
	RevokedCount      int `json:"revoked_count"`
	DisconnectedCount int `json:"disconnected_count"`
}

// PublishResponse is the response body for POST /notifications.
type PublishResponse struct {
	Notification *domain.Notification `json:"notification"`
	Delivered    int                  `json:"delivered"`
	Persisted    bool                 `json:"persisted"`
}

// MarkAllReadResponse is the response body for
// POST /users/{user_id}/notifications/read-all.
type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

// RateLimitCheckRequest is the request body for POST /ratelimit/{policy}/check.
// Key overrides the caller-derived key.
type RateLimitCheckRequest struct {
	Key string `json:"key,omitempty"`
}

// RateLimitCheckResponse is the response body for an allowed check.
type RateLimitCheckResponse struct {
	Policy     string `json:"policy"`
	Key        string `json:"key"`
	Allowed    bool   `json:"allowed"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	RetryAfter int    `json:"retryAfter"`
}

// StatusSummary is the response body for GET /admin/v1/status/summary.
type StatusSummary struct {
	Build         buildinfo.Info       `json:"build"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	Sessions      service.SessionStats `json:"sessions"`
	Connections   ConnectionStats      `json:"connections"`
	Inbox         *InboxStats          `json:"inbox,omitempty"`
	RateLimiter   RateLimiterStats     `json:"rate_limiter"`
}

// ConnectionStats describes live realtime connections.
type ConnectionStats struct {
	Total int `json:"total"`
	Users int `json:"users"`
	// Online lists the users with a live connection.
	Online []string `json:"online_users"`
}

// InboxStats describes the notification store.
type InboxStats struct {
	TotalBytes uint64 `json:"total_bytes"`
	InMemory   bool   `json:"in_memory"`
	LastGC     int64  `json:"last_gc,omitempty"`
}

// RateLimiterStats describes the limiter.
type RateLimiterStats struct {
	Windows  int              `json:"windows"`
	Policies []service.Policy `json:"policies"`
}

// GCResponse is the response body for POST /admin/v1/gc/trigger.
type GCResponse struct {
	SessionsReclaimed int    `json:"sessions_reclaimed"`
	WindowsReclaimed  int    `json:"windows_reclaimed"`
	InboxBytesFreed   uint64 `json:"inbox_bytes_freed"`
	DurationMs        int64  `json:"duration_ms"`
}
