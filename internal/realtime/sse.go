package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
)

// DefaultHeartbeatInterval is the SSE keepalive period.
const DefaultHeartbeatInterval = 30 * time.Second

// ErrorWriter renders a request error. The HTTP layer passes its envelope
// writer here.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// SSEHandler serves the fallback notification stream.
type SSEHandler struct {
	hub       *Hub
	sessions  SessionLookup
	heartbeat time.Duration
	writeErr  ErrorWriter
	logger    *slog.Logger
}

// NewSSEHandler creates the SSE endpoint. writeErr may be nil.
func NewSSEHandler(hub *Hub, sessions SessionLookup, heartbeat time.Duration, writeErr ErrorWriter, logger *slog.Logger) *SSEHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	if writeErr == nil {
		writeErr = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SSEHandler{
		hub:       hub,
		sessions:  sessions,
		heartbeat: heartbeat,
		writeErr:  writeErr,
		logger:    logger.With("component", "sse"),
	}
}

// streamSessionID finds the caller's session. EventSource cannot set
// headers, so the query string is accepted too.
func streamSessionID(r *http.Request) string {
	if id := r.Header.Get(domain.SessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(domain.SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get(domain.SessionQuery)
}

// ServeHTTP streams notifications for the caller's user until the request
// ends or the hub drops the connection.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := streamSessionID(r)
	if sessionID == "" {
		h.writeErr(w, r, domain.ErrAuthRequired.WithDetails("session required"))
		return
	}
	sess, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		h.writeErr(w, r, domain.ErrAuthRequired.WithDetails("invalid or expired session"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeErr(w, r, domain.ErrInternalServer.WithDetails("streaming unsupported"))
		return
	}

	conn, err := h.hub.Register(ChannelSSE)
	if err != nil {
		h.writeErr(w, r, domain.ErrInternalServer.WithCause(err))
		return
	}
	defer h.hub.Unregister(conn)
	if err := h.hub.Authenticate(conn.ID(), sess.UserID); err != nil {
		h.writeErr(w, r, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", sse.ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug("stream opened", "conn_id", conn.ID(), "user_id", sess.UserID)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		var ev sse.Event
		select {
		case <-r.Context().Done():
			return
		case <-conn.Done():
			return
		case <-ticker.C:
			ev = sse.Event{Data: Heartbeat{Type: HeartbeatType}}
		case n := <-conn.Messages():
			ev = sse.Event{Data: *n}
		}

		if err := sse.Encode(w, ev); err != nil {
			h.logger.Debug("stream write failed", "conn_id", conn.ID(), "error", err)
			return
		}
		flusher.Flush()
	}
}
