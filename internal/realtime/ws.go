package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
)

// SessionLookup resolves a session id. service.SessionService satisfies it.
type SessionLookup interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
}

// WSConfig tunes the WebSocket endpoint.
type WSConfig struct {
	// WriteWait bounds a single frame write.
	WriteWait time.Duration

	// PongWait is how long the peer may stay silent.
	PongWait time.Duration

	// PingInterval must be shorter than PongWait.
	PingInterval time.Duration

	// MaxMessageSize caps inbound frames.
	MaxMessageSize int64

	// AllowedOrigins lists accepted Origin headers. Empty or "*" accepts all.
	AllowedOrigins []string
}

// DefaultWSConfig returns the default WebSocket settings.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
		MaxMessageSize: 4096,
	}
}

// WSHandler serves the primary notification channel.
type WSHandler struct {
	hub      *Hub
	sessions SessionLookup
	cfg      WSConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates the WebSocket endpoint. sessions may be nil, in
// which case frames carrying a sessionId are rejected.
func NewWSHandler(hub *Hub, sessions SessionLookup, cfg WSConfig, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWSConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	h := &WSHandler{
		hub:      hub,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.With("component", "ws"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and runs the connection until either side
// closes it.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	conn, err := h.hub.Register(ChannelWebSocket)
	if err != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.cfg.WriteWait))
		ws.Close()
		return
	}

	replies := make(chan ServerFrame, 4)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ws, conn, replies)
	}()

	h.readLoop(r.Context(), ws, conn, replies)

	h.hub.Unregister(conn)
	<-writerDone
	ws.Close()
}

func (h *WSHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn *Conn, replies chan<- ServerFrame) {
	ws.SetReadLimit(h.cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", "conn_id", conn.ID(), "error", err)
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.reply(conn, replies, ServerFrame{Event: EventError, Error: "malformed frame"})
			continue
		}

		switch frame.Type {
		case FrameAuthenticate:
			if err := h.authenticate(ctx, conn, frame); err != nil {
				h.reply(conn, replies, ServerFrame{Event: EventError, Error: err.Error()})
				continue
			}
			h.reply(conn, replies, ServerFrame{Event: EventAuthenticated})
		default:
			h.reply(conn, replies, ServerFrame{Event: EventError, Error: "unknown frame type"})
		}
	}
}

func (h *WSHandler) authenticate(ctx context.Context, conn *Conn, frame ClientFrame) error {
	userID := frame.UserID
	if frame.SessionID != "" {
		if h.sessions == nil {
			return domain.ErrAuthRequired.WithDetails("session authentication unavailable")
		}
		sess, err := h.sessions.Get(ctx, frame.SessionID)
		if err != nil {
			return domain.ErrAuthRequired.WithDetails("invalid session")
		}
		if userID != "" && userID != sess.UserID {
			return domain.ErrAuthRequired.WithDetails("session does not belong to user")
		}
		userID = sess.UserID
	}
	return h.hub.Authenticate(conn.ID(), userID)
}

func (h *WSHandler) reply(conn *Conn, replies chan<- ServerFrame, frame ServerFrame) {
	select {
	case replies <- frame:
	case <-conn.Done():
	default:
		h.logger.Warn("reply queue full", "conn_id", conn.ID(), "event", frame.Event)
	}
}

func (h *WSHandler) writeLoop(ws *websocket.Conn, conn *Conn, replies <-chan ServerFrame) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		var frame ServerFrame
		select {
		case n := <-conn.Messages():
			frame = ServerFrame{Event: EventNewNotification, Data: n}
		case frame = <-replies:
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.fail(ws, conn, err)
				return
			}
			continue
		case <-conn.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteWait))
			// Do not wait a full PongWait for the peer's close reply.
			_ = ws.SetReadDeadline(time.Now().Add(h.cfg.WriteWait))
			return
		}

		_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
		if err := ws.WriteJSON(frame); err != nil {
			h.fail(ws, conn, err)
			return
		}
	}
}

// fail closes the socket so the blocked reader returns.
func (h *WSHandler) fail(ws *websocket.Conn, conn *Conn, err error) {
	h.logger.Debug("websocket write failed", "conn_id", conn.ID(), "error", err)
	ws.Close()
}
